// Package devicetest provides in-memory fakes of device.Line and
// device.PWMChannel for exercising controllers without real hardware,
// mirroring periph's conn/gpio/gpiotest fakes.
package devicetest

import (
	"context"
	"errors"
	"sync"
	"time"

	"turretcore/device"
)

// Line is a fake device.Line. Use Poke to change its value directly
// and simulate external changes such as a physical button press.
type Line struct {
	mu       sync.Mutex
	l        device.Level
	released bool
	// PollInterval is the polling granularity used by WaitForValue.
	// Defaults to 2ms, fast enough for tests but nonzero so the
	// polling loop is exercised.
	PollInterval time.Duration
}

// NewLine returns a fake line initialized to Low.
func NewLine() *Line {
	return &Line{PollInterval: 2 * time.Millisecond}
}

// Set implements device.Line.
func (l *Line) Set(v device.Level) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return errors.New("devicetest: line released")
	}
	l.l = v
	return nil
}

// Read implements device.Line.
func (l *Line) Read() (device.Level, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.released {
		return device.Low, errors.New("devicetest: line released")
	}
	return l.l, nil
}

// Poke sets the line value directly, simulating an external change such
// as a button press, without going through Set's released check.
func (l *Line) Poke(v device.Level) {
	l.mu.Lock()
	l.l = v
	l.mu.Unlock()
}

// WaitForValue implements device.Line by polling at PollInterval.
func (l *Line) WaitForValue(ctx context.Context, target device.Level) error {
	interval := l.PollInterval
	if interval <= 0 {
		interval = 2 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		v, err := l.Read()
		if err != nil {
			return err
		}
		if v == target {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Release implements device.Line.
func (l *Line) Release() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.released = true
	return nil
}

// Value returns the line's current value without the released check,
// for test assertions.
func (l *Line) Value() device.Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.l
}

// PWMChannel is a fake device.PWMChannel recording the last commanded
// period, duty and enable state for test assertions.
type PWMChannel struct {
	mu       sync.Mutex
	periodNS int64
	dutyNS   int64
	enabled  bool
	released bool
}

// NewPWMChannel returns a fake PWM channel.
func NewPWMChannel() *PWMChannel {
	return &PWMChannel{}
}

func (c *PWMChannel) SetPeriodNS(ns int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return errors.New("devicetest: channel released")
	}
	c.periodNS = ns
	return nil
}

func (c *PWMChannel) SetDutyNS(ns int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return errors.New("devicetest: channel released")
	}
	c.dutyNS = ns
	return nil
}

func (c *PWMChannel) Enable(on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return errors.New("devicetest: channel released")
	}
	c.enabled = on
	return nil
}

func (c *PWMChannel) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released = true
	c.enabled = false
	return nil
}

// State returns the last commanded period, duty and enable state, for
// test assertions.
func (c *PWMChannel) State() (periodNS, dutyNS int64, enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.periodNS, c.dutyNS, c.enabled
}
