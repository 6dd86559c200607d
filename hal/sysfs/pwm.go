package sysfs

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"turretcore/device"
	"turretcore/turreterr"
)

// pwmChip is a PWM controller backed by /sys/class/pwm/pwmchipN, per the
// Open Question decision to implement the sysfs PWM class layout in the
// style of this package's GPIO driver: export once, keep file handles
// open, write textual values on every access.
type pwmChip struct {
	name string
	root string // e.g. /sys/class/pwm/pwmchip0/

	mu             sync.Mutex
	exportHandle   fileIO
	unexportHandle fileIO
	channels       map[int]*pwmChannel
	closed         bool
}

// OpenPWMChip opens the named PWM chip (e.g. "pwmchip0").
func OpenPWMChip(name string) (device.PWMChip, error) {
	root := fmt.Sprintf("/sys/class/pwm/%s/", name)
	exp, err := fileIOOpen(root+"export", os.O_WRONLY)
	if err != nil {
		return nil, turreterr.NewDevice("pwm:open_chip:export", err)
	}
	unexp, err := fileIOOpen(root+"unexport", os.O_WRONLY)
	if err != nil {
		_ = exp.Close()
		return nil, turreterr.NewDevice("pwm:open_chip:unexport", err)
	}
	return &pwmChip{
		name:           name,
		root:           root,
		exportHandle:   exp,
		unexportHandle: unexp,
		channels:       map[int]*pwmChannel{},
	}, nil
}

func (c *pwmChip) Channel(channel int) (device.PWMChannel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, turreterr.NewNotInitialized("pwm chip " + c.name)
	}
	if _, ok := c.channels[channel]; ok {
		return nil, turreterr.NewDevice("pwm:channel", fmt.Errorf("pwm channel %d already owned", channel))
	}

	if _, err := c.exportHandle.Write([]byte(strconv.Itoa(channel))); err != nil && !isErrBusy(err) {
		return nil, turreterr.NewDevice("pwm:export", err)
	}

	chRoot := fmt.Sprintf("%spwm%d/", c.root, channel)
	var fPeriod, fDuty, fEnable fileIO
	var err error
	deadline := time.Now().Add(exportTimeout)
	for {
		fPeriod, err = fileIOOpen(chRoot+"period", os.O_RDWR)
		if err == nil || !os.IsNotExist(err) {
			break
		}
		if time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		return nil, turreterr.NewDevice("pwm:open period", err)
	}
	if fDuty, err = fileIOOpen(chRoot+"duty_cycle", os.O_RDWR); err != nil {
		_ = fPeriod.Close()
		return nil, turreterr.NewDevice("pwm:open duty_cycle", err)
	}
	if fEnable, err = fileIOOpen(chRoot+"enable", os.O_RDWR); err != nil {
		_ = fPeriod.Close()
		_ = fDuty.Close()
		return nil, turreterr.NewDevice("pwm:open enable", err)
	}

	ch := &pwmChannel{
		chip:    c,
		channel: channel,
		fPeriod: fPeriod,
		fDuty:   fDuty,
		fEnable: fEnable,
	}
	c.channels[channel] = ch
	return ch, nil
}

func (c *pwmChip) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if len(c.channels) != 0 {
		return turreterr.NewDevice("pwm:close_chip", fmt.Errorf("%d channels still owned", len(c.channels)))
	}
	err1 := c.exportHandle.Close()
	err2 := c.unexportHandle.Close()
	if err1 != nil {
		return turreterr.NewDevice("pwm:close_chip", err1)
	}
	if err2 != nil {
		return turreterr.NewDevice("pwm:close_chip", err2)
	}
	return nil
}

// pwmChannel is one exclusively-owned hardware PWM output.
type pwmChannel struct {
	chip    *pwmChip
	channel int
	fPeriod fileIO
	fDuty   fileIO
	fEnable fileIO

	mu       sync.Mutex
	released bool
}

func (c *pwmChannel) SetPeriodNS(ns int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return turreterr.NewNotInitialized(fmt.Sprintf("pwm channel %d", c.channel))
	}
	if err := seekWrite(c.fPeriod, []byte(strconv.FormatInt(ns, 10))); err != nil {
		return turreterr.NewDevice("pwm:set_period_ns", err)
	}
	return nil
}

func (c *pwmChannel) SetDutyNS(ns int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return turreterr.NewNotInitialized(fmt.Sprintf("pwm channel %d", c.channel))
	}
	if err := seekWrite(c.fDuty, []byte(strconv.FormatInt(ns, 10))); err != nil {
		return turreterr.NewDevice("pwm:set_duty_ns", err)
	}
	return nil
}

func (c *pwmChannel) Enable(on bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.released {
		return turreterr.NewNotInitialized(fmt.Sprintf("pwm channel %d", c.channel))
	}
	v := []byte("0")
	if on {
		v = []byte("1")
	}
	if err := seekWrite(c.fEnable, v); err != nil {
		return turreterr.NewDevice("pwm:enable", err)
	}
	return nil
}

func (c *pwmChannel) Release() error {
	c.mu.Lock()
	if c.released {
		c.mu.Unlock()
		return nil
	}
	c.released = true
	c.mu.Unlock()

	_ = seekWrite(c.fEnable, []byte("0"))
	err1 := c.fPeriod.Close()
	err2 := c.fDuty.Close()
	err3 := c.fEnable.Close()

	c.chip.mu.Lock()
	delete(c.chip.channels, c.channel)
	_, werr := c.chip.unexportHandle.Write([]byte(strconv.Itoa(c.channel)))
	c.chip.mu.Unlock()

	for _, err := range []error{err1, err2, err3, werr} {
		if err != nil {
			return turreterr.NewDevice("pwm:release", err)
		}
	}
	return nil
}
