package sysfs

import (
	"context"
	"testing"
	"time"

	"turretcore/device"
)

func newTestChip(t *testing.T) (*fakeFS, device.Chip) {
	fs := newFakeFS()
	fs.install(t)
	fs.put("/sys/class/gpio/gpio17/value", "0")
	fs.put("/sys/class/gpio/gpio17/direction", "out")
	fs.put("/sys/class/gpio/gpio27/value", "0")
	fs.put("/sys/class/gpio/gpio27/direction", "in")
	c, err := OpenChip("gpiochip0")
	if err != nil {
		t.Fatalf("OpenChip: %v", err)
	}
	return fs, c
}

func TestOutputLineSetRead(t *testing.T) {
	_, c := newTestChip(t)
	l, err := c.OutputLine(17, "laser")
	if err != nil {
		t.Fatalf("OutputLine: %v", err)
	}
	if err := l.Set(device.High); err != nil {
		t.Fatalf("Set: %v", err)
	}
	v, err := l.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if v != device.High {
		t.Fatalf("Read() = %v, want High", v)
	}
	if err := l.Set(device.Low); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v, _ := l.Read(); v != device.Low {
		t.Fatalf("Read() = %v, want Low", v)
	}
}

func TestOutputLineExclusiveOwnership(t *testing.T) {
	_, c := newTestChip(t)
	if _, err := c.OutputLine(17, "laser"); err != nil {
		t.Fatalf("OutputLine: %v", err)
	}
	if _, err := c.OutputLine(17, "laser-again"); err == nil {
		t.Fatal("expected error requesting an already-owned line")
	}
}

func TestInputLineCannotBeSet(t *testing.T) {
	_, c := newTestChip(t)
	l, err := c.InputLine(27, "button")
	if err != nil {
		t.Fatalf("InputLine: %v", err)
	}
	if err := l.Set(device.High); err == nil {
		t.Fatal("expected error setting an input line")
	}
}

func TestLineReleaseThenReject(t *testing.T) {
	_, c := newTestChip(t)
	l, err := c.OutputLine(17, "laser")
	if err != nil {
		t.Fatalf("OutputLine: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := l.Set(device.High); err == nil {
		t.Fatal("expected error using a released line")
	}
	// A released offset can be re-acquired.
	if _, err := c.OutputLine(17, "laser"); err != nil {
		t.Fatalf("OutputLine after release: %v", err)
	}
}

func TestWaitForValueObservesChange(t *testing.T) {
	fs, c := newTestChip(t)
	l, err := c.InputLine(27, "button")
	if err != nil {
		t.Fatalf("InputLine: %v", err)
	}
	done := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		done <- l.WaitForValue(ctx, device.High)
	}()
	time.Sleep(30 * time.Millisecond)
	fs.put("/sys/class/gpio/gpio27/value", "1")
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("WaitForValue: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForValue did not observe the change")
	}
}

func TestWaitForValueCancel(t *testing.T) {
	_, c := newTestChip(t)
	l, err := c.InputLine(27, "button")
	if err != nil {
		t.Fatalf("InputLine: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.WaitForValue(ctx, device.High) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("expected cancellation error")
		}
	case <-time.After(time.Second):
		t.Fatal("WaitForValue did not observe cancellation")
	}
}
