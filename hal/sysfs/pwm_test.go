package sysfs

import "testing"

func newTestPWMChip(t *testing.T) (*fakeFS, *pwmChip) {
	fs := newFakeFS()
	fs.install(t)
	fs.put("/sys/class/pwm/pwmchip0/pwm0/period", "20000000")
	fs.put("/sys/class/pwm/pwmchip0/pwm0/duty_cycle", "0")
	fs.put("/sys/class/pwm/pwmchip0/pwm0/enable", "0")
	c, err := OpenPWMChip("pwmchip0")
	if err != nil {
		t.Fatalf("OpenPWMChip: %v", err)
	}
	return fs, c.(*pwmChip)
}

func TestPWMChannelSetAndEnable(t *testing.T) {
	fs, c := newTestPWMChip(t)
	ch, err := c.Channel(0)
	if err != nil {
		t.Fatalf("Channel: %v", err)
	}
	if err := ch.SetPeriodNS(20_000_000); err != nil {
		t.Fatalf("SetPeriodNS: %v", err)
	}
	if err := ch.SetDutyNS(1_500_000); err != nil {
		t.Fatalf("SetDutyNS: %v", err)
	}
	if err := ch.Enable(true); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if got := fs.get("/sys/class/pwm/pwmchip0/pwm0/duty_cycle"); got != "1500000" {
		t.Fatalf("duty_cycle = %q, want 1500000", got)
	}
	if got := fs.get("/sys/class/pwm/pwmchip0/pwm0/enable"); got != "1" {
		t.Fatalf("enable = %q, want 1", got)
	}
}

func TestPWMChannelExclusiveOwnership(t *testing.T) {
	_, c := newTestPWMChip(t)
	if _, err := c.Channel(0); err != nil {
		t.Fatalf("Channel: %v", err)
	}
	if _, err := c.Channel(0); err == nil {
		t.Fatal("expected error requesting an already-owned channel")
	}
}

func TestPWMChannelReleaseDisables(t *testing.T) {
	fs, c := newTestPWMChip(t)
	ch, err := c.Channel(0)
	if err != nil {
		t.Fatalf("Channel: %v", err)
	}
	if err := ch.Enable(true); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if err := ch.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if got := fs.get("/sys/class/pwm/pwmchip0/pwm0/enable"); got != "0" {
		t.Fatalf("enable after release = %q, want 0", got)
	}
	if err := ch.SetDutyNS(1000); err == nil {
		t.Fatal("expected error using a released channel")
	}
}
