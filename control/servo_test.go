package control

import (
	"testing"

	"github.com/rs/zerolog"

	"turretcore/device/devicetest"
	"turretcore/model"
)

func newTestServo(t *testing.T) (*devicetest.PWMChannel, *Servo) {
	t.Helper()
	ch := devicetest.NewPWMChannel()
	s, err := NewServo("x", ch, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewServo: %v", err)
	}
	return ch, s
}

func TestServoNewConfiguresPeriodAndEnables(t *testing.T) {
	ch, _ := newTestServo(t)
	periodNS, _, enabled := ch.State()
	if periodNS != servoPeriod {
		t.Fatalf("periodNS = %d, want %d", periodNS, servoPeriod)
	}
	if !enabled {
		t.Fatal("expected channel enabled after construction")
	}
}

func TestServoSetAngleMapsToPulseRange(t *testing.T) {
	cases := []struct {
		angle    model.Angle
		wantDuty int64
	}{
		{0, 500_000},
		{180, 2_500_000},
		{90, 1_500_000},
	}
	for _, c := range cases {
		ch, s := newTestServo(t)
		if err := s.SetAngle(c.angle); err != nil {
			t.Fatalf("SetAngle(%v): %v", c.angle, err)
		}
		_, duty, _ := ch.State()
		if duty != c.wantDuty {
			t.Fatalf("angle %v: duty = %d, want %d", c.angle, duty, c.wantDuty)
		}
		if got := s.Angle(); got != c.angle {
			t.Fatalf("Angle() = %v, want %v", got, c.angle)
		}
	}
}

func TestServoSetAngleClamps(t *testing.T) {
	ch, s := newTestServo(t)
	if err := s.SetAngle(200); err != nil {
		t.Fatalf("SetAngle: %v", err)
	}
	_, duty, _ := ch.State()
	if duty != 2_500_000 {
		t.Fatalf("duty = %d, want clamped to 2500000", duty)
	}
}

func TestServoLockedIgnoresSetAngle(t *testing.T) {
	ch, s := newTestServo(t)
	if err := s.SetAngle(90); err != nil {
		t.Fatalf("SetAngle: %v", err)
	}
	if err := s.EmergencyDisableAndLock(); err != nil {
		t.Fatalf("EmergencyDisableAndLock: %v", err)
	}
	_, duty, _ := ch.State()
	if duty != 500_000 {
		t.Fatalf("duty after lock = %d, want 500000 (angle 0)", duty)
	}
	if err := s.SetAngle(45); err != nil {
		t.Fatalf("SetAngle while locked: %v", err)
	}
	_, duty, _ = ch.State()
	if duty != 500_000 {
		t.Fatalf("duty after locked SetAngle = %d, want unchanged 500000", duty)
	}
	s.Unlock()
	if err := s.SetAngle(45); err != nil {
		t.Fatalf("SetAngle after unlock: %v", err)
	}
	_, duty, _ = ch.State()
	if duty == 500_000 {
		t.Fatal("expected duty to change after unlock")
	}
}

func TestServoClose(t *testing.T) {
	ch, s := newTestServo(t)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.SetAngle(10); err == nil {
		t.Fatal("expected error using a released channel's SetDutyNS")
	}
	_, _, enabled := ch.State()
	if enabled {
		t.Fatal("expected channel disabled after Close")
	}
}
