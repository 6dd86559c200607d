package control

import (
	"math"
	"sync"

	"github.com/rs/zerolog"

	"turretcore/device"
	"turretcore/model"
)

// Standard hobby-servo pulse range, linearly mapped to [0, 180] degrees.
const (
	minPulseUS  = 500.0
	maxPulseUS  = 2500.0
	servoHz     = 50
	servoPeriod = int64(1_000_000_000 / servoHz)
)

// Servo owns one hardware PWM channel and honours the interlock.
type Servo struct {
	log     zerolog.Logger
	channel device.PWMChannel
	name    string

	mu     sync.Mutex
	angle  model.Angle
	locked bool
}

// NewServo configures channel for the standard 50Hz servo period and
// enables it at angle 0.
func NewServo(name string, channel device.PWMChannel, log zerolog.Logger) (*Servo, error) {
	s := &Servo{
		log:     log.With().Str("component", "servo").Str("axis", name).Logger(),
		channel: channel,
		name:    name,
	}
	if err := channel.SetPeriodNS(servoPeriod); err != nil {
		return nil, err
	}
	if err := s.writeAngle(0); err != nil {
		return nil, err
	}
	if err := channel.Enable(true); err != nil {
		return nil, err
	}
	return s, nil
}

// pulseUS maps an angle in [0,180] linearly to a pulse width in
// microseconds in [minPulseUS, maxPulseUS].
func pulseUS(a model.Angle) float64 {
	a = a.Clamp()
	return minPulseUS + (maxPulseUS-minPulseUS)*(float64(a)/float64(model.MaxAngle))
}

func (s *Servo) writeAngle(a model.Angle) error {
	dutyNS := int64(math.Round(pulseUS(a) * 1000))
	return s.channel.SetDutyNS(dutyNS)
}

// SetAngle clamps a to [0,180] and commands the corresponding duty
// cycle. While locked, the request is silently ignored.
func (s *Servo) SetAngle(a model.Angle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locked {
		return nil
	}
	a = a.Clamp()
	if err := s.writeAngle(a); err != nil {
		return err
	}
	s.angle = a
	return nil
}

// Angle returns the last commanded angle.
func (s *Servo) Angle() model.Angle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.angle
}

// EmergencyDisableAndLock commands the minimum pulse (angle 0) and
// engages the lock.
func (s *Servo) EmergencyDisableAndLock() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.writeAngle(0)
	s.angle = 0
	s.locked = true
	s.log.Warn().Msg("servo emergency-locked")
	return err
}

// Unlock clears the lock. It does not restore any angle; callers (the
// Aim Coordinator) are responsible for reapplying the default aim.
func (s *Servo) Unlock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locked = false
	s.log.Info().Msg("servo unlocked")
}

// Locked reports whether the servo is currently emergency-locked.
func (s *Servo) Locked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.locked
}

// Close disables the PWM output and releases the channel.
func (s *Servo) Close() error {
	if err := s.channel.Enable(false); err != nil {
		return err
	}
	return s.channel.Release()
}
