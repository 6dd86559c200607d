// Package control implements the safety-interlocked actuator layer: the
// laser controller, the two servo controllers, the aim coordinator and
// the interlock manager. Each controller exclusively owns its line or
// PWM channel and serializes every operation under its own mutex; lock
// fan-out is centralized in the interlock manager, and controllers never
// call back into it.
package control

import (
	"sync"

	"github.com/rs/zerolog"

	"turretcore/device"
	"turretcore/turreterr"
)

// LaserState is the reported state of the Laser Controller.
type LaserState int

const (
	LaserUninitialized LaserState = iota
	LaserEnabled
	LaserDisabled
)

func (s LaserState) String() string {
	switch s {
	case LaserEnabled:
		return "Enabled"
	case LaserDisabled:
		return "Disabled"
	default:
		return "Uninitialized"
	}
}

// Laser owns the laser's digital output line and honours the interlock.
type Laser struct {
	log  zerolog.Logger
	line device.Line

	mu     sync.Mutex
	state  LaserState
	locked bool
}

// NewLaser constructs a Laser Controller around an already-acquired
// output line, initially disabled.
func NewLaser(line device.Line, log zerolog.Logger) *Laser {
	return &Laser{
		log:   log.With().Str("component", "laser").Logger(),
		line:  line,
		state: LaserDisabled,
	}
}

// Enable drives the laser line high. It fails LockedError while the
// interlock is engaged, and BadRequest if the laser is already enabled.
func (l *Laser) Enable() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locked {
		return "", turreterr.NewLocked(nil)
	}
	if l.state == LaserEnabled {
		return "", turreterr.NewBadRequest("laser already enabled")
	}
	if err := l.line.Set(device.High); err != nil {
		l.log.Error().Err(err).Msg("laser enable failed; attempting best-effort disable")
		_ = l.line.Set(device.Low)
		return "", err
	}
	l.state = LaserEnabled
	l.log.Info().Msg("laser enabled")
	return "Laser enabled", nil
}

// Disable drives the laser line low. It fails BadRequest if the laser is
// already disabled, but always succeeds when locked: disabling is the
// fail-safe direction and must never be refused by the interlock.
func (l *Laser) Disable() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.disableLocked()
}

func (l *Laser) disableLocked() (string, error) {
	if l.state == LaserDisabled {
		return "", turreterr.NewBadRequest("laser already disabled")
	}
	if err := l.line.Set(device.Low); err != nil {
		return "", err
	}
	l.state = LaserDisabled
	l.log.Info().Msg("laser disabled")
	return "Laser disabled", nil
}

// EmergencyDisableAndLock drives the line low, ignoring a BadRequest
// from an already-disabled line so that the lock is always achieved, and
// engages the lock.
func (l *Laser) EmergencyDisableAndLock() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.disableLocked(); err != nil && !turreterr.IsBadRequest(err) {
		l.locked = true
		l.log.Error().Err(err).Msg("laser emergency disable failed; lock engaged regardless")
		return err
	}
	l.locked = true
	l.log.Warn().Msg("laser emergency-locked")
	return nil
}

// Unlock clears the emergency lock without altering line state.
func (l *Laser) Unlock() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.locked = false
	l.log.Info().Msg("laser unlocked")
}

// Locked reports whether the laser is currently emergency-locked.
func (l *Laser) Locked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.locked
}

// Status reports the current state and lock flag.
func (l *Laser) Status() (state LaserState, locked bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state, l.locked
}

// Close drives the line low on a best-effort basis and releases it.
func (l *Laser) Close() error {
	l.mu.Lock()
	_, _ = l.disableLocked()
	l.mu.Unlock()
	return l.line.Release()
}
