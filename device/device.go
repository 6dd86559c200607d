// Package device declares the abstract device interfaces the turret's
// controllers are built against: a digital GPIO line and a hardware PWM
// channel. Concrete Linux implementations live in hal/sysfs; fakes for
// unit tests live in device/devicetest. No controller package imports
// hal/sysfs directly; they are wired together only in cmd/turretd, the
// same separation periph.io keeps between conn/gpio (interfaces) and
// host/sysfs (concrete driver).
package device

import "context"

// Level is a digital line value.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// Line is a single digital GPIO line, either configured as an output or
// an input for its lifetime.
type Line interface {
	// Set drives an output line to the given level. It is an error to
	// call Set on a line opened as an input.
	Set(l Level) error
	// Read returns the current level of an input line.
	Read() (Level, error)
	// WaitForValue blocks until the line reads target, polling at a
	// bounded interval, or returns early with ctx.Err() if ctx is
	// cancelled first.
	WaitForValue(ctx context.Context, target Level) error
	// Release relinquishes the OS handle backing the line. After
	// Release, all other methods return an error.
	Release() error
}

// Chip is a GPIO chip capable of granting exclusive ownership of
// individual lines.
type Chip interface {
	// OutputLine requests offset as an output line for the named
	// consumer.
	OutputLine(offset int, consumer string) (Line, error)
	// InputLine requests offset as an input line for the named
	// consumer.
	InputLine(offset int, consumer string) (Line, error)
	// Close releases the chip handle. Lines obtained from it must be
	// released first.
	Close() error
}

// PWMChannel is a single hardware PWM output.
type PWMChannel interface {
	// SetPeriodNS sets the PWM period in nanoseconds.
	SetPeriodNS(ns int64) error
	// SetDutyNS sets the high-time of the PWM waveform in nanoseconds.
	// It must be less than or equal to the configured period.
	SetDutyNS(ns int64) error
	// Enable turns the PWM output on or off.
	Enable(on bool) error
	// Release disables the channel and unexports it.
	Release() error
}

// PWMChip is a PWM controller capable of granting exclusive ownership of
// individual channels.
type PWMChip interface {
	// Channel requests the given channel index for exclusive use.
	Channel(channel int) (PWMChannel, error)
	// Close releases the chip handle. Channels obtained from it must be
	// released first.
	Close() error
}
