// Package turreterr defines the error kinds shared across the turret
// control core, as described in the system's error handling design.
//
// Each kind wraps an underlying cause and is distinguishable with
// errors.As, so callers at the HTTP boundary can map a kind to a status
// code without string matching.
package turreterr

import (
	"errors"
	"fmt"
)

// Device reports an OS-level I/O failure talking to GPIO, PWM or the
// database. During steady-state operation it is logged and, for the
// laser, a best-effort disable is attempted; during subsystem init it is
// fatal and propagated.
type Device struct {
	Op  string
	Err error
}

func (e *Device) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("device: %s", e.Op)
	}
	return fmt.Sprintf("device: %s: %v", e.Op, e.Err)
}

func (e *Device) Unwrap() error { return e.Err }

// NewDevice wraps err as a Device error naming the failing operation.
func NewDevice(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Device{Op: op, Err: err}
}

// Locked reports that an action was refused because the interlock is
// currently engaged.
type Locked struct {
	Reasons []string
}

func (e *Locked) Error() string {
	if len(e.Reasons) == 0 {
		return "locked due to an emergency"
	}
	return fmt.Sprintf("locked due to an emergency (reasons: %v)", e.Reasons)
}

// NewLocked builds a Locked error carrying the current reason set.
func NewLocked(reasons []string) error {
	return &Locked{Reasons: reasons}
}

// BadRequest reports caller input that is out of range or malformed, or
// an operation refused for a reason that is the caller's fault (e.g.
// disabling an already-disabled laser).
type BadRequest struct {
	Msg string
}

func (e *BadRequest) Error() string { return e.Msg }

// NewBadRequest builds a BadRequest with the given message.
func NewBadRequest(format string, args ...any) error {
	return &BadRequest{Msg: fmt.Sprintf(format, args...)}
}

// NotInitialized reports that an operation was invoked before the owning
// subsystem finished initialization.
type NotInitialized struct {
	Subsystem string
}

func (e *NotInitialized) Error() string {
	return fmt.Sprintf("%s: not initialized", e.Subsystem)
}

// NewNotInitialized builds a NotInitialized error for the named subsystem.
func NewNotInitialized(subsystem string) error {
	return &NotInitialized{Subsystem: subsystem}
}

// Persistence reports a database open or flush failure. A flush failure
// leaves the journal's buffer intact; the next insert retriggers the
// flush.
type Persistence struct {
	Op  string
	Err error
}

func (e *Persistence) Error() string {
	return fmt.Sprintf("persistence: %s: %v", e.Op, e.Err)
}

func (e *Persistence) Unwrap() error { return e.Err }

// NewPersistence wraps err as a Persistence error naming the failing
// operation.
func NewPersistence(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Persistence{Op: op, Err: err}
}

// IsBadRequest reports whether err (or a wrapped cause) is a BadRequest.
func IsBadRequest(err error) bool {
	var b *BadRequest
	return errors.As(err, &b)
}

// IsLocked reports whether err (or a wrapped cause) is a Locked.
func IsLocked(err error) bool {
	var l *Locked
	return errors.As(err, &l)
}
