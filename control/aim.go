package control

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"turretcore/model"
	"turretcore/turreterr"
)

// EventSink is the subset of the Event Journal the Aim Coordinator needs
// to record calibration transitions, kept as a narrow interface so tests
// can supply a fake without importing the journal package.
type EventSink interface {
	InsertNow(kind model.EventKind, source, class, description string) error
}

// Aim is the Aim Coordinator: a single, process-wide instance holding
// both Servo Controllers, the calibration table, the default aim point
// and the calibration-mode flag.
type Aim struct {
	log     zerolog.Logger
	servoX  *Servo
	servoY  *Servo
	laser   *Laser
	journal EventSink

	calibration atomic.Pointer[model.CalibrationTable]

	mu                sync.Mutex
	defaultAim        model.AnglePoint
	calibrationActive bool
	locked            bool
	lastShoot         time.Time
}

// NewAim constructs the Aim Coordinator. defaultAim is applied
// immediately as the initial commanded point.
func NewAim(servoX, servoY *Servo, laser *Laser, journal EventSink, calibration model.CalibrationTable, defaultAim model.AnglePoint, log zerolog.Logger) *Aim {
	a := &Aim{
		log:        log.With().Str("component", "aim").Logger(),
		servoX:     servoX,
		servoY:     servoY,
		laser:      laser,
		journal:    journal,
		defaultAim: defaultAim,
	}
	a.calibration.Store(&calibration)
	_ = a.applyAnglePoint(defaultAim)
	return a
}

// Calibration returns the currently active calibration table. Safe to
// call concurrently with UpdateCalibration; readers never observe a
// torn table.
func (a *Aim) Calibration() model.CalibrationTable {
	return *a.calibration.Load()
}

// UpdateCalibration atomically swaps in a new calibration table, e.g.
// after an operator edits the calibration file on disk.
func (a *Aim) UpdateCalibration(table model.CalibrationTable) {
	a.calibration.Store(&table)
}

func (a *Aim) applyAnglePoint(p model.AnglePoint) error {
	errX := a.servoX.SetAngle(p.X)
	errY := a.servoY.SetAngle(p.Y)
	if errX != nil {
		return errX
	}
	return errY
}

// SetXAngle applies a to the X servo and updates the default aim's X
// component. Returns "rejected" without error while locked; this
// operation is fire-and-forget and never fails the caller.
func (a *Aim) SetXAngle(x model.Angle) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.locked {
		return "rejected"
	}
	_ = a.servoX.SetAngle(x)
	a.defaultAim.X = x.Clamp()
	return "ok"
}

// SetYAngle applies a to the Y servo and updates the default aim's Y
// component.
func (a *Aim) SetYAngle(y model.Angle) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.locked {
		return "rejected"
	}
	_ = a.servoY.SetAngle(y)
	a.defaultAim.Y = y.Clamp()
	return "ok"
}

// SetAnglePoint applies both axes simultaneously.
func (a *Aim) SetAnglePoint(p model.AnglePoint) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.locked {
		return "", turreterr.NewLocked(nil)
	}
	if err := a.applyAnglePoint(p); err != nil {
		return "", err
	}
	return "Servo angles set", nil
}

// SetPoint maps a normalized detector point through the calibration
// table and commands the resulting angles.
func (a *Aim) SetPoint(p model.NormalizedPoint) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.locked {
		return "", turreterr.NewLocked(nil)
	}
	angles := a.Calibration().Map(p)
	if err := a.applyAnglePoint(angles); err != nil {
		return "", err
	}
	return "Point set", nil
}

// ShootAt enables the laser if needed, commands the point, and updates
// the last-shoot timestamp used by the perception loop's idle-disarm
// logic.
func (a *Aim) ShootAt(p model.NormalizedPoint) error {
	if err := p.Validate(); err != nil {
		return err
	}
	a.mu.Lock()
	if a.locked {
		a.mu.Unlock()
		return turreterr.NewLocked(nil)
	}
	angles := a.Calibration().Map(p)
	a.mu.Unlock()

	if _, err := a.laser.Enable(); err != nil && !turreterr.IsBadRequest(err) {
		return err
	}

	a.mu.Lock()
	err := a.applyAnglePoint(angles)
	if err == nil {
		a.lastShoot = time.Now()
	}
	a.mu.Unlock()
	return err
}

// Disarm disables the laser and moves to the default aim point.
func (a *Aim) Disarm() {
	if _, err := a.laser.Disable(); err != nil && !turreterr.IsBadRequest(err) {
		a.log.Error().Err(err).Msg("disarm: laser disable failed")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	_ = a.applyAnglePoint(a.defaultAim)
}

// EnableCalibration turns on calibration mode: the laser is forced on
// and automatic aiming from perception is suppressed until
// DisableCalibration is called. Emits CALIBRATION_START only on the
// false->true transition.
func (a *Aim) EnableCalibration() {
	a.mu.Lock()
	already := a.calibrationActive
	a.calibrationActive = true
	a.mu.Unlock()
	if already {
		return
	}
	if _, err := a.laser.Enable(); err != nil && !turreterr.IsBadRequest(err) {
		a.log.Error().Err(err).Msg("enable calibration: laser enable failed")
	}
	if a.journal != nil {
		_ = a.journal.InsertNow(model.CalibrationStart, "AimCoordinator", "", "Calibration mode enabled")
	}
}

// DisableCalibration turns off calibration mode and ensures the laser is
// off. Emits CALIBRATION_END only on the true->false transition.
func (a *Aim) DisableCalibration() {
	a.mu.Lock()
	was := a.calibrationActive
	a.calibrationActive = false
	a.mu.Unlock()
	if !was {
		return
	}
	if _, err := a.laser.Disable(); err != nil && !turreterr.IsBadRequest(err) {
		a.log.Error().Err(err).Msg("disable calibration: laser disable failed")
	}
	if a.journal != nil {
		_ = a.journal.InsertNow(model.CalibrationEnd, "AimCoordinator", "", "Calibration mode disabled")
	}
}

// CalibrationActive reports whether calibration mode is currently on.
func (a *Aim) CalibrationActive() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calibrationActive
}

// SetDefaultState records p as the default aim and applies it
// immediately.
func (a *Aim) SetDefaultState(p model.AnglePoint) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.locked {
		return turreterr.NewLocked(nil)
	}
	a.defaultAim = model.AnglePoint{X: p.X.Clamp(), Y: p.Y.Clamp()}
	return a.applyAnglePoint(a.defaultAim)
}

// EmergencyDisableAndLock cascades the lock: calibration mode is turned
// off, both servos are locked, the laser is locked, and the coordinator
// itself is marked locked.
func (a *Aim) EmergencyDisableAndLock() error {
	a.DisableCalibration()

	errX := a.servoX.EmergencyDisableAndLock()
	errY := a.servoY.EmergencyDisableAndLock()
	errL := a.laser.EmergencyDisableAndLock()

	a.mu.Lock()
	a.locked = true
	a.mu.Unlock()

	for _, err := range []error{errX, errY, errL} {
		if err != nil {
			return err
		}
	}
	return nil
}

// Unlock clears the servo locks and the coordinator's own lock flag. It
// does not touch the laser; the Interlock Manager unlocks the Laser
// Controller separately, per its documented fan-out order.
func (a *Aim) Unlock() {
	a.servoX.Unlock()
	a.servoY.Unlock()
	a.mu.Lock()
	a.locked = false
	a.mu.Unlock()
}

// RestoreLastState reapplies the default aim point, called after the
// interlock releases.
func (a *Aim) RestoreLastState() {
	a.mu.Lock()
	defer a.mu.Unlock()
	_ = a.applyAnglePoint(a.defaultAim)
}

// GetLastShoot returns the timestamp of the last successful ShootAt, for
// the perception loop's shoot-sustain and idle-disarm logic.
func (a *Aim) GetLastShoot() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastShoot
}

// LaserOn reports whether the laser is currently driven on, independent
// of the lock flag, for the perception loop's idle-disarm decision.
func (a *Aim) LaserOn() bool {
	state, _ := a.laser.Status()
	return state == LaserEnabled
}

// Locked reports whether the coordinator is currently emergency-locked.
func (a *Aim) Locked() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.locked
}
