package model

import "time"

// EventKind enumerates the safety-relevant transitions the journal
// records. Values are persisted as INTEGER in the Events table, so the
// order below must never change.
type EventKind int

const (
	EmergencyLock EventKind = iota
	LockReasonAdded
	LockReasonRemoved
	EmergencyUnlock
	CalibrationStart
	CalibrationEnd
	Elimination
)

// String renders the kind the way it is reported over the HTTP surface
// and in logs.
func (k EventKind) String() string {
	switch k {
	case EmergencyLock:
		return "EMERGENCY_LOCK"
	case LockReasonAdded:
		return "LOCK_REASON_ADDED"
	case LockReasonRemoved:
		return "LOCK_REASON_REMOVED"
	case EmergencyUnlock:
		return "EMERGENCY_UNLOCK"
	case CalibrationStart:
		return "CALIBRATION_START"
	case CalibrationEnd:
		return "CALIBRATION_END"
	case Elimination:
		return "ELIMINATION"
	default:
		return "UNKNOWN"
	}
}

// EventRecord describes one journal entry. Source identifies the caller
// that produced the event (e.g. "RESTApi", "NeuralNetworkHandler",
// "DeadLocker") but is not persisted: the Events table has no SOURCE
// column, only TIME, EVENT, CLASS and DESCRIPTION, so a record read back
// from storage always has Source empty. Class carries the detector's
// class label for ELIMINATION events and is empty otherwise.
type EventRecord struct {
	Time        time.Time
	Kind        EventKind
	Source      string
	Class       string
	Description string
}
