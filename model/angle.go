// Package model holds the value types shared by every subsystem of the
// turret control core: angles, normalized points, the calibration table,
// detections and event records. None of these types own a device handle;
// they are plain data, the way periph's conn/physic package holds units
// without owning hardware.
package model

// Angle is a servo angle in degrees, always kept within [0, 180].
type Angle float64

// MinAngle and MaxAngle bound every Angle value.
const (
	MinAngle Angle = 0
	MaxAngle Angle = 180
)

// Clamp returns a within [MinAngle, MaxAngle].
func (a Angle) Clamp() Angle {
	if a < MinAngle {
		return MinAngle
	}
	if a > MaxAngle {
		return MaxAngle
	}
	return a
}
