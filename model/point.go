package model

import "turretcore/turreterr"

// NormalizedPoint is a point in the detector's view, (0,0) top-left,
// (1,1) bottom-right.
type NormalizedPoint struct {
	U, V float64
}

// Validate reports a BadRequest if u or v fall outside [0, 1].
func (p NormalizedPoint) Validate() error {
	if p.U < 0 || p.U > 1 {
		return turreterr.NewBadRequest("pointX out of range [0,1]: %v", p.U)
	}
	if p.V < 0 || p.V > 1 {
		return turreterr.NewBadRequest("pointY out of range [0,1]: %v", p.V)
	}
	return nil
}

// AnglePoint is a commanded (x, y) servo angle pair.
type AnglePoint struct {
	X, Y Angle
}
