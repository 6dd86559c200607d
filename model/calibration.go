package model

import (
	"encoding/json"
	"fmt"
	"os"

	"turretcore/turreterr"
)

// AxisRange is a pair of angles bounding one axis of the calibration
// table, e.g. (xLeft, xRight) or (yBottom, yTop).
type AxisRange struct {
	Low, High Angle
}

// CalibrationTable maps normalized detector coordinates to servo angles
// through a piecewise-linear map anchored on a center point, per the
// calibration mapping in the Aim Coordinator design.
type CalibrationTable struct {
	XRange AxisRange
	YRange AxisRange
	Center AnglePoint
}

// calibrationFile is the on-disk JSON shape: each key holds a
// two-element array of degrees.
type calibrationFile struct {
	CalibrationX      [2]float64 `json:"calibrationX"`
	CalibrationY      [2]float64 `json:"calibrationY"`
	CalibrationCenter [2]float64 `json:"calibrationCenter"`
}

// DefaultCalibration is written on first run, matching the contract in
// the persisted-state section of the external interfaces design.
func DefaultCalibration() CalibrationTable {
	return CalibrationTable{
		XRange: AxisRange{Low: 23, High: 55},
		YRange: AxisRange{Low: 10, High: 65},
		Center: AnglePoint{X: 36, Y: 38},
	}
}

// Validate checks the calibration table invariants: the two ends of each
// axis must differ, and the center must lie between them.
func (c CalibrationTable) Validate() error {
	if c.XRange.Low == c.XRange.High {
		return fmt.Errorf("calibration: xLeft == xRight (%v)", c.XRange.Low)
	}
	if c.YRange.Low == c.YRange.High {
		return fmt.Errorf("calibration: yBottom == yTop (%v)", c.YRange.Low)
	}
	if !between(c.Center.X, c.XRange.Low, c.XRange.High) {
		return fmt.Errorf("calibration: xCenter %v not between %v and %v", c.Center.X, c.XRange.Low, c.XRange.High)
	}
	if !between(c.Center.Y, c.YRange.Low, c.YRange.High) {
		return fmt.Errorf("calibration: yCenter %v not between %v and %v", c.Center.Y, c.YRange.Low, c.YRange.High)
	}
	return nil
}

func between(v, a, b Angle) bool {
	if a <= b {
		return v >= a && v <= b
	}
	return v >= b && v <= a
}

// LoadCalibration reads the calibration table from path. If the file is
// missing or malformed, a default table is written to path and returned,
// matching the "loaded from JSON; if missing or malformed, a default is
// written" contract.
func LoadCalibration(path string) (CalibrationTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return writeDefaultCalibration(path)
	}
	var f calibrationFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return writeDefaultCalibration(path)
	}
	table := CalibrationTable{
		XRange: AxisRange{Low: Angle(f.CalibrationX[0]), High: Angle(f.CalibrationX[1])},
		YRange: AxisRange{Low: Angle(f.CalibrationY[0]), High: Angle(f.CalibrationY[1])},
		Center: AnglePoint{X: Angle(f.CalibrationCenter[0]), Y: Angle(f.CalibrationCenter[1])},
	}
	if err := table.Validate(); err != nil {
		return writeDefaultCalibration(path)
	}
	return table, nil
}

func writeDefaultCalibration(path string) (CalibrationTable, error) {
	table := DefaultCalibration()
	if err := SaveCalibration(path, table); err != nil {
		return table, turreterr.NewPersistence("write default calibration", err)
	}
	return table, nil
}

// SaveCalibration atomically writes table to path: it writes to a
// temporary file in the same directory and renames it into place, so
// concurrent readers never observe a torn file.
func SaveCalibration(path string, table CalibrationTable) error {
	f := calibrationFile{
		CalibrationX:      [2]float64{float64(table.XRange.Low), float64(table.XRange.High)},
		CalibrationY:      [2]float64{float64(table.YRange.Low), float64(table.YRange.High)},
		CalibrationCenter: [2]float64{float64(table.Center.X), float64(table.Center.Y)},
	}
	raw, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Map computes the servo angle pair for a normalized point, applying the
// Y-axis flip and the two-segment piecewise-linear map through Center on
// each axis.
func (c CalibrationTable) Map(p NormalizedPoint) AnglePoint {
	vPrime := 1 - p.V
	return AnglePoint{
		X: segment(p.U, c.XRange.Low, c.Center.X, c.XRange.High),
		Y: segment(vPrime, c.YRange.Low, c.Center.Y, c.YRange.High),
	}
}

// segment applies the two-segment piecewise-linear map: t in [0, 0.5)
// interpolates from low to center, t in [0.5, 1] interpolates from
// center to high.
func segment(t float64, low, center, high Angle) Angle {
	if t < 0.5 {
		return low + (center-low)*Angle(t/0.5)
	}
	return center + (high-center)*Angle((t-0.5)/0.5)
}
