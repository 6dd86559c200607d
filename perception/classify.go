package perception

import "turretcore/model"

// ScoreThreshold is the default minimum detector confidence a proposal
// must meet to survive into frameOutcome.
const ScoreThreshold = 0.40

// frameOutcome is the result of scanning one frame's detections: either
// an emergency (a protected entity was seen), an aim point (a shoot
// candidate), or neither.
type frameOutcome struct {
	emergency bool
	hasAim    bool
	aim       model.NormalizedPoint
}

// classify scans proposals, skipping any that score below threshold,
// keeping the first protected detection (short-circuiting further
// scanning) or the last target detection otherwise. modelSize is the square model input
// side W used to normalize the aim point.
func classify(detections []model.Detection, threshold float64, modelSize int) frameOutcome {
	var out frameOutcome
	for _, d := range detections {
		if d.Score < threshold {
			continue
		}
		switch d.Category {
		case model.Protected:
			return frameOutcome{emergency: true}
		case model.Target:
			out.hasAim = true
			out.aim = model.NormalizedPoint{
				U: d.CenterX / float64(modelSize),
				V: d.CenterY / float64(modelSize),
			}
		}
	}
	return out
}
