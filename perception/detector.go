package perception

import (
	"image"

	"turretcore/model"
)

// Detector scores proposals on a preprocessed, square model-input frame
// and returns every proposal at or above its own internal confidence
// floor; thresholding against ScoreThreshold happens in the loop so it
// is visible and testable independent of the concrete backend. Like
// Camera, concrete detector backends (an ONNX Runtime or TFLite
// binding) are wired in by cmd/turretd.
type Detector interface {
	Detect(frame image.Image) ([]model.Detection, error)
}
