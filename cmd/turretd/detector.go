package main

import (
	"image"

	"github.com/rs/zerolog"

	"turretcore/model"
)

// idleDetector is a placeholder inference backend that never reports a
// detection. A real deployment replaces this with a binding to whatever
// inference runtime hosts the on-device model at modelPath,
// implementing perception.Detector.
type idleDetector struct {
	modelPath string
	log       zerolog.Logger
}

func newDetector(modelPath string, log zerolog.Logger) (*idleDetector, error) {
	if modelPath == "" {
		log.Warn().Msg("no -model-path set; perception will never raise an aim or emergency")
	}
	return &idleDetector{modelPath: modelPath, log: log}, nil
}

func (d *idleDetector) Detect(image.Image) ([]model.Detection, error) {
	return nil, nil
}
