// Package perception implements the perception loop: the worker that
// owns the camera and detector, classifies each frame, and drives the
// interlock manager and aim coordinator. Camera and Detector are
// interfaces; the concrete capture and inference backends are wired in
// by cmd/turretd.
package perception

import "image"

// Camera produces frames from a physical or simulated source. It is the
// seam at which a concrete capture backend (e.g. V4L2, a test fixture
// directory of JPEGs) is wired in by cmd/turretd; Perception itself is
// backend-agnostic.
type Camera interface {
	// ReadFrame returns the next available frame, or (nil, nil) if none
	// is currently available (the loop simply continues).
	ReadFrame() (image.Image, error)
	Close() error
}
