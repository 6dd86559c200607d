package main

import (
	"image"

	"github.com/rs/zerolog"
)

// idleCamera is a placeholder capture backend that never produces a
// frame. A real deployment replaces this with a V4L2 or
// platform-specific backend implementing perception.Camera.
type idleCamera struct {
	index int
	log   zerolog.Logger
}

func newCamera(index int, log zerolog.Logger) (*idleCamera, error) {
	log.Warn().Int("index", index).Msg("no camera backend wired; perception will read no frames")
	return &idleCamera{index: index, log: log}, nil
}

func (c *idleCamera) ReadFrame() (image.Image, error) { return nil, nil }

func (c *idleCamera) Close() error { return nil }
