package perception

import (
	"context"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"turretcore/control"
	"turretcore/model"
)

// DefaultShootSustain is the minimum interval between logged
// ELIMINATION events and between disarm triggers on target loss.
const DefaultShootSustain = time.Second

// DefaultModelSize is the square model input resolution frames are
// resized to before detection.
const DefaultModelSize = 512

// Options configures a Loop.
type Options struct {
	ClassMap      model.ClassMap
	ScoreThresh   float64
	ModelSize     int
	Flip          bool
	ShootSustain  time.Duration
	FramePollRest time.Duration
}

// Loop is the Perception Loop worker.
type Loop struct {
	log       zerolog.Logger
	camera    Camera
	detector  Detector
	interlock *control.Interlock
	aim       *control.Aim
	journal   control.EventSink

	classMap     model.ClassMap
	threshold    float64
	modelSize    int
	flip         bool
	shootSustain time.Duration
	pollRest     time.Duration

	needsResolving bool

	frameMu sync.Mutex
	frame   *Frame
}

// Frame is one published, annotated frame available for MJPEG
// streaming.
type Frame struct {
	Image *image.RGBA
	Time  time.Time
}

// NewLoop constructs a Perception Loop. Zero-valued Options fields fall
// back to the package defaults.
func NewLoop(camera Camera, detector Detector, interlock *control.Interlock, aim *control.Aim, journal control.EventSink, opts Options, log zerolog.Logger) *Loop {
	if opts.ScoreThresh <= 0 {
		opts.ScoreThresh = ScoreThreshold
	}
	if opts.ModelSize <= 0 {
		opts.ModelSize = DefaultModelSize
	}
	if opts.ShootSustain <= 0 {
		opts.ShootSustain = DefaultShootSustain
	}
	if opts.FramePollRest <= 0 {
		opts.FramePollRest = 20 * time.Millisecond
	}
	return &Loop{
		log:          log.With().Str("component", "perception").Logger(),
		camera:       camera,
		detector:     detector,
		interlock:    interlock,
		aim:          aim,
		journal:      journal,
		classMap:     opts.ClassMap,
		threshold:    opts.ScoreThresh,
		modelSize:    opts.ModelSize,
		flip:         opts.Flip,
		shootSustain: opts.ShootSustain,
		pollRest:     opts.FramePollRest,
	}
}

// Run drives the loop until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		src, err := l.camera.ReadFrame()
		if err != nil {
			l.log.Error().Err(err).Msg("frame read failed")
			sleepOrDone(ctx, l.pollRest)
			continue
		}
		if src == nil {
			sleepOrDone(ctx, l.pollRest)
			continue
		}

		l.iterate(src)
	}
}

func (l *Loop) iterate(src image.Image) {
	square := preprocess(src, l.flip, l.modelSize)
	detections, err := l.detector.Detect(square)
	if err != nil {
		l.log.Error().Err(err).Msg("detector failed")
		return
	}
	for i := range detections {
		detections[i].Category = l.classMap.Categorize(detections[i].ClassIndex)
	}

	outcome := classify(detections, l.threshold, l.modelSize)
	l.act(outcome, detections)
	l.publish(src, detections)
}

func (l *Loop) act(outcome frameOutcome, detections []model.Detection) {
	switch {
	case outcome.emergency:
		if !l.needsResolving {
			if l.journal != nil {
				_ = l.journal.InsertNow(model.LockReasonAdded, control.ReasonNeuralNetworkHandler, "", "protected entity detected")
			}
			l.needsResolving = true
		}
		// Initiate on every emergency frame, not just the first: the
		// activity bump is what aborts a release-delay task started by a
		// Recover from a frame where the entity briefly vanished.
		if err := l.interlock.EmergencyInitiate(control.ReasonNeuralNetworkHandler); err != nil {
			l.log.Error().Err(err).Msg("emergency initiate failed")
		}
	case l.aim.CalibrationActive():
		// Automatic aiming is suppressed while calibrating.
	case l.needsResolving:
		if l.journal != nil {
			_ = l.journal.InsertNow(model.LockReasonRemoved, control.ReasonNeuralNetworkHandler, "", "protected entity no longer visible")
		}
		l.interlock.Recover(control.ReasonNeuralNetworkHandler)
		l.needsResolving = false
	case !l.interlock.Locked() && outcome.hasAim:
		if time.Since(l.aim.GetLastShoot()) > l.shootSustain {
			for _, d := range detections {
				if d.Category == model.Target {
					if l.journal != nil {
						_ = l.journal.InsertNow(model.Elimination, control.ReasonNeuralNetworkHandler, d.ClassName, "target engaged")
					}
					break
				}
			}
		}
		if err := l.aim.ShootAt(outcome.aim); err != nil {
			l.log.Error().Err(err).Msg("shoot_at failed")
		}
	case !l.interlock.Locked() && !outcome.hasAim && time.Since(l.aim.GetLastShoot()) > l.shootSustain && l.aim.LaserOn():
		l.aim.Disarm()
	}
}

// publish renders an annotated frame and stores it in the latest-frame
// slot for MJPEG consumers.
func (l *Loop) publish(src image.Image, detections []model.Detection) {
	annotated := annotate(src, detections)
	l.frameMu.Lock()
	l.frame = &Frame{Image: annotated, Time: time.Now()}
	l.frameMu.Unlock()
}

// LatestFrame returns the most recently published annotated frame, or
// nil if none has been published yet.
func (l *Loop) LatestFrame() *Frame {
	l.frameMu.Lock()
	defer l.frameMu.Unlock()
	return l.frame
}

func sleepOrDone(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// annotate draws each detection's box as a one-pixel-wide outline on a
// copy of src: red for protected, green for every other detection.
func annotate(src image.Image, detections []model.Detection) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(x, y, src.At(x, y))
		}
	}
	for _, d := range detections {
		c := color.RGBA{R: 0, G: 255, B: 0, A: 255}
		if d.Category == model.Protected {
			c = color.RGBA{R: 255, G: 0, B: 0, A: 255}
		}
		drawBox(dst, d.Box, c)
	}
	return dst
}

func drawBox(dst *image.RGBA, box model.Box, c color.RGBA) {
	x0, y0, x1, y1 := int(box.X0), int(box.Y0), int(box.X1), int(box.Y1)
	b := dst.Bounds()
	for x := x0; x <= x1; x++ {
		setClamped(dst, b, x, y0, c)
		setClamped(dst, b, x, y1, c)
	}
	for y := y0; y <= y1; y++ {
		setClamped(dst, b, x0, y, c)
		setClamped(dst, b, x1, y, c)
	}
}

func setClamped(dst *image.RGBA, b image.Rectangle, x, y int, c color.RGBA) {
	if x < b.Min.X || x >= b.Max.X || y < b.Min.Y || y >= b.Max.Y {
		return
	}
	dst.Set(x, y, c)
}
