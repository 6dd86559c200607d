// Command turretd is the bootstrap binary for the turret control core:
// it wires the GPIO/PWM device layer, the safety-interlocked control
// stack, the perception loop, the event journal and the HTTP surface
// together, then runs until signalled.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	"turretcore/control"
	"turretcore/hal/sysfs"
	"turretcore/httpapi"
	"turretcore/journal"
	"turretcore/model"
	"turretcore/perception"
)

type config struct {
	listenAddr string

	gpioChip     string
	laserOffset  int
	buttonOffset int
	pwmChip      string
	servoXChan   int
	servoYChan   int

	calibrationPath string
	dbPath          string

	cameraIndex    int
	modelPath      string
	scoreThreshold float64
	flipCamera     bool
	protectedCount int
	targetCount    int

	unlockDelay time.Duration
	logFormat   string
}

func parseFlags(args []string) (config, error) {
	fs := flag.NewFlagSet("turretd", flag.ContinueOnError)
	c := config{}
	fs.StringVar(&c.listenAddr, "listen", ":8080", "HTTP listen address")
	fs.StringVar(&c.gpioChip, "gpio-chip", "gpiochip0", "sysfs GPIO chip name")
	fs.IntVar(&c.laserOffset, "laser-offset", 17, "GPIO line offset driving the laser (board wiring assumed active-high)")
	fs.IntVar(&c.buttonOffset, "button-offset", 27, "GPIO line offset reading the deadman button (board wiring assumed active-low)")
	fs.StringVar(&c.pwmChip, "pwm-chip", "pwmchip0", "sysfs PWM chip name")
	fs.IntVar(&c.servoXChan, "servo-x-channel", 0, "PWM channel driving the X-axis servo")
	fs.IntVar(&c.servoYChan, "servo-y-channel", 1, "PWM channel driving the Y-axis servo")
	fs.StringVar(&c.calibrationPath, "calibration-path", "calibration.json", "path to the calibration JSON file")
	fs.StringVar(&c.dbPath, "db-path", "db.sqlite3", "path to the SQLite event journal")
	fs.IntVar(&c.cameraIndex, "camera-index", 0, "camera device index the detector backend reads from")
	fs.StringVar(&c.modelPath, "model-path", "", "path to the on-device detector model")
	fs.Float64Var(&c.scoreThreshold, "score-threshold", perception.ScoreThreshold, "minimum detector confidence score")
	fs.BoolVar(&c.flipCamera, "flip-camera", false, "horizontally flip frames before detection")
	fs.IntVar(&c.protectedCount, "protected-classes", 1, "number of leading detector class indices treated as protected entities")
	fs.IntVar(&c.targetCount, "target-classes", 1, "number of detector class indices following the protected classes treated as targets")
	fs.DurationVar(&c.unlockDelay, "unlock-delay", control.DefaultUnlockDelay, "hysteresis delay before a cleared lock reason is dropped")
	fs.StringVar(&c.logFormat, "log-format", "console", "log output format: console or json")
	return c, fs.Parse(args)
}

func newLogger(format string) zerolog.Logger {
	if format == "json" {
		return zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).With().Timestamp().Logger()
}

func run(c config, log zerolog.Logger) error {
	gpioChip, err := sysfs.OpenChip(c.gpioChip)
	if err != nil {
		return fmt.Errorf("open gpio chip: %w", err)
	}

	laserLine, err := gpioChip.OutputLine(c.laserOffset, "laser")
	if err != nil {
		return fmt.Errorf("open laser line: %w", err)
	}
	buttonLine, err := gpioChip.InputLine(c.buttonOffset, "deadman-button")
	if err != nil {
		return fmt.Errorf("open button line: %w", err)
	}

	pwmChip, err := sysfs.OpenPWMChip(c.pwmChip)
	if err != nil {
		return fmt.Errorf("open pwm chip: %w", err)
	}
	servoXChannel, err := pwmChip.Channel(c.servoXChan)
	if err != nil {
		return fmt.Errorf("open servo x channel: %w", err)
	}
	servoYChannel, err := pwmChip.Channel(c.servoYChan)
	if err != nil {
		return fmt.Errorf("open servo y channel: %w", err)
	}

	cal, err := model.LoadCalibration(c.calibrationPath)
	if err != nil {
		return fmt.Errorf("load calibration: %w", err)
	}

	j, err := journal.Open(c.dbPath, log)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}

	laser := control.NewLaser(laserLine, log)
	servoX, err := control.NewServo("x", servoXChannel, log)
	if err != nil {
		return fmt.Errorf("init servo x: %w", err)
	}
	servoY, err := control.NewServo("y", servoYChannel, log)
	if err != nil {
		return fmt.Errorf("init servo y: %w", err)
	}
	defaultAim := model.AnglePoint{X: cal.Center.X, Y: cal.Center.Y}
	aim := control.NewAim(servoX, servoY, laser, j, cal, defaultAim, log)

	interlock := control.NewInterlock(laser, aim, j, buttonLine, c.unlockDelay, log)
	interlock.Start()

	stopCalWatch, err := watchCalibration(c.calibrationPath, aim, log)
	if err != nil {
		log.Warn().Err(err).Msg("calibration file watch disabled")
	} else {
		defer stopCalWatch()
	}

	camera, err := newCamera(c.cameraIndex, log)
	if err != nil {
		return fmt.Errorf("open camera: %w", err)
	}
	detector, err := newDetector(c.modelPath, log)
	if err != nil {
		return fmt.Errorf("open detector: %w", err)
	}

	loop := perception.NewLoop(camera, detector, interlock, aim, j, perception.Options{
		ClassMap:    model.ClassMap{ProtectedCount: c.protectedCount, TargetCount: c.targetCount},
		ScoreThresh: c.scoreThreshold,
		Flip:        c.flipCamera,
	}, log)

	ctx, cancel := context.WithCancel(context.Background())
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		loop.Run(ctx)
	}()

	srv := &http.Server{
		Addr: c.listenAddr,
		Handler: httpapi.NewRouter(&httpapi.Server{
			Aim:       aim,
			Interlock: interlock,
			Journal:   j,
			Frames:    loop,
			Log:       log,
		}),
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.ListenAndServe()
	}()
	log.Info().Str("addr", c.listenAddr).Msg("turretd listening")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	select {
	case s := <-sig:
		log.Warn().Str("signal", s.String()).Msg("shutdown signal received")
	case err := <-serveErr:
		if err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("http server failed")
		}
	}

	if err := interlock.EmergencyInitiate(control.ReasonMain); err != nil {
		log.Error().Err(err).Msg("shutdown emergency initiate failed")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown failed")
	}

	cancel()
	<-loopDone
	if err := camera.Close(); err != nil {
		log.Error().Err(err).Msg("camera close failed")
	}

	if err := interlock.Dispose(); err != nil {
		log.Error().Err(err).Msg("interlock dispose failed")
	}
	if err := laser.Close(); err != nil {
		log.Error().Err(err).Msg("laser close failed")
	}
	if err := servoX.Close(); err != nil {
		log.Error().Err(err).Msg("servo x close failed")
	}
	if err := servoY.Close(); err != nil {
		log.Error().Err(err).Msg("servo y close failed")
	}
	if err := gpioChip.Close(); err != nil {
		log.Error().Err(err).Msg("gpio chip close failed")
	}
	if err := pwmChip.Close(); err != nil {
		log.Error().Err(err).Msg("pwm chip close failed")
	}
	if err := j.Close(); err != nil {
		log.Error().Err(err).Msg("journal close failed")
	}
	return nil
}

// watchCalibration uses fsnotify to reload the calibration file on
// write, atomically swapping it into the Aim Coordinator so readers
// never observe a torn table.
func watchCalibration(path string, aim *control.Aim, log zerolog.Logger) (func(), error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(path); err != nil {
		w.Close()
		return nil, err
	}
	done := make(chan struct{})
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cal, err := model.LoadCalibration(path)
				if err != nil {
					log.Error().Err(err).Msg("calibration reload failed")
					continue
				}
				aim.UpdateCalibration(cal)
				log.Info().Msg("calibration table reloaded")
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Error().Err(err).Msg("calibration watcher error")
			case <-done:
				return
			}
		}
	}()
	return func() {
		close(done)
		w.Close()
	}, nil
}

func main() {
	c, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	log := newLogger(c.logFormat)
	if err := run(c, log); err != nil {
		log.Fatal().Err(err).Msg("turretd exiting")
	}
}
