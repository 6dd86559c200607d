// Package httpapi exposes the turret's operator HTTP surface: event
// history, manual aim and calibration commands, arm/disarm, status, and
// an MJPEG video feed. Routing is chi/v5 with rs/cors in front; all
// business logic stays in the control, journal and perception packages.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"turretcore/control"
	"turretcore/journal"
	"turretcore/perception"
)

// FrameSource supplies the most recently published annotated frame for
// the MJPEG route.
type FrameSource interface {
	LatestFrame() *perception.Frame
}

// Server holds the process-wide components the HTTP surface dispatches
// to.
type Server struct {
	Aim       *control.Aim
	Interlock *control.Interlock
	Journal   *journal.Journal
	Frames    FrameSource
	Log       zerolog.Logger
}

// NewRouter builds the chi router with CORS, request logging and the
// full operator route table.
func NewRouter(s *Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		// Answer preflight OPTIONS with 200 rather than the library's 204.
		OptionsSuccessStatus: http.StatusOK,
	}).Handler)

	r.Get("/health", s.handleHealth)
	r.Get("/data", s.handleGetData)
	r.Post("/data", s.handlePostData)
	r.Post("/ForceSetServoDebug", s.handleForceSetServoDebug)
	r.Post("/ForceSetPoint", s.handleForceSetPoint)
	r.Post("/ToggleLaserForCalibration", s.handleToggleLaserForCalibration)
	r.Post("/enable", s.handleEnable)
	r.Post("/disable", s.handleDisable)
	r.Get("/status", s.handleStatus)
	r.Get("/video", s.handleVideo)
	r.Get("/", s.handleIndex)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}
