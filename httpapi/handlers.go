package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"turretcore/control"
	"turretcore/model"
)

func (s *Server) handleGetData(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	startStr, hasStart := q["start"]
	endStr, hasEnd := q["end"]

	var (
		start, end int64
		err        error
	)
	if hasStart {
		start, err = strconv.ParseInt(startStr[0], 10, 64)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "start must be an integer")
			return
		}
	}
	if hasEnd {
		end, err = strconv.ParseInt(endStr[0], 10, 64)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "end must be an integer")
			return
		}
	}

	var recs []model.EventRecord
	switch {
	case hasStart && hasEnd:
		recs, err = s.Journal.ReadRange(time.Unix(start, 0), time.Unix(end, 0))
	case hasStart:
		recs, err = s.Journal.ReadAfter(time.Unix(start, 0))
	case hasEnd:
		recs, err = s.Journal.ReadBefore(time.Unix(end, 0))
	default:
		recs, err = s.Journal.ReadAll()
	}
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEventJSON(recs))
}

func (s *Server) handlePostData(w http.ResponseWriter, r *http.Request) {
	var body []eventJSON
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeMessage(w, http.StatusBadRequest, "malformed event array")
		return
	}
	for _, e := range body {
		rec := model.EventRecord{
			Time:        time.Unix(e.Time, 0),
			Kind:        model.EventKind(e.Event),
			Class:       e.ClassName,
			Description: e.Description,
		}
		if err := s.Journal.Insert(rec); err != nil {
			writeErr(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "OK",
		"message": fmt.Sprintf("Inserted %d records.", len(body)),
	})
}

type servoDebugRequest struct {
	AngleX *float64 `json:"angleX"`
	AngleY *float64 `json:"angleY"`
}

func (s *Server) handleForceSetServoDebug(w http.ResponseWriter, r *http.Request) {
	var req servoDebugRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.AngleX == nil || req.AngleY == nil {
		writeMessage(w, http.StatusBadRequest, "angleX and angleY are required")
		return
	}
	err := s.Aim.SetDefaultState(model.AnglePoint{X: model.Angle(*req.AngleX), Y: model.Angle(*req.AngleY)})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Servo angles set")
}

type pointRequest struct {
	PointX *float64 `json:"pointX"`
	PointY *float64 `json:"pointY"`
}

func (s *Server) handleForceSetPoint(w http.ResponseWriter, r *http.Request) {
	var req pointRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PointX == nil || req.PointY == nil {
		writeMessage(w, http.StatusBadRequest, "pointX and pointY are required")
		return
	}
	p := model.NormalizedPoint{U: *req.PointX, V: *req.PointY}
	if err := p.Validate(); err != nil {
		writeErr(w, err)
		return
	}
	if err := s.Aim.ShootAt(p); err != nil {
		writeErr(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Point set")
}

func (s *Server) handleToggleLaserForCalibration(w http.ResponseWriter, r *http.Request) {
	if s.Aim.CalibrationActive() {
		s.Aim.DisableCalibration()
		writeMessage(w, http.StatusOK, "Calibration mode disabled")
		return
	}
	s.Aim.EnableCalibration()
	writeMessage(w, http.StatusOK, "Calibration mode enabled")
}

func (s *Server) handleEnable(w http.ResponseWriter, r *http.Request) {
	if !s.Interlock.HasReason(control.ReasonRESTApi) {
		writeMessage(w, http.StatusOK, "Already unlocked by REST")
		return
	}
	s.Interlock.Recover(control.ReasonRESTApi)
	if s.Journal != nil {
		_ = s.Journal.InsertNow(model.LockReasonRemoved, control.ReasonRESTApi, "", "operator re-armed via REST")
	}
	writeMessage(w, http.StatusOK, "Recovering from REST lock")
}

func (s *Server) handleDisable(w http.ResponseWriter, r *http.Request) {
	if !s.Interlock.HasReason(control.ReasonRESTApi) {
		if s.Journal != nil {
			_ = s.Journal.InsertNow(model.LockReasonAdded, control.ReasonRESTApi, "", "operator disarm via REST")
		}
	}
	if err := s.Interlock.EmergencyInitiate(control.ReasonRESTApi); err != nil {
		writeErr(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "Disarmed via REST")
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var status string
	switch {
	case s.Interlock.Locked():
		status = fmt.Sprintf("Locked due to an emergency (Reasons: %s)", strings.Join(s.Interlock.Reasons(), ", "))
	case s.Aim.CalibrationActive():
		status = "Calibration (laser forced on, automatic aiming suppressed)"
	default:
		status = "Armed"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	baseURL := fmt.Sprintf("%s://%s", scheme, r.Host)
	page := strings.Replace(indexHTML, "REPLACEMEPLEASE", baseURL, 1)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(page))
}
