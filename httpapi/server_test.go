package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"turretcore/control"
	"turretcore/device"
	"turretcore/device/devicetest"
	"turretcore/journal"
	"turretcore/model"
	"turretcore/perception"
)

type fakeFrameSource struct {
	frame *perception.Frame
}

func (f *fakeFrameSource) LatestFrame() *perception.Frame { return f.frame }

func newTestServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	laserLine := devicetest.NewLine()
	laser := control.NewLaser(laserLine, zerolog.Nop())
	chX, chY := devicetest.NewPWMChannel(), devicetest.NewPWMChannel()
	sx, _ := control.NewServo("x", chX, zerolog.Nop())
	sy, _ := control.NewServo("y", chY, zerolog.Nop())

	path := filepath.Join(t.TempDir(), "db.sqlite3")
	j, err := journal.Open(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	t.Cleanup(func() { j.Close() })

	aim := control.NewAim(sx, sy, laser, j, model.DefaultCalibration(), model.AnglePoint{X: 90, Y: 90}, zerolog.Nop())

	button := devicetest.NewLine()
	button.Poke(device.High)
	interlock := control.NewInterlock(laser, aim, j, button, time.Hour, zerolog.Nop())

	s := &Server{
		Aim:       aim,
		Interlock: interlock,
		Journal:   j,
		Frames:    &fakeFrameSource{},
		Log:       zerolog.Nop(),
	}
	return s, NewRouter(s)
}

func TestHandleStatusArmed(t *testing.T) {
	_, router := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "Armed" {
		t.Fatalf("status = %q, want Armed", body["status"])
	}
}

func TestHandleDisableThenStatusLocked(t *testing.T) {
	_, router := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/disable", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("disable status = %d body=%s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/status", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] == "Armed" {
		t.Fatal("expected locked status after /disable")
	}
}

func TestHandleEnableAlreadyUnlocked(t *testing.T) {
	_, router := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/enable", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["message"] != "Already unlocked by REST" {
		t.Fatalf("message = %q", body["message"])
	}
}

func TestHandleForceSetPointValidatesRange(t *testing.T) {
	_, router := newTestServer(t)
	body, _ := json.Marshal(map[string]float64{"pointX": 1.5, "pointY": 0.5})
	req := httptest.NewRequest(http.MethodPost, "/ForceSetPoint", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleForceSetPointMissingParam(t *testing.T) {
	_, router := newTestServer(t)
	body, _ := json.Marshal(map[string]float64{"pointX": 0.5})
	req := httptest.NewRequest(http.MethodPost, "/ForceSetPoint", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleForceSetPointOK(t *testing.T) {
	_, router := newTestServer(t)
	body, _ := json.Marshal(map[string]float64{"pointX": 0.5, "pointY": 0.5})
	req := httptest.NewRequest(http.MethodPost, "/ForceSetPoint", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestHandleForceSetServoDebugSetsDefault(t *testing.T) {
	_, router := newTestServer(t)
	body, _ := json.Marshal(map[string]float64{"angleX": 45, "angleY": 60})
	req := httptest.NewRequest(http.MethodPost, "/ForceSetServoDebug", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	req = httptest.NewRequest(http.MethodPost, "/ForceSetServoDebug", bytes.NewReader([]byte(`{"angleX": 45}`)))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing angleY: status = %d, want 400", rec.Code)
	}
}

func TestHandleDataPostThenGet(t *testing.T) {
	_, router := newTestServer(t)
	records := []eventJSON{{Time: 1700000000, Event: int(model.Elimination), ClassName: "target", Description: "hit"}}
	body, _ := json.Marshal(records)
	req := httptest.NewRequest(http.MethodPost, "/data", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /data status = %d body=%s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/data", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	var got []eventJSON
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].Description != "hit" {
		t.Fatalf("got = %+v", got)
	}
}

func TestHandleGetDataBadQuery(t *testing.T) {
	_, router := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/data?start=notanumber", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleIndexSubstitutesBaseURL(t *testing.T) {
	_, router := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Host = "turret.local:8080"
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if bytes.Contains(rec.Body.Bytes(), []byte("REPLACEMEPLEASE")) {
		t.Fatal("expected BASE_URL placeholder to be substituted")
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("turret.local:8080")) {
		t.Fatal("expected Host header reflected into BASE_URL")
	}
}
