package httpapi

import (
	"bytes"
	"fmt"
	"image/jpeg"
	"net/http"
	"time"
)

const mjpegBoundary = "frame"

// streamInterval bounds how often the video route checks for a new
// published frame; it is not a frame-rate guarantee, only a poll
// granularity.
const streamInterval = 50 * time.Millisecond

func (s *Server) handleVideo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", fmt.Sprintf("multipart/x-mixed-replace; boundary=%s", mjpegBoundary))
	w.Header().Set("Cache-Control", "no-cache, private")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeMessage(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx := r.Context()
	ticker := time.NewTicker(streamInterval)
	defer ticker.Stop()

	var lastSent time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		frame := s.Frames.LatestFrame()
		if frame == nil || !frame.Time.After(lastSent) {
			continue
		}
		lastSent = frame.Time

		var buf bytes.Buffer
		if err := jpeg.Encode(&buf, frame.Image, &jpeg.Options{Quality: 85}); err != nil {
			s.Log.Error().Err(err).Msg("jpeg encode failed")
			continue
		}

		if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", mjpegBoundary, buf.Len()); err != nil {
			return
		}
		if _, err := w.Write(buf.Bytes()); err != nil {
			return
		}
		if _, err := w.Write([]byte("\r\n")); err != nil {
			return
		}
		flusher.Flush()
	}
}
