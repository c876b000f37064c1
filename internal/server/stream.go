package server

import (
	"net/http"
	"time"

	"gocv.io/x/gocv"
)

// handleStream serves the processed video as an MJPEG multipart stream,
// processing one frame per tick with the active pipeline and republishing
// its metrics.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")

	interval := time.Second / time.Duration(s.capture.FPS())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if !s.writeFrame(w) {
				return
			}
			flusher.Flush()
		}
	}
}

// writeFrame processes and writes a single multipart JPEG part. Returns
// false when the client is gone or no frame could be produced yet.
func (s *Server) writeFrame(w http.ResponseWriter) bool {
	frame, ok := s.capture.Frame()
	if !ok {
		frame.Close()
		return true
	}
	defer frame.Close()

	cfg := s.ActiveConfig()
	processed, metrics := s.capture.ProcessFrame(frame, cfg)
	defer processed.Close()
	s.capture.PublishMetrics(cfg.Name, metrics)

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, processed)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to encode frame")
		return true
	}
	defer buf.Close()

	if _, err := w.Write([]byte("--frame\r\nContent-Type: image/jpeg\r\n\r\n")); err != nil {
		return false
	}
	if _, err := w.Write(buf.GetBytes()); err != nil {
		return false
	}
	if _, err := w.Write([]byte("\r\n")); err != nil {
		return false
	}
	return true
}
