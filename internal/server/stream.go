package server

import (
	"fmt"
	"net/http"
	"time"
)

// StreamHandler serves the annotated camera preview as MJPEG.
type StreamHandler struct {
	preview  func() []byte
	interval time.Duration
}

// NewStreamHandler creates a StreamHandler polling preview at fps frames
// per second.
func NewStreamHandler(preview func() []byte, fps int) *StreamHandler {
	if fps <= 0 {
		fps = 15
	}
	return &StreamHandler{preview: preview, interval: time.Second / time.Duration(fps)}
}

// ServeHTTP streams MJPEG frames until the client goes away. A frame is
// only sent when the preview changed.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var last []byte
	for {
		if jpeg := h.preview(); len(jpeg) > 0 && !sameFrame(jpeg, last) {
			if err := writePart(w, jpeg); err != nil {
				return
			}
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
			last = jpeg
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

func writePart(w http.ResponseWriter, jpeg []byte) error {
	if _, err := fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", len(jpeg)); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	_, err := fmt.Fprint(w, "\r\n")
	return err
}

// sameFrame reports whether a and b are the same encoded frame. Sources
// replace the buffer on every frame, so comparing the backing array is enough.
func sameFrame(a, b []byte) bool {
	return len(a) == len(b) && len(a) > 0 && &a[0] == &b[0]
}
