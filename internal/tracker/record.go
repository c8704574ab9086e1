package tracker

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/ayusman/veloma/internal/capture"
)

// RecordingSource passes snapshots through from another source and writes
// each one as a recording line, so a session can be replayed later.
type RecordingSource struct {
	src Source
	w   io.WriteCloser

	mu    sync.Mutex
	enc   *json.Encoder
	start time.Time
	err   error
}

// NewRecordingSource records the snapshots of src to w. Closing the source
// closes w.
func NewRecordingSource(src Source, w io.WriteCloser) *RecordingSource {
	return &RecordingSource{src: src, w: w, enc: json.NewEncoder(w)}
}

// Latest returns the snapshot of the wrapped source and records it.
func (s *RecordingSource) Latest() (Snapshot, bool) {
	snap, ok := s.src.Latest()
	if !ok {
		return snap, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return snap, true
	}
	if s.start.IsZero() {
		s.start = snap.Time
	}
	fr := Frame{
		OffsetMs: snap.Time.Sub(s.start).Milliseconds(),
		Hands:    snap.Landmarks(),
	}
	if err := s.enc.Encode(&fr); err != nil {
		s.err = err
		slog.Warn("tracker: recording stopped", "error", err)
	}
	return snap, true
}

// SetGuides forwards to the wrapped source when it draws a preview.
func (s *RecordingSource) SetGuides(g *capture.Guides) {
	if o, ok := s.src.(interface{ SetGuides(*capture.Guides) }); ok {
		o.SetGuides(g)
	}
}

// SetStatus forwards to the wrapped source when it draws a preview.
func (s *RecordingSource) SetStatus(label string, pitch, volume float64) {
	if o, ok := s.src.(interface{ SetStatus(string, float64, float64) }); ok {
		o.SetStatus(label, pitch, volume)
	}
}

// Preview returns the preview of the wrapped source, if any.
func (s *RecordingSource) Preview() []byte {
	if p, ok := s.src.(interface{ Preview() []byte }); ok {
		return p.Preview()
	}
	return nil
}

// Close closes the wrapped source and the recording.
func (s *RecordingSource) Close() error {
	srcErr := s.src.Close()
	s.mu.Lock()
	wErr := s.w.Close()
	s.mu.Unlock()
	if srcErr != nil {
		return srcErr
	}
	if wErr != nil {
		return fmt.Errorf("close recording: %w", wErr)
	}
	return nil
}
