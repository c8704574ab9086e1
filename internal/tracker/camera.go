package tracker

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ayusman/veloma/internal/capture"
	"github.com/ayusman/veloma/internal/detector"
)

// overlay is what gets drawn on top of the preview besides the hands.
type overlay struct {
	guides *capture.Guides
	label  string
	pitch  float64
	volume float64
}

// CameraSource captures a frame, runs hand detection and produces a snapshot
// on every call to Latest. It keeps the most recent annotated frame as a
// JPEG for the preview stream.
type CameraSource struct {
	camera   capture.Camera
	detector detector.Detector
	preview  bool
	now      func() time.Time

	mu      sync.RWMutex
	overlay overlay
	jpeg    []byte
}

// NewCameraSource opens the camera and returns a source reading from it.
// When preview is true each frame is annotated and encoded for Preview.
func NewCameraSource(cam capture.Camera, det detector.Detector, preview bool) (*CameraSource, error) {
	if !cam.IsOpen() {
		if err := cam.Open(); err != nil {
			return nil, fmt.Errorf("camera source: %w", err)
		}
	}
	return &CameraSource{
		camera:   cam,
		detector: det,
		preview:  preview,
		now:      time.Now,
	}, nil
}

// Latest reads and analyzes one frame.
func (s *CameraSource) Latest() (Snapshot, bool) {
	frame, err := s.camera.ReadFrame()
	if err != nil {
		slog.Debug("tracker: read frame", "error", err)
		return Snapshot{}, false
	}
	defer frame.Close()

	hands, err := s.detector.Detect(frame)
	if err != nil {
		slog.Warn("tracker: detect hands", "error", err)
		return Snapshot{}, false
	}
	snap := NewSnapshot(s.now(), hands)

	if s.preview {
		s.mu.RLock()
		ov := s.overlay
		s.mu.RUnlock()

		capture.DrawHands(frame, snap.Landmarks())
		if ov.guides != nil {
			capture.DrawGuides(frame, *ov.guides)
		}
		if ov.label != "" {
			capture.DrawStatus(frame, ov.label, ov.pitch, ov.volume)
		}
		data, err := capture.EncodeJPEG(frame)
		if err != nil {
			slog.Debug("tracker: encode preview", "error", err)
		} else {
			s.mu.Lock()
			s.jpeg = data
			s.mu.Unlock()
		}
	}

	return snap, true
}

// SetGuides sets the note boundaries drawn on following frames. Nil hides them.
func (s *CameraSource) SetGuides(g *capture.Guides) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overlay.guides = g
}

// SetStatus sets the status line drawn on following frames.
func (s *CameraSource) SetStatus(label string, pitch, volume float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overlay.label = label
	s.overlay.pitch = pitch
	s.overlay.volume = volume
}

// Preview returns the last annotated frame as JPEG, or nil before the first frame.
func (s *CameraSource) Preview() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jpeg
}

// Close releases the camera and the detector.
func (s *CameraSource) Close() error {
	camErr := s.camera.Close()
	detErr := s.detector.Close()
	if camErr != nil {
		return fmt.Errorf("close camera: %w", camErr)
	}
	if detErr != nil {
		return fmt.Errorf("close detector: %w", detErr)
	}
	return nil
}
