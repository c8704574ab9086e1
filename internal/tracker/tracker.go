// Package tracker turns detected landmarks into per-frame hand snapshots and
// provides the sources the frame loop pulls them from.
package tracker

import (
	"math"
	"time"

	"github.com/ayusman/veloma/internal/detector"
)

// Source yields the most recent landmark snapshot. Latest returns false when
// no frame could be produced; the caller treats that as an empty snapshot.
type Source interface {
	Latest() (Snapshot, bool)
	Close() error
}

// Hand is one tracked hand with the derived measurements the mappers use.
type Hand struct {
	Landmarks  detector.HandLandmarks `json:"landmarks"`
	Handedness string                 `json:"handedness"`
	Score      float64                `json:"score"`

	// Palm is the midpoint of the wrist and the middle finger MCP joint.
	Palm detector.Point3D `json:"palm"`
	// Size is the wrist to middle MCP distance.
	Size float64 `json:"size"`
	// TipDistances holds each fingertip's distance to Palm, thumb first.
	TipDistances [5]float64 `json:"tip_distances"`
}

// NewHand derives a Hand from raw landmarks. It returns false for landmarks
// that cannot be mapped (non-finite coordinates or zero size).
func NewHand(l detector.HandLandmarks) (Hand, bool) {
	if !l.Valid() {
		return Hand{}, false
	}
	h := Hand{
		Landmarks:  l,
		Handedness: l.Handedness,
		Score:      l.Score,
		Palm:       l.PalmCenter(),
		Size:       l.Size(),
	}
	for i, idx := range detector.Fingertips {
		h.TipDistances[i] = detector.Distance2D(l.Points[idx], h.Palm)
	}
	return h, true
}

// Valid reports whether the hand can drive the mappers. Hands built with
// NewHand are always valid; literal values in tests may not be.
func (h *Hand) Valid() bool {
	return h.Size > 1e-9 && finite(h.Palm.X) && finite(h.Palm.Y)
}

// TipDistance returns the distance of the given landmark to the palm center.
func (h *Hand) TipDistance(landmark int) float64 {
	if landmark < 0 || landmark >= detector.NumLandmarks {
		return 0
	}
	return detector.Distance2D(h.Landmarks.Points[landmark], h.Palm)
}

// MeanTipDistance returns the average fingertip to palm distance.
func (h *Hand) MeanTipDistance() float64 {
	var sum float64
	for _, d := range h.TipDistances {
		sum += d
	}
	return sum / float64(len(h.TipDistances))
}

// Snapshot is the immutable set of hands observed in one frame.
type Snapshot struct {
	Time  time.Time `json:"time"`
	Hands []Hand    `json:"hands"`
}

// NewSnapshot builds a snapshot from detector output, dropping malformed hands.
func NewSnapshot(t time.Time, landmarks []detector.HandLandmarks) Snapshot {
	snap := Snapshot{Time: t}
	for _, l := range landmarks {
		if h, ok := NewHand(l); ok {
			snap.Hands = append(snap.Hands, h)
		}
	}
	return snap
}

// Empty reports whether no hand was observed.
func (s Snapshot) Empty() bool {
	return len(s.Hands) == 0
}

// Landmarks returns the raw landmarks of every hand, for drawing.
func (s Snapshot) Landmarks() []detector.HandLandmarks {
	out := make([]detector.HandLandmarks, len(s.Hands))
	for i := range s.Hands {
		out[i] = s.Hands[i].Landmarks
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
