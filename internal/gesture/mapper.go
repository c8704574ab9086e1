// Package gesture converts hand snapshots into normalized control values:
// pitch and volume positions plus a replay trigger.
package gesture

import (
	"fmt"
	"math"

	"github.com/ayusman/veloma/internal/detector"
	"github.com/ayusman/veloma/internal/tracker"
)

// Input tells whether control values come from a hand in the current frame.
type Input int

const (
	// InputNone means the required hands are absent. Pitch and Volume are
	// meaningless and must not be read as a hand at position 0.
	InputNone Input = iota
	// InputLive means the values come from the current frame.
	InputLive
	// InputHeld means the hands are gone and the last live values are being
	// held until the hold timeout elapses.
	InputHeld
)

func (i Input) String() string {
	switch i {
	case InputNone:
		return "none"
	case InputLive:
		return "live"
	case InputHeld:
		return "held"
	}
	return fmt.Sprintf("Input(%d)", int(i))
}

func (i Input) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// ControlValues are the per-frame output of the mapper.
type ControlValues struct {
	Pitch  float64 `json:"pitch"`
	Volume float64 `json:"volume"`
	Replay bool    `json:"replay"`
	Input  Input   `json:"input"`
}

// Present reports whether the values carry a hand position.
func (c ControlValues) Present() bool {
	return c.Input != InputNone
}

// NoInput is the value reported when the required hands are absent.
var NoInput = ControlValues{Input: InputNone}

// Mapper holds the cross-frame state of the gesture mapping: the replay
// edge detector, the smoothing filter and the last live values for holding.
// A Mapper is used from a single goroutine.
type Mapper struct {
	replayHeld bool
	smooth     smoother

	last     ControlValues
	lastSeen int64 // unix nanoseconds of the last live frame
	haveLast bool
}

// NewMapper returns a mapper with no history.
func NewMapper() *Mapper {
	return &Mapper{}
}

// Reset forgets all history.
func (m *Mapper) Reset() {
	*m = Mapper{}
}

// Map derives control values from one snapshot. Settings are assumed valid.
func (m *Mapper) Map(snap tracker.Snapshot, s Settings) ControlValues {
	pitchHand, volume, ok := assign(snap, s)
	if !ok {
		return m.lost(snap, s)
	}

	pitch := s.PitchRange.Normalize(s.PitchAxis.Of(pitchHand.Palm))
	pitch, volume = m.smooth.apply(pitch, volume, s.Smoothing)

	gesture := detectReplay(pitchHand, s)
	replay := gesture && (s.ReplayEveryFrame || !m.replayHeld)
	m.replayHeld = gesture

	cv := ControlValues{
		Pitch:  pitch,
		Volume: volume,
		Replay: replay,
		Input:  InputLive,
	}
	m.last = cv
	m.lastSeen = snap.Time.UnixNano()
	m.haveLast = true
	return cv
}

// lost handles a frame without the required hands.
func (m *Mapper) lost(snap tracker.Snapshot, s Settings) ControlValues {
	m.replayHeld = false

	if hold := s.HoldTimeout(); hold > 0 && m.haveLast {
		// Time running backwards, as when a recording loops, ends the hold.
		if elapsed := snap.Time.UnixNano() - m.lastSeen; elapsed >= 0 && elapsed <= int64(hold) {
			cv := m.last
			cv.Replay = false
			cv.Input = InputHeld
			return cv
		}
	}

	m.haveLast = false
	m.smooth.reset()
	return NoInput
}

// assign picks the pitch hand and computes the normalized volume according
// to the hand assignment.
func assign(snap tracker.Snapshot, s Settings) (*tracker.Hand, float64, bool) {
	hands := validHands(snap)

	switch s.Hands {
	case HandsSingle:
		if len(hands) == 0 {
			return nil, 0, false
		}
		h := hands[0]
		return h, positionVolume(h, s), true

	case HandsTwo:
		if len(hands) < 2 {
			return nil, 0, false
		}
		// The frame is mirrored, so the performer's right hand has the larger x.
		right, left := hands[0], hands[1]
		for _, h := range hands[1:] {
			if h.Palm.X > right.Palm.X {
				right = h
			}
		}
		for _, h := range hands {
			if h != right && (left == right || h.Palm.X < left.Palm.X) {
				left = h
			}
		}

		var volume float64
		switch s.Volume {
		case VolumeHandDistance:
			volume = s.HandDistanceRange.Normalize(detector.Distance2D(right.Palm, left.Palm))
		default:
			volume = positionVolume(left, s)
		}
		return right, volume, true
	}
	return nil, 0, false
}

// positionVolume maps the palm position along the volume axis. On the
// vertical axis higher on screen is louder.
func positionVolume(h *tracker.Hand, s Settings) float64 {
	v := s.VolumeRange.Normalize(s.VolumeAxis().Of(h.Palm))
	if s.VolumeAxis() == AxisY {
		return 1 - v
	}
	return v
}

func validHands(snap tracker.Snapshot) []*tracker.Hand {
	var out []*tracker.Hand
	for i := range snap.Hands {
		if snap.Hands[i].Valid() {
			out = append(out, &snap.Hands[i])
		}
	}
	return out
}

// IsFist reports whether the fingertips are folded onto the palm.
func IsFist(h *tracker.Hand, threshold float64) bool {
	return h.MeanTipDistance()/h.Size < threshold
}

// IsPinch reports whether the given landmark touches the palm center.
func IsPinch(h *tracker.Hand, finger int, threshold float64) bool {
	return h.TipDistance(finger)/h.Size < threshold
}

func detectReplay(h *tracker.Hand, s Settings) bool {
	switch s.ReplayGesture {
	case ReplayFist:
		return IsFist(h, s.FistThreshold)
	case ReplayPinch:
		return IsPinch(h, s.PinchFinger, s.PinchThreshold)
	case ReplayEither:
		return IsFist(h, s.FistThreshold) || IsPinch(h, s.PinchFinger, s.PinchThreshold)
	}
	return false
}

// smoother is a per-axis exponential moving average.
type smoother struct {
	pitch, volume float64
	primed        bool
}

func (f *smoother) apply(pitch, volume, alpha float64) (float64, float64) {
	if alpha >= 1 || alpha <= 0 || !f.primed {
		f.pitch, f.volume, f.primed = pitch, volume, true
		return pitch, volume
	}
	f.pitch = alpha*pitch + (1-alpha)*f.pitch
	f.volume = alpha*volume + (1-alpha)*f.volume
	return clamp01(f.pitch), clamp01(f.volume)
}

func (f *smoother) reset() {
	*f = smoother{}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
