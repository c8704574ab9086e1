package gesture

import (
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/veloma/internal/detector"
)

// ErrInvalidSettings is returned when mapper settings cannot be applied.
var ErrInvalidSettings = errors.New("invalid gesture settings")

// Mode selects how pitch is produced from the hand position.
type Mode int

const (
	// ModeDiscrete quantizes pitch onto the notes of a scale.
	ModeDiscrete Mode = iota
	// ModeContinuous glides over the pitch range like a theremin.
	ModeContinuous
)

var modeNames = map[Mode]string{
	ModeDiscrete:   "discrete",
	ModeContinuous: "continuous",
}

func (m Mode) String() string {
	if s, ok := modeNames[m]; ok {
		return s
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

func (m Mode) MarshalText() ([]byte, error) {
	if _, ok := modeNames[m]; !ok {
		return nil, fmt.Errorf("%w: unknown mode %d", ErrInvalidSettings, int(m))
	}
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	switch string(b) {
	case "discrete", "default":
		*m = ModeDiscrete
	case "continuous", "theremin":
		*m = ModeContinuous
	default:
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidSettings, b)
	}
	return nil
}

// HandAssignment selects how many hands drive the instrument.
type HandAssignment int

const (
	// HandsSingle uses one hand for both pitch and volume.
	HandsSingle HandAssignment = iota
	// HandsTwo uses the right hand for pitch and the left hand for volume.
	HandsTwo
)

func (h HandAssignment) String() string {
	switch h {
	case HandsSingle:
		return "single"
	case HandsTwo:
		return "two"
	}
	return fmt.Sprintf("HandAssignment(%d)", int(h))
}

func (h HandAssignment) MarshalText() ([]byte, error) {
	if h != HandsSingle && h != HandsTwo {
		return nil, fmt.Errorf("%w: unknown hand assignment %d", ErrInvalidSettings, int(h))
	}
	return []byte(h.String()), nil
}

func (h *HandAssignment) UnmarshalText(b []byte) error {
	switch string(b) {
	case "single", "one":
		*h = HandsSingle
	case "two", "both":
		*h = HandsTwo
	default:
		return fmt.Errorf("%w: unknown hand assignment %q", ErrInvalidSettings, b)
	}
	return nil
}

// Axis is a direction in the camera frame.
type Axis int

const (
	// AxisX is the horizontal axis, growing to the right of the mirrored frame.
	AxisX Axis = iota
	// AxisY is the vertical axis, growing downwards.
	AxisY
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	}
	return fmt.Sprintf("Axis(%d)", int(a))
}

func (a Axis) MarshalText() ([]byte, error) {
	if a != AxisX && a != AxisY {
		return nil, fmt.Errorf("%w: unknown axis %d", ErrInvalidSettings, int(a))
	}
	return []byte(a.String()), nil
}

func (a *Axis) UnmarshalText(b []byte) error {
	switch string(b) {
	case "x", "horizontal":
		*a = AxisX
	case "y", "vertical":
		*a = AxisY
	default:
		return fmt.Errorf("%w: unknown axis %q", ErrInvalidSettings, b)
	}
	return nil
}

// Of returns the coordinate of p along the axis.
func (a Axis) Of(p detector.Point3D) float64 {
	if a == AxisY {
		return p.Y
	}
	return p.X
}

// VolumeSource selects what controls volume in two-hand mode.
type VolumeSource int

const (
	// VolumeLeftHeight maps the left hand's height to volume.
	VolumeLeftHeight VolumeSource = iota
	// VolumeHandDistance maps the distance between both palms to volume.
	VolumeHandDistance
)

func (v VolumeSource) String() string {
	switch v {
	case VolumeLeftHeight:
		return "height"
	case VolumeHandDistance:
		return "distance"
	}
	return fmt.Sprintf("VolumeSource(%d)", int(v))
}

func (v VolumeSource) MarshalText() ([]byte, error) {
	if v != VolumeLeftHeight && v != VolumeHandDistance {
		return nil, fmt.Errorf("%w: unknown volume source %d", ErrInvalidSettings, int(v))
	}
	return []byte(v.String()), nil
}

func (v *VolumeSource) UnmarshalText(b []byte) error {
	switch string(b) {
	case "height":
		*v = VolumeLeftHeight
	case "distance":
		*v = VolumeHandDistance
	default:
		return fmt.Errorf("%w: unknown volume source %q", ErrInvalidSettings, b)
	}
	return nil
}

// ReplayGesture selects which hand shape triggers a replay.
type ReplayGesture int

const (
	ReplayFist ReplayGesture = iota
	ReplayPinch
	ReplayEither
	ReplayOff
)

var replayNames = map[ReplayGesture]string{
	ReplayFist:   "fist",
	ReplayPinch:  "pinch",
	ReplayEither: "either",
	ReplayOff:    "off",
}

func (r ReplayGesture) String() string {
	if s, ok := replayNames[r]; ok {
		return s
	}
	return fmt.Sprintf("ReplayGesture(%d)", int(r))
}

func (r ReplayGesture) MarshalText() ([]byte, error) {
	if _, ok := replayNames[r]; !ok {
		return nil, fmt.Errorf("%w: unknown replay gesture %d", ErrInvalidSettings, int(r))
	}
	return []byte(r.String()), nil
}

func (r *ReplayGesture) UnmarshalText(b []byte) error {
	for k, name := range replayNames {
		if name == string(b) {
			*r = k
			return nil
		}
	}
	return fmt.Errorf("%w: unknown replay gesture %q", ErrInvalidSettings, b)
}

// Range is a span of camera-normalized coordinates mapped onto [0,1].
type Range struct {
	Min float64 `json:"min" yaml:"min"`
	Max float64 `json:"max" yaml:"max"`
}

// Normalize clamps v into the range and maps it linearly to [0,1].
func (r Range) Normalize(v float64) float64 {
	if v <= r.Min {
		return 0
	}
	if v >= r.Max {
		return 1
	}
	return (v - r.Min) / (r.Max - r.Min)
}

// Validate rejects empty or inverted ranges.
func (r Range) Validate() error {
	if !(r.Max > r.Min) {
		return fmt.Errorf("%w: range [%g, %g] is empty", ErrInvalidSettings, r.Min, r.Max)
	}
	return nil
}

// Settings configures the gesture mapper. The zero value is not usable;
// start from DefaultSettings.
type Settings struct {
	Mode   Mode           `json:"mode" yaml:"mode"`
	Hands  HandAssignment `json:"hands" yaml:"hands"`
	Volume VolumeSource   `json:"volume_source" yaml:"volume_source"`

	// PitchAxis is the palm coordinate mapped to pitch. Volume comes from
	// the other axis.
	PitchAxis Axis `json:"pitch_axis" yaml:"pitch_axis"`
	// PitchRange is the span of the palm along PitchAxis mapped to pitch.
	PitchRange Range `json:"pitch_range" yaml:"pitch_range"`
	// VolumeRange is the span of the palm along the volume axis mapped to
	// volume. On the vertical axis the top of the range is loudest, on the
	// horizontal axis the right end.
	VolumeRange Range `json:"volume_range" yaml:"volume_range"`
	// HandDistanceRange is the palm-to-palm span mapped to volume.
	HandDistanceRange Range `json:"hand_distance_range" yaml:"hand_distance_range"`

	ReplayGesture ReplayGesture `json:"replay_gesture" yaml:"replay_gesture"`
	// FistThreshold is the mean fingertip to palm distance, in hand sizes,
	// below which the hand counts as a fist.
	FistThreshold float64 `json:"fist_threshold" yaml:"fist_threshold"`
	// PinchThreshold is the PinchFinger to palm distance, in hand sizes,
	// below which the hand counts as pinching.
	PinchThreshold float64 `json:"pinch_threshold" yaml:"pinch_threshold"`
	PinchFinger    int     `json:"pinch_finger" yaml:"pinch_finger"`
	// ReplayEveryFrame reports Replay on every frame the gesture is held
	// instead of only when it starts.
	ReplayEveryFrame bool `json:"replay_every_frame" yaml:"replay_every_frame"`

	// Smoothing is the exponential moving average factor; 1 disables it.
	Smoothing float64 `json:"smoothing" yaml:"smoothing"`
	// HoldTimeoutMs keeps reporting the last values for this long after the
	// hands disappear. 0 reports the loss immediately.
	HoldTimeoutMs int `json:"hold_timeout_ms" yaml:"hold_timeout_ms"`
}

// DefaultSettings returns the single-hand discrete configuration with the
// pitch region on the right half of the frame and volume on the lower half,
// loudest at its top edge.
func DefaultSettings() Settings {
	return Settings{
		Mode:              ModeDiscrete,
		Hands:             HandsSingle,
		Volume:            VolumeLeftHeight,
		PitchAxis:         AxisX,
		PitchRange:        Range{Min: 0.5, Max: 0.95},
		VolumeRange:       Range{Min: 0.5, Max: 1.0},
		HandDistanceRange: Range{Min: 0.1, Max: 0.7},
		ReplayGesture:     ReplayFist,
		FistThreshold:     0.9,
		PinchThreshold:    0.6,
		PinchFinger:       detector.ThumbTip,
		Smoothing:         1,
	}
}

// VolumeAxis returns the axis opposite to PitchAxis.
func (s Settings) VolumeAxis() Axis {
	if s.PitchAxis == AxisY {
		return AxisX
	}
	return AxisY
}

// HoldTimeout returns the hold timeout as a duration.
func (s Settings) HoldTimeout() time.Duration {
	return time.Duration(s.HoldTimeoutMs) * time.Millisecond
}

// Validate checks every field and returns an error wrapping ErrInvalidSettings.
func (s Settings) Validate() error {
	if _, ok := modeNames[s.Mode]; !ok {
		return fmt.Errorf("%w: unknown mode %d", ErrInvalidSettings, int(s.Mode))
	}
	if s.Hands != HandsSingle && s.Hands != HandsTwo {
		return fmt.Errorf("%w: unknown hand assignment %d", ErrInvalidSettings, int(s.Hands))
	}
	if s.PitchAxis != AxisX && s.PitchAxis != AxisY {
		return fmt.Errorf("%w: unknown pitch axis %d", ErrInvalidSettings, int(s.PitchAxis))
	}
	if s.Volume != VolumeLeftHeight && s.Volume != VolumeHandDistance {
		return fmt.Errorf("%w: unknown volume source %d", ErrInvalidSettings, int(s.Volume))
	}
	if _, ok := replayNames[s.ReplayGesture]; !ok {
		return fmt.Errorf("%w: unknown replay gesture %d", ErrInvalidSettings, int(s.ReplayGesture))
	}
	for name, r := range map[string]Range{
		"pitch":         s.PitchRange,
		"volume":        s.VolumeRange,
		"hand distance": s.HandDistanceRange,
	} {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if s.FistThreshold <= 0 || s.PinchThreshold <= 0 {
		return fmt.Errorf("%w: replay thresholds must be positive", ErrInvalidSettings)
	}
	if s.PinchFinger < 0 || s.PinchFinger >= detector.NumLandmarks {
		return fmt.Errorf("%w: pinch finger %d is not a landmark", ErrInvalidSettings, s.PinchFinger)
	}
	if !(s.Smoothing > 0 && s.Smoothing <= 1) {
		return fmt.Errorf("%w: smoothing %g outside (0, 1]", ErrInvalidSettings, s.Smoothing)
	}
	if s.HoldTimeoutMs < 0 {
		return fmt.Errorf("%w: negative hold timeout", ErrInvalidSettings)
	}
	return nil
}
