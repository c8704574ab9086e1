// Package detector provides hand landmark types and the detectors that produce them.
package detector

import "math"

// Hand landmark indices following MediaPipe convention.
// See: https://developers.google.com/mediapipe/solutions/vision/hand_landmarker
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Fingertips lists the five fingertip indices from thumb to pinky.
var Fingertips = [5]int{ThumbTip, IndexTip, MiddleTip, RingTip, PinkyTip}

// Point3D is a landmark position. X and Y are normalized to the frame
// (0,0 top-left, 1,1 bottom-right); Z is relative depth.
type Point3D struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// HandLandmarks represents the 21 hand landmarks detected by MediaPipe.
type HandLandmarks struct {
	Points     [NumLandmarks]Point3D `json:"points"`
	Handedness string                `json:"handedness"` // "Left" or "Right"
	Score      float64               `json:"score"`
}

// Distance2D returns the planar distance between two points, ignoring depth.
func Distance2D(a, b Point3D) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// PalmCenter approximates the palm center as the midpoint between the wrist
// and the middle finger MCP joint.
func (h *HandLandmarks) PalmCenter() Point3D {
	w, m := h.Points[Wrist], h.Points[MiddleMCP]
	return Point3D{
		X: (w.X + m.X) / 2,
		Y: (w.Y + m.Y) / 2,
		Z: (w.Z + m.Z) / 2,
	}
}

// Size returns the wrist to middle MCP distance, used as the hand's scale.
func (h *HandLandmarks) Size() float64 {
	return Distance2D(h.Points[Wrist], h.Points[MiddleMCP])
}

// Valid reports whether the landmarks can be used for mapping: every
// coordinate is finite and the hand has a non-zero size.
func (h *HandLandmarks) Valid() bool {
	if h == nil {
		return false
	}
	for _, p := range h.Points {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return false
		}
	}
	return h.Size() > 1e-9
}

// Translate returns a copy of the hand with every point shifted by (dx, dy).
func (h HandLandmarks) Translate(dx, dy float64) HandLandmarks {
	for i := range h.Points {
		h.Points[i].X += dx
		h.Points[i].Y += dy
	}
	return h
}
