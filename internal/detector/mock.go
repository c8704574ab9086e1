package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu    sync.Mutex
	hands []HandLandmarks
	err   error
	calls int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns a copy of the pre-configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if m.hands == nil {
		return nil, nil
	}
	out := make([]HandLandmarks, len(m.hands))
	copy(out, m.hands)
	return out, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// Place returns a copy of hand moved so that its palm center sits at (x, y).
func Place(hand HandLandmarks, x, y float64) HandLandmarks {
	c := hand.PalmCenter()
	return hand.Translate(x-c.X, y-c.Y)
}

// OpenPalmAt returns an open palm of the given handedness centered at (x, y).
func OpenPalmAt(handedness string, x, y float64) HandLandmarks {
	h := Place(OpenPalmLandmarks(), x, y)
	h.Handedness = handedness
	return h
}

// FistAt returns a closed fist of the given handedness centered at (x, y).
func FistAt(handedness string, x, y float64) HandLandmarks {
	h := Place(FistLandmarks(), x, y)
	h.Handedness = handedness
	return h
}

// OpenPalmLandmarks returns a preset HandLandmarks representing an open palm gesture.
// All fingers are extended outward.
func OpenPalmLandmarks() HandLandmarks {
	landmarks := HandLandmarks{
		Handedness: "Right",
		Score:      0.95,
	}

	landmarks.Points[Wrist] = Point3D{X: 0.5, Y: 0.8, Z: 0.0}

	// Thumb extended to the side
	landmarks.Points[ThumbCMC] = Point3D{X: 0.55, Y: 0.75, Z: 0.02}
	landmarks.Points[ThumbMCP] = Point3D{X: 0.62, Y: 0.70, Z: 0.03}
	landmarks.Points[ThumbIP] = Point3D{X: 0.68, Y: 0.65, Z: 0.03}
	landmarks.Points[ThumbTip] = Point3D{X: 0.73, Y: 0.60, Z: 0.03}

	landmarks.Points[IndexMCP] = Point3D{X: 0.55, Y: 0.68, Z: 0.0}
	landmarks.Points[IndexPIP] = Point3D{X: 0.57, Y: 0.55, Z: 0.0}
	landmarks.Points[IndexDIP] = Point3D{X: 0.58, Y: 0.45, Z: 0.0}
	landmarks.Points[IndexTip] = Point3D{X: 0.58, Y: 0.35, Z: 0.0}

	landmarks.Points[MiddleMCP] = Point3D{X: 0.50, Y: 0.66, Z: 0.0}
	landmarks.Points[MiddlePIP] = Point3D{X: 0.50, Y: 0.52, Z: 0.0}
	landmarks.Points[MiddleDIP] = Point3D{X: 0.50, Y: 0.40, Z: 0.0}
	landmarks.Points[MiddleTip] = Point3D{X: 0.50, Y: 0.28, Z: 0.0}

	landmarks.Points[RingMCP] = Point3D{X: 0.45, Y: 0.68, Z: 0.0}
	landmarks.Points[RingPIP] = Point3D{X: 0.43, Y: 0.55, Z: 0.0}
	landmarks.Points[RingDIP] = Point3D{X: 0.42, Y: 0.45, Z: 0.0}
	landmarks.Points[RingTip] = Point3D{X: 0.42, Y: 0.35, Z: 0.0}

	landmarks.Points[PinkyMCP] = Point3D{X: 0.40, Y: 0.70, Z: 0.0}
	landmarks.Points[PinkyPIP] = Point3D{X: 0.37, Y: 0.60, Z: 0.0}
	landmarks.Points[PinkyDIP] = Point3D{X: 0.35, Y: 0.50, Z: 0.0}
	landmarks.Points[PinkyTip] = Point3D{X: 0.34, Y: 0.42, Z: 0.0}

	return landmarks
}

// FistLandmarks returns a preset HandLandmarks representing a closed fist.
// Every fingertip is folded back onto the palm.
func FistLandmarks() HandLandmarks {
	landmarks := HandLandmarks{
		Handedness: "Right",
		Score:      0.95,
	}

	landmarks.Points[Wrist] = Point3D{X: 0.5, Y: 0.8, Z: 0.0}

	landmarks.Points[ThumbCMC] = Point3D{X: 0.55, Y: 0.76, Z: 0.0}
	landmarks.Points[ThumbMCP] = Point3D{X: 0.58, Y: 0.73, Z: -0.01}
	landmarks.Points[ThumbIP] = Point3D{X: 0.57, Y: 0.71, Z: -0.02}
	landmarks.Points[ThumbTip] = Point3D{X: 0.55, Y: 0.70, Z: -0.03}

	landmarks.Points[IndexMCP] = Point3D{X: 0.55, Y: 0.68, Z: -0.02}
	landmarks.Points[IndexPIP] = Point3D{X: 0.56, Y: 0.64, Z: -0.05}
	landmarks.Points[IndexDIP] = Point3D{X: 0.55, Y: 0.69, Z: -0.05}
	landmarks.Points[IndexTip] = Point3D{X: 0.54, Y: 0.72, Z: -0.03}

	landmarks.Points[MiddleMCP] = Point3D{X: 0.50, Y: 0.66, Z: -0.02}
	landmarks.Points[MiddlePIP] = Point3D{X: 0.50, Y: 0.62, Z: -0.05}
	landmarks.Points[MiddleDIP] = Point3D{X: 0.50, Y: 0.68, Z: -0.05}
	landmarks.Points[MiddleTip] = Point3D{X: 0.50, Y: 0.72, Z: -0.03}

	landmarks.Points[RingMCP] = Point3D{X: 0.45, Y: 0.68, Z: -0.02}
	landmarks.Points[RingPIP] = Point3D{X: 0.45, Y: 0.64, Z: -0.05}
	landmarks.Points[RingDIP] = Point3D{X: 0.46, Y: 0.69, Z: -0.05}
	landmarks.Points[RingTip] = Point3D{X: 0.46, Y: 0.72, Z: -0.03}

	landmarks.Points[PinkyMCP] = Point3D{X: 0.40, Y: 0.70, Z: -0.02}
	landmarks.Points[PinkyPIP] = Point3D{X: 0.41, Y: 0.67, Z: -0.04}
	landmarks.Points[PinkyDIP] = Point3D{X: 0.42, Y: 0.71, Z: -0.04}
	landmarks.Points[PinkyTip] = Point3D{X: 0.43, Y: 0.74, Z: -0.03}

	return landmarks
}

// PinchLandmarks returns an open hand whose thumb tip is folded onto the
// palm center while the other fingers stay extended.
func PinchLandmarks() HandLandmarks {
	landmarks := OpenPalmLandmarks()
	landmarks.Points[ThumbMCP] = Point3D{X: 0.57, Y: 0.74, Z: 0.0}
	landmarks.Points[ThumbIP] = Point3D{X: 0.55, Y: 0.71, Z: -0.01}
	landmarks.Points[ThumbTip] = Point3D{X: 0.52, Y: 0.70, Z: -0.02}
	return landmarks
}
