package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector returns scripted hands. It stands in for the MediaPipe
// service in tests and when Python is unavailable.
type MockDetector struct {
	mu     sync.Mutex
	hands  Hands
	err    error
	calls  int
	closed bool
}

// NewMockDetector returns a detector that sees no hands until SetHands.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands changes what subsequent Detect calls return.
func (m *MockDetector) SetHands(hands Hands) {
	m.mu.Lock()
	m.hands = hands
	m.mu.Unlock()
}

// SetError makes subsequent Detect calls fail with err (nil clears it).
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	m.err = err
	m.mu.Unlock()
}

func (m *MockDetector) Detect(*gocv.Mat) (Hands, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	if m.err != nil {
		return Hands{}, m.err
	}
	return m.hands, nil
}

// Calls returns the number of Detect calls so far.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Closed reports whether Close was called.
func (m *MockDetector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *MockDetector) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Preset hands in image coordinates (y grows downward), ordered wrist,
// thumb, index, middle, ring, pinky with four joints per finger.
var (
	thumbsUpPoints = [NumLandmarks][3]float64{
		{0.50, 0.80, 0},
		{0.55, 0.75, 0}, {0.58, 0.65, 0}, {0.58, 0.50, 0}, {0.58, 0.35, 0},
		{0.55, 0.70, -0.02}, {0.55, 0.68, -0.05}, {0.52, 0.70, -0.04}, {0.50, 0.72, -0.02},
		{0.50, 0.68, -0.02}, {0.50, 0.66, -0.05}, {0.47, 0.68, -0.04}, {0.45, 0.70, -0.02},
		{0.45, 0.70, -0.02}, {0.45, 0.68, -0.05}, {0.42, 0.70, -0.04}, {0.40, 0.72, -0.02},
		{0.40, 0.72, -0.02}, {0.40, 0.70, -0.05}, {0.37, 0.72, -0.04}, {0.35, 0.74, -0.02},
	}

	openPalmPoints = [NumLandmarks][3]float64{
		{0.50, 0.80, 0},
		{0.55, 0.75, 0.02}, {0.62, 0.70, 0.03}, {0.68, 0.65, 0.03}, {0.73, 0.60, 0.03},
		{0.55, 0.68, 0}, {0.57, 0.55, 0}, {0.58, 0.45, 0}, {0.58, 0.35, 0},
		{0.50, 0.66, 0}, {0.50, 0.52, 0}, {0.50, 0.40, 0}, {0.50, 0.28, 0},
		{0.45, 0.68, 0}, {0.43, 0.55, 0}, {0.42, 0.45, 0}, {0.42, 0.35, 0},
		{0.40, 0.70, 0}, {0.37, 0.60, 0}, {0.35, 0.50, 0}, {0.34, 0.42, 0},
	}
)

func preset(points [NumLandmarks][3]float64) HandLandmarks {
	h := HandLandmarks{Handedness: "Right", Score: 0.95}
	for i, p := range points {
		h.Points[i] = Point3D{X: p[0], Y: p[1], Z: p[2]}
	}
	return h
}

// ThumbsUpLandmarks is a right hand with the thumb raised and the other
// fingers curled into the palm.
func ThumbsUpLandmarks() HandLandmarks {
	return preset(thumbsUpPoints)
}

// OpenPalmLandmarks is a right hand with every finger extended.
func OpenPalmLandmarks() HandLandmarks {
	return preset(openPalmPoints)
}

// Translated returns a copy of h with every point shifted by offset.
func Translated(h HandLandmarks, offset Point3D) HandLandmarks {
	out := h
	for i := range out.Points {
		out.Points[i].X += offset.X
		out.Points[i].Y += offset.Y
		out.Points[i].Z += offset.Z
	}
	return out
}
