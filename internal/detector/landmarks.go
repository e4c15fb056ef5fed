// Package detector provides hand landmark types, the feature normalizer, and
// hand detection backends.
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

const (
	// HandFeatureLen is the length of one hand's feature sub-vector.
	HandFeatureLen = 3 * NumLandmarks
	// FeatureLen is the length of a full feature vector (left hand, then right hand).
	FeatureLen = 2 * HandFeatureLen

	// minScale guards against near-degenerate detections collapsing to a point.
	minScale = 1e-4
)

// Point3D represents a 3D point in space with x, y, z coordinates.
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

// Hands is the result of one detection poll. A nil side means no hand was found.
type Hands struct {
	Left  *HandLandmarks `json:"left,omitempty"`
	Right *HandLandmarks `json:"right,omitempty"`
}

// Empty reports whether neither hand was detected.
func (h Hands) Empty() bool {
	return h.Left == nil && h.Right == nil
}

// norm3D returns the Euclidean length of p measured from the origin.
func norm3D(p Point3D) float64 {
	return math.Sqrt(p.X*p.X + p.Y*p.Y + p.Z*p.Z)
}

// Normalize normalizes the hand landmarks relative to wrist position and hand size.
// The wrist is moved to the origin and every point is divided by the largest
// wrist-relative distance, so the farthest landmark ends up at distance 1.0.
// A scale below 1e-4 is treated as 1.0.
// Returns a new HandLandmarks instance with normalized points.
func (h *HandLandmarks) Normalize() *HandLandmarks {
	if h == nil {
		return nil
	}

	normalized := &HandLandmarks{
		Handedness: h.Handedness,
		Score:      h.Score,
	}

	wrist := h.Points[Wrist]

	scale := 0.0
	for i := 0; i < NumLandmarks; i++ {
		p := Point3D{
			X: h.Points[i].X - wrist.X,
			Y: h.Points[i].Y - wrist.Y,
			Z: h.Points[i].Z - wrist.Z,
		}
		normalized.Points[i] = p
		if d := norm3D(p); d > scale {
			scale = d
		}
	}

	if scale < minScale {
		scale = 1.0
	}

	for i := 0; i < NumLandmarks; i++ {
		normalized.Points[i].X /= scale
		normalized.Points[i].Y /= scale
		normalized.Points[i].Z /= scale
	}

	return normalized
}

// Features returns the hand's normalized feature sub-vector of length
// HandFeatureLen, laid out x, y, z per landmark in landmark order.
// A nil hand yields all zeros.
func (h *HandLandmarks) Features() []float64 {
	out := make([]float64, HandFeatureLen)
	n := h.Normalize()
	if n == nil {
		return out
	}
	for i, p := range n.Points {
		out[3*i] = p.X
		out[3*i+1] = p.Y
		out[3*i+2] = p.Z
	}
	return out
}

// FeatureVector concatenates the left and right hand features into a vector of
// length FeatureLen. Collection and prediction must both go through here.
func FeatureVector(left, right *HandLandmarks) []float64 {
	v := make([]float64, 0, FeatureLen)
	v = append(v, left.Features()...)
	v = append(v, right.Features()...)
	return v
}

// IsZero reports whether every component of v is zero.
func IsZero(v []float64) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
