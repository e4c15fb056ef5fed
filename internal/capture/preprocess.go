package capture

import (
	"image"

	"gocv.io/x/gocv"
)

// Analysis frame size. Landmark extraction runs on a downscaled copy; the
// landmarks are normalized coordinates so they map back onto the full frame.
const (
	AnalysisWidth  = 640
	AnalysisHeight = 360
)

// Brightness boost bounds and the fixed offset added alongside the gain.
const (
	MinBoost    = 1.0
	MaxBoost    = 4.0
	boostOffset = 10.0
)

// Options control how a raw camera frame is prepared.
type Options struct {
	Mirror bool
	Boost  float64
}

// ClampBoost limits a brightness factor to [MinBoost, MaxBoost].
func ClampBoost(f float64) float64 {
	switch {
	case f < MinBoost:
		return MinBoost
	case f > MaxBoost:
		return MaxBoost
	default:
		return f
	}
}

// Prepare mirrors and brightens frame in place, then returns a downscaled copy
// for landmark analysis. The caller owns the returned Mat.
func Prepare(frame *gocv.Mat, opts Options) gocv.Mat {
	if opts.Mirror {
		gocv.Flip(*frame, frame, 1)
	}

	if boost := ClampBoost(opts.Boost); boost > MinBoost {
		gocv.ConvertScaleAbs(*frame, frame, boost, boostOffset)
	}

	small := gocv.NewMat()
	gocv.Resize(*frame, &small, image.Pt(AnalysisWidth, AnalysisHeight), 0, 0, gocv.InterpolationLinear)
	return small
}

// EncodeJPEG encodes frame for streaming to UI collaborators.
func EncodeJPEG(frame *gocv.Mat) ([]byte, error) {
	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return nil, err
	}
	defer buf.Close()

	data := buf.GetBytes()
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}
