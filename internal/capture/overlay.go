package capture

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/detector"
)

// handConnections lists the landmark pairs joined when drawing a skeleton.
var handConnections = [][2]int{
	{detector.Wrist, detector.ThumbCMC}, {detector.ThumbCMC, detector.ThumbMCP},
	{detector.ThumbMCP, detector.ThumbIP}, {detector.ThumbIP, detector.ThumbTip},
	{detector.Wrist, detector.IndexMCP}, {detector.IndexMCP, detector.IndexPIP},
	{detector.IndexPIP, detector.IndexDIP}, {detector.IndexDIP, detector.IndexTip},
	{detector.IndexMCP, detector.MiddleMCP}, {detector.MiddleMCP, detector.MiddlePIP},
	{detector.MiddlePIP, detector.MiddleDIP}, {detector.MiddleDIP, detector.MiddleTip},
	{detector.MiddleMCP, detector.RingMCP}, {detector.RingMCP, detector.RingPIP},
	{detector.RingPIP, detector.RingDIP}, {detector.RingDIP, detector.RingTip},
	{detector.RingMCP, detector.PinkyMCP}, {detector.Wrist, detector.PinkyMCP},
	{detector.PinkyMCP, detector.PinkyPIP}, {detector.PinkyPIP, detector.PinkyDIP},
	{detector.PinkyDIP, detector.PinkyTip},
}

var (
	leftLine  = color.RGBA{R: 127, G: 0, B: 255, A: 0}
	rightLine = color.RGBA{R: 255, G: 229, B: 0, A: 0}
	shadow    = color.RGBA{A: 0}
	dot       = color.RGBA{R: 255, G: 255, B: 255, A: 0}
	recording = color.RGBA{R: 255, A: 0}
)

// DrawHands draws both hand skeletons onto frame. Landmarks are expected in
// normalized image coordinates.
func DrawHands(frame *gocv.Mat, hands detector.Hands) {
	drawHand(frame, hands.Left, leftLine)
	drawHand(frame, hands.Right, rightLine)
}

// DrawRecording marks the frame as captured into the staging buffer.
func DrawRecording(frame *gocv.Mat) {
	gocv.Circle(frame, image.Pt(40, 40), 15, recording, -1)
}

func drawHand(frame *gocv.Mat, hand *detector.HandLandmarks, line color.RGBA) {
	if hand == nil {
		return
	}
	w, h := frame.Cols(), frame.Rows()

	var pts [detector.NumLandmarks]image.Point
	for i, p := range hand.Points {
		pts[i] = image.Pt(int(p.X*float64(w)), int(p.Y*float64(h)))
	}
	for _, c := range handConnections {
		gocv.Line(frame, pts[c[0]], pts[c[1]], shadow, 3)
		gocv.Line(frame, pts[c[0]], pts[c[1]], line, 1)
	}
	for _, p := range pts {
		gocv.Circle(frame, p, 3, dot, -1)
	}
}
