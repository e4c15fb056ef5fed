package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/metrics"
)

// Mode is the pipeline state.
type Mode string

const (
	// ModePredict classifies each frame and smooths the result.
	ModePredict Mode = "PREDICT"
	// ModeCollect stages each frame's features under the active label.
	ModeCollect Mode = "COLLECT"
)

// DefaultThreshold is the confidence a prediction must exceed to be voted.
const DefaultThreshold = 0.65

// ErrEmptyLabel is returned when collection is requested without a label.
var ErrEmptyLabel = errors.New("gesture label must not be empty")

// FrameResult is the decision emitted for one frame.
type FrameResult struct {
	Label      string    `json:"label"`
	Confidence float64   `json:"confidence"`
	Mode       Mode      `json:"mode"`
	Staged     int       `json:"staged"`
	Hands      int       `json:"hands"`
	Recording  bool      `json:"recording"`
	At         time.Time `json:"at"`
}

// Predictor classifies a single feature vector.
type Predictor interface {
	Predict(features []float64) (label string, confidence float64)
}

// session is the per-frame decision state: mode, active label, staged
// samples, and the prediction window. It is owned by whichever goroutine
// currently drives it and is not safe for concurrent use.
type session struct {
	mode      Mode
	label     string
	stagedX   [][]float64
	stagedY   []string
	window    *gesture.Window
	threshold float64
}

func newSession(windowSize int, threshold float64) *session {
	return &session{
		mode:      ModePredict,
		window:    gesture.NewWindow(windowSize),
		threshold: threshold,
	}
}

func (s *session) enterCollect(label string) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return ErrEmptyLabel
	}
	s.mode = ModeCollect
	s.label = label
	return nil
}

func (s *session) exitCollect() {
	s.mode = ModePredict
	s.label = ""
}

// takeStaged hands off the staged samples and clears the buffer.
func (s *session) takeStaged() ([][]float64, []string) {
	x, y := s.stagedX, s.stagedY
	s.stagedX, s.stagedY = nil, nil
	return x, y
}

// restoreStaged puts a batch back in front of anything staged since.
func (s *session) restoreStaged(x [][]float64, y []string) {
	s.stagedX = append(x, s.stagedX...)
	s.stagedY = append(y, s.stagedY...)
}

// process runs the decision for one feature vector and reports the
// prediction outcome for metrics ("" when no prediction was made).
func (s *session) process(features []float64, p Predictor) (FrameResult, string) {
	res := FrameResult{
		Label:  gesture.NoSignal,
		Mode:   s.mode,
		Staged: len(s.stagedX),
	}

	if detector.IsZero(features) {
		s.window.Push(gesture.NoSignal)
		return res, metrics.OutcomeNoHands
	}

	switch s.mode {
	case ModeCollect:
		if s.label == "" {
			return res, ""
		}
		s.stagedX = append(s.stagedX, features)
		s.stagedY = append(s.stagedY, s.label)
		res.Staged = len(s.stagedX)
		res.Label = fmt.Sprintf("REC: %d", res.Staged)
		res.Recording = true
		return res, ""

	default:
		label, confidence := p.Predict(features)
		outcome := metrics.OutcomeRejected
		if label == gesture.Unknown && confidence == 0 {
			outcome = metrics.OutcomeFailed
		}
		if confidence > s.threshold {
			s.window.Push(label)
			outcome = metrics.OutcomeAccepted
		} else {
			s.window.Push(gesture.NoSignal)
		}
		res.Label = s.window.Vote()
		res.Confidence = confidence
		return res, outcome
	}
}
