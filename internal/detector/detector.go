package detector

import (
	"time"

	"gocv.io/x/gocv"
)

// Detector defines the interface for hand detection implementations.
type Detector interface {
	// Detect analyzes a video frame and returns the left and right hand
	// landmarks. Either side is nil when that hand is not visible.
	Detect(frame *gocv.Mat) (Hands, error)

	// Close releases any resources held by the detector.
	Close() error
}

// Config holds configuration options for hand detection.
type Config struct {
	// MaxHands is the maximum number of hands to detect (default: 2).
	MaxHands int `mapstructure:"max_hands"`

	// MinConfidence is the minimum detection confidence threshold (0.0-1.0).
	MinConfidence float64 `mapstructure:"min_confidence"`

	// MinTrackingConf is the minimum tracking confidence threshold (0.0-1.0).
	MinTrackingConf float64 `mapstructure:"min_tracking_confidence"`

	// ScriptPath overrides the lookup of mediapipe_service.py.
	ScriptPath string `mapstructure:"script_path"`

	// Python overrides the interpreter used to run the service.
	Python string `mapstructure:"python"`

	// IdleTimeout stops the service after this long without a frame.
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`

	// ReplyTimeout bounds one frame round trip, including the service's
	// startup on the first frame. The service is killed when it expires.
	ReplyTimeout time.Duration `mapstructure:"reply_timeout"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		MaxHands:        2,
		MinConfidence:   0.5,
		MinTrackingConf: 0.5,
		IdleTimeout:     30 * time.Second,
		ReplyTimeout:    10 * time.Second,
	}
}

// splitHands assigns detected hands to the left or right slot by handedness.
// Unlabeled hands fill whichever slot is still free, left first.
func splitHands(list []HandLandmarks) Hands {
	var hands Hands
	var unlabeled []*HandLandmarks
	for i := range list {
		h := &list[i]
		switch h.Handedness {
		case "Left":
			if hands.Left == nil {
				hands.Left = h
			}
		case "Right":
			if hands.Right == nil {
				hands.Right = h
			}
		default:
			unlabeled = append(unlabeled, h)
		}
	}
	for _, h := range unlabeled {
		if hands.Left == nil {
			hands.Left = h
		} else if hands.Right == nil {
			hands.Right = h
		}
	}
	return hands
}
