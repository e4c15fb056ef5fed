package app

import (
	"context"
	"time"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/detector"
	"gocv.io/x/gocv"
	"golang.org/x/time/rate"
)

// run is the frame loop. Each iteration waits for the rate limiter, serves
// pending commands, then processes exactly one frame:
//
//  1. Read a frame (a failed read skips the iteration)
//  2. Mirror, brighten, and downscale it for analysis
//  3. Detect both hands (a failed detection counts as no hands)
//  4. Normalize into a feature vector and run the session decision
//  5. Draw the overlay, keep the JPEG, and publish the result
//
// On exit the camera and detector are released.
func (a *App) run(ctx context.Context, cmds <-chan command, done chan<- struct{}) {
	defer close(done)
	defer a.release()

	limiter := rate.NewLimiter(rate.Limit(a.config.FPS), 1)

	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}

		a.serve(cmds)

		if ctx.Err() != nil {
			return
		}

		a.tick()
	}
}

// serve runs every command that is already waiting.
func (a *App) serve(cmds <-chan command) {
	for {
		select {
		case cmd := <-cmds:
			cmd(a.sess)
		default:
			return
		}
	}
}

func (a *App) tick() {
	frame, err := a.camera.ReadFrame()
	if err != nil {
		a.metrics.ObserveFrameError("read")
		a.frameLog.Debug().Err(err).Msg("frame read failed")
		return
	}
	defer frame.Close()

	small := capture.Prepare(frame, capture.Options{
		Mirror: a.mirror.Load(),
		Boost:  a.BrightnessBoost(),
	})
	defer small.Close()

	hands := a.detect(&small)

	res, outcome := a.sess.process(detector.FeatureVector(hands.Left, hands.Right), a.classifier)
	res.Hands = countHands(hands)
	res.At = time.Now()

	a.metrics.ObserveFrame(string(res.Mode))
	if outcome != "" {
		a.metrics.ObservePrediction(outcome, res.Confidence)
	}
	if res.Recording {
		a.metrics.SetStaged(res.Staged)
	}

	a.annotate(frame, hands, res.Recording)
	a.publishFrame(res)
}

// detect runs hand detection, degrading any failure to "no hands".
func (a *App) detect(frame *gocv.Mat) (hands detector.Hands) {
	defer func() {
		if r := recover(); r != nil {
			a.metrics.ObserveFrameError("detect")
			a.frameLog.Error().Interface("panic", r).Msg("hand detection panicked")
			hands = detector.Hands{}
		}
	}()

	hands, err := a.detector.Detect(frame)
	if err != nil {
		a.metrics.ObserveFrameError("detect")
		a.frameLog.Warn().Err(err).Msg("hand detection failed")
		return detector.Hands{}
	}
	return hands
}

// annotate draws the overlay on the full-size frame and stores it as JPEG.
func (a *App) annotate(frame *gocv.Mat, hands detector.Hands, recording bool) {
	if !hands.Empty() {
		capture.DrawHands(frame, hands)
	}
	if recording {
		capture.DrawRecording(frame)
	}

	jpeg, err := capture.EncodeJPEG(frame)
	if err != nil {
		a.metrics.ObserveFrameError("encode")
		a.frameLog.Debug().Err(err).Msg("frame encode failed")
		return
	}
	a.latest.Store(&jpeg)
}

func (a *App) release() {
	if err := a.camera.Close(); err != nil {
		a.log.Error().Err(err).Msg("error closing camera")
	}
	if a.detector != nil {
		if err := a.detector.Close(); err != nil {
			a.log.Error().Err(err).Msg("error closing detector")
		}
	}
}

func countHands(h detector.Hands) int {
	n := 0
	if h.Left != nil {
		n++
	}
	if h.Right != nil {
		n++
	}
	return n
}
