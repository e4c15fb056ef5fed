// Package app provides the live gesture pipeline and the command surface
// used by the UI shells.
package app

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/logging"
	"github.com/ayusman/mudra/internal/metrics"
	"github.com/ayusman/mudra/internal/store"
	"github.com/rs/zerolog"
)

// UpdateBuffer is the capacity of the update channel.
const UpdateBuffer = 64

// Classifier trains and serves the gesture model.
type Classifier interface {
	Predictor
	Train(ctx context.Context) (gesture.TrainReport, error)
	Trained() bool
}

// SampleStore persists labeled samples.
type SampleStore interface {
	Append(ctx context.Context, x [][]float64, y []string) (int, error)
	RemoveLabel(ctx context.Context, label string) (int, error)
	Labels(ctx context.Context) ([]store.LabelCount, error)
}

// TrainOutcome is the user-facing result of a training request.
type TrainOutcome struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Samples int    `json:"samples,omitempty"`
	Classes int    `json:"classes,omitempty"`
	ModelID string `json:"model_id,omitempty"`
}

// Update is one message to UI shells: either a frame decision or a
// training outcome.
type Update struct {
	Frame *FrameResult  `json:"frame,omitempty"`
	Train *TrainOutcome `json:"train,omitempty"`
}

// Config holds the collaborators and settings for an App.
type Config struct {
	Camera     capture.Camera
	Detector   detector.Detector
	Store      SampleStore
	Classifier Classifier
	Metrics    *metrics.Metrics
	Logger     zerolog.Logger

	// FPS caps the frame loop rate (default: capture.DefaultFPS).
	FPS int
	// WindowSize is the number of frames voted over (default: 10).
	WindowSize int
	// Threshold is the confidence a prediction must exceed to be voted
	// (default: 0.65).
	Threshold float64
	// Mirror flips frames horizontally.
	Mirror bool
	// Brightness is the initial brightness boost, clamped to [1, 4].
	Brightness float64
}

// command runs against the session on the goroutine that owns it.
type command func(s *session)

// App is the live decision pipeline plus the operations UI shells call.
type App struct {
	config     Config
	camera     capture.Camera
	detector   detector.Detector
	store      SampleStore
	classifier Classifier
	metrics    *metrics.Metrics
	log        zerolog.Logger
	frameLog   zerolog.Logger

	mirror  atomic.Bool
	boost   atomic.Uint64
	latest  atomic.Pointer[[]byte]
	updates chan Update

	// mu guards the loop handles; sessMu guards sess while no loop runs.
	mu      sync.RWMutex
	sessMu  sync.Mutex
	sess    *session
	cmds    chan command
	cancel  context.CancelFunc
	done    chan struct{}
	trainWG sync.WaitGroup
}

// New creates an App. The pipeline is idle until Start.
func New(config Config) *App {
	if config.FPS <= 0 {
		config.FPS = capture.DefaultFPS
	}
	if config.WindowSize <= 0 {
		config.WindowSize = gesture.DefaultWindowSize
	}
	if config.Threshold <= 0 {
		config.Threshold = DefaultThreshold
	}

	a := &App{
		config:     config,
		camera:     config.Camera,
		detector:   config.Detector,
		store:      config.Store,
		classifier: config.Classifier,
		metrics:    config.Metrics,
		log:        config.Logger,
		frameLog:   logging.Sampled(config.Logger),
		updates:    make(chan Update, UpdateBuffer),
		sess:       newSession(config.WindowSize, config.Threshold),
	}
	a.mirror.Store(config.Mirror)
	a.SetBrightnessBoost(config.Brightness)

	return a
}

// do runs fn against the session: on the loop goroutine while it runs,
// otherwise directly under sessMu with a.mu held so no loop can start.
func (a *App) do(fn func(s *session)) {
	for {
		a.mu.RLock()
		cmds, done := a.cmds, a.done
		if cmds == nil || !a.runningLocked() {
			a.sessMu.Lock()
			fn(a.sess)
			a.sessMu.Unlock()
			a.mu.RUnlock()
			return
		}
		a.mu.RUnlock()

		reply := make(chan struct{})
		select {
		case cmds <- func(s *session) { fn(s); close(reply) }:
			<-reply
			return
		case <-done:
			// The loop exited before taking the command; look again.
		}
	}
}

// EnterCollectMode starts staging samples under label.
func (a *App) EnterCollectMode(label string) error {
	var err error
	a.do(func(s *session) { err = s.enterCollect(label) })
	if err == nil {
		a.log.Info().Str("label", label).Msg("collect mode")
	}
	return err
}

// ExitCollectMode returns to prediction. Staged samples are kept.
func (a *App) ExitCollectMode() {
	a.do(func(s *session) { s.exitCollect() })
	a.log.Info().Msg("predict mode")
}

// Mode returns the current pipeline mode.
func (a *App) Mode() Mode {
	var m Mode
	a.do(func(s *session) { m = s.mode })
	return m
}

// Staged returns the number of samples waiting to be persisted.
func (a *App) Staged() int {
	var n int
	a.do(func(s *session) { n = len(s.stagedX) })
	return n
}

// PersistStaged appends the staged samples to the sample store and clears
// the staging buffer. If the store rejects the batch it is put back.
func (a *App) PersistStaged(ctx context.Context) (int, error) {
	var x [][]float64
	var y []string
	a.do(func(s *session) { x, y = s.takeStaged() })

	if len(x) == 0 {
		return 0, nil
	}

	n, err := a.store.Append(ctx, x, y)
	if err != nil {
		a.do(func(s *session) { s.restoreStaged(x, y) })
		a.log.Error().Err(err).Int("samples", len(x)).Msg("failed to persist samples")
		return 0, fmt.Errorf("failed to persist samples: %w", err)
	}

	a.metrics.AddPersisted(n)
	a.metrics.SetStaged(a.Staged())
	a.log.Info().Int("samples", n).Msg("samples persisted")
	return n, nil
}

// Train retrains the classifier on the caller's goroutine and publishes the
// outcome.
func (a *App) Train(ctx context.Context) TrainOutcome {
	outcome := trainOutcome(a.classifier.Train(ctx))
	if !outcome.Success {
		a.log.Warn().Str("message", outcome.Message).Msg("training failed")
	}
	a.publishTrain(outcome)
	return outcome
}

// TrainAsync retrains in the background; the outcome arrives on Updates.
func (a *App) TrainAsync(ctx context.Context) {
	a.trainWG.Add(1)
	go func() {
		defer a.trainWG.Done()
		a.Train(ctx)
	}()
}

func trainOutcome(report gesture.TrainReport, err error) TrainOutcome {
	switch {
	case err == nil:
		return TrainOutcome{
			Success: true,
			Message: report.Message(),
			Samples: report.Samples,
			Classes: report.Classes,
			ModelID: report.ModelID,
		}
	case errors.Is(err, store.ErrNoDataset):
		return TrainOutcome{Message: "Dataset empty."}
	case errors.Is(err, gesture.ErrInsufficientClasses):
		return TrainOutcome{Message: "Need at least 2 different gestures to train."}
	default:
		return TrainOutcome{Message: fmt.Sprintf("Training error: %v", err)}
	}
}

// RemoveLabel deletes every stored sample with label and retrains on what
// remains. On failure the store error is returned alongside the message.
func (a *App) RemoveLabel(ctx context.Context, label string) (bool, string, error) {
	n, err := a.store.RemoveLabel(ctx, label)
	switch {
	case errors.Is(err, store.ErrNoDataset):
		return false, "Database file not found.", err
	case errors.Is(err, store.ErrLabelNotFound):
		return false, fmt.Sprintf("Gesture '%s' not found.", label), err
	case err != nil:
		return false, fmt.Sprintf("Error during removal: %v", err), err
	}

	a.log.Info().Str("label", label).Int("removed", n).Msg("gesture removed")
	outcome := a.Train(ctx)
	return true, fmt.Sprintf("Successfully removed %d samples. %s", n, outcome.Message), nil
}

// Gestures lists stored labels with their sample counts.
func (a *App) Gestures(ctx context.Context) ([]store.LabelCount, error) {
	return a.store.Labels(ctx)
}

// Trained reports whether a model is available.
func (a *App) Trained() bool {
	return a.classifier.Trained()
}

// SetMirror toggles horizontal mirroring of frames.
func (a *App) SetMirror(mirror bool) {
	a.mirror.Store(mirror)
}

// Mirror reports whether frames are mirrored.
func (a *App) Mirror() bool {
	return a.mirror.Load()
}

// SetBrightnessBoost sets the brightness gain, clamped to [1, 4], and
// returns the value applied.
func (a *App) SetBrightnessBoost(factor float64) float64 {
	if math.IsNaN(factor) {
		factor = capture.MinBoost
	}
	factor = capture.ClampBoost(factor)
	a.boost.Store(math.Float64bits(factor))
	return factor
}

// BrightnessBoost returns the current brightness gain.
func (a *App) BrightnessBoost() float64 {
	return math.Float64frombits(a.boost.Load())
}

// Updates returns the channel of frame decisions and training outcomes.
// Frame updates are dropped oldest-first when the reader falls behind.
func (a *App) Updates() <-chan Update {
	return a.updates
}

// LatestFrame returns the most recent annotated frame as JPEG, or nil.
func (a *App) LatestFrame() []byte {
	if p := a.latest.Load(); p != nil {
		return *p
	}
	return nil
}

// Running reports whether the frame loop is active.
func (a *App) Running() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.runningLocked()
}

func (a *App) runningLocked() bool {
	if a.done == nil {
		return false
	}
	select {
	case <-a.done:
		return false
	default:
		return true
	}
}

// Start opens the camera and launches the frame loop. The loop stops when
// ctx is cancelled or Stop is called. Starting a running App is a no-op.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.runningLocked() {
		return nil
	}
	a.clearLoopLocked()

	if err := a.camera.Open(); err != nil {
		return fmt.Errorf("failed to open camera: %w", err)
	}

	loopCtx, cancel := context.WithCancel(ctx)
	a.cmds = make(chan command)
	a.done = make(chan struct{})
	a.cancel = cancel

	go a.run(loopCtx, a.cmds, a.done)

	a.log.Info().Int("fps", a.config.FPS).Msg("pipeline started")
	return nil
}

// Stop halts the frame loop, waits for it to release the camera and
// detector, and waits for background training to finish.
func (a *App) Stop() {
	a.mu.Lock()
	if a.cancel != nil {
		a.cancel()
		<-a.done
		a.clearLoopLocked()
		a.log.Info().Msg("pipeline stopped")
	}
	a.mu.Unlock()

	a.trainWG.Wait()
}

func (a *App) clearLoopLocked() {
	if a.cancel != nil {
		a.cancel()
	}
	a.cmds = nil
	a.done = nil
	a.cancel = nil
}

func (a *App) publishFrame(res FrameResult) {
	a.offer(Update{Frame: &res})
}

func (a *App) publishTrain(outcome TrainOutcome) {
	if !a.offer(Update{Train: &outcome}) {
		a.log.Warn().Str("message", outcome.Message).Msg("training outcome dropped: update queue full")
	}
}

// offer enqueues u, evicting the oldest queued frame when the channel is
// full. Queued training outcomes are never evicted; they are requeued.
func (a *App) offer(u Update) bool {
	for range cap(a.updates) + 1 {
		select {
		case a.updates <- u:
			return true
		default:
		}

		select {
		case old := <-a.updates:
			if old.Train != nil {
				select {
				case a.updates <- old:
				default:
					return false
				}
			}
		default:
		}
	}
	return false
}
