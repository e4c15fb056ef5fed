// Package gesture provides classifier training, prediction, and temporal
// smoothing of per-frame gesture predictions.
package gesture

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/mudra/internal/metrics"
	"github.com/ayusman/mudra/internal/store"
	"github.com/google/uuid"
	randomforest "github.com/malaschitz/randomForest"
	"github.com/rs/zerolog"
)

// ModelFile is the default model file name inside the data directory.
const ModelFile = "words_model.gob"

// Unknown is the label returned when no prediction can be made.
const Unknown = "unknown"

var (
	// ErrInsufficientClasses is returned when the dataset has fewer than two labels.
	ErrInsufficientClasses = errors.New("need at least 2 different gestures to train")
	// ErrModelCorrupt is returned when the persisted model cannot be decoded.
	ErrModelCorrupt = errors.New("model file is corrupt")
)

// Source supplies the training dataset.
type Source interface {
	Load(ctx context.Context) (*store.Dataset, error)
}

// Model is a trained random forest classifier. Forest class index i
// corresponds to Classes[i].
type Model struct {
	ID        string
	Classes   []string
	Features  int
	Forest    *randomforest.Forest
	Samples   int
	TrainedAt time.Time
}

// Proba returns the averaged class distribution for x, indexed like Classes.
func (m *Model) Proba(x []float64) ([]float64, error) {
	if len(x) != m.Features {
		return nil, fmt.Errorf("expected %d features, got %d", m.Features, len(x))
	}
	for i, v := range x {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("feature %d is not finite", i)
		}
	}
	if m.Forest == nil || len(m.Forest.Trees) == 0 {
		return nil, errors.New("model has no trees")
	}

	proba := m.Forest.Vote(x)
	if len(proba) != len(m.Classes) {
		return nil, fmt.Errorf("forest voted over %d classes, model has %d", len(proba), len(m.Classes))
	}
	return proba, nil
}

// Predict returns the most probable class for x and its probability.
// Ties go to the class listed first.
func (m *Model) Predict(x []float64) (string, float64, error) {
	proba, err := m.Proba(x)
	if err != nil {
		return Unknown, 0, err
	}
	best := 0
	for c := range proba {
		if proba[c] > proba[best] {
			best = c
		}
	}
	return m.Classes[best], proba[best], nil
}

// TrainReport describes a successful training run.
type TrainReport struct {
	Samples  int
	Classes  int
	ModelID  string
	Duration time.Duration
}

// Message returns the user-facing summary of the run.
func (r TrainReport) Message() string {
	return fmt.Sprintf("Trained on %d samples (%d classes).", r.Samples, r.Classes)
}

// Manager trains, persists, and serves the gesture classifier. Predict is
// safe to call concurrently with Train; a retrain replaces the model
// wholesale.
type Manager struct {
	source  Source
	path    string
	config  ForestConfig
	log     zerolog.Logger
	metrics *metrics.Metrics

	model   atomic.Pointer[Model]
	trainMu sync.Mutex
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithForestConfig overrides the forest hyperparameters.
func WithForestConfig(cfg ForestConfig) ManagerOption {
	return func(m *Manager) { m.config = cfg }
}

// WithLogger sets the logger used for training and inference events.
func WithLogger(l zerolog.Logger) ManagerOption {
	return func(m *Manager) { m.log = l }
}

// WithMetrics sets the metrics sink for training runs.
func WithMetrics(mt *metrics.Metrics) ManagerOption {
	return func(m *Manager) { m.metrics = mt }
}

// NewManager creates an untrained Manager that reads samples from source and
// persists the model at modelPath.
func NewManager(source Source, modelPath string, opts ...ManagerOption) *Manager {
	m := &Manager{
		source: source,
		path:   modelPath,
		config: DefaultForestConfig(),
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Path returns the model file path.
func (m *Manager) Path() string {
	return m.path
}

// Trained reports whether a model is available for prediction.
func (m *Manager) Trained() bool {
	return m.model.Load() != nil
}

// Train fits a new model on the full dataset, persists it, and makes it the
// active model. Concurrent calls are serialized.
func (m *Manager) Train(ctx context.Context) (TrainReport, error) {
	m.trainMu.Lock()
	defer m.trainMu.Unlock()

	start := time.Now()
	report, err := m.train(ctx)
	if err != nil {
		m.metrics.ObserveTraining(metrics.StatusFailure, time.Since(start), 0)
		return TrainReport{}, err
	}
	report.Duration = time.Since(start)
	m.metrics.ObserveTraining(metrics.StatusSuccess, report.Duration, report.Samples)
	m.metrics.SetModelLoaded(true)

	m.log.Info().
		Str("model", report.ModelID).
		Int("samples", report.Samples).
		Int("classes", report.Classes).
		Dur("duration", report.Duration).
		Msg("classifier trained")

	return report, nil
}

func (m *Manager) train(ctx context.Context) (TrainReport, error) {
	ds, err := m.source.Load(ctx)
	if err != nil {
		return TrainReport{}, err
	}
	if ds.Len() == 0 {
		return TrainReport{}, store.ErrNoDataset
	}

	classes := ds.Classes()
	if len(classes) < 2 {
		return TrainReport{}, ErrInsufficientClasses
	}
	sort.Strings(classes)

	index := make(map[string]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	y := make([]int, ds.Len())
	for i, label := range ds.Y {
		y[i] = index[label]
	}

	forest, err := fitForest(ctx, ds.X, y, m.config)
	if err != nil {
		return TrainReport{}, fmt.Errorf("failed to fit classifier: %w", err)
	}

	model := &Model{
		ID:        uuid.New().String(),
		Classes:   classes,
		Features:  ds.Dim(),
		Forest:    forest,
		Samples:   ds.Len(),
		TrainedAt: time.Now(),
	}

	if err := m.save(model); err != nil {
		return TrainReport{}, err
	}
	m.model.Store(model)

	return TrainReport{
		Samples: model.Samples,
		Classes: len(classes),
		ModelID: model.ID,
	}, nil
}

// Predict classifies a single feature vector. It never fails: without a
// model, or on any inference error, it returns (Unknown, 0).
func (m *Manager) Predict(features []float64) (label string, confidence float64) {
	model := m.model.Load()
	if model == nil {
		return Unknown, 0
	}

	defer func() {
		if r := recover(); r != nil {
			m.log.Error().Interface("panic", r).Msg("prediction failed")
			label, confidence = Unknown, 0
		}
	}()

	label, confidence, err := model.Predict(features)
	if err != nil {
		m.log.Debug().Err(err).Msg("prediction failed")
		return Unknown, 0
	}
	return label, confidence
}

// Load reads a previously persisted model. A missing file leaves the manager
// untrained without error; an unreadable one returns ErrModelCorrupt and also
// leaves it untrained.
func (m *Manager) Load() error {
	f, err := os.Open(m.path)
	if errors.Is(err, os.ErrNotExist) {
		m.log.Debug().Str("path", m.path).Msg("no saved model")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open model: %w", err)
	}
	defer f.Close()

	var model Model
	if err := gob.NewDecoder(f).Decode(&model); err != nil {
		m.model.Store(nil)
		return fmt.Errorf("%w: %v", ErrModelCorrupt, err)
	}
	if err := model.validate(); err != nil {
		m.model.Store(nil)
		return fmt.Errorf("%w: %v", ErrModelCorrupt, err)
	}

	m.model.Store(&model)
	m.metrics.SetModelLoaded(true)
	m.log.Info().Str("model", model.ID).Int("classes", len(model.Classes)).Msg("model loaded")
	return nil
}

// validate checks the structural consistency of a decoded model.
func (model *Model) validate() error {
	if len(model.Classes) < 2 {
		return fmt.Errorf("model has %d classes", len(model.Classes))
	}
	if model.Features <= 0 {
		return errors.New("model has no features")
	}
	if model.Forest == nil || len(model.Forest.Trees) == 0 {
		return errors.New("model has no trees")
	}
	if model.Forest.Classes != len(model.Classes) {
		return fmt.Errorf("forest has %d classes, model has %d", model.Forest.Classes, len(model.Classes))
	}
	if model.Forest.Features != model.Features {
		return fmt.Errorf("forest has %d features, model has %d", model.Forest.Features, model.Features)
	}
	return nil
}

// save writes the model to a temporary file and renames it into place.
func (m *Manager) save(model *Model) (err error) {
	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}

	f, err := os.CreateTemp(dir, filepath.Base(m.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create model file: %w", err)
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			os.Remove(tmp)
		}
	}()

	if err := gob.NewEncoder(f).Encode(model); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode model: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync model: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close model: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("failed to replace model: %w", err)
	}
	return nil
}
