package gesture

import (
	"context"
	"encoding/gob"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/ayusman/mudra/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDim = 126

// memSource serves a fixed dataset.
type memSource struct {
	ds  *store.Dataset
	err error
}

func (s *memSource) Load(context.Context) (*store.Dataset, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.ds, nil
}

// cluster returns n vectors scattered tightly around a per-label center.
func cluster(rng *rand.Rand, center float64, n int) [][]float64 {
	x := make([][]float64, n)
	for i := range x {
		v := make([]float64, testDim)
		for j := range v {
			v[j] = center + math.Sin(float64(j))*center + rng.NormFloat64()*0.01
		}
		x[i] = v
	}
	return x
}

func twoClassDataset(n int) *store.Dataset {
	rng := rand.New(rand.NewPCG(1, 2))
	ds := &store.Dataset{}
	ds.X = append(ds.X, cluster(rng, 0.2, n)...)
	for range n {
		ds.Y = append(ds.Y, "hello")
	}
	ds.X = append(ds.X, cluster(rng, -0.3, n)...)
	for range n {
		ds.Y = append(ds.Y, "bye")
	}
	return ds
}

func smallForest() ManagerOption {
	cfg := DefaultForestConfig()
	cfg.Trees = 15
	return WithForestConfig(cfg)
}

func TestManager_PredictUntrained(t *testing.T) {
	m := NewManager(&memSource{}, filepath.Join(t.TempDir(), ModelFile))

	label, conf := m.Predict(make([]float64, testDim))

	assert.False(t, m.Trained())
	assert.Nil(t, m.model.Load())
	assert.Equal(t, Unknown, label)
	assert.Equal(t, 0.0, conf)
}

func TestManager_Train(t *testing.T) {
	ctx := context.Background()

	t.Run("missing dataset", func(t *testing.T) {
		m := NewManager(&memSource{err: store.ErrNoDataset}, filepath.Join(t.TempDir(), ModelFile))

		_, err := m.Train(ctx)

		assert.ErrorIs(t, err, store.ErrNoDataset)
		assert.False(t, m.Trained())
	})

	t.Run("one class", func(t *testing.T) {
		ds := &store.Dataset{
			X: [][]float64{{1, 2}, {1, 3}, {2, 2}},
			Y: []string{"hello", "hello", "hello"},
		}
		m := NewManager(&memSource{ds: ds}, filepath.Join(t.TempDir(), ModelFile))

		_, err := m.Train(ctx)

		assert.ErrorIs(t, err, ErrInsufficientClasses)
		assert.False(t, m.Trained())
		_, statErr := os.Stat(m.Path())
		assert.True(t, os.IsNotExist(statErr), "no model file should be written")
	})

	t.Run("two classes", func(t *testing.T) {
		m := NewManager(&memSource{ds: twoClassDataset(10)}, filepath.Join(t.TempDir(), ModelFile), smallForest())

		report, err := m.Train(ctx)

		require.NoError(t, err)
		assert.Equal(t, 20, report.Samples)
		assert.Equal(t, 2, report.Classes)
		assert.NotEmpty(t, report.ModelID)
		assert.Equal(t, "Trained on 20 samples (2 classes).", report.Message())
		assert.True(t, m.Trained())
		assert.Equal(t, []string{"bye", "hello"}, m.model.Load().Classes)
		assert.FileExists(t, m.Path())
	})

	t.Run("cancelled context", func(t *testing.T) {
		m := NewManager(&memSource{ds: twoClassDataset(5)}, filepath.Join(t.TempDir(), ModelFile), smallForest())
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := m.Train(cctx)

		assert.ErrorIs(t, err, context.Canceled)
		assert.False(t, m.Trained())
	})
}

func TestManager_PredictKnownClass(t *testing.T) {
	ds := twoClassDataset(20)
	m := NewManager(&memSource{ds: ds}, filepath.Join(t.TempDir(), ModelFile))

	_, err := m.Train(context.Background())
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(9, 9))
	label, conf := m.Predict(cluster(rng, 0.2, 1)[0])
	assert.Equal(t, "hello", label)
	assert.Greater(t, conf, 0.6)
	assert.LessOrEqual(t, conf, 1.0)

	label, conf = m.Predict(cluster(rng, -0.3, 1)[0])
	assert.Equal(t, "bye", label)
	assert.Greater(t, conf, 0.6)
}

func TestManager_PredictBadInput(t *testing.T) {
	m := NewManager(&memSource{ds: twoClassDataset(5)}, filepath.Join(t.TempDir(), ModelFile), smallForest())
	_, err := m.Train(context.Background())
	require.NoError(t, err)

	tests := []struct {
		name     string
		features []float64
	}{
		{"wrong dimension", []float64{1, 2, 3}},
		{"empty", nil},
		{"nan", func() []float64 {
			v := make([]float64, testDim)
			v[5] = math.NaN()
			return v
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			label, conf := m.Predict(tt.features)
			assert.Equal(t, Unknown, label)
			assert.Equal(t, 0.0, conf)
		})
	}
}

func TestManager_Load(t *testing.T) {
	t.Run("missing file stays untrained", func(t *testing.T) {
		m := NewManager(&memSource{}, filepath.Join(t.TempDir(), ModelFile))

		require.NoError(t, m.Load())
		assert.False(t, m.Trained())
	})

	t.Run("corrupt file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ModelFile)
		require.NoError(t, os.WriteFile(path, []byte("not a model"), 0o644))
		m := NewManager(&memSource{}, path)

		err := m.Load()

		assert.ErrorIs(t, err, ErrModelCorrupt)
		assert.False(t, m.Trained())
		label, conf := m.Predict(make([]float64, testDim))
		assert.Equal(t, Unknown, label)
		assert.Equal(t, 0.0, conf)
	})

	t.Run("model without trees", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ModelFile)
		f, err := os.Create(path)
		require.NoError(t, err)
		require.NoError(t, gob.NewEncoder(f).Encode(&Model{ID: "x", Classes: []string{"a", "b"}, Features: testDim}))
		require.NoError(t, f.Close())
		m := NewManager(&memSource{}, path)

		assert.ErrorIs(t, m.Load(), ErrModelCorrupt)
		assert.False(t, m.Trained())
	})

	t.Run("round trip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), ModelFile)
		trained := NewManager(&memSource{ds: twoClassDataset(10)}, path, smallForest())
		_, err := trained.Train(context.Background())
		require.NoError(t, err)

		loaded := NewManager(&memSource{}, path)
		require.NoError(t, loaded.Load())

		require.True(t, loaded.Trained())
		assert.Equal(t, trained.model.Load().ID, loaded.model.Load().ID)

		x := twoClassDataset(10).X[3]
		wantLabel, wantConf := trained.Predict(x)
		gotLabel, gotConf := loaded.Predict(x)
		assert.Equal(t, wantLabel, gotLabel)
		assert.InDelta(t, wantConf, gotConf, 1e-12)
	})
}

func TestFitForest(t *testing.T) {
	ds := twoClassDataset(15)
	y := make([]int, ds.Len())
	for i, label := range ds.Y {
		if label == "hello" {
			y[i] = 1
		}
	}
	cfg := DefaultForestConfig()
	cfg.Trees = 12
	cfg.MaxDepth = 5

	forest, err := fitForest(context.Background(), ds.X, y, cfg)
	require.NoError(t, err)

	assert.Len(t, forest.Trees, 12)
	assert.Equal(t, 5, forest.MaxDepth)
	assert.Equal(t, 2, forest.Classes)
	assert.Equal(t, testDim, forest.Features)
	assert.Empty(t, forest.Data.X, "training rows are not kept")

	rng := rand.New(rand.NewPCG(3, 4))
	votes := forest.Vote(cluster(rng, 0.2, 1)[0])
	require.Len(t, votes, 2)
	assert.Greater(t, votes[1], votes[0])
}

func TestFitForest_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := fitForest(ctx, [][]float64{{1}, {2}}, []int{0, 1}, DefaultForestConfig())

	assert.ErrorIs(t, err, context.Canceled)
}

func TestManager_EndToEndWithStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := store.New(dir)
	require.NoError(t, err)

	ds := twoClassDataset(20)
	_, err = s.Append(ctx, ds.X[:20], ds.Y[:20])
	require.NoError(t, err)
	_, err = s.Append(ctx, ds.X[20:], ds.Y[20:])
	require.NoError(t, err)

	m := NewManager(s, filepath.Join(dir, ModelFile))
	report, err := m.Train(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Trained on 40 samples (2 classes).", report.Message())

	rng := rand.New(rand.NewPCG(7, 7))
	label, conf := m.Predict(cluster(rng, 0.2, 1)[0])
	assert.Equal(t, "hello", label)
	assert.Greater(t, conf, 0.6)

	_, err = s.RemoveLabel(ctx, "bye")
	require.NoError(t, err)

	_, err = m.Train(ctx)
	assert.ErrorIs(t, err, ErrInsufficientClasses)
	assert.True(t, m.Trained(), "failed retrain keeps the previous model")
}
