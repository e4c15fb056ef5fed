package detector

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const epsilon = 1e-9

func TestHandLandmarks_Normalize(t *testing.T) {
	t.Run("wrist at origin after normalization", func(t *testing.T) {
		hand := HandLandmarks{
			Handedness: "Right",
			Score:      0.9,
		}
		hand.Points[Wrist] = Point3D{X: 100.0, Y: 200.0, Z: 50.0}
		for i := 1; i < NumLandmarks; i++ {
			hand.Points[i] = Point3D{
				X: 100.0 + float64(i)*10.0,
				Y: 200.0 + float64(i)*5.0,
				Z: 50.0 + float64(i)*2.0,
			}
		}

		normalized := hand.Normalize()

		if math.Abs(normalized.Points[Wrist].X) > epsilon ||
			math.Abs(normalized.Points[Wrist].Y) > epsilon ||
			math.Abs(normalized.Points[Wrist].Z) > epsilon {
			t.Errorf("expected wrist at origin, got %+v", normalized.Points[Wrist])
		}
		if normalized.Handedness != hand.Handedness {
			t.Errorf("expected handedness %s, got %s", hand.Handedness, normalized.Handedness)
		}
		if normalized.Score != hand.Score {
			t.Errorf("expected score %f, got %f", hand.Score, normalized.Score)
		}
	})

	t.Run("farthest landmark is at distance 1.0", func(t *testing.T) {
		hand := OpenPalmLandmarks()
		normalized := hand.Normalize()

		maxDist := 0.0
		for _, p := range normalized.Points {
			maxDist = math.Max(maxDist, norm3D(p))
		}
		if math.Abs(maxDist-1.0) > epsilon {
			t.Errorf("expected max distance 1.0, got %f", maxDist)
		}
	})

	t.Run("nil hand returns nil", func(t *testing.T) {
		var hand *HandLandmarks
		if hand.Normalize() != nil {
			t.Error("expected nil result for nil input")
		}
	})

	t.Run("degenerate hand keeps translated coordinates", func(t *testing.T) {
		hand := HandLandmarks{}
		for i := range hand.Points {
			hand.Points[i] = Point3D{X: 0.5, Y: 0.5, Z: 0}
		}
		hand.Points[IndexTip] = Point3D{X: 0.50005, Y: 0.5, Z: 0}

		normalized := hand.Normalize()

		// scale 5e-5 is clamped to 1.0, so the offset survives unscaled
		if math.Abs(normalized.Points[IndexTip].X-0.00005) > 1e-12 {
			t.Errorf("expected unscaled offset, got %g", normalized.Points[IndexTip].X)
		}
	})
}

func TestFeatures(t *testing.T) {
	t.Run("absent hand yields zeros of fixed length", func(t *testing.T) {
		var hand *HandLandmarks
		f := hand.Features()
		require.Len(t, f, HandFeatureLen)
		assert.True(t, IsZero(f))
	})

	t.Run("present hand has fixed length", func(t *testing.T) {
		hand := ThumbsUpLandmarks()
		assert.Len(t, hand.Features(), HandFeatureLen)
	})

	t.Run("layout is x y z per landmark", func(t *testing.T) {
		hand := OpenPalmLandmarks()
		n := hand.Normalize()
		f := hand.Features()
		for i, p := range n.Points {
			assert.InDelta(t, p.X, f[3*i], epsilon)
			assert.InDelta(t, p.Y, f[3*i+1], epsilon)
			assert.InDelta(t, p.Z, f[3*i+2], epsilon)
		}
	})

	t.Run("translation invariant", func(t *testing.T) {
		hand := ThumbsUpLandmarks()
		shifted := Translated(hand, Point3D{X: 3.25, Y: -1.5, Z: 0.75})

		a := hand.Features()
		b := shifted.Features()
		require.Len(t, b, len(a))
		for i := range a {
			assert.InDelta(t, a[i], b[i], 1e-9, "component %d", i)
		}
	})

	t.Run("scale invariant", func(t *testing.T) {
		hand := OpenPalmLandmarks()
		scaled := hand
		for i := range scaled.Points {
			scaled.Points[i].X *= 4
			scaled.Points[i].Y *= 4
			scaled.Points[i].Z *= 4
		}

		a := hand.Features()
		b := scaled.Features()
		for i := range a {
			assert.InDelta(t, a[i], b[i], 1e-9, "component %d", i)
		}
	})
}

func TestFeatureVector(t *testing.T) {
	palm := OpenPalmLandmarks()
	thumbs := ThumbsUpLandmarks()

	tests := []struct {
		name      string
		left      *HandLandmarks
		right     *HandLandmarks
		wantZeroL bool
		wantZeroR bool
	}{
		{name: "no hands", wantZeroL: true, wantZeroR: true},
		{name: "left only", left: &palm, wantZeroR: true},
		{name: "right only", right: &thumbs, wantZeroL: true},
		{name: "both hands", left: &palm, right: &thumbs},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := FeatureVector(tt.left, tt.right)
			require.Len(t, v, FeatureLen)
			assert.Equal(t, tt.wantZeroL, IsZero(v[:HandFeatureLen]))
			assert.Equal(t, tt.wantZeroR, IsZero(v[HandFeatureLen:]))
		})
	}
}

func TestSplitHands(t *testing.T) {
	left := OpenPalmLandmarks()
	left.Handedness = "Left"
	right := ThumbsUpLandmarks()

	t.Run("assigns by handedness", func(t *testing.T) {
		hands := splitHands([]HandLandmarks{right, left})
		require.NotNil(t, hands.Left)
		require.NotNil(t, hands.Right)
		assert.Equal(t, "Left", hands.Left.Handedness)
		assert.Equal(t, "Right", hands.Right.Handedness)
	})

	t.Run("unlabeled fills free slot", func(t *testing.T) {
		unknown := OpenPalmLandmarks()
		unknown.Handedness = ""
		hands := splitHands([]HandLandmarks{right, unknown})
		require.NotNil(t, hands.Left)
		assert.Equal(t, "", hands.Left.Handedness)
	})

	t.Run("empty input", func(t *testing.T) {
		assert.True(t, splitHands(nil).Empty())
	})
}

func TestMockDetector(t *testing.T) {
	t.Run("returns empty hands by default", func(t *testing.T) {
		mock := NewMockDetector()

		hands, err := mock.Detect(nil)

		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		if !hands.Empty() {
			t.Errorf("expected no hands, got %+v", hands)
		}
	})

	t.Run("returns configured hands", func(t *testing.T) {
		mock := NewMockDetector()
		right := ThumbsUpLandmarks()
		mock.SetHands(Hands{Right: &right})

		hands, err := mock.Detect(nil)

		require.NoError(t, err)
		assert.Nil(t, hands.Left)
		assert.Equal(t, &right, hands.Right)
		assert.Equal(t, 1, mock.Calls())
	})

	t.Run("returns configured error", func(t *testing.T) {
		mock := NewMockDetector()
		expectedErr := errors.New("detection failed")
		mock.SetError(expectedErr)

		hands, err := mock.Detect(nil)

		if !errors.Is(err, expectedErr) {
			t.Errorf("expected error %v, got %v", expectedErr, err)
		}
		if !hands.Empty() {
			t.Errorf("expected no hands when error is set, got %+v", hands)
		}
	})

	t.Run("Close marks closed", func(t *testing.T) {
		mock := NewMockDetector()
		require.NoError(t, mock.Close())
		assert.True(t, mock.Closed())
	})

	t.Run("implements Detector interface", func(t *testing.T) {
		var _ Detector = (*MockDetector)(nil)
		var _ Detector = (*MediaPipeDetector)(nil)
	})
}

func TestNewMediaPipeDetector_MissingScript(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ScriptPath = "/nonexistent/mediapipe_service.py"

	_, err := NewMediaPipeDetector(cfg)
	assert.Error(t, err)
}

func TestNewMediaPipeDetector_LazyStart(t *testing.T) {
	script := filepath.Join(t.TempDir(), "mediapipe_service.py")
	require.NoError(t, os.WriteFile(script, []byte("import sys\n"), 0o644))

	cfg := DefaultConfig()
	cfg.ScriptPath = script

	d, err := NewMediaPipeDetector(cfg, WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	assert.Nil(t, d.svc, "no process before the first frame")
	assert.NoError(t, d.Close())
}

func TestThumbsUpLandmarks(t *testing.T) {
	landmarks := ThumbsUpLandmarks()

	if landmarks.Handedness != "Right" {
		t.Errorf("expected handedness Right, got %s", landmarks.Handedness)
	}
	if landmarks.Points[ThumbTip].Y >= landmarks.Points[ThumbMCP].Y {
		t.Error("thumb tip should be above thumb MCP (lower Y value)")
	}
	indexExtension := landmarks.Points[IndexMCP].Y - landmarks.Points[IndexTip].Y
	if indexExtension > 0.15 {
		t.Errorf("index finger appears extended (extension: %f), should be curled", indexExtension)
	}
}

func TestOpenPalmLandmarks(t *testing.T) {
	landmarks := OpenPalmLandmarks()

	minExtension := 0.2
	for _, f := range [][2]int{{IndexMCP, IndexTip}, {MiddleMCP, MiddleTip}, {RingMCP, RingTip}, {PinkyMCP, PinkyTip}} {
		ext := landmarks.Points[f[0]].Y - landmarks.Points[f[1]].Y
		if ext < minExtension {
			t.Errorf("finger %d not extended enough (extension: %f)", f[1], ext)
		}
	}
}

func TestPresetsAreDistinguishable(t *testing.T) {
	palm := OpenPalmLandmarks()
	thumbs := ThumbsUpLandmarks()

	a := palm.Features()
	b := thumbs.Features()

	var dist float64
	for i := range a {
		d := a[i] - b[i]
		dist += d * d
	}
	assert.Greater(t, math.Sqrt(dist), 0.5)
}
