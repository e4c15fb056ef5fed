package gesture

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWindow_Vote(t *testing.T) {
	tests := []struct {
		name   string
		pushes []string
		want   string
	}{
		{"empty window", nil, NoSignal},
		{"majority with noise", []string{"A", "A", NoSignal, "A", "B"}, "A"},
		{"majority regardless of position", []string{"B", NoSignal, "A", "A", "A"}, "A"},
		{"nine then one", []string{"A", "A", "A", "A", "A", "A", "A", "A", "A", "B"}, "A"},
		{"tie goes to first entered", []string{"B", "A", "A", "B"}, "B"},
		{"all no signal", []string{NoSignal, NoSignal}, NoSignal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewWindow(DefaultWindowSize)
			for _, p := range tt.pushes {
				w.Push(p)
			}
			assert.Equal(t, tt.want, w.Vote())
		})
	}
}

func TestWindow_EvictsOldest(t *testing.T) {
	w := NewWindow(3)

	for _, l := range []string{"A", "B", "C", "D"} {
		w.Push(l)
	}

	assert.Equal(t, 3, w.Len())
	assert.Equal(t, []string{"B", "C", "D"}, w.Contents())
}

func TestWindow_VoteAfterEviction(t *testing.T) {
	w := NewWindow(DefaultWindowSize)

	for range 10 {
		w.Push("A")
	}
	for range 6 {
		w.Push("B")
	}

	assert.Equal(t, DefaultWindowSize, w.Len())
	assert.Equal(t, "B", w.Vote())
}

func TestNewWindow_InvalidCapacity(t *testing.T) {
	w := NewWindow(0)
	for range DefaultWindowSize + 3 {
		w.Push("A")
	}

	assert.Equal(t, DefaultWindowSize, w.Len())
}
