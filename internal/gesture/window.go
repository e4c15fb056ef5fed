package gesture

// NoSignal is the window entry for frames without a usable prediction.
const NoSignal = "..."

// DefaultWindowSize is the default number of frames voted over.
const DefaultWindowSize = 10

// Window is a fixed-capacity buffer of the most recent per-frame labels.
// It is not safe for concurrent use.
type Window struct {
	labels []string
	start  int
	size   int
}

// NewWindow creates a window holding at most capacity labels.
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = DefaultWindowSize
	}
	return &Window{labels: make([]string, capacity)}
}

// Push adds a label, evicting the oldest one when full.
func (w *Window) Push(label string) {
	capacity := len(w.labels)
	if w.size < capacity {
		w.labels[(w.start+w.size)%capacity] = label
		w.size++
		return
	}
	w.labels[w.start] = label
	w.start = (w.start + 1) % capacity
}

// Len returns the number of labels held.
func (w *Window) Len() int {
	return w.size
}

// Contents returns the labels oldest first.
func (w *Window) Contents() []string {
	out := make([]string, w.size)
	for i := range out {
		out[i] = w.labels[(w.start+i)%len(w.labels)]
	}
	return out
}

// Vote returns the most frequent label. Among equally frequent labels the
// one that entered the window first wins. An empty window votes NoSignal.
func (w *Window) Vote() string {
	if w.size == 0 {
		return NoSignal
	}

	contents := w.Contents()
	counts := make(map[string]int, len(contents))
	for _, l := range contents {
		counts[l]++
	}

	best, bestCount := NoSignal, 0
	for _, l := range contents {
		if counts[l] > bestCount {
			best, bestCount = l, counts[l]
		}
	}
	return best
}
