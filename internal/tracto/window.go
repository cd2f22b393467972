package tracto

// ContextWindow is a fixed-depth FIFO of the most recent signal samples
// for one particle, flattened oldest-to-newest as model input. Each
// particle owns exactly one window; windows are never shared.
type ContextWindow struct {
	depth  int
	width  int
	buf    []float64 // depth*width ring storage
	head   int       // slot holding the oldest entry
	seeded bool
}

// NewContextWindow allocates a window of the given history depth and
// per-sample width. Depth and width must both be positive; the tracker
// validates configuration before constructing windows.
func NewContextWindow(depth, width int) *ContextWindow {
	return &ContextWindow{
		depth: depth,
		width: width,
		buf:   make([]float64, depth*width),
	}
}

// Depth returns the history depth K.
func (w *ContextWindow) Depth() int { return w.depth }

// Width returns the per-sample vector length.
func (w *ContextWindow) Width() int { return w.width }

// InputLength returns the flattened model-input length, depth*width.
func (w *ContextWindow) InputLength() int { return w.depth * w.width }

// Push inserts a sample, evicting the oldest entry once the window is
// full. The very first sample is replicated across the whole depth so
// the first model call sees a well-defined input of consistent shape.
// The sample is copied; the caller may reuse its slice.
func (w *ContextWindow) Push(sample []float64) {
	if !w.seeded {
		for i := 0; i < w.depth; i++ {
			copy(w.buf[i*w.width:(i+1)*w.width], sample)
		}
		w.head = 0
		w.seeded = true
		return
	}
	copy(w.buf[w.head*w.width:(w.head+1)*w.width], sample)
	w.head = (w.head + 1) % w.depth
}

// AsModelInput appends the window contents to dst in oldest-to-newest
// order and returns the extended slice. The ordering is part of the
// predictor contract and is stable across calls.
func (w *ContextWindow) AsModelInput(dst []float64) []float64 {
	for i := 0; i < w.depth; i++ {
		slot := (w.head + i) % w.depth
		dst = append(dst, w.buf[slot*w.width:(slot+1)*w.width]...)
	}
	return dst
}
