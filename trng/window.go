package trng

// Window is a fixed-size circular buffer of samples with a running sum.
// The sum always equals the total of the buffered samples, and the cursor
// always points at the oldest one.
type Window struct {
	samples []uint16
	sum     uint32
	oldest  int
}

// NewWindow returns an empty window of the given size.
func NewWindow(size int) *Window {
	if size <= 0 {
		panic("trng: window size must be positive")
	}
	return &Window{samples: make([]uint16, size)}
}

// Reset replaces the contents with samples, recomputes the sum and points the
// cursor at the first slot. len(samples) must equal Size.
func (w *Window) Reset(samples []uint16) {
	if len(samples) != len(w.samples) {
		panic("trng: window reset with wrong sample count")
	}
	copy(w.samples, samples)
	w.sum = 0
	for _, s := range w.samples {
		w.sum += uint32(s)
	}
	w.oldest = 0
}

// Push evicts the oldest sample, stores v in its slot, advances the cursor
// and returns the evicted sample.
func (w *Window) Push(v uint16) uint16 {
	evicted := w.samples[w.oldest]
	w.sum -= uint32(evicted)
	w.sum += uint32(v)
	w.samples[w.oldest] = v
	w.oldest = (w.oldest + 1) % len(w.samples)
	return evicted
}

// Average returns the truncated mean of the buffered samples.
func (w *Window) Average() uint32 {
	return w.sum / uint32(len(w.samples))
}

// Sum returns the running sum.
func (w *Window) Sum() uint32 { return w.sum }

// Size returns the number of slots.
func (w *Window) Size() int { return len(w.samples) }

// Oldest returns the slot index that the next Push evicts.
func (w *Window) Oldest() int { return w.oldest }

// Samples returns a copy of the slots in storage order.
func (w *Window) Samples() []uint16 {
	out := make([]uint16, len(w.samples))
	copy(out, w.samples)
	return out
}
