// internal/stream/history.go
package stream

// DefaultCapacity is the number of samples kept per channel.
const DefaultCapacity = 50

// History is a fixed-size ring buffer of distance samples.
// Once full, each append evicts the oldest sample.
type History struct {
	buf   []uint16
	start int
	n     int
}

// NewHistory creates an empty history holding at most capacity samples.
func NewHistory(capacity int) *History {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &History{buf: make([]uint16, capacity)}
}

// Append adds v at the tail, evicting the head when full.
func (h *History) Append(v uint16) {
	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = v
		h.n++
		return
	}
	h.buf[h.start] = v
	h.start = (h.start + 1) % len(h.buf)
}

// Len returns the number of samples held.
func (h *History) Len() int { return h.n }

// Cap returns the capacity.
func (h *History) Cap() int { return len(h.buf) }

// At returns the i-th oldest sample.
func (h *History) At(i int) uint16 {
	return h.buf[(h.start+i)%len(h.buf)]
}

// Last returns the newest sample; ok is false when empty.
func (h *History) Last() (v uint16, ok bool) {
	if h.n == 0 {
		return 0, false
	}
	return h.At(h.n - 1), true
}

// Snapshot copies the samples oldest first.
func (h *History) Snapshot() []uint16 {
	out := make([]uint16, h.n)
	for i := range out {
		out[i] = h.At(i)
	}
	return out
}

// Reset drops all samples.
func (h *History) Reset() {
	h.start = 0
	h.n = 0
}
