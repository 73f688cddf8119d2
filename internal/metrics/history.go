package metrics

// History is a bounded FIFO of samples. When full, adding a sample drops the oldest.
type History struct {
	buf   []Sample
	start int
	n     int
}

func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{buf: make([]Sample, capacity)}
}

func (h *History) Cap() int { return len(h.buf) }

func (h *History) Len() int { return h.n }

func (h *History) Add(s Sample) {
	if h.n < len(h.buf) {
		h.buf[(h.start+h.n)%len(h.buf)] = s
		h.n++
		return
	}
	h.buf[h.start] = s
	h.start = (h.start + 1) % len(h.buf)
}

// Last returns up to k most recent samples, oldest first.
func (h *History) Last(k int) []Sample {
	k = max(0, min(k, h.n))
	out := make([]Sample, k)
	for i := 0; i < k; i++ {
		out[i] = h.buf[(h.start+h.n-k+i)%len(h.buf)]
	}
	return out
}

// All returns a copy of every retained sample, oldest first.
func (h *History) All() []Sample {
	return h.Last(h.n)
}

func (h *History) Clear() {
	h.start, h.n = 0, 0
}
