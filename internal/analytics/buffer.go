package analytics

import "time"

// Sample is one raw flow observation feeding every derived view.
type Sample struct {
	At              time.Time `json:"at"`
	QueueCount      int       `json:"queueCount"`
	WaitMinutes     int       `json:"waitMinutes"`
	CapacityPercent int       `json:"capacityPercent"`
}

// sampleRing is an append-only, time-ordered, capacity-bounded sample
// sequence. Once full, each append evicts exactly the oldest entry.
type sampleRing struct {
	buf  []Sample
	head int
	size int
}

func newSampleRing(capacity int) *sampleRing {
	if capacity <= 0 {
		capacity = 1
	}
	return &sampleRing{buf: make([]Sample, capacity)}
}

func (r *sampleRing) Append(s Sample) {
	if r.size < len(r.buf) {
		r.buf[(r.head+r.size)%len(r.buf)] = s
		r.size++
		return
	}
	r.buf[r.head] = s
	r.head = (r.head + 1) % len(r.buf)
}

func (r *sampleRing) Len() int { return r.size }

// Snapshot copies the buffer oldest-first. Readers work on the copy so a
// concurrent append-plus-evict is never observable half-done.
func (r *sampleRing) Snapshot() []Sample {
	out := make([]Sample, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.buf[(r.head+i)%len(r.buf)]
	}
	return out
}
