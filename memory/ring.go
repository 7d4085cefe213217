package memory

// turnRing is a fixed-capacity circular buffer of turns. When full, pushing
// evicts the oldest turn. Not safe for concurrent use; the owning shard
// lock guards it.
type turnRing struct {
	buf   []Turn
	start int
	count int
}

func newTurnRing(capacity int) *turnRing {
	if capacity < 1 {
		capacity = 1
	}
	return &turnRing{buf: make([]Turn, capacity)}
}

// push appends a turn, returning the evicted oldest turn when the ring was
// already full.
func (r *turnRing) push(t Turn) (Turn, bool) {
	if r.count < len(r.buf) {
		r.buf[(r.start+r.count)%len(r.buf)] = t
		r.count++
		return Turn{}, false
	}
	evicted := r.buf[r.start]
	r.buf[r.start] = t
	r.start = (r.start + 1) % len(r.buf)
	return evicted, true
}

// turns returns the buffered turns oldest first.
func (r *turnRing) turns() []Turn {
	out := make([]Turn, 0, r.count)
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(r.start+i)%len(r.buf)])
	}
	return out
}

func (r *turnRing) len() int { return r.count }
