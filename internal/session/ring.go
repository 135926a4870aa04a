package session

import "github.com/vovakirdan/gamehub/internal/core"

// ring keeps the last len(buf) records.
type ring struct {
	buf   []core.ActionRecord
	start int
	n     int
}

func newRing(size int) ring {
	return ring{buf: make([]core.ActionRecord, size)}
}

func (r *ring) push(rec core.ActionRecord) {
	if len(r.buf) == 0 {
		return
	}
	if r.n < len(r.buf) {
		r.buf[(r.start+r.n)%len(r.buf)] = rec
		r.n++
		return
	}
	r.buf[r.start] = rec
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring) items() []core.ActionRecord {
	out := make([]core.ActionRecord, r.n)
	for i := 0; i < r.n; i++ {
		out[i] = r.buf[(r.start+i)%len(r.buf)]
	}
	return out
}
