package store

import "sync"

// ringCapacity bounds how many failed audit writes are retained in
// memory before the oldest are discarded.
const ringCapacity = 1000

// Ring is a fixed-capacity overwrite buffer for access-log entries
// whose database write failed. It trades the oldest entries for
// bounded memory under a sustained outage.
type Ring struct {
	mu      sync.Mutex
	entries []AccessLog
	head    int
	full    bool
}

// NewRing builds a ring holding at most capacity entries.
func NewRing(capacity int) *Ring {
	return &Ring{entries: make([]AccessLog, capacity)}
}

// Push retains an entry, evicting the oldest when full.
func (r *Ring) Push(a AccessLog) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[r.head] = a
	r.head = (r.head + 1) % len(r.entries)
	if r.head == 0 {
		r.full = true
	}
}

// Len reports how many entries are currently retained.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.full {
		return len(r.entries)
	}
	return r.head
}

// Drain returns the retained entries oldest first and empties the ring.
func (r *Ring) Drain() []AccessLog {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []AccessLog
	if r.full {
		out = append(out, r.entries[r.head:]...)
	}
	out = append(out, r.entries[:r.head]...)
	r.head = 0
	r.full = false
	return out
}
