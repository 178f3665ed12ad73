// Package logring is the host-side structured log sink: a bounded
// in-memory ring of tagged guest log lines with live subscriptions. The
// console file is the durable record; this ring exists so `vmbridge logs`
// can show recent guest log output without touching the guest.
package logring

import (
	"sync"
	"time"
)

// DefaultCapacity bounds the ring when no capacity is configured.
const DefaultCapacity = 2000

// Entry is one guest log line with its origin tag and arrival time.
type Entry struct {
	Time time.Time
	Tag  string
	Line string
}

// Ring is a fixed-capacity circular buffer of entries. Append never fails
// and never blocks on a slow subscriber; oldest entries are evicted first.
type Ring struct {
	mu      sync.Mutex
	entries []Entry
	head    int
	count   int
	subs    []chan Entry
	closed  bool
}

// New creates a ring holding at most capacity entries.
func New(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{entries: make([]Entry, capacity)}
}

// Append records one line under tag. Safe for concurrent use; delivery to
// subscribers is non-blocking.
func (r *Ring) Append(tag, line string) {
	entry := Entry{Time: time.Now(), Tag: tag, Line: line}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	if r.count == len(r.entries) {
		r.head = (r.head + 1) % len(r.entries)
		r.count--
	}
	r.entries[(r.head+r.count)%len(r.entries)] = entry
	r.count++

	// Delivered under the lock: sends are non-blocking, and this keeps an
	// unsubscribe from closing a channel mid-send.
	for _, ch := range r.subs {
		select {
		case ch <- entry:
		default:
		}
	}
	r.mu.Unlock()
}

// Tail returns the most recent n entries in order, or all of them when
// n <= 0 or exceeds the buffered count.
func (r *Ring) Tail(n int) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := r.count
	if n > 0 && n < count {
		count = n
	}
	out := make([]Entry, 0, count)
	start := r.count - count
	for i := start; i < r.count; i++ {
		out = append(out, r.entries[(r.head+i)%len(r.entries)])
	}
	return out
}

// Subscribe returns a channel of future entries, the currently buffered
// entries, and an unsubscribe func that closes the channel.
func (r *Ring) Subscribe() (ch chan Entry, existing []Entry, unsub func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch = make(chan Entry, 100)
	if r.closed {
		close(ch)
		return ch, nil, func() {}
	}
	r.subs = append(r.subs, ch)

	existing = make([]Entry, 0, r.count)
	for i := 0; i < r.count; i++ {
		existing = append(existing, r.entries[(r.head+i)%len(r.entries)])
	}

	var once sync.Once
	unsub = func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			for i, s := range r.subs {
				if s == ch {
					r.subs = append(r.subs[:i], r.subs[i+1:]...)
					close(ch)
					return
				}
			}
		})
	}
	return ch, existing, unsub
}

// Close rejects further appends and closes all subscriber channels.
func (r *Ring) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for _, ch := range r.subs {
		close(ch)
	}
	r.subs = nil
}
