// Bounded ring buffer for progress frames. The websocket hub buffers per
// subscriber through one of these so a slow client never blocks the pusher;
// when the ring is full the oldest frame is dropped, since only the newest
// progress matters to a UI.
package queue

import (
	"sync"

	"furnace/model"
)

type Ring struct {
	mu    sync.Mutex
	items []model.Msg
	start int
	size  int
}

// NewRing returns a ring holding at most capacity frames.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring{items: make([]model.Msg, capacity)}
}

// Push appends a frame, evicting the oldest one when full.
func (r *Ring) Push(msg model.Msg) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.size == len(r.items) {
		r.items[r.start] = msg
		r.start = (r.start + 1) % len(r.items)
		return
	}
	r.items[(r.start+r.size)%len(r.items)] = msg
	r.size++
}

// Pop removes and returns the oldest frame.
func (r *Ring) Pop() (model.Msg, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.size == 0 {
		return model.Msg{}, false
	}
	msg := r.items[r.start]
	r.start = (r.start + 1) % len(r.items)
	r.size--
	return msg, true
}

// Len returns the number of buffered frames.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.size
}

// IsEmpty reports whether the ring holds no frames.
func (r *Ring) IsEmpty() bool { return r.Len() == 0 }
