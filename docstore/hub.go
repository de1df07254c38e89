package docstore

import (
	"sync"
	"sync/atomic"
)

// =============================================================================
// HUB - Subscriber registry and change fan-out
// =============================================================================

// Hub tracks listeners by path. Stores register subscribers here, collect
// the affected ones while holding their own write lock, read the fresh
// snapshots, release the lock and then Deliver.
type Hub struct {
	mu   sync.Mutex
	next uint64
	subs map[uint64]*Subscriber
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]*Subscriber)}
}

// Subscriber is one registered listener.
type Subscriber struct {
	id     uint64
	path   Path
	fn     Listener
	closed atomic.Bool

	mu        sync.Mutex // serializes deliveries; held while fn runs
	seen      uint64
	delivered bool
}

func (s *Subscriber) Path() Path { return s.path }

// Deliver hands snap to the listener unless the subscriber is closed or has
// already seen a version at least as new. Listeners must not write to the
// store synchronously from inside the callback.
func (s *Subscriber) Deliver(version uint64, snap Snapshot) {
	if s.closed.Load() {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.delivered && version <= s.seen {
		return
	}
	s.seen = version
	s.delivered = true
	s.fn(snap)
}

// Add registers fn for path.
func (h *Hub) Add(path Path, fn Listener) *Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.next++
	s := &Subscriber{id: h.next, path: path, fn: fn}
	h.subs[s.id] = s
	return s
}

// Remove unregisters s. In-flight deliveries finish; later ones are dropped.
func (h *Hub) Remove(s *Subscriber) {
	s.closed.Store(true)
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs, s.id)
}

// Affected returns the subscribers that can observe a write at any of the
// changed paths.
func (h *Hub) Affected(changed ...Path) []*Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()

	var out []*Subscriber
	for _, s := range h.subs {
		for _, p := range changed {
			if Related(s.path, p) {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// Len returns the number of active subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Clear drops every subscriber.
func (h *Hub) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, s := range h.subs {
		s.closed.Store(true)
		delete(h.subs, id)
	}
}

// Pending is a snapshot captured under a store lock, waiting for delivery.
type Pending struct {
	Sub      *Subscriber
	Version  uint64
	Snapshot Snapshot
}

// DeliverAll runs the captured deliveries in order.
func DeliverAll(pending []Pending) {
	for _, p := range pending {
		p.Sub.Deliver(p.Version, p.Snapshot)
	}
}

// UnsubscribeFunc builds an idempotent Unsubscribe for s.
func (h *Hub) UnsubscribeFunc(s *Subscriber) Unsubscribe {
	var once sync.Once
	return func() { once.Do(func() { h.Remove(s) }) }
}
