// Package observable provides a multicast value stream that remembers its
// latest value.
package observable

import "sync"

// Relay multicasts published values to subscribers. A new subscriber is
// handed the most recent value (if any) immediately, then every later one.
// A Relay never completes or fails.
//
// Handlers run on the publishing goroutine. They may unsubscribe and call
// Value, but must not Publish to or Subscribe on the same Relay.
type Relay[T any] struct {
	// deliverMu orders replay-on-subscribe against publication so a
	// subscriber never misses or duplicates a value.
	deliverMu sync.Mutex

	mu     sync.Mutex
	value  T
	has    bool
	subs   map[uint64]func(T)
	order  []uint64
	nextID uint64

	equal func(a, b T) bool
}

// NewRelay creates a Relay with no initial value.
func NewRelay[T any]() *Relay[T] {
	return &Relay[T]{subs: make(map[uint64]func(T))}
}

// NewDistinctRelay creates a Relay that drops a published value equal to the
// last one it delivered.
func NewDistinctRelay[T comparable]() *Relay[T] {
	r := NewRelay[T]()
	r.equal = func(a, b T) bool { return a == b }
	return r
}

// Publish stores v as the latest value and delivers it to every subscriber.
// It reports whether v was delivered.
func (r *Relay[T]) Publish(v T) bool {
	r.deliverMu.Lock()
	defer r.deliverMu.Unlock()

	r.mu.Lock()
	if r.has && r.equal != nil && r.equal(r.value, v) {
		r.mu.Unlock()
		return false
	}
	r.value = v
	r.has = true
	handlers := r.snapshot()
	r.mu.Unlock()

	for _, h := range handlers {
		h(v)
	}
	return true
}

// Subscribe registers fn and, if the relay holds a value, calls fn with it
// before returning. The returned function stops delivery.
func (r *Relay[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	r.deliverMu.Lock()
	defer r.deliverMu.Unlock()

	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.subs[id] = fn
	r.order = append(r.order, id)
	value, has := r.value, r.has
	r.mu.Unlock()

	if has {
		fn(value)
	}

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := r.subs[id]; !ok {
			return
		}
		delete(r.subs, id)
		for i, sid := range r.order {
			if sid == id {
				r.order = append(r.order[:i:i], r.order[i+1:]...)
				break
			}
		}
	}
}

// Reset forgets the latest value without notifying subscribers. New
// subscribers receive nothing until the next Publish, which is delivered even
// on a distinct relay.
func (r *Relay[T]) Reset() {
	r.deliverMu.Lock()
	defer r.deliverMu.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	var zero T
	r.value = zero
	r.has = false
}

// Value returns the latest value and whether one has been published.
func (r *Relay[T]) Value() (T, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.value, r.has
}

// snapshot returns the handlers in subscription order. Callers hold r.mu.
func (r *Relay[T]) snapshot() []func(T) {
	handlers := make([]func(T), 0, len(r.order))
	for _, id := range r.order {
		handlers = append(handlers, r.subs[id])
	}
	return handlers
}
