// Package dispatch provides the process-wide action broadcast.
//
// Delivery is synchronous on the delivering goroutine. When no delivery is in
// progress, Dispatch returns after every subscriber has seen the action. An
// action dispatched while another delivery is in progress (from inside a
// subscriber, or from another goroutine) is queued and Dispatch returns at
// once; the delivering caller hands it to subscribers after the current
// action has reached all of them, so every subscriber observes the same
// global order.
//
// A panicking subscriber aborts the delivering caller. Actions still queued
// behind it are dropped and the dispatcher accepts new actions afterwards.
package dispatch

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/florianilch/lockwise/internal/action"
)

// Envelope is a dispatched action with a unique identifier for log correlation.
type Envelope struct {
	ID     uuid.UUID
	Action action.Action
}

// Handler receives dispatched actions.
type Handler func(action.Action)

type subscriber struct {
	id      uint64
	handler Handler
}

// Dispatcher broadcasts actions to subscribers in emission order.
type Dispatcher struct {
	mu     sync.Mutex
	subs   []subscriber
	nextID uint64

	// queue holds actions dispatched while a delivery is in progress.
	queueMu    sync.Mutex
	queue      []Envelope
	delivering bool
}

// New creates an empty Dispatcher.
func New() *Dispatcher {
	return &Dispatcher{}
}

// Subscribe registers h for every action dispatched after this call.
// The returned function removes the subscription; it is safe to call more than once.
func (d *Dispatcher) Subscribe(h Handler) (unsubscribe func()) {
	d.mu.Lock()
	d.nextID++
	id := d.nextID
	d.subs = append(d.subs, subscriber{id: id, handler: h})
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			defer d.mu.Unlock()
			for i, s := range d.subs {
				if s.id == id {
					d.subs = append(d.subs[:i:i], d.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Dispatch delivers a to all current subscribers. If no other delivery is in
// progress it returns once every queued action has been delivered. Otherwise
// a is queued behind the current delivery and Dispatch returns at once.
//
// A panicking subscriber aborts the delivering caller; actions still queued
// are dropped and the Dispatcher accepts new actions afterwards.
func (d *Dispatcher) Dispatch(a action.Action) {
	env := Envelope{ID: uuid.New(), Action: a}

	d.queueMu.Lock()
	d.queue = append(d.queue, env)
	if d.delivering {
		// The caller already delivering drains the queue.
		d.queueMu.Unlock()
		return
	}
	d.delivering = true
	d.queueMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			d.queueMu.Lock()
			dropped := len(d.queue)
			d.queue = nil
			d.delivering = false
			d.queueMu.Unlock()

			slog.Error("subscriber panicked during dispatch", "dropped", dropped, "panic", r)
			panic(r)
		}
	}()

	for {
		d.queueMu.Lock()
		if len(d.queue) == 0 {
			d.delivering = false
			d.queueMu.Unlock()
			return
		}
		next := d.queue[0]
		d.queue = d.queue[1:]
		d.queueMu.Unlock()

		d.deliver(next)
	}
}

func (d *Dispatcher) deliver(env Envelope) {
	d.mu.Lock()
	subs := make([]subscriber, len(d.subs))
	copy(subs, d.subs)
	d.mu.Unlock()

	slog.Debug("dispatching action", "id", env.ID, "type", env.Action.Type(), "subscribers", len(subs))

	for _, s := range subs {
		s.handler(env.Action)
	}
}
