package dispatch

import (
	"reflect"
	"testing"

	"github.com/florianilch/lockwise/internal/action"
)

func TestDispatchOrder(t *testing.T) {
	d := New()

	var got []action.Action
	d.Subscribe(func(a action.Action) { got = append(got, a) })

	want := []action.Action{
		action.DisplayAction{State: action.DisplayFetchingUserInfo},
		action.ScopedKeyAction{Key: "k"},
		action.DisplayAction{State: action.DisplayFinishedFetchingUserInfo},
	}
	for _, a := range want {
		d.Dispatch(a)
	}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestDispatchReachesAllSubscribers(t *testing.T) {
	d := New()

	var order []string
	d.Subscribe(func(action.Action) { order = append(order, "first") })
	d.Subscribe(func(action.Action) { order = append(order, "second") })

	d.Dispatch(action.ScopedKeyAction{Key: "k"})

	if !reflect.DeepEqual(order, []string{"first", "second"}) {
		t.Errorf("got %v", order)
	}
}

func TestUnsubscribe(t *testing.T) {
	d := New()

	count := 0
	unsubscribe := d.Subscribe(func(action.Action) { count++ })

	d.Dispatch(action.ScopedKeyAction{Key: "a"})
	unsubscribe()
	unsubscribe()
	d.Dispatch(action.ScopedKeyAction{Key: "b"})

	if count != 1 {
		t.Errorf("expected 1 delivery, got %d", count)
	}
}

func TestReentrantDispatchIsQueued(t *testing.T) {
	d := New()

	var first, second []action.Action
	d.Subscribe(func(a action.Action) {
		first = append(first, a)
		if _, ok := a.(action.ScopedKeyAction); ok {
			d.Dispatch(action.DisplayAction{State: action.DisplayFinishedFetchingScopedKey})
		}
	})
	d.Subscribe(func(a action.Action) { second = append(second, a) })

	d.Dispatch(action.ScopedKeyAction{Key: "k"})

	want := []action.Action{
		action.ScopedKeyAction{Key: "k"},
		action.DisplayAction{State: action.DisplayFinishedFetchingScopedKey},
	}
	if !reflect.DeepEqual(first, want) {
		t.Errorf("first subscriber got %v, want %v", first, want)
	}
	if !reflect.DeepEqual(second, want) {
		t.Errorf("second subscriber got %v, want %v", second, want)
	}
}

func TestDispatchRecoversAfterSubscriberPanic(t *testing.T) {
	d := New()

	deliveries := 0
	d.Subscribe(func(a action.Action) {
		deliveries++
		if _, ok := a.(action.ScopedKeyAction); ok {
			// Queued behind the panicking delivery, so it is dropped.
			d.Dispatch(action.DisplayAction{State: action.DisplayFailed})
			panic("subscriber failure")
		}
	})

	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected panic to propagate to the dispatching caller")
			}
		}()
		d.Dispatch(action.ScopedKeyAction{Key: "k"})
	}()

	d.Dispatch(action.DisplayAction{State: action.DisplayLoading})

	if deliveries != 2 {
		t.Errorf("expected 2 deliveries, got %d", deliveries)
	}
	if len(d.queue) != 0 || d.delivering {
		t.Errorf("dispatcher left busy: queue=%d delivering=%v", len(d.queue), d.delivering)
	}
}
