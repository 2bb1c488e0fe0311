package events

import "testing"

func TestSubscribeAndEmit(t *testing.T) {
	e := NewEmitter()
	var got Event
	e.Subscribe(EventPhaseTransition, func(ev Event) { got = ev })

	e.Emit(Event{Type: EventPhaseTransition, GameID: 7, Data: map[string]any{"to": "CLOSED"}})

	if got.GameID != 7 || got.Type != EventPhaseTransition {
		t.Fatalf("handler did not receive expected event: %+v", got)
	}
}

func TestEmitIgnoresOtherTypes(t *testing.T) {
	e := NewEmitter()
	called := false
	e.Subscribe(EventTimerWarning, func(ev Event) { called = true })

	e.Emit(Event{Type: EventGameDiscovered, GameID: 1})

	if called {
		t.Fatal("handler for a different event type should not be called")
	}
}

func TestEmitRecoversFromPanickingHandler(t *testing.T) {
	e := NewEmitter()
	e.Subscribe(EventGameExpired, func(ev Event) { panic("boom") })

	secondCalled := false
	e.Subscribe(EventGameExpired, func(ev Event) { secondCalled = true })

	e.Emit(Event{Type: EventGameExpired, GameID: 3})

	if !secondCalled {
		t.Fatal("a panicking handler should not prevent later handlers from running")
	}
}
