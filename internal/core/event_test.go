package core

import "testing"

func TestObserversEmitInSubscriptionOrder(t *testing.T) {
	var obs Observers
	var got []string

	obs.Subscribe(ObserverFunc(func(ev Event) { got = append(got, "a:"+ev.Kind.String()) }))
	unsubscribe := obs.Subscribe(ObserverFunc(func(ev Event) { got = append(got, "b:"+ev.Kind.String()) }))
	obs.Subscribe(ObserverFunc(func(ev Event) { got = append(got, "c:"+ev.Kind.String()) }))

	obs.Emit(Event{Kind: EventStarted})
	unsubscribe()
	unsubscribe()
	obs.Emit(Event{Kind: EventStopped})

	want := []string{"a:started", "b:started", "c:started", "a:stopped", "c:stopped"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestEventKindString(t *testing.T) {
	if EventRoomCreated.String() != "room_created" {
		t.Fatalf("unexpected name %q", EventRoomCreated.String())
	}
	if EventKind(99).String() != "unknown" {
		t.Fatal("expected unknown for out of range kind")
	}
}
