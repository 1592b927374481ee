package goRecovery

import (
	"context"
	"errors"
	"testing"
)

func drain(ch <-chan Event) []Event {
	var out []Event
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestSubscribeReceivesLifecycle(t *testing.T) {
	p := newFakeProvider()
	c := startController(t, newTestEngine(t, p, nil, nil))
	events, unsubscribe := c.Subscribe(0)
	defer unsubscribe()

	if err := c.SelectMethod(MethodEmail); err != nil {
		t.Fatal(err)
	}
	if err := c.SubmitEmail(context.Background(), "user@x.com"); err != nil {
		t.Fatal(err)
	}

	got := drain(events)
	wantKinds := []EventKind{
		EventStageChanged,
		EventBusyChanged,
		EventBusyChanged,
		EventStageChanged,
		EventExited,
	}
	if len(got) != len(wantKinds) {
		t.Fatalf("expected %d events, got %d: %+v", len(wantKinds), len(got), got)
	}
	for i, kind := range wantKinds {
		if got[i].Kind != kind {
			t.Fatalf("event %d: expected %v, got %v", i, kind, got[i].Kind)
		}
		if got[i].SessionID != c.SessionID() {
			t.Fatalf("event %d carries session %q", i, got[i].SessionID)
		}
	}
	if !got[1].Busy || got[2].Busy {
		t.Fatal("busy events out of order")
	}
	if got[3].From != StageEmailEntry || got[3].To != StageExited {
		t.Fatalf("unexpected exit edge %v -> %v", got[3].From, got[3].To)
	}
	if got[4].Outcome != OutcomeEmailDispatched {
		t.Fatalf("unexpected exit outcome %v", got[4].Outcome)
	}
}

func TestErrorEventsCarryCause(t *testing.T) {
	p := newFakeProvider()
	p.resetErr = errors.New("user not found")
	c := startController(t, newTestEngine(t, p, nil, nil))
	events, unsubscribe := c.Subscribe(32)
	defer unsubscribe()

	if err := c.SelectMethod(MethodEmail); err != nil {
		t.Fatal(err)
	}
	_ = c.SubmitEmail(context.Background(), "")
	_ = c.SubmitEmail(context.Background(), "user@x.com")

	var errs []error
	for _, ev := range drain(events) {
		if ev.Kind == EventError {
			errs = append(errs, ev.Err)
		}
	}
	if len(errs) != 2 {
		t.Fatalf("expected 2 error events, got %d", len(errs))
	}
	if !IsValidation(errs[0]) || !IsProvider(errs[1]) {
		t.Fatalf("unexpected error kinds: %v, %v", errs[0], errs[1])
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := newEventHub()
	ch, unsubscribe := hub.subscribe(1)

	hub.publish(Event{Kind: EventBusyChanged})
	hub.publish(Event{Kind: EventBusyChanged})
	hub.publish(Event{Kind: EventBusyChanged})

	if hub.Dropped() != 2 {
		t.Fatalf("expected 2 dropped, got %d", hub.Dropped())
	}
	unsubscribe()
	unsubscribe()

	if _, ok := <-ch; !ok {
		t.Fatal("buffered event lost on unsubscribe")
	}
	if _, ok := <-ch; ok {
		t.Fatal("expected channel closed after unsubscribe")
	}
	hub.publish(Event{Kind: EventExited})
}
