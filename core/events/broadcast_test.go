package events

import (
	"testing"
	"time"
)

type recordingSink struct {
	events []Event
}

func (r *recordingSink) Emit(evt Event) { r.events = append(r.events, evt) }

func TestBroadcasterFansOut(t *testing.T) {
	sink := &recordingSink{}
	b := NewBroadcaster(1, sink, nil)
	ch, cancel := b.Subscribe()
	defer cancel()

	b.Emit(PolicyRebase{Epoch: 1})
	if len(sink.events) != 1 {
		t.Fatalf("expected sink to receive event, got %d", len(sink.events))
	}
	select {
	case evt := <-ch:
		if evt.(PolicyRebase).Epoch != 1 {
			t.Fatalf("unexpected event %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatalf("subscriber did not receive event")
	}
}

func TestBroadcasterDropsForSlowSubscribers(t *testing.T) {
	b := NewBroadcaster(1)
	ch, cancel := b.Subscribe()
	b.Emit(PolicyRebase{Epoch: 1})
	b.Emit(PolicyRebase{Epoch: 2})
	if got := (<-ch).(PolicyRebase).Epoch; got != 1 {
		t.Fatalf("expected first event retained, got epoch %d", got)
	}
	if b.Subscribers() != 1 {
		t.Fatalf("expected one subscriber")
	}
	cancel()
	cancel()
	if _, ok := <-ch; ok {
		t.Fatalf("expected channel closed after cancel")
	}
	if b.Subscribers() != 0 {
		t.Fatalf("expected subscriber removed")
	}
	b.Emit(PolicyRebase{Epoch: 3})
}
