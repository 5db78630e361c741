package eventbus

import (
	"testing"
)

func TestPublishFansOut(t *testing.T) {
	b := New()
	ch1, unsub1 := b.Subscribe(4)
	ch2, unsub2 := b.Subscribe(4)
	defer unsub1()
	defer unsub2()

	b.Publish(Event{Type: EventNotificationSent, Data: "n1"})

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case e := <-ch:
			if e.Type != EventNotificationSent || e.Data != "n1" {
				t.Fatalf("subscriber %d got %+v", i, e)
			}
			if e.Time.IsZero() {
				t.Fatalf("subscriber %d: Time not stamped", i)
			}
		default:
			t.Fatalf("subscriber %d received nothing", i)
		}
	}
}

func TestSlowSubscriberDropsEvents(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(2)
	defer unsub()

	for i := 0; i < 5; i++ {
		b.Publish(Event{Type: EventItemOverdue})
	}
	if got := len(ch); got != 2 {
		t.Fatalf("buffered events = %d, want 2 (excess dropped)", got)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(1)
	unsub()
	unsub() // idempotent

	// The channel is closed and no longer receives.
	if _, open := <-ch; open {
		t.Fatal("channel still open after unsubscribe")
	}
	b.Publish(Event{Type: EventItemStatusChanged}) // must not panic
}

func TestSubscribeBufferFloor(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(0)
	defer unsub()
	if cap(ch) == 0 {
		t.Fatal("zero buffer must be bumped to a usable default")
	}
}
