package events

import (
	"testing"
	"time"
)

func TestHubDeliversToMatchingUser(t *testing.T) {
	hub := NewHub(4, nil)

	alice, stopAlice := hub.Subscribe("alice")
	defer stopAlice()
	bob, stopBob := hub.Subscribe("bob")
	defer stopBob()

	hub.Publish("alice", TypeMoodCreated, map[string]string{"id": "m-1"})

	select {
	case evt := <-alice:
		if evt.Type != TypeMoodCreated {
			t.Fatalf("unexpected event type %s", evt.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("expected event for alice")
	}

	select {
	case evt := <-bob:
		t.Fatalf("bob should not receive alice's event: %+v", evt)
	default:
	}
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub(1, nil)
	ch, stop := hub.Subscribe("alice")
	stop()
	stop()

	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel")
	}
	if hub.Subscribers("alice") != 0 {
		t.Fatal("expected no subscribers after unsubscribe")
	}
	hub.Publish("alice", TypeMoodCreated, nil)
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(1, nil)
	ch, stop := hub.Subscribe("alice")
	defer stop()

	hub.Publish("alice", TypeMoodCreated, 1)
	hub.Publish("alice", TypeMoodCreated, 2)

	evt := <-ch
	if evt.Data != 1 {
		t.Fatalf("expected first event to be kept, got %v", evt.Data)
	}
	select {
	case extra := <-ch:
		t.Fatalf("expected second event to be dropped, got %+v", extra)
	default:
	}
}
