package notify

import (
	"testing"
	"time"
)

func TestNotifierPublishRootChanged(t *testing.T) {
	n := New()

	first, unsubscribeFirst := n.Subscribe()
	second, unsubscribeSecond := n.Subscribe()
	defer unsubscribeSecond()

	if n.Count() != 2 {
		t.Fatalf("Expected 2 subscribers, got %d", n.Count())
	}

	n.PublishRootChanged(CauseAttach, "emu1")

	for _, ch := range []<-chan Event{first, second} {
		select {
		case event := <-ch:
			if event.URI != RootURI || event.Cause != CauseAttach || event.DeviceID != "emu1" {
				t.Errorf("Unexpected event: %+v", event)
			}
			if event.ID == "" || event.Timestamp == 0 {
				t.Errorf("Expected generated id and timestamp: %+v", event)
			}
		case <-time.After(time.Second):
			t.Fatalf("Timed out waiting for event")
		}
	}

	unsubscribeFirst()
	unsubscribeFirst()

	if _, ok := <-first; ok {
		t.Errorf("Expected closed channel after unsubscribe")
	}
	if n.Count() != 1 {
		t.Errorf("Expected 1 subscriber, got %d", n.Count())
	}
}

func TestNotifierDropsForSlowConsumers(t *testing.T) {
	n := New()
	ch, unsubscribe := n.Subscribe()
	defer unsubscribe()

	for range 100 {
		n.PublishRootChanged(CauseRefresh, "")
	}

	if len(ch) != cap(ch) {
		t.Errorf("Expected full buffer of %d, got %d", cap(ch), len(ch))
	}
}

func TestNotifierClose(t *testing.T) {
	n := New()
	ch, unsubscribe := n.Subscribe()

	n.Close()
	unsubscribe()

	if _, ok := <-ch; ok {
		t.Errorf("Expected closed channel")
	}
}
