package live

import (
	"encoding/json"
	"testing"
	"time"
)

func TestRegisterAndBroadcast(t *testing.T) {
	h := NewHub()

	c1 := &Client{ID: "s1", Send: make(chan []byte, 16)}
	c2 := &Client{ID: "s2", Send: make(chan []byte, 16)}

	h.Register(c1)
	h.Register(c2)

	h.Broadcast(RoundEvent{Type: EventRoundCompleted, PlayerHash: "abc123", Level: 4, Score: 310, Passed: true})

	for _, c := range []*Client{c1, c2} {
		select {
		case data := <-c.Send:
			var got RoundEvent
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if got.Type != EventRoundCompleted || got.Score != 310 || !got.Passed {
				t.Fatalf("unexpected event: %+v", got)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("%s did not receive event", c.ID)
		}
	}
}

func TestUnregisterClosesSend(t *testing.T) {
	h := NewHub()

	c := &Client{ID: "s1", Send: make(chan []byte, 16)}
	h.Register(c)
	h.Unregister("s1")

	if _, ok := <-c.Send; ok {
		t.Fatal("Send should be closed after Unregister")
	}
	if h.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", h.Len())
	}

	// Unregistered subscribers see nothing.
	h.Broadcast(RoundEvent{Type: EventRoundAbandoned})
}

func TestUnregisterNonexistent(t *testing.T) {
	h := NewHub()
	// Should not panic
	h.Unregister("nonexistent")
}

func TestBroadcastDropsWhenFull(t *testing.T) {
	h := NewHub()

	// Channel with capacity 1
	c := &Client{ID: "s1", Send: make(chan []byte, 1)}
	h.Register(c)

	// Fill the channel
	c.Send <- []byte("filler")

	// This should not block — event dropped
	h.Broadcast(RoundEvent{Type: EventRoundCompleted})

	data := <-c.Send
	if string(data) != "filler" {
		t.Fatalf("expected filler, got: %s", data)
	}

	select {
	case <-c.Send:
		t.Fatal("should be empty after draining filler")
	default:
		// expected
	}
}
