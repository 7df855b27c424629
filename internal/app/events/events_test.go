package events

import (
	"testing"

	"github.com/R3E-Network/relay_layer/internal/app/domain/message"
)

func TestPublishSubscribe(t *testing.T) {
	bus := NewBus(nil)

	feed, cancel := bus.Subscribe(2)
	defer cancel()

	if got := bus.Subscribers(); got != 1 {
		t.Fatalf("expected 1 subscriber, got %d", got)
	}

	msg := message.Message{
		ID:          "m1",
		SourceChain: 1,
		DestChain:   7,
		Nonce:       3,
		Sender:      "alice",
		Recipient:   []byte{0x01},
	}
	bus.Publish(FromMessage(TypeMessageSent, msg))

	event := <-feed
	if event.Type != TypeMessageSent {
		t.Fatalf("expected %s, got %s", TypeMessageSent, event.Type)
	}
	if event.MessageID != "m1" || event.Nonce != 3 || event.SourceChain != 1 || event.DestChain != 7 {
		t.Fatalf("unexpected event: %#v", event)
	}
	if event.ID == "" || event.Timestamp.IsZero() {
		t.Fatalf("expected id and timestamp: %#v", event)
	}
}

func TestPublishDropsWhenFull(t *testing.T) {
	bus := NewBus(nil)

	feed, cancel := bus.Subscribe(1)
	defer cancel()

	// The second publish finds the buffer full and must not block.
	bus.Publish(Event{Type: TypeMessageSent, MessageID: "m1"})
	bus.Publish(Event{Type: TypeMessageSent, MessageID: "m2"})

	event := <-feed
	if event.MessageID != "m1" {
		t.Fatalf("expected first event, got %s", event.MessageID)
	}
	select {
	case event := <-feed:
		t.Fatalf("expected dropped event, got %s", event.MessageID)
	default:
	}
}

func TestCancelRemovesSubscriber(t *testing.T) {
	bus := NewBus(nil)

	_, cancel := bus.Subscribe(1)
	cancel()
	// Cancelling twice is harmless.
	cancel()

	if got := bus.Subscribers(); got != 0 {
		t.Fatalf("expected 0 subscribers, got %d", got)
	}
	bus.Publish(Event{Type: TypeMessageReceived, MessageID: "m1"})
}
