// Package events carries relay notifications to off-chain consumers. A
// message-sent event is the hand-off point to the relayer that physically
// moves the message; a message-received event confirms a completed delivery.
package events

import (
	"sync"
	"time"

	"github.com/R3E-Network/relay_layer/internal/app/domain/message"
	"github.com/R3E-Network/relay_layer/pkg/logger"
	"github.com/google/uuid"
)

// Type classifies a relay event.
type Type string

const (
	TypeMessageSent     Type = "message.sent"
	TypeMessageReceived Type = "message.received"
)

// Event is one relay notification.
type Event struct {
	ID          string
	Type        Type
	MessageID   string
	SourceChain uint32
	DestChain   uint32
	Nonce       uint64
	Sender      string
	Recipient   []byte
	Timestamp   time.Time
}

// FromMessage builds an event of the given type from a message.
func FromMessage(t Type, msg message.Message) Event {
	return Event{
		ID:          uuid.NewString(),
		Type:        t,
		MessageID:   msg.ID,
		SourceChain: msg.SourceChain,
		DestChain:   msg.DestChain,
		Nonce:       msg.Nonce,
		Sender:      msg.Sender,
		Recipient:   append([]byte(nil), msg.Recipient...),
		Timestamp:   time.Now().UTC(),
	}
}

// Bus fans events out to subscribers. Publish never blocks: a subscriber that
// cannot keep up has events dropped, which is acceptable because the durable
// record lives in the message store, not the notification stream.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]chan Event
	nextSub int
	log     *logger.Logger
}

// NewBus creates an event bus.
func NewBus(log *logger.Logger) *Bus {
	if log == nil {
		log = logger.NewDefault("events")
	}
	return &Bus{
		subs: make(map[int]chan Event),
		log:  log,
	}
}

// Subscribe registers a consumer. The returned cancel function must be called
// to release the subscription; the channel is closed on cancel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}

	b.mu.Lock()
	id := b.nextSub
	b.nextSub++
	ch := make(chan Event, buffer)
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if existing, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(existing)
		}
	}
	return ch, cancel
}

// Publish delivers the event to all current subscribers.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.log.WithField("subscriber", id).
				WithField("event", string(event.Type)).
				Warn("subscriber full, event dropped")
		}
	}
}

// Subscribers returns the current subscriber count.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
