package events

import (
	"sync"

	"coinsangjang/internal/logging"
	"coinsangjang/internal/models"
)

// subscriberBuffer bounds each subscriber's queue so one slow consumer can
// never block ingestion.
const subscriberBuffer = 64

// Broadcaster fans saved listing events out to any number of subscribers.
// Single writer, N independent per-subscriber channels; new subscribers see
// only events published after subscribing.
type Broadcaster struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]chan models.ListingEvent
	closed bool
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[int]chan models.ListingEvent)}
}

// Subscribe registers a new subscriber. The returned cancel func must be
// called when the subscriber is done; it closes the channel.
func (b *Broadcaster) Subscribe() (<-chan models.ListingEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan models.ListingEvent, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Publish delivers an event to every current subscriber. A full subscriber
// queue drops the event for that subscriber only.
func (b *Broadcaster) Publish(event models.ListingEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			logging.Warn("[EVENTS] 구독자 %d 버퍼 가득참 - 이벤트 유실 (%s)", id, event.ID)
		}
	}
}

// SubscriberCount returns the number of live subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close shuts down all subscriber channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
