// Package notify provides an in-process publish/subscribe hub used to
// push order updates to connected kitchen and dashboard displays.
package notify

import (
	"context"
	"sync"

	"github.com/tabletap/payqr/internal/payqr/domain"
)

// OrderEvent is one broadcast order update.
type OrderEvent struct {
	Type  string       `json:"type"`
	Order domain.Order `json:"order"`
}

const EventOrderUpdated = "order_updated"

// subscriberBuffer bounds how far a slow consumer can lag before events
// are dropped for it.
const subscriberBuffer = 16

// Hub fans order events out to any number of subscribers. Delivery is
// best-effort: a subscriber whose buffer is full misses the event rather
// than blocking the publisher.
type Hub struct {
	mu   sync.RWMutex
	subs map[chan OrderEvent]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan OrderEvent]struct{})}
}

// Subscribe registers a new subscriber and returns its event channel plus
// a cancel function. The channel is closed when cancel is called.
func (h *Hub) Subscribe() (<-chan OrderEvent, func()) {
	ch := make(chan OrderEvent, subscriberBuffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// BroadcastOrderUpdated publishes an order update to every subscriber.
// Never blocks and never fails; it exists to satisfy the notifier
// contract of the confirmation service.
func (h *Hub) BroadcastOrderUpdated(ctx context.Context, order domain.Order) error {
	ev := OrderEvent{Type: EventOrderUpdated, Order: order}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
			// Subscriber is not keeping up; drop the event for it.
		}
	}
	return nil
}

// SubscriberCount returns how many subscribers are currently attached.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
