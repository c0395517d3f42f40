// Package realtime fans events out to an owner's open push channels.
//
// A Hub is an explicit service object: construct one per process and share
// it between the request handlers that publish and the transports (SSE,
// WebSocket) that subscribe. Cross-process fan-out is not handled here.
package realtime

import (
	"sync"

	"github.com/google/uuid"

	"github.com/julianstephens/streakd/internal/constants"
	"github.com/julianstephens/streakd/internal/logger"
	"github.com/julianstephens/streakd/internal/metrics"
	"github.com/julianstephens/streakd/internal/models"
)

// Subscription is one open push channel. Transports read Events until Done
// is closed.
type Subscription struct {
	ID      string
	OwnerID string

	events    chan models.Event
	done      chan struct{}
	closeOnce sync.Once
}

// Events delivers published events in order
func (s *Subscription) Events() <-chan models.Event {
	return s.events
}

// Done is closed once the subscription is unsubscribed or evicted
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) close() bool {
	closed := false
	s.closeOnce.Do(func() {
		close(s.done)
		closed = true
	})
	return closed
}

func (s *Subscription) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Hub is a concurrency-safe registry of subscriptions keyed by owner
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[string]*Subscription
	buffer int
	closed bool
}

// NewHub creates a hub whose subscriptions buffer up to buffer events
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = constants.DefaultSubscriberBuffer
	}
	return &Hub{
		subs:   make(map[string]map[string]*Subscription),
		buffer: buffer,
	}
}

// Subscribe opens a new push channel for ownerID. An owner may hold any
// number of subscriptions at once.
func (h *Hub) Subscribe(ownerID string) *Subscription {
	sub := &Subscription{
		ID:      uuid.New().String(),
		OwnerID: ownerID,
		events:  make(chan models.Event, h.buffer),
		done:    make(chan struct{}),
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		sub.close()
		return sub
	}

	owned, ok := h.subs[ownerID]
	if !ok {
		owned = make(map[string]*Subscription)
		h.subs[ownerID] = owned
	}
	owned[sub.ID] = sub
	metrics.SubscriberAdded()
	logger.Debug("Realtime subscriber added", "owner", ownerID, "subscription", sub.ID)

	return sub
}

// Unsubscribe removes sub and closes its Done channel. It is safe to call
// more than once.
func (h *Hub) Unsubscribe(ownerID string, sub *Subscription) {
	if sub == nil {
		return
	}

	h.mu.Lock()
	removed := h.removeLocked(ownerID, sub.ID)
	h.mu.Unlock()

	sub.close()
	if removed {
		metrics.SubscriberRemoved()
		logger.Debug("Realtime subscriber removed", "owner", ownerID, "subscription", sub.ID)
	}
}

func (h *Hub) removeLocked(ownerID, id string) bool {
	owned, ok := h.subs[ownerID]
	if !ok {
		return false
	}
	if _, ok := owned[id]; !ok {
		return false
	}
	delete(owned, id)
	if len(owned) == 0 {
		delete(h.subs, ownerID)
	}
	return true
}

// Publish delivers ev to every open subscription of ownerID. Delivery is
// fire-and-forget: a closed subscription, or one whose buffer is full, is
// evicted instead of blocking the publisher or returning an error.
func (h *Hub) Publish(ownerID string, ev models.Event) {
	h.mu.RLock()
	owned := h.subs[ownerID]
	targets := make([]*Subscription, 0, len(owned))
	for _, sub := range owned {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	metrics.RecordPublish(string(ev.Type))

	for _, sub := range targets {
		if sub.isClosed() {
			h.evict(ownerID, sub, "closed")
			continue
		}
		select {
		case sub.events <- ev:
		default:
			h.evict(ownerID, sub, "slow_consumer")
		}
	}
}

func (h *Hub) evict(ownerID string, sub *Subscription, reason string) {
	metrics.RecordEviction(reason)
	logger.Warn("Evicting realtime subscriber", "owner", ownerID, "subscription", sub.ID, "reason", reason)
	h.Unsubscribe(ownerID, sub)
}

// Count returns the number of open subscriptions for ownerID
func (h *Hub) Count(ownerID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[ownerID])
}

// Close unsubscribes everything and rejects future subscriptions. Called on
// server shutdown so transports can return.
func (h *Hub) Close() {
	h.mu.Lock()
	all := h.subs
	h.subs = make(map[string]map[string]*Subscription)
	h.closed = true
	h.mu.Unlock()

	for _, owned := range all {
		for _, sub := range owned {
			if sub.close() {
				metrics.SubscriberRemoved()
			}
		}
	}
}
