package broadcast

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/safecommute/safecommute-backend-go/internal/logger"
)

// Subscription receives events matching its topics and optional location
type Subscription struct {
	C        <-chan Event
	ch       chan Event
	topics   map[string]bool
	location string
}

func (s *Subscription) matches(e Event) bool {
	// system events reach everyone
	if e.Topic != TopicSystem && !s.topics[e.Topic] {
		return false
	}
	if s.location != "" && e.LocationID != "" && e.LocationID != s.location {
		return false
	}
	return true
}

// Hub is the in-process fan-out used by the SSE stream
type Hub struct {
	mu      sync.RWMutex
	subs    map[*Subscription]struct{}
	buffer  int
	dropped atomic.Uint64
	closed  bool
	log     logger.Logger
}

// NewHub creates a hub whose subscriber channels hold buffer events
func NewHub(buffer int, log logger.Logger) *Hub {
	if buffer < 1 {
		buffer = 16
	}
	return &Hub{
		subs:   make(map[*Subscription]struct{}),
		buffer: buffer,
		log:    log,
	}
}

// Subscribe registers a subscriber. No topics means every topic.
func (h *Hub) Subscribe(topics []string, location string) *Subscription {
	if len(topics) == 0 {
		topics = []string{TopicCrowd, TopicVehicles, TopicAlerts, TopicSystem}
	}
	set := make(map[string]bool, len(topics))
	for _, t := range topics {
		set[t] = true
	}

	ch := make(chan Event, h.buffer)
	sub := &Subscription{C: ch, ch: ch, topics: set, location: location}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return sub
	}
	h.subs[sub] = struct{}{}
	h.log.Debug("Stream client subscribed", "topics", topics, "location", location, "clients", len(h.subs))
	return sub
}

// Unsubscribe removes a subscriber and closes its channel
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[sub]; !ok {
		return
	}
	delete(h.subs, sub)
	close(sub.ch)
}

// Publish implements Publisher. Full subscriber buffers drop the event.
func (h *Hub) Publish(_ context.Context, e Event) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return nil
	}

	for sub := range h.subs {
		if !sub.matches(e) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			h.dropped.Add(1)
		}
	}
	return nil
}

// Clients returns the number of connected subscribers
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Close disconnects every subscriber
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for sub := range h.subs {
		close(sub.ch)
	}
	h.subs = map[*Subscription]struct{}{}
	if n := h.dropped.Load(); n > 0 {
		h.log.Warn("Stream hub closed with dropped events", "dropped", n)
	}
}
