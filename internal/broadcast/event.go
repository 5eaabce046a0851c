// Package broadcast fans domain events out to stream subscribers and,
// optionally, to a Kafka topic.
package broadcast

import (
	"context"
	"time"
)

// Topics a subscriber can follow
const (
	TopicCrowd    = "crowd"
	TopicVehicles = "vehicles"
	TopicAlerts   = "alerts"
	TopicSystem   = "system"
)

// Event types
const (
	EventCrowdUpdate        = "crowdUpdate"
	EventCriticalCrowd      = "criticalCrowdAlert"
	EventVehicleUpdate      = "vehicleUpdate"
	EventNewAlert           = "newAlert"
	EventAlertStatusUpdate  = "alertStatusUpdate"
	EventEmergencyBroadcast = "emergency-broadcast"
	EventHeartbeat          = "system-heartbeat"
)

// Event is a single message delivered to subscribers
type Event struct {
	Topic      string      `json:"topic"`
	Type       string      `json:"type"`
	LocationID string      `json:"locationId,omitempty"`
	Data       interface{} `json:"data"`
	Timestamp  time.Time   `json:"timestamp"`
}

// Publisher delivers events. Publish must not block on slow consumers.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Multi publishes to every publisher and returns the first error
type Multi []Publisher

// Publish implements Publisher
func (m Multi) Publish(ctx context.Context, e Event) error {
	var first error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Nop drops every event
type Nop struct{}

// Publish implements Publisher
func (Nop) Publish(context.Context, Event) error { return nil }

// Heartbeat publishes a system heartbeat every interval until ctx is done
func Heartbeat(ctx context.Context, pub Publisher, interval time.Duration, clock func() time.Time) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := clock()
			_ = pub.Publish(ctx, Event{
				Topic:     TopicSystem,
				Type:      EventHeartbeat,
				Data:      map[string]interface{}{"timestamp": now},
				Timestamp: now,
			})
		}
	}
}
