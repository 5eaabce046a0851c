package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"

	"github.com/safecommute/safecommute-backend-go/internal/logger"
)

func receive(t *testing.T, sub *Subscription) (Event, bool) {
	t.Helper()
	select {
	case e, ok := <-sub.C:
		return e, ok
	case <-time.After(100 * time.Millisecond):
		return Event{}, false
	}
}

func TestHubTopicAndLocationFilter(t *testing.T) {
	hub := NewHub(4, logger.Nop())
	defer hub.Close()

	crowdOnly := hub.Subscribe([]string{TopicCrowd}, "")
	central := hub.Subscribe([]string{TopicCrowd}, "central")
	alerts := hub.Subscribe([]string{TopicAlerts}, "")

	ctx := context.Background()
	hub.Publish(ctx, Event{Topic: TopicCrowd, Type: EventCrowdUpdate, LocationID: "airport"})

	if e, ok := receive(t, crowdOnly); !ok || e.LocationID != "airport" {
		t.Errorf("crowd subscriber got %+v, %v", e, ok)
	}
	if _, ok := receive(t, central); ok {
		t.Error("location-filtered subscriber received another location's event")
	}
	if _, ok := receive(t, alerts); ok {
		t.Error("alerts subscriber received a crowd event")
	}

	hub.Publish(ctx, Event{Topic: TopicSystem, Type: EventHeartbeat})
	for _, sub := range []*Subscription{crowdOnly, central, alerts} {
		if e, ok := receive(t, sub); !ok || e.Type != EventHeartbeat {
			t.Errorf("system event not delivered to every subscriber: %+v", e)
		}
	}
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	hub := NewHub(1, logger.Nop())
	sub := hub.Subscribe(nil, "")

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := hub.Publish(ctx, Event{Topic: TopicCrowd, Type: EventCrowdUpdate}); err != nil {
			t.Fatalf("Publish() error = %v", err)
		}
	}
	if got := hub.dropped.Load(); got != 2 {
		t.Errorf("dropped = %d, want 2", got)
	}

	hub.Unsubscribe(sub)
	if hub.Clients() != 0 {
		t.Errorf("Clients() = %d after unsubscribe", hub.Clients())
	}
	hub.Close()
}

func TestHubCloseEndsSubscriptions(t *testing.T) {
	hub := NewHub(1, logger.Nop())
	sub := hub.Subscribe(nil, "")
	hub.Close()

	if _, ok := <-sub.C; ok {
		t.Error("subscription channel still open after Close")
	}
	// unsubscribe after close is a no-op
	hub.Unsubscribe(sub)
}

type failing struct{ err error }

func (f failing) Publish(context.Context, Event) error { return f.err }

func TestMultiPublishesToAll(t *testing.T) {
	hub := NewHub(1, logger.Nop())
	defer hub.Close()
	sub := hub.Subscribe(nil, "")

	boom := errors.New("boom")
	m := Multi{failing{err: boom}, nil, hub}
	if err := m.Publish(context.Background(), Event{Topic: TopicAlerts, Type: EventNewAlert}); !errors.Is(err, boom) {
		t.Errorf("Multi.Publish() error = %v, want boom", err)
	}
	if _, ok := receive(t, sub); !ok {
		t.Error("hub after failing publisher did not receive the event")
	}
}

func TestKafkaPublisherSendsJSON(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var e Event
		if err := json.Unmarshal(val, &e); err != nil {
			return err
		}
		if e.Type != EventCrowdUpdate || e.LocationID != "central" {
			return errors.New("unexpected event payload")
		}
		return nil
	})
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	pub := NewKafkaPublisherWithProducer(producer, "safecommute.events", logger.Nop())
	ctx := context.Background()

	if err := pub.Publish(ctx, Event{Topic: TopicCrowd, Type: EventCrowdUpdate, LocationID: "central"}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if err := pub.Publish(ctx, Event{Topic: TopicCrowd, Type: EventCrowdUpdate}); err == nil {
		t.Error("expected error when the broker rejects the message")
	}
	if err := pub.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestHeartbeatStopsWithContext(t *testing.T) {
	hub := NewHub(4, logger.Nop())
	defer hub.Close()
	sub := hub.Subscribe([]string{TopicSystem}, "")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Heartbeat(ctx, hub, 10*time.Millisecond, time.Now)
		close(done)
	}()

	select {
	case e := <-sub.C:
		if e.Type != EventHeartbeat {
			t.Errorf("event type = %s, want %s", e.Type, EventHeartbeat)
		}
	case <-time.After(time.Second):
		t.Fatal("no heartbeat within 1s")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Heartbeat did not return after cancel")
	}
}
