package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	core "github.com/chainsona/cpop-sub001/core"
	"github.com/redis/go-redis/v9"
)

// DefaultTopic is the stream session events are published to.
const DefaultTopic = "cpop.session_events"

// WatermillPublisher implements core.EventPublisher on top of a Watermill publisher.
type WatermillPublisher struct {
	publisher message.Publisher
	topic     string
}

// NewWatermillPublisher creates a publisher writing JSON session events to topic.
// An empty topic selects DefaultTopic.
func NewWatermillPublisher(publisher message.Publisher, topic string) *WatermillPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	return &WatermillPublisher{publisher: publisher, topic: topic}
}

// NewRedisStreamPublisher builds a Watermill Redis Streams publisher on rdb.
func NewRedisStreamPublisher(rdb redis.UniversalClient, logger watermill.LoggerAdapter) (message.Publisher, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}
	return redisstream.NewPublisher(redisstream.PublisherConfig{Client: rdb}, logger)
}

// PublishSessionEvent publishes e keyed by its event id.
func (p *WatermillPublisher) PublishSessionEvent(ctx context.Context, e core.SessionEvent) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	id := e.ID
	if id == "" {
		id = watermill.NewUUID()
	}
	msg := message.NewMessage(id, payload)
	msg.SetContext(ctx)
	msg.Metadata.Set("event", string(e.Event))

	if err := p.publisher.Publish(p.topic, msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Close releases the underlying publisher.
func (p *WatermillPublisher) Close() error { return p.publisher.Close() }

var _ core.EventPublisher = (*WatermillPublisher)(nil)
