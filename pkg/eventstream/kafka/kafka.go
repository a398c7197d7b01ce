// Package kafka implements eventstream.Publisher on a kafka-go writer.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/loomery/weft/pkg/eventstream"
)

// Config holds connection settings for the Kafka publisher.
type Config struct {
	// Brokers is the bootstrap broker list.
	Brokers []string

	// Topic overrides the default persisted-activity topic when set.
	Topic string
}

// Publisher writes events to a Kafka topic, keyed by user id so one user's
// events stay ordered within a partition.
type Publisher struct {
	writer *kafka.Writer
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

// NewPublisher creates a Kafka-backed publisher.
func NewPublisher(cfg Config, logger *zap.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one kafka broker is required")
	}

	topic := cfg.Topic
	if topic == "" {
		topic = eventstream.TopicActivityPersisted
	}

	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}

	logger.Info("kafka publisher initialized",
		zap.Strings("brokers", cfg.Brokers),
		zap.String("topic", topic),
	)

	return &Publisher{writer: writer, logger: logger}, nil
}

// PublishActivityPersisted emits one event.
func (p *Publisher) PublishActivityPersisted(ctx context.Context, event eventstream.ActivityPersistedEvent) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return eventstream.ErrClosed
	}
	p.mu.Unlock()

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%w: marshaling event: %v", eventstream.ErrPublish, err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.UserID),
		Value: payload,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", eventstream.ErrPublish, err)
	}

	p.logger.Debug("activity persisted event published",
		zap.String("event_id", event.EventID),
		zap.String("activity_id", event.ActivityID),
	)
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	return p.writer.Close()
}

var _ eventstream.Publisher = (*Publisher)(nil)
