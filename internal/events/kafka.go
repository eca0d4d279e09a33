package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"trackline/internal/logging"
)

// KafkaPublisher writes events to a Kafka topic keyed by track ID so every
// track's transitions land on one partition in order.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *slog.Logger
}

func NewKafkaPublisher(brokers []string, topic string, logger *slog.Logger) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		Async:                  false,
		BatchSize:              1,
		BatchTimeout:           10 * time.Millisecond,
		MaxAttempts:            3,
		AllowAutoTopicCreation: true,
	}
	return &KafkaPublisher{writer: writer, logger: logging.NewComponentLogger(logger, "events")}
}

// Message encodes event as the Kafka message the publisher sends.
func Message(event Event) (kafka.Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(strconv.FormatInt(event.TrackID, 10)),
		Value: payload,
		Time:  event.Timestamp,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
			{Key: "source", Value: []byte(event.Source)},
		},
	}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	message, err := Message(event)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("kafka write %s: %w", event.Type, err)
	}
	p.logger.Debug("event published",
		logging.String("event_id", event.ID),
		logging.String(logging.FieldEventType, string(event.Type)),
		logging.String("topic", p.writer.Topic),
	)
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
