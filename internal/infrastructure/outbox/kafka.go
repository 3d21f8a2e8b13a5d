package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	domoutbox "github.com/Zhima-Mochi/shopfast/internal/domain/outbox"
	"github.com/Zhima-Mochi/shopfast/internal/observability"
)

// Envelope is the wire format for events published to Kafka.
type Envelope struct {
	EventID      string          `json:"event_id"`
	EventType    string          `json:"event_type"`
	EventVersion int             `json:"event_version"`
	OccurredAt   time.Time       `json:"occurred_at"`
	Producer     string          `json:"producer"`
	Payload      json.RawMessage `json:"payload"`
}

// NewEnvelope wraps a domain event for external consumers.
func NewEnvelope(producer string, e domoutbox.Event) (Envelope, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:      uuid.NewString(),
		EventType:    e.EventName(),
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     producer,
		Payload:      payload,
	}, nil
}

// KafkaPublisher forwards domain events to a Kafka topic so consumers outside
// the process can observe order lifecycle changes. Writes are asynchronous;
// delivery errors are logged, not surfaced, since the in-process bus remains
// the source of truth for local subscribers.
type KafkaPublisher struct {
	w        *kafkago.Writer
	producer string
	log      observability.Logger
}

func NewKafkaPublisher(brokers []string, topic, producer string, logger observability.Logger) *KafkaPublisher {
	if logger == nil {
		logger = observability.NopLogger()
	}
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
		Async:        true,
	}
	p := &KafkaPublisher{
		w:        w,
		producer: producer,
		log:      logger.With(observability.F("component", "kafka_publisher")),
	}
	w.Completion = func(messages []kafkago.Message, err error) {
		if err != nil {
			p.log.Warn("kafka_write_failed",
				observability.F("messages", len(messages)),
				observability.F("error", err.Error()),
			)
		}
	}
	return p
}

func (p *KafkaPublisher) Publish(ctx context.Context, e domoutbox.Event) error {
	if e == nil {
		return nil
	}
	env, err := NewEnvelope(p.producer, e)
	if err != nil {
		return err
	}
	value, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(env.EventID),
		Value: value,
		Time:  env.OccurredAt,
		Headers: []kafkago.Header{
			{Key: "x-event-type", Value: []byte(env.EventType)},
			{Key: "x-event-version", Value: []byte("1")},
		},
	})
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }

// Fanout returns a publisher that forwards each event to every target,
// returning the first error while still attempting the rest.
func Fanout(targets ...domoutbox.Publisher) domoutbox.Publisher {
	return domoutbox.PublisherFunc(func(ctx context.Context, e domoutbox.Event) error {
		var first error
		for _, t := range targets {
			if t == nil {
				continue
			}
			if err := t.Publish(ctx, e); err != nil && first == nil {
				first = err
			}
		}
		return first
	})
}
