package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rookgm/storefront/internal/models"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TopicOrderCompleted receives one event per completed order
const TopicOrderCompleted = "order.completed"

var tracer = otel.Tracer("storefront/messaging")

// messageWriter is implemented by *kafka.Writer
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes order events
type Producer struct {
	writer messageWriter
	topic  string
}

// NewProducer creates new Producer writing to topic
func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		topic: topic,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			AllowAutoTopicCreation: true,
			BatchTimeout:           100 * time.Millisecond,
		},
	}
}

// PublishOrderCompleted publishes event keyed by order id
func (p *Producer) PublishOrderCompleted(ctx context.Context, event models.OrderCompletedEvent) error {
	return p.publish(ctx, event.OrderID, event)
}

func (p *Producer) publish(ctx context.Context, key string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
	}

	ctx, span := tracer.Start(ctx, "send "+p.topic, trace.WithSpanKind(trace.SpanKindProducer))
	defer span.End()

	otel.GetTextMapPropagator().Inject(ctx, headerCarrier{msg: &msg})

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

// Close flushes pending messages
func (p *Producer) Close() error {
	return p.writer.Close()
}
