package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rookgm/storefront/internal/models"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Consumer reads order events within consumer group
type Consumer struct {
	reader *kafka.Reader
	topic  string
}

// NewConsumer creates new Consumer
func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers: brokers,
			Topic:   topic,
			GroupID: groupID,
		}),
		topic: topic,
	}
}

// ConsumeOrderCompleted calls handler for every event and commits it after handler succeeds.
// Delivery is at least once.
func (c *Consumer) ConsumeOrderCompleted(ctx context.Context, handler func(ctx context.Context, event models.OrderCompletedEvent) error) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			return err
		}

		if err := c.process(ctx, msg, handler); err != nil {
			return err
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			return err
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message, handler func(ctx context.Context, event models.OrderCompletedEvent) error) error {
	parent := otel.GetTextMapPropagator().Extract(ctx, headerCarrier{msg: &msg})

	ctx, span := tracer.Start(parent, "process "+c.topic, trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	var event models.OrderCompletedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		// malformed message is skipped and committed
		span.RecordError(err)
		return nil
	}

	if err := handler(ctx, event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("handle order %s: %w", event.OrderID, err)
	}

	return nil
}

// Close closes reader
func (c *Consumer) Close() error {
	return c.reader.Close()
}
