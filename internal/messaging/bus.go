package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/spec-kit/storefront/internal/events"
	"github.com/spec-kit/storefront/internal/observability"
)

// EventBus publishes and consumes domain events on a durable queue. It
// satisfies events.Dispatcher.
type EventBus struct {
	*events.Registry
	client  *Client
	queue   string
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewEventBus declares queue and returns a bus bound to it.
func NewEventBus(client *Client, queue string, logger *zap.Logger, metrics *observability.Metrics) (*EventBus, error) {
	if err := client.DeclareQueue(queue); err != nil {
		return nil, err
	}
	return &EventBus{
		Registry: events.NewRegistry(),
		client:   client,
		queue:    queue,
		logger:   logger,
		metrics:  metrics,
	}, nil
}

// Publish emits the event as a persistent message. No acknowledgement from
// consumers is awaited.
func (b *EventBus) Publish(ctx context.Context, event events.Event) error {
	body, err := encodeRequest(string(event.Type), event)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.queue, amqp.Publishing{
		MessageId:    event.ID,
		Timestamp:    event.Timestamp,
		Type:         string(event.Type),
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

// Run consumes the queue until ctx is done. A closed delivery channel
// returns ErrUnavailable.
// Handler failures are requeued once; a redelivered failure is dropped.
func (b *EventBus) Run(ctx context.Context) error {
	deliveries, err := b.client.Consume(b.queue, false)
	if err != nil {
		return err
	}
	b.logger.Info("event consumer started", zap.String("queue", b.queue))

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				b.logger.Error("event delivery channel closed", zap.String("queue", b.queue))
				return fmt.Errorf("%w: delivery channel closed on %s", ErrUnavailable, b.queue)
			}
			b.handle(ctx, d)
		}
	}
}

func (b *EventBus) handle(ctx context.Context, d amqp.Delivery) {
	req, err := decodeRequest(d.Body)
	var event events.Event
	if err == nil {
		err = json.Unmarshal(req.Data, &event)
	}
	if err != nil {
		b.logger.Warn("dropping malformed event", zap.Error(err), zap.String("message_id", d.MessageId))
		_ = d.Nack(false, false)
		return
	}

	if err := b.Dispatch(ctx, event); err != nil {
		requeue := !d.Redelivered
		b.logger.Error("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.String("event_id", event.ID),
			zap.Bool("requeue", requeue),
			zap.Error(err))
		b.metrics.RecordEvent(string(event.Type), "failed")
		_ = d.Nack(false, requeue)
		return
	}
	b.metrics.RecordEvent(string(event.Type), "consumed")
	_ = d.Ack(false)
}
