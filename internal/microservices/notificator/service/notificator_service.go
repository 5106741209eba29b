package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/kafka-go"

	"order-desk/internal/common/logger"
	"order-desk/internal/domain"
)

// ErrPoison marks a message that can never be handled; it is dead-lettered, not retried.
var ErrPoison = errors.New("poison message")

// EventHandler receives every decoded order event.
type EventHandler func(ctx context.Context, ev domain.OrderEvent) error

type NotificatorService struct {
	lg     *logger.Logger
	handle EventHandler
}

// NewNotificatorService logs each event. A non-nil handler runs after the log line.
func NewNotificatorService(lg *logger.Logger, handle EventHandler) *NotificatorService {
	return &NotificatorService{lg: lg, handle: handle}
}

func (ns *NotificatorService) Handle(ctx context.Context, body []byte) error {
	var ev domain.OrderEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("%w: %v", ErrPoison, err)
	}
	if !strings.HasPrefix(ev.Type, "order.") {
		return fmt.Errorf("%w: unknown event type %q", ErrPoison, ev.Type)
	}

	fields := map[string]any{"event_id": ev.EventID, "type": ev.Type, "occurred_at": ev.OccurredAt}
	if ev.OrderID != 0 {
		fields["order_id"] = ev.OrderID
		fields["total_cost"] = ev.TotalCost.StringFixed(2)
	}
	if ev.Status != "" {
		fields["status"] = ev.Status
	}
	if ev.Count != 0 {
		fields["count"] = ev.Count
	}
	ns.lg.Info("order_event_received", fields)

	if ns.handle != nil {
		return ns.handle(ctx, ev)
	}
	return nil
}

// ConsumeRabbit acks handled deliveries, dead-letters poison ones and requeues the rest.
// It returns when ctx is done or the delivery channel closes.
func (ns *NotificatorService) ConsumeRabbit(ctx context.Context, msgs <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			err := ns.Handle(ctx, d.Body)
			switch {
			case err == nil:
				_ = d.Ack(false)
			case errors.Is(err, ErrPoison):
				ns.lg.Error("event_dead_lettered", err, map[string]any{"message_id": d.MessageId})
				_ = d.Nack(false, false)
			default:
				ns.lg.Error("event_requeued", err, map[string]any{"message_id": d.MessageId})
				_ = d.Nack(false, !d.Redelivered)
			}
		}
	}
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// ConsumeKafka commits every message after handling. Poison messages are logged and skipped,
// other failures stop the consumer so the group redelivers from the last commit.
func (ns *NotificatorService) ConsumeKafka(ctx context.Context, r messageReader) error {
	for {
		m, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch: %w", err)
		}
		if err := ns.Handle(ctx, m.Value); err != nil {
			if !errors.Is(err, ErrPoison) {
				return err
			}
			ns.lg.Error("event_skipped", err, map[string]any{"partition": m.Partition, "offset": m.Offset})
		}
		if err := r.CommitMessages(ctx, m); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("commit: %w", err)
		}
	}
}
