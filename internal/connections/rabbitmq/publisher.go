package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	amqp "github.com/rabbitmq/amqp091-go"

	"order-desk/internal/domain"
)

type publisher interface {
	Publish(ctx context.Context, exchange, key string, msg amqp.Publishing) error
}

// OrderPublisher sends order events to the topic exchange under their event type as routing key.
type OrderPublisher struct {
	client publisher
	source string
}

func NewOrderPublisher(c *Client, source string) *OrderPublisher {
	return &OrderPublisher{client: c, source: source}
}

func (p *OrderPublisher) Publish(ctx context.Context, ev domain.OrderEvent) error {
	msg, err := Message(ev, p.source)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, OrdersExchange, ev.Type, msg); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	return nil
}

// Message builds the persistent AMQP message carrying ev.
func Message(ev domain.OrderEvent, source string) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal %s: %w", ev.Type, err)
	}
	return amqp.Publishing{
		DeliveryMode:  amqp.Persistent,
		ContentType:   "application/json",
		MessageId:     ev.EventID,
		CorrelationId: strconv.FormatInt(ev.OrderID, 10),
		Timestamp:     ev.OccurredAt,
		Type:          ev.Type,
		Headers:       amqp.Table{"x-source": source},
		Body:          body,
	}, nil
}
