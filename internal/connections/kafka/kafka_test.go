package kafka

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-desk/internal/config"
	"order-desk/internal/domain"
)

type memWriter struct{ msgs []kafka.Message }

func (m *memWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	m.msgs = append(m.msgs, msgs...)
	return nil
}

func (m *memWriter) Close() error { return nil }

func TestNewClientTrimsBrokers(t *testing.T) {
	c := NewClient(" k1:9092, ,k2:9092 ")
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Brokers)
	assert.True(t, c.Enabled())
	assert.False(t, NewClient("").Enabled())
}

func TestNewOrderPublisherDisabled(t *testing.T) {
	_, err := NewOrderPublisher(config.KafkaConfig{Topic: "orders"})
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestOrderPublisherKeysByOrder(t *testing.T) {
	w := &memWriter{}
	p := &OrderPublisher{w: w}

	require.NoError(t, p.Publish(context.Background(), domain.OrderEvent{Type: domain.EventOrderCreated, OrderID: 9}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "9", string(w.msgs[0].Key))
	assert.Equal(t, "order.created", string(w.msgs[0].Headers[0].Value))

	var ev domain.OrderEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.EqualValues(t, 9, ev.OrderID)
}
