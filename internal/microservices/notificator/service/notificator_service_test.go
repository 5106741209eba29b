package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"order-desk/internal/common/logger"
	"order-desk/internal/domain"
)

const goodEvent = `{"event_id":"e1","type":"order.created","order_id":7,"status":"pending","total_cost":"30","occurred_at":"2025-06-01T12:00:00Z"}`

type ackRecorder struct {
	acked, nacked, requeued []uint64
}

func (a *ackRecorder) Ack(tag uint64, _ bool) error { a.acked = append(a.acked, tag); return nil }

func (a *ackRecorder) Nack(tag uint64, _ bool, requeue bool) error {
	if requeue {
		a.requeued = append(a.requeued, tag)
	} else {
		a.nacked = append(a.nacked, tag)
	}
	return nil
}

func (a *ackRecorder) Reject(tag uint64, requeue bool) error { return a.Nack(tag, false, requeue) }

func TestHandleLogsEvent(t *testing.T) {
	var buf bytes.Buffer
	var got domain.OrderEvent
	ns := NewNotificatorService(logger.NewWithWriter("notificator", &buf, logger.LevelInfo), func(_ context.Context, ev domain.OrderEvent) error {
		got = ev
		return nil
	})

	require.NoError(t, ns.Handle(context.Background(), []byte(goodEvent)))
	assert.EqualValues(t, 7, got.OrderID)
	assert.Contains(t, buf.String(), `"action":"order_event_received"`)
	assert.Contains(t, buf.String(), `"total_cost":"30.00"`)

	assert.ErrorIs(t, ns.Handle(context.Background(), []byte("{")), ErrPoison)
	assert.ErrorIs(t, ns.Handle(context.Background(), []byte(`{"type":"pizza.baked"}`)), ErrPoison)
}

func TestConsumeRabbitAcksAndDeadLetters(t *testing.T) {
	lg := logger.NewWithWriter("notificator", &bytes.Buffer{}, logger.LevelInfo)
	failOnce := true
	ns := NewNotificatorService(lg, func(_ context.Context, ev domain.OrderEvent) error {
		if ev.EventID == "retry" && failOnce {
			failOnce = false
			return errors.New("downstream busy")
		}
		return nil
	})

	ack := &ackRecorder{}
	msgs := make(chan amqp.Delivery, 4)
	msgs <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte(goodEvent)}
	msgs <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 2, Body: []byte("not json")}
	msgs <- amqp.Delivery{Acknowledger: ack, DeliveryTag: 3, Body: []byte(`{"event_id":"retry","type":"order.cancelled"}`)}
	close(msgs)

	err := ns.ConsumeRabbit(context.Background(), msgs)
	require.Error(t, err, "closed channel ends the consumer")
	assert.Equal(t, []uint64{1}, ack.acked)
	assert.Equal(t, []uint64{2}, ack.nacked)
	assert.Equal(t, []uint64{3}, ack.requeued)
}

type fakeReader struct {
	msgs      []kafka.Message
	committed []int64
	cancel    context.CancelFunc
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	if len(f.msgs) == 0 {
		f.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := f.msgs[0]
	f.msgs = f.msgs[1:]
	return m, nil
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func TestConsumeKafkaCommitsAndSkipsPoison(t *testing.T) {
	var buf bytes.Buffer
	ns := NewNotificatorService(logger.NewWithWriter("notificator", &buf, logger.LevelInfo), nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	r := &fakeReader{cancel: cancel, msgs: []kafka.Message{
		{Offset: 10, Value: []byte(goodEvent)},
		{Offset: 11, Value: []byte("garbage")},
		{Offset: 12, Value: []byte(`{"event_id":"e3","type":"order.expired","count":4}`)},
	}}
	require.NoError(t, ns.ConsumeKafka(ctx, r))
	assert.Equal(t, []int64{10, 11, 12}, r.committed)
	assert.Contains(t, buf.String(), "event_skipped")
	assert.Contains(t, buf.String(), `"count":4`)
}
