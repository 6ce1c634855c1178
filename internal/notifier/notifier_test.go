package notifier

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/cemention/internal/domain/order"
	"github.com/xenking/cemention/pkg/httpmiddleware"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func decodeFields(t *testing.T, b []byte) map[string]string {
	t.Helper()
	fields := make(map[string]string)
	err := jx.DecodeBytes(b).Obj(func(d *jx.Decoder, key string) error {
		v, err := d.Str()
		if err != nil {
			return err
		}
		fields[key] = v
		return nil
	})
	require.NoError(t, err)
	return fields
}

func TestKafkaSender_Send(t *testing.T) {
	w := &fakeWriter{}
	s := NewKafkaSender(w)
	s.now = func() time.Time { return time.Date(2025, 12, 20, 10, 0, 0, 0, time.UTC) }

	msg := order.Message{
		Event:     order.EventPaymentReceived,
		OrderID:   "a1b2c3d4",
		Recipient: "919823064024",
		Text:      "Payment received ✅\n\"Order\" #A1B2C3D4",
		Link:      "https://wa.me/919823064024?text=x",
	}
	require.NoError(t, s.Send(context.Background(), msg))
	require.Len(t, w.msgs, 1)

	got := w.msgs[0]
	assert.Equal(t, []byte("a1b2c3d4"), got.Key)
	require.Len(t, got.Headers, 1)
	assert.Equal(t, string(order.EventPaymentReceived), string(got.Headers[0].Value))

	fields := decodeFields(t, got.Value)
	assert.Equal(t, string(order.EventPaymentReceived), fields["event"])
	assert.Equal(t, "a1b2c3d4", fields["orderId"])
	assert.Equal(t, msg.Text, fields["text"])
	assert.Equal(t, msg.Link, fields["link"])
	assert.Equal(t, "2025-12-20T10:00:00Z", fields["createdAt"])

	require.NoError(t, s.Close())
	assert.True(t, w.closed)
}

func TestKafkaSender_RequestIDHeader(t *testing.T) {
	w := &fakeWriter{}
	ctx := httpmiddleware.WithRequestID(context.Background(), "req-42")
	require.NoError(t, NewKafkaSender(w).Send(ctx, order.Message{OrderID: "o1", Event: order.EventDelivered}))

	require.Len(t, w.msgs, 1)
	headers := make(map[string]string)
	for _, h := range w.msgs[0].Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, map[string]string{
		"event":      string(order.EventDelivered),
		"request_id": "req-42",
	}, headers)
}

func TestKafkaSender_OmitsEmptyLink(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, NewKafkaSender(w).Send(context.Background(), order.Message{OrderID: "o1"}))
	_, ok := decodeFields(t, w.msgs[0].Value)["link"]
	assert.False(t, ok)
}

func TestKafkaSender_Error(t *testing.T) {
	boom := errors.New("broker down")
	err := NewKafkaSender(&fakeWriter{err: boom}).Send(context.Background(), order.Message{OrderID: "o1"})
	require.ErrorIs(t, err, boom)
}

func TestLogSender(t *testing.T) {
	require.NoError(t, NewLogSender().Send(context.Background(), order.Message{OrderID: "o1"}))
}

func TestNewKafkaWriter(t *testing.T) {
	w := NewKafkaWriter([]string{"localhost:9092"}, "order-notifications")
	assert.Equal(t, "order-notifications", w.Topic)
	assert.Equal(t, "localhost:9092", w.Addr.String())
}
