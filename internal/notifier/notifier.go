// Package notifier delivers composed order notifications.
//
// LogSender writes them to the structured log and is the default. KafkaSender
// publishes them to a topic consumed by the messaging worker that talks to
// WhatsApp and email providers.
package notifier

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/xenking/cemention/internal/domain/notify"
	"github.com/xenking/cemention/internal/domain/order"
	"github.com/xenking/cemention/pkg/httpmiddleware"
)

var (
	_ notify.Sender = (*LogSender)(nil)
	_ notify.Sender = (*KafkaSender)(nil)
)

// LogSender logs every message.
type LogSender struct{}

// NewLogSender creates a LogSender.
func NewLogSender() *LogSender {
	return &LogSender{}
}

// Send logs msg with the request scoped logger, which already carries the
// request id.
func (LogSender) Send(ctx context.Context, msg order.Message) error {
	zctx.From(ctx).Info("Order notification",
		zap.String("event", string(msg.Event)),
		zap.String("order_id", msg.OrderID),
		zap.String("recipient", msg.Recipient),
		zap.String("link", msg.Link),
	)
	return nil
}

// MessageWriter is the subset of *kafka.Writer used by KafkaSender.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSender publishes messages as JSON events keyed by order id, so all
// events of one order land on the same partition in order.
type KafkaSender struct {
	w   MessageWriter
	now func() time.Time
}

// NewKafkaWriter returns a writer for topic on brokers.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
}

// NewKafkaSender creates a KafkaSender on w.
func NewKafkaSender(w MessageWriter) *KafkaSender {
	return &KafkaSender{w: w, now: time.Now}
}

// Send publishes msg.
func (s *KafkaSender) Send(ctx context.Context, msg order.Message) error {
	headers := []kafka.Header{
		{Key: "event", Value: []byte(msg.Event)},
	}
	if id := httpmiddleware.RequestIDFromContext(ctx); id != "" {
		headers = append(headers, kafka.Header{Key: "request_id", Value: []byte(id)})
	}
	err := s.w.WriteMessages(ctx, kafka.Message{
		Key:     []byte(msg.OrderID),
		Value:   encodeMessage(msg, s.now().UTC()),
		Headers: headers,
	})
	if err != nil {
		return errors.Wrap(err, "publish notification")
	}
	return nil
}

// Close flushes and closes the writer.
func (s *KafkaSender) Close() error {
	return s.w.Close()
}

func encodeMessage(msg order.Message, at time.Time) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("event")
	e.Str(string(msg.Event))
	e.FieldStart("orderId")
	e.Str(msg.OrderID)
	e.FieldStart("recipient")
	e.Str(msg.Recipient)
	e.FieldStart("text")
	e.Str(msg.Text)
	if msg.Link != "" {
		e.FieldStart("link")
		e.Str(msg.Link)
	}
	e.FieldStart("createdAt")
	e.Str(at.Format(time.RFC3339))
	e.ObjEnd()
	return e.Bytes()
}
