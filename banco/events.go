package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/taldoflemis/trattoria/cassa"
	"github.com/taldoflemis/trattoria/pacchetto/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const orderPlacedType = "order.placed"

// orderEvent is the envelope written to the broker.
type orderEvent struct {
	EventID    string            `json:"event_id"`
	Type       string            `json:"type"`
	OccurredAt time.Time         `json:"occurred_at"`
	Order      cassa.OrderPlaced `json:"order"`
}

func newOrderEvent(order cassa.OrderPlaced, now time.Time) orderEvent {
	return orderEvent{
		EventID:    uuid.NewString(),
		Type:       orderPlacedType,
		OccurredAt: now.UTC(),
		Order:      order,
	}
}

// NATSOrderPublisher writes order-placed events to a JetStream stream, one
// subject per order.
type NATSOrderPublisher struct {
	js      jetstream.JetStream
	stream  string
	subject string
}

var _ cassa.OrderPublisher = (*NATSOrderPublisher)(nil)

func NewNATSOrderPublisher(ctx context.Context, nc *nats.Conn, stream, subject string) (*NATSOrderPublisher, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create jetstream context", slog.Any("err", err))
		return nil, err
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     stream,
		Subjects: []string{subject + ".>"},
		MaxAge:   7 * 24 * time.Hour,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create stream", slog.String("stream", stream), slog.Any("err", err))
		return nil, err
	}

	return &NATSOrderPublisher{js: js, stream: stream, subject: subject}, nil
}

func (n *NATSOrderPublisher) PublishPlaced(ctx context.Context, order cassa.OrderPlaced) error {
	ctx, span := tracer.Start(ctx, "NATSOrderPublisher.PublishPlaced", trace.WithAttributes(
		attribute.Int64("cassa.order.id", order.OrderID),
	))
	defer span.End()

	event := newOrderEvent(order, time.Now())
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode order event: %w", err)
	}

	msg := &nats.Msg{
		Subject: fmt.Sprintf("%s.%d", n.subject, order.OrderID),
		Header:  nats.Header{},
		Data:    data,
	}
	telemetry.InjectContextToNatsMsg(ctx, msg)

	_, err = n.js.PublishMsg(ctx, msg, jetstream.WithMsgID(event.EventID))
	if err != nil {
		slog.ErrorContext(ctx, "failed to publish order event", slog.Any("err", err))
		span.SetStatus(codes.Error, "failed to publish order event")
		span.RecordError(err)
		return err
	}

	slog.DebugContext(ctx, "published order event", slog.Int64("order-id", order.OrderID))
	return nil
}

// RelayToFeed streams newly placed orders from JetStream into feed until ctx
// is done, so every replica's staff screens see every order.
func (n *NATSOrderPublisher) RelayToFeed(ctx context.Context, feed *LiveFeed) error {
	consumer, err := n.js.OrderedConsumer(ctx, n.stream, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{n.subject + ".>"},
		DeliverPolicy:  jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return fmt.Errorf("create ordered consumer: %w", err)
	}

	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		msgCtx := telemetry.GetContextFromJetstreamMsg(ctx, msg)

		var event orderEvent
		if err := json.Unmarshal(msg.Data(), &event); err != nil {
			slog.WarnContext(msgCtx, "skipping unreadable order event", slog.Any("err", err))
			return
		}
		_ = feed.PublishPlaced(msgCtx, event.Order)
	})
	if err != nil {
		return fmt.Errorf("consume order events: %w", err)
	}

	<-ctx.Done()
	consumeCtx.Stop()
	return nil
}

// AMQPOrderPublisher writes order-placed events to a topic exchange with the
// routing key "order.placed".
type AMQPOrderPublisher struct {
	mu       sync.Mutex
	ch       *amqp.Channel
	exchange string
}

var _ cassa.OrderPublisher = (*AMQPOrderPublisher)(nil)

func NewAMQPOrderPublisher(conn *amqp.Connection, exchange string) (*AMQPOrderPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return &AMQPOrderPublisher{ch: ch, exchange: exchange}, nil
}

func (a *AMQPOrderPublisher) PublishPlaced(ctx context.Context, order cassa.OrderPlaced) error {
	ctx, span := tracer.Start(ctx, "AMQPOrderPublisher.PublishPlaced", trace.WithAttributes(
		attribute.Int64("cassa.order.id", order.OrderID),
	))
	defer span.End()

	event := newOrderEvent(order, time.Now())
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode order event: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	err = a.ch.PublishWithContext(ctx,
		a.exchange,      // exchange
		orderPlacedType, // routing key
		false,           // mandatory
		false,           // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			MessageId:    event.EventID,
			Timestamp:    event.OccurredAt,
			Type:         orderPlacedType,
			Headers:      traceHeaders(ctx),
			Body:         data,
		})
	if err != nil {
		slog.ErrorContext(ctx, "failed to publish order event", slog.Any("err", err))
		span.SetStatus(codes.Error, "failed to publish order event")
		span.RecordError(err)
		return err
	}
	return nil
}

func (a *AMQPOrderPublisher) Close() error {
	return a.ch.Close()
}

func traceHeaders(ctx context.Context) amqp.Table {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	headers := amqp.Table{}
	for k, v := range carrier {
		headers[k] = v
	}
	return headers
}
