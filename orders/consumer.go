package orders

import (
	"context"
	stderrors "errors"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	orderfsm "github.com/goliatone/go-orderfsm"
	"github.com/goliatone/go-orderfsm/fsm"
	"github.com/goliatone/go-orderfsm/store"
)

const tracerName = "github.com/goliatone/go-orderfsm/orders"

// MessageReader is the subset of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NewKafkaReader builds a consumer group reader for topic.
func NewKafkaReader(brokers []string, topic, groupID string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: groupID,
	})
}

// Consumer feeds EventMessage values from a topic into a Service.
type Consumer struct {
	reader     MessageReader
	svc        *Service
	logger     fsm.Logger
	tracer     trace.Tracer
	autoCreate bool
	retries    int
	retry      RetryStrategy
}

// ConsumerOption configures a Consumer.
type ConsumerOption func(*Consumer)

// WithConsumerLogger sets the consumer logger.
func WithConsumerLogger(logger fsm.Logger) ConsumerOption {
	return func(c *Consumer) {
		c.logger = logger
	}
}

// WithAutoCreate creates unknown orders before delivering their first event.
func WithAutoCreate(enabled bool) ConsumerOption {
	return func(c *Consumer) {
		c.autoCreate = enabled
	}
}

// WithConflictRetries sets how many times a send failing with a version
// conflict is retried and how long to wait between attempts.
func WithConflictRetries(n int, strategy RetryStrategy) ConsumerOption {
	return func(c *Consumer) {
		if n >= 0 {
			c.retries = n
		}
		if strategy != nil {
			c.retry = strategy
		}
	}
}

// WithTracer overrides the global otel tracer.
func WithTracer(tracer trace.Tracer) ConsumerOption {
	return func(c *Consumer) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// NewConsumer builds a consumer reading from reader.
func NewConsumer(reader MessageReader, svc *Service, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		reader:  reader,
		svc:     svc,
		tracer:  otel.Tracer(tracerName),
		retries: 1,
		retry:   NoDelayStrategy{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.logger == nil {
		c.logger = fsm.NewFmtLogger(nil)
	}
	return c
}

// Run fetches, handles and commits messages until ctx is done. Every fetched
// message is committed, including ones that could not be decoded.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || isClosed(err) {
				return nil
			}
			return err
		}
		if err := c.Handle(ctx, msg); err != nil {
			c.logger.Error("order event at offset %d failed: %v", msg.Offset, err)
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}

// Handle decodes one message and applies it. Rejected events are not errors.
func (c *Consumer) Handle(ctx context.Context, msg kafka.Message) (err error) {
	ctx = extractHeaders(ctx, msg.Headers)
	ctx, span := c.tracer.Start(ctx, "orders.consume", trace.WithSpanKind(trace.SpanKindConsumer))
	span.SetAttributes(
		attribute.String("messaging.destination", msg.Topic),
		attribute.Int("messaging.kafka.partition", msg.Partition),
		attribute.Int64("messaging.kafka.offset", msg.Offset),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	evt, err := orderfsm.DecodeEventMessage(msg.Value)
	if err != nil {
		return err
	}
	span.SetAttributes(
		attribute.String("order.id", evt.OrderID),
		attribute.String("order.event", evt.Event.String()),
	)

	out, err := c.send(ctx, evt)
	if err != nil {
		return err
	}
	span.SetAttributes(
		attribute.Bool("order.accepted", out.Accepted),
		attribute.String("order.state", out.To.String()),
	)
	if !out.Accepted {
		c.logger.Warn("order %s: %s", evt.OrderID, out)
	}
	return nil
}

func (c *Consumer) send(ctx context.Context, evt orderfsm.EventMessage) (fsm.Outcome, error) {
	out, err := c.svc.Send(ctx, evt.OrderID, evt.Event)
	if IsOrderNotFound(err) && c.autoCreate {
		if _, createErr := c.svc.Create(ctx, evt.OrderID); createErr != nil && !IsOrderExists(createErr) {
			return out, createErr
		}
		out, err = c.svc.Send(ctx, evt.OrderID, evt.Event)
	}
	// the cached machine is dropped on conflict, so each retry runs on the stored state
	for attempt := 0; attempt < c.retries && store.IsVersionConflict(err); attempt++ {
		c.logger.Warn("order %s: version conflict, retrying %s (attempt %d)", evt.OrderID, evt.Event, attempt+1)
		if sleepErr := sleepContext(ctx, c.retry.SleepDuration(attempt, err)); sleepErr != nil {
			return out, err
		}
		out, err = c.svc.Send(ctx, evt.OrderID, evt.Event)
	}
	return out, err
}

func extractHeaders(ctx context.Context, headers []kafka.Header) context.Context {
	if len(headers) == 0 {
		return ctx
	}
	carrier := propagation.MapCarrier{}
	for _, h := range headers {
		carrier[h.Key] = string(h.Value)
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

// isClosed reports reader errors that mean no further messages will arrive.
func isClosed(err error) bool {
	return stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded)
}
