package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/dtroode/cardbook-server/internal/logger"
	"github.com/dtroode/cardbook-server/internal/model"
)

var _ model.AuditPublisher = (*AuditPublisher)(nil)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// AuditPublisher writes session audit events to a Kafka topic as JSON.
type AuditPublisher struct {
	w      messageWriter
	topic  string
	logger *logger.Logger
}

// NewAuditPublisher creates an asynchronous publisher. Delivery errors are
// logged by the writer completion callback.
func NewAuditPublisher(brokers []string, topic string, logger *logger.Logger) *AuditPublisher {
	log := logger.With("component", "kafka.audit", "topic", topic)
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
		Async:                  true,
		RequiredAcks:           kafka.RequireOne,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				log.Error("Audit publisher: delivery failed", "count", len(messages), "error", err.Error())
			}
		},
	}
	return newAuditPublisher(w, topic, log)
}

func newAuditPublisher(w messageWriter, topic string, logger *logger.Logger) *AuditPublisher {
	return &AuditPublisher{w: w, topic: topic, logger: logger}
}

// Publish implements model.AuditPublisher.
func (p *AuditPublisher) Publish(ctx context.Context, event model.AuditEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	ctx, span := otel.Tracer("kafka.producer").Start(ctx, "kafka.produce "+p.topic,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			semconv.MessagingSystemKafka,
			semconv.MessagingDestinationName(p.topic),
			semconv.MessagingOperationPublish,
		),
	)
	defer span.End()

	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	msg := kafka.Message{
		Key:     []byte(strconv.FormatInt(event.UserID, 10)),
		Value:   value,
		Headers: toHeaders(carrier),
	}

	if err := p.w.WriteMessages(ctx, msg); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to write audit event: %w", err)
	}

	p.logger.Debug("Audit publisher: event queued", "action", string(event.Action))
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *AuditPublisher) Close() error {
	return p.w.Close()
}

func toHeaders(carrier propagation.MapCarrier) []kafka.Header {
	headers := make([]kafka.Header, 0, len(carrier))
	for _, k := range carrier.Keys() {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(carrier.Get(k))})
	}
	return headers
}
