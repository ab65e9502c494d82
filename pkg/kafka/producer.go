// Package kafka publishes record change events.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/Ramsey-B/fern/pkg/metrics"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

type Config struct {
	Brokers []string
	Topic   string
}

// ParseConfig reads the KAFKA_BROKERS form: host:port entries separated by commas
func ParseConfig(brokers string, topic string) Config {
	cfg := Config{Topic: topic}
	for broker := range strings.SplitSeq(brokers, ",") {
		if broker = strings.TrimSpace(broker); broker != "" {
			cfg.Brokers = append(cfg.Brokers, broker)
		}
	}
	return cfg
}

// MessageWriter is the part of kafka.Writer the producer uses
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// RecordEvent announces a record observed as created or changed
type RecordEvent struct {
	EventID    string        `json:"event_id"`
	Table      string        `json:"table"`
	SysID      string        `json:"sys_id"`
	UpdatedOn  string        `json:"sys_updated_on"`
	Record     models.Record `json:"record"`
	ObservedAt time.Time     `json:"observed_at"`
	TraceID    string        `json:"trace_id,omitempty"`
	SpanID     string        `json:"span_id,omitempty"`
}

// Producer writes RecordEvents to one topic
type Producer struct {
	writer MessageWriter
	logger ectologger.Logger
	topic  string
}

// NewProducer creates a producer writing to cfg.Topic
func NewProducer(cfg Config, logger ectologger.Logger) *Producer {
	// synchronous: WriteMessages returns once the batch is acked
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}

	return NewProducerWithWriter(writer, cfg.Topic, logger)
}

// NewProducerWithWriter creates a producer on an existing writer
func NewProducerWithWriter(writer MessageWriter, topic string, logger ectologger.Logger) *Producer {
	return &Producer{
		writer: writer,
		logger: logger,
		topic:  topic,
	}
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// Publish publishes a batch of record events. Events are keyed by table and sys_id so
// that changes to one record stay ordered within a partition.
func (p *Producer) Publish(ctx context.Context, events []RecordEvent) (err error) {
	if len(events) == 0 {
		return nil
	}

	ctx, span := tracing.StartSpan(ctx, "kafka.Publish",
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination", p.topic),
		attribute.String("messaging.operation", "publish"),
		attribute.Int("messaging.batch_size", len(events)),
	)
	defer func() { tracing.EndSpan(span, err) }()

	traceID := tracing.GetTraceID(ctx)
	spanID := tracing.GetSpanID(ctx)
	traceparent := tracing.GetTraceParent(ctx)

	messages := make([]kafka.Message, len(events))
	for i, evt := range events {
		evt.TraceID = traceID
		evt.SpanID = spanID

		data, err := json.Marshal(evt)
		if err != nil {
			return fmt.Errorf("failed to marshal event %d: %w", i, err)
		}

		headers := []kafka.Header{
			{Key: "event_id", Value: []byte(evt.EventID)},
			{Key: "table", Value: []byte(evt.Table)},
		}
		if traceparent != "" {
			headers = append(headers, kafka.Header{Key: "traceparent", Value: []byte(traceparent)})
		}

		messages[i] = kafka.Message{
			Key:     []byte(evt.Table + ":" + evt.SysID),
			Value:   data,
			Headers: headers,
		}
	}

	start := time.Now()
	err = p.writer.WriteMessages(ctx, messages...)
	if err != nil {
		metrics.RecordKafkaPublish(p.topic, "error", time.Since(start).Seconds())
		p.logger.WithContext(ctx).WithError(err).Errorf("Failed to publish %d events to Kafka topic %s", len(events), p.topic)
		return err
	}

	metrics.RecordKafkaPublish(p.topic, "success", time.Since(start).Seconds())
	span.SetStatus(codes.Ok, "batch published")
	p.logger.WithContext(ctx).Debugf("Published %d record events to Kafka topic %s", len(events), p.topic)
	return nil
}
