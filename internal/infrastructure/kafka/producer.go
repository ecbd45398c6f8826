package kafka

import (
	"context"
	"errors"
	"strings"
	"time"

	"ringminter/internal/application"
	"ringminter/internal/domain"
	"ringminter/internal/infrastructure/telemetry"
	"ringminter/internal/streaming"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultTopic = "ringminter-submissions"

// MessageWriter is the part of kafka.Writer the producer needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes submission events so the journal service can collect
// them from every machine running the tools.
type Producer struct {
	writer MessageWriter
	topic  string
}

type ProducerConfig struct {
	Brokers []string
	Topic   string
}

func NewProducer(cfg ProducerConfig) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		cfg.Topic = DefaultTopic
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
	return NewProducerWithWriter(writer, cfg.Topic), nil
}

func NewProducerWithWriter(writer MessageWriter, topic string) *Producer {
	if strings.TrimSpace(topic) == "" {
		topic = DefaultTopic
	}
	return &Producer{writer: writer, topic: topic}
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// RecordSubmission publishes one submission event. It satisfies
// application.SubmissionRecorder.
func (p *Producer) RecordSubmission(ctx context.Context, submission domain.Submission) error {
	return p.PublishSubmissions(ctx, []domain.Submission{submission})
}

// PublishSubmissions keys every event by submission ID so all events of one
// submission land on the same partition in order.
func (p *Producer) PublishSubmissions(ctx context.Context, submissions []domain.Submission) error {
	if len(submissions) == 0 {
		return nil
	}
	tracer := otel.Tracer("ringminter/kafka")
	messages := make([]kafka.Message, 0, len(submissions))
	spans := make([]trace.Span, 0, len(submissions))
	for _, submission := range submissions {
		traceCtx := ctx
		traceIDHex := ""
		if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
			traceIDHex = spanCtx.TraceID().String()
		} else if traceID, hexID, ok := telemetry.NewTraceID(); ok {
			if spanCtx, ok := telemetry.NewSpanContext(traceID); ok {
				traceCtx = trace.ContextWithSpanContext(ctx, spanCtx)
				traceIDHex = hexID
			}
		}
		traceCtx, span := tracer.Start(traceCtx, "journal.publish_submission", trace.WithSpanKind(trace.SpanKindProducer))
		span.SetAttributes(
			attribute.String("submission.id", submission.ID),
			attribute.String("submission.status", string(submission.Status)),
			attribute.String("contract.function", submission.Function),
			attribute.Int64("chain.id", int64(submission.ChainID)),
		)
		if submission.TxHash != "" {
			span.SetAttributes(attribute.String("tx.hash", submission.TxHash))
		}

		msg := application.MapToMessage(submission)
		msg.TraceID = traceIDHex
		payload, err := streaming.Encode(msg)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			endAll(spans, err)
			return err
		}
		headers := make([]kafka.Header, 0, 2)
		telemetry.InjectKafkaHeaders(traceCtx, &headers)
		messages = append(messages, kafka.Message{
			Topic:   p.topic,
			Key:     []byte(submission.ID),
			Value:   payload,
			Headers: headers,
		})
		spans = append(spans, span)
	}
	err := p.writer.WriteMessages(ctx, messages...)
	endAll(spans, err)
	return err
}

func endAll(spans []trace.Span, err error) {
	for _, span := range spans {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}
