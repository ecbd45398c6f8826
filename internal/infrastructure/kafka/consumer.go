package kafka

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ringminter/internal/application"
	"ringminter/internal/infrastructure/telemetry"
	"ringminter/internal/streaming"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// MessageReader is the part of kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Observer receives consumer events, typically the HTTP metrics.
type Observer interface {
	IncKafkaFetchErr()
	IncKafkaDecodeErr()
	IncFlushErr()
	ObserveKafkaMessage(topic string, partition int, offset int64, ts time.Time)
	OnSubmissionEvent(msgType string)
}

type ConsumerConfig struct {
	BatchSize     int
	FlushInterval time.Duration
}

type ReaderConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

func NewReader(cfg ReaderConfig) (*kafka.Reader, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	}), nil
}

// Consume reads submission events into batches and flushes them to repo
// when a batch is full or the flush interval passes without new messages.
// Offsets are committed only after their batch is stored. It returns when
// ctx is cancelled, after a last flush of whatever is pending.
func Consume(ctx context.Context, reader MessageReader, repo application.JournalRepository, observer Observer, cfg ConsumerConfig) error {
	if reader == nil || repo == nil {
		return errors.New("reader and repository are required")
	}
	if observer == nil {
		observer = nopObserver{}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 500 * time.Millisecond
	}

	tracer := otel.Tracer("ringminter/journal")
	batch := application.NewBatch()
	flush := func(ctx context.Context, reason string) {
		if batch.Len() == 0 {
			return
		}
		if err := batch.Flush(ctx, repo, reader); err != nil {
			observer.IncFlushErr()
			slog.Error("batch flush error", "reason", reason, "err", err)
		}
	}

	for {
		fetchCtx, cancel := context.WithTimeout(ctx, cfg.FlushInterval)
		message, err := reader.FetchMessage(fetchCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				flush(drainCtx, "shutdown")
				cancel()
				return nil
			}
			if errors.Is(err, context.DeadlineExceeded) {
				flush(ctx, "interval")
				continue
			}
			observer.IncKafkaFetchErr()
			slog.Error("kafka fetch error", "err", err)
			select {
			case <-ctx.Done():
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}

		observer.ObserveKafkaMessage(message.Topic, message.Partition, message.Offset, message.Time)

		decoded, err := streaming.Decode(message.Value)
		if err != nil {
			slog.Warn("message decode error", "offset", message.Offset, "err", err)
			observer.IncKafkaDecodeErr()
			batch.Skip(message)
			continue
		}

		messageCtx := telemetry.ExtractKafkaHeaders(ctx, message.Headers)
		if !trace.SpanContextFromContext(messageCtx).IsValid() && decoded.TraceID != "" {
			if withTrace, ok := telemetry.ContextWithTraceID(messageCtx, decoded.TraceID); ok {
				messageCtx = withTrace
			}
		}
		_, span := tracer.Start(messageCtx, "journal.consume_submission", trace.WithSpanKind(trace.SpanKindConsumer))
		span.SetAttributes(
			attribute.String("message.type", string(decoded.Type)),
			attribute.String("submission.id", decoded.ID),
			attribute.Int64("chain.id", int64(decoded.ChainID)),
		)
		if decoded.TxHash != "" {
			span.SetAttributes(attribute.String("tx.hash", decoded.TxHash))
		}
		batch.Add(decoded, message)
		span.End()
		observer.OnSubmissionEvent(string(decoded.Type))

		if batch.Len() >= cfg.BatchSize {
			flush(ctx, "size")
		}
	}
}

type nopObserver struct{}

func (nopObserver) IncKafkaFetchErr() {}
func (nopObserver) IncKafkaDecodeErr() {}
func (nopObserver) IncFlushErr() {}
func (nopObserver) ObserveKafkaMessage(string, int, int64, time.Time) {}
func (nopObserver) OnSubmissionEvent(string) {}
