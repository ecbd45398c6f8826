package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ringminter/internal/domain"
	"ringminter/internal/streaming"

	"github.com/segmentio/kafka-go"
)

// Batch collects consumed submission events until they are flushed to the
// journal. Later events for the same submission replace earlier ones.
type Batch struct {
	submissions []domain.Submission
	index       map[string]int
	messages    []kafka.Message
	minOffset   map[int]int64
	maxOffset   map[int]int64
}

func NewBatch() *Batch {
	return &Batch{
		index:     make(map[string]int),
		minOffset: make(map[int]int64),
		maxOffset: make(map[int]int64),
	}
}

func (b *Batch) Add(msg streaming.Message, kafkaMsg kafka.Message) {
	submission := MapToSubmission(msg)
	if i, ok := b.index[submission.ID]; ok {
		b.submissions[i] = submission
	} else {
		b.index[submission.ID] = len(b.submissions)
		b.submissions = append(b.submissions, submission)
	}

	b.messages = append(b.messages, kafkaMsg)

	partition := kafkaMsg.Partition
	offset := kafkaMsg.Offset
	if min, ok := b.minOffset[partition]; !ok || offset < min {
		b.minOffset[partition] = offset
	}
	if max, ok := b.maxOffset[partition]; !ok || offset > max {
		b.maxOffset[partition] = offset
	}
}

// Skip keeps an undecodable message so its offset is committed with the batch.
func (b *Batch) Skip(kafkaMsg kafka.Message) {
	b.messages = append(b.messages, kafkaMsg)
}

func (b *Batch) Len() int {
	return len(b.messages)
}

type Committer interface {
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

func (b *Batch) Flush(ctx context.Context, repo JournalRepository, committer Committer) error {
	if b.Len() == 0 {
		return nil
	}

	start := time.Now()

	if len(b.submissions) > 0 {
		if err := repo.UpsertSubmissions(ctx, b.submissions); err != nil {
			return fmt.Errorf("failed to store submissions: %w", err)
		}
	}

	if err := committer.CommitMessages(ctx, b.messages...); err != nil {
		return fmt.Errorf("failed to commit kafka messages: %w", err)
	}

	slog.Info("flushed batch",
		"count", b.Len(),
		"submissions", len(b.submissions),
		"partitions", len(b.minOffset),
		"duration", time.Since(start),
	)

	b.Reset()
	return nil
}

func (b *Batch) Reset() {
	b.submissions = b.submissions[:0]
	b.messages = b.messages[:0]
	clear(b.index)
	clear(b.minOffset)
	clear(b.maxOffset)
}
