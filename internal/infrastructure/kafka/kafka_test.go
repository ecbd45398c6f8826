package kafka

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ringminter/internal/domain"
	"ringminter/internal/streaming"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestProducerRecordSubmission(t *testing.T) {
	writer := &fakeWriter{}
	producer := NewProducerWithWriter(writer, "")

	err := producer.RecordSubmission(context.Background(), domain.Submission{
		ID:       "sub-1",
		ChainID:  11155111,
		TxHash:   "0xabc",
		Function: domain.FnMint,
		Category: domain.CategoryRingMinter,
		Value:    "1000000000000000",
		Status:   domain.StatusBroadcast,
	})
	require.NoError(t, err)
	require.Len(t, writer.messages, 1)

	msg := writer.messages[0]
	require.Equal(t, DefaultTopic, msg.Topic)
	require.Equal(t, "sub-1", string(msg.Key))

	decoded, err := streaming.Decode(msg.Value)
	require.NoError(t, err)
	require.Equal(t, streaming.MessageTypeBroadcast, decoded.Type)
	require.Equal(t, "0xabc", decoded.TxHash)
	require.Equal(t, "1000000000000000", decoded.Value)
	require.NotEmpty(t, decoded.TraceID)
}

func TestProducerRejectsInvalidSubmission(t *testing.T) {
	writer := &fakeWriter{}
	producer := NewProducerWithWriter(writer, "topic")

	err := producer.RecordSubmission(context.Background(), domain.Submission{ID: "x", Status: "unknown"})
	require.Error(t, err)
	require.Empty(t, writer.messages)
}

func TestProducerWriteError(t *testing.T) {
	writer := &fakeWriter{err: errors.New("broker down")}
	producer := NewProducerWithWriter(writer, "topic")

	err := producer.PublishSubmissions(context.Background(), []domain.Submission{{ID: "x", Status: domain.StatusFailed}})
	require.ErrorContains(t, err, "broker down")
}

func TestNewProducerRequiresBrokers(t *testing.T) {
	_, err := NewProducer(ProducerConfig{})
	require.Error(t, err)
}

type fakeReader struct {
	mu        sync.Mutex
	pending   []kafka.Message
	committed []kafka.Message
	drained   chan struct{}
	once      sync.Once
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.pending) > 0 {
		msg := r.pending[0]
		r.pending = r.pending[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	r.once.Do(func() { close(r.drained) })
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

type fakeRepo struct {
	mu          sync.Mutex
	submissions []domain.Submission
}

func (r *fakeRepo) UpsertSubmissions(_ context.Context, submissions []domain.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.submissions = append(r.submissions, submissions...)
	return nil
}

type countingObserver struct {
	mu     sync.Mutex
	decode int
	events map[string]int
}

func (o *countingObserver) IncKafkaFetchErr() {}
func (o *countingObserver) IncFlushErr() {}
func (o *countingObserver) ObserveKafkaMessage(string, int, int64, time.Time) {}
func (o *countingObserver) IncKafkaDecodeErr() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.decode++
}
func (o *countingObserver) OnSubmissionEvent(msgType string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events[msgType]++
}

func encoded(t *testing.T, msg streaming.Message, offset int64) kafka.Message {
	t.Helper()
	payload, err := streaming.Encode(msg)
	require.NoError(t, err)
	return kafka.Message{Partition: 0, Offset: offset, Value: payload}
}

func TestConsumeFlushesAndCommits(t *testing.T) {
	reader := &fakeReader{
		drained: make(chan struct{}),
		pending: []kafka.Message{
			encoded(t, streaming.Message{Type: streaming.MessageTypeBroadcast, ID: "a", Function: "mint", UpdatedAt: 1}, 1),
			encoded(t, streaming.Message{Type: streaming.MessageTypeConfirmed, ID: "a", Function: "mint", UpdatedAt: 2}, 2),
			{Partition: 0, Offset: 3, Value: []byte("not json")},
			encoded(t, streaming.Message{Type: streaming.MessageTypeFailed, ID: "b", Function: "withdrawAll"}, 4),
		},
	}
	repo := &fakeRepo{}
	observer := &countingObserver{events: map[string]int{}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Consume(ctx, reader, repo, observer, ConsumerConfig{BatchSize: 100, FlushInterval: time.Hour})
	}()

	select {
	case <-reader.drained:
	case <-time.After(5 * time.Second):
		t.Fatal("reader was not drained")
	}
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("consumer did not stop")
	}

	require.Len(t, repo.submissions, 2)
	require.Equal(t, "a", repo.submissions[0].ID)
	require.Equal(t, domain.StatusConfirmed, repo.submissions[0].Status)
	require.Equal(t, domain.StatusFailed, repo.submissions[1].Status)
	require.Len(t, reader.committed, 4)
	require.Equal(t, 1, observer.decode)
	require.Equal(t, 1, observer.events["broadcast"])
	require.Equal(t, 1, observer.events["failed"])
}

func TestConsumeRequiresDependencies(t *testing.T) {
	require.Error(t, Consume(context.Background(), nil, &fakeRepo{}, nil, ConsumerConfig{}))
}
