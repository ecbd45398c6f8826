package httpapi

import (
	"maps"
	"sync"
	"time"
)

// Metrics counts what the journal consumer has seen since start.
type Metrics struct {
	mu              sync.RWMutex
	startTime       time.Time
	events          map[string]uint64
	kafkaMessages   uint64
	kafkaDecodeErrs uint64
	kafkaFetchErrs  uint64
	flushErrs       uint64
	kafkaLastTopic  string
	kafkaLastPart   int
	kafkaLastOffset int64
	kafkaLastTime   time.Time
	kafkaLastLag    time.Duration
	kafkaMaxLag     time.Duration
}

func NewMetrics() *Metrics {
	return &Metrics{
		startTime: time.Now(),
		events:    make(map[string]uint64),
	}
}

func (m *Metrics) OnSubmissionEvent(msgType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[msgType]++
}

func (m *Metrics) IncKafkaDecodeErr() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kafkaDecodeErrs++
}

func (m *Metrics) IncKafkaFetchErr() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kafkaFetchErrs++
}

func (m *Metrics) IncFlushErr() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushErrs++
}

// ObserveKafkaMessage records delivery position and lag of a fetched message.
func (m *Metrics) ObserveKafkaMessage(topic string, partition int, offset int64, ts time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kafkaMessages++
	m.kafkaLastTopic = topic
	m.kafkaLastPart = partition
	m.kafkaLastOffset = offset
	m.kafkaLastTime = ts
	if !ts.IsZero() {
		m.kafkaLastLag = time.Since(ts)
		m.kafkaMaxLag = max(m.kafkaMaxLag, m.kafkaLastLag)
	}
}

type Snapshot struct {
	StartTime       time.Time
	Events          map[string]uint64
	KafkaMessages   uint64
	KafkaDecodeErrs uint64
	KafkaFetchErrs  uint64
	FlushErrs       uint64
	KafkaLastTopic  string
	KafkaLastPart   int
	KafkaLastOffset int64
	KafkaLastTime   time.Time
	KafkaLastLag    time.Duration
	KafkaMaxLag     time.Duration
}

func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		StartTime:       m.startTime,
		Events:          maps.Clone(m.events),
		KafkaMessages:   m.kafkaMessages,
		KafkaDecodeErrs: m.kafkaDecodeErrs,
		KafkaFetchErrs:  m.kafkaFetchErrs,
		FlushErrs:       m.flushErrs,
		KafkaLastTopic:  m.kafkaLastTopic,
		KafkaLastPart:   m.kafkaLastPart,
		KafkaLastOffset: m.kafkaLastOffset,
		KafkaLastTime:   m.kafkaLastTime,
		KafkaLastLag:    m.kafkaLastLag,
		KafkaMaxLag:     m.kafkaMaxLag,
	}
}
