package broker

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"herald/internal/config"
	"herald/internal/logger"
	"herald/pkg/errors"
	"herald/pkg/models"
)

type recordingProducer struct {
	mu        sync.Mutex
	published []models.MessageEnvelope
	topics    []string
	err       error
}

func (p *recordingProducer) Publish(_ context.Context, topic string, msg models.MessageEnvelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.topics = append(p.topics, topic)
	p.published = append(p.published, msg)
	return nil
}

func (p *recordingProducer) Close() error { return nil }

func newTestConsumer(dlq Producer) *KafkaConsumer {
	c := NewKafkaConsumer(config.KafkaConfig{
		DLQTopic: "dlq",
		Retry: config.RetryConfig{
			MaxAttempts:     3,
			InitialInterval: time.Millisecond,
			MaxInterval:     2 * time.Millisecond,
			Multiplier:      2,
		},
	}, logger.NopLogger())
	c.dlqProducer = dlq
	c.SetServiceName("dispatch-service")
	return c
}

func kafkaRecord(t *testing.T, env models.MessageEnvelope) kafka.Message {
	t.Helper()
	body, err := json.Marshal(env)
	require.NoError(t, err)
	return kafka.Message{Topic: "events", Value: body}
}

func TestHandleMessage_Success(t *testing.T) {
	dlq := &recordingProducer{}
	c := newTestConsumer(dlq)

	var got models.MessageEnvelope
	c.handleMessage(context.Background(), kafkaRecord(t, models.MessageEnvelope{ID: "evt-1"}), func(_ context.Context, msg models.MessageEnvelope) error {
		got = msg
		return nil
	}, "events")

	assert.Equal(t, "evt-1", got.ID)
	assert.Empty(t, dlq.published)
}

func TestHandleMessage_RetriesThenDLQ(t *testing.T) {
	dlq := &recordingProducer{}
	c := newTestConsumer(dlq)

	calls := 0
	c.handleMessage(context.Background(), kafkaRecord(t, models.MessageEnvelope{ID: "evt-2"}), func(context.Context, models.MessageEnvelope) error {
		calls++
		return stderrors.New("postgres unavailable")
	}, "events")

	assert.Equal(t, 3, calls)
	require.Len(t, dlq.published, 1)
	assert.Equal(t, "dlq", dlq.topics[0])
	require.NotNil(t, dlq.published[0].Metadata.DLQ)
	assert.Equal(t, "events", dlq.published[0].Metadata.DLQ.SourceTopic)
	assert.Equal(t, "dispatch-service", dlq.published[0].Metadata.DLQ.Service)
	assert.Contains(t, dlq.published[0].Metadata.DLQ.Reason, "postgres unavailable")
}

func TestHandleMessage_FatalErrorSkipsRetry(t *testing.T) {
	dlq := &recordingProducer{}
	c := newTestConsumer(dlq)

	calls := 0
	c.handleMessage(context.Background(), kafkaRecord(t, models.MessageEnvelope{ID: "evt-3"}), func(context.Context, models.MessageEnvelope) error {
		calls++
		return errors.ErrInvalidEvent.WithMessage("missing subject")
	}, "events")

	assert.Equal(t, 1, calls)
	assert.Len(t, dlq.published, 1)
}

func TestHandleMessage_PanicIsRecovered(t *testing.T) {
	dlq := &recordingProducer{}
	c := newTestConsumer(dlq)

	assert.NotPanics(t, func() {
		c.handleMessage(context.Background(), kafkaRecord(t, models.MessageEnvelope{ID: "evt-4"}), func(context.Context, models.MessageEnvelope) error {
			panic("boom")
		}, "events")
	})
	assert.Len(t, dlq.published, 1)
}

func TestHandleMessage_UndecodableIsDropped(t *testing.T) {
	dlq := &recordingProducer{}
	c := newTestConsumer(dlq)

	called := false
	c.handleMessage(context.Background(), kafka.Message{Value: []byte("{not json")}, func(context.Context, models.MessageEnvelope) error {
		called = true
		return nil
	}, "events")

	assert.False(t, called)
	assert.Empty(t, dlq.published)
}
