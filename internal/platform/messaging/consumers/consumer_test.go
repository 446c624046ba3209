package consumers

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/pfin-cycle-ledger/internal/config"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeReader struct {
	mu        sync.Mutex
	messages  chan kafka.Message
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case msg := <-r.messages:
		return msg, nil
	}
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func (r *fakeReader) commits() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func TestNewKafkaConsumer(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	cfg := &config.KafkaConfig{
		Brokers:       "localhost:9092",
		TriggerTopic:  "cycle_triggers",
		ConsumerGroup: "cycle-processor",
		MinBytes:      1024,
		MaxBytes:      10240,
		MaxWait:       time.Second,
	}

	consumer := NewKafkaConsumer(context.Background(), logger, cfg)
	require.NotNil(t, consumer)
	require.NotNil(t, consumer.reader)
	assert.Equal(t, "cycle_triggers", consumer.topic)
	assert.Equal(t, "cycle-processor", consumer.groupID)
}

func TestKafkaConsumer_CommitsOnlyHandledMessages(t *testing.T) {
	reader := &fakeReader{messages: make(chan kafka.Message, 3)}
	consumer := &KafkaConsumer{reader: reader, topic: "cycle_triggers", logger: slog.Default()}

	reader.messages <- kafka.Message{Offset: 1, Key: []byte("user-1"), Value: []byte("ok")}
	reader.messages <- kafka.Message{Offset: 2, Key: []byte("user-2"), Value: []byte("fail")}
	reader.messages <- kafka.Message{Offset: 3, Key: []byte("user-3"), Value: []byte("ok")}

	var handled sync.WaitGroup
	handled.Add(3)
	handler := func(_ context.Context, _ []byte, value []byte) error {
		defer handled.Done()
		if string(value) == "fail" {
			return errors.New("handler failed")
		}
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, consumer.Subscribe(ctx, handler))
	handled.Wait()

	// the last commit happens right after the handler returns
	assert.Eventually(t, func() bool { return len(reader.commits()) == 2 }, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, consumer.Close())

	assert.Equal(t, []int64{1, 3}, reader.commits())
	assert.True(t, reader.closed)
}

func TestKafkaConsumer_Close(t *testing.T) {
	t.Run("nil reader", func(t *testing.T) {
		consumer := &KafkaConsumer{logger: slog.Default()}
		require.NoError(t, consumer.Close())
		assert.Error(t, consumer.Subscribe(context.Background(), nil))
	})
}
