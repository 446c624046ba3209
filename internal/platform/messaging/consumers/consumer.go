package consumers

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/pfin-cycle-ledger/internal/config"
	"github.com/segmentio/kafka-go"
)

const fetchRetryDelay = time.Second

// MessageHandler returns nil to commit the message. Errors leave the offset
// uncommitted so the group redelivers after a rebalance or restart.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Consumer defines the message queue consumer interface
type Consumer interface {
	Subscribe(ctx context.Context, handler MessageHandler) error
	Close() error
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConsumer reads the cycle trigger topic as a member of the consumer group
type KafkaConsumer struct {
	reader  messageReader
	topic   string
	groupID string
	logger  *slog.Logger
	wg      sync.WaitGroup
}

func NewKafkaConsumer(_ context.Context, logger *slog.Logger, cfg *config.KafkaConfig) *KafkaConsumer {
	startOffset := cfg.StartOffset
	if startOffset == 0 {
		startOffset = kafka.FirstOffset
	}
	return &KafkaConsumer{
		logger:  logger,
		topic:   cfg.TriggerTopic,
		groupID: cfg.ConsumerGroup,
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:     []string{cfg.Brokers},
			Topic:       cfg.TriggerTopic,
			GroupID:     cfg.ConsumerGroup,
			MinBytes:    cfg.MinBytes,
			MaxBytes:    cfg.MaxBytes,
			MaxWait:     cfg.MaxWait,
			StartOffset: startOffset,
		}),
	}
}

// Subscribe starts the fetch loop in the background; it ends with ctx
func (c *KafkaConsumer) Subscribe(ctx context.Context, handler MessageHandler) error {
	if c.reader == nil {
		return errors.New("kafka reader is not initialized")
	}
	c.logger.Info("Subscribed to Kafka topic", "topic", c.topic, "group_id", c.groupID)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.consume(ctx, handler)
	}()
	return nil
}

func (c *KafkaConsumer) consume(ctx context.Context, handler MessageHandler) {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("Context canceled, stopping consumer", "topic", c.topic)
				return
			}
			c.logger.Error("Failed to fetch message from Kafka", "topic", c.topic, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(fetchRetryDelay):
			}
			continue
		}

		logger := c.logger.With("partition", msg.Partition, "offset", msg.Offset, "key", string(msg.Key))
		if err := handler(ctx, msg.Key, msg.Value); err != nil {
			logger.Error("Failed to process message, will not commit offset", "error", err)
			continue
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			logger.Error("Failed to commit message after successful processing", "error", err)
			continue
		}
		logger.Debug("Message committed")
	}
}

// Close waits for the fetch loop to stop before closing the reader. Cancel the
// Subscribe ctx first.
func (c *KafkaConsumer) Close() error {
	c.wg.Wait()
	if c.reader != nil {
		return c.reader.Close()
	}
	return nil
}
