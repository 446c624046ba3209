package producers

import (
	"context"

	"github.com/pfin-cycle-ledger/internal/domain/shared"
	"github.com/segmentio/kafka-go"
)

// TriggerPublisher publishes cycle triggers for the processor
type TriggerPublisher interface {
	PublishTrigger(ctx context.Context, trigger shared.CycleTrigger) error
	Close() error
}

// DeadLetterPublisher parks unprocessable messages
type DeadLetterPublisher interface {
	PublishToDLQ(ctx context.Context, key string, originalMessageValue []byte, reason string) error
	Close() error
}

// KafkaWriter is the subset of *kafka.Writer the producers use
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// topicAdmin is the subset of *kafka.Conn needed to provision topics
type topicAdmin interface {
	ReadPartitions(topics ...string) ([]kafka.Partition, error)
	CreateTopics(topics ...kafka.TopicConfig) error
}
