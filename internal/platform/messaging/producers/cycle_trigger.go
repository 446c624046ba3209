package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pfin-cycle-ledger/internal/config"
	"github.com/pfin-cycle-ledger/internal/domain/shared"
	"github.com/segmentio/kafka-go"
)

// TriggerProducer writes cycle triggers keyed by user id, so every trigger of
// one user lands on the same partition
type TriggerProducer struct {
	logger *slog.Logger
	writer KafkaWriter
	topic  string
}

// NewTriggerProducer ensures the trigger topic exists and opens a writer for it
func NewTriggerProducer(_ context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*TriggerProducer, error) {
	if cfg.TriggerTopic == "" {
		return nil, fmt.Errorf("kafka cycle trigger topic is not configured")
	}
	if err := dialAndEnsureTopic(cfg.Brokers, cfg.TriggerTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger); err != nil {
		return nil, fmt.Errorf("failed to ensure trigger topic %s: %w", cfg.TriggerTopic, err)
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers),
		Topic:        cfg.TriggerTopic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		WriteTimeout: cfg.MaxWait,
	}

	return &TriggerProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.TriggerTopic,
	}, nil
}

func (p *TriggerProducer) PublishTrigger(ctx context.Context, trigger shared.CycleTrigger) error {
	if err := trigger.Validate(); err != nil {
		return err
	}
	value, err := json.Marshal(trigger)
	if err != nil {
		return fmt.Errorf("failed to marshal cycle trigger: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(trigger.UserID),
		Value: value,
		Headers: []kafka.Header{
			{Key: "source", Value: []byte(trigger.Source)},
		},
	}
	if trigger.CorrelationID != "" {
		msg.Headers = append(msg.Headers, kafka.Header{Key: "correlation-id", Value: []byte(trigger.CorrelationID)})
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish cycle trigger", "topic", p.topic, "user_id", trigger.UserID, "error", err)
		return fmt.Errorf("failed to publish cycle trigger to %s: %w", p.topic, err)
	}

	p.logger.Debug("Published cycle trigger", "topic", p.topic, "user_id", trigger.UserID, "trigger_id", trigger.TriggerID.String())
	return nil
}

func (p *TriggerProducer) Close() error {
	p.logger.Info("Closing cycle trigger producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
