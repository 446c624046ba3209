package producers

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

const (
	partitionReadAttempts = 5
	partitionReadBackoff  = 2 * time.Second
)

// ensureTopic creates the topic when no partitions can be read for it.
// Partition reads are retried since a fresh broker may not answer at once.
func ensureTopic(admin topicAdmin, topic string, numPartitions, replicationFactor int, backoff time.Duration, log *slog.Logger) error {
	var partitions []kafka.Partition
	var err error
	for attempt := 1; attempt <= partitionReadAttempts; attempt++ {
		partitions, err = admin.ReadPartitions(topic)
		if err == nil && len(partitions) > 0 {
			log.Debug("Kafka topic exists", "topic", topic, "partitions", len(partitions))
			return nil
		}
		if err == nil {
			break
		}
		log.Warn("Failed to read topic partitions", "topic", topic, "attempt", attempt, "error", err)
		if attempt < partitionReadAttempts {
			time.Sleep(backoff)
		}
	}

	cfg := kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     max(numPartitions, 1),
		ReplicationFactor: max(replicationFactor, 1),
	}
	log.Info("Creating Kafka topic", "topic", topic, "partitions", cfg.NumPartitions, "replication_factor", cfg.ReplicationFactor)
	if err := admin.CreateTopics(cfg); err != nil {
		return fmt.Errorf("failed to create kafka topic %s: %w", topic, err)
	}
	return nil
}

// dialAndEnsureTopic opens a short-lived connection to provision the topic
func dialAndEnsureTopic(brokers, topic string, numPartitions, replicationFactor int, log *slog.Logger) error {
	conn, err := kafka.Dial("tcp", brokers)
	if err != nil {
		return fmt.Errorf("failed to dial kafka: %w", err)
	}
	defer conn.Close()
	return ensureTopic(conn, topic, numPartitions, replicationFactor, partitionReadBackoff, log)
}
