// Package config loads the settings shared by the gateway, the cycle processor
// and the cyclectl tool.
package config

import (
	"errors"
	"strings"
	"time"
)

// Config holds the complete application configuration
type Config struct {
	Application ApplicationConfig
	Logging     LoggingConfig
	Server      ServerConfig
	Auth        AuthConfig
	Kafka       KafkaConfig
	Postgres    PostgresConfig
	MongoDB     MongoDBConfig
	Outbox      OutboxConfig
	WorkerPool  WorkerPoolConfig
	Scheduler   SchedulerConfig
	Cycle       CycleConfig
	Alert       AlertConfig
}

type ApplicationConfig struct {
	Env  string
	Name string
}

type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port            int
	ShutdownTimeout time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
}

// AuthConfig configures bearer token verification
type AuthConfig struct {
	JWTSecret string
	Issuer    string // Optional; checked when set
}

// KafkaConfig contains Kafka configuration
type KafkaConfig struct {
	Brokers           string
	TriggerTopic      string
	NumPartitions     int
	ReplicationFactor int
	ConsumerGroup     string
	MinBytes          int
	MaxBytes          int
	MaxWait           time.Duration
	StartOffset       int64
	DLQTopic          string
}

// PostgresConfig contains PostgreSQL configuration
type PostgresConfig struct {
	URL             string
	MaxConns        int32
	MinConns        int32
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	MigrationsPath  string
}

// MongoDBConfig contains MongoDB configuration
type MongoDBConfig struct {
	URI             string
	Database        string
	Timeout         time.Duration
	MaxPoolSize     uint64
	MinPoolSize     uint64
	MaxConnIdleTime time.Duration
}

// OutboxConfig controls delivery of ledger entries from Postgres to MongoDB
type OutboxConfig struct {
	PollingInterval  time.Duration
	BatchSize        int
	MaxRetryAttempts int
	Retention        time.Duration // PROCESSED rows older than this are deleted; 0 keeps them
}

type WorkerPoolConfig struct {
	Size int
}

// SchedulerConfig controls automatic cycle triggers
type SchedulerConfig struct {
	Enabled bool
	Cron    string // Standard 5-field cron expression, evaluated in UTC
}

// CycleConfig holds orchestrator limits
type CycleConfig struct {
	FailureReasonMaxLen int
	PreviewMaxCycles    int
	StaleRunAfter       time.Duration // RUNNING rows older than this are failed before a new claim
}

// AlertConfig configures failed-run emails. Alerts are disabled without an SMTP host.
type AlertConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	From         string
	To           []string
}

// Enabled reports whether alert delivery is configured
func (a AlertConfig) Enabled() bool {
	return a.SMTPHost != "" && len(a.To) > 0
}

// validate collects every configuration problem into one error
func (c *Config) validate() error {
	var validationErrors []string
	check := func(failed bool, msg string) {
		if failed {
			validationErrors = append(validationErrors, msg)
		}
	}

	check(c.Server.Port <= 0, "SERVER_PORT must be greater than 0")
	check(c.Server.ShutdownTimeout <= 0, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	check(c.Server.ReadTimeout <= 0, "SERVER_READ_TIMEOUT must be greater than 0")
	check(c.Server.WriteTimeout <= 0, "SERVER_WRITE_TIMEOUT must be greater than 0")
	check(c.Server.IdleTimeout <= 0, "SERVER_IDLE_TIMEOUT must be greater than 0")

	check(c.Auth.JWTSecret == "", "AUTH_JWT_SECRET is required")
	check(c.Application.Env == "production" && len(c.Auth.JWTSecret) < 32, "AUTH_JWT_SECRET must be at least 32 characters in production")

	check(c.Kafka.Brokers == "", "KAFKA_BROKERS is required")
	check(c.Kafka.TriggerTopic == "", "KAFKA_CYCLE_TRIGGER_TOPIC is required")
	check(c.Kafka.ConsumerGroup == "", "KAFKA_CONSUMER_GROUP is required")
	check(c.Kafka.MinBytes <= 0, "KAFKA_CONSUMER_MIN_BYTES must be greater than 0")
	check(c.Kafka.MaxBytes <= 0, "KAFKA_CONSUMER_MAX_BYTES must be greater than 0")
	check(c.Kafka.MaxWait <= 0, "KAFKA_CONSUMER_MAX_WAIT must be greater than 0")
	check(c.Kafka.DLQTopic == "", "KAFKA_DLQ_TOPIC is required")

	check(c.Postgres.URL == "", "POSTGRES_URL is required")
	check(c.Postgres.MaxConns <= 0, "POSTGRES_MAX_CONNS must be greater than 0")
	check(c.Postgres.MinConns <= 0, "POSTGRES_MIN_CONNS must be greater than 0")
	check(c.Postgres.ConnMaxLifetime <= 0, "POSTGRES_MAX_CONN_LIFETIME must be greater than 0")
	check(c.Postgres.ConnMaxIdleTime <= 0, "POSTGRES_MAX_CONN_IDLE_TIME must be greater than 0")

	check(c.MongoDB.URI == "", "MONGO_URI is required")
	check(c.MongoDB.Database == "", "MONGO_DATABASE is required")
	check(c.MongoDB.Timeout <= 0, "MONGO_TIMEOUT must be greater than 0")
	check(c.MongoDB.MaxPoolSize <= 0, "MONGO_MAX_POOL_SIZE must be greater than 0")
	check(c.MongoDB.MinPoolSize <= 0, "MONGO_MIN_POOL_SIZE must be greater than 0")
	check(c.MongoDB.MaxConnIdleTime <= 0, "MONGO_MAX_CONN_IDLE_TIME must be greater than 0")

	check(c.Outbox.PollingInterval <= 0, "OUTBOX_POLLING_INTERVAL must be greater than 0")
	check(c.Outbox.BatchSize <= 0, "OUTBOX_BATCH_SIZE must be greater than 0")
	check(c.Outbox.MaxRetryAttempts <= 0, "OUTBOX_MAX_RETRY_ATTEMPTS must be greater than 0")
	check(c.Outbox.Retention < 0, "OUTBOX_RETENTION must not be negative")

	check(c.WorkerPool.Size <= 0, "WORKER_POOL_SIZE must be greater than 0")

	check(c.Scheduler.Enabled && c.Scheduler.Cron == "", "SCHEDULER_CRON is required when the scheduler is enabled")

	check(c.Cycle.FailureReasonMaxLen <= 0, "CYCLE_FAILURE_REASON_MAX_LEN must be greater than 0")
	check(c.Cycle.PreviewMaxCycles <= 0, "CYCLE_PREVIEW_MAX_CYCLES must be greater than 0")
	check(c.Cycle.StaleRunAfter <= 0, "CYCLE_STALE_RUN_AFTER must be greater than 0")

	if c.Alert.SMTPHost != "" {
		check(c.Alert.SMTPPort <= 0, "ALERT_SMTP_PORT must be greater than 0")
		check(c.Alert.From == "", "ALERT_FROM is required when ALERT_SMTP_HOST is set")
		check(len(c.Alert.To) == 0, "ALERT_TO is required when ALERT_SMTP_HOST is set")
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}
	return nil
}
