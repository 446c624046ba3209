package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_HappyPath(t *testing.T) {
	tempDir := t.TempDir()
	configsDir := filepath.Join(tempDir, "configs")
	require.NoError(t, os.Mkdir(configsDir, 0755))

	envContent := "APP_NAME=CycleTest\n" +
		"SERVER_PORT=9090\n" +
		"LOG_LEVEL=debug\n" +
		"KAFKA_BROKERS=kafka1:9092,kafka2:9092\n" +
		"SCHEDULER_CRON=0 3 * * *\n" +
		"ALERT_SMTP_HOST=smtp.example.com\n" +
		"ALERT_FROM=alerts@example.com\n" +
		"ALERT_TO=ops@example.com, oncall@example.com\n"
	require.NoError(t, os.WriteFile(filepath.Join(configsDir, "test_happy.env"), []byte(envContent), 0644))

	originalWD, err := os.Getwd()
	require.NoError(t, err)
	defer func() {
		_ = os.Chdir(originalWD)
	}()
	require.NoError(t, os.Chdir(tempDir))

	cfg, err := LoadConfig("test_happy")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "CycleTest", cfg.Application.Name)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "kafka1:9092,kafka2:9092", cfg.Kafka.Brokers)
	assert.Equal(t, "0 3 * * *", cfg.Scheduler.Cron)
	assert.True(t, cfg.Alert.Enabled())
	assert.Equal(t, []string{"ops@example.com", "oncall@example.com"}, cfg.Alert.To)

	assert.Equal(t, "development", cfg.Application.Env)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "cycle_triggers", cfg.Kafka.TriggerTopic)
	assert.Equal(t, "mongodb://localhost:27017", cfg.MongoDB.URI)
	assert.Equal(t, 10, cfg.WorkerPool.Size)
	assert.Equal(t, 512, cfg.Cycle.FailureReasonMaxLen)
	assert.Equal(t, 168*time.Hour, cfg.Outbox.Retention)

	fromFile, err := LoadConfigFile(filepath.Join(configsDir, "test_happy.env"))
	require.NoError(t, err)
	assert.Equal(t, "CycleTest", fromFile.Application.Name)
}

func TestConfig_Validate(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	t.Run("DefaultsAreValid", func(t *testing.T) {
		cfg := fromViper(v)
		assert.NoError(t, cfg.validate())
		assert.False(t, cfg.Alert.Enabled())
	})

	t.Run("CollectsEveryProblem", func(t *testing.T) {
		cfg := fromViper(v)
		cfg.Server.Port = 0
		cfg.Kafka.TriggerTopic = ""
		cfg.Alert.SMTPHost = "smtp.example.com"

		err := cfg.validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SERVER_PORT must be greater than 0")
		assert.Contains(t, err.Error(), "KAFKA_CYCLE_TRIGGER_TOPIC is required")
		assert.Contains(t, err.Error(), "ALERT_FROM is required")
	})

	t.Run("ProductionRequiresStrongSecret", func(t *testing.T) {
		cfg := fromViper(v)
		cfg.Application.Env = "production"
		assert.ErrorContains(t, cfg.validate(), "AUTH_JWT_SECRET must be at least 32 characters")
	})
}
