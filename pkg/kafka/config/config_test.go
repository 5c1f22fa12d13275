package kafka_config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv(EnvKafkaBrokers, "")
	cfg := FromEnv()

	assert.Equal(t, []string{"localhost:9092"}, cfg.Brokers)
	assert.Equal(t, int64(DefaultConsumerStartOffset), cfg.ConsumerStartOffset)
	require.NoError(t, cfg.Validate())
}

func TestFromEnv_SplitsBrokers(t *testing.T) {
	t.Setenv(EnvKafkaBrokers, " kafka-1:9092, ,kafka-2:9092 ")
	t.Setenv(EnvKafkaProducerCompression, "ZSTD")

	cfg := FromEnv()
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Brokers)
	assert.Equal(t, "zstd", cfg.ProducerCompression)
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := FromEnv()
	cfg.Brokers = nil
	cfg.ProducerCompression = "brotli"
	cfg.ConsumerMinBytes = 20
	cfg.ConsumerMaxBytes = 10

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker")
	assert.Contains(t, err.Error(), "ProducerCompression")
	assert.Contains(t, err.Error(), "must not exceed")
}
