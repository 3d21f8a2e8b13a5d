package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "shopfast", cfg.ServiceName)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Empty(t, cfg.PostgresDSN)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, 0.1, cfg.PaymentFailureRate)
	assert.Equal(t, 3*time.Second, cfg.SettleTimeout)
	assert.False(t, cfg.RestockOnRefund)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("KAFKA_BROKERS", "broker-1:9092, broker-2:9092")
	t.Setenv("PAYMENT_FAILURE_RATE", "0.25")
	t.Setenv("SETTLE_TIMEOUT", "500ms")
	t.Setenv("RESTOCK_ON_REFUND", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 0.25, cfg.PaymentFailureRate)
	assert.Equal(t, 500*time.Millisecond, cfg.SettleTimeout)
	assert.True(t, cfg.RestockOnRefund)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("PAYMENT_FAILURE_RATE", "1.5")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsUnparsableValues(t *testing.T) {
	t.Setenv("SETTLE_TIMEOUT", "soon")
	_, err := Load()
	assert.Error(t, err)
}
