package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config carries everything main needs to wire the service. Values come from
// the environment, with an optional .env file for local development.
type Config struct {
	ServiceName string
	Env         string
	HTTPAddr    string

	// PostgresDSN selects the durable store; empty means in-memory.
	PostgresDSN string
	// RedisAddr enables the order status cache; empty disables it.
	RedisAddr string
	// KafkaBrokers enables external event publishing; empty disables it.
	KafkaBrokers []string
	KafkaTopic   string

	PaymentFailureRate     float64
	PaymentUnavailableRate float64
	SettleTimeout          time.Duration
	RestockOnRefund        bool
}

// Load reads configuration from the environment. A .env file in the working
// directory is merged in first, never overriding variables already set.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServiceName: envString("SERVICE_NAME", "shopfast"),
		Env:         envString("APP_ENV", "development"),
		HTTPAddr:    envString("HTTP_ADDR", ":8080"),
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),
		KafkaTopic:  envString("KAFKA_TOPIC", "shopfast.orders"),
	}

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		for _, b := range strings.Split(brokers, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.KafkaBrokers = append(cfg.KafkaBrokers, b)
			}
		}
	}

	var err error
	if cfg.PaymentFailureRate, err = envFloat("PAYMENT_FAILURE_RATE", 0.1); err != nil {
		return nil, err
	}
	if cfg.PaymentUnavailableRate, err = envFloat("PAYMENT_UNAVAILABLE_RATE", 0.05); err != nil {
		return nil, err
	}
	if cfg.SettleTimeout, err = envDuration("SETTLE_TIMEOUT", 3*time.Second); err != nil {
		return nil, err
	}
	if cfg.RestockOnRefund, err = envBool("RESTOCK_ON_REFUND", false); err != nil {
		return nil, err
	}

	if cfg.PaymentFailureRate < 0 || cfg.PaymentFailureRate > 1 {
		return nil, fmt.Errorf("config: PAYMENT_FAILURE_RATE must be within [0,1], got %v", cfg.PaymentFailureRate)
	}
	if cfg.PaymentUnavailableRate < 0 || cfg.PaymentUnavailableRate > 1 {
		return nil, fmt.Errorf("config: PAYMENT_UNAVAILABLE_RATE must be within [0,1], got %v", cfg.PaymentUnavailableRate)
	}

	return cfg, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return f, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("config: %s: %w", key, err)
	}
	return b, nil
}
