package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	ServiceName  string       `mapstructure:"service_name"`
	Env          string       `mapstructure:"env"`
	Port         string       `mapstructure:"port"`
	OTLPEndpoint string       `mapstructure:"otlp_endpoint"`
	Participants Participants `mapstructure:"participants"`
	Store        Store        `mapstructure:"store"`
	Events       Events       `mapstructure:"events"`
}

type Participants struct {
	PaymentURL     string `mapstructure:"payment_url"`
	InventoryURL   string `mapstructure:"inventory_url"`
	DeliveryURL    string `mapstructure:"delivery_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// Timeout returns the bounded wait for one participant call.
func (p Participants) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

type Store struct {
	// Driver selects the OrderStore implementation: "memory" (default,
	// non-durable) or "postgres".
	Driver   string   `mapstructure:"driver"`
	Database Database `mapstructure:"database"`
}

type Database struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"ssl_mode"`
}

type Events struct {
	// Driver selects the lifecycle event transport: "memory" (default) or
	// "sns" (with the SQS queue feeding the audit consumer).
	Driver      string `mapstructure:"driver"`
	SNSTopicArn string `mapstructure:"sns_topic_arn"`
	SQSQueueURL string `mapstructure:"sqs_queue_url"`
}

func ReadConfig() (*Config, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return nil, fmt.Errorf("unable to get current file")
	}

	viper.SetConfigName(getConfigName())
	viper.SetConfigType("json")
	viper.AddConfigPath(filepath.Dir(filename))

	// Allow environment variables to override config
	viper.AutomaticEnv()
	viper.SetEnvPrefix("ORCHESTRATOR")

	setDefaultsFromEnv()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file falls back to defaults and env vars.
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return &config, nil
}

func getConfigName() string {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		return "local"
	}
	return env
}

func setDefaultsFromEnv() {
	viper.SetDefault("service_name", "orchestrator-service")
	viper.SetDefault("env", getEnv("ENV", "local"))
	viper.SetDefault("port", getEnv("PORT", "8080"))
	viper.SetDefault("otlp_endpoint", getEnv("OTLP_ENDPOINT", "localhost:4318"))

	viper.SetDefault("participants.payment_url", getEnv("PAYMENT_URL", "http://payment-service:8000"))
	viper.SetDefault("participants.inventory_url", getEnv("INVENTORY_URL", "http://inventory-service:8000"))
	viper.SetDefault("participants.delivery_url", getEnv("DELIVERY_URL", "http://delivery-service:8000"))
	viper.SetDefault("participants.timeout_seconds", 5)

	viper.SetDefault("store.driver", getEnv("STORE_DRIVER", "memory"))
	viper.SetDefault("store.database.host", "localhost")
	viper.SetDefault("store.database.port", 5432)
	viper.SetDefault("store.database.user", "postgres")
	viper.SetDefault("store.database.password", "password")
	viper.SetDefault("store.database.database", "order_system")
	viper.SetDefault("store.database.ssl_mode", "disable")

	viper.SetDefault("events.driver", getEnv("EVENTS_DRIVER", "memory"))
	viper.SetDefault("events.sns_topic_arn", getEnv("SNS_TOPIC_ARN", "arn:aws:sns:us-east-1:000000000000:order-saga-events"))
	viper.SetDefault("events.sqs_queue_url", getEnv("SQS_QUEUE_URL", "http://localhost:4566/000000000000/order-saga-events"))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// GetDatabaseURL constructs the Postgres URL from config.
func (c *Config) GetDatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Store.Database.User,
		c.Store.Database.Password,
		c.Store.Database.Host,
		c.Store.Database.Port,
		c.Store.Database.Database,
		c.Store.Database.SSLMode,
	)
}
