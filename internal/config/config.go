package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port     int
	LogLevel string
	Env      string
	BaseURL  string
	DB       DBConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Payments PaymentsConfig
	Invoices InvoicesConfig

	// TrustForwardedFor enables X-Forwarded-For when the API sits
	// behind a trusted reverse proxy
	TrustForwardedFor bool
}

// DBConfig holds the database configuration
type DBConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
}

// RedisConfig holds the connection settings for the session cart store
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// KafkaConfig holds the broker settings for the outbox event stream
type KafkaConfig struct {
	Brokers       []string
	EventsTopic   string
	ConsumerGroup string
}

// PaymentsConfig holds gateway settings
type PaymentsConfig struct {
	DefaultGateway     string
	GatewayTimeout     time.Duration
	ZarinpalMerchantID string
	ZarinpalSandbox    bool
	CallbackBaseURL    string
	ReceiptDir         string
}

// InvoicesConfig holds invoice artifact settings
type InvoicesConfig struct {
	PDFDir string
}

// getEnv retrieves the value of an environment variable or returns a default value if not set.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}

	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value, exists := os.LookupEnv(key)

	if !exists {
		return defaultValue
	}

	parsed, err := strconv.ParseBool(value)

	if err != nil {
		return defaultValue
	}

	return parsed
}

// Load reads the configuration from environment variables and returns a Config struct.
func Load() (*Config, error) {
	port, err := strconv.Atoi(getEnv("PORT", "8080"))

	if err != nil {
		return nil, fmt.Errorf("invalid port: %w", err)
	}

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))

	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))

	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	gatewayTimeout, err := time.ParseDuration(getEnv("GATEWAY_TIMEOUT", "10s"))

	if err != nil {
		return nil, fmt.Errorf("invalid GATEWAY_TIMEOUT: %w", err)
	}

	return &Config{
		Port:     port,
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Env:      getEnv("APP_ENV", "development"),
		BaseURL:  getEnv("BASE_URL", "http://localhost:8080"),
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Name:     getEnv("DB_NAME", "shopflow"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			EventsTopic:   getEnv("KAFKA_EVENTS_TOPIC", "shop.events"),
			ConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "shopflow-api"),
		},
		Payments: PaymentsConfig{
			DefaultGateway:     getEnv("DEFAULT_PAYMENT_GATEWAY", "zarinpal"),
			GatewayTimeout:     gatewayTimeout,
			ZarinpalMerchantID: getEnv("ZARINPAL_MERCHANT_ID", ""),
			ZarinpalSandbox:    getEnvBool("ZARINPAL_SANDBOX", true),
			CallbackBaseURL:    getEnv("PAYMENT_CALLBACK_BASE_URL", "http://localhost:8080"),
			ReceiptDir:         getEnv("PAYMENT_RECEIPT_DIR", "data/receipts"),
		},
		Invoices: InvoicesConfig{
			PDFDir: getEnv("INVOICE_PDF_DIR", "data/invoices"),
		},
		TrustForwardedFor: getEnvBool("TRUST_FORWARDED_FOR", false),
	}, nil
}

// GetDBConnString returns the database connection string
func (c *Config) GetDBConnString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name, c.DB.SSLMode)
}
