package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Ledger backend selection
const (
	LedgerBackendMemory   = "memory"
	LedgerBackendPostgres = "postgres"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Logger   LoggerConfig
	Database DatabaseConfig
	Gateway  GatewayConfig
	Ledger   LedgerConfig
	Sink     SinkConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds database connection configuration, used when the
// ledger backend is postgres
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	ConnMaxLifetime time.Duration
	MaxOpenConns    int
	MaxIdleConns    int
}

// GatewayConfig holds payment gateway credentials and endpoints
type GatewayConfig struct {
	BaseURL        string
	MerchantID     string
	SaltKey        string
	SaltIndex      string
	PayEndpoint    string
	StatusEndpoint string
	CallbackURL    string
	RedirectURL    string
	Timeout        time.Duration
}

// LedgerConfig selects the order ledger backend
type LedgerConfig struct {
	Backend string // memory or postgres
}

// SinkConfig holds configuration for the outcome sinks
type SinkConfig struct {
	OrdersFile      string
	SpreadsheetFile string
	QueueSize       int
}

// LoggerConfig holds logging configuration
type LoggerConfig struct {
	Level string // debug, info, warn, error
}

// Load loads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvAsDuration("SERVER_READ_TIMEOUT", "15s"),
			WriteTimeout: getEnvAsDuration("SERVER_WRITE_TIMEOUT", "15s"),
			IdleTimeout:  getEnvAsDuration("SERVER_IDLE_TIMEOUT", "60s"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			DBName:          getEnv("DB_NAME", "reconciler"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", "5m"),
		},
		Gateway: GatewayConfig{
			BaseURL:        getEnv("GATEWAY_BASE_URL", "https://api-preprod.gateway.example.com/apis/hermes"),
			MerchantID:     getEnv("GATEWAY_MERCHANT_ID", ""),
			SaltKey:        getEnv("GATEWAY_SALT_KEY", ""),
			SaltIndex:      getEnv("GATEWAY_SALT_INDEX", "1"),
			PayEndpoint:    getEnv("GATEWAY_PAY_ENDPOINT", "/pg/v1/pay"),
			StatusEndpoint: getEnv("GATEWAY_STATUS_ENDPOINT", "/pg/v1/status"),
			CallbackURL:    getEnv("GATEWAY_CALLBACK_URL", "http://localhost:8080/api/v1/callback"),
			RedirectURL:    getEnv("GATEWAY_REDIRECT_URL", "http://localhost:8080/api/v1/redirect"),
			Timeout:        getEnvAsDuration("GATEWAY_TIMEOUT", "10s"),
		},
		Ledger: LedgerConfig{
			Backend: getEnv("LEDGER_BACKEND", LedgerBackendMemory),
		},
		Sink: SinkConfig{
			OrdersFile:      getEnv("SINK_ORDERS_FILE", "data/orders.json"),
			SpreadsheetFile: getEnv("SINK_SPREADSHEET_FILE", "data/orders.xlsx"),
			QueueSize:       getEnvAsInt("SINK_QUEUE_SIZE", 64),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}

	if c.Gateway.BaseURL == "" {
		return fmt.Errorf("gateway base URL cannot be empty")
	}
	if c.Gateway.MerchantID == "" {
		return fmt.Errorf("gateway merchant id cannot be empty")
	}
	if c.Gateway.SaltKey == "" {
		return fmt.Errorf("gateway salt key cannot be empty")
	}
	if c.Gateway.Timeout <= 0 {
		return fmt.Errorf("gateway timeout must be positive, got %s", c.Gateway.Timeout)
	}

	switch c.Ledger.Backend {
	case LedgerBackendMemory:
	case LedgerBackendPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database host cannot be empty")
		}
		if c.Database.DBName == "" {
			return fmt.Errorf("database name cannot be empty")
		}
	default:
		return fmt.Errorf("invalid ledger backend: %s (must be memory or postgres)", c.Ledger.Backend)
	}

	if c.Sink.QueueSize <= 0 {
		return fmt.Errorf("sink queue size must be positive, got %d", c.Sink.QueueSize)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logger.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	return nil
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to parsing the default if provided value is invalid
		duration, err = time.ParseDuration(defaultValue)
		if err != nil {
			return 0
		}
	}
	return duration
}
