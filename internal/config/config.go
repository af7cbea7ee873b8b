// Package config provides configuration structures and validation for the
// patron billing service. It handles environment-based configuration for the
// HTTP server, the ILS ledger gateway client, the billing event stream, and
// session housekeeping.
package config

import (
	"errors"
	"strings"
	"time"
)

// Config holds the complete application configuration. Each field represents
// a major subsystem's configuration and is validated during startup.
type Config struct {
	Application ApplicationConfig
	Logging     LoggingConfig
	Server      ServerConfig
	ILS         ILSConfig
	Kafka       KafkaConfig
	Session     SessionConfig
}

// ApplicationConfig contains general application configuration
type ApplicationConfig struct {
	Env  string
	Name string
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string
}

// ServerConfig contains HTTP server configuration settings
type ServerConfig struct {
	Port            int           // Port to listen on
	ShutdownTimeout time.Duration // Grace period for server shutdown
	ReadTimeout     time.Duration // Maximum duration for reading entire request
	WriteTimeout    time.Duration // Maximum duration for writing response
	IdleTimeout     time.Duration // Maximum duration to wait for next request
}

// ILSConfig contains the connection settings for the external integrated
// library system's ledger gateway.
type ILSConfig struct {
	BaseURL        string        // Gateway base URL
	RequestTimeout time.Duration // Per-call deadline; expiry surfaces as a timeout error
	AuthToken      string        // Service credential forwarded on every call
}

// KafkaConfig contains the billing event stream configuration
type KafkaConfig struct {
	Brokers           string
	BillingTopic      string // Topic carrying payment/refund events for receipt and audit consumers
	NumPartitions     int    // Number of partitions for topic creation
	ReplicationFactor int    // Replication factor for topic creation
	WriteMaxWait      time.Duration
}

// SessionConfig contains billing session housekeeping configuration
type SessionConfig struct {
	IdleTTL       time.Duration // Idle time after which a session is evicted
	SweepInterval time.Duration // How often the eviction janitor runs
}

// validate performs comprehensive validation of all configuration values,
// ensuring they meet minimum requirements and logical constraints
func (c *Config) validate() error {
	var validationErrors []string

	// Validate Server config
	if c.Server.Port <= 0 {
		validationErrors = append(validationErrors, "SERVER_PORT must be greater than 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_SHUTDOWN_TIMEOUT must be greater than 0")
	}
	if c.Server.ReadTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_READ_TIMEOUT must be greater than 0")
	}
	if c.Server.WriteTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_WRITE_TIMEOUT must be greater than 0")
	}
	if c.Server.IdleTimeout <= 0 {
		validationErrors = append(validationErrors, "SERVER_IDLE_TIMEOUT must be greater than 0")
	}

	// Validate ILS gateway config
	if c.ILS.BaseURL == "" {
		validationErrors = append(validationErrors, "ILS_BASE_URL is required")
	}
	if c.ILS.RequestTimeout <= 0 {
		validationErrors = append(validationErrors, "ILS_REQUEST_TIMEOUT must be greater than 0")
	}

	// Validate Kafka config
	if len(c.Kafka.Brokers) == 0 {
		validationErrors = append(validationErrors, "KAFKA_BROKERS is required")
	}
	if c.Kafka.BillingTopic == "" {
		validationErrors = append(validationErrors, "KAFKA_BILLING_TOPIC is required")
	}
	if c.Kafka.WriteMaxWait <= 0 {
		validationErrors = append(validationErrors, "KAFKA_WRITE_MAX_WAIT must be greater than 0")
	}

	// Validate Session config
	if c.Session.IdleTTL <= 0 {
		validationErrors = append(validationErrors, "SESSION_IDLE_TTL must be greater than 0")
	}
	if c.Session.SweepInterval <= 0 {
		validationErrors = append(validationErrors, "SESSION_SWEEP_INTERVAL must be greater than 0")
	}

	if len(validationErrors) > 0 {
		return errors.New(strings.Join(validationErrors, ", "))
	}

	return nil
}
