package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const defaultJWTSecret = "change-this-secret-in-production"

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `json:"server"`

	// Database configuration
	Database DatabaseConfig `json:"database"`

	// Mongo telemetry archive, disabled when URI is empty
	Mongo MongoConfig `json:"mongo"`

	// MQTT configuration
	MQTT MQTTConfig `json:"mqtt"`

	// Auth configuration
	Auth AuthConfig `json:"auth"`

	// Push dispatch collaborator
	Push PushConfig `json:"push"`

	// Logging configuration
	Logging LoggingConfig `json:"logging"`

	// CORS configuration
	CORS CORSConfig `json:"cors"`

	// Behavioural defaults
	Options Options `json:"options"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port            string        `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	CreateTables    bool          `json:"create_tables"`
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
	MaxConns int    `json:"max_conns"`
	MinConns int    `json:"min_conns"`
}

// MongoConfig holds the raw telemetry archive settings
type MongoConfig struct {
	URI               string        `json:"uri"`
	Database          string        `json:"database"`
	ArchiveCollection string        `json:"archive_collection"`
	ConnectTimeout    time.Duration `json:"connect_timeout"`
}

// Enabled reports whether the archive should be connected
func (m MongoConfig) Enabled() bool {
	return m.URI != ""
}

// MQTTConfig holds MQTT-related configuration
type MQTTConfig struct {
	Enabled       bool          `json:"enabled"`
	BrokerHost    string        `json:"broker_host"`
	BrokerPort    int           `json:"broker_port"`
	BrokerUser    string        `json:"broker_user"`
	BrokerPass    string        `json:"broker_pass"`
	UseTLS        bool          `json:"use_tls"`
	CACertPath    string        `json:"ca_cert_path"`
	TopicPrefix   string        `json:"topic_prefix"`
	ClientID      string        `json:"client_id"`
	SharedGroup   string        `json:"shared_group"`
	KeepAlive     time.Duration `json:"keep_alive"`
	PingTimeout   time.Duration `json:"ping_timeout"`
	QueueSize     int           `json:"queue_size"`
	HandleTimeout time.Duration `json:"handle_timeout"`
}

// AuthConfig holds end-user token validation settings
type AuthConfig struct {
	JWTSecretKey string `json:"jwt_secret_key"`
	JWTIssuer    string `json:"jwt_issuer"`
}

// PushConfig holds the push-dispatch collaborator settings
type PushConfig struct {
	DispatchURL         string        `json:"dispatch_url"`
	ServiceKey          string        `json:"-"`
	Timeout             time.Duration `json:"timeout"`
	BreakerMaxFailures  int           `json:"breaker_max_failures"`
	BreakerResetTimeout time.Duration `json:"breaker_reset_timeout"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	Level        string `json:"level"`
	Format       string `json:"format"` // json or text
	Output       string `json:"output"` // stdout or stderr
	EnableCaller bool   `json:"enable_caller"`
}

// CORSConfig holds CORS-related configuration
type CORSConfig struct {
	AllowedOrigins []string `json:"allowed_origins"`
	AllowedMethods []string `json:"allowed_methods"`
	AllowedHeaders []string `json:"allowed_headers"`
	MaxAge         int      `json:"max_age"`
}

// AllowAllOrigins is true when the origin list is the wildcard
func (c CORSConfig) AllowAllOrigins() bool {
	return len(c.AllowedOrigins) == 0 || (len(c.AllowedOrigins) == 1 && c.AllowedOrigins[0] == "*")
}

// Load loads configuration from environment variables with fallback defaults
func Load() (*Config, error) {
	// .env is optional; plain environment variables work the same way
	_ = godotenv.Load()

	opts := DefaultOptions()

	config := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "9002"),
			ReadTimeout:     getDuration("READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDuration("WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getDuration("IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
			CreateTables:    getBool("CREATE_TABLES", true),
		},
		Database: DatabaseConfig{
			Host:     getEnv("POSTGRES_HOST", "localhost"),
			Port:     getInt("POSTGRES_PORT", 5432),
			User:     getEnv("POSTGRES_USER", ""),
			Password: getEnv("POSTGRES_PASSWORD", ""),
			DBName:   getEnv("POSTGRES_DB", "pillbox"),
			SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
			MaxConns: getInt("POSTGRES_MAX_CONNS", 25),
			MinConns: getInt("POSTGRES_MIN_CONNS", 5),
		},
		Mongo: MongoConfig{
			URI:               getEnv("MONGODB_URI", ""),
			Database:          getEnv("MONGODB_DB", "pillbox"),
			ArchiveCollection: getEnv("MONGODB_ARCHIVE_COLLECTION", "telemetry_archive"),
			ConnectTimeout:    getDuration("MONGODB_CONNECT_TIMEOUT", 20*time.Second),
		},
		MQTT: MQTTConfig{
			Enabled:       getBool("MQTT_ENABLED", false),
			BrokerHost:    getEnv("BROKER_HOST", "localhost"),
			BrokerPort:    getInt("BROKER_PORT", 1883),
			BrokerUser:    getEnv("BROKER_USER", ""),
			BrokerPass:    getEnv("BROKER_PASS", ""),
			UseTLS:        getBool("BROKER_TLS", false),
			CACertPath:    getEnv("BROKER_CA_FILE", ""),
			TopicPrefix:   strings.Trim(getEnv("MQTT_TOPIC_PREFIX", "pillbox"), "/"),
			ClientID:      getEnv("MQTT_CLIENT_ID", "pds-api-service"),
			SharedGroup:   getEnv("MQTT_SHARED_GROUP", ""),
			KeepAlive:     getDuration("MQTT_KEEP_ALIVE", 30*time.Second),
			PingTimeout:   getDuration("MQTT_PING_TIMEOUT", 10*time.Second),
			QueueSize:     getInt("MQTT_QUEUE_SIZE", 1024),
			HandleTimeout: getDuration("MQTT_HANDLE_TIMEOUT", 15*time.Second),
		},
		Auth: AuthConfig{
			JWTSecretKey: getEnv("JWT_SECRET_KEY", defaultJWTSecret),
			JWTIssuer:    getEnv("JWT_ISSUER", ""),
		},
		Push: PushConfig{
			DispatchURL:         getEnv("PUSH_DISPATCH_URL", "http://localhost:54321/functions/v1/push-send"),
			ServiceKey:          getEnv("PUSH_SERVICE_KEY", ""),
			Timeout:             getDuration("PUSH_TIMEOUT", 10*time.Second),
			BreakerMaxFailures:  getInt("PUSH_BREAKER_MAX_FAILURES", 5),
			BreakerResetTimeout: getDuration("PUSH_BREAKER_RESET_TIMEOUT", 30*time.Second),
		},
		Logging: LoggingConfig{
			Level:        getEnv("LOG_LEVEL", "info"),
			Format:       getEnv("LOG_FORMAT", "text"),
			Output:       getEnv("LOG_OUTPUT", "stdout"),
			EnableCaller: getBool("LOG_ENABLE_CALLER", false),
		},
		CORS: CORSConfig{
			AllowedOrigins: getStringSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
			AllowedHeaders: getStringSlice("CORS_ALLOWED_HEADERS", []string{
				"authorization", "x-client-info", "apikey", "content-type",
				"x-device-serial", "x-device-secret", "api-key", "client-info",
			}),
			MaxAge: getInt("CORS_MAX_AGE", 86400),
		},
		Options: Options{
			SnoozeMinutes:          getInt("DEFAULT_SNOOZE_MINUTES", opts.SnoozeMinutes),
			MaxSnoozeMinutes:       getInt("MAX_SNOOZE_MINUTES", opts.MaxSnoozeMinutes),
			DoseSource:             getEnv("DEFAULT_DOSE_SOURCE", opts.DoseSource),
			MaxWeightBatch:         getInt("MAX_WEIGHT_BATCH", opts.MaxWeightBatch),
			PendingCommandLimit:    getInt("PENDING_COMMAND_LIMIT", opts.PendingCommandLimit),
			MaxPendingCommandLimit: getInt("MAX_PENDING_COMMAND_LIMIT", opts.MaxPendingCommandLimit),
			AlarmLocale:            getEnv("ALARM_LOCALE", opts.AlarmLocale),
			AlarmTimezone:          getEnv("ALARM_TIMEZONE", opts.AlarmTimezone),
			AlarmTitle:             getEnv("ALARM_TITLE", opts.AlarmTitle),
			AlarmBodyTemplate:      getEnv("ALARM_BODY_TEMPLATE", opts.AlarmBodyTemplate),
			AlarmDefaultLabel:      getEnv("ALARM_DEFAULT_LABEL", opts.AlarmDefaultLabel),
			AlarmPlaceholderIndex:  getEnv("ALARM_PLACEHOLDER_INDEX", opts.AlarmPlaceholderIndex),
			AlarmRoute:             getEnv("ALARM_ROUTE", opts.AlarmRoute),
			AlarmAction:            getEnv("ALARM_ACTION", opts.AlarmAction),
			SnoozeRedirectDelay:    getDuration("SNOOZE_REDIRECT_DELAY", opts.SnoozeRedirectDelay),
		},
	}

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.User == "" {
		return errors.New("POSTGRES_USER is required")
	}
	if c.Database.Password == "" {
		return errors.New("POSTGRES_PASSWORD is required")
	}
	if c.Push.DispatchURL == "" {
		return errors.New("PUSH_DISPATCH_URL is required")
	}
	if c.Push.Timeout <= 0 {
		return errors.New("PUSH_TIMEOUT must be positive")
	}
	if c.Auth.JWTSecretKey == defaultJWTSecret {
		log.Println("WARNING: Using default JWT secret key. Change JWT_SECRET_KEY in production!")
	}
	return c.Options.Validate()
}

// GetDatabaseDSN returns the database connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User, c.Database.Password, c.Database.DBName, c.Database.SSLMode)
}

// GetMQTTBrokerURL returns the MQTT broker URL
func (c *Config) GetMQTTBrokerURL() string {
	scheme := "tcp"
	if c.MQTT.UseTLS {
		scheme = "tcps"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.MQTT.BrokerHost, c.MQTT.BrokerPort)
}

// Helper functions for environment variable parsing

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Fatalf("invalid %s: %v", key, err)
	}
	return intValue
}

func getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	switch value {
	case "1", "true", "TRUE":
		return true
	case "0", "false", "FALSE":
		return false
	}
	log.Fatalf("invalid %s: %q (expected true/false or 1/0)", key, value)
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		log.Fatalf("invalid %s: %v", key, err)
	}
	return duration
}

func getStringSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := make([]string, 0)
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
