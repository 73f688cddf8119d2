package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	GRPCPort    string
	HTTPPort    string
	CORSOrigins string

	MaxConnections   int
	MaxMessageSizeMB int
	LogLevel         string
	Environment      string

	// APITokenHash is a bcrypt hash guarding the control endpoints. Empty
	// disables the check.
	APITokenHash string

	DBDriver   string
	DBPath     string
	DBName     string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	MQTTBroker   string
	MQTTClientID string
	MQTTTopic    string

	FlushInterval time.Duration
	AutoStart     bool

	PipelineFile string
	Pipeline     Pipeline

	// DotenvLoaded reports whether a .env file was found.
	DotenvLoaded bool
}

func (c *Config) DSN() string {
	if c.DBDriver == "sqlite3" {
		return c.DBPath
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

// DSNForLog masks the password.
func (c *Config) DSNForLog() string {
	if c.DBDriver == "sqlite3" {
		return c.DBPath
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=*** dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBName, c.DBSSLMode)
}

func (c *Config) IsDev() bool {
	return c.Environment == "dev"
}

func (c *Config) PersistenceEnabled() bool {
	return c.DBDriver != "" && c.DBDriver != "none"
}

func (c *Config) MQTTEnabled() bool {
	return c.MQTTBroker != ""
}

// LoadConfig reads .env (if present) and the process environment. Pipeline
// thresholds start from defaults, are overlaid by PIPELINE_CONFIG_FILE when
// set and then by PIPELINE_* variables. The result is validated.
func LoadConfig() (*Config, error) {
	loaded := godotenv.Load() == nil

	cfg := &Config{
		GRPCPort:         getEnv("GRPC_PORT", "50051"),
		HTTPPort:         getEnv("HTTP_PORT", "8080"),
		CORSOrigins:      getEnv("CORS_ORIGINS", "*"),
		MaxConnections:   getEnvInt("MAX_CONNECTIONS", 100),
		MaxMessageSizeMB: getEnvInt("MAX_MESSAGE_SIZE_MB", 16),
		LogLevel:         getEnv("LOG_LEVEL", "INFO"),
		Environment:      getEnv("ENVIRONMENT", "production"),
		APITokenHash:     getEnv("API_TOKEN_HASH", ""),
		DBDriver:         strings.ToLower(getEnv("DB_DRIVER", "sqlite3")),
		DBPath:           getEnv("DB_PATH", "eyemonitor.db"),
		DBHost:           getEnv("DB_HOST", "localhost"),
		DBPort:           getEnv("DB_PORT", "5432"),
		DBUser:           getEnv("DB_USER", "postgres"),
		DBPassword:       getEnv("DB_PASSWORD", ""),
		DBName:           getEnv("DB_NAME", "eyemonitor"),
		DBSSLMode:        getEnv("DB_SSLMODE", "disable"),
		MQTTBroker:       getEnv("MQTT_BROKER", ""),
		MQTTClientID:     getEnv("MQTT_CLIENT_ID", "eyemonitor"),
		MQTTTopic:        getEnv("MQTT_TOPIC", "eyemonitor/alerts"),
		FlushInterval:    getEnvDuration("FLUSH_INTERVAL", 30*time.Second),
		AutoStart:        getEnvBool("AUTO_START", false),
		PipelineFile:     getEnv("PIPELINE_CONFIG_FILE", ""),
		Pipeline:         DefaultPipeline(),
		DotenvLoaded:     loaded,
	}

	switch cfg.DBDriver {
	case "sqlite3", "postgres", "none":
	default:
		return nil, fmt.Errorf("%w: DB_DRIVER %q", ErrInvalidConfig, cfg.DBDriver)
	}
	if cfg.FlushInterval <= 0 {
		return nil, fmt.Errorf("%w: FLUSH_INTERVAL must be positive", ErrInvalidConfig)
	}

	if cfg.PipelineFile != "" {
		p, err := LoadPipelineFile(cfg.PipelineFile, cfg.Pipeline)
		if err != nil {
			return nil, err
		}
		cfg.Pipeline = p
	}
	p, err := pipelineFromEnv(cfg.Pipeline)
	if err != nil {
		return nil, err
	}
	cfg.Pipeline = p

	if err := cfg.Pipeline.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func getEnv(key string, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if intVal, err := strconv.Atoi(v); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
