// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all service configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	S3            S3Config
	Auth          AuthConfig
	IdentityCache IdentityCacheConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// DSN returns the PostgreSQL connection string
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode)
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Enabled  bool
}

// S3Config holds object storage configuration for media assets
type S3Config struct {
	Region          string
	Bucket          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PresignTTL      time.Duration
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret       string
	SessionTTL      time.Duration
	MagicLinkTTL    time.Duration
	OIDCIssuer      string
	OIDCClientID    string
	OIDCSecret      string
	OIDCRedirectURL string
}

// IdentityCacheConfig controls the resolved-identity cache
type IdentityCacheConfig struct {
	TTL     time.Duration
	MaxSize int
}

// ObservabilityConfig holds logging and metrics configuration
type ObservabilityConfig struct {
	LogLevel    string
	MetricsPort int
}

// Load reads configuration from ATELIER_* environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("ATELIER_HOST", "0.0.0.0"),
			Port:            getEnvInt("ATELIER_PORT", 8080),
			ReadTimeout:     getEnvDuration("ATELIER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvDuration("ATELIER_WRITE_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvDuration("ATELIER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("ATELIER_DB_HOST", "localhost"),
			Port:     getEnvInt("ATELIER_DB_PORT", 5432),
			User:     getEnv("ATELIER_DB_USER", "atelier"),
			Password: getEnv("ATELIER_DB_PASSWORD", ""),
			Database: getEnv("ATELIER_DB_NAME", "atelier"),
			SSLMode:  getEnv("ATELIER_DB_SSLMODE", "disable"),
			MaxConns: getEnvInt("ATELIER_DB_MAX_CONNS", 25),
			MaxIdle:  getEnvInt("ATELIER_DB_MAX_IDLE", 5),
		},
		Redis: RedisConfig{
			Addr:     getEnv("ATELIER_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("ATELIER_REDIS_PASSWORD", ""),
			DB:       getEnvInt("ATELIER_REDIS_DB", 0),
			Enabled:  getEnvBool("ATELIER_REDIS_ENABLED", false),
		},
		S3: S3Config{
			Region:          getEnv("ATELIER_S3_REGION", "us-east-1"),
			Bucket:          getEnv("ATELIER_S3_BUCKET", ""),
			Endpoint:        getEnv("ATELIER_S3_ENDPOINT", ""),
			AccessKeyID:     getEnv("ATELIER_S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("ATELIER_S3_SECRET_ACCESS_KEY", ""),
			PresignTTL:      getEnvDuration("ATELIER_S3_PRESIGN_TTL", 15*time.Minute),
		},
		Auth: AuthConfig{
			JWTSecret:       getEnv("ATELIER_JWT_SECRET", ""),
			SessionTTL:      getEnvDuration("ATELIER_SESSION_TTL", 24*time.Hour),
			MagicLinkTTL:    getEnvDuration("ATELIER_MAGIC_LINK_TTL", 15*time.Minute),
			OIDCIssuer:      getEnv("ATELIER_OIDC_ISSUER", ""),
			OIDCClientID:    getEnv("ATELIER_OIDC_CLIENT_ID", ""),
			OIDCSecret:      getEnv("ATELIER_OIDC_CLIENT_SECRET", ""),
			OIDCRedirectURL: getEnv("ATELIER_OIDC_REDIRECT_URL", ""),
		},
		IdentityCache: IdentityCacheConfig{
			TTL:     getEnvDuration("ATELIER_IDENTITY_CACHE_TTL", 15*time.Minute),
			MaxSize: getEnvInt("ATELIER_IDENTITY_CACHE_SIZE", 10000),
		},
		Observability: ObservabilityConfig{
			LogLevel:    getEnv("ATELIER_LOG_LEVEL", "info"),
			MetricsPort: getEnvInt("ATELIER_METRICS_PORT", 9090),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required configuration values
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("ATELIER_JWT_SECRET is required")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("ATELIER_JWT_SECRET must be at least 32 bytes")
	}
	if c.IdentityCache.TTL <= 0 {
		return fmt.Errorf("identity cache TTL must be positive")
	}
	if c.Auth.OIDCIssuer != "" && c.Auth.OIDCClientID == "" {
		return fmt.Errorf("ATELIER_OIDC_CLIENT_ID is required when OIDC is configured")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
