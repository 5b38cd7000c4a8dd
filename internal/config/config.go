package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	Port            int
	Environment     string
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
	LogLevel        string
	CORSOrigins     []string

	// Database
	DatabaseURL         string
	DBMaxConnections    int
	DBConnectionTimeout time.Duration
	RunMigrations       bool
	UseMemoryStore      bool // Local runs without Postgres

	// Clerk Auth
	ClerkPublishableKey string
	ClerkSecretKey      string

	// S3
	S3Bucket    string
	S3Region    string
	AWSEndpoint string // For LocalStack in development

	// Extraction
	DefaultLocale  string
	MinSuccessRate float64
	MaxUploadBytes int64

	// Secure encode boundary; 32 bytes, base64 in ENCRYPTION_KEY
	EncryptionKey []byte
}

func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Port:                getEnvInt("PORT", 8080),
		Environment:         getEnv("ENVIRONMENT", "development"),
		ShutdownTimeout:     getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second),
		RequestTimeout:      getEnvDuration("REQUEST_TIMEOUT", 60*time.Second),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		CORSOrigins:         getEnvList("CORS_ORIGINS", []string{"http://localhost:3000", "http://127.0.0.1:3000"}),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		DBMaxConnections:    getEnvInt("DB_MAX_CONNECTIONS", 25),
		DBConnectionTimeout: getEnvDuration("DB_CONNECTION_TIMEOUT", 30*time.Second),
		RunMigrations:       getEnvBool("RUN_MIGRATIONS", true),
		UseMemoryStore:      getEnvBool("USE_MEMORY_STORE", false),
		ClerkPublishableKey: getEnv("CLERK_PUBLISHABLE_KEY", ""),
		ClerkSecretKey:      getEnv("CLERK_SECRET_KEY", ""),
		S3Bucket:            getEnv("S3_BUCKET", ""),
		S3Region:            getEnv("S3_REGION", "us-east-1"),
		AWSEndpoint:         getEnv("AWS_ENDPOINT", ""),
		DefaultLocale:       getEnv("DEFAULT_LOCALE", "en-US"),
		MinSuccessRate:      getEnvFloat("MIN_SUCCESS_RATE", 0.8),
		MaxUploadBytes:      int64(getEnvInt("MAX_UPLOAD_BYTES", 10*1024*1024)),
	}

	if raw := getEnv("ENCRYPTION_KEY", ""); raw != "" {
		key, err := base64.StdEncoding.DecodeString(raw)
		if err != nil {
			return nil, fmt.Errorf("ENCRYPTION_KEY must be base64: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("ENCRYPTION_KEY must decode to 32 bytes, got %d", len(key))
		}
		cfg.EncryptionKey = key
	}

	// Validate required fields
	if cfg.DatabaseURL == "" && !cfg.UseMemoryStore {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.MinSuccessRate < 0 || cfg.MinSuccessRate > 1 {
		return nil, fmt.Errorf("MIN_SUCCESS_RATE must be between 0 and 1")
	}
	if cfg.Environment == "production" {
		if cfg.ClerkSecretKey == "" {
			return nil, fmt.Errorf("CLERK_SECRET_KEY is required in production")
		}
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("S3_BUCKET is required in production")
		}
		if cfg.EncryptionKey == nil {
			return nil, fmt.Errorf("ENCRYPTION_KEY is required in production")
		}
		if cfg.UseMemoryStore {
			return nil, fmt.Errorf("USE_MEMORY_STORE is not allowed in production")
		}
	}

	return cfg, nil
}

// IsProduction reports whether the service runs in production
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
