package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv                  string
	Port                    string
	MetricsPort             string
	DatabaseURL             string
	StoreDriver             string
	JWTSecret               string
	RecoverySecret          string
	StorageDriver           string
	StoragePath             string
	S3Bucket                string
	S3Region                string
	S3Endpoint              string
	S3AccessKeyID           string
	S3SecretAccessKey       string
	GeminiAPIKey            string
	GeminiModel             string
	GeminiBaseURL           string
	JobLease                time.Duration
	RecoveryBatchSize       int
	RecoveryInterval        time.Duration
	TriggerMode             string
	TriggerURL              string
	MaxConcurrentExecutions int
	ProviderTimeout         time.Duration
	HTTPReadTimeout         time.Duration
	HTTPWriteTimeout        time.Duration
	HTTPIdleTimeout         time.Duration
	RateLimitPerMin         int
	CORSAllowedOrigins      []string
}

// UsesPostgres reports whether jobs and owners live in PostgreSQL.
func (c *Config) UsesPostgres() bool {
	return c.StoreDriver == "postgres"
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	port := getEnv("PORT", "8080")
	cfg := &Config{
		AppEnv:                  getEnv("APP_ENV", "development"),
		Port:                    port,
		MetricsPort:             getEnv("METRICS_PORT", "9090"),
		DatabaseURL:             os.Getenv("DATABASE_URL"),
		StoreDriver:             strings.ToLower(getEnv("STORE_DRIVER", "postgres")),
		JWTSecret:               os.Getenv("JWT_SECRET"),
		RecoverySecret:          os.Getenv("RECOVERY_SECRET"),
		StorageDriver:           strings.ToLower(getEnv("STORAGE_DRIVER", "fs")),
		StoragePath:             getEnv("STORAGE_PATH", "./storage"),
		S3Bucket:                os.Getenv("S3_BUCKET"),
		S3Region:                getEnv("S3_REGION", "us-east-1"),
		S3Endpoint:              os.Getenv("S3_ENDPOINT"),
		S3AccessKeyID:           os.Getenv("S3_ACCESS_KEY_ID"),
		S3SecretAccessKey:       os.Getenv("S3_SECRET_ACCESS_KEY"),
		GeminiAPIKey:            os.Getenv("GEMINI_API_KEY"),
		GeminiModel:             getEnv("GEMINI_MODEL", "gemini-2.5-flash-image"),
		GeminiBaseURL:           getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		JobLease:                getEnvDuration("JOB_LEASE_SECONDS", 900),
		RecoveryBatchSize:       getEnvInt("RECOVERY_BATCH_SIZE", 100),
		RecoveryInterval:        getEnvDuration("RECOVERY_INTERVAL_SECONDS", 60),
		TriggerMode:             strings.ToLower(getEnv("TRIGGER_MODE", "local")),
		TriggerURL:              getEnv("TRIGGER_URL", "http://localhost:"+port+"/internal/jobs/execute"),
		MaxConcurrentExecutions: getEnvInt("MAX_CONCURRENT_EXECUTIONS", 8),
		ProviderTimeout:         getEnvDuration("PROVIDER_TIMEOUT_SECONDS", 60),
		HTTPReadTimeout:         getEnvDuration("HTTP_READ_TIMEOUT_SECONDS", 15),
		HTTPWriteTimeout:        getEnvDuration("HTTP_WRITE_TIMEOUT_SECONDS", 960),
		HTTPIdleTimeout:         getEnvDuration("HTTP_IDLE_TIMEOUT_SECONDS", 60),
		RateLimitPerMin:         getEnvInt("RATE_LIMIT_PER_MINUTE", 60),
		CORSAllowedOrigins:      getEnvList("CORS_ALLOWED_ORIGINS"),
	}

	switch cfg.StoreDriver {
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	case "memory":
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	if cfg.RecoverySecret == "" {
		return nil, fmt.Errorf("RECOVERY_SECRET is required")
	}

	switch cfg.TriggerMode {
	case "local", "http":
	default:
		return nil, fmt.Errorf("unsupported TRIGGER_MODE %q", cfg.TriggerMode)
	}

	if cfg.StorageDriver == "s3" && cfg.S3Bucket == "" {
		return nil, fmt.Errorf("S3_BUCKET is required when STORAGE_DRIVER=s3")
	}

	if cfg.JobLease <= 0 {
		return nil, fmt.Errorf("JOB_LEASE_SECONDS must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallbackSeconds int) time.Duration {
	return time.Second * time.Duration(getEnvInt(key, fallbackSeconds))
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
