package infra

import (
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("RECOVERY_SECRET", "recovery-secret")
}

func TestLoadConfigDefaults(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "")
	t.Setenv("JOB_LEASE_SECONDS", "")
	t.Setenv("TRIGGER_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.JobLease != 15*time.Minute {
		t.Fatalf("JobLease mismatch: got %s", cfg.JobLease)
	}
	if cfg.RecoveryBatchSize != 100 || cfg.RecoveryInterval != time.Minute {
		t.Fatalf("recovery defaults mismatch: %d %s", cfg.RecoveryBatchSize, cfg.RecoveryInterval)
	}
	if cfg.TriggerMode != "local" || cfg.StorageDriver != "fs" || !cfg.UsesPostgres() {
		t.Fatalf("driver defaults mismatch: %+v", cfg)
	}
	expected := "http://localhost:8080/internal/jobs/execute"
	if cfg.TriggerURL != expected {
		t.Fatalf("TriggerURL mismatch: got %q want %q", cfg.TriggerURL, expected)
	}
}

func TestLoadConfigInheritsPortInTriggerURL(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "1919")
	t.Setenv("TRIGGER_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	expected := "http://localhost:1919/internal/jobs/execute"
	if cfg.TriggerURL != expected {
		t.Fatalf("TriggerURL mismatch: got %q want %q", cfg.TriggerURL, expected)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("JOB_LEASE_SECONDS", "120")
	t.Setenv("TRIGGER_MODE", "HTTP")
	t.Setenv("MAX_CONCURRENT_EXECUTIONS", "not-a-number")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example.com, ,https://b.example.com ")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.JobLease != 2*time.Minute || cfg.TriggerMode != "http" {
		t.Fatalf("overrides not applied: lease=%s mode=%s", cfg.JobLease, cfg.TriggerMode)
	}
	if cfg.MaxConcurrentExecutions != 8 {
		t.Fatalf("invalid int should fall back to default, got %d", cfg.MaxConcurrentExecutions)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example.com" {
		t.Fatalf("CORSAllowedOrigins mismatch: %#v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadConfigMemoryStoreNeedsNoDatabase(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("DATABASE_URL", "")
	t.Setenv("STORE_DRIVER", "memory")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.UsesPostgres() {
		t.Fatalf("memory driver reported postgres")
	}
}

func TestLoadConfigValidation(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing database", env: map[string]string{"DATABASE_URL": ""}},
		{name: "missing jwt secret", env: map[string]string{"JWT_SECRET": ""}},
		{name: "missing recovery secret", env: map[string]string{"RECOVERY_SECRET": ""}},
		{name: "unknown store", env: map[string]string{"STORE_DRIVER": "mongo"}},
		{name: "unknown trigger mode", env: map[string]string{"TRIGGER_MODE": "kafka"}},
		{name: "s3 without bucket", env: map[string]string{"STORAGE_DRIVER": "s3", "S3_BUCKET": ""}},
		{name: "non-positive lease", env: map[string]string{"JOB_LEASE_SECONDS": "0"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setRequiredEnv(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := LoadConfig(); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}
