package infra

import (
	"io/fs"
	"strings"
	"testing"
)

func TestMigrationsAreEmbedded(t *testing.T) {
	files, err := fs.Glob(MigrationsFS(), "migrations/*.sql")
	if err != nil {
		t.Fatalf("glob error: %v", err)
	}
	if len(files) < 2 {
		t.Fatalf("expected migrations, got %v", files)
	}
	for _, f := range files {
		raw, err := fs.ReadFile(MigrationsFS(), f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		body := string(raw)
		if !strings.Contains(body, "-- +goose Up") || !strings.Contains(body, "-- +goose Down") {
			t.Fatalf("%s lacks goose annotations", f)
		}
	}
}

func TestJobsSchemaEnforcesSuccessInvariant(t *testing.T) {
	raw, err := fs.ReadFile(MigrationsFS(), "migrations/00002_generation_jobs.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	body := string(raw)
	for _, want := range []string{
		"check (status <> 'succeeded' or jsonb_array_length(versions) >= 1)",
		"on generation_jobs (status, retry_after, attempts)",
		"on generation_jobs (status, locked_at)",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("schema missing %q", want)
		}
	}
}
