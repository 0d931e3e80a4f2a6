package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"genstudio/internal/domain"
	"genstudio/internal/jobs"
	"genstudio/internal/storage"
)

// Scanner runs one recovery sweep.
type Scanner interface {
	Scan(ctx context.Context) (jobs.ScanResult, error)
}

type App struct {
	Runner  jobs.Runner
	Scanner Scanner
	Jobs    domain.JobStore
	Blobs   storage.BlobStore
	Log     zerolog.Logger
}

func NewApp(runner jobs.Runner, scanner Scanner, store domain.JobStore, blobs storage.BlobStore, logger zerolog.Logger) *App {
	return &App{Runner: runner, Scanner: scanner, Jobs: store, Blobs: blobs, Log: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, map[string]string{"error": errCode, "message": message})
}
