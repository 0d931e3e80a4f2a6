package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"genstudio/internal/domain"
	"genstudio/internal/middleware"
	"genstudio/pkg/zip"
)

type jobResponse struct {
	ID              string                 `json:"job_id"`
	OwnerID         string                 `json:"owner_id"`
	Status          domain.JobStatus       `json:"status"`
	StyleParameters domain.StyleParameters `json:"style_parameters"`
	Provider        domain.ProviderInfo    `json:"provider"`
	Versions        []domain.Version       `json:"versions"`
	Attempts        int                    `json:"attempts"`
	MaxAttempts     int                    `json:"max_attempts"`
	LastAttemptAt   *time.Time             `json:"last_attempt_at,omitempty"`
	RetryAfter      *time.Time             `json:"retry_after,omitempty"`
	Error           *domain.JobError       `json:"error,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
	UpdatedAt       time.Time              `json:"updated_at"`
}

func newJobResponse(job *domain.Job) jobResponse {
	return jobResponse{
		ID:              job.ID,
		OwnerID:         job.OwnerID,
		Status:          job.Status,
		StyleParameters: job.StyleParameters,
		Provider:        job.Provider,
		Versions:        job.Versions,
		Attempts:        job.Attempts,
		MaxAttempts:     job.MaxAttempts,
		LastAttemptAt:   job.LastAttemptAt,
		RetryAfter:      job.RetryAfter,
		Error:           job.Error,
		CreatedAt:       job.CreatedAt,
		UpdatedAt:       job.UpdatedAt,
	}
}

// JobStatus returns the caller's job.
func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobID := chi.URLParam(r, "job_id")
	if jobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id required")
		return
	}
	job, err := a.loadJobForUser(r.Context(), jobID, userID)
	if err != nil {
		a.jobLookupError(w, err)
		return
	}
	a.json(w, http.StatusOK, newJobResponse(job))
}

// VersionArchive streams a zip of one version's artifacts.
func (a *App) VersionArchive(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())
	if userID == "" {
		a.error(w, http.StatusUnauthorized, "unauthorized", "missing user context")
		return
	}
	jobID := chi.URLParam(r, "job_id")
	versionID := chi.URLParam(r, "version_id")
	if jobID == "" || versionID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "job_id and version_id required")
		return
	}
	job, err := a.loadJobForUser(r.Context(), jobID, userID)
	if err != nil {
		a.jobLookupError(w, err)
		return
	}
	var version *domain.Version
	for i := range job.Versions {
		if job.Versions[i].ID == versionID {
			version = &job.Versions[i]
			break
		}
	}
	if version == nil {
		a.error(w, http.StatusNotFound, "not_found", "version not found")
		return
	}

	assets := make([]zip.Asset, 0, len(version.ArtifactRefs))
	for _, ref := range version.ArtifactRefs {
		data, err := a.Blobs.Fetch(r.Context(), ref)
		if err != nil {
			a.Log.Error().Err(err).Str("job_id", jobID).Str("ref", ref).Msg("archive: fetch artifact failed")
			a.error(w, http.StatusBadGateway, "artifact_unavailable", "failed to load artifact")
			return
		}
		assets = append(assets, zip.Asset{
			Filename: fmt.Sprintf("%s-%s-%s", jobID, versionID, path.Base(ref)),
			Data:     data,
		})
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=job-%s-%s.zip", jobID, versionID))
	w.WriteHeader(http.StatusOK)
	if err := zip.ArchiveAssets(w, assets); err != nil {
		a.Log.Warn().Err(err).Str("job_id", jobID).Msg("archive: write interrupted")
	}
}

func (a *App) jobLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrNotFound) {
		a.error(w, http.StatusNotFound, "not_found", "job not found")
		return
	}
	a.Log.Error().Err(err).Msg("job lookup failed")
	a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
}

// loadJobForUser hides jobs of other owners behind ErrNotFound.
func (a *App) loadJobForUser(ctx context.Context, jobID, userID string) (*domain.Job, error) {
	job, err := a.Jobs.Get(ctx, strings.TrimSpace(jobID))
	if err != nil {
		return nil, err
	}
	if job.OwnerID != userID {
		return nil, domain.ErrNotFound
	}
	return job, nil
}
