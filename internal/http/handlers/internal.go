package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"genstudio/internal/jobs"
	"genstudio/internal/middleware"
)

const maxTriggerBody = 64 << 10

// ExecuteJob runs one trigger request to completion and reports the result.
// Skips are normal outcomes and answer 200 like successes and failures. A
// payload without an execution id runs under the request's correlation id.
func (a *App) ExecuteJob(w http.ResponseWriter, r *http.Request) {
	var req jobs.TriggerRequest
	body := http.MaxBytesReader(w, r.Body, maxTriggerBody)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid trigger payload")
		return
	}
	req.JobID = strings.TrimSpace(req.JobID)
	if req.JobID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "jobId required")
		return
	}
	switch req.Kind {
	case "", jobs.KindInitial, jobs.KindRefine:
	default:
		a.error(w, http.StatusBadRequest, "bad_request", "unknown trigger kind")
		return
	}
	if req.ExecutionID == "" {
		req.ExecutionID = middleware.RequestIDFromContext(r.Context())
	}
	res := a.Runner.Execute(r.Context(), req)
	a.json(w, http.StatusOK, res)
}

// RecoverySweep runs one scan and reports dispatch counts.
func (a *App) RecoverySweep(w http.ResponseWriter, r *http.Request) {
	res, err := a.Scanner.Scan(r.Context())
	if err != nil {
		a.Log.Error().Err(err).Msg("recovery sweep failed")
		a.error(w, http.StatusInternalServerError, "internal", "recovery sweep failed")
		return
	}
	if res.JobIDs == nil {
		res.JobIDs = []string{}
	}
	a.json(w, http.StatusOK, res)
}
