package handlers

import (
	"net/http"
)

// Health reports liveness only; it does not touch the job store.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "ok", "service": "genstudio"})
}
