// handlers/admin_handler.go
package handlers

import (
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gewnthar/coviddash/models"
	"github.com/goccy/go-json"
)

// Helper to respond with JSON
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Error marshalling JSON response: %v", err)
		http.Error(w, `{"error":"Failed to marshal JSON response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

// Helper to respond with an error
func respondWithError(w http.ResponseWriter, code int, message string) {
	log.Printf("API Error %d: %s", code, message)
	respondWithJSON(w, code, map[string]string{"error": message})
}

// ForceRefresh rebuilds the dataset now, whatever its age.
// Expects POST to /api/admin/refresh
func (h *Handler) ForceRefresh(w http.ResponseWriter, r *http.Request) {
	log.Println("Handler: Received manual refresh request")

	if err := h.store.Refresh(r.Context(), models.TriggerManual); err != nil {
		respondWithError(w, http.StatusBadGateway, fmt.Sprintf("Failed to refresh dataset, previous data kept: %v", err))
		return
	}

	ds := h.store.Snapshot()
	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message":        "Dataset refreshed successfully.",
		"countries":      len(ds.Countries),
		"dates":          len(ds.Dates),
		"last_refreshed": ds.LastRefreshed,
	})
}

// ListRefreshRuns returns recent refresh attempts, newest first.
// Expects GET to /api/admin/refresh-runs?limit=N
func (h *Handler) ListRefreshRuns(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		respondWithError(w, http.StatusNotFound, "Refresh history is not enabled")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondWithError(w, http.StatusBadRequest, "Invalid 'limit' query parameter. Use a positive integer.")
			return
		}
		limit = n
	}

	runs, err := h.history.ListRefreshRuns(r.Context(), limit)
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to list refresh runs: %v", err))
		return
	}
	if runs == nil {
		runs = []models.RefreshRun{}
	}
	respondWithJSON(w, http.StatusOK, runs)
}

// SourceStatus scrapes the upstream dataset page for its last publication date.
// Expects GET to /api/admin/source-status
func (h *Handler) SourceStatus(w http.ResponseWriter, r *http.Request) {
	if h.checker == nil || h.opts.SourcePageURL == "" {
		respondWithError(w, http.StatusNotFound, "Source page check is not configured")
		return
	}

	info, err := h.checker.CheckSourcePage(r.Context(), h.opts.SourcePageURL, h.opts.SourceSelector)
	if err != nil {
		respondWithError(w, http.StatusBadGateway, fmt.Sprintf("Failed to check source page: %v", err))
		return
	}
	respondWithJSON(w, http.StatusOK, info)
}
