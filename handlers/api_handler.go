// handlers/api_handler.go
package handlers

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gewnthar/coviddash/models"
	"github.com/gewnthar/coviddash/services"
)

// Health reports whether a dataset is loaded. It never triggers a refresh.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ds := h.store.Snapshot()
	if ds == nil {
		respondWithJSON(w, http.StatusServiceUnavailable, models.HealthResponse{
			Status:  "error",
			Message: "no dataset loaded",
		})
		return
	}
	respondWithJSON(w, http.StatusOK, models.HealthResponse{
		Status:        "ok",
		Message:       "COVID-19 dashboard backend is healthy",
		LastRefreshed: ds.LastRefreshed,
		Countries:     len(ds.Countries),
	})
}

// ListCountries returns every known country name for selection controls.
// Expects GET to /api/countries
func (h *Handler) ListCountries(w http.ResponseWriter, r *http.Request) {
	ds, err := h.store.Current(r.Context())
	if err != nil {
		respondWithError(w, http.StatusServiceUnavailable, fmt.Sprintf("Dataset unavailable: %v", err))
		return
	}
	respondWithJSON(w, http.StatusOK, models.CountryListResponse{
		Countries:     ds.CountryNames(),
		LastRefreshed: ds.LastRefreshed,
	})
}

// CountrySeries returns the last N days of one country.
// Expects GET to /api/countries/{countryName}/series?days=N
func (h *Handler) CountrySeries(w http.ResponseWriter, r *http.Request) {
	country := r.PathValue("countryName")
	days, err := parseDays(r.URL.Query().Get("days"), h.opts.DaysShown)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	ds, err := h.store.Current(r.Context())
	if err != nil {
		respondWithError(w, http.StatusServiceUnavailable, fmt.Sprintf("Dataset unavailable: %v", err))
		return
	}

	log.Printf("Handler: Received series request for %s (%d days)\n", country, days)
	series, err := services.CountryWindow(ds, country, days)
	if err != nil {
		respondWithError(w, statusForError(err), err.Error())
		return
	}

	respondWithJSON(w, http.StatusOK, models.CountrySeriesResponse{
		CountrySeries: series,
		Days:          series.Len(),
		LastRefreshed: ds.LastRefreshed,
	})
}
