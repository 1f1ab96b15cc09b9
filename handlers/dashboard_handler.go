// handlers/dashboard_handler.go
package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"

	"github.com/gewnthar/coviddash/models"
	"github.com/gewnthar/coviddash/render"
	"github.com/gewnthar/coviddash/services"
)

const (
	selectedCountryField  = "SelectedCountry"
	selectedCountryCookie = "selected_country"
)

// Dashboard renders the HTML page. GET shows the last selected (or default) country,
// POST selects a new one from the SelectedCountry form field.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ds, err := h.store.Current(r.Context())
	if err != nil {
		log.Printf("ERROR Handler: Dataset unavailable: %v", err)
		http.Error(w, "Dataset unavailable, try again later.", http.StatusServiceUnavailable)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Invalid form data: "+err.Error(), http.StatusBadRequest)
		return
	}

	country, explicit := h.selectedCountry(r)
	if !explicit && !ds.HasCountry(country) {
		country = h.opts.DefaultCountry
	}

	view := render.DashboardView{
		SelectedCountry: country,
		Countries:       ds.CountryNames(),
		Days:            h.opts.DaysShown,
		LastRefreshed:   ds.LastRefreshed,
		LatestDate:      ds.LatestDate(),
	}

	status := http.StatusOK
	days, err := parseDays(r.FormValue("days"), h.opts.DaysShown)
	if err != nil {
		status = http.StatusBadRequest
		view.Error = err.Error()
	} else {
		view.Days = days
		series, err := services.CountryWindow(ds, country, days)
		if err != nil {
			status = statusForError(err)
			view.Error = err.Error()
		} else {
			view.Rows = render.TableRows(series)
		}
	}

	if r.Method == http.MethodPost && status == http.StatusOK {
		http.SetCookie(w, &http.Cookie{
			Name:     selectedCountryCookie,
			Value:    url.QueryEscape(country),
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}

	var buf bytes.Buffer
	if err := render.Dashboard(&buf, view); err != nil {
		log.Printf("ERROR Handler: %v", err)
		http.Error(w, "Failed to render dashboard", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// selectedCountry returns the requested country and whether the user asked for it in
// this request.
func (h *Handler) selectedCountry(r *http.Request) (string, bool) {
	if r.Method == http.MethodPost {
		if c := r.PostForm.Get(selectedCountryField); c != "" {
			return c, true
		}
	}
	if c, err := r.Cookie(selectedCountryCookie); err == nil {
		if v, err := url.QueryUnescape(c.Value); err == nil && v != "" {
			return v, false
		}
	}
	return h.opts.DefaultCountry, false
}

// CountryChart returns the PNG chart of one country. Without ?days= the full history
// is drawn.
// Expects GET to /getCountryChart/{countryName}
func (h *Handler) CountryChart(w http.ResponseWriter, r *http.Request) {
	country := r.PathValue("countryName")

	ds, err := h.store.Current(r.Context())
	if err != nil {
		log.Printf("ERROR Handler: Dataset unavailable: %v", err)
		http.Error(w, "Dataset unavailable, try again later.", http.StatusServiceUnavailable)
		return
	}

	days, err := parseDays(r.URL.Query().Get("days"), len(ds.Dates))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	series, err := services.CountryWindow(ds, country, days)
	if err != nil {
		http.Error(w, err.Error(), statusForError(err))
		return
	}

	var buf bytes.Buffer
	if err := render.CountryChart(&buf, series, h.opts.Chart); err != nil {
		log.Printf("ERROR Handler: %v", err)
		http.Error(w, "Failed to render chart", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", fmt.Sprint(buf.Len()))
	w.Write(buf.Bytes())
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, models.ErrCountryNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidDays):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
