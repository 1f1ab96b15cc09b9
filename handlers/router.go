// handlers/router.go
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gewnthar/coviddash/models"
	"github.com/gewnthar/coviddash/render"
	"github.com/gewnthar/coviddash/services"
)

// DatasetProvider is the dataset state the handlers read from.
type DatasetProvider interface {
	Current(ctx context.Context) (*models.Dataset, error)
	Snapshot() *models.Dataset
	Refresh(ctx context.Context, trigger models.RefreshTrigger) error
}

// SourceChecker scrapes the upstream dataset page.
type SourceChecker interface {
	CheckSourcePage(ctx context.Context, pageURL, containerSelector string) (*models.SourcePageInfo, error)
}

type Options struct {
	DefaultCountry string
	DaysShown      int
	Chart          render.ChartOptions
	SourcePageURL  string
	SourceSelector string
}

// Handler serves the dashboard, chart and JSON endpoints.
type Handler struct {
	store   DatasetProvider
	history services.RefreshHistory
	checker SourceChecker
	opts    Options
}

// New builds a Handler. history and checker may be nil; their endpoints then answer 404.
func New(store DatasetProvider, history services.RefreshHistory, checker SourceChecker, opts Options) *Handler {
	if opts.DaysShown <= 0 {
		opts.DaysShown = 28
	}
	if opts.Chart.Width <= 0 || opts.Chart.Height <= 0 {
		opts.Chart = render.DefaultChartOptions()
	}
	return &Handler{store: store, history: history, checker: checker, opts: opts}
}

// Routes registers every endpoint on a new ServeMux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", h.Dashboard)
	mux.HandleFunc("POST /{$}", h.Dashboard)
	mux.HandleFunc("GET /getCountryChart/{countryName}", h.CountryChart)

	mux.HandleFunc("GET /api/health", h.Health)
	mux.HandleFunc("GET /api/countries", h.ListCountries)
	mux.HandleFunc("GET /api/countries/{countryName}/series", h.CountrySeries)

	mux.HandleFunc("POST /api/admin/refresh", h.ForceRefresh)
	mux.HandleFunc("GET /api/admin/refresh-runs", h.ListRefreshRuns)
	mux.HandleFunc("GET /api/admin/source-status", h.SourceStatus)
	return mux
}

// parseDays reads an optional day window, falling back to def when raw is empty.
func parseDays(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%w: got %q", models.ErrInvalidDays, raw)
	}
	return n, nil
}
