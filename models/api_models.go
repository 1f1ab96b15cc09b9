// models/api_models.go
package models

import "time"

// CountryListResponse is the body of GET /api/countries.
type CountryListResponse struct {
	Countries     []string  `json:"countries"`
	LastRefreshed time.Time `json:"last_refreshed"`
}

// CountrySeriesResponse is the body of GET /api/countries/{countryName}/series.
type CountrySeriesResponse struct {
	CountrySeries
	Days          int       `json:"days"`
	LastRefreshed time.Time `json:"last_refreshed"`
}

// HealthResponse is the body of GET /api/health.
type HealthResponse struct {
	Status        string    `json:"status"`
	Message       string    `json:"message"`
	LastRefreshed time.Time `json:"last_refreshed,omitempty"`
	Countries     int       `json:"countries"`
}
