// services/country_window.go
package services

import (
	"fmt"

	"github.com/gewnthar/coviddash/models"
)

// CountryWindow returns the most recent days records of country in ascending date
// order. A window larger than the dataset returns every available date.
func CountryWindow(ds *models.Dataset, country string, days int) (models.CountrySeries, error) {
	if ds == nil {
		return models.CountrySeries{}, models.ErrNoDataset
	}
	if days <= 0 {
		return models.CountrySeries{}, fmt.Errorf("%w: got %d", models.ErrInvalidDays, days)
	}
	rows, ok := ds.Series[country]
	if !ok {
		return models.CountrySeries{}, fmt.Errorf("%w: %q", models.ErrCountryNotFound, country)
	}

	start := len(ds.Dates) - days
	if start < 0 {
		start = 0
	}

	records := make([]models.DailyRecord, 0, len(ds.Dates)-start)
	for i := start; i < len(ds.Dates); i++ {
		records = append(records, models.DailyRecord{Date: ds.Dates[i], DailyCounts: rows[i]})
	}
	return models.CountrySeries{Country: country, Records: records}, nil
}
