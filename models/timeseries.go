// models/timeseries.go
package models

import (
	"sort"
	"time"
)

// SeriesKind names one of the three upstream cumulative series.
type SeriesKind string

const (
	KindCases      SeriesKind = "cases"
	KindDeaths     SeriesKind = "deaths"
	KindRecoveries SeriesKind = "recoveries"
)

// RawSeriesRow is one row of an upstream wide-format CSV after Lat/Long were dropped.
// Counts is aligned with the owning table's Dates.
type RawSeriesRow struct {
	Province string
	Country  string
	Counts   []int64
}

// RawSeriesTable is a parsed upstream CSV: rows keyed by region, one column per date.
type RawSeriesTable struct {
	Kind  SeriesKind
	Dates []time.Time // ascending
	Rows  []RawSeriesRow
}

// DailyCounts is the cumulative state of one country on one date.
type DailyCounts struct {
	Cases      int64 `json:"cases"`
	Deaths     int64 `json:"deaths"`
	Recoveries int64 `json:"recoveries"`
	Active     int64 `json:"active"`
}

// NewDailyCounts derives Active from the three fetched series. Negative results are kept.
func NewDailyCounts(cases, deaths, recoveries int64) DailyCounts {
	return DailyCounts{
		Cases:      cases,
		Deaths:     deaths,
		Recoveries: recoveries,
		Active:     cases - deaths - recoveries,
	}
}

// DailyRecord is one row of a CountrySeries.
type DailyRecord struct {
	Date time.Time `json:"date"`
	DailyCounts
}

// CountrySeries is the per-country view handed to the table and chart renderers.
type CountrySeries struct {
	Country string        `json:"country"`
	Records []DailyRecord `json:"records"` // dates strictly ascending
}

// Len returns the number of days in the series.
func (s CountrySeries) Len() int {
	return len(s.Records)
}

// Columns splits the series into a date index and four aligned numeric columns, the
// shape plotting libraries want.
func (s CountrySeries) Columns() (dates []time.Time, cases, deaths, recoveries, active []float64) {
	n := len(s.Records)
	dates = make([]time.Time, n)
	cases = make([]float64, n)
	deaths = make([]float64, n)
	recoveries = make([]float64, n)
	active = make([]float64, n)
	for i, r := range s.Records {
		dates[i] = r.Date
		cases[i] = float64(r.Cases)
		deaths[i] = float64(r.Deaths)
		recoveries[i] = float64(r.Recoveries)
		active[i] = float64(r.Active)
	}
	return
}

// Dataset holds every country's aligned series plus the date it was built on.
// A Dataset is immutable once published; refreshes replace it wholesale.
type Dataset struct {
	Dates         []time.Time              // ascending
	Countries     []string                 // sorted
	Series        map[string][]DailyCounts // each slice aligned with Dates
	LastRefreshed time.Time                // midnight of the build day in the refresh timezone
}

// HasCountry reports whether name is one of the dataset's columns.
func (d *Dataset) HasCountry(name string) bool {
	if d == nil {
		return false
	}
	_, ok := d.Series[name]
	return ok
}

// CountryNames returns a copy of the sorted country list.
func (d *Dataset) CountryNames() []string {
	if d == nil {
		return nil
	}
	names := make([]string, len(d.Countries))
	copy(names, d.Countries)
	return names
}

// LatestDate returns the most recent date in the dataset, zero if empty.
func (d *Dataset) LatestDate() time.Time {
	if d == nil || len(d.Dates) == 0 {
		return time.Time{}
	}
	return d.Dates[len(d.Dates)-1]
}

// SortedCountries returns the keys of series in ascending order.
func SortedCountries(series map[string][]DailyCounts) []string {
	names := make([]string, 0, len(series))
	for name := range series {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
