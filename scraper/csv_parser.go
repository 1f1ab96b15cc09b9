// scraper/csv_parser.go
package scraper

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/gewnthar/coviddash/models"
	"github.com/jszwec/csvutil"
)

// Date headers look like 1/22/20.
const seriesDateLayout = "1/2/06"

// seriesRegion holds the identifying columns of a wide-format time series row. Every
// other column is a date.
type seriesRegion struct {
	Province string `csv:"Province/State"`
	Country  string `csv:"Country/Region"`
	Lat      string `csv:"Lat"`
	Long     string `csv:"Long"`
}

var regionColumns = mustHeader(seriesRegion{})

func mustHeader(v interface{}) []string {
	h, err := csvutil.Header(v, "csv")
	if err != nil {
		panic(err)
	}
	return h
}

// ParseSeriesCSV reads one upstream wide-format CSV. Lat and Long are dropped; rows are
// returned as found, without grouping sub-regions.
func ParseSeriesCSV(kind models.SeriesKind, reader io.Reader) (*models.RawSeriesTable, error) {
	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true

	decoder, err := csvutil.NewDecoder(csvReader)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %s CSV is empty", models.ErrMalformedCSV, kind)
		}
		return nil, fmt.Errorf("%w: failed to read %s CSV header: %v", models.ErrMalformedCSV, kind, err)
	}
	decoder.DisallowMissingColumns = true

	dateIdx, dates, err := dateColumns(decoder.Header())
	if err != nil {
		return nil, fmt.Errorf("%w: %s CSV: %v", models.ErrMalformedCSV, kind, err)
	}

	table := &models.RawSeriesTable{Kind: kind, Dates: dates}
	for line := 2; ; line++ {
		var region seriesRegion
		if err := decoder.Decode(&region); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("%w: %s CSV line %d: %v", models.ErrMalformedCSV, kind, line, err)
		}

		country := strings.TrimSpace(region.Country)
		if country == "" {
			log.Printf("WARN Scraper: %s CSV line %d has no Country/Region, skipping.\n", kind, line)
			continue
		}

		record := decoder.Record()
		counts := make([]int64, len(dateIdx))
		for i, idx := range dateIdx {
			counts[i], err = parseCount(record[idx])
			if err != nil {
				return nil, fmt.Errorf("%w: %s CSV line %d, %s on %s: %v",
					models.ErrMalformedCSV, kind, line, country, dates[i].Format("2006-01-02"), err)
			}
		}

		table.Rows = append(table.Rows, models.RawSeriesRow{
			Province: strings.TrimSpace(region.Province),
			Country:  country,
			Counts:   counts,
		})
	}

	log.Printf("Scraper: Parsed %s CSV: %d rows, %d dates.\n", kind, len(table.Rows), len(table.Dates))
	return table, nil
}

// dateColumns checks that the identifying columns exist and parses every remaining
// header as a date. Dates must be strictly ascending.
func dateColumns(header []string) ([]int, []time.Time, error) {
	known := make(map[string]bool, len(regionColumns))
	for _, c := range regionColumns {
		known[c] = false
	}

	var idx []int
	var dates []time.Time
	for i, name := range header {
		name = strings.TrimSpace(name)
		if _, ok := known[name]; ok {
			known[name] = true
			continue
		}
		d, err := time.Parse(seriesDateLayout, name)
		if err != nil {
			return nil, nil, fmt.Errorf("column %d %q is not an M/D/YY date", i+1, name)
		}
		if n := len(dates); n > 0 && !d.After(dates[n-1]) {
			return nil, nil, fmt.Errorf("date column %q is not after %q", name, dates[n-1].Format(seriesDateLayout))
		}
		idx = append(idx, i)
		dates = append(dates, d)
	}

	var missing []string
	for _, c := range regionColumns {
		if !known[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, nil, fmt.Errorf("missing identifying columns: %s", strings.Join(missing, ", "))
	}
	if len(dates) == 0 {
		return nil, nil, errors.New("no date columns")
	}
	return idx, dates, nil
}

// parseCount reads a cumulative count. Blank cells count as zero; whole floats such
// as "12.0" are accepted.
func parseCount(raw string) (int64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("invalid count %q", raw)
	}
	return int64(f), nil
}
