// services/timeseries_loader.go
package services

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/gewnthar/coviddash/models"
	"github.com/gewnthar/coviddash/scraper"
	"golang.org/x/sync/errgroup"
)

// CSVFetcher downloads one upstream CSV document.
type CSVFetcher interface {
	FetchCSV(ctx context.Context, url string) ([]byte, error)
}

// SourceURLs are the three upstream wide-format CSVs.
type SourceURLs struct {
	Cases      string
	Deaths     string
	Recoveries string
}

// LoaderConfig configures a TimeSeriesLoader. Location decides what "today" means for
// LastRefreshed; Now defaults to time.Now.
type LoaderConfig struct {
	Sources  SourceURLs
	Timeout  time.Duration
	Location *time.Location
	Now      func() time.Time
}

// TimeSeriesLoader turns the three upstream CSVs into a Dataset.
type TimeSeriesLoader struct {
	fetcher  CSVFetcher
	sources  SourceURLs
	timeout  time.Duration
	location *time.Location
	now      func() time.Time
}

func NewTimeSeriesLoader(fetcher CSVFetcher, cfg LoaderConfig) *TimeSeriesLoader {
	l := &TimeSeriesLoader{
		fetcher:  fetcher,
		sources:  cfg.Sources,
		timeout:  cfg.Timeout,
		location: cfg.Location,
		now:      cfg.Now,
	}
	if l.location == nil {
		l.location = time.Local
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

// Ingest fetches and parses all three CSVs concurrently and builds a Dataset. Any fetch
// or parse failure aborts the whole ingest.
func (l *TimeSeriesLoader) Ingest(ctx context.Context) (*models.Dataset, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	sources := []struct {
		kind models.SeriesKind
		url  string
	}{
		{models.KindCases, l.sources.Cases},
		{models.KindDeaths, l.sources.Deaths},
		{models.KindRecoveries, l.sources.Recoveries},
	}
	tables := make([]*models.RawSeriesTable, len(sources))

	errg, gctx := errgroup.WithContext(ctx)
	for i, src := range sources {
		errg.Go(func() error {
			if src.url == "" {
				return fmt.Errorf("%s CSV URL is not configured", src.kind)
			}
			body, err := l.fetcher.FetchCSV(gctx, src.url)
			if err != nil {
				return fmt.Errorf("failed to fetch %s CSV: %w", src.kind, err)
			}
			tables[i], err = scraper.ParseSeriesCSV(src.kind, bytes.NewReader(body))
			if err != nil {
				return fmt.Errorf("failed to parse %s CSV: %w", src.kind, err)
			}
			return nil
		})
	}
	if err := errg.Wait(); err != nil {
		return nil, err
	}

	return BuildDataset(tables[0], tables[1], tables[2], CalendarDay(l.now(), l.location))
}

// BuildDataset sums sub-region rows per country, aligns the three tables by date and
// derives Active for every (country, date) cell.
//
// Only dates present in all three tables are kept. A country missing from one table
// gets zeros for that series.
func BuildDataset(cases, deaths, recoveries *models.RawSeriesTable, refreshed time.Time) (*models.Dataset, error) {
	if cases == nil || deaths == nil || recoveries == nil {
		return nil, fmt.Errorf("cases, deaths and recoveries tables are all required")
	}
	for _, t := range []*models.RawSeriesTable{cases, deaths, recoveries} {
		if err := checkRowWidths(t); err != nil {
			return nil, err
		}
	}

	dates, cols := commonDates(cases, deaths, recoveries)
	if len(dates) == 0 {
		return nil, fmt.Errorf("%w: cases, deaths and recoveries share no dates", models.ErrMalformedCSV)
	}
	if dropped := len(cases.Dates) - len(dates); dropped > 0 {
		log.Printf("WARN Service: %d case dates are missing from deaths or recoveries and were dropped.\n", dropped)
	}

	byKind := [3]map[string][]int64{
		aggregateByCountry(cases, cols[0]),
		aggregateByCountry(deaths, cols[1]),
		aggregateByCountry(recoveries, cols[2]),
	}

	names := make(map[string]struct{})
	for _, m := range byKind {
		for name := range m {
			names[name] = struct{}{}
		}
	}

	series := make(map[string][]models.DailyCounts, len(names))
	var incomplete []string
	for name := range names {
		c, okC := byKind[0][name]
		d, okD := byKind[1][name]
		r, okR := byKind[2][name]
		if !okC || !okD || !okR {
			incomplete = append(incomplete, name)
		}

		rows := make([]models.DailyCounts, len(dates))
		for i := range dates {
			rows[i] = models.NewDailyCounts(at(c, i), at(d, i), at(r, i))
		}
		series[name] = rows
	}
	if len(incomplete) > 0 {
		sort.Strings(incomplete)
		log.Printf("WARN Service: %d countries are missing from at least one series and were zero-filled: %s\n",
			len(incomplete), strings.Join(incomplete, ", "))
	}

	return &models.Dataset{
		Dates:         dates,
		Countries:     models.SortedCountries(series),
		Series:        series,
		LastRefreshed: refreshed,
	}, nil
}

func checkRowWidths(t *models.RawSeriesTable) error {
	for i, row := range t.Rows {
		if len(row.Counts) != len(t.Dates) {
			return fmt.Errorf("%w: %s row %d (%s) has %d counts for %d dates",
				models.ErrMalformedCSV, t.Kind, i, row.Country, len(row.Counts), len(t.Dates))
		}
	}
	return nil
}

// commonDates returns the cases dates also present in deaths and recoveries, plus for
// each table the column index of every kept date.
func commonDates(cases, deaths, recoveries *models.RawSeriesTable) ([]time.Time, [3][]int) {
	deathIdx := dateIndex(deaths.Dates)
	recIdx := dateIndex(recoveries.Dates)

	var dates []time.Time
	var cols [3][]int
	for i, d := range cases.Dates {
		di, okD := deathIdx[d]
		ri, okR := recIdx[d]
		if !okD || !okR {
			continue
		}
		dates = append(dates, d)
		cols[0] = append(cols[0], i)
		cols[1] = append(cols[1], di)
		cols[2] = append(cols[2], ri)
	}
	return dates, cols
}

func dateIndex(dates []time.Time) map[time.Time]int {
	idx := make(map[time.Time]int, len(dates))
	for i, d := range dates {
		idx[d] = i
	}
	return idx
}

// aggregateByCountry sums every row of a country, picking the columns listed in cols.
func aggregateByCountry(t *models.RawSeriesTable, cols []int) map[string][]int64 {
	out := make(map[string][]int64)
	for _, row := range t.Rows {
		acc, ok := out[row.Country]
		if !ok {
			acc = make([]int64, len(cols))
			out[row.Country] = acc
		}
		for j, c := range cols {
			acc[j] += row.Counts[c]
		}
	}
	return out
}

func at(values []int64, i int) int64 {
	if values == nil {
		return 0
	}
	return values[i]
}

// CalendarDay returns midnight of t's date in loc.
func CalendarDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
