// render/chart.go
package render

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/gewnthar/coviddash/models"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ChartOptions sizes the rendered PNG in pixels.
type ChartOptions struct {
	Width  int
	Height int
	DPI    float64
}

// DefaultChartOptions matches an 8x5 inch figure at 100 dpi.
func DefaultChartOptions() ChartOptions {
	return ChartOptions{Width: 800, Height: 500, DPI: 100}
}

// ChartTitle is the heading drawn above a country's chart.
func ChartTitle(country string) string {
	return "COVID-19 stats for " + country
}

func lineStyle(col drawing.Color) chart.Style {
	return chart.Style{
		StrokeWidth: 2,
		StrokeColor: col,
	}
}

// CountryChart draws cases, deaths, recoveries and active counts of s as a PNG line chart.
func CountryChart(w io.Writer, s models.CountrySeries, opts ChartOptions) error {
	if s.Len() == 0 {
		return errors.New("cannot chart an empty series")
	}
	if opts.Width <= 0 || opts.Height <= 0 {
		opts = DefaultChartOptions()
	}

	dates, cases, deaths, recoveries, active := s.Columns()
	series := []chart.Series{
		chart.TimeSeries{Name: "Cases", XValues: dates, YValues: cases, Style: lineStyle(chart.ColorBlue)},
		chart.TimeSeries{Name: "Deaths", XValues: dates, YValues: deaths, Style: lineStyle(chart.ColorRed)},
		chart.TimeSeries{Name: "Recoveries", XValues: dates, YValues: recoveries, Style: lineStyle(chart.ColorGreen)},
		chart.TimeSeries{Name: "Active", XValues: dates, YValues: active, Style: lineStyle(chart.ColorOrange)},
	}

	xAxis := chart.XAxis{ValueFormatter: chart.TimeValueFormatterWithFormat("Jan 2")}
	if len(dates) == 1 {
		// go-chart rejects a zero-width range, so a single day gets a day of margin each side.
		mid := chart.TimeToFloat64(dates[0])
		margin := float64(24 * time.Hour)
		xAxis.Range = &chart.ContinuousRange{Min: mid - margin, Max: mid + margin}
	}

	yAxis := chart.YAxis{ValueFormatter: axisCountFormatter}
	if lo, hi := valueBounds(cases, deaths, recoveries, active); lo == hi {
		yAxis.Range = &chart.ContinuousRange{Min: lo - 1, Max: hi + 1}
	}

	ch := chart.Chart{
		Title:      ChartTitle(s.Country),
		Width:      opts.Width,
		Height:     opts.Height,
		DPI:        opts.DPI,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 12, Bottom: 16}},
		XAxis:      xAxis,
		YAxis:      yAxis,
		Series:     series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	if err := ch.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("failed to render chart for %s: %w", s.Country, err)
	}
	return nil
}

func axisCountFormatter(v interface{}) string {
	f, ok := v.(float64)
	if !ok {
		return ""
	}
	return FormatCount(int64(math.Round(f)))
}

func valueBounds(columns ...[]float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, col := range columns {
		for _, v := range col {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	return lo, hi
}
