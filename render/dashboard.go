// render/dashboard.go
package render

import (
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"time"
)

//go:embed templates/dashboard.html
var dashboardHTML string

var dashboardTmpl = template.Must(template.New("dashboard").Parse(dashboardHTML))

// DashboardView is everything the dashboard page shows.
type DashboardView struct {
	SelectedCountry string
	Countries       []string
	Days            int
	Columns         []string
	Rows            []TableRow
	ChartURL        string
	LastRefreshed   time.Time
	LatestDate      time.Time
	Error           string // shown above the table, e.g. for an unknown country
}

// ChartURL is the chart endpoint path for country.
func ChartURL(country string) string {
	return "/getCountryChart/" + url.PathEscape(country)
}

// Dashboard writes the HTML page for v.
func Dashboard(w io.Writer, v DashboardView) error {
	if v.Columns == nil {
		v.Columns = TableColumns
	}
	if v.ChartURL == "" && v.SelectedCountry != "" {
		v.ChartURL = ChartURL(v.SelectedCountry)
	}
	if err := dashboardTmpl.Execute(w, v); err != nil {
		return fmt.Errorf("failed to render dashboard: %w", err)
	}
	return nil
}
