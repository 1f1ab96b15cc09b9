// render/table.go
package render

import (
	"github.com/gewnthar/coviddash/models"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const tableDateLayout = "2006-01-02"

// TableColumns are the headers of the recent-days table, in display order.
var TableColumns = []string{"Date", "Cases", "Deaths", "Recoveries", "Active"}

// TableRow is one display-ready line of the recent-days table.
type TableRow struct {
	Date       string
	Cases      string
	Deaths     string
	Recoveries string
	Active     string
}

func newPrinter() *message.Printer {
	return message.NewPrinter(language.English)
}

// FormatCount renders n with thousands separators and no decimals: 1234567 -> "1,234,567".
func FormatCount(n int64) string {
	return newPrinter().Sprintf("%d", n)
}

// TableRows formats every record of s, oldest first.
func TableRows(s models.CountrySeries) []TableRow {
	p := newPrinter()
	rows := make([]TableRow, len(s.Records))
	for i, r := range s.Records {
		rows[i] = TableRow{
			Date:       r.Date.Format(tableDateLayout),
			Cases:      p.Sprintf("%d", r.Cases),
			Deaths:     p.Sprintf("%d", r.Deaths),
			Recoveries: p.Sprintf("%d", r.Recoveries),
			Active:     p.Sprintf("%d", r.Active),
		}
	}
	return rows
}
