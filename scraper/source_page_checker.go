// scraper/source_page_checker.go
package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gewnthar/coviddash/models"
)

// Matches "March 9, 2023" or "2023-03-09".
var updatedDateRegex = regexp.MustCompile(`((?:January|February|March|April|May|June|July|August|September|October|November|December)\s+\d{1,2},\s+\d{4})|(\d{4}-\d{2}-\d{2})`)

const (
	longDateLayout = "January 2, 2006"
	isoDateLayout  = "2006-01-02"
)

// parseUpdatedDate returns the first date found in text along with the matched substring.
func parseUpdatedDate(text string) (time.Time, string, error) {
	m := updatedDateRegex.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, "", fmt.Errorf("no date found in %q", truncate(text, 120))
	}
	if m[1] != "" {
		raw := strings.Join(strings.Fields(m[1]), " ")
		t, err := time.Parse(longDateLayout, raw)
		return t, m[1], err
	}
	t, err := time.Parse(isoDateLayout, m[2])
	return t, m[2], err
}

// CheckSourcePage scrapes the upstream dataset page and reports the publication date shown
// inside containerSelector. A page without a recognizable date is not an error; Updated is
// left nil.
func (d *Downloader) CheckSourcePage(ctx context.Context, pageURL, containerSelector string) (*models.SourcePageInfo, error) {
	if pageURL == "" {
		return nil, fmt.Errorf("source page URL is not configured")
	}
	if containerSelector == "" {
		containerSelector = "body"
	}
	log.Printf("Scraper: Checking source page %s (container: '%s')\n", pageURL, containerSelector)

	body, err := d.get(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML from %s: %w", pageURL, err)
	}

	text := strings.Join(strings.Fields(doc.Find(containerSelector).First().Text()), " ")
	info := &models.SourcePageInfo{
		PageURL:     pageURL,
		UpdatedText: truncate(text, 200),
		CheckedAt:   time.Now().UTC(),
	}

	updated, raw, err := parseUpdatedDate(text)
	if err != nil {
		log.Printf("WARN Scraper: Could not find an updated date on %s within '%s': %v", pageURL, containerSelector, err)
		return info, nil
	}
	info.UpdatedText = raw
	info.Updated = &updated
	return info, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
