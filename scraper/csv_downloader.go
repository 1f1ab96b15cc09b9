// scraper/csv_downloader.go
package scraper

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Downloader fetches upstream documents over HTTP. The zero value is not usable; build
// one with NewDownloader.
type Downloader struct {
	client *resty.Client
}

// NewDownloader returns a Downloader whose requests give up after timeout.
func NewDownloader(timeout time.Duration, userAgent string) *Downloader {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "text/csv, text/plain, */*")
	if userAgent != "" {
		client.SetHeader("User-Agent", userAgent)
	}
	return &Downloader{client: client}
}

// FetchCSV downloads the document at url into memory. Non-200 responses and empty
// bodies are errors.
func (d *Downloader) FetchCSV(ctx context.Context, url string) ([]byte, error) {
	body, err := d.get(ctx, url)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, fmt.Errorf("empty CSV body from %s", url)
	}
	return body, nil
}

func (d *Downloader) get(ctx context.Context, url string) ([]byte, error) {
	start := time.Now()
	resp, err := d.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to make GET request to %s: %w", url, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("failed to download %s: received status code %d", url, resp.StatusCode())
	}

	log.Printf("Scraper: Downloaded %d bytes from %s in %s\n", len(resp.Body()), url, time.Since(start).Round(time.Millisecond))
	return resp.Body(), nil
}
