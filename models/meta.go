// models/meta.go
package models

import "time"

// RefreshStatus is the outcome of one ingest attempt.
type RefreshStatus string

const (
	RefreshSucceeded RefreshStatus = "succeeded"
	RefreshFailed    RefreshStatus = "failed"
)

// RefreshTrigger records why an ingest ran.
type RefreshTrigger string

const (
	TriggerStartup RefreshTrigger = "startup"
	TriggerDaily   RefreshTrigger = "daily"
	TriggerManual  RefreshTrigger = "manual"
)

// RefreshRun tracks one attempt to rebuild the dataset from the upstream CSVs.
type RefreshRun struct {
	ID         string         `db:"id" json:"id"`
	Trigger    RefreshTrigger `db:"trigger_kind" json:"trigger"`
	Status     RefreshStatus  `db:"status" json:"status"`
	StartedAt  time.Time      `db:"started_at" json:"started_at"`
	FinishedAt time.Time      `db:"finished_at" json:"finished_at"`
	Countries  int            `db:"countries" json:"countries"`
	Dates      int            `db:"dates" json:"dates"`
	LastDate   *time.Time     `db:"last_date" json:"last_date,omitempty"` // newest date column in the source
	Error      string         `db:"error_message" json:"error,omitempty"`
}

// Duration returns how long the attempt took.
func (r RefreshRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// SourcePageInfo holds the "last updated" marker scraped from the upstream dataset page.
type SourcePageInfo struct {
	PageURL     string     `json:"page_url"`
	UpdatedText string     `json:"updated_text"`      // raw text found under the selector
	Updated     *time.Time `json:"updated,omitempty"` // nil when no date could be parsed
	CheckedAt   time.Time  `json:"checked_at"`
}
