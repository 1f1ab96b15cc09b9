// services/dataset_store.go
package services

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gewnthar/coviddash/models"
	"github.com/google/uuid"
)

// Ingester builds a complete Dataset from the upstream sources.
type Ingester interface {
	Ingest(ctx context.Context) (*models.Dataset, error)
}

// RefreshRecorder keeps an audit trail of refresh attempts.
type RefreshRecorder interface {
	RecordRefresh(ctx context.Context, run models.RefreshRun) error
}

// DatasetStore owns the process-wide Dataset. Readers load it through an atomic pointer;
// the stale check and swap run under mu so only one ingest happens at a time.
type DatasetStore struct {
	loader        Ingester
	recorder      RefreshRecorder
	location      *time.Location
	retryInterval time.Duration
	now           func() time.Time

	current atomic.Pointer[models.Dataset]

	mu          sync.Mutex
	lastFailure time.Time // guarded by mu; zero after a successful refresh
}

type StoreOption func(*DatasetStore)

func WithRecorder(r RefreshRecorder) StoreOption {
	return func(s *DatasetStore) { s.recorder = r }
}

// WithLocation sets the timezone whose calendar day triggers a refresh.
func WithLocation(loc *time.Location) StoreOption {
	return func(s *DatasetStore) {
		if loc != nil {
			s.location = loc
		}
	}
}

// WithRetryInterval sets how long a failed daily refresh waits before trying again.
func WithRetryInterval(d time.Duration) StoreOption {
	return func(s *DatasetStore) { s.retryInterval = d }
}

func WithClock(now func() time.Time) StoreOption {
	return func(s *DatasetStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewDatasetStore runs the first ingest. Without a first dataset there is nothing to
// serve, so its failure is returned to the caller.
func NewDatasetStore(ctx context.Context, loader Ingester, opts ...StoreOption) (*DatasetStore, error) {
	s := &DatasetStore{
		loader:        loader,
		location:      time.Local,
		retryInterval: 5 * time.Minute,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.refreshLocked(ctx, models.TriggerStartup); err != nil {
		return nil, fmt.Errorf("initial ingest failed: %w", err)
	}
	return s, nil
}

// Snapshot returns the dataset currently published, without a staleness check.
func (s *DatasetStore) Snapshot() *models.Dataset {
	return s.current.Load()
}

// Current returns the dataset to serve for a request. When the calendar day has changed
// since the last build it re-ingests first. A failed refresh keeps serving the previous
// dataset.
func (s *DatasetStore) Current(ctx context.Context) (*models.Dataset, error) {
	ds := s.current.Load()
	if !s.stale(ds) {
		return ds, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ds = s.current.Load()
	if !s.stale(ds) {
		return ds, nil
	}
	if ds != nil && !s.lastFailure.IsZero() && s.now().Sub(s.lastFailure) < s.retryInterval {
		return ds, nil
	}

	// A refresh serves every waiting request, so a client hanging up must not abort it.
	if err := s.refreshLocked(context.WithoutCancel(ctx), models.TriggerDaily); err != nil {
		if ds == nil {
			return nil, err
		}
		log.Printf("ERROR Service: Daily refresh failed, keeping dataset from %s: %v\n",
			ds.LastRefreshed.Format("2006-01-02"), err)
		return ds, nil
	}
	return s.current.Load(), nil
}

// Refresh rebuilds the dataset regardless of its age.
func (s *DatasetStore) Refresh(ctx context.Context, trigger models.RefreshTrigger) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx, trigger)
}

func (s *DatasetStore) stale(ds *models.Dataset) bool {
	if ds == nil {
		return true
	}
	return !CalendarDay(s.now(), s.location).Equal(CalendarDay(ds.LastRefreshed, s.location))
}

func (s *DatasetStore) refreshLocked(ctx context.Context, trigger models.RefreshTrigger) error {
	run := models.RefreshRun{
		ID:        uuid.NewString(),
		Trigger:   trigger,
		StartedAt: s.now().UTC(),
	}
	log.Printf("Service: Refreshing dataset (trigger: %s, run: %s)...\n", trigger, run.ID)

	ds, err := s.loader.Ingest(ctx)
	run.FinishedAt = s.now().UTC()
	if err == nil && ds == nil {
		err = models.ErrNoDataset
	}
	if err != nil {
		run.Status = models.RefreshFailed
		run.Error = err.Error()
		s.lastFailure = s.now()
		s.record(ctx, run)
		return err
	}

	s.current.Store(ds)
	s.lastFailure = time.Time{}

	run.Status = models.RefreshSucceeded
	run.Countries = len(ds.Countries)
	run.Dates = len(ds.Dates)
	if latest := ds.LatestDate(); !latest.IsZero() {
		run.LastDate = &latest
	}
	s.record(ctx, run)

	log.Printf("Service: Dataset refreshed: %d countries, %d dates, latest %s (took %s).\n",
		run.Countries, run.Dates, ds.LatestDate().Format("2006-01-02"), run.Duration().Round(time.Millisecond))
	return nil
}

func (s *DatasetStore) record(ctx context.Context, run models.RefreshRun) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.RecordRefresh(ctx, run); err != nil {
		log.Printf("ERROR Service: Failed to record refresh run %s: %v\n", run.ID, err)
	}
}
