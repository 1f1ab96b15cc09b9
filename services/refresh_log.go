// services/refresh_log.go
package services

import (
	"context"
	"sync"

	"github.com/gewnthar/coviddash/models"
)

// RefreshHistory lists recorded refresh attempts, newest first.
type RefreshHistory interface {
	ListRefreshRuns(ctx context.Context, limit int) ([]models.RefreshRun, error)
}

// MemoryRefreshLog keeps the last capacity refresh runs in memory. It is used when no
// database is configured.
type MemoryRefreshLog struct {
	mu       sync.Mutex
	capacity int
	runs     []models.RefreshRun // oldest first
}

func NewMemoryRefreshLog(capacity int) *MemoryRefreshLog {
	if capacity <= 0 {
		capacity = 50
	}
	return &MemoryRefreshLog{capacity: capacity}
}

func (l *MemoryRefreshLog) RecordRefresh(_ context.Context, run models.RefreshRun) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.runs = append(l.runs, run)
	if over := len(l.runs) - l.capacity; over > 0 {
		l.runs = append(l.runs[:0:0], l.runs[over:]...)
	}
	return nil
}

func (l *MemoryRefreshLog) ListRefreshRuns(_ context.Context, limit int) ([]models.RefreshRun, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if limit <= 0 || limit > len(l.runs) {
		limit = len(l.runs)
	}
	out := make([]models.RefreshRun, 0, limit)
	for i := len(l.runs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, l.runs[i])
	}
	return out, nil
}
