package store

import (
	"context"
	"errors"
	"time"

	"github.com/driftsearch/snaprestore/internal/model"
)

// ErrNotFound is returned when a key is not found
var ErrNotFound = errors.New("not found")

// Cache is a byte-level cache with TTL semantics, used to keep repository
// manifests close at hand without re-reading the repository.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Close() error
}

// ArchivedRestore is one terminal restore operation persisted for audit
type ArchivedRestore struct {
	Operation   model.RestoreOperation `json:"operation"`
	CompletedAt time.Time              `json:"completed_at"`
}

// HistoryStore persists terminal restore operations after the reaper drops
// them from cluster state. Writes are best-effort; the reaper never fails a
// pass because archiving failed.
type HistoryStore interface {
	SaveCompleted(ctx context.Context, op model.RestoreOperation, completedAt time.Time) error
	Get(ctx context.Context, restoreID string) (*ArchivedRestore, error)
	List(ctx context.Context, limit int) ([]*ArchivedRestore, error)
	Ping(ctx context.Context) error
	Close()
}
