package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/driftsearch/snaprestore/internal/metrics"
	"github.com/driftsearch/snaprestore/internal/model"
	"github.com/driftsearch/snaprestore/internal/store"
)

// CachedRepository wraps a Repository with a manifest cache. Snapshot
// manifests and global metadata are immutable once written, so cache entries
// can only go stale by deletion, which TTL expiry covers.
type CachedRepository struct {
	Repository

	cache   store.Cache
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewCachedRepository wraps the repository with the given cache. m may be
// nil to disable cache metrics.
func NewCachedRepository(inner Repository, cache store.Cache, ttl time.Duration, m *metrics.Metrics, logger *zap.Logger) *CachedRepository {
	return &CachedRepository{Repository: inner, cache: cache, ttl: ttl, metrics: m, logger: logger}
}

// GetSnapshotInfo reads the manifest through the cache
func (r *CachedRepository) GetSnapshotInfo(ctx context.Context, id model.SnapshotID) (model.SnapshotInfo, error) {
	key := r.cacheKey("info", id)
	var info model.SnapshotInfo
	if ok := r.lookup(ctx, key, "info", &info); ok {
		return info, nil
	}
	info, err := r.Repository.GetSnapshotInfo(ctx, id)
	if err != nil {
		return model.SnapshotInfo{}, err
	}
	if r.metrics != nil {
		r.metrics.RecordManifestFetch(r.Name(), "info")
	}
	r.fill(ctx, key, info)
	return info, nil
}

// GetGlobalMetadata reads global metadata through the cache
func (r *CachedRepository) GetGlobalMetadata(ctx context.Context, id model.SnapshotID) (model.GlobalMetadata, error) {
	key := r.cacheKey("global", id)
	var global model.GlobalMetadata
	if ok := r.lookup(ctx, key, "global", &global); ok {
		return global, nil
	}
	global, err := r.Repository.GetGlobalMetadata(ctx, id)
	if err != nil {
		return model.GlobalMetadata{}, err
	}
	if r.metrics != nil {
		r.metrics.RecordManifestFetch(r.Name(), "global")
	}
	r.fill(ctx, key, global)
	return global, nil
}

func (r *CachedRepository) cacheKey(kind string, id model.SnapshotID) string {
	return fmt.Sprintf("snaprestore:%s:%s:%s:%s", r.Name(), kind, id.Name, id.UUID)
}

func (r *CachedRepository) lookup(ctx context.Context, key, kind string, out interface{}) bool {
	data, err := r.cache.Get(ctx, key)
	if err != nil {
		if err != store.ErrNotFound {
			r.logger.Debug("Manifest cache lookup failed", zap.String("key", key), zap.Error(err))
		}
		if r.metrics != nil {
			r.metrics.RecordManifestCacheMiss(kind)
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		r.logger.Warn("Dropping undecodable manifest cache entry", zap.String("key", key), zap.Error(err))
		_ = r.cache.Delete(ctx, key)
		if r.metrics != nil {
			r.metrics.RecordManifestCacheMiss(kind)
		}
		return false
	}
	if r.metrics != nil {
		r.metrics.RecordManifestCacheHit(kind)
	}
	return true
}

func (r *CachedRepository) fill(ctx context.Context, key string, value interface{}) {
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, key, data, r.ttl); err != nil {
		r.logger.Debug("Manifest cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// CachedService wraps a repository service so every repository it hands out
// reads manifests through the shared cache.
type CachedService struct {
	inner   Service
	cache   store.Cache
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewCachedService wraps the service with the given cache. m may be nil to
// disable cache metrics.
func NewCachedService(inner Service, cache store.Cache, ttl time.Duration, m *metrics.Metrics, logger *zap.Logger) *CachedService {
	return &CachedService{inner: inner, cache: cache, ttl: ttl, metrics: m, logger: logger}
}

// Repository implements Service
func (s *CachedService) Repository(name string) (Repository, error) {
	repo, err := s.inner.Repository(name)
	if err != nil {
		return nil, err
	}
	return NewCachedRepository(repo, s.cache, s.ttl, s.metrics, s.logger), nil
}

// List implements Service
func (s *CachedService) List() []Repository {
	inner := s.inner.List()
	out := make([]Repository, 0, len(inner))
	for _, repo := range inner {
		out = append(out, NewCachedRepository(repo, s.cache, s.ttl, s.metrics, s.logger))
	}
	return out
}
