package repository

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/driftsearch/snaprestore/internal/model"
	"github.com/driftsearch/snaprestore/internal/store"
)

type countingRepository struct {
	*MemoryRepository

	infoCalls   atomic.Int64
	globalCalls atomic.Int64
}

func (r *countingRepository) GetSnapshotInfo(ctx context.Context, id model.SnapshotID) (model.SnapshotInfo, error) {
	r.infoCalls.Add(1)
	return r.MemoryRepository.GetSnapshotInfo(ctx, id)
}

func (r *countingRepository) GetGlobalMetadata(ctx context.Context, id model.SnapshotID) (model.GlobalMetadata, error) {
	r.globalCalls.Add(1)
	return r.MemoryRepository.GetGlobalMetadata(ctx, id)
}

func newCountingRepository() (*countingRepository, model.SnapshotID) {
	inner := NewMemoryRepository("repo-1", "repo-uuid-1")
	id := model.SnapshotID{Name: "snap-1", UUID: "uuid-snap-1"}
	inner.AddSnapshot(model.SnapshotInfo{
		ID:            id,
		State:         model.SnapshotStateSuccess,
		FormatVersion: 2,
		Indices:       []string{"logs-2024"},
	}, model.GlobalMetadata{
		PersistentSettings: model.Settings{"cluster.routing.rebalance": "all"},
	}, nil)
	return &countingRepository{MemoryRepository: inner}, id
}

func TestCachedRepository_SnapshotInfoHitsCache(t *testing.T) {
	counting, id := newCountingRepository()
	cache := store.NewInMemoryCache(16, zap.NewNop())
	cached := NewCachedRepository(counting, cache, time.Minute, nil, zap.NewNop())
	ctx := context.Background()

	first, err := cached.GetSnapshotInfo(ctx, id)
	assert.NoError(t, err)
	second, err := cached.GetSnapshotInfo(ctx, id)
	assert.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), counting.infoCalls.Load())
}

func TestCachedRepository_GlobalMetadataHitsCache(t *testing.T) {
	counting, id := newCountingRepository()
	cache := store.NewInMemoryCache(16, zap.NewNop())
	cached := NewCachedRepository(counting, cache, time.Minute, nil, zap.NewNop())
	ctx := context.Background()

	_, err := cached.GetGlobalMetadata(ctx, id)
	assert.NoError(t, err)
	global, err := cached.GetGlobalMetadata(ctx, id)
	assert.NoError(t, err)

	assert.Equal(t, "all", global.PersistentSettings.Get("cluster.routing.rebalance"))
	assert.Equal(t, int64(1), counting.globalCalls.Load())
}

func TestCachedRepository_ExpiredEntryRefetches(t *testing.T) {
	counting, id := newCountingRepository()
	cache := store.NewInMemoryCache(16, zap.NewNop())
	cached := NewCachedRepository(counting, cache, 10*time.Millisecond, nil, zap.NewNop())
	ctx := context.Background()

	_, err := cached.GetSnapshotInfo(ctx, id)
	assert.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	_, err = cached.GetSnapshotInfo(ctx, id)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), counting.infoCalls.Load())
}

func TestCachedRepository_UndecodableEntryDropped(t *testing.T) {
	counting, id := newCountingRepository()
	cache := store.NewInMemoryCache(16, zap.NewNop())
	cached := NewCachedRepository(counting, cache, time.Minute, nil, zap.NewNop())
	ctx := context.Background()

	key := cached.cacheKey("info", id)
	assert.NoError(t, cache.Set(ctx, key, []byte("{broken"), time.Minute))

	info, err := cached.GetSnapshotInfo(ctx, id)
	assert.NoError(t, err)
	assert.Equal(t, id, info.ID)
	assert.Equal(t, int64(1), counting.infoCalls.Load())
}

func TestCachedService_WrapsRepositories(t *testing.T) {
	counting, _ := newCountingRepository()
	cache := store.NewInMemoryCache(16, zap.NewNop())
	service := NewCachedService(NewMemoryService(counting), cache, time.Minute, nil, zap.NewNop())

	repo, err := service.Repository("repo-1")
	assert.NoError(t, err)
	_, isCached := repo.(*CachedRepository)
	assert.True(t, isCached)
	assert.Equal(t, "repo-1", repo.Name())

	_, err = service.Repository("missing")
	assert.Error(t, err)

	assert.Len(t, service.List(), 1)
}
