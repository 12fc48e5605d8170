package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/driftsearch/snaprestore/internal/model"
)

// MemoryRepository is an in-process repository used by tests and local
// development. Contents are fixed at construction except through AddSnapshot.
type MemoryRepository struct {
	name string
	uuid string

	mu        sync.RWMutex
	snapshots map[string]model.SnapshotInfo      // by snapshot name
	global    map[string]model.GlobalMetadata    // by snapshot name
	indexMeta map[string]map[string]model.IndexMetadata // snapshot name -> index id -> metadata
	indexIDs  map[string]string
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository(name, uuid string) *MemoryRepository {
	return &MemoryRepository{
		name:      name,
		uuid:      uuid,
		snapshots: map[string]model.SnapshotInfo{},
		global:    map[string]model.GlobalMetadata{},
		indexMeta: map[string]map[string]model.IndexMetadata{},
		indexIDs:  map[string]string{},
	}
}

// AddSnapshot registers a snapshot with its global and per-index metadata.
// Index ids are derived from the index name with an "id-" prefix.
func (r *MemoryRepository) AddSnapshot(info model.SnapshotInfo, global model.GlobalMetadata, indices []model.IndexMetadata) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots[info.ID.Name] = info
	r.global[info.ID.Name] = global
	perIndex := make(map[string]model.IndexMetadata, len(indices))
	for _, idx := range indices {
		id := "id-" + idx.Name
		r.indexIDs[idx.Name] = id
		perIndex[id] = idx
	}
	r.indexMeta[info.ID.Name] = perIndex
}

// Name implements Repository
func (r *MemoryRepository) Name() string { return r.name }

// UUID implements Repository
func (r *MemoryRepository) UUID() string { return r.uuid }

// GetRepositoryData implements Repository
func (r *MemoryRepository) GetRepositoryData(ctx context.Context) (RepositoryData, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]model.SnapshotID, 0, len(r.snapshots))
	for _, info := range r.snapshots {
		ids = append(ids, info.ID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Name < ids[j].Name })
	indexIDs := make(map[string]string, len(r.indexIDs))
	for k, v := range r.indexIDs {
		indexIDs[k] = v
	}
	return RepositoryData{UUID: r.uuid, SnapshotIDs: ids, IndexIDs: indexIDs}, nil
}

// GetSnapshotInfo implements Repository
func (r *MemoryRepository) GetSnapshotInfo(ctx context.Context, id model.SnapshotID) (model.SnapshotInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.snapshots[id.Name]
	if !ok || (id.UUID != "" && info.ID.UUID != id.UUID) {
		return model.SnapshotInfo{}, fmt.Errorf("%w: %s", ErrSnapshotNotFound, id.Name)
	}
	return info, nil
}

// GetGlobalMetadata implements Repository
func (r *MemoryRepository) GetGlobalMetadata(ctx context.Context, id model.SnapshotID) (model.GlobalMetadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	global, ok := r.global[id.Name]
	if !ok {
		return model.GlobalMetadata{}, fmt.Errorf("%w: %s", ErrSnapshotNotFound, id.Name)
	}
	return global, nil
}

// GetIndexMetadata implements Repository
func (r *MemoryRepository) GetIndexMetadata(ctx context.Context, id model.SnapshotID, indexID string) (model.IndexMetadata, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	perIndex, ok := r.indexMeta[id.Name]
	if !ok {
		return model.IndexMetadata{}, fmt.Errorf("%w: %s", ErrSnapshotNotFound, id.Name)
	}
	meta, ok := perIndex[indexID]
	if !ok {
		return model.IndexMetadata{}, fmt.Errorf("index id [%s] not found in snapshot %s", indexID, id.Name)
	}
	return meta.Clone(), nil
}

// MemoryService is a fixed set of repositories keyed by name
type MemoryService struct {
	mu    sync.RWMutex
	repos map[string]Repository
}

// NewMemoryService creates a repository service holding the given repositories
func NewMemoryService(repos ...Repository) *MemoryService {
	s := &MemoryService{repos: make(map[string]Repository, len(repos))}
	for _, r := range repos {
		s.repos[r.Name()] = r
	}
	return s
}

// Register adds or replaces a repository
func (s *MemoryService) Register(r Repository) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repos[r.Name()] = r
}

// Repository implements Service
func (s *MemoryService) Repository(name string) (Repository, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.repos[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRepositoryNotFound, name)
	}
	return r, nil
}

// List implements Service
func (s *MemoryService) List() []Repository {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Repository, 0, len(s.repos))
	for _, r := range s.repos {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}
