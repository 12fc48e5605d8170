// Package repository defines the contracts this engine needs from snapshot
// repositories. Reading repository metadata is long-latency work; callers
// keep it off the state application path.
package repository

import (
	"context"
	"errors"

	"github.com/driftsearch/snaprestore/internal/model"
)

// MissingUUID marks a repository whose identity has not been read yet
const MissingUUID = "_na_"

// ErrSnapshotNotFound is returned when a snapshot id is unknown to a repository
var ErrSnapshotNotFound = errors.New("snapshot not found in repository")

// ErrRepositoryNotFound is returned when no repository has the requested name
var ErrRepositoryNotFound = errors.New("repository not found")

// RepositoryData is the top-level listing of a repository's contents
type RepositoryData struct {
	UUID        string             `json:"uuid"`
	SnapshotIDs []model.SnapshotID `json:"snapshot_ids"`
	// IndexIDs maps index names to their repository-internal ids.
	IndexIDs map[string]string `json:"index_ids"`
}

// FindSnapshot returns the snapshot id with the given name, or false
func (d RepositoryData) FindSnapshot(name string) (model.SnapshotID, bool) {
	for _, id := range d.SnapshotIDs {
		if id.Name == name {
			return id, true
		}
	}
	return model.SnapshotID{}, false
}

// ResolveIndexID returns the repository-internal id for an index name
func (d RepositoryData) ResolveIndexID(index string) string {
	return d.IndexIDs[index]
}

// Repository stores and retrieves snapshot blobs and metadata. All methods
// are safe for concurrent use and independently retryable.
type Repository interface {
	// Name returns the repository's registered name.
	Name() string
	// UUID returns the repository's identity, or MissingUUID before the
	// first successful GetRepositoryData.
	UUID() string
	// GetRepositoryData lists the repository contents.
	GetRepositoryData(ctx context.Context) (RepositoryData, error)
	// GetSnapshotInfo reads one snapshot's manifest.
	GetSnapshotInfo(ctx context.Context, id model.SnapshotID) (model.SnapshotInfo, error)
	// GetGlobalMetadata reads the cluster-wide metadata captured in a snapshot.
	GetGlobalMetadata(ctx context.Context, id model.SnapshotID) (model.GlobalMetadata, error)
	// GetIndexMetadata reads the metadata of one index within a snapshot.
	GetIndexMetadata(ctx context.Context, id model.SnapshotID, indexID string) (model.IndexMetadata, error)
}

// Service supplies registered repositories by name
type Service interface {
	// Repository returns the named repository or ErrRepositoryNotFound.
	Repository(name string) (Repository, error)
	// List returns every registered repository.
	List() []Repository
}
