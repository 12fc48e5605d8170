package service

import (
	"github.com/driftsearch/snaprestore/internal/model"
	"github.com/driftsearch/snaprestore/internal/repository"
)

// RestoreRequest describes one restore invocation
type RestoreRequest struct {
	Repository string `json:"repository" validate:"required"`
	Snapshot   string `json:"snapshot" validate:"required"`
	// SnapshotUUID optionally pins the exact snapshot generation; a name
	// match with a different UUID is rejected.
	SnapshotUUID string `json:"snapshot_uuid,omitempty"`

	// Indices filters the snapshot contents; glob patterns and '-'
	// exclusions are supported. Empty selects everything.
	Indices []string `json:"indices,omitempty"`

	RenamePattern     string `json:"rename_pattern,omitempty" validate:"omitempty,min=1"`
	RenameReplacement string `json:"rename_replacement,omitempty"`

	IncludeGlobalState bool `json:"include_global_state,omitempty"`
	IncludeAliases     bool `json:"include_aliases,omitempty"`
	Partial            bool `json:"partial,omitempty"`

	// FeatureStates names the feature states to restore. The single value
	// "none" restores no feature states and may not be combined with names.
	FeatureStates []string `json:"feature_states,omitempty"`

	IndexSettings       map[string]string `json:"index_settings,omitempty"`
	IgnoreIndexSettings []string          `json:"ignore_index_settings,omitempty"`

	// SkipOperatorOnly excludes operator-only persistent settings from the
	// global state merge, preserving the live cluster's values instead.
	SkipOperatorOnly bool `json:"skip_operator_only,omitempty"`
}

// RestoreHandle is the prompt acceptance returned by StartRestore. Info is
// only set when the restore completed at submission time (no shards to
// recover); otherwise progress is observable through the restore id.
type RestoreHandle struct {
	RestoreID string             `json:"restore_id"`
	Snapshot  model.Snapshot     `json:"snapshot"`
	Info      *model.RestoreInfo `json:"info,omitempty"`
}

// ResolvedRestoreTarget is the output of snapshot metadata resolution: the
// concrete indices, streams and feature states a request refers to, with the
// rename map already computed and validated.
type ResolvedRestoreTarget struct {
	Snapshot model.Snapshot
	Info     model.SnapshotInfo
	RepoData repository.RepositoryData

	// Global is set when the data stream selection or the request's
	// include-global-state flag required reading it.
	Global *model.GlobalMetadata

	// IndexMetadata holds the snapshot's captured metadata keyed by the
	// original index name.
	IndexMetadata map[string]model.IndexMetadata

	// RenameMap maps target (possibly renamed) index names to original
	// snapshot index names. Injective by construction.
	RenameMap map[string]string

	DataStreamIndices   map[string]bool
	FeatureStateIndices map[string]bool

	// FeatureStates maps selected feature names to their system indices.
	FeatureStates map[string][]string

	// DataStreams holds the selected data stream descriptors keyed by
	// original stream name.
	DataStreams map[string]model.DataStream
}
