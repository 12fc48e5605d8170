package model

// SnapshotID uniquely identifies one snapshot inside a repository
type SnapshotID struct {
	Name string `json:"name"`
	UUID string `json:"uuid"`
}

// Snapshot pairs a repository name with a snapshot identity
type Snapshot struct {
	Repository string     `json:"repository"`
	ID         SnapshotID `json:"id"`
}

// String renders the snapshot as repository:name/uuid
func (s Snapshot) String() string {
	return s.Repository + ":" + s.ID.Name + "/" + s.ID.UUID
}

// SnapshotState is the terminal state a snapshot was left in by its creation
type SnapshotState string

const (
	// SnapshotStateSuccess indicates a fully successful snapshot
	SnapshotStateSuccess SnapshotState = "SUCCESS"
	// SnapshotStatePartial indicates a snapshot with some failed shards
	SnapshotStatePartial SnapshotState = "PARTIAL"
	// SnapshotStateFailed indicates a snapshot that did not complete
	SnapshotStateFailed SnapshotState = "FAILED"
	// SnapshotStateInProgress indicates a snapshot still being written
	SnapshotStateInProgress SnapshotState = "IN_PROGRESS"
)

// Restorable reports whether a snapshot in this state may be restored
func (s SnapshotState) Restorable() bool {
	return s == SnapshotStateSuccess || s == SnapshotStatePartial
}

// ShardFailure records one shard whose data is missing from a snapshot
type ShardFailure struct {
	Index   string `json:"index"`
	ShardID int    `json:"shard_id"`
	Reason  string `json:"reason"`
}

// SnapshotInfo is the manifest of one snapshot as stored in the repository
type SnapshotInfo struct {
	ID            SnapshotID          `json:"id"`
	State         SnapshotState       `json:"state"`
	FormatVersion int                 `json:"format_version"`
	Indices       []string            `json:"indices"`
	DataStreams   []string            `json:"data_streams,omitempty"`
	FeatureStates map[string][]string `json:"feature_states,omitempty"`
	ShardFailures []ShardFailure      `json:"shard_failures,omitempty"`
}

// IndexFailed reports whether the snapshot recorded any shard failure for the
// given index, meaning it was not fully snapshotted.
func (i SnapshotInfo) IndexFailed(index string) bool {
	for _, f := range i.ShardFailures {
		if f.Index == index {
			return true
		}
	}
	return false
}

// CustomMetadata is an opaque cluster-level metadata extension carried in
// global state. Non-restorable customs are never brought back by a restore.
type CustomMetadata struct {
	Type       string            `json:"type"`
	Restorable bool              `json:"restorable"`
	Data       map[string]string `json:"data,omitempty"`
}

// Reserved custom metadata types with dedicated restore handling.
const (
	// CustomTypeRepositories holds live repository registrations and is
	// never restored from a snapshot.
	CustomTypeRepositories = "repositories"
	// CustomTypeDataStream holds the data stream registry, restored through
	// its own rename-aware path rather than the generic custom merge.
	CustomTypeDataStream = "data_stream"
)

// GlobalMetadata is the cluster-wide portion of a snapshot: persistent
// settings, templates, customs, data streams and the captured index metadata.
type GlobalMetadata struct {
	PersistentSettings Settings                  `json:"persistent_settings,omitempty"`
	Templates          map[string]IndexTemplate  `json:"templates,omitempty"`
	Customs            map[string]CustomMetadata `json:"customs,omitempty"`
	DataStreams        map[string]DataStream     `json:"data_streams,omitempty"`
}
