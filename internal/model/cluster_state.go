package model

// Node describes one cluster member relevant to restore planning
type Node struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// FormatVersion is the metadata format version the node writes.
	FormatVersion int `json:"format_version"`
	// MinCompatibleVersion is the oldest snapshot format the node can read.
	MinCompatibleVersion int `json:"min_compatible_version"`

	// DataNode reports whether the node can host shards.
	DataNode bool `json:"data_node"`
}

// Metadata is the metadata half of the cluster state: indices, data streams,
// templates, persistent settings and custom extensions.
type Metadata struct {
	Indices            map[string]IndexMetadata  `json:"indices"`
	DataStreams        map[string]DataStream     `json:"data_streams,omitempty"`
	Templates          map[string]IndexTemplate  `json:"templates,omitempty"`
	PersistentSettings Settings                  `json:"persistent_settings,omitempty"`
	Customs            map[string]CustomMetadata `json:"customs,omitempty"`
}

// Index returns the metadata for the named index, or false when absent
func (m Metadata) Index(name string) (IndexMetadata, bool) {
	idx, ok := m.Indices[name]
	return idx, ok
}

// HasIndex reports whether the named index exists
func (m Metadata) HasIndex(name string) bool {
	_, ok := m.Indices[name]
	return ok
}

// Clone returns a deep copy of the metadata
func (m Metadata) Clone() Metadata {
	out := Metadata{
		Indices:            make(map[string]IndexMetadata, len(m.Indices)),
		PersistentSettings: m.PersistentSettings.Clone(),
	}
	for k, v := range m.Indices {
		out.Indices[k] = v.Clone()
	}
	if m.DataStreams != nil {
		out.DataStreams = make(map[string]DataStream, len(m.DataStreams))
		for k, v := range m.DataStreams {
			out.DataStreams[k] = v.Clone()
		}
	}
	if m.Templates != nil {
		out.Templates = make(map[string]IndexTemplate, len(m.Templates))
		for k, v := range m.Templates {
			out.Templates[k] = v
		}
	}
	if m.Customs != nil {
		out.Customs = make(map[string]CustomMetadata, len(m.Customs))
		for k, v := range m.Customs {
			out.Customs[k] = v
		}
	}
	return out
}

// ClusterState is the single, versioned, replicated source of truth. Every
// mutation is expressed as a pure transformation producing a new value; no
// component holds a long-lived mutable reference.
type ClusterState struct {
	Version     int64           `json:"version"`
	LocalNodeID string          `json:"local_node_id"`
	Nodes       map[string]Node `json:"nodes"`

	Metadata     Metadata     `json:"metadata"`
	RoutingTable RoutingTable `json:"routing_table"`

	// Restores holds the in-flight restore progress records keyed by
	// restore id.
	Restores map[string]RestoreOperation `json:"restores,omitempty"`

	// SnapshotDeletions lists snapshots with an active deletion, which
	// blocks restoring them.
	SnapshotDeletions []SnapshotID `json:"snapshot_deletions,omitempty"`
}

// NewClusterState returns an empty cluster state for the given local node
func NewClusterState(localNodeID string) ClusterState {
	return ClusterState{
		LocalNodeID: localNodeID,
		Nodes:       map[string]Node{},
		Metadata: Metadata{
			Indices: map[string]IndexMetadata{},
		},
		RoutingTable: NewRoutingTable(),
		Restores:     map[string]RestoreOperation{},
	}
}

// Clone returns a deep copy of the cluster state
func (s ClusterState) Clone() ClusterState {
	out := s
	out.Nodes = make(map[string]Node, len(s.Nodes))
	for k, v := range s.Nodes {
		out.Nodes[k] = v
	}
	out.Metadata = s.Metadata.Clone()
	out.RoutingTable = s.RoutingTable.Clone()
	out.Restores = make(map[string]RestoreOperation, len(s.Restores))
	for k, v := range s.Restores {
		out.Restores[k] = v.Clone()
	}
	out.SnapshotDeletions = append([]SnapshotID(nil), s.SnapshotDeletions...)
	return out
}

// MaxNodeVersions returns the highest metadata format version across all
// nodes together with that node's minimum compatible version. Zero values
// mean the cluster has no known nodes.
func (s ClusterState) MaxNodeVersions() (version, minCompatible int) {
	for _, n := range s.Nodes {
		if n.FormatVersion > version {
			version = n.FormatVersion
			minCompatible = n.MinCompatibleVersion
		}
	}
	return version, minCompatible
}

// DeletionInProgress reports whether the given snapshot is an active
// deletion target.
func (s ClusterState) DeletionInProgress(id SnapshotID) bool {
	for _, d := range s.SnapshotDeletions {
		if d == id {
			return true
		}
	}
	return false
}

// RestoreInProgressFor returns the in-flight restore with the given id.
func (s ClusterState) RestoreInProgressFor(restoreID string) (RestoreOperation, bool) {
	op, ok := s.Restores[restoreID]
	return op, ok
}

// OpenShardCount counts shards of all open indices, used by the shard limit
// check.
func (s ClusterState) OpenShardCount() int {
	total := 0
	for _, idx := range s.Metadata.Indices {
		if idx.State == IndexStateOpen {
			total += idx.NumberOfShards
		}
	}
	return total
}
