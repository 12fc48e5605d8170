package model

// IndexState represents the open/closed state of an index
type IndexState string

const (
	// IndexStateOpen indicates an index accepting reads and writes
	IndexStateOpen IndexState = "OPEN"
	// IndexStateClose indicates a closed index whose shards are not allocated
	IndexStateClose IndexState = "CLOSE"
)

// AliasMetadata describes a single alias attached to an index
type AliasMetadata struct {
	Name          string `json:"name"`
	Filter        string `json:"filter,omitempty"`
	WriteIndex    bool   `json:"write_index,omitempty"`
	IsHiddenAlias bool   `json:"is_hidden,omitempty"`
}

// IndexMetadata is the immutable metadata value for one index. Mutation is
// copy-on-write; use Clone before modifying any map or slice field.
type IndexMetadata struct {
	Name           string                   `json:"name"`
	UUID           string                   `json:"uuid"`
	State          IndexState               `json:"state"`
	NumberOfShards int                      `json:"number_of_shards"`
	Settings       Settings                 `json:"settings"`
	Aliases        map[string]AliasMetadata `json:"aliases,omitempty"`
	System         bool                     `json:"system,omitempty"`

	// Monotonic version counters used by downstream caches. Merging an
	// existing index with a snapshot copy must never regress these.
	Version         int64 `json:"version"`
	MappingVersion  int64 `json:"mapping_version"`
	SettingsVersion int64 `json:"settings_version"`
	AliasesVersion  int64 `json:"aliases_version"`

	// PrimaryTerms has one entry per shard.
	PrimaryTerms []int64 `json:"primary_terms"`
}

// IsHidden reports whether the index is flagged hidden via its settings
func (m IndexMetadata) IsHidden() bool {
	return m.Settings.GetBool(SettingIndexHidden, false)
}

// PrimaryTerm returns the primary term for the given shard, or 0 when unknown
func (m IndexMetadata) PrimaryTerm(shard int) int64 {
	if shard < 0 || shard >= len(m.PrimaryTerms) {
		return 0
	}
	return m.PrimaryTerms[shard]
}

// Clone returns a deep copy of the index metadata
func (m IndexMetadata) Clone() IndexMetadata {
	out := m
	out.Settings = m.Settings.Clone()
	if m.Aliases != nil {
		out.Aliases = make(map[string]AliasMetadata, len(m.Aliases))
		for k, v := range m.Aliases {
			out.Aliases[k] = v
		}
	}
	if m.PrimaryTerms != nil {
		out.PrimaryTerms = append([]int64(nil), m.PrimaryTerms...)
	}
	return out
}

// IndexTemplate is a named index template carried in global metadata
type IndexTemplate struct {
	Name          string   `json:"name"`
	IndexPatterns []string `json:"index_patterns"`
	Settings      Settings `json:"settings,omitempty"`
	Order         int      `json:"order,omitempty"`
}
