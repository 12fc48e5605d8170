package model

import "strings"

// Index setting keys that the restore engine treats specially.
const (
	// IndexSettingPrefix is the namespace all per-index settings live under.
	IndexSettingPrefix = "index."

	SettingNumberOfShards     = "index.number_of_shards"
	SettingNumberOfReplicas   = "index.number_of_replicas"
	SettingAutoExpandReplicas = "index.auto_expand_replicas"
	SettingVersionCreated     = "index.version.created"
	SettingIndexUUID          = "index.uuid"
	SettingCreationDate       = "index.creation_date"
	SettingHistoryUUID        = "index.history.uuid"
	SettingSoftDeletes        = "index.soft_deletes.enabled"
	SettingIndexHidden        = "index.hidden"

	// SettingVerifiedBeforeClose is a transient marker set when an index is
	// closed; it must never survive a restore.
	SettingVerifiedBeforeClose = "index.verified_before_close"
)

// Settings is a flat key/value view of index or cluster settings
type Settings map[string]string

// Get returns the value for key, or the empty string when absent
func (s Settings) Get(key string) string {
	return s[key]
}

// Has reports whether key is present
func (s Settings) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// GetBool returns the boolean value for key, or def when absent or malformed
func (s Settings) GetBool(key string, def bool) bool {
	v, ok := s[key]
	if !ok {
		return def
	}
	switch strings.ToLower(v) {
	case "true":
		return true
	case "false":
		return false
	default:
		return def
	}
}

// Clone returns an independent copy of the settings
func (s Settings) Clone() Settings {
	if s == nil {
		return nil
	}
	out := make(Settings, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Filter returns a copy containing only the keys accepted by keep
func (s Settings) Filter(keep func(key string) bool) Settings {
	out := make(Settings, len(s))
	for k, v := range s {
		if keep(k) {
			out[k] = v
		}
	}
	return out
}

// NormalizePrefix returns a copy where every key missing the index settings
// namespace is prefixed with it, so "number_of_replicas" and
// "index.number_of_replicas" address the same setting.
func (s Settings) NormalizePrefix() Settings {
	out := make(Settings, len(s))
	for k, v := range s {
		if !strings.HasPrefix(k, IndexSettingPrefix) {
			k = IndexSettingPrefix + k
		}
		out[k] = v
	}
	return out
}
