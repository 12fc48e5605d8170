package algorithm

import (
	"dario.cat/mergo"

	"github.com/driftsearch/snaprestore/internal/errors"
	"github.com/driftsearch/snaprestore/internal/model"
)

// unmodifiableSettings may never be changed on restore.
var unmodifiableSettings = map[string]bool{
	model.SettingNumberOfShards: true,
	model.SettingVersionCreated: true,
	model.SettingIndexUUID:      true,
	model.SettingCreationDate:   true,
	model.SettingHistoryUUID:    true,
}

// unremovableSettings may be changed but never removed via ignore patterns.
var unremovableSettings = map[string]bool{
	model.SettingNumberOfShards:     true,
	model.SettingVersionCreated:     true,
	model.SettingIndexUUID:          true,
	model.SettingCreationDate:       true,
	model.SettingHistoryUUID:        true,
	model.SettingNumberOfReplicas:   true,
	model.SettingAutoExpandReplicas: true,
}

// ReconcileSettings merges snapshot-captured index settings with the
// request's overrides. Keys matching ignorePatterns are dropped from the old
// settings first, then changeSettings is overlaid. Unmodifiable keys reject
// any change; unremovable keys reject any exact ignore; wildcard ignore
// patterns silently skip unremovable keys. Soft deletes cannot be disabled
// once the snapshot had them enabled. The transient verified-before-close
// marker never survives the merge.
func ReconcileSettings(old model.Settings, changeSettings model.Settings, ignorePatterns []string) (model.Settings, error) {
	normalized := changeSettings.NormalizePrefix()

	if old.GetBool(model.SettingSoftDeletes, false) &&
		normalized.Has(model.SettingSoftDeletes) &&
		!normalized.GetBool(model.SettingSoftDeletes, true) {
		return nil, errors.New(errors.ErrCodeImmutableSetting, "", "",
			"cannot disable setting [%s] on restore", model.SettingSoftDeletes)
	}

	var keyFilters []string
	var wildcardFilters []string
	for _, ignored := range ignorePatterns {
		if IsSimpleMatchPattern(ignored) {
			wildcardFilters = append(wildcardFilters, ignored)
			continue
		}
		if unremovableSettings[ignored] {
			return nil, errors.New(errors.ErrCodeUnremovableSetting, "", "",
				"cannot remove setting [%s] on restore", ignored)
		}
		keyFilters = append(keyFilters, ignored)
	}

	merged := old.Filter(func(key string) bool {
		if unremovableSettings[key] {
			return true
		}
		for _, filter := range keyFilters {
			if key == filter {
				return false
			}
		}
		return !SimpleMatchAny(wildcardFilters, key)
	})

	for key := range normalized {
		if unmodifiableSettings[key] {
			return nil, errors.New(errors.ErrCodeImmutableSetting, "", "",
				"cannot modify setting [%s] on restore", key)
		}
	}
	if err := mergo.Merge(&merged, normalized, mergo.WithOverride); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, "", "", err, "merging index settings")
	}

	delete(merged, model.SettingVerifiedBeforeClose)
	return merged, nil
}

// IsUnmodifiableSetting reports whether the key may never change on restore
func IsUnmodifiableSetting(key string) bool {
	return unmodifiableSettings[key]
}

// IsUnremovableSetting reports whether the key may never be removed on restore
func IsUnremovableSetting(key string) bool {
	return unremovableSettings[key]
}
