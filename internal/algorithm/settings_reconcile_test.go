package algorithm

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/driftsearch/snaprestore/internal/errors"
	"github.com/driftsearch/snaprestore/internal/model"
)

func TestReconcileSettings_OverlayAndIgnore(t *testing.T) {
	old := model.Settings{
		model.SettingNumberOfShards:   "5",
		model.SettingNumberOfReplicas: "2",
		"index.refresh_interval":      "1s",
		"index.codec":                 "best_compression",
	}

	merged, err := ReconcileSettings(old,
		model.Settings{"index.refresh_interval": "30s"},
		[]string{"index.codec"})

	assert.NoError(t, err)
	assert.Equal(t, "30s", merged.Get("index.refresh_interval"))
	assert.False(t, merged.Has("index.codec"))
	assert.Equal(t, "5", merged.Get(model.SettingNumberOfShards))
	assert.Equal(t, "2", merged.Get(model.SettingNumberOfReplicas))
}

func TestReconcileSettings_ChangeSettingsKeysAreNormalized(t *testing.T) {
	merged, err := ReconcileSettings(model.Settings{}, model.Settings{"refresh_interval": "5s"}, nil)

	assert.NoError(t, err)
	assert.Equal(t, "5s", merged.Get("index.refresh_interval"))
}

func TestReconcileSettings_UnmodifiableChangeRejected(t *testing.T) {
	old := model.Settings{model.SettingNumberOfShards: "5"}

	for _, key := range []string{
		model.SettingNumberOfShards,
		model.SettingVersionCreated,
		model.SettingIndexUUID,
		model.SettingCreationDate,
		model.SettingHistoryUUID,
	} {
		_, err := ReconcileSettings(old, model.Settings{key: "changed"}, nil)
		assert.Error(t, err, key)
		assert.True(t, errors.HasCode(err, errors.ErrCodeImmutableSetting), key)
	}
}

func TestReconcileSettings_UnremovableIgnoreRejected(t *testing.T) {
	old := model.Settings{model.SettingNumberOfReplicas: "1"}

	_, err := ReconcileSettings(old, nil, []string{model.SettingNumberOfReplicas})

	assert.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeUnremovableSetting))
}

func TestReconcileSettings_WildcardIgnoreSkipsUnremovable(t *testing.T) {
	old := model.Settings{
		model.SettingNumberOfShards:   "5",
		model.SettingNumberOfReplicas: "1",
		"index.refresh_interval":      "1s",
	}

	merged, err := ReconcileSettings(old, nil, []string{"index.*"})

	assert.NoError(t, err)
	assert.Equal(t, "5", merged.Get(model.SettingNumberOfShards))
	assert.Equal(t, "1", merged.Get(model.SettingNumberOfReplicas))
	assert.False(t, merged.Has("index.refresh_interval"))
}

func TestReconcileSettings_SoftDeletesCannotBeDisabled(t *testing.T) {
	old := model.Settings{model.SettingSoftDeletes: "true"}

	_, err := ReconcileSettings(old, model.Settings{model.SettingSoftDeletes: "false"}, nil)

	assert.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeImmutableSetting))
}

func TestReconcileSettings_VerifiedBeforeCloseStripped(t *testing.T) {
	old := model.Settings{
		model.SettingVerifiedBeforeClose: "true",
		"index.refresh_interval":         "1s",
	}

	merged, err := ReconcileSettings(old, nil, nil)

	assert.NoError(t, err)
	assert.False(t, merged.Has(model.SettingVerifiedBeforeClose))
	assert.True(t, merged.Has("index.refresh_interval"))
}

func TestReconcileSettings_InputUntouched(t *testing.T) {
	old := model.Settings{"index.refresh_interval": "1s"}

	merged, err := ReconcileSettings(old, model.Settings{"index.refresh_interval": "30s"}, nil)

	assert.NoError(t, err)
	assert.Equal(t, "30s", merged.Get("index.refresh_interval"))
	assert.Equal(t, "1s", old.Get("index.refresh_interval"))
}
