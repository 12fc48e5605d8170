package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/driftsearch/snaprestore/internal/errors"
	"github.com/driftsearch/snaprestore/internal/features"
	"github.com/driftsearch/snaprestore/internal/model"
)

func featureSnapshot() model.SnapshotInfo {
	info := basicSnapshot("snap-1")
	info.Indices = []string{"logs-2024", ".security-7", ".tasks-1"}
	info.FeatureStates = map[string][]string{
		"security": {".security-7"},
		"tasks":    {".tasks-1"},
	}
	return info
}

func featureRegistry() *features.Registry {
	return features.NewRegistry([]features.Feature{
		{Name: "security", IndexPatterns: []string{".security*"}},
		{Name: "tasks", IndexPatterns: []string{".tasks*"}},
	})
}

func TestResolve_FeatureStatesDefaultWithGlobalState(t *testing.T) {
	e := newTestEngine(t, featureRegistry())
	info := featureSnapshot()
	security := snapshotIndex(".security-7", 1)
	security.System = true
	tasks := snapshotIndex(".tasks-1", 1)
	tasks.System = true
	addSnapshot(e.repo, info, snapshotIndex("logs-2024", 2), security, tasks)

	target, err := e.resolver.Resolve(context.Background(), RestoreRequest{
		Repository:         "repo-1",
		Snapshot:           "snap-1",
		IncludeGlobalState: true,
	})

	assert.NoError(t, err)
	assert.Len(t, target.FeatureStates, 2)
	assert.True(t, target.FeatureStateIndices[".security-7"])
	assert.True(t, target.FeatureStateIndices[".tasks-1"])
}

func TestResolve_FeatureStatesDefaultWithoutGlobalState(t *testing.T) {
	e := newTestEngine(t, featureRegistry())
	info := featureSnapshot()
	addSnapshot(e.repo, info,
		snapshotIndex("logs-2024", 2), snapshotIndex(".security-7", 1), snapshotIndex(".tasks-1", 1))

	target, err := e.resolver.Resolve(context.Background(), RestoreRequest{
		Repository: "repo-1",
		Snapshot:   "snap-1",
		Indices:    []string{"logs-*"},
	})

	assert.NoError(t, err)
	assert.Empty(t, target.FeatureStates)
	assert.Empty(t, target.FeatureStateIndices)
}

func TestResolve_FeatureStatesNoneSentinel(t *testing.T) {
	e := newTestEngine(t, featureRegistry())
	info := featureSnapshot()
	addSnapshot(e.repo, info,
		snapshotIndex("logs-2024", 2), snapshotIndex(".security-7", 1), snapshotIndex(".tasks-1", 1))

	target, err := e.resolver.Resolve(context.Background(), RestoreRequest{
		Repository:         "repo-1",
		Snapshot:           "snap-1",
		Indices:            []string{"logs-*"},
		IncludeGlobalState: true,
		FeatureStates:      []string{"NONE"},
	})

	assert.NoError(t, err)
	assert.Empty(t, target.FeatureStates)
}

func TestResolve_FeatureStatesNoneCombinedWithNames(t *testing.T) {
	e := newTestEngine(t, featureRegistry())
	addSnapshot(e.repo, featureSnapshot(),
		snapshotIndex("logs-2024", 2), snapshotIndex(".security-7", 1), snapshotIndex(".tasks-1", 1))

	_, err := e.resolver.Resolve(context.Background(), RestoreRequest{
		Repository:    "repo-1",
		Snapshot:      "snap-1",
		FeatureStates: []string{"none", "security"},
	})

	assert.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeFeatureStateConflict))
}

func TestResolve_FeatureStateNotInSnapshot(t *testing.T) {
	e := newTestEngine(t, featureRegistry())
	addSnapshot(e.repo, featureSnapshot(),
		snapshotIndex("logs-2024", 2), snapshotIndex(".security-7", 1), snapshotIndex(".tasks-1", 1))

	_, err := e.resolver.Resolve(context.Background(), RestoreRequest{
		Repository:    "repo-1",
		Snapshot:      "snap-1",
		FeatureStates: []string{"watcher"},
	})

	assert.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeFeatureStateMissing))
}

func TestResolve_FeatureNotInstalled(t *testing.T) {
	// Registry only knows "security", but the snapshot carries "tasks" too.
	registry := features.NewRegistry([]features.Feature{
		{Name: "security", IndexPatterns: []string{".security*"}},
	})
	e := newTestEngine(t, registry)
	addSnapshot(e.repo, featureSnapshot(),
		snapshotIndex("logs-2024", 2), snapshotIndex(".security-7", 1), snapshotIndex(".tasks-1", 1))

	_, err := e.resolver.Resolve(context.Background(), RestoreRequest{
		Repository:    "repo-1",
		Snapshot:      "snap-1",
		FeatureStates: []string{"tasks"},
	})

	assert.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeFeatureNotInstalled))
}

func TestResolve_DataStreamSelection(t *testing.T) {
	e := newTestEngine(t, nil)
	info := basicSnapshot("snap-1")
	info.Indices = []string{".ds-logs-2024-000001", ".ds-logs-2024-000002", "plain-index"}
	info.DataStreams = []string{"logs-2024", "metrics-2024"}
	e.repo.AddSnapshot(info, model.GlobalMetadata{
		DataStreams: map[string]model.DataStream{
			"logs-2024": {
				Name:       "logs-2024",
				Indices:    []string{".ds-logs-2024-000001", ".ds-logs-2024-000002"},
				Generation: 2,
			},
			"metrics-2024": {
				Name:       "metrics-2024",
				Indices:    []string{".ds-metrics-2024-000001"},
				Generation: 1,
			},
		},
	}, []model.IndexMetadata{
		snapshotIndex(".ds-logs-2024-000001", 1),
		snapshotIndex(".ds-logs-2024-000002", 1),
		snapshotIndex("plain-index", 1),
	})

	target, err := e.resolver.Resolve(context.Background(), RestoreRequest{
		Repository: "repo-1",
		Snapshot:   "snap-1",
		Indices:    []string{"logs-2024"},
	})

	assert.NoError(t, err)
	assert.Contains(t, target.DataStreams, "logs-2024")
	assert.NotContains(t, target.DataStreams, "metrics-2024")
	assert.True(t, target.DataStreamIndices[".ds-logs-2024-000001"])
	assert.True(t, target.DataStreamIndices[".ds-logs-2024-000002"])

	// Only the stream's backing indices are in the plan, not plain-index.
	assert.Contains(t, target.RenameMap, ".ds-logs-2024-000001")
	assert.Contains(t, target.RenameMap, ".ds-logs-2024-000002")
	assert.NotContains(t, target.RenameMap, "plain-index")
}

func TestResolve_RenameMapAppliesPattern(t *testing.T) {
	e := newTestEngine(t, nil)
	info := basicSnapshot("snap-1")
	info.Indices = []string{"logs-2023", "logs-2024"}
	addSnapshot(e.repo, info, snapshotIndex("logs-2023", 1), snapshotIndex("logs-2024", 1))

	target, err := e.resolver.Resolve(context.Background(), RestoreRequest{
		Repository:        "repo-1",
		Snapshot:          "snap-1",
		RenamePattern:     "^logs-(.*)$",
		RenameReplacement: "restored-$1",
	})

	assert.NoError(t, err)
	assert.Equal(t, "logs-2023", target.RenameMap["restored-2023"])
	assert.Equal(t, "logs-2024", target.RenameMap["restored-2024"])
}

func TestResolve_RenameCollision(t *testing.T) {
	e := newTestEngine(t, nil)
	info := basicSnapshot("snap-1")
	info.Indices = []string{"logs-a", "metrics-a"}
	addSnapshot(e.repo, info, snapshotIndex("logs-a", 1), snapshotIndex("metrics-a", 1))

	_, err := e.resolver.Resolve(context.Background(), RestoreRequest{
		Repository:        "repo-1",
		Snapshot:          "snap-1",
		RenamePattern:     "^.*-(.*)$",
		RenameReplacement: "merged-$1",
	})

	assert.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeRenameCollision))

	// Rename errors surface with the snapshot identity attached.
	var re *errors.RestoreError
	assert.True(t, errors.As(err, &re))
	assert.Equal(t, "repo-1", re.Repository)
	assert.Equal(t, "snap-1", re.Snapshot)
}

func TestResolve_GlobalMetadataFetchedOnce(t *testing.T) {
	e := newTestEngine(t, nil)
	info := basicSnapshot("snap-1")
	info.Indices = []string{".ds-logs-2024-000001"}
	info.DataStreams = []string{"logs-2024"}
	e.repo.AddSnapshot(info, model.GlobalMetadata{
		PersistentSettings: model.Settings{"cluster.routing.rebalance": "all"},
		DataStreams: map[string]model.DataStream{
			"logs-2024": {Name: "logs-2024", Indices: []string{".ds-logs-2024-000001"}, Generation: 1},
		},
	}, []model.IndexMetadata{snapshotIndex(".ds-logs-2024-000001", 1)})

	target, err := e.resolver.Resolve(context.Background(), RestoreRequest{
		Repository:         "repo-1",
		Snapshot:           "snap-1",
		IncludeGlobalState: true,
	})

	// The data stream pass already loaded global metadata; the global state
	// flag reuses it instead of refetching.
	assert.NoError(t, err)
	assert.NotNil(t, target.Global)
	assert.Equal(t, "all", target.Global.PersistentSettings.Get("cluster.routing.rebalance"))
}
