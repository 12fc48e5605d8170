package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/driftsearch/snaprestore/internal/algorithm"
	"github.com/driftsearch/snaprestore/internal/allocation"
	"github.com/driftsearch/snaprestore/internal/cluster"
	"github.com/driftsearch/snaprestore/internal/errors"
	"github.com/driftsearch/snaprestore/internal/features"
	"github.com/driftsearch/snaprestore/internal/metrics"
	"github.com/driftsearch/snaprestore/internal/model"
)

// indexIdentity holds the identifiers minted for one restored index. They
// are generated before plan building so the transformation itself stays a
// deterministic function of its inputs.
type indexIdentity struct {
	IndexUUID   string
	HistoryUUID string
}

// RestoreService accepts restore requests and turns them into cluster state.
// The plan for one request is built and committed inside a single submitted
// transformation, so a request either lands in full or leaves the state
// untouched.
type RestoreService struct {
	state     *cluster.StateService
	resolver  *ResolverService
	allocator allocation.Allocator
	policy    SettingsPolicy
	limiter   ShardLimiter
	features  *features.Registry
	validate  *validator.Validate
	metrics   *metrics.Metrics
	logger    *zap.Logger
}

// NewRestoreService creates a new restore service
func NewRestoreService(
	state *cluster.StateService,
	resolver *ResolverService,
	allocator allocation.Allocator,
	policy SettingsPolicy,
	limiter ShardLimiter,
	featureRegistry *features.Registry,
	m *metrics.Metrics,
	logger *zap.Logger,
) *RestoreService {
	return &RestoreService{
		state:     state,
		resolver:  resolver,
		allocator: allocator,
		policy:    policy,
		limiter:   limiter,
		features:  featureRegistry,
		validate:  validator.New(),
		metrics:   m,
		logger:    logger,
	}
}

// StartRestore resolves the request against the snapshot repository and
// submits one atomic plan-building transformation. It returns promptly with
// a handle or a typed rejection; shard-level outcomes are observed through
// GetRestoreOperation.
func (s *RestoreService) StartRestore(ctx context.Context, req RestoreRequest) (*RestoreHandle, error) {
	start := time.Now()
	if err := s.validate.Struct(req); err != nil {
		s.recordError(req.Repository, errors.ErrCodeInvalidRequest)
		return nil, errors.Wrap(errors.ErrCodeInvalidRequest, req.Repository, req.Snapshot, err,
			"invalid restore request")
	}

	target, err := s.resolver.Resolve(ctx, req)
	if err != nil {
		s.recordError(req.Repository, errors.CodeOf(err))
		return nil, err
	}

	restoreID := uuid.New().String()
	identities := make(map[string]indexIdentity, len(target.RenameMap))
	for targetName := range target.RenameMap {
		identities[targetName] = indexIdentity{
			IndexUUID:   uuid.New().String(),
			HistoryUUID: uuid.New().String(),
		}
	}

	s.logger.Info("Starting restore",
		zap.String("restore_id", restoreID),
		zap.String("snapshot", target.Snapshot.String()),
		zap.Int("indices", len(target.RenameMap)))

	var immediate *model.RestoreInfo
	applied, err := s.state.SubmitStateTransformation(ctx, "restore-snapshot "+target.Snapshot.String(),
		func(current model.ClusterState) (model.ClusterState, error) {
			next, info, err := s.buildPlan(current, req, target, restoreID, identities)
			if err != nil {
				return model.ClusterState{}, err
			}
			immediate = info
			return next, nil
		})
	if err != nil {
		s.recordError(req.Repository, errors.CodeOf(err))
		s.logger.Warn("Restore rejected",
			zap.String("snapshot", target.Snapshot.String()),
			zap.Error(err))
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordRestore(req.Repository, req.Partial, time.Since(start).Seconds())
		if op, ok := applied.Restores[restoreID]; ok {
			scheduled := 0
			for _, status := range op.Shards {
				if !status.State.Completed() {
					scheduled++
				}
			}
			s.metrics.RecordShardsScheduled(req.Repository, scheduled)
		}
	}

	return &RestoreHandle{
		RestoreID: restoreID,
		Snapshot:  target.Snapshot,
		Info:      immediate,
	}, nil
}

// buildPlan is the deterministic heart of the restore: given the current
// state and a resolved target it produces the next state. Any validation
// failure aborts the whole plan.
func (s *RestoreService) buildPlan(
	current model.ClusterState,
	req RestoreRequest,
	target *ResolvedRestoreTarget,
	restoreID string,
	identities map[string]indexIdentity,
) (model.ClusterState, *model.RestoreInfo, error) {
	snapshot := target.Snapshot
	info := target.Info

	if current.DeletionInProgress(snapshot.ID) {
		return model.ClusterState{}, nil, errors.New(errors.ErrCodeConcurrentSnapshotDeletion,
			snapshot.Repository, snapshot.ID.Name,
			"cannot restore a snapshot while a deletion of it is in progress")
	}
	if !info.State.Restorable() {
		return model.ClusterState{}, nil, errors.New(errors.ErrCodeInvalidRequest,
			snapshot.Repository, snapshot.ID.Name,
			"snapshot has state [%s] and cannot be restored", info.State)
	}
	maxVersion, minCompatible := current.MaxNodeVersions()
	if info.FormatVersion > maxVersion {
		return model.ClusterState{}, nil, errors.New(errors.ErrCodeIncompatibleVersion,
			snapshot.Repository, snapshot.ID.Name,
			"snapshot format version [%d] is newer than this cluster's version [%d]",
			info.FormatVersion, maxVersion)
	}
	if info.FormatVersion < minCompatible {
		return model.ClusterState{}, nil, errors.New(errors.ErrCodeIncompatibleVersion,
			snapshot.Repository, snapshot.ID.Name,
			"snapshot format version [%d] is older than this cluster's minimum compatible version [%d]",
			info.FormatVersion, minCompatible)
	}

	targets := make([]string, 0, len(target.RenameMap))
	for name := range target.RenameMap {
		targets = append(targets, name)
	}
	sort.Strings(targets)

	if !req.Partial {
		for _, targetName := range targets {
			original := target.RenameMap[targetName]
			if info.IndexFailed(original) {
				return model.ClusterState{}, nil, errors.New(errors.ErrCodeIncompleteSnapshotData,
					snapshot.Repository, snapshot.ID.Name,
					"index [%s] wasn't fully snapshotted, cannot restore without partial=true", original)
			}
		}
	}

	next := current
	next.Metadata = current.Metadata.Clone()
	next.RoutingTable = current.RoutingTable.Clone()
	next.Restores = make(map[string]model.RestoreOperation, len(current.Restores)+1)
	for id, op := range current.Restores {
		next.Restores[id] = op
	}

	s.clearFeatureStateIndices(&next, target)

	shards := map[model.ShardID]model.ShardRestoreStatus{}
	scheduled := 0
	for _, targetName := range targets {
		original := target.RenameMap[targetName]
		snapMeta, ok := target.IndexMetadata[original]
		if !ok {
			return model.ClusterState{}, nil, errors.New(errors.ErrCodeInternal,
				snapshot.Repository, snapshot.ID.Name,
				"snapshot metadata for index [%s] was not resolved", original)
		}

		merged, err := algorithm.ReconcileSettings(snapMeta.Settings, model.Settings(req.IndexSettings), req.IgnoreIndexSettings)
		if err != nil {
			return model.ClusterState{}, nil, withSnapshotContext(err, snapshot)
		}

		source := model.RecoverySource{
			Type:          model.RecoverySourceSnapshot,
			RestoreID:     restoreID,
			Snapshot:      snapshot,
			FormatVersion: info.FormatVersion,
			IndexID:       target.RepoData.ResolveIndexID(original),
		}

		existing, exists := next.Metadata.Index(targetName)
		var installed model.IndexMetadata
		ignore := map[int]bool{}
		if !exists {
			installed, ignore, err = s.planFreshIndex(next, req, target, snapMeta, targetName, original, merged, identities[targetName])
			if err != nil {
				return model.ClusterState{}, nil, withSnapshotContext(err, snapshot)
			}
			next.RoutingTable.AddAsNewRestore(installed, source, ignore)
		} else {
			installed, err = s.planExistingIndex(req, snapMeta, existing, targetName, merged, identities[targetName])
			if err != nil {
				return model.ClusterState{}, nil, withSnapshotContext(err, snapshot)
			}
			next.RoutingTable.AddAsRestore(installed, source)
		}
		next.Metadata.Indices[targetName] = installed

		for shard := 0; shard < installed.NumberOfShards; shard++ {
			shardID := model.ShardID{Index: targetName, Shard: shard}
			if ignore[shard] {
				shards[shardID] = model.ShardRestoreStatus{
					State:  model.RestoreStateFailure,
					Reason: fmt.Sprintf("shard [%d] of index [%s] is missing from the snapshot", shard, original),
				}
				continue
			}
			shards[shardID] = model.ShardRestoreStatus{
				NodeID: current.LocalNodeID,
				State:  model.RestoreStateInit,
			}
			scheduled++
		}
	}

	if err := s.checkAliasConflicts(next, target); err != nil {
		return model.ClusterState{}, nil, withSnapshotContext(err, snapshot)
	}

	if err := s.installDataStreams(&next, req, target); err != nil {
		return model.ClusterState{}, nil, withSnapshotContext(err, snapshot)
	}

	if req.IncludeGlobalState && target.Global != nil {
		if err := s.mergeGlobalState(&next, req, *target.Global); err != nil {
			return model.ClusterState{}, nil, withSnapshotContext(err, snapshot)
		}
	}

	if len(shards) == 0 {
		// Nothing to recover: the restore completes at submission time and
		// is never tracked as an operation.
		return next, &model.RestoreInfo{
			Snapshot:         snapshot.ID.Name,
			Indices:          targets,
			TotalShards:      0,
			SuccessfulShards: 0,
		}, nil
	}

	op := model.RestoreOperation{
		ID:       restoreID,
		Snapshot: snapshot,
		State:    model.OverallState(model.RestoreStateInit, shards),
		Indices:  targets,
		Shards:   shards,
	}
	next.Restores[restoreID] = op

	if scheduled > 0 {
		next = s.allocator.Reroute(next, "snapshot restore "+snapshot.String())
	}
	return next, nil, nil
}

// planFreshIndex builds the metadata for an index that does not exist yet
// and computes the set of shards whose data is missing from the snapshot.
func (s *RestoreService) planFreshIndex(
	state model.ClusterState,
	req RestoreRequest,
	target *ResolvedRestoreTarget,
	snapMeta model.IndexMetadata,
	targetName, original string,
	merged model.Settings,
	identity indexIdentity,
) (model.IndexMetadata, map[int]bool, error) {
	if err := algorithm.ValidateIndexName(targetName); err != nil {
		return model.IndexMetadata{}, nil, err
	}
	if algorithm.IsDotIndexName(targetName) && !snapMeta.System && !merged.GetBool(model.SettingIndexHidden, false) {
		s.logger.Warn("Index name starts with a dot but is neither hidden nor a system index",
			zap.String("index", targetName))
	}
	if err := s.limiter.CheckShardLimit(snapMeta.NumberOfShards, state); err != nil {
		return model.IndexMetadata{}, nil, err
	}

	installed := snapMeta.Clone()
	installed.Name = targetName
	installed.UUID = identity.IndexUUID
	installed.State = model.IndexStateOpen
	installed.Settings = merged
	installed.Settings[model.SettingIndexUUID] = identity.IndexUUID
	installed.Settings[model.SettingHistoryUUID] = identity.HistoryUUID
	if !req.IncludeAliases && !snapMeta.System {
		installed.Aliases = nil
	}

	ignore := map[int]bool{}
	for _, failure := range target.Info.ShardFailures {
		if failure.Index == original {
			ignore[failure.ShardID] = true
		}
	}
	return installed, ignore, nil
}

// planExistingIndex merges snapshot metadata onto a closed index of the same
// name, preserving its identity and never regressing its version counters.
func (s *RestoreService) planExistingIndex(
	req RestoreRequest,
	snapMeta, existing model.IndexMetadata,
	targetName string,
	merged model.Settings,
	identity indexIdentity,
) (model.IndexMetadata, error) {
	if existing.State != model.IndexStateClose {
		return model.IndexMetadata{}, errors.New(errors.ErrCodeIndexAlreadyOpen, "", "",
			"cannot restore index [%s] because an open index with the same name already exists "+
				"in the cluster. Close, delete or rename the index first", targetName)
	}
	if req.Partial {
		return model.IndexMetadata{}, errors.New(errors.ErrCodeInvalidRequest, "", "",
			"cannot restore a partial snapshot onto the existing index [%s]", targetName)
	}
	if existing.NumberOfShards != snapMeta.NumberOfShards {
		return model.IndexMetadata{}, errors.New(errors.ErrCodeShardCountMismatch, "", "",
			"cannot restore index [%s] with [%d] shards onto an existing index with [%d] shards",
			targetName, snapMeta.NumberOfShards, existing.NumberOfShards)
	}

	installed := snapMeta.Clone()
	installed.Name = targetName
	installed.UUID = existing.UUID
	installed.State = model.IndexStateOpen
	installed.Settings = merged
	installed.Settings[model.SettingIndexUUID] = existing.UUID
	installed.Settings[model.SettingHistoryUUID] = identity.HistoryUUID

	installed.Version = maxInt64(snapMeta.Version, 1+existing.Version)
	installed.MappingVersion = maxInt64(snapMeta.MappingVersion, 1+existing.MappingVersion)
	installed.SettingsVersion = maxInt64(snapMeta.SettingsVersion, 1+existing.SettingsVersion)
	installed.AliasesVersion = maxInt64(snapMeta.AliasesVersion, 1+existing.AliasesVersion)

	terms := make([]int64, snapMeta.NumberOfShards)
	for shard := 0; shard < snapMeta.NumberOfShards; shard++ {
		terms[shard] = maxInt64(snapMeta.PrimaryTerm(shard), existing.PrimaryTerm(shard))
	}
	installed.PrimaryTerms = terms

	if !req.IncludeAliases && !snapMeta.System {
		installed.Aliases = cloneAliases(existing.Aliases)
	}
	return installed, nil
}

// clearFeatureStateIndices removes live indices owned by the feature states
// being restored, so a feature-state restore never leaves old-generation
// system indices behind.
func (s *RestoreService) clearFeatureStateIndices(next *model.ClusterState, target *ResolvedRestoreTarget) {
	if len(target.FeatureStates) == 0 {
		return
	}
	featureNames := make([]string, 0, len(target.FeatureStates))
	for name := range target.FeatureStates {
		featureNames = append(featureNames, name)
	}
	sort.Strings(featureNames)

	for _, index := range s.features.MatchingIndices(next.Metadata, featureNames) {
		s.logger.Debug("Removing existing system index before feature state restore",
			zap.String("index", index))
		delete(next.Metadata.Indices, index)
		next.RoutingTable.RemoveIndex(index)
	}
}

// checkAliasConflicts rejects plans where an alias name collides with the
// target name of a renamed index; the addressing scheme cannot tell the two
// apart.
func (s *RestoreService) checkAliasConflicts(next model.ClusterState, target *ResolvedRestoreTarget) error {
	aliasNames := map[string]string{}
	for indexName, meta := range next.Metadata.Indices {
		for alias := range meta.Aliases {
			aliasNames[alias] = indexName
		}
	}
	for targetName, original := range target.RenameMap {
		if targetName == original {
			continue
		}
		if holder, ok := aliasNames[targetName]; ok && holder != targetName {
			return errors.New(errors.ErrCodeAliasNameConflict, "", "",
				"cannot rename index [%s] into [%s] because of a conflict with an alias of index [%s] with the same name",
				original, targetName, holder)
		}
	}
	return nil
}

// installDataStreams rewrites every selected data stream so its name and
// backing-index list follow the rename applied to the indices this plan
// installs, then replaces the live registry entries.
func (s *RestoreService) installDataStreams(next *model.ClusterState, req RestoreRequest, target *ResolvedRestoreTarget) error {
	if len(target.DataStreams) == 0 {
		return nil
	}
	cfg := algorithm.RenameConfig{Pattern: req.RenamePattern, Replacement: req.RenameReplacement}
	re, err := cfg.Compile()
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidRequest, "", "", err, "invalid rename pattern")
	}

	// Renamed backing index lookup by original name.
	renamed := make(map[string]string, len(target.RenameMap))
	for targetName, original := range target.RenameMap {
		renamed[original] = targetName
	}

	if next.Metadata.DataStreams == nil {
		next.Metadata.DataStreams = map[string]model.DataStream{}
	}
	names := make([]string, 0, len(target.DataStreams))
	for name := range target.DataStreams {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ds := target.DataStreams[name].Clone()
		ds.Name = algorithm.RenameIndex(name, cfg, re, false)
		backing := make([]string, 0, len(ds.Indices))
		for _, index := range ds.Indices {
			if targetName, ok := renamed[index]; ok {
				backing = append(backing, targetName)
			} else {
				backing = append(backing, index)
			}
		}
		ds.Indices = backing
		next.Metadata.DataStreams[ds.Name] = ds
	}
	return nil
}

// mergeGlobalState folds snapshot-captured cluster-wide metadata into the
// plan. Repository registrations and non-restorable customs never come back
// from a snapshot; data streams take the rename-aware path instead.
func (s *RestoreService) mergeGlobalState(next *model.ClusterState, req RestoreRequest, global model.GlobalMetadata) error {
	if len(global.PersistentSettings) > 0 {
		incoming := global.PersistentSettings.Filter(func(key string) bool {
			if req.SkipOperatorOnly && s.policy.IsOperatorOnly(key) {
				s.logger.Debug("Skipping operator-only persistent setting", zap.String("key", key))
				return false
			}
			return true
		})
		if err := s.policy.ValidateUpdate(incoming); err != nil {
			return err
		}
		if next.Metadata.PersistentSettings == nil {
			next.Metadata.PersistentSettings = model.Settings{}
		}
		for key, value := range incoming {
			next.Metadata.PersistentSettings[key] = value
		}
	}

	if len(global.Templates) > 0 {
		if next.Metadata.Templates == nil {
			next.Metadata.Templates = map[string]model.IndexTemplate{}
		}
		for name, tmpl := range global.Templates {
			next.Metadata.Templates[name] = tmpl
		}
	}

	for name, custom := range global.Customs {
		if custom.Type == model.CustomTypeRepositories || custom.Type == model.CustomTypeDataStream {
			continue
		}
		if !custom.Restorable {
			continue
		}
		if next.Metadata.Customs == nil {
			next.Metadata.Customs = map[string]model.CustomMetadata{}
		}
		next.Metadata.Customs[name] = custom
	}
	return nil
}

// GetRestoreOperation returns the in-flight restore with the given id
func (s *RestoreService) GetRestoreOperation(id string) (model.RestoreOperation, error) {
	op, ok := s.state.State().RestoreInProgressFor(id)
	if !ok {
		return model.RestoreOperation{}, errors.New(errors.ErrCodeRestoreNotFound, "", "",
			"no restore in progress with id [%s]", id)
	}
	return op, nil
}

// RestoringIndices returns the subset of candidates that some non-completed
// restore is currently recovering into.
func (s *RestoreService) RestoringIndices(candidates []string) map[string]bool {
	wanted := make(map[string]bool, len(candidates))
	for _, index := range candidates {
		wanted[index] = true
	}
	out := map[string]bool{}
	for _, op := range s.state.State().Restores {
		if op.State.Completed() {
			continue
		}
		for _, index := range op.Indices {
			if wanted[index] {
				out[index] = true
			}
		}
	}
	return out
}

func (s *RestoreService) recordError(repository string, code errors.ErrorCode) {
	if s.metrics == nil {
		return
	}
	s.metrics.RecordRestoreError(repository, fmt.Sprintf("%d", code))
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func cloneAliases(aliases map[string]model.AliasMetadata) map[string]model.AliasMetadata {
	if aliases == nil {
		return nil
	}
	out := make(map[string]model.AliasMetadata, len(aliases))
	for name, alias := range aliases {
		out[name] = alias
	}
	return out
}
