package service

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/driftsearch/snaprestore/internal/algorithm"
	"github.com/driftsearch/snaprestore/internal/errors"
	"github.com/driftsearch/snaprestore/internal/features"
	"github.com/driftsearch/snaprestore/internal/model"
	"github.com/driftsearch/snaprestore/internal/repository"
	"github.com/driftsearch/snaprestore/internal/util/workerpool"
)

// ResolverService resolves which indices, data streams and feature states a
// restore request actually refers to, against the snapshot's manifest. It
// runs outside the state serialization; all conflict checks against live
// state are re-validated inside the plan builder's transformation.
type ResolverService struct {
	repositories repository.Service
	features     *features.Registry
	fetchPool    *workerpool.Pool
	refreshUUIDs bool
	logger       *zap.Logger
}

// NewResolverService creates a new resolver service
func NewResolverService(
	repositories repository.Service,
	featureRegistry *features.Registry,
	fetchPool *workerpool.Pool,
	refreshUUIDs bool,
	logger *zap.Logger,
) *ResolverService {
	return &ResolverService{
		repositories: repositories,
		features:     featureRegistry,
		fetchPool:    fetchPool,
		refreshUUIDs: refreshUUIDs,
		logger:       logger,
	}
}

// Resolve turns a restore request into a ResolvedRestoreTarget
func (s *ResolverService) Resolve(ctx context.Context, req RestoreRequest) (*ResolvedRestoreTarget, error) {
	s.refreshRepositoryUUIDs(ctx)

	repo, err := s.repositories.Repository(req.Repository)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRepositoryNotFound, req.Repository, req.Snapshot, err,
			"repository does not exist")
	}

	repoData, err := repo.GetRepositoryData(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, req.Repository, req.Snapshot, err,
			"failed to read repository data")
	}

	snapshotID, ok := repoData.FindSnapshot(req.Snapshot)
	if !ok {
		return nil, errors.New(errors.ErrCodeSnapshotNotFound, req.Repository, req.Snapshot,
			"snapshot does not exist")
	}
	if req.SnapshotUUID != "" && req.SnapshotUUID != snapshotID.UUID {
		return nil, errors.New(errors.ErrCodeSnapshotMismatch, req.Repository, req.Snapshot,
			"snapshot UUID mismatch: expected [%s] but got [%s]", req.SnapshotUUID, snapshotID.UUID)
	}

	info, err := repo.GetSnapshotInfo(ctx, snapshotID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, req.Repository, req.Snapshot, err,
			"failed to read snapshot manifest")
	}
	snapshot := model.Snapshot{Repository: req.Repository, ID: snapshotID}

	target := &ResolvedRestoreTarget{
		Snapshot:            snapshot,
		Info:                info,
		RepoData:            repoData,
		DataStreamIndices:   map[string]bool{},
		FeatureStateIndices: map[string]bool{},
	}

	// Data stream selection uses the same pattern semantics as index
	// filtering; stream names leave the working index set, their backing
	// indices join it.
	requestIndices := append([]string(nil), req.Indices...)
	streams, err := s.dataStreamsToRestore(ctx, repo, snapshotID, info, requestIndices, target)
	if err != nil {
		return nil, err
	}
	target.DataStreams = streams
	if len(streams) > 0 {
		filtered := requestIndices[:0]
		for _, expr := range requestIndices {
			if _, isStream := streams[expr]; !isStream {
				filtered = append(filtered, expr)
			}
		}
		requestIndices = filtered
		for _, ds := range streams {
			for _, backing := range ds.Indices {
				requestIndices = append(requestIndices, backing)
				target.DataStreamIndices[backing] = true
			}
		}
	}

	featureStates, err := s.featureStatesToRestore(req, info, snapshot)
	if err != nil {
		return nil, err
	}
	target.FeatureStates = featureStates
	for _, indices := range featureStates {
		for _, index := range indices {
			target.FeatureStateIndices[index] = true
		}
	}

	requestedInSnapshot := algorithm.FilterNames(info.Indices, requestIndices)
	combined := append([]string(nil), requestedInSnapshot...)
	seen := make(map[string]bool, len(combined))
	for _, index := range combined {
		seen[index] = true
	}
	featureIndices := make([]string, 0, len(target.FeatureStateIndices))
	for index := range target.FeatureStateIndices {
		featureIndices = append(featureIndices, index)
	}
	sort.Strings(featureIndices)
	for _, index := range featureIndices {
		if !seen[index] {
			combined = append(combined, index)
			seen[index] = true
		}
	}

	directlyRequested := make(map[string]bool, len(requestedInSnapshot))
	for _, index := range requestedInSnapshot {
		directlyRequested[index] = true
	}
	indexMetadata, err := s.fetchIndexMetadata(ctx, repo, snapshotID, repoData, combined)
	if err != nil {
		return nil, err
	}
	target.IndexMetadata = indexMetadata

	var explicitSystemIndices []string
	for name, meta := range indexMetadata {
		if meta.System && directlyRequested[name] {
			explicitSystemIndices = append(explicitSystemIndices, name)
		}
	}
	if len(explicitSystemIndices) > 0 {
		sort.Strings(explicitSystemIndices)
		s.logger.Warn("Restoring system indices by name is deprecated, use feature states instead",
			zap.Strings("system_indices", explicitSystemIndices),
			zap.String("snapshot", snapshot.String()))
	}

	renameMap, err := algorithm.RenamedIndices(
		algorithm.RenameConfig{Pattern: req.RenamePattern, Replacement: req.RenameReplacement},
		combined, target.DataStreamIndices, target.FeatureStateIndices)
	if err != nil {
		return nil, withSnapshotContext(err, snapshot)
	}
	target.RenameMap = renameMap

	if req.IncludeGlobalState && target.Global == nil {
		global, err := repo.GetGlobalMetadata(ctx, snapshotID)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, req.Repository, req.Snapshot, err,
				"failed to read snapshot global metadata")
		}
		target.Global = &global
	}

	return target, nil
}

// refreshRepositoryUUIDs is a best-effort pass filling in missing repository
// identities before metadata retrieval. Failures are logged and swallowed;
// this is an optimization, never a correctness requirement.
func (s *ResolverService) refreshRepositoryUUIDs(ctx context.Context) {
	if !s.refreshUUIDs {
		s.logger.Debug("Repository UUID refresh is disabled")
		return
	}
	var stale []repository.Repository
	for _, repo := range s.repositories.List() {
		if repo.UUID() == repository.MissingUUID {
			stale = append(stale, repo)
		}
	}
	if len(stale) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, repo := range stale {
		repo := repo
		wg.Add(1)
		task := workerpool.Task{
			ID:  "refresh-uuid-" + repo.Name(),
			Ctx: ctx,
			Fn: func(ctx context.Context) error {
				defer wg.Done()
				if _, err := repo.GetRepositoryData(ctx); err != nil {
					s.logger.Debug("Repository UUID refresh failed",
						zap.String("repository", repo.Name()),
						zap.Error(err))
				}
				return nil
			},
		}
		if err := s.fetchPool.Submit(task); err != nil {
			wg.Done()
			s.logger.Debug("Repository UUID refresh skipped", zap.Error(err))
		}
	}
	wg.Wait()
}

func (s *ResolverService) dataStreamsToRestore(
	ctx context.Context,
	repo repository.Repository,
	snapshotID model.SnapshotID,
	info model.SnapshotInfo,
	requestIndices []string,
	target *ResolvedRestoreTarget,
) (map[string]model.DataStream, error) {
	requested := algorithm.FilterNames(info.DataStreams, requestIndices)
	if len(requested) == 0 {
		return map[string]model.DataStream{}, nil
	}

	global, err := repo.GetGlobalMetadata(ctx, snapshotID)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, target.Snapshot.Repository, snapshotID.Name, err,
			"failed to read snapshot global metadata for data streams")
	}
	target.Global = &global

	streams := make(map[string]model.DataStream, len(requested))
	for _, name := range requested {
		ds, ok := global.DataStreams[name]
		if !ok {
			return nil, errors.New(errors.ErrCodeInternal, target.Snapshot.Repository, snapshotID.Name,
				"data stream [%s] listed in manifest but missing from global metadata", name)
		}
		streams[name] = ds
	}
	return streams, nil
}

func (s *ResolverService) featureStatesToRestore(req RestoreRequest, info model.SnapshotInfo, snapshot model.Snapshot) (map[string][]string, error) {
	if len(info.FeatureStates) == 0 && len(req.FeatureStates) == 0 {
		return map[string][]string{}, nil
	}

	selected := map[string][]string{}
	switch {
	case len(req.FeatureStates) == 0:
		// No explicit list: defer to the global state flag.
		if req.IncludeGlobalState {
			for name, indices := range info.FeatureStates {
				selected[name] = indices
			}
		}
	case len(req.FeatureStates) == 1 && strings.EqualFold(req.FeatureStates[0], features.NoFeatureStatesValue):
		// Explicit "none": restore no feature states.
	default:
		requested := map[string]bool{}
		for _, name := range req.FeatureStates {
			if strings.EqualFold(name, features.NoFeatureStatesValue) {
				return nil, errors.New(errors.ErrCodeFeatureStateConflict, snapshot.Repository, snapshot.ID.Name,
					"the feature_states value [%s] indicates that no feature states should be restored, "+
						"but other feature states were requested: %v", features.NoFeatureStatesValue, req.FeatureStates)
			}
			requested[name] = true
		}
		for name := range requested {
			indices, ok := info.FeatureStates[name]
			if !ok {
				return nil, errors.New(errors.ErrCodeFeatureStateMissing, snapshot.Repository, snapshot.ID.Name,
					"requested feature state [%s] is not present in snapshot", name)
			}
			selected[name] = indices
		}
	}

	var notInstalled []string
	for name := range selected {
		if !s.features.Has(name) {
			notInstalled = append(notInstalled, name)
		}
	}
	if len(notInstalled) > 0 {
		sort.Strings(notInstalled)
		return nil, errors.New(errors.ErrCodeFeatureNotInstalled, snapshot.Repository, snapshot.ID.Name,
			"requested feature states %v are present in snapshot but those features are not installed on this node", notInstalled)
	}
	return selected, nil
}

func (s *ResolverService) fetchIndexMetadata(
	ctx context.Context,
	repo repository.Repository,
	snapshotID model.SnapshotID,
	repoData repository.RepositoryData,
	indices []string,
) (map[string]model.IndexMetadata, error) {
	out := make(map[string]model.IndexMetadata, len(indices))
	var mu sync.Mutex
	var wg sync.WaitGroup
	var firstErr error

	for _, index := range indices {
		index := index
		indexID := repoData.ResolveIndexID(index)
		wg.Add(1)
		fn := func(ctx context.Context) error {
			defer wg.Done()
			meta, err := repo.GetIndexMetadata(ctx, snapshotID, indexID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = err
				}
				return err
			}
			out[index] = meta
			return nil
		}
		task := workerpool.Task{ID: "index-meta-" + index, Ctx: ctx, Fn: fn}
		if err := s.fetchPool.Submit(task); err != nil {
			// Queue full: fetch inline rather than failing the restore.
			_ = fn(ctx)
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, repo.Name(), snapshotID.Name, firstErr,
			"failed to read snapshot index metadata")
	}
	return out, nil
}

// withSnapshotContext fills in repository/snapshot context on typed errors
// produced by context-free helpers.
func withSnapshotContext(err error, snapshot model.Snapshot) error {
	var re *errors.RestoreError
	if errors.As(err, &re) && re.Repository == "" {
		re.Repository = snapshot.Repository
		re.Snapshot = snapshot.ID.Name
	}
	return err
}
