package service

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/driftsearch/snaprestore/internal/cluster"
	"github.com/driftsearch/snaprestore/internal/metrics"
	"github.com/driftsearch/snaprestore/internal/model"
)

// ProgressTracker folds shard lifecycle events into the restore operations
// held in cluster state. Events accumulate locally and are committed in one
// transformation per Flush; per-shard statuses only ever move towards a
// terminal state.
type ProgressTracker struct {
	state   *cluster.StateService
	metrics *metrics.Metrics
	logger  *zap.Logger

	mu      sync.Mutex
	pending map[string]map[model.ShardID]model.ShardRestoreStatus
}

// NewProgressTracker creates a new progress tracker
func NewProgressTracker(state *cluster.StateService, m *metrics.Metrics, logger *zap.Logger) *ProgressTracker {
	return &ProgressTracker{
		state:   state,
		metrics: m,
		logger:  logger,
		pending: map[string]map[model.ShardID]model.ShardRestoreStatus{},
	}
}

// OnShardStarted records a successful primary recovery. Replica starts are
// not restore progress and are ignored.
func (t *ProgressTracker) OnShardStarted(routing model.ShardRouting) *model.ShardRestoreStatus {
	if !routing.Primary {
		return nil
	}
	restoreID, ok := restoreIDOf(routing)
	if !ok {
		return nil
	}
	status := model.ShardRestoreStatus{NodeID: routing.NodeID, State: model.RestoreStateSuccess}
	return t.record(restoreID, routing.ShardID, status)
}

// OnShardFailed records a failure for a shard that was recovering from a
// snapshot. Only failures classified as data corruption are terminal; any
// other failure leaves the status untouched so the retried shard can still
// report a real outcome.
func (t *ProgressTracker) OnShardFailed(routing model.ShardRouting, failure model.UnassignedInfo) *model.ShardRestoreStatus {
	restoreID, ok := restoreIDOf(routing)
	if !ok || !routing.Initializing() {
		return nil
	}
	if !failure.Corruption {
		return nil
	}
	status := model.ShardRestoreStatus{
		NodeID: routing.NodeID,
		State:  model.RestoreStateFailure,
		Reason: failure.FailureMessage,
	}
	return t.record(restoreID, routing.ShardID, status)
}

// OnShardReinitialized records that a shard previously recovering from a
// snapshot got a different recovery source; it is no longer being restored.
func (t *ProgressTracker) OnShardReinitialized(old, updated model.ShardRouting) *model.ShardRestoreStatus {
	restoreID, ok := restoreIDOf(old)
	if !ok {
		return nil
	}
	if updated.RecoverySource.Type == model.RecoverySourceSnapshot &&
		updated.RecoverySource.RestoreID == restoreID {
		return nil
	}
	status := model.ShardRestoreStatus{
		NodeID: updated.NodeID,
		State:  model.RestoreStateFailure,
		Reason: "recovery source type changed from snapshot to " + string(updated.RecoverySource.Type),
	}
	return t.record(restoreID, old.ShardID, status)
}

// OnUnassignedInfoUpdated records that the allocator gave up on a shard
func (t *ProgressTracker) OnUnassignedInfoUpdated(routing model.ShardRouting, info model.UnassignedInfo) *model.ShardRestoreStatus {
	restoreID, ok := restoreIDOf(routing)
	if !ok {
		return nil
	}
	if info.LastAllocationStatus != model.AllocationStatusDecidersNo {
		return nil
	}
	status := model.ShardRestoreStatus{
		State:  model.RestoreStateFailure,
		Reason: "shard could not be allocated to any of the nodes",
	}
	return t.record(restoreID, routing.ShardID, status)
}

func (t *ProgressTracker) record(restoreID string, shardID model.ShardID, status model.ShardRestoreStatus) *model.ShardRestoreStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	updates, ok := t.pending[restoreID]
	if !ok {
		updates = map[model.ShardID]model.ShardRestoreStatus{}
		t.pending[restoreID] = updates
	}
	if prev, ok := updates[shardID]; ok && prev.State.Completed() {
		return &prev
	}
	updates[shardID] = status
	if t.metrics != nil && status.State.Completed() {
		t.metrics.RecordShardCompleted(string(status.State))
	}
	return &status
}

// HasPending reports whether any recorded event is waiting to be flushed
func (t *ProgressTracker) HasPending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending) > 0
}

// Flush commits all recorded events in one transformation. When nothing
// actually changes the input state is returned unchanged and no new state
// version appears.
func (t *ProgressTracker) Flush(ctx context.Context) error {
	t.mu.Lock()
	batch := t.pending
	t.pending = map[string]map[model.ShardID]model.ShardRestoreStatus{}
	t.mu.Unlock()
	if len(batch) == 0 {
		return nil
	}

	_, err := t.state.SubmitStateTransformation(ctx, "update restore state",
		func(current model.ClusterState) (model.ClusterState, error) {
			for restoreID, updates := range batch {
				op, ok := current.RestoreInProgressFor(restoreID)
				if !ok {
					t.logger.Debug("Dropping progress updates for unknown restore",
						zap.String("restore_id", restoreID))
					continue
				}
				if next, changed := ApplyShardChanges(op, updates); changed {
					current.Restores[restoreID] = next
				}
			}
			return current, nil
		})
	return err
}

// ApplyShardChanges folds a batch of per-shard updates into one restore
// operation. Terminal shard statuses never regress; when no status actually
// changes the input operation is returned with changed=false.
func ApplyShardChanges(op model.RestoreOperation, updates map[model.ShardID]model.ShardRestoreStatus) (model.RestoreOperation, bool) {
	changed := false
	var next model.RestoreOperation
	for shardID, status := range updates {
		currentStatus, tracked := op.Shards[shardID]
		if !tracked || currentStatus.State.Completed() {
			continue
		}
		if currentStatus == status {
			continue
		}
		if !changed {
			next = op.Clone()
			changed = true
		}
		next.Shards[shardID] = status
	}
	if !changed {
		return op, false
	}
	next.State = model.OverallState(model.RestoreStateStarted, next.Shards)
	return next, true
}

// FailShardsForDeletedIndices marks every non-terminal shard of the given
// deleted indices as failed, letting the reaper retire restores whose target
// was deleted mid-flight.
func (t *ProgressTracker) FailShardsForDeletedIndices(ctx context.Context, deleted []string) error {
	if len(deleted) == 0 {
		return nil
	}
	deletedSet := make(map[string]bool, len(deleted))
	for _, index := range deleted {
		deletedSet[index] = true
	}
	sort.Strings(deleted)
	t.logger.Info("Failing restore shards for deleted indices", zap.Strings("indices", deleted))

	_, err := t.state.SubmitStateTransformation(ctx, "fail restore shards for deleted indices",
		func(current model.ClusterState) (model.ClusterState, error) {
			for restoreID, op := range current.Restores {
				updates := map[model.ShardID]model.ShardRestoreStatus{}
				for shardID, status := range op.Shards {
					if deletedSet[shardID.Index] && !status.State.Completed() {
						updates[shardID] = model.ShardRestoreStatus{
							State:  model.RestoreStateFailure,
							Reason: "index was deleted",
						}
					}
				}
				if len(updates) == 0 {
					continue
				}
				next, changed := ApplyShardChanges(op, updates)
				if changed {
					current.Restores[restoreID] = next
				}
			}
			return current, nil
		})
	return err
}

func restoreIDOf(routing model.ShardRouting) (string, bool) {
	if routing.RecoverySource.Type != model.RecoverySourceSnapshot {
		return "", false
	}
	if routing.RecoverySource.RestoreID == "" {
		return "", false
	}
	return routing.RecoverySource.RestoreID, true
}
