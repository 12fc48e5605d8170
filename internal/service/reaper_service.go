package service

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/driftsearch/snaprestore/internal/cluster"
	"github.com/driftsearch/snaprestore/internal/metrics"
	"github.com/driftsearch/snaprestore/internal/model"
	"github.com/driftsearch/snaprestore/internal/store"
)

// Leadership reports whether this node currently coordinates cluster-wide
// cleanup work.
type Leadership interface {
	IsLeader() bool
}

// CompletionReaper watches applied cluster states for restores that reached
// a terminal state and, on the leader, submits one transformation removing
// them. A single-flight guard keeps at most one reap pass in flight.
type CompletionReaper struct {
	state      *cluster.StateService
	leadership Leadership
	history    store.HistoryStore
	metrics    *metrics.Metrics
	logger     *zap.Logger

	inFlight atomic.Bool
}

// NewCompletionReaper creates a reaper. history and m may be nil to disable
// archiving and metrics.
func NewCompletionReaper(state *cluster.StateService, leadership Leadership, history store.HistoryStore, m *metrics.Metrics, logger *zap.Logger) *CompletionReaper {
	return &CompletionReaper{
		state:      state,
		leadership: leadership,
		history:    history,
		metrics:    m,
		logger:     logger,
	}
}

// ApplyClusterState implements cluster.Applier. It runs on the state apply
// goroutine, so the reap itself is dispatched off it.
func (r *CompletionReaper) ApplyClusterState(old, new model.ClusterState) {
	if !hasCompletedRestore(new) {
		return
	}
	if !r.leadership.IsLeader() {
		return
	}
	if !r.inFlight.CompareAndSwap(false, true) {
		return
	}
	go r.reap()
}

func (r *CompletionReaper) reap() {
	// The guard clears on every outcome; a failed or rejected reap must
	// not wedge cleanup forever.
	defer r.inFlight.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var reaped []model.RestoreOperation
	_, err := r.state.SubmitStateTransformation(ctx, "clean up completed restores",
		func(current model.ClusterState) (model.ClusterState, error) {
			reaped = reaped[:0]
			for id, op := range current.Restores {
				if op.State.Completed() {
					reaped = append(reaped, op)
					delete(current.Restores, id)
				}
			}
			return current, nil
		})
	if err != nil {
		r.logger.Warn("Failed to clean up completed restores", zap.Error(err))
		return
	}
	for _, op := range reaped {
		r.logger.Info("Removed completed restore",
			zap.String("restore_id", op.ID),
			zap.String("snapshot", op.Snapshot.String()),
			zap.String("state", string(op.State)),
			zap.Int("failed_shards", model.FailedShardCount(op.Shards)))
		if r.metrics != nil {
			r.metrics.RecordReapedRestore(string(op.State))
		}
		r.archive(ctx, op)
	}
}

// archive writes the completed restore to the history store. Failures are
// logged and swallowed; history is an observability aid, not part of the
// state machine.
func (r *CompletionReaper) archive(ctx context.Context, op model.RestoreOperation) {
	if r.history == nil {
		return
	}
	if err := r.history.SaveCompleted(ctx, op, time.Now().UTC()); err != nil {
		r.logger.Warn("Failed to archive completed restore",
			zap.String("restore_id", op.ID),
			zap.Error(err))
	}
}

func hasCompletedRestore(state model.ClusterState) bool {
	for _, op := range state.Restores {
		if op.State.Completed() {
			return true
		}
	}
	return false
}
