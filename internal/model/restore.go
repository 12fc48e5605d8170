package model

// RestoreState is the lifecycle state of a restore or one of its shards
type RestoreState string

const (
	// RestoreStateInit indicates a restore or shard that has not started yet
	RestoreStateInit RestoreState = "INIT"
	// RestoreStateStarted indicates at least one shard still in flight
	RestoreStateStarted RestoreState = "STARTED"
	// RestoreStateSuccess indicates every shard restored successfully
	RestoreStateSuccess RestoreState = "SUCCESS"
	// RestoreStateFailure indicates every shard finished and at least one failed
	RestoreStateFailure RestoreState = "FAILURE"
)

// Completed reports whether the state is terminal
func (s RestoreState) Completed() bool {
	return s == RestoreStateSuccess || s == RestoreStateFailure
}

// ShardRestoreStatus is the durable progress record for one restoring shard
type ShardRestoreStatus struct {
	NodeID string       `json:"node_id,omitempty"`
	State  RestoreState `json:"state"`
	Reason string       `json:"reason,omitempty"`
}

// RestoreOperation is the aggregate, cluster-replicated progress record for
// one restore invocation. It is created whole by the plan builder, folded
// forward by the progress tracker, and removed by the reaper; no component
// mutates it in place.
type RestoreOperation struct {
	ID       string                         `json:"id"`
	Snapshot Snapshot                       `json:"snapshot"`
	State    RestoreState                   `json:"state"`
	Indices  []string                       `json:"indices"`
	Shards   map[ShardID]ShardRestoreStatus `json:"shards"`
}

// Clone returns a deep copy of the restore operation
func (op RestoreOperation) Clone() RestoreOperation {
	out := op
	out.Indices = append([]string(nil), op.Indices...)
	out.Shards = make(map[ShardID]ShardRestoreStatus, len(op.Shards))
	for k, v := range op.Shards {
		out.Shards[k] = v
	}
	return out
}

// OverallState derives the aggregate state from a shard status map:
// nonCompleted while any shard is unfinished, FAILURE if all finished with at
// least one failure, SUCCESS otherwise.
func OverallState(nonCompleted RestoreState, shards map[ShardID]ShardRestoreStatus) RestoreState {
	hasFailed := false
	for _, status := range shards {
		if !status.State.Completed() {
			return nonCompleted
		}
		if status.State == RestoreStateFailure {
			hasFailed = true
		}
	}
	if hasFailed {
		return RestoreStateFailure
	}
	return RestoreStateSuccess
}

// ShardsCompleted reports whether every shard status is terminal
func ShardsCompleted(shards map[ShardID]ShardRestoreStatus) bool {
	for _, status := range shards {
		if !status.State.Completed() {
			return false
		}
	}
	return true
}

// FailedShardCount counts shard statuses in FAILURE state
func FailedShardCount(shards map[ShardID]ShardRestoreStatus) int {
	failed := 0
	for _, status := range shards {
		if status.State == RestoreStateFailure {
			failed++
		}
	}
	return failed
}

// RestoreInfo is the completion summary returned when a restore finishes at
// submission time, e.g. a global-state-only restore with no shards to place.
type RestoreInfo struct {
	Snapshot         string   `json:"snapshot"`
	Indices          []string `json:"indices"`
	TotalShards      int      `json:"total_shards"`
	SuccessfulShards int      `json:"successful_shards"`
}
