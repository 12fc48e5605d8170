// Package allocation defines the shard placement seam. Real placement
// heuristics live outside this engine; the restore plan builder only needs
// an allocator it can hand the new routing table to.
package allocation

import (
	"sort"

	"go.uber.org/zap"

	"github.com/driftsearch/snaprestore/internal/model"
)

// Allocator computes concrete shard-to-node assignment as a post-processing
// pass over a freshly built cluster state.
type Allocator interface {
	Reroute(state model.ClusterState, reason string) model.ClusterState
}

// RoundRobinAllocator assigns unassigned shards to data nodes round-robin in
// a deterministic order. It stands in for a real placement engine in tests
// and single-node deployments.
type RoundRobinAllocator struct {
	logger *zap.Logger
}

// NewRoundRobinAllocator creates a round-robin allocator
func NewRoundRobinAllocator(logger *zap.Logger) *RoundRobinAllocator {
	return &RoundRobinAllocator{logger: logger}
}

// Reroute implements Allocator. Shards that cannot be placed because no
// data node exists are marked DECIDERS_NO so the progress tracker can fail
// them instead of leaving them pending forever.
func (a *RoundRobinAllocator) Reroute(state model.ClusterState, reason string) model.ClusterState {
	var dataNodes []string
	for id, node := range state.Nodes {
		if node.DataNode {
			dataNodes = append(dataNodes, id)
		}
	}
	sort.Strings(dataNodes)

	next := 0
	for _, shardID := range state.RoutingTable.SortedShardIDs() {
		routing := state.RoutingTable.Shards[shardID]
		if routing.State != model.ShardUnassigned {
			continue
		}
		if len(dataNodes) == 0 {
			if routing.UnassignedInfo == nil {
				routing.UnassignedInfo = &model.UnassignedInfo{Reason: reason}
			}
			routing.UnassignedInfo.LastAllocationStatus = model.AllocationStatusDecidersNo
			state.RoutingTable.Shards[shardID] = routing
			continue
		}
		routing.NodeID = dataNodes[next%len(dataNodes)]
		routing.State = model.ShardInitializing
		state.RoutingTable.Shards[shardID] = routing
		next++
	}

	a.logger.Debug("Reroute completed",
		zap.String("reason", reason),
		zap.Int("data_nodes", len(dataNodes)))
	return state
}
