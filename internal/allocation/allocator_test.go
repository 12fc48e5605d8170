package allocation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/driftsearch/snaprestore/internal/model"
)

func stateWithUnassigned(nodes map[string]model.Node, shards int) model.ClusterState {
	state := model.NewClusterState("node-1")
	state.Nodes = nodes
	state.RoutingTable.AddAsNewRestore(model.IndexMetadata{Name: "logs-2024", NumberOfShards: shards},
		model.RecoverySource{Type: model.RecoverySourceSnapshot, RestoreID: "restore-1"}, nil)
	return state
}

func TestRoundRobin_SpreadsAcrossDataNodes(t *testing.T) {
	allocator := NewRoundRobinAllocator(zap.NewNop())
	state := stateWithUnassigned(map[string]model.Node{
		"node-a": {ID: "node-a", DataNode: true},
		"node-b": {ID: "node-b", DataNode: true},
		"node-c": {ID: "node-c", DataNode: false},
	}, 4)

	out := allocator.Reroute(state, "test")

	counts := map[string]int{}
	for _, routing := range out.RoutingTable.Shards {
		assert.Equal(t, model.ShardInitializing, routing.State)
		counts[routing.NodeID]++
	}
	assert.Equal(t, map[string]int{"node-a": 2, "node-b": 2}, counts)
}

func TestRoundRobin_NoDataNodesMarksDecidersNo(t *testing.T) {
	allocator := NewRoundRobinAllocator(zap.NewNop())
	state := stateWithUnassigned(map[string]model.Node{
		"node-a": {ID: "node-a", DataNode: false},
	}, 2)

	out := allocator.Reroute(state, "test")

	for _, routing := range out.RoutingTable.Shards {
		assert.Equal(t, model.ShardUnassigned, routing.State)
		assert.Empty(t, routing.NodeID)
		assert.Equal(t, model.AllocationStatusDecidersNo, routing.UnassignedInfo.LastAllocationStatus)
	}
}

func TestRoundRobin_LeavesAssignedShardsAlone(t *testing.T) {
	allocator := NewRoundRobinAllocator(zap.NewNop())
	state := stateWithUnassigned(map[string]model.Node{
		"node-a": {ID: "node-a", DataNode: true},
	}, 1)

	id := model.ShardID{Index: "metrics-2024", Shard: 0}
	state.RoutingTable.Shards[id] = model.ShardRouting{
		ShardID: id, NodeID: "node-z", State: model.ShardStarted,
	}

	out := allocator.Reroute(state, "test")
	assert.Equal(t, "node-z", out.RoutingTable.Shards[id].NodeID)
	assert.Equal(t, model.ShardStarted, out.RoutingTable.Shards[id].State)
}
