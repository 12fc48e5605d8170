package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShardID_TextRoundTrip(t *testing.T) {
	original := map[ShardID]ShardRestoreStatus{
		{Index: "logs-2024", Shard: 0}: {State: RestoreStateSuccess, NodeID: "node-1"},
		{Index: "logs-2024", Shard: 1}: {State: RestoreStateInit},
		{Index: ".ds-logs-2024-000001", Shard: 3}: {State: RestoreStateFailure, Reason: "index was deleted"},
	}

	data, err := json.Marshal(original)
	assert.NoError(t, err)

	var decoded map[ShardID]ShardRestoreStatus
	assert.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, original, decoded)
}

func TestShardID_UnmarshalTextRejectsGarbage(t *testing.T) {
	var id ShardID
	for _, raw := range []string{"", "logs-2024", "[logs-2024]", "[logs-2024][x]", "[logs-2024][0"} {
		assert.Error(t, id.UnmarshalText([]byte(raw)), raw)
	}
}

func TestAddAsNewRestore_SkipsIgnoredShards(t *testing.T) {
	table := NewRoutingTable()
	index := IndexMetadata{Name: "logs-2024", NumberOfShards: 3}
	source := RecoverySource{Type: RecoverySourceSnapshot, RestoreID: "restore-1"}

	table.AddAsNewRestore(index, source, map[int]bool{1: true})

	assert.Len(t, table.Shards, 2)
	_, skipped := table.Shards[ShardID{Index: "logs-2024", Shard: 1}]
	assert.False(t, skipped)

	routing := table.Shards[ShardID{Index: "logs-2024", Shard: 0}]
	assert.True(t, routing.Primary)
	assert.Equal(t, ShardUnassigned, routing.State)
	assert.Equal(t, "NEW_INDEX_RESTORED", routing.UnassignedInfo.Reason)
	assert.Equal(t, AllocationStatusPending, routing.UnassignedInfo.LastAllocationStatus)
}

func TestAddAsRestore_ReplacesExistingEntries(t *testing.T) {
	table := NewRoutingTable()
	id := ShardID{Index: "logs-2024", Shard: 0}
	table.Shards[id] = ShardRouting{ShardID: id, State: ShardStarted, NodeID: "node-2"}

	index := IndexMetadata{Name: "logs-2024", NumberOfShards: 1}
	table.AddAsRestore(index, RecoverySource{Type: RecoverySourceSnapshot, RestoreID: "restore-1"})

	routing := table.Shards[id]
	assert.Equal(t, ShardUnassigned, routing.State)
	assert.Empty(t, routing.NodeID)
	assert.Equal(t, "EXISTING_INDEX_RESTORED", routing.UnassignedInfo.Reason)
}

func TestRoutingTableClone_Independent(t *testing.T) {
	table := NewRoutingTable()
	id := ShardID{Index: "logs-2024", Shard: 0}
	table.Shards[id] = ShardRouting{
		ShardID:        id,
		State:          ShardUnassigned,
		UnassignedInfo: &UnassignedInfo{Reason: "NEW_INDEX_RESTORED"},
	}

	clone := table.Clone()
	clone.Shards[id].UnassignedInfo.Reason = "changed"
	delete(clone.Shards, ShardID{Index: "other", Shard: 0})

	assert.Equal(t, "NEW_INDEX_RESTORED", table.Shards[id].UnassignedInfo.Reason)
}

func TestRemoveIndex(t *testing.T) {
	table := NewRoutingTable()
	table.AddAsNewRestore(IndexMetadata{Name: "logs-2024", NumberOfShards: 2},
		RecoverySource{Type: RecoverySourceSnapshot}, nil)
	table.AddAsNewRestore(IndexMetadata{Name: "metrics-2024", NumberOfShards: 1},
		RecoverySource{Type: RecoverySourceSnapshot}, nil)

	table.RemoveIndex("logs-2024")

	assert.Len(t, table.Shards, 1)
	_, ok := table.Shards[ShardID{Index: "metrics-2024", Shard: 0}]
	assert.True(t, ok)
}

func TestSortedShardIDs(t *testing.T) {
	table := NewRoutingTable()
	table.AddAsNewRestore(IndexMetadata{Name: "b-index", NumberOfShards: 2},
		RecoverySource{Type: RecoverySourceSnapshot}, nil)
	table.AddAsNewRestore(IndexMetadata{Name: "a-index", NumberOfShards: 1},
		RecoverySource{Type: RecoverySourceSnapshot}, nil)

	ids := table.SortedShardIDs()
	assert.Equal(t, []ShardID{
		{Index: "a-index", Shard: 0},
		{Index: "b-index", Shard: 0},
		{Index: "b-index", Shard: 1},
	}, ids)
}
