package model

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ShardID identifies one shard of one index. For restores this always names
// the shard within the renamed target index, not the snapshot's original.
type ShardID struct {
	Index string `json:"index"`
	Shard int    `json:"shard"`
}

// String renders the shard id as [index][n]
func (s ShardID) String() string {
	return fmt.Sprintf("[%s][%d]", s.Index, s.Shard)
}

// MarshalText lets shard-keyed maps serialize as JSON objects
func (s ShardID) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses the [index][n] form produced by MarshalText
func (s *ShardID) UnmarshalText(text []byte) error {
	str := string(text)
	sep := strings.LastIndex(str, "][")
	if len(str) < 5 || str[0] != '[' || str[len(str)-1] != ']' || sep < 1 {
		return fmt.Errorf("malformed shard id %q", str)
	}
	shard, err := strconv.Atoi(str[sep+2 : len(str)-1])
	if err != nil {
		return fmt.Errorf("malformed shard id %q: %w", str, err)
	}
	s.Index = str[1:sep]
	s.Shard = shard
	return nil
}

// RecoverySourceType enumerates the ways a shard can be populated
type RecoverySourceType string

const (
	// RecoverySourceEmptyStore seeds a brand new empty shard
	RecoverySourceEmptyStore RecoverySourceType = "EMPTY_STORE"
	// RecoverySourceExistingStore reuses on-disk data from a previous cycle
	RecoverySourceExistingStore RecoverySourceType = "EXISTING_STORE"
	// RecoverySourcePeer copies data from the primary on another node
	RecoverySourcePeer RecoverySourceType = "PEER"
	// RecoverySourceSnapshot pulls shard data from a repository snapshot
	RecoverySourceSnapshot RecoverySourceType = "SNAPSHOT"
)

// RecoverySource describes how a shard's routing entry is populated. For
// snapshot recoveries it embeds the restore id used to correlate lifecycle
// events back to the owning RestoreOperation.
type RecoverySource struct {
	Type          RecoverySourceType `json:"type"`
	RestoreID     string             `json:"restore_id,omitempty"`
	Snapshot      Snapshot           `json:"snapshot,omitempty"`
	FormatVersion int                `json:"format_version,omitempty"`
	IndexID       string             `json:"index_id,omitempty"`
}

// ShardRoutingState is the allocation lifecycle state of one shard copy
type ShardRoutingState string

const (
	// ShardUnassigned means the shard is waiting for a node assignment
	ShardUnassigned ShardRoutingState = "UNASSIGNED"
	// ShardInitializing means the shard is recovering on its assigned node
	ShardInitializing ShardRoutingState = "INITIALIZING"
	// ShardStarted means the shard finished recovery and is serving
	ShardStarted ShardRoutingState = "STARTED"
)

// AllocationStatus summarizes the allocator's latest verdict for an
// unassigned shard.
type AllocationStatus string

const (
	// AllocationStatusPending means no allocation attempt has concluded yet
	AllocationStatusPending AllocationStatus = "PENDING"
	// AllocationStatusDecidersNo means no node is eligible to host the shard
	AllocationStatusDecidersNo AllocationStatus = "DECIDERS_NO"
	// AllocationStatusDelayed means allocation is intentionally postponed
	AllocationStatusDelayed AllocationStatus = "DELAYED"
)

// UnassignedInfo carries the reason and failure detail for an unassigned or
// failed shard.
type UnassignedInfo struct {
	Reason               string           `json:"reason"`
	FailureMessage       string           `json:"failure_message,omitempty"`
	Corruption           bool             `json:"corruption,omitempty"`
	FailedAllocations    int              `json:"failed_allocations,omitempty"`
	LastAllocationStatus AllocationStatus `json:"last_allocation_status,omitempty"`
}

// ShardRouting is one shard copy's routing entry
type ShardRouting struct {
	ShardID        ShardID         `json:"shard_id"`
	NodeID         string          `json:"node_id,omitempty"`
	Primary        bool            `json:"primary"`
	State          ShardRoutingState `json:"state"`
	RecoverySource RecoverySource  `json:"recovery_source"`
	UnassignedInfo *UnassignedInfo `json:"unassigned_info,omitempty"`
}

// Initializing reports whether the shard is still recovering
func (r ShardRouting) Initializing() bool {
	return r.State == ShardInitializing
}

// RoutingTable is the cluster-wide assignment of shards to nodes, keyed by
// shard id. Treat as immutable; Clone before modifying.
type RoutingTable struct {
	Shards map[ShardID]ShardRouting `json:"shards"`
}

// NewRoutingTable returns an empty routing table
func NewRoutingTable() RoutingTable {
	return RoutingTable{Shards: map[ShardID]ShardRouting{}}
}

// Clone returns a deep copy of the routing table
func (t RoutingTable) Clone() RoutingTable {
	out := RoutingTable{Shards: make(map[ShardID]ShardRouting, len(t.Shards))}
	for k, v := range t.Shards {
		if v.UnassignedInfo != nil {
			info := *v.UnassignedInfo
			v.UnassignedInfo = &info
		}
		out.Shards[k] = v
	}
	return out
}

// AddAsNewRestore schedules every primary shard of a freshly created index
// for snapshot recovery, except the shards listed in ignore which are left
// out of the routing table entirely (their data is missing from the
// snapshot and they are pre-failed in the progress record instead).
func (t RoutingTable) AddAsNewRestore(index IndexMetadata, source RecoverySource, ignore map[int]bool) {
	for shard := 0; shard < index.NumberOfShards; shard++ {
		if ignore[shard] {
			continue
		}
		id := ShardID{Index: index.Name, Shard: shard}
		t.Shards[id] = ShardRouting{
			ShardID:        id,
			Primary:        true,
			State:          ShardUnassigned,
			RecoverySource: source,
			UnassignedInfo: &UnassignedInfo{
				Reason:               "NEW_INDEX_RESTORED",
				LastAllocationStatus: AllocationStatusPending,
			},
		}
	}
}

// AddAsRestore schedules every primary shard of an existing closed index for
// snapshot recovery, replacing any routing entries left from its closed
// state.
func (t RoutingTable) AddAsRestore(index IndexMetadata, source RecoverySource) {
	for shard := 0; shard < index.NumberOfShards; shard++ {
		id := ShardID{Index: index.Name, Shard: shard}
		t.Shards[id] = ShardRouting{
			ShardID:        id,
			Primary:        true,
			State:          ShardUnassigned,
			RecoverySource: source,
			UnassignedInfo: &UnassignedInfo{
				Reason:               "EXISTING_INDEX_RESTORED",
				LastAllocationStatus: AllocationStatusPending,
			},
		}
	}
}

// RemoveIndex drops all routing entries belonging to the given index
func (t RoutingTable) RemoveIndex(index string) {
	for id := range t.Shards {
		if id.Index == index {
			delete(t.Shards, id)
		}
	}
}

// SortedShardIDs returns the table's shard ids in a stable order
func (t RoutingTable) SortedShardIDs() []ShardID {
	ids := make([]ShardID, 0, len(t.Shards))
	for id := range t.Shards {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Index != ids[j].Index {
			return ids[i].Index < ids[j].Index
		}
		return ids[i].Shard < ids[j].Shard
	})
	return ids
}
