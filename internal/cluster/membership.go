package cluster

import (
	"fmt"
	"sort"
	"time"

	"github.com/hashicorp/memberlist"
	"go.uber.org/zap"
)

// MembershipConfig holds gossip protocol configuration
type MembershipConfig struct {
	Enabled        bool
	BindPort       int
	SeedNodes      []string
	GossipInterval time.Duration
	ProbeTimeout   time.Duration
	ProbeInterval  time.Duration
}

// Membership tracks live restore nodes over gossip. The node holding
// leadership runs the completion reaper; leadership is simply the
// lexicographically smallest live node name, which every node computes
// identically from its member view.
type Membership struct {
	config     *MembershipConfig
	memberlist *memberlist.Memberlist
	nodeID     string
	logger     *zap.Logger
}

// NewMembership creates the gossip membership and joins the seed nodes.
// With gossip disabled the local node is the only member and is always
// leader, which keeps single-node deployments working without ports.
func NewMembership(cfg *MembershipConfig, nodeID string, logger *zap.Logger) (*Membership, error) {
	m := &Membership{config: cfg, nodeID: nodeID, logger: logger}
	if !cfg.Enabled {
		return m, nil
	}

	mlConfig := memberlist.DefaultLocalConfig()
	mlConfig.Name = nodeID
	mlConfig.BindPort = cfg.BindPort
	if cfg.GossipInterval > 0 {
		mlConfig.GossipInterval = cfg.GossipInterval
	}
	if cfg.ProbeTimeout > 0 {
		mlConfig.ProbeTimeout = cfg.ProbeTimeout
	}
	if cfg.ProbeInterval > 0 {
		mlConfig.ProbeInterval = cfg.ProbeInterval
	}
	mlConfig.Events = &membershipEvents{logger: logger}

	ml, err := memberlist.Create(mlConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create memberlist: %w", err)
	}
	m.memberlist = ml

	if len(cfg.SeedNodes) > 0 {
		if _, err := ml.Join(cfg.SeedNodes); err != nil {
			logger.Warn("Failed to join some seed nodes", zap.Error(err))
		}
	}

	return m, nil
}

// LocalNodeID returns this node's id
func (m *Membership) LocalNodeID() string {
	return m.nodeID
}

// Members returns the live member names in sorted order
func (m *Membership) Members() []string {
	if m.memberlist == nil {
		return []string{m.nodeID}
	}
	nodes := m.memberlist.Members()
	names := make([]string, 0, len(nodes))
	for _, n := range nodes {
		names = append(names, n.Name)
	}
	sort.Strings(names)
	return names
}

// IsLeader reports whether the local node currently holds leadership
func (m *Membership) IsLeader() bool {
	members := m.Members()
	return len(members) > 0 && members[0] == m.nodeID
}

// Shutdown leaves the gossip pool
func (m *Membership) Shutdown() error {
	if m.memberlist == nil {
		return nil
	}
	if err := m.memberlist.Leave(time.Second); err != nil {
		m.logger.Warn("Failed to leave gossip pool cleanly", zap.Error(err))
	}
	return m.memberlist.Shutdown()
}

// membershipEvents logs joins and leaves
type membershipEvents struct {
	logger *zap.Logger
}

// NotifyJoin implements memberlist.EventDelegate
func (e *membershipEvents) NotifyJoin(node *memberlist.Node) {
	e.logger.Info("Node joined cluster", zap.String("node", node.Name), zap.String("addr", node.Address()))
}

// NotifyLeave implements memberlist.EventDelegate
func (e *membershipEvents) NotifyLeave(node *memberlist.Node) {
	e.logger.Info("Node left cluster", zap.String("node", node.Name))
}

// NotifyUpdate implements memberlist.EventDelegate
func (e *membershipEvents) NotifyUpdate(node *memberlist.Node) {
	e.logger.Debug("Node updated", zap.String("node", node.Name))
}
