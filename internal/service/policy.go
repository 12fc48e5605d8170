package service

import (
	"strings"

	"github.com/driftsearch/snaprestore/internal/errors"
	"github.com/driftsearch/snaprestore/internal/model"
)

// SettingsPolicy classifies and validates cluster-level persistent settings
// during a global state merge.
type SettingsPolicy interface {
	// IsOperatorOnly reports whether a key may only be written through an
	// operator channel. Such keys are excluded from snapshot merges when
	// the request asks for it.
	IsOperatorOnly(key string) bool
	// ValidateUpdate checks a proposed persistent settings payload.
	ValidateUpdate(settings model.Settings) error
}

// DefaultSettingsPolicy treats a fixed set of key prefixes as operator-only
// and accepts any non-empty keys.
type DefaultSettingsPolicy struct {
	// OperatorOnlyPrefixes lists key prefixes reserved for operators.
	OperatorOnlyPrefixes []string
}

// NewDefaultSettingsPolicy creates the stock policy
func NewDefaultSettingsPolicy() *DefaultSettingsPolicy {
	return &DefaultSettingsPolicy{
		OperatorOnlyPrefixes: []string{
			"cluster.operator.",
			"cluster.routing.allocation.disk.",
		},
	}
}

// IsOperatorOnly implements SettingsPolicy
func (p *DefaultSettingsPolicy) IsOperatorOnly(key string) bool {
	for _, prefix := range p.OperatorOnlyPrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}

// ValidateUpdate implements SettingsPolicy
func (p *DefaultSettingsPolicy) ValidateUpdate(settings model.Settings) error {
	for key := range settings {
		if strings.TrimSpace(key) == "" {
			return errors.New(errors.ErrCodeInvalidRequest, "", "",
				"persistent settings contain an empty key")
		}
	}
	return nil
}

// ShardLimiter bounds the total number of open shards a restore may create
type ShardLimiter interface {
	// CheckShardLimit reports whether adding newShards open shards to the
	// cluster would exceed the configured ceiling.
	CheckShardLimit(newShards int, state model.ClusterState) error
}

// StaticShardLimiter enforces a fixed cluster-wide open shard ceiling.
// MaxShards <= 0 disables the check.
type StaticShardLimiter struct {
	MaxShards int
}

// CheckShardLimit implements ShardLimiter
func (l StaticShardLimiter) CheckShardLimit(newShards int, state model.ClusterState) error {
	if l.MaxShards <= 0 {
		return nil
	}
	open := state.OpenShardCount()
	if open+newShards > l.MaxShards {
		return errors.New(errors.ErrCodeShardLimitExceeded, "", "",
			"this restore would add [%d] shards, but the cluster is at [%d] of a maximum of [%d] open shards",
			newShards, open, l.MaxShards)
	}
	return nil
}
