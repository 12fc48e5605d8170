package algorithm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimpleMatch_NoWildcard(t *testing.T) {
	assert.True(t, SimpleMatch("logs-2024", "logs-2024"))
	assert.False(t, SimpleMatch("logs-2024", "logs-2023"))
}

func TestSimpleMatch_Wildcards(t *testing.T) {
	assert.True(t, SimpleMatch("*", "anything"))
	assert.True(t, SimpleMatch("logs-*", "logs-2024"))
	assert.True(t, SimpleMatch("*-2024", "logs-2024"))
	assert.True(t, SimpleMatch("logs-*-east", "logs-2024-east"))
	assert.True(t, SimpleMatch("*logs*", "app-logs-2024"))
	assert.False(t, SimpleMatch("logs-*", "metrics-2024"))
	assert.False(t, SimpleMatch("logs-*-east", "logs-2024-west"))
}

func TestSimpleMatchAny(t *testing.T) {
	patterns := []string{".security*", ".tasks"}
	assert.True(t, SimpleMatchAny(patterns, ".security-7"))
	assert.True(t, SimpleMatchAny(patterns, ".tasks"))
	assert.False(t, SimpleMatchAny(patterns, "logs-2024"))
	assert.False(t, SimpleMatchAny(nil, "logs-2024"))
}

func TestFilterNames_EmptySelectsAll(t *testing.T) {
	available := []string{"logs-2023", "logs-2024", "metrics-2024"}

	assert.Equal(t, available, FilterNames(available, nil))
	assert.Equal(t, available, FilterNames(available, []string{"*"}))
	assert.Equal(t, available, FilterNames(available, []string{"_all"}))
}

func TestFilterNames_PatternsAndExclusions(t *testing.T) {
	available := []string{"logs-2023", "logs-2024", "metrics-2024"}

	assert.Equal(t, []string{"logs-2023", "logs-2024"}, FilterNames(available, []string{"logs-*"}))
	assert.Equal(t, []string{"logs-2024"}, FilterNames(available, []string{"logs-*", "-logs-2023"}))
	assert.Equal(t, []string{"logs-2023", "metrics-2024"}, FilterNames(available, []string{"*", "-logs-2024"}))
}

func TestFilterNames_LeadingDashIsLiteral(t *testing.T) {
	// A '-' in the first expression is a name, not an exclusion.
	available := []string{"-special", "logs-2024"}
	assert.Equal(t, []string{"-special"}, FilterNames(available, []string{"-special"}))
}

func TestFilterNames_ResultFollowsAvailableOrder(t *testing.T) {
	available := []string{"c", "a", "b"}
	assert.Equal(t, []string{"c", "a"}, FilterNames(available, []string{"a", "c"}))
}
