// Package features tracks the features installed on this node and the
// system index patterns each one owns. Feature states in a snapshot can only
// be restored when the owning feature is installed here.
package features

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/driftsearch/snaprestore/internal/algorithm"
	"github.com/driftsearch/snaprestore/internal/model"
)

// NoFeatureStatesValue is the request sentinel meaning "restore no feature
// states". It must not be combined with named states.
const NoFeatureStatesValue = "none"

// Feature describes one installed feature and its system index patterns
type Feature struct {
	Name          string   `yaml:"name"`
	Description   string   `yaml:"description,omitempty"`
	IndexPatterns []string `yaml:"index_patterns"`
}

type registryFile struct {
	Features []Feature `yaml:"features"`
}

// Registry is the set of features installed on the local node
type Registry struct {
	features map[string]Feature
}

// NewRegistry builds a registry from the given features
func NewRegistry(features []Feature) *Registry {
	r := &Registry{features: make(map[string]Feature, len(features))}
	for _, f := range features {
		r.features[f.Name] = f
	}
	return r
}

// LoadRegistry reads the feature registry from a YAML file
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading feature registry: %w", err)
	}
	var file registryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing feature registry: %w", err)
	}
	return NewRegistry(file.Features), nil
}

// Has reports whether the named feature is installed
func (r *Registry) Has(name string) bool {
	_, ok := r.features[name]
	return ok
}

// Get returns the named feature, or false when not installed
func (r *Registry) Get(name string) (Feature, bool) {
	f, ok := r.features[name]
	return f, ok
}

// Names returns the installed feature names in sorted order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.features))
	for name := range r.features {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsSystemName reports whether the index name falls under any installed
// feature's system index patterns.
func (r *Registry) IsSystemName(index string) bool {
	for _, f := range r.features {
		if algorithm.SimpleMatchAny(f.IndexPatterns, index) {
			return true
		}
	}
	return false
}

// MatchingIndices returns the names of currently existing indices owned by
// the given features, in sorted order. These are the indices a feature-state
// restore clears out before installing the snapshot's copies.
func (r *Registry) MatchingIndices(metadata model.Metadata, featureNames []string) []string {
	matched := map[string]bool{}
	for _, name := range featureNames {
		f, ok := r.features[name]
		if !ok {
			continue
		}
		for index := range metadata.Indices {
			if algorithm.SimpleMatchAny(f.IndexPatterns, index) {
				matched[index] = true
			}
		}
	}
	out := make([]string, 0, len(matched))
	for index := range matched {
		out = append(out, index)
	}
	sort.Strings(out)
	return out
}
