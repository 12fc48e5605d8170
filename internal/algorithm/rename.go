package algorithm

import (
	"regexp"
	"strings"

	"github.com/driftsearch/snaprestore/internal/errors"
	"github.com/driftsearch/snaprestore/internal/model"
)

// RenameConfig carries the rename pattern and replacement from a restore
// request. Both must be set for renaming to apply.
type RenameConfig struct {
	Pattern     string
	Replacement string
}

// Enabled reports whether renaming is configured
func (c RenameConfig) Enabled() bool {
	return c.Pattern != "" && c.Replacement != ""
}

// Compile validates the rename pattern
func (c RenameConfig) Compile() (*regexp.Regexp, error) {
	re, err := regexp.Compile(c.Pattern)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidRequest, "", "", err,
			"invalid rename pattern [%s]", c.Pattern)
	}
	return re, nil
}

// RenameIndex applies the rename to one index name. Backing indices of data
// streams strip the backing-index prefix before the replace and reapply it
// after, so the stream naming convention survives the rename.
func RenameIndex(index string, cfg RenameConfig, re *regexp.Regexp, partOfDataStream bool) string {
	if !cfg.Enabled() || re == nil {
		return index
	}
	renamed := index
	partOfDataStream = partOfDataStream && strings.HasPrefix(index, model.BackingIndexPrefix)
	if partOfDataStream {
		renamed = index[len(model.BackingIndexPrefix):]
	}
	renamed = re.ReplaceAllString(renamed, cfg.Replacement)
	if partOfDataStream {
		renamed = model.BackingIndexPrefix + renamed
	}
	return renamed
}

// RenamedIndices computes the rename map for the selected index set, keyed
// by target name with the snapshot's original name as value. Feature state
// indices are never renamed. Two sources mapping to one target is a hard
// failure before any state mutation.
func RenamedIndices(cfg RenameConfig, indices []string, dataStreamIndices, featureStateIndices map[string]bool) (map[string]string, error) {
	var re *regexp.Regexp
	if cfg.Enabled() {
		var err error
		re, err = cfg.Compile()
		if err != nil {
			return nil, err
		}
	}
	renamed := make(map[string]string, len(indices))
	for _, index := range indices {
		target := index
		if !featureStateIndices[index] {
			target = RenameIndex(index, cfg, re, dataStreamIndices[index])
		}
		if previous, ok := renamed[target]; ok {
			return nil, errors.New(errors.ErrCodeRenameCollision, "", "",
				"indices [%s] and [%s] are renamed into the same index [%s]", index, previous, target)
		}
		renamed[target] = index
	}
	return renamed, nil
}
