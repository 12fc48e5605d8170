package algorithm

import (
	"fmt"
	"strings"

	"github.com/driftsearch/snaprestore/internal/errors"
	"github.com/driftsearch/snaprestore/internal/model"
)

const maxIndexNameBytes = 255

var illegalIndexNameChars = []string{" ", "\"", "*", "\\", "<", "|", ",", ">", "/", "?", "#", ":"}

// ValidateIndexName checks general index naming rules for an index about to
// be created by a restore.
func ValidateIndexName(name string) error {
	if name == "" {
		return invalidName(name, "must not be empty")
	}
	if name != strings.ToLower(name) {
		return invalidName(name, "must be lowercase")
	}
	if name == "." || name == ".." {
		return invalidName(name, "must not be '.' or '..'")
	}
	for _, ch := range illegalIndexNameChars {
		if strings.Contains(name, ch) {
			return invalidName(name, "must not contain %q", ch)
		}
	}
	if strings.HasPrefix(name, "-") || strings.HasPrefix(name, "_") || strings.HasPrefix(name, "+") {
		return invalidName(name, "must not start with '-', '_' or '+'")
	}
	if len(name) > maxIndexNameBytes {
		return invalidName(name, "name is too long (%d > %d bytes)", len(name), maxIndexNameBytes)
	}
	return nil
}

// IsDotIndexName reports whether the name uses the dotted system/hidden
// index convention. Data stream backing indices are excluded; their dot
// prefix is part of the stream naming scheme, not a system marker.
func IsDotIndexName(name string) bool {
	return strings.HasPrefix(name, ".") && !strings.HasPrefix(name, model.BackingIndexPrefix)
}

func invalidName(name, format string, args ...interface{}) error {
	return errors.New(errors.ErrCodeInvalidIndexName, "", "",
		"invalid index name [%s]: %s", name, fmt.Sprintf(format, args...))
}
