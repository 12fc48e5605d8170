// Package algorithm holds the pure functions of the restore engine: pattern
// matching, settings reconciliation and index renaming. Nothing here touches
// cluster state or does IO.
package algorithm

import "strings"

// IsSimpleMatchPattern reports whether the expression contains a wildcard
func IsSimpleMatchPattern(expr string) bool {
	return strings.Contains(expr, "*")
}

// SimpleMatch matches str against a glob-style pattern where '*' matches any
// run of characters. This is deliberately prefix/suffix matching, not regex.
func SimpleMatch(pattern, str string) bool {
	firstStar := strings.IndexByte(pattern, '*')
	if firstStar == -1 {
		return pattern == str
	}
	if firstStar == 0 {
		if len(pattern) == 1 {
			return true
		}
		rest := pattern[1:]
		if nextStar := strings.IndexByte(rest, '*'); nextStar != -1 {
			// Consume up to the next literal segment, then recurse.
			segment := rest[:nextStar]
			idx := strings.Index(str, segment)
			if idx == -1 {
				return false
			}
			return SimpleMatch(rest[nextStar:], str[idx+len(segment):])
		}
		return strings.HasSuffix(str, rest)
	}
	prefix := pattern[:firstStar]
	if !strings.HasPrefix(str, prefix) {
		return false
	}
	return SimpleMatch(pattern[firstStar:], str[len(prefix):])
}

// SimpleMatchAny reports whether str matches any of the patterns
func SimpleMatchAny(patterns []string, str string) bool {
	for _, p := range patterns {
		if SimpleMatch(p, str) {
			return true
		}
	}
	return false
}

// FilterNames filters available names by the request expressions. An empty
// expression list, "*" or "_all" selects everything. Expressions prefixed
// with '-' exclude previously selected names. Order of the result follows
// the order of available.
func FilterNames(available []string, expressions []string) []string {
	if len(expressions) == 0 {
		return append([]string(nil), available...)
	}
	selected := make(map[string]bool, len(available))
	for i, expr := range expressions {
		exclude := false
		if strings.HasPrefix(expr, "-") && i > 0 {
			exclude = true
			expr = expr[1:]
		}
		if expr == "_all" || expr == "*" {
			for _, name := range available {
				selected[name] = !exclude
			}
			continue
		}
		for _, name := range available {
			if SimpleMatch(expr, name) || expr == name {
				selected[name] = !exclude
			}
		}
	}
	out := make([]string, 0, len(selected))
	for _, name := range available {
		if selected[name] {
			out = append(out, name)
		}
	}
	return out
}
