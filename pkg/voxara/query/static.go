package query

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/pureportal/voxara/pkg/voxara/types"
)

// ErrMinAboveMax indicates that the filter's minimum size exceeds its
// maximum size.
var ErrMinAboveMax = errors.New("minimum size exceeds maximum size")

// Matcher evaluates the structured include/exclude scan filters against
// individual files. It is built once per filter set by Compile and is
// safe for concurrent use.
type Matcher struct {
	includeExts map[string]struct{}
	excludeExts map[string]struct{}

	includeNames []string
	excludeNames []string
	includePaths []string
	excludePaths []string

	includeRe *regexp.Regexp
	excludeRe *regexp.Regexp

	minSize *int64
	maxSize *int64
}

// Compile validates a filter set and builds a Matcher from it. It fails
// on an unparsable regex or a minimum size above the maximum; these are
// the validation errors that block a debounced restart.
func Compile(f types.ScanFilters) (*Matcher, error) {
	m := &Matcher{
		includeExts:  normalizeExtensions(f.IncludeExtensions),
		excludeExts:  normalizeExtensions(f.ExcludeExtensions),
		includeNames: lowerList(f.IncludeNames),
		excludeNames: lowerList(f.ExcludeNames),
		includePaths: lowerList(f.IncludePaths),
		excludePaths: lowerList(f.ExcludePaths),
		minSize:      f.MinSizeBytes,
		maxSize:      f.MaxSizeBytes,
	}

	if f.MinSizeBytes != nil && f.MaxSizeBytes != nil && *f.MinSizeBytes > *f.MaxSizeBytes {
		return nil, ErrMinAboveMax
	}

	var err error
	if f.IncludeRegex != "" {
		if m.includeRe, err = regexp.Compile(f.IncludeRegex); err != nil {
			return nil, fmt.Errorf("include regex: %w", err)
		}
	}
	if f.ExcludeRegex != "" {
		if m.excludeRe, err = regexp.Compile(f.ExcludeRegex); err != nil {
			return nil, fmt.Errorf("exclude regex: %w", err)
		}
	}

	return m, nil
}

// Match reports whether a file passes the filter set: every non-empty
// include predicate must accept it, and no exclude predicate may match.
func (m *Matcher) Match(name, path string, size int64) bool {
	lowerName := strings.ToLower(name)
	lowerPath := strings.ToLower(path)

	if len(m.includeExts) > 0 {
		if _, ok := m.includeExts[extOf(lowerName)]; !ok {
			return false
		}
	}
	if len(m.excludeExts) > 0 {
		if _, ok := m.excludeExts[extOf(lowerName)]; ok {
			return false
		}
	}

	if len(m.includeNames) > 0 && !containsAny(lowerName, m.includeNames) {
		return false
	}
	if containsAny(lowerName, m.excludeNames) {
		return false
	}

	if len(m.includePaths) > 0 && !containsAny(lowerPath, m.includePaths) {
		return false
	}
	if containsAny(lowerPath, m.excludePaths) {
		return false
	}

	if m.includeRe != nil && !m.includeRe.MatchString(path) {
		return false
	}
	if m.excludeRe != nil && m.excludeRe.MatchString(path) {
		return false
	}

	if m.minSize != nil && size < *m.minSize {
		return false
	}
	if m.maxSize != nil && size > *m.maxSize {
		return false
	}

	return true
}

// extOf returns the lowercased extension of a name without the dot, or
// an empty string when there is none.
func extOf(lowerName string) string {
	idx := strings.LastIndexByte(lowerName, '.')
	if idx < 0 || idx == len(lowerName)-1 {
		return ""
	}
	return lowerName[idx+1:]
}

func normalizeExtensions(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(v), "."))
		if v != "" {
			out[v] = struct{}{}
		}
	}
	return out
}

func lowerList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func containsAny(haystack string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(haystack, n) {
			return true
		}
	}
	return false
}
