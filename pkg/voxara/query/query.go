// Package query implements the search and filter matching used against
// scan snapshots. It parses free-form search strings ("ext:png,jpg
// size>10mb vacation") into predicates, and compiles the structured
// include/exclude scan filters into a pure matcher. Both matchers are
// stateless: identical inputs always yield the identical verdict.
package query

import (
	"regexp"
	"strings"
)

// sizeOp is a single size comparison extracted from a query token.
type sizeOp struct {
	op    string // "<", "<=", ">", ">=", "="
	bytes int64
}

func (s sizeOp) match(size int64) bool {
	switch s.op {
	case "<":
		return size < s.bytes
	case "<=":
		return size <= s.bytes
	case ">":
		return size > s.bytes
	case ">=":
		return size >= s.bytes
	case "=":
		return size == s.bytes
	default:
		return true
	}
}

// Query is a parsed search string. All recognized tokens accumulate and
// are ANDed together; the zero Query matches everything.
type Query struct {
	names    []string
	paths    []string
	exts     []string
	terms    []string
	regexes  []*regexp.Regexp
	sizes    []sizeOp
	invalid  []string // regex: patterns that failed to compile
	hasToken bool
}

// Empty reports whether the query contains no usable predicates.
func (q Query) Empty() bool {
	return !q.hasToken
}

// InvalidPatterns returns the regex: token values that failed to compile.
// Invalid patterns are excluded from matching but surfaced here so the
// caller can report them.
func (q Query) InvalidPatterns() []string {
	return q.invalid
}

// Match reports whether a file with the given name, path, and size
// satisfies every predicate in the query. Name, path, and extension
// matching is case-insensitive.
func (q Query) Match(name, path string, size int64) bool {
	lowerName := strings.ToLower(name)
	lowerPath := strings.ToLower(path)

	for _, n := range q.names {
		if !strings.Contains(lowerName, n) {
			return false
		}
	}
	for _, p := range q.paths {
		if !strings.Contains(lowerPath, p) {
			return false
		}
	}
	if len(q.exts) > 0 && !matchExt(lowerName, q.exts) {
		return false
	}
	for _, re := range q.regexes {
		if !re.MatchString(path) && !re.MatchString(name) {
			return false
		}
	}
	for _, s := range q.sizes {
		if !s.match(size) {
			return false
		}
	}
	for _, term := range q.terms {
		if !strings.Contains(lowerName, term) && !strings.Contains(lowerPath, term) {
			return false
		}
	}
	return true
}

// matchExt reports whether the lowercased name ends with any of the
// given extensions. Extensions are stored without a leading dot.
func matchExt(lowerName string, exts []string) bool {
	for _, ext := range exts {
		if strings.HasSuffix(lowerName, "."+ext) {
			return true
		}
	}
	return false
}
