package query

import (
	"regexp"
	"strings"

	"github.com/pureportal/voxara/pkg/voxara/types"
)

// size comparator prefixes, longest first so "size<=" wins over "size<".
var sizeOps = []string{"<=", ">=", "<", ">", "="}

// Parse tokenizes a search string on whitespace and builds a Query.
// Recognized tokens:
//
//	name:VALUE    substring match against the file name
//	path:VALUE    substring match against the file path
//	ext:a,b,c     comma list of extensions, leading dots stripped
//	regex:EXPR    compiled pattern; invalid patterns are skipped for
//	              matching and reported via InvalidPatterns
//	size<N, size<=N, size>N, size>=N, size=N
//	              size bound with optional unit suffix (b/kb/mb/gb/tb)
//
// Anything else becomes a free-text term matched against name or path.
// Multiple tokens of the same kind accumulate and are ANDed.
func Parse(input string) Query {
	var q Query

	for _, token := range strings.Fields(input) {
		lower := strings.ToLower(token)

		switch {
		case strings.HasPrefix(lower, "name:"):
			if v := strings.ToLower(token[len("name:"):]); v != "" {
				q.names = append(q.names, v)
				q.hasToken = true
			}

		case strings.HasPrefix(lower, "path:"):
			if v := strings.ToLower(token[len("path:"):]); v != "" {
				q.paths = append(q.paths, v)
				q.hasToken = true
			}

		case strings.HasPrefix(lower, "ext:"):
			for _, ext := range strings.Split(token[len("ext:"):], ",") {
				ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
				if ext != "" {
					q.exts = append(q.exts, ext)
					q.hasToken = true
				}
			}

		case strings.HasPrefix(lower, "regex:"):
			pattern := token[len("regex:"):]
			if pattern == "" {
				continue
			}
			re, err := regexp.Compile(pattern)
			if err != nil {
				q.invalid = append(q.invalid, pattern)
				continue
			}
			q.regexes = append(q.regexes, re)
			q.hasToken = true

		case strings.HasPrefix(lower, "size"):
			if op, ok := parseSizeToken(token[len("size"):]); ok {
				q.sizes = append(q.sizes, op...)
				q.hasToken = true
			} else {
				q.terms = append(q.terms, lower)
				q.hasToken = true
			}

		default:
			q.terms = append(q.terms, lower)
			q.hasToken = true
		}
	}

	return q
}

// parseSizeToken parses the remainder of a size token ("<=10mb", "=1gb").
// The "=" comparator expands to both a lower and upper bound.
func parseSizeToken(rest string) ([]sizeOp, bool) {
	for _, op := range sizeOps {
		if !strings.HasPrefix(rest, op) {
			continue
		}
		bytes, err := types.ParseSize(rest[len(op):])
		if err != nil {
			return nil, false
		}
		if op == "=" {
			return []sizeOp{{op: ">=", bytes: bytes}, {op: "<=", bytes: bytes}}, true
		}
		return []sizeOp{{op: op, bytes: bytes}}, true
	}
	return nil, false
}
