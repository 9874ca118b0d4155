// Package topk selects the K largest files from a scan tree. The
// selection is recomputed on demand against the latest snapshot rather
// than maintained incrementally.
package topk

import (
	"sort"

	"github.com/pureportal/voxara/pkg/voxara/types"
)

// DefaultK is the number of largest files tracked per snapshot.
const DefaultK = 10

// Predicate decides whether a file is eligible for selection.
type Predicate func(f types.ScanFile) bool

// Largest walks the subtree rooted at node depth-first, in stored order,
// and returns at most k files satisfying pred, sorted descending by size.
// Zero-size files are never included. Ties are broken by traversal
// order (the sort is stable). A nil pred accepts every file.
func Largest(node *types.ScanNode, k int, pred Predicate) []types.ScanFile {
	if node == nil || k <= 0 {
		return nil
	}

	buf := make([]types.ScanFile, 0, k)
	collect(node, k, pred, &buf)
	return buf
}

func collect(node *types.ScanNode, k int, pred Predicate, buf *[]types.ScanFile) {
	for _, f := range node.Files {
		if f.SizeBytes <= 0 {
			continue
		}
		if pred != nil && !pred(f) {
			continue
		}
		consider(f, k, buf)
	}
	for _, child := range node.Children {
		collect(child, k, pred, buf)
	}
}

// consider inserts a candidate into the bounded buffer. While under
// capacity every candidate is inserted; at capacity a candidate only
// displaces the current minimum, which is always the last element.
func consider(f types.ScanFile, k int, buf *[]types.ScanFile) {
	b := *buf
	if len(b) < k {
		b = append(b, f)
		sortDescending(b)
		*buf = b
		return
	}
	if f.SizeBytes <= b[len(b)-1].SizeBytes {
		return
	}
	b = append(b, f)
	sortDescending(b)
	*buf = b[:k]
}

func sortDescending(files []types.ScanFile) {
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].SizeBytes > files[j].SizeBytes
	})
}
