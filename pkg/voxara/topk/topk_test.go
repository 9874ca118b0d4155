package topk

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pureportal/voxara/pkg/voxara/types"
)

// buildTree constructs a small tree with files of the given sizes split
// across the root and one nested child directory.
func buildTree(sizes ...int64) *types.ScanNode {
	root := &types.ScanNode{Path: "/data", Name: "data"}
	child := &types.ScanNode{Path: "/data/sub", Name: "sub"}
	root.Children = []*types.ScanNode{child}

	for i, size := range sizes {
		f := types.ScanFile{
			Path:      fmt.Sprintf("/data/f%d", i),
			Name:      fmt.Sprintf("f%d", i),
			SizeBytes: size,
		}
		if i%2 == 0 {
			root.Files = append(root.Files, f)
		} else {
			child.Files = append(child.Files, f)
		}
	}
	return root
}

func TestLargestReturnsSortedDescending(t *testing.T) {
	root := buildTree(50, 900, 10, 300, 700, 120, 5, 640, 256, 81, 412, 999)

	got := Largest(root, DefaultK, nil)

	require.Len(t, got, DefaultK)
	for i := 1; i < len(got); i++ {
		assert.GreaterOrEqual(t, got[i-1].SizeBytes, got[i].SizeBytes)
	}
	assert.Equal(t, int64(999), got[0].SizeBytes)
	assert.Equal(t, int64(50), got[len(got)-1].SizeBytes)
}

func TestLargestFewerMatchesThanK(t *testing.T) {
	root := buildTree(3, 1, 2)

	got := Largest(root, DefaultK, nil)

	require.Len(t, got, 3)
	assert.Equal(t, int64(3), got[0].SizeBytes)
	assert.Equal(t, int64(1), got[2].SizeBytes)
}

func TestLargestSkipsZeroSizeFiles(t *testing.T) {
	root := buildTree(0, 10, 0, 20)

	got := Largest(root, DefaultK, nil)

	require.Len(t, got, 2)
	assert.Equal(t, int64(20), got[0].SizeBytes)
}

func TestLargestAppliesPredicate(t *testing.T) {
	root := buildTree(100, 200, 300, 400)

	got := Largest(root, DefaultK, func(f types.ScanFile) bool {
		return f.SizeBytes < 300
	})

	require.Len(t, got, 2)
	assert.Equal(t, int64(200), got[0].SizeBytes)
	assert.Equal(t, int64(100), got[1].SizeBytes)
}

func TestLargestTieBrokenByTraversalOrder(t *testing.T) {
	root := &types.ScanNode{
		Path: "/data",
		Name: "data",
		Files: []types.ScanFile{
			{Path: "/data/a", Name: "a", SizeBytes: 10},
			{Path: "/data/b", Name: "b", SizeBytes: 10},
			{Path: "/data/c", Name: "c", SizeBytes: 10},
		},
	}

	got := Largest(root, 2, nil)

	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Name)
	assert.Equal(t, "b", got[1].Name)
}

func TestLargestAtCapacityOnlyDisplacesMinimum(t *testing.T) {
	root := &types.ScanNode{
		Path: "/data",
		Name: "data",
		Files: []types.ScanFile{
			{Path: "/data/a", Name: "a", SizeBytes: 5},
			{Path: "/data/b", Name: "b", SizeBytes: 3},
			// Equal to the current minimum: must not displace it.
			{Path: "/data/c", Name: "c", SizeBytes: 3},
			// Larger than the minimum: displaces it.
			{Path: "/data/d", Name: "d", SizeBytes: 4},
		},
	}

	got := Largest(root, 2, nil)

	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Name)
	assert.Equal(t, "d", got[1].Name)
}

func TestLargestNilNode(t *testing.T) {
	assert.Nil(t, Largest(nil, 10, nil))
}
