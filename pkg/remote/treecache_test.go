package remote

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLister records list requests and lets the test answer them.
type fakeLister struct {
	mu   sync.Mutex
	reqs []Request
	cbs  []Callback
}

func (f *fakeLister) Send(req Request, cb Callback) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reqs = append(f.reqs, req)
	f.cbs = append(f.cbs, cb)
	return "id", nil
}

func (f *fakeLister) requestCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

func (f *fakeLister) answer(t *testing.T, i int, data ListData) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	f.mu.Lock()
	cb := f.cbs[i]
	f.mu.Unlock()
	cb(Response{Event: EventListComplete, Data: raw}, nil)
}

func (f *fakeLister) fail(i int, err error) {
	f.mu.Lock()
	cb := f.cbs[i]
	f.mu.Unlock()
	cb(Response{}, err)
}

func strptr(s string) *string { return &s }

func TestTreeCacheRootExpandUsesNullPath(t *testing.T) {
	lister := &fakeLister{}
	cache := NewTreeCache(lister)

	require.NoError(t, cache.Expand(RootKey))
	require.Equal(t, 1, lister.requestCount())
	assert.Nil(t, lister.reqs[0].Path)

	lister.answer(t, 0, ListData{
		Entries: []ListEntry{
			{Name: "/", Path: "/", IsDir: true},
		},
		OS: "unix",
	})

	assert.Equal(t, []string{"/"}, cache.Roots())
	assert.Equal(t, "unix", cache.Flavor())

	node, ok := cache.Node(RootKey)
	require.True(t, ok)
	assert.False(t, node.Loading)
	assert.Empty(t, node.Err)
}

func TestTreeCacheLoadingBlocksDuplicateRequests(t *testing.T) {
	lister := &fakeLister{}
	cache := NewTreeCache(lister)

	require.NoError(t, cache.Expand("/data"))
	require.NoError(t, cache.Expand("/data"))
	assert.Equal(t, 1, lister.requestCount())

	lister.answer(t, 0, ListData{
		Path: strptr("/data"),
		Entries: []ListEntry{
			{Name: "photos", Path: "/data/photos", IsDir: true},
			{Name: "docs", Path: "/data/docs", IsDir: true},
		},
		OS: "unix",
	})

	node, ok := cache.Node("/data")
	require.True(t, ok)
	assert.Equal(t, []string{"/data/photos", "/data/docs"}, node.Children)

	// Loaded: expanding again is served from cache.
	require.NoError(t, cache.Expand("/data"))
	assert.Equal(t, 1, lister.requestCount())
}

func TestTreeCacheCollapseKeepsListing(t *testing.T) {
	lister := &fakeLister{}
	cache := NewTreeCache(lister)

	require.NoError(t, cache.Expand("/data"))
	lister.answer(t, 0, ListData{
		Path:    strptr("/data"),
		Entries: []ListEntry{{Name: "docs", Path: "/data/docs", IsDir: true}},
	})

	cache.Collapse("/data")
	assert.False(t, cache.IsExpanded("/data"))

	// Re-expanding costs no request: the listing was never evicted.
	require.NoError(t, cache.Expand("/data"))
	assert.True(t, cache.IsExpanded("/data"))
	assert.Equal(t, 1, lister.requestCount())
}

func TestTreeCacheErrorScopedToNode(t *testing.T) {
	lister := &fakeLister{}
	cache := NewTreeCache(lister)

	require.NoError(t, cache.Expand("/secret"))
	lister.fail(0, &TimeoutError{Action: ActionList})

	node, ok := cache.Node("/secret")
	require.True(t, ok)
	assert.False(t, node.Loading)
	assert.Equal(t, "Remote list request timed out.", node.Err)
	assert.Nil(t, node.Children)

	// A retry after the failure issues a fresh request and recovers.
	require.NoError(t, cache.Expand("/secret"))
	require.Equal(t, 2, lister.requestCount())
	lister.answer(t, 1, ListData{
		Path:    strptr("/secret"),
		Entries: []ListEntry{{Name: "inner", Path: "/secret/inner", IsDir: true}},
	})

	node, ok = cache.Node("/secret")
	require.True(t, ok)
	assert.Empty(t, node.Err)
	assert.Equal(t, []string{"/secret/inner"}, node.Children)
}

func TestTreeCacheSendFailureRecordsError(t *testing.T) {
	cache := NewTreeCache(failingLister{})

	err := cache.Expand("/data")
	require.Error(t, err)

	node, ok := cache.Node("/data")
	require.True(t, ok)
	assert.False(t, node.Loading)
	assert.NotEmpty(t, node.Err)
}

type failingLister struct{}

func (failingLister) Send(Request, Callback) (string, error) {
	return "", errors.New("socket gone")
}
