package remote

import (
	"encoding/json"
	"sync"
)

// RootKey is the cache key for the filesystem-roots pseudo node. On the
// wire it is represented by a null path.
const RootKey = ""

// TreeNode is one cached remote directory. Children is nil until a
// successful listing for exactly this path arrives; a failed listing
// records its error and leaves Children untouched.
type TreeNode struct {
	Path     string
	Name     string
	IsDir    bool
	Children []string // child paths in listing order; nil = unloaded
	Loading  bool
	Err      string
}

// lister is the correlator surface the cache needs.
type lister interface {
	Send(req Request, cb Callback) (string, error)
}

// TreeCache is the lazily-expanded cache of remote directory listings.
// Entries are never evicted for the lifetime of a connection, so
// re-expanding a collapsed directory costs nothing.
type TreeCache struct {
	mu       sync.Mutex
	nodes    map[string]*TreeNode
	expanded map[string]struct{}
	flavor   string // "unix" or "windows", reported by the agent
	corr     lister
}

// NewTreeCache creates a cache driven by the given correlator.
func NewTreeCache(corr lister) *TreeCache {
	c := &TreeCache{
		nodes:    make(map[string]*TreeNode),
		expanded: make(map[string]struct{}),
		corr:     corr,
	}
	c.nodes[RootKey] = &TreeNode{Path: RootKey, IsDir: true}
	return c
}

// Expand marks a path expanded and, if its listing is neither loaded
// nor in flight, requests one. A node already loading never issues a
// second request.
func (c *TreeCache) Expand(path string) error {
	c.mu.Lock()
	node := c.ensureLocked(path)
	c.expanded[path] = struct{}{}
	if node.Children != nil || node.Loading {
		c.mu.Unlock()
		return nil
	}
	node.Loading = true
	node.Err = ""
	c.mu.Unlock()

	req := Request{Action: ActionList}
	if path != RootKey {
		p := path
		req.Path = &p
	}
	_, err := c.corr.Send(req, func(resp Response, err error) {
		c.onList(path, resp, err)
	})
	if err != nil {
		c.mu.Lock()
		node.Loading = false
		node.Err = err.Error()
		c.mu.Unlock()
		return err
	}
	return nil
}

// Collapse removes a path from the expanded set. The cached listing is
// kept.
func (c *TreeCache) Collapse(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.expanded, path)
}

// IsExpanded reports whether a path is currently expanded.
func (c *TreeCache) IsExpanded(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.expanded[path]
	return ok
}

// Node returns a copy of the cached node for path.
func (c *TreeCache) Node(path string) (TreeNode, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node, ok := c.nodes[path]
	if !ok {
		return TreeNode{}, false
	}
	out := *node
	if node.Children != nil {
		out.Children = make([]string, len(node.Children))
		copy(out.Children, node.Children)
	}
	return out, true
}

// Roots returns the discovered filesystem roots, in listing order.
func (c *TreeCache) Roots() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	root := c.nodes[RootKey]
	out := make([]string, len(root.Children))
	copy(out, root.Children)
	return out
}

// Flavor returns the remote filesystem flavor ("unix" or "windows")
// once root discovery has completed, or an empty string before that.
func (c *TreeCache) Flavor() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flavor
}

// onList applies a listing outcome to the cache. Failures are scoped to
// the one node: siblings and previously loaded children are untouched.
func (c *TreeCache) onList(path string, resp Response, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	node := c.ensureLocked(path)
	node.Loading = false

	if err != nil {
		node.Err = err.Error()
		return
	}

	var data ListData
	if uerr := json.Unmarshal(resp.Data, &data); uerr != nil {
		node.Err = "malformed list response"
		return
	}

	children := make([]string, 0, len(data.Entries))
	for _, entry := range data.Entries {
		child := c.ensureLocked(entry.Path)
		child.Name = entry.Name
		child.IsDir = entry.IsDir
		children = append(children, entry.Path)
	}
	node.Children = children
	node.Err = ""

	if path == RootKey && data.OS != "" {
		c.flavor = data.OS
	}
}

// ensureLocked returns the node for path, creating a placeholder when
// absent. Caller holds the lock.
func (c *TreeCache) ensureLocked(path string) *TreeNode {
	if node, ok := c.nodes[path]; ok {
		return node
	}
	node := &TreeNode{Path: path, IsDir: true}
	c.nodes[path] = node
	return node
}
