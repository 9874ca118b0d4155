// Package output provides formatters for displaying voxara scan results
// in various output formats (pretty, plain, json, jsonl).
//
// The package uses a registry pattern so formatters can be selected at
// runtime by name:
//
//	formatter, err := output.Get("pretty")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	var buf bytes.Buffer
//	if err := formatter.Format(&buf, result); err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Print(buf.String())
package output

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	"github.com/pureportal/voxara/pkg/voxara/types"
)

// Result contains the complete output data for formatting: the final
// scan summary plus metadata about where and how the scan ran.
type Result struct {
	// Summary is the scan outcome to render.
	Summary *types.ScanSummary `json:"summary"`

	// Source is the root path that was scanned.
	Source string `json:"source"`

	// Mode says where the scan ran: "local" or "remote".
	Mode string `json:"mode"`

	// Remote is the agent address for remote scans, empty otherwise.
	Remote string `json:"remote,omitempty"`

	// Search is the interactive query the result was filtered with,
	// empty when no query applied.
	Search string `json:"search,omitempty"`

	// Warnings contains any warning messages generated during the scan.
	Warnings []string `json:"warnings,omitempty"`

	// Interrupted indicates the scan was cancelled before completion.
	Interrupted bool `json:"interrupted"`
}

// TopDirs returns the root's direct children, already ordered largest
// first by the engine, capped at n.
func (r *Result) TopDirs(n int) []*types.ScanNode {
	if r.Summary == nil || r.Summary.Root == nil {
		return nil
	}
	children := r.Summary.Root.Children
	if len(children) > n {
		children = children[:n]
	}
	return children
}

// Formatter is the interface all output formatters implement.
type Formatter interface {
	// Format writes the formatted output to the buffer.
	Format(w *bytes.Buffer, r *Result) error
}

// FormatterFactory creates a new Formatter instance.
type FormatterFactory func() Formatter

// Registry manages formatter registration and lookup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]FormatterFactory
}

// NewRegistry creates a new formatter registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]FormatterFactory),
	}
}

// Register adds a formatter factory to the registry, replacing any
// existing formatter with the same name.
func (r *Registry) Register(name string, factory FormatterFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = factory
}

// Get returns a new formatter instance by name.
func (r *Registry) Get(name string) (Formatter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown formatter: %s", name)
	}
	return factory(), nil
}

// Available returns a sorted list of all registered formatter names.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry is the global formatter registry.
var DefaultRegistry = NewRegistry()

// Register adds a formatter factory to the default registry.
func Register(name string, factory FormatterFactory) {
	DefaultRegistry.Register(name, factory)
}

// Get returns a new formatter instance from the default registry.
func Get(name string) (Formatter, error) {
	return DefaultRegistry.Get(name)
}

// Available returns all formatter names from the default registry.
func Available() []string {
	return DefaultRegistry.Available()
}
