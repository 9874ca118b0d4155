// Package config provides configuration management for the voxara disk
// scanner.
package config

// Default configuration values for voxara.
const (
	// DefaultPath is the default path to scan when none is specified.
	DefaultPath = "."

	// DefaultAgentBind is the default listen address for the agent.
	DefaultAgentBind = "127.0.0.1:7474"

	// DefaultAgentMaxConns caps simultaneous agent connections.
	DefaultAgentMaxConns = 50

	// DefaultHistoryLimit caps the persisted recently-scanned list.
	DefaultHistoryLimit = 10
)

// DefaultExclusions contains paths that are excluded from scanning by
// default.
var DefaultExclusions = []string{
	"/proc",
	"/sys",
	"/dev",
}
