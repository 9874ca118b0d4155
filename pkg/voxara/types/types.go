// Package types provides the core data model for the voxara disk scanner:
// scan trees, summaries, scan options and filters, and size parsing and
// formatting helpers shared by the CLI, the session coordinator, and the
// remote agent.
package types

import (
	"github.com/dustin/go-humanize"
)

// Size constants for binary (IEC) units.
const (
	KiB int64 = 1024
	MiB int64 = 1024 * KiB
	GiB int64 = 1024 * MiB
	TiB int64 = 1024 * GiB
)

// ScanFile is a leaf file entry inside a scan tree.
type ScanFile struct {
	// Path is the absolute path to the file.
	Path string `json:"path"`

	// Name is the base name of the file.
	Name string `json:"name"`

	// SizeBytes is the file size in bytes.
	SizeBytes int64 `json:"sizeBytes"`
}

// ScanNode is one directory in a scan tree. Trees are immutable once
// emitted: every progress or complete event carries a freshly built tree,
// nodes are never mutated in place.
type ScanNode struct {
	// Path is the absolute path of the directory.
	Path string `json:"path"`

	// Name is the base name of the directory.
	Name string `json:"name"`

	// SizeBytes is the cumulative size of everything below this node.
	SizeBytes int64 `json:"sizeBytes"`

	// FileCount is the number of files below this node (recursive).
	FileCount int64 `json:"fileCount"`

	// DirCount is the number of directories below this node (recursive).
	DirCount int64 `json:"dirCount"`

	// Files holds the node's direct file entries.
	Files []ScanFile `json:"files"`

	// Children holds the node's direct subdirectories.
	Children []*ScanNode `json:"children"`
}

// ScanSummary is a whole-scan snapshot produced by a scan engine. The
// session manager only ever holds the latest one; each event replaces the
// previous summary wholesale.
type ScanSummary struct {
	// ID is the session id the summary belongs to, when known.
	ID string `json:"id,omitempty"`

	// Root is the scanned tree.
	Root *ScanNode `json:"root"`

	// TotalBytes is the cumulative size of the scanned tree.
	TotalBytes int64 `json:"totalBytes"`

	// FileCount is the total number of files seen.
	FileCount int64 `json:"fileCount"`

	// DirCount is the total number of directories seen.
	DirCount int64 `json:"dirCount"`

	// LargestFiles holds at most the ten largest matching files,
	// sorted descending by size.
	LargestFiles []ScanFile `json:"largestFiles"`

	// DurationMs is the elapsed scan time in milliseconds.
	DurationMs int64 `json:"durationMs"`
}

// DiskUsage describes capacity and free space for the volume containing
// a path.
type DiskUsage struct {
	// Path is the queried path.
	Path string `json:"path"`

	// TotalBytes is the total capacity of the volume.
	TotalBytes int64 `json:"totalBytes"`

	// FreeBytes is the remaining free space on the volume.
	FreeBytes int64 `json:"freeBytes"`
}

// HumanSize returns the file size formatted as a human-readable string
// using binary (IEC) units.
func (f ScanFile) HumanSize() string {
	return FormatSize(f.SizeBytes)
}

// FormatSize formats a byte count as a human-readable IEC string.
func FormatSize(size int64) string {
	if size < 0 {
		size = 0
	}
	return humanize.IBytes(uint64(size))
}
