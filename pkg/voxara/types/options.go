package types

import (
	"sort"
	"strconv"
	"strings"
)

// PriorityMode selects how aggressively the scan engine parallelizes.
type PriorityMode string

// Priority modes from most to least aggressive.
const (
	PriorityPerformance PriorityMode = "performance"
	PriorityBalanced    PriorityMode = "balanced"
	PriorityLow         PriorityMode = "low"
)

// ThrottleLevel selects how much the scan engine slows itself down to
// leave I/O headroom for other workloads.
type ThrottleLevel string

// Throttle levels from none to strongest.
const (
	ThrottleOff    ThrottleLevel = "off"
	ThrottleLow    ThrottleLevel = "low"
	ThrottleMedium ThrottleLevel = "medium"
	ThrottleHigh   ThrottleLevel = "high"
)

// ScanFilters constrains which files a scan includes. The zero value
// matches everything.
type ScanFilters struct {
	// IncludeExtensions limits matches to these extensions when non-empty.
	IncludeExtensions []string `json:"includeExtensions"`

	// ExcludeExtensions rejects files with these extensions.
	ExcludeExtensions []string `json:"excludeExtensions"`

	// IncludeNames limits matches to names containing any of these
	// substrings when non-empty.
	IncludeNames []string `json:"includeNames"`

	// ExcludeNames rejects names containing any of these substrings.
	ExcludeNames []string `json:"excludeNames"`

	// IncludePaths limits matches to paths containing any of these
	// substrings when non-empty.
	IncludePaths []string `json:"includePaths"`

	// ExcludePaths rejects paths containing any of these substrings.
	ExcludePaths []string `json:"excludePaths"`

	// MinSizeBytes rejects files smaller than this when set.
	MinSizeBytes *int64 `json:"minSizeBytes"`

	// MaxSizeBytes rejects files larger than this when set.
	MaxSizeBytes *int64 `json:"maxSizeBytes"`

	// IncludeRegex limits matches to paths matching this pattern when
	// non-empty.
	IncludeRegex string `json:"includeRegex,omitempty"`

	// ExcludeRegex rejects paths matching this pattern.
	ExcludeRegex string `json:"excludeRegex,omitempty"`
}

// ScanOptions configures one scan run.
type ScanOptions struct {
	// PriorityMode selects traversal parallelism and progress cadence.
	PriorityMode PriorityMode `json:"priorityMode"`

	// ThrottleLevel selects per-entry pacing.
	ThrottleLevel ThrottleLevel `json:"throttleLevel"`

	// Filters constrains which files count toward the results.
	Filters ScanFilters `json:"filters"`
}

// DefaultOptions returns scan options with balanced priority, no throttle,
// and no filters.
func DefaultOptions() ScanOptions {
	return ScanOptions{
		PriorityMode:  PriorityBalanced,
		ThrottleLevel: ThrottleOff,
	}
}

// Normalize fills empty enum fields with their defaults.
func (o ScanOptions) Normalize() ScanOptions {
	if o.PriorityMode == "" {
		o.PriorityMode = PriorityBalanced
	}
	if o.ThrottleLevel == "" {
		o.ThrottleLevel = ThrottleOff
	}
	return o
}

// Signature returns an order-independent serialization of the options,
// used to detect whether two option sets are equivalent. List fields are
// lowercased and sorted so reordering entries does not change the
// signature.
func (o ScanOptions) Signature() string {
	o = o.Normalize()

	var b strings.Builder
	b.WriteString("prio=")
	b.WriteString(string(o.PriorityMode))
	b.WriteString(";throttle=")
	b.WriteString(string(o.ThrottleLevel))

	writeList := func(key string, values []string) {
		b.WriteString(";")
		b.WriteString(key)
		b.WriteString("=")
		b.WriteString(strings.Join(sortedLower(values), ","))
	}
	writeList("incExt", o.Filters.IncludeExtensions)
	writeList("excExt", o.Filters.ExcludeExtensions)
	writeList("incName", o.Filters.IncludeNames)
	writeList("excName", o.Filters.ExcludeNames)
	writeList("incPath", o.Filters.IncludePaths)
	writeList("excPath", o.Filters.ExcludePaths)

	b.WriteString(";min=")
	b.WriteString(formatBound(o.Filters.MinSizeBytes))
	b.WriteString(";max=")
	b.WriteString(formatBound(o.Filters.MaxSizeBytes))
	b.WriteString(";incRe=")
	b.WriteString(o.Filters.IncludeRegex)
	b.WriteString(";excRe=")
	b.WriteString(o.Filters.ExcludeRegex)

	return b.String()
}

func sortedLower(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v != "" {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

func formatBound(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}
