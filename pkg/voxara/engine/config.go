package engine

import (
	"fmt"
	"runtime"
	"time"

	"github.com/pureportal/voxara/pkg/voxara/query"
	"github.com/pureportal/voxara/pkg/voxara/types"
)

// scanConfig is the resolved runtime configuration for one scan.
type scanConfig struct {
	// workers is the fastwalk parallelism.
	workers int

	// pause is the per-entry sleep applied by throttling.
	pause time.Duration

	// emitEvery forces a progress emission every N processed entries.
	emitEvery int64

	// emitInterval forces a progress emission when this much time has
	// passed since the last one.
	emitInterval time.Duration

	// matcher applies the scan filters to candidate files.
	matcher *query.Matcher
}

// buildConfig resolves scan options into a runnable configuration.
// Filter validation errors surface here, before any traversal starts.
func buildConfig(opts types.ScanOptions) (scanConfig, error) {
	opts = opts.Normalize()

	matcher, err := query.Compile(opts.Filters)
	if err != nil {
		return scanConfig{}, fmt.Errorf("scan filters: %w", err)
	}

	cfg := scanConfig{matcher: matcher}

	switch opts.PriorityMode {
	case types.PriorityPerformance:
		cfg.workers = 2 * runtime.NumCPU()
		cfg.emitEvery = 2500
		cfg.emitInterval = 900 * time.Millisecond
	case types.PriorityLow:
		cfg.workers = max(runtime.NumCPU()/2, 1)
		cfg.emitEvery = 600
		cfg.emitInterval = 350 * time.Millisecond
	default: // balanced
		cfg.workers = runtime.NumCPU()
		cfg.emitEvery = 1500
		cfg.emitInterval = 600 * time.Millisecond
	}

	switch opts.ThrottleLevel {
	case types.ThrottleLow:
		cfg.pause = 2 * time.Millisecond
	case types.ThrottleMedium:
		cfg.pause = 5 * time.Millisecond
	case types.ThrottleHigh:
		cfg.pause = 10 * time.Millisecond
	}

	return cfg, nil
}
