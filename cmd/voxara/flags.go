package main

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/pureportal/voxara/pkg/voxara/types"
)

// buildOptions assembles scan options from the resolved flags and config.
func buildOptions() (types.ScanOptions, error) {
	opts := types.ScanOptions{
		PriorityMode:  types.PriorityMode(viper.GetString("scan.priority")),
		ThrottleLevel: types.ThrottleLevel(viper.GetString("scan.throttle")),
	}

	switch opts.PriorityMode {
	case "", types.PriorityPerformance, types.PriorityBalanced, types.PriorityLow:
	default:
		return opts, fmt.Errorf("invalid priority %q (performance, balanced, low)", opts.PriorityMode)
	}
	switch opts.ThrottleLevel {
	case "", types.ThrottleOff, types.ThrottleLow, types.ThrottleMedium, types.ThrottleHigh:
	default:
		return opts, fmt.Errorf("invalid throttle %q (off, low, medium, high)", opts.ThrottleLevel)
	}

	opts.Filters.IncludeExtensions = parseCommaSeparated(viper.GetString("scan.include_ext"))
	opts.Filters.ExcludeExtensions = parseCommaSeparated(viper.GetString("scan.exclude_ext"))
	opts.Filters.IncludeNames = parseCommaSeparated(viper.GetString("scan.include_name"))
	opts.Filters.ExcludeNames = parseCommaSeparated(viper.GetString("scan.exclude_name"))
	opts.Filters.IncludeRegex = viper.GetString("scan.include_regex")
	opts.Filters.ExcludeRegex = viper.GetString("scan.exclude_regex")

	if minStr := viper.GetString("scan.min_size"); minStr != "" {
		minSize, err := types.ParseSize(minStr)
		if err != nil {
			return opts, fmt.Errorf("invalid min-size %q: %w", minStr, err)
		}
		opts.Filters.MinSizeBytes = &minSize
	}
	if maxStr := viper.GetString("scan.max_size"); maxStr != "" {
		maxSize, err := types.ParseSize(maxStr)
		if err != nil {
			return opts, fmt.Errorf("invalid max-size %q: %w", maxStr, err)
		}
		opts.Filters.MaxSizeBytes = &maxSize
	}

	return opts.Normalize(), nil
}

// parseCommaSeparated splits a comma-separated string and trims whitespace.
func parseCommaSeparated(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
