package types

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidSize indicates that a size string could not be parsed.
var ErrInvalidSize = errors.New("invalid size format")

// ErrNegativeSize indicates that a negative size was provided.
var ErrNegativeSize = errors.New("size cannot be negative")

// sizePattern matches size strings like "100", "10mb", "1.5GB", "512K".
var sizePattern = regexp.MustCompile(`(?i)^\s*([0-9]+(?:\.[0-9]+)?)\s*([KMGT]?B?)\s*$`)

// ParseSize parses a human-readable size string and returns the size in
// bytes. Supported forms:
//   - Plain bytes: "1024", "0", "100b"
//   - Kilobytes: "100K", "100kb"
//   - Megabytes: "50M", "50mb"
//   - Gigabytes: "2G", "2gb"
//   - Terabytes: "1T", "1tb"
//
// Units are binary (1K = 1024). Decimal values are truncated to the
// nearest byte. Returns ErrInvalidSize for unrecognized input and
// ErrNegativeSize for negative values.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty string", ErrInvalidSize)
	}
	if strings.HasPrefix(s, "-") {
		return 0, ErrNegativeSize
	}

	matches := sizePattern.FindStringSubmatch(s)
	if matches == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	value, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidSize, s)
	}

	suffix := strings.ToUpper(matches[2])
	suffix = strings.TrimSuffix(suffix, "B")

	var multiplier int64
	switch suffix {
	case "":
		multiplier = 1
	case "K":
		multiplier = KiB
	case "M":
		multiplier = MiB
	case "G":
		multiplier = GiB
	case "T":
		multiplier = TiB
	default:
		return 0, fmt.Errorf("%w: unknown suffix %q", ErrInvalidSize, suffix)
	}

	return int64(value * float64(multiplier)), nil
}
