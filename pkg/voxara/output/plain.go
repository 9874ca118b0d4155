package output

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/pureportal/voxara/pkg/voxara/types"
)

// PlainFormatter formats output as unstyled text, suitable for piping.
type PlainFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PlainFormatter) Format(w *bytes.Buffer, r *Result) error {
	fmt.Fprintf(w, "source: %s\n", r.Source)
	if r.Mode == "remote" && r.Remote != "" {
		fmt.Fprintf(w, "remote: %s\n", r.Remote)
	}
	if r.Summary == nil {
		return nil
	}

	elapsed := time.Duration(r.Summary.DurationMs) * time.Millisecond
	fmt.Fprintf(w, "total: %d (%s)\n", r.Summary.TotalBytes, humanBytes(r.Summary.TotalBytes))
	fmt.Fprintf(w, "files: %d  dirs: %d  elapsed: %s\n",
		r.Summary.FileCount, r.Summary.DirCount, formatDuration(elapsed))

	for _, file := range r.Summary.LargestFiles {
		fmt.Fprintf(w, "%d\t%s\n", file.SizeBytes, file.Path)
	}
	return nil
}

func init() {
	Register("plain", func() Formatter {
		return &PlainFormatter{}
	})
}

// Ensure PlainFormatter implements Formatter.
var _ Formatter = (*PlainFormatter)(nil)

// sizeColumnWidth finds the widest rendered size among files and dirs,
// with a floor of 8 columns.
func sizeColumnWidth(files []types.ScanFile, dirs []*types.ScanNode) int {
	width := 8
	for _, f := range files {
		if n := len(f.HumanSize()); n > width {
			width = n
		}
	}
	for _, d := range dirs {
		if n := len(humanBytes(d.SizeBytes)); n > width {
			width = n
		}
	}
	return width
}

// humanBytes formats a byte count as a human-readable IEC string.
func humanBytes(size int64) string {
	return types.FormatSize(size)
}

// padLeft pads a string with spaces on the left to the desired width.
func padLeft(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return strings.Repeat(" ", width-len(s)) + s
}

// formatDuration formats a duration in a human-friendly way.
func formatDuration(d time.Duration) string {
	sec := d.Seconds()
	if sec < 1 {
		return fmt.Sprintf("%.0fms", sec*1000)
	}
	if sec < 60 {
		return fmt.Sprintf("%.1fs", sec)
	}
	minutes := int(sec) / 60
	seconds := int(sec) % 60
	if minutes < 60 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%dh %dm", minutes/60, minutes%60)
}
