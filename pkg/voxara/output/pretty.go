package output

import (
	"bytes"
	"fmt"
	"strings"
	"time"
)

// topDirRows caps how many root subdirectories the pretty view shows.
const topDirRows = 15

// PrettyFormatter formats output with colors and styling using lipgloss,
// suitable for terminal display.
type PrettyFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *PrettyFormatter) Format(w *bytes.Buffer, r *Result) error {
	w.WriteString(f.formatHeader(r))
	w.WriteString("\n")

	w.WriteString(f.formatDirs(r))
	w.WriteString(f.formatLargest(r))
	w.WriteString(f.formatFooter(r))

	if len(r.Warnings) > 0 {
		w.WriteString("\n")
		w.WriteString(f.formatWarnings(r.Warnings))
	}
	return nil
}

// formatHeader builds the header box with scan metadata.
func (f *PrettyFormatter) formatHeader(r *Result) string {
	var lines []string

	source := fmt.Sprintf("%s %s", LabelStyle.Render("Source:"), ValueStyle.Render(r.Source))
	if r.Mode == "remote" && r.Remote != "" {
		source += "  " + MutedStyle.Render("(remote: "+r.Remote+")")
	}
	lines = append(lines, source)

	if r.Summary != nil {
		elapsed := time.Duration(r.Summary.DurationMs) * time.Millisecond
		scanned := fmt.Sprintf("%s %s", LabelStyle.Render("Scanned:"),
			ValueStyle.Render(fmt.Sprintf("%d files, %d dirs in %s",
				r.Summary.FileCount, r.Summary.DirCount, formatDuration(elapsed))))
		lines = append(lines, scanned)
	}

	if r.Search != "" {
		lines = append(lines, fmt.Sprintf("%s %s",
			LabelStyle.Render("Filter:"), ValueStyle.Render(r.Search)))
	}
	if r.Interrupted {
		lines = append(lines, WarningStyle.Bold(true).Render("Scan cancelled before completion"))
	}

	return HeaderBox.Render(strings.Join(lines, "\n"))
}

// formatDirs builds the largest-subdirectory table.
func (f *PrettyFormatter) formatDirs(r *Result) string {
	dirs := r.TopDirs(topDirRows)
	if len(dirs) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(TitleStyle.Render("Largest directories"))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("  %s  %s\n",
		TableHeaderStyle.Render("SIZE"), TableHeaderStyle.Render("PATH")))

	width := sizeColumnWidth(nil, dirs)
	for _, dir := range dirs {
		sb.WriteString(fmt.Sprintf("  %s  %s\n",
			SizeStyle.Render(padLeft(humanBytes(dir.SizeBytes), width)),
			PathStyle.Render(dir.Path)))
	}
	sb.WriteString("\n")
	return sb.String()
}

// formatLargest builds the largest-files table.
func (f *PrettyFormatter) formatLargest(r *Result) string {
	if r.Summary == nil || len(r.Summary.LargestFiles) == 0 {
		return MutedStyle.Render("  No files found matching criteria\n")
	}

	var sb strings.Builder
	sb.WriteString(TitleStyle.Render("Largest files"))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("  %s  %s\n",
		TableHeaderStyle.Render("SIZE"), TableHeaderStyle.Render("PATH")))

	width := sizeColumnWidth(r.Summary.LargestFiles, nil)
	for _, file := range r.Summary.LargestFiles {
		sb.WriteString(fmt.Sprintf("  %s  %s\n",
			SizeStyle.Render(padLeft(file.HumanSize(), width)),
			PathStyle.Render(file.Path)))
	}
	return sb.String()
}

// formatFooter builds the footer box with totals.
func (f *PrettyFormatter) formatFooter(r *Result) string {
	if r.Summary == nil {
		return ""
	}

	parts := []string{
		fmt.Sprintf("%s %s", LabelStyle.Render("Total:"),
			SizeStyle.Render(humanBytes(r.Summary.TotalBytes))),
		fmt.Sprintf("%s %s", LabelStyle.Render("Files:"),
			ValueStyle.Render(fmt.Sprintf("%d", r.Summary.FileCount))),
		MutedStyle.Render("Use -o plain for unformatted output"),
	}
	return FooterBox.Render(strings.Join(parts, "  "))
}

// formatWarnings builds a warning block.
func (f *PrettyFormatter) formatWarnings(warnings []string) string {
	var sb strings.Builder
	sb.WriteString(WarningStyle.Bold(true).Render("Warnings:"))
	sb.WriteString("\n")
	for _, warning := range warnings {
		sb.WriteString(WarningStyle.Render("  " + warning))
		sb.WriteString("\n")
	}
	return sb.String()
}

func init() {
	Register("pretty", func() Formatter {
		return &PrettyFormatter{}
	})
}

// Ensure PrettyFormatter implements Formatter.
var _ Formatter = (*PrettyFormatter)(nil)
