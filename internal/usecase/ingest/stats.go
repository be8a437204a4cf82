package ingest

import (
	"context"
	"fmt"
	"strings"

	"epsteindata/internal/domain/entity"
)

// FormatStats renders download and extraction statistics as a fixed-width
// text report, the Go counterpart of the original CLI's show_stats.
func (o *Orchestrator) FormatStats(ctx context.Context) (string, error) {
	downloadRows, err := o.store.DownloadStats(ctx)
	if err != nil {
		return "", fmt.Errorf("load download stats: %w", err)
	}
	extractionRows, err := o.store.ExtractionStats(ctx)
	if err != nil {
		return "", fmt.Errorf("load extraction stats: %w", err)
	}

	var b strings.Builder

	sep := strings.Repeat("=", 70)
	dash := strings.Repeat("-", 70)

	fmt.Fprintf(&b, "\n%s\n", sep)
	fmt.Fprintf(&b, "  DOWNLOAD STATISTICS\n")
	fmt.Fprintf(&b, "%s\n", sep)
	fmt.Fprintf(&b, "%-20s %-12s %8s %14s\n", "Source", "Status", "Count", "Size")
	fmt.Fprintf(&b, "%s\n", dash)

	var totalDocs int64
	var totalBytes int64
	for _, row := range downloadRows {
		fmt.Fprintf(&b, "%-20s %-12s %8d %14s\n", row.Source, row.DownloadStatus, row.Count, formatBytes(row.TotalBytes))
		totalDocs += row.Count
		if row.DownloadStatus == entity.DownloadStatusDownloaded {
			totalBytes += row.TotalBytes
		}
	}

	fmt.Fprintf(&b, "%s\n", dash)
	fmt.Fprintf(&b, "%-20s %-12s %8d %14s\n", "TOTAL", "", totalDocs, formatBytes(totalBytes))

	if len(extractionRows) > 0 {
		fmt.Fprintf(&b, "\n%s\n", sep)
		fmt.Fprintf(&b, "  EXTRACTION STATISTICS\n")
		fmt.Fprintf(&b, "%s\n", sep)
		fmt.Fprintf(&b, "%-20s %-12s %8s %14s %10s\n", "Source", "Status", "Count", "Chars", "OCR Pages")
		fmt.Fprintf(&b, "%s\n", dash)
		for _, row := range extractionRows {
			fmt.Fprintf(&b, "%-20s %-12s %8d %14s %10d\n", row.Source, row.Status, row.Count, commaInt(row.TotalChars), row.TotalOCRPages)
		}
	}

	b.WriteString("\n")
	return b.String(), nil
}

// formatBytes renders a byte count using IEC binary units (KiB/MiB/GiB) —
// the size math is the original's literal 1024-based thresholds, labeled
// correctly for binary multiples rather than the decimal "KB/MB/GB" the
// original prints.
func formatBytes(n int64) string {
	const (
		kib = 1024
		mib = kib * 1024
		gib = mib * 1024
	)
	switch {
	case n < kib:
		return fmt.Sprintf("%d B", n)
	case n < mib:
		return fmt.Sprintf("%.1f KiB", float64(n)/kib)
	case n < gib:
		return fmt.Sprintf("%.1f MiB", float64(n)/mib)
	default:
		return fmt.Sprintf("%.2f GiB", float64(n)/gib)
	}
}

// commaInt renders an integer with thousands separators, matching the
// original's f"{n:,}" formatting for character counts.
func commaInt(n int64) string {
	s := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, ",")
	if neg {
		out = "-" + out
	}
	return out
}
