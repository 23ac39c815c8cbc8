package transcripts

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// ReportEntry is one transcribed file in a batch report.
type ReportEntry struct {
	File string
	Date time.Time
	Text string
}

// RenderBatchReport formats entries in the order given.
func RenderBatchReport(entries []ReportEntry, generated time.Time) string {
	var b strings.Builder
	b.WriteString("Batch Transcription Report\n")
	fmt.Fprintf(&b, "Generated: %s\n", generated.Format(dateTimeLayout))
	b.WriteString(sessionRule + "\n\n")

	for _, e := range entries {
		fmt.Fprintf(&b, "File: %s\n", e.File)
		fmt.Fprintf(&b, "Date: %s\n", e.Date.Format(dateTimeLayout))
		fmt.Fprintf(&b, "Transcription:\n%s\n", e.Text)
		b.WriteString(chunkRule + "\n\n")
	}
	return b.String()
}

// WriteBatchReport renders entries to path.
func WriteBatchReport(path string, entries []ReportEntry, generated time.Time) error {
	if err := os.WriteFile(path, []byte(RenderBatchReport(entries, generated)), 0o644); err != nil {
		return fmt.Errorf("write batch report: %w", err)
	}
	return nil
}
