package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/ngoiyaeric/queuelab/internal/model"
)

// AssetWriter outputs the result of an asset preprocessing run.
type AssetWriter struct {
	baseWriter

	// json switches to JSON output.
	json *JSONWriter
}

// NewAssetWriter creates a text AssetWriter.
func NewAssetWriter(output io.Writer) *AssetWriter {
	return &AssetWriter{baseWriter: newBaseWriter(output)}
}

// NewAssetJSONWriter creates an AssetWriter that emits pretty-printed JSON.
func NewAssetJSONWriter(output io.Writer) *AssetWriter {
	return &AssetWriter{
		baseWriter: newBaseWriter(output),
		json:       NewJSONWriter(output, WithPrettyPrint()),
	}
}

// Write outputs the asset report.
func (w *AssetWriter) Write(report *model.AssetReport) (int, error) {
	if w.json != nil {
		return w.json.WriteValue(report)
	}

	var sb strings.Builder
	for _, job := range report.Jobs {
		switch job.Status {
		case model.StatusPassed:
			sb.WriteString(fmt.Sprintf("  [+] %-8s %s -> %s", job.Job, job.Source, job.Dest))
			if a := job.Artifact; a != nil {
				sb.WriteString(fmt.Sprintf(" (%s %dx%d, %d bytes)", strings.ToUpper(job.Format), a.Width, a.Height, a.Bytes))
			}
			sb.WriteString("\n")
		case model.StatusSkipped:
			sb.WriteString(fmt.Sprintf("  [-] %-8s skipped: %s\n", job.Job, job.Error))
		default:
			sb.WriteString(fmt.Sprintf("  [!] %-8s failed: %s\n", job.Job, job.Error))
		}
	}

	for _, path := range report.MissingSources {
		sb.WriteString(fmt.Sprintf("Missing source: %s\n", path))
	}
	for _, path := range report.RemovedSources {
		sb.WriteString(fmt.Sprintf("Removed source: %s\n", path))
	}
	for _, msg := range report.CleanupErrors {
		sb.WriteString(fmt.Sprintf("Cleanup error: %s\n", msg))
	}

	passed, failed, skipped := report.Counts()
	sb.WriteString(fmt.Sprintf("%d job(s): %d written, %d failed, %d skipped\n",
		len(report.Jobs), passed, failed, skipped))

	return w.output.Write([]byte(sb.String()))
}
