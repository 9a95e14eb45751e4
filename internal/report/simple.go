package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/ngoiyaeric/queuelab/internal/model"
)

// SimpleWriter outputs human-readable text reports for terminal display.
// The output is plain ASCII so it can be piped to files or CI logs.
type SimpleWriter struct {
	baseWriter

	// showSteps controls whether every step is listed, not only failures.
	showSteps bool

	// verbose adds step targets and durations.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowSteps lists every step of a run.
func WithShowSteps(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showSteps = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs one run in human-readable format.
func (w *SimpleWriter) Write(report *model.RunReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeSteps(&sb, report)
	w.writeArtifacts(&sb, report)
	w.writeObservations(&sb, report)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the scenario name and outcome.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.RunReport) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("Scenario: %s\n", report.Scenario))
	sb.WriteString(fmt.Sprintf("URL:      %s\n", report.URL))
	sb.WriteString(fmt.Sprintf("Started:  %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST")))
	sb.WriteString(fmt.Sprintf("Duration: %s\n", formatDuration(report.Duration())))

	if report.ErrorMessage != "" {
		sb.WriteString(fmt.Sprintf("Status:   %s - %s\n", report.Status, report.ErrorMessage))
	} else {
		sb.WriteString(fmt.Sprintf("Status:   %s\n", report.Status))
	}
	sb.WriteString("\n")
}

// writeSteps lists failed, caught and skipped steps, or every step with showSteps.
func (w *SimpleWriter) writeSteps(sb *strings.Builder, report *model.RunReport) {
	steps := make([]model.StepResult, 0, len(report.Steps))
	for _, s := range report.Steps {
		if w.showSteps || s.Status != model.StatusPassed {
			steps = append(steps, s)
		}
	}
	if len(steps) == 0 {
		return
	}

	sb.WriteString("Steps:\n")
	for _, s := range steps {
		sb.WriteString(fmt.Sprintf("  [%s] %s", stepIndicator(s), stepLabel(s.Name)))
		if w.verbose && s.Target != "" {
			sb.WriteString(fmt.Sprintf(" %s", s.Target))
		}
		if w.verbose {
			sb.WriteString(fmt.Sprintf(" (%s)", formatDuration(s.Duration)))
		}
		sb.WriteString("\n")
		if s.Error != "" {
			sb.WriteString(fmt.Sprintf("      %s\n", s.Error))
		}
	}
	sb.WriteString("\n")
}

// stepIndicator returns a short marker for a step outcome.
func stepIndicator(s model.StepResult) string {
	if s.Caught {
		return "~"
	}
	switch s.Status {
	case model.StatusPassed:
		return "+"
	case model.StatusFailed:
		return "!"
	case model.StatusTimedOut:
		return "T"
	case model.StatusSkipped:
		return "-"
	default:
		return "?"
	}
}

// writeArtifacts lists written files.
func (w *SimpleWriter) writeArtifacts(sb *strings.Builder, report *model.RunReport) {
	if len(report.Artifacts) == 0 {
		return
	}

	sb.WriteString("Artifacts:\n")
	for _, a := range report.Artifacts {
		sb.WriteString(fmt.Sprintf("  %s (%dx%d, %d bytes)", a.Path, a.Width, a.Height, a.Bytes))
		if a.Kind == model.ArtifactErrorScreenshot {
			sb.WriteString(" [error]")
		}
		if w.verbose {
			sb.WriteString(fmt.Sprintf(" sha3:%s", truncateString(a.Digest, 16)))
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
}

// writeObservations prints values read from the page.
func (w *SimpleWriter) writeObservations(sb *strings.Builder, report *model.RunReport) {
	if len(report.Observations) == 0 {
		return
	}

	sb.WriteString("Observations:\n")
	for _, o := range report.Observations {
		sb.WriteString(fmt.Sprintf("  %s: %s\n", o.Key, o.Value))
	}
	sb.WriteString("\n")
}

// WriteSummary outputs pass/fail counts for a batch.
func (w *SimpleWriter) WriteSummary(reports []*model.RunReport) (int, error) {
	summary := model.NewRunSummary(reports)

	var sb strings.Builder
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("%d scenario(s): %d passed, %d failed, %d timed out, %d skipped\n",
		summary.Total, summary.PassedCount, summary.FailedCount, summary.TimedOutCount, summary.SkippedCount))
	sb.WriteString(fmt.Sprintf("Artifacts: %d, elapsed: %s\n", summary.ArtifactCount, formatDuration(summary.Elapsed)))
	if len(summary.Failed) > 0 {
		sb.WriteString(fmt.Sprintf("Not passed: %s\n", strings.Join(summary.Failed, ", ")))
	}
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")

	return w.output.Write([]byte(sb.String()))
}
