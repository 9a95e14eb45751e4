package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/ngoiyaeric/queuelab/internal/model"
)

// MarkdownWriter outputs reports in GitHub-flavored Markdown, suitable for
// pasting screenshots and outcomes into a pull request.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs one run in Markdown format.
func (w *MarkdownWriter) Write(report *model.RunReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSteps(md, report)
	w.writeArtifacts(md, report)
	w.writeObservations(md, report)

	return len(md.String()), md.Build()
}

// writeHeader writes the run properties table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.RunReport) {
	md.H2("Scenario `" + report.Scenario + "`")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"URL", "`" + report.URL + "`"},
			{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", formatDuration(report.Duration())},
			{"Status", statusText(report)},
		},
	})
	md.PlainText("")

	switch {
	case report.TimedOut:
		md.Warningf("Timed out: %s", report.ErrorMessage)
		md.PlainText("")
	case report.ErrorMessage != "":
		md.Cautionf("Failed: %s", report.ErrorMessage)
		md.PlainText("")
	}
}

// statusText returns the status with an icon.
func statusText(report *model.RunReport) string {
	switch report.Status {
	case model.StatusPassed:
		return "✅ Passed"
	case model.StatusTimedOut:
		return "⚠️ Timed Out"
	case model.StatusSkipped:
		return "⏭️ Skipped"
	case model.StatusPending:
		return "⏳ Pending"
	default:
		return "❌ Failed"
	}
}

// writeSteps writes the step table.
func (w *MarkdownWriter) writeSteps(md *markdown.Markdown, report *model.RunReport) {
	if len(report.Steps) == 0 {
		return
	}

	rows := make([][]string, len(report.Steps))
	for i, s := range report.Steps {
		status := statusLabel(s.Status)
		if s.Caught {
			status += " (caught)"
		}
		rows[i] = []string{
			strconv.Itoa(i + 1),
			stepLabel(s.Name),
			"`" + truncateString(orDash(s.Target), 50) + "`",
			status,
			formatDuration(s.Duration),
			truncateString(orDash(s.Error), 60),
		}
	}

	md.H3("Steps")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"#", "Step", "Target", "Status", "Duration", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeArtifacts writes the artifact table.
func (w *MarkdownWriter) writeArtifacts(md *markdown.Markdown, report *model.RunReport) {
	if len(report.Artifacts) == 0 {
		return
	}

	rows := make([][]string, len(report.Artifacts))
	for i, a := range report.Artifacts {
		rows[i] = []string{
			"`" + a.Path + "`",
			stepLabel(string(a.Kind)),
			strconv.Itoa(a.Width) + "x" + strconv.Itoa(a.Height),
			strconv.Itoa(a.Bytes),
			"`" + truncateString(a.Digest, 16) + "`",
		}
	}

	md.H3("Artifacts")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Path", "Kind", "Size", "Bytes", "SHA3"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeObservations lists values read from the page.
func (w *MarkdownWriter) writeObservations(md *markdown.Markdown, report *model.RunReport) {
	if len(report.Observations) == 0 {
		return
	}

	items := make([]string, len(report.Observations))
	for i, o := range report.Observations {
		items[i] = "`" + o.Key + "`: " + o.Value
	}

	md.H3("Observations")
	md.PlainText("")
	md.BulletList(items...)
	md.PlainText("")
}

// WriteSummary outputs the batch summary with a status pie chart.
func (w *MarkdownWriter) WriteSummary(reports []*model.RunReport) (int, error) {
	summary := model.NewRunSummary(reports)
	md := markdown.NewMarkdown(w.output)

	md.H1("Visual Verification Summary")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Status", "Count"},
		Rows: [][]string{
			{"✅ Passed", strconv.Itoa(summary.PassedCount)},
			{"❌ Failed", strconv.Itoa(summary.FailedCount)},
			{"⚠️ Timed Out", strconv.Itoa(summary.TimedOutCount)},
			{"⏭️ Skipped", strconv.Itoa(summary.SkippedCount)},
			{"**Total**", "**" + strconv.Itoa(summary.Total) + "**"},
		},
	})
	md.PlainText("")

	if summary.Total > 0 {
		w.writePieChart(md, summary)
	}

	switch {
	case summary.Total == 0:
		md.Note("No scenarios were run.")
	case summary.AllPassed():
		md.Tip("All scenarios passed. Review the screenshots for visual regressions.")
	default:
		md.Warningf("%d scenario(s) did not pass: %s", len(summary.Failed), joinNames(summary.Failed))
	}
	md.PlainText("")

	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*%d artifact(s) written in %s*", summary.ArtifactCount, formatDuration(summary.Elapsed))

	return len(md.String()), md.Build()
}

// writePieChart writes a mermaid pie chart of run outcomes.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, summary *model.RunSummary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Scenario Outcomes"),
		piechart.WithShowData(true),
	)

	slices := []struct {
		label string
		count int
	}{
		{"Passed", summary.PassedCount},
		{"Failed", summary.FailedCount},
		{"Timed Out", summary.TimedOutCount},
		{"Skipped", summary.SkippedCount},
	}
	for _, s := range slices {
		if s.count > 0 {
			chart.LabelAndIntValue(s.label, uint64(s.count)) //nolint:gosec // counts are non-negative
		}
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func joinNames(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "`" + n + "`"
	}
	return strings.Join(quoted, ", ")
}
