package report

import (
	"encoding/json"
	"io"

	"github.com/ngoiyaeric/queuelab/internal/model"
)

// JSONWriter outputs reports in JSON format for tool integration.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs one run report.
func (w *JSONWriter) Write(report *model.RunReport) (int, error) {
	return w.writeJSON(report)
}

// WriteSummary outputs the batch summary.
func (w *JSONWriter) WriteSummary(reports []*model.RunReport) (int, error) {
	return w.writeJSON(model.NewRunSummary(reports))
}

// WriteValue outputs any JSON-serializable value with the writer's settings.
func (w *JSONWriter) WriteValue(v any) (int, error) {
	return w.writeJSON(v)
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}

// JSONReport wraps a batch of runs with version and summary metadata.
type JSONReport struct {
	// Version is the queuelab version that produced the report.
	Version string `json:"version"`

	// Summary aggregates the runs.
	Summary *model.RunSummary `json:"summary"`

	// Runs holds the individual run reports in scenario order.
	Runs []*model.RunReport `json:"runs"`
}

// NewJSONReport creates a JSONReport wrapper with version information.
func NewJSONReport(reports []*model.RunReport, version string) *JSONReport {
	runs := make([]*model.RunReport, 0, len(reports))
	for _, r := range reports {
		if r != nil {
			runs = append(runs, r)
		}
	}
	return &JSONReport{
		Version: version,
		Summary: model.NewRunSummary(reports),
		Runs:    runs,
	}
}

// FullJSONWriter outputs one JSON document for a whole batch. Write only
// buffers the run; WriteSummary emits the document.
type FullJSONWriter struct {
	*JSONWriter

	// version is the queuelab version string.
	version string
}

// NewFullJSONWriter creates a writer for complete batch reports.
func NewFullJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *FullJSONWriter {
	return &FullJSONWriter{
		JSONWriter: NewJSONWriter(output, opts...),
		version:    version,
	}
}

// Write does nothing; runs are written together by WriteSummary.
func (w *FullJSONWriter) Write(*model.RunReport) (int, error) {
	return 0, nil
}

// WriteSummary outputs every run wrapped with version and summary.
func (w *FullJSONWriter) WriteSummary(reports []*model.RunReport) (int, error) {
	return w.writeJSON(NewJSONReport(reports, w.version))
}
