// Package report provides report generation and output functionality.
//
// This package contains writers for different output formats:
//   - SimpleWriter: Human-readable text output for terminal display
//   - MarkdownWriter: Markdown for pull requests and issue comments
//   - JSONWriter and FullJSONWriter: Structured JSON for tool integration
//   - AssetWriter: Text or JSON output for asset preprocessing runs
//
// Report data lives in the model package; writers only format it.
// Run writers implement the Writer interface so they can be composed with
// MultiWriter for terminal plus file output.
package report
