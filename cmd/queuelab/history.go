package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"github.com/ngoiyaeric/queuelab/internal/config"
	"github.com/ngoiyaeric/queuelab/internal/database"
	"github.com/ngoiyaeric/queuelab/internal/model"
	"github.com/spf13/cobra"
)

// Observation change kinds.
const (
	observationAdded   = "added"
	observationRemoved = "removed"
	observationChanged = "changed"
)

// NewHistoryCmd creates the history command.
// This command compares runs stored in the history database.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [scenario]",
		Short: "Compare a scenario's latest run with earlier runs",
		Long: `History shows what changed between runs of a scenario recorded by
'queuelab verify':

- Status changes (a scenario that started or stopped passing)
- Screenshots that are new, gone, or whose contents changed
- Observed values (element counts, bounding boxes, evaluated expressions)
  that differ

Screenshots are compared by their SHA3-256 digest, so an unchanged page
produces an unchanged screenshot.

Examples:
  # Compare the latest two runs of a scenario
  queuelab history hero-click

  # List the recorded runs of a scenario
  queuelab history --list hero-click

  # Compare with a specific run by ID
  queuelab history --with-run-id 5 hero-click

  # Compare with the first run since a date
  queuelab history --since 2025-01-01 hero-click

  # Show every recorded version of a screenshot
  queuelab history --artifact jules-scratch/verification/verification.png

  # List all scenarios in the database
  queuelab history --list-scenarios`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	// History listing flags
	cmd.Flags().BoolP("list", "l", false,
		"List run history for the specified scenario")
	cmd.Flags().BoolP("list-scenarios", "L", false,
		"List all scenarios in the database")
	cmd.Flags().StringP("artifact", "a", "",
		"List every recorded version of the artifact at this path")

	// Comparison target flags
	cmd.Flags().Int64P("with-run-id", "i", 0,
		"Compare with a specific run by ID (use --list to see available IDs)")
	cmd.Flags().StringP("since", "s", "",
		"Compare with the first run after this date (format: YYYY-MM-DD)")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	listAll, err := cmd.Flags().GetBool("list-scenarios")
	if err != nil {
		return err
	}
	artifactPath, err := cmd.Flags().GetString("artifact")
	if err != nil {
		return err
	}

	// Validate arguments before opening the database.
	var scenario string
	if !listAll && artifactPath == "" {
		if len(args) == 0 {
			return errors.New("scenario name is required (use --list-scenarios to see recorded scenarios)")
		}
		scenario = args[0]
	}

	db, err := database.Open(config.XDGDataDir(), database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	out := cmd.OutOrStdout()

	switch {
	case listAll:
		return listRecordedScenarios(ctx, out, db)
	case artifactPath != "":
		return listArtifactHistory(ctx, out, db, artifactPath)
	}

	listHistory, err := cmd.Flags().GetBool("list")
	if err != nil {
		return err
	}
	if listHistory {
		return listRunHistory(ctx, out, db, scenario)
	}

	opts := comparisonOptions{}
	if opts.withRunID, err = cmd.Flags().GetInt64("with-run-id"); err != nil {
		return err
	}
	if opts.since, err = cmd.Flags().GetString("since"); err != nil {
		return err
	}
	if opts.jsonOutput, err = cmd.Flags().GetBool("json"); err != nil {
		return err
	}
	if opts.markdownOutput, err = cmd.Flags().GetBool("markdown"); err != nil {
		return err
	}
	if opts.jsonOutput && opts.markdownOutput {
		return config.ErrConflictingReportFormats
	}

	return runComparison(ctx, out, db, scenario, opts)
}

// listRecordedScenarios lists all scenarios with runs in the database.
func listRecordedScenarios(ctx context.Context, out io.Writer, db *database.RunDB) error {
	scenarios, err := db.ListScenarios(ctx)
	if err != nil {
		return fmt.Errorf("failed to list scenarios: %w", err)
	}

	if len(scenarios) == 0 {
		fmt.Fprintln(out, "No recorded runs found in the database.")
		fmt.Fprintln(out, "\nUse 'queuelab verify' to run scenarios.")
		return nil
	}

	fmt.Fprintf(out, "Recorded scenarios (%d):\n\n", len(scenarios))
	for _, s := range scenarios {
		fmt.Fprintf(out, "  • %s\n", s)
	}
	fmt.Fprintln(out, "\nUse 'queuelab history --list <scenario>' to see the runs of a scenario.")

	return nil
}

// listRunHistory lists all runs recorded for a scenario.
func listRunHistory(ctx context.Context, out io.Writer, db *database.RunDB, scenario string) error {
	runs, err := db.GetRunHistoryWithMetadata(ctx, scenario)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintf(out, "No run history found for %s\n", scenario)
		fmt.Fprintln(out, "\nUse 'queuelab verify' to run this scenario.")
		return nil
	}

	fmt.Fprintf(out, "Run history for %s (%d runs):\n\n", scenario, len(runs))
	fmt.Fprintf(out, "  %-6s  %-20s  %-10s  %-10s  %s\n", "ID", "Date", "Status", "Duration", "Artifacts")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 64))

	for _, meta := range runs {
		fmt.Fprintf(out, "  %-6d  %-20s  %-10s  %-10s  %d\n",
			meta.ID,
			meta.StartedAt.Local().Format("2006-01-02 15:04:05"),
			meta.Status,
			meta.Duration.Round(time.Millisecond),
			meta.ArtifactCount,
		)
	}

	fmt.Fprintln(out, "\nUse 'queuelab history <scenario>' to compare the latest two runs.")
	fmt.Fprintln(out, "Use 'queuelab history --with-run-id <id> <scenario>' to compare with a specific run.")

	return nil
}

// listArtifactHistory lists every recorded version of one artifact path and
// marks where its contents changed.
func listArtifactHistory(ctx context.Context, out io.Writer, db *database.RunDB, path string) error {
	records, err := db.ArtifactHistory(ctx, path)
	if err != nil {
		return fmt.Errorf("failed to get artifact history: %w", err)
	}

	if len(records) == 0 {
		fmt.Fprintf(out, "No recorded versions of %s\n", path)
		return nil
	}

	fmt.Fprintf(out, "History of %s (%d versions):\n\n", path, len(records))
	fmt.Fprintf(out, "  %-6s  %-20s  %-20s  %-10s  %-16s\n", "Run", "Date", "Scenario", "Size", "SHA3")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 82))

	for i, rec := range records {
		marker := ""
		// Records are newest first; compare each with the version before it.
		if i+1 < len(records) && records[i+1].Digest != rec.Digest {
			marker = "  changed"
		}
		fmt.Fprintf(out, "  %-6d  %-20s  %-20s  %-10s  %-16s%s\n",
			rec.RunID,
			rec.StartedAt.Local().Format("2006-01-02 15:04:05"),
			rec.Scenario,
			fmt.Sprintf("%dx%d", rec.Width, rec.Height),
			shortDigest(rec.Digest),
			marker,
		)
	}

	return nil
}

// comparisonOptions selects the runs to compare and the output format.
type comparisonOptions struct {
	withRunID      int64
	since          string
	jsonOutput     bool
	markdownOutput bool
}

// runComparison performs the comparison between two runs of a scenario.
func runComparison(ctx context.Context, out io.Writer, db *database.RunDB, scenario string, opts comparisonOptions) error {
	reports, err := db.GetRunHistory(ctx, scenario, 0)
	if err != nil {
		return fmt.Errorf("failed to get run history: %w", err)
	}

	if len(reports) == 0 {
		return fmt.Errorf("no run history found for %s", scenario)
	}

	if len(reports) < 2 && opts.withRunID == 0 && opts.since == "" {
		return fmt.Errorf("at least 2 runs are required for comparison (found %d)", len(reports))
	}

	current := reports[0]
	previous, err := selectPreviousRun(ctx, db, scenario, reports, opts)
	if err != nil {
		return err
	}

	comparison := compareRuns(previous, current)

	if opts.jsonOutput {
		return outputComparisonJSON(out, comparison)
	}
	if opts.markdownOutput {
		return outputComparisonMarkdown(out, comparison)
	}
	return outputComparisonText(out, comparison)
}

// selectPreviousRun picks the baseline run. reports is newest first.
func selectPreviousRun(ctx context.Context, db *database.RunDB, scenario string, reports []*model.RunReport, opts comparisonOptions) (*model.RunReport, error) {
	current := reports[0]

	switch {
	case opts.withRunID > 0:
		previous, err := db.GetRunReportByID(ctx, opts.withRunID)
		if err != nil {
			return nil, fmt.Errorf("failed to get run with ID %d: %w", opts.withRunID, err)
		}
		if previous == nil {
			return nil, fmt.Errorf("run with ID %d not found", opts.withRunID)
		}
		if previous.Scenario != scenario {
			return nil, fmt.Errorf("run ID %d belongs to %s, not %s", opts.withRunID, previous.Scenario, scenario)
		}
		return previous, nil

	case opts.since != "":
		since, err := time.ParseInLocation("2006-01-02", opts.since, time.Local)
		if err != nil {
			return nil, fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
		}

		// Walk from the oldest run to find the first one at or after since.
		for i := len(reports) - 1; i >= 0; i-- {
			r := reports[i]
			if r.StartedAt.Before(since) {
				continue
			}
			if r == current {
				return nil, fmt.Errorf("only one run found since %s; at least 2 runs are required for comparison", opts.since)
			}
			return r, nil
		}
		return nil, fmt.Errorf("no runs found since %s", opts.since)

	default:
		return reports[1], nil
	}
}

// ComparisonResult holds the differences between two runs of a scenario.
type ComparisonResult struct {
	// Scenario is the compared scenario.
	Scenario string `json:"scenario"`

	// PreviousRun and CurrentRun describe the compared runs.
	PreviousRun RunSnapshot `json:"previous_run"`
	CurrentRun  RunSnapshot `json:"current_run"`

	// StatusChanged is true when the runs ended with different statuses.
	StatusChanged bool `json:"status_changed"`

	// NewArtifacts were written only by the current run.
	NewArtifacts []model.Artifact `json:"new_artifacts,omitempty"`

	// RemovedArtifacts were written only by the previous run.
	RemovedArtifacts []model.Artifact `json:"removed_artifacts,omitempty"`

	// ChangedArtifacts were written by both runs with different contents.
	ChangedArtifacts []ArtifactChange `json:"changed_artifacts,omitempty"`

	// UnchangedArtifacts is the number of byte-identical artifacts.
	UnchangedArtifacts int `json:"unchanged_artifacts"`

	// ObservationChanges lists observed values that differ.
	ObservationChanges []ObservationChange `json:"observation_changes,omitempty"`
}

// RunSnapshot contains metadata about a run for comparison display.
type RunSnapshot struct {
	RunID         string        `json:"run_id"`
	StartedAt     time.Time     `json:"started_at"`
	Status        model.Status  `json:"status"`
	Duration      time.Duration `json:"duration"`
	StepCount     int           `json:"step_count"`
	ArtifactCount int           `json:"artifact_count"`
	Error         string        `json:"error,omitempty"` //nolint:tagliatelle // error is conventional
}

// ArtifactChange is an artifact path whose contents differ between runs.
type ArtifactChange struct {
	Path     string         `json:"path"`
	Previous model.Artifact `json:"previous"`
	Current  model.Artifact `json:"current"`
}

// SizeChanged reports whether the image dimensions differ.
func (c ArtifactChange) SizeChanged() bool {
	return c.Previous.Width != c.Current.Width || c.Previous.Height != c.Current.Height
}

// ObservationChange is an observed value that differs between runs.
type ObservationChange struct {
	Key      string `json:"key"`
	Kind     string `json:"kind"`
	Previous string `json:"previous,omitempty"`
	Current  string `json:"current,omitempty"`
}

// snapshotOf extracts the metadata of a run.
func snapshotOf(r *model.RunReport) RunSnapshot {
	return RunSnapshot{
		RunID:         r.ID,
		StartedAt:     r.StartedAt,
		Status:        r.Status,
		Duration:      r.Duration(),
		StepCount:     len(r.Steps),
		ArtifactCount: len(r.Artifacts),
		Error:         r.ErrorMessage,
	}
}

// compareRuns compares two runs and generates a comparison result.
// Artifacts are matched by path and compared by digest.
func compareRuns(previous, current *model.RunReport) *ComparisonResult {
	result := &ComparisonResult{
		Scenario:      current.Scenario,
		PreviousRun:   snapshotOf(previous),
		CurrentRun:    snapshotOf(current),
		StatusChanged: previous.Status != current.Status,
	}

	previousArtifacts := make(map[string]model.Artifact, len(previous.Artifacts))
	for _, a := range previous.Artifacts {
		previousArtifacts[a.Path] = a
	}
	currentPaths := make(map[string]struct{}, len(current.Artifacts))

	for _, a := range current.Artifacts {
		currentPaths[a.Path] = struct{}{}
		prev, ok := previousArtifacts[a.Path]
		switch {
		case !ok:
			result.NewArtifacts = append(result.NewArtifacts, a)
		case prev.Digest != a.Digest:
			result.ChangedArtifacts = append(result.ChangedArtifacts, ArtifactChange{Path: a.Path, Previous: prev, Current: a})
		default:
			result.UnchangedArtifacts++
		}
	}

	for _, a := range previous.Artifacts {
		if _, ok := currentPaths[a.Path]; !ok {
			result.RemovedArtifacts = append(result.RemovedArtifacts, a)
		}
	}

	result.ObservationChanges = compareObservations(previous.Observations, current.Observations)

	return result
}

// compareObservations compares the last value recorded under each key.
func compareObservations(previous, current []model.Observation) []ObservationChange {
	prev := lastValues(previous)
	curr := lastValues(current)

	keys := make([]string, 0, len(prev)+len(curr))
	for k := range prev {
		keys = append(keys, k)
	}
	for k := range curr {
		if _, ok := prev[k]; !ok {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	var changes []ObservationChange
	for _, k := range keys {
		p, inPrev := prev[k]
		c, inCurr := curr[k]
		switch {
		case !inPrev:
			changes = append(changes, ObservationChange{Key: k, Kind: observationAdded, Current: c})
		case !inCurr:
			changes = append(changes, ObservationChange{Key: k, Kind: observationRemoved, Previous: p})
		case p != c:
			changes = append(changes, ObservationChange{Key: k, Kind: observationChanged, Previous: p, Current: c})
		}
	}
	return changes
}

// lastValues maps each observation key to its last recorded value.
func lastValues(obs []model.Observation) map[string]string {
	m := make(map[string]string, len(obs))
	for _, o := range obs {
		m[o.Key] = o.Value
	}
	return m
}

// outputComparisonJSON outputs the comparison result in JSON format.
func outputComparisonJSON(out io.Writer, result *ComparisonResult) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// outputComparisonMarkdown outputs the comparison result in Markdown format.
func outputComparisonMarkdown(out io.Writer, result *ComparisonResult) error {
	md := markdown.NewMarkdown(out)

	md.H1("Run Comparison: " + result.Scenario)
	md.PlainText("")

	md.H2("Summary")
	md.PlainText("")
	md.PlainTextf("**Status:** %s", formatStatusChange(result))
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current", "Change"},
		Rows: [][]string{
			{"Date", result.PreviousRun.StartedAt.Local().Format("2006-01-02 15:04"), result.CurrentRun.StartedAt.Local().Format("2006-01-02 15:04"), "-"},
			{"Status", result.PreviousRun.Status.String(), result.CurrentRun.Status.String(), "-"},
			{"Duration", result.PreviousRun.Duration.Round(time.Millisecond).String(), result.CurrentRun.Duration.Round(time.Millisecond).String(), "-"},
			{"Steps", strconv.Itoa(result.PreviousRun.StepCount), strconv.Itoa(result.CurrentRun.StepCount), formatDelta(result.CurrentRun.StepCount - result.PreviousRun.StepCount)},
			{"Artifacts", strconv.Itoa(result.PreviousRun.ArtifactCount), strconv.Itoa(result.CurrentRun.ArtifactCount), formatDelta(result.CurrentRun.ArtifactCount - result.PreviousRun.ArtifactCount)},
		},
	})
	md.PlainText("")

	if result.CurrentRun.Error != "" {
		md.Cautionf("Current run failed: %s", result.CurrentRun.Error)
		md.PlainText("")
	}

	if len(result.ChangedArtifacts) > 0 {
		md.H2(fmt.Sprintf("Changed Artifacts (%d)", len(result.ChangedArtifacts)))
		md.PlainText("")
		rows := make([][]string, len(result.ChangedArtifacts))
		for i, c := range result.ChangedArtifacts {
			rows[i] = []string{
				"`" + c.Path + "`",
				fmt.Sprintf("%dx%d", c.Previous.Width, c.Previous.Height),
				fmt.Sprintf("%dx%d", c.Current.Width, c.Current.Height),
				"`" + shortDigest(c.Previous.Digest) + "`",
				"`" + shortDigest(c.Current.Digest) + "`",
			}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Path", "Previous Size", "Current Size", "Previous SHA3", "Current SHA3"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	if len(result.NewArtifacts) > 0 {
		md.H2(fmt.Sprintf("New Artifacts (%d)", len(result.NewArtifacts)))
		md.PlainText("")
		items := make([]string, len(result.NewArtifacts))
		for i, a := range result.NewArtifacts {
			items[i] = fmt.Sprintf("`%s` (%dx%d)", a.Path, a.Width, a.Height)
		}
		md.BulletList(items...)
		md.PlainText("")
	}

	if len(result.RemovedArtifacts) > 0 {
		md.H2(fmt.Sprintf("Removed Artifacts (%d)", len(result.RemovedArtifacts)))
		md.PlainText("")
		items := make([]string, len(result.RemovedArtifacts))
		for i, a := range result.RemovedArtifacts {
			items[i] = "~~`" + a.Path + "`~~"
		}
		md.BulletList(items...)
		md.PlainText("")
	}

	if len(result.ObservationChanges) > 0 {
		md.H2(fmt.Sprintf("Observation Changes (%d)", len(result.ObservationChanges)))
		md.PlainText("")
		rows := make([][]string, len(result.ObservationChanges))
		for i, c := range result.ObservationChanges {
			rows[i] = []string{"`" + c.Key + "`", c.Kind, orNone(c.Previous), orNone(c.Current)}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Key", "Change", "Previous", "Current"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	if result.UnchangedArtifacts > 0 {
		md.HorizontalRule()
		md.PlainText("")
		md.PlainTextf("*%d artifact(s) unchanged*", result.UnchangedArtifacts)
	}

	return md.Build()
}

// outputComparisonText outputs the comparison result in human-readable text format.
func outputComparisonText(out io.Writer, result *ComparisonResult) error {
	fmt.Fprintf(out, "Run Comparison: %s\n", result.Scenario)
	fmt.Fprintln(out, strings.Repeat("=", 60))

	fmt.Fprintf(out, "\nStatus: %s\n", formatStatusChange(result))

	fmt.Fprintf(out, "\nPrevious run: %s  %s  (%s)\n",
		result.PreviousRun.StartedAt.Local().Format("2006-01-02 15:04:05"),
		result.PreviousRun.Status,
		result.PreviousRun.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "Current run:  %s  %s  (%s)\n",
		result.CurrentRun.StartedAt.Local().Format("2006-01-02 15:04:05"),
		result.CurrentRun.Status,
		result.CurrentRun.Duration.Round(time.Millisecond))
	if result.CurrentRun.Error != "" {
		fmt.Fprintf(out, "Error: %s\n", result.CurrentRun.Error)
	}

	if len(result.ChangedArtifacts) > 0 {
		fmt.Fprintf(out, "\nChanged Artifacts (%d):\n", len(result.ChangedArtifacts))
		for _, c := range result.ChangedArtifacts {
			fmt.Fprintf(out, "  [~] %s  %s -> %s", c.Path, shortDigest(c.Previous.Digest), shortDigest(c.Current.Digest))
			if c.SizeChanged() {
				fmt.Fprintf(out, "  (%dx%d -> %dx%d)", c.Previous.Width, c.Previous.Height, c.Current.Width, c.Current.Height)
			}
			fmt.Fprintln(out)
		}
	}

	if len(result.NewArtifacts) > 0 {
		fmt.Fprintf(out, "\nNew Artifacts (%d):\n", len(result.NewArtifacts))
		for _, a := range result.NewArtifacts {
			fmt.Fprintf(out, "  [+] %s (%dx%d)\n", a.Path, a.Width, a.Height)
		}
	}

	if len(result.RemovedArtifacts) > 0 {
		fmt.Fprintf(out, "\nRemoved Artifacts (%d):\n", len(result.RemovedArtifacts))
		for _, a := range result.RemovedArtifacts {
			fmt.Fprintf(out, "  [-] %s\n", a.Path)
		}
	}

	if len(result.ObservationChanges) > 0 {
		fmt.Fprintf(out, "\nObservation Changes (%d):\n", len(result.ObservationChanges))
		for _, c := range result.ObservationChanges {
			fmt.Fprintf(out, "  %s: %s -> %s\n", c.Key, orNone(c.Previous), orNone(c.Current))
		}
	}

	if result.UnchangedArtifacts > 0 {
		fmt.Fprintf(out, "\nUnchanged: %d artifacts\n", result.UnchangedArtifacts)
	}

	return nil
}

// formatStatusChange describes the status transition for display.
func formatStatusChange(result *ComparisonResult) string {
	if !result.StatusChanged {
		return "UNCHANGED (" + result.CurrentRun.Status.String() + ")"
	}
	direction := "CHANGED"
	switch {
	case result.CurrentRun.Status.OK():
		direction = "FIXED"
	case result.PreviousRun.Status.OK():
		direction = "BROKEN"
	}
	return fmt.Sprintf("%s (%s -> %s)", direction, result.PreviousRun.Status, result.CurrentRun.Status)
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}

// shortDigest abbreviates a digest for display.
func shortDigest(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}

// orNone returns "(none)" for empty values.
func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
