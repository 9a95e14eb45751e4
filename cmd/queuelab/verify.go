package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/ngoiyaeric/queuelab/internal/browser"
	"github.com/ngoiyaeric/queuelab/internal/config"
	"github.com/ngoiyaeric/queuelab/internal/database"
	qlog "github.com/ngoiyaeric/queuelab/internal/log"
	"github.com/ngoiyaeric/queuelab/internal/model"
	"github.com/ngoiyaeric/queuelab/internal/pipeline"
	"github.com/ngoiyaeric/queuelab/internal/report"
	"github.com/ngoiyaeric/queuelab/internal/watch"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// errScenariosFailed is returned when at least one scenario did not pass,
// so the process exits non-zero.
var errScenariosFailed = errors.New("scenarios did not pass")

// NewVerifyCmd creates the verify command.
func NewVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify [scenario...]",
		Short: "Run visual verification scenarios against the dev server",
		Long: `Verify opens each scenario's page in a headless browser, runs its steps
(waits, clicks, form input, scrolling, reloads, assertions) and saves the
requested screenshots for review.

Every run is recorded in the history database so 'queuelab history' can show
what changed between runs. The command exits non-zero when any scenario did
not pass.

Examples:
  # Run every scenario
  queuelab verify

  # Run selected scenarios
  queuelab verify hero-click careers-form

  # The dev server picked another port
  queuelab verify --url http://localhost:3005

  # Show the browser window and run two scenarios at a time
  queuelab verify --headful -b 2

  # Re-run whenever files under src change
  queuelab verify --watch src

  # List available scenarios
  queuelab verify --list`,
		Args: cobra.ArbitraryArgs,
		RunE: runVerifyCmd,
	}

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .queuelab in current or home directory)")
	cmd.Flags().BoolP("list", "l", false,
		"List available scenarios and exit")

	// Target flags
	cmd.Flags().StringP("url", "u", "",
		"Replace the origin of every scenario URL (e.g., http://localhost:3005)")
	cmd.Flags().StringP("output-dir", "o", "",
		"Directory prepended to relative screenshot paths")
	cmd.Flags().DurationP("timeout", "t", config.DefaultNavigationTimeout,
		"Default timeout for navigations and waits")

	// Browser flags
	cmd.Flags().Bool("headful", false,
		"Show the browser window")
	cmd.Flags().String("browser-bin", "",
		"Chromium executable to launch (default: look up or download)")
	cmd.Flags().String("control-url", "",
		"Attach to a running browser's DevTools websocket URL")
	cmd.Flags().IntP("concurrency", "b", config.DefaultConcurrency,
		"Number of scenarios run at the same time")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("report", "r", "",
		"Write the report to a file in the selected format; the terminal keeps the text report")
	cmd.Flags().Bool("no-db", false,
		"Do not record runs in the history database")

	// Watch flags
	cmd.Flags().StringSliceP("watch", "w", nil,
		"Re-run the scenarios when files under these directories change")
	cmd.Flags().Duration("debounce", config.DefaultWatchDebounce,
		"Quiet period after the last change before re-running")

	return cmd
}

// runVerifyCmd executes the verify command.
func runVerifyCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildVerifyConfig(cmd, args)
	if err != nil {
		return err
	}

	list, err := cmd.Flags().GetBool("list")
	if err != nil {
		return err
	}
	if list {
		return listScenarios(cmd.OutOrStdout(), cfg.File)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd)
	slog.SetDefault(logger)

	ctx, stop := signalContext(logger)
	defer stop()

	runner, err := newVerifyRunner(cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer runner.Close()

	if len(cfg.WatchPaths) > 0 {
		return runner.watch(ctx)
	}

	summary, err := runner.run(ctx)
	if err != nil {
		return err
	}
	return exitStatus(summary)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// setupLogger creates the secure structured logger for a command.
func setupLogger(cmd *cobra.Command) *slog.Logger {
	verbose := getVerboseFlag(cmd)
	if jsonLogs, err := cmd.Flags().GetBool("log-json"); err == nil && jsonLogs {
		return qlog.NewSecureJSONLogger(os.Stderr, verbose)
	}
	return qlog.NewSecureLogger(os.Stderr, verbose)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(logger *slog.Logger) (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}

// buildVerifyConfig creates a Config from cobra command flags.
func buildVerifyConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error

	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	cfg.File, _, err = config.Resolve(cfg.ConfigFilePath)
	if err != nil {
		return nil, err
	}

	cfg.URLOverride, err = cmd.Flags().GetString("url")
	if err != nil {
		return nil, err
	}
	if cfg.URLOverride != "" {
		if _, err := pipeline.OverrideOrigin("http://localhost/", cfg.URLOverride); err != nil {
			return nil, fmt.Errorf("invalid --url: %w", err)
		}
	}

	cfg.OutputDir, err = cmd.Flags().GetString("output-dir")
	if err != nil {
		return nil, err
	}

	cfg.NavigationTimeout, err = cmd.Flags().GetDuration("timeout")
	if err != nil {
		return nil, err
	}

	headful, err := cmd.Flags().GetBool("headful")
	if err != nil {
		return nil, err
	}
	cfg.Headless = !headful

	cfg.BrowserBin, err = cmd.Flags().GetString("browser-bin")
	if err != nil {
		return nil, err
	}

	cfg.ControlURL, err = cmd.Flags().GetString("control-url")
	if err != nil {
		return nil, err
	}

	cfg.Concurrency, err = cmd.Flags().GetInt("concurrency")
	if err != nil {
		return nil, err
	}

	cfg.JSONReport, err = cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}

	cfg.MarkdownReport, err = cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}

	cfg.ReportFile, err = cmd.Flags().GetString("report")
	if err != nil {
		return nil, err
	}

	noDB, err := cmd.Flags().GetBool("no-db")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noDB

	cfg.WatchPaths, err = cmd.Flags().GetStringSlice("watch")
	if err != nil {
		return nil, err
	}

	cfg.WatchDebounce, err = cmd.Flags().GetDuration("debounce")
	if err != nil {
		return nil, err
	}

	cfg.Verbose = getVerboseFlag(cmd)
	cfg.Scenarios = args

	return cfg, nil
}

// listScenarios prints the scenario names with their descriptions.
func listScenarios(w io.Writer, file *config.File) error {
	names := file.ScenarioNames()
	if len(names) == 0 {
		fmt.Fprintln(w, "No scenarios configured.")
		fmt.Fprintln(w, "\nUse 'queuelab init' to create a configuration file.")
		return nil
	}

	width := 0
	for _, name := range names {
		width = max(width, len(name))
	}

	fmt.Fprintf(w, "Scenarios (%d):\n\n", len(names))
	for _, name := range names {
		s, _ := file.Scenario(name)
		fmt.Fprintf(w, "  %-*s  %s\n", width, name, s.Description)
	}
	return nil
}

// exitStatus turns a batch summary into the command error.
func exitStatus(summary *model.RunSummary) error {
	if summary.AllPassed() {
		return nil
	}
	if len(summary.Failed) == 0 {
		return fmt.Errorf("%w: %d of %d scenarios skipped", errScenariosFailed, summary.SkippedCount, summary.Total)
	}
	return fmt.Errorf("%w: %s", errScenariosFailed, strings.Join(summary.Failed, ", "))
}

// pageOptions converts a scenario's device profile.
func pageOptions(s config.Scenario) browser.PageOptions {
	opts := browser.PageOptions{
		UserAgent: s.UserAgent,
		Mobile:    s.Mobile,
	}
	if s.Viewport != nil {
		opts.Width = s.Viewport.Width
		opts.Height = s.Viewport.Height
	}
	return opts
}

// launcherPageFactory opens scenario pages on a shared browser.
func launcherPageFactory(l *browser.Launcher) pipeline.PageFactory {
	return func(ctx context.Context, s config.Scenario) (pipeline.Page, error) {
		if err := l.Start(ctx); err != nil {
			return nil, err
		}
		page, err := l.NewPage(ctx, pageOptions(s))
		if err != nil {
			return nil, err
		}
		return page, nil
	}
}

// jobsFor returns the selected scenarios merged with the file defaults.
func jobsFor(cfg *config.Config) []pipeline.Job {
	names := cfg.SelectedScenarios()
	jobs := make([]pipeline.Job, 0, len(names))
	for _, name := range names {
		s, ok := cfg.File.Scenario(name)
		if !ok {
			continue
		}
		jobs = append(jobs, pipeline.Job{Name: name, Scenario: s})
	}
	return jobs
}

// verifyRunner executes scenario batches and records their results.
// In watch mode one runner, and its browser, serves every re-run.
type verifyRunner struct {
	cfg    *config.Config
	logger *slog.Logger

	launcher *browser.Launcher
	newPage  pipeline.PageFactory
	db       *database.RunDB

	stdout   io.Writer
	progress io.Writer
}

// newVerifyRunner opens the history database when enabled and prepares the
// browser launcher. The browser itself starts with the first page.
func newVerifyRunner(cfg *config.Config, logger *slog.Logger, stdout, progress io.Writer) (*verifyRunner, error) {
	r := &verifyRunner{
		cfg:      cfg,
		logger:   logger,
		stdout:   stdout,
		progress: progress,
	}

	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		r.db = db
		logger.Info("database opened", "dir", cfg.DBDir)
	}

	r.launcher = browser.NewLauncher(browser.Options{
		Headless:   cfg.Headless,
		Bin:        cfg.BrowserBin,
		ControlURL: cfg.ControlURL,
		Logger:     logger,
	})
	r.newPage = launcherPageFactory(r.launcher)

	return r, nil
}

// Close shuts down the browser and the database.
func (r *verifyRunner) Close() error {
	var errs []error
	if r.launcher != nil {
		errs = append(errs, r.launcher.Close())
	}
	if r.db != nil {
		errs = append(errs, r.db.Close())
	}
	return errors.Join(errs...)
}

// run executes the selected scenarios once.
func (r *verifyRunner) run(ctx context.Context) (*model.RunSummary, error) {
	jobs := jobsFor(r.cfg)

	output, closeOutput, err := openReportOutput(r.cfg.ReportFile, r.stdout)
	if err != nil {
		return nil, err
	}
	defer closeOutput()
	writer := newRunWriter(r.cfg, output)
	if r.cfg.ReportFile != "" {
		// The terminal keeps the plain text report while the file gets the
		// selected format.
		writer = report.NewMultiWriter(
			report.NewSimpleWriter(r.stdout, report.WithVerbose(r.cfg.Verbose)),
			writer,
		)
	}

	fmt.Fprintf(r.progress, "Running %d scenario(s) (concurrency: %d)...\n\n", len(jobs), r.cfg.Concurrency)
	startTime := time.Now()

	bp := pipeline.NewBatchProcessor(r.newPage,
		pipeline.WithConcurrency(r.cfg.Concurrency),
		pipeline.WithBatchLogger(r.logger),
		pipeline.WithBuildOptions(pipeline.BuildOptions{
			OutputDir:      r.cfg.OutputDir,
			DefaultTimeout: r.cfg.NavigationTimeout,
			URLOverride:    r.cfg.URLOverride,
			Logger:         r.logger,
		}),
	)

	reports := make([]*model.RunReport, len(jobs))
	var mu sync.Mutex
	batchErr := bp.ProcessBatchWithCallback(ctx, jobs, func(rep *model.RunReport, index int) {
		mu.Lock()
		defer mu.Unlock()

		reports[index] = rep
		fmt.Fprintf(r.progress, "[%d/%d] %s: %s (%s)\n",
			index+1, len(jobs), rep.Scenario, rep.Status, rep.Duration().Round(time.Millisecond))

		if _, err := writer.Write(rep); err != nil {
			r.logger.Error("report failed", "scenario", rep.Scenario, "error", err)
		}

		if err := saveRunReport(ctx, r.db, rep, r.logger); err != nil {
			r.logger.Error("failed to save run report", "scenario", rep.Scenario, "error", err)
		}
	})

	fmt.Fprintf(r.progress, "\nCompleted in %s\n\n", time.Since(startTime).Round(time.Millisecond))

	if _, err := writer.WriteSummary(reports); err != nil {
		r.logger.Error("summary failed", "error", err)
	}

	if batchErr != nil && !errors.Is(batchErr, context.Canceled) {
		return nil, batchErr
	}
	return model.NewRunSummary(reports), nil
}

// watch runs the scenarios once, then again after every debounced change
// under the watched directories, until ctx is cancelled.
func (r *verifyRunner) watch(ctx context.Context) error {
	opts := []watch.Option{
		watch.WithDebounce(r.cfg.WatchDebounce),
		watch.WithLogger(r.logger),
	}
	if r.cfg.OutputDir != "" {
		opts = append(opts, watch.WithIgnorePaths(r.cfg.OutputDir))
	}
	if r.cfg.ReportFile != "" {
		opts = append(opts, watch.WithIgnorePaths(r.cfg.ReportFile))
	}

	w, err := watch.New(r.cfg.WatchPaths, opts...)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", strings.Join(r.cfg.WatchPaths, ", "), err)
	}
	defer w.Close()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return w.Run(ctx)
	})

	g.Go(func() error {
		r.runWatched(ctx)
		fmt.Fprintf(r.progress, "Watching %s for changes (Ctrl+C to stop)...\n", strings.Join(r.cfg.WatchPaths, ", "))

		for ev := range w.Triggers() {
			fmt.Fprintf(r.progress, "\nChange detected: %s\n", describeChange(ev.Paths))
			r.runWatched(ctx)
		}
		return nil
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// runWatched runs one batch in watch mode, where failures are reported but
// never stop watching.
func (r *verifyRunner) runWatched(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	summary, err := r.run(ctx)
	if err != nil {
		r.logger.Error("verification run failed", "error", err)
		return
	}
	if err := exitStatus(summary); err != nil {
		fmt.Fprintln(r.progress, err)
	}
}

// describeChange shortens the changed path list for display.
func describeChange(paths []string) string {
	const shown = 3
	if len(paths) <= shown {
		return strings.Join(paths, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(paths[:shown], ", "), len(paths)-shown)
}

// newRunWriter selects the report format.
func newRunWriter(cfg *config.Config, output io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output, report.WithVerbose(cfg.Verbose))
	}
}

// openReportOutput opens the report file, or returns stdout when path is
// empty. Reports are written with owner-only permissions.
func openReportOutput(path string, stdout io.Writer) (io.Writer, func(), error) {
	if path == "" {
		return stdout, func() {}, nil
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600) //nolint:gosec // User-provided report path is intentional
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// saveRunReport saves the run report to the database if enabled.
// If db is nil, this function is a no-op.
func saveRunReport(ctx context.Context, db *database.RunDB, rep *model.RunReport, logger *slog.Logger) error {
	if db == nil {
		return nil
	}

	// A cancelled batch still records the runs that finished.
	id, err := db.SaveRunReport(context.WithoutCancel(ctx), rep)
	if err != nil {
		return fmt.Errorf("failed to save run report: %w", err)
	}

	logger.Info("run report saved to database", "scenario", rep.Scenario, "id", id)
	return nil
}
