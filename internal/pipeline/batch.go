package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ngoiyaeric/queuelab/internal/config"
	"github.com/ngoiyaeric/queuelab/internal/model"
	"golang.org/x/sync/errgroup"
)

// Job is one scenario to run.
type Job struct {
	// Name is the scenario name from the configuration.
	Name string

	// Scenario is the scenario merged with the file defaults.
	Scenario config.Scenario
}

// PageFactory opens a fresh page with the scenario's device profile.
type PageFactory func(ctx context.Context, scenario config.Scenario) (Page, error)

// BatchProcessor runs multiple scenarios concurrently.
// It uses errgroup to manage goroutines and respect the concurrency limit.
type BatchProcessor struct {
	// newPage opens one page per scenario.
	newPage PageFactory

	// opts are passed to Build for every scenario.
	opts BuildOptions

	// concurrency is the maximum number of scenarios running at once.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger

	// results stores completed run reports in job order.
	results []*model.RunReport
	mu      sync.Mutex
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent scenarios.
// Non-positive values keep the default of one.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithBuildOptions sets the options used to build each scenario's pipeline.
func WithBuildOptions(opts BuildOptions) BatchOption {
	return func(b *BatchProcessor) {
		b.opts = opts
	}
}

// NewBatchProcessor creates a new BatchProcessor. newPage is called once
// per scenario; the page is closed when the scenario finishes.
func NewBatchProcessor(newPage PageFactory, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		newPage:     newPage,
		concurrency: config.DefaultConcurrency,
		results:     make([]*model.RunReport, 0),
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	if bp.opts.Logger == nil {
		bp.opts.Logger = bp.logger
	}

	return bp
}

// Run executes a single scenario and returns its finalized report.
// Build, page and step failures are all recorded on the report.
func (bp *BatchProcessor) Run(ctx context.Context, job Job) *model.RunReport {
	report := model.NewRunReport(job.Name, ScenarioURL(job.Scenario, bp.opts.URLOverride))
	defer report.Finalize()

	p, err := Build(job.Name, job.Scenario, bp.opts)
	if err != nil {
		report.Fail(err)
		return report
	}

	page, err := bp.newPage(ctx, job.Scenario)
	if err != nil {
		report.Fail(err)
		return report
	}
	defer func() {
		if err := page.Close(); err != nil {
			bp.logger.Debug("failed to close page", "scenario", job.Name, "error", err)
		}
	}()

	if err := p.Execute(ctx, page, report); err != nil {
		bp.logger.Warn("scenario failed",
			"scenario", job.Name,
			"error", err,
		)
	}

	return report
}

// ProcessBatch runs the jobs with the configured concurrency.
//
// Reports are returned in job order. A scenario failure never stops the
// others; the error return is only set when ctx was cancelled, in which case
// jobs that never started have nil reports.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, jobs []Job) ([]*model.RunReport, error) {
	bp.logger.Info("starting batch processing",
		"total_scenarios", len(jobs),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()

	bp.mu.Lock()
	bp.results = make([]*model.RunReport, len(jobs))
	bp.mu.Unlock()

	err := bp.ProcessBatchWithCallback(ctx, jobs, func(report *model.RunReport, index int) {
		bp.mu.Lock()
		bp.results[index] = report
		bp.mu.Unlock()
	})

	bp.logger.Info("batch processing complete",
		"total_scenarios", len(jobs),
		"elapsed", time.Since(startTime),
	)

	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.results, err
}

// ProcessBatchWithCallback runs the jobs and calls callback for each
// finished scenario with its index in jobs. The callback is called from the
// goroutine that ran the scenario, so it must be safe for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	jobs []Job,
	callback func(report *model.RunReport, index int),
) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, job := range jobs {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			bp.logger.Info("running scenario",
				"scenario", job.Name,
				"index", i+1,
				"total", len(jobs),
			)

			report := bp.Run(ctx, job)
			callback(report, i)

			bp.logger.Info("scenario finished",
				"scenario", job.Name,
				"status", report.Status,
			)
			return nil
		})
	}

	return g.Wait()
}
