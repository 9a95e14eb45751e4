package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/ngoiyaeric/queuelab/internal/browser"
	"github.com/ngoiyaeric/queuelab/internal/model"
)

// Step defines the interface that all pipeline steps must implement.
// Steps are executed in sequence against one page, each receiving the
// report accumulated by the previous steps.
type Step interface {
	// Do executes the step. Results other than pass/fail (artifacts,
	// observations) are recorded on report. A returned error fails the step.
	Do(ctx context.Context, page Page, report *model.RunReport) error

	// Name returns the step's name for logging purposes.
	Name() string

	// Target describes what the step acts on, for logs and reports.
	Target() string
}

// Catcher is implemented by steps whose failure is logged and recorded but
// does not stop the pipeline or fail the run.
type Catcher interface {
	Caught() bool
}

// Stopper is implemented by caught steps whose failure ends the run early.
// The run still passes.
type Stopper interface {
	StopsRun() bool
}

// Pipeline orchestrates the execution of multiple steps.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// continueOnError keeps executing after a failed step.
	continueOnError bool

	// catchTimeouts ends the run without failing it when a step times out.
	catchTimeouts bool

	// errorScreenshot, when set, is where a full-page screenshot is written
	// after a step fails.
	errorScreenshot string

	// outputDir is prepended to relative artifact paths.
	outputDir string

	// devServerLog is printed when a navigation fails.
	devServerLog string
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to continue execution
// even when a step fails. Failed steps are logged and recorded in the
// report, and the run still ends up failed.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// WithCatchTimeouts makes a step timeout end the run early without failing
// it. The step is recorded as caught and the error screenshot, if any, is
// still taken. Other errors are unaffected.
func WithCatchTimeouts(catch bool) Option {
	return func(p *Pipeline) {
		p.catchTimeouts = catch
	}
}

// WithErrorScreenshot captures a full-page screenshot to path when a step
// fails. Failures to take it are logged and otherwise ignored.
func WithErrorScreenshot(path string) Option {
	return func(p *Pipeline) {
		p.errorScreenshot = path
	}
}

// WithOutputDir sets the directory for the error screenshot.
func WithOutputDir(dir string) Option {
	return func(p *Pipeline) {
		p.outputDir = dir
	}
}

// WithDevServerLog names a log file whose tail is logged and recorded when
// a navigation fails.
func WithDevServerLog(path string) Option {
	return func(p *Pipeline) {
		p.devServerLog = path
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps in sequence on page.
//
// Cancellation is checked before each step; a running step is bounded by its
// own timeout. Every step gets a StepResult; steps after a fatal failure are
// recorded as skipped. Returns the error that stopped the run, or nil.
// With continue-on-error the first failure is returned after all steps ran.
func (p *Pipeline) Execute(ctx context.Context, page Page, report *model.RunReport) error {
	var firstErr error

	for i, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"reason", ctx.Err(),
			)
			p.skipRemaining(report, p.steps[i:])
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				report.TimedOut = true
			}
			report.Fail(ctx.Err())
			return ctx.Err()
		default:
		}

		p.logger.Info("executing step",
			"step", step.Name(),
			"target", step.Target(),
		)

		start := time.Now()
		err := step.Do(ctx, page, report)
		result := model.StepResult{
			Name:     step.Name(),
			Target:   step.Target(),
			Status:   model.StatusPassed,
			Duration: time.Since(start),
		}

		switch {
		case err == nil:
			p.logger.Debug("step completed",
				"step", step.Name(),
				"duration", result.Duration,
			)
			report.AddStep(result)
			continue

		case errors.Is(err, ErrSkipped):
			p.logger.Info("optional step skipped",
				"step", step.Name(),
				"target", step.Target(),
			)
			result.Status = model.StatusSkipped
			report.Observe(step.Name()+" "+step.Target(), "not found")
			report.AddStep(result)
			continue
		}

		result.Status = model.StatusFailed
		if errors.Is(err, browser.ErrTimeout) {
			result.Status = model.StatusTimedOut
		}
		result.Error = err.Error()

		if c, ok := step.(Catcher); ok && c.Caught() {
			result.Caught = true
			report.AddStep(result)
			if isNavigation(step) {
				p.recordDevServerLog(report)
			}
			if s, ok := step.(Stopper); ok && s.StopsRun() {
				p.logger.Warn("step failed, stopping",
					"step", step.Name(),
					"error", err,
				)
				report.Observe("stopped "+step.Target(), err.Error())
				p.skipRemaining(report, p.steps[i+1:])
				return nil
			}
			p.logger.Warn("step failed, continuing",
				"step", step.Name(),
				"error", err,
			)
			continue
		}

		if p.catchTimeouts && result.Status == model.StatusTimedOut {
			p.logger.Warn("step timed out, stopping",
				"step", step.Name(),
				"error", err,
			)
			result.Caught = true
			report.AddStep(result)
			report.Observe("timeout "+step.Target(), err.Error())
			if isNavigation(step) {
				p.recordDevServerLog(report)
			}
			p.captureErrorScreenshot(ctx, page, report)
			p.skipRemaining(report, p.steps[i+1:])
			return nil
		}

		p.logger.Error("step failed",
			"step", step.Name(),
			"error", err,
		)
		report.AddStep(result)
		if result.Status == model.StatusTimedOut {
			report.TimedOut = true
		}
		if firstErr == nil {
			firstErr = err
			report.Fail(err)
		}

		if isNavigation(step) {
			p.recordDevServerLog(report)
		}
		p.captureErrorScreenshot(ctx, page, report)

		if !p.continueOnError {
			p.skipRemaining(report, p.steps[i+1:])
			return err
		}
	}

	return firstErr
}

// skipRemaining records steps that never ran.
func (p *Pipeline) skipRemaining(report *model.RunReport, steps []Step) {
	for _, step := range steps {
		report.AddStep(model.StepResult{
			Name:   step.Name(),
			Target: step.Target(),
			Status: model.StatusSkipped,
		})
	}
}

// captureErrorScreenshot writes the diagnostic screenshot, if configured.
// The page may be in any state, so every failure here is only logged.
func (p *Pipeline) captureErrorScreenshot(ctx context.Context, page Page, report *model.RunReport) {
	if p.errorScreenshot == "" {
		return
	}

	// The run context may already be past its deadline; the screenshot gets
	// its own short budget.
	shotCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), errorScreenshotTimeout)
	defer cancel()

	data, err := page.Screenshot(shotCtx, true)
	if err != nil {
		p.logger.Warn("failed to capture error screenshot", "error", err)
		return
	}

	path, err := writeArtifact(p.outputDir, p.errorScreenshot, data)
	if err != nil {
		p.logger.Warn("failed to write error screenshot", "path", path, "error", err)
		return
	}

	report.AddArtifact(model.NewArtifact(model.ArtifactErrorScreenshot, path, data))
	p.logger.Warn("error screenshot saved", "path", path)
}

// recordDevServerLog logs and records the tail of the dev server log.
func (p *Pipeline) recordDevServerLog(report *model.RunReport) {
	if p.devServerLog == "" {
		return
	}

	tail, err := readTail(p.devServerLog, devServerLogTail)
	if err != nil {
		p.logger.Warn("failed to read dev server log", "path", p.devServerLog, "error", err)
		return
	}

	p.logger.Error("dev server log", "path", p.devServerLog, "tail", tail)
	report.Observe("dev-server-log", tail)
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
