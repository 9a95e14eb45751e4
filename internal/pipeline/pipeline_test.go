package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ngoiyaeric/queuelab/internal/browser"
	"github.com/ngoiyaeric/queuelab/internal/model"
)

// mockStep is a test helper that implements the Step interface.
type mockStep struct {
	name      string
	doFunc    func(ctx context.Context, page Page, report *model.RunReport) error
	callCount int
}

// Do implements Step.Do.
func (m *mockStep) Do(ctx context.Context, page Page, report *model.RunReport) error {
	m.callCount++
	if m.doFunc != nil {
		return m.doFunc(ctx, page, report)
	}
	return nil
}

// Name implements Step.Name.
func (m *mockStep) Name() string {
	return m.name
}

// Target implements Step.Target.
func (m *mockStep) Target() string {
	return "#" + m.name
}

func failing(err error) func(context.Context, Page, *model.RunReport) error {
	return func(context.Context, Page, *model.RunReport) error { return err }
}

// TestPipelineNew tests the Pipeline constructor.
func TestPipelineNew(t *testing.T) {
	t.Parallel()

	t.Run("creates pipeline with default settings", func(t *testing.T) {
		t.Parallel()

		p := New()

		if p == nil {
			t.Fatal("expected non-nil pipeline")
		}
		if p.StepCount() != 0 {
			t.Errorf("expected 0 steps, got %d", p.StepCount())
		}
		if p.logger == nil {
			t.Error("expected default logger")
		}
	})

	t.Run("applies options", func(t *testing.T) {
		t.Parallel()

		p := New(
			WithContinueOnError(true),
			WithErrorScreenshot("error.png"),
			WithOutputDir("out"),
			WithDevServerLog("dev_server.log"),
		)

		if !p.continueOnError {
			t.Error("expected continueOnError to be true")
		}
		if p.errorScreenshot != "error.png" || p.outputDir != "out" || p.devServerLog != "dev_server.log" {
			t.Errorf("unexpected options %q %q %q", p.errorScreenshot, p.outputDir, p.devServerLog)
		}
	})
}

// TestPipelineAddStep tests adding steps to the pipeline.
func TestPipelineAddStep(t *testing.T) {
	t.Parallel()

	p := New()
	p.AddStep(&mockStep{name: "first"})
	p.AddSteps(&mockStep{name: "second"}, &mockStep{name: "third"})

	names := p.StepNames()
	expected := []string{"first", "second", "third"}
	if len(names) != len(expected) {
		t.Fatalf("expected %d steps, got %d", len(expected), len(names))
	}
	for i, name := range names {
		if name != expected[i] {
			t.Errorf("step %d: got %q, expected %q", i, name, expected[i])
		}
	}
}

// TestPipelineExecute tests pipeline execution.
func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("executes all steps in order and records results", func(t *testing.T) {
		t.Parallel()

		order := make([]string, 0)
		record := func(name string) func(context.Context, Page, *model.RunReport) error {
			return func(context.Context, Page, *model.RunReport) error {
				order = append(order, name)
				return nil
			}
		}

		p := New()
		p.AddSteps(
			&mockStep{name: "step-1", doFunc: record("step-1")},
			&mockStep{name: "step-2", doFunc: record("step-2")},
		)

		report := model.NewRunReport("hero-click", "http://localhost:3000")
		if err := p.Execute(context.Background(), newFakePage(t), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if strings.Join(order, ",") != "step-1,step-2" {
			t.Errorf("unexpected order %v", order)
		}
		if len(report.Steps) != 2 || report.Steps[1].Status != model.StatusPassed || report.Steps[1].Target != "#step-2" {
			t.Errorf("unexpected step results %+v", report.Steps)
		}
	})

	t.Run("stops on first error and skips the rest", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("boom")
		step3 := &mockStep{name: "step-3"}

		p := New()
		p.AddSteps(
			&mockStep{name: "step-1"},
			&mockStep{name: "step-2", doFunc: failing(boom)},
			step3,
		)

		report := model.NewRunReport("s", "")
		err := p.Execute(context.Background(), newFakePage(t), report)

		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
		if step3.callCount != 0 {
			t.Error("expected step-3 not to run")
		}
		if report.ErrorMessage != "boom" {
			t.Errorf("expected error recorded, got %q", report.ErrorMessage)
		}
		if len(report.Steps) != 3 || report.Steps[1].Status != model.StatusFailed || report.Steps[2].Status != model.StatusSkipped {
			t.Errorf("unexpected step results %+v", report.Steps)
		}

		report.Finalize()
		if report.Status != model.StatusFailed {
			t.Errorf("expected failed run, got %v", report.Status)
		}
	})

	t.Run("continues on error when configured", func(t *testing.T) {
		t.Parallel()

		first := errors.New("first")
		last := &mockStep{name: "last"}

		p := New(WithContinueOnError(true))
		p.AddSteps(
			&mockStep{name: "a", doFunc: failing(first)},
			&mockStep{name: "b", doFunc: failing(errors.New("second"))},
			last,
		)

		report := model.NewRunReport("s", "")
		err := p.Execute(context.Background(), newFakePage(t), report)

		if !errors.Is(err, first) {
			t.Errorf("expected first error returned, got %v", err)
		}
		if last.callCount != 1 {
			t.Error("expected last step to run")
		}
		if report.ErrorMessage != "first" {
			t.Errorf("expected first error recorded, got %q", report.ErrorMessage)
		}
	})

	t.Run("timeouts mark the run timed out", func(t *testing.T) {
		t.Parallel()

		timeout := fmt.Errorf("wait for svg: %w: %w", browser.ErrTimeout, context.DeadlineExceeded)

		p := New()
		p.AddStep(&mockStep{name: "wait", doFunc: failing(timeout)})

		report := model.NewRunReport("s", "")
		_ = p.Execute(context.Background(), newFakePage(t), report)
		report.Finalize()

		if !report.TimedOut || report.Status != model.StatusTimedOut {
			t.Errorf("expected timed out run, got %v (timedOut=%v)", report.Status, report.TimedOut)
		}
		if report.Steps[0].Status != model.StatusTimedOut {
			t.Errorf("expected timed out step, got %v", report.Steps[0].Status)
		}
	})

	t.Run("caught timeout stops the run without failing it", func(t *testing.T) {
		t.Parallel()

		timeout := fmt.Errorf("wait for svg: %w: %w", browser.ErrTimeout, context.DeadlineExceeded)
		after := &mockStep{name: "screenshot"}

		p := New(WithCatchTimeouts(true), WithErrorScreenshot("error.png"), WithOutputDir(t.TempDir()))
		p.AddSteps(&mockStep{name: "wait", doFunc: failing(timeout)}, after)

		report := model.NewRunReport("s", "")
		if err := p.Execute(context.Background(), newFakePage(t), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		report.Finalize()

		if report.Status != model.StatusPassed || report.TimedOut {
			t.Errorf("expected passed run, got %v (timedOut=%v)", report.Status, report.TimedOut)
		}
		if !report.Steps[0].Caught || report.Steps[0].Status != model.StatusTimedOut {
			t.Errorf("expected caught timed out step, got %+v", report.Steps[0])
		}
		if after.callCount != 0 || report.Steps[1].Status != model.StatusSkipped {
			t.Errorf("expected later steps skipped, got %+v", report.Steps[1])
		}
		if len(report.Artifacts) != 1 {
			t.Errorf("expected error screenshot, got %+v", report.Artifacts)
		}
	})

	t.Run("caught step that stops ends the run as passed", func(t *testing.T) {
		t.Parallel()

		refused := errors.New("net::ERR_CONNECTION_REFUSED")
		after := &mockStep{name: "wait"}

		p := New()
		p.AddSteps(&caughtStep{Step: &mockStep{name: "navigate", doFunc: failing(refused)}, stop: true}, after)

		report := model.NewRunReport("s", "")
		if err := p.Execute(context.Background(), newFakePage(t), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		report.Finalize()

		if report.Status != model.StatusPassed {
			t.Errorf("expected passed run, got %v", report.Status)
		}
		if !report.Steps[0].Caught || report.Steps[0].Error != refused.Error() {
			t.Errorf("expected caught step with its error, got %+v", report.Steps[0])
		}
		if after.callCount != 0 || report.Steps[1].Status != model.StatusSkipped {
			t.Errorf("expected later steps skipped, got %+v", report.Steps[1])
		}
	})

	t.Run("catching timeouts still fails on other errors", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("element is not clickable")
		p := New(WithCatchTimeouts(true))
		p.AddStep(&mockStep{name: "click", doFunc: failing(boom)})

		report := model.NewRunReport("s", "")
		if err := p.Execute(context.Background(), newFakePage(t), report); !errors.Is(err, boom) {
			t.Errorf("expected boom, got %v", err)
		}
		report.Finalize()

		if report.Status != model.StatusFailed {
			t.Errorf("expected failed run, got %v", report.Status)
		}
	})

	t.Run("skipped optional step does not fail", func(t *testing.T) {
		t.Parallel()

		p := New()
		p.AddSteps(
			&mockStep{name: "scroll", doFunc: failing(ErrSkipped)},
			&mockStep{name: "after"},
		)

		report := model.NewRunReport("s", "")
		if err := p.Execute(context.Background(), newFakePage(t), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		report.Finalize()

		if report.Status != model.StatusPassed {
			t.Errorf("expected passed, got %v", report.Status)
		}
		if report.Steps[0].Status != model.StatusSkipped {
			t.Errorf("expected skipped step, got %v", report.Steps[0].Status)
		}
		if v, ok := report.Observation("scroll #scroll"); !ok || v != "not found" {
			t.Errorf("expected not found observation, got %q (%v)", v, ok)
		}
	})

	t.Run("caught failure is recorded and execution continues", func(t *testing.T) {
		t.Parallel()

		after := &mockStep{name: "after"}
		p := New()
		p.AddSteps(
			&caughtStep{Step: &mockStep{name: "navigate", doFunc: failing(errors.New("net::ERR_CONNECTION_REFUSED"))}},
			after,
		)

		report := model.NewRunReport("s", "")
		if err := p.Execute(context.Background(), newFakePage(t), report); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		report.Finalize()

		if after.callCount != 1 {
			t.Error("expected later step to run")
		}
		if !report.Steps[0].Caught || report.Steps[0].Status != model.StatusFailed {
			t.Errorf("expected caught failure, got %+v", report.Steps[0])
		}
		if report.Status != model.StatusPassed {
			t.Errorf("expected run to pass, got %v", report.Status)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		step2 := &mockStep{name: "step-2"}

		p := New()
		p.AddSteps(
			&mockStep{name: "step-1", doFunc: func(context.Context, Page, *model.RunReport) error {
				cancel()
				return nil
			}},
			step2,
		)

		report := model.NewRunReport("s", "")
		err := p.Execute(ctx, newFakePage(t), report)

		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
		if step2.callCount != 0 {
			t.Error("expected step-2 not to run")
		}
		if report.TimedOut {
			t.Error("expected cancellation not to count as timeout")
		}
		if report.Steps[1].Status != model.StatusSkipped {
			t.Errorf("expected skipped step, got %v", report.Steps[1].Status)
		}
	})
}

// TestPipelineErrorScreenshot tests the diagnostic screenshot on failure.
func TestPipelineErrorScreenshot(t *testing.T) {
	t.Parallel()

	t.Run("writes screenshot and records artifact", func(t *testing.T) {
		t.Parallel()

		dir := t.TempDir()
		page := newFakePage(t)

		p := New(WithErrorScreenshot("verification/error.png"), WithOutputDir(dir))
		p.AddStep(&mockStep{name: "wait", doFunc: failing(errors.New("timeout"))})

		report := model.NewRunReport("sphere-animation", "")
		_ = p.Execute(context.Background(), page, report)

		path := filepath.Join(dir, "verification", "error.png")
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected error screenshot at %s: %v", path, err)
		}
		if len(report.Artifacts) != 1 || report.Artifacts[0].Kind != model.ArtifactErrorScreenshot {
			t.Fatalf("expected error screenshot artifact, got %+v", report.Artifacts)
		}
		if report.Artifacts[0].Width != 4 || report.Artifacts[0].Height != 3 {
			t.Errorf("unexpected dimensions %dx%d", report.Artifacts[0].Width, report.Artifacts[0].Height)
		}
		calls := page.Calls()
		if len(calls) != 1 || calls[0] != "screenshot full" {
			t.Errorf("expected a full page screenshot, got %v", calls)
		}
	})

	t.Run("screenshot failure keeps the original error", func(t *testing.T) {
		t.Parallel()

		page := newFakePage(t)
		page.shotErr = errors.New("target closed")
		boom := errors.New("boom")

		p := New(WithErrorScreenshot("error.png"), WithOutputDir(t.TempDir()))
		p.AddStep(&mockStep{name: "click", doFunc: failing(boom)})

		report := model.NewRunReport("s", "")
		if err := p.Execute(context.Background(), page, report); !errors.Is(err, boom) {
			t.Errorf("expected boom, got %v", err)
		}
		if len(report.Artifacts) != 0 {
			t.Errorf("expected no artifacts, got %+v", report.Artifacts)
		}
	})

	t.Run("no screenshot without the option", func(t *testing.T) {
		t.Parallel()

		page := newFakePage(t)
		p := New()
		p.AddStep(&mockStep{name: "click", doFunc: failing(errors.New("boom"))})

		_ = p.Execute(context.Background(), page, model.NewRunReport("s", ""))
		if len(page.Calls()) != 0 {
			t.Errorf("expected no page calls, got %v", page.Calls())
		}
	})
}

// TestPipelineDevServerLog tests the log dump after a failed navigation.
func TestPipelineDevServerLog(t *testing.T) {
	t.Parallel()

	logPath := filepath.Join(t.TempDir(), "dev_server.log")
	content := "ready - started server on 0.0.0.0:3000\nerror - Failed to compile ./src/app/page.tsx\n"
	if err := os.WriteFile(logPath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write log: %v", err)
	}

	page := newFakePage(t)
	page.navigateErr = errors.New("net::ERR_CONNECTION_REFUSED")

	p := New(WithDevServerLog(logPath))
	p.AddStep(&NavigateStep{URL: "http://localhost:3000"})

	report := model.NewRunReport("homepage-idle", "")
	_ = p.Execute(context.Background(), page, report)

	got, ok := report.Observation("dev-server-log")
	if !ok || !strings.HasSuffix(got, "Failed to compile ./src/app/page.tsx") {
		t.Errorf("expected dev server log tail, got %q", got)
	}
}

// TestReadTail tests reading the end of a log file.
func TestReadTail(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "log")
	if err := os.WriteFile(path, []byte("line one\nline two\nline three\n"), 0o600); err != nil {
		t.Fatalf("failed to write: %v", err)
	}

	t.Run("whole file when small", func(t *testing.T) {
		t.Parallel()
		got, err := readTail(path, 1024)
		if err != nil || got != "line one\nline two\nline three" {
			t.Errorf("unexpected tail %q (%v)", got, err)
		}
	})

	t.Run("starts at a line boundary when truncated", func(t *testing.T) {
		t.Parallel()
		got, err := readTail(path, 14)
		if err != nil || got != "line three" {
			t.Errorf("unexpected tail %q (%v)", got, err)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		if _, err := readTail(filepath.Join(t.TempDir(), "none"), 10); err == nil {
			t.Error("expected error for missing file")
		}
	})
}
