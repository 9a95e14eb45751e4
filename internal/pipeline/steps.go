package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/ngoiyaeric/queuelab/internal/browser"
	"github.com/ngoiyaeric/queuelab/internal/log"
	"github.com/ngoiyaeric/queuelab/internal/model"
	"github.com/ngoiyaeric/queuelab/internal/snapshot"
)

// pollInterval is how often expect_* steps re-read the page.
const pollInterval = 100 * time.Millisecond

// elementStep holds what every element step shares.
type elementStep struct {
	loc      browser.Locator
	timeout  time.Duration
	optional bool
}

// Target returns the locator.
func (e elementStep) Target() string {
	return e.loc.String()
}

// present returns ErrSkipped when the step is optional and the element is
// not on the page right now. Required steps always proceed and let the
// browser wait for the element.
func (e elementStep) present(ctx context.Context, page Page) error {
	if !e.optional {
		return nil
	}
	n, err := page.Count(ctx, e.loc)
	if err != nil {
		return err
	}
	if n <= e.loc.Nth {
		return ErrSkipped
	}
	return nil
}

// NavigateStep opens a URL and waits for it to load.
type NavigateStep struct {
	URL     string
	Until   string
	Timeout time.Duration
}

// Name returns the step name.
func (s *NavigateStep) Name() string { return "navigate" }

// Target returns the URL.
func (s *NavigateStep) Target() string { return s.URL }

// Do executes the navigation.
func (s *NavigateStep) Do(ctx context.Context, page Page, report *model.RunReport) error {
	if report.URL == "" {
		report.URL = s.URL
	}
	return page.Navigate(ctx, s.URL, s.Until, s.Timeout)
}

// WaitSelectorStep waits for an element to reach a state.
type WaitSelectorStep struct {
	elementStep
	State string
}

// Name returns the step name.
func (s *WaitSelectorStep) Name() string { return "wait_selector" }

// Do waits for the element.
func (s *WaitSelectorStep) Do(ctx context.Context, page Page, _ *model.RunReport) error {
	if err := s.present(ctx, page); err != nil {
		return err
	}
	return page.WaitFor(ctx, s.loc, s.State, s.timeout)
}

// SleepStep waits a fixed duration, for animations that expose no
// readiness signal.
type SleepStep struct {
	Duration time.Duration
}

// Name returns the step name.
func (s *SleepStep) Name() string { return "wait" }

// Target returns the duration.
func (s *SleepStep) Target() string { return s.Duration.String() }

// Do sleeps unless ctx ends first.
func (s *SleepStep) Do(ctx context.Context, _ Page, _ *model.RunReport) error {
	timer := time.NewTimer(s.Duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// WaitLoadStep waits for the current document to reach a load state.
type WaitLoadStep struct {
	Until   string
	Timeout time.Duration
}

// Name returns the step name.
func (s *WaitLoadStep) Name() string { return "wait_load" }

// Target returns the load state.
func (s *WaitLoadStep) Target() string { return s.Until }

// Do waits for the load state.
func (s *WaitLoadStep) Do(ctx context.Context, page Page, _ *model.RunReport) error {
	return page.WaitLoad(ctx, s.Until, s.Timeout)
}

// ClickStep clicks an element.
type ClickStep struct {
	elementStep
	Force bool
}

// Name returns the step name.
func (s *ClickStep) Name() string { return "click" }

// Do clicks the element.
func (s *ClickStep) Do(ctx context.Context, page Page, _ *model.RunReport) error {
	if err := s.present(ctx, page); err != nil {
		return err
	}
	return page.Click(ctx, s.loc, s.Force, s.timeout)
}

// FillStep types a value into a form control.
type FillStep struct {
	elementStep
	Value  string
	logger *slog.Logger
}

// Name returns the step name.
func (s *FillStep) Name() string { return "fill" }

// Do fills the control.
func (s *FillStep) Do(ctx context.Context, page Page, _ *model.RunReport) error {
	if err := s.present(ctx, page); err != nil {
		return err
	}
	s.logger.Debug("filling field",
		"field", s.loc.String(),
		"value", log.MaskFormValue(s.loc.String(), s.Value),
	)
	return page.Fill(ctx, s.loc, s.Value, s.timeout)
}

// CheckStep checks a checkbox or radio button.
type CheckStep struct {
	elementStep
}

// Name returns the step name.
func (s *CheckStep) Name() string { return "check" }

// Do checks the control.
func (s *CheckStep) Do(ctx context.Context, page Page, _ *model.RunReport) error {
	if err := s.present(ctx, page); err != nil {
		return err
	}
	return page.Check(ctx, s.loc, s.timeout)
}

// ReloadStep reloads the page.
type ReloadStep struct {
	Timeout time.Duration
}

// Name returns the step name.
func (s *ReloadStep) Name() string { return "reload" }

// Target returns an empty target.
func (s *ReloadStep) Target() string { return "" }

// Do reloads the page.
func (s *ReloadStep) Do(ctx context.Context, page Page, _ *model.RunReport) error {
	return page.Reload(ctx, s.Timeout)
}

// ScrollStep scrolls an element into view.
type ScrollStep struct {
	elementStep
}

// Name returns the step name.
func (s *ScrollStep) Name() string { return "scroll" }

// Do scrolls to the element.
func (s *ScrollStep) Do(ctx context.Context, page Page, _ *model.RunReport) error {
	if err := s.present(ctx, page); err != nil {
		return err
	}
	return page.ScrollIntoView(ctx, s.loc, s.timeout)
}

// ScreenshotStep captures the page, or one element, to a PNG file. An
// existing file at the path is overwritten.
type ScreenshotStep struct {
	elementStep
	Path      string
	FullPage  bool
	OutputDir string
}

// Name returns the step name.
func (s *ScreenshotStep) Name() string { return "screenshot" }

// Target returns the output path.
func (s *ScreenshotStep) Target() string {
	if s.loc.IsZero() {
		return s.Path
	}
	return s.loc.String() + " -> " + s.Path
}

// Do takes the screenshot and records it as an artifact.
func (s *ScreenshotStep) Do(ctx context.Context, page Page, report *model.RunReport) error {
	var (
		data []byte
		err  error
	)
	if s.loc.IsZero() {
		data, err = page.Screenshot(ctx, s.FullPage)
	} else {
		if err := s.present(ctx, page); err != nil {
			return err
		}
		data, err = page.ElementScreenshot(ctx, s.loc, s.timeout)
	}
	if err != nil {
		return err
	}

	path, err := writeArtifact(s.OutputDir, s.Path, data)
	if err != nil {
		return err
	}
	report.AddArtifact(model.NewArtifact(model.ArtifactScreenshot, path, data))
	return nil
}

// ExpectVisibleStep asserts that an element becomes visible.
type ExpectVisibleStep struct {
	elementStep
	Label string
}

// Name returns the step name.
func (s *ExpectVisibleStep) Name() string { return "expect_visible" }

// Do waits for visibility and fails with ErrExpectationFailed on timeout.
func (s *ExpectVisibleStep) Do(ctx context.Context, page Page, report *model.RunReport) error {
	if err := s.present(ctx, page); err != nil {
		return err
	}
	if err := page.WaitFor(ctx, s.loc, browser.StateVisible, s.timeout); err != nil {
		return fmt.Errorf("%w: %s is not visible: %w", ErrExpectationFailed, s.loc, err)
	}
	if s.Label != "" {
		report.Observe(s.Label, "true")
	}
	return nil
}

// VisibleStep records whether an element is visible right now. It never
// fails on an absent or hidden element.
type VisibleStep struct {
	elementStep
	Label string
}

// Name returns the step name.
func (s *VisibleStep) Name() string { return "visible" }

// Do records the visibility.
func (s *VisibleStep) Do(ctx context.Context, page Page, report *model.RunReport) error {
	visible, err := page.Visible(ctx, s.loc)
	if err != nil {
		return err
	}
	report.Observe(observationKey(s.Label, "visible", s.loc), strconv.FormatBool(visible))
	return nil
}

// ExpectValueStep asserts the value of a form control, re-reading it until
// it matches or the timeout passes.
type ExpectValueStep struct {
	elementStep
	Expected string
}

// Name returns the step name.
func (s *ExpectValueStep) Name() string { return "expect_value" }

// Do polls the value.
func (s *ExpectValueStep) Do(ctx context.Context, page Page, _ *model.RunReport) error {
	if err := s.present(ctx, page); err != nil {
		return err
	}

	var last string
	err := poll(ctx, s.timeout, func(ctx context.Context) (bool, error) {
		v, err := page.Value(ctx, s.loc, s.timeout)
		if err != nil {
			return false, err
		}
		last = v
		return v == s.Expected, nil
	})
	if err != nil {
		return err
	}
	if last != s.Expected {
		return fmt.Errorf("%w: %s has value %q, expected %q", ErrExpectationFailed, s.loc,
			log.MaskFormValue(s.loc.String(), last), log.MaskFormValue(s.loc.String(), s.Expected))
	}
	return nil
}

// ExpectCheckedStep asserts that a checkbox or radio is checked.
type ExpectCheckedStep struct {
	elementStep
}

// Name returns the step name.
func (s *ExpectCheckedStep) Name() string { return "expect_checked" }

// Do polls the checked state.
func (s *ExpectCheckedStep) Do(ctx context.Context, page Page, _ *model.RunReport) error {
	if err := s.present(ctx, page); err != nil {
		return err
	}

	var checked bool
	err := poll(ctx, s.timeout, func(ctx context.Context) (bool, error) {
		c, err := page.Checked(ctx, s.loc, s.timeout)
		checked = c
		return c, err
	})
	if err != nil {
		return err
	}
	if !checked {
		return fmt.Errorf("%w: %s is not checked", ErrExpectationFailed, s.loc)
	}
	return nil
}

// ExpectCountStep asserts the number of matching elements.
type ExpectCountStep struct {
	elementStep
	Expected int
}

// Name returns the step name.
func (s *ExpectCountStep) Name() string { return "expect_count" }

// Do polls the count.
func (s *ExpectCountStep) Do(ctx context.Context, page Page, report *model.RunReport) error {
	var n int
	err := poll(ctx, s.timeout, func(ctx context.Context) (bool, error) {
		c, err := page.Count(ctx, s.loc)
		n = c
		return c == s.Expected, err
	})
	if err != nil {
		return err
	}
	report.Observe(observationKey("", "count", s.loc), strconv.Itoa(n))
	if n != s.Expected {
		return fmt.Errorf("%w: %s matched %d elements, expected %d", ErrExpectationFailed, s.loc, n, s.Expected)
	}
	return nil
}

// CountStep records the number of matching elements.
type CountStep struct {
	elementStep
	Label string
}

// Name returns the step name.
func (s *CountStep) Name() string { return "count" }

// Do counts the matches.
func (s *CountStep) Do(ctx context.Context, page Page, report *model.RunReport) error {
	n, err := page.Count(ctx, s.loc)
	if err != nil {
		return err
	}
	report.Observe(observationKey(s.Label, "count", s.loc), strconv.Itoa(n))
	return nil
}

// BoundingBoxStep records the boxes of the first Limit matches.
type BoundingBoxStep struct {
	elementStep
	Label string
	Limit int
}

// Name returns the step name.
func (s *BoundingBoxStep) Name() string { return "bounding_box" }

// Do records one observation per box; unrendered elements record "null".
func (s *BoundingBoxStep) Do(ctx context.Context, page Page, report *model.RunReport) error {
	n, err := page.Count(ctx, s.loc)
	if err != nil {
		return err
	}
	if s.optional && n == 0 {
		return ErrSkipped
	}

	limit := s.Limit
	if limit <= 0 {
		limit = 1
	}
	key := observationKey(s.Label, "box", s.loc)

	for i := 0; i < min(n, limit); i++ {
		loc := s.loc
		loc.Nth = i
		box, err := page.BoundingBox(ctx, loc, s.timeout)
		if err != nil {
			return err
		}
		value := "null"
		if box != nil {
			value = box.String()
		}
		report.Observe(fmt.Sprintf("%s[%d]", key, i), value)
	}
	return nil
}

// EvalStep evaluates a script and records its result.
type EvalStep struct {
	Label  string
	Script string
}

// Name returns the step name.
func (s *EvalStep) Name() string { return "eval" }

// Target returns the observation name.
func (s *EvalStep) Target() string { return s.Label }

// Do evaluates the script.
func (s *EvalStep) Do(ctx context.Context, page Page, report *model.RunReport) error {
	value, err := page.Eval(ctx, s.Script)
	if err != nil {
		return err
	}
	label := s.Label
	if label == "" {
		label = "eval"
	}
	report.Observe(label, value)
	return nil
}

// SnapshotStep parses the rendered DOM and records its summary. When
// Contains is set the step fails unless the visible text includes it.
type SnapshotStep struct {
	Label    string
	Classes  []string
	Contains string
}

// Name returns the step name.
func (s *SnapshotStep) Name() string { return "snapshot" }

// Target returns the observation prefix.
func (s *SnapshotStep) Target() string { return s.prefix() }

func (s *SnapshotStep) prefix() string {
	if s.Label != "" {
		return s.Label
	}
	return "snapshot"
}

// Do reads and parses the document.
func (s *SnapshotStep) Do(ctx context.Context, page Page, report *model.RunReport) error {
	doc, err := page.HTML(ctx)
	if err != nil {
		return err
	}

	parser, err := snapshot.NewParser(report.URL, s.Classes)
	if err != nil {
		return fmt.Errorf("snapshot base url: %w", err)
	}
	snap, err := parser.Parse(strings.NewReader(doc))
	if err != nil {
		return fmt.Errorf("parse snapshot: %w", err)
	}

	for _, kv := range snap.Stats() {
		report.Observe(s.prefix()+"."+kv[0], kv[1])
	}

	if s.Contains != "" && !snap.ContainsText(s.Contains) {
		return fmt.Errorf("%w: %q", ErrTextNotFound, s.Contains)
	}
	return nil
}

// caughtStep wraps a step whose failure must not stop the scenario.
type caughtStep struct {
	Step
	stop bool
}

// Caught implements Catcher.
func (c *caughtStep) Caught() bool { return true }

// StopsRun implements Stopper.
func (c *caughtStep) StopsRun() bool { return c.stop }

// isNavigation reports whether step (possibly wrapped) is a navigation.
func isNavigation(step Step) bool {
	if c, ok := step.(*caughtStep); ok {
		step = c.Step
	}
	_, ok := step.(*NavigateStep)
	return ok
}

// observationKey names an observation by label, falling back to the kind
// and locator.
func observationKey(label, kind string, loc browser.Locator) string {
	if label != "" {
		return label
	}
	return kind + " " + loc.String()
}

// poll calls check until it reports done, returns an error, or timeout
// passes. Reaching the timeout is not an error; the caller inspects the last
// observed state.
func poll(ctx context.Context, timeout time.Duration, check func(context.Context) (bool, error)) error {
	deadline := time.Now().Add(timeout)
	for {
		done, err := check(ctx)
		if err != nil || done {
			return err
		}
		if timeout <= 0 || !time.Now().Before(deadline) {
			return nil
		}

		timer := time.NewTimer(pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
