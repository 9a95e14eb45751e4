package pipeline

import (
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/ngoiyaeric/queuelab/internal/browser"
	"github.com/ngoiyaeric/queuelab/internal/config"
)

// BuildOptions are the run-wide settings applied while building pipelines.
type BuildOptions struct {
	// OutputDir is prepended to relative screenshot paths.
	OutputDir string

	// DefaultTimeout bounds navigations and waits when neither the step nor
	// the scenario sets a timeout.
	DefaultTimeout time.Duration

	// URLOverride replaces the origin of every scenario URL.
	URLOverride string

	// Logger is passed to the pipeline and its steps.
	Logger *slog.Logger
}

func (o BuildOptions) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

func (o BuildOptions) defaultTimeout() time.Duration {
	if o.DefaultTimeout <= 0 {
		return config.DefaultNavigationTimeout
	}
	return o.DefaultTimeout
}

// Build turns a merged scenario into a pipeline. When the steps do not start
// with a navigation, one is synthesized from the scenario URL.
func Build(name string, scenario config.Scenario, opts BuildOptions) (*Pipeline, error) {
	if err := scenario.Validate(name); err != nil {
		return nil, err
	}

	logger := opts.logger().With("scenario", name)
	pipelineOpts := []Option{
		WithLogger(logger),
		WithOutputDir(opts.OutputDir),
		WithDevServerLog(scenario.DevServerLog),
	}
	switch scenario.OnError {
	case config.OnErrorScreenshot:
		path := scenario.ErrorScreenshot
		if path == "" {
			path = config.DefaultErrorScreenshot
		}
		pipelineOpts = append(pipelineOpts, WithErrorScreenshot(path), WithCatchTimeouts(true))
	case config.OnErrorContinue:
		pipelineOpts = append(pipelineOpts, WithContinueOnError(true))
	}
	p := New(pipelineOpts...)

	steps := scenario.Steps
	if len(steps) == 0 || steps[0].Action != config.ActionNavigate {
		steps = append([]config.StepSpec{{Action: config.ActionNavigate}}, steps...)
	}

	for i, spec := range steps {
		step, err := FromSpec(spec, scenario, opts)
		if err != nil {
			return nil, &config.StepError{Scenario: name, Index: i, Action: spec.Action, Err: err}
		}
		p.AddStep(step)
	}

	return p, nil
}

// FromSpec builds one step. Navigation steps without a URL use the
// scenario URL.
func FromSpec(spec config.StepSpec, scenario config.Scenario, opts BuildOptions) (Step, error) {
	timeout := config.EffectiveTimeout(spec, scenario, opts.defaultTimeout())
	el := elementStep{
		loc: browser.Locator{
			Selector: spec.Selector,
			HasText:  spec.HasText,
			Label:    spec.Label,
			Text:     spec.Text,
			Nth:      spec.Nth,
		},
		timeout:  timeout,
		optional: spec.Optional,
	}

	var step Step
	switch spec.Action {
	case config.ActionNavigate:
		target := spec.URL
		if target == "" {
			target = scenario.URL
		}
		resolved, err := OverrideOrigin(target, opts.URLOverride)
		if err != nil {
			return nil, err
		}
		step = &NavigateStep{URL: resolved, Until: spec.Until, Timeout: timeout}
	case config.ActionWaitSelector:
		state := spec.State
		if state == "" {
			state = config.StateVisible
		}
		step = &WaitSelectorStep{elementStep: el, State: state}
	case config.ActionWait:
		step = &SleepStep{Duration: spec.Duration}
	case config.ActionWaitLoad:
		step = &WaitLoadStep{Until: spec.Until, Timeout: timeout}
	case config.ActionClick:
		step = &ClickStep{elementStep: el, Force: spec.Force}
	case config.ActionFill:
		step = &FillStep{elementStep: el, Value: spec.Value, logger: opts.logger()}
	case config.ActionCheck:
		step = &CheckStep{elementStep: el}
	case config.ActionReload:
		step = &ReloadStep{Timeout: timeout}
	case config.ActionScroll:
		step = &ScrollStep{elementStep: el}
	case config.ActionScreenshot:
		step = &ScreenshotStep{elementStep: el, Path: spec.Path, FullPage: spec.FullPage, OutputDir: opts.OutputDir}
	case config.ActionExpectVisible:
		step = &ExpectVisibleStep{elementStep: el, Label: spec.Name}
	case config.ActionVisible:
		step = &VisibleStep{elementStep: el, Label: spec.Name}
	case config.ActionExpectValue:
		step = &ExpectValueStep{elementStep: el, Expected: spec.Value}
	case config.ActionExpectChecked:
		step = &ExpectCheckedStep{elementStep: el}
	case config.ActionExpectCount:
		if spec.Count == nil {
			return nil, fmt.Errorf("expect_count needs a count")
		}
		step = &ExpectCountStep{elementStep: el, Expected: *spec.Count}
	case config.ActionCount:
		step = &CountStep{elementStep: el, Label: spec.Name}
	case config.ActionBoundingBox:
		step = &BoundingBoxStep{elementStep: el, Label: spec.Name, Limit: spec.Limit}
	case config.ActionEval:
		step = &EvalStep{Label: spec.Name, Script: spec.Script}
	case config.ActionSnapshot:
		step = &SnapshotStep{Label: spec.Name, Classes: spec.Classes, Contains: spec.Value}
	default:
		return nil, fmt.Errorf("%w %q", config.ErrUnknownAction, spec.Action)
	}

	if spec.Catch {
		step = &caughtStep{Step: step, stop: spec.Stop}
	}
	return step, nil
}

// OverrideOrigin replaces the scheme and host of raw with those of
// override, keeping path, query and fragment. An empty override returns raw.
func OverrideOrigin(raw, override string) (string, error) {
	if override == "" {
		return raw, nil
	}

	base, err := url.Parse(override)
	if err != nil {
		return "", fmt.Errorf("invalid url override %q: %w", override, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return "", fmt.Errorf("invalid url override %q: scheme and host are required", override)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}
	u.Scheme = base.Scheme
	u.Host = base.Host
	return u.String(), nil
}

// ScenarioURL returns the URL a scenario navigates to first.
func ScenarioURL(scenario config.Scenario, override string) string {
	target := scenario.URL
	if len(scenario.Steps) > 0 && scenario.Steps[0].Action == config.ActionNavigate && scenario.Steps[0].URL != "" {
		target = scenario.Steps[0].URL
	}
	resolved, err := OverrideOrigin(target, override)
	if err != nil {
		return target
	}
	return resolved
}
