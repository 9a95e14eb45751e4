package config

import "time"

// User agents used by the mobile scenarios.
const (
	iPhoneOS11UserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 11_0 like Mac OS X) AppleWebKit/604.1.38 (KHTML, like Gecko) Version/11.0 Mobile/15E148 Safari/604.1"
	iPhoneOS14UserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 14_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/14.0.3 Mobile/15E148 Safari/604.1"
)

// Shared selectors and paths.
const (
	sphereSelector       = "[data-testid='sphere']"
	logoSelector         = ".h-8.w-auto"
	verificationShot     = "jules-scratch/verification/verification.png"
	verificationErrShot  = "jules-scratch/verification/error.png"
	partnersSectionText  = "Our trusted partners"
	blogFluidityIndexURL = "/blog/fluidity-index"
)

// tickerWidthScript returns the rendered width of the logo ticker track.
const tickerWidthScript = `() => {
	const section = [...document.querySelectorAll('section')].find(s => s.textContent.includes('Our trusted partners'));
	const el = section ? section.querySelector('div.w-max') : null;
	return el ? el.getBoundingClientRect().width : 0;
}`

// tickerSpansScript returns the number of spans inside the logo ticker track.
const tickerSpansScript = `() => {
	const section = [...document.querySelectorAll('section')].find(s => s.textContent.includes('Our trusted partners'));
	const el = section ? section.querySelector('div.w-max') : null;
	return el ? el.querySelectorAll('span').length : 0;
}`

// Builtin returns the configuration used when no .queuelab file exists.
// It reproduces the verification procedures and asset conversions the
// project has relied on so far.
func Builtin() *File {
	return &File{
		Scenarios: map[string]Scenario{
			"hero-click": {
				Description: "Click the hero heading and capture the animation",
				URL:         "http://localhost:3000",
				Steps: []StepSpec{
					{Action: ActionWaitSelector, Selector: "h1", State: StateVisible},
					{Action: ActionClick, Selector: "h1"},
					{Action: ActionWait, Duration: 2 * time.Second},
					{Action: ActionScreenshot, Path: "screenshot.png"},
				},
			},
			"blog-final": {
				Description: "Capture the fluidity index blog post",
				URL:         "http://localhost:3009" + blogFluidityIndexURL,
				Steps: []StepSpec{
					{Action: ActionWait, Duration: 2 * time.Second},
					{Action: ActionScreenshot, Path: "blog-fluidity-index-page-final.png"},
				},
			},
			"blog-animations": {
				Description: "Capture the blog post after all animations settled",
				URL:         "http://localhost:3004" + blogFluidityIndexURL,
				Steps: []StepSpec{
					{Action: ActionWait, Duration: 12 * time.Second},
					{Action: ActionScreenshot, Path: "blog_screenshot_final.png"},
				},
			},
			"logo-ticker-mobile": {
				Description: "Reproduce the logo ticker on a small phone and measure the logos",
				URL:         "http://localhost:3001",
				Viewport:    &Viewport{Width: 375, Height: 667},
				UserAgent:   iPhoneOS11UserAgent,
				Mobile:      true,
				Timeout:     60 * time.Second,
				Steps: []StepSpec{
					// An unreachable dev server ends the run without failing it.
					{Action: ActionNavigate, Catch: true, Stop: true},
					{Action: ActionWait, Duration: 5 * time.Second},
					{Action: ActionScreenshot, Path: "logo_ticker_repro_mobile.png"},
					{Action: ActionCount, Name: "logos", Selector: logoSelector},
					{Action: ActionBoundingBox, Name: "logo", Selector: logoSelector, Limit: 3},
					{Action: ActionVisible, Name: "first-logo-visible", Selector: logoSelector},
				},
			},
			"mobile-ticker": {
				Description: "Capture the partner ticker section on an iPhone 12 viewport",
				Viewport:    &Viewport{Width: 390, Height: 844},
				UserAgent:   iPhoneOS14UserAgent,
				Mobile:      true,
				Timeout:     60 * time.Second,
				Steps: []StepSpec{
					{Action: ActionNavigate, URL: "http://localhost:3002", Until: UntilNetworkIdle, Catch: true},
					{Action: ActionWait, Duration: 5 * time.Second},
					{Action: ActionScroll, Selector: "section", HasText: partnersSectionText, Optional: true},
					{Action: ActionScreenshot, Selector: "section", HasText: partnersSectionText, Path: "mobile_ticker.png", Optional: true},
					{Action: ActionEval, Name: "ticker-width", Script: tickerWidthScript},
					{Action: ActionEval, Name: "ticker-spans", Script: tickerSpansScript},
				},
			},
			"sphere-animation": {
				Description:     "Click the sphere and wait for the animation",
				URL:             "http://localhost:3000",
				OnError:         OnErrorScreenshot,
				ErrorScreenshot: verificationErrShot,
				Steps: []StepSpec{
					{Action: ActionWaitSelector, Selector: sphereSelector, State: StateVisible},
					{Action: ActionClick, Selector: sphereSelector, Force: true},
					{Action: ActionWaitSelector, Selector: "svg", State: StateVisible},
					{Action: ActionScreenshot, Path: verificationShot},
				},
			},
			"homepage-idle": {
				Description:  "Capture the homepage once the network is idle",
				Timeout:      5 * time.Second,
				DevServerLog: "dev_server.log",
				Steps: []StepSpec{
					{Action: ActionNavigate, URL: "http://localhost:3000"},
					{Action: ActionWaitLoad, Until: UntilNetworkIdle, Timeout: DefaultNavigationTimeout},
					{Action: ActionScreenshot, Path: verificationShot},
				},
			},
			"careers-form": {
				Description: "Check that the careers form keeps its values across a reload",
				URL:         "http://localhost:3001/careers",
				Steps: []StepSpec{
					{Action: ActionExpectVisible, Selector: "form"},
					{Action: ActionFill, Label: "What is your email address? *", Value: "test@example.com"},
					{Action: ActionCheck, Label: "Engineering"},
					{Action: ActionFill, Label: "Evidence of Exceptional Ability *", Value: "This is a test message."},
					{Action: ActionReload},
					{Action: ActionExpectValue, Label: "What is your email address? *", Value: "test@example.com"},
					{Action: ActionExpectChecked, Label: "Engineering"},
					{Action: ActionExpectValue, Label: "Evidence of Exceptional Ability *", Value: "This is a test message."},
					{Action: ActionScreenshot, Path: verificationShot},
				},
			},
			"purple-planet": {
				Description: "Check that the hero planet is purple",
				URL:         "http://localhost:3000",
				Steps: []StepSpec{
					{Action: ActionExpectVisible, Selector: "div.bg-purple-500"},
					{Action: ActionScreenshot, Path: verificationShot},
				},
			},
			"qcx-build": {
				Description: "Click the sphere and wait for the QCX build section",
				URL:         "http://localhost:3000",
				Steps: []StepSpec{
					{Action: ActionClick, Selector: sphereSelector, Force: true},
					{Action: ActionWaitSelector, Selector: "#qcx-build", State: StateVisible},
					{Action: ActionScreenshot, Path: verificationShot},
				},
			},
		},
		Assets: &AssetsFile{Jobs: DefaultAssetJobs()},
	}
}
