package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// Load conditions accepted by Navigate and WaitLoad.
const (
	UntilLoad        = "load"
	UntilNetworkIdle = "networkidle"
)

// Element states accepted by WaitFor.
const (
	StateVisible  = "visible"
	StateAttached = "attached"
	StateHidden   = "hidden"
)

// networkIdleWindow is how long no request may be in flight before the
// network counts as idle.
const networkIdleWindow = 500 * time.Millisecond

// closeTimeout bounds closing a tab and disposing its browser context.
const closeTimeout = 5 * time.Second

// Box is an element's bounding box in CSS pixels, relative to the viewport.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// String formats the box like a JavaScript object literal.
func (b Box) String() string {
	return fmt.Sprintf("{x: %g, y: %g, width: %g, height: %g}", b.X, b.Y, b.Width, b.Height)
}

// Page is a browser tab. Every method takes the caller's context and a
// timeout that bounds that single operation; a zero timeout means the
// context alone bounds it.
type Page struct {
	page       *rod.Page
	browserCtx *rod.Browser
	logger     *slog.Logger
}

// emulate applies the device profile.
func (p *Page) emulate(opts PageOptions) error {
	width, height := opts.Width, opts.Height
	if width <= 0 || height <= 0 {
		width, height = DefaultViewportWidth, DefaultViewportHeight
	}

	if err := p.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1,
		Mobile:            opts.Mobile,
	}); err != nil {
		return fmt.Errorf("set viewport: %w", err)
	}

	if opts.UserAgent != "" {
		if err := p.page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: opts.UserAgent}); err != nil {
			return fmt.Errorf("set user agent: %w", err)
		}
	}

	if opts.Mobile {
		if err := (proto.EmulationSetTouchEmulationEnabled{Enabled: true}).Call(p.page); err != nil {
			p.logger.Warn("touch emulation unavailable", "error", err)
		}
	}

	return nil
}

// scoped returns the page bound to ctx and timeout.
func (p *Page) scoped(ctx context.Context, timeout time.Duration) (*rod.Page, context.CancelFunc) {
	if timeout <= 0 {
		ctx, cancel := context.WithCancel(ctx)
		return p.page.Context(ctx), cancel
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return p.page.Context(ctx), cancel
}

// Navigate opens url and waits for the load condition (load by default).
func (p *Page) Navigate(ctx context.Context, url, until string, timeout time.Duration) error {
	pg, cancel := p.scoped(ctx, timeout)
	defer cancel()

	var waitIdle func()
	if until == UntilNetworkIdle {
		waitIdle = pg.WaitRequestIdle(networkIdleWindow, nil, nil, nil)
	}

	if err := pg.Navigate(url); err != nil {
		return wrapError("navigate", target(url), err)
	}
	if err := pg.WaitLoad(); err != nil {
		return wrapError("wait for load of", target(url), err)
	}
	if waitIdle != nil {
		waitIdle()
		if err := pg.GetContext().Err(); err != nil {
			return wrapError("wait for network idle of", target(url), err)
		}
	}
	return nil
}

// WaitLoad waits for the load condition of the current document.
func (p *Page) WaitLoad(ctx context.Context, until string, timeout time.Duration) error {
	pg, cancel := p.scoped(ctx, timeout)
	defer cancel()

	if err := pg.WaitLoad(); err != nil {
		return wrapError("wait for", target("load"), err)
	}
	if until == UntilNetworkIdle {
		pg.WaitRequestIdle(networkIdleWindow, nil, nil, nil)()
		if err := pg.GetContext().Err(); err != nil {
			return wrapError("wait for", target("network idle"), err)
		}
	}
	return nil
}

// element resolves the locator, retrying until it matches or times out.
func element(pg *rod.Page, loc Locator) (*rod.Element, error) {
	if loc.Label == "" && loc.Text == "" && loc.HasText == "" && loc.Nth == 0 {
		return pg.Element(loc.Selector)
	}
	return pg.ElementByJS(rod.Eval(locateOneJS, loc.args()...))
}

// WaitFor waits until the located element reaches state.
func (p *Page) WaitFor(ctx context.Context, loc Locator, state string, timeout time.Duration) error {
	pg, cancel := p.scoped(ctx, timeout)
	defer cancel()

	switch state {
	case StateHidden:
		return wrapError("wait for hidden", loc, pg.Wait(rod.Eval(hiddenJS, loc.args()...)))
	case StateAttached:
		_, err := element(pg, loc)
		return wrapError("wait for", loc, err)
	default:
		el, err := element(pg, loc)
		if err != nil {
			return wrapError("wait for", loc, err)
		}
		return wrapError("wait for visible", loc, el.WaitVisible())
	}
}

// Click clicks the element. With force the click is dispatched from script,
// skipping the visibility and hit-target checks a real mouse needs.
func (p *Page) Click(ctx context.Context, loc Locator, force bool, timeout time.Duration) error {
	pg, cancel := p.scoped(ctx, timeout)
	defer cancel()

	el, err := element(pg, loc)
	if err != nil {
		return wrapError("click", loc, err)
	}
	if force {
		_, err = el.Eval(forceClickJS)
		return wrapError("click", loc, err)
	}
	return wrapError("click", loc, el.Click(proto.InputMouseButtonLeft, 1))
}

// Fill replaces the value of a text control.
func (p *Page) Fill(ctx context.Context, loc Locator, value string, timeout time.Duration) error {
	pg, cancel := p.scoped(ctx, timeout)
	defer cancel()

	el, err := element(pg, loc)
	if err != nil {
		return wrapError("fill", loc, err)
	}
	if err := el.WaitVisible(); err != nil {
		return wrapError("fill", loc, err)
	}
	if err := el.SelectAllText(); err != nil {
		return wrapError("fill", loc, err)
	}
	return wrapError("fill", loc, el.Input(value))
}

// Check clicks a checkbox or radio unless it is already checked, then
// verifies the checked state.
func (p *Page) Check(ctx context.Context, loc Locator, timeout time.Duration) error {
	pg, cancel := p.scoped(ctx, timeout)
	defer cancel()

	el, err := element(pg, loc)
	if err != nil {
		return wrapError("check", loc, err)
	}

	checked, err := isChecked(el)
	if err != nil {
		return wrapError("check", loc, err)
	}
	if checked {
		return nil
	}

	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return wrapError("check", loc, err)
	}

	checked, err = isChecked(el)
	if err != nil {
		return wrapError("check", loc, err)
	}
	if !checked {
		return wrapError("check", loc, ErrNotChecked)
	}
	return nil
}

func isChecked(el *rod.Element) (bool, error) {
	res, err := el.Eval(checkedJS)
	if err != nil {
		return false, err
	}
	return res.Value.Bool(), nil
}

// Reload reloads the page and waits for load.
func (p *Page) Reload(ctx context.Context, timeout time.Duration) error {
	pg, cancel := p.scoped(ctx, timeout)
	defer cancel()

	if err := pg.Reload(); err != nil {
		return wrapError("reload", target("page"), err)
	}
	return wrapError("wait for load after reload", target("page"), pg.WaitLoad())
}

// ScrollIntoView scrolls until the element is in the viewport.
func (p *Page) ScrollIntoView(ctx context.Context, loc Locator, timeout time.Duration) error {
	pg, cancel := p.scoped(ctx, timeout)
	defer cancel()

	el, err := element(pg, loc)
	if err != nil {
		return wrapError("scroll to", loc, err)
	}
	return wrapError("scroll to", loc, el.ScrollIntoView())
}

// Screenshot captures the viewport, or the whole scrollable page, as PNG.
func (p *Page) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	data, err := p.page.Context(ctx).Screenshot(fullPage, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, wrapError("screenshot", target("page"), err)
	}
	return data, nil
}

// ElementScreenshot captures only the element as PNG.
func (p *Page) ElementScreenshot(ctx context.Context, loc Locator, timeout time.Duration) ([]byte, error) {
	pg, cancel := p.scoped(ctx, timeout)
	defer cancel()

	el, err := element(pg, loc)
	if err != nil {
		return nil, wrapError("screenshot", loc, err)
	}
	if err := el.ScrollIntoView(); err != nil {
		return nil, wrapError("screenshot", loc, err)
	}
	data, err := el.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
	if err != nil {
		return nil, wrapError("screenshot", loc, err)
	}
	return data, nil
}

// Count returns the number of matches without waiting.
func (p *Page) Count(ctx context.Context, loc Locator) (int, error) {
	res, err := p.page.Context(ctx).Eval(countJS, loc.Selector, loc.HasText, loc.Label, loc.Text)
	if err != nil {
		return 0, wrapError("count", loc, err)
	}
	return res.Value.Int(), nil
}

// BoundingBox returns the element's box, or nil when it is not rendered.
func (p *Page) BoundingBox(ctx context.Context, loc Locator, timeout time.Duration) (*Box, error) {
	pg, cancel := p.scoped(ctx, timeout)
	defer cancel()

	el, err := element(pg, loc)
	if err != nil {
		return nil, wrapError("bounding box of", loc, err)
	}

	shape, err := el.Shape()
	if err != nil {
		return nil, nil //nolint:nilerr // an unrendered element has no box
	}
	rect := shape.Box()
	if rect == nil {
		return nil, nil
	}
	return &Box{X: rect.X, Y: rect.Y, Width: rect.Width, Height: rect.Height}, nil
}

// Visible reports whether the element exists and is rendered, without waiting.
func (p *Page) Visible(ctx context.Context, loc Locator) (bool, error) {
	pg := p.page.Context(ctx).Sleeper(rod.NotFoundSleeper)

	el, err := element(pg, loc)
	if err != nil {
		var notFound *rod.ElementNotFoundError
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, wrapError("visibility of", loc, err)
	}

	visible, err := el.Visible()
	if err != nil {
		return false, wrapError("visibility of", loc, err)
	}
	return visible, nil
}

// Value returns the value property of a form control.
func (p *Page) Value(ctx context.Context, loc Locator, timeout time.Duration) (string, error) {
	pg, cancel := p.scoped(ctx, timeout)
	defer cancel()

	el, err := element(pg, loc)
	if err != nil {
		return "", wrapError("value of", loc, err)
	}
	v, err := el.Property("value")
	if err != nil {
		return "", wrapError("value of", loc, err)
	}
	return v.Str(), nil
}

// Checked reports whether a checkbox, radio or ARIA control is checked.
func (p *Page) Checked(ctx context.Context, loc Locator, timeout time.Duration) (bool, error) {
	pg, cancel := p.scoped(ctx, timeout)
	defer cancel()

	el, err := element(pg, loc)
	if err != nil {
		return false, wrapError("checked state of", loc, err)
	}
	checked, err := isChecked(el)
	if err != nil {
		return false, wrapError("checked state of", loc, err)
	}
	return checked, nil
}

// Eval evaluates a JavaScript function expression and returns its result
// formatted as text.
func (p *Page) Eval(ctx context.Context, js string) (string, error) {
	res, err := p.page.Context(ctx).Eval(js)
	if err != nil {
		return "", wrapError("eval", target("script"), err)
	}
	return fmt.Sprint(res.Value.Val()), nil
}

// HTML returns the serialized document.
func (p *Page) HTML(ctx context.Context) (string, error) {
	html, err := p.page.Context(ctx).HTML()
	if err != nil {
		return "", wrapError("read", target("html"), err)
	}
	return html, nil
}

// Close closes the tab and disposes its incognito context.
func (p *Page) Close() error {
	// The page may have been opened under a context that is already
	// cancelled; closing gets its own budget.
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	err := p.page.Context(ctx).Close()
	if p.browserCtx != nil && p.browserCtx.BrowserContextID != "" {
		disposeErr := proto.TargetDisposeBrowserContext{BrowserContextID: p.browserCtx.BrowserContextID}.Call(p.browserCtx.Context(ctx))
		if err == nil {
			err = disposeErr
		}
	}
	return err
}
