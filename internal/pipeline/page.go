package pipeline

import (
	"context"
	"time"

	"github.com/ngoiyaeric/queuelab/internal/browser"
)

// Page is the browser tab a pipeline drives. *browser.Page implements it;
// tests substitute a fake.
type Page interface {
	Navigate(ctx context.Context, url, until string, timeout time.Duration) error
	WaitLoad(ctx context.Context, until string, timeout time.Duration) error
	WaitFor(ctx context.Context, loc browser.Locator, state string, timeout time.Duration) error
	Click(ctx context.Context, loc browser.Locator, force bool, timeout time.Duration) error
	Fill(ctx context.Context, loc browser.Locator, value string, timeout time.Duration) error
	Check(ctx context.Context, loc browser.Locator, timeout time.Duration) error
	Reload(ctx context.Context, timeout time.Duration) error
	ScrollIntoView(ctx context.Context, loc browser.Locator, timeout time.Duration) error
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)
	ElementScreenshot(ctx context.Context, loc browser.Locator, timeout time.Duration) ([]byte, error)
	Count(ctx context.Context, loc browser.Locator) (int, error)
	BoundingBox(ctx context.Context, loc browser.Locator, timeout time.Duration) (*browser.Box, error)
	Visible(ctx context.Context, loc browser.Locator) (bool, error)
	Value(ctx context.Context, loc browser.Locator, timeout time.Duration) (string, error)
	Checked(ctx context.Context, loc browser.Locator, timeout time.Duration) (bool, error)
	Eval(ctx context.Context, js string) (string, error)
	HTML(ctx context.Context) (string, error)
	Close() error
}

var _ Page = (*browser.Page)(nil)
