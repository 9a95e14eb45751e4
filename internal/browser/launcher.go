package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Default device profile, matching a desktop headless browser.
const (
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720
)

// Options configures how the browser is obtained.
type Options struct {
	// Headless runs Chromium without a window.
	Headless bool

	// Bin is the Chromium executable. Empty looks one up on the system and
	// downloads a pinned revision when none is found.
	Bin string

	// ControlURL attaches to a running browser instead of launching one.
	ControlURL string

	// Logger receives lifecycle messages. Nil uses slog.Default().
	Logger *slog.Logger
}

// PageOptions is the device profile of a new page.
type PageOptions struct {
	Width     int
	Height    int
	UserAgent string
	Mobile    bool
}

// Launcher owns one Chromium instance shared by every page of a run.
// It is safe for concurrent use.
type Launcher struct {
	opts   Options
	logger *slog.Logger

	mu      sync.Mutex
	browser *rod.Browser
	launch  *launcher.Launcher

	// cancel ends the context the browser connection lives in.
	cancel context.CancelFunc
}

// NewLauncher creates a launcher. The browser is started by Start.
func NewLauncher(opts Options) *Launcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{opts: opts, logger: logger}
}

// Start launches Chromium, or connects to ControlURL, if not already done.
//
// The browser outlives ctx: it keeps running after the batch that started it
// ends and is only shut down by Close, so later Start calls reuse it. ctx
// still carries values such as trace IDs into the connection.
func (l *Launcher) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.browser != nil {
		if _, err := l.browser.Version(); err == nil {
			return nil
		}
		l.logger.Warn("stale browser connection, reconnecting")
		l.closeLocked()
	}

	bctx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	controlURL := l.opts.ControlURL
	if controlURL == "" {
		launch := launcher.New().Headless(l.opts.Headless)
		bin := l.opts.Bin
		if bin == "" {
			if found, ok := launcher.LookPath(); ok {
				bin = found
			}
		}
		if bin != "" {
			launch = launch.Bin(bin)
		}

		u, err := launch.Context(bctx).Launch()
		if err != nil {
			cancel()
			return fmt.Errorf("launch chromium: %w", err)
		}
		l.launch = launch
		controlURL = u
		l.logger.Debug("launched browser", "bin", bin, "headless", l.opts.Headless)
	}

	b := rod.New().ControlURL(controlURL).Context(bctx)
	if err := b.Connect(); err != nil {
		if l.launch != nil {
			l.launch.Kill()
			l.launch = nil
		}
		cancel()
		return fmt.Errorf("connect to chromium: %w", err)
	}

	l.browser = b
	l.cancel = cancel
	return nil
}

// NewPage opens a page in its own incognito context with the given profile.
// Storage is isolated between pages, so concurrent scenarios do not observe
// each other's state.
func (l *Launcher) NewPage(ctx context.Context, opts PageOptions) (*Page, error) {
	l.mu.Lock()
	b := l.browser
	l.mu.Unlock()

	if b == nil {
		return nil, ErrNotStarted
	}

	incognito, err := b.Context(ctx).Incognito()
	if err != nil {
		return nil, fmt.Errorf("incognito context: %w", err)
	}

	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	p := &Page{page: page, browserCtx: incognito, logger: l.logger}
	if err := p.emulate(opts); err != nil {
		_ = p.Close()
		return nil, err
	}

	return p, nil
}

// Close closes the browser and, when it was launched here, kills the process
// and removes its profile directory.
func (l *Launcher) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeLocked()
}

func (l *Launcher) closeLocked() error {
	var err error
	if l.browser != nil {
		// An attached browser belongs to the user; leave it running.
		if l.opts.ControlURL == "" {
			err = l.browser.Close()
		}
		l.browser = nil
	}
	if l.launch != nil {
		l.launch.Kill()
		done := make(chan struct{})
		go func() {
			l.launch.Cleanup()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			l.logger.Warn("browser profile cleanup did not finish")
		}
		l.launch = nil
	}
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	return err
}
