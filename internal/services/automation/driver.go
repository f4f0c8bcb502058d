package automation

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sitetest/internal/common"
	"github.com/ternarybob/sitetest/internal/interfaces"
)

// Driver implements the AutomationDriver interface with chromedp attached
// to a remote CDP endpoint. Single-use: one Connect, one Close, steps
// executed sequentially.
type Driver struct {
	logger      arbor.ILogger
	browserCtx  context.Context
	allocCancel context.CancelFunc
	ctxCancel   context.CancelFunc
	navTimeout  time.Duration
	actTimeout  time.Duration
}

// NewDriver creates an unconnected driver
func NewDriver(config *common.RunnerConfig, logger arbor.ILogger) *Driver {
	return &Driver{
		logger:     logger,
		navTimeout: common.Duration(config.NavigationTimeout, 30*time.Second),
		actTimeout: common.Duration(config.ActionTimeout, 10*time.Second),
	}
}

// NewFactory returns a DriverFactory producing fresh drivers per run
func NewFactory(config *common.RunnerConfig, logger arbor.ILogger) interfaces.DriverFactory {
	return func() interfaces.AutomationDriver {
		return NewDriver(config, logger)
	}
}

// Connect attaches to the remote browser over its CDP websocket URL.
// The URL is signed by the session provider, so it must not be rewritten.
func (d *Driver) Connect(ctx context.Context, connectURL string) error {
	if d.browserCtx != nil {
		return fmt.Errorf("driver already connected")
	}

	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.Background(),
		connectURL, chromedp.NoModifyURL)
	browserCtx, ctxCancel := chromedp.NewContext(allocCtx)

	// The connection is established lazily; probe it so a dead endpoint
	// fails here instead of on the first real step.
	probeCtx, cancel := context.WithTimeout(browserCtx, d.actTimeout)
	defer cancel()
	if err := chromedp.Run(probeCtx, chromedp.Evaluate(`1`, nil)); err != nil {
		ctxCancel()
		allocCancel()
		return fmt.Errorf("failed to attach to remote browser: %w", err)
	}

	select {
	case <-ctx.Done():
		ctxCancel()
		allocCancel()
		return ctx.Err()
	default:
	}

	d.browserCtx = browserCtx
	d.allocCancel = allocCancel
	d.ctxCancel = ctxCancel

	d.logger.Debug().Msg("Automation driver attached to remote browser")
	return nil
}

// SetViewport emulates a fixed viewport size
func (d *Driver) SetViewport(ctx context.Context, width, height int) error {
	return d.run(ctx, d.actTimeout, chromedp.EmulateViewport(int64(width), int64(height)))
}

// Navigate loads the target URL, bounded by the page-load timeout
func (d *Driver) Navigate(ctx context.Context, url string) error {
	err := d.run(ctx, d.navTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

// Click clicks the first visible node matching the selector
func (d *Driver) Click(ctx context.Context, selector string) error {
	if err := d.run(ctx, d.actTimeout, chromedp.Click(selector, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("click on %q failed: %w", selector, err)
	}
	return nil
}

// Type sends keystrokes to the node matching the selector
func (d *Driver) Type(ctx context.Context, selector, text string) error {
	if err := d.run(ctx, d.actTimeout, chromedp.SendKeys(selector, text, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("typing into %q failed: %w", selector, err)
	}
	return nil
}

// ScrollBy scrolls the window vertically by the given pixel amount
func (d *Driver) ScrollBy(ctx context.Context, pixels int) error {
	script := fmt.Sprintf(`window.scrollBy({top: %d, behavior: 'smooth'})`, pixels)
	if err := d.run(ctx, d.actTimeout, chromedp.Evaluate(script, nil)); err != nil {
		return fmt.Errorf("scroll failed: %w", err)
	}
	return nil
}

// ScrollToBottom scrolls the window to the bottom of the document
func (d *Driver) ScrollToBottom(ctx context.Context) error {
	script := `window.scrollTo({top: document.body.scrollHeight, behavior: 'smooth'})`
	if err := d.run(ctx, d.actTimeout, chromedp.Evaluate(script, nil)); err != nil {
		return fmt.Errorf("scroll to bottom failed: %w", err)
	}
	return nil
}

// Screenshot captures the current viewport as PNG
func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := d.run(ctx, d.actTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().WithFormat(page.CaptureScreenshotFormatPng).Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return buf, nil
}

// PageInfo reads the current page URL, title and viewport
func (d *Driver) PageInfo(ctx context.Context) (*interfaces.PageInfo, error) {
	info := &interfaces.PageInfo{}
	err := d.run(ctx, d.actTimeout,
		chromedp.Location(&info.URL),
		chromedp.Title(&info.Title),
		chromedp.Evaluate(`window.innerWidth`, &info.ViewportWidth),
		chromedp.Evaluate(`window.innerHeight`, &info.ViewportHeight),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read page info: %w", err)
	}
	return info, nil
}

// PageHTML returns the full document HTML
func (d *Driver) PageHTML(ctx context.Context) (string, error) {
	var html string
	if err := d.run(ctx, d.actTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read page HTML: %w", err)
	}
	return html, nil
}

// Close detaches from the remote browser. Safe to call more than once.
func (d *Driver) Close() error {
	if d.ctxCancel != nil {
		d.ctxCancel()
		d.ctxCancel = nil
	}
	if d.allocCancel != nil {
		d.allocCancel()
		d.allocCancel = nil
	}
	d.browserCtx = nil
	return nil
}

// run executes chromedp actions against the attached browser with a
// timeout, honoring caller cancellation.
func (d *Driver) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if d.browserCtx == nil {
		return fmt.Errorf("driver is not connected")
	}

	runCtx, cancel := context.WithTimeout(d.browserCtx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- chromedp.Run(runCtx, actions...)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		cancel()
		<-done
		return ctx.Err()
	}
}
