package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
)

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

type Options struct {
	Headless  bool
	Timeout   time.Duration
	UserAgent string
}

// Session owns one chromedp exec allocator. Contexts created from it
// are fully independent browser instances, nothing is shared between
// them besides the allocator's launch flags.
type Session struct {
	allocCtx context.Context
	cancel   context.CancelFunc
	opts     Options
}

func NewSession(ctx context.Context, opts Options) *Session {
	if opts.Timeout <= 0 {
		opts.Timeout = time.Second * 30
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	allocCtx, cancel := chromedp.NewExecAllocator(
		ctx,
		append(
			chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", opts.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(userAgent),
		)...,
	)

	return &Session{
		allocCtx: allocCtx,
		cancel:   cancel,
		opts:     opts,
	}
}

func (s *Session) Close() {
	s.cancel()
}

// Context is one live browser instance. Operations are safe to call
// sequentially from a single goroutine; a Context is never shared
// between goroutines.
type Context struct {
	ctx     context.Context
	cancel  context.CancelFunc
	timeout time.Duration
}

// NewContext launches a browser instance. The instance is only
// materialized on the first navigation, so launch failures surface
// there rather than here.
func (s *Session) NewContext() *Context {
	ctx, cancel := chromedp.NewContext(s.allocCtx)
	return &Context{
		ctx:     ctx,
		cancel:  cancel,
		timeout: s.opts.Timeout,
	}
}

func (c *Context) Close() {
	c.cancel()
}

// run executes chromedp actions against this browser under the
// per-operation timeout, while still honoring the caller's context.
func (c *Context) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := c.ctx.Err(); err != nil {
		return fmt.Errorf("browser context unusable: %w", err)
	}

	runCtx, cancel := context.WithTimeout(c.ctx, c.timeout)
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

func (c *Context) Navigate(ctx context.Context, url string) error {
	return c.run(ctx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (c *Context) WaitVisible(ctx context.Context, selector string) error {
	return c.run(ctx, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

// HTML returns the full rendered document markup.
func (c *Context) HTML(ctx context.Context) (string, error) {
	var out string
	err := c.run(ctx, chromedp.OuterHTML("html", &out, chromedp.ByQuery))
	return out, err
}

func (c *Context) Click(ctx context.Context, selector string) error {
	return c.run(ctx, chromedp.Click(selector, chromedp.NodeVisible, chromedp.ByQuery))
}

// Has reports whether at least one element matches the selector,
// without waiting for one to appear.
func (c *Context) Has(ctx context.Context, selector string) (bool, error) {
	var found bool
	err := c.run(ctx, chromedp.Evaluate(
		fmt.Sprintf(`document.querySelector(%q) !== null`, selector),
		&found,
	))
	return found, err
}

// Hover dispatches a mouseover to the first matching element so
// hover-only content (tooltips) gets rendered.
func (c *Context) Hover(ctx context.Context, selector string) error {
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (el === null) return false;
		el.dispatchEvent(new MouseEvent("mouseover", {bubbles: true}));
		return true;
	})()`, selector)

	var ok bool
	err := c.run(ctx, chromedp.Evaluate(script, &ok))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("hover: no element matches %q", selector)
	}
	return nil
}

func (c *Context) ScrollIntoView(ctx context.Context, selector string) error {
	return c.run(ctx, chromedp.ScrollIntoView(selector, chromedp.ByQuery))
}

// ExtendsPastViewport reports whether the first matching element's
// rendered box reaches below the visible viewport.
func (c *Context) ExtendsPastViewport(ctx context.Context, selector string) (bool, error) {
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%q);
		if (el === null) return false;
		return el.getBoundingClientRect().bottom > window.innerHeight;
	})()`, selector)

	var out bool
	err := c.run(ctx, chromedp.Evaluate(script, &out))
	return out, err
}

// ElementScreenshot captures the first matching element.
func (c *Context) ElementScreenshot(ctx context.Context, selector string) ([]byte, error) {
	var buf []byte
	err := c.run(ctx, chromedp.Screenshot(selector, &buf, chromedp.NodeVisible, chromedp.ByQuery))
	return buf, err
}

// ViewportScreenshot captures the currently visible viewport.
func (c *Context) ViewportScreenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := c.run(ctx, chromedp.CaptureScreenshot(&buf))
	return buf, err
}

func (c *Context) Sleep(ctx context.Context, d time.Duration) error {
	return c.run(ctx, chromedp.Sleep(d))
}
