package orders

import (
	"context"
	"fmt"
	"time"
)

// fakePage drives the pipeline off canned markup instead of a real
// browser. zero values behave like an empty page.
type fakePage struct {
	// returns the markup for the current page; consulted on every HTML call
	htmlFn func() string

	hasSelectors map[string]bool
	clickFn      func(selector string) error
	navigateFn   func(url string) error

	extendsPastViewport bool

	elementShots  int
	viewportShots int
	hovered       []string
	scrolled      []string
	navigations   []string
	clicks        []string
}

func (f *fakePage) Navigate(ctx context.Context, url string) error {
	f.navigations = append(f.navigations, url)
	if f.navigateFn != nil {
		return f.navigateFn(url)
	}
	return nil
}

func (f *fakePage) HTML(ctx context.Context) (string, error) {
	if f.htmlFn == nil {
		return "<html><body></body></html>", nil
	}
	return f.htmlFn(), nil
}

func (f *fakePage) Click(ctx context.Context, selector string) error {
	f.clicks = append(f.clicks, selector)
	if f.clickFn != nil {
		return f.clickFn(selector)
	}
	return nil
}

func (f *fakePage) Has(ctx context.Context, selector string) (bool, error) {
	return f.hasSelectors[selector], nil
}

func (f *fakePage) Hover(ctx context.Context, selector string) error {
	f.hovered = append(f.hovered, selector)
	return nil
}

func (f *fakePage) ScrollIntoView(ctx context.Context, selector string) error {
	f.scrolled = append(f.scrolled, selector)
	return nil
}

func (f *fakePage) ExtendsPastViewport(ctx context.Context, selector string) (bool, error) {
	return f.extendsPastViewport, nil
}

func (f *fakePage) ElementScreenshot(ctx context.Context, selector string) ([]byte, error) {
	f.elementShots++
	return []byte(fmt.Sprintf("element-shot-%d", f.elementShots)), nil
}

func (f *fakePage) ViewportScreenshot(ctx context.Context) ([]byte, error) {
	f.viewportShots++
	return []byte(fmt.Sprintf("viewport-shot-%d", f.viewportShots)), nil
}

func (f *fakePage) Sleep(ctx context.Context, d time.Duration) error {
	return nil
}
