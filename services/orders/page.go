package orders

import (
	"context"
	"time"
)

// Page is the surface of one browser tab that the pipeline drives.
// *browser.Context satisfies it; tests substitute fixture-backed
// implementations.
type Page interface {
	Navigate(ctx context.Context, url string) error
	HTML(ctx context.Context) (string, error)
	Click(ctx context.Context, selector string) error
	Has(ctx context.Context, selector string) (bool, error)
	Hover(ctx context.Context, selector string) error
	ScrollIntoView(ctx context.Context, selector string) error
	ExtendsPastViewport(ctx context.Context, selector string) (bool, error)
	ElementScreenshot(ctx context.Context, selector string) ([]byte, error)
	ViewportScreenshot(ctx context.Context) ([]byte, error)
	Sleep(ctx context.Context, d time.Duration) error
}
