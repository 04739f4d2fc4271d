package orders

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const orderContainerSelector = "#orderDetails, .order-card, #a-page .a-container"

// ArtifactCache captures one visual-proof screenshot per order into
// <dir>/order-<id>.png. Captures are idempotent: an existing file is
// skipped entirely and reported as success, which is what lets
// screenshot filenames double as a crash-recovery signal.
type ArtifactCache struct {
	Dir string
}

func (c ArtifactCache) PathFor(id string) string {
	return filepath.Join(c.Dir, fmt.Sprintf("order-%s.png", id))
}

// Capture takes a screenshot of the detail view currently loaded in
// page. When the order container is present it is scrolled fully into
// view (if it extends past the viewport) and the refund label is
// hovered so its tooltip renders, then the container itself is
// captured. Everything degrades toward a plain viewport capture
// rather than failing the job.
func (c ArtifactCache) Capture(ctx context.Context, page Page, id string) (string, error) {
	ctx, span := tracer.Start(ctx, "artifact:Capture", trace.WithAttributes(
		attribute.String("order_id", id),
	))
	defer span.End()

	target := c.PathFor(id)
	if _, err := os.Stat(target); err == nil {
		span.AddEvent("already captured")
		return target, nil
	}

	buf, err := c.smartCapture(ctx, page)
	if err != nil {
		slog.WarnContext(ctx, "smart capture failed, falling back to viewport", "order_id", id, "err", err)
		span.RecordError(err)
		buf, err = page.ViewportScreenshot(ctx)
		if err != nil {
			return "", fmt.Errorf("viewport capture: %w", err)
		}
	}

	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(target, buf, 0o644); err != nil {
		return "", err
	}
	return target, nil
}

func (c ArtifactCache) smartCapture(ctx context.Context, page Page) ([]byte, error) {
	hasContainer, err := page.Has(ctx, orderContainerSelector)
	if err != nil {
		return nil, err
	}

	if hasContainer {
		overflows, err := page.ExtendsPastViewport(ctx, orderContainerSelector)
		if err != nil {
			return nil, err
		}
		if overflows {
			if err := page.ScrollIntoView(ctx, orderContainerSelector); err != nil {
				return nil, err
			}
		}
	}

	// render the refund tooltip into the proof when there is one
	hasRefund, err := page.Has(ctx, ".refund-total, .a-popover-trigger")
	if err == nil && hasRefund {
		if err := page.Hover(ctx, ".refund-total, .a-popover-trigger"); err != nil {
			slog.DebugContext(ctx, "refund hover failed", "err", err)
		}
	}

	if hasContainer {
		return page.ElementScreenshot(ctx, orderContainerSelector)
	}
	return page.ViewportScreenshot(ctx)
}
