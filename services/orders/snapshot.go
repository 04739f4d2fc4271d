package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// BuildSnapshot merges the pool's records into the persisted snapshot
// shape. totalAmount is net: refunds are already subtracted.
func BuildSnapshot(records []DetailedRecord, dateRange DateRange, now time.Time) RunSnapshot {
	total := 0.0
	for _, record := range records {
		total += record.NetAmount
	}
	return RunSnapshot{
		Metadata: SnapshotMetadata{
			DateRange:         dateRange,
			TotalTransactions: len(records),
			TotalAmount:       total,
			GeneratedAt:       now.Format(timestampLayout),
			ScrapedAt:         now.Format(timestampLayout),
		},
		Transactions: records,
	}
}

// PersistSnapshot writes the run's snapshot as one new file in
// outputDir and returns its path. There is no partial-write recovery;
// a failure here is fatal to the run.
func PersistSnapshot(ctx context.Context, outputDir string, snapshot RunSnapshot) (string, error) {
	ctx, span := tracer.Start(ctx, "PersistSnapshot")
	defer span.End()

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return "", err
	}

	raw, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", err
	}

	path := filepath.Join(outputDir, fmt.Sprintf("orders-%s.json", time.Now().Format("20060102-150405")))
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("persist snapshot: %w", err)
	}

	span.SetAttributes(
		attribute.String("path", path),
		attribute.Int("transactions", len(snapshot.Transactions)),
	)
	return path, nil
}
