package orders

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBuildSnapshotTotalsAreNet(t *testing.T) {
	records := []DetailedRecord{
		{ID: "a", Amount: 100, RefundAmount: 25, NetAmount: 75},
		{ID: "b", Amount: 40, RefundAmount: 0, NetAmount: 40},
		{ID: "c", Amount: 10, RefundAmount: 10, NetAmount: 0},
	}
	now := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)

	snapshot := BuildSnapshot(records, DateRange{Start: "2024-01-01", End: "2024-03-01"}, now)

	require.Equal(t, 3, snapshot.Metadata.TotalTransactions)
	require.Equal(t, 115.0, snapshot.Metadata.TotalAmount)
	require.Equal(t, "2024-03-05T12:00:00Z", snapshot.Metadata.ScrapedAt)
	require.Equal(t, "2024-01-01", snapshot.Metadata.DateRange.Start)

	// metadata total must equal the sum of per-record net amounts
	sum := 0.0
	for _, record := range snapshot.Transactions {
		require.Equal(t, record.Amount-record.RefundAmount, record.NetAmount)
		sum += record.NetAmount
	}
	require.Equal(t, sum, snapshot.Metadata.TotalAmount)
}

func TestPersistSnapshotRoundTrips(t *testing.T) {
	dir := t.TempDir()
	snapshot := BuildSnapshot([]DetailedRecord{
		{ID: "113-1234567-1234567", Amount: 55, RefundAmount: 12.5, NetAmount: 42.5, Items: []Item{}},
	}, DateRange{}, time.Now())

	path, err := PersistSnapshot(context.Background(), dir, snapshot)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded RunSnapshot
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Equal(t, snapshot, decoded)

	// the persisted field names are a stable external contract
	var contract map[string]any
	require.NoError(t, json.Unmarshal(raw, &contract))
	require.Contains(t, contract, "metadata")
	require.Contains(t, contract, "transactions")
	metadata := contract["metadata"].(map[string]any)
	require.Contains(t, metadata, "dateRange")
	require.Contains(t, metadata, "totalTransactions")
	require.Contains(t, metadata, "totalAmount")
	require.Contains(t, metadata, "generatedAt")
	require.Contains(t, metadata, "scrapedAt")
}

func TestPersistSnapshotCreatesOutputDir(t *testing.T) {
	dir := t.TempDir() + "/nested/output"
	_, err := PersistSnapshot(context.Background(), dir, RunSnapshot{Transactions: []DetailedRecord{}})
	require.NoError(t, err)
}
