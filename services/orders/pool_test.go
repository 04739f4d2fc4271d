package orders

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func makeRefs(n int) []RecordRef {
	refs := make([]RecordRef, n)
	for i := range refs {
		id := fmt.Sprintf("113-%07d-0000000", i)
		refs[i] = RecordRef{
			ID:        id,
			DetailURL: "https://www.example.com/details?orderID=" + id,
			RawAmount: float64(i + 1),
		}
	}
	return refs
}

func flattenPartition(chunks [][]RecordRef) []RecordRef {
	out := []RecordRef{}
	for _, chunk := range chunks {
		out = append(out, chunk...)
	}
	return out
}

func TestPartitionCoversInputExactly(t *testing.T) {
	testCases := []struct {
		jobs    int
		workers int
	}{
		{0, 3},
		{1, 3},
		{3, 3},
		{7, 3},
		{10, 3},
		{5, 1},
		{2, 5},
	}

	for _, test := range testCases {
		refs := makeRefs(test.jobs)
		chunks := Partition(refs, test.workers)

		require.Len(t, chunks, test.workers, "jobs=%d workers=%d", test.jobs, test.workers)
		require.Equal(t, refs, flattenPartition(chunks), "jobs=%d workers=%d", test.jobs, test.workers)

		// no chunk may exceed ceil(jobs/workers)
		maxChunk := 0
		if test.jobs > 0 {
			maxChunk = (test.jobs + test.workers - 1) / test.workers
		}
		for _, chunk := range chunks {
			require.LessOrEqual(t, len(chunk), maxChunk)
		}
	}
}

func TestPartitionTrailingChunksEmpty(t *testing.T) {
	chunks := Partition(makeRefs(2), 5)
	require.Len(t, chunks, 5)
	require.Len(t, chunks[0], 1)
	require.Len(t, chunks[1], 1)
	for _, chunk := range chunks[2:] {
		require.Empty(t, chunk)
	}
}

// detailMarkup renders a minimal but fully extractable detail page.
func detailMarkup(date string, amount float64) string {
	return fmt.Sprintf(`
		<html><body><div id="orderDetails">
			<span class="order-date-invoice-item">%s</span>
			<div id="od-subtotals"><span class="a-text-bold">$%.2f</span></div>
		</div></body></html>
	`, date, amount)
}

func testPool(t *testing.T, workers int, newPage func(ctx context.Context) (Page, func(), error)) *Pool {
	t.Helper()
	return &Pool{
		opts:      PoolOptions{Workers: workers},
		artifacts: ArtifactCache{Dir: t.TempDir()},
		newPage:   newPage,
	}
}

func TestPoolProducesOneRecordPerJob(t *testing.T) {
	released := 0
	pool := testPool(t, 3, func(ctx context.Context) (Page, func(), error) {
		page := &fakePage{htmlFn: func() string { return detailMarkup("March 5, 2024", 10) }}
		return page, func() { released++ }, nil
	})

	refs := makeRefs(7)
	index := NewDedupIndex()
	records := pool.Run(context.Background(), refs, index)

	require.Len(t, records, 7)
	require.Equal(t, 3, released, "every worker context must be released")

	// chunk order then intra-chunk order reconstructs the input
	for i, record := range records {
		require.Equal(t, refs[i].ID, record.ID)
	}
	// successful ids are marked immediately, before any snapshot write
	for _, ref := range refs {
		require.True(t, index.Has(ref.ID))
	}
}

func TestPoolDegradesFailedJobs(t *testing.T) {
	pool := testPool(t, 2, func(ctx context.Context) (Page, func(), error) {
		page := &fakePage{
			htmlFn:     func() string { return detailMarkup("March 5, 2024", 10) },
			navigateFn: func(url string) error { return fmt.Errorf("navigation wedged") },
		}
		return page, func() {}, nil
	})

	refs := makeRefs(4)
	index := NewDedupIndex()
	records := pool.Run(context.Background(), refs, index)

	require.Len(t, records, 4)
	for i, record := range records {
		require.Equal(t, refs[i].ID, record.ID)
		require.Equal(t, refs[i].RawAmount, record.Amount)
		require.Equal(t, record.Amount, record.NetAmount)
		require.Empty(t, record.Date)
	}
	// failed ids are never marked complete
	require.Equal(t, 0, index.Len())
}

func TestPoolSurvivesWorkerLaunchFailure(t *testing.T) {
	var launches atomic.Int32
	pool := testPool(t, 2, func(ctx context.Context) (Page, func(), error) {
		if launches.Add(1) == 1 {
			return nil, nil, fmt.Errorf("browser failed to launch")
		}
		page := &fakePage{htmlFn: func() string { return detailMarkup("March 5, 2024", 10) }}
		return page, func() {}, nil
	})

	refs := makeRefs(4)
	index := NewDedupIndex()
	records := pool.Run(context.Background(), refs, index)

	// the dead worker degrades its chunk, the sibling still extracts
	require.Len(t, records, 4)
	require.Equal(t, 2, index.Len())
}

func TestPoolFiltersBeforeDispatch(t *testing.T) {
	pool := testPool(t, 2, func(ctx context.Context) (Page, func(), error) {
		page := &fakePage{htmlFn: func() string { return detailMarkup("March 5, 2024", 10) }}
		return page, func() {}, nil
	})

	index := NewDedupIndex()
	index.Add("111-1111111-1111111")

	refs := []RecordRef{
		{ID: "111-1111111-1111111", DetailURL: "https://www.example.com/a", RawAmount: 10},
		{ID: "222-2222222-2222222", DetailURL: "https://www.example.com/b", RawAmount: 20},
	}

	filtered := index.Filter(refs)
	records := pool.Run(context.Background(), filtered, index)

	require.Len(t, records, 1)
	require.Equal(t, "222-2222222-2222222", records[0].ID)
}

func TestPoolCancellationStopsDispatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	processed := 0
	pool := testPool(t, 1, func(ctx context.Context) (Page, func(), error) {
		page := &fakePage{htmlFn: func() string { return detailMarkup("March 5, 2024", 10) }}
		page.navigateFn = func(url string) error {
			processed++
			if processed == 2 {
				cancel()
			}
			return nil
		}
		return page, func() {}, nil
	})

	records := pool.Run(ctx, makeRefs(10), NewDedupIndex())

	// in-flight jobs finish, the rest are never dispatched
	require.GreaterOrEqual(t, len(records), 2)
	require.Less(t, len(records), 10)
}
