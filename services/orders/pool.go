package orders

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"ordervault/lib/browser"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
)

type PoolOptions struct {
	Workers int
	// fixed politeness delay between consecutive jobs in one worker
	Delay time.Duration
}

// Pool drives per-record extraction across N isolated browser
// instances that share the authenticated session's cookies via a
// one-time transplant at construction.
type Pool struct {
	opts      PoolOptions
	artifacts ArtifactCache
	journal   *Journal

	// newPage hands each worker its own browser page plus a release
	// func that must run on every exit path.
	newPage func(ctx context.Context) (Page, func(), error)
}

func NewPool(session *browser.Session, cookies []browser.Cookie, artifacts ArtifactCache, journal *Journal, opts PoolOptions) *Pool {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Pool{
		opts:      opts,
		artifacts: artifacts,
		journal:   journal,
		newPage: func(ctx context.Context) (Page, func(), error) {
			bctx := session.NewContext()
			if err := bctx.SetCookies(ctx, cookies); err != nil {
				bctx.Close()
				return nil, nil, fmt.Errorf("transplant session cookies: %w", err)
			}
			return bctx, bctx.Close, nil
		},
	}
}

// Partition splits refs into n contiguous near-equal chunks of size
// ceil(len/n). Every ref lands in exactly one chunk; trailing chunks
// stay empty when there are fewer refs than workers.
func Partition(refs []RecordRef, n int) [][]RecordRef {
	if n < 1 {
		n = 1
	}
	chunks := make([][]RecordRef, n)
	if len(refs) == 0 {
		return chunks
	}
	size := (len(refs) + n - 1) / n
	for i := 0; i < n; i++ {
		start := i * size
		if start >= len(refs) {
			break
		}
		chunks[i] = refs[start:min(start+size, len(refs))]
	}
	return chunks
}

type jobEventKind int

const (
	jobStarted jobEventKind = iota
	jobFinished
)

type jobEvent struct {
	kind   jobEventKind
	worker int
	id     string
	record DetailedRecord
	ok     bool
}

// Run processes every ref and returns one record per ref, full or
// degraded, ordered by chunk then by position within the chunk.
// Successful ids are marked in the index (and journal) the moment
// they complete, before the final snapshot is written, so a crash in
// between still leaves recovery signals behind.
//
// Cancelling ctx stops the dispatch of new jobs; records for jobs
// that never ran are simply absent from the result.
func (p *Pool) Run(ctx context.Context, refs []RecordRef, index *DedupIndex) []DetailedRecord {
	ctx, span := tracer.Start(ctx, "pool:Run")
	defer span.End()
	span.SetAttributes(
		attribute.Int("jobs", len(refs)),
		attribute.Int("workers", p.opts.Workers),
	)

	chunks := Partition(refs, p.opts.Workers)
	results := make([][]DetailedRecord, len(chunks))

	events := make(chan jobEvent)
	var wg sync.WaitGroup
	for i, chunk := range chunks {
		if len(chunk) == 0 {
			continue
		}
		wg.Add(1)
		go p.worker(ctx, i, chunk, events, &wg)
	}
	go func() {
		wg.Wait()
		close(events)
	}()

	for ev := range events {
		switch ev.kind {
		case jobStarted:
			if p.journal != nil {
				if err := p.journal.Begin(ctx, ev.id); err != nil {
					slog.WarnContext(ctx, "failed to journal job start", "order_id", ev.id, "err", err)
				}
			}
		case jobFinished:
			results[ev.worker] = append(results[ev.worker], ev.record)
			if ev.ok {
				index.Add(ev.record.ID)
				if p.journal != nil {
					if err := p.journal.Complete(ctx, ev.record.ID); err != nil {
						slog.WarnContext(ctx, "failed to journal job completion", "order_id", ev.record.ID, "err", err)
					}
				}
			}
		}
	}

	var merged []DetailedRecord
	for _, chunk := range results {
		merged = append(merged, chunk...)
	}
	return merged
}

func (p *Pool) worker(ctx context.Context, idx int, chunk []RecordRef, events chan<- jobEvent, wg *sync.WaitGroup) {
	defer wg.Done()

	page, release, err := p.newPage(ctx)
	if err != nil {
		// the browser instance never came up, degrade the whole chunk
		// without touching sibling workers
		slog.ErrorContext(ctx, "worker browser unusable", "worker", idx, "err", err)
		for _, ref := range chunk {
			events <- jobEvent{kind: jobFinished, worker: idx, record: minimalRecord(ref)}
		}
		return
	}
	defer release()

	for i, ref := range chunk {
		if ctx.Err() != nil {
			slog.WarnContext(ctx, "cancelled, not dispatching remaining jobs",
				"worker", idx, "remaining", len(chunk)-i)
			return
		}

		events <- jobEvent{kind: jobStarted, worker: idx, id: ref.ID}

		record, err := p.processJob(ctx, page, ref)
		ok := err == nil
		if err != nil {
			slog.WarnContext(ctx, "job failed, keeping degraded record",
				"worker", idx, "order_id", ref.ID, "err", err)
			record = minimalRecord(ref)
		}
		events <- jobEvent{kind: jobFinished, worker: idx, record: record, ok: ok}

		if i < len(chunk)-1 && p.opts.Delay > 0 {
			select {
			case <-time.After(p.opts.Delay):
			case <-ctx.Done():
			}
		}
	}
}

func (p *Pool) processJob(ctx context.Context, page Page, ref RecordRef) (DetailedRecord, error) {
	if ref.DetailURL == "" {
		return DetailedRecord{}, fmt.Errorf("no detail url for %s", ref.ID)
	}
	if err := page.Navigate(ctx, ref.DetailURL); err != nil {
		return DetailedRecord{}, fmt.Errorf("navigate: %w", err)
	}
	markup, err := page.HTML(ctx)
	if err != nil {
		return DetailedRecord{}, fmt.Errorf("read detail page: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return DetailedRecord{}, fmt.Errorf("parse detail page: %w", err)
	}

	record := ExtractDetail(ctx, doc, ref)

	path, err := p.artifacts.Capture(ctx, page, ref.ID)
	if err != nil {
		// the record itself extracted fine, a missing proof image is
		// not worth degrading it over
		slog.WarnContext(ctx, "artifact capture failed", "order_id", ref.ID, "err", err)
	} else {
		record.ScreenshotPath = path
	}

	return record, nil
}

// minimalRecord is the degraded form a failed job leaves behind:
// identity and the amount the listing already told us.
func minimalRecord(ref RecordRef) DetailedRecord {
	return DetailedRecord{
		ID:        ref.ID,
		Amount:    ref.RawAmount,
		NetAmount: ref.RawAmount,
		Items:     []Item{},
		DetailURL: ref.DetailURL,
	}
}
