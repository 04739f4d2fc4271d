package orders

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"

	"go.opentelemetry.io/otel/attribute"
)

// DedupIndex is the set of order ids already fully processed in any
// prior run. The orchestrator owns it for the duration of a run;
// workers never touch it directly.
type DedupIndex struct {
	ids map[string]bool
}

func NewDedupIndex() *DedupIndex {
	return &DedupIndex{ids: map[string]bool{}}
}

func (idx *DedupIndex) Has(id string) bool {
	return idx.ids[id]
}

func (idx *DedupIndex) Add(id string) {
	idx.ids[id] = true
}

func (idx *DedupIndex) Len() int {
	return len(idx.ids)
}

// Filter drops every ref whose id is already indexed. Synthetic ids
// are unique per extraction attempt, so they can never legitimately
// match prior history and always pass through. Filtering the same
// input against the same index twice gives the same output.
func (idx *DedupIndex) Filter(refs []RecordRef) []RecordRef {
	out := make([]RecordRef, 0, len(refs))
	for _, ref := range refs {
		if !ref.Synthetic && idx.Has(ref.ID) {
			continue
		}
		out = append(out, ref)
	}
	return out
}

var artifactNameRegex = regexp.MustCompile(`^order-(.+)\.png$`)

// DedupStore rebuilds the index from what prior runs left on disk:
// snapshot files, screenshot filenames and the job journal. Any one
// signal surviving a crash is enough to avoid redoing a record.
type DedupStore struct {
	OutputDir      string
	ScreenshotsDir string
	// optional third recovery signal
	Journal *Journal
}

// Load scans all recovery signals and unions every discovered id.
// A corrupt or unreadable snapshot is skipped with a warning, partial
// history beats none.
func (s DedupStore) Load(ctx context.Context) *DedupIndex {
	ctx, span := tracer.Start(ctx, "dedup:Load")
	defer span.End()

	idx := NewDedupIndex()
	s.loadSnapshots(ctx, idx)
	s.loadArtifacts(ctx, idx)
	s.loadJournal(ctx, idx)

	span.SetAttributes(attribute.Int("known_ids", idx.Len()))
	return idx
}

func (s DedupStore) loadSnapshots(ctx context.Context, idx *DedupIndex) {
	paths, err := filepath.Glob(filepath.Join(s.OutputDir, "*.json"))
	if err != nil {
		slog.WarnContext(ctx, "failed to list prior snapshots", "dir", s.OutputDir, "err", err)
		return
	}
	for _, path := range paths {
		raw, err := os.ReadFile(path)
		if err != nil {
			slog.WarnContext(ctx, "skipping unreadable snapshot", "file", path, "err", err)
			continue
		}
		var snapshot RunSnapshot
		if err := json.Unmarshal(raw, &snapshot); err != nil {
			slog.WarnContext(ctx, "skipping corrupt snapshot", "file", path, "err", err)
			continue
		}
		for _, record := range snapshot.Transactions {
			if record.ID != "" {
				idx.Add(record.ID)
			}
		}
	}
}

func (s DedupStore) loadArtifacts(ctx context.Context, idx *DedupIndex) {
	entries, err := os.ReadDir(s.ScreenshotsDir)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.WarnContext(ctx, "failed to list screenshots", "dir", s.ScreenshotsDir, "err", err)
		}
		return
	}
	for _, entry := range entries {
		groups := artifactNameRegex.FindStringSubmatch(entry.Name())
		if len(groups) < 2 {
			continue
		}
		idx.Add(groups[1])
	}
}

func (s DedupStore) loadJournal(ctx context.Context, idx *DedupIndex) {
	if s.Journal == nil {
		return
	}
	ids, err := s.Journal.CompletedIDs(ctx)
	if err != nil {
		slog.WarnContext(ctx, "failed to read job journal", "err", err)
		return
	}
	for _, id := range ids {
		idx.Add(id)
	}
}
