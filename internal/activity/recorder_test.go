package activity

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/philiporange/torrent-manager/internal/domain"
)

type stubStatusStore struct {
	mu   sync.Mutex
	rows map[domain.InfoHash][]domain.Status
}

func newStubStatusStore() *stubStatusStore {
	return &stubStatusStore{rows: make(map[domain.InfoHash][]domain.Status)}
}

func (s *stubStatusStore) AppendStatus(ctx context.Context, st domain.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[st.TorrentHash] = append(s.rows[st.TorrentHash], st)
	return nil
}

func (s *stubStatusStore) ListStatuses(ctx context.Context, torrentID domain.InfoHash) ([]domain.Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Status, len(s.rows[torrentID]))
	copy(out, s.rows[torrentID])
	return out, nil
}

func (s *stubStatusStore) PruneStatuses(ctx context.Context, olderThanDays int) (int64, error) {
	return 0, nil
}

func at(seconds int) time.Time {
	return time.Unix(0, 0).UTC().Add(time.Duration(seconds) * time.Second)
}

func seedingRow(hash domain.InfoHash, seconds int, seeding bool) domain.Status {
	return domain.Status{TorrentHash: hash, IsSeeding: seeding, Timestamp: at(seconds)}
}

// Testable Property 8: all gaps < max_gap sums to t_last - t_first.
func TestSeedingDuration_ContinuousRun(t *testing.T) {
	rows := []domain.Status{
		seedingRow("H", 0, true),
		seedingRow("H", 60, true),
		seedingRow("H", 120, true),
		seedingRow("H", 180, true),
	}
	got := SeedingDuration(rows, 300*time.Second)
	want := 180 * time.Second
	if got != want {
		t.Fatalf("got %v want %v", got, want)
	}
}

// Property 8: a non-seeding observation resets the accumulator, so only
// the run since the last reset counts.
func TestSeedingDuration_GapResets(t *testing.T) {
	rows := []domain.Status{
		seedingRow("H", 0, true),
		seedingRow("H", 60, true),
		seedingRow("H", 90, false),
		seedingRow("H", 120, true),
		seedingRow("H", 180, true),
	}
	got := SeedingDuration(rows, 300*time.Second)
	// The 90s non-seeding row zeroes the accumulator built up by (60-0);
	// only (180-120) = 60 survives to the end.
	want := 60 * time.Second
	if got != want {
		t.Fatalf("got %v want %v", got, want)
	}
}

// Property 8: a gap >= max_gap between two seeding rows is not accrued.
func TestSeedingDuration_LargeGapNotAccrued(t *testing.T) {
	rows := []domain.Status{
		seedingRow("H", 0, true),
		seedingRow("H", 500, true), // gap of 500s >= 300s max_gap
		seedingRow("H", 560, true),
	}
	got := SeedingDuration(rows, 300*time.Second)
	want := 60 * time.Second
	if got != want {
		t.Fatalf("got %v want %v", got, want)
	}
}

func TestRecorder_NeverSeeded(t *testing.T) {
	store := newStubStatusStore()
	rec := &Recorder{Statuses: store, Now: func() time.Time { return at(0) }}
	ctx := context.Background()

	if err := rec.Record(ctx, "A", "b1", false, false, 0.5, 0, 0, 1, 1); err != nil {
		t.Fatal(err)
	}
	if err := rec.Record(ctx, "B", "b1", true, false, 1.0, 0, 0, 0, 0); err != nil {
		t.Fatal(err)
	}

	never, err := rec.NeverSeeded(ctx, []domain.InfoHash{"A", "B", "C"})
	if err != nil {
		t.Fatal(err)
	}
	if !never["A"] {
		t.Errorf("expected A to be never-seeded")
	}
	if never["B"] {
		t.Errorf("B has a seeding row, should not be never-seeded")
	}
	if never["C"] {
		t.Errorf("C has no rows at all, should not appear in the result")
	}
}
