// Package activity implements the status recorder and seed-duration
// calculator (spec.md §4.5): append-only Status observations and the
// gap-aware seeding-time accumulation the maintenance scheduler uses to
// decide auto-pause. Grounded on the teacher's usecase.SyncState progress
// bookkeeping, reduced to a pure function over a slice so the Testable
// Properties (spec.md §8, property 8) hold deterministically.
package activity

import (
	"context"
	"time"

	"github.com/philiporange/torrent-manager/internal/domain"
	"github.com/philiporange/torrent-manager/internal/domain/ports"
)

// DefaultMaxGap is the default max_gap_seconds argument to SeedingDuration
// (spec.md §4.5).
const DefaultMaxGap = 300 * time.Second

// Recorder appends Status observations and answers seeding-duration and
// never-seeded queries over them.
type Recorder struct {
	Statuses ports.StatusStore
	Now      func() time.Time
}

func (r *Recorder) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now().UTC()
}

// Record appends one Status observation (spec.md §4.5's `record`).
func (r *Recorder) Record(ctx context.Context, torrentHash domain.InfoHash, backendID string, isSeeding, isPrivate bool, progress float64, downRate, upRate int64, peers, seeds int) error {
	return r.Statuses.AppendStatus(ctx, domain.Status{
		TorrentHash: torrentHash,
		BackendID:   backendID,
		IsSeeding:   isSeeding,
		IsPrivate:   isPrivate,
		Progress:    progress,
		DownRate:    downRate,
		UpRate:      upRate,
		Peers:       peers,
		Seeds:       seeds,
		Timestamp:   r.now(),
	})
}

// SeedingDuration computes accumulated seeding time over a torrent's
// Status history (spec.md §4.5's `seeding_duration`): the sum, over
// consecutive rows ordered by timestamp, of the gap between two
// consecutive seeding observations whose gap is under maxGap. A gap >=
// maxGap between two seeding rows is treated as offline: it is not
// accrued but the accumulator otherwise carries on across it. Any
// observation that is not seeding (on either side of the pair) resets
// the accumulator to zero, discarding everything accrued so far.
func (r *Recorder) SeedingDuration(ctx context.Context, torrentHash domain.InfoHash, maxGap time.Duration) (time.Duration, error) {
	rows, err := r.Statuses.ListStatuses(ctx, torrentHash)
	if err != nil {
		return 0, err
	}
	return SeedingDuration(rows, maxGap), nil
}

// SeedingDuration is the pure function backing Recorder.SeedingDuration,
// exported so the maintenance scheduler and tests can call it directly
// over an already-fetched row set without another store round trip.
func SeedingDuration(rows []domain.Status, maxGap time.Duration) time.Duration {
	if maxGap <= 0 {
		maxGap = DefaultMaxGap
	}
	if len(rows) < 2 {
		return 0
	}

	var run time.Duration
	for i := 1; i < len(rows); i++ {
		prev, cur := rows[i-1], rows[i]
		if !prev.IsSeeding || !cur.IsSeeding {
			run = 0
			continue
		}
		gap := cur.Timestamp.Sub(prev.Timestamp)
		if gap <= 0 || gap >= maxGap {
			continue
		}
		run += gap
	}
	return run
}

// NeverSeeded returns the set of torrent hashes among ids that have at
// least one Status row but none with IsSeeding=true (spec.md §4.5's
// `never_seeded`).
func (r *Recorder) NeverSeeded(ctx context.Context, ids []domain.InfoHash) (map[domain.InfoHash]bool, error) {
	out := make(map[domain.InfoHash]bool)
	for _, id := range ids {
		rows, err := r.Statuses.ListStatuses(ctx, id)
		if err != nil {
			return nil, err
		}
		if len(rows) == 0 {
			continue
		}
		seeded := false
		for _, row := range rows {
			if row.IsSeeding {
				seeded = true
				break
			}
		}
		if !seeded {
			out[id] = true
		}
	}
	return out, nil
}

// Prune deletes Status rows older than retentionDays (spec.md §4.5's
// `prune`, default STATUS_RETENTION_DAYS=30).
func (r *Recorder) Prune(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	return r.Statuses.PruneStatuses(ctx, retentionDays)
}
