package rtorrent

import "github.com/philiporange/torrent-manager/internal/domain"

// rTorrent exposes a 4-level priority (0=off,1=low,2=normal,3=high); the
// normalized contract only distinguishes do-not-download/normal/high
// (spec.md §4.2), so levels 1 and 2 both collapse to PriorityNormal.
func priorityFromRTorrent(p int64) domain.Priority {
	switch p {
	case 0:
		return domain.PriorityDoNotDownload
	case 3:
		return domain.PriorityHigh
	default:
		return domain.PriorityNormal
	}
}

func priorityToRTorrent(p domain.Priority) int64 {
	switch p {
	case domain.PriorityDoNotDownload:
		return 0
	case domain.PriorityHigh:
		return 3
	default:
		return 2
	}
}

func stateFromFlags(isActive, complete bool) string {
	switch {
	case complete && isActive:
		return "seeding"
	case isActive:
		return "downloading"
	default:
		return "stopped"
	}
}

func progressOf(done, total int64) float64 {
	if total <= 0 {
		return 0
	}
	p := float64(done) / float64(total)
	if p > 1 {
		p = 1
	}
	return p
}
