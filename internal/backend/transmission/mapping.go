package transmission

import "github.com/philiporange/torrent-manager/internal/domain"

// Transmission status codes (rpc-spec.txt §3.1).
const (
	statusStopped      = 0
	statusCheckWait    = 1
	statusCheck        = 2
	statusDownloadWait = 3
	statusDownload     = 4
	statusSeedWait     = 5
	statusSeed         = 6
)

func stateFromStatus(status int64) string {
	switch status {
	case statusSeed:
		return "seeding"
	case statusDownload, statusDownloadWait:
		return "downloading"
	case statusCheck, statusCheckWait:
		return "checking"
	default:
		return "stopped"
	}
}

// Transmission's file-level priority ranges -1 (low) to 1 (high); whether a
// file downloads at all is governed separately by FileStats.Wanted. The
// normalized contract folds both into one three-level domain.Priority
// (spec.md §4.2).
func priorityFromTransmission(wanted bool, priority int64) domain.Priority {
	if !wanted {
		return domain.PriorityDoNotDownload
	}
	if priority > 0 {
		return domain.PriorityHigh
	}
	return domain.PriorityNormal
}

func priorityToTransmission(p domain.Priority) (wanted bool, priority int64) {
	switch p {
	case domain.PriorityDoNotDownload:
		return false, 0
	case domain.PriorityHigh:
		return true, 1
	default:
		return true, 0
	}
}

func progressOf(percentDone float64) float64 {
	if percentDone < 0 {
		return 0
	}
	if percentDone > 1 {
		return 1
	}
	return percentDone
}
