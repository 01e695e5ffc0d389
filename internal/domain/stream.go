package domain

import "time"

// StreamState is the lifecycle of an HLS transcode job (spec.md §4.8).
type StreamState string

const (
	StreamStarting StreamState = "starting"
	StreamRunning  StreamState = "running"
	StreamDone     StreamState = "done"
	StreamFailed   StreamState = "failed"
)

// StreamJob is the on-demand HLS transcode session the HTTP adapter hands
// back from start_stream/job_info. It is process-lifetime state only — no
// store backs it, and every job is torn down on shutdown (spec.md §4.8).
type StreamJob struct {
	ID                string      `json:"job_id"`
	BackendID         string      `json:"-"`
	FilePath          string      `json:"-"`
	PlaylistPath      string      `json:"-"`
	State             StreamState `json:"status"`
	MediaType         string      `json:"media_type,omitempty"`
	DurationSeconds   float64     `json:"duration_seconds"`
	TranscodedSeconds float64     `json:"transcoded_seconds"`
	Error             string      `json:"error,omitempty"`
	CreatedAt         time.Time   `json:"-"`
}

// IsTerminal reports whether the job will never transition again.
func (j StreamJob) IsTerminal() bool {
	return j.State == StreamDone || j.State == StreamFailed
}
