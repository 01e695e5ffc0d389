package domain

import "time"

// TransferState is the lifecycle of a TransferJob.
type TransferState string

const (
	TransferPending TransferState = "pending"
	TransferRunning TransferState = "running"
	TransferDone    TransferState = "done"
	TransferFailed  TransferState = "failed"
)

// TransferJob moves a completed remote torrent's payload to local storage.
// One job exists per (TorrentHash, BackendID); resubmitting while a job is
// pending or running returns the existing job (see internal/transfer).
type TransferJob struct {
	ID         string        `json:"id" bson:"_id"`
	TorrentID  InfoHash      `json:"torrentHash" bson:"torrentHash"`
	BackendID  string        `json:"backendId" bson:"backendId"`
	SourcePath string        `json:"sourcePath" bson:"sourcePath"`
	DestPath   string        `json:"destPath" bson:"destPath"`
	State      TransferState `json:"state" bson:"state"`
	BytesDone  int64         `json:"bytesDone" bson:"bytesDone"`
	BytesTotal int64         `json:"bytesTotal" bson:"bytesTotal"`
	StartedAt  time.Time     `json:"startedAt" bson:"startedAt"`
	FinishedAt *time.Time    `json:"finishedAt,omitempty" bson:"finishedAt,omitempty"`
	Error      string        `json:"error,omitempty" bson:"error,omitempty"`
}

// IsTerminal reports whether the job will never transition again.
func (j TransferJob) IsTerminal() bool {
	return j.State == TransferDone || j.State == TransferFailed
}

// IsActive reports whether a resubmission for the same key should be
// deduplicated against this job.
func (j TransferJob) IsActive() bool {
	return j.State == TransferPending || j.State == TransferRunning
}
