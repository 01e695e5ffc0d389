package domain

import "time"

// ActionKind enumerates the audit events appended to a torrent's history.
type ActionKind string

const (
	ActionAdd             ActionKind = "add"
	ActionStart           ActionKind = "start"
	ActionStop            ActionKind = "stop"
	ActionRemove          ActionKind = "remove"
	ActionTransferStart   ActionKind = "transfer_start"
	ActionTransferDone    ActionKind = "transfer_done"
	ActionError           ActionKind = "error"
)

// Action is one append-only audit entry for a torrent.
type Action struct {
	TorrentHash InfoHash   `json:"torrentHash" bson:"torrentHash"`
	Kind        ActionKind `json:"kind" bson:"kind"`
	Timestamp   time.Time  `json:"timestamp" bson:"timestamp"`
	Detail      string     `json:"detail,omitempty" bson:"detail,omitempty"`
}
