package domain

import "time"

// Status is one append-only observation of a torrent's transfer state,
// written by the maintenance loop (and optionally by user-triggered
// refreshes). The activity recorder never mutates or deletes a row except
// through Prune.
type Status struct {
	TorrentHash InfoHash  `json:"torrentHash" bson:"torrentHash"`
	BackendID   string    `json:"backendId,omitempty" bson:"backendId,omitempty"`
	IsSeeding   bool      `json:"isSeeding" bson:"isSeeding"`
	IsPrivate   bool      `json:"isPrivate" bson:"isPrivate"`
	Progress    float64   `json:"progress" bson:"progress"`
	DownRate    int64     `json:"downRate" bson:"downRate"`
	UpRate      int64     `json:"upRate" bson:"upRate"`
	Peers       int       `json:"peers" bson:"peers"`
	Seeds       int       `json:"seeds" bson:"seeds"`
	Timestamp   time.Time `json:"timestamp" bson:"timestamp"`
}
