package domain

import "time"

// Torrent is a user's local record of a piece of torrent state living on
// one of their backends. Identity is (OwnerUserID, InfoHash); when the
// same hash exists on multiple backends, (OwnerUserID, InfoHash,
// BackendID) is the distinguishing key (DESIGN.md Open Question #2).
type Torrent struct {
	InfoHash    InfoHash  `json:"infoHash" bson:"infoHash"`
	OwnerUserID string    `json:"ownerUserId" bson:"ownerUserId"`
	BackendID   string    `json:"backendId" bson:"backendId"`
	Name        string    `json:"name" bson:"name"`
	Size        int64     `json:"size" bson:"size"`
	IsPrivate   bool      `json:"isPrivate" bson:"isPrivate"`
	BasePath    string    `json:"basePath,omitempty" bson:"basePath,omitempty"`
	AddedAt     time.Time `json:"addedAt" bson:"addedAt"`
	Labels      []string  `json:"labels,omitempty" bson:"labels,omitempty"`
}

// Key is the compound identity used by the store to address one Torrent row.
func (t Torrent) Key() TorrentKey {
	return TorrentKey{OwnerUserID: t.OwnerUserID, InfoHash: t.InfoHash, BackendID: t.BackendID}
}

// TorrentKey is the (owner, hash, backend) triple identifying one Torrent row.
type TorrentKey struct {
	OwnerUserID string
	InfoHash    InfoHash
	BackendID   string
}
