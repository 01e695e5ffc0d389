package domain

// TorrentSetting is a per-user, per-torrent key/value override (e.g. a
// seed-duration override or a label color). Stored flat; typed accessors
// live alongside the consumers that need them.
type TorrentSetting struct {
	TorrentHash InfoHash `json:"torrentHash" bson:"torrentHash"`
	OwnerUserID string   `json:"ownerUserId" bson:"ownerUserId"`
	Key         string   `json:"key" bson:"key"`
	Value       string   `json:"value" bson:"value"`
}

// Well-known TorrentSetting keys.
const (
	SettingSeedDurationOverride = "seed_duration_override_seconds"
	SettingLabelColor           = "label_color"
)
