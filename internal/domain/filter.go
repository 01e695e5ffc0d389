package domain

// TorrentFilter narrows a List query over the Torrent collection.
type TorrentFilter struct {
	OwnerUserID string   `json:"ownerUserId,omitempty"`
	BackendID   string   `json:"backendId,omitempty"`
	InfoHash    InfoHash `json:"infoHash,omitempty"`
}

// TransferFilter narrows a List query over the TransferJob collection.
type TransferFilter struct {
	TorrentID InfoHash
	BackendID string
	State     *TransferState
}
