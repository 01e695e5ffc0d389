package domain

// TorrentView is the normalized shape every BackendClient implementation
// returns from list_torrents, regardless of whether the remote speaks
// rTorrent's XML-RPC or Transmission's JSON-RPC (spec.md §4.2).
type TorrentView struct {
	InfoHash        InfoHash   `json:"infoHash"`
	Name            string     `json:"name"`
	BasePath        string     `json:"basePath"`
	Size            int64      `json:"size"`
	IsMultiFile     bool       `json:"isMultiFile"`
	BytesDone       int64      `json:"bytesDone"`
	State           string     `json:"state"`
	IsActive        bool       `json:"isActive"`
	Complete        bool       `json:"complete"`
	Ratio           float64    `json:"ratio"`
	UpRate          int64      `json:"upRate"`
	DownRate        int64      `json:"downRate"`
	Peers           int        `json:"peers"`
	Seeds           int        `json:"seeds"`
	Priority        Priority   `json:"priority"`
	IsPrivate       bool       `json:"isPrivate"`
	Progress        float64    `json:"progress"`
	IsMagnetPending bool       `json:"isMagnetPending"`
	Files           []FileView `json:"files,omitempty"`
}

// FileView is one file within a (possibly multi-file) torrent.
type FileView struct {
	Index    int      `json:"index"`
	Path     string   `json:"path"`
	Size     int64    `json:"size"`
	Priority Priority `json:"priority"`
	Progress float64  `json:"progress"`
}

// Priority is the normalized download priority, shared by torrents and
// individual files. 0 means "do not download", 2 means "high" across both
// backend dialects (spec.md §4.2).
type Priority int

const (
	PriorityDoNotDownload Priority = 0
	PriorityNormal        Priority = 1
	PriorityHigh          Priority = 2
)

// AggregatedTorrentView is a TorrentView tagged with the backend it came
// from, returned to HTTP callers by the read-all dispatch path.
type AggregatedTorrentView struct {
	TorrentView
	BackendID      string  `json:"serverId"`
	BackendName    string  `json:"serverName"`
	BackendKind    BackendKind `json:"serverType"`
	SeedingSeconds int64   `json:"seedingDuration"`
	SeedThreshold  int64   `json:"seedThreshold"`
}

// BackendError is one entry in the partial-failure errors[] sidecar
// returned alongside a read-all aggregation (spec.md §4.4, §7).
type BackendError struct {
	BackendID string `json:"backendId"`
	Message   string `json:"message"`
}
