package domain

import (
	"strconv"
	"time"
)

// HTTPDownloadEndpoint is the optional HTTP surface a backend exposes for
// fetching completed torrent payloads (used by the transfer manager).
type HTTPDownloadEndpoint struct {
	Host    string `json:"host" bson:"host"`
	Port    int    `json:"port" bson:"port"`
	Path    string `json:"path,omitempty" bson:"path,omitempty"`
	Auth    *Auth  `json:"auth,omitempty" bson:"auth,omitempty"`
	UseSSL  bool   `json:"useSsl" bson:"useSsl"`
	Enabled bool   `json:"enabled" bson:"enabled"`
}

// Auth holds a basic-auth (or RPC-auth) credential pair.
type Auth struct {
	Username string `json:"username,omitempty" bson:"username,omitempty"`
	Password string `json:"password,omitempty" bson:"password,omitempty"`
}

// AutoDownload configures whether, and how, a completed remote torrent is
// fetched to local storage by the transfer job manager.
type AutoDownload struct {
	Enabled           bool   `json:"enabled" bson:"enabled"`
	LocalPath         string `json:"localPath,omitempty" bson:"localPath,omitempty"`
	DeleteRemoteAfter bool   `json:"deleteRemoteAfter" bson:"deleteRemoteAfter"`
}

// SSHConfig names the transport the transfer manager uses when neither a
// mount path nor an HTTP-download endpoint is configured.
type SSHConfig struct {
	Host    string `json:"host" bson:"host"`
	Port    int    `json:"port" bson:"port"`
	User    string `json:"user" bson:"user"`
	KeyPath string `json:"keyPath" bson:"keyPath"`
}

// Backend is a remote torrent client a user has registered. At most one
// Backend per owner may have IsDefault set.
type Backend struct {
	ID            string                `json:"id" bson:"_id"`
	OwnerUserID   string                `json:"ownerUserId" bson:"ownerUserId"`
	Name          string                `json:"name" bson:"name"`
	Kind          BackendKind           `json:"kind" bson:"kind"`
	Host          string                `json:"host" bson:"host"`
	Port          int                   `json:"port" bson:"port"`
	RPCPath       string                `json:"rpcPath,omitempty" bson:"rpcPath,omitempty"`
	UseSSL        bool                  `json:"useSsl" bson:"useSsl"`
	Auth          *Auth                 `json:"auth,omitempty" bson:"auth,omitempty"`
	Enabled       bool                  `json:"enabled" bson:"enabled"`
	IsDefault     bool                  `json:"isDefault" bson:"isDefault"`
	CreatedAt     time.Time             `json:"createdAt" bson:"createdAt"`
	HTTPDownload  *HTTPDownloadEndpoint `json:"httpDownload,omitempty" bson:"httpDownload,omitempty"`
	MountPath     string                `json:"mountPath,omitempty" bson:"mountPath,omitempty"`
	DownloadDir   string                `json:"downloadDir,omitempty" bson:"downloadDir,omitempty"`
	AutoDownload  *AutoDownload         `json:"autoDownload,omitempty" bson:"autoDownload,omitempty"`
	SSH           *SSHConfig            `json:"ssh,omitempty" bson:"ssh,omitempty"`
	LastSeenAt    *time.Time            `json:"lastSeenAt,omitempty" bson:"lastSeenAt,omitempty"`
	LastError     string                `json:"lastError,omitempty" bson:"lastError,omitempty"`

	// version is bumped by the store on every Update; the client factory
	// uses it to invalidate its connection cache for this backend.
	Version int `json:"-" bson:"version"`
}

// BaseURL builds the scheme://host:port used by both RPC dialects.
func (b Backend) BaseURL() string {
	scheme := "http"
	if b.UseSSL {
		scheme = "https"
	}
	return scheme + "://" + b.Host + ":" + portString(b.Port)
}

func portString(port int) string {
	if port <= 0 {
		return "80"
	}
	return strconv.Itoa(port)
}
