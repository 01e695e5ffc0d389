// Package transmission speaks Transmission's JSON-RPC dialect (spec.md
// §4.2), including the 409 + X-Transmission-Session-Id CSRF handshake.
// Grounded on other_examples' HawkMachine-transmission_go_api (session-id
// retry shape) and SomniSom-transmissionrpc (torrent-set mutator payload,
// pointer-optional-field JSON marshalling); both reference implementations
// are themselves stdlib-only, so this client stays on net/http and
// encoding/json too (see DESIGN.md).
package transmission

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/philiporange/torrent-manager/internal/domain"
)

const sessionIDHeader = "X-Transmission-Session-Id"

// listFields is the set of torrent-get fields needed to fill a
// domain.TorrentView; kept narrow since rpc-spec requires an explicit list.
var listFields = []string{
	"hashString", "name", "downloadDir", "totalSize", "haveValid",
	"status", "isPrivate", "uploadRatio", "rateUpload", "rateDownload",
	"peersConnected", "percentDone", "bandwidthPriority", "files",
}

var fileListFields = []string{
	"hashString", "files", "fileStats",
}

// Client implements ports.BackendClient against one Transmission instance.
type Client struct {
	httpClient *http.Client
	url        string
	username   string
	password   string

	mu        sync.Mutex
	sessionID string
}

// New builds a Client for a single Transmission backend record.
func New(b domain.Backend, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	path := b.RPCPath
	if path == "" {
		path = "/transmission/rpc"
	}
	var user, pass string
	if b.Auth != nil {
		user, pass = b.Auth.Username, b.Auth.Password
	}
	return &Client{httpClient: httpClient, url: b.BaseURL() + path, username: user, password: pass}
}

type rpcRequest struct {
	Method    string `json:"method"`
	Arguments any    `json:"arguments,omitempty"`
	Tag       int    `json:"tag,omitempty"`
}

type rpcResponse struct {
	Result    string          `json:"result"`
	Arguments json.RawMessage `json:"arguments"`
	Tag       int             `json:"tag,omitempty"`
}

// call performs one RPC round trip, retrying exactly once on a 409 carrying
// a fresh session id (rpc-spec.txt §2.3.1).
func (c *Client) call(ctx context.Context, method string, args any, out any) error {
	body, err := json.Marshal(rpcRequest{Method: method, Arguments: args})
	if err != nil {
		return err
	}

	resp, err := c.post(ctx, body)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusConflict {
		resp.Body.Close()
		resp, err = c.post(ctx, body)
		if err != nil {
			return err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("transmission: http status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	var rr rpcResponse
	if err := json.Unmarshal(raw, &rr); err != nil {
		return fmt.Errorf("transmission: decode response: %w", err)
	}
	if rr.Result != "success" {
		return fmt.Errorf("transmission: %s", rr.Result)
	}
	if out != nil && len(rr.Arguments) > 0 {
		if err := json.Unmarshal(rr.Arguments, out); err != nil {
			return fmt.Errorf("transmission: decode arguments: %w", err)
		}
	}
	return nil
}

func (c *Client) post(ctx context.Context, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.mu.Lock()
	sid := c.sessionID
	c.mu.Unlock()
	if sid != "" {
		req.Header.Set(sessionIDHeader, sid)
	}
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusConflict {
		if newSID := resp.Header.Get(sessionIDHeader); newSID != "" {
			c.mu.Lock()
			c.sessionID = newSID
			c.mu.Unlock()
			req.Header.Set(sessionIDHeader, newSID)
		}
	}
	return resp, nil
}

type torrentDTO struct {
	HashString        string         `json:"hashString"`
	Name              string         `json:"name"`
	DownloadDir       string         `json:"downloadDir"`
	TotalSize         int64          `json:"totalSize"`
	HaveValid         int64          `json:"haveValid"`
	Status            int64          `json:"status"`
	IsPrivate         bool           `json:"isPrivate"`
	UploadRatio       float64        `json:"uploadRatio"`
	RateUpload        int64          `json:"rateUpload"`
	RateDownload      int64          `json:"rateDownload"`
	PeersConnected    int64          `json:"peersConnected"`
	PercentDone       float64        `json:"percentDone"`
	BandwidthPriority int64          `json:"bandwidthPriority"`
	Files             []fileDTO      `json:"files"`
	FileStats         []fileStatsDTO `json:"fileStats"`
}

type fileDTO struct {
	Name           string `json:"name"`
	BytesCompleted int64  `json:"bytesCompleted"`
	Length         int64  `json:"length"`
}

type fileStatsDTO struct {
	BytesCompleted int64 `json:"bytesCompleted"`
	Wanted         bool  `json:"wanted"`
	Priority       int64 `json:"priority"`
}

type torrentGetArgs struct {
	Fields []string `json:"fields"`
	IDs    []string `json:"ids,omitempty"`
}

type torrentGetResult struct {
	Torrents []torrentDTO `json:"torrents"`
}

func (c *Client) ListTorrents(ctx context.Context, infoHash domain.InfoHash, includeFiles bool) ([]domain.TorrentView, error) {
	fields := listFields
	args := torrentGetArgs{Fields: fields}
	if infoHash != "" {
		args.IDs = []string{string(infoHash)}
	}

	var result torrentGetResult
	if err := c.call(ctx, "torrent-get", args, &result); err != nil {
		return nil, fmt.Errorf("transmission: list_torrents: %w", err)
	}

	views := make([]domain.TorrentView, 0, len(result.Torrents))
	for _, t := range result.Torrents {
		v := torrentDTOToView(t)
		if includeFiles {
			v.Files = filesFromDTO(t)
		}
		views = append(views, v)
	}
	return views, nil
}

func torrentDTOToView(t torrentDTO) domain.TorrentView {
	state := stateFromStatus(t.Status)
	return domain.TorrentView{
		InfoHash:        domain.InfoHash(strings.ToUpper(t.HashString)),
		Name:            t.Name,
		BasePath:        t.DownloadDir,
		Size:            t.TotalSize,
		IsMultiFile:     len(t.Files) > 1,
		BytesDone:       t.HaveValid,
		State:           state,
		IsActive:        state == "downloading" || state == "seeding",
		Complete:        t.PercentDone >= 1,
		Ratio:           t.UploadRatio,
		UpRate:          t.RateUpload,
		DownRate:        t.RateDownload,
		Peers:           int(t.PeersConnected),
		Seeds:           0,
		Priority:        priorityFromBandwidth(t.BandwidthPriority),
		IsPrivate:       t.IsPrivate,
		Progress:        progressOf(t.PercentDone),
		IsMagnetPending: t.Name == "" && t.TotalSize == 0,
	}
}

// priorityFromBandwidth maps Transmission's torrent-level bandwidthPriority
// (-1 low, 0 normal, 1 high) onto the normalized three-level scale; a
// torrent is never "do not download" at the torrent level in Transmission,
// only at the per-file level (handled by priorityFromTransmission).
func priorityFromBandwidth(bp int64) domain.Priority {
	if bp > 0 {
		return domain.PriorityHigh
	}
	return domain.PriorityNormal
}

func filesFromDTO(t torrentDTO) []domain.FileView {
	files := make([]domain.FileView, 0, len(t.Files))
	for i, f := range t.Files {
		var wanted bool
		var priority int64
		if i < len(t.FileStats) {
			wanted = t.FileStats[i].Wanted
			priority = t.FileStats[i].Priority
		}
		files = append(files, domain.FileView{
			Index:    i,
			Path:     f.Name,
			Size:     f.Length,
			Priority: priorityFromTransmission(wanted, priority),
			Progress: progressOf(divide(f.BytesCompleted, f.Length)),
		})
	}
	return files
}

func divide(done, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(done) / float64(total)
}

func (c *Client) Files(ctx context.Context, infoHash domain.InfoHash) ([]domain.FileView, error) {
	args := torrentGetArgs{Fields: fileListFields, IDs: []string{string(infoHash)}}
	var result torrentGetResult
	if err := c.call(ctx, "torrent-get", args, &result); err != nil {
		return nil, fmt.Errorf("transmission: files: %w", err)
	}
	if len(result.Torrents) == 0 {
		return nil, nil
	}
	return filesFromDTO(result.Torrents[0]), nil
}

type torrentAddArgs struct {
	Filename    string `json:"filename,omitempty"`
	Metainfo    string `json:"metainfo,omitempty"`
	Paused      bool   `json:"paused"`
}

type torrentAddResult struct {
	TorrentAdded   *addedTorrent `json:"torrent-added"`
	TorrentDup     *addedTorrent `json:"torrent-duplicate"`
}

type addedTorrent struct {
	HashString string `json:"hashString"`
}

func (c *Client) AddTorrentFile(ctx context.Context, data []byte, start bool, priority domain.Priority) error {
	args := torrentAddArgs{Metainfo: base64.StdEncoding.EncodeToString(data), Paused: !start}
	var result torrentAddResult
	if err := c.call(ctx, "torrent-add", args, &result); err != nil {
		return fmt.Errorf("transmission: add_torrent_file: %w", err)
	}
	return c.applyAddedPriority(ctx, result, priority)
}

func (c *Client) AddMagnet(ctx context.Context, uri string, start bool, priority domain.Priority) error {
	args := torrentAddArgs{Filename: uri, Paused: !start}
	var result torrentAddResult
	if err := c.call(ctx, "torrent-add", args, &result); err != nil {
		return fmt.Errorf("transmission: add_magnet: %w", err)
	}
	return c.applyAddedPriority(ctx, result, priority)
}

// AddTorrentURL passes the .torrent URL straight through as "filename";
// Transmission's torrent-add natively fetches http(s) URLs server-side
// (rpc-spec.txt §3.4), unlike rTorrent which needs an explicit client-side
// fetch-then-load (spec.md §4.2 leaves the transport detail to the backend).
func (c *Client) AddTorrentURL(ctx context.Context, url string, start bool, priority domain.Priority) error {
	args := torrentAddArgs{Filename: url, Paused: !start}
	var result torrentAddResult
	if err := c.call(ctx, "torrent-add", args, &result); err != nil {
		return fmt.Errorf("transmission: add_torrent_url: %w", err)
	}
	return c.applyAddedPriority(ctx, result, priority)
}

func (c *Client) applyAddedPriority(ctx context.Context, result torrentAddResult, priority domain.Priority) error {
	added := result.TorrentAdded
	if added == nil {
		added = result.TorrentDup
	}
	if added == nil || added.HashString == "" || priority == domain.PriorityNormal {
		return nil
	}
	return c.SetPriority(ctx, domain.InfoHash(added.HashString), priority)
}

type torrentActionArgs struct {
	IDs []string `json:"ids"`
}

func (c *Client) Start(ctx context.Context, infoHash domain.InfoHash) error {
	return c.call(ctx, "torrent-start", torrentActionArgs{IDs: []string{string(infoHash)}}, nil)
}

func (c *Client) Stop(ctx context.Context, infoHash domain.InfoHash) error {
	return c.call(ctx, "torrent-stop", torrentActionArgs{IDs: []string{string(infoHash)}}, nil)
}

type torrentRemoveArgs struct {
	IDs             []string `json:"ids"`
	DeleteLocalData bool     `json:"delete-local-data"`
}

func (c *Client) Erase(ctx context.Context, infoHash domain.InfoHash, deleteData bool) error {
	return c.call(ctx, "torrent-remove", torrentRemoveArgs{
		IDs:             []string{string(infoHash)},
		DeleteLocalData: deleteData,
	}, nil)
}

func (c *Client) SetPriority(ctx context.Context, infoHash domain.InfoHash, priority domain.Priority) error {
	bp := int64(0)
	if priority == domain.PriorityHigh {
		bp = 1
	}
	args := struct {
		IDs               []string `json:"ids"`
		BandwidthPriority int64    `json:"bandwidthPriority"`
	}{IDs: []string{string(infoHash)}, BandwidthPriority: bp}
	if err := c.call(ctx, "torrent-set", args, nil); err != nil {
		return err
	}
	if priority == domain.PriorityDoNotDownload {
		// A torrent-level "do not download" has no direct Transmission
		// equivalent; callers express it per-file via SetFilePriority.
		return nil
	}
	return nil
}

func (c *Client) SetFilePriority(ctx context.Context, infoHash domain.InfoHash, index int, priority domain.Priority) error {
	wanted, prio := priorityToTransmission(priority)
	args := struct {
		IDs            []string `json:"ids"`
		FilesWanted    []int64  `json:"files-wanted,omitempty"`
		FilesUnwanted  []int64  `json:"files-unwanted,omitempty"`
		PriorityHigh   []int64  `json:"priority-high,omitempty"`
		PriorityNormal []int64  `json:"priority-normal,omitempty"`
	}{IDs: []string{string(infoHash)}}

	if wanted {
		args.FilesWanted = []int64{int64(index)}
	} else {
		args.FilesUnwanted = []int64{int64(index)}
	}
	if prio > 0 {
		args.PriorityHigh = []int64{int64(index)}
	} else {
		args.PriorityNormal = []int64{int64(index)}
	}
	return c.call(ctx, "torrent-set", args, nil)
}

func (c *Client) Ping(ctx context.Context) error {
	return c.call(ctx, "session-get", nil, nil)
}
