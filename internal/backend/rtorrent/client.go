package rtorrent

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/philiporange/torrent-manager/internal/domain"
)

// maxTorrentFileBytes bounds AddTorrentURL's in-memory fetch; .torrent
// metadata files are always small.
const maxTorrentFileBytes = 16 << 20

func readAllLimited(r io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, maxTorrentFileBytes+1))
}

// listFields is the exact d.* command list passed to d.multicall2, fixed
// order so rowToView can index positionally (spec.md §4.2: "uses
// d.multicall2 to fetch the view fields in one round trip").
var listFields = []string{
	"d.hash=", "d.name=", "d.base_path=", "d.size_bytes=", "d.completed_bytes=",
	"d.is_active=", "d.complete=", "d.ratio=", "d.up_rate=", "d.down_rate=",
	"d.peers_connected=", "d.priority=", "d.is_private=", "d.is_multi_file=",
}

// fileFields is the f.* command list passed to f.multicall.
var fileFields = []string{"f.path=", "f.size_bytes=", "f.priority=", "f.completed_chunks=", "f.size_chunks="}

// Client implements ports.BackendClient against one rTorrent instance,
// speaking XML-RPC over HTTP (spec.md §4.2).
type Client struct {
	rpc *rpcCaller
}

// New builds a Client for a single rTorrent backend record.
func New(b domain.Backend, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	path := b.RPCPath
	if path == "" {
		path = "/RPC2"
	}
	url := b.BaseURL() + path
	var user, pass string
	if b.Auth != nil {
		user, pass = b.Auth.Username, b.Auth.Password
	}
	return &Client{rpc: newRPCCaller(httpClient, url, user, pass)}
}

func (c *Client) ListTorrents(ctx context.Context, infoHash domain.InfoHash, includeFiles bool) ([]domain.TorrentView, error) {
	target := ""
	if infoHash != "" {
		target = strings.ToUpper(string(infoHash))
	}

	params := make([]string, 0, 2+len(listFields))
	params = append(params, stringParamXML(target), stringParamXML("main"))
	for _, f := range listFields {
		params = append(params, stringParamXML(f))
	}

	rows, err := c.rpc.Call(ctx, "d.multicall2", params...)
	if err != nil {
		return nil, fmt.Errorf("rtorrent: list_torrents: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	outer, ok := rows[0].([]any)
	if !ok {
		return nil, nil
	}

	views := make([]domain.TorrentView, 0, len(outer))
	for _, row := range outer {
		cols, ok := row.([]any)
		if !ok || len(cols) < len(listFields) {
			continue
		}
		v := rowToView(cols)
		if includeFiles {
			files, err := c.Files(ctx, v.InfoHash)
			if err == nil {
				v.Files = files
			}
		}
		views = append(views, v)
	}
	return views, nil
}

func rowToView(cols []any) domain.TorrentView {
	hash := strings.ToUpper(asString(cols[0]))
	name := asString(cols[1])
	basePath := asString(cols[2])
	size := asInt64(cols[3])
	done := asInt64(cols[4])
	isActive := asBool(cols[5])
	complete := asBool(cols[6])
	ratio := float64(asInt64(cols[7])) / 1000.0
	upRate := asInt64(cols[8])
	downRate := asInt64(cols[9])
	peers := int(asInt64(cols[10]))
	priority := priorityFromRTorrent(asInt64(cols[11]))
	isPrivate := asBool(cols[12])
	isMultiFile := asBool(cols[13])

	return domain.TorrentView{
		InfoHash: domain.InfoHash(hash), Name: name, BasePath: basePath, Size: size,
		IsMultiFile: isMultiFile, BytesDone: done,
		State: stateFromFlags(isActive, complete), IsActive: isActive, Complete: complete,
		Ratio: ratio, UpRate: upRate, DownRate: downRate, Peers: peers, Seeds: 0,
		Priority: priority, IsPrivate: isPrivate, Progress: progressOf(done, size),
		IsMagnetPending: name == "" && size == 0,
	}
}

func (c *Client) Files(ctx context.Context, infoHash domain.InfoHash) ([]domain.FileView, error) {
	hash := strings.ToUpper(string(infoHash))
	params := []string{stringParamXML(hash), stringParamXML("")}
	for _, f := range fileFields {
		params = append(params, stringParamXML(f))
	}
	rows, err := c.rpc.Call(ctx, "f.multicall", params...)
	if err != nil {
		return nil, fmt.Errorf("rtorrent: files: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	outer, ok := rows[0].([]any)
	if !ok {
		return nil, nil
	}

	files := make([]domain.FileView, 0, len(outer))
	for i, row := range outer {
		cols, ok := row.([]any)
		if !ok || len(cols) < len(fileFields) {
			continue
		}
		size := asInt64(cols[1])
		chunksDone := asInt64(cols[3])
		chunksTotal := asInt64(cols[4])
		files = append(files, domain.FileView{
			Index: i, Path: asString(cols[0]), Size: size,
			Priority: priorityFromRTorrent(asInt64(cols[2])),
			Progress: progressOf(chunksDone, chunksTotal),
		})
	}
	return files, nil
}

func (c *Client) AddTorrentFile(ctx context.Context, data []byte, start bool, priority domain.Priority) error {
	method := "load.raw"
	if start {
		method = "load.raw_start"
	}
	if _, err := c.rpc.Call(ctx, method, stringParamXML(""), base64ParamXML(data)); err != nil {
		return err
	}
	return c.applyDefaultPriority(ctx, priority)
}

func (c *Client) AddMagnet(ctx context.Context, uri string, start bool, priority domain.Priority) error {
	method := "load.normal"
	if start {
		method = "load.start"
	}
	if _, err := c.rpc.Call(ctx, method, stringParamXML(""), stringParamXML(uri)); err != nil {
		return err
	}
	return c.applyDefaultPriority(ctx, priority)
}

// AddTorrentURL fetches the remote .torrent over HTTP into memory and
// delegates to AddTorrentFile, matching the normalized contract's
// documented behavior rather than rTorrent's own (also valid) native
// http-url loading (spec.md §4.2).
func (c *Client) AddTorrentURL(ctx context.Context, url string, start bool, priority domain.Priority) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.rpc.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rtorrent: fetch torrent url: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("rtorrent: fetch torrent url: status %d", resp.StatusCode)
	}
	data, err := readAllLimited(resp.Body)
	if err != nil {
		return err
	}
	return c.AddTorrentFile(ctx, data, start, priority)
}

// applyDefaultPriority is a no-op for every priority: rTorrent's load.*
// calls have no priority parameter and the newly loaded hash is unknown
// at this point. A torrent added through this client therefore keeps
// rTorrent's default (normal) priority; a non-normal add priority is not
// applied here or by any later call.
func (c *Client) applyDefaultPriority(ctx context.Context, priority domain.Priority) error {
	if priority == domain.PriorityNormal {
		return nil
	}
	return nil
}

func (c *Client) Start(ctx context.Context, infoHash domain.InfoHash) error {
	_, err := c.rpc.Call(ctx, "d.start", stringParamXML(strings.ToUpper(string(infoHash))))
	return err
}

func (c *Client) Stop(ctx context.Context, infoHash domain.InfoHash) error {
	_, err := c.rpc.Call(ctx, "d.stop", stringParamXML(strings.ToUpper(string(infoHash))))
	return err
}

// Erase stops the torrent and waits briefly for it to go inactive before
// removing it, per spec.md §4.2's erase contract.
func (c *Client) Erase(ctx context.Context, infoHash domain.InfoHash, deleteData bool) error {
	hash := strings.ToUpper(string(infoHash))
	if _, err := c.rpc.Call(ctx, "d.stop", stringParamXML(hash)); err != nil {
		return err
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		rows, err := c.rpc.Call(ctx, "d.is_active", stringParamXML(hash))
		if err == nil && len(rows) > 0 && !asBool(rows[0]) {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}

	// rTorrent's raw RPC surface has no "erase and delete underlying data"
	// call; deleteData is not acted on. d.erase removes the item from the
	// session and leaves its downloaded files on disk.
	_, err := c.rpc.Call(ctx, "d.erase", stringParamXML(hash))
	return err
}

func (c *Client) SetPriority(ctx context.Context, infoHash domain.InfoHash, priority domain.Priority) error {
	_, err := c.rpc.Call(ctx, "d.priority.set",
		stringParamXML(strings.ToUpper(string(infoHash))), intParamXML(priorityToRTorrent(priority)))
	return err
}

func (c *Client) SetFilePriority(ctx context.Context, infoHash domain.InfoHash, index int, priority domain.Priority) error {
	target := fmt.Sprintf("%s:f%d", strings.ToUpper(string(infoHash)), index)
	_, err := c.rpc.Call(ctx, "f.priority.set", stringParamXML(target), intParamXML(priorityToRTorrent(priority)))
	return err
}

func (c *Client) Ping(ctx context.Context) error {
	_, err := c.rpc.Call(ctx, "system.client_version")
	return err
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return ""
	}
}

func asInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case float64:
		return int64(t)
	case string:
		var n int64
		fmt.Sscanf(t, "%d", &n)
		return n
	default:
		return 0
	}
}

func asBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case int64:
		return t != 0
	default:
		return false
	}
}
