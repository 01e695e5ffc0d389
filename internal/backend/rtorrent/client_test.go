package rtorrent

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/philiporange/torrent-manager/internal/domain"
)

func TestPriorityMapping(t *testing.T) {
	tests := []struct {
		rt   int64
		want domain.Priority
	}{
		{0, domain.PriorityDoNotDownload},
		{1, domain.PriorityNormal},
		{2, domain.PriorityNormal},
		{3, domain.PriorityHigh},
	}
	for _, tt := range tests {
		if got := priorityFromRTorrent(tt.rt); got != tt.want {
			t.Errorf("priorityFromRTorrent(%d) = %v, want %v", tt.rt, got, tt.want)
		}
	}
	if priorityToRTorrent(domain.PriorityDoNotDownload) != 0 {
		t.Error("expected do-not-download to map to 0")
	}
	if priorityToRTorrent(domain.PriorityHigh) != 3 {
		t.Error("expected high to map to 3")
	}
}

func TestStateFromFlags(t *testing.T) {
	if got := stateFromFlags(true, true); got != "seeding" {
		t.Errorf("active+complete: got %q, want seeding", got)
	}
	if got := stateFromFlags(true, false); got != "downloading" {
		t.Errorf("active+incomplete: got %q, want downloading", got)
	}
	if got := stateFromFlags(false, false); got != "stopped" {
		t.Errorf("inactive: got %q, want stopped", got)
	}
}

func TestProgressOfCapsAtOne(t *testing.T) {
	if got := progressOf(150, 100); got != 1.0 {
		t.Errorf("expected overflow capped to 1.0, got %f", got)
	}
	if got := progressOf(0, 0); got != 0 {
		t.Errorf("zero total: got %f, want 0", got)
	}
	if got := progressOf(50, 100); got != 0.5 {
		t.Errorf("half: got %f, want 0.5", got)
	}
}

func fakeRTorrentServer(t *testing.T, handler func(method string, params []any) []any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		methodStart := strings.Index(string(body), "<methodName>") + len("<methodName>")
		methodEnd := strings.Index(string(body), "</methodName>")
		method := string(body)[methodStart:methodEnd]

		results := handler(method, nil)
		var resp strings.Builder
		resp.WriteString(`<?xml version="1.0"?><methodResponse><params>`)
		for _, res := range results {
			resp.WriteString("<param>")
			resp.WriteString(encodeNative(res))
			resp.WriteString("</param>")
		}
		resp.WriteString(`</params></methodResponse>`)
		w.Header().Set("Content-Type", "text/xml")
		w.Write([]byte(resp.String()))
	}))
}

// encodeNative renders a Go value back to XML-RPC <value> for test fixtures.
func encodeNative(v any) string {
	switch t := v.(type) {
	case string:
		return stringParamXML(t)
	case int64:
		return intParamXML(t)
	case bool:
		b := "0"
		if t {
			b = "1"
		}
		return "<value><boolean>" + b + "</boolean></value>"
	case []any:
		var sb strings.Builder
		sb.WriteString("<value><array><data>")
		for _, e := range t {
			sb.WriteString(encodeNative(e))
		}
		sb.WriteString("</data></array></value>")
		return sb.String()
	default:
		return "<value><string></string></value>"
	}
}

func TestListTorrentsParsesMulticallRows(t *testing.T) {
	row := []any{
		"abc123", "Big Buck Bunny", "/downloads/bbb", int64(1000), int64(500),
		true, false, int64(500), int64(10), int64(20), int64(3), int64(2), false, true,
	}
	srv := fakeRTorrentServer(t, func(method string, _ []any) []any {
		if method != "d.multicall2" {
			t.Fatalf("unexpected method %q", method)
		}
		return []any{[]any{row}}
	})
	defer srv.Close()

	c := New(domain.Backend{Host: strings.TrimPrefix(srv.URL, "http://"), Port: 0}, srv.Client())
	c.rpc.url = srv.URL

	views, err := c.ListTorrents(context.Background(), "", false)
	if err != nil {
		t.Fatalf("ListTorrents: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("expected 1 view, got %d", len(views))
	}
	v := views[0]
	if v.InfoHash != "ABC123" {
		t.Errorf("expected uppercased hash, got %q", v.InfoHash)
	}
	if v.State != "downloading" {
		t.Errorf("expected downloading state, got %q", v.State)
	}
	if v.Progress != 0.5 {
		t.Errorf("expected progress 0.5, got %f", v.Progress)
	}
}

func TestEraseStopsBeforeRemoving(t *testing.T) {
	var calls []string
	srv := fakeRTorrentServer(t, func(method string, _ []any) []any {
		calls = append(calls, method)
		if method == "d.is_active" {
			return []any{false}
		}
		return []any{int64(0)}
	})
	defer srv.Close()

	c := New(domain.Backend{}, srv.Client())
	c.rpc.url = srv.URL

	if err := c.Erase(context.Background(), "ABC", false); err != nil {
		t.Fatalf("Erase: %v", err)
	}
	if len(calls) < 2 || calls[0] != "d.stop" {
		t.Fatalf("expected d.stop before d.erase, got %v", calls)
	}
	if calls[len(calls)-1] != "d.erase" {
		t.Fatalf("expected d.erase as final call, got %v", calls)
	}
}
