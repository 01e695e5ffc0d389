package fake

import (
	"errors"
	"testing"

	"github.com/philiporange/torrent-manager/internal/domain"
)

func TestAddStartStopEraseLifecycle(t *testing.T) {
	c := New()
	ctx := t.Context()

	if err := c.AddMagnet(ctx, "magnet:?xt=urn:btih:test", false, domain.PriorityNormal); err != nil {
		t.Fatalf("AddMagnet: %v", err)
	}
	views, err := c.ListTorrents(ctx, "", false)
	if err != nil || len(views) != 1 {
		t.Fatalf("ListTorrents: %v, %d views", err, len(views))
	}
	hash := views[0].InfoHash
	if views[0].State != "stopped" {
		t.Errorf("expected stopped, got %q", views[0].State)
	}

	if err := c.Start(ctx, hash); err != nil {
		t.Fatalf("Start: %v", err)
	}
	views, _ = c.ListTorrents(ctx, hash, false)
	if views[0].State != "downloading" {
		t.Errorf("expected downloading, got %q", views[0].State)
	}

	if err := c.Stop(ctx, hash); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	views, _ = c.ListTorrents(ctx, hash, false)
	if views[0].State != "stopped" {
		t.Errorf("expected stopped after Stop, got %q", views[0].State)
	}

	if err := c.Erase(ctx, hash, true); err != nil {
		t.Fatalf("Erase: %v", err)
	}
	views, err = c.ListTorrents(ctx, hash, false)
	if err != nil || len(views) != 0 {
		t.Fatalf("expected no torrents after erase, got %v / %d", err, len(views))
	}
}

func TestOperationsOnUnknownHashReturnNotFound(t *testing.T) {
	c := New()
	ctx := t.Context()
	if err := c.Start(ctx, "MISSING"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Start on missing hash: got %v, want ErrNotFound", err)
	}
	if err := c.SetPriority(ctx, "MISSING", domain.PriorityHigh); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("SetPriority on missing hash: got %v, want ErrNotFound", err)
	}
	if _, err := c.Files(ctx, "MISSING"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("Files on missing hash: got %v, want ErrNotFound", err)
	}
}

func TestPingReturnsInjectedError(t *testing.T) {
	c := New()
	ctx := t.Context()
	if err := c.Ping(ctx); err != nil {
		t.Fatalf("expected nil error by default, got %v", err)
	}
	boom := errors.New("boom")
	c.SetPingError(boom)
	if err := c.Ping(ctx); !errors.Is(err, boom) {
		t.Errorf("expected injected error, got %v", err)
	}
}

func TestSeedAndFilePriority(t *testing.T) {
	c := New()
	ctx := t.Context()
	c.Seed(domain.TorrentView{InfoHash: "ABC", Name: "seeded"}, []domain.FileView{
		{Index: 0, Path: "a.mkv", Priority: domain.PriorityNormal},
	})

	if err := c.SetFilePriority(ctx, "ABC", 0, domain.PriorityDoNotDownload); err != nil {
		t.Fatalf("SetFilePriority: %v", err)
	}
	files, err := c.Files(ctx, "ABC")
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if files[0].Priority != domain.PriorityDoNotDownload {
		t.Errorf("expected updated priority, got %v", files[0].Priority)
	}

	if err := c.SetFilePriority(ctx, "ABC", 5, domain.PriorityHigh); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected ErrNotFound for out-of-range index, got %v", err)
	}
}
