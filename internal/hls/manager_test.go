package hls

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/philiporange/torrent-manager/internal/domain"
)

type stubBackendStore struct{ backend domain.Backend }

func (s *stubBackendStore) CreateBackend(ctx context.Context, b domain.Backend) error { return nil }
func (s *stubBackendStore) UpdateBackend(ctx context.Context, b domain.Backend) error { return nil }
func (s *stubBackendStore) GetBackend(ctx context.Context, id string) (domain.Backend, error) {
	if id != s.backend.ID {
		return domain.Backend{}, domain.ErrNotFound
	}
	return s.backend, nil
}
func (s *stubBackendStore) ListBackends(ctx context.Context, ownerUserID string) ([]domain.Backend, error) {
	return []domain.Backend{s.backend}, nil
}
func (s *stubBackendStore) ListAllEnabledBackends(ctx context.Context) ([]domain.Backend, error) {
	return []domain.Backend{s.backend}, nil
}
func (s *stubBackendStore) DeleteBackend(ctx context.Context, id string) error { return nil }
func (s *stubBackendStore) TouchBackendHealth(ctx context.Context, id, lastError string) error {
	return nil
}

func ffmpegAvailable(t *testing.T) string {
	t.Helper()
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		t.Skip("ffmpeg binary not available, skipping integration test")
	}
	return path
}

// Testable Property 11: StartStream twice for identical (backend_id,
// file_path) returns the same job id.
func TestManager_StartStreamDedupsOnBackendAndFilePath(t *testing.T) {
	ffmpegPath := ffmpegAvailable(t)
	ctx := context.Background()

	backend := domain.Backend{ID: "b1", OwnerUserID: "alice", Enabled: true, MountPath: t.TempDir()}
	m := &Manager{
		Backends: &stubBackendStore{backend: backend},
		Config:   Config{FFmpegPath: ffmpegPath, BaseDir: t.TempDir()},
		Now:      func() time.Time { return time.Unix(0, 0).UTC() },
	}

	first, err := m.StartStream(ctx, "alice", "b1", "movie.mkv")
	if err != nil {
		t.Fatalf("first StartStream: %v", err)
	}
	if first.State != domain.StreamStarting {
		t.Fatalf("expected a starting job, got %q", first.State)
	}

	second, err := m.StartStream(ctx, "alice", "b1", "movie.mkv")
	if err != nil {
		t.Fatalf("second StartStream: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected the same job id on resubmission, got %q vs %q", first.ID, second.ID)
	}

	m.mu.Lock()
	count := len(m.jobs)
	m.mu.Unlock()
	if count != 1 {
		t.Fatalf("expected exactly one tracked job, got %d", count)
	}

	// Shutdown tears down the ffmpeg process this test spawned against a
	// nonexistent input; it is expected to fail quickly, which is fine —
	// we only assert on dedup, not on successful transcoding here.
	m.Shutdown()
}

func TestManager_StartStreamNoSourceConfigured(t *testing.T) {
	ctx := context.Background()

	backend := domain.Backend{ID: "b1", OwnerUserID: "alice", Enabled: true}
	m := &Manager{
		Backends: &stubBackendStore{backend: backend},
		Config:   Config{BaseDir: t.TempDir()},
	}

	_, err := m.StartStream(ctx, "alice", "b1", "movie.mkv")
	if err == nil {
		t.Fatal("expected an error when the backend has no mount path or http_download endpoint")
	}

	m.mu.Lock()
	count := len(m.jobs)
	m.mu.Unlock()
	if count != 0 {
		t.Fatalf("expected the claimed job key to be dropped on resolveInput failure, got %d tracked jobs", count)
	}
}

func TestManager_StartStreamForbiddenForOtherOwner(t *testing.T) {
	ctx := context.Background()

	backend := domain.Backend{ID: "b1", OwnerUserID: "alice", Enabled: true, MountPath: t.TempDir()}
	m := &Manager{
		Backends: &stubBackendStore{backend: backend},
		Config:   Config{BaseDir: t.TempDir()},
	}

	_, err := m.StartStream(ctx, "mallory", "b1", "movie.mkv")
	if err != domain.ErrForbidden {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestManager_JobInfoUnknownID(t *testing.T) {
	m := &Manager{Backends: &stubBackendStore{}}
	if _, err := m.JobInfo("nope"); err != domain.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestManager_SweepRemovesIdleJobs(t *testing.T) {
	ffmpegPath := ffmpegAvailable(t)
	ctx := context.Background()

	backend := domain.Backend{ID: "b1", OwnerUserID: "alice", Enabled: true, MountPath: t.TempDir()}
	now := time.Unix(0, 0).UTC()
	m := &Manager{
		Backends: &stubBackendStore{backend: backend},
		Config:   Config{FFmpegPath: ffmpegPath, BaseDir: t.TempDir(), IdleTimeout: time.Minute},
		Now:      func() time.Time { return now },
	}

	if _, err := m.StartStream(ctx, "alice", "b1", "movie.mkv"); err != nil {
		t.Fatalf("StartStream: %v", err)
	}

	now = now.Add(2 * time.Minute)
	m.sweep()

	m.mu.Lock()
	count := len(m.jobs)
	m.mu.Unlock()
	if count != 0 {
		t.Fatalf("expected the idle job to be swept, got %d remaining", count)
	}
}
