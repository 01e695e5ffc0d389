package factory

import (
	"testing"

	"github.com/philiporange/torrent-manager/internal/backend/fake"
	"github.com/philiporange/torrent-manager/internal/domain"
)

func TestGetCachesClientByVersion(t *testing.T) {
	f := New(nil)
	ctx := t.Context()
	b := domain.Backend{ID: "b1", Kind: domain.BackendFake, Version: 1}

	c1, err := f.Get(ctx, b)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	c2, err := f.Get(ctx, b)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if c1 != c2 {
		t.Error("expected the same cached client instance for unchanged version")
	}

	b.Version = 2
	c3, err := f.Get(ctx, b)
	if err != nil {
		t.Fatalf("Get after version bump: %v", err)
	}
	if c3 == c1 {
		t.Error("expected a rebuilt client after version bump")
	}
}

func TestInvalidateForcesRebuild(t *testing.T) {
	f := New(nil)
	ctx := t.Context()
	b := domain.Backend{ID: "b1", Kind: domain.BackendFake, Version: 1}

	c1, _ := f.Get(ctx, b)
	f.Invalidate(b.ID)
	c2, _ := f.Get(ctx, b)
	if c1 == c2 {
		t.Error("expected a new client instance after Invalidate")
	}
}

func TestRegisterFakeReturnsExactInstance(t *testing.T) {
	f := New(nil)
	ctx := t.Context()
	fc := fake.New()
	f.RegisterFake("b1", fc)

	got, err := f.Get(ctx, domain.Backend{ID: "b1", Kind: domain.BackendFake})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != fc {
		t.Error("expected the preregistered fake client instance")
	}
}

func TestUnknownBackendKindErrors(t *testing.T) {
	f := New(nil)
	ctx := t.Context()
	if _, err := f.Get(ctx, domain.Backend{ID: "b1", Kind: "bogus"}); err == nil {
		t.Error("expected an error for unknown backend kind")
	}
}
