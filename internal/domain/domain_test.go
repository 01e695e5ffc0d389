package domain

import (
	"testing"
	"time"
)

func TestSessionExpired(t *testing.T) {
	now := time.Now()
	s := Session{ExpiresAt: now.Add(time.Minute)}
	if s.Expired(now) {
		t.Fatal("session should not be expired yet")
	}
	if !s.Expired(now.Add(2 * time.Minute)) {
		t.Fatal("session should be expired")
	}
}

func TestRememberTokenValid(t *testing.T) {
	now := time.Now()
	valid := RememberToken{ExpiresAt: now.Add(time.Hour)}
	if !valid.Valid(now) {
		t.Fatal("token should be valid")
	}
	expired := RememberToken{ExpiresAt: now.Add(-time.Hour)}
	if expired.Valid(now) {
		t.Fatal("expired token should be invalid")
	}
	revoked := RememberToken{ExpiresAt: now.Add(time.Hour), Revoked: true}
	if revoked.Valid(now) {
		t.Fatal("revoked token should be invalid")
	}
}

func TestApiKeyValid(t *testing.T) {
	now := time.Now()
	noExpiry := ApiKey{}
	if !noExpiry.Valid(now) {
		t.Fatal("key without expiry should be valid")
	}
	exp := now.Add(-time.Second)
	expired := ApiKey{ExpiresAt: &exp}
	if expired.Valid(now) {
		t.Fatal("expired key should be invalid")
	}
	revoked := ApiKey{Revoked: true}
	if revoked.Valid(now) {
		t.Fatal("revoked key should be invalid")
	}
}

func TestTransferJobStateHelpers(t *testing.T) {
	pending := TransferJob{State: TransferPending}
	if !pending.IsActive() || pending.IsTerminal() {
		t.Fatal("pending job should be active, not terminal")
	}
	done := TransferJob{State: TransferDone}
	if done.IsActive() || !done.IsTerminal() {
		t.Fatal("done job should be terminal, not active")
	}
}

func TestWebhookWants(t *testing.T) {
	w := Webhook{Enabled: true, Events: []string{"started", "completed"}}
	if !w.Wants("started") {
		t.Fatal("expected subscription to started")
	}
	if w.Wants("removed") {
		t.Fatal("did not expect subscription to removed")
	}
	disabled := Webhook{Enabled: false, Events: []string{"started"}}
	if disabled.Wants("started") {
		t.Fatal("disabled webhook should never match")
	}
}

func TestBackendBaseURL(t *testing.T) {
	b := Backend{Host: "h", Port: 80}
	if got := b.BaseURL(); got != "http://h:80" {
		t.Fatalf("BaseURL() = %q", got)
	}
	b.UseSSL = true
	if got := b.BaseURL(); got != "https://h:80" {
		t.Fatalf("BaseURL() = %q", got)
	}
}
