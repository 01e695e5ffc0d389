package events

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/philiporange/torrent-manager/internal/domain"
	"github.com/philiporange/torrent-manager/internal/domain/ports"
	"github.com/philiporange/torrent-manager/internal/metrics"
)

// DefaultDeliveryTimeout bounds a single webhook POST (CALLBACK_DIR's
// environment-visible equivalent for the event-bus redesign: the core
// only needs the TransferJob/Action rows populated so an external hook
// can observe them, per spec.md's environment table note).
const DefaultDeliveryTimeout = 10 * time.Second

// WebhookDispatcher subscribes to an EventBus and POSTs matching events to
// every enabled Webhook a user has registered, signing the body with
// HMAC-SHA256 over the webhook's secret — the same primitive the pack's
// `bittorrent/udp` connection-ID signing uses (crypto/hmac + crypto/sha256),
// applied here to an outbound payload instead of a UDP token.
type WebhookDispatcher struct {
	Webhooks ports.WebhookStore
	Client   *http.Client
	Logger   *slog.Logger
}

type webhookPayload struct {
	Type        string `json:"type"`
	BackendID   string `json:"backend_id,omitempty"`
	OwnerUserID string `json:"owner_user_id"`
	Payload     any    `json:"payload"`
	Timestamp   string `json:"timestamp"`
}

func (d *WebhookDispatcher) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func (d *WebhookDispatcher) client() *http.Client {
	if d.Client != nil {
		return d.Client
	}
	return &http.Client{Timeout: DefaultDeliveryTimeout}
}

// Run consumes bus until ctx is cancelled, delivering each event to its
// owner's subscribed webhooks in its own goroutine so one slow endpoint
// never delays another event's delivery.
func (d *WebhookDispatcher) Run(ctx context.Context, bus ports.EventBus) {
	ch, cancel := bus.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			go d.deliver(ctx, event)
		}
	}
}

func (d *WebhookDispatcher) deliver(ctx context.Context, event ports.Event) {
	hooks, err := d.Webhooks.ListWebhooks(ctx, event.OwnerUserID)
	if err != nil {
		d.logger().Warn("events: list webhooks failed", slog.String("owner_user_id", event.OwnerUserID), slog.String("error", err.Error()))
		return
	}

	body, err := json.Marshal(webhookPayload{
		Type:        string(event.Type),
		BackendID:   event.BackendID,
		OwnerUserID: event.OwnerUserID,
		Payload:     event.Payload,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		d.logger().Warn("events: marshal webhook payload failed", slog.String("error", err.Error()))
		return
	}

	for _, hook := range hooks {
		if !hook.Wants(string(event.Type)) {
			continue
		}
		d.post(ctx, hook, body)
	}
}

func (d *WebhookDispatcher) post(ctx context.Context, hook domain.Webhook, body []byte) {
	deliverCtx, cancel := context.WithTimeout(ctx, DefaultDeliveryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(deliverCtx, http.MethodPost, hook.URL, bytes.NewReader(body))
	if err != nil {
		d.logger().Warn("events: build webhook request failed", slog.String("webhook_id", hook.ID), slog.String("error", err.Error()))
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if hook.Secret != "" {
		req.Header.Set("X-Webhook-Signature", signPayload(hook.Secret, body))
	}

	resp, err := d.client().Do(req)
	if err != nil {
		d.logger().Warn("events: webhook delivery failed", slog.String("webhook_id", hook.ID), slog.String("url", hook.URL), slog.String("error", err.Error()))
		metrics.WebhookDeliveriesTotal.WithLabelValues("error").Inc()
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		d.logger().Warn("events: webhook endpoint returned non-2xx", slog.String("webhook_id", hook.ID), slog.Int("status", resp.StatusCode))
		metrics.WebhookDeliveriesTotal.WithLabelValues("rejected").Inc()
		return
	}
	metrics.WebhookDeliveriesTotal.WithLabelValues("ok").Inc()
}

// signPayload computes a hex-encoded HMAC-SHA256 MAC over body, so a
// receiver can verify the request actually came from this server.
func signPayload(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return fmt.Sprintf("sha256=%s", hex.EncodeToString(mac.Sum(nil)))
}
