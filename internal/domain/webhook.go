package domain

import "time"

// Webhook is a per-user out-of-process event subscriber (the redesign of
// the source's in-process callback scripts, per DESIGN NOTES §9).
type Webhook struct {
	ID          string    `json:"id" bson:"_id"`
	OwnerUserID string    `json:"ownerUserId" bson:"ownerUserId"`
	URL         string    `json:"url" bson:"url"`
	Events      []string  `json:"events" bson:"events"`
	Secret      string    `json:"-" bson:"secret"`
	Enabled     bool      `json:"enabled" bson:"enabled"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
}

// Wants reports whether the webhook subscribed to the given event type.
func (w Webhook) Wants(eventType string) bool {
	if !w.Enabled {
		return false
	}
	for _, e := range w.Events {
		if e == eventType {
			return true
		}
	}
	return false
}
