package ports

// EventBus publishes typed lifecycle events. Redesign of the source's
// in-process callback scripts (DESIGN NOTES §9): publishers are the
// dispatcher and the maintenance loop; subscribers are out-of-process HTTP
// webhooks and the WebSocket hub, never in-process plugins.
type EventBus interface {
	Publish(event Event)
	Subscribe() (ch <-chan Event, cancel func())
}

// EventType enumerates the lifecycle transitions SPEC_FULL.md §4.9/DESIGN
// NOTES require the event bus to carry.
type EventType string

const (
	EventAdded             EventType = "added"
	EventStarted           EventType = "started"
	EventStopped           EventType = "stopped"
	EventCompleted         EventType = "completed"
	EventRemoved           EventType = "removed"
	EventError             EventType = "error"
	EventTransferStarted   EventType = "transfer_started"
	EventTransferCompleted EventType = "transfer_completed"
)

// Event is one typed occurrence published to the bus. Payload carries
// whatever domain row triggered the event (a TorrentView, a TransferJob,
// ...); consumers type-assert based on Type.
type Event struct {
	Type        EventType
	OwnerUserID string
	BackendID   string
	Payload     any
}
