package bus

import "time"

// Event kinds published on the bus. Subscribers filter by prefix, so every
// kind starts with its namespace.
const (
	KindInboundMessage = "inbound.message"
	KindInboundEdit    = "inbound.edit"
	KindInboundHistory = "inbound.history"

	KindMessageCreated   = "message.created"
	KindMessageEdited    = "message.edited"
	KindMessageDuplicate = "message.duplicate"
	KindMessageStaleEdit = "message.stale_edit"

	KindConversationCreated  = "conversation.created"
	KindConversationArchived = "conversation.archived"
	KindConversationDeleted  = "conversation.deleted"

	KindStoreStatusChanged = "store.status_changed"
	KindConnectorStatus    = "connector.status_changed"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}
