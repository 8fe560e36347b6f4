// Package ingest reconciles inbound chat-platform events with the store.
package ingest

import "github.com/matheus3301/lawdesk/internal/store"

// Event is one inbound message, new or edited, as delivered by a platform
// connector. Timestamps are unix milliseconds.
type Event struct {
	ExternalChatID    string
	ChatTitle         string
	ChatKind          store.Kind
	ExternalMessageID string
	SenderID          string
	SenderName        string
	Content           string
	Type              store.MessageType
	Timestamp         int64
	IsEdit            bool
	EditedAt          int64
	Attachments       []store.Attachment
	ReplyToExternalID string
}

// Outcome says what Ingest did with an event.
type Outcome string

const (
	Created   Outcome = "created"
	Edited    Outcome = "edited"
	Duplicate Outcome = "duplicate"
	StaleEdit Outcome = "stale_edit"
	Failed    Outcome = "failed"
)

// Result describes an ingested event.
type Result struct {
	ConversationID string
	MessageID      string
	Outcome        Outcome
}

// CheckpointLastIngested is the sync_state key holding the platform
// timestamp of the newest ingested message.
const CheckpointLastIngested = "last_ingested_at"
