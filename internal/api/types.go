package api

import (
	"github.com/matheus3301/lawdesk/internal/ingest"
	"github.com/matheus3301/lawdesk/internal/store"
)

type ListConversationsRequest struct {
	IncludeArchived bool `json:"include_archived"`
}

type ListConversationsResponse struct {
	Conversations []store.Conversation `json:"conversations"`
}

// GetHistoryRequest names a conversation by internal id or external chat id.
type GetHistoryRequest struct {
	Conversation   string `json:"conversation"`
	Limit          int    `json:"limit"`
	Offset         int    `json:"offset"`
	IncludeDeleted bool   `json:"include_deleted"`
}

type GetHistoryResponse struct {
	ConversationID string          `json:"conversation_id,omitempty"`
	Messages       []store.Message `json:"messages"`
}

// SearchRequest searches every visible conversation unless Conversation is set.
type SearchRequest struct {
	Query        string `json:"query"`
	Conversation string `json:"conversation,omitempty"`
}

type SearchResponse struct {
	Messages []store.Message `json:"messages"`
}

type ArchiveConversationRequest struct {
	Conversation string `json:"conversation"`
	Archived     bool   `json:"archived"`
}

type ArchiveConversationResponse struct {
	ConversationID string `json:"conversation_id"`
}

// DeleteConversationRequest soft-deletes unless Hard is set, in which case
// the conversation and its messages are removed.
type DeleteConversationRequest struct {
	Conversation string `json:"conversation"`
	Hard         bool   `json:"hard"`
}

type DeleteConversationResponse struct {
	ConversationID string `json:"conversation_id"`
}

type IngestRequest struct {
	Event ingest.Event `json:"event"`
}

type IngestResponse struct {
	Result ingest.Result `json:"result"`
}

type AssignCaseRequest struct {
	Case store.Case `json:"case"`
}

type AssignCaseResponse struct {
	CaseID string `json:"case_id"`
}

type GetStatusRequest struct{}

type GetStatusResponse struct {
	Workspace        string `json:"workspace"`
	StoreState       string `json:"store_state"`
	StoreSinceMs     int64  `json:"store_since_ms"`
	Breaker          string `json:"breaker"`
	Connector        bool   `json:"connector"`
	PhoneNumber      string `json:"phone_number,omitempty"`
	UptimeMs         int64  `json:"uptime_ms"`
	CachedIdentities int    `json:"cached_identities"`
	DroppedEvents    uint64 `json:"dropped_events"`
}
