// Package repo holds the conversation and message repositories. Every call
// to the backing store goes through a Guard; read paths degrade to empty or
// cached results while write paths surface failures to the caller.
package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/matheus3301/lawdesk/internal/store"
)

var (
	// ErrNotConfigured means no backing store is attached. Writes fail fast
	// and reads answer empty.
	ErrNotConfigured = errors.New("backing store not configured")
	// ErrUnavailable means the backing store could not be reached in time.
	ErrUnavailable = errors.New("backing store unavailable")
	// ErrNotFound means the target row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument means the request is missing a required field.
	ErrInvalidArgument = errors.New("invalid argument")
)

// ConversationStore is the conversation half of the backing store.
type ConversationStore interface {
	InsertConversation(ctx context.Context, c *store.Conversation) error
	GetConversation(ctx context.Context, id string) (*store.Conversation, error)
	GetConversationByExternalID(ctx context.Context, externalID string) (*store.Conversation, error)
	ListConversations(ctx context.Context, includeArchived bool) ([]store.Conversation, error)
	ListConversationsByIDs(ctx context.Context, ids []string, includeArchived bool) ([]store.Conversation, error)
	ListExternalBindings(ctx context.Context) (map[string]string, error)
	SetLastMessage(ctx context.Context, conversationID, msgID string) error
	SetArchived(ctx context.Context, id string, archived bool) error
	SetMuted(ctx context.Context, id string, muted bool) error
	ResetUnread(ctx context.Context, id string) error
	SoftDeleteConversation(ctx context.Context, id string) error
	DeleteConversation(ctx context.Context, id string) error
}

// MessageStore is the message half of the backing store.
type MessageStore interface {
	UpsertMessage(ctx context.Context, m *store.Message) error
	GetMessage(ctx context.Context, id string) (*store.Message, error)
	FindMessageByExternalID(ctx context.Context, conversationID, externalID string) (*store.Message, error)
	UpdateMessage(ctx context.Context, id string, p store.MessagePatch) error
	SoftDeleteMessage(ctx context.Context, id string) error
	DeleteMessagesByConversation(ctx context.Context, conversationID string) (int64, error)
	ListMessages(ctx context.Context, conversationID string, limit, offset int, includeDeleted bool) ([]store.Message, error)
	SearchMessages(ctx context.Context, query string, conversationIDs []string, limit int) ([]store.Message, error)
}

// Backend is everything the repositories need from the backing store.
// *store.DB implements it.
type Backend interface {
	ConversationStore
	MessageStore
	AssignCase(ctx context.Context, c *store.Case) error
	ListConversationIDsAssignedTo(ctx context.Context, lawyerID string) ([]string, error)
	SetSyncState(ctx context.Context, key, value string) error
	GetSyncState(ctx context.Context, key string) (string, error)
}

var _ Backend = (*store.DB)(nil)

// notFound maps a targeted write that matched no row to ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, store.ErrNoRows) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}
