package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matheus3301/lawdesk/internal/store"
)

// Page selects a slice of a conversation's history.
type Page struct {
	Limit          int
	Offset         int
	IncludeDeleted bool
}

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// MessageRepo manages messages.
type MessageRepo struct {
	guard  *Guard
	convs  *ConversationRepo
	logger *zap.Logger
}

// NewMessageRepo creates a message repository. Successful upserts advance
// the owning conversation through convs.
func NewMessageRepo(g *Guard, convs *ConversationRepo, logger *zap.Logger) *MessageRepo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MessageRepo{guard: g, convs: convs, logger: logger}
}

// Upsert writes m, replacing any stored message with the same id along with
// its attachments, then updates the conversation's last-message pointer.
func (r *MessageRepo) Upsert(ctx context.Context, m *store.Message) error {
	if m.ConversationID == "" {
		return fmt.Errorf("conversation id: %w", ErrInvalidArgument)
	}
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.Type == "" {
		m.Type = store.TypeText
	}
	if m.Status == "" {
		m.Status = store.StatusDelivered
	}
	for i := range m.Attachments {
		if m.Attachments[i].ID == "" {
			m.Attachments[i].ID = uuid.NewString()
		}
	}

	err := r.guard.Do(ctx, "upsert_message", func(ctx context.Context, b Backend) error {
		return b.UpsertMessage(ctx, m)
	})
	if err != nil {
		r.logger.Error("upsert message failed",
			zap.String("message_id", m.ID),
			zap.String("conversation_id", m.ConversationID),
			zap.Error(err),
		)
		return err
	}
	r.convs.UpdateLastMessage(ctx, m.ConversationID, m.ID)
	return nil
}

// FindByExternalID returns the live message carrying externalID in the
// conversation, or nil when there is none.
func (r *MessageRepo) FindByExternalID(ctx context.Context, conversationID, externalID string) (*store.Message, error) {
	var m *store.Message
	err := r.guard.Do(ctx, "find_message_by_external_id", func(ctx context.Context, b Backend) error {
		var err error
		m, err = b.FindMessageByExternalID(ctx, conversationID, externalID)
		return err
	})
	return m, err
}

// Update applies a patch to the mutable fields of a message. Identity,
// conversation and sender cannot be changed.
func (r *MessageRepo) Update(ctx context.Context, id string, p store.MessagePatch) error {
	err := r.guard.Do(ctx, "update_message", func(ctx context.Context, b Backend) error {
		return b.UpdateMessage(ctx, id, p)
	})
	return notFound(err)
}

// Get returns a message by id.
func (r *MessageRepo) Get(ctx context.Context, id string) (*store.Message, error) {
	var m *store.Message
	err := r.guard.Do(ctx, "get_message", func(ctx context.Context, b Backend) error {
		var err error
		m, err = b.GetMessage(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("message %s: %w", id, ErrNotFound)
	}
	return m, nil
}

// SoftDelete flags a message deleted. Its external id becomes free again.
func (r *MessageRepo) SoftDelete(ctx context.Context, id string) error {
	err := r.guard.Do(ctx, "soft_delete_message", func(ctx context.Context, b Backend) error {
		return b.SoftDeleteMessage(ctx, id)
	})
	return notFound(err)
}

// History returns a page of a conversation's messages, newest first. Any
// failure yields an empty page.
func (r *MessageRepo) History(ctx context.Context, conversationID string, p Page) []store.Message {
	if p.Limit <= 0 {
		p.Limit = defaultPageSize
	}
	if p.Limit > maxPageSize {
		p.Limit = maxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	var msgs []store.Message
	err := r.guard.Do(ctx, "list_messages", func(ctx context.Context, b Backend) error {
		var err error
		msgs, err = b.ListMessages(ctx, conversationID, p.Limit, p.Offset, p.IncludeDeleted)
		return err
	})
	if err != nil {
		r.logger.Warn("history unavailable",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
		return nil
	}
	return msgs
}
