package repo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matheus3301/lawdesk/internal/bus"
	"github.com/matheus3301/lawdesk/internal/identity"
	"github.com/matheus3301/lawdesk/internal/metrics"
	"github.com/matheus3301/lawdesk/internal/snapshot"
	"github.com/matheus3301/lawdesk/internal/store"
)

// Snapshot keys for the conversation list.
const (
	SnapshotActive = "conversations"
	SnapshotAll    = "conversations:all"
)

// Seed describes a conversation created on first contact from the platform.
type Seed struct {
	Name string
	Kind store.Kind
}

// ConversationRepo manages conversations and their external id bindings.
type ConversationRepo struct {
	guard   *Guard
	cache   *identity.Cache
	snaps   *snapshot.Store[store.Conversation]
	bus     *bus.Bus
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// NewConversationRepo creates a conversation repository. b and m may be nil.
func NewConversationRepo(g *Guard, cache *identity.Cache, snaps *snapshot.Store[store.Conversation], b *bus.Bus, m *metrics.Metrics, logger *zap.Logger) *ConversationRepo {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConversationRepo{
		guard:   g,
		cache:   cache,
		snaps:   snaps,
		bus:     b,
		metrics: m,
		logger:  logger,
	}
}

// GetOrCreateByExternalID returns the conversation bound to externalID,
// creating it with default settings on first contact. Concurrent callers
// for the same external id in this process are serialized; a concurrent
// insert from another process is detected through the unique index and the
// existing row is reused.
func (r *ConversationRepo) GetOrCreateByExternalID(ctx context.Context, externalID string, seed Seed) (string, error) {
	if externalID == "" {
		return "", fmt.Errorf("external id: %w", ErrInvalidArgument)
	}
	if id, ok := r.cache.Resolve(externalID); ok {
		return id, nil
	}

	unlock := r.cache.Lock(externalID)
	defer unlock()

	if id, ok := r.cache.Resolve(externalID); ok {
		return id, nil
	}

	existing, err := r.lookupExternal(ctx, externalID)
	if err != nil {
		return "", err
	}
	if existing != nil {
		r.record(externalID, existing.ID)
		return existing.ID, nil
	}

	now := time.Now().UnixMilli()
	kind := seed.Kind
	if kind == "" {
		kind = store.KindDirect
	}
	conv := store.Conversation{
		ID:         uuid.NewString(),
		Kind:       kind,
		Name:       seed.Name,
		CreatedAt:  now,
		UpdatedAt:  now,
		Settings:   store.DefaultSettings(),
		Metadata:   map[string]any{"external_id": externalID},
		ExternalID: externalID,
	}
	err = r.guard.Do(ctx, "insert_conversation", func(ctx context.Context, b Backend) error {
		return b.InsertConversation(ctx, &conv)
	})
	if errors.Is(err, store.ErrConflict) {
		existing, lerr := r.lookupExternal(ctx, externalID)
		if lerr != nil {
			return "", lerr
		}
		if existing == nil {
			return "", fmt.Errorf("conversation for %s vanished after conflict: %w", externalID, err)
		}
		r.logger.Info("reused conversation created concurrently",
			zap.String("external_id", externalID),
			zap.String("conversation_id", existing.ID),
		)
		r.record(externalID, existing.ID)
		return existing.ID, nil
	}
	if err != nil {
		r.logger.Error("create conversation failed", zap.String("external_id", externalID), zap.Error(err))
		return "", err
	}

	r.record(externalID, conv.ID)
	r.publish(bus.KindConversationCreated, conv)
	return conv.ID, nil
}

func (r *ConversationRepo) lookupExternal(ctx context.Context, externalID string) (*store.Conversation, error) {
	var conv *store.Conversation
	err := r.guard.Do(ctx, "get_conversation_by_external_id", func(ctx context.Context, b Backend) error {
		var err error
		conv, err = b.GetConversationByExternalID(ctx, externalID)
		return err
	})
	return conv, err
}

// List returns live conversations, most recently updated first. Archived
// conversations are included only on request. On failure the last
// successful result for the same filter is returned.
func (r *ConversationRepo) List(ctx context.Context, includeArchived bool) []store.Conversation {
	key := snapshotKey(includeArchived)
	var convs []store.Conversation
	err := r.guard.Do(ctx, "list_conversations", func(ctx context.Context, b Backend) error {
		var err error
		convs, err = b.ListConversations(ctx, includeArchived)
		return err
	})
	if err != nil {
		return r.fromSnapshot(key, nil, err)
	}
	r.snaps.Set(key, convs)
	return convs
}

// ListByIDs returns the live conversations among ids, most recently updated
// first. Each id set keeps its own snapshot; on failure that snapshot is
// returned, or else the full-list snapshot filtered to ids.
func (r *ConversationRepo) ListByIDs(ctx context.Context, ids []string, includeArchived bool) []store.Conversation {
	if len(ids) == 0 {
		return nil
	}
	setKey := idSetKey(snapshotKey(includeArchived), ids)
	var convs []store.Conversation
	err := r.guard.Do(ctx, "list_conversations_by_ids", func(ctx context.Context, b Backend) error {
		var err error
		convs, err = b.ListConversationsByIDs(ctx, ids, includeArchived)
		return err
	})
	if err == nil {
		r.snaps.Set(setKey, convs)
		return convs
	}
	if snap, ok := r.snaps.Get(setKey); ok {
		r.servedSnapshot(snapshotKey(includeArchived)+":by_ids", len(snap), err)
		return snap
	}
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	return r.fromSnapshot(snapshotKey(includeArchived), want, err)
}

func (r *ConversationRepo) fromSnapshot(key string, only map[string]struct{}, cause error) []store.Conversation {
	snap, _ := r.snaps.Get(key)
	r.servedSnapshot(key, len(snap), cause)
	if only == nil {
		return snap
	}
	out := snap[:0]
	for _, c := range snap {
		if _, ok := only[c.ID]; ok {
			out = append(out, c)
		}
	}
	return out
}

func (r *ConversationRepo) servedSnapshot(label string, count int, cause error) {
	r.logger.Warn("listing conversations from snapshot",
		zap.String("snapshot", label),
		zap.Int("count", count),
		zap.Error(cause),
	)
	if r.metrics != nil {
		r.metrics.SnapshotServed.WithLabelValues(label).Inc()
	}
}

// Get returns a live conversation by id.
func (r *ConversationRepo) Get(ctx context.Context, id string) (*store.Conversation, error) {
	var conv *store.Conversation
	err := r.guard.Do(ctx, "get_conversation", func(ctx context.Context, b Backend) error {
		var err error
		conv, err = b.GetConversation(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if conv == nil || conv.DeletedAt != 0 {
		return nil, fmt.Errorf("conversation %s: %w", id, ErrNotFound)
	}
	return conv, nil
}

// Create stores a conversation built by a caller. Missing id, kind,
// timestamps and settings are filled with defaults.
func (r *ConversationRepo) Create(ctx context.Context, c store.Conversation) (*store.Conversation, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Kind == "" {
		c.Kind = store.KindDirect
	}
	now := time.Now().UnixMilli()
	if c.CreatedAt == 0 {
		c.CreatedAt = now
	}
	if c.UpdatedAt == 0 {
		c.UpdatedAt = c.CreatedAt
	}
	if c.Settings.RetentionDays == 0 {
		c.Settings = store.DefaultSettings()
	}
	c.DeletedAt = 0

	if c.ExternalID != "" {
		unlock := r.cache.Lock(c.ExternalID)
		defer unlock()
	}
	err := r.guard.Do(ctx, "insert_conversation", func(ctx context.Context, b Backend) error {
		return b.InsertConversation(ctx, &c)
	})
	if err != nil {
		return nil, err
	}
	r.record(c.ExternalID, c.ID)
	r.publish(bus.KindConversationCreated, c)
	return &c, nil
}

// UpdateLastMessage points the conversation at msgID, bumps its update time
// and increments the unread counter. Failures are logged, never returned.
func (r *ConversationRepo) UpdateLastMessage(ctx context.Context, conversationID, msgID string) {
	err := r.guard.Do(ctx, "set_last_message", func(ctx context.Context, b Backend) error {
		return b.SetLastMessage(ctx, conversationID, msgID)
	})
	if err != nil {
		r.logger.Error("update last message failed",
			zap.String("conversation_id", conversationID),
			zap.String("message_id", msgID),
			zap.Error(err),
		)
	}
}

// Archive hides the conversation from default listings.
func (r *ConversationRepo) Archive(ctx context.Context, id string) error {
	return r.setArchived(ctx, id, true)
}

// Unarchive restores an archived conversation to default listings.
func (r *ConversationRepo) Unarchive(ctx context.Context, id string) error {
	return r.setArchived(ctx, id, false)
}

func (r *ConversationRepo) setArchived(ctx context.Context, id string, archived bool) error {
	err := r.guard.Do(ctx, "set_archived", func(ctx context.Context, b Backend) error {
		return b.SetArchived(ctx, id, archived)
	})
	if err != nil {
		return notFound(err)
	}
	r.publish(bus.KindConversationArchived, ArchiveChange{ConversationID: id, Archived: archived})
	return nil
}

// ArchiveChange is the payload of conversation.archived events.
type ArchiveChange struct {
	ConversationID string
	Archived       bool
}

// SetMuted flips the muted flag.
func (r *ConversationRepo) SetMuted(ctx context.Context, id string, muted bool) error {
	err := r.guard.Do(ctx, "set_muted", func(ctx context.Context, b Backend) error {
		return b.SetMuted(ctx, id, muted)
	})
	return notFound(err)
}

// MarkRead resets the unread counter.
func (r *ConversationRepo) MarkRead(ctx context.Context, id string) error {
	err := r.guard.Do(ctx, "reset_unread", func(ctx context.Context, b Backend) error {
		return b.ResetUnread(ctx, id)
	})
	return notFound(err)
}

// SoftDelete marks the conversation deleted and releases its external id, so
// the next inbound message for that chat starts a fresh conversation.
func (r *ConversationRepo) SoftDelete(ctx context.Context, id string) error {
	err := r.guard.Do(ctx, "soft_delete_conversation", func(ctx context.Context, b Backend) error {
		return b.SoftDeleteConversation(ctx, id)
	})
	if err != nil {
		return notFound(err)
	}
	r.invalidate(id)
	r.publish(bus.KindConversationDeleted, DeleteChange{ConversationID: id})
	return nil
}

// HardDelete removes the conversation and all of its messages. Messages go
// first; if that fails the conversation row is left in place.
func (r *ConversationRepo) HardDelete(ctx context.Context, id string) error {
	var removed int64
	err := r.guard.Do(ctx, "delete_messages", func(ctx context.Context, b Backend) error {
		var err error
		removed, err = b.DeleteMessagesByConversation(ctx, id)
		return err
	})
	if err != nil {
		r.logger.Error("delete messages failed, conversation kept",
			zap.String("conversation_id", id),
			zap.Error(err),
		)
		return err
	}

	err = r.guard.Do(ctx, "delete_conversation", func(ctx context.Context, b Backend) error {
		return b.DeleteConversation(ctx, id)
	})
	if err != nil {
		return notFound(err)
	}
	r.invalidate(id)
	r.logger.Info("conversation deleted",
		zap.String("conversation_id", id),
		zap.Int64("messages", removed),
	)
	r.publish(bus.KindConversationDeleted, DeleteChange{ConversationID: id, Hard: true, Messages: removed})
	return nil
}

// DeleteChange is the payload of conversation.deleted events.
type DeleteChange struct {
	ConversationID string
	Hard           bool
	Messages       int64
}

// Bindings returns external id -> conversation id for every live
// conversation bound to an external chat.
func (r *ConversationRepo) Bindings(ctx context.Context) (map[string]string, error) {
	var bindings map[string]string
	err := r.guard.Do(ctx, "list_external_bindings", func(ctx context.Context, b Backend) error {
		var err error
		bindings, err = b.ListExternalBindings(ctx)
		return err
	})
	return bindings, err
}

// Cache exposes the identity cache backing this repository.
func (r *ConversationRepo) Cache() *identity.Cache {
	return r.cache
}

func (r *ConversationRepo) record(externalID, id string) {
	r.cache.Record(externalID, id)
	if r.metrics != nil {
		r.metrics.IdentityCacheSize.Set(float64(r.cache.Len()))
	}
}

func (r *ConversationRepo) invalidate(id string) {
	r.cache.Invalidate(id)
	if r.metrics != nil {
		r.metrics.IdentityCacheSize.Set(float64(r.cache.Len()))
	}
}

func (r *ConversationRepo) publish(kind string, payload any) {
	if r.bus == nil {
		return
	}
	r.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}

// idSetKey names the snapshot of one id set, independent of id order.
func idSetKey(base string, ids []string) string {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	h := sha256.New()
	for _, id := range sorted {
		h.Write([]byte(id))
		h.Write([]byte{0})
	}
	return base + ":ids:" + hex.EncodeToString(h.Sum(nil))
}

func snapshotKey(includeArchived bool) string {
	if includeArchived {
		return SnapshotAll
	}
	return SnapshotActive
}
