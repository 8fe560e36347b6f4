package ingest

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/matheus3301/lawdesk/internal/bus"
	"github.com/matheus3301/lawdesk/internal/metrics"
	"github.com/matheus3301/lawdesk/internal/repo"
	"github.com/matheus3301/lawdesk/internal/store"
)

// Engine handles idempotent ingestion of platform messages into the store.
// It subscribes to "inbound." events on the bus and processes them.
type Engine struct {
	convs   *repo.ConversationRepo
	msgs    *repo.MessageRepo
	recon   *Reconciler
	bus     *bus.Bus
	metrics *metrics.Metrics
	logger  *zap.Logger

	mu       sync.Mutex
	newest   int64
	cancel   context.CancelFunc
	finished chan struct{}
}

// NewEngine creates a new ingestion engine. recon and m may be nil.
func NewEngine(convs *repo.ConversationRepo, msgs *repo.MessageRepo, recon *Reconciler, b *bus.Bus, m *metrics.Metrics, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		convs:   convs,
		msgs:    msgs,
		recon:   recon,
		bus:     b,
		metrics: m,
		logger:  logger,
	}
}

// Start subscribes to inbound platform events on the bus.
func (e *Engine) Start(ctx context.Context) {
	if e.recon != nil {
		if ts, err := e.recon.LastIngested(ctx); err == nil {
			e.mu.Lock()
			e.newest = ts
			e.mu.Unlock()
		}
	}
	ctx, e.cancel = context.WithCancel(ctx)
	e.finished = make(chan struct{})
	ch, unsub := e.bus.Subscribe("inbound.", 256)

	go func() {
		defer close(e.finished)
		defer unsub()
		for {
			select {
			case evt := <-ch:
				e.handleEvent(ctx, evt)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the engine and waits for the event loop to exit.
func (e *Engine) Stop() {
	if e.cancel == nil {
		return
	}
	e.cancel()
	<-e.finished
}

func (e *Engine) handleEvent(ctx context.Context, evt bus.Event) {
	switch payload := evt.Payload.(type) {
	case Event:
		e.ingestLogged(ctx, payload)
	case *Event:
		if payload != nil {
			e.ingestLogged(ctx, *payload)
		}
	case []Event:
		counts := map[Outcome]int{}
		for _, ev := range payload {
			counts[e.ingestLogged(ctx, ev).Outcome]++
		}
		e.logger.Info("history batch ingested",
			zap.Int("messages", len(payload)),
			zap.Int("created", counts[Created]),
			zap.Int("edited", counts[Edited]),
			zap.Int("duplicates", counts[Duplicate]),
			zap.Int("failed", counts[Failed]),
		)
	default:
		e.logger.Warn("ignoring inbound event with unexpected payload",
			zap.String("kind", evt.Kind),
			zap.String("type", fmt.Sprintf("%T", evt.Payload)),
		)
	}
}

func (e *Engine) ingestLogged(ctx context.Context, ev Event) Result {
	res, err := e.Ingest(ctx, ev)
	if err != nil {
		e.logger.Error("failed to ingest message",
			zap.Error(err),
			zap.String("chat", ev.ExternalChatID),
			zap.String("msg_id", ev.ExternalMessageID),
		)
	}
	return res
}

// Ingest resolves the event's conversation, then stores the message as new,
// applies it as an edit, or recognizes it as a duplicate. Once a message
// has been edited, versions that are not provably newer are dropped.
func (e *Engine) Ingest(ctx context.Context, ev Event) (res Result, err error) {
	defer func() {
		if err != nil {
			res.Outcome = Failed
		}
		if e.metrics != nil {
			e.metrics.Ingested.WithLabelValues(string(res.Outcome)).Inc()
		}
	}()

	if ev.ExternalChatID == "" {
		return res, fmt.Errorf("ingest: external chat id: %w", repo.ErrInvalidArgument)
	}

	convID, err := e.convs.GetOrCreateByExternalID(ctx, ev.ExternalChatID, repo.Seed{Name: ev.ChatTitle, Kind: ev.ChatKind})
	if err != nil {
		return res, fmt.Errorf("resolve conversation: %w", err)
	}
	res.ConversationID = convID

	var existing *store.Message
	if ev.ExternalMessageID != "" {
		existing, err = e.msgs.FindByExternalID(ctx, convID, ev.ExternalMessageID)
		if err != nil {
			return res, fmt.Errorf("find message: %w", err)
		}
	}

	if existing == nil {
		id, err := e.create(ctx, convID, ev)
		if err != nil {
			return res, err
		}
		res.MessageID, res.Outcome = id, Created
		e.publish(bus.KindMessageCreated, res)
		e.advanceCheckpoint(ctx, ev.Timestamp)
		return res, nil
	}

	res.MessageID = existing.ID
	if existing.Content == ev.Content && (!ev.IsEdit || existing.IsEdited) {
		res.Outcome = Duplicate
		e.publish(bus.KindMessageDuplicate, res)
		return res, nil
	}

	// Once a row carries an edit, an incoming version must prove it is newer.
	// A redelivered original, or anything without a timestamp, loses.
	version := ev.EditedAt
	if version == 0 {
		version = ev.Timestamp
	}
	if existing.IsEdited {
		stale := version == 0 || version < existing.EditedAt ||
			(!ev.IsEdit && version == existing.EditedAt)
		if stale {
			e.logger.Info("dropping stale version",
				zap.String("message_id", existing.ID),
				zap.Bool("is_edit", ev.IsEdit),
				zap.Int64("stored_edited_at", existing.EditedAt),
				zap.Int64("event_version", version),
			)
			res.Outcome = StaleEdit
			e.publish(bus.KindMessageStaleEdit, res)
			return res, nil
		}
	}
	editedAt := version
	if editedAt == 0 {
		editedAt = time.Now().UnixMilli()
	}

	edited := true
	patch := store.MessagePatch{
		Content:  &ev.Content,
		EditedAt: &editedAt,
		IsEdited: &edited,
	}
	if ev.SenderName != "" && ev.SenderName != existing.SenderName {
		patch.SenderName = &ev.SenderName
	}
	if err := e.msgs.Update(ctx, existing.ID, patch); err != nil {
		return res, fmt.Errorf("apply edit: %w", err)
	}
	res.Outcome = Edited
	e.publish(bus.KindMessageEdited, res)
	return res, nil
}

func (e *Engine) create(ctx context.Context, convID string, ev Event) (string, error) {
	msgType := ev.Type
	if msgType == "" {
		msgType = store.TypeText
	}
	ts := ev.Timestamp
	if ts == 0 {
		ts = time.Now().UnixMilli()
	}
	m := &store.Message{
		ID:             uuid.NewString(),
		ConversationID: convID,
		SenderID:       ev.SenderID,
		SenderName:     ev.SenderName,
		Content:        ev.Content,
		Type:           msgType,
		Timestamp:      ts,
		Status:         store.StatusDelivered,
		Attachments:    ev.Attachments,
		ExternalID:     ev.ExternalMessageID,
		Metadata:       map[string]any{},
	}
	if ev.ExternalMessageID != "" {
		m.Metadata["external_message_id"] = ev.ExternalMessageID
	}
	if ev.IsEdit {
		// An edit for a message never seen: store it as the edited version.
		m.IsEdited = true
		m.EditedAt = ev.EditedAt
		if m.EditedAt == 0 {
			m.EditedAt = ts
		}
	}
	if ev.ReplyToExternalID != "" {
		m.Metadata["reply_to_external_id"] = ev.ReplyToExternalID
		parent, err := e.msgs.FindByExternalID(ctx, convID, ev.ReplyToExternalID)
		if err == nil && parent != nil {
			m.ReplyToID = parent.ID
			m.ThreadID = parent.ThreadID
			if m.ThreadID == "" {
				m.ThreadID = parent.ID
			}
		}
	}
	if err := e.msgs.Upsert(ctx, m); err != nil {
		return "", fmt.Errorf("store message: %w", err)
	}
	return m.ID, nil
}

func (e *Engine) advanceCheckpoint(ctx context.Context, ts int64) {
	if e.recon == nil || ts == 0 {
		return
	}
	e.mu.Lock()
	if ts <= e.newest {
		e.mu.Unlock()
		return
	}
	e.newest = ts
	e.mu.Unlock()

	if err := e.recon.UpdateCheckpoint(ctx, CheckpointLastIngested, strconv.FormatInt(ts, 10)); err != nil {
		e.logger.Warn("checkpoint update failed", zap.Error(err))
	}
}

func (e *Engine) publish(kind string, res Result) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: res})
}
