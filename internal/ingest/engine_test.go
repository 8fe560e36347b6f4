package ingest

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/lawdesk/internal/bus"
	"github.com/matheus3301/lawdesk/internal/identity"
	"github.com/matheus3301/lawdesk/internal/repo"
	"github.com/matheus3301/lawdesk/internal/snapshot"
	"github.com/matheus3301/lawdesk/internal/store"
)

func testDB(t *testing.T) *store.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := store.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Migrate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

type fixture struct {
	db     *store.DB
	bus    *bus.Bus
	convs  *repo.ConversationRepo
	msgs   *repo.MessageRepo
	recon  *Reconciler
	engine *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testDB(t)
	b := bus.New()
	logger := zap.NewNop()
	policy := repo.DefaultPolicy()
	policy.BaseDelay = time.Millisecond
	g := repo.NewGuard(db, policy, nil, nil, logger)
	convs := repo.NewConversationRepo(g, identity.New(), snapshot.New[store.Conversation](), b, nil, logger)
	msgs := repo.NewMessageRepo(g, convs, logger)
	recon := NewReconciler(g, convs, logger)
	return &fixture{
		db:     db,
		bus:    b,
		convs:  convs,
		msgs:   msgs,
		recon:  recon,
		engine: NewEngine(convs, msgs, recon, b, nil, logger),
	}
}

func TestIngestCreatesConversationAndMessage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ch, unsub := f.bus.Subscribe("message.", 10)
	defer unsub()

	res, err := f.engine.Ingest(ctx, Event{
		ExternalChatID: "abc", ChatTitle: "Client A", ExternalMessageID: "1",
		SenderID: "s1", SenderName: "Ana", Content: "hi", Timestamp: 1000,
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != Created {
		t.Errorf("outcome = %s, want created", res.Outcome)
	}

	conv, err := f.convs.Get(ctx, res.ConversationID)
	if err != nil {
		t.Fatal(err)
	}
	if conv.ExternalID != "abc" || conv.Name != "Client A" {
		t.Errorf("conversation = %+v", conv)
	}
	if conv.LastMessageID != res.MessageID {
		t.Errorf("last message = %s, want %s", conv.LastMessageID, res.MessageID)
	}

	m, err := f.msgs.Get(ctx, res.MessageID)
	if err != nil {
		t.Fatal(err)
	}
	if m.Status != store.StatusDelivered || m.ExternalID != "1" || m.Metadata["external_message_id"] != "1" {
		t.Errorf("message = %+v", m)
	}

	select {
	case evt := <-ch:
		if evt.Kind != bus.KindMessageCreated {
			t.Errorf("event kind = %q, want %s", evt.Kind, bus.KindMessageCreated)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message.created event")
	}
}

// An edit for a known message yields one row with the new content.
func TestIngestEditScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.engine.Ingest(ctx, Event{ExternalChatID: "abc", ExternalMessageID: "1", Content: "hi", Timestamp: 1000})
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.engine.Ingest(ctx, Event{ExternalChatID: "abc", ExternalMessageID: "1", Content: "hi!", IsEdit: true, EditedAt: 2000})
	if err != nil {
		t.Fatal(err)
	}
	if second.Outcome != Edited || second.MessageID != first.MessageID {
		t.Errorf("second = %+v, want edit of %s", second, first.MessageID)
	}

	if convs := f.convs.List(ctx, true); len(convs) != 1 {
		t.Fatalf("conversations = %d, want 1", len(convs))
	}
	history := f.msgs.History(ctx, first.ConversationID, repo.Page{IncludeDeleted: true})
	if len(history) != 1 {
		t.Fatalf("messages = %d, want 1", len(history))
	}
	if history[0].Content != "hi!" || !history[0].IsEdited || history[0].EditedAt != 2000 {
		t.Errorf("message = %+v", history[0])
	}
}

func TestIngestDifferentContentWithoutEditFlagIsEdit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, _ := f.engine.Ingest(ctx, Event{ExternalChatID: "abc", ExternalMessageID: "1", Content: "v1"})
	second, err := f.engine.Ingest(ctx, Event{ExternalChatID: "abc", ExternalMessageID: "1", Content: "v2"})
	if err != nil {
		t.Fatal(err)
	}
	if second.Outcome != Edited {
		t.Errorf("outcome = %s, want edited", second.Outcome)
	}
	m, _ := f.msgs.Get(ctx, first.MessageID)
	if m.Content != "v2" || !m.IsEdited {
		t.Errorf("message = %+v", m)
	}
}

func TestIngestDuplicateIsNoop(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ev := Event{ExternalChatID: "abc", ExternalMessageID: "1", Content: "hello", Timestamp: 1000}
	first, _ := f.engine.Ingest(ctx, ev)
	second, err := f.engine.Ingest(ctx, ev)
	if err != nil {
		t.Fatal(err)
	}
	if second.Outcome != Duplicate || second.MessageID != first.MessageID {
		t.Errorf("second = %+v", second)
	}
	m, _ := f.msgs.Get(ctx, first.MessageID)
	if m.IsEdited {
		t.Error("duplicate marked message edited")
	}
	conv, _ := f.convs.Get(ctx, first.ConversationID)
	if conv.UnreadCount != 1 {
		t.Errorf("unread = %d, duplicate advanced the conversation", conv.UnreadCount)
	}
}

func TestIngestDropsStaleEdit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, _ := f.engine.Ingest(ctx, Event{ExternalChatID: "abc", ExternalMessageID: "1", Content: "v1"})
	_, _ = f.engine.Ingest(ctx, Event{ExternalChatID: "abc", ExternalMessageID: "1", Content: "v3", IsEdit: true, EditedAt: 3000})

	res, err := f.engine.Ingest(ctx, Event{ExternalChatID: "abc", ExternalMessageID: "1", Content: "v2", IsEdit: true, EditedAt: 2000})
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != StaleEdit {
		t.Errorf("outcome = %s, want stale_edit", res.Outcome)
	}
	m, _ := f.msgs.Get(ctx, first.MessageID)
	if m.Content != "v3" || m.EditedAt != 3000 {
		t.Errorf("stale edit overwrote newer content: %+v", m)
	}
}

func TestIngestOriginalAfterEditIsDropped(t *testing.T) {
	tests := []struct {
		name         string
		first        Event
		second       Event
		wantContent  string
		wantEditedAt int64
	}{
		{
			name:         "original redelivered after edit",
			first:        Event{Content: "hi", Timestamp: 1000},
			second:       Event{Content: "hi!", IsEdit: true, EditedAt: 2000},
			wantContent:  "hi!",
			wantEditedAt: 2000,
		},
		{
			name:         "edit delivered before original",
			first:        Event{Content: "hi!", IsEdit: true, EditedAt: 2000},
			wantContent:  "hi!",
			wantEditedAt: 2000,
		},
		{
			name:         "edit without edit time delivered before original",
			first:        Event{Content: "hi!", IsEdit: true, Timestamp: 1500},
			wantContent:  "hi!",
			wantEditedAt: 1500,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			deliver := func(ev Event) Result {
				t.Helper()
				ev.ExternalChatID, ev.ExternalMessageID = "abc", "1"
				res, err := f.engine.Ingest(ctx, ev)
				if err != nil {
					t.Fatal(err)
				}
				return res
			}

			first := deliver(tt.first)
			if tt.second.Content != "" {
				deliver(tt.second)
			}
			for _, original := range []Event{{Content: "hi", Timestamp: 1000}, {Content: "hi"}} {
				if res := deliver(original); res.Outcome != StaleEdit {
					t.Errorf("original %+v: outcome = %s, want stale_edit", original, res.Outcome)
				}
			}

			m, err := f.msgs.Get(ctx, first.MessageID)
			if err != nil {
				t.Fatal(err)
			}
			if m.Content != tt.wantContent || !m.IsEdited || m.EditedAt != tt.wantEditedAt {
				t.Errorf("message = content %q edited %v at %d, want %q at %d",
					m.Content, m.IsEdited, m.EditedAt, tt.wantContent, tt.wantEditedAt)
			}
		})
	}
}

func TestIngestNewerUnflaggedVersionStillApplies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, _ := f.engine.Ingest(ctx, Event{ExternalChatID: "abc", ExternalMessageID: "1", Content: "v1", Timestamp: 1000})
	_, _ = f.engine.Ingest(ctx, Event{ExternalChatID: "abc", ExternalMessageID: "1", Content: "v2", IsEdit: true, EditedAt: 2000})

	res, err := f.engine.Ingest(ctx, Event{ExternalChatID: "abc", ExternalMessageID: "1", Content: "v3", Timestamp: 3000})
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != Edited {
		t.Errorf("outcome = %s, want edited", res.Outcome)
	}
	if m, _ := f.msgs.Get(ctx, first.MessageID); m.Content != "v3" || m.EditedAt != 3000 {
		t.Errorf("message = %+v", m)
	}
}

func TestIngestRedeliveredEditIsDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	edit := Event{ExternalChatID: "abc", ExternalMessageID: "1", Content: "v2", IsEdit: true, EditedAt: 2000}
	_, _ = f.engine.Ingest(ctx, Event{ExternalChatID: "abc", ExternalMessageID: "1", Content: "v1", Timestamp: 1000})
	_, _ = f.engine.Ingest(ctx, edit)
	res, err := f.engine.Ingest(ctx, edit)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != Duplicate {
		t.Errorf("outcome = %s, want duplicate", res.Outcome)
	}
}

func TestIngestWithoutExternalMessageIDAlwaysCreates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, _ := f.engine.Ingest(ctx, Event{ExternalChatID: "abc", Content: "same"})
	b, _ := f.engine.Ingest(ctx, Event{ExternalChatID: "abc", Content: "same"})
	if a.MessageID == b.MessageID || b.Outcome != Created {
		t.Errorf("messages without external id were merged: %+v %+v", a, b)
	}
}

func TestIngestLinksReplies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	parent, _ := f.engine.Ingest(ctx, Event{ExternalChatID: "abc", ExternalMessageID: "1", Content: "question"})
	reply, err := f.engine.Ingest(ctx, Event{ExternalChatID: "abc", ExternalMessageID: "2", Content: "answer", ReplyToExternalID: "1"})
	if err != nil {
		t.Fatal(err)
	}
	m, _ := f.msgs.Get(ctx, reply.MessageID)
	if m.ReplyToID != parent.MessageID || m.ThreadID != parent.MessageID {
		t.Errorf("reply links = %s/%s, want %s", m.ReplyToID, m.ThreadID, parent.MessageID)
	}
}

func TestIngestRequiresChatID(t *testing.T) {
	f := newFixture(t)
	res, err := f.engine.Ingest(context.Background(), Event{Content: "x"})
	if !errors.Is(err, repo.ErrInvalidArgument) {
		t.Errorf("err = %v, want ErrInvalidArgument", err)
	}
	if res.Outcome != Failed {
		t.Errorf("outcome = %s, want failed", res.Outcome)
	}
}

func TestIngestConcurrentSameChat(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := f.engine.Ingest(ctx, Event{ExternalChatID: "busy-chat", Content: "msg", Timestamp: int64(i + 1)}); err != nil {
				t.Error(err)
			}
		}(i)
	}
	wg.Wait()

	convs := f.convs.List(ctx, true)
	if len(convs) != 1 {
		t.Fatalf("conversations = %d, want 1", len(convs))
	}
	if n, _ := f.db.MessageCount(ctx, convs[0].ID); n != 16 {
		t.Errorf("messages = %d, want 16", n)
	}
}

func TestEngineConsumesBusEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	created, unsub := f.bus.Subscribe(bus.KindMessageCreated, 10)
	defer unsub()

	f.engine.Start(ctx)
	defer f.engine.Stop()

	if err := f.bus.PublishContext(ctx, bus.Event{Kind: bus.KindInboundMessage, Payload: Event{ExternalChatID: "abc", ExternalMessageID: "1", Content: "hi"}}); err != nil {
		t.Fatal(err)
	}
	if err := f.bus.PublishContext(ctx, bus.Event{Kind: bus.KindInboundHistory, Payload: []Event{
		{ExternalChatID: "abc", ExternalMessageID: "0", Content: "older", Timestamp: 500},
		{ExternalChatID: "xyz", ExternalMessageID: "9", Content: "other"},
	}}); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		select {
		case <-created:
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting for created event %d", i+1)
		}
	}
	if convs := f.convs.List(ctx, true); len(convs) != 2 {
		t.Errorf("conversations = %d, want 2", len(convs))
	}
}

func TestCheckpointAdvancesMonotonically(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, _ = f.engine.Ingest(ctx, Event{ExternalChatID: "abc", ExternalMessageID: "2", Content: "b", Timestamp: 2000})
	_, _ = f.engine.Ingest(ctx, Event{ExternalChatID: "abc", ExternalMessageID: "1", Content: "a", Timestamp: 1000})

	ts, err := f.recon.LastIngested(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if ts != 2000 {
		t.Errorf("last ingested = %d, want 2000", ts)
	}
}

func TestWarmIdentityCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, _ := f.engine.Ingest(ctx, Event{ExternalChatID: "abc", Content: "x"})
	f.convs.Cache().Reset()

	n, err := f.recon.WarmIdentityCache(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("warmed %d bindings, want 1", n)
	}
	if id, ok := f.convs.Cache().Resolve("abc"); !ok || id != res.ConversationID {
		t.Errorf("Resolve(abc) = %q, %v", id, ok)
	}
}
