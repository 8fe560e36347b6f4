package wa

import (
	"context"
	"testing"
	"time"

	"go.mau.fi/whatsmeow/proto/waCommon"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/proto/waHistorySync"
	"go.mau.fi/whatsmeow/proto/waWeb"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"
	"google.golang.org/protobuf/proto"

	"github.com/matheus3301/lawdesk/internal/bus"
	"github.com/matheus3301/lawdesk/internal/ingest"
)

type mapResolver map[types.JID]types.JID

func (m mapResolver) ResolveLID(_ context.Context, jid types.JID) types.JID {
	if pn, ok := m[jid]; ok {
		return pn
	}
	return jid
}

func recv(t *testing.T, ch <-chan bus.Event) bus.Event {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
		return bus.Event{}
	}
}

func TestHandleConnectedAndDisconnected(t *testing.T) {
	b := bus.New()
	h := NewEventHandler(b, nil, zap.NewNop())

	ch, unsub := b.Subscribe("connector.", 10)
	defer unsub()

	h.Handle(&events.Connected{})
	evt := recv(t, ch)
	if evt.Kind != bus.KindConnectorStatus {
		t.Errorf("kind = %s", evt.Kind)
	}
	if st, ok := evt.Payload.(ConnectorStatus); !ok || !st.Connected {
		t.Errorf("payload = %#v, want connected", evt.Payload)
	}
	if !h.Connected() {
		t.Error("Connected() = false after Connected event")
	}

	h.Handle(&events.Disconnected{})
	evt = recv(t, ch)
	if st, ok := evt.Payload.(ConnectorStatus); !ok || st.Connected {
		t.Errorf("payload = %#v, want disconnected", evt.Payload)
	}
	if h.Connected() {
		t.Error("Connected() = true after Disconnected event")
	}
}

func TestHandleLoggedOut(t *testing.T) {
	b := bus.New()
	h := NewEventHandler(b, nil, zap.NewNop())
	ch, unsub := b.Subscribe("connector.", 10)
	defer unsub()

	h.Handle(&events.LoggedOut{})
	evt := recv(t, ch)
	st, ok := evt.Payload.(ConnectorStatus)
	if !ok || st.Connected || st.Reason == "" {
		t.Errorf("payload = %#v, want disconnected with reason", evt.Payload)
	}
}

func TestHandleMessagePublishesInbound(t *testing.T) {
	b := bus.New()
	h := NewEventHandler(b, nil, zap.NewNop())
	ch, unsub := b.Subscribe("inbound.", 10)
	defer unsub()

	h.Handle(&events.Message{
		Info: types.MessageInfo{
			PushName:  "Alice",
			Timestamp: time.Now(),
			MessageSource: types.MessageSource{
				Chat:   types.JID{User: "5511", Server: types.DefaultUserServer},
				Sender: types.JID{User: "5511", Server: types.DefaultUserServer},
			},
			ID: "M1",
		},
		Message: &waE2E.Message{Conversation: proto.String("hello")},
	})

	evt := recv(t, ch)
	if evt.Kind != bus.KindInboundMessage {
		t.Errorf("kind = %s, want %s", evt.Kind, bus.KindInboundMessage)
	}
	ie, ok := evt.Payload.(ingest.Event)
	if !ok {
		t.Fatalf("payload type = %T", evt.Payload)
	}
	if ie.ExternalMessageID != "M1" || ie.Content != "hello" {
		t.Errorf("event = %+v", ie)
	}
}

func TestHandleEditPublishesInboundEdit(t *testing.T) {
	b := bus.New()
	h := NewEventHandler(b, nil, zap.NewNop())
	ch, unsub := b.Subscribe("inbound.", 10)
	defer unsub()

	h.Handle(&events.Message{
		Info: types.MessageInfo{
			Timestamp: time.Now(),
			MessageSource: types.MessageSource{
				Chat:   types.JID{User: "5511", Server: types.DefaultUserServer},
				Sender: types.JID{User: "5511", Server: types.DefaultUserServer},
			},
			ID: "W1",
		},
		Message: &waE2E.Message{ProtocolMessage: &waE2E.ProtocolMessage{
			Type:          waE2E.ProtocolMessage_MESSAGE_EDIT.Enum(),
			Key:           &waCommon.MessageKey{ID: proto.String("M1")},
			EditedMessage: &waE2E.Message{Conversation: proto.String("hello again")},
		}},
	})

	evt := recv(t, ch)
	if evt.Kind != bus.KindInboundEdit {
		t.Errorf("kind = %s, want %s", evt.Kind, bus.KindInboundEdit)
	}
}

func TestHandleMessageResolvesLID(t *testing.T) {
	lid := types.JID{User: "999", Server: types.HiddenUserServer}
	pn := types.JID{User: "5511", Server: types.DefaultUserServer}

	b := bus.New()
	h := NewEventHandler(b, mapResolver{lid: pn}, zap.NewNop())
	ch, unsub := b.Subscribe("inbound.", 10)
	defer unsub()

	h.Handle(&events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{Chat: lid, Sender: lid},
			ID:            "L1",
		},
		Message: &waE2E.Message{Conversation: proto.String("via lid")},
	})

	ie := recv(t, ch).Payload.(ingest.Event)
	if ie.ExternalChatID != "5511@s.whatsapp.net" {
		t.Errorf("ExternalChatID = %q, want resolved phone jid", ie.ExternalChatID)
	}
}

func TestHandleHistorySyncPublishesBatch(t *testing.T) {
	b := bus.New()
	h := NewEventHandler(b, nil, zap.NewNop())
	ch, unsub := b.Subscribe("inbound.", 10)
	defer unsub()

	msgTS := uint64(1700000000)
	h.Handle(&events.HistorySync{
		Data: &waHistorySync.HistorySync{
			Conversations: []*waHistorySync.Conversation{
				{
					ID:   proto.String("1203@g.us"),
					Name: proto.String("Case 42"),
					Messages: []*waHistorySync.HistorySyncMsg{
						{Message: &waWeb.WebMessageInfo{
							Key: &waCommon.MessageKey{
								ID:          proto.String("hm1"),
								FromMe:      proto.Bool(false),
								RemoteJID:   proto.String("1203@g.us"),
								Participant: proto.String("5511@s.whatsapp.net"),
							},
							MessageTimestamp: &msgTS,
							Message:          &waE2E.Message{Conversation: proto.String("history msg")},
						}},
						{Message: &waWeb.WebMessageInfo{Key: &waCommon.MessageKey{ID: proto.String("empty")}}},
					},
				},
				{ID: proto.String("not a jid@@")},
			},
		},
	})

	evt := recv(t, ch)
	if evt.Kind != bus.KindInboundHistory {
		t.Fatalf("kind = %s, want %s", evt.Kind, bus.KindInboundHistory)
	}
	batch, ok := evt.Payload.([]ingest.Event)
	if !ok {
		t.Fatalf("payload type = %T", evt.Payload)
	}
	if len(batch) != 1 {
		t.Fatalf("batch = %d events, want 1", len(batch))
	}
	got := batch[0]
	if got.ChatTitle != "Case 42" || got.SenderID != "5511@s.whatsapp.net" || got.Content != "history msg" {
		t.Errorf("event = %+v", got)
	}
}

func TestHandleEmptyHistorySyncPublishesNothing(t *testing.T) {
	b := bus.New()
	h := NewEventHandler(b, nil, zap.NewNop())
	ch, unsub := b.Subscribe("inbound.", 10)
	defer unsub()

	h.Handle(&events.HistorySync{})
	h.Handle(&events.HistorySync{Data: &waHistorySync.HistorySync{}})

	select {
	case evt := <-ch:
		t.Errorf("unexpected event %s", evt.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}
