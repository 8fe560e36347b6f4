package wa

import (
	"context"
	"sync/atomic"
	"time"

	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"go.uber.org/zap"

	"github.com/matheus3301/lawdesk/internal/bus"
	"github.com/matheus3301/lawdesk/internal/ingest"
)

// JIDResolver maps hidden-user (LID) identifiers to phone-number JIDs.
type JIDResolver interface {
	ResolveLID(ctx context.Context, jid types.JID) types.JID
}

// ConnectorStatus is the payload of connector.status_changed events.
type ConnectorStatus struct {
	Connected bool
	Reason    string
}

// EventHandler converts whatsmeow events into inbound ingest events on the
// bus. It does NOT call the ingestion engine directly; the engine subscribes
// to the bus independently.
type EventHandler struct {
	bus            *bus.Bus
	resolver       JIDResolver
	logger         *zap.Logger
	connected      atomic.Bool
	publishTimeout time.Duration
}

// NewEventHandler creates a new event handler. resolver may be nil.
func NewEventHandler(b *bus.Bus, resolver JIDResolver, logger *zap.Logger) *EventHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventHandler{
		bus:            b,
		resolver:       resolver,
		logger:         logger,
		publishTimeout: 30 * time.Second,
	}
}

// Connected reports whether the platform connection is up.
func (h *EventHandler) Connected() bool {
	return h.connected.Load()
}

// Handle is the main whatsmeow event handler function.
func (h *EventHandler) Handle(rawEvt any) {
	switch evt := rawEvt.(type) {
	case *events.Message:
		h.handleMessage(evt)
	case *events.Connected:
		h.logger.Info("WhatsApp connected")
		h.setConnected(true, "")
	case *events.Disconnected:
		h.logger.Warn("WhatsApp disconnected")
		h.setConnected(false, "disconnected")
	case *events.HistorySync:
		h.handleHistorySync(evt)
	case *events.LoggedOut:
		h.logger.Warn("WhatsApp logged out", zap.String("reason", evt.Reason.String()))
		h.setConnected(false, "logged_out: "+evt.Reason.String())
	}
}

func (h *EventHandler) setConnected(up bool, reason string) {
	h.connected.Store(up)
	h.bus.Publish(bus.Event{
		Kind:      bus.KindConnectorStatus,
		Timestamp: time.Now(),
		Payload:   ConnectorStatus{Connected: up, Reason: reason},
	})
}

func (h *EventHandler) handleMessage(evt *events.Message) {
	if h.resolver != nil {
		ctx := context.Background()
		evt.Info.Chat = h.resolver.ResolveLID(ctx, evt.Info.Chat)
		evt.Info.Sender = h.resolver.ResolveLID(ctx, evt.Info.Sender)
	}
	parsed, ok := ParseLiveMessage(evt)
	if !ok {
		return
	}
	kind := bus.KindInboundMessage
	if parsed.IsEdit {
		kind = bus.KindInboundEdit
	}
	h.deliver(kind, parsed, 1)
}

func (h *EventHandler) handleHistorySync(evt *events.HistorySync) {
	data := evt.Data
	if data == nil {
		return
	}

	var batch []ingest.Event
	for _, conv := range data.GetConversations() {
		chatJID, err := types.ParseJID(conv.GetID())
		if err != nil {
			h.logger.Warn("skipping history conversation with bad jid", zap.String("jid", conv.GetID()), zap.Error(err))
			continue
		}
		if h.resolver != nil {
			chatJID = h.resolver.ResolveLID(context.Background(), chatJID)
		}
		for _, hm := range conv.GetMessages() {
			wmsg := hm.GetMessage()
			if wmsg == nil || wmsg.GetMessage() == nil {
				continue
			}
			key := wmsg.GetKey()
			parsed, ok := ParseHistoryMessage(chatJID, key.GetID(), key.GetParticipant(), wmsg.GetPushName(),
				key.GetFromMe(), wmsg.GetMessageTimestamp(), wmsg.GetMessage())
			if !ok {
				continue
			}
			if parsed.ChatTitle == "" {
				parsed.ChatTitle = conv.GetName()
			}
			batch = append(batch, parsed)
		}
	}

	if len(batch) > 0 {
		h.deliver(bus.KindInboundHistory, batch, len(batch))
	}
}

func (h *EventHandler) deliver(kind string, payload any, count int) {
	ctx, cancel := context.WithTimeout(context.Background(), h.publishTimeout)
	defer cancel()
	err := h.bus.PublishContext(ctx, bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
	if err != nil {
		h.logger.Error("inbound event not delivered", zap.String("kind", kind), zap.Int("messages", count), zap.Error(err))
	}
}
