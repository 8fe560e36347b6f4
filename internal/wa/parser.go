package wa

import (
	"path/filepath"
	"strings"

	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"

	"github.com/matheus3301/lawdesk/internal/ingest"
	"github.com/matheus3301/lawdesk/internal/store"
)

// ParseLiveMessage converts a live whatsmeow message into an ingest event.
// Protocol messages other than edits (revokes, key shares, ...) are not
// messages and yield false.
func ParseLiveMessage(evt *events.Message) (ingest.Event, bool) {
	if evt == nil || evt.Message == nil {
		return ingest.Event{}, false
	}
	info := evt.Info
	ev := ingest.Event{
		ExternalChatID: NormalizeJID(info.Chat),
		ChatKind:       chatKind(info.Chat),
		SenderID:       NormalizeJID(info.Sender),
		SenderName:     info.PushName,
		Timestamp:      info.Timestamp.UnixMilli(),
	}
	if ev.ChatKind == store.KindDirect && !info.IsFromMe {
		ev.ChatTitle = info.PushName
	}

	if pm := evt.Message.GetProtocolMessage(); pm != nil {
		if pm.GetType() != waE2E.ProtocolMessage_MESSAGE_EDIT {
			return ingest.Event{}, false
		}
		edited := pm.GetEditedMessage()
		ev.ExternalMessageID = pm.GetKey().GetID()
		ev.Content = extractTextBody(edited)
		ev.Type = detectMessageType(edited)
		ev.IsEdit = true
		ev.EditedAt = ev.Timestamp
		return ev, ev.ExternalMessageID != ""
	}

	fillBody(&ev, evt.Message, info.ID)
	return ev, true
}

// ParseHistoryMessage converts one history-sync message of chatJID into an
// ingest event. Timestamps in history sync are unix seconds.
func ParseHistoryMessage(chatJID types.JID, msgID, senderJID, pushName string, fromMe bool, unixSeconds uint64, msg *waE2E.Message) (ingest.Event, bool) {
	if msg == nil || msg.GetProtocolMessage() != nil {
		return ingest.Event{}, false
	}
	ev := ingest.Event{
		ExternalChatID: NormalizeJID(chatJID),
		ChatKind:       chatKind(chatJID),
		SenderID:       senderJID,
		SenderName:     pushName,
		Timestamp:      int64(unixSeconds) * 1000,
	}
	if ev.SenderID == "" && !fromMe {
		ev.SenderID = ev.ExternalChatID
	}
	fillBody(&ev, msg, msgID)
	return ev, true
}

func fillBody(ev *ingest.Event, msg *waE2E.Message, msgID string) {
	ev.ExternalMessageID = msgID
	ev.Type = detectMessageType(msg)
	ev.Content = extractTextBody(msg)
	if ev.Content == "" {
		ev.Content = extractCaption(msg)
	}
	if att, ok := extractAttachment(msg, msgID); ok {
		ev.Attachments = []store.Attachment{att}
	}
	ev.ReplyToExternalID = replyTo(msg)
}

// NormalizeJID drops the device part so every device of a user maps to the
// same chat identifier.
func NormalizeJID(jid types.JID) string {
	if jid.IsEmpty() {
		return ""
	}
	return jid.ToNonAD().String()
}

func chatKind(jid types.JID) store.Kind {
	switch jid.Server {
	case types.GroupServer:
		return store.KindGroup
	case types.NewsletterServer, types.BroadcastServer:
		return store.KindChannel
	default:
		return store.KindDirect
	}
}

func extractTextBody(msg *waE2E.Message) string {
	if msg == nil {
		return ""
	}
	if c := msg.GetConversation(); c != "" {
		return c
	}
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetText()
	}
	return ""
}

func extractCaption(msg *waE2E.Message) string {
	switch {
	case msg.GetImageMessage() != nil:
		return msg.GetImageMessage().GetCaption()
	case msg.GetVideoMessage() != nil:
		return msg.GetVideoMessage().GetCaption()
	case msg.GetDocumentMessage() != nil:
		if c := msg.GetDocumentMessage().GetCaption(); c != "" {
			return c
		}
		return msg.GetDocumentMessage().GetTitle()
	}
	return ""
}

func detectMessageType(msg *waE2E.Message) store.MessageType {
	if msg == nil {
		return store.TypeText
	}
	switch {
	case msg.GetConversation() != "" || msg.GetExtendedTextMessage() != nil:
		return store.TypeText
	case msg.GetImageMessage() != nil, msg.GetStickerMessage() != nil:
		return store.TypeImage
	case msg.GetVideoMessage() != nil:
		return store.TypeVideo
	case msg.GetAudioMessage() != nil:
		return store.TypeAudio
	case msg.GetDocumentMessage() != nil:
		return store.TypeDocument
	default:
		return store.TypeText
	}
}

func extractAttachment(msg *waE2E.Message, msgID string) (store.Attachment, bool) {
	att := store.Attachment{ID: msgID + ":0"}
	switch {
	case msg.GetImageMessage() != nil:
		m := msg.GetImageMessage()
		att.MIMEType, att.Size, att.URL = m.GetMimetype(), int64(m.GetFileLength()), m.GetURL()
		att.Width, att.Height = int(m.GetWidth()), int(m.GetHeight())
	case msg.GetStickerMessage() != nil:
		m := msg.GetStickerMessage()
		att.MIMEType, att.Size, att.URL = m.GetMimetype(), int64(m.GetFileLength()), m.GetURL()
		att.Width, att.Height = int(m.GetWidth()), int(m.GetHeight())
	case msg.GetVideoMessage() != nil:
		m := msg.GetVideoMessage()
		att.MIMEType, att.Size, att.URL = m.GetMimetype(), int64(m.GetFileLength()), m.GetURL()
		att.Width, att.Height = int(m.GetWidth()), int(m.GetHeight())
		att.Duration = float64(m.GetSeconds())
	case msg.GetAudioMessage() != nil:
		m := msg.GetAudioMessage()
		att.MIMEType, att.Size, att.URL = m.GetMimetype(), int64(m.GetFileLength()), m.GetURL()
		att.Duration = float64(m.GetSeconds())
	case msg.GetDocumentMessage() != nil:
		m := msg.GetDocumentMessage()
		att.MIMEType, att.Size, att.URL = m.GetMimetype(), int64(m.GetFileLength()), m.GetURL()
		att.FileName = m.GetFileName()
		att.Extension = strings.TrimPrefix(filepath.Ext(att.FileName), ".")
	default:
		return store.Attachment{}, false
	}
	return att, true
}

func replyTo(msg *waE2E.Message) string {
	if ext := msg.GetExtendedTextMessage(); ext != nil {
		return ext.GetContextInfo().GetStanzaID()
	}
	return ""
}
