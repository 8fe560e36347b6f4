package views

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"

	"github.com/matheus3301/lawdesk/internal/store"
	"github.com/matheus3301/lawdesk/internal/tui/ui"
)

// MessageThread shows the history of one conversation, oldest at the top.
type MessageThread struct {
	*tview.TextView
	theme *ui.Theme
}

// NewMessageThread creates an empty thread view.
func NewMessageThread(theme *ui.Theme) *MessageThread {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true)
	tv.SetBorderColor(theme.BorderColor)
	tv.SetBackgroundColor(theme.BgColor)
	tv.SetTextColor(theme.FgColor)
	tv.SetTitleColor(theme.TitleColor)
	tv.SetTitle(" Messages ")

	return &MessageThread{TextView: tv, theme: theme}
}

// SetConversation sets the thread title.
func (mt *MessageThread) SetConversation(name string) {
	mt.SetTitle(fmt.Sprintf(" %s ", tview.Escape(sanitizeForTerminal(name))))
}

// Update renders msgs, which arrive newest first.
func (mt *MessageThread) Update(msgs []store.Message) {
	mt.Clear()
	_, _ = fmt.Fprint(mt, renderThread(msgs))
	mt.ScrollToEnd()
}

func renderThread(msgs []store.Message) string {
	var b strings.Builder
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		sender := m.SenderName
		if sender == "" {
			sender = m.SenderID
		}

		var flags []string
		if m.IsEdited {
			flags = append(flags, "edited")
		}
		if m.Type != "" && m.Type != store.TypeText {
			flags = append(flags, string(m.Type))
		}
		meta := formatTimestamp(m.Timestamp)
		if len(flags) > 0 {
			meta += " · " + strings.Join(flags, ", ")
		}

		body := m.Content
		if m.IsDeleted {
			body = "[::i]message deleted[-:-:-]"
		} else {
			body = tview.Escape(sanitizeForTerminal(body))
		}

		fmt.Fprintf(&b, "[::b]%s[-:-:-] [::d]%s[-:-:-]\n%s\n", tview.Escape(sanitizeForTerminal(sender)), meta, body)
		for _, a := range m.Attachments {
			fmt.Fprintf(&b, "  [::d]📎 %s (%s)[-:-:-]\n", tview.Escape(sanitizeForTerminal(a.FileName)), formatSize(a.Size))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
