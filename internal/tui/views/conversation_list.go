package views

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/lawdesk/internal/store"
	"github.com/matheus3301/lawdesk/internal/tui/model"
	"github.com/matheus3301/lawdesk/internal/tui/ui"
)

// ConversationList is the table of conversations visible to the caller.
type ConversationList struct {
	*tview.Table
	theme   *ui.Theme
	convs   []store.Conversation
	visible []store.Conversation
	filter  string
}

// NewConversationList creates an empty list.
func NewConversationList(theme *ui.Theme) *ConversationList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	table.SetBorder(true)
	table.SetBorderColor(theme.BorderColor)
	table.SetBackgroundColor(theme.BgColor)
	table.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))
	table.SetTitleColor(theme.TitleColor)

	cl := &ConversationList{Table: table, theme: theme}
	cl.render()
	return cl
}

// Update replaces the listed conversations.
func (cl *ConversationList) Update(convs []store.Conversation) {
	cl.convs = convs
	cl.render()
}

// SetFilter narrows the list to conversations whose name or external id
// contains filter, ignoring case.
func (cl *ConversationList) SetFilter(filter string) {
	cl.filter = filter
	cl.render()
}

// Filter returns the active filter.
func (cl *ConversationList) Filter() string { return cl.filter }

func (cl *ConversationList) render() {
	cl.Clear()

	headers := []struct {
		text string
		exp  int
	}{
		{" NAME", 2},
		{" KIND", 0},
		{" UNREAD", 0},
		{" UPDATED", 0},
	}
	for col, h := range headers {
		cl.SetCell(0, col, tview.NewTableCell(h.text).
			SetSelectable(false).
			SetTextColor(cl.theme.TableHeaderFg).
			SetBackgroundColor(cl.theme.TableHeaderBg).
			SetAttributes(tcell.AttrBold).
			SetExpansion(h.exp))
	}

	cl.visible = cl.visible[:0]
	for _, c := range cl.convs {
		if !matches(c, cl.filter) {
			continue
		}
		cl.visible = append(cl.visible, c)
	}

	for i, c := range cl.visible {
		row := i + 1
		fg := cl.theme.FgColor
		name := model.DisplayName(c)
		if c.Archived {
			fg = cl.theme.ArchivedColor
			name += " (archived)"
		}
		unread := ""
		if c.UnreadCount > 0 {
			unread = fmt.Sprintf("%d", c.UnreadCount)
		}
		cl.SetCell(row, 0, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(name))).SetExpansion(2).SetTextColor(fg))
		cl.SetCell(row, 1, tview.NewTableCell(" "+string(c.Kind)).SetTextColor(fg))
		cl.SetCell(row, 2, tview.NewTableCell(unread).SetTextColor(fg).SetAlign(tview.AlignRight))
		cl.SetCell(row, 3, tview.NewTableCell(formatTimestamp(c.UpdatedAt)).SetTextColor(fg).SetAlign(tview.AlignRight))
	}

	if cl.filter != "" {
		cl.SetTitle(fmt.Sprintf(" Conversations (%d/%d) filter: %s ", len(cl.visible), len(cl.convs), tview.Escape(cl.filter)))
	} else {
		cl.SetTitle(fmt.Sprintf(" Conversations (%d) ", len(cl.convs)))
	}
}

// Selected returns the conversation under the cursor.
func (cl *ConversationList) Selected() (store.Conversation, bool) {
	row, _ := cl.GetSelection()
	idx := row - 1
	if idx < 0 || idx >= len(cl.visible) {
		return store.Conversation{}, false
	}
	return cl.visible[idx], true
}

func matches(c store.Conversation, filter string) bool {
	if filter == "" {
		return true
	}
	f := strings.ToLower(filter)
	return strings.Contains(strings.ToLower(c.Name), f) ||
		strings.Contains(strings.ToLower(c.ExternalID), f)
}
