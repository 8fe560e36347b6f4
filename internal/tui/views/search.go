package views

import (
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/matheus3301/lawdesk/internal/store"
	"github.com/matheus3301/lawdesk/internal/tui/ui"
)

// SearchView is a query field above a table of matching messages.
type SearchView struct {
	*tview.Flex
	input   *tview.InputField
	results *tview.Table
	theme   *ui.Theme
	data    []store.Message
	names   func(conversationID string) string
}

// NewSearchView creates a search view. names resolves conversation ids to
// display names for the result table.
func NewSearchView(theme *ui.Theme, names func(string) string) *SearchView {
	input := tview.NewInputField().
		SetLabel(" Search: ").
		SetFieldWidth(0)
	input.SetFieldBackgroundColor(theme.BgColor)
	input.SetFieldTextColor(theme.FgColor)
	input.SetLabelColor(theme.TitleColor)

	results := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false).
		SetFixed(1, 0)
	results.SetBorder(true).SetTitle(" Results ")
	results.SetBorderColor(theme.BorderColor)
	results.SetTitleColor(theme.TitleColor)
	results.SetSelectedStyle(tcell.StyleDefault.
		Foreground(theme.TableCursorFg).
		Background(theme.TableCursorBg))

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(input, 1, 0, true).
		AddItem(results, 0, 1, false)

	return &SearchView{
		Flex:    flex,
		input:   input,
		results: results,
		theme:   theme,
		names:   names,
	}
}

// SetOnQuery sets the callback run when a query is submitted.
func (sv *SearchView) SetOnQuery(fn func(query string)) {
	sv.input.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter && sv.input.GetText() != "" {
			fn(sv.input.GetText())
		}
	})
}

// Update shows results.
func (sv *SearchView) Update(results []store.Message) {
	sv.data = results
	sv.results.Clear()

	for col, h := range []string{" CONVERSATION", " FROM", " WHEN", " MESSAGE"} {
		sv.results.SetCell(0, col, tview.NewTableCell(h).
			SetSelectable(false).
			SetTextColor(sv.theme.TableHeaderFg).
			SetAttributes(tcell.AttrBold))
	}
	for i, m := range results {
		row := i + 1
		conv := m.ConversationID
		if sv.names != nil {
			conv = sv.names(m.ConversationID)
		}
		sv.results.SetCell(row, 0, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(conv))).SetMaxWidth(25))
		sv.results.SetCell(row, 1, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(m.SenderName))).SetMaxWidth(20))
		sv.results.SetCell(row, 2, tview.NewTableCell(formatTimestamp(m.Timestamp)).SetAlign(tview.AlignRight))
		sv.results.SetCell(row, 3, tview.NewTableCell(" "+tview.Escape(sanitizeForTerminal(snippet(m.Content, 120)))).SetExpansion(1))
	}
	sv.results.SetTitle(" Results ")
	if len(results) > 0 {
		sv.results.Select(1, 0)
	}
}

// Selected returns the message under the cursor.
func (sv *SearchView) Selected() (store.Message, bool) {
	row, _ := sv.results.GetSelection()
	idx := row - 1
	if idx < 0 || idx >= len(sv.data) {
		return store.Message{}, false
	}
	return sv.data[idx], true
}

// SetOnSelect sets the callback run when a result is chosen.
func (sv *SearchView) SetOnSelect(fn func(store.Message)) {
	sv.results.SetSelectedFunc(func(int, int) {
		if m, ok := sv.Selected(); ok {
			fn(m)
		}
	})
}

// Input returns the query field.
func (sv *SearchView) Input() *tview.InputField { return sv.input }

// Results returns the results table.
func (sv *SearchView) Results() *tview.Table { return sv.results }

// snippet flattens s onto one line and cuts it to n runes.
func snippet(s string, n int) string {
	r := []rune(s)
	for i, c := range r {
		if c == '\n' || c == '\r' || c == '\t' {
			r[i] = ' '
		}
	}
	if len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return string(r)
}
