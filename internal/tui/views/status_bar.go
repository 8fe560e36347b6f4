package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/rivo/tview"

	"github.com/matheus3301/lawdesk/internal/api"
	"github.com/matheus3301/lawdesk/internal/tui/ui"
)

// StatusBar is the bottom line: workspace, store health, connector, key hints
// and the current flash message.
type StatusBar struct {
	*tview.TextView
	theme  *ui.Theme
	caller string
	status *api.GetStatusResponse
	hints  []string
	flash  string
}

// NewStatusBar creates a status bar for caller.
func NewStatusBar(theme *ui.Theme, caller string) *StatusBar {
	tv := tview.NewTextView().SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)
	sb := &StatusBar{TextView: tv, theme: theme, caller: caller}
	sb.render()
	return sb
}

// SetStatus updates the daemon status shown.
func (sb *StatusBar) SetStatus(st *api.GetStatusResponse) {
	sb.status = st
	sb.render()
}

// SetHints updates the key hints shown.
func (sb *StatusBar) SetHints(hints []string) {
	sb.hints = hints
	sb.render()
}

// SetFlash sets a temporary message.
func (sb *StatusBar) SetFlash(msg string) {
	sb.flash = msg
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()
	_, _ = fmt.Fprint(sb, sb.line(time.Now()))
}

func (sb *StatusBar) line(now time.Time) string {
	var b strings.Builder
	if st := sb.status; st != nil {
		fmt.Fprintf(&b, " [::b]%s[-:-:-] | store [%s]%s[-]", tview.Escape(st.Workspace), sb.theme.StoreStateColor(st.StoreState), st.StoreState)
		if st.Connector {
			b.WriteString(" | whatsapp up")
		} else {
			b.WriteString(" | whatsapp down")
		}
	} else {
		b.WriteString(" [::d]daemon unreachable[-:-:-]")
	}
	fmt.Fprintf(&b, " | %s | %s", tview.Escape(sb.caller), now.Format("15:04"))
	if len(sb.hints) > 0 {
		fmt.Fprintf(&b, " | [::d]%s[-:-:-]", tview.Escape(strings.Join(sb.hints, "  ")))
	}
	if sb.flash != "" {
		fmt.Fprintf(&b, " | [yellow]%s[-]", tview.Escape(sb.flash))
	}
	return b.String()
}
