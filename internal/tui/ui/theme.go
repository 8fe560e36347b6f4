package ui

import "github.com/gdamore/tcell/v2"

// Theme holds the colors shared by every view.
type Theme struct {
	BgColor          tcell.Color
	FgColor          tcell.Color
	MutedColor       tcell.Color
	BorderColor      tcell.Color
	BorderFocusColor tcell.Color
	TableHeaderFg    tcell.Color
	TableHeaderBg    tcell.Color
	TableCursorFg    tcell.Color
	TableCursorBg    tcell.Color
	TitleColor       tcell.Color
	ArchivedColor    tcell.Color
	OnlineColor      tcell.Color
	DegradedColor    tcell.Color
	OfflineColor     tcell.Color
	FlashColor       tcell.Color
}

// DefaultTheme returns a dark theme.
func DefaultTheme() *Theme {
	return &Theme{
		BgColor:          tcell.ColorBlack,
		FgColor:          tcell.ColorCadetBlue,
		MutedColor:       tcell.ColorGray,
		BorderColor:      tcell.ColorDodgerBlue,
		BorderFocusColor: tcell.ColorLightSkyBlue,
		TableHeaderFg:    tcell.ColorWhite,
		TableHeaderBg:    tcell.ColorBlack,
		TableCursorFg:    tcell.ColorBlack,
		TableCursorBg:    tcell.ColorAqua,
		TitleColor:       tcell.ColorFuchsia,
		ArchivedColor:    tcell.ColorDarkGray,
		OnlineColor:      tcell.ColorGreen,
		DegradedColor:    tcell.ColorOrange,
		OfflineColor:     tcell.ColorOrangeRed,
		FlashColor:       tcell.ColorNavajoWhite,
	}
}

// StoreStateColor maps a store health state name to a tview color tag.
func (t *Theme) StoreStateColor(state string) string {
	switch state {
	case "ONLINE":
		return colorTag(t.OnlineColor)
	case "DEGRADED", "BOOTING", "NOT_CONFIGURED":
		return colorTag(t.DegradedColor)
	default:
		return colorTag(t.OfflineColor)
	}
}

func colorTag(c tcell.Color) string {
	return c.CSS()
}
