package views

import "strings"

// sanitizeForTerminal drops codepoints tcell cannot lay out in a single
// cell run: skin tone modifiers, the zero width joiner and variation
// selectors. A thumbs up with a skin tone becomes a plain thumbs up.
func sanitizeForTerminal(s string) string {
	return strings.Map(func(r rune) rune {
		if combining(r) {
			return -1
		}
		return r
	}, s)
}

func combining(r rune) bool {
	switch {
	case r >= 0x1F3FB && r <= 0x1F3FF: // skin tones
		return true
	case r == 0x200D:
		return true
	case r >= 0xFE00 && r <= 0xFE0F, r >= 0xE0100 && r <= 0xE01EF:
		return true
	}
	return false
}
