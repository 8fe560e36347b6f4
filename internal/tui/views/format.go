package views

import "time"

// formatTimestamp shows a unix millisecond time as a clock for today and
// as a date otherwise.
func formatTimestamp(ms int64) string {
	return formatTimestampAt(ms, time.Now())
}

func formatTimestampAt(ms int64, now time.Time) string {
	if ms == 0 {
		return ""
	}
	t := time.UnixMilli(ms).In(now.Location())
	switch {
	case t.Year() == now.Year() && t.YearDay() == now.YearDay():
		return t.Format("15:04")
	case t.Year() == now.Year():
		return t.Format("01/02")
	default:
		return t.Format("2006-01-02")
	}
}
