package util

import (
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

// GenerateOrderID returns PO-<yyyymmdd>-<hhmmss>-<4 base36 chars>.
// Unique enough for one operator's daily volume, nothing more.
func GenerateOrderID(now time.Time) string {
	return "PO-" + now.Format("20060102-150405") + "-" + randomBase36(4)
}

// GenerateExportID returns EXP-<yyyymmdd>-<hhmmss>-<6 base36 chars>.
func GenerateExportID(now time.Time) string {
	return "EXP-" + now.Format("20060102-150405") + "-" + randomBase36(6)
}

// DayKey is the process-local calendar day of t.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

func randomBase36(width int) string {
	limit := int64(1)
	for i := 0; i < width; i++ {
		limit *= 36
	}
	s := strconv.FormatInt(rand.Int64N(limit), 36)
	if len(s) < width {
		s = strings.Repeat("0", width-len(s)) + s
	}
	return s
}
