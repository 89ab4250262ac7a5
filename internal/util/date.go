package util

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const OrderDateLayout = "02/01/2006"

var (
	reCanonicalDate = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)
	reOrdinal       = regexp.MustCompile(`(?i)\b(\d{1,2})(st|nd|rd|th)\b`)
	reDateSplit     = regexp.MustCompile(`[-/]`)
)

// Layouts tried by the general parser. Purely numeric day/month forms are
// left to the manual split so they are always read day-first.
var calendarLayouts = []string{
	"Monday 2 January 2006",
	"Mon 2 Jan 2006",
	"Monday 2 Jan 2006",
	"Mon 2 January 2006",
	"Monday January 2 2006",
	"Mon Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
	"January 2 2006",
	"Jan 2 2006",
	"2-Jan-2006",
	"2-January-2006",
	"2 Jan 2006 15:04",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	time.RFC1123Z,
	time.RFC1123,
}

// NormalizeOrderDate converts free-form date text to dd/MM/yyyy. When nothing
// recognises the input it is returned verbatim with a warning.
func NormalizeOrderDate(input string) (string, string) {
	trimmed := strings.TrimSpace(input)
	if reCanonicalDate.MatchString(trimmed) {
		return trimmed, ""
	}

	if t, ok := parseCalendarDate(trimmed); ok {
		return t.Format(OrderDateLayout), ""
	}

	if d, m, y, ok := splitNumericDate(trimmed); ok {
		return fmt.Sprintf("%02d/%02d/%04d", d, m, y), ""
	}

	return input, fmt.Sprintf("Unrecognised order date %q, kept as provided", input)
}

func parseCalendarDate(input string) (time.Time, bool) {
	if input == "" {
		return time.Time{}, false
	}
	candidates := []string{input}
	cleaned := reOrdinal.ReplaceAllString(input, "$1")
	cleaned = strings.ReplaceAll(cleaned, ",", " ")
	cleaned = strings.ReplaceAll(cleaned, ".", " ")
	cleaned = CollapseSpaces(cleaned)
	if cleaned != input {
		candidates = append(candidates, cleaned)
	}

	for _, candidate := range candidates {
		for _, layout := range calendarLayouts {
			if t, err := time.Parse(layout, candidate); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func splitNumericDate(input string) (day, month, year int, ok bool) {
	parts := reDateSplit.Split(input, -1)
	if len(parts) != 3 {
		return 0, 0, 0, false
	}
	nums := make([]int, 3)
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if !isAllDigits(p) {
			return 0, 0, 0, false
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0, 0, 0, false
		}
		nums[i] = n
	}

	if len(strings.TrimSpace(parts[0])) == 4 {
		year, month, day = nums[0], nums[1], nums[2]
	} else {
		day, month, year = nums[0], nums[1], nums[2]
	}

	if day < 1 || day > 31 || month < 1 || month > 12 || year <= 1900 || year >= 2100 {
		return 0, 0, 0, false
	}
	return day, month, year, true
}
