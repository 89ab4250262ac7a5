package util

import (
	"regexp"
	"strconv"
	"strings"
)

var reNumeric = regexp.MustCompile(`^\d+(?:\.\d+)?$`)

// QuantityCell returns the quantity as a float64 when it is a plain number so
// spreadsheets can sum it, and the original string otherwise. Separators are
// never interpreted: "1,5", "1,000" and "2.500" stay text, as does any token
// whose float rendering would differ from what the customer wrote.
func QuantityCell(quantity string) any {
	q := strings.TrimSpace(quantity)
	if !reNumeric.MatchString(q) {
		return quantity
	}
	parsed, err := strconv.ParseFloat(q, 64)
	if err != nil || strconv.FormatFloat(parsed, 'f', -1, 64) != q {
		return quantity
	}
	return parsed
}
