package queue

import (
	"strings"

	"orderdesk/internal/util"
)

const dedupeSeparator = "|"

// CreateDedupeKey fingerprints an order by customer, order number and date.
// Case and whitespace differences do not change the key. A literal "|"
// inside a field can make two different orders collide; that is a known
// limitation of the format.
func CreateDedupeKey(customerName, orderNumber, orderDate string) string {
	return strings.Join([]string{
		util.NormalizeForDedupe(customerName),
		util.NormalizeForDedupe(orderNumber),
		util.NormalizeForDedupe(orderDate),
	}, dedupeSeparator)
}
