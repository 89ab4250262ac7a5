package extract

import (
	"fmt"
	"strings"

	"orderdesk/internal"
	"orderdesk/internal/tinting"
	"orderdesk/internal/util"
)

// Finalize normalizes an order as returned by the model: canonical date,
// cleaned descriptions, Y/N tinting flags and a row id on every row.
// Problems that do not stop the order are reported in Warnings.
func Finalize(order internal.ProductionOrder) internal.ProductionOrder {
	out := internal.ProductionOrder{
		CustomerName: util.CollapseSpaces(order.CustomerName),
		OrderNumber:  strings.TrimSpace(order.OrderNumber),
		Rows:         make([]internal.Row, 0, len(order.Rows)),
		Warnings:     append([]string{}, order.Warnings...),
	}

	date, warning := util.NormalizeOrderDate(strings.TrimSpace(order.OrderDate))
	out.OrderDate = date
	if warning != "" {
		out.Warnings = append(out.Warnings, warning)
	}

	for i, row := range order.Rows {
		raw := util.CollapseSpaces(row.ProductDescriptionRaw)
		if raw == "" && row.ProductDescriptionProduction == "" {
			out.Warnings = append(out.Warnings, fmt.Sprintf("Line %d has no product description and was skipped", i+1))
			continue
		}
		production := row.ProductDescriptionProduction
		if production == "" {
			production = util.CleanProductDescription(raw)
		}
		id := row.ID
		if id == "" {
			id = fmt.Sprintf("row-%d", i+1)
		}
		out.Rows = append(out.Rows, internal.Row{
			ID:                           id,
			ProductDescriptionRaw:        raw,
			ProductDescriptionProduction: production,
			Quantity:                     strings.TrimSpace(row.Quantity),
			Tinting:                      tinting.NormalizeFlag(string(row.Tinting)),
		})
	}

	if out.CustomerName == "" {
		out.Warnings = append(out.Warnings, "Customer name is missing")
	}
	if out.OrderNumber == "" {
		out.Warnings = append(out.Warnings, "Order number is missing")
	}
	if len(out.Rows) == 0 {
		out.Warnings = append(out.Warnings, "No product lines were found")
	}
	return out
}
