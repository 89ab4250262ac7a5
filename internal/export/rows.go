// Package export flattens orders into spreadsheet rows and writes them as CSV,
// styled workbooks and remote sync payloads.
package export

import (
	"fmt"

	"orderdesk/internal"
	"orderdesk/internal/align"
	"orderdesk/internal/tinting"
	"orderdesk/internal/util"
)

// ExportRow is one order line in the extraction sheet. Comments and invoice
// fields are left blank for manual annotation after export.
type ExportRow struct {
	OrderID            string `json:"order_id"`
	LineID             string `json:"line_id"`
	OrderDate          string `json:"order_date"`
	CustomerName       string `json:"customer_name"`
	OrderNumber        string `json:"order_number"`
	ProductDescription string `json:"product_description"`
	Quantity           string `json:"quantity"`
	Tinting            string `json:"tinting"`
	Comments           string `json:"comments"`
	InvoiceNumber      string `json:"invoice_number"`
	InvoiceDate        string `json:"invoice_date"`
}

// TintingRow is one line of the tinting worklist. Colour is filled in by the
// tinting desk.
type TintingRow struct {
	OrderID            string `json:"order_id"`
	LineID             string `json:"line_id"`
	OrderDate          string `json:"order_date"`
	CustomerName       string `json:"customer_name"`
	OrderNumber        string `json:"order_number"`
	ProductDescription string `json:"product_description"`
	Quantity           string `json:"quantity"`
	Colour             string `json:"colour"`
	Comments           string `json:"comments"`
}

var ExtractionKeyMap = map[string]string{
	"ORDER ID":            "order_id",
	"LINE ID":             "line_id",
	"ORDER DATE":          "order_date",
	"CUSTOMER NAME":       "customer_name",
	"CUSTOMER":            "customer_name",
	"ORDER NUMBER":        "order_number",
	"PO NUMBER":           "order_number",
	"PRODUCT DESCRIPTION": "product_description",
	"DESCRIPTION":         "product_description",
	"QUANTITY":            "quantity",
	"QTY":                 "quantity",
	"TINTING":             "tinting",
	"COMMENTS":            "comments",
	"INVOICE NUMBER":      "invoice_number",
	"INVOICE DATE":        "invoice_date",
}

var TintingKeyMap = map[string]string{
	"ORDER ID":            "order_id",
	"LINE ID":             "line_id",
	"ORDER DATE":          "order_date",
	"CUSTOMER NAME":       "customer_name",
	"CUSTOMER":            "customer_name",
	"ORDER NUMBER":        "order_number",
	"PO NUMBER":           "order_number",
	"PRODUCT DESCRIPTION": "product_description",
	"DESCRIPTION":         "product_description",
	"QUANTITY":            "quantity",
	"QTY":                 "quantity",
	"COLOUR":              "colour",
	"COLOR":               "colour",
	"COMMENTS":            "comments",
}

// Headers used when no remote template is consulted.
var (
	DefaultExtractionHeaders = []string{
		"DATE CREATED", "BATCH NUMBER", "ORDER ID", "ORDER DATE", "CUSTOMER NAME", "ORDER NUMBER",
		"PRODUCT DESCRIPTION", "QUANTITY", "TINTING", "COMMENTS", "INVOICE NUMBER", "INVOICE DATE",
	}
	DefaultTintingHeaders = []string{
		"DATE CREATED", "BATCH NUMBER", "ORDER ID", "ORDER DATE", "CUSTOMER NAME", "ORDER NUMBER",
		"PRODUCT DESCRIPTION", "QUANTITY", "COLOUR", "COMMENTS",
	}
)

// Defaults are the generated columns shared by every row of one export.
func Defaults(dateCreated string, batchNumber int) map[string]any {
	return map[string]any{
		"date_created": dateCreated,
		"batch_number": batchNumber,
	}
}

func (r ExportRow) Fields() align.Row {
	return align.Row{
		"order_id":            r.OrderID,
		"line_id":             r.LineID,
		"order_date":          r.OrderDate,
		"customer_name":       r.CustomerName,
		"order_number":        r.OrderNumber,
		"product_description": r.ProductDescription,
		"quantity":            util.QuantityCell(r.Quantity),
		"tinting":             r.Tinting,
		"comments":            r.Comments,
		"invoice_number":      r.InvoiceNumber,
		"invoice_date":        r.InvoiceDate,
	}
}

func (r TintingRow) Fields() align.Row {
	return align.Row{
		"order_id":            r.OrderID,
		"line_id":             r.LineID,
		"order_date":          r.OrderDate,
		"customer_name":       r.CustomerName,
		"order_number":        r.OrderNumber,
		"product_description": r.ProductDescription,
		"quantity":            util.QuantityCell(r.Quantity),
		"colour":              r.Colour,
		"comments":            r.Comments,
	}
}

// RowsFromOrder flattens a single extraction result. orderID is a transient
// id since the order is not queued.
func RowsFromOrder(order internal.ProductionOrder, orderID string) []ExportRow {
	out := make([]ExportRow, 0, len(order.Rows))
	for i, row := range order.Rows {
		out = append(out, ExportRow{
			OrderID:            orderID,
			LineID:             fmt.Sprintf("%s-L%d", orderID, i+1),
			OrderDate:          order.OrderDate,
			CustomerName:       util.ToTitleCase(order.CustomerName),
			OrderNumber:        order.OrderNumber,
			ProductDescription: util.ToTitleCase(rowDescription(row)),
			Quantity:           row.Quantity,
			Tinting:            string(tinting.NormalizeFlag(string(row.Tinting))),
		})
	}
	return out
}

func RowsFromQueue(items []internal.QueueItem) []ExportRow {
	var out []ExportRow
	for _, item := range items {
		for _, line := range item.Items {
			out = append(out, ExportRow{
				OrderID:            item.OrderID,
				LineID:             line.LineID,
				OrderDate:          item.OrderDate,
				CustomerName:       util.ToTitleCase(item.CustomerName),
				OrderNumber:        item.OrderNumber,
				ProductDescription: util.ToTitleCase(line.Description()),
				Quantity:           line.Quantity,
				Tinting:            string(tinting.NormalizeFlag(string(line.Tinting))),
			})
		}
	}
	return out
}

func TintingRowsFromOrder(order internal.ProductionOrder, orderID string) []TintingRow {
	var out []TintingRow
	for i, row := range order.Rows {
		desc := rowDescription(row)
		if !tinting.IsTintable(desc, row.Tinting) {
			continue
		}
		out = append(out, TintingRow{
			OrderID:            orderID,
			LineID:             fmt.Sprintf("%s-L%d", orderID, i+1),
			OrderDate:          order.OrderDate,
			CustomerName:       util.ToTitleCase(order.CustomerName),
			OrderNumber:        order.OrderNumber,
			ProductDescription: util.ToTitleCase(desc),
			Quantity:           row.Quantity,
		})
	}
	return out
}

func TintingRowsFromQueue(items []internal.QueueItem) []TintingRow {
	var out []TintingRow
	for _, item := range items {
		for _, line := range tinting.FilterLines(item.Items) {
			out = append(out, TintingRow{
				OrderID:            item.OrderID,
				LineID:             line.LineID,
				OrderDate:          item.OrderDate,
				CustomerName:       util.ToTitleCase(item.CustomerName),
				OrderNumber:        item.OrderNumber,
				ProductDescription: util.ToTitleCase(line.Description()),
				Quantity:           line.Quantity,
			})
		}
	}
	return out
}

// ExtractionFields and TintingFields adapt typed rows for alignment.
func ExtractionFields(rows []ExportRow) []align.Row {
	out := make([]align.Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Fields())
	}
	return out
}

func TintingFields(rows []TintingRow) []align.Row {
	out := make([]align.Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Fields())
	}
	return out
}

func rowDescription(row internal.Row) string {
	if row.ProductDescriptionProduction != "" {
		return row.ProductDescriptionProduction
	}
	return row.ProductDescriptionRaw
}
