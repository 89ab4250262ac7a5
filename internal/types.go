package internal

import "time"

type TintFlag string

const (
	TintYes TintFlag = "Y"
	TintNo  TintFlag = "N"
)

// Row is one line of an extracted purchase order.
type Row struct {
	ID                           string   `json:"id"`
	ProductDescriptionRaw        string   `json:"product_description_raw"`
	ProductDescriptionProduction string   `json:"product_description_production"`
	Quantity                     string   `json:"quantity"`
	Tinting                      TintFlag `json:"tinting"`
}

type ProductionOrder struct {
	OrderDate    string   `json:"order_date"`
	CustomerName string   `json:"customer_name"`
	OrderNumber  string   `json:"order_number"`
	Rows         []Row    `json:"rows"`
	Warnings     []string `json:"warnings"`
}

type QueueLine struct {
	LineID                       string   `json:"line_id"`
	RowID                        string   `json:"row_id"`
	ProductDescriptionRaw        string   `json:"product_description_raw"`
	ProductDescriptionProduction string   `json:"product_description_production"`
	Quantity                     string   `json:"quantity"`
	Tinting                      TintFlag `json:"tinting"`
}

// Description returns the cleaned description, or the raw one when cleaning left nothing.
func (l QueueLine) Description() string {
	if l.ProductDescriptionProduction != "" {
		return l.ProductDescriptionProduction
	}
	return l.ProductDescriptionRaw
}

type QueueItem struct {
	OrderID        string      `json:"order_id"`
	CreatedAt      time.Time   `json:"created_at"`
	SourceFilename string      `json:"source_filename"`
	OrderDate      string      `json:"order_date"`
	CustomerName   string      `json:"customer_name"`
	OrderNumber    string      `json:"order_number"`
	DedupeKey      string      `json:"dedupe_key"`
	Items          []QueueLine `json:"items"`
}

type QueueState struct {
	DayKey string      `json:"day_key"`
	Items  []QueueItem `json:"items"`
}

type TintingListItem struct {
	OrderID            string `json:"order_id"`
	LineID             string `json:"line_id"`
	OrderDate          string `json:"order_date"`
	CustomerName       string `json:"customer_name"`
	OrderNumber        string `json:"order_number"`
	ProductDescription string `json:"product_description"`
	Quantity           string `json:"quantity"`
}

type EmailRow struct {
	ID         int
	Provider   string
	MessageID  string
	Subject    string
	Sender     string
	ReceivedAt string
	Hash       string
	Status     string
	RawRef     string
}

type FetchedMailMessage struct {
	Provider   string
	MessageID  string
	Subject    string
	From       string
	ReceivedAt string
	Raw        []byte
}

type ExportRecord struct {
	ExportID       string
	BatchNumber    int
	ExportedAt     time.Time
	Status         string
	ExtractionRows int
	TintingRows    int
	FilePath       string
}
