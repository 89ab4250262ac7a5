package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"orderdesk/internal"
	"orderdesk/internal/config"
)

func modelServer(t *testing.T, status int, text string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/test-model:generateContent", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("x-goog-api-key"))
		blob, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(blob), "PURCHASE ORDER")

		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(text))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": text}}}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testClient(url string) *Client {
	return NewClient(config.Config{ModelAPIURL: url, ModelName: "test-model", ModelAPIKey: "secret", ModelTimeoutMs: 5000})
}

func TestExtractParsesFencedJSON(t *testing.T) {
	reply := "```json\n" + `{
  "order_date": "2024-01-05",
  "customer_name": "  Acme   Paints ",
  "order_number": "PO-1001",
  "rows": [
    {"product_description": "QDGB1234 Signal Red 5l 396992", "quantity": 2, "tinting": "yes"},
    {"product_description": "Thinners 5L", "quantity": "TBC", "tinting": false}
  ]
}` + "\n```"
	srv := modelServer(t, http.StatusOK, reply)

	order, err := testClient(srv.URL).Extract(context.Background(), "PURCHASE ORDER 1001")
	require.NoError(t, err)
	assert.Equal(t, "05/01/2024", order.OrderDate)
	assert.Equal(t, "Acme Paints", order.CustomerName)
	require.Len(t, order.Rows, 2)
	assert.Equal(t, "Signal Red 5l", order.Rows[0].ProductDescriptionProduction)
	assert.Equal(t, "2", order.Rows[0].Quantity)
	assert.Equal(t, internal.TintYes, order.Rows[0].Tinting)
	assert.Equal(t, "TBC", order.Rows[1].Quantity)
	assert.Equal(t, internal.TintNo, order.Rows[1].Tinting)
	assert.Equal(t, "row-2", order.Rows[1].ID)
	assert.Empty(t, order.Warnings)
}

func TestExtractErrors(t *testing.T) {
	_, err := NewClient(config.Config{}).Extract(context.Background(), "PURCHASE ORDER")
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	srv := modelServer(t, http.StatusOK, "   ")
	_, err = testClient(srv.URL).Extract(context.Background(), "PURCHASE ORDER")
	assert.ErrorIs(t, err, ErrEmptyResponse)

	srv = modelServer(t, http.StatusOK, "Sorry, I cannot help with that.")
	_, err = testClient(srv.URL).Extract(context.Background(), "PURCHASE ORDER")
	assert.ErrorIs(t, err, ErrMalformedResponse)

	srv = modelServer(t, http.StatusBadRequest, `{"error":{"message":"API key not valid"}}`)
	_, err = testClient(srv.URL).Extract(context.Background(), "PURCHASE ORDER")
	assert.ErrorIs(t, err, ErrModelRejected)

	closed := httptest.NewServer(http.NotFoundHandler())
	closed.Close()
	_, err = testClient(closed.URL).Extract(context.Background(), "PURCHASE ORDER")
	assert.ErrorIs(t, err, ErrModelUnreachable)
}

func TestFinalizeWarnings(t *testing.T) {
	order := Finalize(internal.ProductionOrder{
		OrderDate: "sometime next week",
		Rows: []internal.Row{
			{ProductDescriptionRaw: "   "},
			{ID: "keep", ProductDescriptionRaw: "Navy Blue Gloss", Tinting: "Y"},
		},
	})
	assert.Equal(t, "sometime next week", order.OrderDate)
	require.Len(t, order.Rows, 1)
	assert.Equal(t, "keep", order.Rows[0].ID)
	assert.Equal(t, "Navy Blue Gloss", order.Rows[0].ProductDescriptionProduction)

	joined := strings.Join(order.Warnings, "\n")
	assert.Contains(t, joined, "sometime next week")
	assert.Contains(t, joined, "Line 1")
	assert.Contains(t, joined, "Customer name is missing")
	assert.Contains(t, joined, "Order number is missing")
}

func TestDocumentText(t *testing.T) {
	text, err := DocumentText("po.txt", []byte("PO 55\nRed Enamel x2"))
	require.NoError(t, err)
	assert.Equal(t, "PO 55\nRed Enamel x2", text)

	_, err = PDFText([]byte("not a pdf"))
	assert.Error(t, err)
}

func TestXLSXText(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]any{"Product", "Qty"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]any{"  Signal  Red ", 4}))
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	require.NoError(t, f.Close())

	text, err := XLSXText(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "Product | Qty\nSignal Red | 4\n", text)

	path := filepath.Join(t.TempDir(), "po.xlsx")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	fromFile, err := ReadInput(path)
	require.NoError(t, err)
	assert.Equal(t, text, fromFile)

	_, err = ReadInput(filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)
}

func TestHTMLText(t *testing.T) {
	html := `<html><body><p>Purchase order 55</p>
<table><tr><th>Item</th><th>Qty</th></tr><tr><td>Red  Enamel</td><td>2</td></tr></table>
<p>Thanks</p><script>var x = 1;</script></body></html>`

	text := HTMLText(html)
	assert.Contains(t, text, "Purchase order 55")
	assert.Contains(t, text, "Red Enamel | 2")
	assert.Contains(t, text, "Thanks")
	assert.NotContains(t, text, "var x")
}
