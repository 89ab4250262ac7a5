// Package extract turns raw purchase order text into a structured order by
// asking a hosted language model, then normalizes what comes back.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"orderdesk/internal"
	"orderdesk/internal/config"
)

var (
	ErrMissingAPIKey     = errors.New("model API key is not configured")
	ErrEmptyResponse     = errors.New("model returned an empty response")
	ErrMalformedResponse = errors.New("model response is not valid order JSON")
	ErrModelUnreachable  = errors.New("model endpoint unreachable")
	ErrModelRejected     = errors.New("model endpoint rejected the request")
)

const instructions = `Extract the purchase order below as JSON with keys
order_date, customer_name, order_number and rows. Each row has
product_description, quantity (as written) and tinting ("Y" when the line is a
coloured paint that must be tinted, otherwise "N"). Reply with JSON only.

`

type Client struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		baseURL:    cfg.ModelAPIURL,
		model:      cfg.ModelName,
		apiKey:     cfg.ModelAPIKey,
		httpClient: &http.Client{Timeout: time.Duration(cfg.ModelTimeoutMs) * time.Millisecond},
	}
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	ResponseMimeType string `json:"responseMimeType"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// modelOrder is the JSON shape the model is asked to produce.
type modelOrder struct {
	OrderDate    string     `json:"order_date"`
	CustomerName string     `json:"customer_name"`
	OrderNumber  string     `json:"order_number"`
	Rows         []modelRow `json:"rows"`
}

type modelRow struct {
	ProductDescription looseString `json:"product_description"`
	Quantity           looseString `json:"quantity"`
	Tinting            looseString `json:"tinting"`
}

// looseString accepts a JSON string, number or bool.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*s = looseString(str)
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err == nil {
		*s = looseString(num.String())
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		if b {
			*s = "Y"
		} else {
			*s = "N"
		}
		return nil
	}
	return errors.Errorf("unexpected value %s", string(data))
}

// Extract sends rawText to the model and returns the finalized order.
func (c *Client) Extract(ctx context.Context, rawText string) (internal.ProductionOrder, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return internal.ProductionOrder{}, ErrMissingAPIKey
	}

	body, err := json.Marshal(generateRequest{
		Contents:         []content{{Parts: []part{{Text: instructions + rawText}}}},
		GenerationConfig: generationConfig{ResponseMimeType: "application/json"},
	})
	if err != nil {
		return internal.ProductionOrder{}, err
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", strings.TrimRight(c.baseURL, "/"), url.PathEscape(c.model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return internal.ProductionOrder{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return internal.ProductionOrder{}, errors.Wrap(ErrModelUnreachable, err.Error())
	}
	defer resp.Body.Close()

	blob, err := io.ReadAll(resp.Body)
	if err != nil {
		return internal.ProductionOrder{}, errors.Wrap(ErrModelUnreachable, err.Error())
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return internal.ProductionOrder{}, errors.Wrapf(ErrModelRejected, "status %d: %s", resp.StatusCode, snippet(blob))
	}

	order, err := parseResponse(blob)
	if err != nil {
		return internal.ProductionOrder{}, err
	}
	return Finalize(order), nil
}

func parseResponse(blob []byte) (internal.ProductionOrder, error) {
	var gen generateResponse
	if err := json.Unmarshal(blob, &gen); err != nil {
		return internal.ProductionOrder{}, errors.Wrap(ErrMalformedResponse, err.Error())
	}

	var text strings.Builder
	for _, cand := range gen.Candidates {
		for _, p := range cand.Content.Parts {
			text.WriteString(p.Text)
		}
		if text.Len() > 0 {
			break
		}
	}
	raw := stripFences(text.String())
	if raw == "" {
		return internal.ProductionOrder{}, ErrEmptyResponse
	}

	var mo modelOrder
	if err := json.Unmarshal([]byte(raw), &mo); err != nil {
		return internal.ProductionOrder{}, errors.Wrap(ErrMalformedResponse, err.Error())
	}

	order := internal.ProductionOrder{
		OrderDate:    mo.OrderDate,
		CustomerName: mo.CustomerName,
		OrderNumber:  mo.OrderNumber,
		Rows:         make([]internal.Row, 0, len(mo.Rows)),
	}
	for _, r := range mo.Rows {
		order.Rows = append(order.Rows, internal.Row{
			ProductDescriptionRaw: string(r.ProductDescription),
			Quantity:              string(r.Quantity),
			Tinting:               internal.TintFlag(r.Tinting),
		})
	}
	return order, nil
}

// stripFences removes a markdown code fence around the JSON, if present.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

func snippet(blob []byte) string {
	s := strings.TrimSpace(string(blob))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
