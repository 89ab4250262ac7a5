// Package remote talks to the spreadsheet backend that owns the export
// templates and receives synced batches.
package remote

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"orderdesk/internal/config"
)

const (
	maxAttempts        = 5
	rollbackAction     = "clear_current_batch"
	defaultBackoffBase = 250 * time.Millisecond
)

// SyncResponse is the remote's answer to a sync or rollback. A sync answer
// carries at least one of Duplicate or OK.
type SyncResponse struct {
	OK        bool   `json:"ok"`
	Duplicate bool   `json:"duplicate"`
	Message   string `json:"message,omitempty"`
}

type Client struct {
	templateURL string
	syncURL     string
	httpClient  *http.Client
	limiter     *RateLimiter
	backoffBase time.Duration
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		templateURL: cfg.TemplateURL,
		syncURL:     cfg.SyncURL,
		httpClient:  &http.Client{Timeout: time.Duration(cfg.RemoteTimeoutMs) * time.Millisecond},
		limiter:     NewRateLimiter(cfg.RemoteRateLimitRPS),
		backoffBase: defaultBackoffBase,
	}
}

// FetchSheet downloads one template sheet as CSV. The first row is the
// header row.
func (c *Client) FetchSheet(ctx context.Context, sheet string) ([][]string, error) {
	if strings.TrimSpace(c.templateURL) == "" {
		return nil, errors.Wrap(ErrNotConfigured, "TEMPLATE_URL")
	}
	u, err := url.Parse(c.templateURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse template url")
	}
	q := u.Query()
	q.Set("sheet", sheet)
	u.RawQuery = q.Encode()

	body, err := c.do(ctx, "fetch "+sheet, maxAttempts, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "text/csv")
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(bytes.NewReader(body))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "parse %s sheet", sheet)
	}
	if len(records) == 0 {
		return nil, errors.Wrap(ErrSheetEmpty, sheet)
	}
	return records, nil
}

// Sync posts an export payload. Throttling and server errors are retried
// with the same body; the remote recognises a repeated export id and answers
// with duplicate instead of appending twice.
func (c *Client) Sync(ctx context.Context, payload any) (SyncResponse, error) {
	blob, err := json.Marshal(payload)
	if err != nil {
		return SyncResponse{}, errors.Wrap(err, "encode sync payload")
	}
	return c.post(ctx, "sync", blob, maxAttempts)
}

// Rollback asks the remote to drop the last synced batch. It is sent once
// and never retried.
func (c *Client) Rollback(ctx context.Context) (SyncResponse, error) {
	blob, _ := json.Marshal(map[string]string{"action": rollbackAction})
	resp, err := c.post(ctx, "rollback", blob, 1)
	if err != nil {
		return resp, err
	}
	if !resp.OK {
		msg := resp.Message
		if msg == "" {
			msg = "rollback was not confirmed"
		}
		return resp, &RejectedError{Message: msg}
	}
	return resp, nil
}

func (c *Client) post(ctx context.Context, op string, blob []byte, attempts int) (SyncResponse, error) {
	if strings.TrimSpace(c.syncURL) == "" {
		return SyncResponse{}, errors.Wrap(ErrNotConfigured, "SYNC_URL")
	}

	body, err := c.do(ctx, op, attempts, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.syncURL, bytes.NewReader(blob))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return SyncResponse{}, err
	}

	var resp SyncResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return SyncResponse{}, &RejectedError{Message: "unreadable response: " + truncate(string(body), 200)}
	}
	return resp, nil
}

// do sends the request built by newReq, retrying transport failures and
// retryable statuses up to attempts times.
func (c *Client) do(ctx context.Context, op string, attempts int, newReq func() (*http.Request, error)) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := c.limiter.WaitTurn(ctx); err != nil {
			return nil, &TransportError{Op: op, Err: err}
		}

		req, err := newReq()
		if err != nil {
			return nil, err
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = &TransportError{Op: op, Err: err}
			if attempt < attempts && c.backoff(ctx, attempt) == nil {
				continue
			}
			return nil, lastErr
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = &TransportError{Op: op, Err: readErr}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			lastErr = &RejectedError{Status: resp.StatusCode, Message: remoteMessage(body)}
			if isRetryableStatus(resp.StatusCode) && attempt < attempts {
				log.Debug().Str("op", op).Int("status", resp.StatusCode).Int("attempt", attempt).Msg("retrying remote call")
				if c.backoff(ctx, attempt) == nil {
					continue
				}
			}
			return nil, lastErr
		}
		return body, nil
	}

	if lastErr == nil {
		lastErr = &TransportError{Op: op, Err: errors.New("request failed")}
	}
	return nil, lastErr
}

// backoff waits before the next attempt. It returns ctx's error if ctx is
// done first.
func (c *Client) backoff(ctx context.Context, attempt int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.backoffBase <= 0 {
		return nil
	}
	jitter := time.Duration(rand.IntN(100)) * time.Millisecond
	timer := time.NewTimer(c.backoffBase*time.Duration(1<<(attempt-1)) + jitter)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// remoteMessage pulls "message" or "error" out of a JSON error body, or
// returns the body itself.
func remoteMessage(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		return "no message"
	}
	return truncate(text, 200)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return fmt.Sprintf("%s...", s[:n])
}
