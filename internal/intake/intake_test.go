package intake

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderdesk/internal"
	"orderdesk/internal/config"
	"orderdesk/internal/desk"
	"orderdesk/internal/storage"
)

var rePONumber = regexp.MustCompile(`PO-\d+`)

// numberExtractor builds an order whose number is the first PO-nnn in the text.
type numberExtractor struct{}

func (numberExtractor) Extract(_ context.Context, text string) (internal.ProductionOrder, error) {
	if strings.Contains(text, "FAIL") {
		return internal.ProductionOrder{}, errors.New("model exploded")
	}
	return internal.ProductionOrder{
		OrderDate:    "05/01/2024",
		CustomerName: "Acme Paints",
		OrderNumber:  rePONumber.FindString(text),
		Rows: []internal.Row{
			{ID: "row-1", ProductDescriptionRaw: "Signal Red 5L", ProductDescriptionProduction: "Signal Red 5L", Quantity: "2", Tinting: internal.TintYes},
		},
	}, nil
}

func crlf(s string) []byte {
	return []byte(strings.ReplaceAll(s, "\n", "\r\n"))
}

func plainMail(id, subject, body string) []byte {
	return crlf("Message-ID: <" + id + ">\nFrom: buyer@acme.example\nSubject: " + subject +
		"\nMIME-Version: 1.0\nContent-Type: text/plain; charset=utf-8\n\n" + body + "\n")
}

var attachmentMail = crlf(`Message-ID: <m3@acme.example>
From: buyer@acme.example
Subject: Order 77 attached
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="XYZ"

--XYZ
Content-Type: text/plain; charset=utf-8

Please find attached our order, qty as listed, for delivery Friday.
--XYZ
Content-Type: text/plain; charset=utf-8
Content-Disposition: attachment; filename="po-77.txt"

PO-77
White Satin 5L x 3
--XYZ
Content-Type: image/png
Content-Disposition: attachment; filename="logo.png"

not really a png
--XYZ--
`)

const orderBody = "Purchase order PO-55\nPlease supply:\n2 x Signal Red 5L\n4 x Navy Blue Gloss 1L"

type env struct {
	db    *storage.DB
	store *MailStore
	desk  *desk.Service
	proc  *Processor
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.Open(filepath.Join(dir, "orderdesk.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	d := desk.New(desk.Options{
		Clock:     clockwork.NewFakeClockAt(time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC)),
		Extractor: numberExtractor{},
	})
	return &env{
		db:    db,
		store: NewMailStore(db, filepath.Join(dir, "raw")),
		desk:  d,
		proc:  NewProcessor(db, d),
	}
}

func (e *env) put(t *testing.T, id string, minute int, raw []byte) {
	t.Helper()
	_, err := e.store.Store(internal.FetchedMailMessage{
		Provider:   "imap",
		MessageID:  id,
		Subject:    "stored subject",
		From:       "buyer@acme.example",
		ReceivedAt: time.Date(2024, 1, 5, 8, minute, 0, 0, time.UTC).Format(time.RFC3339),
		Raw:        raw,
	})
	require.NoError(t, err)
}

func (e *env) status(t *testing.T, id string) string {
	t.Helper()
	row, err := e.db.GetEmailByProviderMessageID("imap", id)
	require.NoError(t, err)
	require.NotNil(t, row)
	return row.Status
}

func TestProcessPendingQueuesOrders(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	e.put(t, "m1", 1, plainMail("m1", "Purchase Order PO-55", orderBody))
	e.put(t, "m2", 2, plainMail("m2", "Weekly newsletter", "Hello team, lunch on Friday."))
	e.put(t, "m3", 3, attachmentMail)
	e.put(t, "m4", 4, plainMail("m4", "Fwd: Purchase Order PO-55", orderBody))

	stats, err := e.proc.ProcessPending(ctx, 10, "")
	require.NoError(t, err)
	assert.Equal(t, ProcessStats{Emails: 4, Queued: 2, Duplicates: 1, Skipped: 1}, stats)

	assert.Equal(t, StatusProcessed, e.status(t, "m1"))
	assert.Equal(t, StatusSkipped, e.status(t, "m2"))
	assert.Equal(t, StatusProcessed, e.status(t, "m3"))
	assert.Equal(t, StatusDuplicate, e.status(t, "m4"))

	items := e.desk.State().Items
	require.Len(t, items, 2)
	assert.Equal(t, "PO-55", items[0].OrderNumber)
	assert.Equal(t, "email-1-body.txt", items[0].SourceFilename)
	assert.Equal(t, "PO-77", items[1].OrderNumber)
	assert.Equal(t, "po-77.txt", items[1].SourceFilename)
	assert.Nil(t, e.desk.Pending())

	again, err := e.proc.ProcessPending(ctx, 10, "")
	require.NoError(t, err)
	assert.Zero(t, again.Emails)
}

func TestProcessPendingFailureDoesNotStopBatch(t *testing.T) {
	e := newEnv(t)
	e.put(t, "bad", 1, plainMail("bad", "Purchase Order FAIL", "Purchase order FAIL\n2 x Red\n3 x Blue"))
	e.put(t, "good", 2, plainMail("good", "Purchase Order PO-9", "Purchase order PO-9\n2 x Red\n3 x Blue"))

	stats, err := e.proc.ProcessPending(context.Background(), 10, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model exploded")
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Queued)
	assert.Equal(t, StatusFailed, e.status(t, "bad"))
	assert.Equal(t, StatusProcessed, e.status(t, "good"))
}

func TestProcessPendingFiltersProvider(t *testing.T) {
	e := newEnv(t)
	e.put(t, "m1", 1, plainMail("m1", "Purchase Order PO-55", orderBody))

	stats, err := e.proc.ProcessPending(context.Background(), 10, "gmail")
	require.NoError(t, err)
	assert.Zero(t, stats.Emails)
	assert.Equal(t, StatusFetched, e.status(t, "m1"))
}

func TestMailStoreKeepsOneCopy(t *testing.T) {
	e := newEnv(t)
	raw := plainMail("m1", "PO", "body")
	e.put(t, "m1", 1, raw)
	e.put(t, "m1", 1, raw)

	entries, err := os.ReadDir(e.store.rawMailDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	pending, err := e.db.ListEmailsByStatus(StatusFetched, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Len(t, pending[0].Hash, 64)
}

func TestParseMessage(t *testing.T) {
	msg, err := ParseMessage(attachmentMail)
	require.NoError(t, err)
	assert.Equal(t, "Order 77 attached", msg.Subject)
	assert.Equal(t, []string{"po-77.txt", "logo.png"}, msg.AttachmentNames)
	require.Len(t, msg.Documents, 1)
	assert.Contains(t, msg.Documents[0].Text, "White Satin 5L x 3")

	html := crlf(`Message-ID: <h1@acme.example>
Subject: PO 12
MIME-Version: 1.0
Content-Type: text/html; charset=utf-8

<p>Purchase order 12</p><table><tr><td>Red Enamel</td><td>2</td></tr></table>
`)
	msg, err = ParseMessage(html)
	require.NoError(t, err)
	require.Len(t, msg.Documents, 1)
	assert.Empty(t, msg.Documents[0].Name)
	assert.Contains(t, msg.Documents[0].Text, "Red Enamel | 2")
}

func TestDetectPurchaseOrder(t *testing.T) {
	cases := []struct {
		name        string
		subject     string
		text        string
		html        string
		attachments []string
		want        bool
	}{
		{name: "order with quantities", subject: "Purchase Order 1001", text: "please supply 2 x red, 5 x blue", want: true},
		{name: "pdf attachment", subject: "PO #4411", text: "see attached order", attachments: []string{"PO4411.PDF"}, want: true},
		{name: "html table", subject: "New order", html: "<table><tr><td>qty</td></tr></table>", want: true},
		{name: "newsletter", subject: "Our spring range", text: "See what's new this season.", want: false},
		{name: "image only", subject: "photo", attachments: []string{"site.jpg"}, want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := DetectPurchaseOrder(tc.subject, tc.text, tc.html, tc.attachments)
			assert.Equal(t, tc.want, res.IsOrder, "score %.2f", res.Score)
			assert.LessOrEqual(t, res.Score, 1.0)
		})
	}
}

type stubConnector struct {
	messages []internal.FetchedMailMessage
	err      error
}

func (s stubConnector) FetchInbox(_ context.Context, label string, max int) ([]internal.FetchedMailMessage, error) {
	return s.messages, s.err
}

func TestListenerRunCycle(t *testing.T) {
	e := newEnv(t)
	cfg := config.Config{MailListenerProvider: "imap", MailListenerLabel: "INBOX", MailListenerFetchMax: 5, MailListenerProcessBatch: 5}
	conn := stubConnector{messages: []internal.FetchedMailMessage{{
		Provider:   "imap",
		MessageID:  "m1",
		ReceivedAt: "2024-01-05T08:00:00Z",
		Raw:        plainMail("m1", "Purchase Order PO-55", orderBody),
	}}}

	res, err := NewListener(cfg, conn, e.store, e.proc).RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Fetched)
	assert.Equal(t, 1, res.Stored)
	assert.Equal(t, 1, res.Queued)
	assert.Len(t, e.desk.State().Items, 1)

	_, err = NewListener(cfg, stubConnector{err: errors.New("auth failed")}, e.store, e.proc).RunCycle(context.Background())
	assert.ErrorContains(t, err, "auth failed")
}
