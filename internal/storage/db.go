package storage

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"orderdesk/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "create database directory")
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "enable wal")
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, errors.Wrap(err, "apply schema")
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS session_state (
  id INTEGER PRIMARY KEY CHECK (id = 1),
  version INTEGER NOT NULL,
  savedAt TEXT NOT NULL,
  viewJson TEXT NOT NULL,
  exported INTEGER NOT NULL DEFAULT 0,
  inFlightJson TEXT
);

CREATE TABLE IF NOT EXISTS queue_items (
  orderId TEXT PRIMARY KEY,
  position INTEGER NOT NULL,
  createdAt TEXT NOT NULL,
  sourceFilename TEXT NOT NULL DEFAULT '',
  orderDate TEXT NOT NULL DEFAULT '',
  customerName TEXT NOT NULL DEFAULT '',
  orderNumber TEXT NOT NULL DEFAULT '',
  dedupeKey TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS queue_lines (
  lineId TEXT PRIMARY KEY,
  orderId TEXT NOT NULL,
  lineNo INTEGER NOT NULL,
  rowId TEXT NOT NULL DEFAULT '',
  descriptionRaw TEXT NOT NULL DEFAULT '',
  descriptionProduction TEXT NOT NULL DEFAULT '',
  quantity TEXT NOT NULL DEFAULT '',
  tinting TEXT NOT NULL DEFAULT 'N',
  FOREIGN KEY(orderId) REFERENCES queue_items(orderId)
);
CREATE INDEX IF NOT EXISTS idx_queue_lines_order ON queue_lines(orderId, lineNo);

CREATE TABLE IF NOT EXISTS emails (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  messageId TEXT NOT NULL,
  subject TEXT,
  sender TEXT,
  receivedAt TEXT,
  hash TEXT NOT NULL,
  status TEXT NOT NULL DEFAULT 'fetched',
  rawRef TEXT NOT NULL,
  createdAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updatedAt TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
  UNIQUE(provider, messageId)
);

CREATE TABLE IF NOT EXISTS exports (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  exportId TEXT NOT NULL,
  batchNumber INTEGER NOT NULL,
  exportedAt TEXT NOT NULL,
  status TEXT NOT NULL,
  extractionRows INTEGER NOT NULL,
  tintingRows INTEGER NOT NULL,
  filePath TEXT NOT NULL DEFAULT ''
);
`

	_, err := d.conn.Exec(schema)
	return err
}

// SessionRecord is the structured form of a saved session. View and
// in-flight state are opaque JSON owned by the session package.
type SessionRecord struct {
	Version      int
	SavedAt      time.Time
	ViewJSON     string
	Exported     bool
	InFlightJSON *string
	Items        []internal.QueueItem
}

// SaveSession replaces the stored session in one transaction.
func (d *DB) SaveSession(ctx context.Context, rec SessionRecord) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range []string{`DELETE FROM queue_lines`, `DELETE FROM queue_items`, `DELETE FROM session_state`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "reset session tables")
		}
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO session_state (id, version, savedAt, viewJson, exported, inFlightJson)
VALUES (1, ?, ?, ?, ?, ?)
`, rec.Version, rec.SavedAt.Format(time.RFC3339Nano), rec.ViewJSON, boolToInt(rec.Exported), rec.InFlightJSON); err != nil {
		return errors.Wrap(err, "insert session state")
	}

	itemStmt, err := tx.PrepareContext(ctx, `
INSERT INTO queue_items (orderId, position, createdAt, sourceFilename, orderDate, customerName, orderNumber, dedupeKey)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return err
	}
	defer itemStmt.Close()

	lineStmt, err := tx.PrepareContext(ctx, `
INSERT INTO queue_lines (lineId, orderId, lineNo, rowId, descriptionRaw, descriptionProduction, quantity, tinting)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
`)
	if err != nil {
		return err
	}
	defer lineStmt.Close()

	for pos, item := range rec.Items {
		if _, err := itemStmt.ExecContext(ctx,
			item.OrderID, pos, item.CreatedAt.Format(time.RFC3339Nano), item.SourceFilename,
			item.OrderDate, item.CustomerName, item.OrderNumber, item.DedupeKey,
		); err != nil {
			return errors.Wrapf(err, "insert queue item %s", item.OrderID)
		}
		for i, line := range item.Items {
			if _, err := lineStmt.ExecContext(ctx,
				line.LineID, item.OrderID, i+1, line.RowID, line.ProductDescriptionRaw,
				line.ProductDescriptionProduction, line.Quantity, string(line.Tinting),
			); err != nil {
				return errors.Wrapf(err, "insert queue line %s", line.LineID)
			}
		}
	}

	return tx.Commit()
}

// LoadSession returns nil when no session has been saved.
func (d *DB) LoadSession(ctx context.Context) (*SessionRecord, error) {
	var rec SessionRecord
	var savedAt string
	var exported int
	var inFlight sql.NullString
	err := d.conn.QueryRowContext(ctx, `
SELECT version, savedAt, viewJson, exported, inFlightJson FROM session_state WHERE id = 1
`).Scan(&rec.Version, &savedAt, &rec.ViewJSON, &exported, &inFlight)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rec.SavedAt, err = time.Parse(time.RFC3339Nano, savedAt)
	if err != nil {
		return nil, errors.Wrap(err, "parse savedAt")
	}
	rec.Exported = exported != 0
	if inFlight.Valid {
		v := inFlight.String
		rec.InFlightJSON = &v
	}

	rows, err := d.conn.QueryContext(ctx, `
SELECT orderId, createdAt, sourceFilename, orderDate, customerName, orderNumber, dedupeKey
FROM queue_items ORDER BY position ASC
`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	index := map[string]int{}
	for rows.Next() {
		var item internal.QueueItem
		var createdAt string
		if err := rows.Scan(&item.OrderID, &createdAt, &item.SourceFilename, &item.OrderDate, &item.CustomerName, &item.OrderNumber, &item.DedupeKey); err != nil {
			return nil, err
		}
		item.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, errors.Wrapf(err, "parse createdAt of %s", item.OrderID)
		}
		item.Items = []internal.QueueLine{}
		index[item.OrderID] = len(rec.Items)
		rec.Items = append(rec.Items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	lines, err := d.conn.QueryContext(ctx, `
SELECT lineId, orderId, rowId, descriptionRaw, descriptionProduction, quantity, tinting
FROM queue_lines ORDER BY orderId, lineNo ASC
`)
	if err != nil {
		return nil, err
	}
	defer lines.Close()

	for lines.Next() {
		var line internal.QueueLine
		var orderID, tint string
		if err := lines.Scan(&line.LineID, &orderID, &line.RowID, &line.ProductDescriptionRaw, &line.ProductDescriptionProduction, &line.Quantity, &tint); err != nil {
			return nil, err
		}
		line.Tinting = internal.TintFlag(tint)
		pos, ok := index[orderID]
		if !ok {
			continue
		}
		rec.Items[pos].Items = append(rec.Items[pos].Items, line)
	}
	if err := lines.Err(); err != nil {
		return nil, err
	}

	if rec.Items == nil {
		rec.Items = []internal.QueueItem{}
	}
	return &rec, nil
}

func (d *DB) ClearSession(ctx context.Context) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	for _, stmt := range []string{`DELETE FROM queue_lines`, `DELETE FROM queue_items`, `DELETE FROM session_state`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (d *DB) UpsertEmail(provider, messageID, subject, sender, receivedAt, hash, rawRef, status string) (internal.EmailRow, error) {
	_, err := d.conn.Exec(`
INSERT INTO emails (provider, messageId, subject, sender, receivedAt, hash, status, rawRef)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(provider, messageId) DO UPDATE SET
  subject=excluded.subject,
  sender=excluded.sender,
  receivedAt=excluded.receivedAt,
  hash=excluded.hash,
  rawRef=excluded.rawRef,
  updatedAt=CURRENT_TIMESTAMP
`, provider, messageID, subject, sender, receivedAt, hash, status, rawRef)
	if err != nil {
		return internal.EmailRow{}, err
	}

	row, err := d.GetEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return internal.EmailRow{}, err
	}
	if row == nil {
		return internal.EmailRow{}, errors.New("failed to upsert email")
	}
	return *row, nil
}

func (d *DB) GetEmailByProviderMessageID(provider, messageID string) (*internal.EmailRow, error) {
	var row internal.EmailRow
	err := d.conn.QueryRow(`
SELECT id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef
FROM emails WHERE provider = ? AND messageId = ?
`, provider, messageID).Scan(
		&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (d *DB) ListEmailsByStatus(status string, limit int) ([]internal.EmailRow, error) {
	rows, err := d.conn.Query(`
SELECT id, provider, messageId, subject, sender, receivedAt, hash, status, rawRef
FROM emails WHERE status = ? ORDER BY receivedAt ASC LIMIT ?
`, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.EmailRow
	for rows.Next() {
		var row internal.EmailRow
		if err := rows.Scan(&row.ID, &row.Provider, &row.MessageID, &row.Subject, &row.Sender, &row.ReceivedAt, &row.Hash, &row.Status, &row.RawRef); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (d *DB) UpdateEmailStatus(emailID int, status string) error {
	_, err := d.conn.Exec(`UPDATE emails SET status = ?, updatedAt = CURRENT_TIMESTAMP WHERE id = ?`, status, emailID)
	return err
}

func (d *DB) InsertExport(ctx context.Context, rec internal.ExportRecord) error {
	_, err := d.conn.ExecContext(ctx, `
INSERT INTO exports (exportId, batchNumber, exportedAt, status, extractionRows, tintingRows, filePath)
VALUES (?, ?, ?, ?, ?, ?, ?)
`, rec.ExportID, rec.BatchNumber, rec.ExportedAt.Format(time.RFC3339), rec.Status, rec.ExtractionRows, rec.TintingRows, rec.FilePath)
	return err
}

// ListExports returns the most recent exports first.
func (d *DB) ListExports(ctx context.Context, limit int) ([]internal.ExportRecord, error) {
	rows, err := d.conn.QueryContext(ctx, `
SELECT exportId, batchNumber, exportedAt, status, extractionRows, tintingRows, filePath
FROM exports ORDER BY id DESC LIMIT ?
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []internal.ExportRecord
	for rows.Next() {
		var rec internal.ExportRecord
		var exportedAt string
		if err := rows.Scan(&rec.ExportID, &rec.BatchNumber, &exportedAt, &rec.Status, &rec.ExtractionRows, &rec.TintingRows, &rec.FilePath); err != nil {
			return nil, err
		}
		rec.ExportedAt, _ = time.Parse(time.RFC3339, exportedAt)
		out = append(out, rec)
	}
	return out, rows.Err()
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
