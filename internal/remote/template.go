package remote

import (
	"context"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"orderdesk/internal/align"
)

// TemplateSource reads one named sheet as rows of text, headers first.
type TemplateSource interface {
	FetchSheet(ctx context.Context, sheet string) ([][]string, error)
}

// Template is what an export needs from a remote sheet.
type Template struct {
	Headers  []string
	MaxBatch int
}

// TemplateInfo reads the header row and the highest batch number found in
// the batch-number column. Unparseable batch cells are ignored.
func TemplateInfo(sheet string, rows [][]string) (Template, error) {
	if len(rows) == 0 {
		return Template{}, errors.Wrap(ErrSheetEmpty, sheet)
	}

	headers := trimTrailingBlank(rows[0])
	if len(headers) == 0 {
		return Template{}, errors.Wrapf(ErrSheetEmpty, "%s has no header row", sheet)
	}

	t := Template{Headers: headers}
	col := align.ColumnIndex(headers, "batch_number")
	if col < 0 {
		return t, nil
	}
	for _, row := range rows[1:] {
		if col >= len(row) {
			continue
		}
		if n, ok := parseBatch(row[col]); ok && n > t.MaxBatch {
			t.MaxBatch = n
		}
	}
	return t, nil
}

// NextBatch is the batch number the next export will carry.
func (t Template) NextBatch() int {
	return t.MaxBatch + 1
}

func parseBatch(cell string) (int, bool) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(cell); err == nil {
		return n, true
	}
	if f, err := strconv.ParseFloat(cell, 64); err == nil {
		return int(f), true
	}
	return 0, false
}

func trimTrailingBlank(headers []string) []string {
	end := len(headers)
	for end > 0 && strings.TrimSpace(headers[end-1]) == "" {
		end--
	}
	return append([]string(nil), headers[:end]...)
}
