package extract

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	pdf "github.com/ledongthuc/pdf"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
)

var reSpaces = regexp.MustCompile(`\s+`)

// ReadInput loads a purchase order file as plain text. PDF and XLSX files are
// converted; anything else is read as text.
func ReadInput(path string) (string, error) {
	blob, err := os.ReadFile(path)
	if err != nil {
		return "", errors.Wrapf(err, "read %s", path)
	}
	return DocumentText(filepath.Base(path), blob)
}

// DocumentText converts a named document to text by its extension.
func DocumentText(filename string, content []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return PDFText(content)
	case ".xlsx":
		return XLSXText(content)
	case ".html", ".htm":
		return HTMLText(string(content)), nil
	default:
		return string(content), nil
	}
}

// PDFText returns the plain text of every page, one page after another.
func PDFText(content []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", errors.Wrap(err, "open pdf")
	}

	var b strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		for _, line := range splitLines(text) {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}

// XLSXText flattens every sheet to one line per row with cells joined by " | ".
func XLSXText(content []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return "", errors.Wrap(err, "open xlsx")
	}
	defer f.Close()

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		for _, row := range rows {
			cells := normalizeCells(row)
			if len(cells) == 0 {
				continue
			}
			b.WriteString(strings.Join(cells, " | "))
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}

// HTMLText flattens an HTML body. Table rows become one line each with cells
// joined by " | " so line items keep their columns.
func HTMLText(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	doc.Find("script,style").Remove()

	var lines []string
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			var cells []string
			row.Find("th,td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, normalizeSpaces(cell.Text()))
			})
			if cells = normalizeCells(cells); len(cells) > 0 {
				lines = append(lines, strings.Join(cells, " | "))
			}
		})
		table.ReplaceWithHtml("<br>")
	})

	var text []string
	doc.Find("body").Each(func(_ int, body *goquery.Selection) {
		body.Find("br,p,div,li").Each(func(_ int, s *goquery.Selection) {
			s.AfterHtml("\n")
		})
		text = splitLines(body.Text())
	})
	return strings.Join(append(text, lines...), "\n")
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	parts := strings.Split(text, "\n")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = normalizeSpaces(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func normalizeSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

// normalizeCells trims every cell and drops empty ones.
func normalizeCells(row []string) []string {
	out := make([]string, 0, len(row))
	for _, c := range row {
		if c = normalizeSpaces(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}
