package export

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// WriteCSV writes headers (upper-cased) and rows with every value quoted.
// encoding/csv only quotes when a field needs it, so quoting is done here.
func WriteCSV(w io.Writer, headers []string, rows [][]any) error {
	bw := bufio.NewWriter(w)

	head := make([]string, len(headers))
	for i, h := range headers {
		head[i] = strings.ToUpper(h)
	}
	writeRecord(bw, head)

	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = FormatCell(v)
		}
		writeRecord(bw, cells)
	}
	return bw.Flush()
}

func writeRecord(w *bufio.Writer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			w.WriteByte(',')
		}
		w.WriteByte('"')
		w.WriteString(strings.ReplaceAll(f, `"`, `""`))
		w.WriteByte('"')
	}
	w.WriteByte('\n')
}

// FormatCell renders a cell value the way it appears in text exports.
func FormatCell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	default:
		return fmt.Sprint(t)
	}
}
