// Package align maps export rows onto spreadsheet columns whose labels and
// order are owned by the remote template.
package align

import (
	"maps"
	"slices"

	"orderdesk/internal/util"
)

type Row map[string]any

// Lookup is everything a strategy may consult for one cell.
type Lookup struct {
	Header   string
	Key      string // normalized header
	Row      Row
	Defaults map[string]any
	KeyMap   map[string]string
}

// Strategy resolves a cell or reports that it has no opinion.
type Strategy func(Lookup) (any, bool)

// Chain tries strategies in order. Order is significant: defaults must win
// over row data for generated columns.
type Chain []Strategy

// canonicalDefaults are header keys that resolve against a canonical defaults
// entry whatever the template calls them.
var canonicalDefaults = map[string]string{
	"datecreated": "date_created",
	"batchnumber": "batch_number",
}

func DefaultChain() Chain {
	return Chain{
		ExactDefault,
		CanonicalDefault,
		ExactKeyMap,
		NormalizedKeyMap,
		NormalizedRowField,
	}
}

// Resolve returns "" when no strategy matches.
func (c Chain) Resolve(header string, row Row, defaults map[string]any, keyMap map[string]string) any {
	l := Lookup{
		Header:   header,
		Key:      util.NormalizeKey(header),
		Row:      row,
		Defaults: defaults,
		KeyMap:   keyMap,
	}
	for _, s := range c {
		if v, ok := s(l); ok {
			return v
		}
	}
	return ""
}

// Align returns one positional row per input row, with one cell per header.
func (c Chain) Align(rows []Row, headers []string, defaults map[string]any, keyMap map[string]string) [][]any {
	out := make([][]any, 0, len(rows))
	for _, row := range rows {
		cells := make([]any, len(headers))
		for i, h := range headers {
			cells[i] = c.Resolve(h, row, defaults, keyMap)
		}
		out = append(out, cells)
	}
	return out
}

func Align(rows []Row, headers []string, defaults map[string]any, keyMap map[string]string) [][]any {
	return DefaultChain().Align(rows, headers, defaults, keyMap)
}

// AlignDataToHeaders is Align under the name the export flow documents.
func AlignDataToHeaders(rows []Row, headers []string, defaults map[string]any, keyMap map[string]string) [][]any {
	return Align(rows, headers, defaults, keyMap)
}

func ExactDefault(l Lookup) (any, bool) {
	v, ok := l.Defaults[l.Header]
	return v, ok
}

func CanonicalDefault(l Lookup) (any, bool) {
	canonical, ok := canonicalDefaults[l.Key]
	if !ok {
		return nil, false
	}
	v, ok := l.Defaults[canonical]
	return v, ok
}

func ExactKeyMap(l Lookup) (any, bool) {
	field, ok := l.KeyMap[l.Header]
	if !ok {
		return nil, false
	}
	return fieldValue(l.Row, field), true
}

func NormalizedKeyMap(l Lookup) (any, bool) {
	if l.Key == "" {
		return nil, false
	}
	for _, label := range slices.Sorted(maps.Keys(l.KeyMap)) {
		if util.NormalizeKey(label) == l.Key {
			return fieldValue(l.Row, l.KeyMap[label]), true
		}
	}
	return nil, false
}

func NormalizedRowField(l Lookup) (any, bool) {
	if l.Key == "" {
		return nil, false
	}
	for _, name := range slices.Sorted(maps.Keys(l.Row)) {
		if util.NormalizeKey(name) == l.Key {
			return l.Row[name], true
		}
	}
	return nil, false
}

func fieldValue(row Row, field string) any {
	if v, ok := row[field]; ok && v != nil {
		return v
	}
	return ""
}

// ColumnIndex finds the header matching canonical after normalization, or -1.
func ColumnIndex(headers []string, canonical string) int {
	want := util.NormalizeKey(canonical)
	for i, h := range headers {
		if util.NormalizeKey(h) == want {
			return i
		}
	}
	return -1
}
