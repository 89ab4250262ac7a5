package util

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	reSpaces = regexp.MustCompile(`\s+`)

	lower = cases.Lower(language.Und)
	upper = cases.Upper(language.Und)
)

// CollapseSpaces replaces every whitespace run (newlines included) with one space and trims.
func CollapseSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(input, " "))
}

// ToTitleCase lowercases the text and capitalises the first rune of every
// whitespace-delimited word. Tokens led by a digit or punctuation keep their
// first rune as is.
func ToTitleCase(input string) string {
	words := strings.Split(lower.String(CollapseSpaces(input)), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(w)
		words[i] = upper.String(string(r)) + w[size:]
	}
	return strings.Join(words, " ")
}

// CleanProductDescription drops SKU-like codes and a trailing numeric
// token. It never returns an empty string for non-empty input.
func CleanProductDescription(input string) string {
	tokens := strings.Fields(input)
	kept := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if LooksLikeSKU(tok) {
			continue
		}
		kept = append(kept, tok)
	}
	if n := len(kept); n > 0 && isAllDigits(kept[n-1]) {
		kept = kept[:n-1]
	}

	out := strings.Join(kept, " ")
	if out == "" {
		return strings.TrimSpace(input)
	}
	return out
}

// LooksLikeSKU reports whether a token is at least 8 runes long and mixes letters and digits.
func LooksLikeSKU(token string) bool {
	if utf8.RuneCountInString(token) < 8 {
		return false
	}
	hasLetter := false
	hasDigit := false
	for _, r := range token {
		if unicode.IsLetter(r) {
			hasLetter = true
		}
		if unicode.IsDigit(r) {
			hasDigit = true
		}
	}
	return hasLetter && hasDigit
}

func isAllDigits(token string) bool {
	if token == "" {
		return false
	}
	for _, r := range token {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// NormalizeForDedupe is the fingerprinting form of a field. Never display it.
func NormalizeForDedupe(input string) string {
	return lower.String(CollapseSpaces(input))
}

// NormalizeKey lowercases and strips every rune that is not a letter or digit,
// so "Date Created", "DATE_CREATED" and "date-created" compare equal.
func NormalizeKey(input string) string {
	var b strings.Builder
	b.Grow(len(input))
	for _, r := range lower.String(input) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
