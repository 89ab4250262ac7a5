// Package tinting decides which order lines go on the tinting worklist.
//
// The extraction step already flags each line Y or N. This package is a
// deterministic second pass: a Y line only stays on the worklist when its
// description names a colour and mentions none of the excluded product
// families. Exclusion always wins.
package tinting

import (
	"regexp"
	"strings"

	"orderdesk/internal"
)

// Substrings that disqualify a line: solvents, primers and metallic neutrals.
var excludeKeywords = []string{
	"solvent", "thinner", "primer", "undercoat", "degreaser", "cleaner",
	"hardener", "activator", "lacquer", "clear", "neutral",
	"aluminium", "aluminum", "zinc", "silver", "galvanis", "galvaniz",
}

// Colour words are matched at the start of a word so "ral" does not fire
// inside "neutral" or "general".
var includeKeywords = []string{
	"red", "blue", "green", "yellow", "orange", "black", "white", "grey", "gray",
	"brown", "purple", "violet", "pink", "cream", "ivory", "beige", "maroon",
	"navy", "gold", "bronze", "copper", "magnolia", "teal", "turquoise",
	"metallic", "hammertone", "ral",
}

var includePattern = regexp.MustCompile(`\b(?:` + strings.Join(includeKeywords, "|") + `)`)

// IsTintable reports whether a line belongs on the tinting worklist.
func IsTintable(description string, flag internal.TintFlag) bool {
	if flag != internal.TintYes {
		return false
	}
	desc := strings.ToLower(description)
	for _, kw := range excludeKeywords {
		if strings.Contains(desc, kw) {
			return false
		}
	}
	return includePattern.MatchString(desc)
}

// NormalizeFlag maps the extraction's free-form answer onto Y or N.
func NormalizeFlag(value string) internal.TintFlag {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "Y", "YES", "TRUE", "1":
		return internal.TintYes
	default:
		return internal.TintNo
	}
}

// FilterLines returns the queue lines that pass IsTintable, in order.
func FilterLines(lines []internal.QueueLine) []internal.QueueLine {
	out := make([]internal.QueueLine, 0, len(lines))
	for _, line := range lines {
		if IsTintable(line.Description(), line.Tinting) {
			out = append(out, line)
		}
	}
	return out
}
