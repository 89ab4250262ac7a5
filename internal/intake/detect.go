package intake

import (
	"regexp"
	"strings"
)

type DetectResult struct {
	IsOrder bool
	Score   float64
	Reason  string
}

var detectKeywords = []*regexp.Regexp{
	regexp.MustCompile(`\bpurchase order\b`),
	regexp.MustCompile(`\bp\.?o\.?\s*(?:no|number|#)?\s*[:#]?\s*\d`),
	regexp.MustCompile(`\border\b`),
	regexp.MustCompile(`\bplease (?:supply|send|deliver)\b`),
	regexp.MustCompile(`\bqty\b|\bquantity\b`),
	regexp.MustCompile(`\bdelivery\b`),
}

var reQuantityLine = regexp.MustCompile(`(?m)(?:\bx\s*\d+|\d+\s*(?:x\b|ltr?s?\b|l\b|kg\b|tins?\b|units?\b|pcs\b))`)

// DetectPurchaseOrder scores a message on keywords, quantity-like tokens,
// document attachments and HTML tables. Scores of 0.45 and up count as
// orders.
func DetectPurchaseOrder(subject, text, html string, attachmentNames []string) DetectResult {
	subject = strings.ToLower(subject)
	text = strings.ToLower(text)
	html = strings.ToLower(html)

	score := 0.0
	for _, kw := range detectKeywords {
		if kw.MatchString(subject) {
			score += 0.2
		}
		if kw.MatchString(text) || kw.MatchString(html) {
			score += 0.1
		}
	}

	qtyHits := len(reQuantityLine.FindAllString(text, -1))
	if qtyHits >= 2 {
		score += 0.4
	} else if qtyHits == 1 {
		score += 0.2
	}

	for _, name := range attachmentNames {
		ln := strings.ToLower(name)
		if strings.HasSuffix(ln, ".xlsx") || strings.HasSuffix(ln, ".pdf") {
			score += 0.25
			break
		}
	}

	if strings.Contains(html, "<table") {
		score += 0.25
	}
	if score > 1 {
		score = 1
	}

	isOrder := score >= 0.45
	reason := "rules_negative"
	if isOrder {
		reason = "rules_positive"
	}
	return DetectResult{IsOrder: isOrder, Score: score, Reason: reason}
}
