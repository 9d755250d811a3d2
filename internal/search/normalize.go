// Package search implements the text normalizer, query planner, and scope
// evaluator that together turn a typed query into a deterministic,
// scope-safe SQL plan.
package search

import (
	"strings"
	"unicode"

	"agentmail-search/internal/logging"
)

var booleanOperators = map[string]bool{
	"AND": true, "OR": true, "NOT": true,
}

// Sanitize produces an engine-safe FTS-style expression from free text, or
// ("", false) if nothing searchable remains. It never panics and never
// emits unbalanced quotes or a standalone boolean operator.
func Sanitize(text string) (string, bool) {
	cleaned := collapseWhitespace(stripControl(text))
	if cleaned == "" {
		return "", false
	}

	tokens := strings.Fields(cleaned)
	out := make([]string, 0, len(tokens))

	inNear := false
	for _, tok := range tokens {
		if inNear {
			inNear = !strings.Contains(tok, ")")
			continue
		}
		tok = stripBracketedQualifier(tok)
		tok = strings.ReplaceAll(tok, "\"", "")
		if tok == "" {
			continue
		}
		upper := strings.ToUpper(tok)
		if booleanOperators[upper] {
			continue
		}
		if strings.HasPrefix(upper, "NEAR") {
			inNear = strings.Contains(tok, "(") && !strings.Contains(tok, ")")
			continue
		}

		prefixWildcard := strings.HasSuffix(tok, "*")
		tok = strings.Trim(tok, "*")
		if prefixWildcard {
			tok = tok + "*"
		}
		if tok == "" {
			continue
		}
		if isAllPunctuation(tok) {
			continue
		}
		if strings.Contains(tok, "-") {
			tok = quoteToken(tok)
		}
		out = append(out, tok)
	}

	if len(out) == 0 {
		logging.SearchDebug("sanitize: no usable tokens remained for input of length %d", len(text))
		return "", false
	}
	return strings.Join(out, " "), true
}

// ExtractLikeTerms tokenizes text on whitespace, drops stop tokens and short
// tokens, deduplicates preserving first-seen order, and caps at maxTerms.
func ExtractLikeTerms(text string, maxTerms int) []string {
	cleaned := collapseWhitespace(stripControl(text))
	if cleaned == "" || maxTerms <= 0 {
		return nil
	}

	seen := make(map[string]bool)
	terms := make([]string, 0, maxTerms)

	for _, tok := range strings.Fields(cleaned) {
		upper := strings.ToUpper(tok)
		if booleanOperators[upper] || upper == "NEAR" {
			continue
		}
		if len([]rune(tok)) < 2 {
			continue
		}
		lower := strings.ToLower(tok)
		if seen[lower] {
			continue
		}
		seen[lower] = true
		terms = append(terms, tok)
		if len(terms) >= maxTerms {
			break
		}
	}
	return terms
}

func stripControl(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsControl(r) {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func collapseWhitespace(s string) string {
	return strings.TrimSpace(strings.Join(strings.Fields(s), " "))
}

// stripBracketedQualifier drops a leading FTS column-qualifier group such as
// "{col1 col2}" from a token. A "col:" column prefix is left in place.
func stripBracketedQualifier(tok string) string {
	if strings.HasPrefix(tok, "{") {
		if idx := strings.Index(tok, "}"); idx >= 0 {
			tok = tok[idx+1:]
		} else {
			return ""
		}
	}
	return tok
}

func isAllPunctuation(tok string) bool {
	for _, r := range tok {
		if !unicode.IsPunct(r) && !unicode.IsSymbol(r) {
			return false
		}
	}
	return true
}

func quoteToken(tok string) string {
	trailingWildcard := strings.HasSuffix(tok, "*")
	inner := strings.TrimSuffix(tok, "*")
	inner = strings.ReplaceAll(inner, "\"", "")
	if trailingWildcard {
		return "\"" + inner + "\"*"
	}
	return "\"" + inner + "\""
}
