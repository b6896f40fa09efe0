// Package keywords turns free text into the normalized token sets used for memory recall.
package keywords

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MinLength is the shortest token (in runes) that is kept; shorter tokens carry no signal.
const MinLength = 4

var stopWords = buildStopWords(
	// English
	"about", "after", "again", "also", "been", "before", "being", "could", "does", "doing",
	"down", "each", "from", "have", "having", "here", "into", "just", "like", "more", "most",
	"much", "only", "other", "over", "really", "same", "should", "some", "such", "than",
	"that", "their", "them", "then", "there", "these", "they", "this", "those", "through",
	"under", "until", "very", "want", "were", "what", "when", "where", "which", "while",
	"will", "with", "would", "your", "yours", "today", "thing", "things", "need",
	// Spanish
	"algo", "algunos", "ante", "antes", "aquí", "cada", "como", "con", "contra", "cual",
	"cuando", "desde", "donde", "durante", "ellos", "entre", "esta", "estaba", "estamos",
	"están", "estar", "este", "esto", "estos", "hace", "hacer", "hasta", "mismo", "mucho",
	"muy", "nada", "nosotros", "otra", "otro", "para", "pero", "poco", "porque", "puede",
	"qué", "quiero", "sobre", "solo", "también", "tengo", "tiene", "todo", "todos", "tuve",
	"una", "unos", "usted", "ustedes", "vosotros",
)

func buildStopWords(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

// IsStopWord reports whether token is ignored during extraction.
func IsStopWord(token string) bool {
	_, ok := stopWords[token]
	return ok
}

// Extract lower-cases text, strips punctuation and symbols from any script, splits on
// whitespace and drops short tokens and stop words. The result is deduplicated and
// keeps first-occurrence order.
func Extract(text string) []string {
	normalized := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), unicode.IsMark(r):
			return unicode.ToLower(r)
		case unicode.IsSpace(r):
			return ' '
		default:
			return ' '
		}
	}, text)

	fields := strings.Fields(normalized)
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, token := range fields {
		if utf8.RuneCountInString(token) < MinLength {
			continue
		}
		if IsStopWord(token) {
			continue
		}
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		out = append(out, token)
	}
	return out
}

// Set builds a lookup set from tokens.
func Set(tokens []string) map[string]struct{} {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

// Overlap counts how many of tokens are present in query. Exact matches only.
func Overlap(tokens []string, query map[string]struct{}) int {
	score := 0
	for _, t := range tokens {
		if _, ok := query[t]; ok {
			score++
		}
	}
	return score
}
