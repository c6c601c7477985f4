package catalogapi

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// normalizeAuthor fixes shouted or flattened author casing; mixed-case names
// are left exactly as the catalog returned them (pen names are deliberate).
func normalizeAuthor(name string) string {
	name = strings.Join(strings.Fields(name), " ")
	if name == strings.ToUpper(name) || name == strings.ToLower(name) {
		return cases.Title(language.Und).String(strings.ToLower(name))
	}
	return name
}

// normalizeTitle collapses whitespace and trims stray trailing punctuation
// without touching the title's own casing.
func normalizeTitle(title string) string {
	title = strings.Join(strings.Fields(title), " ")
	return strings.TrimRight(title, " /;,:")
}

// similarity is a token-overlap score in [0,1] between two strings, used to
// scale catalog confidence by how close a result sits to the query.
func similarity(a, b string) float64 {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	common := 0
	for tok := range ta {
		if _, ok := tb[tok]; ok {
			common++
		}
	}
	union := len(ta) + len(tb) - common
	return float64(common) / float64(union)
}

// tokenSet splits on any non-alphanumeric rune so that subtitled forms like
// "Title: A Novel" share tokens with the plain "Title".
func tokenSet(s string) map[string]struct{} {
	out := map[string]struct{}{}
	tokens := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, tok := range tokens {
		out[tok] = struct{}{}
	}
	return out
}
