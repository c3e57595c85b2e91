package matcher

import (
	"regexp"
	"strings"
)

var (
	punctuationRegex = regexp.MustCompile(`[^\w\s]`)
	whitespaceRegex  = regexp.MustCompile(`\s+`)

	// Recipe descriptors carry no signal for catalog lookup ("fresh chopped
	// tomatoes" should search as "tomatoes").
	descriptorRegex = regexp.MustCompile(`\b(fresh|organic|free range|extra|large|small|medium|chopped|diced|sliced)\b`)
)

var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true,
	"of": true, "with": true, "in": true, "for": true, "to": true,
}

// normalizeIngredient lowers, strips punctuation, collapses whitespace and
// removes recipe descriptor words.
func normalizeIngredient(ingredient string) string {
	s := strings.ToLower(strings.TrimSpace(ingredient))
	s = punctuationRegex.ReplaceAllString(s, "")
	s = whitespaceRegex.ReplaceAllString(s, " ")
	s = descriptorRegex.ReplaceAllString(s, "")
	s = whitespaceRegex.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func removeStopwords(ingredient string) string {
	words := strings.Fields(ingredient)
	kept := words[:0]
	for _, w := range words {
		if !stopwords[strings.ToLower(w)] {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}
