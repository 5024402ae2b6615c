package knowledge

import (
	"strings"
	"unicode"
)

// Ranker scores a document's relevance to a query. Scores must be bounded in
// [0,1] and reproducible: identical inputs always yield the identical score.
type Ranker interface {
	Score(query, content string) float64
}

// TermOverlapRanker is the baseline ranking strategy: the fraction of distinct
// query terms present in the document, normalized to [0,1].
type TermOverlapRanker struct{}

// Score implements Ranker.
func (TermOverlapRanker) Score(query, content string) float64 {
	queryTerms := tokenize(query)
	if len(queryTerms) == 0 {
		return 0
	}

	docTerms := make(map[string]struct{})
	for _, term := range tokenize(content) {
		docTerms[term] = struct{}{}
	}

	seen := make(map[string]struct{}, len(queryTerms))
	matched := 0
	total := 0
	for _, term := range queryTerms {
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}
		total++
		if _, ok := docTerms[term]; ok {
			matched++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(matched) / float64(total)
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}
