package knowledge

import (
	"sort"

	"github.com/concordia-ai/concord-oss/pkg/domain"
)

type scoredDoc struct {
	doc   domain.Document
	score float64
	order int
}

// rank applies the ranking strategy over documents supplied in insertion
// order and assembles the grounding result. Shared by all store backends so
// ranking behaves identically regardless of persistence.
func rank(ranker Ranker, query, space string, docs []domain.Document, k int, minScore float64) domain.GroundingResult {
	result := domain.GroundingResult{
		Query:    query,
		Space:    space,
		Evidence: []domain.Evidence{},
	}
	if k <= 0 || len(docs) == 0 {
		return result
	}

	scored := make([]scoredDoc, 0, len(docs))
	for i, doc := range docs {
		score := clamp01(ranker.Score(query, doc.Content))
		if score <= 0 || score < minScore {
			continue
		}
		scored = append(scored, scoredDoc{doc: doc, score: score, order: i})
	}

	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		if scored[i].order != scored[j].order {
			return scored[i].order < scored[j].order
		}
		return scored[i].doc.ID < scored[j].doc.ID
	})

	if len(scored) > k {
		scored = scored[:k]
	}

	for _, s := range scored {
		result.Evidence = append(result.Evidence, domain.Evidence{Document: s.doc.Clone(), Score: s.score})
	}
	if len(result.Evidence) > 0 {
		result.Coverage = result.Evidence[0].Score
		result.Answer = result.Evidence[0].Document.Content
	}
	return result
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
