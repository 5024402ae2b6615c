package triangulate

import (
	"strings"
	"unicode"

	"github.com/concordia-ai/concord-oss/pkg/domain"
)

// Adjudicate scores every usable candidate against the rubric and picks a
// winner. Scoring is pure: the same candidates and rubric always yield the
// same result. Ties break on score descending, then latency ascending, then
// candidate order.
func Adjudicate(candidates []domain.ModelCandidate, rubric domain.Rubric) (domain.AdjudicationResult, error) {
	usable := Usable(candidates)
	if len(usable) == 0 {
		names := make([]string, 0, len(candidates))
		for _, c := range candidates {
			names = append(names, c.ModelName)
		}
		return domain.AdjudicationResult{}, &domain.NoCandidatesError{Models: names}
	}

	result := domain.AdjudicationResult{
		Scores: make(map[string]float64, len(usable)),
		Rubric: rubric,
	}

	winner := 0
	for i, c := range usable {
		score := scoreCandidate(c.Output, rubric)
		result.Scores[c.ModelName] = score

		if i == 0 {
			continue
		}
		best := usable[winner]
		bestScore := result.Scores[best.ModelName]
		switch {
		case score > bestScore:
			winner = i
		case score == bestScore && c.LatencyMS < best.LatencyMS:
			winner = i
		}
	}
	result.Winner = usable[winner]
	return result, nil
}

// scoreCandidate computes the weighted rubric score for one output. Items
// with explicit criteria score the fraction of criteria the output mentions;
// items without criteria fall back to a length heuristic.
func scoreCandidate(output string, rubric domain.Rubric) float64 {
	if len(rubric) == 0 {
		return lengthScore(output)
	}

	var total, weights float64
	for _, item := range rubric {
		w := item.Weight
		if w <= 0 {
			continue
		}
		weights += w
		total += w * scoreItem(output, item)
	}
	if weights == 0 {
		return lengthScore(output)
	}
	return total / weights
}

func scoreItem(output string, item domain.RubricItem) float64 {
	if len(item.Criteria) == 0 {
		return lengthScore(output)
	}
	lowered := strings.ToLower(output)
	hits := 0
	for _, criterion := range item.Criteria {
		if criterion == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(criterion)) {
			hits++
		}
	}
	return float64(hits) / float64(len(item.Criteria))
}

// lengthScore maps token count onto [0,1], saturating at a modest answer
// length so verbosity alone cannot dominate criteria-based items.
func lengthScore(output string) float64 {
	const saturation = 50
	tokens := strings.FieldsFunc(output, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	n := len(tokens)
	if n >= saturation {
		return 1
	}
	return float64(n) / saturation
}
