package triangulate

import (
	"errors"
	"strings"
	"testing"

	"pgregory.net/rapid"

	"github.com/concordia-ai/concord-oss/pkg/domain"
)

func rubricWithCriteria() domain.Rubric {
	return domain.Rubric{
		{Name: "coverage", Weight: 2, Criteria: []string{"revenue", "churn"}},
		{Name: "actions", Weight: 1, Criteria: []string{"next steps"}},
	}
}

func TestAdjudicatePicksHighestScore(t *testing.T) {
	candidates := []domain.ModelCandidate{
		{ModelName: "m1", Outcome: domain.OutcomeOK, Output: "revenue grew, churn fell, next steps below", LatencyMS: 900},
		{ModelName: "m2", Outcome: domain.OutcomeOK, Output: "revenue grew", LatencyMS: 100},
	}

	result, err := Adjudicate(candidates, rubricWithCriteria())
	if err != nil {
		t.Fatalf("adjudicate: %v", err)
	}
	if result.Winner.ModelName != "m1" {
		t.Fatalf("winner = %s, want m1", result.Winner.ModelName)
	}
	// The result carries the whole winning candidate, not just its name.
	if result.Winner.Output != candidates[0].Output {
		t.Fatalf("winner output = %q", result.Winner.Output)
	}
	if result.Winner.LatencyMS != 900 {
		t.Fatalf("winner latency = %d", result.Winner.LatencyMS)
	}
	if result.Scores["m1"] != 1 {
		t.Fatalf("m1 score = %f, want 1", result.Scores["m1"])
	}
	// m2 hits one of two criteria on the weight-2 item and none on the
	// weight-1 item: (2*0.5 + 1*0) / 3.
	if got := result.Scores["m2"]; got < 0.33 || got > 0.34 {
		t.Fatalf("m2 score = %f", got)
	}
}

func TestAdjudicateTieBreaksOnLatencyThenOrder(t *testing.T) {
	rubric := domain.Rubric{{Name: "c", Weight: 1, Criteria: []string{"alpha"}}}

	candidates := []domain.ModelCandidate{
		{ModelName: "slow", Outcome: domain.OutcomeOK, Output: "alpha", LatencyMS: 500},
		{ModelName: "fast", Outcome: domain.OutcomeOK, Output: "alpha", LatencyMS: 100},
	}
	result, err := Adjudicate(candidates, rubric)
	if err != nil {
		t.Fatalf("adjudicate: %v", err)
	}
	if result.Winner.ModelName != "fast" {
		t.Fatalf("latency tie break failed: winner = %s", result.Winner.ModelName)
	}

	// Equal score and latency: first submitted wins.
	candidates[1].LatencyMS = 500
	result, err = Adjudicate(candidates, rubric)
	if err != nil {
		t.Fatalf("adjudicate: %v", err)
	}
	if result.Winner.ModelName != "slow" {
		t.Fatalf("order tie break failed: winner = %s", result.Winner.ModelName)
	}
}

func TestAdjudicateIgnoresUnusableCandidates(t *testing.T) {
	candidates := []domain.ModelCandidate{
		{ModelName: "timed", Outcome: domain.OutcomeTimeout},
		{ModelName: "ok", Outcome: domain.OutcomeOK, Output: "revenue churn next steps"},
		{ModelName: "broken", Outcome: domain.OutcomeError, Error: "boom"},
	}

	result, err := Adjudicate(candidates, rubricWithCriteria())
	if err != nil {
		t.Fatalf("adjudicate: %v", err)
	}
	if result.Winner.ModelName != "ok" {
		t.Fatalf("winner = %s", result.Winner.ModelName)
	}
	if _, scored := result.Scores["timed"]; scored {
		t.Fatalf("unusable candidate was scored")
	}
}

func TestAdjudicateNoUsableCandidates(t *testing.T) {
	candidates := []domain.ModelCandidate{
		{ModelName: "m1", Outcome: domain.OutcomeTimeout},
		{ModelName: "m2", Outcome: domain.OutcomeError},
	}

	_, err := Adjudicate(candidates, nil)
	var noCandidates *domain.NoCandidatesError
	if !errors.As(err, &noCandidates) {
		t.Fatalf("expected NoCandidatesError, got %v", err)
	}
	if len(noCandidates.Models) != 2 {
		t.Fatalf("error should name the attempted models: %+v", noCandidates)
	}
}

func TestAdjudicateDeterministic(t *testing.T) {
	wordPool := []string{"revenue", "churn", "next steps", "growth", "retention", "filler"}

	rapid.Check(t, func(t *rapid.T) {
		outcomes := []domain.CandidateOutcome{
			domain.OutcomeOK, domain.OutcomeOK, domain.OutcomeTimeout, domain.OutcomeError,
		}

		n := rapid.IntRange(1, 5).Draw(t, "candidates")
		candidates := make([]domain.ModelCandidate, 0, n)
		hasUsable := false
		for i := range n {
			words := rapid.SliceOfN(rapid.SampledFrom(wordPool), 0, 6).Draw(t, "words")
			outcome := rapid.SampledFrom(outcomes).Draw(t, "outcome")
			if outcome == domain.OutcomeOK {
				hasUsable = true
			}
			candidates = append(candidates, domain.ModelCandidate{
				ModelName: string(rune('a' + i)),
				Outcome:   outcome,
				Output:    strings.Join(words, " "),
				LatencyMS: rapid.Int64Range(0, 1000).Draw(t, "latency"),
			})
		}

		var rubric domain.Rubric
		for range rapid.IntRange(0, 3).Draw(t, "items") {
			rubric = append(rubric, domain.RubricItem{
				Name:     rapid.SampledFrom(wordPool).Draw(t, "name"),
				Weight:   float64(rapid.IntRange(0, 3).Draw(t, "weight")),
				Criteria: rapid.SliceOfN(rapid.SampledFrom(wordPool), 0, 3).Draw(t, "criteria"),
			})
		}

		first, err := Adjudicate(candidates, rubric)
		if !hasUsable {
			var noCandidates *domain.NoCandidatesError
			if !errors.As(err, &noCandidates) {
				t.Fatalf("expected NoCandidatesError, got %v", err)
			}
			return
		}
		if err != nil {
			t.Fatalf("adjudicate: %v", err)
		}

		if !first.Winner.Usable() {
			t.Fatalf("winner %q is not usable", first.Winner.ModelName)
		}
		winnerScore := first.Scores[first.Winner.ModelName]
		for name, score := range first.Scores {
			if score < 0 || score > 1 {
				t.Fatalf("score for %s out of bounds: %f", name, score)
			}
			if score > winnerScore {
				t.Fatalf("%s outscores winner: %f > %f", name, score, winnerScore)
			}
		}

		again, err := Adjudicate(candidates, rubric)
		if err != nil {
			t.Fatalf("adjudicate: %v", err)
		}
		if again.Winner.ModelName != first.Winner.ModelName {
			t.Fatalf("winner unstable: %s vs %s", first.Winner.ModelName, again.Winner.ModelName)
		}
		for name, score := range first.Scores {
			if again.Scores[name] != score {
				t.Fatalf("score unstable for %s", name)
			}
		}
	})
}

func TestAdjudicateEmptyRubricUsesLengthHeuristic(t *testing.T) {
	candidates := []domain.ModelCandidate{
		{ModelName: "short", Outcome: domain.OutcomeOK, Output: "ok"},
		{ModelName: "long", Outcome: domain.OutcomeOK, Output: "a considerably longer answer with many more tokens covering the question in detail"},
	}

	result, err := Adjudicate(candidates, nil)
	if err != nil {
		t.Fatalf("adjudicate: %v", err)
	}
	if result.Winner.ModelName != "long" {
		t.Fatalf("winner = %s", result.Winner.ModelName)
	}
	for name, score := range result.Scores {
		if score < 0 || score > 1 {
			t.Fatalf("score for %s out of bounds: %f", name, score)
		}
	}
}
