package triangulate

import (
	"context"
	"strings"

	"github.com/concordia-ai/concord-oss/pkg/domain"
	"github.com/concordia-ai/concord-oss/pkg/knowledge"
)

// PIIDetector probes a payload for sensitive classes without mutating it.
type PIIDetector interface {
	Detect(ctx context.Context, payload any) []domain.Violation
}

// Checker runs post-adjudication quality probes on a winning output.
type Checker struct {
	pii    PIIDetector
	ranker knowledge.Ranker
}

// NewChecker creates a Checker. The detector may be nil, in which case the
// PII probe always reports clean.
func NewChecker(pii PIIDetector) *Checker {
	return &Checker{pii: pii, ranker: knowledge.TermOverlapRanker{}}
}

// SelfCheck inspects output against the evidence it was grounded on. The
// candidate output is never modified; the result is advisory.
func (c *Checker) SelfCheck(ctx context.Context, output string, evidence []domain.Evidence) (domain.SelfCheckResult, error) {
	result := domain.SelfCheckResult{
		Faithfulness:   c.faithfulness(output, evidence),
		ReasoningScore: reasoningScore(output),
	}

	if c.pii != nil {
		if violations := c.pii.Detect(ctx, output); len(violations) > 0 {
			result.PIIFlag = true
		}
	}

	result.Confidence = (result.Faithfulness + result.ReasoningScore) / 2
	if result.PIIFlag {
		result.Confidence /= 2
	}
	return result, nil
}

// faithfulness measures how much of the output is covered by the supplied
// evidence. No evidence means nothing to ground on, so faithfulness is zero.
func (c *Checker) faithfulness(output string, evidence []domain.Evidence) float64 {
	if len(evidence) == 0 {
		return 0
	}
	var sb strings.Builder
	for _, ev := range evidence {
		sb.WriteString(ev.Document.Content)
		sb.WriteByte(' ')
	}
	return c.ranker.Score(output, sb.String())
}

// reasoningConnectives are markers of explicit argument structure.
var reasoningConnectives = []string{
	"because", "therefore", "however", "first", "second", "finally",
	"given that", "it follows", "in contrast", "as a result",
}

// reasoningScore rewards outputs that show explicit reasoning structure,
// saturating after a handful of distinct connectives.
func reasoningScore(output string) float64 {
	const saturation = 4
	lowered := strings.ToLower(output)
	hits := 0
	for _, conn := range reasoningConnectives {
		if strings.Contains(lowered, conn) {
			hits++
		}
	}
	if hits >= saturation {
		return 1
	}
	return float64(hits) / saturation
}
