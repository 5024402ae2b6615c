package domain

import "context"

// CandidateOutcome classifies how a model invocation terminated.
type CandidateOutcome string

const (
	// OutcomeOK indicates the model produced a usable output within budget.
	OutcomeOK CandidateOutcome = "ok"
	// OutcomeTimeout indicates the model exceeded the latency budget and was
	// abandoned; its output is discarded.
	OutcomeTimeout CandidateOutcome = "timeout"
	// OutcomeError indicates the model invocation failed.
	OutcomeError CandidateOutcome = "error"
	// OutcomeSkipped indicates admission control excluded the model before
	// invocation because its estimated cost would breach the ceiling.
	OutcomeSkipped CandidateOutcome = "skipped"
)

// ModelCandidate is one model's ephemeral answer to a triangulated task.
type ModelCandidate struct {
	ModelName string           `json:"model_name"`
	Output    string           `json:"output"`
	LatencyMS int64            `json:"latency_ms"`
	Cost      float64          `json:"cost"`
	Outcome   CandidateOutcome `json:"outcome"`
	Error     string           `json:"error,omitempty"`
}

// Usable reports whether the candidate may participate in adjudication.
func (c ModelCandidate) Usable() bool {
	return c.Outcome == OutcomeOK
}

// RubricItem is one weighted scoring criterion.
type RubricItem struct {
	Name     string   `json:"name" yaml:"name"`
	Weight   float64  `json:"weight" yaml:"weight"`
	Criteria []string `json:"criteria,omitempty" yaml:"criteria,omitempty"`
}

// Rubric is an ordered list of weighted criteria used to adjudicate
// candidates. Per-item scores are bounded in [0,1].
type Rubric []RubricItem

// AdjudicationResult names the winning candidate and the per-model totals.
type AdjudicationResult struct {
	Winner ModelCandidate     `json:"winner"`
	Scores map[string]float64 `json:"scores"`
	Rubric Rubric             `json:"rubric"`
}

// SelfCheckResult is a read-only inspection of a candidate. Producing one
// never mutates the candidate it inspects.
type SelfCheckResult struct {
	Faithfulness   float64 `json:"faithfulness"`
	PIIFlag        bool    `json:"pii_flag"`
	ReasoningScore float64 `json:"reasoning_score"`
	Confidence     float64 `json:"confidence"`
}

// Model is a named callable that answers a task. Invoke returns the raw
// output and the actual cost incurred; callers measure latency around the
// call. Timeouts surface through the context, never as opaque failures.
type Model interface {
	// Invoke answers the task, honoring ctx cancellation and deadline.
	Invoke(ctx context.Context, task string) (output string, cost float64, err error)

	// EstimateCost predicts the cost of answering the task, used for
	// admission control before the model is invoked.
	EstimateCost(task string) float64
}

// ModelResolver looks up registered models by name.
type ModelResolver interface {
	ResolveModel(name string) (Model, bool)
}
