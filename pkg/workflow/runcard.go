package workflow

import (
	"context"
	"fmt"
	"sort"

	"github.com/concordia-ai/concord-oss/pkg/domain"
)

// CardRunResult is the outcome of running one card end to end.
type CardRunResult struct {
	CardName    string
	CardVersion int
	Dossier     domain.Dossier
	PolicyTrace []domain.PolicyDecision
	Results     []TaskResult

	// Halted is set when a deny gate stopped the run; HaltDecision is the
	// deciding policy decision, and Dossier holds whatever projected
	// entries resolved from pre-halt task outputs.
	Halted       bool
	HaltDecision *domain.PolicyDecision

	// BelowThreshold lists acceptance thresholds the run did not meet.
	// The dossier is still returned so the caller can inspect the run.
	BelowThreshold []string
}

// HaltError converts a policy halt into an error for callers that treat
// denial as failure, such as a CLI exit code. Completed runs return nil.
func (r CardRunResult) HaltError() error {
	if !r.Halted || r.HaltDecision == nil {
		return nil
	}
	taskID := ""
	for _, tr := range r.Results {
		if tr.Status == TaskDenied {
			taskID = tr.TaskID
			break
		}
	}
	return &domain.PolicyDeniedError{TaskID: taskID, Decision: *r.HaltDecision}
}

// RunCard checks the card's required inputs, executes its task graph, and
// projects the dossier. Missing required inputs fail before any task runs.
func (e *Engine) RunCard(ctx context.Context, card domain.Card, inputs map[string]any) (CardRunResult, error) {
	result := CardRunResult{CardName: card.Name, CardVersion: card.Version}

	for _, name := range card.RequiredInputs {
		if _, ok := inputs[name]; !ok {
			return result, fmt.Errorf("card %q: input %q: %w", card.Name, name, domain.ErrMissingInput)
		}
	}

	seed := make(map[string]any, len(inputs))
	for k, v := range inputs {
		seed[k] = v
	}

	run, err := e.RunWorkflow(ctx, card, seed)
	result.Results = run.Results
	result.PolicyTrace = run.PolicyTrace
	result.Halted = run.Halted
	result.HaltDecision = run.HaltDecision
	if err != nil {
		return result, err
	}

	result.Dossier = projectDossier(card, run.Context, run.Halted)
	if !run.Halted {
		result.BelowThreshold = checkThresholds(card, run.Context)
	}
	return result, nil
}

// projectDossier maps dossier entries to resolved context references. On a
// halted run entries that reference never-produced outputs are skipped
// instead of failing, leaving a partial dossier.
func projectDossier(card domain.Card, runCtx map[string]any, halted bool) domain.Dossier {
	if len(card.DossierSpec) == 0 {
		return domain.Dossier{}
	}
	dossier := make(domain.Dossier, len(card.DossierSpec))
	for key, ref := range card.DossierSpec {
		value, err := resolveValue(ref, runCtx, "dossier")
		if err != nil {
			if halted {
				continue
			}
			dossier[key] = nil
			continue
		}
		dossier[key] = value
	}
	return dossier
}

// checkThresholds compares numeric context values against the card's
// acceptance thresholds. A missing or non-numeric value fails its threshold.
func checkThresholds(card domain.Card, runCtx map[string]any) []string {
	if len(card.AcceptanceThresholds) == 0 {
		return nil
	}
	keys := make([]string, 0, len(card.AcceptanceThresholds))
	for key := range card.AcceptanceThresholds {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var failed []string
	for _, key := range keys {
		min := card.AcceptanceThresholds[key]
		value, ok := lookup(runCtx, key)
		if !ok {
			failed = append(failed, key)
			continue
		}
		score, ok := asFloat(value)
		if !ok || score < min {
			failed = append(failed, key)
		}
	}
	return failed
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
