package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/concordia-ai/concord-oss/pkg/domain"
	"github.com/concordia-ai/concord-oss/pkg/triangulate"
)

// TriangulateTool fans a task out to several models, adjudicates the
// candidates against a rubric, and optionally self-checks the winner.
type TriangulateTool struct {
	router  *triangulate.Router
	checker *triangulate.Checker
}

// NewTriangulateTool wraps a router and checker as a tool.
func NewTriangulateTool(router *triangulate.Router, checker *triangulate.Checker) *TriangulateTool {
	return &TriangulateTool{router: router, checker: checker}
}

// Run triangulates a task. Parameters: task and models are required;
// budget_ms (default 30000), cost_ceiling (default 0 = unlimited), rubric
// (list of {name, weight, criteria}), self_check (default true), evidence
// (list of {id, content, score} as produced by the grounding tool).
func (t *TriangulateTool) Run(ctx context.Context, params map[string]any, _ map[string]any) (any, error) {
	task, err := stringParam(params, "task")
	if err != nil {
		return nil, err
	}
	models, err := stringSliceParam(params, "models")
	if err != nil {
		return nil, err
	}
	budget, err := durationParam(params, "budget_ms", 30*time.Second)
	if err != nil {
		return nil, err
	}
	ceiling, err := floatParam(params, "cost_ceiling", 0)
	if err != nil {
		return nil, err
	}
	withSelfCheck, err := boolParam(params, "self_check", true)
	if err != nil {
		return nil, err
	}
	rubric, err := parseRubric(params["rubric"])
	if err != nil {
		return nil, err
	}

	candidates, err := t.router.Route(ctx, task, models, budget, ceiling)
	if err != nil {
		return nil, err
	}
	adjudication, err := triangulate.Adjudicate(candidates, rubric)
	if err != nil {
		return nil, err
	}

	winner := adjudication.Winner

	out := map[string]any{
		"winner": winner.ModelName,
		"output": winner.Output,
		"scores": adjudication.Scores,
		"candidates": func() []map[string]any {
			rows := make([]map[string]any, 0, len(candidates))
			for _, c := range candidates {
				rows = append(rows, map[string]any{
					"model":      c.ModelName,
					"outcome":    string(c.Outcome),
					"latency_ms": c.LatencyMS,
					"cost":       c.Cost,
				})
			}
			return rows
		}(),
	}

	if withSelfCheck && t.checker != nil {
		evidence, err := parseEvidence(params["evidence"])
		if err != nil {
			return nil, err
		}
		check, err := t.checker.SelfCheck(ctx, winner.Output, evidence)
		if err != nil {
			return nil, err
		}
		out["self_check"] = map[string]any{
			"faithfulness":    check.Faithfulness,
			"pii_flag":        check.PIIFlag,
			"reasoning_score": check.ReasoningScore,
			"confidence":      check.Confidence,
		}
	}
	return out, nil
}

func parseRubric(raw any) (domain.Rubric, error) {
	if raw == nil {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("parameter %q must be a list, got %T", "rubric", raw)
	}
	rubric := make(domain.Rubric, 0, len(list))
	for i, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("parameter rubric[%d] must be a mapping, got %T", i, item)
		}
		ri := domain.RubricItem{Weight: 1}
		if name, ok := entry["name"].(string); ok {
			ri.Name = name
		}
		if w, err := floatParam(entry, "weight", 1); err == nil {
			ri.Weight = w
		} else {
			return nil, fmt.Errorf("rubric[%d]: %w", i, err)
		}
		if criteria, err := stringSliceParam(entry, "criteria"); err == nil {
			ri.Criteria = criteria
		}
		rubric = append(rubric, ri)
	}
	return rubric, nil
}

func parseEvidence(raw any) ([]domain.Evidence, error) {
	if raw == nil {
		return nil, nil
	}
	// Evidence arrives either as decoded YAML ([]any) or directly from the
	// grounding tool's output ([]map[string]any).
	var list []any
	switch v := raw.(type) {
	case []any:
		list = v
	case []map[string]any:
		list = make([]any, len(v))
		for i, m := range v {
			list[i] = m
		}
	default:
		return nil, fmt.Errorf("parameter %q must be a list, got %T", "evidence", raw)
	}
	evidence := make([]domain.Evidence, 0, len(list))
	for i, item := range list {
		entry, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("parameter evidence[%d] must be a mapping, got %T", i, item)
		}
		ev := domain.Evidence{}
		if id, ok := entry["id"].(string); ok {
			ev.Document.ID = id
		}
		if content, ok := entry["content"].(string); ok {
			ev.Document.Content = content
		}
		if score, err := floatParam(entry, "score", 0); err == nil {
			ev.Score = score
		}
		evidence = append(evidence, ev)
	}
	return evidence, nil
}
