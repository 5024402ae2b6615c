package policy

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"

	"github.com/concordia-ai/concord-oss/pkg/domain"
)

const defaultEntrypoint = "data.concord.decision"

// RegoOptions control construction of a Rego-backed policy.
type RegoOptions struct {
	// Name is the policy name registered with the engine.
	Name string
	// Module is the Rego source. It must define the decision document the
	// entrypoint names, an object of the form
	// {"action": "approve"|"redact"|"deny", "violations": [...]}.
	Module string
	// Entrypoint overrides the default decision path.
	Entrypoint string
}

// RegoPolicy evaluates payloads through an embedded OPA instance. A redact
// action delegates masking to the built-in PII redactor, so Rego modules
// decide while the deterministic detectors mask.
type RegoPolicy struct {
	name     string
	prepared rego.PreparedEvalQuery
	mu       sync.Mutex
}

// NewRegoPolicy parses and compiles the module, surfacing syntax errors at
// construction rather than first enforcement.
func NewRegoPolicy(ctx context.Context, opts RegoOptions) (*RegoPolicy, error) {
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		return nil, errors.New("policy: rego policy name is required")
	}
	if strings.TrimSpace(opts.Module) == "" {
		return nil, fmt.Errorf("policy: rego policy %q requires a module", name)
	}

	entry := strings.TrimSpace(opts.Entrypoint)
	if entry == "" {
		entry = defaultEntrypoint
	}

	moduleName := name + ".rego"
	if _, err := ast.ParseModuleWithOpts(moduleName, opts.Module, ast.ParserOptions{RegoVersion: ast.RegoV1}); err != nil {
		return nil, fmt.Errorf("policy: parse rego module %q: %w", name, err)
	}

	prepared, err := rego.New(
		rego.Query(entry),
		rego.Module(moduleName, opts.Module),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("policy: compile rego module %q: %w", name, err)
	}

	return &RegoPolicy{name: name, prepared: prepared}, nil
}

// Name implements Policy.
func (p *RegoPolicy) Name() string { return p.name }

// Evaluate implements Policy.
func (p *RegoPolicy) Evaluate(ctx context.Context, payload any) (domain.PolicyDecision, error) {
	p.mu.Lock()
	results, err := p.prepared.Eval(ctx, rego.EvalInput(payload))
	p.mu.Unlock()
	if err != nil {
		return domain.PolicyDecision{}, fmt.Errorf("policy: rego decision: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return domain.PolicyDecision{Status: domain.StatusApprove}, nil
	}

	doc, ok := results[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return domain.PolicyDecision{}, fmt.Errorf("policy: rego decision: unexpected result type %T", results[0].Expressions[0].Value)
	}

	action, _ := doc["action"].(string)
	violations := parseViolations(doc["violations"])

	switch strings.ToLower(strings.TrimSpace(action)) {
	case "", "approve", "allow":
		return domain.PolicyDecision{Status: domain.StatusApprove, Violations: violations}, nil
	case "redact":
		redacted, detected := Redact(payload)
		return domain.PolicyDecision{
			Status:          domain.StatusRedact,
			PayloadRedacted: redacted,
			Violations:      append(violations, detected...),
		}, nil
	case "deny", "block":
		return domain.PolicyDecision{Status: domain.StatusDeny, Violations: violations}, nil
	default:
		return domain.PolicyDecision{}, fmt.Errorf("policy: rego decision: unsupported action %q", action)
	}
}

func parseViolations(raw any) []domain.Violation {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	violations := make([]domain.Violation, 0, len(items))
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		v := domain.Violation{}
		v.Type, _ = entry["type"].(string)
		v.Location, _ = entry["location"].(string)
		v.Note, _ = entry["note"].(string)
		if v.Type != "" {
			violations = append(violations, v)
		}
	}
	return violations
}
