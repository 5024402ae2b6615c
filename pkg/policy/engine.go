package policy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/concordia-ai/concord-oss/pkg/domain"
)

// Built-in policy names.
const (
	PolicyAllowAll = "allow_all"
	PolicyNoPII    = "no_pii"
)

// Policy evaluates a payload into a decision. Implementations must be
// deterministic and must not retain or mutate the payload.
type Policy interface {
	Name() string
	Evaluate(ctx context.Context, payload any) (domain.PolicyDecision, error)
}

// Options configure engine construction.
type Options struct {
	// DenyClasses lists violation types (e.g. "CARD") that escalate a
	// no_pii redact decision into a deny with no usable redacted payload.
	DenyClasses []string
	Logger      *slog.Logger
	Metrics     *Metrics
}

// Engine is a threadsafe catalog of named policies with built-ins registered
// at construction time.
type Engine struct {
	mu       sync.RWMutex
	policies map[string]Policy
	logger   *slog.Logger
	metrics  *Metrics
}

// NewEngine constructs an Engine with the allow_all and no_pii built-ins.
func NewEngine(opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		policies: make(map[string]Policy),
		logger:   logger,
		metrics:  opts.Metrics,
	}
	e.mustRegister(allowAllPolicy{})
	e.mustRegister(&noPIIPolicy{denyClasses: toSet(opts.DenyClasses)})
	return e
}

// Register inserts or replaces a policy under its name.
func (e *Engine) Register(p Policy) error {
	name := strings.TrimSpace(p.Name())
	if name == "" {
		return fmt.Errorf("policy: name is required")
	}
	e.mu.Lock()
	e.policies[strings.ToLower(name)] = p
	e.mu.Unlock()
	return nil
}

func (e *Engine) mustRegister(p Policy) {
	if err := e.Register(p); err != nil {
		panic(err)
	}
}

// Enforce evaluates payload against the named policy. Unknown policies are a
// configuration error; expected outcomes (violations, denials) are recovered
// into the decision, never thrown.
func (e *Engine) Enforce(ctx context.Context, policyName string, payload any) (domain.PolicyDecision, error) {
	e.mu.RLock()
	p, ok := e.policies[strings.ToLower(strings.TrimSpace(policyName))]
	e.mu.RUnlock()
	if !ok {
		return domain.PolicyDecision{}, fmt.Errorf("policy %q: %w", policyName, domain.ErrPolicyNotFound)
	}

	decision, err := p.Evaluate(ctx, payload)
	if err != nil {
		return domain.PolicyDecision{}, err
	}
	decision.Policy = p.Name()

	e.logger.Debug("policy decision",
		"policy", decision.Policy,
		"status", string(decision.Status),
		"violations", len(decision.Violations),
	)
	if e.metrics != nil {
		e.metrics.RecordDecision(decision)
	}
	return decision, nil
}

// Detect runs the PII detectors over payload without producing a redacted
// copy. It is the read-only probe used by self-checks.
func (e *Engine) Detect(_ context.Context, payload any) []domain.Violation {
	_, violations := Redact(payload)
	return violations
}

type allowAllPolicy struct{}

func (allowAllPolicy) Name() string { return PolicyAllowAll }

func (allowAllPolicy) Evaluate(_ context.Context, _ any) (domain.PolicyDecision, error) {
	return domain.PolicyDecision{Status: domain.StatusApprove}, nil
}

type noPIIPolicy struct {
	denyClasses map[string]struct{}
}

func (*noPIIPolicy) Name() string { return PolicyNoPII }

func (p *noPIIPolicy) Evaluate(ctx context.Context, payload any) (domain.PolicyDecision, error) {
	if err := ctx.Err(); err != nil {
		return domain.PolicyDecision{}, err
	}

	redacted, violations := Redact(payload)
	if len(violations) == 0 {
		return domain.PolicyDecision{Status: domain.StatusApprove}, nil
	}

	for _, v := range violations {
		if _, deny := p.denyClasses[v.Type]; deny {
			return domain.PolicyDecision{
				Status:     domain.StatusDeny,
				Violations: violations,
			}, nil
		}
	}

	return domain.PolicyDecision{
		Status:          domain.StatusRedact,
		PayloadRedacted: redacted,
		Violations:      violations,
	}, nil
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = strings.ToUpper(strings.TrimSpace(v))
		if v != "" {
			set[v] = struct{}{}
		}
	}
	return set
}
