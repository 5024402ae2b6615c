package policy

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/concordia-ai/concord-oss/pkg/domain"
)

func TestEnforceAllowAll(t *testing.T) {
	engine := NewEngine(Options{})

	decision, err := engine.Enforce(context.Background(), PolicyAllowAll, map[string]any{"email": "a@b.com"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApprove, decision.Status)
	assert.Equal(t, PolicyAllowAll, decision.Policy)
	assert.Empty(t, decision.Violations)
}

func TestEnforceNoPIIApprovesCleanPayload(t *testing.T) {
	engine := NewEngine(Options{})

	decision, err := engine.Enforce(context.Background(), PolicyNoPII, map[string]any{"note": "ok"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApprove, decision.Status)
	assert.Empty(t, decision.Violations)
}

func TestEnforceNoPIIRedacts(t *testing.T) {
	engine := NewEngine(Options{Metrics: NewMetrics(prometheus.NewRegistry())})

	decision, err := engine.Enforce(context.Background(), PolicyNoPII, map[string]any{
		"email": "a@b.com",
		"note":  "ok",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRedact, decision.Status)
	require.Len(t, decision.Violations, 1)
	assert.Equal(t, TypeEmail, decision.Violations[0].Type)
	assert.Equal(t, "$.email", decision.Violations[0].Location)

	redacted, ok := decision.PayloadRedacted.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "[REDACTED:EMAIL]", redacted["email"])
	assert.Equal(t, "ok", redacted["note"])
}

func TestEnforceNoPIIDenyClass(t *testing.T) {
	engine := NewEngine(Options{DenyClasses: []string{"card"}})

	decision, err := engine.Enforce(context.Background(), PolicyNoPII, map[string]any{
		"pan": "4539 1488 0343 6467",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDeny, decision.Status)
	assert.True(t, decision.Denied())
	assert.Nil(t, decision.PayloadRedacted, "deny must not expose a redacted payload")
	require.NotEmpty(t, decision.Violations)
	assert.Equal(t, TypeCard, decision.Violations[0].Type)
}

func TestEnforceUnknownPolicy(t *testing.T) {
	engine := NewEngine(Options{})

	_, err := engine.Enforce(context.Background(), "nonexistent", "payload")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPolicyNotFound))
}

func TestDetectIsReadOnly(t *testing.T) {
	engine := NewEngine(Options{})
	payload := map[string]any{"email": "a@b.com"}

	violations := engine.Detect(context.Background(), payload)
	require.Len(t, violations, 1)
	assert.Equal(t, TypeEmail, violations[0].Type)
	assert.Equal(t, "a@b.com", payload["email"], "detect must not mutate the payload")
}

type stubPolicy struct {
	name   string
	status domain.PolicyStatus
}

func (p stubPolicy) Name() string { return p.name }

func (p stubPolicy) Evaluate(context.Context, any) (domain.PolicyDecision, error) {
	return domain.PolicyDecision{Status: p.status}, nil
}

func TestRegisterCustomPolicy(t *testing.T) {
	engine := NewEngine(Options{})
	require.NoError(t, engine.Register(stubPolicy{name: "custom", status: domain.StatusDeny}))

	decision, err := engine.Enforce(context.Background(), "custom", "anything")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDeny, decision.Status)
	assert.Equal(t, "custom", decision.Policy)
}

func TestEnforceDeterministic(t *testing.T) {
	engine := NewEngine(Options{})
	payload := map[string]any{
		"a": "a@example.com",
		"b": "call 555-867-5309",
	}

	first, err := engine.Enforce(context.Background(), PolicyNoPII, payload)
	require.NoError(t, err)
	for range 5 {
		again, err := engine.Enforce(context.Background(), PolicyNoPII, payload)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}
