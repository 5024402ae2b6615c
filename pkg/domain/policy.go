package domain

// PolicyStatus is the enforcement outcome for a payload. A decision carries
// exactly one status value.
type PolicyStatus string

const (
	// StatusApprove passes the payload through unmodified.
	StatusApprove PolicyStatus = "approve"
	// StatusRedact passes a masked copy of the payload; every detected span
	// is replaced by a type-tagged mask.
	StatusRedact PolicyStatus = "redact"
	// StatusDeny aborts the enclosing operation with no usable payload.
	StatusDeny PolicyStatus = "deny"
)

// Violation records one policy finding. It carries the detection type and the
// structural location of the match but never the raw matched value, so a
// decision can be logged and persisted without re-leaking the data it caught.
type Violation struct {
	Type     string `json:"type"`
	Location string `json:"location"`
	Note     string `json:"note,omitempty"`
}

// PolicyDecision is the result of enforcing a named policy against a payload.
// Enforcement is deterministic: identical payload and policy always yield an
// identical decision.
type PolicyDecision struct {
	Policy          string       `json:"policy"`
	Status          PolicyStatus `json:"status"`
	PayloadRedacted any          `json:"payload_redacted,omitempty"`
	Violations      []Violation  `json:"violations,omitempty"`
}

// Denied reports whether the decision halts the enclosing run.
func (d PolicyDecision) Denied() bool {
	return d.Status == StatusDeny
}
