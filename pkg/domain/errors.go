package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Common domain errors.
var (
	ErrCardNotFound    = errors.New("card not found")
	ErrModelNotFound   = errors.New("model not found")
	ErrToolNotFound    = errors.New("tool not found")
	ErrPolicyNotFound  = errors.New("policy not found")
	ErrUnknownLanguage = errors.New("unknown sandbox language")
	ErrMissingInput    = errors.New("missing required input")
)

// NoCandidatesError reports that every model in a triangulation call failed,
// timed out, or was skipped by admission control. It is recoverable: the
// caller may retry with different models or a larger budget.
type NoCandidatesError struct {
	Task   string
	Models []string
}

func (e *NoCandidatesError) Error() string {
	return fmt.Sprintf("no usable candidates from models [%s]", strings.Join(e.Models, ", "))
}

// CyclicDependencyError reports a malformed task graph. It is raised before
// any task executes; a card that triggers it is a configuration error.
type CyclicDependencyError struct {
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	if len(e.Cycle) == 0 {
		return "task graph contains a cycle"
	}
	return fmt.Sprintf("task graph contains a cycle through [%s]", strings.Join(e.Cycle, " -> "))
}

// TaskParameterError reports an unresolved ${var} reference in a task's
// parameters. It is fatal to that task.
type TaskParameterError struct {
	TaskID    string
	Reference string
}

func (e *TaskParameterError) Error() string {
	return fmt.Sprintf("task %q references unresolved variable %q", e.TaskID, e.Reference)
}

// PolicyDeniedError reports an intentional halt by a gate's deny decision.
// It is not a bug: the run stops and the deciding decision is preserved.
type PolicyDeniedError struct {
	TaskID   string
	Decision PolicyDecision
}

func (e *PolicyDeniedError) Error() string {
	return fmt.Sprintf("task %q denied by policy %q", e.TaskID, e.Decision.Policy)
}
