// Package workflow executes declarative cards as dependency-ordered task
// graphs. Validation happens before any task runs: a card with a cycle or a
// dangling dependency never executes. Independent ready tasks run
// concurrently; gated tasks pass their output through the policy engine
// before downstream tasks can observe it.
package workflow
