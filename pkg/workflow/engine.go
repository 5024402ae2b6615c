package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/concordia-ai/concord-oss/pkg/domain"
	"github.com/concordia-ai/concord-oss/pkg/telemetry"
)

// TaskStatus describes how one task run ended.
type TaskStatus string

const (
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskDenied    TaskStatus = "denied"
)

// TaskResult records the outcome of a single task.
type TaskResult struct {
	TaskID     string
	Status     TaskStatus
	Output     any
	Error      string
	Decision   *domain.PolicyDecision
	DurationMS int64
}

// RunResult aggregates a workflow run: every executed task's result, the
// final run context, and the gate decisions in evaluation order. Halted is
// true when a deny gate stopped the run; HaltDecision names the decision.
type RunResult struct {
	Results      []TaskResult
	Context      map[string]any
	PolicyTrace  []domain.PolicyDecision
	Halted       bool
	HaltDecision *domain.PolicyDecision
}

// PolicyEnforcer gates task outputs. Implemented by policy.Engine.
type PolicyEnforcer interface {
	Enforce(ctx context.Context, policy string, payload any) (domain.PolicyDecision, error)
}

// Engine runs validated cards against a tool resolver and policy gate.
type Engine struct {
	tools    domain.ToolResolver
	policies PolicyEnforcer
	logger   *slog.Logger
}

// NewEngine creates a workflow engine. policies may be nil when no card in
// use declares a gate.
func NewEngine(tools domain.ToolResolver, policies PolicyEnforcer, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{tools: tools, policies: policies, logger: logger}
}

// Validate checks a card's task graph without running anything: task ids
// must be unique, tool refs non-empty, dependencies must name declared
// tasks, and the graph must be acyclic.
func Validate(card domain.Card) error {
	if card.Name == "" {
		return fmt.Errorf("card name is required")
	}
	byID := make(map[string]domain.Task, len(card.Tasks))
	for _, task := range card.Tasks {
		if task.ID == "" {
			return fmt.Errorf("card %q: task id is required", card.Name)
		}
		if task.ToolRef == "" {
			return fmt.Errorf("card %q: task %q has no tool reference", card.Name, task.ID)
		}
		if _, dup := byID[task.ID]; dup {
			return fmt.Errorf("card %q: duplicate task id %q", card.Name, task.ID)
		}
		if task.Gate && task.GatePolicy == "" {
			return fmt.Errorf("card %q: task %q is gated but names no policy", card.Name, task.ID)
		}
		byID[task.ID] = task
	}
	for _, task := range card.Tasks {
		for _, dep := range task.DependsOn {
			if _, ok := byID[dep]; !ok {
				return fmt.Errorf("card %q: task %q depends on unknown task %q", card.Name, task.ID, dep)
			}
		}
	}
	if cycle := findCycle(card.Tasks); len(cycle) > 0 {
		return &domain.CyclicDependencyError{Cycle: cycle}
	}
	return nil
}

// findCycle runs Kahn's algorithm and returns the ids left unordered, which
// are exactly the tasks participating in (or downstream of) a cycle.
func findCycle(tasks []domain.Task) []string {
	indegree := make(map[string]int, len(tasks))
	dependents := make(map[string][]string, len(tasks))
	for _, task := range tasks {
		indegree[task.ID] += 0
		for _, dep := range task.DependsOn {
			indegree[task.ID]++
			dependents[dep] = append(dependents[dep], task.ID)
		}
	}

	var queue []string
	for _, task := range tasks {
		if indegree[task.ID] == 0 {
			queue = append(queue, task.ID)
		}
	}
	ordered := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		ordered++
		for _, next := range dependents[id] {
			indegree[next]--
			if indegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}
	if ordered == len(tasks) {
		return nil
	}
	var cycle []string
	for _, task := range tasks {
		if indegree[task.ID] > 0 {
			cycle = append(cycle, task.ID)
		}
	}
	return cycle
}

// RunWorkflow validates the card, then executes its tasks in dependency
// order with a seeded run context. Tasks whose dependencies are all
// satisfied run concurrently; outputs are merged into the context between
// waves so each task sees a consistent snapshot. A deny gate halts the run
// without scheduling further tasks; a task error aborts it.
func (e *Engine) RunWorkflow(ctx context.Context, card domain.Card, seed map[string]any) (RunResult, error) {
	result := RunResult{Context: make(map[string]any, len(seed))}
	for k, v := range seed {
		result.Context[k] = v
	}

	if err := Validate(card); err != nil {
		return result, err
	}

	tracer := otel.Tracer("concord.workflow")
	ctx, span := tracer.Start(ctx, "workflow.run", trace.WithAttributes(
		attribute.String("card.name", card.Name),
		attribute.Int("card.version", card.Version),
		attribute.Int("card.tasks", len(card.Tasks)),
	))
	defer span.End()

	pending := make(map[string]domain.Task, len(card.Tasks))
	remaining := make(map[string]int, len(card.Tasks))
	order := make([]string, 0, len(card.Tasks))
	for _, task := range card.Tasks {
		pending[task.ID] = task
		remaining[task.ID] = len(task.DependsOn)
		order = append(order, task.ID)
	}
	done := make(map[string]bool, len(card.Tasks))

	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		// Collect the wave of tasks whose dependencies are satisfied,
		// preserving card order for deterministic scheduling.
		var wave []domain.Task
		for _, id := range order {
			task, ok := pending[id]
			if !ok || remaining[id] > 0 {
				continue
			}
			wave = append(wave, task)
		}
		if len(wave) == 0 {
			return result, fmt.Errorf("card %q: no runnable tasks remain", card.Name)
		}

		waveResults := make([]TaskResult, len(wave))
		var mu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		for i, task := range wave {
			g.Go(func() error {
				tr := e.runTask(gctx, card, task, result.Context)
				mu.Lock()
				waveResults[i] = tr
				mu.Unlock()
				if tr.Status == TaskFailed {
					return fmt.Errorf("task %q: %s", tr.TaskID, tr.Error)
				}
				return nil
			})
		}
		waveErr := g.Wait()

		// Merge wave outcomes in card order so the trace is stable.
		for _, tr := range waveResults {
			if tr.TaskID == "" {
				continue
			}
			result.Results = append(result.Results, tr)
			if tr.Decision != nil {
				result.PolicyTrace = append(result.PolicyTrace, *tr.Decision)
			}
			if tr.Status == TaskDenied {
				result.Halted = true
				if result.HaltDecision == nil {
					result.HaltDecision = tr.Decision
				}
				continue
			}
			if tr.Status == TaskCompleted {
				task := pending[tr.TaskID]
				result.Context[task.Output()] = tr.Output
			}
		}
		if waveErr != nil {
			return result, waveErr
		}
		if result.Halted {
			return result, nil
		}

		for _, task := range wave {
			delete(pending, task.ID)
			done[task.ID] = true
		}
		for id, task := range pending {
			count := 0
			for _, dep := range task.DependsOn {
				if !done[dep] {
					count++
				}
			}
			remaining[id] = count
		}
	}
	return result, nil
}

func (e *Engine) runTask(ctx context.Context, card domain.Card, task domain.Task, runCtx map[string]any) TaskResult {
	tracer := otel.Tracer("concord.workflow")
	ctx, span := tracer.Start(ctx, "workflow.task", trace.WithAttributes(
		attribute.String("task.id", task.ID),
		attribute.String("task.tool", task.ToolRef),
	))
	defer span.End()

	tr := TaskResult{TaskID: task.ID}
	start := time.Now()
	defer func() {
		tr.DurationMS = time.Since(start).Milliseconds()
		telemetry.RecordTaskMetrics(ctx, telemetry.TaskMetrics{
			CardName:    card.Name,
			CardVersion: card.Version,
			TaskID:      task.ID,
			ToolRef:     task.ToolRef,
			Outcome:     string(tr.Status),
			Duration:    time.Since(start),
		})
	}()

	tool, ok := e.tools.ResolveTool(task.ToolRef)
	if !ok {
		tr.Status = TaskFailed
		tr.Error = fmt.Sprintf("%s: %q", domain.ErrToolNotFound, task.ToolRef)
		return tr
	}

	params, err := resolveValue(task.Parameters, runCtx, task.ID)
	if err != nil {
		tr.Status = TaskFailed
		tr.Error = err.Error()
		return tr
	}
	resolved, _ := params.(map[string]any)
	if resolved == nil {
		resolved = map[string]any{}
	}

	output, err := tool.Run(ctx, resolved, runCtx)
	if err != nil {
		tr.Status = TaskFailed
		tr.Error = err.Error()
		e.logger.Error("task failed", "card", card.Name, "task", task.ID, "tool", task.ToolRef, "error", err)
		return tr
	}

	if task.Gate {
		decision, err := e.gate(ctx, task, output)
		tr.Decision = &decision
		if err != nil {
			tr.Status = TaskFailed
			tr.Error = err.Error()
			return tr
		}
		switch decision.Status {
		case domain.StatusDeny:
			tr.Status = TaskDenied
			e.logger.Warn("gate denied task output", "card", card.Name, "task", task.ID, "policy", decision.Policy)
			return tr
		case domain.StatusRedact:
			output = decision.PayloadRedacted
		}
	}

	tr.Status = TaskCompleted
	tr.Output = output
	e.logger.Debug("task completed", "card", card.Name, "task", task.ID, "tool", task.ToolRef, "duration_ms", tr.DurationMS)
	return tr
}

func (e *Engine) gate(ctx context.Context, task domain.Task, output any) (domain.PolicyDecision, error) {
	if e.policies == nil {
		return domain.PolicyDecision{}, fmt.Errorf("task %q is gated but no policy engine is configured", task.ID)
	}
	return e.policies.Enforce(ctx, task.GatePolicy, output)
}
