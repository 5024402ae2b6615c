package triangulate

import (
	"context"
	"errors"
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

// Router fans a task out to registered models.
type Router struct {
	models domain.ModelResolver
	logger *slog.Logger
}

// NewRouter creates a Router over the given model resolver.
func NewRouter(models domain.ModelResolver, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{models: models, logger: logger}
}

// Route dispatches task to every named model concurrently and blocks until
// all units finish or the latency budget expires. The returned slice carries
// one candidate per requested model in request order; candidates that timed
// out, errored, or were skipped by cost admission are marked with their
// outcome so the caller can audit the full dispatch.
func (r *Router) Route(ctx context.Context, task string, modelNames []string, budget time.Duration, costCeiling float64) ([]domain.ModelCandidate, error) {
	if budget <= 0 {
		return nil, fmt.Errorf("triangulate: latency budget must be positive")
	}
	if len(modelNames) == 0 {
		return nil, fmt.Errorf("triangulate: at least one model is required")
	}

	tracer := otel.Tracer("concord.triangulate")
	ctx, span := tracer.Start(ctx, "triangulate.route", trace.WithAttributes(
		attribute.Int("route.models", len(modelNames)),
		attribute.Int64("route.budget_ms", budget.Milliseconds()),
	))
	defer span.End()

	candidates := make([]domain.ModelCandidate, len(modelNames))

	type dispatch struct {
		index int
		model domain.Model
	}
	var dispatches []dispatch

	// Admission control happens before any unit starts: a model whose
	// estimated cost would breach the remaining ceiling is never invoked.
	remaining := costCeiling
	for i, name := range modelNames {
		candidates[i] = domain.ModelCandidate{ModelName: name}

		model, ok := r.models.ResolveModel(name)
		if !ok {
			candidates[i].Outcome = domain.OutcomeError
			candidates[i].Error = domain.ErrModelNotFound.Error()
			continue
		}

		if costCeiling > 0 {
			estimated := model.EstimateCost(task)
			if estimated > remaining {
				candidates[i].Outcome = domain.OutcomeSkipped
				candidates[i].Error = fmt.Sprintf("estimated cost %.4f exceeds remaining ceiling %.4f", estimated, remaining)
				r.logger.Debug("model skipped by admission control",
					"model", name,
					"estimated_cost", estimated,
					"remaining_ceiling", remaining,
				)
				continue
			}
			remaining -= estimated
		}
		dispatches = append(dispatches, dispatch{index: i, model: model})
	}

	runCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	// Units write into a guarded staging area so the join can abandon a
	// model that ignores its context: Route returns at the budget and a
	// late finisher writes only into staging, never into the returned
	// slice.
	var mu sync.Mutex
	results := make([]domain.ModelCandidate, len(modelNames))
	finished := make([]bool, len(modelNames))

	g, gctx := errgroup.WithContext(runCtx)
	for _, d := range dispatches {
		g.Go(func() error {
			c := r.invoke(gctx, d.model, candidates[d.index].ModelName, task, budget)
			mu.Lock()
			results[d.index] = c
			finished[d.index] = true
			mu.Unlock()
			return nil
		})
	}

	done := make(chan struct{})
	go func() {
		_ = g.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-runCtx.Done():
	}

	mu.Lock()
	for _, d := range dispatches {
		if finished[d.index] {
			candidates[d.index] = results[d.index]
			continue
		}
		candidates[d.index].Outcome = domain.OutcomeTimeout
		candidates[d.index].LatencyMS = budget.Milliseconds()
	}
	mu.Unlock()

	for _, c := range candidates {
		telemetry.RecordModelDispatch(ctx, telemetry.ModelDispatch{
			Model:   c.ModelName,
			Outcome: string(c.Outcome),
			Latency: time.Duration(c.LatencyMS) * time.Millisecond,
			Cost:    c.Cost,
		})
	}
	return candidates, nil
}

func (r *Router) invoke(ctx context.Context, model domain.Model, name, task string, budget time.Duration) domain.ModelCandidate {
	candidate := domain.ModelCandidate{ModelName: name}

	start := time.Now()
	output, cost, err := model.Invoke(ctx, task)
	latency := time.Since(start)
	candidate.LatencyMS = latency.Milliseconds()
	candidate.Cost = cost

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) || latency > budget:
		// The unit was abandoned at the deadline: its output is discarded
		// and the recorded latency is clamped to the budget.
		candidate.Outcome = domain.OutcomeTimeout
		candidate.LatencyMS = budget.Milliseconds()
		candidate.Output = ""
		candidate.Cost = 0
	case err != nil:
		candidate.Outcome = domain.OutcomeError
		candidate.Error = err.Error()
	default:
		candidate.Outcome = domain.OutcomeOK
		candidate.Output = output
	}
	return candidate
}

// Usable filters candidates down to those eligible for adjudication.
func Usable(candidates []domain.ModelCandidate) []domain.ModelCandidate {
	out := make([]domain.ModelCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Usable() {
			out = append(out, c)
		}
	}
	return out
}
