package tools

import (
	"context"
	"time"

	"github.com/concordia-ai/concord-oss/pkg/sandbox"
)

// SandboxTool runs untrusted code through the sandbox executor.
type SandboxTool struct {
	executor *sandbox.Executor
}

// NewSandboxTool wraps a sandbox executor as a tool.
func NewSandboxTool(executor *sandbox.Executor) *SandboxTool {
	return &SandboxTool{executor: executor}
}

// Run executes a snippet. Parameters: language and code are required;
// timeout_ms defaults to 10000. A timed-out run is a successful tool call
// whose result carries timed_out = true.
func (t *SandboxTool) Run(ctx context.Context, params map[string]any, _ map[string]any) (any, error) {
	language, err := stringParam(params, "language")
	if err != nil {
		return nil, err
	}
	code, err := stringParam(params, "code")
	if err != nil {
		return nil, err
	}
	timeout, err := durationParam(params, "timeout_ms", 10*time.Second)
	if err != nil {
		return nil, err
	}

	result, err := t.executor.Execute(ctx, language, code, timeout)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"stdout":      result.Stdout,
		"stderr":      result.Stderr,
		"return_code": result.ReturnCode,
		"timed_out":   result.TimedOut,
		"duration_ms": result.DurationMS,
	}, nil
}
