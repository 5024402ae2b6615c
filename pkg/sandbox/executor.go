// Package sandbox runs untrusted code in isolated, time-boxed, auto-cleaned
// processes.
//
// Every execution gets a fresh working directory, a scrubbed environment with
// no inherited secrets, and a hard wall-clock timeout that force-kills the
// process group on expiry. The directory is removed on every exit path.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/concordia-ai/concord-oss/pkg/domain"
)

const (
	// DefaultMaxOutputBytes bounds each captured stream.
	DefaultMaxOutputBytes = 64 * 1024
	// truncationMarker is appended to a stream cut off at the buffer limit.
	truncationMarker = "\n...[output truncated]"
)

// LanguageSpec describes how to launch code for one language. Command entries
// may contain the {file} placeholder, replaced with the written source path.
type LanguageSpec struct {
	FileName string
	Command  []string
}

// Options configure executor construction.
type Options struct {
	// WorkRoot is the parent directory for per-execution temp dirs; empty
	// selects the system temp dir.
	WorkRoot       string
	MaxOutputBytes int
	Logger         *slog.Logger
	Metrics        *Metrics
}

// Executor runs code through a per-language command-template table. python is
// the mandatory baseline; additional languages register behind the same
// contract.
type Executor struct {
	mu        sync.RWMutex
	languages map[string]LanguageSpec
	workRoot  string
	maxOutput int
	logger    *slog.Logger
	metrics   *Metrics
}

// NewExecutor creates an Executor with the python and sh baselines.
func NewExecutor(opts Options) *Executor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxOutput := opts.MaxOutputBytes
	if maxOutput <= 0 {
		maxOutput = DefaultMaxOutputBytes
	}

	e := &Executor{
		languages: make(map[string]LanguageSpec),
		workRoot:  opts.WorkRoot,
		maxOutput: maxOutput,
		logger:    logger,
		metrics:   opts.Metrics,
	}
	e.RegisterLanguage("python", LanguageSpec{FileName: "main.py", Command: []string{"python3", "{file}"}})
	e.RegisterLanguage("sh", LanguageSpec{FileName: "main.sh", Command: []string{"sh", "{file}"}})
	return e
}

// RegisterLanguage adds or replaces a language entry.
func (e *Executor) RegisterLanguage(name string, spec LanguageSpec) {
	e.mu.Lock()
	e.languages[strings.ToLower(strings.TrimSpace(name))] = spec
	e.mu.Unlock()
}

// Execute writes code into an ephemeral working directory and runs it in an
// isolated process. A timeout is an expected terminal outcome reported
// through the result, not an error. Concurrent calls never share a working
// directory.
func (e *Executor) Execute(ctx context.Context, language, code string, timeout time.Duration) (domain.SandboxExecutionResult, error) {
	e.mu.RLock()
	spec, ok := e.languages[strings.ToLower(strings.TrimSpace(language))]
	e.mu.RUnlock()
	if !ok {
		return domain.SandboxExecutionResult{}, fmt.Errorf("sandbox: %q: %w", language, domain.ErrUnknownLanguage)
	}
	if timeout <= 0 {
		return domain.SandboxExecutionResult{}, fmt.Errorf("sandbox: timeout must be positive")
	}

	dir, err := os.MkdirTemp(e.workRoot, "concord-sandbox-*")
	if err != nil {
		return domain.SandboxExecutionResult{}, fmt.Errorf("sandbox: create working directory: %w", err)
	}
	// The directory is destroyed on every exit path: success, error, timeout.
	defer func() {
		if rmErr := os.RemoveAll(dir); rmErr != nil {
			e.logger.Warn("sandbox cleanup failed", "dir", dir, "error", rmErr)
		}
	}()

	file := filepath.Join(dir, spec.FileName)
	if err := os.WriteFile(file, []byte(code), 0o600); err != nil {
		return domain.SandboxExecutionResult{}, fmt.Errorf("sandbox: write code file: %w", err)
	}

	argv := make([]string, len(spec.Command))
	for i, arg := range spec.Command {
		argv[i] = strings.ReplaceAll(arg, "{file}", file)
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Dir = dir
	cmd.Env = scrubbedEnv(dir)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	// Kill the whole process group so spawned children cannot outlive the
	// timeout.
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = time.Second

	stdout := newBoundedBuffer(e.maxOutput)
	stderr := newBoundedBuffer(e.maxOutput)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	runErr := cmd.Run()
	duration := time.Since(start)
	timedOut := errors.Is(runCtx.Err(), context.DeadlineExceeded)

	result := domain.SandboxExecutionResult{
		Stdout:     stdout.String(),
		Stderr:     stderr.String(),
		ReturnCode: exitCode(cmd, runErr),
		TimedOut:   timedOut,
		DurationMS: duration.Milliseconds(),
	}

	outcome := "success"
	switch {
	case timedOut:
		outcome = "timeout"
	case runErr != nil:
		outcome = "failure"
	}
	e.logger.Debug("sandbox execution finished",
		"language", language,
		"outcome", outcome,
		"returncode", result.ReturnCode,
		"duration_ms", result.DurationMS,
	)
	if e.metrics != nil {
		e.metrics.RecordExecution(language, outcome, duration)
	}

	// Launch failures (missing interpreter, unreadable file) are real
	// errors; non-zero exits and timeouts are expected terminal outcomes.
	if runErr != nil && !timedOut {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return result, fmt.Errorf("sandbox: launch %s: %w", argv[0], runErr)
		}
	}
	return result, nil
}

// scrubbedEnv builds a minimal environment: no secrets from the parent
// process leak into sandboxed code.
func scrubbedEnv(dir string) []string {
	path := os.Getenv("PATH")
	if path == "" {
		path = "/usr/local/bin:/usr/bin:/bin"
	}
	return []string{
		"PATH=" + path,
		"HOME=" + dir,
		"TMPDIR=" + dir,
		"LANG=C.UTF-8",
	}
}

func exitCode(cmd *exec.Cmd, runErr error) int {
	if cmd.ProcessState != nil {
		return cmd.ProcessState.ExitCode()
	}
	if runErr != nil {
		return -1
	}
	return 0
}

// boundedBuffer captures at most limit bytes and appends a truncation marker
// once the limit is crossed. Writes stay O(limit) in memory regardless of how
// much the child emits.
type boundedBuffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func newBoundedBuffer(limit int) *boundedBuffer {
	return &boundedBuffer{limit: limit}
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.truncated {
		return len(p), nil
	}
	remaining := b.limit - b.buf.Len()
	if remaining <= 0 {
		b.truncated = true
		b.buf.WriteString(truncationMarker)
		return len(p), nil
	}
	if len(p) > remaining {
		b.buf.Write(p[:remaining])
		b.truncated = true
		b.buf.WriteString(truncationMarker)
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *boundedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
