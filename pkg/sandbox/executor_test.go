package sandbox

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/concordia-ai/concord-oss/pkg/domain"
)

func newTestExecutor(t *testing.T) (*Executor, string) {
	t.Helper()
	workRoot := t.TempDir()
	return NewExecutor(Options{WorkRoot: workRoot}), workRoot
}

func requireNoLeftoverDirs(t *testing.T, workRoot string) {
	t.Helper()
	entries, err := os.ReadDir(workRoot)
	if err != nil {
		t.Fatalf("read work root: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("working directories leaked: %v", entries)
	}
}

func TestExecuteCapturesOutput(t *testing.T) {
	executor, workRoot := newTestExecutor(t)

	result, err := executor.Execute(context.Background(), "sh", "echo hello; echo oops >&2", 5*time.Second)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if strings.TrimSpace(result.Stdout) != "hello" {
		t.Fatalf("stdout = %q", result.Stdout)
	}
	if strings.TrimSpace(result.Stderr) != "oops" {
		t.Fatalf("stderr = %q", result.Stderr)
	}
	if result.ReturnCode != 0 || result.TimedOut {
		t.Fatalf("unexpected result: %+v", result)
	}
	requireNoLeftoverDirs(t, workRoot)
}

func TestExecuteNonZeroExitIsNotAnError(t *testing.T) {
	executor, workRoot := newTestExecutor(t)

	result, err := executor.Execute(context.Background(), "sh", "exit 3", 5*time.Second)
	if err != nil {
		t.Fatalf("non-zero exit must not be an error: %v", err)
	}
	if result.ReturnCode != 3 {
		t.Fatalf("return code = %d, want 3", result.ReturnCode)
	}
	requireNoLeftoverDirs(t, workRoot)
}

func TestExecuteTimeoutIsAResultField(t *testing.T) {
	executor, workRoot := newTestExecutor(t)

	start := time.Now()
	result, err := executor.Execute(context.Background(), "sh", "sleep 30", 200*time.Millisecond)
	if err != nil {
		t.Fatalf("timeout must not be an error: %v", err)
	}
	if !result.TimedOut {
		t.Fatalf("expected timed-out result: %+v", result)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("kill took too long: %v", elapsed)
	}
	requireNoLeftoverDirs(t, workRoot)
}

func TestExecuteKillsSpawnedChildren(t *testing.T) {
	executor, workRoot := newTestExecutor(t)

	// The child spawns its own background sleeper; the whole process group
	// must be gone once Execute returns.
	result, err := executor.Execute(context.Background(), "sh", "sleep 30 & sleep 30", 200*time.Millisecond)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.TimedOut {
		t.Fatalf("expected timeout, got %+v", result)
	}
	requireNoLeftoverDirs(t, workRoot)
}

func TestExecuteUnknownLanguage(t *testing.T) {
	executor, _ := newTestExecutor(t)

	_, err := executor.Execute(context.Background(), "cobol", "DISPLAY 'HI'.", time.Second)
	if !errors.Is(err, domain.ErrUnknownLanguage) {
		t.Fatalf("expected ErrUnknownLanguage, got %v", err)
	}
}

func TestExecuteScrubsEnvironment(t *testing.T) {
	t.Setenv("SANDBOX_SECRET", "leaked")
	executor, workRoot := newTestExecutor(t)

	result, err := executor.Execute(context.Background(), "sh", "echo secret=$SANDBOX_SECRET home=$HOME", 5*time.Second)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if strings.Contains(result.Stdout, "leaked") {
		t.Fatalf("parent environment leaked into sandbox: %q", result.Stdout)
	}
	if !strings.Contains(result.Stdout, "home="+workRoot) {
		t.Fatalf("HOME should point inside the work root: %q", result.Stdout)
	}
	requireNoLeftoverDirs(t, workRoot)
}

func TestExecuteWorkingDirIsEphemeral(t *testing.T) {
	executor, workRoot := newTestExecutor(t)

	result, err := executor.Execute(context.Background(), "sh", "pwd", 5*time.Second)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	dir := strings.TrimSpace(result.Stdout)
	if filepath.Dir(dir) != workRoot {
		t.Fatalf("execution ran outside the work root: %q", dir)
	}
	if _, statErr := os.Stat(dir); !os.IsNotExist(statErr) {
		t.Fatalf("working directory still exists after execution: %q", dir)
	}
}

func TestExecuteTruncatesOutput(t *testing.T) {
	workRoot := t.TempDir()
	executor := NewExecutor(Options{WorkRoot: workRoot, MaxOutputBytes: 128})

	result, err := executor.Execute(context.Background(), "sh", "i=0; while [ $i -lt 100 ]; do echo aaaaaaaaaaaaaaaaaaaaaaaa; i=$((i+1)); done", 5*time.Second)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.HasSuffix(result.Stdout, truncationMarker) {
		t.Fatalf("expected truncation marker, got %q", result.Stdout)
	}
	if len(result.Stdout) > 128+len(truncationMarker) {
		t.Fatalf("stdout exceeds the configured bound: %d bytes", len(result.Stdout))
	}
}

func TestExecutePython(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
	executor, workRoot := newTestExecutor(t)

	result, err := executor.Execute(context.Background(), "python", "print(2 + 2)", 10*time.Second)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if strings.TrimSpace(result.Stdout) != "4" {
		t.Fatalf("stdout = %q", result.Stdout)
	}
	requireNoLeftoverDirs(t, workRoot)
}

func TestBoundedBufferStopsAtLimit(t *testing.T) {
	buf := newBoundedBuffer(8)
	if _, err := buf.Write([]byte("12345")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := buf.Write([]byte("67890")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := buf.Write([]byte("ignored")); err != nil {
		t.Fatalf("write: %v", err)
	}
	want := "12345678" + truncationMarker
	if got := buf.String(); got != want {
		t.Fatalf("buffer = %q, want %q", got, want)
	}
}
