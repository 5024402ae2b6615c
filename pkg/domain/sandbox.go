package domain

// SandboxExecutionResult captures the terminal state of a sandboxed code run.
// A timeout is an expected outcome and is reported through TimedOut rather
// than as an error; output streams are captured with a bounded buffer and
// truncated past the limit.
type SandboxExecutionResult struct {
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	ReturnCode int    `json:"returncode"`
	TimedOut   bool   `json:"timed_out"`
	DurationMS int64  `json:"duration_ms"`
}
