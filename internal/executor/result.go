package executor

import "time"

// Phase names the step a run ended in.
type Phase string

const (
	PhaseCompile Phase = "compile"
	PhaseRun     Phase = "run"
)

// Labels and messages written into RunResult.Output.
const (
	CompileErrorLabel = "compile error: "
	RuntimeErrorLabel = "runtime error: "
	MsgExecFailed     = "error: failed to execute program"
	MsgBadOutput      = "error: could not decode program output"
)

// RunRequest is one invocation against a source file.
type RunRequest struct {
	SourcePath string
	Stdin      string
}

// RunResult holds the outcome of a run.
type RunResult struct {
	ID         string        `json:"id"`                  // unique identifier for this run
	SourcePath string        `json:"source_path"`
	Phase      Phase         `json:"phase"`               // step the run ended in
	ExitCode   *int          `json:"exit_code,omitempty"` // nil if nothing ran to completion
	Output     string        `json:"output"`              // labelled stderr, then stdout
	Truncated  bool          `json:"truncated,omitempty"` // true if a stream exceeded the size cap
	Duration   time.Duration `json:"duration"`
}

// Code returns the exit code, or fallback when there is none.
func (r RunResult) Code(fallback int) int {
	if r.ExitCode == nil {
		return fallback
	}
	return *r.ExitCode
}

func intPtr(v int) *int { return &v }
