package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sort"
	"time"

	"github.com/candralab/stanza/config"
)

// ============================================================================
// TOOL DISPATCHER
// ============================================================================

// ToolResult is the outcome of one tool invocation.
type ToolResult struct {
	Success       bool          `json:"success"`
	Output        string        `json:"output,omitempty"`
	Error         string        `json:"error,omitempty"`
	ToolName      string        `json:"tool_name"`
	ErrorKind     ErrorKind     `json:"error_kind,omitempty"`
	ExecutionTime time.Duration `json:"execution_time,omitempty"`
	ExitCode      int           `json:"exit_code,omitempty"`
}

// Dispatcher runs tool scripts as child processes with argument vectors.
// Arguments are never interpolated into a shell string.
type Dispatcher struct {
	cfg *config.ToolsConfig
}

// NewDispatcher creates a dispatcher honoring the configured timeouts.
func NewDispatcher(cfg *config.ToolsConfig) *Dispatcher {
	return &Dispatcher{cfg: cfg}
}

// Execute runs the described tool with the given arguments. Missing required
// parameters fail validation before any process is spawned. The child is
// bounded by the configured timeout and always reaped.
func (d *Dispatcher) Execute(ctx context.Context, desc *Descriptor, args map[string]string) ToolResult {
	if desc == nil {
		return ToolResult{
			Success:   false,
			Error:     "tool descriptor cannot be nil",
			ErrorKind: ErrValidation,
		}
	}

	for _, name := range desc.RequiredParameters() {
		if _, ok := args[name]; !ok {
			return ToolResult{
				Success:   false,
				ToolName:  desc.Name,
				Error:     fmt.Sprintf("missing required parameter: %s", name),
				ErrorKind: ErrValidation,
			}
		}
	}

	timeout := d.cfg.ExecTimeout(desc.Name)
	execCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	argv := buildArgv(desc, args)
	cmd := exec.CommandContext(execCtx, desc.Interpreter(), argv...)

	// Give a stuck child a short grace period after kill before Wait
	// returns, so the dispatcher never leaks a zombie
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	result := ToolResult{
		Success:       err == nil,
		Output:        stdout.String(),
		ToolName:      desc.Name,
		ExecutionTime: elapsed,
	}

	if err != nil {
		switch {
		case execCtx.Err() == context.DeadlineExceeded:
			result.ErrorKind = ErrTimeout
			result.Error = fmt.Sprintf("tool timed out after %s", timeout)
		default:
			result.ErrorKind = ErrExecution
			result.Error = err.Error()
			if stderr.Len() > 0 {
				result.Error += ": " + stderr.String()
			}
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		}
	}
	return result
}

// buildArgv produces the argument vector after the script path: declared
// parameters in declaration order, then any extra arguments sorted by key.
func buildArgv(desc *Descriptor, args map[string]string) []string {
	argv := []string{desc.Path}

	seen := make(map[string]bool, len(args))
	for _, p := range desc.Parameters {
		value, ok := args[p.Name]
		if !ok {
			continue
		}
		argv = append(argv, "--"+p.Name, value)
		seen[p.Name] = true
	}

	var extras []string
	for key := range args {
		if !seen[key] {
			extras = append(extras, key)
		}
	}
	sort.Strings(extras)
	for _, key := range extras {
		argv = append(argv, "--"+key, args[key])
	}
	return argv
}
