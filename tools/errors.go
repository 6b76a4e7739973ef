package tools

import (
	"fmt"
)

// ============================================================================
// TOOL ERRORS
// ============================================================================

// ErrorKind classifies tool failures.
type ErrorKind string

const (
	// ErrValidation covers malformed invocations: unknown tool, missing
	// required parameter. Recoverable by the caller.
	ErrValidation ErrorKind = "validation"

	// ErrExecution covers spawn failures and non-zero exits
	ErrExecution ErrorKind = "execution"

	// ErrTimeout marks a forcibly terminated invocation
	ErrTimeout ErrorKind = "timeout"

	// ErrParse marks an unusable tool source file
	ErrParse ErrorKind = "parse"
)

// ToolError represents errors in tool operations
type ToolError struct {
	Tool    string
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ToolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Tool, e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Tool, e.Kind, e.Message)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// NewToolError creates a new tool error
func NewToolError(tool string, kind ErrorKind, message string, err error) *ToolError {
	return &ToolError{
		Tool:    tool,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}
