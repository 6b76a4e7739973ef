package session

import (
	"fmt"
	"time"
)

// ============================================================================
// SESSION ERRORS
// ============================================================================

// SessionError represents errors in session operations
type SessionError struct {
	Session   string
	Operation string
	Message   string
	Err       error
	Timestamp time.Time
}

func (e *SessionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Session, e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Session, e.Operation, e.Message)
}

func (e *SessionError) Unwrap() error {
	return e.Err
}

// NewSessionError creates a new session error
func NewSessionError(session, operation, message string, err error) *SessionError {
	return &SessionError{
		Session:   session,
		Operation: operation,
		Message:   message,
		Err:       err,
		Timestamp: time.Now(),
	}
}
