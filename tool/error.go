package tool

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// ErrCodeNotFound is returned when a tool name is unknown.
	ErrCodeNotFound = "TOOL_NOT_FOUND"
	// ErrCodePrecondition is returned when required page context is missing.
	ErrCodePrecondition = "PRECONDITION_FAILED"
	// ErrCodeValidation is returned for aggregated parameter violations.
	ErrCodeValidation = "VALIDATION_FAILED"
	// ErrCodeTimeout is returned when a capability exceeds its execution bound.
	ErrCodeTimeout = "TIMEOUT"
	// ErrCodeCapability is returned when a capability fails for another reason.
	ErrCodeCapability = "CAPABILITY_FAILURE"
	// ErrCodeUnsafeInput is returned for condition input outside the grammar.
	ErrCodeUnsafeInput = "UNSAFE_INPUT"
	// ErrCodeSessionUnreachable is returned for per-session fetch failures.
	ErrCodeSessionUnreachable = "SESSION_UNREACHABLE"
	// ErrCodeNoSessions is returned when synthesis resolves zero sessions.
	ErrCodeNoSessions = "NO_SESSIONS"
	// ErrCodeQuotaExceeded is returned when the daily usage quota is spent.
	ErrCodeQuotaExceeded = "QUOTA_EXCEEDED"
)

// Error is a structured dispatch error carrying a machine-readable code.
// It flows across the registry, hosts, and the chain runner without losing
// retryability or the underlying cause.
type Error struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details,omitempty"`
	Cause     error          `json:"-"`
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	code := strings.TrimSpace(e.Code)
	msg := strings.TrimSpace(e.Message)
	switch {
	case code == "" && msg == "":
		return ErrCodeCapability
	case code == "":
		return msg
	case msg == "":
		return code
	default:
		return fmt.Sprintf("%s: %s", code, msg)
	}
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// NewError builds a structured error. An empty message falls back to the
// cause's text.
func NewError(code, message string, retryable bool, cause error) *Error {
	cleanCode := strings.TrimSpace(code)
	if cleanCode == "" {
		cleanCode = ErrCodeCapability
	}
	cleanMsg := strings.TrimSpace(message)
	if cleanMsg == "" && cause != nil {
		cleanMsg = cause.Error()
	}
	return &Error{
		Code:      cleanCode,
		Message:   cleanMsg,
		Retryable: retryable,
		Cause:     cause,
	}
}

// CodeOf extracts the machine-readable code from an error chain, or ""
// when none is present.
func CodeOf(err error) string {
	var te *Error
	if errors.As(err, &te) && te != nil {
		return te.Code
	}
	return ""
}
