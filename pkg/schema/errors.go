package schema

import (
	"errors"
	"fmt"
)

// Error codes for structured error reporting.
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeDecode        = "DECODE_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeEmptyWorkflow = "EMPTY_WORKFLOW"
	ErrCodeStore         = "STORE_ERROR"
	ErrCodeExpression    = "EXPRESSION_ERROR"
)

// SOPError is the structured error type returned by every layer around the
// progress engine. The engine itself never fails.
type SOPError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	NodeID  string         `json:"node_id,omitempty"`
	Cause   error          `json:"-"`
}

func (e *SOPError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("[%s] node %s: %s", e.Code, e.NodeID, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *SOPError) Unwrap() error {
	return e.Cause
}

// NewError creates a new SOPError.
func NewError(code, message string) *SOPError {
	return &SOPError{Code: code, Message: message}
}

// NewErrorf creates a new SOPError with a formatted message.
func NewErrorf(code, format string, args ...any) *SOPError {
	return &SOPError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithNode attaches a node ID to the error.
func (e *SOPError) WithNode(nodeID string) *SOPError {
	e.NodeID = nodeID
	return e
}

// WithCause attaches an underlying cause.
func (e *SOPError) WithCause(err error) *SOPError {
	e.Cause = err
	return e
}

// WithDetails attaches key-value details.
func (e *SOPError) WithDetails(details map[string]any) *SOPError {
	e.Details = details
	return e
}

// IsCode reports whether err wraps a *SOPError carrying code.
func IsCode(err error, code string) bool {
	var sopErr *SOPError
	return errors.As(err, &sopErr) && sopErr.Code == code
}
