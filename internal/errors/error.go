package errors

import (
	"fmt"
)

// Category groups engine errors by the layer that raised them.
type Category string

const (
	CategoryConfig    Category = "config"
	CategoryInvariant Category = "invariant"
	CategoryRuntime   Category = "runtime"
	CategoryInspector Category = "inspector"
	CategoryCLI       Category = "cli"
)

// EngineError is a structured error with a stable code, a hint and an
// optional wrapped cause.
type EngineError struct {
	// Code is a unique error identifier (e.g., "E101").
	Code string

	// Category is the error type (config, invariant, ...).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// DocURL is a link to documentation about this error.
	DocURL string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *EngineError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *EngineError) Unwrap() error {
	return e.Wrapped
}

// WithSuggestion adds a fix suggestion to the error.
func (e *EngineError) WithSuggestion(s string) *EngineError {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *EngineError) WithDetail(d string) *EngineError {
	e.Detail = d
	return e
}

// WithDetailf is WithDetail with fmt formatting.
func (e *EngineError) WithDetailf(format string, args ...any) *EngineError {
	e.Detail = fmt.Sprintf(format, args...)
	return e
}

// Wrap wraps another error.
func (e *EngineError) Wrap(err error) *EngineError {
	e.Wrapped = err
	return e
}

// New creates an EngineError from a registered error code.
func New(code string) *EngineError {
	template, ok := registry[code]
	if !ok {
		return &EngineError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &EngineError{
		Code:       code,
		Category:   template.Category,
		Message:    template.Message,
		Suggestion: template.Suggestion,
		DocURL:     template.DocURL,
	}
}

// Newf creates a new EngineError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *EngineError {
	return &EngineError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in an EngineError.
func FromError(err error, code string) *EngineError {
	if err == nil {
		return nil
	}
	if ee, ok := err.(*EngineError); ok {
		return ee
	}
	return New(code).Wrap(err)
}
