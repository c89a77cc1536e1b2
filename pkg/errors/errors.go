// Package errors provides structured error types for consensus.
// Errors carry a stable code, a category, key-value context, an optional
// cause and remediation suggestions for the user.
package errors

import (
	"fmt"
	"sort"
	"strings"
)

// Category classifies errors for consistent handling and display.
type Category string

const (
	CategoryConfig     Category = "config"     // Configuration loading/parsing errors
	CategorySimulation Category = "simulation" // Engine runtime errors
	CategoryCommand    Category = "command"    // Shell and CLI command errors
	CategoryValidation Category = "validation" // Input validation errors
	CategoryNetwork    Category = "network"    // Transport/connectivity errors
	CategoryIO         Category = "io"         // File, export and store errors
	CategoryInternal   Category = "internal"   // Broken invariants
)

// ConsensusError is a structured error with context and suggestions.
// It implements the error interface and supports error wrapping.
type ConsensusError struct {
	// Code is a unique identifier for this error type (e.g., "CONFIG_INVALID")
	Code string

	// Category classifies this error for consistent handling
	Category Category

	// Message is the primary error message describing what went wrong
	Message string

	// Context provides additional key-value details about the error
	Context map[string]string

	// Cause is the underlying error that triggered this error
	Cause error

	// Suggestions are actionable remediation steps for the user
	Suggestions []string
}

// Error implements the error interface.
func (e *ConsensusError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain inspection.
func (e *ConsensusError) Unwrap() error {
	return e.Cause
}

// Is reports whether e matches target for errors.Is() checks.
// Two ConsensusErrors match if they have the same Code.
func (e *ConsensusError) Is(target error) bool {
	if t, ok := target.(*ConsensusError); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a new ConsensusError with the given code, category, and message.
func New(code string, category Category, message string) *ConsensusError {
	return &ConsensusError{
		Code:     code,
		Category: category,
		Message:  message,
		Context:  make(map[string]string),
	}
}

// WithContext adds a context key-value pair and returns the error for chaining.
func (e *ConsensusError) WithContext(key, value string) *ConsensusError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// WithCause wraps an underlying error and returns the error for chaining.
func (e *ConsensusError) WithCause(cause error) *ConsensusError {
	e.Cause = cause
	return e
}

// WithSuggestion adds a remediation suggestion and returns the error for chaining.
func (e *ConsensusError) WithSuggestion(suggestion string) *ConsensusError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// HasContext returns true if the error has context information.
func (e *ConsensusError) HasContext() bool {
	return len(e.Context) > 0
}

// HasSuggestions returns true if the error has suggestions.
func (e *ConsensusError) HasSuggestions() bool {
	return len(e.Suggestions) > 0
}

// ContextString returns the context entries as sorted key="value" pairs.
func (e *ConsensusError) ContextString() string {
	if len(e.Context) == 0 {
		return ""
	}
	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", k, e.Context[k]))
	}
	return strings.Join(parts, ", ")
}

// Wrap wraps an existing error with a ConsensusError.
func Wrap(err error, code string, category Category, message string) *ConsensusError {
	return New(code, category, message).WithCause(err)
}

// AsConsensusError attempts to convert an error to a ConsensusError.
// Wrapped chains are searched, so a ConsensusError behind fmt.Errorf("%w") is found.
func AsConsensusError(err error) (*ConsensusError, bool) {
	for err != nil {
		if ce, ok := err.(*ConsensusError); ok {
			return ce, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = u.Unwrap()
	}
	return nil, false
}

// IsCategory checks if an error is a ConsensusError with the given category.
func IsCategory(err error, category Category) bool {
	if ce, ok := AsConsensusError(err); ok {
		return ce.Category == category
	}
	return false
}

// IsCode checks if an error is a ConsensusError with the given code.
func IsCode(err error, code string) bool {
	if ce, ok := AsConsensusError(err); ok {
		return ce.Code == code
	}
	return false
}

// -----------------------------------------------------------------------------
// Constructors
// -----------------------------------------------------------------------------
// The constructors below attach suggestions from the default registry.

// Config creates a configuration error with suggestions attached.
func Config(code, message string) *ConsensusError {
	return AttachSuggestions(New(code, CategoryConfig, message))
}

// Configf creates a configuration error with a formatted message.
func Configf(code, format string, args ...interface{}) *ConsensusError {
	return Config(code, fmt.Sprintf(format, args...))
}

// ConfigWrap wraps an error as a configuration error.
func ConfigWrap(cause error, code, message string) *ConsensusError {
	return AttachSuggestions(Wrap(cause, code, CategoryConfig, message))
}

// InvalidField creates an ErrConfigInvalid error for one config field.
// The field is set as context before suggestions are looked up, so
// field-specific hints apply.
func InvalidField(field, format string, args ...interface{}) *ConsensusError {
	err := New(ErrConfigInvalid, CategoryConfig, fmt.Sprintf(format, args...)).
		WithContext(ContextField, field)
	return AttachSuggestions(err)
}

// Simulation creates an engine error.
func Simulation(code, message string) *ConsensusError {
	return AttachSuggestions(New(code, CategorySimulation, message))
}

// Command creates a shell or CLI command error.
func Command(code, message string) *ConsensusError {
	return AttachSuggestions(New(code, CategoryCommand, message))
}

// Commandf creates a command error with a formatted message.
func Commandf(code, format string, args ...interface{}) *ConsensusError {
	return Command(code, fmt.Sprintf(format, args...))
}

// Validationf creates a validation error with a formatted message.
func Validationf(code, format string, args ...interface{}) *ConsensusError {
	return AttachSuggestions(New(code, CategoryValidation, fmt.Sprintf(format, args...)))
}

// NetworkWrap wraps an error as a network error.
func NetworkWrap(cause error, code, message string) *ConsensusError {
	return AttachSuggestions(Wrap(cause, code, CategoryNetwork, message))
}

// IO creates a file/IO error.
func IO(code, message string) *ConsensusError {
	return AttachSuggestions(New(code, CategoryIO, message))
}

// IOWrap wraps an error as an IO error.
func IOWrap(cause error, code, message string) *ConsensusError {
	return AttachSuggestions(Wrap(cause, code, CategoryIO, message))
}

// Internal creates an internal error for broken invariants.
func Internal(code, message string) *ConsensusError {
	return AttachSuggestions(New(code, CategoryInternal, message))
}
