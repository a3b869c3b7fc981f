package model

import (
	"errors"
	"fmt"
)

// ErrInvariant is matched by every InvariantError via errors.Is
var ErrInvariant = errors.New("invariant violated")

func withCause(msg string, cause error) string {
	if cause == nil {
		return msg
	}
	return fmt.Sprintf("%s (%v)", msg, cause)
}

// ParseError is raised when bytes cannot be read as an NF-e at all:
// malformed XML, a foreign root element or an unreadable encoding.
type ParseError struct {
	Layout  Layout
	Field   string
	Message string
	Cause   error
}

func NewParseError(layout Layout, field, message string, cause error) *ParseError {
	return &ParseError{Layout: layout, Field: field, Message: message, Cause: cause}
}

func (e *ParseError) Error() string {
	return withCause(fmt.Sprintf("[%s] %s: %s", e.Layout, e.Field, e.Message), e.Cause)
}

func (e *ParseError) Unwrap() error { return e.Cause }

// InvariantError rejects a value whose construction rule failed, such as a
// CNPJ that is not 14 digits. Rule is the machine-readable form, e.g. "len=44".
type InvariantError struct {
	Field   string
	Value   any
	Rule    string
	Message string
}

func NewInvariantError(field string, value any, rule, message string) *InvariantError {
	return &InvariantError{Field: field, Value: value, Rule: rule, Message: message}
}

func (e *InvariantError) Error() string {
	detail := "rule=" + e.Rule
	if e.Value != nil {
		detail = fmt.Sprintf("value=%v, %s", e.Value, detail)
	}
	return fmt.Sprintf("invariant failed on %s: %s (%s)", e.Field, e.Message, detail)
}

func (e *InvariantError) Is(target error) bool { return target == ErrInvariant }

// ExtractionError wraps a failure while assembling the invoice from a parsed
// tree. Stage names the NF-e group being built.
type ExtractionError struct {
	Stage   string
	Message string
	Cause   error
}

func NewExtractionError(stage, message string, cause error) *ExtractionError {
	return &ExtractionError{Stage: stage, Message: message, Cause: cause}
}

func (e *ExtractionError) Error() string {
	return withCause(fmt.Sprintf("extraction failed [%s]: %s", e.Stage, e.Message), e.Cause)
}

func (e *ExtractionError) Unwrap() error { return e.Cause }

// FieldIssue records a node that could not be read and was replaced by its default
type FieldIssue struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

func (i FieldIssue) String() string { return i.Path + ": " + i.Reason }
