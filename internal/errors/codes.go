package errors

import (
	"context"
	"errors"
	"fmt"
)

// Code identifies the failure class reported on the wire in error events.
type Code string

const (
	CodeValidation             Code = "ValidationError"
	CodeUnsupportedDiagramKind Code = "UnsupportedDiagramKind"
	CodeGenerator              Code = "GeneratorError"
	CodeRender                 Code = "RenderError"
	CodeUpload                 Code = "UploadError"
	CodeTimeout                Code = "Timeout"
	CodeCancelled              Code = "Cancelled"
	CodeInternal               Code = "InternalError"
	CodeAllStrategiesExhausted Code = "AllStrategiesExhausted"
)

// DiagramError is the terminal error shape for a single request. It carries
// the wire code plus optional details; the wrapped cause stays server-side.
type DiagramError struct {
	Code    Code
	Message string
	Details string
	Err     error
}

func (e *DiagramError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return string(e.Code)
}

func (e *DiagramError) Unwrap() error {
	return e.Err
}

// CodeOf extracts the wire code from an error chain. Unclassified errors
// report InternalError so callers never leak raw causes onto the wire.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var de *DiagramError
	if errors.As(err, &de) {
		return de.Code
	}
	if errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled) {
		return CodeCancelled
	}
	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout
	}
	return CodeInternal
}

// IsRetriable reports whether a failed strategy should trigger fall-through
// to the router's next candidate. Generator and upload failures are
// retriable; validation, unsupported-kind, timeout and cancellation are not.
func IsRetriable(err error) bool {
	if err == nil {
		return false
	}
	switch CodeOf(err) {
	case CodeGenerator, CodeUpload:
		return true
	case CodeValidation, CodeUnsupportedDiagramKind, CodeTimeout, CodeCancelled, CodeInternal, CodeRender, CodeAllStrategiesExhausted:
		return false
	}
	return IsTransient(err)
}

// Sentinels for timeout and cancellation so context errors map cleanly.
var (
	ErrTimeout   = errors.New("request deadline exceeded")
	ErrCancelled = errors.New("request cancelled")
)

// NewValidationError reports a malformed or inconsistent request body.
func NewValidationError(message, details string) *DiagramError {
	return &DiagramError{Code: CodeValidation, Message: message, Details: details}
}

// NewUnsupportedDiagramKind reports a diagram type no strategy can serve.
func NewUnsupportedDiagramKind(diagramType string) *DiagramError {
	return &DiagramError{
		Code:    CodeUnsupportedDiagramKind,
		Message: fmt.Sprintf("no strategy available for diagram type %q", diagramType),
	}
}

// NewGeneratorError wraps a strategy failure that permits fall-through.
func NewGeneratorError(strategy string, err error) *DiagramError {
	return &DiagramError{
		Code:    CodeGenerator,
		Message: fmt.Sprintf("%s generation failed", strategy),
		Details: errDetails(err),
		Err:     err,
	}
}

// NewRenderError reports a terminal render failure with no fallback left.
func NewRenderError(err error) *DiagramError {
	return &DiagramError{
		Code:    CodeRender,
		Message: "rendering failed",
		Details: errDetails(err),
		Err:     err,
	}
}

// NewUploadError wraps an object store failure. Upload failures degrade to
// inline delivery before ever surfacing with this code.
func NewUploadError(err error) *DiagramError {
	return &DiagramError{
		Code:    CodeUpload,
		Message: "artifact upload failed",
		Details: errDetails(err),
		Err:     err,
	}
}

// NewTimeoutError reports the per-request wall clock being exceeded.
func NewTimeoutError(err error) *DiagramError {
	return &DiagramError{
		Code:    CodeTimeout,
		Message: "request timed out",
		Err:     errors.Join(ErrTimeout, err),
	}
}

// NewCancelledError reports client-initiated cancellation.
func NewCancelledError() *DiagramError {
	return &DiagramError{
		Code:    CodeCancelled,
		Message: "request cancelled by client",
		Err:     ErrCancelled,
	}
}

// NewInternalError wraps an unexpected failure, typically a recovered panic.
func NewInternalError(err error) *DiagramError {
	return &DiagramError{
		Code:    CodeInternal,
		Message: "internal error",
		Err:     err,
	}
}

// NewAllStrategiesExhausted reports that every routed strategy failed.
func NewAllStrategiesExhausted(diagramType string, last error) *DiagramError {
	return &DiagramError{
		Code:    CodeAllStrategiesExhausted,
		Message: fmt.Sprintf("all strategies failed for diagram type %q", diagramType),
		Details: errDetails(last),
		Err:     last,
	}
}

func errDetails(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
