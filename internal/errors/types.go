package errors

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// ErrorType classifies errors for retry and fallback decisions.
type ErrorType int

const (
	// ErrorTypeTransient - retry-able errors
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent - non-retry-able errors
	ErrorTypePermanent
	// ErrorTypeDegraded - can continue with reduced output
	ErrorTypeDegraded
)

// TransientError represents an error that can be retried
type TransientError struct {
	Err        error
	RetryAfter int    // Seconds to wait before retry (from Retry-After header)
	StatusCode int    // HTTP status code if applicable
	Message    string // Operator-facing message
}

func (e *TransientError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("transient error: %v", e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// PermanentError represents an error that should not be retried
type PermanentError struct {
	Err        error
	StatusCode int    // HTTP status code if applicable
	Message    string // Operator-facing message
}

func (e *PermanentError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("permanent error: %v", e.Err)
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// DegradedError represents an error where the pipeline can continue with
// reduced output. FallbackContent carries the partial artifact, e.g. the
// Mermaid DSL when the CLI renderer is unavailable.
type DegradedError struct {
	Err             error
	FallbackContent string
	Message         string
}

func (e *DegradedError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("degraded error: %v", e.Err)
}

func (e *DegradedError) Unwrap() error {
	return e.Err
}

// IsTransient checks if an error is retry-able
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var transientErr *TransientError
	if errors.As(err, &transientErr) {
		return true
	}

	var permanentErr *PermanentError
	if errors.As(err, &permanentErr) {
		return false
	}

	// Network errors (connection refused, timeout, etc.)
	if isNetworkError(err) {
		return true
	}

	if statusCode := HTTPStatusCode(err); statusCode > 0 {
		return IsTransientHTTPStatus(statusCode)
	}

	if isSyscallError(err) {
		return true
	}

	return false
}

// IsPermanent checks if an error is non-retry-able
func IsPermanent(err error) bool {
	if err == nil {
		return false
	}

	var permanentErr *PermanentError
	if errors.As(err, &permanentErr) {
		return true
	}

	var transientErr *TransientError
	if errors.As(err, &transientErr) {
		return false
	}

	if statusCode := HTTPStatusCode(err); statusCode > 0 {
		return IsPermanentHTTPStatus(statusCode)
	}

	return false
}

// IsDegraded checks if an error carries fallback content
func IsDegraded(err error) bool {
	var degradedErr *DegradedError
	return errors.As(err, &degradedErr)
}

// FallbackContent extracts the partial artifact from a degraded error, if any.
func FallbackContent(err error) (string, bool) {
	var degradedErr *DegradedError
	if errors.As(err, &degradedErr) {
		return degradedErr.FallbackContent, true
	}
	return "", false
}

// GetErrorType classifies an error
func GetErrorType(err error) ErrorType {
	if err == nil {
		return ErrorTypePermanent
	}

	if IsDegraded(err) {
		return ErrorTypeDegraded
	}

	if IsTransient(err) {
		return ErrorTypeTransient
	}

	// Default to permanent to avoid infinite retries
	return ErrorTypePermanent
}

func isNetworkError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTimeout || dnsErr.IsTemporary
	}

	errStr := strings.ToLower(err.Error())
	networkPatterns := []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"timeout",
		"deadline exceeded",
	}
	for _, pattern := range networkPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

func isSyscallError(err error) bool {
	var syscallErr syscall.Errno
	if errors.As(err, &syscallErr) {
		switch syscallErr {
		case syscall.ECONNREFUSED, syscall.ECONNRESET, syscall.EPIPE,
			syscall.ETIMEDOUT, syscall.ENETUNREACH, syscall.EHOSTUNREACH:
			return true
		}
	}
	return false
}

// IsTransientHTTPStatus reports whether an HTTP status warrants a retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests, // 429
		http.StatusInternalServerError, // 500
		http.StatusBadGateway,          // 502
		http.StatusServiceUnavailable,  // 503
		http.StatusGatewayTimeout:      // 504
		return true
	}
	return statusCode >= 500
}

// IsPermanentHTTPStatus reports whether an HTTP status should never be retried.
func IsPermanentHTTPStatus(statusCode int) bool {
	return statusCode >= 400 && statusCode < 500 && statusCode != http.StatusTooManyRequests
}

// HTTPStatusCode extracts a status code from transient/permanent wrappers.
// Returns 0 when the error carries no status.
func HTTPStatusCode(err error) int {
	var transientErr *TransientError
	if errors.As(err, &transientErr) && transientErr.StatusCode > 0 {
		return transientErr.StatusCode
	}
	var permanentErr *PermanentError
	if errors.As(err, &permanentErr) && permanentErr.StatusCode > 0 {
		return permanentErr.StatusCode
	}
	return 0
}

// NewTransientError creates a new transient error with an operator-facing message
func NewTransientError(err error, message string) *TransientError {
	return &TransientError{
		Err:     err,
		Message: message,
	}
}

// NewTransientStatusError creates a transient error carrying an HTTP status.
func NewTransientStatusError(err error, statusCode int, retryAfter int) *TransientError {
	return &TransientError{
		Err:        err,
		StatusCode: statusCode,
		RetryAfter: retryAfter,
	}
}

// NewPermanentError creates a new permanent error with an operator-facing message
func NewPermanentError(err error, message string) *PermanentError {
	return &PermanentError{
		Err:     err,
		Message: message,
	}
}

// NewPermanentStatusError creates a permanent error carrying an HTTP status.
func NewPermanentStatusError(err error, statusCode int) *PermanentError {
	return &PermanentError{
		Err:        err,
		StatusCode: statusCode,
	}
}

// NewDegradedError creates a new degraded error with fallback content
func NewDegradedError(err error, message, fallback string) *DegradedError {
	return &DegradedError{
		Err:             err,
		Message:         message,
		FallbackContent: fallback,
	}
}
