// Package errors provides structured error handling for reconengine operations.
// It defines error codes, error types and the mapping from an error to the
// class of failure a caller should report (input, resolution, cancellation
// or internal).
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents different types of errors that can occur.
type ErrorCode string

const (
	// General errors.
	CodeUnknown       ErrorCode = "UNKNOWN"
	CodeValidation    ErrorCode = "VALIDATION"
	CodeConfiguration ErrorCode = "CONFIGURATION"
	CodeCanceled      ErrorCode = "CANCELED"
	CodeNotFound      ErrorCode = "NOT_FOUND"

	// Scan input and resolution errors.
	CodeTargetInvalid    ErrorCode = "TARGET_INVALID"
	CodeResolutionFailed ErrorCode = "RESOLUTION_FAILED"
	CodeTooManyPorts     ErrorCode = "TOO_MANY_PORTS"
	CodePortInvalid      ErrorCode = "PORT_INVALID"
	CodeScanFailed       ErrorCode = "SCAN_FAILED"

	// Database errors.
	CodeDatabaseConnection ErrorCode = "DATABASE_CONNECTION"
	CodeDatabaseQuery      ErrorCode = "DATABASE_QUERY"
	CodeDatabaseMigration  ErrorCode = "DATABASE_MIGRATION"
)

// Class groups error codes by how a caller is expected to react to them.
type Class string

const (
	// ClassInput errors are rejected before any socket opens and are fully
	// correctable by the caller.
	ClassInput Class = "input"
	// ClassResolution errors come from the single forward address lookup.
	ClassResolution Class = "resolution"
	// ClassCancellation errors abort a whole scan with no partial report.
	ClassCancellation Class = "cancellation"
	// ClassInternal covers everything unclassified.
	ClassInternal Class = "internal"
)

// Sentinels usable with errors.Is. A *ScanError matches the sentinel that
// carries the same code.
var (
	ErrInvalidTargetFormat = &ScanError{Code: CodeTargetInvalid, Message: "Invalid IP address or hostname format"}
	ErrResolutionFailed    = &ScanError{Code: CodeResolutionFailed, Message: "Target could not be resolved"}
	ErrTooManyPorts        = &ScanError{Code: CodeTooManyPorts, Message: "Too many ports requested"}
	ErrInvalidPort         = &ScanError{Code: CodePortInvalid, Message: "Port must be an integer between 1 and 65535"}
	ErrCancelled           = &ScanError{Code: CodeCanceled, Message: "Scan was cancelled"}
)

// ScanError represents an error that occurred during scanning operations.
type ScanError struct {
	Code      ErrorCode
	Message   string
	Target    string
	Operation string
	Cause     error
	Context   map[string]interface{}
}

// Error implements the error interface.
func (e *ScanError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("[%s] %s (target: %s)", e.Code, e.Message, e.Target)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ScanError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a *ScanError with the same code.
func (e *ScanError) Is(target error) bool {
	t, ok := target.(*ScanError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// WithContext adds context information to the error.
func (e *ScanError) WithContext(key string, value interface{}) *ScanError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewScanError creates a new scan error with the specified code and message.
func NewScanError(code ErrorCode, message string) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// NewScanErrorWithTarget creates a scan error for a specific target.
func NewScanErrorWithTarget(code ErrorCode, message, target string) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Target:  target,
		Context: make(map[string]interface{}),
	}
}

// WrapScanError wraps an existing error as a scan error.
func WrapScanError(code ErrorCode, message string, err error) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Cause:   err,
		Context: make(map[string]interface{}),
	}
}

// WrapScanErrorWithTarget wraps an error with target information.
func WrapScanErrorWithTarget(code ErrorCode, message, target string, err error) *ScanError {
	return &ScanError{
		Code:    code,
		Message: message,
		Target:  target,
		Cause:   err,
		Context: make(map[string]interface{}),
	}
}

// DatabaseError represents database-related errors.
type DatabaseError struct {
	Code      ErrorCode
	Message   string
	Operation string
	Cause     error
}

// Error implements the error interface.
func (e *DatabaseError) Error() string {
	if e.Operation != "" {
		return fmt.Sprintf("[%s] %s (operation: %s)", e.Code, e.Message, e.Operation)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *DatabaseError) Unwrap() error {
	return e.Cause
}

// NewDatabaseError creates a new database error.
func NewDatabaseError(code ErrorCode, message string) *DatabaseError {
	return &DatabaseError{Code: code, Message: message}
}

// WrapDatabaseError wraps an existing error as a database error.
func WrapDatabaseError(code ErrorCode, message, operation string, err error) *DatabaseError {
	return &DatabaseError{
		Code:      code,
		Message:   message,
		Operation: operation,
		Cause:     err,
	}
}

// ConfigError represents configuration-related errors.
type ConfigError struct {
	Code    ErrorCode
	Message string
	Field   string
	Value   interface{}
	Cause   error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("[%s] %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// NewConfigFieldError creates a configuration error for a specific field.
func NewConfigFieldError(code ErrorCode, message, field string, value interface{}) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
		Field:   field,
		Value:   value,
	}
}

// WrapConfigError wraps an existing error as a configuration error.
func WrapConfigError(code ErrorCode, message string, err error) *ConfigError {
	return &ConfigError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Utility functions for common error operations

// GetCode extracts the error code from an error chain if it has one.
func GetCode(err error) ErrorCode {
	var scanErr *ScanError
	if stderrors.As(err, &scanErr) {
		return scanErr.Code
	}
	var dbErr *DatabaseError
	if stderrors.As(err, &dbErr) {
		return dbErr.Code
	}
	var cfgErr *ConfigError
	if stderrors.As(err, &cfgErr) {
		return cfgErr.Code
	}
	return CodeUnknown
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && GetCode(err) == code
}

// IsNotFound reports whether err signals a missing resource.
func IsNotFound(err error) bool {
	return IsCode(err, CodeNotFound)
}

// ClassOf maps an error to its failure class.
func ClassOf(err error) Class {
	switch GetCode(err) {
	case CodeTargetInvalid, CodeTooManyPorts, CodePortInvalid, CodeValidation:
		return ClassInput
	case CodeResolutionFailed:
		return ClassResolution
	case CodeCanceled:
		return ClassCancellation
	default:
		return ClassInternal
	}
}

// HTTPStatus returns the transport status a caller should use for err.
func HTTPStatus(err error) int {
	switch ClassOf(err) {
	case ClassInput, ClassResolution:
		return http.StatusBadRequest
	case ClassCancellation:
		return http.StatusRequestTimeout
	}
	if IsNotFound(err) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// Common error creation functions

// ErrInvalidTarget creates an error for a target that is neither a dotted-quad
// IPv4 address nor a valid hostname.
func ErrInvalidTarget(target string) *ScanError {
	return NewScanErrorWithTarget(CodeTargetInvalid, ErrInvalidTargetFormat.Message, target)
}

// ErrResolution creates an error for a failed forward lookup.
func ErrResolution(target string, err error) *ScanError {
	return WrapScanErrorWithTarget(CodeResolutionFailed, ErrResolutionFailed.Message, target, err)
}

// ErrPortLimit creates an error for a request exceeding the port cap.
func ErrPortLimit(requested, limit int) *ScanError {
	return NewScanError(CodeTooManyPorts, fmt.Sprintf("Maximum %d ports can be scanned at once", limit)).
		WithContext("requested", requested).
		WithContext("limit", limit)
}

// ErrPortValue creates an error for a port outside [1,65535].
func ErrPortValue(port int) *ScanError {
	return NewScanError(CodePortInvalid, fmt.Sprintf("Invalid port %d: must be between 1 and 65535", port)).
		WithContext("port", port)
}

// ErrScanCancelled creates an error for a scan aborted by its caller.
func ErrScanCancelled(target string, err error) *ScanError {
	return WrapScanErrorWithTarget(CodeCanceled, ErrCancelled.Message, target, err)
}

// ErrConfigInvalid creates an error for invalid configuration.
func ErrConfigInvalid(field string, value interface{}) *ConfigError {
	return NewConfigFieldError(CodeValidation, "Invalid configuration value", field, value)
}
