package errors

import (
	"errors"
	"fmt"
)

// AppError represents a structured application error
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new AppError with a formatted message
func Newf(code, format string, args ...interface{}) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Code:    appErr.Code,
			Message: message,
			Cause:   appErr,
		}
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an error with formatted additional context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return Wrap(err, fmt.Sprintf(format, args...))
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetCode returns the error code if it's an AppError, otherwise returns "UNKNOWN"
func GetCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN"
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	return GetCode(err) == code
}

// Predefined error codes
const (
	// CodeDomainInput flags non-finite or non-positive tenor/tau inputs
	// reaching the basis functions (a caller precondition violation).
	CodeDomainInput = "DOMAIN_INPUT"
	// CodeRankDeficient flags a weighted design matrix without full column
	// rank for a single candidate. Absorbed locally by the grid search.
	CodeRankDeficient = "RANK_DEFICIENT"
	// CodeNoValidCandidate flags a model whose tau grid produced zero
	// admissible tuples even after the guardrail fallback.
	CodeNoValidCandidate = "NO_VALID_CANDIDATE"
	// CodeNoEligibleModel flags a run where every requested model was
	// excluded by the underdetermination guardrail.
	CodeNoEligibleModel = "NO_ELIGIBLE_MODEL"
	// CodeNumericalFailure flags NaN/Inf produced in solving or prediction.
	CodeNumericalFailure = "NUMERICAL_FAILURE"

	CodeConfigInvalid = "CONFIG_INVALID"
	CodeInvalidInput  = "INVALID_INPUT"
	CodeIngestError   = "INGEST_ERROR"
	CodeExportError   = "EXPORT_ERROR"
	CodeInternalError = "INTERNAL_ERROR"
)

// Common error constructors

func DomainInput(message string) *AppError {
	return New(CodeDomainInput, message)
}

func RankDeficient(message string) *AppError {
	return New(CodeRankDeficient, message)
}

func NoValidCandidate(model string) *AppError {
	return Newf(CodeNoValidCandidate, "no valid fit candidates for model %s", model)
}

func NoEligibleModel(message string) *AppError {
	return New(CodeNoEligibleModel, message)
}

func NumericalFailure(message string) *AppError {
	return New(CodeNumericalFailure, message)
}

func ConfigInvalid(message string) *AppError {
	return New(CodeConfigInvalid, message)
}

func InvalidInput(message string) *AppError {
	return New(CodeInvalidInput, message)
}

func IngestError(message string) *AppError {
	return New(CodeIngestError, message)
}

func ExportError(message string, cause error) *AppError {
	return &AppError{
		Code:    CodeExportError,
		Message: message,
		Cause:   cause,
	}
}

func InternalError(message string) *AppError {
	return New(CodeInternalError, message)
}
