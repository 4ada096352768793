package common

import "errors"

// Error codes surfaced by the engine.
const (
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodePreconditionFailed = "PRECONDITION_FAILED"
)

// AppError represents an error with an attached code.
type AppError struct {
	Code    string
	Message string
	Err     error
	Details any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		if e.Message != "" {
			return e.Message + ": " + e.Err.Error()
		}
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

// ValidationFailed wraps a rejected input. details usually holds the violation list.
func ValidationFailed(message string, err error, details any) *AppError {
	return &AppError{Code: CodeValidationFailed, Message: message, Err: err, Details: details}
}

// PreconditionFailed wraps caller misuse such as an unknown identifier.
func PreconditionFailed(message string, err error) *AppError {
	return &AppError{Code: CodePreconditionFailed, Message: message, Err: err}
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}

// IsCode reports whether err carries an AppError with the given code.
func IsCode(err error, code string) bool {
	var target *AppError
	return errors.As(err, &target) && target.Code == code
}
