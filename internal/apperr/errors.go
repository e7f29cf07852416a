package apperr

import "errors"

// Code classifies a failure so callers can decide how to surface it.
type Code string

const (
	CodeFetch       Code = "fetch_failure"
	CodePersistence Code = "persistence_failure"
	CodeValidation  Code = "validation_failure"
	CodeIndexRange  Code = "index_out_of_range"
	CodeNotFound    Code = "not_found"
)

// AppError encodes domain specific error details.
type AppError struct {
	Code    Code
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Wrap produces a new AppError instance.
func Wrap(code Code, message string, err error) error {
	return &AppError{Code: code, Message: message, Err: err}
}

// New produces an AppError without an underlying cause.
func New(code Code, message string) error {
	return &AppError{Code: code, Message: message}
}

// IsCode reports whether any error in err's chain is an AppError with code.
func IsCode(err error, code Code) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// CodeOf returns the code of the first AppError in err's chain.
func CodeOf(err error) (Code, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code, true
	}
	return "", false
}
