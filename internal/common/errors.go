package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Common application errors
var (
	ErrNotFound     = errors.New("resource not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInternal     = errors.New("internal error")
	ErrDatabase     = errors.New("database error")
	ErrValidation   = errors.New("validation failed")
)

// Pipeline failure taxonomy. None of these cross the extraction boundary
// as errors; they end up as review reasons on the parsed record.
var (
	ErrDocumentConversion     = errors.New("document conversion failed")
	ErrExtractionContract     = errors.New("extraction response violates contract")
	ErrPriceSourceUnavailable = errors.New("price source unavailable")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// NotFoundError builds a NOT_FOUND AppError carrying a user-facing message.
func NotFoundError(message string) error {
	return NewAppError("NOT_FOUND", message, ErrNotFound)
}

// UnauthorizedError builds a FORBIDDEN AppError carrying a user-facing message.
func UnauthorizedError(message string) error {
	return NewAppError("FORBIDDEN", message, ErrUnauthorized)
}

// InvalidArgumentErrorf builds an INVALID_ARGUMENT AppError.
func InvalidArgumentErrorf(format string, args ...interface{}) error {
	return NewAppError("INVALID_ARGUMENT", fmt.Sprintf(format, args...), ErrInvalidInput)
}

// UserMessage returns the message of the outermost AppError, or def.
func UserMessage(err error, def string) string {
	var ae *AppError
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return def
}
