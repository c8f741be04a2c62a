// Package apperr holds the error shapes shared by the bot's services.
package apperr

import (
	"errors"
	"fmt"
)

// ServiceError tags an unexpected failure with an operation.reason code.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

// Code returns the operation.reason code.
func (e *ServiceError) Code() string {
	return e.code
}

// NewServiceError builds a ServiceError with code "<operation>.<reason>".
func NewServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

// UserError is an input problem whose message is safe to show to the requesting user.
type UserError struct {
	message string
	err     error
}

func (e *UserError) Error() string {
	return e.message
}

func (e *UserError) Unwrap() error {
	return e.err
}

// NewUserError returns a UserError with the provided message.
func NewUserError(message string) error {
	return &UserError{message: message}
}

// UserErrorf formats a UserError. A %w verb wraps its operand like fmt.Errorf.
func UserErrorf(format string, args ...any) error {
	wrapped := fmt.Errorf(format, args...)
	return &UserError{message: wrapped.Error(), err: errors.Unwrap(wrapped)}
}

// WrapUser marks cause as user-facing while keeping it matchable with errors.Is.
func WrapUser(cause error, message string) error {
	return &UserError{message: message, err: cause}
}

// UserMessage reports the user-facing message carried by err, if any.
func UserMessage(err error) (string, bool) {
	var userErr *UserError
	if errors.As(err, &userErr) {
		return userErr.message, true
	}
	return "", false
}
