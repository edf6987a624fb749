package errors

import (
	"errors"
	"fmt"
)

// Code is a stable, machine-readable error class for bot failures.
type Code int

const (
	CodeInternal            Code = 1
	CodeConfiguration       Code = 2
	CodeInvalidInput        Code = 10
	CodeInsufficientBalance Code = 11
	CodeCorruptRecord       Code = 12
	CodeQuoteUnavailable    Code = 13
	CodeBroadcast           Code = 14
	CodeUnavailable         Code = 15
	CodeAuth                Code = 16
	CodeRateLimited         Code = 17
)

// Error is a typed error that carries a stable error code. Handlers use the
// code to decide whether to reprompt, offer a retry, or clear the flow.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code Code) bool {
	if botErr, ok := As(err); ok {
		return botErr.Code == code
	}
	return false
}

// CodeOf returns the error's code, defaulting to CodeInternal for untyped
// errors and zero for nil.
func CodeOf(err error) Code {
	if err == nil {
		return 0
	}
	if botErr, ok := As(err); ok {
		return botErr.Code
	}
	return CodeInternal
}
