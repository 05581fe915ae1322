// Package domainerrors defines the closed error taxonomy shared by services.
// Stores return sentinel errors; services translate them into coded domain
// errors so routers and transports can pick user-facing behavior off the code
// alone.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error. The set is closed on purpose: routing logic
// switches on codes, and an unknown code is a bug, not an extension point.
type Code string

const (
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeValidation         Code = "validation"
	CodePreconditionFailed Code = "precondition_failed"
	CodeForbidden          Code = "forbidden"
	CodeInternal           Code = "internal"
)

// Error carries a code plus a human-readable message and an optional cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New constructs a coded domain error.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf constructs a coded domain error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error, preserving the
// cause for errors.Is/As chains.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
		de = nil
	}
	return false
}

// CodeOf returns the code of the outermost domain error, or CodeInternal when
// err is not from this taxonomy.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the human-readable message of the outermost domain
// error, or err.Error() when err is not from this taxonomy. Use it for
// user-facing output where the code prefix is noise.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}

// Is delegates to errors.Is; kept so callers can stay on one import.
func Is(err, target error) bool { return errors.Is(err, target) }
