// Package apperr defines the typed failures returned by the record and user
// operations. Collaborator failures are not converted: they travel as plain
// wrapped errors and surface as CodeInternal.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

// Code is a stable identifier for a class of failure.
type Code string

const (
	CodeInternal       Code = "internal"
	CodeNotFound       Code = "not_found"
	CodeForbidden      Code = "forbidden"
	CodeValidation     Code = "validation"
	CodeAuthentication Code = "authentication"
	CodeDecode         Code = "decode"
	CodeConflict       Code = "conflict"
)

// Error carries a code, the human-readable reasons and an optional cause.
type Error struct {
	Code    Code
	Reasons []string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := string(e.Code)
	if len(e.Reasons) > 0 {
		msg += ": " + strings.Join(e.Reasons, "; ")
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by code, so errors.Is(err, apperr.NotFound(""))
// style checks work regardless of reasons.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func New(code Code, reasons ...string) *Error {
	return &Error{Code: code, Reasons: reasons}
}

func NotFound(reason string) *Error { return New(CodeNotFound, reason) }

func Forbidden(reason string) *Error { return New(CodeForbidden, reason) }

func Validation(reasons ...string) *Error { return New(CodeValidation, reasons...) }

func Authentication(reason string) *Error { return New(CodeAuthentication, reason) }

func Conflict(reason string) *Error { return New(CodeConflict, reason) }

// Decode wraps a token decoding failure.
func Decode(err error) *Error {
	return &Error{Code: CodeDecode, Reasons: []string{"malformed token"}, Err: err}
}

// CodeOf returns the code carried by err, or CodeInternal when err is not an
// *Error.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}

// IsCode reports whether err carries code.
func IsCode(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// ReasonsOf returns the reasons attached to err. Internal failures yield a
// generic reason so collaborator details never leak.
func ReasonsOf(err error) []string {
	var ae *Error
	if errors.As(err, &ae) && len(ae.Reasons) > 0 {
		return ae.Reasons
	}
	if ae != nil {
		return []string{string(ae.Code)}
	}
	return []string{"internal server error"}
}

// Merge folds validation failures into one error. Nil entries are skipped and
// nil is returned when nothing failed.
func Merge(errs ...error) error {
	var reasons []string
	for _, err := range errs {
		if err == nil {
			continue
		}
		var ae *Error
		if errors.As(err, &ae) && ae.Code == CodeValidation {
			reasons = append(reasons, ae.Reasons...)
			continue
		}
		return fmt.Errorf("merge validation: %w", err)
	}
	if len(reasons) == 0 {
		return nil
	}
	return Validation(reasons...)
}
