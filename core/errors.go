package core

import (
	"errors"
	"fmt"
)

// Code categorizes orchestration failures. Codes are part of the external
// contract and are surfaced verbatim by the tool and HTTP layers.
type Code string

const (
	CodeValidation       Code = "VALIDATION_ERROR"
	CodeNotFound         Code = "NOT_FOUND"
	CodeNotActive        Code = "NOT_ACTIVE"
	CodeConcurrencyLimit Code = "CONCURRENCY_LIMIT"
	CodeNoLLM            Code = "NO_LLM"
	CodeOrchestrate      Code = "ORCHESTRATE_ERROR"
	CodePolicyDenied     Code = "POLICY_DENIED"
)

// Sentinels for errors.Is matching by code.
var (
	ErrValidation       = &Error{Code: CodeValidation}
	ErrNotFound         = &Error{Code: CodeNotFound}
	ErrNotActive        = &Error{Code: CodeNotActive}
	ErrConcurrencyLimit = &Error{Code: CodeConcurrencyLimit}
	ErrNoLLM            = &Error{Code: CodeNoLLM}
	ErrOrchestrate      = &Error{Code: CodeOrchestrate}
	ErrPolicyDenied     = &Error{Code: CodePolicyDenied}
)

// Error is a coded orchestration failure.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// NewError builds an Error with a formatted message.
func NewError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WrapError builds an Error carrying err's message and keeping err for unwrapping.
func WrapError(code Code, err error) *Error {
	return &Error{Code: code, Message: err.Error(), Err: err}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// CodeOf extracts the Code of err, defaulting to CodeOrchestrate for
// uncoded errors and "" for nil.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeOrchestrate
}

// AsError classifies err: coded errors pass through, anything else becomes
// an ORCHESTRATE_ERROR carrying err's message.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return WrapError(CodeOrchestrate, err)
}
