package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a failure so transports can map it without string matching.
type ErrorKind string

const (
	KindInvalidInput             ErrorKind = "InvalidInput"
	KindNotFound                 ErrorKind = "NotFound"
	KindUnsupportedFormat        ErrorKind = "UnsupportedFormat"
	KindExtractionFailed         ErrorKind = "ExtractionFailed"
	KindInvalidTemplate          ErrorKind = "InvalidTemplate"
	KindUnknownVariable          ErrorKind = "UnknownVariable"
	KindMissingRequiredVariables ErrorKind = "MissingRequiredVariables"
	KindNoMatchingTemplate       ErrorKind = "NoMatchingTemplate"
	KindUnknownCommand           ErrorKind = "UnknownCommand"

	// KindStorageCorruption is fatal to the request that observed it.
	KindStorageCorruption ErrorKind = "StorageCorruption"
)

// Sentinels usable with errors.Is. Matching is by kind only.
var (
	ErrInvalidInput             = &Error{Kind: KindInvalidInput}
	ErrNotFound                 = &Error{Kind: KindNotFound}
	ErrUnsupportedFormat        = &Error{Kind: KindUnsupportedFormat}
	ErrExtractionFailed         = &Error{Kind: KindExtractionFailed}
	ErrInvalidTemplate          = &Error{Kind: KindInvalidTemplate}
	ErrUnknownVariable          = &Error{Kind: KindUnknownVariable}
	ErrMissingRequiredVariables = &Error{Kind: KindMissingRequiredVariables}
	ErrNoMatchingTemplate       = &Error{Kind: KindNoMatchingTemplate}
	ErrUnknownCommand           = &Error{Kind: KindUnknownCommand}
	ErrStorageCorruption        = &Error{Kind: KindStorageCorruption}
)

// Error is a recoverable, user-presentable failure.
type Error struct {
	Kind    ErrorKind
	Message string
	// Missing lists variable keys for KindMissingRequiredVariables and
	// the offending keys for KindUnknownVariable.
	Missing []string
	// Candidates holds the closest templates below the match threshold for
	// KindNoMatchingTemplate.
	Candidates []TemplateMatch
	Err        error
}

// NewError creates an Error of the given kind.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError creates an Error of the given kind that wraps cause.
func WrapError(kind ErrorKind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

// MissingVariables reports required variables that still lack a value.
func MissingVariables(keys []string) *Error {
	return &Error{
		Kind:    KindMissingRequiredVariables,
		Message: "missing required variables: " + strings.Join(keys, ", "),
		Missing: keys,
	}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// AsError returns the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}
