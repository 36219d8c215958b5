// Package errs holds the one error type hydrahub passes between layers.
//
// Storage drivers, the SQL drivers and the services classify whatever they
// get back from their SDK into a Kind and wrap it in *Error. The HTTP layer
// then picks a status from the kind alone:
//
//	obj, err := gw.Get(ctx, key)
//	if errs.IsNotFound(err) {
//	    // 404
//	}
//
// Validation failures use Invalid and carry one Issue per offending field.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// ErrKind is the class of a failure, independent of which backend raised it.
type ErrKind int

const (
	ErrKindUnknown ErrKind = iota
	ErrKindNotFound
	ErrKindConnectionFailed
	ErrKindTimeout // includes cancellation
	ErrKindQueryFailed
	ErrKindInvalidInput
	ErrKindPermissionDenied
	ErrKindMalformedContent // a stored document did not decode
	ErrKindUnsupported
	ErrKindConflict
)

var kindNames = [...]string{
	ErrKindUnknown:          "unknown",
	ErrKindNotFound:         "not_found",
	ErrKindConnectionFailed: "connection_failed",
	ErrKindTimeout:          "timeout",
	ErrKindQueryFailed:      "query_failed",
	ErrKindInvalidInput:     "invalid_input",
	ErrKindPermissionDenied: "permission_denied",
	ErrKindMalformedContent: "malformed_content",
	ErrKindUnsupported:      "unsupported_type",
	ErrKindConflict:         "conflict",
}

func (k ErrKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[ErrKindUnknown]
	}
	return kindNames[k]
}

// Issue names one field that failed validation. Field is empty when the
// problem spans several fields.
type Issue struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.Field == "" {
		return i.Message
	}
	return i.Field + ": " + i.Message
}

// Error is a classified failure. Message is safe to show to clients;
// Cause is only for logs.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error
	Issues  []Issue
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Kind, e.Message)
	if len(e.Issues) > 0 {
		parts := make([]string, len(e.Issues))
		for i, is := range e.Issues {
			parts[i] = is.String()
		}
		fmt.Fprintf(&b, " (%s)", strings.Join(parts, "; "))
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func New(kind ErrKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func Wrap(kind ErrKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// Invalid reports caller input that failed validation.
func Invalid(issues ...Issue) *Error {
	return &Error{Kind: ErrKindInvalidInput, Message: "invalid input", Issues: issues}
}

// KindOf returns the kind of the first *Error in err's chain, or
// ErrKindUnknown when there is none.
func KindOf(err error) ErrKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ErrKindUnknown
}

// IssuesOf returns the validation issues carried by err, if any.
func IssuesOf(err error) []Issue {
	var e *Error
	if errors.As(err, &e) {
		return e.Issues
	}
	return nil
}

func IsNotFound(err error) bool         { return KindOf(err) == ErrKindNotFound }
func IsTimeout(err error) bool          { return KindOf(err) == ErrKindTimeout }
func IsConnectionFailed(err error) bool { return KindOf(err) == ErrKindConnectionFailed }
func IsInvalidInput(err error) bool     { return KindOf(err) == ErrKindInvalidInput }
func IsMalformed(err error) bool        { return KindOf(err) == ErrKindMalformedContent }
func IsUnsupported(err error) bool      { return KindOf(err) == ErrKindUnsupported }
func IsConflict(err error) bool         { return KindOf(err) == ErrKindConflict }

// IsStorageUnavailable reports whether the backend could not serve the
// call at all, either unreachable or too slow.
func IsStorageUnavailable(err error) bool {
	switch KindOf(err) {
	case ErrKindConnectionFailed, ErrKindTimeout:
		return true
	}
	return false
}
