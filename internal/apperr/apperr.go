// Package apperr classifies every failure the marketplace core can return.
// Callers branch on Kind, never on the message text.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	// validation
	KindInvalidInput    Kind = "InvalidInput"
	KindInvalidQuantity Kind = "InvalidQuantity"
	KindInvalidRating   Kind = "InvalidRating"

	// authorization
	KindForbidden Kind = "Forbidden"

	// lifecycle state
	KindInvalidState Kind = "InvalidState"
	KindNotAvailable Kind = "NotAvailable"

	// conflict
	KindNotFound          Kind = "NotFound"
	KindInsufficientStock Kind = "InsufficientStock"
	KindDuplicateReview   Kind = "DuplicateReview"

	// storage / anything unclassified
	KindInternal Kind = "Internal"
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to a lower level error. The message is what callers see;
// err is kept for logs.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns KindInternal for nil-kind or unclassified errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) && e.Kind != "" {
		return e.Kind
	}
	return KindInternal
}

func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "operation failed"
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == kind
}

// Retryable is true only for storage failures. Every business kind, and any
// kind this package does not know, is final.
func Retryable(kind Kind) bool {
	return kind == KindInternal
}
