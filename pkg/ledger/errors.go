package ledger

import (
	"errors"
	"fmt"

	"github.com/mcclellann/loantracker/pkg/store"
)

// Kind classifies ledger errors for callers that map them to responses.
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindInvalidRequest
	KindAlreadySettled
	KindInvalidState
	KindForbidden
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindInvalidRequest:
		return "InvalidRequest"
	case KindAlreadySettled:
		return "AlreadySettled"
	case KindInvalidState:
		return "InvalidState"
	case KindForbidden:
		return "Forbidden"
	default:
		return "Internal"
	}
}

// Error is returned by every ledger operation that fails for a reason the
// caller can act on. Err holds the underlying cause for internal failures.
type Error struct {
	Kind    Kind
	Entity  string // "Loan", "User", "LedgerLine", "Payment", ...
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or KindInternal when err is not an *Error.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindInternal
}

func notFoundError(entity, message string) *Error {
	return &Error{Kind: KindNotFound, Entity: entity, Message: message}
}

func invalidRequest(message string) *Error {
	return &Error{Kind: KindInvalidRequest, Message: message}
}

func internalError(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// lookupError converts a store lookup failure into NotFound or Internal.
func lookupError(err error, entity, message string) error {
	if errors.Is(err, store.ErrNotFound) {
		return notFoundError(entity, message)
	}
	return internalError("failed to read "+entity, err)
}

// asLedgerError passes *Error values through and wraps anything else as Internal.
func asLedgerError(err error, message string) error {
	if err == nil {
		return nil
	}
	var le *Error
	if errors.As(err, &le) {
		return le
	}
	return internalError(message, err)
}
