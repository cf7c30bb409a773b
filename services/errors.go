package services

import (
	"errors"
	"fmt"
)

// Kind is the closed set of failure categories callers can act on.
type Kind string

const (
	KindAuthenticationRequired Kind = "authentication_required"
	KindForbidden              Kind = "forbidden"
	KindNotFound               Kind = "not_found"
	KindInvalidState           Kind = "invalid_state"
	KindValidation             Kind = "validation"
	KindConflict               Kind = "conflict"
	KindContent                Kind = "content"
	KindTransient              Kind = "transient"
	KindStorage                Kind = "storage"
	KindUnexpected             Kind = "unexpected"
)

// Error carries a client-safe message. Err holds the internal cause for logs only.
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

func newError(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnexpected.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnexpected
}

var (
	errAuthRequired = newError(KindAuthenticationRequired, "Not authenticated", nil)
	errNotParty     = newError(KindForbidden, "You are not a party to this match", nil)

	// errWinnerMissing aborts a comparison whose winner has no user row.
	errWinnerMissing = errors.New("winner user not found")
)
