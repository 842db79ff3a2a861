package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind represents the type of error
type Kind int

const (
	ErrInternal Kind = iota
	ErrUnauthorized
	ErrNotFound
	ErrInvalidTimeWindow
	ErrElectionLocked
	ErrNotEmpty
	ErrAlreadyExists
	ErrNotVerified
	ErrVotingClosed
	ErrAlreadyVoted
	ErrInvalidInput
)

var kindNames = map[Kind]string{
	ErrInternal:          "Internal",
	ErrUnauthorized:      "Unauthorized",
	ErrNotFound:          "NotFound",
	ErrInvalidTimeWindow: "InvalidTimeWindow",
	ErrElectionLocked:    "ElectionLocked",
	ErrNotEmpty:          "NotEmpty",
	ErrAlreadyExists:     "AlreadyExists",
	ErrNotVerified:       "NotVerified",
	ErrVotingClosed:      "VotingClosed",
	ErrAlreadyVoted:      "AlreadyVoted",
	ErrInvalidInput:      "InvalidInput",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is an application-level error with a kind for classification
type Error struct {
	Kind    Kind
	Message string
	Err     error // underlying error
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

// Is matches any *Error of the same kind, so sentinels like
// errors.Is(err, &Error{Kind: ErrAlreadyVoted}) work without comparing messages.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or ErrInternal.
func KindOf(err error) Kind {
	var appErr *Error
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return ErrInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	var appErr *Error
	if !stderrors.As(err, &appErr) {
		return false
	}
	return appErr.Kind == kind
}

// Constructor functions for each kind

func Unauthorized(msg string) *Error {
	return &Error{Kind: ErrUnauthorized, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Kind: ErrNotFound, Message: msg}
}

func NotFoundf(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

func InvalidTimeWindow(msg string) *Error {
	return &Error{Kind: ErrInvalidTimeWindow, Message: msg}
}

func InvalidTimeWindowf(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrInvalidTimeWindow, Message: fmt.Sprintf(format, args...)}
}

func ElectionLocked(msg string) *Error {
	return &Error{Kind: ErrElectionLocked, Message: msg}
}

func ElectionLockedf(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrElectionLocked, Message: fmt.Sprintf(format, args...)}
}

func NotEmpty(msg string) *Error {
	return &Error{Kind: ErrNotEmpty, Message: msg}
}

func AlreadyExists(msg string) *Error {
	return &Error{Kind: ErrAlreadyExists, Message: msg}
}

func NotVerified(msg string) *Error {
	return &Error{Kind: ErrNotVerified, Message: msg}
}

func VotingClosed(msg string) *Error {
	return &Error{Kind: ErrVotingClosed, Message: msg}
}

func AlreadyVoted(msg string) *Error {
	return &Error{Kind: ErrAlreadyVoted, Message: msg}
}

func InvalidInput(msg string) *Error {
	return &Error{Kind: ErrInvalidInput, Message: msg}
}

func InvalidInputf(format string, args ...interface{}) *Error {
	return &Error{Kind: ErrInvalidInput, Message: fmt.Sprintf(format, args...)}
}

func Internal(err error) *Error {
	return &Error{Kind: ErrInternal, Message: "internal error", Err: err}
}

// Wrap wraps an error with additional context
func Wrap(err error, kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}
