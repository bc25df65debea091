package board

import (
	"errors"
	"fmt"

	"github.com/zenibako/boardsync/queries"
)

// Error kinds returned by Client operations.
//
// Check them with errors.Is:
//
//	if errors.Is(err, board.ErrAuthRejected) {
//	    // ask for a new API key
//	}
var (
	// ErrAuthRejected is returned when the API rejects the credential
	// (HTTP 401/403 or an authentication error code).
	ErrAuthRejected = errors.New("credential rejected")

	// ErrRemoteValidation is returned when the API answers with a GraphQL
	// error, an error_code, or another 4xx status.
	ErrRemoteValidation = errors.New("request rejected by board")

	// ErrUnreachable is returned for transport failures, timeouts, rate
	// limiting and 5xx responses.
	ErrUnreachable = errors.New("board API unreachable")

	// ErrUnexpectedShape is returned when a response lacks the structure
	// the operation reads.
	ErrUnexpectedShape = errors.New("unexpected response shape")
)

// Error describes a failed board operation.
type Error struct {
	Kind       error
	Op         queries.Operation
	StatusCode int
	Message    string
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Op, e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newError(kind error, op queries.Operation, message string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: cause}
}

// IsRetryable reports whether err is transient. Client never retries on its
// own; callers decide.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnreachable)
}
