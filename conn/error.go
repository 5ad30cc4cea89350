package conn

import (
	"errors"
	"fmt"

	"github.com/adamwoolhether/httpbridge/bridge"
)

// Kind classifies connection failures.
type Kind string

const (
	// KindURI marks a malformed or unsupported request target, or an
	// invalid request method.
	KindURI Kind = "uri"

	// KindHeader marks a header field that failed grammar validation.
	KindHeader Kind = "header"

	// KindTransport marks a failure raised by the engine or the wire.
	KindTransport Kind = "transport"

	// KindRuntime marks an executor construction or dispatch failure.
	KindRuntime Kind = "runtime"

	// KindIllegalState marks an operation invoked in the wrong state,
	// or through a stale handle.
	KindIllegalState Kind = "illegal_state"
)

var (
	// ErrMethod indicates a request method that is not a valid token.
	ErrMethod = errors.New("invalid request method")

	// ErrConnClosed indicates use of a connection after Close.
	ErrConnClosed = errors.New("connection closed")
)

// Error is the failure value returned by all connection operations.
type Error struct {
	Kind   Kind
	Op     string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s [%s]", e.Op, e.Kind)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// newErr builds an *Error with a formatted detail and no cause.
func newErr(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Detail: fmt.Sprintf(format, args...)}
}

// wrapErr builds an *Error around a cause. An empty format omits the detail.
func wrapErr(kind Kind, op string, err error, format string, args ...any) *Error {
	e := Error{Kind: kind, Op: op, Err: err}
	if format != "" {
		e.Detail = fmt.Sprintf(format, args...)
	}

	return &e
}

// KindOf extracts the Kind carried by err, or "" when err is not a
// connection error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return ""
}

// IsKind reports whether err is a connection error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// dispatchKind classifies an error that crossed the executor: runtime
// sentinels keep their own kind, everything else belongs to the
// transport.
func dispatchKind(err error) Kind {
	switch {
	case errors.Is(err, bridge.ErrClosed),
		errors.Is(err, bridge.ErrNestedBlock),
		errors.Is(err, bridge.ErrTaskPanic):
		return KindRuntime
	default:
		return KindTransport
	}
}
