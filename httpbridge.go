// Package httpbridge exposes the synchronous HTTP connection facade.
package httpbridge

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/httpbridge/bridge"
	"github.com/adamwoolhether/httpbridge/conn"
	"github.com/adamwoolhether/httpbridge/engine"
	"github.com/adamwoolhether/httpbridge/header"
)

// New instantiates a new *Conn with the provided options.
// If not specified, an owned runtime and the default net/http-backed
// engine are used.
func New(opts ...conn.Option) (*conn.Conn, error) {
	return conn.New(opts...)
}

// //////////////////////////////////////////////////////////////////////
// Type aliases - re-export user-facing types from [conn] and [header].
// //////////////////////////////////////////////////////////////////////

type (
	// Conn is a synchronous HTTP connection.
	Conn = conn.Conn

	// Request is a pending request cycle awaiting body writes and submission.
	Request = conn.Request

	// Response is a received response whose body is read through blocking calls.
	Response = conn.Response

	// Error is the failure value returned by connection operations.
	Error = conn.Error

	// Kind classifies connection failures.
	Kind = conn.Kind

	// State identifies the connection's position in the request cycle.
	State = conn.State

	// Field is a single HTTP header field.
	Field = header.Field

	// Fields is an ordered header field collection.
	Fields = header.Fields

	// Option is a functional option for configuring a Conn.
	Option = conn.Option
)

// //////////////////////////////////////////////////////////////////////
// Failure kinds and cycle states
// //////////////////////////////////////////////////////////////////////

const (
	KindURI          = conn.KindURI
	KindHeader       = conn.KindHeader
	KindTransport    = conn.KindTransport
	KindRuntime      = conn.KindRuntime
	KindIllegalState = conn.KindIllegalState
)

const (
	StateIdle       = conn.StateIdle
	StateRequesting = conn.StateRequesting
	StateResponding = conn.StateResponding
)

// //////////////////////////////////////////////////////////////////////
// Sentinel errors
// //////////////////////////////////////////////////////////////////////

var (
	// ErrMethod indicates a request method that is not a valid token.
	ErrMethod = conn.ErrMethod

	// ErrConnClosed indicates use of a connection after Close.
	ErrConnClosed = conn.ErrConnClosed
)

// //////////////////////////////////////////////////////////////////////
// Option forwarding functions
// //////////////////////////////////////////////////////////////////////

// WithEngine replaces the default net/http-backed engine.
func WithEngine(eng engine.Engine) Option { return conn.WithEngine(eng) }

// WithRuntime shares an existing runtime between connections instead
// of building an owned one.
func WithRuntime(rt *bridge.Runtime) Option { return conn.WithRuntime(rt) }

// WithLogger injects a custom [slog.Logger] into the connection.
func WithLogger(logger *slog.Logger) Option { return conn.WithLogger(logger) }

// WithTracer records a span per submitted request on tr.
func WithTracer(tr trace.Tracer) Option { return conn.WithTracer(tr) }

// WithRequestTimeout bounds each request cycle, from submission
// through the final body read.
func WithRequestTimeout(d time.Duration) Option { return conn.WithRequestTimeout(d) }

// KindOf extracts the Kind carried by err, or "" when err is not a
// connection error.
func KindOf(err error) Kind { return conn.KindOf(err) }

// IsKind reports whether err is a connection error of the given kind.
func IsKind(err error, kind Kind) bool { return conn.IsKind(err, kind) }
