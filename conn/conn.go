package conn

import (
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/net/http/httpguts"

	"github.com/adamwoolhether/httpbridge/bridge"
	"github.com/adamwoolhether/httpbridge/engine"
	"github.com/adamwoolhether/httpbridge/header"
	"github.com/adamwoolhether/httpbridge/validate"
)

// Conn is a synchronous HTTP connection. It carries one request cycle
// at a time and is reused sequentially. A Conn is not safe for
// concurrent use.
type Conn struct {
	eng     engine.Engine
	rt      *bridge.Runtime
	logger  *slog.Logger
	tracer  trace.Tracer
	timeout time.Duration

	st     connState
	closed bool
}

// New builds a Conn. Without options it owns a fresh runtime and the
// default [net/http]-backed engine.
func New(optFns ...Option) (*Conn, error) {
	const op = "conn.new"

	var opts options
	for _, optFn := range optFns {
		if err := optFn(&opts); err != nil {
			return nil, wrapErr(KindRuntime, op, err, "applying option")
		}
	}

	if err := validate.Check(settings{RequestTimeout: opts.timeout}); err != nil {
		return nil, wrapErr(KindRuntime, op, err, "invalid settings")
	}

	c := Conn{
		eng:     opts.eng,
		logger:  slog.Default(),
		tracer:  noop.NewTracerProvider().Tracer("no-op tracer"),
		timeout: opts.timeout,
		st:      idle{},
	}
	if opts.logger != nil {
		c.logger = opts.logger
	}
	if opts.tracer != nil {
		c.tracer = opts.tracer
	}

	if c.eng == nil {
		eng, err := engine.New(engine.WithLogger(c.logger))
		if err != nil {
			return nil, wrapErr(KindRuntime, op, err, "building default engine")
		}
		c.eng = eng
	}

	if opts.rt != nil {
		c.rt = opts.rt.Retain()
	} else {
		rt, err := bridge.New(bridge.WithLogger(c.logger))
		if err != nil {
			return nil, wrapErr(KindRuntime, op, err, "building runtime")
		}
		c.rt = rt
	}

	return &c, nil
}

// Begin starts a new request cycle for the given method and absolute
// http or https URI, with any initial header fields. It returns the
// [*Request] handle used to write the body and submit.
//
// Begin validates before it transitions: a rejected call leaves the
// connection exactly as it was, including any still-readable response.
// Beginning while a request is pending fails; beginning while a
// response holds unread bytes discards the remainder.
func (c *Conn) Begin(method, uri string, fields ...header.Field) (*Request, error) {
	const op = "conn.begin"

	if c.closed {
		return nil, wrapErr(KindIllegalState, op, ErrConnClosed, "")
	}
	if c.st.state() == StateRequesting {
		return nil, newErr(KindIllegalState, op, "a request is already pending; submit it first")
	}

	if !httpguts.ValidHeaderFieldName(method) {
		return nil, wrapErr(KindURI, op, ErrMethod, "%q", method)
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, wrapErr(KindURI, op, err, "")
	}
	switch {
	case u.Scheme != "http" && u.Scheme != "https":
		return nil, newErr(KindURI, op, "unsupported scheme %q in %q", u.Scheme, uri)
	case u.Host == "":
		return nil, newErr(KindURI, op, "missing host in %q", uri)
	}

	for _, f := range fields {
		if err := header.Valid(f); err != nil {
			return nil, wrapErr(KindHeader, op, err, "")
		}
	}

	// Validation passed; now it is safe to leave the current state.
	if resp, ok := c.st.(responding); ok {
		c.discard(resp.resp)
	}

	req := Request{
		conn:   c,
		id:     uuid.New().String(),
		method: method,
		url:    u,
		fields: header.Fields(fields).Clone(),
	}
	req.body.Grow(engine.ChunkSize)

	c.st = requesting{req: &req}

	return &req, nil
}

// Get begins a GET request cycle.
func (c *Conn) Get(uri string, fields ...header.Field) (*Request, error) {
	return c.Begin(http.MethodGet, uri, fields...)
}

// Post begins a POST request cycle.
func (c *Conn) Post(uri string, fields ...header.Field) (*Request, error) {
	return c.Begin(http.MethodPost, uri, fields...)
}

// Put begins a PUT request cycle.
func (c *Conn) Put(uri string, fields ...header.Field) (*Request, error) {
	return c.Begin(http.MethodPut, uri, fields...)
}

// Patch begins a PATCH request cycle.
func (c *Conn) Patch(uri string, fields ...header.Field) (*Request, error) {
	return c.Begin(http.MethodPatch, uri, fields...)
}

// Delete begins a DELETE request cycle.
func (c *Conn) Delete(uri string, fields ...header.Field) (*Request, error) {
	return c.Begin(http.MethodDelete, uri, fields...)
}

// Head begins a HEAD request cycle.
func (c *Conn) Head(uri string, fields ...header.Field) (*Request, error) {
	return c.Begin(http.MethodHead, uri, fields...)
}

// Options begins an OPTIONS request cycle.
func (c *Conn) Options(uri string, fields ...header.Field) (*Request, error) {
	return c.Begin(http.MethodOptions, uri, fields...)
}

// State reports where the connection sits in the request cycle.
func (c *Conn) State() State {
	return c.st.state()
}

// Close retires the connection. Any open response is discarded, and
// the connection's runtime reference is released; a shared runtime
// keeps serving its other holders. Further calls on a closed
// connection fail.
func (c *Conn) Close() error {
	const op = "conn.close"

	if c.closed {
		return wrapErr(KindIllegalState, op, ErrConnClosed, "")
	}

	if resp, ok := c.st.(responding); ok {
		c.discard(resp.resp)
	}

	c.st = idle{}
	c.closed = true

	if err := c.rt.Close(); err != nil {
		return wrapErr(KindRuntime, op, err, "releasing runtime")
	}

	return nil
}

// discard retires resp so the connection can leave the responding
// state. Unread body bytes are lost, which is deliberate but worth a
// warning; a fully drained response goes quietly.
func (c *Conn) discard(resp *Response) {
	if !resp.exhausted {
		c.logger.Warn("discarding response with unread body", "id", resp.id, "status", resp.status)
	}

	if err := resp.shutdown(); err != nil {
		c.logger.Error("failed to close discarded response body", "id", resp.id, "err", err)
	}

	c.st = idle{}
}
