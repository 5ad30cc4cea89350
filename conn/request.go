package conn

import (
	"bytes"
	"context"
	"net/url"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/adamwoolhether/httpbridge/bridge"
	"github.com/adamwoolhether/httpbridge/engine"
	"github.com/adamwoolhether/httpbridge/header"
)

// Request is a pending request cycle: a handle for staging body bytes
// and submitting the exchange. It is produced by [Conn.Begin] and
// consumed by [Request.Submit]; a handle from a finished or abandoned
// cycle is stale, and every operation on it fails.
type Request struct {
	conn   *Conn
	id     string
	method string
	url    *url.URL
	fields header.Fields
	body   bytes.Buffer
}

// live reports whether r is the connection's current pending request.
func (r *Request) live() bool {
	if r.conn.closed {
		return false
	}
	st, ok := r.conn.st.(requesting)

	return ok && st.req == r
}

// ID returns the cycle's unique identifier, which also tags its log
// lines and trace span.
func (r *Request) ID() string {
	return r.id
}

// Method returns the request method.
func (r *Request) Method() string {
	return r.method
}

// URL returns the parsed request target.
func (r *Request) URL() *url.URL {
	return r.url
}

// Header returns the value of the first field matching name,
// case-insensitively, reporting whether one was found.
func (r *Request) Header(name string) (string, bool) {
	return r.fields.Get(name)
}

// Headers returns a copy of the staged header fields in order.
func (r *Request) Headers() header.Fields {
	return r.fields.Clone()
}

// Write stages p into the request body. It always consumes all of p
// and cannot fail while the handle is live; nothing touches the wire
// until Submit.
func (r *Request) Write(p []byte) (int, error) {
	const op = "request.write"

	if !r.live() {
		return 0, newErr(KindIllegalState, op, "request is not pending (connection is %s)", r.conn.State())
	}

	r.body.Write(p)

	return len(p), nil
}

// Flush is a no-op provided for writer symmetry: staged bytes only
// ever reach the wire on Submit. It fails on a stale handle the same
// way Write does.
func (r *Request) Flush() error {
	const op = "request.flush"

	if !r.live() {
		return newErr(KindIllegalState, op, "request is not pending (connection is %s)", r.conn.State())
	}

	return nil
}

// Submit dispatches the request on the connection's runtime, blocking
// the caller until the response head arrives, and returns the
// [*Response] with its body left to read. Submit consumes the handle.
//
// On dispatch failure the connection returns to idle and the written
// body is dropped; the next Begin starts clean.
func (r *Request) Submit() (*Response, error) {
	const op = "request.submit"

	if !r.live() {
		return nil, newErr(KindIllegalState, op, "request is not pending (connection is %s)", r.conn.State())
	}

	c := r.conn

	ctx := context.Background()
	cancel := context.CancelFunc(func() {})
	if c.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
	}

	ctx, span := c.tracer.Start(ctx, "conn.submit", trace.WithAttributes(
		attribute.String("id", r.id),
		attribute.String("method", r.method),
		attribute.String("url", r.url.String()),
	))
	defer span.End()

	fields := r.fields.Clone()
	otel.GetTextMapPropagator().Inject(ctx, header.Carrier{Fields: &fields})

	engReq := engine.Request{
		Method: r.method,
		URL:    r.url,
		Fields: fields,
		Body:   r.body.Bytes(),
	}

	resp, err := bridge.BlockOn(c.rt, ctx, func(ctx context.Context) (*engine.Response, error) {
		return c.eng.Do(ctx, &engReq)
	})
	if err != nil {
		cancel()
		c.st = idle{}

		return nil, wrapErr(dispatchKind(err), op, err, "%s %s", r.method, r.url)
	}

	c.logger.Debug("request submitted", "id", r.id, "method", r.method, "url", r.url.String(), "status", resp.StatusCode)

	res := Response{
		conn:   c,
		id:     r.id,
		status: resp.StatusCode,
		reason: resp.Reason,
		fields: resp.Fields,
		stream: resp.Body,
		ctx:    ctx,
		cancel: cancel,
	}
	c.st = responding{resp: &res}

	return &res, nil
}
