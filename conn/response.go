package conn

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/adamwoolhether/httpbridge/bridge"
	"github.com/adamwoolhether/httpbridge/engine"
	"github.com/adamwoolhether/httpbridge/header"
)

// Response is a received response whose body is consumed through
// blocking reads. It is produced by [Request.Submit] and retired by
// [Response.Close], by [Conn.Close], or implicitly by the next
// [Conn.Begin]. Status and header accessors are snapshots and stay
// usable after the cycle ends; body reads require the handle to be
// current.
type Response struct {
	conn   *Conn
	id     string
	status int
	reason string
	fields header.Fields

	stream engine.BodyStream
	ctx    context.Context
	cancel context.CancelFunc

	leftover  []byte
	exhausted bool
	shut      bool
}

// live reports whether r is the connection's current response.
func (r *Response) live() bool {
	if r.conn.closed {
		return false
	}
	st, ok := r.conn.st.(responding)

	return ok && st.resp == r
}

// ID returns the cycle's unique identifier.
func (r *Response) ID() string {
	return r.id
}

// Status returns the response status code.
func (r *Response) Status() int {
	return r.status
}

// StatusMessage returns the reason phrase from the status line. It is
// empty when the server sent none.
func (r *Response) StatusMessage() string {
	return r.reason
}

// Header returns the value of the first field matching name,
// case-insensitively, reporting whether one was found.
func (r *Response) Header(name string) (string, bool) {
	return r.fields.Get(name)
}

// Headers returns a copy of the response header fields. Names arrive
// sorted; values of a repeated field keep their received order.
func (r *Response) Headers() header.Fields {
	return r.fields.Clone()
}

// Read copies body bytes into p, blocking until at least one byte is
// available. Short reads are routine: a read returns whatever the
// current chunk holds, not necessarily len(p) bytes. Read returns
// 0, nil once the body is exhausted, on this and every later call;
// an empty p also returns 0, nil without consuming anything.
//
// A failed read leaves the response current, so the caller decides
// whether to retry, close, or abandon the cycle.
func (r *Response) Read(p []byte) (int, error) {
	const op = "response.read"

	if !r.live() {
		return 0, newErr(KindIllegalState, op, "response is not current (connection is %s)", r.conn.State())
	}
	if r.exhausted || len(p) == 0 {
		return 0, nil
	}

	if len(r.leftover) == 0 {
		chunk, err := bridge.BlockOn(r.conn.rt, r.ctx, r.stream.Next)
		switch {
		case errors.Is(err, io.EOF):
			r.finish()
			return 0, nil
		case err != nil:
			return 0, wrapErr(dispatchKind(err), op, err, "")
		}
		r.leftover = chunk
	}

	n := copy(p, r.leftover)
	r.leftover = r.leftover[n:]

	return n, nil
}

// WriteTo drains the remaining body into w, returning the number of
// bytes written. It blocks until the body is exhausted or either side
// fails.
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	const op = "response.write_to"

	if !r.live() {
		return 0, newErr(KindIllegalState, op, "response is not current (connection is %s)", r.conn.State())
	}

	var written int64
	for {
		if len(r.leftover) > 0 {
			n, err := w.Write(r.leftover)
			written += int64(n)
			r.leftover = r.leftover[n:]
			if err != nil {
				return written, fmt.Errorf("%s: %w", op, err)
			}
		}

		if r.exhausted {
			return written, nil
		}

		chunk, err := bridge.BlockOn(r.conn.rt, r.ctx, r.stream.Next)
		switch {
		case errors.Is(err, io.EOF):
			r.finish()
			return written, nil
		case err != nil:
			return written, wrapErr(dispatchKind(err), op, err, "")
		}
		r.leftover = chunk
	}
}

// Close retires the response and returns the connection to idle,
// dropping any unread body bytes. Closing a handle that is no longer
// current is a no-op.
func (r *Response) Close() error {
	const op = "response.close"

	if !r.live() {
		return nil
	}

	err := r.shutdown()
	r.conn.st = idle{}
	if err != nil {
		return wrapErr(KindTransport, op, err, "")
	}

	return nil
}

// finish marks the body exhausted after a clean EOF and releases the
// stream. The connection stays in the responding state; further reads
// report zero bytes until the cycle is closed or a new one begins.
func (r *Response) finish() {
	r.exhausted = true
	if err := r.shutdown(); err != nil {
		r.conn.logger.Error("failed to release response stream", "id", r.id, "err", err)
	}
}

// shutdown releases the stream and the cycle context. Idempotent.
func (r *Response) shutdown() error {
	if r.shut {
		return nil
	}
	r.shut = true

	err := r.stream.Close()
	r.cancel()
	if err != nil {
		return fmt.Errorf("closing body stream: %w", err)
	}

	return nil
}
