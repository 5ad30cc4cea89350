// Package engine defines the boundary between the blocking connection
// facade and the asynchronous HTTP engine that performs the network
// I/O, along with [Transport], the default [net/http]-backed engine.
package engine

import (
	"context"
	"net/url"

	"github.com/adamwoolhether/httpbridge/header"
)

// ChunkSize is the target size of response body chunks and the
// capacity hint for request body buffers.
const ChunkSize = 8192

// Request is one fully buffered outbound exchange.
type Request struct {
	Method string
	URL    *url.URL
	Fields header.Fields
	Body   []byte
}

// Response carries the received status line and header fields, plus
// the still-open body stream.
type Response struct {
	StatusCode int
	Reason     string
	Fields     header.Fields
	Body       BodyStream
}

// BodyStream produces the response body incrementally. It is one-shot:
// chunks are consumed forward and never re-read.
type BodyStream interface {
	// Next returns the next body chunk, or [io.EOF] after the final
	// one. The returned slice is owned by the caller.
	Next(ctx context.Context) ([]byte, error)

	// Close releases the stream. Unread bytes are dropped.
	Close() error
}

// Engine performs a single HTTP exchange. Implementations must honor
// ctx through both dispatch and body consumption, and must never
// follow redirects.
type Engine interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}
