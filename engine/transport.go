package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/adamwoolhether/httpbridge/header"
	"github.com/adamwoolhether/httpbridge/throttle"
)

// Transport is the default [Engine], dispatching exchanges through an
// [http.Client].
type Transport struct {
	c      *http.Client
	logger *slog.Logger
}

// New builds a Transport from the given options. The underlying client
// never follows redirects: every response, 3xx included, is surfaced
// as-is.
func New(optFns ...Option) (*Transport, error) {
	var opts options
	for _, optFn := range optFns {
		if err := optFn(&opts); err != nil {
			return nil, fmt.Errorf("applying engine option: %w", err)
		}
	}

	t := Transport{
		c:      &http.Client{},
		logger: slog.Default(),
	}
	if opts.client != nil {
		cpy := *opts.client
		t.c = &cpy
	}
	if opts.logger != nil {
		t.logger = opts.logger
	}

	t.c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}

	var transport http.RoundTripper
	switch {
	case opts.rt != nil:
		transport = opts.rt
	case t.c.Transport != nil:
		transport = t.c.Transport
	default:
		transport = http.DefaultTransport
	}

	if opts.tlsConfig != nil {
		base, ok := transport.(*http.Transport)
		if !ok {
			return nil, fmt.Errorf("%w, have %T", ErrTransportBase, transport)
		}
		cloned := base.Clone()
		cloned.TLSClientConfig = opts.tlsConfig.Clone()
		transport = cloned
	}

	if opts.userAgent != "" {
		transport = userAgent{value: opts.userAgent, base: transport}
	}

	if opts.throttle != nil {
		rt, err := throttle.NewRoundTripper(*opts.throttle, t.logger, transport)
		if err != nil {
			return nil, fmt.Errorf("configuring throttle: %w", err)
		}
		transport = rt
	}

	t.c.Transport = transport

	return &t, nil
}

// Do dispatches req and returns the response head with its body stream
// still open. It implements [Engine].
func (t *Transport) Do(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL.String(), bytes.NewReader(req.Body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	for _, f := range req.Fields {
		// Host travels on the request itself, not in the header map.
		if strings.EqualFold(f.Name, "Host") {
			httpReq.Host = f.Value
			continue
		}
		httpReq.Header.Add(f.Name, f.Value)
	}

	resp, err := t.c.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("engine do: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Reason:     reasonPhrase(resp),
		Fields:     header.FromHTTP(resp.Header),
		Body:       &bodyStream{rc: resp.Body},
	}, nil
}

// reasonPhrase recovers the reason from the combined "200 OK" status
// line form. Servers may omit it entirely.
func reasonPhrase(resp *http.Response) string {
	reason := strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode))
	return strings.TrimPrefix(reason, " ")
}

// bodyStream adapts the response's [io.ReadCloser] into chunked reads.
type bodyStream struct {
	rc io.ReadCloser
}

// Next returns the next chunk of at most ChunkSize bytes. Reads that
// return zero bytes without an error are retried, so a non-nil chunk
// is never empty.
func (s *bodyStream) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buf := make([]byte, ChunkSize)
	for {
		n, err := s.rc.Read(buf)
		if n > 0 {
			return buf[:n], nil
		}
		if err != nil {
			return nil, err
		}
	}
}

func (s *bodyStream) Close() error {
	return s.rc.Close()
}
