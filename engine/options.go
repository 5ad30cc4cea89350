package engine

import (
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/adamwoolhether/httpbridge/throttle"
)

// ErrTransportBase indicates a TLS config was supplied but the base
// transport is not an [*http.Transport] it can be cloned onto.
var ErrTransportBase = errors.New("tls config requires an *http.Transport base")

// Option is a functional option for configuring a [Transport] via [New].
type Option func(*options) error

type options struct {
	client    *http.Client
	rt        http.RoundTripper
	userAgent string
	throttle  *throttle.Config
	tlsConfig *tls.Config
	logger    *slog.Logger
}

// WithHTTPClient seeds the Transport with hc. The client is shallow
// copied, so the caller's instance is never mutated; its Transport
// becomes the base of the round-trip chain unless [WithRoundTripper]
// overrides it.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) error {
		if hc == nil {
			return errors.New("client must not be nil")
		}
		o.client = hc

		return nil
	}
}

// WithRoundTripper sets a custom [http.RoundTripper] as the base transport.
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(o *options) error {
		if rt == nil {
			return errors.New("transport must not be nil")
		}
		o.rt = rt

		return nil
	}
}

// WithUserAgent adds a persistent User-Agent header to all outgoing requests.
func WithUserAgent(agent string) Option {
	return func(o *options) error {
		o.userAgent = agent
		return nil
	}
}

// WithThrottle enables rate limiting of outbound requests, with the
// given requests per second and burst capacity.
func WithThrottle(rps, burst int) Option {
	return func(o *options) error {
		if rps <= 0 || burst <= 0 {
			return fmt.Errorf("rps[%d] and burst[%d] %w", rps, burst, throttle.ErrMustNotBeZero)
		}
		o.throttle = &throttle.Config{RPS: rps, Burst: burst}

		return nil
	}
}

// WithTLSConfig applies cfg to the underlying [*http.Transport].
func WithTLSConfig(cfg *tls.Config) Option {
	return func(o *options) error {
		if cfg == nil {
			return errors.New("tls config must not be nil")
		}
		o.tlsConfig = cfg

		return nil
	}
}

// WithLogger injects a custom [slog.Logger] into the [Transport].
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			return errors.New("logger must not be nil")
		}
		o.logger = logger

		return nil
	}
}

// userAgent is an http.RoundTripper, enabling the persistent User-Agent header.
type userAgent struct {
	value string
	base  http.RoundTripper
}

func (ua userAgent) RoundTrip(r *http.Request) (*http.Response, error) {
	cpy := r.Clone(r.Context())
	cpy.Header.Set("User-Agent", ua.value)

	return ua.base.RoundTrip(cpy)
}
