// Package httprange fetches byte ranges of a remote resource over HTTP.
//
// A Fetcher issues single and multi-range GET requests and demultiplexes
// multipart/byteranges responses. A BufferedClient keeps one contiguous
// window of the resource in memory so that repeated or overlapping reads
// only fetch the bytes they are missing.
package httprange

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// Errors returned by this package.
var (
	ErrTransport          = errors.New("httprange: transport error")
	ErrMalformedMultipart = errors.New("httprange: malformed multipart response")
	ErrInvalidRange       = errors.New("httprange: invalid range")
)

// StatusError reports a response with a status the range protocol does
// not accept.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("httprange: unexpected status %d %s for %s", e.Code, http.StatusText(e.Code), e.URL)
}

// Range is a half-open interval [Offset, Offset+Length) of a resource.
type Range struct {
	Offset int64
	Length int64
}

// End returns the exclusive end offset.
func (r Range) End() int64 {
	return r.Offset + r.Length
}

// header renders the range as "start-end" with an inclusive end byte.
func (r Range) header() string {
	return fmt.Sprintf("%d-%d", r.Offset, r.Offset+r.Length-1)
}

func (r Range) validate() error {
	if r.Offset < 0 || r.Length <= 0 {
		return fmt.Errorf("%w: offset %d length %d", ErrInvalidRange, r.Offset, r.Length)
	}
	return nil
}

type config struct {
	client *http.Client
	logger *slog.Logger
	header http.Header
}

// Option configures a Fetcher or BufferedClient.
type Option func(*config)

// WithHTTPClient sets the client used for requests. The default is
// http.DefaultClient.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *config) { cfg.client = c }
}

// WithLogger sets the logger for request tracing. Requests are logged at
// debug level. The default discards all records.
func WithLogger(l *slog.Logger) Option {
	return func(cfg *config) { cfg.logger = l }
}

// WithHeader adds a header sent with every request.
func WithHeader(key, value string) Option {
	return func(cfg *config) {
		if cfg.header == nil {
			cfg.header = make(http.Header)
		}
		cfg.header.Add(key, value)
	}
}

func newConfig(opts []Option) config {
	cfg := config{client: http.DefaultClient}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return cfg
}
