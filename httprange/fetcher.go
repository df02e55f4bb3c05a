package httprange

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// RangeFetcher is the transport a BufferedClient reads through.
type RangeFetcher interface {
	Fetch(ctx context.Context, r Range) ([]byte, error)
	FetchRanges(ctx context.Context, ranges []Range) (*Payload, error)
}

// Payload is the answer to a multi-range request.
type Payload struct {
	// Parts holds one element per requested range for multipart
	// responses, or a single element holding the raw body otherwise.
	Parts [][]byte

	// Multipart reports whether the server answered with
	// multipart/byteranges.
	Multipart bool
}

// Bytes returns the parts concatenated in order.
func (p *Payload) Bytes() []byte {
	if len(p.Parts) == 1 {
		return p.Parts[0]
	}
	n := 0
	for _, part := range p.Parts {
		n += len(part)
	}
	out := make([]byte, 0, n)
	for _, part := range p.Parts {
		out = append(out, part...)
	}
	return out
}

// Len returns the total number of payload bytes.
func (p *Payload) Len() int {
	n := 0
	for _, part := range p.Parts {
		n += len(part)
	}
	return n
}

// Fetcher issues HTTP range requests against a single URL. It holds no
// mutable state and is safe for concurrent use. It does not retry.
type Fetcher struct {
	url string
	cfg config
}

// NewFetcher returns a Fetcher for url.
func NewFetcher(url string, opts ...Option) *Fetcher {
	return &Fetcher{url: url, cfg: newConfig(opts)}
}

// URL returns the resource URL.
func (f *Fetcher) URL() string {
	return f.url
}

// Fetch requests a single range. A 206 response body is returned as is.
// A 200 response means the server ignored the Range header; the requested
// interval is cut out of the full body.
func (f *Fetcher) Fetch(ctx context.Context, r Range) ([]byte, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}

	f.cfg.logger.Debug("fetching range", "url", f.url, "range", r.header(), "length", r.Length)

	resp, err := f.do(ctx, "bytes="+r.header())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusPartialContent:
		return readBody(resp.Body, r.Length)

	case http.StatusOK:
		body, err := readBody(resp.Body, -1)
		if err != nil {
			return nil, err
		}
		f.cfg.logger.Debug("server ignored range header", "url", f.url, "body_length", len(body))
		if r.Offset >= int64(len(body)) {
			return nil, nil
		}
		return body[r.Offset:min(r.End(), int64(len(body)))], nil

	default:
		return nil, &StatusError{Code: resp.StatusCode, URL: f.url}
	}
}

// FetchRanges requests several ranges in one request. A
// multipart/byteranges answer is split into its parts; any other
// successful answer is returned as a single raw part.
//
// A part whose Content-Range disagrees with its length is rejected.
// When every part names its range with Content-Range and those ranges
// match the request, the parts are returned in request order. Otherwise
// the server's order is kept.
func (f *Fetcher) FetchRanges(ctx context.Context, ranges []Range) (*Payload, error) {
	if len(ranges) == 0 {
		return nil, fmt.Errorf("%w: no ranges", ErrInvalidRange)
	}
	bounds := make([]string, len(ranges))
	for i, r := range ranges {
		if err := r.validate(); err != nil {
			return nil, err
		}
		bounds[i] = r.header()
	}
	header := "bytes=" + strings.Join(bounds, ",")

	f.cfg.logger.Debug("fetching ranges", "url", f.url, "range", header, "count", len(ranges))

	resp, err := f.do(ctx, header)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode, URL: f.url}
	}

	body, err := readBody(resp.Body, -1)
	if err != nil {
		return nil, err
	}

	boundary, ok := BoundaryFromContentType(resp.Header.Get("Content-Type"))
	if !ok {
		f.cfg.logger.Debug("response is not multipart", "url", f.url, "status", resp.StatusCode, "body_length", len(body))
		return &Payload{Parts: [][]byte{body}}, nil
	}

	f.cfg.logger.Debug("matched byteranges", "url", f.url, "boundary", boundary)
	parts, err := Demux(body, boundary)
	if err != nil {
		return nil, err
	}

	for i, p := range parts {
		if p.HasRange && int64(len(p.Data)) != p.Range.Length {
			return nil, fmt.Errorf("%w: part %d has %d bytes for range %d-%d",
				ErrMalformedMultipart, i, len(p.Data), p.Range.Offset, p.Range.End()-1)
		}
	}

	parts = orderParts(parts, ranges)
	payload := &Payload{Parts: make([][]byte, len(parts)), Multipart: true}
	for i, p := range parts {
		payload.Parts[i] = p.Data
	}
	return payload, nil
}

// orderParts returns parts in the order of ranges when every part carries
// a Content-Range that matches exactly one requested range.
func orderParts(parts []Part, ranges []Range) []Part {
	if len(parts) != len(ranges) {
		return parts
	}
	byRange := make(map[Range]Part, len(parts))
	for _, p := range parts {
		if !p.HasRange {
			return parts
		}
		if _, dup := byRange[p.Range]; dup {
			return parts
		}
		byRange[p.Range] = p
	}
	ordered := make([]Part, 0, len(ranges))
	for _, r := range ranges {
		p, ok := byRange[r]
		if !ok {
			return parts
		}
		ordered = append(ordered, p)
	}
	return ordered
}

func (f *Fetcher) do(ctx context.Context, rangeHeader string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %w", ErrTransport, err)
	}
	for key, values := range f.cfg.header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	req.Header.Set("Range", rangeHeader)

	resp, err := f.cfg.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTransport, err)
	}
	return resp, nil
}

// readBody reads a response body. A non-negative limit caps the read at
// that many bytes.
func readBody(body io.Reader, limit int64) ([]byte, error) {
	if limit >= 0 {
		body = io.LimitReader(body, limit)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body: %w", ErrTransport, err)
	}
	return data, nil
}
