package httprange

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// windowState classifies a request against the current window.
type windowState int

const (
	// windowContains: the request lies inside the window. No fetch.
	windowContains windowState = iota
	// windowOverlaps: the request starts inside the window and runs past
	// its end. The prefix before the request is dropped and only the
	// missing suffix is fetched.
	windowOverlaps
	// windowDisjoint: the request starts before the window or at or after
	// its end. The window is discarded and the whole request fetched.
	windowDisjoint
)

func (s windowState) String() string {
	switch s {
	case windowContains:
		return "contains"
	case windowOverlaps:
		return "overlaps"
	case windowDisjoint:
		return "disjoint"
	default:
		return fmt.Sprintf("windowState(%d)", int(s))
	}
}

// BufferedClient reads a remote resource through a single contiguous
// in-memory window [head, head+len(buf)).
//
// A BufferedClient is not safe for concurrent use.
type BufferedClient struct {
	fetcher RangeFetcher
	logger  *slog.Logger

	buf []byte
	// head is the absolute offset of buf[0] in the resource.
	head int64
	// bytesRequested counts bytes asked of the fetcher, for usage statistics.
	bytesRequested int64
}

// NewBufferedClient returns a BufferedClient reading url over HTTP.
func NewBufferedClient(url string, opts ...Option) *BufferedClient {
	cfg := newConfig(opts)
	return &BufferedClient{
		fetcher: &Fetcher{url: url, cfg: cfg},
		logger:  cfg.logger,
	}
}

// NewBufferedClientWithFetcher returns a BufferedClient reading through f.
func NewBufferedClientWithFetcher(f RangeFetcher, opts ...Option) *BufferedClient {
	cfg := newConfig(opts)
	return &BufferedClient{fetcher: f, logger: cfg.logger}
}

// BytesRequested returns the total number of bytes asked of the fetcher.
func (c *BufferedClient) BytesRequested() int64 {
	return c.bytesRequested
}

// Window returns the absolute offset and length of the bytes held.
func (c *BufferedClient) Window() (head, length int64) {
	return c.head, int64(len(c.buf))
}

func (c *BufferedClient) tail() int64 {
	return c.head + int64(len(c.buf))
}

func (c *BufferedClient) classify(begin, length int64) windowState {
	tail := c.tail()
	switch {
	case begin >= c.head && begin+length <= tail:
		return windowContains
	case begin >= c.head && begin < tail:
		return windowOverlaps
	default:
		return windowDisjoint
	}
}

// Get returns the bytes [begin, begin+length) of the resource. Bytes
// already in the window are not fetched again. The returned slice is only
// valid until the next call.
func (c *BufferedClient) Get(ctx context.Context, begin, length int64) ([]byte, error) {
	if begin < 0 || length < 0 {
		return nil, fmt.Errorf("%w: offset %d length %d", ErrInvalidRange, begin, length)
	}
	if length == 0 {
		return []byte{}, nil
	}

	state := c.classify(begin, length)
	switch state {
	case windowContains:
		return c.slice(begin, length), nil

	case windowOverlaps:
		c.buf = c.buf[begin-c.head:]
		c.head = begin

	case windowDisjoint:
		c.buf = c.buf[:0]
		c.head = begin
	}

	from := c.tail()
	r := Range{Offset: from, Length: begin + length - from}
	c.bytesRequested += r.Length
	c.logger.Debug("buffered get",
		"state", state.String(),
		"range_begin", r.Offset,
		"range_end", r.End(),
		"length", r.Length,
		"bytes_requested", c.bytesRequested,
	)

	data, err := c.fetcher.Fetch(ctx, r)
	if err != nil {
		return nil, err
	}
	c.buf = append(c.buf, data...)

	if c.tail() < begin+length {
		return nil, fmt.Errorf("range %d-%d: got %d of %d bytes: %w",
			r.Offset, r.End(), len(data), r.Length, io.ErrUnexpectedEOF)
	}
	return c.slice(begin, length), nil
}

// GetRanges discards the window, fetches all ranges in one request and
// returns their bytes concatenated in order. The caller locates each
// range within the result from the range lengths. The result is only
// valid until the next call.
//
// A multipart answer must carry exactly the requested bytes; a shorter or
// longer one fails with io.ErrUnexpectedEOF.
//
// When the ranges are contiguous and ascending and the server returned
// exactly their bytes, the result becomes the new window starting at
// ranges[0].Offset. Otherwise the window is left empty with head 0, since
// the concatenation does not map onto absolute offsets.
func (c *BufferedClient) GetRanges(ctx context.Context, ranges []Range) ([]byte, error) {
	c.buf = c.buf[:0]
	c.head = 0

	var total int64
	for _, r := range ranges {
		total += r.Length
	}
	c.bytesRequested += total

	c.logger.Debug("buffered get ranges",
		"ranges", len(ranges),
		"length", total,
		"bytes_requested", c.bytesRequested,
	)

	payload, err := c.fetcher.FetchRanges(ctx, ranges)
	if err != nil {
		return nil, err
	}

	if payload.Multipart && int64(payload.Len()) != total {
		return nil, fmt.Errorf("%d ranges: got %d of %d bytes: %w",
			len(ranges), payload.Len(), total, io.ErrUnexpectedEOF)
	}

	out := payload.Bytes()
	if contiguous(ranges) && int64(len(out)) == total {
		c.buf = append(c.buf, out...)
		c.head = ranges[0].Offset
		return c.buf, nil
	}
	return out, nil
}

// contiguous reports whether each range starts where the previous ends.
func contiguous(ranges []Range) bool {
	for i := 1; i < len(ranges); i++ {
		if ranges[i].Offset != ranges[i-1].End() {
			return false
		}
	}
	return len(ranges) > 0
}

func (c *BufferedClient) slice(begin, length int64) []byte {
	lower := begin - c.head
	return c.buf[lower : lower+length : lower+length]
}
