package httprange

import (
	"bytes"
	"fmt"
	"mime"
	"strconv"
	"strings"
)

const byterangesType = "multipart/byteranges"

// Part is one body part of a multipart/byteranges response.
type Part struct {
	Data []byte

	// Range is the interval named by the part's Content-Range header.
	// It is only meaningful when HasRange is set.
	Range    Range
	HasRange bool
}

// BoundaryFromContentType returns the boundary token of a
// multipart/byteranges content type. ok is false for any other type.
func BoundaryFromContentType(contentType string) (boundary string, ok bool) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err == nil {
		if mediaType != byterangesType {
			return "", false
		}
		boundary = params["boundary"]
		return boundary, boundary != ""
	}

	// Some servers (CloudFront among them) send unquoted boundaries
	// containing ':', which ParseMediaType rejects.
	const token = "; boundary="
	i := strings.Index(strings.ToLower(contentType), token)
	if i < 0 || strings.TrimSpace(strings.ToLower(contentType[:i])) != byterangesType {
		return "", false
	}
	boundary = contentType[i+len(token):]
	if j := strings.IndexByte(boundary, ';'); j >= 0 {
		boundary = boundary[:j]
	}
	boundary = strings.Trim(strings.TrimSpace(boundary), `"`)
	return boundary, boundary != ""
}

// Demux splits a multipart/byteranges body into its parts, in response
// order. Part headers are dropped except Content-Range, which is parsed
// into Part.Range when present.
//
// Exactly one line terminator is trimmed on each side of a part, so body
// bytes that happen to end in CRLF are preserved. A body that ends
// without the closing delimiter is truncated and is rejected.
func Demux(body []byte, boundary string) ([]Part, error) {
	if boundary == "" {
		return nil, fmt.Errorf("%w: empty boundary", ErrMalformedMultipart)
	}
	delim := []byte("--" + boundary)
	if !bytes.Contains(body, delim) {
		return nil, fmt.Errorf("%w: boundary %q not found", ErrMalformedMultipart, boundary)
	}

	segments := bytes.Split(body, delim)
	parts := make([]Part, 0, len(segments)-1)
	closed := false

	// segments[0] is the preamble.
	for i, seg := range segments[1:] {
		if bytes.HasPrefix(seg, []byte("--")) {
			if closed {
				return nil, fmt.Errorf("%w: closing boundary repeated", ErrMalformedMultipart)
			}
			closed = true
			continue
		}

		seg = trimTerminator(seg)
		if len(seg) == 0 {
			continue
		}
		if closed {
			return nil, fmt.Errorf("%w: part %d after closing boundary", ErrMalformedMultipart, i)
		}

		headers, data, err := splitPart(seg)
		if err != nil {
			return nil, fmt.Errorf("part %d: %w", i, err)
		}

		part := Part{Data: data}
		part.Range, part.HasRange = contentRange(headers)
		parts = append(parts, part)
	}

	if len(parts) == 0 {
		return nil, fmt.Errorf("%w: no body parts", ErrMalformedMultipart)
	}
	if !closed {
		return nil, fmt.Errorf("%w: closing boundary missing", ErrMalformedMultipart)
	}
	return parts, nil
}

// trimTerminator removes one leading and one trailing CRLF (or LF).
func trimTerminator(seg []byte) []byte {
	switch {
	case bytes.HasPrefix(seg, []byte("\r\n")):
		seg = seg[2:]
	case bytes.HasPrefix(seg, []byte("\n")):
		seg = seg[1:]
	}
	switch {
	case bytes.HasSuffix(seg, []byte("\r\n")):
		seg = seg[:len(seg)-2]
	case bytes.HasSuffix(seg, []byte("\n")):
		seg = seg[:len(seg)-1]
	}
	return seg
}

// splitPart splits a part on the blank line that ends its headers.
func splitPart(seg []byte) (headers, data []byte, err error) {
	// A part without headers starts with the blank line itself.
	if bytes.HasPrefix(seg, []byte("\r\n")) {
		return nil, seg[2:], nil
	}
	if i := bytes.Index(seg, []byte("\r\n\r\n")); i >= 0 {
		return seg[:i], seg[i+4:], nil
	}
	if i := bytes.Index(seg, []byte("\n\n")); i >= 0 {
		return seg[:i], seg[i+2:], nil
	}
	return nil, nil, fmt.Errorf("%w: missing header/body separator", ErrMalformedMultipart)
}

// contentRange finds and parses a "Content-Range: bytes a-b/n" header.
func contentRange(headers []byte) (Range, bool) {
	for _, line := range strings.Split(string(headers), "\n") {
		name, value, ok := strings.Cut(strings.TrimRight(line, "\r"), ":")
		if !ok || !strings.EqualFold(strings.TrimSpace(name), "Content-Range") {
			continue
		}
		return parseContentRange(strings.TrimSpace(value))
	}
	return Range{}, false
}

func parseContentRange(value string) (Range, bool) {
	rng, ok := strings.CutPrefix(value, "bytes ")
	if !ok {
		return Range{}, false
	}
	rng, _, _ = strings.Cut(rng, "/")
	first, last, ok := strings.Cut(rng, "-")
	if !ok {
		return Range{}, false
	}
	start, err := strconv.ParseInt(strings.TrimSpace(first), 10, 64)
	if err != nil {
		return Range{}, false
	}
	end, err := strconv.ParseInt(strings.TrimSpace(last), 10, 64)
	if err != nil || end < start {
		return Range{}, false
	}
	return Range{Offset: start, Length: end - start + 1}, true
}
