package flatgeobuf

import (
	"context"
	"fmt"
	"io"

	"github.com/paulmach/orb/geojson"

	"github.com/tingold/fgbstream/httprange"
)

// RemoteReader streams features from a container served over HTTP. Only
// the header and the records actually read are fetched.
//
// A RemoteReader is not safe for concurrent use.
type RemoteReader struct {
	client *httprange.BufferedClient
	header *Header
	cfg    readerConfig

	// offset is the absolute position of the next record's length prefix.
	offset int64
	next   uint64
}

// OpenURL opens the container at url. Transport settings are passed with
// WithHTTPOptions.
func OpenURL(ctx context.Context, url string, opts ...ReaderOption) (*RemoteReader, error) {
	cfg := newReaderConfig(opts)
	return OpenRemote(ctx, httprange.NewBufferedClient(url, cfg.httpOpts...), opts...)
}

// OpenRemote reads the magic bytes and header through client and returns
// a reader positioned at the first feature.
func OpenRemote(ctx context.Context, client *httprange.BufferedClient, opts ...ReaderOption) (*RemoteReader, error) {
	prefix, err := client.Get(ctx, 0, int64(len(Magic)+prefixLen))
	if err != nil {
		return nil, fmt.Errorf("reading magic bytes: %w", err)
	}
	if err := checkMagic(prefix); err != nil {
		return nil, err
	}
	headerLen, err := readLength(prefix[len(Magic):])
	if err != nil {
		return nil, err
	}
	if headerLen > maxHeaderSize {
		return nil, fmt.Errorf("%w: header length %d exceeds %d", ErrInvalidData, headerLen, maxHeaderSize)
	}

	start := int64(len(Magic) + prefixLen)
	headerBytes, err := client.Get(ctx, start, int64(headerLen))
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	header, err := decodeHeader(headerBytes)
	if err != nil {
		return nil, err
	}

	return &RemoteReader{
		client: client,
		header: header,
		cfg:    newReaderConfig(opts),
		offset: start + int64(headerLen) + indexSize(header.FeaturesCount, header.IndexNodeSize),
	}, nil
}

// Header returns the container header.
func (r *RemoteReader) Header() *Header {
	return r.header
}

// BytesRequested returns the number of bytes fetched so far.
func (r *RemoteReader) BytesRequested() int64 {
	return r.client.BytesRequested()
}

// Next decodes the next feature record. It returns io.EOF after the last
// feature.
func (r *RemoteReader) Next(ctx context.Context) (*Record, error) {
	size, err := r.recordSize(ctx)
	if err != nil {
		return nil, err
	}

	body, err := r.client.Get(ctx, r.offset+prefixLen, int64(size))
	if err != nil {
		return nil, fmt.Errorf("feature %d: %w", r.next, err)
	}
	rec, err := decodeRecord(body, r.header, r.cfg)
	if err != nil {
		return nil, fmt.Errorf("feature %d: %w", r.next, err)
	}

	r.offset += prefixLen + int64(size)
	r.next++
	return rec, nil
}

// NextFeature is Next converted to a geojson.Feature.
func (r *RemoteReader) NextFeature(ctx context.Context) (*geojson.Feature, error) {
	rec, err := r.Next(ctx)
	if err != nil {
		return nil, err
	}
	return rec.GeoJSON(r.header.Columns), nil
}

// Skip moves past the next feature record, fetching only its length
// prefix. It returns io.EOF after the last feature.
func (r *RemoteReader) Skip(ctx context.Context) error {
	size, err := r.recordSize(ctx)
	if err != nil {
		return err
	}
	r.offset += prefixLen + int64(size)
	r.next++
	return nil
}

func (r *RemoteReader) recordSize(ctx context.Context) (int, error) {
	if r.next >= r.header.FeaturesCount {
		return 0, io.EOF
	}
	prefix, err := r.client.Get(ctx, r.offset, prefixLen)
	if err != nil {
		return 0, fmt.Errorf("feature %d: %w", r.next, err)
	}
	return readLength(prefix)
}
