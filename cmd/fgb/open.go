package main

import (
	"context"
	"io"

	"github.com/paulmach/orb/geojson"

	flatgeobuf "github.com/tingold/fgbstream"
	"github.com/tingold/fgbstream/httprange"
)

// layer is a container opened from disk or over HTTP.
type layer interface {
	Header() *flatgeobuf.Header
	NextFeature(ctx context.Context) (*geojson.Feature, error)
}

// fileLayer walks the records of a container held in memory.
type fileLayer struct {
	header  *flatgeobuf.Header
	records []*flatgeobuf.Record
}

func (l *fileLayer) Header() *flatgeobuf.Header {
	return l.header
}

func (l *fileLayer) NextFeature(ctx context.Context) (*geojson.Feature, error) {
	if len(l.records) == 0 {
		return nil, io.EOF
	}
	rec := l.records[0]
	l.records = l.records[1:]
	return rec.GeoJSON(l.header.Columns), nil
}

// openLayer opens target, a path or an http(s) URL.
func (a *app) openLayer(ctx context.Context, target string, legacyBoolPad bool) (layer, error) {
	if isURL(target) {
		a.logger.Debug("opening remote container", "url", target)
		client := httprange.NewBufferedClient(target, a.rangeOptions()...)
		remote, err := flatgeobuf.OpenRemote(ctx, client, readerOptions(legacyBoolPad)...)
		if err != nil {
			return nil, err
		}
		return remote, nil
	}

	r, err := flatgeobuf.NewReader(target, readerOptions(legacyBoolPad)...)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	records, err := r.Records()
	if err != nil {
		return nil, err
	}
	return &fileLayer{header: r.Header(), records: records}, nil
}
