package flatgeobuf

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/tingold/fgbstream/httprange"
)

const (
	// prefixLen is the size of every header and feature length prefix.
	prefixLen = 4

	// nodeItemLen is the byte size of one packed R-tree node.
	nodeItemLen = 8*4 + 8

	// maxHeaderSize bounds the header length read from untrusted input.
	maxHeaderSize = 10 << 20
)

// Record is one decoded feature record.
type Record struct {
	GeometryType flattypes.GeometryType
	Geometry     orb.Geometry
	XY           []float64  // Top-level coordinates as stored
	Columns      []Column   // Per-feature schema, nil when the feature uses the header's
	Properties   []Property // Decoded property entries in buffer order
}

// GeoJSON converts the record to a geojson.Feature, naming properties by
// the effective columns.
func (r *Record) GeoJSON(shared []Column) *geojson.Feature {
	f := geojson.NewFeature(r.Geometry)
	columns := shared
	if r.Columns != nil {
		columns = r.Columns
	}
	if props := propertiesToGeoJSON(r.Properties, columns); props != nil {
		f.Properties = props
	}
	return f
}

type readerConfig struct {
	legacyBoolPad bool
	httpOpts      []httprange.Option
}

// ReaderOption configures how containers are decoded.
type ReaderOption func(*readerConfig)

// WithLegacyBoolPad decodes Bool properties written with
// Options.LegacyBoolPad.
func WithLegacyBoolPad() ReaderOption {
	return func(c *readerConfig) { c.legacyBoolPad = true }
}

// WithHTTPOptions configures the range client OpenURL creates. Other
// readers ignore it.
func WithHTTPOptions(opts ...httprange.Option) ReaderOption {
	return func(c *readerConfig) { c.httpOpts = append(c.httpOpts, opts...) }
}

func newReaderConfig(opts []ReaderOption) readerConfig {
	var c readerConfig
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// checkMagic verifies the first bytes of a container.
func checkMagic(data []byte) error {
	if len(data) < len(Magic) {
		return fmt.Errorf("%w: %d bytes is too short for magic bytes", ErrInvalidData, len(data))
	}
	// The last byte is the patch version and is not checked.
	if !bytes.Equal(data[:len(Magic)-1], Magic[:len(Magic)-1]) {
		return fmt.Errorf("%w: not a FlatGeobuf container", ErrInvalidData)
	}
	return nil
}

// readLength reads a 4-byte little-endian length prefix.
func readLength(data []byte) (int, error) {
	if len(data) < prefixLen {
		return 0, fmt.Errorf("%w: truncated length prefix", ErrInvalidData)
	}
	return int(binary.LittleEndian.Uint32(data[:prefixLen])), nil
}

// decodeHeader decodes a header table (without its length prefix).
func decodeHeader(buf []byte) (header *Header, err error) {
	defer func() {
		if r := recover(); r != nil {
			header, err = nil, fmt.Errorf("%w: malformed header: %v", ErrInvalidData, r)
		}
	}()

	h := flattypes.GetRootAsHeader(buf, 0)

	header = &Header{
		Name:          string(h.Name()),
		Description:   string(h.Description()),
		GeometryType:  flattypes.EnumNamesGeometryType[h.GeometryType()],
		FeaturesCount: h.FeaturesCount(),
		IndexNodeSize: h.IndexNodeSize(),
		HasIndex:      h.IndexNodeSize() > 0,
		geometryType:  h.GeometryType(),
	}

	if n := h.EnvelopeLength(); n > 0 {
		header.Envelope = make([]float64, n)
		for i := 0; i < n; i++ {
			header.Envelope[i] = h.Envelope(i)
		}
	}

	header.Columns = decodeColumns(h.ColumnsLength(), h.Columns)
	return header, nil
}

func decodeColumns(n int, get func(*flattypes.Column, int) bool) []Column {
	if n == 0 {
		return nil
	}
	columns := make([]Column, 0, n)
	for i := 0; i < n; i++ {
		var col flattypes.Column
		if !get(&col, i) {
			continue
		}
		columns = append(columns, Column{
			Name:        string(col.Name()),
			Type:        col.Type(),
			Title:       string(col.Title()),
			Description: string(col.Description()),
			Width:       nonDefault(col.Width()),
			Precision:   nonDefault(col.Precision()),
			Scale:       nonDefault(col.Scale()),
			Nullable:    col.Nullable(),
			Unique:      col.Unique(),
			PrimaryKey:  col.PrimaryKey(),
			Metadata:    string(col.Metadata()),
		})
	}
	return columns
}

// nonDefault maps the schema's -1 "unset" to the zero value used by Column.
func nonDefault(v int32) int32 {
	if v == -1 {
		return 0
	}
	return v
}

// decodeRecord decodes a feature table (without its length prefix).
func decodeRecord(buf []byte, h *Header, cfg readerConfig) (rec *Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec, err = nil, fmt.Errorf("%w: malformed feature: %v", ErrInvalidData, r)
		}
	}()

	f := flattypes.GetRootAsFeature(buf, 0)

	var geomObj flattypes.Geometry
	geom := f.Geometry(&geomObj)
	if geom == nil {
		return nil, fmt.Errorf("%w: feature has no geometry", ErrInvalidData)
	}

	geomType := geom.Type()
	if geomType == flattypes.GeometryTypeUnknown {
		geomType = h.geometryType
	}

	rec = &Record{
		GeometryType: geomType,
		Geometry:     readGeometryAs(geom, geomType),
		Columns:      decodeColumns(f.ColumnsLength(), f.Columns),
	}
	if n := geom.XyLength(); n > 0 {
		rec.XY = make([]float64, n)
		for i := 0; i < n; i++ {
			rec.XY[i] = geom.Xy(i)
		}
	}

	if n := f.PropertiesLength(); n > 0 {
		propsBytes := make([]byte, n)
		for i := 0; i < n; i++ {
			propsBytes[i] = byte(f.Properties(i))
		}
		columns := h.Columns
		if rec.Columns != nil {
			columns = rec.Columns
		}
		if rec.Properties, err = DecodeProperties(propsBytes, columns, cfg.legacyBoolPad); err != nil {
			return nil, err
		}
	}

	return rec, nil
}

// indexSize returns the byte size of the packed R-tree that follows the
// header, or 0 when there is none.
func indexSize(featuresCount uint64, nodeSize uint16) int64 {
	if nodeSize == 0 || featuresCount == 0 {
		return 0
	}
	size := uint64(nodeSize)
	if size < 2 {
		size = 2
	}
	n := featuresCount
	numNodes := n
	for {
		n = (n + size - 1) / size
		numNodes += n
		if n == 1 {
			break
		}
	}
	return int64(numNodes * nodeItemLen)
}
