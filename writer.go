package flatgeobuf

import (
	"fmt"
	"io"

	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Writer emits one FlatGeobuf container to an io.Writer: the magic bytes,
// the size-prefixed header and every feature record in input order.
//
// A Writer is not safe for concurrent use. A failed write leaves a
// truncated container in the sink; the caller must discard it.
type Writer struct {
	w            io.Writer
	opts         *Options
	bytesWritten int64
	used         bool
}

// NewWriter returns a Writer that writes to w.
func NewWriter(w io.Writer, opts *Options) *Writer {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &Writer{w: w, opts: opts}
}

// BytesWritten returns the number of bytes flushed to the sink so far.
func (w *Writer) BytesWritten() int64 {
	return w.bytesWritten
}

// Write writes a complete container holding features. The header's
// feature count is len(features) and feature i is the i-th record.
// An empty slice produces a valid container with no records.
func (w *Writer) Write(features []FeatureSource) error {
	if w.used {
		return ErrWriterClosed
	}
	w.used = true

	if err := w.writeBuf(Magic[:]); err != nil {
		return err
	}
	if err := w.writeHeader(features); err != nil {
		return err
	}
	for i, f := range features {
		frame, err := EncodeFeature(f, w.opts.Columns, w.opts)
		if err != nil {
			return fmt.Errorf("feature %d: %w", i, err)
		}
		if err := w.writeBuf(frame); err != nil {
			return fmt.Errorf("feature %d: %w", i, err)
		}
	}
	return nil
}

func (w *Writer) writeBuf(buf []byte) error {
	n, err := w.w.Write(buf)
	w.bytesWritten += int64(n)
	if err == nil && n < len(buf) {
		err = io.ErrShortWrite
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSinkWrite, err)
	}
	return nil
}

func (w *Writer) writeHeader(features []FeatureSource) error {
	builder := flatbuffers.NewBuilder(1024)

	var nameOff, descOff, columnsOff, envelopeOff flatbuffers.UOffsetT
	if w.opts.Name != "" {
		nameOff = builder.CreateString(w.opts.Name)
	}
	if w.opts.Description != "" {
		descOff = builder.CreateString(w.opts.Description)
	}
	if len(w.opts.Columns) > 0 {
		var err error
		if columnsOff, err = buildColumns(builder, flattypes.HeaderStartColumnsVector, w.opts.Columns); err != nil {
			return err
		}
	}
	if w.opts.Envelope && len(features) > 0 {
		geometries := make([]orb.Geometry, 0, len(features))
		for _, f := range features {
			if f != nil && f.FeatureGeometry() != nil {
				geometries = append(geometries, f.FeatureGeometry())
			}
		}
		if len(geometries) > 0 {
			env := envelope(geometries)
			envelopeOff = float64Vector(builder, flattypes.HeaderStartEnvelopeVector, env[:])
		}
	}

	geomType := w.opts.GeometryType
	if geomType == flattypes.GeometryTypeUnknown {
		geomType = commonGeometryType(features)
	}

	flattypes.HeaderStart(builder)
	if nameOff != 0 {
		flattypes.HeaderAddName(builder, nameOff)
	}
	if envelopeOff != 0 {
		flattypes.HeaderAddEnvelope(builder, envelopeOff)
	}
	flattypes.HeaderAddGeometryType(builder, geomType)
	if columnsOff != 0 {
		flattypes.HeaderAddColumns(builder, columnsOff)
	}
	flattypes.HeaderAddFeaturesCount(builder, uint64(len(features)))
	// The schema default is 16, so 0 has to be written explicitly to
	// declare that no index follows the header.
	flattypes.HeaderAddIndexNodeSize(builder, 0)
	if descOff != 0 {
		flattypes.HeaderAddDescription(builder, descOff)
	}
	builder.FinishSizePrefixed(flattypes.HeaderEnd(builder))

	return w.writeBuf(builder.FinishedBytes())
}

// commonGeometryType returns the geometry type shared by every feature, or
// Unknown when they differ or there are none.
func commonGeometryType(features []FeatureSource) flattypes.GeometryType {
	geomType := flattypes.GeometryTypeUnknown
	for i, f := range features {
		if f == nil {
			return flattypes.GeometryTypeUnknown
		}
		t := geometryType(f.FeatureGeometry())
		if i == 0 {
			geomType = t
		} else if t != geomType {
			return flattypes.GeometryTypeUnknown
		}
	}
	return geomType
}

// Write writes geometries to FlatGeobuf format.
// This is a convenience function for writing geometry-only data without properties.
func Write(w io.Writer, geometries []orb.Geometry, opts *Options) error {
	features := make([]FeatureSource, 0, len(geometries))
	for i, g := range geometries {
		if g == nil {
			return fmt.Errorf("geometry %d: %w", i, ErrNilGeometry)
		}
		features = append(features, Feature{Geometry: g})
	}
	return NewWriter(w, opts).Write(features)
}

// WriteFeatures writes a FeatureCollection to FlatGeobuf format.
// The shared schema is inferred from the properties unless opts.Columns
// is set. Features without a geometry are skipped.
func WriteFeatures(w io.Writer, fc *geojson.FeatureCollection, opts *Options) error {
	features := WritableFeatures(fc)

	o := DefaultOptions()
	if opts != nil {
		copied := *opts
		o = &copied
	}
	if o.Columns == nil {
		o.Columns = inferColumns(features)
	}
	columnMap := buildColumnMap(o.Columns)

	sources := make([]FeatureSource, 0, len(features))
	for _, f := range features {
		sources = append(sources, GeoJSONFeature{
			Feature:   f,
			Columns:   o.Columns,
			ColumnMap: columnMap,
		})
	}

	return NewWriter(w, o).Write(sources)
}

// WritableFeatures returns the features of fc that WriteFeatures writes,
// in order: those with a geometry.
func WritableFeatures(fc *geojson.FeatureCollection) []*geojson.Feature {
	if fc == nil {
		return nil
	}
	features := make([]*geojson.Feature, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f != nil && f.Geometry != nil {
			features = append(features, f)
		}
	}
	return features
}

// WriteFeature writes a single feature to FlatGeobuf format.
func WriteFeature(w io.Writer, f *geojson.Feature, opts *Options) error {
	if f == nil || f.Geometry == nil {
		return ErrNilGeometry
	}

	fc := &geojson.FeatureCollection{
		Features: []*geojson.Feature{f},
	}

	return WriteFeatures(w, fc, opts)
}
