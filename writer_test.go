package flatgeobuf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"

	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// walkFrames checks the container framing of data and returns the header
// length and the length of every feature record.
func walkFrames(t *testing.T, data []byte) (int, []int) {
	t.Helper()

	if len(data) < len(Magic)+prefixLen {
		t.Fatalf("container too short: %d bytes", len(data))
	}
	if !bytes.Equal(data[:len(Magic)], Magic[:]) {
		t.Fatalf("unexpected magic bytes % x", data[:len(Magic)])
	}

	offset := len(Magic)
	headerLen := int(binary.LittleEndian.Uint32(data[offset:]))
	offset += prefixLen + headerLen
	if offset > len(data) {
		t.Fatalf("header length %d runs past end of %d bytes", headerLen, len(data))
	}

	var features []int
	for offset < len(data) {
		if offset+prefixLen > len(data) {
			t.Fatalf("truncated length prefix at %d", offset)
		}
		n := int(binary.LittleEndian.Uint32(data[offset:]))
		offset += prefixLen + n
		if offset > len(data) {
			t.Fatalf("feature %d length %d runs past end", len(features), n)
		}
		features = append(features, n)
	}
	return headerLen, features
}

func TestWrite_Points(t *testing.T) {
	geometries := []orb.Geometry{
		orb.Point{1, 2},
		orb.Point{3, 4},
		orb.Point{5, 6},
	}

	var buf bytes.Buffer
	err := Write(&buf, geometries, nil)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	// Check magic bytes
	data := buf.Bytes()
	if len(data) < 8 {
		t.Fatal("output too short")
	}

	expectedMagic := []byte{0x66, 0x67, 0x62, 0x03, 0x66, 0x67, 0x62, 0x00}
	for i, b := range expectedMagic {
		if data[i] != b {
			t.Errorf("magic byte %d: expected 0x%02x, got 0x%02x", i, b, data[i])
		}
	}

	_, frames := walkFrames(t, data)
	if len(frames) != 3 {
		t.Errorf("expected 3 feature records, got %d", len(frames))
	}

	reader, err := NewReaderFromData(data)
	if err != nil {
		t.Fatalf("NewReaderFromData failed: %v", err)
	}
	if reader.Header().GeometryType != "Point" {
		t.Errorf("expected header geometry type Point, got %s", reader.Header().GeometryType)
	}
}

func TestWrite_MixedGeometries(t *testing.T) {
	geometries := []orb.Geometry{
		orb.Point{1, 2},
		orb.LineString{{0, 0}, {1, 1}},
	}

	var buf bytes.Buffer
	err := Write(&buf, geometries, nil)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	reader, err := NewReaderFromData(buf.Bytes())
	if err != nil {
		t.Fatalf("NewReaderFromData failed: %v", err)
	}

	// Mixed geometries should result in Unknown geometry type in header
	if reader.Header().GeometryType != "Unknown" {
		t.Errorf("expected Unknown, got %s", reader.Header().GeometryType)
	}

	records, err := reader.Records()
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	if records[0].GeometryType != flattypes.GeometryTypePoint || records[1].GeometryType != flattypes.GeometryTypeLineString {
		t.Errorf("unexpected record types %v, %v", records[0].GeometryType, records[1].GeometryType)
	}
}

func TestWrite_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, nil, nil); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	headerLen, frames := walkFrames(t, buf.Bytes())
	if len(frames) != 0 {
		t.Errorf("expected no feature records, got %d", len(frames))
	}
	if buf.Len() != len(Magic)+prefixLen+headerLen {
		t.Errorf("expected %d bytes, got %d", len(Magic)+prefixLen+headerLen, buf.Len())
	}

	reader, err := NewReaderFromData(buf.Bytes())
	if err != nil {
		t.Fatalf("NewReaderFromData failed: %v", err)
	}
	h := reader.Header()
	if h.FeaturesCount != 0 {
		t.Errorf("expected 0 features, got %d", h.FeaturesCount)
	}
	if h.IndexNodeSize != 0 || h.HasIndex {
		t.Errorf("expected no index, got node size %d", h.IndexNodeSize)
	}
	if h.GeometryType != "Unknown" {
		t.Errorf("expected Unknown, got %s", h.GeometryType)
	}
}

func TestWrite_NilGeometry(t *testing.T) {
	err := Write(&bytes.Buffer{}, []orb.Geometry{orb.Point{1, 2}, nil}, nil)
	if !errors.Is(err, ErrNilGeometry) {
		t.Errorf("expected ErrNilGeometry, got %v", err)
	}
}

func TestWrite_WithOptions(t *testing.T) {
	geometries := []orb.Geometry{
		orb.Point{1, 2},
		orb.Point{-3, 8},
	}

	opts := &Options{
		Name:        "test_layer",
		Description: "A test layer",
		Envelope:    true,
	}

	var buf bytes.Buffer
	err := Write(&buf, geometries, opts)
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	reader, err := NewReaderFromData(buf.Bytes())
	if err != nil {
		t.Fatalf("NewReaderFromData failed: %v", err)
	}
	h := reader.Header()
	if h.Name != "test_layer" {
		t.Errorf("expected name test_layer, got %q", h.Name)
	}
	if h.Description != "A test layer" {
		t.Errorf("expected description, got %q", h.Description)
	}

	want := []float64{-3, 2, 1, 8}
	if len(h.Envelope) != len(want) {
		t.Fatalf("expected envelope %v, got %v", want, h.Envelope)
	}
	for i := range want {
		if h.Envelope[i] != want[i] {
			t.Errorf("envelope[%d]: expected %v, got %v", i, want[i], h.Envelope[i])
		}
	}
}

func TestWrite_NoEnvelopeByDefault(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, []orb.Geometry{orb.Point{1, 2}}, nil); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	reader, err := NewReaderFromData(buf.Bytes())
	if err != nil {
		t.Fatalf("NewReaderFromData failed: %v", err)
	}
	if reader.Header().Envelope != nil {
		t.Errorf("expected no envelope, got %v", reader.Header().Envelope)
	}
	if reader.Header().Name != "" {
		t.Errorf("expected no name, got %q", reader.Header().Name)
	}
}

func TestWrite_ExplicitGeometryType(t *testing.T) {
	opts := &Options{GeometryType: flattypes.GeometryTypeGeometryCollection}

	var buf bytes.Buffer
	if err := Write(&buf, []orb.Geometry{orb.Point{1, 2}}, opts); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	reader, err := NewReaderFromData(buf.Bytes())
	if err != nil {
		t.Fatalf("NewReaderFromData failed: %v", err)
	}
	if reader.Header().GeometryType != "GeometryCollection" {
		t.Errorf("expected GeometryCollection, got %s", reader.Header().GeometryType)
	}
}

func TestWriter_BoolScenario(t *testing.T) {
	opts := &Options{
		Columns: []Column{{Name: "flag", Type: flattypes.ColumnTypeBool, Nullable: true}},
	}
	features := []FeatureSource{
		Feature{
			Geometry: orb.Point{1, 2},
			Schema:   &Schema{Properties: []Property{{Column: 0, Value: true}}},
		},
		Feature{
			Geometry: orb.LineString{{5, 6}, {7, 8}, {9, 10}},
		},
		Feature{
			Geometry: orb.Point{3, 4},
			Schema:   &Schema{Properties: []Property{{Column: 0, Value: false}}},
		},
	}

	var buf bytes.Buffer
	w := NewWriter(&buf, opts)
	if err := w.Write(features); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if w.BytesWritten() != int64(buf.Len()) {
		t.Errorf("BytesWritten %d does not match %d bytes in sink", w.BytesWritten(), buf.Len())
	}

	_, frames := walkFrames(t, buf.Bytes())
	if len(frames) != 3 {
		t.Fatalf("expected 3 feature records, got %d", len(frames))
	}

	reader, err := NewReaderFromData(buf.Bytes())
	if err != nil {
		t.Fatalf("NewReaderFromData failed: %v", err)
	}
	if reader.Header().FeaturesCount != 3 {
		t.Errorf("expected 3 features, got %d", reader.Header().FeaturesCount)
	}

	records, err := reader.Records()
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}

	wantTypes := []flattypes.GeometryType{
		flattypes.GeometryTypePoint,
		flattypes.GeometryTypeLineString,
		flattypes.GeometryTypePoint,
	}
	wantXY := [][]float64{{1, 2}, {5, 6, 7, 8, 9, 10}, {3, 4}}
	wantProps := []any{true, nil, false}

	for i, rec := range records {
		if rec.GeometryType != wantTypes[i] {
			t.Errorf("record %d: expected type %v, got %v", i, wantTypes[i], rec.GeometryType)
		}
		if len(rec.XY) != len(wantXY[i]) {
			t.Fatalf("record %d: expected xy %v, got %v", i, wantXY[i], rec.XY)
		}
		for j := range wantXY[i] {
			if rec.XY[j] != wantXY[i][j] {
				t.Errorf("record %d: xy[%d] expected %v, got %v", i, j, wantXY[i][j], rec.XY[j])
			}
		}

		if wantProps[i] == nil {
			if len(rec.Properties) != 0 {
				t.Errorf("record %d: expected no properties, got %v", i, rec.Properties)
			}
			continue
		}
		if len(rec.Properties) != 1 {
			t.Fatalf("record %d: expected 1 property, got %d", i, len(rec.Properties))
		}
		if rec.Properties[0].Column != 0 || rec.Properties[0].Value != wantProps[i] {
			t.Errorf("record %d: expected flag=%v, got %+v", i, wantProps[i], rec.Properties[0])
		}
	}
}

func TestWriter_LegacyBoolPadRoundTrip(t *testing.T) {
	opts := &Options{
		Columns:       []Column{{Name: "flag", Type: flattypes.ColumnTypeBool}, {Name: "n", Type: flattypes.ColumnTypeInt}},
		LegacyBoolPad: true,
	}
	features := []FeatureSource{
		Feature{
			Geometry: orb.Point{1, 2},
			Schema:   &Schema{Properties: []Property{{Column: 0, Value: true}, {Column: 1, Value: int32(7)}}},
		},
	}

	var buf bytes.Buffer
	if err := NewWriter(&buf, opts).Write(features); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	reader, err := NewReaderFromData(buf.Bytes(), WithLegacyBoolPad())
	if err != nil {
		t.Fatalf("NewReaderFromData failed: %v", err)
	}
	records, err := reader.Records()
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	props := records[0].Properties
	if len(props) != 2 || props[0].Value != true || props[1].Value != int32(7) {
		t.Errorf("unexpected properties %+v", props)
	}
}

func TestWriter_PerFeatureColumns(t *testing.T) {
	features := []FeatureSource{
		Feature{
			Geometry: orb.Point{1, 2},
			Schema: &Schema{
				Columns:    []Column{{Name: "name", Type: flattypes.ColumnTypeString, Width: 20}},
				Properties: []Property{{Column: 0, Value: "first"}},
			},
		},
		Feature{
			Geometry: orb.Point{3, 4},
			Schema: &Schema{
				Columns:    []Column{{Name: "height", Type: flattypes.ColumnTypeDouble}},
				Properties: []Property{{Column: 0, Value: 12.5}},
			},
		},
	}

	var buf bytes.Buffer
	if err := NewWriter(&buf, nil).Write(features); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	reader, err := NewReaderFromData(buf.Bytes())
	if err != nil {
		t.Fatalf("NewReaderFromData failed: %v", err)
	}
	if reader.Header().Columns != nil {
		t.Errorf("expected no shared columns, got %v", reader.Header().Columns)
	}

	fc, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if fc.Features[0].Properties["name"] != "first" {
		t.Errorf("expected name=first, got %v", fc.Features[0].Properties)
	}
	if fc.Features[1].Properties["height"] != 12.5 {
		t.Errorf("expected height=12.5, got %v", fc.Features[1].Properties)
	}

	records, err := reader.Records()
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	if len(records[0].Columns) != 1 || records[0].Columns[0].Width != 20 {
		t.Errorf("expected per-feature column with width 20, got %+v", records[0].Columns)
	}
}

func TestWriter_SecondWriteFails(t *testing.T) {
	w := NewWriter(&bytes.Buffer{}, nil)
	if err := w.Write(nil); err != nil {
		t.Fatalf("first Write failed: %v", err)
	}
	if err := w.Write(nil); !errors.Is(err, ErrWriterClosed) {
		t.Errorf("expected ErrWriterClosed, got %v", err)
	}
}

type failingWriter struct {
	after int
	err   error
	n     int
}

func (f *failingWriter) Write(p []byte) (int, error) {
	if f.n >= f.after {
		return 0, f.err
	}
	f.n++
	return len(p), nil
}

type shortWriter struct{}

func (shortWriter) Write(p []byte) (int, error) {
	return len(p) / 2, nil
}

func TestWriter_SinkErrors(t *testing.T) {
	boom := errors.New("disk full")
	geometries := []orb.Geometry{orb.Point{1, 2}, orb.Point{3, 4}}

	// Fail on magic, header and the first feature in turn.
	for after := 0; after < 3; after++ {
		err := Write(&failingWriter{after: after, err: boom}, geometries, nil)
		if !errors.Is(err, ErrSinkWrite) {
			t.Errorf("after %d writes: expected ErrSinkWrite, got %v", after, err)
		}
		if !errors.Is(err, boom) {
			t.Errorf("after %d writes: expected the sink error to be wrapped, got %v", after, err)
		}
	}

	err := Write(shortWriter{}, geometries, nil)
	if !errors.Is(err, io.ErrShortWrite) {
		t.Errorf("expected io.ErrShortWrite, got %v", err)
	}
}

func TestWriter_PropertyErrors(t *testing.T) {
	opts := &Options{
		Columns: []Column{{Name: "count", Type: flattypes.ColumnTypeInt}},
	}

	tests := []struct {
		name   string
		prop   Property
		target error
	}{
		{"type mismatch", Property{Column: 0, Value: "seven"}, ErrPropertyMismatch},
		{"index out of range", Property{Column: 1, Value: int32(1)}, ErrInvalidColumn},
		{"nil value", Property{Column: 0, Value: nil}, ErrPropertyMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			features := []FeatureSource{Feature{
				Geometry: orb.Point{0, 0},
				Schema:   &Schema{Properties: []Property{tt.prop}},
			}}
			err := NewWriter(&bytes.Buffer{}, opts).Write(features)
			if !errors.Is(err, tt.target) {
				t.Errorf("expected %v, got %v", tt.target, err)
			}
			if !errors.Is(err, ErrSchema) {
				t.Errorf("expected ErrSchema, got %v", err)
			}
		})
	}
}

func TestWriteFeatures_ValueOutOfColumnRange(t *testing.T) {
	opts := &Options{
		Columns: []Column{{Name: "n", Type: flattypes.ColumnTypeInt}},
	}

	for _, value := range []interface{}{3e9, 1.5, int64(math.MaxInt32) + 1} {
		fc := geojson.NewFeatureCollection()
		f := geojson.NewFeature(orb.Point{0, 0})
		f.Properties = geojson.Properties{"n": value}
		fc.Append(f)

		err := WriteFeatures(&bytes.Buffer{}, fc, opts)
		if !errors.Is(err, ErrPropertyMismatch) || !errors.Is(err, ErrSchema) {
			t.Errorf("%v: expected ErrSchema and ErrPropertyMismatch, got %v", value, err)
		}
	}
}

func TestWriter_InvalidColumns(t *testing.T) {
	tests := []struct {
		name    string
		columns []Column
	}{
		{"empty name", []Column{{Name: "", Type: flattypes.ColumnTypeInt}}},
		{"unknown type", []Column{{Name: "x", Type: flattypes.ColumnType(200)}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Write(&bytes.Buffer{}, []orb.Geometry{orb.Point{0, 0}}, &Options{Columns: tt.columns})
			if !errors.Is(err, ErrInvalidColumn) {
				t.Errorf("expected ErrInvalidColumn, got %v", err)
			}
		})
	}
}

func TestWriteFeatures_WithProperties(t *testing.T) {
	fc := geojson.NewFeatureCollection()

	f1 := geojson.NewFeature(orb.Point{1, 2})
	f1.Properties = geojson.Properties{
		"name":   "Point A",
		"value":  42,
		"active": true,
	}
	fc.Append(f1)

	f2 := geojson.NewFeature(orb.Point{3, 4})
	f2.Properties = geojson.Properties{
		"name":   "Point B",
		"value":  100,
		"active": false,
	}
	fc.Append(f2)

	var buf bytes.Buffer
	err := WriteFeatures(&buf, fc, nil)
	if err != nil {
		t.Fatalf("WriteFeatures failed: %v", err)
	}

	reader, err := NewReaderFromData(buf.Bytes())
	if err != nil {
		t.Fatalf("NewReaderFromData failed: %v", err)
	}

	columns := reader.Header().Columns
	wantNames := []string{"active", "name", "value"}
	if len(columns) != len(wantNames) {
		t.Fatalf("expected %d columns, got %d", len(wantNames), len(columns))
	}
	for i, name := range wantNames {
		if columns[i].Name != name {
			t.Errorf("column %d: expected %s, got %s", i, name, columns[i].Name)
		}
	}

	out, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	props := out.Features[1].Properties
	if props["name"] != "Point B" || props["value"] != int32(100) || props["active"] != false {
		t.Errorf("unexpected properties %v", props)
	}
}

func TestWriteFeatures_NilCollection(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFeatures(&buf, nil, nil); err != nil {
		t.Fatalf("WriteFeatures failed: %v", err)
	}

	reader, err := NewReaderFromData(buf.Bytes())
	if err != nil {
		t.Fatalf("NewReaderFromData failed: %v", err)
	}
	if reader.Header().FeaturesCount != 0 {
		t.Errorf("expected 0 features, got %d", reader.Header().FeaturesCount)
	}
}

func TestWriteFeatures_SkipsFeaturesWithoutGeometry(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.Point{1, 2}))
	fc.Append(&geojson.Feature{Properties: geojson.Properties{"orphan": true}})
	fc.Features = append(fc.Features, nil)

	var buf bytes.Buffer
	if err := WriteFeatures(&buf, fc, nil); err != nil {
		t.Fatalf("WriteFeatures failed: %v", err)
	}

	reader, err := NewReaderFromData(buf.Bytes())
	if err != nil {
		t.Fatalf("NewReaderFromData failed: %v", err)
	}
	if reader.Header().FeaturesCount != 1 {
		t.Errorf("expected 1 feature, got %d", reader.Header().FeaturesCount)
	}
	if reader.Header().Columns != nil {
		t.Errorf("expected no columns from skipped features, got %v", reader.Header().Columns)
	}
	if n := len(WritableFeatures(fc)); uint64(n) != reader.Header().FeaturesCount {
		t.Errorf("WritableFeatures counted %d, header has %d", n, reader.Header().FeaturesCount)
	}
	if WritableFeatures(nil) != nil {
		t.Error("expected nil for a nil collection")
	}
}

func TestWriteFeatures_DoesNotModifyOptions(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	f := geojson.NewFeature(orb.Point{1, 2})
	f.Properties = geojson.Properties{"name": "x"}
	fc.Append(f)

	opts := &Options{Name: "layer"}
	if err := WriteFeatures(&bytes.Buffer{}, fc, opts); err != nil {
		t.Fatalf("WriteFeatures failed: %v", err)
	}
	if opts.Columns != nil {
		t.Errorf("expected caller options untouched, got columns %v", opts.Columns)
	}
}

func TestWriteFeature_Single(t *testing.T) {
	f := geojson.NewFeature(orb.Point{1, 2})
	f.Properties = geojson.Properties{"name": "test"}

	var buf bytes.Buffer
	err := WriteFeature(&buf, f, nil)
	if err != nil {
		t.Fatalf("WriteFeature failed: %v", err)
	}

	reader, err := NewReaderFromData(buf.Bytes())
	if err != nil {
		t.Fatalf("NewReaderFromData failed: %v", err)
	}
	out, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(out.Features) != 1 || out.Features[0].Properties["name"] != "test" {
		t.Errorf("unexpected features %v", out.Features)
	}
}

func TestWriteFeature_Nil(t *testing.T) {
	err := WriteFeature(&bytes.Buffer{}, nil, nil)
	if err != ErrNilGeometry {
		t.Errorf("expected ErrNilGeometry, got %v", err)
	}
}

func TestWriteFeatures_ComplexGeometries(t *testing.T) {
	fc := geojson.NewFeatureCollection()

	// Polygon with hole
	poly := orb.Polygon{
		{{0, 0}, {100, 0}, {100, 100}, {0, 100}, {0, 0}},
		{{20, 20}, {80, 20}, {80, 80}, {20, 80}, {20, 20}},
	}
	f1 := geojson.NewFeature(poly)
	f1.Properties = geojson.Properties{"type": "polygon_with_hole"}
	fc.Append(f1)

	// MultiPolygon
	mpoly := orb.MultiPolygon{
		{{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}},
		{{{50, 50}, {60, 50}, {60, 60}, {50, 60}, {50, 50}}},
	}
	f2 := geojson.NewFeature(mpoly)
	f2.Properties = geojson.Properties{"type": "multipolygon"}
	fc.Append(f2)

	var buf bytes.Buffer
	err := WriteFeatures(&buf, fc, nil)
	if err != nil {
		t.Fatalf("WriteFeatures failed: %v", err)
	}

	reader, err := NewReaderFromData(buf.Bytes())
	if err != nil {
		t.Fatalf("NewReaderFromData failed: %v", err)
	}
	geoms, err := reader.ReadGeometries()
	if err != nil {
		t.Fatalf("ReadGeometries failed: %v", err)
	}
	if p, ok := geoms[0].(orb.Polygon); !ok || len(p) != 2 {
		t.Errorf("expected polygon with hole, got %T", geoms[0])
	}
	if mp, ok := geoms[1].(orb.MultiPolygon); !ok || len(mp) != 2 {
		t.Errorf("expected multipolygon with 2 parts, got %T", geoms[1])
	}
}

func TestEncodeFeature_LengthPrefix(t *testing.T) {
	geometries := []orb.Geometry{
		orb.Point{1, 2},
		orb.MultiPoint{{1, 2}, {3, 4}},
		orb.LineString{{0, 0}, {1, 1}, {2, 2}},
		orb.MultiLineString{{{0, 0}, {1, 1}}, {{2, 2}, {3, 3}, {4, 4}}},
		orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}},
		orb.MultiPolygon{
			{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}},
			{{{5, 5}, {6, 5}, {6, 6}, {5, 5}}, {{5.2, 5.2}, {5.4, 5.2}, {5.4, 5.4}, {5.2, 5.2}}},
		},
		orb.Collection{orb.Point{1, 1}, orb.LineString{{0, 0}, {3, 3}}},
	}
	schemas := map[string]*Schema{
		"no schema": nil,
		"per-feature schema": {
			Columns: []Column{
				{Name: "name", Type: flattypes.ColumnTypeString},
				{Name: "n", Type: flattypes.ColumnTypeInt},
				{Name: "ok", Type: flattypes.ColumnTypeBool},
			},
			Properties: []Property{
				{Column: 0, Value: "feature"},
				{Column: 1, Value: int32(7)},
				{Column: 2, Value: true},
			},
		},
	}

	for name, schema := range schemas {
		for _, g := range geometries {
			frame, err := EncodeFeature(Feature{Geometry: g, Schema: schema}, nil, nil)
			if err != nil {
				t.Fatalf("%s: EncodeFeature(%T) failed: %v", name, g, err)
			}
			if got := binary.LittleEndian.Uint32(frame); int(got) != len(frame)-prefixLen {
				t.Errorf("%s: %T: prefix %d, payload %d bytes", name, g, got, len(frame)-prefixLen)
			}

			rec, err := decodeRecord(frame[prefixLen:], &Header{}, newReaderConfig(nil))
			if err != nil {
				t.Fatalf("%s: decoding %T failed: %v", name, g, err)
			}
			if !orb.Equal(rec.Geometry, g) {
				t.Errorf("%s: expected %v, got %v", name, g, rec.Geometry)
			}
			if schema != nil && len(rec.Columns) != len(schema.Columns) {
				t.Errorf("%s: %T: expected %d columns, got %d", name, g, len(schema.Columns), len(rec.Columns))
			}
		}
	}
}

func TestEncodeFeature_NilSource(t *testing.T) {
	if _, err := EncodeFeature(nil, nil, nil); !errors.Is(err, ErrNilGeometry) {
		t.Errorf("expected ErrNilGeometry, got %v", err)
	}
	if _, err := EncodeFeature(Feature{}, nil, nil); !errors.Is(err, ErrNilGeometry) {
		t.Errorf("expected ErrNilGeometry for nil geometry, got %v", err)
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	if opts == nil {
		t.Fatal("expected non-nil options")
	}

	if opts.LegacyBoolPad {
		t.Error("expected LegacyBoolPad to be off by default")
	}
	if opts.GeometryType != flattypes.GeometryTypeUnknown {
		t.Errorf("expected Unknown geometry type, got %v", opts.GeometryType)
	}
}
