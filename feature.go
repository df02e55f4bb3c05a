package flatgeobuf

import (
	"encoding/binary"
	"fmt"

	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// FeatureSource supplies the content of one feature record.
type FeatureSource interface {
	// FeatureGeometry returns the geometry to encode. It must not be nil.
	FeatureGeometry() orb.Geometry

	// FeatureSchema returns the feature's own columns and property values,
	// or nil for a geometry-only feature.
	FeatureSchema() *Schema
}

// Schema holds the optional schema and properties of a single feature.
//
// When Columns is non-nil the feature carries its own column list and
// property indexes refer to it. Otherwise they refer to the shared
// columns in the header.
type Schema struct {
	Columns    []Column
	Properties []Property
}

// Feature is a FeatureSource built from plain values.
type Feature struct {
	Geometry orb.Geometry
	Schema   *Schema
}

// FeatureGeometry implements FeatureSource.
func (f Feature) FeatureGeometry() orb.Geometry { return f.Geometry }

// FeatureSchema implements FeatureSource.
func (f Feature) FeatureSchema() *Schema { return f.Schema }

// GeoJSONFeature adapts a geojson.Feature to the shared columns of a
// container. Properties without a matching column and nil values are
// left out.
type GeoJSONFeature struct {
	Feature   *geojson.Feature
	Columns   []Column
	ColumnMap map[string]int
}

// FeatureGeometry implements FeatureSource.
func (g GeoJSONFeature) FeatureGeometry() orb.Geometry {
	if g.Feature == nil {
		return nil
	}
	return g.Feature.Geometry
}

// FeatureSchema implements FeatureSource.
func (g GeoJSONFeature) FeatureSchema() *Schema {
	if g.Feature == nil || len(g.Feature.Properties) == 0 || len(g.Columns) == 0 {
		return nil
	}

	props := make([]Property, 0, len(g.Feature.Properties))
	for _, name := range sortedKeys(g.Feature.Properties) {
		value := g.Feature.Properties[name]
		if value == nil {
			continue
		}
		colIndex, ok := g.ColumnMap[name]
		if !ok {
			continue
		}
		if coerced, ok := coerceValue(g.Columns[colIndex].Type, value); ok {
			value = coerced
		}
		props = append(props, Property{Column: colIndex, Value: value})
	}

	if len(props) == 0 {
		return nil
	}
	return &Schema{Properties: props}
}

// EncodeFeature serializes one feature record and returns it framed with
// its 4-byte little-endian length prefix. shared is the header's column
// list, used when the source has no columns of its own.
func EncodeFeature(src FeatureSource, shared []Column, opts *Options) ([]byte, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if src == nil {
		return nil, ErrNilGeometry
	}

	builder := flatbuffers.NewBuilder(1024)

	geomOff, err := buildGeometry(builder, src.FeatureGeometry())
	if err != nil {
		return nil, err
	}

	var columnsOff, propsOff flatbuffers.UOffsetT
	if schema := src.FeatureSchema(); schema != nil {
		columns := shared
		if schema.Columns != nil {
			columns = schema.Columns
			if columnsOff, err = buildColumns(builder, flattypes.FeatureStartColumnsVector, columns); err != nil {
				return nil, err
			}
		}

		if len(schema.Properties) > 0 {
			enc := NewPropertyEncoder(columns, opts.LegacyBoolPad)
			for _, p := range schema.Properties {
				if err := enc.Encode(p.Column, p.Value); err != nil {
					return nil, err
				}
			}
			propsOff = builder.CreateByteVector(enc.Bytes())
		}
	}

	flattypes.FeatureStart(builder)
	flattypes.FeatureAddGeometry(builder, geomOff)
	if propsOff != 0 {
		flattypes.FeatureAddProperties(builder, propsOff)
	}
	if columnsOff != 0 {
		flattypes.FeatureAddColumns(builder, columnsOff)
	}
	builder.FinishSizePrefixed(flattypes.FeatureEnd(builder))

	frame := builder.FinishedBytes()
	if got := binary.LittleEndian.Uint32(frame[:4]); int(got) != len(frame)-4 {
		return nil, fmt.Errorf("%w: feature length prefix %d does not match %d payload bytes", ErrInvalidData, got, len(frame)-4)
	}
	return frame, nil
}

// buildColumns writes every column table and then the vector that
// references them.
func buildColumns(b *flatbuffers.Builder, start vectorStarter, columns []Column) (flatbuffers.UOffsetT, error) {
	if len(columns) > maxColumns {
		return 0, fmt.Errorf("%w: %w: %d columns exceed the 16-bit index space", ErrSchema, ErrInvalidColumn, len(columns))
	}

	offsets := make([]flatbuffers.UOffsetT, 0, len(columns))
	for i, col := range columns {
		if col.Name == "" {
			return 0, fmt.Errorf("%w: %w: column %d has no name", ErrSchema, ErrInvalidColumn, i)
		}
		if _, ok := flattypes.EnumNamesColumnType[col.Type]; !ok {
			return 0, fmt.Errorf("%w: %w: column %q has unknown type %d", ErrSchema, ErrInvalidColumn, col.Name, col.Type)
		}
		offsets = append(offsets, buildColumn(b, col))
	}
	return offsetVector(b, start, offsets), nil
}

func buildColumn(b *flatbuffers.Builder, col Column) flatbuffers.UOffsetT {
	name := b.CreateString(col.Name)
	var title, description, metadata flatbuffers.UOffsetT
	if col.Title != "" {
		title = b.CreateString(col.Title)
	}
	if col.Description != "" {
		description = b.CreateString(col.Description)
	}
	if col.Metadata != "" {
		metadata = b.CreateString(col.Metadata)
	}

	flattypes.ColumnStart(b)
	flattypes.ColumnAddName(b, name)
	flattypes.ColumnAddType(b, col.Type)
	if title != 0 {
		flattypes.ColumnAddTitle(b, title)
	}
	if description != 0 {
		flattypes.ColumnAddDescription(b, description)
	}
	if col.Width != 0 {
		flattypes.ColumnAddWidth(b, col.Width)
	}
	if col.Precision != 0 {
		flattypes.ColumnAddPrecision(b, col.Precision)
	}
	if col.Scale != 0 {
		flattypes.ColumnAddScale(b, col.Scale)
	}
	flattypes.ColumnAddNullable(b, col.Nullable)
	if col.Unique {
		flattypes.ColumnAddUnique(b, true)
	}
	if col.PrimaryKey {
		flattypes.ColumnAddPrimaryKey(b, true)
	}
	if metadata != 0 {
		flattypes.ColumnAddMetadata(b, metadata)
	}
	return flattypes.ColumnEnd(b)
}
