// Package flatgeobuf writes FlatGeobuf containers from orb geometries and
// reads them back, locally or over HTTP range requests.
//
// A container is the magic bytes, a size-prefixed header and a sequence of
// size-prefixed feature records. The writer never emits a spatial index:
// the header's index node size is always 0, so features follow the header
// directly and a reader can walk them one length prefix at a time.
package flatgeobuf

import (
	"errors"

	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
)

// Magic identifies a FlatGeobuf container (format version 3).
var Magic = [8]byte{0x66, 0x67, 0x62, 0x03, 0x66, 0x67, 0x62, 0x00}

// Common errors returned by this package.
var (
	ErrNilGeometry      = errors.New("flatgeobuf: nil geometry")
	ErrUnsupportedType  = errors.New("flatgeobuf: unsupported geometry type")
	ErrInvalidData      = errors.New("flatgeobuf: invalid data")
	ErrInvalidColumn    = errors.New("flatgeobuf: invalid column")
	ErrPropertyMismatch = errors.New("flatgeobuf: property type mismatch")
	ErrSchema           = errors.New("flatgeobuf: schema error")
	ErrSinkWrite        = errors.New("flatgeobuf: sink write failed")
	ErrWriterClosed     = errors.New("flatgeobuf: writer already used")
)

// maxColumns is the number of column indexes a u16 property entry can address.
const maxColumns = 1 << 16

// Options configures FlatGeobuf writing.
type Options struct {
	Name        string   // Layer name
	Description string   // Layer description
	Columns     []Column // Shared schema written to the header (optional)

	// GeometryType is recorded in the header. When Unknown the writer
	// records the common type of all features, or Unknown if they differ.
	GeometryType flattypes.GeometryType

	// Envelope writes the bounding box of all features into the header.
	Envelope bool

	// LegacyBoolPad appends a zero byte after every Bool property value.
	// Only readers that expect the pad can decode such buffers.
	LegacyBoolPad bool
}

// DefaultOptions returns default options for writing FlatGeobuf files.
func DefaultOptions() *Options {
	return &Options{}
}

// Column describes a property column, either shared in the header or
// carried by a single feature. Columns are identified by position.
type Column struct {
	Name        string
	Type        flattypes.ColumnType
	Title       string
	Description string
	Width       int32 // 0 means unset
	Precision   int32 // 0 means unset
	Scale       int32 // 0 means unset
	Nullable    bool
	Unique      bool
	PrimaryKey  bool
	Metadata    string
}

// Header contains metadata about a FlatGeobuf file.
type Header struct {
	Name          string    // Layer name
	Description   string    // Layer description
	GeometryType  string    // Geometry type ("Point", "Polygon", "Unknown", etc.)
	FeaturesCount uint64    // Number of features in the file
	IndexNodeSize uint16    // 0 when the file has no spatial index
	Envelope      []float64 // Bounding box [minX, minY, maxX, maxY], nil when absent
	HasIndex      bool      // Whether the file has a spatial index
	Columns       []Column  // Shared property schema

	geometryType flattypes.GeometryType
}
