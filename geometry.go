package flatgeobuf

import (
	"fmt"

	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	flatbuffers "github.com/google/flatbuffers/go"
	"github.com/paulmach/orb"
)

// geometryType returns the FlatGeobuf type an orb.Geometry is written as.
// Rings and bounds are written as polygons.
func geometryType(geom orb.Geometry) flattypes.GeometryType {
	switch geom.(type) {
	case orb.Point:
		return flattypes.GeometryTypePoint
	case orb.MultiPoint:
		return flattypes.GeometryTypeMultiPoint
	case orb.LineString:
		return flattypes.GeometryTypeLineString
	case orb.MultiLineString:
		return flattypes.GeometryTypeMultiLineString
	case orb.Ring, orb.Polygon, orb.Bound:
		return flattypes.GeometryTypePolygon
	case orb.MultiPolygon:
		return flattypes.GeometryTypeMultiPolygon
	case orb.Collection:
		return flattypes.GeometryTypeGeometryCollection
	default:
		return flattypes.GeometryTypeUnknown
	}
}

// buildGeometry writes geom into b and returns the offset of its geometry
// table. Child tables and vectors are created before the parent table is
// started, since flatbuffers tables cannot be nested while under
// construction.
func buildGeometry(b *flatbuffers.Builder, geom orb.Geometry) (flatbuffers.UOffsetT, error) {
	if geom == nil {
		return 0, ErrNilGeometry
	}

	switch v := geom.(type) {
	case orb.Point:
		return finishGeometry(b, flattypes.GeometryTypePoint, v[:], nil, nil), nil

	case orb.MultiPoint:
		return finishGeometry(b, flattypes.GeometryTypeMultiPoint, appendXY(nil, v), nil, nil), nil

	case orb.LineString:
		return finishGeometry(b, flattypes.GeometryTypeLineString, appendXY(nil, v), nil, nil), nil

	case orb.MultiLineString:
		xy, ends := flattenLines(v)
		return finishGeometry(b, flattypes.GeometryTypeMultiLineString, xy, ends, nil), nil

	case orb.Ring:
		xy, ends := flattenLines(orb.Polygon{v})
		return finishGeometry(b, flattypes.GeometryTypePolygon, xy, ends, nil), nil

	case orb.Polygon:
		xy, ends := flattenLines(v)
		return finishGeometry(b, flattypes.GeometryTypePolygon, xy, ends, nil), nil

	case orb.Bound:
		xy, ends := flattenLines(v.ToPolygon())
		return finishGeometry(b, flattypes.GeometryTypePolygon, xy, ends, nil), nil

	case orb.MultiPolygon:
		parts := make([]flatbuffers.UOffsetT, 0, len(v))
		for _, poly := range v {
			xy, ends := flattenLines(poly)
			parts = append(parts, finishGeometry(b, flattypes.GeometryTypePolygon, xy, ends, nil))
		}
		return finishGeometry(b, flattypes.GeometryTypeMultiPolygon, nil, nil, parts), nil

	case orb.Collection:
		parts := make([]flatbuffers.UOffsetT, 0, len(v))
		for i, child := range v {
			off, err := buildGeometry(b, child)
			if err != nil {
				return 0, fmt.Errorf("collection member %d: %w", i, err)
			}
			parts = append(parts, off)
		}
		return finishGeometry(b, flattypes.GeometryTypeGeometryCollection, nil, nil, parts), nil

	default:
		return 0, fmt.Errorf("%w: %T", ErrUnsupportedType, geom)
	}
}

// finishGeometry writes the vectors for one geometry table and then the
// table itself. Empty vectors are omitted.
func finishGeometry(
	b *flatbuffers.Builder,
	geomType flattypes.GeometryType,
	xy []float64,
	ends []uint32,
	parts []flatbuffers.UOffsetT,
) flatbuffers.UOffsetT {
	var xyOff, endsOff, partsOff flatbuffers.UOffsetT
	if len(xy) > 0 {
		xyOff = float64Vector(b, flattypes.GeometryStartXyVector, xy)
	}
	if len(ends) > 0 {
		flattypes.GeometryStartEndsVector(b, len(ends))
		for i := len(ends) - 1; i >= 0; i-- {
			b.PrependUint32(ends[i])
		}
		endsOff = b.EndVector(len(ends))
	}
	if len(parts) > 0 {
		partsOff = offsetVector(b, flattypes.GeometryStartPartsVector, parts)
	}

	flattypes.GeometryStart(b)
	if endsOff != 0 {
		flattypes.GeometryAddEnds(b, endsOff)
	}
	if xyOff != 0 {
		flattypes.GeometryAddXy(b, xyOff)
	}
	if partsOff != 0 {
		flattypes.GeometryAddParts(b, partsOff)
	}
	flattypes.GeometryAddType(b, geomType)
	return flattypes.GeometryEnd(b)
}

type vectorStarter func(b *flatbuffers.Builder, numElems int) flatbuffers.UOffsetT

func float64Vector(b *flatbuffers.Builder, start vectorStarter, values []float64) flatbuffers.UOffsetT {
	start(b, len(values))
	for i := len(values) - 1; i >= 0; i-- {
		b.PrependFloat64(values[i])
	}
	return b.EndVector(len(values))
}

func offsetVector(b *flatbuffers.Builder, start vectorStarter, offsets []flatbuffers.UOffsetT) flatbuffers.UOffsetT {
	start(b, len(offsets))
	for i := len(offsets) - 1; i >= 0; i-- {
		b.PrependUOffsetT(offsets[i])
	}
	return b.EndVector(len(offsets))
}

// appendXY appends the interleaved x, y coordinates of pts to xy.
func appendXY(xy []float64, pts []orb.Point) []float64 {
	for _, p := range pts {
		xy = append(xy, p[0], p[1])
	}
	return xy
}

// flattenLines concatenates lines into one coordinate vector. ends[i] is
// the number of points up to and including line i.
func flattenLines[L ~[]orb.Point](lines []L) ([]float64, []uint32) {
	n := 0
	for _, l := range lines {
		n += len(l)
	}
	xy := make([]float64, 0, 2*n)
	ends := make([]uint32, 0, len(lines))
	for _, l := range lines {
		xy = appendXY(xy, l)
		ends = append(ends, uint32(len(xy)/2))
	}
	return xy, ends
}

// envelope returns [minX, minY, maxX, maxY] covering every geometry.
func envelope(geometries []orb.Geometry) [4]float64 {
	if len(geometries) == 0 {
		return [4]float64{}
	}
	b := geometries[0].Bound()
	for _, g := range geometries[1:] {
		b = b.Union(g.Bound())
	}
	return [4]float64{b.Min[0], b.Min[1], b.Max[0], b.Max[1]}
}

// readGeometry converts a decoded geometry table to an orb.Geometry using
// the table's own type.
func readGeometry(g *flattypes.Geometry) orb.Geometry {
	if g == nil {
		return nil
	}
	return readGeometryAs(g, g.Type())
}

// readGeometryAs decodes g as geomType. Writers may leave the type off
// features and rely on the header's geometry type. Unknown types decode
// to nil.
func readGeometryAs(g *flattypes.Geometry, geomType flattypes.GeometryType) orb.Geometry {
	switch geomType {
	case flattypes.GeometryTypePoint:
		if g.XyLength() < 2 {
			return orb.Point{}
		}
		return orb.Point{g.Xy(0), g.Xy(1)}

	case flattypes.GeometryTypeMultiPoint:
		return orb.MultiPoint(points(g, 0, g.XyLength()/2))

	case flattypes.GeometryTypeLineString:
		return orb.LineString(points(g, 0, g.XyLength()/2))

	case flattypes.GeometryTypeMultiLineString:
		lines := splitLines(g)
		mls := make(orb.MultiLineString, len(lines))
		for i, l := range lines {
			mls[i] = l
		}
		return mls

	case flattypes.GeometryTypePolygon:
		return readPolygon(g)

	case flattypes.GeometryTypeMultiPolygon:
		mp := orb.MultiPolygon{}
		if g.PartsLength() == 0 {
			if poly := readPolygon(g); len(poly) > 0 {
				mp = append(mp, poly)
			}
			return mp
		}
		var part flattypes.Geometry
		for i := 0; i < g.PartsLength(); i++ {
			if g.Parts(&part, i) {
				if poly := readPolygon(&part); len(poly) > 0 {
					mp = append(mp, poly)
				}
			}
		}
		return mp

	case flattypes.GeometryTypeGeometryCollection:
		coll := orb.Collection{}
		for i := 0; i < g.PartsLength(); i++ {
			var part flattypes.Geometry
			if g.Parts(&part, i) {
				if child := readGeometry(&part); child != nil {
					coll = append(coll, child)
				}
			}
		}
		return coll

	default:
		return nil
	}
}

func readPolygon(g *flattypes.Geometry) orb.Polygon {
	lines := splitLines(g)
	poly := make(orb.Polygon, len(lines))
	for i, l := range lines {
		poly[i] = orb.Ring(l)
	}
	return poly
}

// points returns points [from, to) of g's coordinate vector, clamped to
// the vector's length.
func points(g *flattypes.Geometry, from, to int) []orb.Point {
	to = min(to, g.XyLength()/2)
	if from >= to {
		return []orb.Point{}
	}
	pts := make([]orb.Point, 0, to-from)
	for i := from; i < to; i++ {
		pts = append(pts, orb.Point{g.Xy(2 * i), g.Xy(2*i + 1)})
	}
	return pts
}

// splitLines cuts g's coordinates at its ends. Without ends every
// coordinate belongs to a single line.
func splitLines(g *flattypes.Geometry) []orb.LineString {
	n := g.XyLength() / 2
	if n == 0 {
		return nil
	}
	if g.EndsLength() == 0 {
		return []orb.LineString{points(g, 0, n)}
	}
	lines := make([]orb.LineString, 0, g.EndsLength())
	start := 0
	for i := 0; i < g.EndsLength(); i++ {
		end := int(g.Ends(i))
		lines = append(lines, points(g, start, end))
		start = end
	}
	return lines
}
