package flatgeobuf

import (
	"encoding/json"
	"math"
	"reflect"
	"sort"
	"strconv"

	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/paulmach/orb/geojson"
)

// schemaInference accumulates column types across GeoJSON features.
// Columns keep the order in which their names are first seen.
type schemaInference struct {
	order []string
	types map[string]flattypes.ColumnType
	typed map[string]bool // false while only nil values have been seen
}

func newSchemaInference() *schemaInference {
	return &schemaInference{
		types: make(map[string]flattypes.ColumnType),
		typed: make(map[string]bool),
	}
}

func (s *schemaInference) observe(name string, value interface{}) {
	if _, known := s.typed[name]; !known {
		s.order = append(s.order, name)
		s.typed[name] = false
	}
	if value == nil {
		return
	}

	t := inferColumnType(value)
	if s.typed[name] {
		t = promoteColumnType(s.types[name], t)
	}
	s.types[name] = t
	s.typed[name] = true
}

func (s *schemaInference) columns() []Column {
	if len(s.order) == 0 {
		return nil
	}
	columns := make([]Column, len(s.order))
	for i, name := range s.order {
		t := flattypes.ColumnTypeString
		if s.typed[name] {
			t = s.types[name]
		}
		columns[i] = Column{
			Name:     name,
			Title:    name, // Set title to match name for JS library compatibility
			Type:     t,
			Nullable: true,
		}
	}
	return columns
}

// inferColumns derives a shared schema from the properties of features.
// Names are visited sorted within each feature, so the column order is
// deterministic. A column that only ever holds nil becomes String.
func inferColumns(features []*geojson.Feature) []Column {
	s := newSchemaInference()
	for _, f := range features {
		if f == nil {
			continue
		}
		for _, name := range sortedKeys(f.Properties) {
			s.observe(name, f.Properties[name])
		}
	}
	return s.columns()
}

// inferColumnType determines the FlatGeobuf column type for a Go value.
func inferColumnType(value interface{}) flattypes.ColumnType {
	switch v := value.(type) {
	case nil, string:
		return flattypes.ColumnTypeString
	case bool:
		return flattypes.ColumnTypeBool
	case int:
		if v < math.MinInt32 || v > math.MaxInt32 {
			return flattypes.ColumnTypeLong
		}
		return flattypes.ColumnTypeInt
	case int8, int16, int32:
		return flattypes.ColumnTypeInt
	case int64:
		return flattypes.ColumnTypeLong
	case uint, uint8, uint16, uint32:
		return flattypes.ColumnTypeUInt
	case uint64:
		return flattypes.ColumnTypeULong
	case float32:
		return flattypes.ColumnTypeFloat
	case float64:
		return flattypes.ColumnTypeDouble
	case []byte:
		return flattypes.ColumnTypeBinary
	case json.Number:
		if _, err := v.Int64(); err == nil {
			return flattypes.ColumnTypeLong
		}
		return flattypes.ColumnTypeDouble
	default:
		return flattypes.ColumnTypeJson
	}
}

// numericRank orders the numeric column types from narrowest to widest.
var numericRank = map[flattypes.ColumnType]int{
	flattypes.ColumnTypeByte:   1,
	flattypes.ColumnTypeUByte:  2,
	flattypes.ColumnTypeShort:  3,
	flattypes.ColumnTypeUShort: 4,
	flattypes.ColumnTypeInt:    5,
	flattypes.ColumnTypeUInt:   6,
	flattypes.ColumnTypeLong:   7,
	flattypes.ColumnTypeULong:  8,
	flattypes.ColumnTypeFloat:  9,
	flattypes.ColumnTypeDouble: 10,
}

// promoteColumnType returns a type that can hold values of both a and b.
// Numbers widen, anything mixed with String becomes String, and every
// other mix (Bool with a number, Binary with anything) becomes Json.
func promoteColumnType(a, b flattypes.ColumnType) flattypes.ColumnType {
	switch {
	case a == b:
		return a
	case a == flattypes.ColumnTypeJson || b == flattypes.ColumnTypeJson:
		return flattypes.ColumnTypeJson
	case a == flattypes.ColumnTypeString || b == flattypes.ColumnTypeString:
		return flattypes.ColumnTypeString
	}

	rankA, okA := numericRank[a]
	rankB, okB := numericRank[b]
	if !okA || !okB {
		return flattypes.ColumnTypeJson
	}
	if rankA > rankB {
		return a
	}
	return b
}

// coerceValue converts a loosely typed GeoJSON value to the Go type that
// AppendProperty expects for colType. ok is false when no conversion
// applies, including numbers outside the column's range and fractional
// numbers for integer columns; the caller then passes the value through
// unchanged and lets the encoder report the mismatch.
func coerceValue(colType flattypes.ColumnType, value interface{}) (interface{}, bool) {
	switch colType {
	case flattypes.ColumnTypeBool:
		v, ok := value.(bool)
		return v, ok
	case flattypes.ColumnTypeByte:
		v, ok := intInRange(value, math.MinInt8, math.MaxInt8)
		return int8(v), ok
	case flattypes.ColumnTypeUByte:
		v, ok := uintInRange(value, math.MaxUint8)
		return uint8(v), ok
	case flattypes.ColumnTypeShort:
		v, ok := intInRange(value, math.MinInt16, math.MaxInt16)
		return int16(v), ok
	case flattypes.ColumnTypeUShort:
		v, ok := uintInRange(value, math.MaxUint16)
		return uint16(v), ok
	case flattypes.ColumnTypeInt:
		v, ok := intInRange(value, math.MinInt32, math.MaxInt32)
		return int32(v), ok
	case flattypes.ColumnTypeUInt:
		v, ok := uintInRange(value, math.MaxUint32)
		return uint32(v), ok
	case flattypes.ColumnTypeLong:
		return toInt64(value)
	case flattypes.ColumnTypeULong:
		return toUint64(value)
	case flattypes.ColumnTypeFloat:
		v, ok := toFloat64(value)
		if math.Abs(v) > math.MaxFloat32 && !math.IsInf(v, 0) {
			return float32(0), false
		}
		return float32(v), ok
	case flattypes.ColumnTypeDouble:
		return toFloat64(value)
	case flattypes.ColumnTypeString, flattypes.ColumnTypeDateTime:
		return toString(value), true
	case flattypes.ColumnTypeJson:
		return value, true
	case flattypes.ColumnTypeBinary:
		v, ok := value.([]byte)
		return v, ok
	}
	return value, false
}

func intInRange(v interface{}, lo, hi int64) (int64, bool) {
	i, ok := toInt64(v)
	return i, ok && i >= lo && i <= hi
}

func uintInRange(v interface{}, hi uint64) (uint64, bool) {
	u, ok := toUint64(v)
	return u, ok && u <= hi
}

// toInt64 converts any Go integer kind, an integral float, or a
// json.Number. Values that do not fit an int64 do not convert.
func toInt64(v interface{}) (int64, bool) {
	if n, ok := v.(json.Number); ok {
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return floatToInt64(f)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		return int64(u), u <= math.MaxInt64
	case reflect.Float32, reflect.Float64:
		return floatToInt64(rv.Float())
	}
	return 0, false
}

// toUint64 is toInt64 for unsigned targets. Negative values do not convert.
func toUint64(v interface{}) (uint64, bool) {
	if n, ok := v.(json.Number); ok {
		if u, err := strconv.ParseUint(n.String(), 10, 64); err == nil {
			return u, true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return floatToUint64(f)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i := rv.Int()
		return uint64(i), i >= 0
	case reflect.Float32, reflect.Float64:
		return floatToUint64(rv.Float())
	}
	return 0, false
}

// 2^63 and 2^64 are exact in float64; the ranges below exclude them.
const (
	twoTo63 = float64(1 << 63)
	twoTo64 = 2 * twoTo63
)

func floatToInt64(f float64) (int64, bool) {
	if f != math.Trunc(f) || f < -twoTo63 || f >= twoTo63 {
		return 0, false
	}
	return int64(f), true
}

func floatToUint64(f float64) (uint64, bool) {
	if f != math.Trunc(f) || f < 0 || f >= twoTo64 {
		return 0, false
	}
	return uint64(f), true
}

func toFloat64(v interface{}) (float64, bool) {
	if n, ok := v.(json.Number); ok {
		f, err := n.Float64()
		return f, err == nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	}
	return 0, false
}

// toString returns strings and byte slices as is and JSON-encodes
// everything else.
func toString(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case []byte:
		return string(val)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

// buildColumnMap creates a map from column name to index.
func buildColumnMap(columns []Column) map[string]int {
	m := make(map[string]int, len(columns))
	for i, col := range columns {
		m[col.Name] = i
	}
	return m
}

func sortedKeys(props geojson.Properties) []string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
