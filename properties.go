package flatgeobuf

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/flatgeobuf/flatgeobuf/src/go/flattypes"
	"github.com/paulmach/orb/geojson"
)

// Property is one entry of a feature's property buffer: the zero-based
// column index and the value to encode under that column's type.
type Property struct {
	Column int
	Value  any
}

// PropertyEncoder accumulates the property buffer of a single feature.
// Entries are written in call order, each as [u16 LE column index][value].
type PropertyEncoder struct {
	columns       []Column
	legacyBoolPad bool
	buf           []byte
}

// NewPropertyEncoder returns an encoder that resolves column indexes
// against columns.
func NewPropertyEncoder(columns []Column, legacyBoolPad bool) *PropertyEncoder {
	return &PropertyEncoder{columns: columns, legacyBoolPad: legacyBoolPad}
}

// Encode appends the entry for value under column index.
func (e *PropertyEncoder) Encode(index int, value any) error {
	if index < 0 || index >= maxColumns {
		return fmt.Errorf("%w: %w: column index %d does not fit in 16 bits", ErrSchema, ErrInvalidColumn, index)
	}
	if index >= len(e.columns) {
		return fmt.Errorf("%w: %w: column index %d out of range (%d columns)", ErrSchema, ErrInvalidColumn, index, len(e.columns))
	}

	buf, err := AppendProperty(e.buf, index, e.columns[index].Type, value, e.legacyBoolPad)
	if err != nil {
		return fmt.Errorf("column %q: %w", e.columns[index].Name, err)
	}
	e.buf = buf
	return nil
}

// Bytes returns the buffer built so far. It is nil if nothing was encoded.
func (e *PropertyEncoder) Bytes() []byte {
	return e.buf
}

// Len returns the number of bytes encoded so far.
func (e *PropertyEncoder) Len() int {
	return len(e.buf)
}

// AppendProperty appends one property entry to dst and returns the
// extended buffer. The Go type of value must match colType: bool for
// Bool, int8..uint64 for the sized integer kinds, float32 for Float,
// float64 for Double, string for String, []byte for Binary, time.Time or
// string for DateTime, and anything JSON-marshallable for Json. A plain
// int is accepted by the integer kinds when it fits.
//
// Fixed-size values are little-endian at their natural width. String,
// Json, DateTime and Binary values are prefixed with their u32 LE byte
// length. When legacyBoolPad is set a Bool value is followed by a zero
// byte.
func AppendProperty(dst []byte, index int, colType flattypes.ColumnType, value any, legacyBoolPad bool) ([]byte, error) {
	if index < 0 || index >= maxColumns {
		return dst, fmt.Errorf("%w: %w: column index %d does not fit in 16 bits", ErrSchema, ErrInvalidColumn, index)
	}
	if value == nil {
		return dst, fmt.Errorf("%w: %w: nil value for column %d", ErrSchema, ErrPropertyMismatch, index)
	}

	out := binary.LittleEndian.AppendUint16(dst, uint16(index))

	mismatch := func() ([]byte, error) {
		return dst, fmt.Errorf("%w: %w: %T for %s column %d",
			ErrSchema, ErrPropertyMismatch, value, columnTypeName(colType), index)
	}

	switch colType {
	case flattypes.ColumnTypeBool:
		v, ok := value.(bool)
		if !ok {
			return mismatch()
		}
		if v {
			out = append(out, 1)
		} else {
			out = append(out, 0)
		}
		if legacyBoolPad {
			out = append(out, 0)
		}

	case flattypes.ColumnTypeByte:
		v, ok := signedValue(value, 8)
		if !ok {
			return mismatch()
		}
		out = append(out, byte(int8(v)))

	case flattypes.ColumnTypeUByte:
		v, ok := unsignedValue(value, 8)
		if !ok {
			return mismatch()
		}
		out = append(out, byte(v))

	case flattypes.ColumnTypeShort:
		v, ok := signedValue(value, 16)
		if !ok {
			return mismatch()
		}
		out = binary.LittleEndian.AppendUint16(out, uint16(int16(v)))

	case flattypes.ColumnTypeUShort:
		v, ok := unsignedValue(value, 16)
		if !ok {
			return mismatch()
		}
		out = binary.LittleEndian.AppendUint16(out, uint16(v))

	case flattypes.ColumnTypeInt:
		v, ok := signedValue(value, 32)
		if !ok {
			return mismatch()
		}
		out = binary.LittleEndian.AppendUint32(out, uint32(int32(v)))

	case flattypes.ColumnTypeUInt:
		v, ok := unsignedValue(value, 32)
		if !ok {
			return mismatch()
		}
		out = binary.LittleEndian.AppendUint32(out, uint32(v))

	case flattypes.ColumnTypeLong:
		v, ok := signedValue(value, 64)
		if !ok {
			return mismatch()
		}
		out = binary.LittleEndian.AppendUint64(out, uint64(v))

	case flattypes.ColumnTypeULong:
		v, ok := unsignedValue(value, 64)
		if !ok {
			return mismatch()
		}
		out = binary.LittleEndian.AppendUint64(out, v)

	case flattypes.ColumnTypeFloat:
		v, ok := value.(float32)
		if !ok {
			return mismatch()
		}
		out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))

	case flattypes.ColumnTypeDouble:
		v, ok := value.(float64)
		if !ok {
			return mismatch()
		}
		out = binary.LittleEndian.AppendUint64(out, math.Float64bits(v))

	case flattypes.ColumnTypeString:
		v, ok := value.(string)
		if !ok {
			return mismatch()
		}
		return appendSized(dst, out, []byte(v), index)

	case flattypes.ColumnTypeJson:
		var raw []byte
		switch v := value.(type) {
		case json.RawMessage:
			raw = v
		default:
			var err error
			if raw, err = json.Marshal(v); err != nil {
				return dst, fmt.Errorf("%w: %w: column %d: %v", ErrSchema, ErrPropertyMismatch, index, err)
			}
		}
		return appendSized(dst, out, raw, index)

	case flattypes.ColumnTypeDateTime:
		switch v := value.(type) {
		case time.Time:
			return appendSized(dst, out, []byte(v.Format(time.RFC3339Nano)), index)
		case string:
			return appendSized(dst, out, []byte(v), index)
		default:
			return mismatch()
		}

	case flattypes.ColumnTypeBinary:
		v, ok := value.([]byte)
		if !ok {
			return mismatch()
		}
		return appendSized(dst, out, v, index)

	default:
		return dst, fmt.Errorf("%w: %w: unknown column type %d", ErrSchema, ErrInvalidColumn, colType)
	}

	return out, nil
}

// appendSized appends [u32 LE length][payload] to out. On failure the
// original dst is returned untouched.
func appendSized(dst, out, payload []byte, index int) ([]byte, error) {
	if uint64(len(payload)) > math.MaxUint32 {
		return dst, fmt.Errorf("%w: %w: column %d value of %d bytes is too large", ErrSchema, ErrPropertyMismatch, index, len(payload))
	}
	out = binary.LittleEndian.AppendUint32(out, uint32(len(payload)))
	return append(out, payload...), nil
}

// signedValue accepts the exact sized signed type for bits, or an int
// that fits.
func signedValue(value any, bits int) (int64, bool) {
	switch v := value.(type) {
	case int8:
		return int64(v), bits == 8
	case int16:
		return int64(v), bits == 16
	case int32:
		return int64(v), bits == 32
	case int64:
		return v, bits == 64
	case int:
		n := int64(v)
		if bits == 64 {
			return n, true
		}
		limit := int64(1) << (bits - 1)
		return n, n >= -limit && n < limit
	}
	return 0, false
}

// unsignedValue accepts the exact sized unsigned type for bits, or a
// non-negative int that fits.
func unsignedValue(value any, bits int) (uint64, bool) {
	switch v := value.(type) {
	case uint8:
		return uint64(v), bits == 8
	case uint16:
		return uint64(v), bits == 16
	case uint32:
		return uint64(v), bits == 32
	case uint64:
		return v, bits == 64
	case int:
		if v < 0 {
			return 0, false
		}
		n := uint64(v)
		if bits == 64 {
			return n, true
		}
		return n, n < uint64(1)<<bits
	}
	return 0, false
}

func columnTypeName(t flattypes.ColumnType) string {
	if name, ok := flattypes.EnumNamesColumnType[t]; ok {
		return name
	}
	return fmt.Sprintf("ColumnType(%d)", t)
}

// DecodeProperties decodes a property buffer against columns. Entries
// are returned in buffer order. legacyBoolPad must match the setting the
// buffer was written with.
func DecodeProperties(data []byte, columns []Column, legacyBoolPad bool) ([]Property, error) {
	if len(data) == 0 {
		return nil, nil
	}

	props := make([]Property, 0, len(columns))
	offset := 0

	for offset < len(data) {
		if offset+2 > len(data) {
			return props, fmt.Errorf("%w: truncated column index at byte %d", ErrInvalidData, offset)
		}

		colIndex := int(binary.LittleEndian.Uint16(data[offset : offset+2]))
		offset += 2

		if colIndex >= len(columns) {
			return props, fmt.Errorf("%w: column index %d out of range (%d columns)", ErrInvalidData, colIndex, len(columns))
		}

		value, bytesRead, err := readPropertyValue(data[offset:], columns[colIndex].Type)
		if err != nil {
			return props, fmt.Errorf("column %q: %w", columns[colIndex].Name, err)
		}
		offset += bytesRead

		if legacyBoolPad && columns[colIndex].Type == flattypes.ColumnTypeBool {
			if offset >= len(data) {
				return props, fmt.Errorf("%w: missing bool pad byte", ErrInvalidData)
			}
			offset++
		}

		props = append(props, Property{Column: colIndex, Value: value})
	}

	return props, nil
}

// readPropertyValue reads a property value from the buffer.
// Returns the value and number of bytes read.
func readPropertyValue(data []byte, colType flattypes.ColumnType) (any, int, error) {
	need := func(n int) error {
		if len(data) < n {
			return fmt.Errorf("%w: %s value needs %d bytes, have %d", ErrInvalidData, columnTypeName(colType), n, len(data))
		}
		return nil
	}

	switch colType {
	case flattypes.ColumnTypeBool:
		if err := need(1); err != nil {
			return nil, 0, err
		}
		return data[0] != 0, 1, nil

	case flattypes.ColumnTypeByte:
		if err := need(1); err != nil {
			return nil, 0, err
		}
		return int8(data[0]), 1, nil

	case flattypes.ColumnTypeUByte:
		if err := need(1); err != nil {
			return nil, 0, err
		}
		return data[0], 1, nil

	case flattypes.ColumnTypeShort:
		if err := need(2); err != nil {
			return nil, 0, err
		}
		return int16(binary.LittleEndian.Uint16(data[:2])), 2, nil

	case flattypes.ColumnTypeUShort:
		if err := need(2); err != nil {
			return nil, 0, err
		}
		return binary.LittleEndian.Uint16(data[:2]), 2, nil

	case flattypes.ColumnTypeInt:
		if err := need(4); err != nil {
			return nil, 0, err
		}
		return int32(binary.LittleEndian.Uint32(data[:4])), 4, nil

	case flattypes.ColumnTypeUInt:
		if err := need(4); err != nil {
			return nil, 0, err
		}
		return binary.LittleEndian.Uint32(data[:4]), 4, nil

	case flattypes.ColumnTypeLong:
		if err := need(8); err != nil {
			return nil, 0, err
		}
		return int64(binary.LittleEndian.Uint64(data[:8])), 8, nil

	case flattypes.ColumnTypeULong:
		if err := need(8); err != nil {
			return nil, 0, err
		}
		return binary.LittleEndian.Uint64(data[:8]), 8, nil

	case flattypes.ColumnTypeFloat:
		if err := need(4); err != nil {
			return nil, 0, err
		}
		return math.Float32frombits(binary.LittleEndian.Uint32(data[:4])), 4, nil

	case flattypes.ColumnTypeDouble:
		if err := need(8); err != nil {
			return nil, 0, err
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(data[:8])), 8, nil

	case flattypes.ColumnTypeString, flattypes.ColumnTypeDateTime, flattypes.ColumnTypeJson, flattypes.ColumnTypeBinary:
		if err := need(4); err != nil {
			return nil, 0, err
		}
		length := int(binary.LittleEndian.Uint32(data[:4]))
		if err := need(4 + length); err != nil {
			return nil, 0, err
		}
		payload := data[4 : 4+length]

		switch colType {
		case flattypes.ColumnTypeJson:
			var v any
			if err := json.Unmarshal(payload, &v); err != nil {
				return nil, 0, fmt.Errorf("%w: json value: %v", ErrInvalidData, err)
			}
			return v, 4 + length, nil
		case flattypes.ColumnTypeBinary:
			return bytes.Clone(payload), 4 + length, nil
		default:
			return string(payload), 4 + length, nil
		}

	default:
		return nil, 0, fmt.Errorf("%w: unknown column type %d", ErrInvalidData, colType)
	}
}

// propertiesToGeoJSON names decoded entries by their columns.
func propertiesToGeoJSON(props []Property, columns []Column) geojson.Properties {
	if len(props) == 0 {
		return nil
	}
	out := make(geojson.Properties, len(props))
	for _, p := range props {
		out[columns[p.Column].Name] = p.Value
	}
	return out
}
