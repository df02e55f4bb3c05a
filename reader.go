package flatgeobuf

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Reader provides read access to a FlatGeobuf container held in memory.
// Features are walked sequentially through their length prefixes.
type Reader struct {
	data           []byte
	header         *Header
	featuresOffset int
	cfg            readerConfig
}

// NewReader creates a reader from a file path.
func NewReader(path string, opts ...ReaderOption) (*Reader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return NewReaderFromData(data, opts...)
}

// NewReaderFromData creates a reader from byte data.
func NewReaderFromData(data []byte, opts ...ReaderOption) (*Reader, error) {
	if err := checkMagic(data); err != nil {
		return nil, err
	}

	headerLen, err := readLength(data[len(Magic):])
	if err != nil {
		return nil, err
	}
	start := len(Magic) + prefixLen
	if headerLen > maxHeaderSize || start+headerLen > len(data) {
		return nil, fmt.Errorf("%w: header length %d exceeds %d available bytes", ErrInvalidData, headerLen, len(data)-start)
	}

	header, err := decodeHeader(data[start : start+headerLen])
	if err != nil {
		return nil, err
	}

	// Every index node takes nodeItemLen bytes, which bounds the count
	// before indexSize multiplies it.
	if header.IndexNodeSize > 0 && header.FeaturesCount > uint64(len(data))/nodeItemLen {
		return nil, fmt.Errorf("%w: %d features cannot fit an index in %d bytes", ErrInvalidData, header.FeaturesCount, len(data))
	}

	featuresOffset := int64(start+headerLen) + indexSize(header.FeaturesCount, header.IndexNodeSize)
	if featuresOffset > int64(len(data)) {
		return nil, fmt.Errorf("%w: index extends past end of data", ErrInvalidData)
	}

	return &Reader{
		data:           data,
		header:         header,
		featuresOffset: int(featuresOffset),
		cfg:            newReaderConfig(opts),
	}, nil
}

// Header returns metadata about the FlatGeobuf file.
func (r *Reader) Header() *Header {
	return r.header
}

// Records decodes every feature record in file order.
func (r *Reader) Records() ([]*Record, error) {
	offset := r.featuresOffset
	// The count comes from the header; each feature needs at least its
	// length prefix.
	capacity := min(r.header.FeaturesCount, uint64(len(r.data)-offset)/prefixLen)
	records := make([]*Record, 0, capacity)

	for i := uint64(0); i < r.header.FeaturesCount; i++ {
		size, err := readLength(r.data[offset:])
		if err != nil {
			return records, fmt.Errorf("feature %d: %w", i, err)
		}
		offset += prefixLen
		if offset+size > len(r.data) {
			return records, fmt.Errorf("feature %d: %w: %d bytes declared, %d available", i, ErrInvalidData, size, len(r.data)-offset)
		}

		rec, err := decodeRecord(r.data[offset:offset+size], r.header, r.cfg)
		if err != nil {
			return records, fmt.Errorf("feature %d: %w", i, err)
		}
		records = append(records, rec)
		offset += size
	}

	return records, nil
}

// ReadAll reads all features as a FeatureCollection.
func (r *Reader) ReadAll() (*geojson.FeatureCollection, error) {
	records, err := r.Records()
	if err != nil {
		return nil, err
	}

	fc := geojson.NewFeatureCollection()
	for _, rec := range records {
		fc.Append(rec.GeoJSON(r.header.Columns))
	}
	return fc, nil
}

// ReadGeometries reads all geometries without properties.
func (r *Reader) ReadGeometries() ([]orb.Geometry, error) {
	records, err := r.Records()
	if err != nil {
		return nil, err
	}

	geometries := make([]orb.Geometry, 0, len(records))
	for _, rec := range records {
		if rec.Geometry != nil {
			geometries = append(geometries, rec.Geometry)
		}
	}

	return geometries, nil
}

// Close releases the reader's data.
func (r *Reader) Close() error {
	r.data = nil
	return nil
}
