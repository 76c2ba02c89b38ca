package models

import (
	"encoding/json"
	"fmt"
	"io"
)

// RecordDecoder streams records from a segment and reports the exact byte
// range each one occupies
type RecordDecoder struct {
	dec *json.Decoder

	// offset is the end of the last record decoded successfully
	offset int64
}

// NewRecordDecoder creates a decoder reading from the start of r
func NewRecordDecoder(r io.Reader) *RecordDecoder {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	return &RecordDecoder{dec: dec}
}

// Next returns the next record with its offset and length
// Returns io.EOF at a clean end of stream, ErrTruncatedRecord when the stream
// ends inside a record and ErrCorruptRecord for anything else that fails to parse
func (d *RecordDecoder) Next() (Record, int64, int64, error) {
	var w wireRecord
	if err := d.dec.Decode(&w); err != nil {
		if err == io.EOF {
			return Record{}, 0, 0, io.EOF
		}
		return Record{}, 0, 0, fmt.Errorf("Next: at offset %d: %w", d.offset, classify(err))
	}

	r, err := w.record()
	if err != nil {
		return Record{}, 0, 0, fmt.Errorf("Next: at offset %d: %w", d.offset, err)
	}

	start := d.offset
	d.offset = d.dec.InputOffset()
	return r, start, d.offset - start, nil
}

// Offset returns the byte position just past the last whole record
func (d *RecordDecoder) Offset() int64 {
	return d.offset
}
