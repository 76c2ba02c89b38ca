package store

import (
	"fmt"
	"io"
	"math"
	"os"
)

// segmentReader is the long-lived read handle of one generation
// ReadAt does not move a shared file position, so one handle serves every read
type segmentReader struct {
	file *os.File
	path string
}

func openSegmentReader(path string) (*segmentReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, ioError("openSegmentReader", err)
	}
	return &segmentReader{file: file, path: path}, nil
}

// ReadAt reads exactly length bytes starting at offset
func (r *segmentReader) ReadAt(offset, length int64) ([]byte, error) {
	if length <= 0 {
		return nil, fmt.Errorf("ReadAt: length must be positive, got %d: %w", length, ErrCorruptRecord)
	}

	if offset < 0 {
		return nil, fmt.Errorf("ReadAt: offset must be non-negative, got %d: %w", offset, ErrCorruptRecord)
	}

	buf := make([]byte, length)
	n, err := r.file.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return nil, ioError(fmt.Sprintf("ReadAt: %v at offset %d", r.path, offset), err)
	}

	if int64(n) != length {
		return nil, fmt.Errorf("ReadAt: expected to read %d bytes at offset %d of %v, got %d: %w",
			length, offset, r.path, n, ErrTruncatedRecord)
	}

	return buf, nil
}

// Stream returns a reader over the whole segment from its first byte
func (r *segmentReader) Stream() io.Reader {
	return io.NewSectionReader(r.file, 0, math.MaxInt64)
}

// Size returns the current size of the segment file
func (r *segmentReader) Size() (int64, error) {
	info, err := r.file.Stat()
	if err != nil {
		return 0, ioError("Size", err)
	}
	return info.Size(), nil
}

func (r *segmentReader) Close() error {
	if err := r.file.Close(); err != nil {
		return ioError("Close", err)
	}
	return nil
}
