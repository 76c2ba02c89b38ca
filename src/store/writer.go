package store

import (
	"errors"
	"fmt"
	"os"

	"logkv/src/constants"
)

/*
Durability vs throughput

	f.Write()  f.Write()
	f.Write()  f.Sync()
	f.Write()  f.Write()
	f.Sync()   f.Sync()

Every append reaches the kernel before returning, there is no user space
buffer. Sync() additionally forces data and metadata to disk, which is what
SyncWrites controls: the right column survives a power outage, the left one
only survives a process crash.
*/

// segmentWriter appends records to the active segment
type segmentWriter struct {
	file   *os.File
	offset int64
	sync   bool
}

func openSegmentWriter(path string, sync bool) (*segmentWriter, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, constants.SegmentFilePerm)
	if err != nil {
		return nil, ioError("openSegmentWriter", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, ioError("openSegmentWriter", err)
	}

	return &segmentWriter{file: file, offset: info.Size(), sync: sync}, nil
}

// Write appends data at the end of the segment and returns the offset it starts at
// On failure the segment is cut back to its previous size so a half-written
// record never sits in front of later ones
func (w *segmentWriter) Write(data []byte) (int64, error) {
	offset := w.offset

	if _, err := w.file.Write(data); err != nil {
		return 0, w.rollback(offset, ioError("Write", err))
	}

	if w.sync {
		if err := w.file.Sync(); err != nil {
			return 0, w.rollback(offset, ioError("Write: sync", err))
		}
	}

	w.offset += int64(len(data))
	return offset, nil
}

// rollback cuts the segment back to offset after a failed write
// A failed cut leaves a partial record at the tail, that error is joined to
// cause so the caller sees both
func (w *segmentWriter) rollback(offset int64, cause error) error {
	if err := w.file.Truncate(offset); err != nil {
		return errors.Join(cause, ioError(fmt.Sprintf("Write: rollback to offset %d", offset), err))
	}
	return cause
}

// Size returns the current size of the segment in bytes
func (w *segmentWriter) Size() int64 {
	return w.offset
}

func (w *segmentWriter) Close() error {
	if err := w.file.Close(); err != nil {
		return ioError("Close", err)
	}
	return nil
}
