package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/phuslu/log"

	"logkv/src/constants"
	"logkv/src/models"
)

// segmentFilePattern is used to find the segment files in directory
var segmentFilePattern = regexp.MustCompile(`^([1-9][0-9]*)\.log$`)

// segmentStore owns the generations of a store: one reader per generation and
// a single writer on the active (highest) one
type segmentStore struct {
	// dir is the directory holding the segment files
	dir string

	// maxSize is the rotation threshold of the active segment
	maxSize int64

	// sync makes every append fsync the active segment
	sync bool

	// readers maps each generation to its long-lived read handle
	readers map[uint64]*segmentReader

	// writer appends to the active generation, nil until openWriter
	writer *segmentWriter

	// active is the generation the writer appends to
	active uint64

	logger *log.Logger
}

func segmentPath(dir string, generation uint64) string {
	return filepath.Join(dir, strconv.FormatUint(generation, 10)+constants.SegmentNameExt)
}

// scanGenerations returns the contiguous run of generations starting at the
// lowest one found in dir
// Segment files past the first gap can never be replayed in order, they are
// renamed with the orphan extension so no future generation collides with them
func scanGenerations(dir string, logger *log.Logger) ([]uint64, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, ioError("scanGenerations", err)
	}

	found := []uint64{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}

		match := segmentFilePattern.FindStringSubmatch(e.Name())
		if match == nil {
			continue
		}

		generation, err := strconv.ParseUint(match[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("scanGenerations: invalid segment number %v: %w", e.Name(), err)
		}
		found = append(found, generation)
	}

	sort.Slice(found, func(i, j int) bool {
		return found[i] < found[j]
	})

	contiguous := 0
	for contiguous < len(found) && found[contiguous] == found[0]+uint64(contiguous) {
		contiguous++
	}

	for _, orphan := range found[contiguous:] {
		path := segmentPath(dir, orphan)
		if err := os.Rename(path, path+constants.OrphanNameExt); err != nil {
			return nil, ioError("scanGenerations: rename orphan", err)
		}
		logger.Warn().Str("dir", dir).Uint64("generation", orphan).Msg("scanGenerations: segment past a generation gap set aside")
	}

	return found[:contiguous], nil
}

// newSegmentStore opens a reader for each of the given generations
// The writer is opened separately by openWriter once recovery is done
func newSegmentStore(dir string, generations []uint64, options Options) (*segmentStore, error) {
	s := &segmentStore{
		dir:     dir,
		maxSize: options.MaxSegmentSize,
		sync:    options.SyncWrites,
		readers: make(map[uint64]*segmentReader, len(generations)),
		logger:  options.Logger,
	}

	for _, generation := range generations {
		reader, err := openSegmentReader(segmentPath(dir, generation))
		if err != nil {
			s.close()
			return nil, fmt.Errorf("newSegmentStore: %w", err)
		}
		s.readers[generation] = reader
		s.active = generation
	}

	return s, nil
}

// openWriter makes the highest generation writable, creating the first
// generation when the directory holds none
func (s *segmentStore) openWriter() error {
	if len(s.readers) == 0 {
		return s.create(constants.FirstGeneration)
	}

	writer, err := openSegmentWriter(segmentPath(s.dir, s.active), s.sync)
	if err != nil {
		return fmt.Errorf("openWriter: %w", err)
	}
	s.writer = writer
	return nil
}

// create opens a new generation and makes it active
// The previous writer, if any, is closed once the new segment is usable
func (s *segmentStore) create(generation uint64) error {
	path := segmentPath(s.dir, generation)

	writer, err := openSegmentWriter(path, s.sync)
	if err != nil {
		return fmt.Errorf("create: generation %d: %w", generation, err)
	}

	reader, err := openSegmentReader(path)
	if err != nil {
		writer.Close()
		os.Remove(path)
		return fmt.Errorf("create: generation %d: %w", generation, err)
	}

	previous := s.writer
	s.readers[generation] = reader
	s.writer = writer
	s.active = generation

	if previous != nil {
		if err := previous.Close(); err != nil {
			return fmt.Errorf("create: closing previous active segment: %w", err)
		}
	}
	return nil
}

// rotate makes a new generation, one past the current active one, active
func (s *segmentStore) rotate() error {
	generation := s.active + 1
	if err := s.create(generation); err != nil {
		return fmt.Errorf("rotate: %w", err)
	}
	s.logger.Info().Str("dir", s.dir).Uint64("generation", generation).Msg("rotate: new active segment")
	return nil
}

// rotateIfNeeded rotates when appending candidate bytes would push the active
// segment past maxSize
// An empty active segment always takes the record, so a record larger than
// maxSize ends up alone in its own segment instead of being rejected
func (s *segmentStore) rotateIfNeeded(candidate int64) error {
	size := s.writer.Size()
	if size == 0 || size+candidate <= s.maxSize {
		return nil
	}
	return s.rotate()
}

// append encodes the record, rotates if needed and writes it to the active segment
// The returned entry locates the record exactly
func (s *segmentStore) append(rec models.Record) (models.IndexEntry, error) {
	data, err := models.EncodeRecord(rec)
	if err != nil {
		return models.IndexEntry{}, fmt.Errorf("append: %w", err)
	}

	if s.writer == nil {
		return models.IndexEntry{}, fmt.Errorf("append: generation %d is not writable: %w", s.active, ErrIO)
	}

	if err := s.rotateIfNeeded(int64(len(data))); err != nil {
		return models.IndexEntry{}, fmt.Errorf("append: %w", err)
	}

	offset, err := s.writer.Write(data)
	if err != nil {
		s.logger.Error().Err(err).Str("dir", s.dir).Uint64("generation", s.active).Msg("append: write failed")
		return models.IndexEntry{}, fmt.Errorf("append: generation %d: %w", s.active, err)
	}

	return models.IndexEntry{
		Generation: s.active,
		Offset:     offset,
		Length:     int64(len(data)),
	}, nil
}

// read decodes the record an index entry points at
func (s *segmentStore) read(entry models.IndexEntry) (models.Record, error) {
	reader, ok := s.readers[entry.Generation]
	if !ok {
		return models.Record{}, fmt.Errorf("read: generation %d: %w", entry.Generation, ErrSegmentNotFound)
	}

	data, err := reader.ReadAt(entry.Offset, entry.Length)
	if err != nil {
		return models.Record{}, fmt.Errorf("read: generation %d: %w", entry.Generation, err)
	}

	rec, err := models.DecodeRecord(data)
	if err != nil {
		return models.Record{}, fmt.Errorf("read: generation %d at offset %d: %w", entry.Generation, entry.Offset, err)
	}
	return rec, nil
}

// generations returns every open generation in ascending order
func (s *segmentStore) generations() []uint64 {
	out := make([]uint64, 0, len(s.readers))
	for generation := range s.readers {
		out = append(out, generation)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i] < out[j]
	})
	return out
}

// truncate cuts a segment back to size bytes
// Only used by recovery, before the writer is opened
func (s *segmentStore) truncate(generation uint64, size int64) error {
	if err := os.Truncate(segmentPath(s.dir, generation), size); err != nil {
		return ioError("truncate", err)
	}
	return nil
}

// retire closes and deletes the given generations, lowest first
// The active generation can never be retired. Retiring stops at the first
// file that cannot be deleted, so the generations left on disk stay
// contiguous with the ones above them and still replay in order.
func (s *segmentStore) retire(generations []uint64) error {
	sorted := append([]uint64(nil), generations...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i] < sorted[j]
	})

	for _, generation := range sorted {
		if generation == s.active {
			return fmt.Errorf("retire: generation %d is active", generation)
		}
	}

	for _, generation := range sorted {
		if err := s.remove(generation); err != nil {
			return fmt.Errorf("retire: %w", err)
		}
	}
	return nil
}

// remove closes the reader of a generation and deletes its file
// When the file survives, its reader is reopened so the generation stays
// readable and listed by generations
func (s *segmentStore) remove(generation uint64) error {
	if reader, ok := s.readers[generation]; ok {
		if err := reader.Close(); err != nil {
			s.logger.Warn().Err(err).Uint64("generation", generation).Msg("remove: failed to close reader")
		}
		delete(s.readers, generation)
	}

	path := segmentPath(s.dir, generation)
	err := os.Remove(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}

	if reader, rerr := openSegmentReader(path); rerr == nil {
		s.readers[generation] = reader
	} else {
		s.logger.Error().Err(rerr).Uint64("generation", generation).Msg("remove: failed to reopen surviving segment")
	}
	return ioError(fmt.Sprintf("remove: generation %d", generation), err)
}

// discardFrom deletes every generation >= from, highest first, and makes
// restore the active generation again
// Used to abandon a failed compaction; generations below from are untouched.
// When an output generation cannot be deleted it stays active instead of
// restore: its records are copies of the current live values, so later
// appends must land above it to win on replay.
func (s *segmentStore) discardFrom(from, restore uint64) error {
	var errs []error

	if s.writer != nil {
		if err := s.writer.Close(); err != nil {
			errs = append(errs, err)
		}
		s.writer = nil
	}

	generations := s.generations()
	for i := len(generations) - 1; i >= 0 && generations[i] >= from; i-- {
		if err := s.remove(generations[i]); err != nil {
			errs = append(errs, fmt.Errorf("discardFrom: %w", err))
			restore = generations[i]
			break
		}
	}

	s.active = restore
	writer, err := openSegmentWriter(segmentPath(s.dir, restore), s.sync)
	if err != nil {
		errs = append(errs, err)
	} else {
		s.writer = writer
	}

	return errors.Join(errs...)
}

// diskSize returns the total size of every segment
func (s *segmentStore) diskSize() (int64, error) {
	var total int64
	for _, reader := range s.readers {
		size, err := reader.Size()
		if err != nil {
			return 0, err
		}
		total += size
	}
	return total, nil
}

// close releases the writer and every reader
func (s *segmentStore) close() error {
	var errs []error
	if s.writer != nil {
		if err := s.writer.Close(); err != nil {
			errs = append(errs, err)
		}
		s.writer = nil
	}
	for generation, reader := range s.readers {
		if err := reader.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(s.readers, generation)
	}
	return errors.Join(errs...)
}
