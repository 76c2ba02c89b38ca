// Package store implements the storage engine: a segmented append-only log of
// JSON records with an in-memory index, crash recovery by replay and
// compaction of overwritten and removed keys
package store

import (
	"fmt"
	"os"
	"sync"

	"github.com/phuslu/log"

	"logkv/src/constants"
	"logkv/src/index"
	"logkv/src/models"
)

// Store manages the key-value storage
// Only one Store may have a given directory open at a time; this is not enforced
type Store struct {
	// index maps keys to the location of their latest Set record
	index index.Indexer

	// segments owns every segment file handle
	segments *segmentStore

	// mu protects index, segments, garbage and closed
	// Get takes the read lock, mutations and compaction take the write lock
	mu sync.RWMutex

	// dbPath is the directory where the segment files are stored
	dbPath string

	// garbage is the number of bytes held by superseded or removed records
	garbage int64

	// compactionThreshold is the garbage level that triggers compaction
	compactionThreshold int64

	closed bool

	logger *log.Logger
}

// Stats is a point-in-time summary of a store
type Stats struct {
	Keys             int
	Segments         int
	ActiveGeneration uint64
	GarbageBytes     int64
	DiskBytes        int64
}

// Open opens the store in options.DirPath
// It replays every segment to rebuild the index and the garbage count, then
// opens the highest generation for writing
// Creates the database directory if it doesn't exist
func Open(options Options) (*Store, error) {
	if err := checkOptions(&options); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(options.DirPath, constants.DirPerm); err != nil {
		return nil, ioError("Open: failed to create database directory", err)
	}

	idx, err := index.NewIndexer(options.IndexType)
	if err != nil {
		return nil, fmt.Errorf("Open: %w: %v", ErrInvalidOptions, err)
	}

	generations, err := scanGenerations(options.DirPath, options.Logger)
	if err != nil {
		return nil, fmt.Errorf("Open: %w", err)
	}

	segments, err := newSegmentStore(options.DirPath, generations, options)
	if err != nil {
		return nil, fmt.Errorf("Open: %w", err)
	}

	garbage, err := rebuild(segments, idx, options.Logger)
	if err != nil {
		segments.close()
		return nil, fmt.Errorf("Open: failed to build index: %w", err)
	}

	if err := segments.openWriter(); err != nil {
		segments.close()
		return nil, fmt.Errorf("Open: failed to open active segment: %w", err)
	}

	s := &Store{
		index:               idx,
		segments:            segments,
		dbPath:              options.DirPath,
		garbage:             garbage,
		compactionThreshold: options.CompactionThreshold,
		logger:              options.Logger,
	}

	s.logger.Info().
		Str("dir", s.dbPath).
		Int("keys", idx.Len()).
		Int("segments", len(segments.readers)).
		Uint64("active", segments.active).
		Int64("garbage", garbage).
		Msg("Open: store ready")

	return s, nil
}

// OpenDir opens the store in path with DefaultOptions
func OpenDir(path string) (*Store, error) {
	options := DefaultOptions
	options.DirPath = path
	return Open(options)
}

// Get returns the value stored for key
// ok is false when the key was never set or its latest record is a Remove
func (s *Store) Get(key string) (value string, ok bool, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", false, ErrStoreClosed
	}

	entry, found := s.index.Get(key)
	if !found {
		return "", false, nil
	}

	rec, err := s.segments.read(entry)
	if err != nil {
		return "", false, fmt.Errorf("Get: %w", err)
	}

	if rec.Op != models.OpSet || rec.Key != key {
		return "", false, fmt.Errorf("Get: index entry for key=%v points at %v record for key=%v: %w",
			key, rec.Op, rec.Key, ErrCorruptRecord)
	}

	return rec.Value, true, nil
}

// Set stores value for key
// Key and value must be valid UTF-8, otherwise ErrInvalidKey or ErrInvalidValue
// The record is durable (per SyncWrites) before Set returns
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if err := checkUTF8(key, value); err != nil {
		return fmt.Errorf("Set: %w", err)
	}

	entry, err := s.segments.append(models.SetRecord(key, value))
	if err != nil {
		return fmt.Errorf("Set: %w", err)
	}

	if old, existed := s.index.Put(key, entry); existed {
		s.garbage += old.Length
	}
	s.logger.Debug().Str("key", key).Uint64("generation", entry.Generation).Int64("offset", entry.Offset).Msg("Set: added key")

	s.maybeCompact()
	return nil
}

// Remove deletes key
// Returns ErrKeyNotFound if the key has no live value
func (s *Store) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if err := checkUTF8(key, ""); err != nil {
		return fmt.Errorf("Remove: %w", err)
	}

	if _, found := s.index.Get(key); !found {
		return fmt.Errorf("Remove: key=%v: %w", key, ErrKeyNotFound)
	}

	entry, err := s.segments.append(models.RemoveRecord(key))
	if err != nil {
		return fmt.Errorf("Remove: %w", err)
	}

	if old, existed := s.index.Delete(key); existed {
		s.garbage += old.Length
	}
	s.logger.Debug().Str("key", key).Uint64("generation", entry.Generation).Int64("offset", entry.Offset).Msg("Remove: removed key")

	s.maybeCompact()
	return nil
}

// Compact rewrites every live record into fresh segments and deletes the old ones
// regardless of the garbage level
func (s *Store) Compact() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	return s.compact()
}

// maybeCompact runs compaction once garbage reaches the threshold
// The mutation that triggered it is already durable, so a failed pass is only
// logged; garbage stays above the threshold and the next mutation retries
func (s *Store) maybeCompact() {
	if s.garbage < s.compactionThreshold {
		return
	}

	if err := s.compact(); err != nil {
		s.logger.Error().Err(err).Str("dir", s.dbPath).Int64("garbage", s.garbage).Msg("maybeCompact: compaction failed")
	}
}

// Stats returns a summary of the store
func (s *Store) Stats() (Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return Stats{}, ErrStoreClosed
	}

	size, err := s.segments.diskSize()
	if err != nil {
		return Stats{}, fmt.Errorf("Stats: %w", err)
	}

	return Stats{
		Keys:             s.index.Len(),
		Segments:         len(s.segments.readers),
		ActiveGeneration: s.segments.active,
		GarbageBytes:     s.garbage,
		DiskBytes:        size,
	}, nil
}

// Close closes the store and releases every file handle
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}
	s.closed = true

	if err := s.segments.close(); err != nil {
		return fmt.Errorf("Close: %w", err)
	}
	return nil
}
