package store

import (
	"fmt"
	"sort"

	"logkv/src/models"
)

// liveRecord is one key and the location of its live Set record
type liveRecord struct {
	key   string
	entry models.IndexEntry
}

// compact rewrites every live record into fresh generations and retires the
// old ones. Caller must hold the write lock.
//
// Compaction Process:
//  1. Rotate to a new generation C, one past every existing generation
//  2. Group live keys by generation and sort by offset, so each old segment
//     is read front to back
//  3. Re-append each value as a fresh Set (rotating past the segment cap as
//     usual, so the output may span C..C+k) and repoint the index as each
//     record lands
//  4. On success: retire every generation below C and reset garbage
//  5. On failure: restore the previous index entries, delete C and above and
//     reopen the previous active generation; old segments are never touched
func (s *Store) compact() error {
	previous := s.segments.active
	before, err := s.segments.diskSize()
	if err != nil {
		s.logger.Warn().Err(err).Str("dir", s.dbPath).Msg("compact: failed to measure segments")
	}

	// Step 1: Open the first output generation
	if err := s.segments.rotate(); err != nil {
		return fmt.Errorf("compact: %w", err)
	}
	start := s.segments.active

	// Step 2: Group keys by segment file for sequential reads
	bySegment := make(map[uint64][]liveRecord)
	s.index.Range(func(key string, entry models.IndexEntry) bool {
		bySegment[entry.Generation] = append(bySegment[entry.Generation], liveRecord{key, entry})
		return true
	})

	generations := make([]uint64, 0, len(bySegment))
	for generation, records := range bySegment {
		generations = append(generations, generation)
		sort.Slice(records, func(i, j int) bool {
			return records[i].entry.Offset < records[j].entry.Offset
		})
	}
	sort.Slice(generations, func(i, j int) bool {
		return generations[i] < generations[j]
	})

	// Step 3: Copy all live key-value pairs forward
	rewritten := make([]liveRecord, 0, s.index.Len())
	abort := func(err error) error {
		for i := len(rewritten) - 1; i >= 0; i-- {
			s.index.Put(rewritten[i].key, rewritten[i].entry)
		}
		if derr := s.segments.discardFrom(start, previous); derr != nil {
			s.logger.Error().Err(derr).Uint64("from", start).Msg("compact: failed to discard partial output")
		}
		return fmt.Errorf("compact: %w", err)
	}

	for _, generation := range generations {
		for _, live := range bySegment[generation] {
			rec, err := s.segments.read(live.entry)
			if err != nil {
				return abort(fmt.Errorf("failed to fetch key=%v: %w", live.key, err))
			}

			if rec.Op != models.OpSet || rec.Key != live.key {
				return abort(fmt.Errorf("index entry for key=%v points at %v record for key=%v: %w",
					live.key, rec.Op, rec.Key, ErrCorruptRecord))
			}

			entry, err := s.segments.append(models.SetRecord(live.key, rec.Value))
			if err != nil {
				return abort(fmt.Errorf("failed to rewrite key=%v: %w", live.key, err))
			}

			s.index.Put(live.key, entry)
			rewritten = append(rewritten, live)
		}
	}

	// Step 4: Every live record now sits at or above start
	obsolete := []uint64{}
	for _, generation := range s.segments.generations() {
		if generation < start {
			obsolete = append(obsolete, generation)
		}
	}

	reclaimed := s.garbage
	s.garbage = 0
	if err := s.segments.retire(obsolete); err != nil {
		return fmt.Errorf("compact: failed to retire obsolete segments: %w", err)
	}

	after, err := s.segments.diskSize()
	if err != nil {
		s.logger.Warn().Err(err).Str("dir", s.dbPath).Msg("compact: failed to measure segments")
	}
	s.logger.Info().
		Str("dir", s.dbPath).
		Int("keys", len(rewritten)).
		Int("retired", len(obsolete)).
		Uint64("first_generation", start).
		Int64("garbage", reclaimed).
		Int64("bytes_before", before).
		Int64("bytes_after", after).
		Msg("compact: compaction done")

	return nil
}
