package store

import (
	"errors"
	"fmt"
	"io"

	"github.com/phuslu/log"

	"logkv/src/index"
	"logkv/src/models"
)

// rebuild replays every generation in ascending order into idx and returns
// the number of garbage bytes found on the way
//
// Replay rules, applied in log order:
//   - Set: an existing entry for the key becomes garbage, the new location is installed
//   - Remove of a live key: the removed entry becomes garbage and is deleted
//   - Remove of an absent key: the Remove itself can never be read back, it is garbage
//
// A segment ending inside a record was cut by a crash mid-append. That record
// was never acknowledged, so replay stops there and the segment is truncated
// back to its last whole record. Any other undecodable byte is fatal.
func rebuild(segments *segmentStore, idx index.Indexer, logger *log.Logger) (int64, error) {
	var garbage int64

	for _, generation := range segments.generations() {
		dec := models.NewRecordDecoder(segments.readers[generation].Stream())

		records := 0
		for {
			rec, offset, length, err := dec.Next()
			if err == io.EOF {
				break
			}

			if errors.Is(err, models.ErrTruncatedRecord) {
				logger.Warn().Uint64("generation", generation).Int64("valid_bytes", dec.Offset()).Msg("rebuild: truncated partial record at segment tail")
				if err := segments.truncate(generation, dec.Offset()); err != nil {
					return 0, fmt.Errorf("rebuild: generation %d: %w", generation, err)
				}
				break
			}

			if err != nil {
				return 0, fmt.Errorf("rebuild: generation %d: %w", generation, err)
			}

			switch rec.Op {
			case models.OpSet:
				entry := models.IndexEntry{Generation: generation, Offset: offset, Length: length}
				if old, existed := idx.Put(rec.Key, entry); existed {
					garbage += old.Length
				}
			case models.OpRemove:
				if old, existed := idx.Delete(rec.Key); existed {
					garbage += old.Length
				} else {
					garbage += length
				}
			}
			records++
		}

		logger.Debug().Uint64("generation", generation).Int("records", records).Msg("rebuild: replayed segment")
	}

	return garbage, nil
}
