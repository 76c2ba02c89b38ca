// Package constants defines application-wide configuration values and limits
package constants

const (
	// MaxSegmentSize is the size in bytes after which the active segment is rotated
	// A single record larger than this is still written, the limit only triggers rotation
	MaxSegmentSize = 1 << 20 // 1 MiB

	// CompactionThreshold is the amount of garbage bytes that triggers a compaction pass
	CompactionThreshold = 1 << 20 // 1 MiB

	// SegmentNameExt is the extension of the segment files
	SegmentNameExt = ".log"

	// OrphanNameExt is appended to segment files found past a generation gap
	OrphanNameExt = ".orphan"

	// FirstGeneration is the generation number of the first segment in an empty directory
	FirstGeneration = 1
)
