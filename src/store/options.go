package store

import (
	"fmt"
	"os"

	"github.com/phuslu/log"

	"logkv/src/constants"
	"logkv/src/index"
)

// Options configures a Store
type Options struct {
	// DirPath is the directory holding the segment files, created if missing
	DirPath string

	// MaxSegmentSize is the size after which the active segment is rotated
	MaxSegmentSize int64

	// CompactionThreshold is the amount of garbage bytes that triggers compaction
	CompactionThreshold int64

	// SyncWrites fsyncs the active segment after every append
	SyncWrites bool

	// IndexType selects the in-memory index backend
	IndexType index.IndexType

	// Logger receives engine logs, a warn level stderr logger is used when nil
	Logger *log.Logger
}

// DefaultOptions opens the store in the working directory with fsync on and a B-tree index
var DefaultOptions = Options{
	DirPath:             constants.DBPath,
	MaxSegmentSize:      constants.MaxSegmentSize,
	CompactionThreshold: constants.CompactionThreshold,
	SyncWrites:          true,
	IndexType:           index.BTree,
}

func checkOptions(options *Options) error {
	if options.DirPath == "" {
		return fmt.Errorf("%w: database dir path is empty", ErrInvalidOptions)
	}
	if options.MaxSegmentSize <= 0 {
		return fmt.Errorf("%w: max segment size must be greater than 0", ErrInvalidOptions)
	}
	if options.CompactionThreshold <= 0 {
		return fmt.Errorf("%w: compaction threshold must be greater than 0", ErrInvalidOptions)
	}
	if options.Logger == nil {
		options.Logger = DefaultLogger()
	}
	return nil
}

// DefaultLogger logs warnings and errors to stderr
func DefaultLogger() *log.Logger {
	return &log.Logger{
		Level:  log.WarnLevel,
		Writer: &log.IOWriter{Writer: os.Stderr},
	}
}
