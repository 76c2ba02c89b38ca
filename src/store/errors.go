package store

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"logkv/src/models"
)

var (
	// ErrKeyNotFound is returned by Remove when the key has no live value
	ErrKeyNotFound = errors.New("key not found")

	// ErrIO wraps every filesystem failure, the underlying OS error stays reachable through errors.Is
	ErrIO = errors.New("i/o error")

	// ErrSegmentNotFound is returned when an index entry points at a generation with no open reader
	ErrSegmentNotFound = errors.New("segment not found")

	// ErrStoreClosed is returned by every operation after Close
	ErrStoreClosed = errors.New("store is closed")

	// ErrInvalidOptions is returned by Open for unusable options
	ErrInvalidOptions = errors.New("invalid options")

	// ErrInvalidKey is returned by Set and Remove for a key that is not valid UTF-8
	ErrInvalidKey = errors.New("key is not valid utf-8")

	// ErrInvalidValue is returned by Set for a value that is not valid UTF-8
	ErrInvalidValue = errors.New("value is not valid utf-8")

	ErrCorruptRecord   = models.ErrCorruptRecord
	ErrTruncatedRecord = models.ErrTruncatedRecord
)

// checkUTF8 rejects strings the JSON encoding would rewrite with U+FFFD
func checkUTF8(key, value string) error {
	if !utf8.ValidString(key) {
		return fmt.Errorf("key=%q: %w", key, ErrInvalidKey)
	}
	if !utf8.ValidString(value) {
		return fmt.Errorf("key=%v: %w", key, ErrInvalidValue)
	}
	return nil
}

func ioError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrIO, err)
}
