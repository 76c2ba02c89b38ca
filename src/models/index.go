package models

// IndexEntry represents metadata for locating the latest Set record of a key
// Keys whose latest record is a Remove have no entry at all
type IndexEntry struct {
	// Generation is the number of the segment file holding the record
	Generation uint64

	// Offset is the byte position in the segment where the record starts
	Offset int64

	// Length is the exact encoded size of the record in bytes
	Length int64
}
