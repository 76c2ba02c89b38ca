// Package index holds the in-memory mapping from key to the location of its
// latest live record
package index

import (
	"fmt"

	"logkv/src/models"
)

// Indexer is the abstract index; any structure implementing it can back a store
type Indexer interface {
	// Put stores the location for key and returns the entry it replaced, if any
	Put(key string, entry models.IndexEntry) (models.IndexEntry, bool)

	// Get returns the location stored for key
	Get(key string) (models.IndexEntry, bool)

	// Delete removes key and returns the entry it held, if any
	Delete(key string) (models.IndexEntry, bool)

	// Len returns the number of live keys
	Len() int

	// Range calls fn for every key until fn returns false
	// fn must not mutate the index
	Range(fn func(key string, entry models.IndexEntry) bool)
}

// IndexType selects an Indexer implementation
type IndexType = int8

const (
	// BTree keeps keys ordered, Range visits them in ascending order
	BTree IndexType = iota + 1

	// HashMap is a lock-free hash map, Range order is unspecified
	HashMap
)

// NewIndexer creates an index of the requested type
func NewIndexer(typ IndexType) (Indexer, error) {
	switch typ {
	case BTree:
		return NewBTreeIndex(), nil
	case HashMap:
		return NewHashIndex(), nil
	default:
		return nil, fmt.Errorf("NewIndexer: unsupported index type %d", typ)
	}
}
