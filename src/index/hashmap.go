package index

import (
	"github.com/alphadose/haxmap"
	"github.com/spaolacci/murmur3"

	"logkv/src/models"
)

// HashIndex is an unordered index backed by haxmap, hashing keys with murmur3
type HashIndex struct {
	m *haxmap.Map[string, models.IndexEntry]
}

// NewHashIndex creates an empty hash index
func NewHashIndex() *HashIndex {
	m := haxmap.New[string, models.IndexEntry]()
	m.SetHasher(hashKey)
	return &HashIndex{m: m}
}

// hashKey never returns 0, haxmap reserves that hash for its list head and
// skips it in Len and ForEach. murmur3 of the empty key is 0.
func hashKey(key string) uintptr {
	h := uintptr(murmur3.Sum64([]byte(key)))
	if h == 0 {
		h = 1
	}
	return h
}

// Put is not atomic with respect to concurrent writers of the same key,
// the store serializes mutations
func (h *HashIndex) Put(key string, entry models.IndexEntry) (models.IndexEntry, bool) {
	old, ok := h.m.Get(key)
	h.m.Set(key, entry)
	return old, ok
}

func (h *HashIndex) Get(key string) (models.IndexEntry, bool) {
	return h.m.Get(key)
}

func (h *HashIndex) Delete(key string) (models.IndexEntry, bool) {
	old, ok := h.m.Get(key)
	if !ok {
		return models.IndexEntry{}, false
	}
	h.m.Del(key)
	return old, true
}

func (h *HashIndex) Len() int {
	return int(h.m.Len())
}

func (h *HashIndex) Range(fn func(key string, entry models.IndexEntry) bool) {
	h.m.ForEach(fn)
}
