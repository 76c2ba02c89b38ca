package index

import (
	"sort"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"logkv/src/models"
)

func eachIndexer(t *testing.T, fn func(t *testing.T, idx Indexer)) {
	for name, typ := range map[string]IndexType{"btree": BTree, "hashmap": HashMap} {
		t.Run(name, func(t *testing.T) {
			idx, err := NewIndexer(typ)
			assert.Nil(t, err)
			fn(t, idx)
		})
	}
}

func TestNewIndexer_Unsupported(t *testing.T) {
	idx, err := NewIndexer(IndexType(42))
	assert.NotNil(t, err)
	assert.Nil(t, idx)
}

func TestIndexer_Put(t *testing.T) {
	eachIndexer(t, func(t *testing.T, idx Indexer) {
		_, existed := idx.Put("", models.IndexEntry{Generation: 1, Offset: 100, Length: 10})
		assert.False(t, existed)

		_, existed = idx.Put("a", models.IndexEntry{Generation: 1, Offset: 2, Length: 3})
		assert.False(t, existed)

		old, existed := idx.Put("a", models.IndexEntry{Generation: 2, Offset: 7, Length: 8})
		assert.True(t, existed)
		assert.Equal(t, models.IndexEntry{Generation: 1, Offset: 2, Length: 3}, old)

		assert.Equal(t, 2, idx.Len())
	})
}

func TestIndexer_Get(t *testing.T) {
	eachIndexer(t, func(t *testing.T, idx Indexer) {
		_, ok := idx.Get("missing")
		assert.False(t, ok)

		idx.Put("a", models.IndexEntry{Generation: 1, Offset: 2, Length: 3})
		idx.Put("a", models.IndexEntry{Generation: 1, Offset: 5, Length: 3})

		entry, ok := idx.Get("a")
		assert.True(t, ok)
		assert.Equal(t, uint64(1), entry.Generation)
		assert.Equal(t, int64(5), entry.Offset)
	})
}

func TestIndexer_Delete(t *testing.T) {
	eachIndexer(t, func(t *testing.T, idx Indexer) {
		_, ok := idx.Delete("missing")
		assert.False(t, ok)

		idx.Put("aaa", models.IndexEntry{Generation: 22, Offset: 33, Length: 44})
		old, ok := idx.Delete("aaa")
		assert.True(t, ok)
		assert.Equal(t, int64(44), old.Length)

		_, ok = idx.Get("aaa")
		assert.False(t, ok)
		assert.Equal(t, 0, idx.Len())
	})
}

func TestIndexer_Range(t *testing.T) {
	eachIndexer(t, func(t *testing.T, idx Indexer) {
		want := []string{}
		for i := 0; i < 100; i++ {
			key := "key-" + strconv.Itoa(i)
			idx.Put(key, models.IndexEntry{Generation: 1, Offset: int64(i), Length: 1})
			want = append(want, key)
		}

		var got []string
		idx.Range(func(key string, entry models.IndexEntry) bool {
			got = append(got, key)
			return true
		})
		sort.Strings(got)
		sort.Strings(want)
		assert.Equal(t, want, got)

		visited := 0
		idx.Range(func(string, models.IndexEntry) bool {
			visited++
			return visited < 10
		})
		assert.Equal(t, 10, visited)
	})
}

func TestIndexer_EmptyKey(t *testing.T) {
	eachIndexer(t, func(t *testing.T, idx Indexer) {
		idx.Put("", models.IndexEntry{Generation: 1, Offset: 0, Length: 5})
		idx.Put("a", models.IndexEntry{Generation: 1, Offset: 5, Length: 5})
		assert.Equal(t, 2, idx.Len())

		var got []string
		idx.Range(func(key string, entry models.IndexEntry) bool {
			got = append(got, key)
			return true
		})
		sort.Strings(got)
		assert.Equal(t, []string{"", "a"}, got)

		_, ok := idx.Delete("")
		assert.True(t, ok)
		assert.Equal(t, 1, idx.Len())
	})
}

func TestHashKey_NeverZero(t *testing.T) {
	assert.NotEqual(t, uintptr(0), hashKey(""))
	assert.NotEqual(t, uintptr(0), hashKey("a"))
}

func TestBTreeIndex_RangeIsOrdered(t *testing.T) {
	bt := NewBTreeIndex()
	for _, key := range []string{"c", "a", "b"} {
		bt.Put(key, models.IndexEntry{Generation: 1})
	}

	var got []string
	bt.Range(func(key string, _ models.IndexEntry) bool {
		got = append(got, key)
		return true
	})
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestIndexer_ConcurrentReads(t *testing.T) {
	eachIndexer(t, func(t *testing.T, idx Indexer) {
		for i := 0; i < 1000; i++ {
			idx.Put(strconv.Itoa(i), models.IndexEntry{Generation: 1, Offset: int64(i)})
		}

		wg := &sync.WaitGroup{}
		for g := 0; g < 8; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 1000; i++ {
					entry, ok := idx.Get(strconv.Itoa(i))
					assert.True(t, ok)
					assert.Equal(t, int64(i), entry.Offset)
				}
			}()
		}
		wg.Wait()
	})
}
