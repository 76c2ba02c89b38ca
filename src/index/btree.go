package index

import (
	"sync"

	"github.com/google/btree"

	"logkv/src/models"
)

// degree of the underlying btree
const btreeDegree = 32

// BTreeIndex is an ordered index backed by google/btree
type BTreeIndex struct {
	tree *btree.BTree
	lock *sync.RWMutex
}

type item struct {
	key   string
	entry models.IndexEntry
}

func (i *item) Less(than btree.Item) bool {
	return i.key < than.(*item).key
}

// NewBTreeIndex creates an empty ordered index
func NewBTreeIndex() *BTreeIndex {
	return &BTreeIndex{
		tree: btree.New(btreeDegree),
		lock: new(sync.RWMutex),
	}
}

func (bt *BTreeIndex) Put(key string, entry models.IndexEntry) (models.IndexEntry, bool) {
	bt.lock.Lock()
	defer bt.lock.Unlock()

	old := bt.tree.ReplaceOrInsert(&item{key: key, entry: entry})
	if old == nil {
		return models.IndexEntry{}, false
	}
	return old.(*item).entry, true
}

func (bt *BTreeIndex) Get(key string) (models.IndexEntry, bool) {
	bt.lock.RLock()
	defer bt.lock.RUnlock()

	found := bt.tree.Get(&item{key: key})
	if found == nil {
		return models.IndexEntry{}, false
	}
	return found.(*item).entry, true
}

func (bt *BTreeIndex) Delete(key string) (models.IndexEntry, bool) {
	bt.lock.Lock()
	defer bt.lock.Unlock()

	old := bt.tree.Delete(&item{key: key})
	if old == nil {
		return models.IndexEntry{}, false
	}
	return old.(*item).entry, true
}

func (bt *BTreeIndex) Len() int {
	bt.lock.RLock()
	defer bt.lock.RUnlock()
	return bt.tree.Len()
}

func (bt *BTreeIndex) Range(fn func(key string, entry models.IndexEntry) bool) {
	bt.lock.RLock()
	defer bt.lock.RUnlock()

	bt.tree.Ascend(func(i btree.Item) bool {
		it := i.(*item)
		return fn(it.key, it.entry)
	})
}
