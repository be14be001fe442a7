package pool

import (
	"fmt"
	"time"

	"github.com/google/btree"
	"go.dedis.ch/mst/core/txn"
	"golang.org/x/xerrors"
)

// btreeDegree is the degree of the time index.
const btreeDegree = 8

// timeItem is an entry of the time index. Entries are ordered by creation time
// and then by key so that two batches created at the same time have distinct
// entries.
//
// - implements btree.Item
type timeItem struct {
	createdAt time.Time
	key       txn.Key
}

// Less implements btree.Item. It returns true if the item is ordered before
// the other one.
func (i timeItem) Less(than btree.Item) bool {
	other := than.(timeItem)

	if !i.createdAt.Equal(other.createdAt) {
		return i.createdAt.Before(other.createdAt)
	}

	return i.key.Less(other.key)
}

// indices is the pair of the identity index and the time index. Every update
// goes through its methods so that both indices hold the same set of keys.
type indices struct {
	batches map[txn.Key]txn.Batch
	times   *btree.BTree
}

func newIndices() *indices {
	return &indices{
		batches: make(map[txn.Key]txn.Batch),
		times:   btree.New(btreeDegree),
	}
}

func (idx *indices) len() int {
	return len(idx.batches)
}

func (idx *indices) get(key txn.Key) (txn.Batch, bool) {
	batch, found := idx.batches[key]
	return batch, found
}

// put stores the batch, replacing the previous version if any.
func (idx *indices) put(batch txn.Batch) {
	key := batch.GetKey()

	prev, found := idx.batches[key]
	if found {
		idx.times.Delete(timeItem{createdAt: prev.CreatedAt(), key: key})
	}

	idx.batches[key] = batch
	idx.times.ReplaceOrInsert(timeItem{createdAt: batch.CreatedAt(), key: key})
}

// remove deletes the batch from both indices and returns it if it exists.
func (idx *indices) remove(key txn.Key) (txn.Batch, bool) {
	batch, found := idx.batches[key]
	if !found {
		return txn.Batch{}, false
	}

	delete(idx.batches, key)

	item := idx.times.Delete(timeItem{createdAt: batch.CreatedAt(), key: key})
	if item == nil {
		panic(fmt.Sprintf("batch %v missing from the time index", key))
	}

	return batch, true
}

// ascend calls the function for each batch from the oldest to the newest until
// it returns false.
func (idx *indices) ascend(fn func(batch txn.Batch) bool) {
	idx.times.Ascend(func(item btree.Item) bool {
		return fn(idx.batches[item.(timeItem).key])
	})
}

// before returns the keys of the batches created strictly before the given
// time, from the oldest to the newest.
func (idx *indices) before(t time.Time) []txn.Key {
	var keys []txn.Key

	idx.times.AscendLessThan(timeItem{createdAt: t}, func(item btree.Item) bool {
		keys = append(keys, item.(timeItem).key)
		return true
	})

	return keys
}

// clone returns a copy of the indices. The batches are shared as they are
// never modified in place.
func (idx *indices) clone() *indices {
	batches := make(map[txn.Key]txn.Batch, len(idx.batches))
	for key, batch := range idx.batches {
		batches[key] = batch
	}

	return &indices{
		batches: batches,
		times:   idx.times.Clone(),
	}
}

// check verifies that both indices hold exactly the same keys. A divergence
// is a programming error.
func (idx *indices) check() error {
	if idx.times.Len() != len(idx.batches) {
		return xerrors.Errorf("time index has %d entries but identity index has %d",
			idx.times.Len(), len(idx.batches))
	}

	var err error

	idx.times.Ascend(func(item btree.Item) bool {
		ti := item.(timeItem)

		batch, found := idx.batches[ti.key]
		if !found {
			err = xerrors.Errorf("key %v of the time index is unknown", ti.key)
			return false
		}

		if !batch.CreatedAt().Equal(ti.createdAt) {
			err = xerrors.Errorf("key %v has a stale creation time", ti.key)
			return false
		}

		return true
	})

	return err
}
