// Package store implements the versioned object store backing the
// chain state. Records live in tables with ordered secondary indexes,
// and every mutation is journaled so that nested sessions can be
// squashed into their parent or unwound in reverse order.
//
// The store is single-writer by design and performs no internal
// locking; the chain controller serializes access.
package store

import (
	"github.com/google/btree"

	"github.com/blockberries/stakeberry/types"
)

// Object is a record managed by a Table. Implementations embed their
// identifier and must provide a deep copy for undo pre-images.
type Object interface {
	ObjectID() types.ObjectID
	SetObjectID(types.ObjectID)
	CloneObject() Object
}

// IndexSpec declares a secondary index over a table.
//
// Less defines the total order. Unique indexes order by their key
// alone; non-unique indexes must break ties on the object identifier
// so that equal keys still order deterministically.
type IndexSpec struct {
	Name   string
	Unique bool
	Less   func(a, b Object) bool
}

// Index is an ordered view over a table's records. Indexes must not be
// mutated while an iteration over them is in progress; engine loops
// re-fetch their cursor after every mutation.
type Index struct {
	spec IndexSpec
	tree *btree.BTreeG[Object]
}

func newIndex(spec IndexSpec) *Index {
	return &Index{
		spec: spec,
		tree: btree.NewG[Object](32, btree.LessFunc[Object](spec.Less)),
	}
}

// Name returns the index name.
func (ix *Index) Name() string {
	return ix.spec.Name
}

// Len returns the number of indexed records.
func (ix *Index) Len() int {
	return ix.tree.Len()
}

// Find returns the record ordering equal to probe. On unique indexes
// the probe only needs the key fields filled in.
func (ix *Index) Find(probe Object) (Object, bool) {
	return ix.tree.Get(probe)
}

// Has reports whether a record ordering equal to probe exists.
func (ix *Index) Has(probe Object) bool {
	return ix.tree.Has(probe)
}

// First returns the least record.
func (ix *Index) First() (Object, bool) {
	return ix.tree.Min()
}

// Last returns the greatest record.
func (ix *Index) Last() (Object, bool) {
	return ix.tree.Max()
}

// Ascend walks the index in order until fn returns false.
func (ix *Index) Ascend(fn func(Object) bool) {
	ix.tree.Ascend(btree.ItemIteratorG[Object](fn))
}

// AscendFrom walks records >= probe in order until fn returns false.
func (ix *Index) AscendFrom(probe Object, fn func(Object) bool) {
	ix.tree.AscendGreaterOrEqual(probe, btree.ItemIteratorG[Object](fn))
}

// AscendRange walks records in [from, to) until fn returns false.
func (ix *Index) AscendRange(from, to Object, fn func(Object) bool) {
	ix.tree.AscendRange(from, to, btree.ItemIteratorG[Object](fn))
}

func (ix *Index) insert(obj Object) error {
	if ix.spec.Unique {
		if existing, ok := ix.tree.Get(obj); ok && existing.ObjectID() != obj.ObjectID() {
			return types.Consistencyf("store: unique index %s violated", ix.spec.Name)
		}
	}
	ix.tree.ReplaceOrInsert(obj)
	return nil
}

func (ix *Index) remove(obj Object) {
	ix.tree.Delete(obj)
}
