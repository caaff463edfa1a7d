package store

import (
	"github.com/blockberries/stakeberry/types"
)

// Table holds one record type. Identifiers are assigned sequentially
// starting at 1, so the zero ObjectID always means "unset".
type Table struct {
	name    string
	db      *Database
	nextID  types.ObjectID
	byID    map[types.ObjectID]Object
	indexes []*Index
	byName  map[string]*Index
}

func newTable(db *Database, name string, specs []IndexSpec) *Table {
	t := &Table{
		name:   name,
		db:     db,
		nextID: 1,
		byID:   make(map[types.ObjectID]Object),
		byName: make(map[string]*Index),
	}
	for _, spec := range specs {
		ix := newIndex(spec)
		t.indexes = append(t.indexes, ix)
		t.byName[spec.Name] = ix
	}
	return t
}

// Name returns the table name.
func (t *Table) Name() string {
	return t.name
}

// Len returns the number of live records.
func (t *Table) Len() int {
	return len(t.byID)
}

// Index returns the named secondary index. Missing indexes are a
// programming error and panic.
func (t *Table) Index(name string) *Index {
	ix, ok := t.byName[name]
	if !ok {
		panic("store: table " + t.name + " has no index " + name)
	}
	return ix
}

// Get returns the record with the given identifier.
func (t *Table) Get(id types.ObjectID) (Object, bool) {
	obj, ok := t.byID[id]
	return obj, ok
}

// Create assigns obj the next identifier, inserts it into every index
// and journals the creation. The stored object is returned; callers
// must treat it as immutable outside Modify.
func (t *Table) Create(obj Object) (Object, error) {
	id := t.nextID
	obj.SetObjectID(id)
	for i, ix := range t.indexes {
		if err := ix.insert(obj); err != nil {
			for _, prev := range t.indexes[:i] {
				prev.remove(obj)
			}
			return nil, err
		}
	}
	t.byID[id] = obj
	// Journal before advancing the counter so the undo snapshot holds
	// the pre-create value and an undone create releases its id.
	t.db.journalCreate(t, id)
	t.nextID++
	return obj, nil
}

// Modify applies fn to the stored record, reindexing it and journaling
// a pre-image for undo. The object passed in must be the stored
// instance (the result of a Get, Find or iteration).
func (t *Table) Modify(obj Object, fn func(Object)) error {
	stored, ok := t.byID[obj.ObjectID()]
	if !ok || stored != obj {
		return types.Consistencyf("store: modify of unmanaged object in table %s", t.name)
	}
	pre := obj.CloneObject()
	for _, ix := range t.indexes {
		ix.remove(obj)
	}
	fn(obj)
	if obj.ObjectID() != pre.ObjectID() {
		return types.Consistencyf("store: modify changed object id in table %s", t.name)
	}
	for i, ix := range t.indexes {
		if err := ix.insert(obj); err != nil {
			// Restore the pre-image to keep the table coherent before
			// reporting the violation.
			for _, prev := range t.indexes[:i] {
				prev.remove(obj)
			}
			t.undoModify(pre)
			return err
		}
	}
	t.db.journalModify(t, pre)
	return nil
}

// Remove deletes the stored record and journals it for undo.
func (t *Table) Remove(obj Object) error {
	stored, ok := t.byID[obj.ObjectID()]
	if !ok || stored != obj {
		return types.Consistencyf("store: remove of unmanaged object in table %s", t.name)
	}
	for _, ix := range t.indexes {
		ix.remove(obj)
	}
	delete(t.byID, obj.ObjectID())
	t.db.journalRemove(t, obj)
	return nil
}

// restore operations used by undo; they bypass the journal.

func (t *Table) undoCreate(id types.ObjectID) {
	obj, ok := t.byID[id]
	if !ok {
		return
	}
	for _, ix := range t.indexes {
		ix.remove(obj)
	}
	delete(t.byID, id)
}

func (t *Table) undoModify(pre Object) {
	if cur, ok := t.byID[pre.ObjectID()]; ok {
		for _, ix := range t.indexes {
			ix.remove(cur)
		}
	}
	t.byID[pre.ObjectID()] = pre
	for _, ix := range t.indexes {
		_ = ix.insert(pre)
	}
}

func (t *Table) undoRemove(obj Object) {
	t.byID[obj.ObjectID()] = obj
	for _, ix := range t.indexes {
		_ = ix.insert(obj)
	}
}
