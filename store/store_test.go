package store_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/blockberries/stakeberry/store"
	"github.com/blockberries/stakeberry/types"
)

type testRec struct {
	id    types.ObjectID
	Name  string
	Value int64
}

func (r *testRec) ObjectID() types.ObjectID      { return r.id }
func (r *testRec) SetObjectID(id types.ObjectID) { r.id = id }
func (r *testRec) CloneObject() store.Object     { c := *r; return &c }

func newTestDB(t *testing.T) (*store.Database, *store.Table) {
	t.Helper()
	db := store.New()
	tbl := db.RegisterTable("recs", []store.IndexSpec{
		{
			Name:   "by_name",
			Unique: true,
			Less: func(a, b store.Object) bool {
				return a.(*testRec).Name < b.(*testRec).Name
			},
		},
		{
			Name: "by_value",
			Less: func(a, b store.Object) bool {
				ra, rb := a.(*testRec), b.(*testRec)
				if ra.Value != rb.Value {
					return ra.Value < rb.Value
				}
				return ra.id < rb.id
			},
		},
	})
	return db, tbl
}

func mustCreate(t *testing.T, tbl *store.Table, name string, value int64) *testRec {
	t.Helper()
	obj, err := tbl.Create(&testRec{Name: name, Value: value})
	require.NoError(t, err)
	return obj.(*testRec)
}

func findByName(tbl *store.Table, name string) (*testRec, bool) {
	obj, ok := tbl.Index("by_name").Find(&testRec{Name: name})
	if !ok {
		return nil, false
	}
	return obj.(*testRec), true
}

func TestTableCreateGetFind(t *testing.T) {
	_, tbl := newTestDB(t)

	a := mustCreate(t, tbl, "alice", 10)
	b := mustCreate(t, tbl, "bob", 5)

	require.Equal(t, types.ObjectID(1), a.ObjectID())
	require.Equal(t, types.ObjectID(2), b.ObjectID())

	got, ok := tbl.Get(a.ObjectID())
	require.True(t, ok)
	require.Same(t, store.Object(a), got)

	byName, ok := findByName(tbl, "bob")
	require.True(t, ok)
	require.Same(t, b, byName)

	// by_value orders bob(5) before alice(10)
	first, ok := tbl.Index("by_value").First()
	require.True(t, ok)
	require.Same(t, store.Object(b), first)
}

func TestTableUniqueViolation(t *testing.T) {
	_, tbl := newTestDB(t)
	mustCreate(t, tbl, "alice", 1)

	_, err := tbl.Create(&testRec{Name: "alice", Value: 2})
	require.Error(t, err)
	require.True(t, types.IsConsistency(err))
	require.Equal(t, 1, tbl.Len())
}

func TestTableModifyReindexes(t *testing.T) {
	_, tbl := newTestDB(t)
	a := mustCreate(t, tbl, "alice", 10)
	mustCreate(t, tbl, "bob", 5)

	require.NoError(t, tbl.Modify(a, func(o store.Object) {
		o.(*testRec).Value = 1
	}))

	first, ok := tbl.Index("by_value").First()
	require.True(t, ok)
	require.Same(t, store.Object(a), first)
}

func TestTableModifyUnmanaged(t *testing.T) {
	_, tbl := newTestDB(t)
	a := mustCreate(t, tbl, "alice", 10)

	clone := a.CloneObject()
	err := tbl.Modify(clone, func(store.Object) {})
	require.Error(t, err)
	require.True(t, types.IsConsistency(err))
}

func TestSessionUndo(t *testing.T) {
	db, tbl := newTestDB(t)
	a := mustCreate(t, tbl, "alice", 10)

	s := db.StartUndoSession()
	mustCreate(t, tbl, "bob", 5)
	require.NoError(t, tbl.Modify(a, func(o store.Object) { o.(*testRec).Value = 99 }))
	require.NoError(t, tbl.Remove(a))
	s.Undo()

	require.Equal(t, 1, tbl.Len())
	got, ok := findByName(tbl, "alice")
	require.True(t, ok)
	require.Equal(t, int64(10), got.Value)
	_, ok = findByName(tbl, "bob")
	require.False(t, ok)

	// the freed identifier is reused
	c := mustCreate(t, tbl, "carol", 1)
	require.Equal(t, types.ObjectID(2), c.ObjectID())
}

func TestNestedSquashThenUndo(t *testing.T) {
	db, tbl := newTestDB(t)

	outer := db.StartUndoSession()
	a := mustCreate(t, tbl, "alice", 10)

	inner := db.StartUndoSession()
	require.NoError(t, tbl.Modify(a, func(o store.Object) { o.(*testRec).Value = 20 }))
	mustCreate(t, tbl, "bob", 1)
	inner.Squash()

	// squashed changes survive as part of the outer session
	got, _ := findByName(tbl, "alice")
	require.Equal(t, int64(20), got.Value)
	require.Equal(t, 2, tbl.Len())

	outer.Undo()
	require.Equal(t, 0, tbl.Len())
}

func TestNestedInnerUndoKeepsOuter(t *testing.T) {
	db, tbl := newTestDB(t)

	outer := db.StartUndoSession()
	a := mustCreate(t, tbl, "alice", 10)

	inner := db.StartUndoSession()
	require.NoError(t, tbl.Modify(a, func(o store.Object) { o.(*testRec).Value = 20 }))
	inner.Undo()

	got, ok := findByName(tbl, "alice")
	require.True(t, ok)
	require.Equal(t, int64(10), got.Value)

	outer.Push()
	require.NoError(t, db.Undo())
	require.Equal(t, 0, tbl.Len())
}

func TestPushCommitUndo(t *testing.T) {
	db, tbl := newTestDB(t)

	for i, name := range []string{"alice", "bob", "carol"} {
		s := db.StartUndoSession()
		mustCreate(t, tbl, name, int64(i))
		s.Push()
	}
	require.Equal(t, int64(3), db.Revision())

	// retire the first revision; two remain reversible
	db.Commit(1)
	require.NoError(t, db.Undo())
	require.NoError(t, db.Undo())
	require.Error(t, db.Undo())

	require.Equal(t, 1, tbl.Len())
	_, ok := findByName(tbl, "alice")
	require.True(t, ok)
}

func TestUndoAll(t *testing.T) {
	db, tbl := newTestDB(t)
	mustCreate(t, tbl, "genesis", 0)

	for i := 0; i < 5; i++ {
		s := db.StartUndoSession()
		mustCreate(t, tbl, string(rune('a'+i)), int64(i))
		s.Push()
	}
	db.UndoAll()

	require.Equal(t, 1, tbl.Len())
	require.Equal(t, int64(0), db.Revision())
}

func TestSessionResolveIdempotent(t *testing.T) {
	db, tbl := newTestDB(t)
	s := db.StartUndoSession()
	mustCreate(t, tbl, "alice", 1)
	s.Undo()
	s.Undo()
	s.Squash()
	s.Push()
	require.Equal(t, 0, tbl.Len())
}

// Undo must restore the exact prior state for any sequence of
// creates, modifies and removes, including when nested sessions were
// squashed into the one being undone.
func TestUndoRestoresStateProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		db := store.New()
		tbl := db.RegisterTable("recs", []store.IndexSpec{
			{
				Name:   "by_name",
				Unique: true,
				Less: func(a, b store.Object) bool {
					return a.(*testRec).Name < b.(*testRec).Name
				},
			},
		})

		names := []string{"a", "b", "c", "d", "e"}
		for _, n := range names[:3] {
			_, err := tbl.Create(&testRec{Name: n})
			if err != nil {
				t.Fatalf("seed: %v", err)
			}
		}

		snapshot := func() map[string]int64 {
			out := make(map[string]int64)
			tbl.Index("by_name").Ascend(func(o store.Object) bool {
				r := o.(*testRec)
				out[r.Name] = r.Value
				return true
			})
			return out
		}
		before := snapshot()

		s := db.StartUndoSession()
		nested := rapid.Bool().Draw(t, "nested")
		var inner *store.Session
		if nested {
			inner = db.StartUndoSession()
		}

		nops := rapid.IntRange(1, 20).Draw(t, "nops")
		for i := 0; i < nops; i++ {
			name := rapid.SampledFrom(names).Draw(t, "name")
			obj, exists := tbl.Index("by_name").Find(&testRec{Name: name})
			switch rapid.IntRange(0, 2).Draw(t, "op") {
			case 0:
				if !exists {
					_, _ = tbl.Create(&testRec{Name: name})
				}
			case 1:
				if exists {
					_ = tbl.Modify(obj, func(o store.Object) {
						o.(*testRec).Value++
					})
				}
			case 2:
				if exists {
					_ = tbl.Remove(obj)
				}
			}
		}

		if nested {
			inner.Squash()
		}
		s.Undo()

		if got := snapshot(); len(got) != len(before) {
			t.Fatalf("record count changed: %v != %v", got, before)
		} else {
			for k, v := range before {
				if got[k] != v {
					t.Fatalf("record %s changed: %d != %d", k, got[k], v)
				}
			}
		}
	})
}
