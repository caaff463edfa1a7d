package store

import (
	"github.com/blockberries/stakeberry/types"
)

type entryKind uint8

const (
	entryCreated entryKind = iota
	entryModified
	entryRemoved
)

type undoEntry struct {
	table *Table
	kind  entryKind
	id    types.ObjectID
	pre   Object // pre-image for modified, removed record for removed
}

type undoState struct {
	revision    int64
	entries     []undoEntry
	prevNextIDs map[*Table]types.ObjectID
}

func (s *undoState) touch(t *Table) {
	if _, ok := s.prevNextIDs[t]; !ok {
		s.prevNextIDs[t] = t.nextID
	}
}

// Database owns the tables and the undo stack. Each open session adds
// one undo state; states kept on the stack correspond to reversible
// revisions (blocks), and Commit discards the oldest ones once their
// block is irreversible.
type Database struct {
	tables   map[string]*Table
	order    []*Table
	stack    []*undoState
	revision int64
}

// New creates an empty database.
func New() *Database {
	return &Database{tables: make(map[string]*Table)}
}

// RegisterTable adds a table with the given secondary indexes.
// Registration happens once, before any session is opened.
func (db *Database) RegisterTable(name string, specs []IndexSpec) *Table {
	if _, ok := db.tables[name]; ok {
		panic("store: table " + name + " registered twice")
	}
	t := newTable(db, name, specs)
	db.tables[name] = t
	db.order = append(db.order, t)
	return t
}

// Table returns a registered table, panicking on unknown names.
func (db *Database) Table(name string) *Table {
	t, ok := db.tables[name]
	if !ok {
		panic("store: unknown table " + name)
	}
	return t
}

// Tables returns the tables in registration order.
func (db *Database) Tables() []*Table {
	return db.order
}

// Revision returns the current revision number.
func (db *Database) Revision() int64 {
	return db.revision
}

// SetRevision seeds the revision counter. Only valid while no session
// is open (replay startup).
func (db *Database) SetRevision(rev int64) error {
	if len(db.stack) != 0 {
		return types.Consistencyf("store: set revision with %d open sessions", len(db.stack))
	}
	db.revision = rev
	return nil
}

// UndoDepth returns the number of open undo states.
func (db *Database) UndoDepth() int {
	return len(db.stack)
}

func (db *Database) top() *undoState {
	if len(db.stack) == 0 {
		return nil
	}
	return db.stack[len(db.stack)-1]
}

func (db *Database) journalCreate(t *Table, id types.ObjectID) {
	if s := db.top(); s != nil {
		s.touch(t)
		s.entries = append(s.entries, undoEntry{table: t, kind: entryCreated, id: id})
	}
}

func (db *Database) journalModify(t *Table, pre Object) {
	if s := db.top(); s != nil {
		s.touch(t)
		s.entries = append(s.entries, undoEntry{table: t, kind: entryModified, id: pre.ObjectID(), pre: pre})
	}
}

func (db *Database) journalRemove(t *Table, obj Object) {
	if s := db.top(); s != nil {
		s.touch(t)
		s.entries = append(s.entries, undoEntry{table: t, kind: entryRemoved, id: obj.ObjectID(), pre: obj})
	}
}

// StartUndoSession opens a nested session. Every mutation until the
// session is resolved is journaled; Undo rolls them back, Squash folds
// them into the enclosing session, Push keeps them as one revision.
func (db *Database) StartUndoSession() *Session {
	db.revision++
	state := &undoState{
		revision:    db.revision,
		prevNextIDs: make(map[*Table]types.ObjectID),
	}
	db.stack = append(db.stack, state)
	return &Session{db: db, state: state}
}

func (db *Database) undoState(s *undoState) {
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		switch e.kind {
		case entryCreated:
			e.table.undoCreate(e.id)
		case entryModified:
			e.table.undoModify(e.pre)
		case entryRemoved:
			e.table.undoRemove(e.pre)
		}
	}
	for t, next := range s.prevNextIDs {
		t.nextID = next
	}
}

// Undo pops the newest revision off the stack and reverts it. Used to
// pop a block.
func (db *Database) Undo() error {
	if len(db.stack) == 0 {
		return types.Consistencyf("store: undo with empty stack")
	}
	s := db.stack[len(db.stack)-1]
	db.stack = db.stack[:len(db.stack)-1]
	db.undoState(s)
	db.revision--
	return nil
}

// UndoAll reverts every reversible revision.
func (db *Database) UndoAll() {
	for len(db.stack) > 0 {
		_ = db.Undo()
	}
}

// Commit discards undo states up to and including revision. Their
// changes become irreversible.
func (db *Database) Commit(revision int64) {
	n := 0
	for n < len(db.stack) && db.stack[n].revision <= revision {
		n++
	}
	if n > 0 {
		db.stack = append(db.stack[:0], db.stack[n:]...)
	}
}

// Session is one open undo state. Exactly one of Undo, Squash or Push
// resolves it; later calls are no-ops.
type Session struct {
	db    *Database
	state *undoState
	done  bool
}

func (s *Session) resolveTop() *undoState {
	top := s.db.top()
	if top == nil || top != s.state {
		panic("store: session resolved out of order")
	}
	s.db.stack = s.db.stack[:len(s.db.stack)-1]
	return top
}

// Undo reverts every change made inside the session.
func (s *Session) Undo() {
	if s.done {
		return
	}
	s.done = true
	state := s.resolveTop()
	s.db.undoState(state)
	s.db.revision--
}

// Squash folds the session's journal into the enclosing session, so
// the combined changes undo as one unit. With no enclosing session the
// changes simply become irreversible.
func (s *Session) Squash() {
	if s.done {
		return
	}
	s.done = true
	state := s.resolveTop()
	parent := s.db.top()
	s.db.revision--
	if parent == nil {
		return
	}
	parent.entries = append(parent.entries, state.entries...)
	for t, next := range state.prevNextIDs {
		if _, ok := parent.prevNextIDs[t]; !ok {
			parent.prevNextIDs[t] = next
		}
	}
}

// Push keeps the session on the stack as its own revision, to be
// reverted later by Database.Undo or retired by Commit.
func (s *Session) Push() {
	if s.done {
		return
	}
	s.done = true
	top := s.db.top()
	if top == nil || top != s.state {
		panic("store: session pushed out of order")
	}
}
