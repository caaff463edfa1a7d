// Package forkdb tracks the recent block tree above the irreversible
// boundary and picks the longest branch as head.
package forkdb

import (
	"errors"
	"fmt"

	"github.com/blockberries/stakeberry/protocol"
)

var (
	ErrUnlinkable = errors.New("block does not link to a known block")
	ErrNotFound   = errors.New("block not found")
)

// Item is one node of the block tree.
type Item struct {
	Block *protocol.SignedBlock
	ID    protocol.BlockID
	Num   uint32
}

// DB holds every block seen within the reversible window, indexed by
// id and by number. Not safe for concurrent use; the chain serializes
// access.
type DB struct {
	byID  map[string]*Item
	byNum map[uint32][]*Item
	head  *Item
	root  uint32 // lowest retained block number
}

// New creates an empty fork database.
func New() *DB {
	return &DB{
		byID:  make(map[string]*Item),
		byNum: make(map[uint32][]*Item),
	}
}

// Head returns the item on the best branch, nil when empty.
func (db *DB) Head() *Item {
	return db.head
}

// Start seeds the database with the first trusted block, typically the
// genesis block or the head of a replayed log.
func (db *DB) Start(b *protocol.SignedBlock) (*Item, error) {
	id, err := b.BlockID()
	if err != nil {
		return nil, err
	}
	item := &Item{Block: b, ID: id, Num: b.BlockNum()}
	db.byID[string(item.ID)] = item
	db.byNum[item.Num] = append(db.byNum[item.Num], item)
	db.head = item
	db.root = item.Num
	return item, nil
}

// PushBlock links a block into the tree. The parent must already be
// present. The head moves to the new block when its branch is longer.
func (db *DB) PushBlock(b *protocol.SignedBlock) (*Item, error) {
	id, err := b.BlockID()
	if err != nil {
		return nil, err
	}
	if item, ok := db.byID[string(id)]; ok {
		return item, nil
	}

	num := b.BlockNum()
	if db.head != nil {
		if _, ok := db.byID[string(b.Previous)]; !ok {
			return nil, fmt.Errorf("%w: block %d previous %x", ErrUnlinkable, num, b.Previous[:4])
		}
		if num <= db.root {
			return nil, fmt.Errorf("%w: block %d below root %d", ErrUnlinkable, num, db.root)
		}
	}

	item := &Item{Block: b, ID: id, Num: num}
	db.byID[string(id)] = item
	db.byNum[num] = append(db.byNum[num], item)

	if db.head == nil || num > db.head.Num {
		db.head = item
	}
	return item, nil
}

// Fetch returns the item with the given id.
func (db *DB) Fetch(id protocol.BlockID) (*Item, bool) {
	item, ok := db.byID[string(id)]
	return item, ok
}

// FetchByNumber returns every item stored at a number. Multiple items
// mean competing branches.
func (db *DB) FetchByNumber(num uint32) []*Item {
	return db.byNum[num]
}

// parent returns the item the given item builds on.
func (db *DB) parent(item *Item) (*Item, bool) {
	return db.Fetch(item.Block.Previous)
}

// FetchBranchFrom walks two items back to their common ancestor and
// returns the two branches, newest first, excluding the ancestor
// itself.
func (db *DB) FetchBranchFrom(first, second protocol.BlockID) (branchFirst, branchSecond []*Item, err error) {
	a, ok := db.Fetch(first)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %x", ErrNotFound, first[:4])
	}
	b, ok := db.Fetch(second)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %x", ErrNotFound, second[:4])
	}

	for a.Num > b.Num {
		branchFirst = append(branchFirst, a)
		a, ok = db.parent(a)
		if !ok {
			return nil, nil, fmt.Errorf("%w: branch walked past root", ErrNotFound)
		}
	}
	for b.Num > a.Num {
		branchSecond = append(branchSecond, b)
		b, ok = db.parent(b)
		if !ok {
			return nil, nil, fmt.Errorf("%w: branch walked past root", ErrNotFound)
		}
	}
	for !a.ID.Equal(b.ID) {
		branchFirst = append(branchFirst, a)
		branchSecond = append(branchSecond, b)
		a, ok = db.parent(a)
		if !ok {
			return nil, nil, fmt.Errorf("%w: branch walked past root", ErrNotFound)
		}
		b, ok = db.parent(b)
		if !ok {
			return nil, nil, fmt.Errorf("%w: branch walked past root", ErrNotFound)
		}
	}
	return branchFirst, branchSecond, nil
}

// SetHead points the best branch at an already-stored item.
func (db *DB) SetHead(item *Item) {
	db.head = item
}

// Remove drops one item. Removing the head moves it to the highest
// remaining item.
func (db *DB) Remove(id protocol.BlockID) {
	item, ok := db.byID[string(id)]
	if !ok {
		return
	}
	delete(db.byID, string(id))
	siblings := db.byNum[item.Num]
	for i, s := range siblings {
		if s == item {
			db.byNum[item.Num] = append(siblings[:i], siblings[i+1:]...)
			break
		}
	}
	if len(db.byNum[item.Num]) == 0 {
		delete(db.byNum, item.Num)
	}

	if db.head == item {
		db.head = nil
		for _, items := range db.byNum {
			for _, s := range items {
				if db.head == nil || s.Num > db.head.Num {
					db.head = s
				}
			}
		}
	}
}

// PopBlock moves the head to its parent, abandoning the old head.
func (db *DB) PopBlock() (*Item, error) {
	if db.head == nil {
		return nil, errors.New("no blocks to pop")
	}
	old := db.head
	parent, ok := db.parent(old)
	if !ok {
		return nil, errors.New("cannot pop the root block")
	}
	db.Remove(old.ID)
	db.head = parent
	return parent, nil
}

// Prune discards every block at or below the given number. Blocks at
// or below the irreversible boundary live in the block log; branches
// forking below it are dead.
func (db *DB) Prune(num uint32) {
	for n := db.root; n <= num; n++ {
		for _, item := range append([]*Item(nil), db.byNum[n]...) {
			db.Remove(item.ID)
		}
	}
	if num >= db.root {
		db.root = num + 1
	}
}
