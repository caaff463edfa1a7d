// Package commitment mirrors the chain's irreversible history into a
// merkle tree, so nodes can compare a single root hash to agree they
// replayed the same blocks.
package commitment

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/cosmos/iavl"
	idb "github.com/cosmos/iavl/db"

	"github.com/blockberries/stakeberry/chain"
	"github.com/blockberries/stakeberry/logging"
	"github.com/blockberries/stakeberry/protocol"
)

// Tracker records every applied block id in an iavl working tree and
// saves one tree version at each irreversible boundary. The committed
// root is a compact commitment to the whole final history.
type Tracker struct {
	mu   sync.RWMutex
	tree *iavl.MutableTree
	db   idb.DB
	log  *logging.Logger
}

// New opens a leveldb-backed tracker at path.
func New(path string, cacheSize int, logger *logging.Logger) (*Tracker, error) {
	db, err := idb.NewGoLevelDB("commitment", path)
	if err != nil {
		return nil, fmt.Errorf("opening commitment db: %w", err)
	}
	tree := iavl.NewMutableTree(db, cacheSize, false, iavl.NewNopLogger())
	if _, err := tree.Load(); err != nil {
		db.Close()
		return nil, fmt.Errorf("loading commitment tree: %w", err)
	}
	return newTracker(tree, db, logger), nil
}

// NewMemory builds an in-memory tracker for tests.
func NewMemory(cacheSize int, logger *logging.Logger) *Tracker {
	db := idb.NewMemDB()
	tree := iavl.NewMutableTree(db, cacheSize, false, iavl.NewNopLogger())
	return newTracker(tree, db, logger)
}

func newTracker(tree *iavl.MutableTree, db idb.DB, logger *logging.Logger) *Tracker {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Tracker{
		tree: tree,
		db:   db,
		log:  logger.WithComponent("commitment"),
	}
}

// Attach subscribes the tracker to a chain database. Applied blocks go
// into the working tree; each irreversible advance saves a version.
// Call before blocks flow.
func (t *Tracker) Attach(db *chain.Database) {
	db.SubscribeAppliedBlock(func(b *protocol.SignedBlock) {
		if err := t.RecordBlock(b); err != nil {
			t.log.Error("failed to record block", logging.Error(err))
		}
	})
	db.SubscribeIrreversible(func(num uint32) {
		if _, _, err := t.CommitThrough(num); err != nil {
			t.log.Error("failed to commit version", logging.Error(err))
		}
	})
}

func blockKey(num uint32) []byte {
	key := make([]byte, 5)
	key[0] = 'b'
	binary.BigEndian.PutUint32(key[1:], num)
	return key
}

// RecordBlock writes the block's id into the working tree, replacing
// any id a discarded fork left at the same height.
func (t *Tracker) RecordBlock(b *protocol.SignedBlock) error {
	id, err := b.BlockID()
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.tree.Set(blockKey(b.BlockNum()), id); err != nil {
		return fmt.Errorf("recording block %d: %w", b.BlockNum(), err)
	}
	return nil
}

// CommitThrough saves the working tree as the version for the given
// irreversible height and returns its root hash.
func (t *Tracker) CommitThrough(num uint32) ([]byte, int64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	hash, version, err := t.tree.SaveVersion()
	if err != nil {
		return nil, 0, fmt.Errorf("committing through block %d: %w", num, err)
	}
	t.log.Debug("committed history root",
		logging.BlockNum(num), logging.Hash(hash), logging.Revision(version))
	return hash, version, nil
}

// RootHash returns the working tree's root, covering blocks recorded
// since the last commit as well.
func (t *Tracker) RootHash() []byte {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tree.WorkingHash()
}

// Version returns the last committed tree version.
func (t *Tracker) Version() int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.tree.Version()
}

// BlockID returns the recorded id at a height, nil when unknown.
func (t *Tracker) BlockID(num uint32) (protocol.BlockID, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	value, err := t.tree.Get(blockKey(num))
	if err != nil {
		return nil, fmt.Errorf("reading block %d: %w", num, err)
	}
	return protocol.BlockID(value), nil
}

// Close releases the backing database.
func (t *Tracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.db.Close()
}
