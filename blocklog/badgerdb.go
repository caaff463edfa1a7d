package blocklog

import (
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

// BadgerLog implements Log using BadgerDB.
type BadgerLog struct {
	db   *badger.DB
	path string
	head uint32
	base uint32
	mu   sync.RWMutex
}

// BadgerOptions contains configuration options for BadgerDB.
type BadgerOptions struct {
	// SyncWrites ensures durability by syncing writes to disk.
	SyncWrites bool

	// Compression enables Snappy compression for values.
	Compression bool

	// ValueLogFileSize is the maximum size of a single value log file.
	ValueLogFileSize int64

	// MemTableSize is the size of the memtable.
	MemTableSize int64

	// Logger is an optional logger for BadgerDB. If nil, logging is
	// disabled.
	Logger badger.Logger
}

// DefaultBadgerOptions returns sensible default options.
func DefaultBadgerOptions() *BadgerOptions {
	return &BadgerOptions{
		SyncWrites:       true,
		Compression:      true,
		ValueLogFileSize: 1 << 30,  // 1GB
		MemTableSize:     64 << 20, // 64MB
	}
}

// NewBadgerLog opens or creates a BadgerDB-backed block log.
func NewBadgerLog(path string) (*BadgerLog, error) {
	return NewBadgerLogWithOptions(path, DefaultBadgerOptions())
}

// NewBadgerLogWithOptions opens a BadgerDB-backed block log with
// custom options.
func NewBadgerLogWithOptions(path string, opts *BadgerOptions) (*BadgerLog, error) {
	if opts == nil {
		opts = DefaultBadgerOptions()
	}

	badgerOpts := badger.DefaultOptions(path)
	badgerOpts = badgerOpts.WithSyncWrites(opts.SyncWrites)
	badgerOpts = badgerOpts.WithValueLogFileSize(opts.ValueLogFileSize)
	badgerOpts = badgerOpts.WithMemTableSize(opts.MemTableSize)

	if opts.Compression {
		badgerOpts = badgerOpts.WithCompression(options.Snappy)
	} else {
		badgerOpts = badgerOpts.WithCompression(options.None)
	}

	if opts.Logger != nil {
		badgerOpts = badgerOpts.WithLogger(opts.Logger)
	} else {
		badgerOpts = badgerOpts.WithLogger(nil)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("opening badgerdb: %w", err)
	}

	log := &BadgerLog{
		db:   db,
		path: path,
	}

	if err := log.loadMetadata(); err != nil {
		db.Close()
		return nil, fmt.Errorf("loading metadata: %w", err)
	}

	return log, nil
}

func (s *BadgerLog) loadMetadata() error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyMetaHead)
		if err == nil {
			err = item.Value(func(val []byte) error {
				s.head = decodeUint32(val)
				return nil
			})
			if err != nil {
				return err
			}
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		item, err = txn.Get(keyMetaBase)
		if err == nil {
			err = item.Value(func(val []byte) error {
				s.base = decodeUint32(val)
				return nil
			})
			if err != nil {
				return err
			}
		} else if err != badger.ErrKeyNotFound {
			return err
		}

		return nil
	})
}

// SaveBlock persists a block at the given number.
func (s *BadgerLog) SaveBlock(num uint32, id []byte, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	numKey := makeNumKey(num)

	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(numKey)
		if err == nil {
			return ErrBlockExists
		}
		if err != badger.ErrKeyNotFound {
			return fmt.Errorf("checking block existence: %w", err)
		}

		if err := txn.Set(numKey, id); err != nil {
			return err
		}
		if err := txn.Set(makeBlockKey(id), makeBlockValue(num, data)); err != nil {
			return err
		}
		if num > s.head {
			if err := txn.Set(keyMetaHead, encodeUint32(num)); err != nil {
				return err
			}
		}
		if s.base == 0 || num < s.base {
			if err := txn.Set(keyMetaBase, encodeUint32(num)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if num > s.head {
		s.head = num
	}
	if s.base == 0 || num < s.base {
		s.base = num
	}

	return nil
}

// LoadBlock retrieves a block by number.
func (s *BadgerLog) LoadBlock(num uint32) ([]byte, []byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var id, data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(makeNumKey(num))
		if err == badger.ErrKeyNotFound {
			return ErrBlockNotFound
		}
		if err != nil {
			return fmt.Errorf("getting id for block %d: %w", num, err)
		}
		id, err = item.ValueCopy(nil)
		if err != nil {
			return err
		}

		item, err = txn.Get(makeBlockKey(id))
		if err == badger.ErrKeyNotFound {
			return ErrBlockNotFound
		}
		if err != nil {
			return fmt.Errorf("getting block data: %w", err)
		}
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		_, data, err = parseBlockValue(value)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return id, data, nil
}

// LoadBlockByID retrieves a block by its id.
func (s *BadgerLog) LoadBlockByID(id []byte) (uint32, []byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var num uint32
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(makeBlockKey(id))
		if err == badger.ErrKeyNotFound {
			return ErrBlockNotFound
		}
		if err != nil {
			return fmt.Errorf("getting block by id: %w", err)
		}
		value, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		num, data, err = parseBlockValue(value)
		return err
	})
	if err != nil {
		return 0, nil, err
	}
	return num, data, nil
}

// HasBlock checks if a block exists at the given number.
func (s *BadgerLog) HasBlock(num uint32) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(makeNumKey(num))
		return err
	})
	return err == nil
}

// Head returns the highest stored block number.
func (s *BadgerLog) Head() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.head
}

// Base returns the lowest stored block number.
func (s *BadgerLog) Base() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.base
}

// Close closes the underlying database.
func (s *BadgerLog) Close() error {
	return s.db.Close()
}

var _ Log = (*BadgerLog)(nil)
