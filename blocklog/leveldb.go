package blocklog

import (
	"fmt"
	"sync"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
)

// LevelDBLog implements Log using LevelDB.
type LevelDBLog struct {
	db   *leveldb.DB
	path string
	head uint32
	base uint32
	mu   sync.RWMutex
}

// NewLevelDBLog opens or creates a LevelDB-backed block log.
func NewLevelDBLog(path string) (*LevelDBLog, error) {
	db, err := leveldb.OpenFile(path, &opt.Options{
		NoSync: false, // Ensure durability
	})
	if err != nil {
		return nil, fmt.Errorf("opening leveldb: %w", err)
	}

	log := &LevelDBLog{
		db:   db,
		path: path,
	}

	if err := log.loadMetadata(); err != nil {
		db.Close()
		return nil, fmt.Errorf("loading metadata: %w", err)
	}

	return log, nil
}

func (s *LevelDBLog) loadMetadata() error {
	data, err := s.db.Get(keyMetaHead, nil)
	if err == nil {
		s.head = decodeUint32(data)
	} else if err != leveldb.ErrNotFound {
		return err
	}

	data, err = s.db.Get(keyMetaBase, nil)
	if err == nil {
		s.base = decodeUint32(data)
	} else if err != leveldb.ErrNotFound {
		return err
	}

	return nil
}

// SaveBlock persists a block at the given number.
func (s *LevelDBLog) SaveBlock(num uint32, id []byte, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	numKey := makeNumKey(num)
	exists, err := s.db.Has(numKey, nil)
	if err != nil {
		return fmt.Errorf("checking block existence: %w", err)
	}
	if exists {
		return ErrBlockExists
	}

	batch := new(leveldb.Batch)
	batch.Put(numKey, id)
	batch.Put(makeBlockKey(id), makeBlockValue(num, data))
	if num > s.head {
		batch.Put(keyMetaHead, encodeUint32(num))
	}
	if s.base == 0 || num < s.base {
		batch.Put(keyMetaBase, encodeUint32(num))
	}

	if err := s.db.Write(batch, &opt.WriteOptions{Sync: true}); err != nil {
		return fmt.Errorf("writing block: %w", err)
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
func (s *LevelDBLog) LoadBlock(num uint32) ([]byte, []byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, err := s.db.Get(makeNumKey(num), nil)
	if err == leveldb.ErrNotFound {
		return nil, nil, ErrBlockNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("getting id for block %d: %w", num, err)
	}

	value, err := s.db.Get(makeBlockKey(id), nil)
	if err == leveldb.ErrNotFound {
		return nil, nil, ErrBlockNotFound
	}
	if err != nil {
		return nil, nil, fmt.Errorf("getting block data: %w", err)
	}

	_, data, err := parseBlockValue(value)
	if err != nil {
		return nil, nil, err
	}
	return id, data, nil
}

// LoadBlockByID retrieves a block by its id.
func (s *LevelDBLog) LoadBlockByID(id []byte) (uint32, []byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, err := s.db.Get(makeBlockKey(id), nil)
	if err == leveldb.ErrNotFound {
		return 0, nil, ErrBlockNotFound
	}
	if err != nil {
		return 0, nil, fmt.Errorf("getting block by id: %w", err)
	}

	return parseBlockValue(value)
}

// HasBlock checks if a block exists at the given number.
func (s *LevelDBLog) HasBlock(num uint32) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exists, _ := s.db.Has(makeNumKey(num), nil)
	return exists
}

// Head returns the highest stored block number.
func (s *LevelDBLog) Head() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.head
}

// Base returns the lowest stored block number.
func (s *LevelDBLog) Base() uint32 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.base
}

// Close closes the underlying database.
func (s *LevelDBLog) Close() error {
	return s.db.Close()
}

var _ Log = (*LevelDBLog)(nil)
