package blocklog

import (
	"sync"
)

// MemoryLog implements Log with in-memory storage. Primarily used for
// testing and replay.
type MemoryLog struct {
	blocks map[uint32]blockEntry
	byID   map[string]uint32
	head   uint32
	base   uint32
	mu     sync.RWMutex
}

type blockEntry struct {
	id   []byte
	data []byte
}

// NewMemoryLog creates a new in-memory block log.
func NewMemoryLog() *MemoryLog {
	return &MemoryLog{
		blocks: make(map[uint32]blockEntry),
		byID:   make(map[string]uint32),
	}
}

// SaveBlock stores a block at the given number.
func (m *MemoryLog) SaveBlock(num uint32, id []byte, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.blocks[num]; exists {
		return ErrBlockExists
	}

	// Store defensive copies to prevent external mutation.
	m.blocks[num] = blockEntry{
		id:   append([]byte(nil), id...),
		data: append([]byte(nil), data...),
	}
	m.byID[string(id)] = num

	if m.base == 0 || num < m.base {
		m.base = num
	}
	if num > m.head {
		m.head = num
	}

	return nil
}

// LoadBlock retrieves a block by number.
func (m *MemoryLog) LoadBlock(num uint32) ([]byte, []byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, exists := m.blocks[num]
	if !exists {
		return nil, nil, ErrBlockNotFound
	}
	return append([]byte(nil), entry.id...), append([]byte(nil), entry.data...), nil
}

// LoadBlockByID retrieves a block by its id.
func (m *MemoryLog) LoadBlockByID(id []byte) (uint32, []byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	num, exists := m.byID[string(id)]
	if !exists {
		return 0, nil, ErrBlockNotFound
	}

	entry := m.blocks[num]
	return num, append([]byte(nil), entry.data...), nil
}

// HasBlock checks if a block exists at the given number.
func (m *MemoryLog) HasBlock(num uint32) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, exists := m.blocks[num]
	return exists
}

// Head returns the highest stored block number.
func (m *MemoryLog) Head() uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.head
}

// Base returns the lowest stored block number.
func (m *MemoryLog) Base() uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.base
}

// Close closes the log.
func (m *MemoryLog) Close() error {
	return nil
}

var _ Log = (*MemoryLog)(nil)
