// Package blocklog persists irreversible signed blocks, keyed by block
// number with a secondary lookup by block id.
package blocklog

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	ErrBlockNotFound = errors.New("block not found")
	ErrBlockExists   = errors.New("block already exists")
)

// Log is the append-mostly store for blocks the chain has made
// irreversible. Blocks are stored as encoded bytes; callers own the
// codec.
type Log interface {
	// SaveBlock persists a block at the given number. Numbers must not
	// be reused.
	SaveBlock(num uint32, id []byte, data []byte) error

	// LoadBlock retrieves a block's id and bytes by number.
	LoadBlock(num uint32) (id []byte, data []byte, err error)

	// LoadBlockByID retrieves a block's number and bytes by id.
	LoadBlockByID(id []byte) (num uint32, data []byte, err error)

	// HasBlock reports whether a block exists at the given number.
	HasBlock(num uint32) bool

	// Head returns the highest stored block number, zero when empty.
	Head() uint32

	// Base returns the lowest stored block number, zero when empty.
	Base() uint32

	// Close releases the underlying resources.
	Close() error
}

// Key prefixes shared by the persistent backends.
var (
	prefixNum   = []byte("N:") // number -> id
	prefixBlock = []byte("B:") // id -> number || data
	keyMetaHead = []byte("M:head")
	keyMetaBase = []byte("M:base")
)

func makeNumKey(num uint32) []byte {
	key := make([]byte, len(prefixNum)+4)
	copy(key, prefixNum)
	binary.BigEndian.PutUint32(key[len(prefixNum):], num)
	return key
}

func makeBlockKey(id []byte) []byte {
	key := make([]byte, len(prefixBlock)+len(id))
	copy(key, prefixBlock)
	copy(key[len(prefixBlock):], id)
	return key
}

// makeBlockValue prepends the block number so id lookups recover it
// without a second read.
func makeBlockValue(num uint32, data []byte) []byte {
	value := make([]byte, 4+len(data))
	binary.BigEndian.PutUint32(value, num)
	copy(value[4:], data)
	return value
}

func parseBlockValue(value []byte) (uint32, []byte, error) {
	if len(value) < 4 {
		return 0, nil, fmt.Errorf("corrupt block value: %d bytes", len(value))
	}
	return binary.BigEndian.Uint32(value), value[4:], nil
}

func encodeUint32(v uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, v)
	return buf
}

func decodeUint32(buf []byte) uint32 {
	if len(buf) != 4 {
		return 0
	}
	return binary.BigEndian.Uint32(buf)
}
