package blocklog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func openBackends(t *testing.T) map[string]Log {
	t.Helper()

	ldb, err := NewLevelDBLog(t.TempDir() + "/blocks")
	require.NoError(t, err)
	t.Cleanup(func() { ldb.Close() })

	bdb, err := NewBadgerLog(t.TempDir() + "/blocks")
	require.NoError(t, err)
	t.Cleanup(func() { bdb.Close() })

	return map[string]Log{
		"memory":  NewMemoryLog(),
		"leveldb": ldb,
		"badger":  bdb,
	}
}

func TestSaveAndLoad(t *testing.T) {
	for name, log := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			id := []byte("block-id-000000000000000000000001")
			data := []byte("payload")

			require.NoError(t, log.SaveBlock(1, id, data))
			require.ErrorIs(t, log.SaveBlock(1, id, data), ErrBlockExists)

			gotID, gotData, err := log.LoadBlock(1)
			require.NoError(t, err)
			require.Equal(t, id, gotID)
			require.Equal(t, data, gotData)

			num, gotData, err := log.LoadBlockByID(id)
			require.NoError(t, err)
			require.Equal(t, uint32(1), num)
			require.Equal(t, data, gotData)

			_, _, err = log.LoadBlock(2)
			require.ErrorIs(t, err, ErrBlockNotFound)
			_, _, err = log.LoadBlockByID([]byte("missing"))
			require.ErrorIs(t, err, ErrBlockNotFound)
		})
	}
}

func TestHeadAndBase(t *testing.T) {
	for name, log := range openBackends(t) {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, uint32(0), log.Head())
			require.Equal(t, uint32(0), log.Base())

			require.NoError(t, log.SaveBlock(5, []byte("e"), []byte("five")))
			require.NoError(t, log.SaveBlock(3, []byte("c"), []byte("three")))
			require.NoError(t, log.SaveBlock(7, []byte("g"), []byte("seven")))

			require.Equal(t, uint32(7), log.Head())
			require.Equal(t, uint32(3), log.Base())
			require.True(t, log.HasBlock(5))
			require.False(t, log.HasBlock(4))
		})
	}
}

func TestLevelDBReopen(t *testing.T) {
	dir := t.TempDir() + "/blocks"

	log, err := NewLevelDBLog(dir)
	require.NoError(t, err)
	require.NoError(t, log.SaveBlock(1, []byte("a"), []byte("one")))
	require.NoError(t, log.SaveBlock(2, []byte("b"), []byte("two")))
	require.NoError(t, log.Close())

	log, err = NewLevelDBLog(dir)
	require.NoError(t, err)
	defer log.Close()

	require.Equal(t, uint32(2), log.Head())
	require.Equal(t, uint32(1), log.Base())
	_, data, err := log.LoadBlock(2)
	require.NoError(t, err)
	require.Equal(t, []byte("two"), data)
}
