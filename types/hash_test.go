package types

import (
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashSize(t *testing.T) {
	require.Equal(t, 32, HashSize)
	require.Equal(t, sha256.Size, HashSize)
}

func TestHashBytes(t *testing.T) {
	t.Run("basic hash", func(t *testing.T) {
		h := HashBytes([]byte("test data"))
		require.Len(t, h, HashSize)
	})

	t.Run("nil data", func(t *testing.T) {
		h := HashBytes(nil)
		require.Nil(t, h)
	})

	t.Run("empty data", func(t *testing.T) {
		h := HashBytes([]byte{})
		require.Len(t, h, HashSize)
		require.True(t, h.Equal(EmptyHash()))
	})

	t.Run("matches sha256", func(t *testing.T) {
		data := []byte("hello world")
		h := HashBytes(data)

		expected := sha256.Sum256(data)
		require.Equal(t, expected[:], h.Bytes())
	})
}

func TestHashConcat(t *testing.T) {
	t.Run("basic concat", func(t *testing.T) {
		h1 := HashBytes([]byte("left"))
		h2 := HashBytes([]byte("right"))
		result := HashConcat(h1, h2)
		require.Len(t, result, HashSize)
	})

	t.Run("order matters", func(t *testing.T) {
		h1 := HashBytes([]byte("a"))
		h2 := HashBytes([]byte("b"))
		result1 := HashConcat(h1, h2)
		result2 := HashConcat(h2, h1)
		require.False(t, result1.Equal(result2))
	})

	t.Run("matches manual sha256 of concatenation", func(t *testing.T) {
		h1 := HashBytes([]byte("left"))
		h2 := HashBytes([]byte("right"))
		result := HashConcat(h1, h2)

		concat := append(h1.Bytes(), h2.Bytes()...)
		expected := sha256.Sum256(concat)
		require.Equal(t, expected[:], result.Bytes())
	})
}

func TestEmptyHash(t *testing.T) {
	t.Run("known value", func(t *testing.T) {
		h := EmptyHash()
		require.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", h.String())
	})
}

func BenchmarkHashConcat(b *testing.B) {
	h1 := HashBytes([]byte("left"))
	h2 := HashBytes([]byte("right"))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		HashConcat(h1, h2)
	}
}
