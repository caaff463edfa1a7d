package protocol

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blockberries/stakeberry/types"
)

func TestMerkleRoot(t *testing.T) {
	h := func(s string) types.Hash { return types.HashBytes([]byte(s)) }

	t.Run("empty", func(t *testing.T) {
		require.Len(t, MerkleRoot(nil), 0)
	})

	t.Run("single leaf is the root", func(t *testing.T) {
		require.True(t, h("a").Equal(MerkleRoot([]types.Hash{h("a")})))
	})

	t.Run("two leaves", func(t *testing.T) {
		want := types.HashConcat(h("a"), h("b"))
		require.True(t, want.Equal(MerkleRoot([]types.Hash{h("a"), h("b")})))
	})

	t.Run("odd leaf pairs with itself", func(t *testing.T) {
		ab := types.HashConcat(h("a"), h("b"))
		cc := types.HashConcat(h("c"), h("c"))
		want := types.HashConcat(ab, cc)
		require.True(t, want.Equal(MerkleRoot([]types.Hash{h("a"), h("b"), h("c")})))
	})

	t.Run("input slice not mutated", func(t *testing.T) {
		leaves := []types.Hash{h("a"), h("b"), h("c"), h("d")}
		MerkleRoot(leaves)
		require.True(t, leaves[0].Equal(h("a")))
		require.True(t, leaves[3].Equal(h("d")))
	})

	t.Run("order matters", func(t *testing.T) {
		r1 := MerkleRoot([]types.Hash{h("a"), h("b")})
		r2 := MerkleRoot([]types.Hash{h("b"), h("a")})
		require.False(t, r1.Equal(r2))
	})
}
