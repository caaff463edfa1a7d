package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAccountNameIsValid(t *testing.T) {
	valid := []AccountName{"alice", "bob-1", "a.b.c", "initminer", "null"}
	for _, n := range valid {
		require.True(t, n.IsValid(), "expected %q valid", n)
	}

	invalid := []AccountName{"", "ab", "Alice", "1abc", "a..b", "a--b", "trailing.", "trailing-", "waytoolongaccountname"}
	for _, n := range invalid {
		require.False(t, n.IsValid(), "expected %q invalid", n)
	}
}

func TestAssetSymbol(t *testing.T) {
	require.True(t, AssetSymbol("BERRY").IsValid())
	require.True(t, AssetSymbol("MARKET.GOLD").IsValid())
	require.False(t, AssetSymbol("berry").IsValid())
	require.False(t, AssetSymbol(".GOLD").IsValid())
	require.False(t, AssetSymbol("").IsValid())

	require.Equal(t, AssetSymbol("MARKET"), AssetSymbol("MARKET.GOLD").Parent())
	require.Equal(t, AssetSymbol(""), AssetSymbol("BERRY").Parent())
}

func TestChainError(t *testing.T) {
	t.Run("kind extraction", func(t *testing.T) {
		err := Validationf("bad amount %d", -1)
		require.Equal(t, KindValidationFailure, KindOf(err))
		require.True(t, IsValidation(err))
		require.False(t, IsConsistency(err))
	})

	t.Run("with op", func(t *testing.T) {
		err := WithOp("transfer", Validationf("insufficient balance"))
		var ce *ChainError
		require.True(t, errors.As(err, &ce))
		require.Equal(t, "transfer", ce.Op)
		require.Contains(t, err.Error(), "ValidationFailure")
		require.Contains(t, err.Error(), "transfer")
	})

	t.Run("op not overwritten", func(t *testing.T) {
		err := WithOp("outer", WithOp("inner", Consensusf("merkle mismatch")))
		var ce *ChainError
		require.True(t, errors.As(err, &ce))
		require.Equal(t, "inner", ce.Op)
		require.Equal(t, KindConsensusMismatch, KindOf(err))
	})

	t.Run("plain error wraps as validation", func(t *testing.T) {
		cause := errors.New("boom")
		err := WithOp("op", cause)
		require.Equal(t, KindValidationFailure, KindOf(err))
		require.True(t, errors.Is(err, cause))
	})

	t.Run("nil passthrough", func(t *testing.T) {
		require.NoError(t, WithOp("op", nil))
	})
}
