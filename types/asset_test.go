package types

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestAssetArithmetic(t *testing.T) {
	t.Run("add and sub", func(t *testing.T) {
		a := NewAsset(100, "BERRY")
		b := NewAsset(40, "BERRY")
		require.Equal(t, NewAsset(140, "BERRY"), a.Add(b))
		require.Equal(t, NewAsset(60, "BERRY"), a.Sub(b))
	})

	t.Run("symbol mismatch panics", func(t *testing.T) {
		a := NewAsset(1, "BERRY")
		b := NewAsset(1, "BBD")
		require.Panics(t, func() { a.Add(b) })
		require.Panics(t, func() { a.Sub(b) })
	})
}

func TestPriceCompare(t *testing.T) {
	t.Run("same pair orders by ratio", func(t *testing.T) {
		cheap := NewPrice(NewAsset(1, "BERRY"), NewAsset(2, "BBD"))
		dear := NewPrice(NewAsset(1, "BERRY"), NewAsset(1, "BBD"))
		require.True(t, cheap.Less(dear))
		require.False(t, dear.Less(cheap))
	})

	t.Run("equivalent ratios compare equal", func(t *testing.T) {
		a := NewPrice(NewAsset(1, "BERRY"), NewAsset(3, "BBD"))
		b := NewPrice(NewAsset(10, "BERRY"), NewAsset(30, "BBD"))
		require.True(t, a.Equal(b))
	})

	t.Run("different pairs order by symbol", func(t *testing.T) {
		a := NewPrice(NewAsset(5, "AAA"), NewAsset(1, "BBD"))
		b := NewPrice(NewAsset(1, "BERRY"), NewAsset(100, "BBD"))
		require.True(t, a.Less(b))
	})

	t.Run("large amounts do not overflow", func(t *testing.T) {
		a := NewPrice(NewAsset(MaxShareSupply, "BERRY"), NewAsset(1, "BBD"))
		b := NewPrice(NewAsset(MaxShareSupply-1, "BERRY"), NewAsset(1, "BBD"))
		require.True(t, b.Less(a))
	})
}

func TestAssetMulPrice(t *testing.T) {
	p := NewPrice(NewAsset(3, "BERRY"), NewAsset(2, "BBD"))

	t.Run("base side", func(t *testing.T) {
		got := NewAsset(9, "BERRY").Mul(p)
		require.Equal(t, NewAsset(6, "BBD"), got)
	})

	t.Run("quote side", func(t *testing.T) {
		got := NewAsset(2, "BBD").Mul(p)
		require.Equal(t, NewAsset(3, "BERRY"), got)
	})

	t.Run("truncates toward zero", func(t *testing.T) {
		got := NewAsset(1, "BERRY").Mul(p)
		require.Equal(t, NewAsset(0, "BBD"), got)
	})

	t.Run("foreign symbol panics", func(t *testing.T) {
		require.Panics(t, func() { NewAsset(1, "GOLD").Mul(p) })
	})
}

func TestMulDiv(t *testing.T) {
	require.Equal(t, Share(6), MulDiv(4, 3, 2))
	require.Equal(t, Share(-6), MulDiv(-4, 3, 2))
	require.Equal(t, Share(1), MulDiv(7, 1, 4))
	require.Equal(t, MaxShareSupply, MulDiv(MaxShareSupply, MaxShareSupply, MaxShareSupply))
	require.Panics(t, func() { MulDiv(1, 1, 0) })
}

func TestMulDivProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		a := rapid.Int64Range(0, int64(MaxShareSupply)).Draw(t, "a")
		b := rapid.Int64Range(1, int64(MaxShareSupply)).Draw(t, "b")
		c := rapid.Int64Range(b, int64(MaxShareSupply)).Draw(t, "c")

		q := MulDiv(Share(a), Share(b), Share(c))
		// q = floor(a*b/c): q*c <= a*b < (q+1)*c
		lhs := Mul64(uint64(q), uint64(c))
		prod := Mul64(uint64(a), uint64(b))
		require.LessOrEqual(t, lhs.Cmp(prod), 0)
		upper := lhs.Add(U128(uint64(c)))
		require.Equal(t, 1, upper.Cmp(prod))
	})
}

func TestCallPrice(t *testing.T) {
	debt := NewAsset(100, "BBD")
	collateral := NewAsset(300, "BERRY")
	cp := CallPrice(debt, collateral, 17500)

	require.Equal(t, AssetSymbol("BERRY"), cp.Base.Symbol)
	require.Equal(t, AssetSymbol("BBD"), cp.Quote.Symbol)
	// 300/100 collateralization against a 1.75 maintenance ratio.
	want := NewPrice(NewAsset(300*4, "BERRY"), NewAsset(100*7, "BBD"))
	require.True(t, cp.Equal(want))
}

func TestUint128(t *testing.T) {
	t.Run("mul div round trip", func(t *testing.T) {
		v := Mul64(1<<40, 1<<40)
		require.Equal(t, Uint128{Hi: 1 << 16, Lo: 0}, v)
		require.Equal(t, U128(1<<40), v.DivU64(1<<40))
	})

	t.Run("add sub", func(t *testing.T) {
		a := Uint128{Hi: 1, Lo: ^uint64(0)}
		b := U128(1)
		require.Equal(t, Uint128{Hi: 2, Lo: 0}, a.Add(b))
		require.Equal(t, a, a.Add(b).Sub(b))
	})

	t.Run("cmp", func(t *testing.T) {
		require.Equal(t, -1, U128(1).Cmp(Uint128{Hi: 1}))
		require.Equal(t, 0, U128(5).Cmp(U128(5)))
		require.Equal(t, 1, Uint128{Hi: 1}.Cmp(U128(^uint64(0))))
	})
}
