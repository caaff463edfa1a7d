package types

import (
	"fmt"
	"math/bits"
)

// Share is a fixed-point asset amount. The display precision of the
// owning asset decides where the decimal point sits; all arithmetic is
// integral and truncates toward zero.
type Share int64

// MaxShareSupply bounds the total amount of any single asset.
const MaxShareSupply Share = 1_000_000_000_000_000

// Percent is a basis-point fraction; Percent100 is 100%.
type Percent uint16

// Percent100 is the basis-point denominator (100% == 10000).
const Percent100 Percent = 10000

// Asset is an amount of a specific asset.
type Asset struct {
	Amount Share       `json:"amount"`
	Symbol AssetSymbol `json:"symbol"`
}

// NewAsset builds an asset value.
func NewAsset(amount Share, symbol AssetSymbol) Asset {
	return Asset{Amount: amount, Symbol: symbol}
}

// Add returns a + b. Both operands must share a symbol; mixing symbols
// is a programming error and panics.
func (a Asset) Add(b Asset) Asset {
	if a.Symbol != b.Symbol {
		panic(fmt.Sprintf("asset add: symbol mismatch %s vs %s", a.Symbol, b.Symbol))
	}
	return Asset{Amount: a.Amount + b.Amount, Symbol: a.Symbol}
}

// Sub returns a - b. Both operands must share a symbol.
func (a Asset) Sub(b Asset) Asset {
	if a.Symbol != b.Symbol {
		panic(fmt.Sprintf("asset sub: symbol mismatch %s vs %s", a.Symbol, b.Symbol))
	}
	return Asset{Amount: a.Amount - b.Amount, Symbol: a.Symbol}
}

// Neg returns the negated amount.
func (a Asset) Neg() Asset {
	return Asset{Amount: -a.Amount, Symbol: a.Symbol}
}

// IsZero reports whether the amount is zero.
func (a Asset) IsZero() bool {
	return a.Amount == 0
}

// String formats the asset as "<amount> <symbol>" in raw units.
func (a Asset) String() string {
	return fmt.Sprintf("%d %s", a.Amount, a.Symbol)
}

// Price is an exchange rate expressed as the ratio Base/Quote.
type Price struct {
	Base  Asset `json:"base"`
	Quote Asset `json:"quote"`
}

// NewPrice builds a price from base and quote amounts.
func NewPrice(base, quote Asset) Price {
	return Price{Base: base, Quote: quote}
}

// MaxPrice returns the highest representable price for the pair.
func MaxPrice(base, quote AssetSymbol) Price {
	return Price{
		Base:  Asset{Amount: MaxShareSupply, Symbol: base},
		Quote: Asset{Amount: 1, Symbol: quote},
	}
}

// MinPrice returns the lowest representable price for the pair.
func MinPrice(base, quote AssetSymbol) Price {
	return Price{
		Base:  Asset{Amount: 1, Symbol: base},
		Quote: Asset{Amount: MaxShareSupply, Symbol: quote},
	}
}

// CallPrice derives the margin-call trigger price from a position's
// debt, collateral and maintenance collateral ratio (in Percent100
// units). The result is oriented collateral/debt.
func CallPrice(debt, collateral Asset, maintenanceRatio Percent) Price {
	// Reduce the ratio by its gcd with the denominator so the scaled
	// amounts stay well inside int64 range.
	num, den := Share(Percent100), Share(maintenanceRatio)
	for g := gcd(num, den); g > 1; g = gcd(num, den) {
		num /= g
		den /= g
	}
	return Price{
		Base:  Asset{Amount: collateral.Amount * num, Symbol: collateral.Symbol},
		Quote: Asset{Amount: debt.Amount * den, Symbol: debt.Symbol},
	}
}

func gcd(a, b Share) Share {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// IsNull reports whether the price carries no rate. Feed slots use the
// null price to mean "no valid feed".
func (p Price) IsNull() bool {
	return p.Base.Amount == 0 || p.Quote.Amount == 0
}

// Invert swaps base and quote.
func (p Price) Invert() Price {
	return Price{Base: p.Quote, Quote: p.Base}
}

// Equal reports whether two prices denote the same rate for the same
// pair.
func (p Price) Equal(o Price) bool {
	return p.Cmp(o) == 0
}

// Less orders prices: first by base symbol, then by quote symbol, then
// by the rate itself via a 128-bit cross multiplication.
func (p Price) Less(o Price) bool {
	return p.Cmp(o) < 0
}

// Cmp returns -1, 0 or 1. Prices for different pairs order by symbol
// so that one ordered index can hold every market.
func (p Price) Cmp(o Price) int {
	if p.Base.Symbol != o.Base.Symbol {
		if p.Base.Symbol < o.Base.Symbol {
			return -1
		}
		return 1
	}
	if p.Quote.Symbol != o.Quote.Symbol {
		if p.Quote.Symbol < o.Quote.Symbol {
			return -1
		}
		return 1
	}
	l := Mul64(uint64(p.Base.Amount), uint64(o.Quote.Amount))
	r := Mul64(uint64(o.Base.Amount), uint64(p.Quote.Amount))
	return l.Cmp(r)
}

// String formats the price as "base / quote".
func (p Price) String() string {
	return fmt.Sprintf("%s / %s", p.Base, p.Quote)
}

// Mul converts an amount of one side of the pair into the other at
// this rate, truncating toward zero. The asset must match one side of
// the pair.
func (a Asset) Mul(p Price) Asset {
	switch a.Symbol {
	case p.Base.Symbol:
		return Asset{
			Amount: MulDiv(a.Amount, p.Quote.Amount, p.Base.Amount),
			Symbol: p.Quote.Symbol,
		}
	case p.Quote.Symbol:
		return Asset{
			Amount: MulDiv(a.Amount, p.Base.Amount, p.Quote.Amount),
			Symbol: p.Base.Symbol,
		}
	}
	panic(fmt.Sprintf("asset mul: %s does not match pair %s/%s", a.Symbol, p.Base.Symbol, p.Quote.Symbol))
}

// MulDiv computes a*b/c with a 128-bit intermediate, truncating toward
// zero. c must be positive.
func MulDiv(a, b, c Share) Share {
	if c <= 0 {
		panic("muldiv: non-positive divisor")
	}
	neg := false
	ua, ub := uint64(a), uint64(b)
	if a < 0 {
		ua = uint64(-a)
		neg = !neg
	}
	if b < 0 {
		ub = uint64(-b)
		neg = !neg
	}
	hi, lo := bits.Mul64(ua, ub)
	if hi >= uint64(c) {
		panic("muldiv: quotient overflows 64 bits")
	}
	q, _ := bits.Div64(hi, lo, uint64(c))
	if neg {
		return -Share(q)
	}
	return Share(q)
}
