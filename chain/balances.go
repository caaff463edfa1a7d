package chain

import (
	"github.com/blockberries/stakeberry/protocol"
	"github.com/blockberries/stakeberry/state"
	"github.com/blockberries/stakeberry/store"
	"github.com/blockberries/stakeberry/types"
)

const secondsPerYear = 365 * 24 * 60 * 60

// balanceFor returns the account's balance record for one asset,
// creating a zero record on first touch.
func (db *Database) balanceFor(name types.AccountName, symbol types.AssetSymbol) (*state.AccountBalance, error) {
	if bal, ok := db.idx.Balance(name, symbol); ok {
		return bal, nil
	}
	obj, err := db.idx.AccountBalances.Create(&state.AccountBalance{
		Account: name,
		Symbol:  symbol,
	})
	if err != nil {
		return nil, err
	}
	return obj.(*state.AccountBalance), nil
}

// liquidBalance returns the liquid holdings, zero when no record
// exists.
func (db *Database) liquidBalance(name types.AccountName, symbol types.AssetSymbol) types.Asset {
	if bal, ok := db.idx.Balance(name, symbol); ok {
		return types.NewAsset(bal.Balance, symbol)
	}
	return types.NewAsset(0, symbol)
}

// savingsBalance returns the savings holdings, zero when no record
// exists.
func (db *Database) savingsBalance(name types.AccountName, symbol types.AssetSymbol) types.Asset {
	if bal, ok := db.idx.Balance(name, symbol); ok {
		return types.NewAsset(bal.Savings, symbol)
	}
	return types.NewAsset(0, symbol)
}

// adjustBalance applies a signed delta to an account's liquid balance.
// Stable balances accrue seconds-weighted interest before the delta so
// the accumulator always covers a contiguous span. The caller validates
// business rules; this only refuses to drive a balance negative.
func (db *Database) adjustBalance(name types.AccountName, delta types.Asset) error {
	bal, err := db.balanceFor(name, delta.Symbol)
	if err != nil {
		return err
	}
	if bal.Balance+delta.Amount < 0 {
		return types.Validationf("account %s has insufficient funds: %d available, %s needed",
			name, bal.Balance, delta.Neg())
	}

	var interest types.Share
	now := db.idx.GlobalProps().Time
	rate := db.idx.GlobalProps().StableInterestRate

	err = db.idx.AccountBalances.Modify(bal, func(obj store.Object) {
		b := obj.(*state.AccountBalance)
		if b.Symbol == StableSymbol {
			interest = accrueInterest(&b.StableSeconds, &b.StableSecondsLastUpdate,
				&b.LastInterestPayment, b.Balance, now, rate)
			b.Balance += interest
		}
		b.Balance += delta.Amount
	})
	if err != nil {
		return err
	}

	if interest > 0 {
		paid := types.NewAsset(interest, StableSymbol)
		if err := db.adjustSupply(paid); err != nil {
			return err
		}
		db.notifyVirtualOp(&protocol.InterestOperation{Owner: name, Interest: paid})
	}
	return nil
}

// adjustSavings applies a signed delta to an account's savings balance,
// accruing stable interest the same way adjustBalance does.
func (db *Database) adjustSavings(name types.AccountName, delta types.Asset) error {
	bal, err := db.balanceFor(name, delta.Symbol)
	if err != nil {
		return err
	}
	if bal.Savings+delta.Amount < 0 {
		return types.Validationf("account %s has insufficient savings: %d available, %s needed",
			name, bal.Savings, delta.Neg())
	}

	var interest types.Share
	now := db.idx.GlobalProps().Time
	rate := db.idx.GlobalProps().StableInterestRate

	err = db.idx.AccountBalances.Modify(bal, func(obj store.Object) {
		b := obj.(*state.AccountBalance)
		if b.Symbol == StableSymbol {
			interest = accrueInterest(&b.SavingsSeconds, &b.SavingsSecondsLastUpdate,
				&b.LastSavingsInterestPayment, b.Savings, now, rate)
			b.Savings += interest
		}
		b.Savings += delta.Amount
	})
	if err != nil {
		return err
	}

	if interest > 0 {
		paid := types.NewAsset(interest, StableSymbol)
		if err := db.adjustSupply(paid); err != nil {
			return err
		}
		db.notifyVirtualOp(&protocol.InterestOperation{Owner: name, Interest: paid})
	}
	return nil
}

// accrueInterest advances a seconds-weighted accumulator to now and, if
// the compounding interval has passed, converts it into an interest
// payment and resets it. Returns the payment amount.
func accrueInterest(seconds *types.Uint128, lastUpdate, lastPayment *types.TimeSec,
	balance types.Share, now types.TimeSec, rate types.Percent) types.Share {
	if balance > 0 && now.After(*lastUpdate) {
		elapsed := uint64(now.Sub(*lastUpdate))
		*seconds = seconds.Add(types.Mul64(uint64(balance), elapsed))
	}
	*lastUpdate = now

	if seconds.IsZero() || rate == 0 {
		return 0
	}
	if lastPayment.IsZero() {
		// First touch starts the compounding clock without paying.
		*lastPayment = now
		return 0
	}
	if now.Sub(*lastPayment) < InterestCompoundIntervalSec {
		return 0
	}
	interest := seconds.DivU64(secondsPerYear).
		MulU64(uint64(rate)).
		DivU64(uint64(types.Percent100)).
		Uint64()
	*seconds = types.Uint128{}
	*lastPayment = now
	return types.Share(interest)
}

// adjustSupply applies a signed delta to an asset's current supply,
// keeping the global counters for the core and stable assets in step.
// Driving a supply negative is a consistency violation: the caller must
// have validated availability already.
func (db *Database) adjustSupply(delta types.Asset) error {
	dyn, ok := db.idx.AssetDynamic(delta.Symbol)
	if !ok {
		return types.Validationf("unknown asset %q", delta.Symbol)
	}
	if dyn.CurrentSupply+delta.Amount < 0 {
		return types.Consistencyf("supply of %s would go negative", delta.Symbol)
	}
	if err := db.idx.AssetDynamics.Modify(dyn, func(obj store.Object) {
		obj.(*state.AssetDynamicData).CurrentSupply += delta.Amount
	}); err != nil {
		return err
	}

	switch delta.Symbol {
	case CoreSymbol:
		return db.modifyGlobal(func(p *state.DynamicGlobalProperties) {
			p.CurrentSupply = p.CurrentSupply.Add(delta)
			p.VirtualSupply = p.VirtualSupply.Add(delta)
		})
	case StableSymbol:
		return db.modifyGlobal(func(p *state.DynamicGlobalProperties) {
			p.CurrentStableSupply = p.CurrentStableSupply.Add(delta)
		})
	}
	return nil
}

// createVesting converts a liquid core amount already deducted from its
// source into vesting shares credited to name, at the current share
// price. Returns the shares created.
func (db *Database) createVesting(name types.AccountName, core types.Asset) (types.Asset, error) {
	if core.Symbol != CoreSymbol {
		return types.Asset{}, types.Consistencyf("vesting funded with %s", core.Symbol)
	}
	acc, err := db.account(name)
	if err != nil {
		return types.Asset{}, err
	}

	price := db.idx.GlobalProps().VestingSharePrice()
	newVesting := core.Mul(price)

	if err := db.modifyAccount(acc, func(a *state.Account) {
		a.VestingShares = a.VestingShares.Add(newVesting)
	}); err != nil {
		return types.Asset{}, err
	}
	if err := db.modifyGlobal(func(p *state.DynamicGlobalProperties) {
		p.TotalVestingFund = p.TotalVestingFund.Add(core)
		p.TotalVestingShares = p.TotalVestingShares.Add(newVesting)
	}); err != nil {
		return types.Asset{}, err
	}
	if err := db.adjustProxiedWitnessVotes(acc, newVesting.Amount, 0); err != nil {
		return types.Asset{}, err
	}
	return newVesting, nil
}
