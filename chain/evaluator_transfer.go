package chain

import (
	"github.com/blockberries/stakeberry/protocol"
	"github.com/blockberries/stakeberry/state"
	"github.com/blockberries/stakeberry/store"
	"github.com/blockberries/stakeberry/types"
)

func (db *Database) applyTransfer(op *protocol.TransferOperation) error {
	asset, err := db.asset(op.Amount.Symbol)
	if err != nil {
		return err
	}
	if _, err := db.account(op.To); err != nil {
		return err
	}
	if asset.IsTransferRestricted() && op.From != asset.Issuer && op.To != asset.Issuer {
		return types.Validationf("%s transfers must involve the issuer", asset.Symbol)
	}
	if err := db.adjustBalance(op.From, op.Amount.Neg()); err != nil {
		return err
	}
	return db.adjustBalance(op.To, op.Amount)
}

func (db *Database) applyTransferToVesting(op *protocol.TransferToVestingOperation) error {
	if op.Amount.Symbol != CoreSymbol {
		return types.Validationf("vesting deposits must be %s", CoreSymbol)
	}
	to := op.To
	if to.IsEmpty() {
		to = op.From
	}
	if _, err := db.account(to); err != nil {
		return err
	}
	if err := db.adjustBalance(op.From, op.Amount.Neg()); err != nil {
		return err
	}
	_, err := db.createVesting(to, op.Amount)
	return err
}

func (db *Database) applyWithdrawVesting(op *protocol.WithdrawVestingOperation) error {
	if op.VestingShares.Symbol != VestsSymbol {
		return types.Validationf("withdrawals are denominated in %s", VestsSymbol)
	}
	acc, err := db.account(op.Account)
	if err != nil {
		return err
	}
	withdrawable := acc.VestingShares.Amount - acc.DelegatedVestingShares.Amount
	if withdrawable < op.VestingShares.Amount {
		return types.Validationf("account %s has %d withdrawable shares, %d requested",
			op.Account, withdrawable, op.VestingShares.Amount)
	}

	if op.VestingShares.Amount == 0 {
		if acc.VestingWithdrawRate.Amount == 0 {
			return types.Validationf("no withdrawal to cancel")
		}
		return db.modifyAccount(acc, func(a *state.Account) {
			a.VestingWithdrawRate = types.NewAsset(0, VestsSymbol)
			a.NextVestingWithdrawal = types.TimeSec(0)
			a.ToWithdraw = 0
			a.Withdrawn = 0
		})
	}

	rate := op.VestingShares.Amount / VestingWithdrawIntervals
	if rate == 0 {
		rate = 1
	}
	if acc.VestingWithdrawRate.Amount == rate && acc.ToWithdraw == op.VestingShares.Amount {
		return types.Validationf("withdrawal already at the requested rate")
	}
	now := db.idx.GlobalProps().Time
	return db.modifyAccount(acc, func(a *state.Account) {
		a.VestingWithdrawRate = types.NewAsset(rate, VestsSymbol)
		a.NextVestingWithdrawal = now.Add(VestingWithdrawIntervalSec)
		a.ToWithdraw = op.VestingShares.Amount
		a.Withdrawn = 0
	})
}

func (db *Database) applySetWithdrawVestingRoute(op *protocol.SetWithdrawVestingRouteOperation) error {
	acc, err := db.account(op.FromAccount)
	if err != nil {
		return err
	}
	if _, err := db.account(op.ToAccount); err != nil {
		return err
	}

	probe := &state.WithdrawVestingRoute{FromAccount: op.FromAccount, ToAccount: op.ToAccount}
	existing, found := db.idx.WithdrawRoutes.Index(state.ByWithdrawRoute).Find(probe)

	switch {
	case !found && op.Percent == 0:
		return types.Validationf("no route from %s to %s to remove", op.FromAccount, op.ToAccount)
	case !found:
		if acc.WithdrawRoutes >= MaxWithdrawRoutes {
			return types.Validationf("account %s already has %d withdraw routes", op.FromAccount, MaxWithdrawRoutes)
		}
		probe.Percent = op.Percent
		probe.AutoVest = op.AutoVest
		if _, err := db.idx.WithdrawRoutes.Create(probe); err != nil {
			return err
		}
		if err := db.modifyAccount(acc, func(a *state.Account) { a.WithdrawRoutes++ }); err != nil {
			return err
		}
	case op.Percent == 0:
		if err := db.idx.WithdrawRoutes.Remove(existing); err != nil {
			return err
		}
		if err := db.modifyAccount(acc, func(a *state.Account) { a.WithdrawRoutes-- }); err != nil {
			return err
		}
	default:
		if err := db.idx.WithdrawRoutes.Modify(existing, func(obj store.Object) {
			r := obj.(*state.WithdrawVestingRoute)
			r.Percent = op.Percent
			r.AutoVest = op.AutoVest
		}); err != nil {
			return err
		}
	}

	var total types.Percent
	from := &state.WithdrawVestingRoute{FromAccount: op.FromAccount}
	db.idx.WithdrawRoutes.Index(state.ByWithdrawRoute).AscendFrom(from, func(obj store.Object) bool {
		r := obj.(*state.WithdrawVestingRoute)
		if r.FromAccount != op.FromAccount {
			return false
		}
		total += r.Percent
		return true
	})
	if total > types.Percent100 {
		return types.Validationf("withdraw routes of %s total %d, exceeding 100%%", op.FromAccount, total)
	}
	return nil
}

func (db *Database) applyDelegateVestingShares(op *protocol.DelegateVestingSharesOperation) error {
	if op.VestingShares.Symbol != VestsSymbol {
		return types.Validationf("delegations are denominated in %s", VestsSymbol)
	}
	delegator, err := db.account(op.Delegator)
	if err != nil {
		return err
	}
	delegatee, err := db.account(op.Delegatee)
	if err != nil {
		return err
	}

	probe := &state.VestingDelegation{Delegator: op.Delegator, Delegatee: op.Delegatee}
	existing, found := db.idx.VestingDelegations.Index(state.ByDelegation).Find(probe)

	var current types.Share
	if found {
		current = existing.(*state.VestingDelegation).VestingShares.Amount
	}
	if !found && op.VestingShares.Amount == 0 {
		return types.Validationf("no delegation from %s to %s to remove", op.Delegator, op.Delegatee)
	}
	delta := op.VestingShares.Amount - current
	if delta == 0 {
		return types.Validationf("delegation unchanged")
	}

	now := db.idx.GlobalProps().Time
	if delta > 0 {
		// Stake still powering down cannot be delegated.
		available := delegator.VestingShares.Amount - delegator.DelegatedVestingShares.Amount -
			(delegator.ToWithdraw - delegator.Withdrawn)
		if available < delta {
			return types.Validationf("account %s has %d delegatable shares, %d needed",
				op.Delegator, available, delta)
		}
		if err := db.modifyAccount(delegator, func(a *state.Account) {
			a.DelegatedVestingShares.Amount += delta
		}); err != nil {
			return err
		}
	} else {
		// Returned stake stays locked until the cooldown passes.
		if _, err := db.idx.VestingDelegationExpirations.Create(&state.VestingDelegationExpiration{
			Delegator:     op.Delegator,
			VestingShares: types.NewAsset(-delta, VestsSymbol),
			Expiration:    now.Add(DelegationReturnPeriodSec),
		}); err != nil {
			return err
		}
	}
	if err := db.modifyAccount(delegatee, func(a *state.Account) {
		a.ReceivedVestingShares.Amount += delta
	}); err != nil {
		return err
	}

	switch {
	case !found:
		_, err = db.idx.VestingDelegations.Create(&state.VestingDelegation{
			Delegator:         op.Delegator,
			Delegatee:         op.Delegatee,
			VestingShares:     op.VestingShares,
			MinDelegationTime: now,
		})
		return err
	case op.VestingShares.Amount == 0:
		return db.idx.VestingDelegations.Remove(existing)
	default:
		return db.idx.VestingDelegations.Modify(existing, func(obj store.Object) {
			obj.(*state.VestingDelegation).VestingShares = op.VestingShares
		})
	}
}

func (db *Database) applyTransferToSavings(op *protocol.TransferToSavingsOperation) error {
	if _, err := db.asset(op.Amount.Symbol); err != nil {
		return err
	}
	if _, err := db.account(op.To); err != nil {
		return err
	}
	if err := db.adjustBalance(op.From, op.Amount.Neg()); err != nil {
		return err
	}
	return db.adjustSavings(op.To, op.Amount)
}

func (db *Database) applyTransferFromSavings(op *protocol.TransferFromSavingsOperation) error {
	acc, err := db.account(op.From)
	if err != nil {
		return err
	}
	if _, err := db.account(op.To); err != nil {
		return err
	}
	if acc.SavingsWithdrawRequests >= MaxSavingsWithdrawRequests {
		return types.Validationf("account %s already has %d pending savings withdrawals",
			op.From, MaxSavingsWithdrawRequests)
	}
	probe := &state.SavingsWithdraw{From: op.From, RequestID: op.RequestID}
	if db.idx.SavingsWithdraws.Index(state.ByFromRequest).Has(probe) {
		return types.Validationf("savings withdrawal %s/%d already exists", op.From, op.RequestID)
	}
	if err := db.adjustSavings(op.From, op.Amount.Neg()); err != nil {
		return err
	}
	now := db.idx.GlobalProps().Time
	if _, err := db.idx.SavingsWithdraws.Create(&state.SavingsWithdraw{
		From:      op.From,
		To:        op.To,
		Memo:      op.Memo,
		RequestID: op.RequestID,
		Amount:    op.Amount,
		Complete:  now.Add(SavingsWithdrawTimeSec),
	}); err != nil {
		return err
	}
	return db.modifyAccount(acc, func(a *state.Account) { a.SavingsWithdrawRequests++ })
}

func (db *Database) applyCancelTransferFromSavings(op *protocol.CancelTransferFromSavingsOperation) error {
	acc, err := db.account(op.From)
	if err != nil {
		return err
	}
	probe := &state.SavingsWithdraw{From: op.From, RequestID: op.RequestID}
	obj, ok := db.idx.SavingsWithdraws.Index(state.ByFromRequest).Find(probe)
	if !ok {
		return types.Validationf("no savings withdrawal %s/%d", op.From, op.RequestID)
	}
	w := obj.(*state.SavingsWithdraw)
	if err := db.adjustSavings(w.From, w.Amount); err != nil {
		return err
	}
	if err := db.idx.SavingsWithdraws.Remove(w); err != nil {
		return err
	}
	return db.modifyAccount(acc, func(a *state.Account) { a.SavingsWithdrawRequests-- })
}

func (db *Database) applyConvert(op *protocol.ConvertOperation) error {
	if op.Amount.Symbol != StableSymbol {
		return types.Validationf("conversions take %s", StableSymbol)
	}
	if db.idx.FeedHist().CurrentMedianHistory.IsNull() {
		return types.Validationf("no price feed to convert against")
	}
	probe := &state.ConvertRequest{Owner: op.Owner, RequestID: op.RequestID}
	if db.idx.ConvertRequests.Index(state.ByOwnerRequest).Has(probe) {
		return types.Validationf("conversion %s/%d already exists", op.Owner, op.RequestID)
	}
	if err := db.adjustBalance(op.Owner, op.Amount.Neg()); err != nil {
		return err
	}
	now := db.idx.GlobalProps().Time
	_, err := db.idx.ConvertRequests.Create(&state.ConvertRequest{
		Owner:          op.Owner,
		RequestID:      op.RequestID,
		Amount:         op.Amount,
		ConversionDate: now.Add(ConversionDelaySec),
	})
	return err
}
