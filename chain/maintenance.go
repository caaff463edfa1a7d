package chain

import (
	"sort"
	"time"

	"github.com/blockberries/stakeberry/logging"
	"github.com/blockberries/stakeberry/protocol"
	"github.com/blockberries/stakeberry/state"
	"github.com/blockberries/stakeberry/store"
	"github.com/blockberries/stakeberry/types"
)

// runMaintenance executes the per-block maintenance passes. The order
// is fixed: later steps read outputs of earlier ones (the schedule
// feeds the median properties, the median feed prices conversions and
// the virtual supply, the virtual supply sizes the reward payouts).
func (db *Database) runMaintenance() error {
	steps := []struct {
		name string
		fn   func() error
	}{
		{"clear_expired_transactions", db.clearExpiredTransactions},
		{"clear_expired_orders", db.clearExpiredOrders},
		{"clear_expired_delegations", db.clearExpiredDelegations},
		{"update_witness_schedule", db.updateWitnessSchedule},
		{"update_median_feed", db.updateMedianFeed},
		{"process_funds", db.processFunds},
		{"process_conversions", db.processConversions},
		{"process_vesting_withdrawals", db.processVestingWithdrawals},
		{"process_savings_withdrawals", db.processSavingsWithdrawals},
		{"pay_liquidity_reward", db.payLiquidityReward},
		{"process_force_settlements", db.processForceSettlements},
		{"process_collateral_bids", db.processCollateralBids},
		{"account_recovery", db.processAccountRecovery},
		{"expire_escrow_ratifications", db.expireEscrowRatifications},
		{"process_decline_voting_rights", db.processDeclineVotingRights},
		{"process_hardforks", db.processHardforks},
		{"clear_null_balances", db.clearNullAccountBalances},
	}
	for _, s := range steps {
		start := time.Now()
		if err := s.fn(); err != nil {
			return types.WithOp(s.name, err)
		}
		db.metrics.ObserveMaintenanceDuration(s.name, time.Since(start))
	}
	return nil
}

// clearExpiredTransactions drops duplicate-check records whose
// transactions can no longer be included.
func (db *Database) clearExpiredTransactions() error {
	now := db.idx.GlobalProps().Time
	idx := db.idx.TransactionObjects.Index(state.ByExpiration)
	for {
		obj, ok := idx.First()
		if !ok {
			return nil
		}
		t := obj.(*state.TransactionObject)
		if t.Expiration.After(now) {
			return nil
		}
		if err := db.idx.TransactionObjects.Remove(t); err != nil {
			return err
		}
	}
}

// clearExpiredOrders cancels limit orders past their expiration,
// refunding the unsold remainder.
func (db *Database) clearExpiredOrders() error {
	now := db.idx.GlobalProps().Time
	idx := db.idx.LimitOrders.Index(state.ByExpiration)
	for {
		obj, ok := idx.First()
		if !ok {
			return nil
		}
		o := obj.(*state.LimitOrder)
		if o.Expiration.After(now) {
			return nil
		}
		if err := db.cancelOrder(o); err != nil {
			return err
		}
		db.metrics.IncOrdersCancelled()
	}
}

// clearExpiredDelegations returns cooled-down delegated stake to its
// delegator.
func (db *Database) clearExpiredDelegations() error {
	now := db.idx.GlobalProps().Time
	idx := db.idx.VestingDelegationExpirations.Index(state.ByExpiration)
	for {
		obj, ok := idx.First()
		if !ok {
			return nil
		}
		d := obj.(*state.VestingDelegationExpiration)
		if d.Expiration.After(now) {
			return nil
		}
		acc, err := db.account(d.Delegator)
		if err != nil {
			return err
		}
		if err := db.modifyAccount(acc, func(a *state.Account) {
			a.DelegatedVestingShares = a.DelegatedVestingShares.Sub(d.VestingShares)
		}); err != nil {
			return err
		}
		if err := db.idx.VestingDelegationExpirations.Remove(d); err != nil {
			return err
		}
	}
}

// updateMedianFeed samples the witness exchange-rate votes once per
// feed interval, maintains the rolling history, and reprices the
// virtual supply at the resulting median.
func (db *Database) updateMedianFeed() error {
	props := db.idx.GlobalProps()
	if props.HeadBlockNumber%(FeedIntervalSec/BlockIntervalSec) != 0 {
		return nil
	}

	var rates []types.Price
	for _, w := range db.topWitnessesByVote(MaxWitnesses) {
		if !w.StableExchangeRate.IsNull() {
			rates = append(rates, w.StableExchangeRate)
		}
	}
	hist := db.idx.FeedHist()
	if len(rates) >= MinFeeds {
		sort.Slice(rates, func(i, j int) bool { return rates[i].Less(rates[j]) })
		sample := rates[len(rates)/2]

		if err := db.idx.FeedHistories.Modify(hist, func(obj store.Object) {
			h := obj.(*state.FeedHistory)
			h.PriceHistory = append(h.PriceHistory, sample)
			if len(h.PriceHistory) > FeedHistoryWindow {
				h.PriceHistory = h.PriceHistory[len(h.PriceHistory)-FeedHistoryWindow:]
			}
			window := append([]types.Price(nil), h.PriceHistory...)
			sort.Slice(window, func(i, j int) bool { return window[i].Less(window[j]) })
			h.CurrentMedianHistory = window[len(window)/2]
		}); err != nil {
			return err
		}
	}

	median := db.idx.FeedHist().CurrentMedianHistory
	if median.IsNull() {
		return nil
	}
	stableAsCore := props.CurrentStableSupply.Mul(median)
	return db.modifyGlobal(func(p *state.DynamicGlobalProperties) {
		p.VirtualSupply = p.CurrentSupply.Add(stableAsCore)
	})
}

// processFunds mints the per-block inflation and vests it to the block
// producer.
func (db *Database) processFunds() error {
	props := db.idx.GlobalProps()
	reward := types.MulDiv(props.VirtualSupply.Amount, InflationRate,
		types.Share(types.Percent100)*BlocksPerYear)
	if reward <= 0 {
		return nil
	}
	pay := types.NewAsset(reward, CoreSymbol)
	if err := db.adjustSupply(pay); err != nil {
		return err
	}
	_, err := db.createVesting(props.CurrentWitness, pay)
	return err
}

// processConversions executes matured stable-to-core conversions at
// the median feed.
func (db *Database) processConversions() error {
	median := db.idx.FeedHist().CurrentMedianHistory
	if median.IsNull() {
		return nil
	}
	now := db.idx.GlobalProps().Time
	idx := db.idx.ConvertRequests.Index(state.ByConversionDate)
	for {
		obj, ok := idx.First()
		if !ok {
			return nil
		}
		req := obj.(*state.ConvertRequest)
		if req.ConversionDate.After(now) {
			return nil
		}

		out := req.Amount.Mul(median)
		if err := db.adjustSupply(req.Amount.Neg()); err != nil {
			return err
		}
		if err := db.adjustSupply(out); err != nil {
			return err
		}
		if err := db.adjustBalance(req.Owner, out); err != nil {
			return err
		}
		db.notifyVirtualOp(&protocol.FillConvertRequestOperation{
			Owner:     req.Owner,
			RequestID: req.RequestID,
			AmountIn:  req.Amount,
			AmountOut: out,
		})
		if err := db.idx.ConvertRequests.Remove(req); err != nil {
			return err
		}
	}
}

// withdrawRoutesFor collects an account's withdraw routes.
func (db *Database) withdrawRoutesFor(name types.AccountName) []*state.WithdrawVestingRoute {
	var routes []*state.WithdrawVestingRoute
	probe := &state.WithdrawVestingRoute{FromAccount: name}
	db.idx.WithdrawRoutes.Index(state.ByWithdrawRoute).AscendFrom(probe, func(obj store.Object) bool {
		r := obj.(*state.WithdrawVestingRoute)
		if r.FromAccount != name {
			return false
		}
		routes = append(routes, r)
		return true
	})
	return routes
}

// processVestingWithdrawals pays one power-down installment for every
// account whose withdrawal is due, splitting it across withdraw routes
// before converting the remainder for the account itself.
func (db *Database) processVestingWithdrawals() error {
	now := db.idx.GlobalProps().Time

	var due []types.AccountName
	db.idx.Accounts.Index(state.ByName).Ascend(func(obj store.Object) bool {
		a := obj.(*state.Account)
		if !a.NextVestingWithdrawal.IsZero() && !a.NextVestingWithdrawal.After(now) {
			due = append(due, a.Name)
		}
		return true
	})

	for _, name := range due {
		if err := db.withdrawVestingInstallment(name); err != nil {
			return err
		}
	}
	return nil
}

func (db *Database) withdrawVestingInstallment(name types.AccountName) error {
	acc, err := db.account(name)
	if err != nil {
		return err
	}

	toWithdraw := acc.VestingWithdrawRate.Amount
	if remaining := acc.ToWithdraw - acc.Withdrawn; toWithdraw > remaining {
		toWithdraw = remaining
	}
	if toWithdraw > acc.VestingShares.Amount {
		toWithdraw = acc.VestingShares.Amount
	}
	if toWithdraw < 0 {
		toWithdraw = 0
	}

	// Share price at the start of the installment prices every leg.
	props := db.idx.GlobalProps()
	price := props.VestingSharePrice()

	var routedVests, convertedVests, convertedCore types.Share
	for _, route := range db.withdrawRoutesFor(name) {
		routeVests := types.MulDiv(toWithdraw, types.Share(route.Percent), types.Share(types.Percent100))
		if routeVests <= 0 {
			continue
		}
		routedVests += routeVests
		vests := types.NewAsset(routeVests, VestsSymbol)

		if route.AutoVest {
			to, err := db.account(route.ToAccount)
			if err != nil {
				return err
			}
			if err := db.modifyAccount(to, func(a *state.Account) {
				a.VestingShares = a.VestingShares.Add(vests)
			}); err != nil {
				return err
			}
			if err := db.adjustProxiedWitnessVotes(to, routeVests, 0); err != nil {
				return err
			}
			db.notifyVirtualOp(&protocol.FillVestingWithdrawOperation{
				FromAccount: name,
				ToAccount:   route.ToAccount,
				Withdrawn:   vests,
				Deposited:   vests,
			})
			continue
		}

		core := vests.Mul(price)
		convertedVests += routeVests
		convertedCore += core.Amount
		if err := db.adjustBalance(route.ToAccount, core); err != nil {
			return err
		}
		db.notifyVirtualOp(&protocol.FillVestingWithdrawOperation{
			FromAccount: name,
			ToAccount:   route.ToAccount,
			Withdrawn:   vests,
			Deposited:   core,
		})
	}

	// The unrouted remainder converts to the account itself.
	if rest := toWithdraw - routedVests; rest > 0 {
		vests := types.NewAsset(rest, VestsSymbol)
		core := vests.Mul(price)
		convertedVests += rest
		convertedCore += core.Amount
		if err := db.adjustBalance(name, core); err != nil {
			return err
		}
		db.notifyVirtualOp(&protocol.FillVestingWithdrawOperation{
			FromAccount: name,
			ToAccount:   name,
			Withdrawn:   vests,
			Deposited:   core,
		})
	}

	if convertedVests > 0 {
		if err := db.modifyGlobal(func(p *state.DynamicGlobalProperties) {
			p.TotalVestingShares.Amount -= convertedVests
			p.TotalVestingFund.Amount -= convertedCore
		}); err != nil {
			return err
		}
	}

	if err := db.modifyAccount(acc, func(a *state.Account) {
		a.VestingShares.Amount -= toWithdraw
		a.Withdrawn += toWithdraw
		if a.Withdrawn >= a.ToWithdraw || a.VestingShares.Amount == 0 {
			a.VestingWithdrawRate = types.NewAsset(0, VestsSymbol)
			a.NextVestingWithdrawal = 0
			a.ToWithdraw = 0
			a.Withdrawn = 0
		} else {
			a.NextVestingWithdrawal = a.NextVestingWithdrawal.Add(VestingWithdrawIntervalSec)
		}
	}); err != nil {
		return err
	}
	return db.adjustProxiedWitnessVotes(acc, -toWithdraw, 0)
}

// processSavingsWithdrawals releases matured savings withdrawals.
func (db *Database) processSavingsWithdrawals() error {
	now := db.idx.GlobalProps().Time
	idx := db.idx.SavingsWithdraws.Index(state.ByComplete)
	for {
		obj, ok := idx.First()
		if !ok {
			return nil
		}
		w := obj.(*state.SavingsWithdraw)
		if w.Complete.After(now) {
			return nil
		}
		if err := db.adjustBalance(w.To, w.Amount); err != nil {
			return err
		}
		db.notifyVirtualOp(&protocol.FillTransferFromSavingsOperation{
			From:      w.From,
			To:        w.To,
			Amount:    w.Amount,
			RequestID: w.RequestID,
			Memo:      w.Memo,
		})
		from, err := db.account(w.From)
		if err != nil {
			return err
		}
		if err := db.modifyAccount(from, func(a *state.Account) {
			a.SavingsWithdrawRequests--
		}); err != nil {
			return err
		}
		if err := db.idx.SavingsWithdraws.Remove(w); err != nil {
			return err
		}
	}
}

// payLiquidityReward pays the heaviest market maker once per reward
// interval and resets its volume counters.
func (db *Database) payLiquidityReward() error {
	props := db.idx.GlobalProps()
	if props.HeadBlockNumber%LiquidityRewardBlocks != 0 {
		return nil
	}
	obj, ok := db.idx.LiquidityRewards.Index(state.ByVolumeWeight).First()
	if !ok {
		return nil
	}
	lr := obj.(*state.LiquidityRewardBalance)
	if lr.Weight.Cmp(types.U128(MinLiquidityWeight)) < 0 {
		return nil
	}

	annual := types.MulDiv(props.VirtualSupply.Amount, LiquidityAPR, types.Share(types.Percent100))
	reward := types.MulDiv(annual, LiquidityRewardBlocks, BlocksPerYear)
	if reward <= 0 {
		return nil
	}
	pay := types.NewAsset(reward, CoreSymbol)
	if err := db.adjustSupply(pay); err != nil {
		return err
	}
	if err := db.adjustBalance(lr.Owner, pay); err != nil {
		return err
	}
	db.notifyVirtualOp(&protocol.LiquidityRewardOperation{Owner: lr.Owner, Payout: pay})
	return db.idx.LiquidityRewards.Modify(lr, func(obj store.Object) {
		l := obj.(*state.LiquidityRewardBalance)
		l.CoreVolume = 0
		l.StableVolume = 0
		l.Weight = types.Uint128{}
	})
}

// processForceSettlements drains matured force settlements: paid from
// the settlement fund when the asset is settled, otherwise filled
// against margin positions at the feed less the settlement offset,
// subject to the per-window volume cap.
func (db *Database) processForceSettlements() error {
	now := db.idx.GlobalProps().Time

	var due []types.ObjectID
	db.idx.ForceSettlements.Index(state.ByExpiration).Ascend(func(obj store.Object) bool {
		s := obj.(*state.ForceSettlement)
		if !s.SettlementDate.After(now) {
			due = append(due, s.ID)
		}
		return true
	})

	for _, id := range due {
		obj, ok := db.idx.ForceSettlements.Get(id)
		if !ok {
			continue
		}
		if err := db.fillForceSettlement(obj.(*state.ForceSettlement)); err != nil {
			return err
		}
	}
	return nil
}

func (db *Database) fillForceSettlement(s *state.ForceSettlement) error {
	symbol := s.Balance.Symbol
	bit, err := db.bitasset(symbol)
	if err != nil {
		return err
	}

	if bit.HasSettlement() {
		if err := db.settleFromFund(s.Owner, bit, s.Balance); err != nil {
			return err
		}
		db.metrics.IncForceSettlements()
		return db.idx.ForceSettlements.Remove(s)
	}

	if bit.CurrentFeed.IsNull() {
		// No feed to price the fill; hand the balance back.
		if err := db.adjustBalance(s.Owner, s.Balance); err != nil {
			return err
		}
		return db.idx.ForceSettlements.Remove(s)
	}

	dyn, ok := db.idx.AssetDynamic(symbol)
	if !ok {
		return types.Consistencyf("asset %s has no supply record", symbol)
	}
	available := bit.MaxForceSettlementVolume(dyn.CurrentSupply) - bit.ForceSettledVolume
	if available <= 0 {
		// Volume cap reached; the entry waits for the next window.
		return nil
	}
	amount := s.Balance.Amount
	if amount > available {
		amount = available
	}

	// The settler receives collateral at the feed shaved by the
	// settlement offset.
	feed := bit.CurrentFeed.SettlementPrice
	offset := types.Share(types.Percent100 - bit.Options.ForceSettlementOffsetPercent)
	price := types.Price{
		Base:  types.NewAsset(feed.Base.Amount*types.Share(types.Percent100), symbol),
		Quote: types.NewAsset(feed.Quote.Amount*offset, bit.Options.ShortBackingAsset),
	}

	var settled types.Share
	for settled < amount {
		call := db.leastCollateralizedCall(symbol)
		if call == nil {
			break
		}
		fill := types.NewAsset(amount-settled, symbol)
		if fill.Amount > call.Debt {
			fill.Amount = call.Debt
		}
		collateralOut := fill.Mul(price)
		if collateralOut.Amount > call.Collateral {
			collateralOut.Amount = call.Collateral
		}
		if collateralOut.Amount == 0 {
			break
		}

		db.notifyVirtualOp(&protocol.FillOrderOperation{
			CurrentOwner: s.Owner,
			CurrentID:    s.ID,
			CurrentPays:  fill,
			OpenOwner:    call.Borrower,
			OpenID:       call.ID,
			OpenPays:     collateralOut,
		})
		if err := db.adjustSupply(fill.Neg()); err != nil {
			return err
		}
		if err := db.adjustBalance(s.Owner, collateralOut); err != nil {
			return err
		}

		if call.Debt == fill.Amount {
			refund := types.NewAsset(call.Collateral-collateralOut.Amount, bit.Options.ShortBackingAsset)
			if refund.Amount > 0 {
				if err := db.adjustBalance(call.Borrower, refund); err != nil {
					return err
				}
			}
			if err := db.idx.CallOrders.Remove(call); err != nil {
				return err
			}
		} else {
			if err := db.modifyCall(call, func(c *state.CallOrder) {
				c.Debt -= fill.Amount
				c.Collateral -= collateralOut.Amount
				c.CallPrice = types.CallPrice(c.DebtAsset(), c.CollateralAsset(),
					bit.CurrentFeed.MaintenanceCollateralRatio)
			}); err != nil {
				return err
			}
		}
		settled += fill.Amount
	}

	if settled > 0 {
		if err := db.idx.AssetBitassets.Modify(bit, func(obj store.Object) {
			obj.(*state.AssetBitassetData).ForceSettledVolume += settled
		}); err != nil {
			return err
		}
		db.metrics.IncForceSettlements()
	}

	if settled == s.Balance.Amount {
		if err := db.idx.ForceSettlements.Remove(s); err != nil {
			return err
		}
	} else if settled > 0 {
		if err := db.idx.ForceSettlements.Modify(s, func(obj store.Object) {
			obj.(*state.ForceSettlement).Balance.Amount -= settled
		}); err != nil {
			return err
		}
	}

	asset, err := db.asset(symbol)
	if err != nil {
		return err
	}
	_, err = db.checkForBlackSwan(asset, bit)
	return err
}

// processCollateralBids tries to revive every settled bitasset from
// its resting collateral bids.
func (db *Database) processCollateralBids() error {
	var settled []types.AssetSymbol
	db.idx.AssetBitassets.Index(state.BySymbol).Ascend(func(obj store.Object) bool {
		b := obj.(*state.AssetBitassetData)
		if b.HasSettlement() {
			settled = append(settled, b.Symbol)
		}
		return true
	})
	for _, symbol := range settled {
		asset, err := db.asset(symbol)
		if err != nil {
			return err
		}
		bit, err := db.bitasset(symbol)
		if err != nil {
			return err
		}
		if err := db.processBids(asset, bit); err != nil {
			return err
		}
	}
	return nil
}

// processAccountRecovery expires stale recovery requests, prunes owner
// authority history past the recovery window, and applies matured
// recovery-partner changes.
func (db *Database) processAccountRecovery() error {
	now := db.idx.GlobalProps().Time

	reqIdx := db.idx.RecoveryRequests.Index(state.ByExpiration)
	for {
		obj, ok := reqIdx.First()
		if !ok {
			break
		}
		r := obj.(*state.AccountRecoveryRequest)
		if r.Expires.After(now) {
			break
		}
		if err := db.idx.RecoveryRequests.Remove(r); err != nil {
			return err
		}
	}

	var stale []types.ObjectID
	db.idx.OwnerAuthorityHistories.Index(state.ByAccount).Ascend(func(obj store.Object) bool {
		h := obj.(*state.OwnerAuthorityHistory)
		if h.LastValidTime.Add(OwnerAuthRecoveryPeriodSec).Before(now) {
			stale = append(stale, h.ID)
		}
		return true
	})
	for _, id := range stale {
		if obj, ok := db.idx.OwnerAuthorityHistories.Get(id); ok {
			if err := db.idx.OwnerAuthorityHistories.Remove(obj); err != nil {
				return err
			}
		}
	}

	chgIdx := db.idx.ChangeRecoveryRequests.Index(state.ByEffectiveDate)
	for {
		obj, ok := chgIdx.First()
		if !ok {
			break
		}
		r := obj.(*state.ChangeRecoveryAccountRequest)
		if r.EffectiveOn.After(now) {
			break
		}
		acc, err := db.account(r.AccountToRecover)
		if err != nil {
			return err
		}
		if err := db.modifyAccount(acc, func(a *state.Account) {
			a.RecoveryAccount = r.RecoveryAccount
		}); err != nil {
			return err
		}
		if err := db.idx.ChangeRecoveryRequests.Remove(r); err != nil {
			return err
		}
	}
	return nil
}

// expireEscrowRatifications dissolves escrows nobody ratified before
// the deadline, refunding principal and fee.
func (db *Database) expireEscrowRatifications() error {
	now := db.idx.GlobalProps().Time
	idx := db.idx.Escrows.Index(state.ByRatificationDeadline)
	for {
		var expired *state.EscrowObject
		idx.Ascend(func(obj store.Object) bool {
			e := obj.(*state.EscrowObject)
			if e.RatificationDeadline.After(now) {
				return false
			}
			if e.IsApproved() {
				// Ratified escrows outlive the deadline.
				return true
			}
			expired = e
			return false
		})
		if expired == nil {
			return nil
		}
		if err := db.adjustBalance(expired.From, expired.Balance); err != nil {
			return err
		}
		if expired.PendingFee.Amount > 0 {
			if err := db.adjustBalance(expired.From, expired.PendingFee); err != nil {
				return err
			}
		}
		if err := db.idx.Escrows.Remove(expired); err != nil {
			return err
		}
	}
}

// processDeclineVotingRights applies matured voting-rights surrenders:
// the account's vote weight is withdrawn everywhere and it can never
// vote again.
func (db *Database) processDeclineVotingRights() error {
	now := db.idx.GlobalProps().Time
	idx := db.idx.DeclineVotingRequests.Index(state.ByEffectiveDate)
	for {
		obj, ok := idx.First()
		if !ok {
			return nil
		}
		r := obj.(*state.DeclineVotingRightsRequest)
		if r.EffectiveOn.After(now) {
			return nil
		}
		acc, err := db.account(r.Account)
		if err != nil {
			return err
		}

		var deltas [state.MaxProxyRecursionDepth + 1]types.Share
		deltas[0] = -acc.VestingShares.Amount
		for i := 0; i < state.MaxProxyRecursionDepth; i++ {
			deltas[i+1] = -acc.ProxiedVsfVotes[i]
		}
		if err := db.adjustProxiedWitnessVotesArray(acc, deltas, 0); err != nil {
			return err
		}

		var votes []*state.WitnessVote
		probe := &state.WitnessVote{Account: acc.Name}
		db.idx.WitnessVotes.Index(state.ByAccountWitness).AscendFrom(probe, func(obj store.Object) bool {
			v := obj.(*state.WitnessVote)
			if v.Account != acc.Name {
				return false
			}
			votes = append(votes, v)
			return true
		})
		for _, v := range votes {
			if err := db.idx.WitnessVotes.Remove(v); err != nil {
				return err
			}
		}

		if err := db.modifyAccount(acc, func(a *state.Account) {
			a.Proxy = ""
			a.WitnessesVotedFor = 0
			a.CanVote = false
		}); err != nil {
			return err
		}
		if err := db.idx.DeclineVotingRequests.Remove(r); err != nil {
			return err
		}
		db.log.Info("voting rights declined", logging.Account(string(acc.Name)))
	}
}

// clearNullAccountBalances burns whatever landed on the null account.
func (db *Database) clearNullAccountBalances() error {
	var held []types.ObjectID
	probe := &state.AccountBalance{Account: NullAccountName}
	db.idx.AccountBalances.Index(state.ByAccountSymbol).AscendFrom(probe, func(obj store.Object) bool {
		b := obj.(*state.AccountBalance)
		if b.Account != NullAccountName {
			return false
		}
		if b.Balance > 0 || b.Savings > 0 {
			held = append(held, b.ID)
		}
		return true
	})

	for _, id := range held {
		obj, ok := db.idx.AccountBalances.Get(id)
		if !ok {
			continue
		}
		bal := obj.(*state.AccountBalance)
		burned := types.NewAsset(bal.Balance+bal.Savings, bal.Symbol)
		if err := db.idx.AccountBalances.Modify(bal, func(obj store.Object) {
			b := obj.(*state.AccountBalance)
			b.Balance = 0
			b.Savings = 0
		}); err != nil {
			return err
		}
		if err := db.adjustSupply(burned.Neg()); err != nil {
			return err
		}
		db.log.Debug("null balance burned", logging.Symbol(string(burned.Symbol)))
	}
	return nil
}
