package chain

import (
	"github.com/blockberries/stakeberry/protocol"
	"github.com/blockberries/stakeberry/state"
	"github.com/blockberries/stakeberry/store"
	"github.com/blockberries/stakeberry/types"
)

// checkAuthorityAccounts verifies every account referenced by an
// authority exists.
func (db *Database) checkAuthorityAccounts(auth protocol.Authority) error {
	for _, aa := range auth.AccountAuths {
		if _, ok := db.idx.Account(aa.Account); !ok {
			return types.Validationf("authority references unknown account %q", aa.Account)
		}
	}
	return nil
}

func authorityEqual(a, b protocol.Authority) bool {
	if a.WeightThreshold != b.WeightThreshold ||
		len(a.AccountAuths) != len(b.AccountAuths) ||
		len(a.KeyAuths) != len(b.KeyAuths) {
		return false
	}
	for i := range a.AccountAuths {
		if a.AccountAuths[i] != b.AccountAuths[i] {
			return false
		}
	}
	for i := range a.KeyAuths {
		if !a.KeyAuths[i].Key.Equal(b.KeyAuths[i].Key) || a.KeyAuths[i].Weight != b.KeyAuths[i].Weight {
			return false
		}
	}
	return true
}

func (db *Database) applyAccountCreate(op *protocol.AccountCreateOperation) error {
	if _, err := db.account(op.Creator); err != nil {
		return err
	}
	if _, ok := db.idx.Account(op.NewAccountName); ok {
		return types.Validationf("account %q already exists", op.NewAccountName)
	}
	if op.Fee.Symbol != CoreSymbol {
		return types.Validationf("creation fee must be %s", CoreSymbol)
	}
	required := db.idx.Schedule().MedianProps.AccountCreationFee
	if op.Fee.Amount < required.Amount {
		return types.Validationf("creation fee %s below required %s", op.Fee, required)
	}
	if err := db.checkAuthorityAccounts(op.Owner); err != nil {
		return err
	}
	if err := db.checkAuthorityAccounts(op.Active); err != nil {
		return err
	}

	if err := db.adjustBalance(op.Creator, op.Fee.Neg()); err != nil {
		return err
	}

	now := db.idx.GlobalProps().Time
	if _, err := db.idx.Accounts.Create(&state.Account{
		Name:                   op.NewAccountName,
		MemoKey:                op.MemoKey,
		JSONMetadata:           op.JSONMetadata,
		RecoveryAccount:        op.Creator,
		Created:                now,
		VestingShares:          types.NewAsset(0, VestsSymbol),
		DelegatedVestingShares: types.NewAsset(0, VestsSymbol),
		ReceivedVestingShares:  types.NewAsset(0, VestsSymbol),
		VestingWithdrawRate:    types.NewAsset(0, VestsSymbol),
		CanVote:                true,
	}); err != nil {
		return err
	}
	if _, err := db.idx.AccountAuthorities.Create(&state.AccountAuthority{
		Account: op.NewAccountName,
		Owner:   op.Owner,
		Active:  op.Active,
	}); err != nil {
		return err
	}

	if op.Fee.Amount > 0 {
		if _, err := db.createVesting(op.NewAccountName, op.Fee); err != nil {
			return err
		}
	}
	return nil
}

func (db *Database) applyAccountUpdate(op *protocol.AccountUpdateOperation) error {
	acc, err := db.account(op.Account)
	if err != nil {
		return err
	}
	auth, ok := db.idx.Authority(op.Account)
	if !ok {
		return types.Consistencyf("account %s has no authority record", op.Account)
	}
	now := db.idx.GlobalProps().Time

	if op.Owner != nil {
		if now.Sub(auth.LastOwnerUpdate) < OwnerUpdateLimitSec && !auth.LastOwnerUpdate.IsZero() {
			return types.Validationf("owner authority can only change once per hour")
		}
		if err := db.checkAuthorityAccounts(*op.Owner); err != nil {
			return err
		}
		// The superseded authority stays valid for recovery until the
		// window closes.
		if _, err := db.idx.OwnerAuthorityHistories.Create(&state.OwnerAuthorityHistory{
			Account:                op.Account,
			PreviousOwnerAuthority: auth.Owner,
			LastValidTime:          now,
		}); err != nil {
			return err
		}
	}
	if op.Active != nil {
		if err := db.checkAuthorityAccounts(*op.Active); err != nil {
			return err
		}
	}

	if err := db.idx.AccountAuthorities.Modify(auth, func(obj store.Object) {
		a := obj.(*state.AccountAuthority)
		if op.Owner != nil {
			a.Owner = *op.Owner
			a.LastOwnerUpdate = now
		}
		if op.Active != nil {
			a.Active = *op.Active
		}
	}); err != nil {
		return err
	}

	return db.modifyAccount(acc, func(a *state.Account) {
		if len(op.MemoKey) != 0 {
			a.MemoKey = op.MemoKey
		}
		if op.JSONMetadata != "" {
			a.JSONMetadata = op.JSONMetadata
		}
		if op.Owner != nil {
			a.LastOwnerUpdate = now
		}
	})
}

func (db *Database) applyAccountWitnessVote(op *protocol.AccountWitnessVoteOperation) error {
	acc, err := db.account(op.Account)
	if err != nil {
		return err
	}
	if !acc.CanVote {
		return types.Validationf("account %s has declined its voting rights", op.Account)
	}
	if !acc.Proxy.IsEmpty() {
		return types.Validationf("account %s votes through a proxy", op.Account)
	}
	w, err := db.witness(op.Witness)
	if err != nil {
		return err
	}

	vote, voted := db.idx.WitnessVoteFor(op.Account, op.Witness)
	if op.Approve {
		if voted {
			return types.Validationf("account %s already voted for %s", op.Account, op.Witness)
		}
		if acc.WitnessesVotedFor >= MaxAccountWitnessVotes {
			return types.Validationf("account %s reached the %d witness vote limit",
				op.Account, MaxAccountWitnessVotes)
		}
		if _, err := db.idx.WitnessVotes.Create(&state.WitnessVote{
			Account: op.Account,
			Witness: op.Witness,
		}); err != nil {
			return err
		}
		if err := db.modifyAccount(acc, func(a *state.Account) { a.WitnessesVotedFor++ }); err != nil {
			return err
		}
		return db.adjustWitnessVote(w, acc.WitnessVoteWeight())
	}

	if !voted {
		return types.Validationf("account %s has not voted for %s", op.Account, op.Witness)
	}
	if err := db.idx.WitnessVotes.Remove(vote); err != nil {
		return err
	}
	if err := db.modifyAccount(acc, func(a *state.Account) { a.WitnessesVotedFor-- }); err != nil {
		return err
	}
	return db.adjustWitnessVote(w, -acc.WitnessVoteWeight())
}

func (db *Database) applyAccountWitnessProxy(op *protocol.AccountWitnessProxyOperation) error {
	acc, err := db.account(op.Account)
	if err != nil {
		return err
	}
	if !acc.CanVote {
		return types.Validationf("account %s has declined its voting rights", op.Account)
	}
	if acc.Proxy == op.Proxy {
		return types.Validationf("proxy already set to %q", op.Proxy)
	}
	if !op.Proxy.IsEmpty() {
		// Walk the new proxy's chain to reject cycles.
		cursor := op.Proxy
		for depth := 0; !cursor.IsEmpty(); depth++ {
			if cursor == op.Account {
				return types.Validationf("proxy chain through %s loops back to %s", op.Proxy, op.Account)
			}
			if depth >= state.MaxProxyRecursionDepth {
				break
			}
			next, err := db.account(cursor)
			if err != nil {
				return err
			}
			cursor = next.Proxy
		}
	}

	// Pull this account's weight out of wherever it currently counts,
	// repoint the proxy, then push it back through the new path.
	var deltas [state.MaxProxyRecursionDepth + 1]types.Share
	deltas[0] = -acc.VestingShares.Amount
	for i, v := range acc.ProxiedVsfVotes {
		if i+1 <= state.MaxProxyRecursionDepth {
			deltas[i+1] = -v
		}
	}
	if err := db.adjustProxiedWitnessVotesArray(acc, deltas, 0); err != nil {
		return err
	}
	if err := db.modifyAccount(acc, func(a *state.Account) { a.Proxy = op.Proxy }); err != nil {
		return err
	}
	for i := range deltas {
		deltas[i] = -deltas[i]
	}
	return db.adjustProxiedWitnessVotesArray(acc, deltas, 0)
}

func (db *Database) applyDeclineVotingRights(op *protocol.DeclineVotingRightsOperation) error {
	acc, err := db.account(op.Account)
	if err != nil {
		return err
	}
	probe := &state.DeclineVotingRightsRequest{Account: op.Account}
	existing, found := db.idx.DeclineVotingRequests.Index(state.ByAccount).Find(probe)

	if op.Decline {
		if !acc.CanVote {
			return types.Validationf("account %s already declined its voting rights", op.Account)
		}
		if found {
			return types.Validationf("decline request for %s already pending", op.Account)
		}
		now := db.idx.GlobalProps().Time
		_, err := db.idx.DeclineVotingRequests.Create(&state.DeclineVotingRightsRequest{
			Account:     op.Account,
			EffectiveOn: now.Add(DeclineVotingRightsDurationSec),
		})
		return err
	}

	if !found {
		return types.Validationf("no decline request for %s to cancel", op.Account)
	}
	return db.idx.DeclineVotingRequests.Remove(existing)
}

func (db *Database) applyRequestAccountRecovery(op *protocol.RequestAccountRecoveryOperation) error {
	acc, err := db.account(op.AccountToRecover)
	if err != nil {
		return err
	}
	if acc.RecoveryAccount != op.RecoveryAccount {
		return types.Validationf("%s is not the recovery partner of %s",
			op.RecoveryAccount, op.AccountToRecover)
	}

	probe := &state.AccountRecoveryRequest{AccountToRecover: op.AccountToRecover}
	existing, found := db.idx.RecoveryRequests.Index(state.ByAccount).Find(probe)

	if op.NewOwnerAuthority.IsImpossible() {
		if !found {
			return types.Validationf("no recovery request for %s to cancel", op.AccountToRecover)
		}
		return db.idx.RecoveryRequests.Remove(existing)
	}

	if err := db.checkAuthorityAccounts(op.NewOwnerAuthority); err != nil {
		return err
	}
	now := db.idx.GlobalProps().Time
	expires := now.Add(AccountRecoveryRequestExpirationSec)
	if found {
		return db.idx.RecoveryRequests.Modify(existing, func(obj store.Object) {
			r := obj.(*state.AccountRecoveryRequest)
			r.NewOwnerAuthority = op.NewOwnerAuthority
			r.Expires = expires
		})
	}
	_, err = db.idx.RecoveryRequests.Create(&state.AccountRecoveryRequest{
		AccountToRecover:  op.AccountToRecover,
		NewOwnerAuthority: op.NewOwnerAuthority,
		Expires:           expires,
	})
	return err
}

func (db *Database) applyRecoverAccount(op *protocol.RecoverAccountOperation) error {
	acc, err := db.account(op.AccountToRecover)
	if err != nil {
		return err
	}
	now := db.idx.GlobalProps().Time
	if !acc.LastAccountRecovery.IsZero() && now.Sub(acc.LastAccountRecovery) < OwnerUpdateLimitSec {
		return types.Validationf("account %s was recovered within the last hour", op.AccountToRecover)
	}

	probe := &state.AccountRecoveryRequest{AccountToRecover: op.AccountToRecover}
	obj, found := db.idx.RecoveryRequests.Index(state.ByAccount).Find(probe)
	if !found {
		return types.Validationf("no recovery request for %s", op.AccountToRecover)
	}
	req := obj.(*state.AccountRecoveryRequest)
	if !authorityEqual(req.NewOwnerAuthority, op.NewOwnerAuthority) {
		return types.Validationf("new owner authority does not match the pending request")
	}

	// The recent authority must be one the account actually held inside
	// the recovery window.
	var recentValid bool
	from := &state.OwnerAuthorityHistory{Account: op.AccountToRecover}
	db.idx.OwnerAuthorityHistories.Index(state.ByAccount).AscendFrom(from, func(o store.Object) bool {
		h := o.(*state.OwnerAuthorityHistory)
		if h.Account != op.AccountToRecover {
			return false
		}
		if now.Sub(h.LastValidTime) <= OwnerAuthRecoveryPeriodSec &&
			authorityEqual(h.PreviousOwnerAuthority, op.RecentOwnerAuthority) {
			recentValid = true
			return false
		}
		return true
	})
	if !recentValid {
		return types.Validationf("recent owner authority is not recoverable")
	}

	if !db.skipFlags.Has(SkipAuthorityCheck) {
		keys := db.applyCtx.sigKeys
		if !op.NewOwnerAuthority.Satisfied(keys, db.activeAuthority) {
			return types.Validationf("transaction does not satisfy the new owner authority")
		}
		if !op.RecentOwnerAuthority.Satisfied(keys, db.activeAuthority) {
			return types.Validationf("transaction does not satisfy the recent owner authority")
		}
	}

	auth, ok := db.idx.Authority(op.AccountToRecover)
	if !ok {
		return types.Consistencyf("account %s has no authority record", op.AccountToRecover)
	}
	if _, err := db.idx.OwnerAuthorityHistories.Create(&state.OwnerAuthorityHistory{
		Account:                op.AccountToRecover,
		PreviousOwnerAuthority: auth.Owner,
		LastValidTime:          now,
	}); err != nil {
		return err
	}
	if err := db.idx.AccountAuthorities.Modify(auth, func(o store.Object) {
		a := o.(*state.AccountAuthority)
		a.Owner = op.NewOwnerAuthority
		a.LastOwnerUpdate = now
	}); err != nil {
		return err
	}
	if err := db.modifyAccount(acc, func(a *state.Account) {
		a.LastAccountRecovery = now
		a.LastOwnerUpdate = now
	}); err != nil {
		return err
	}
	return db.idx.RecoveryRequests.Remove(req)
}

func (db *Database) applyChangeRecoveryAccount(op *protocol.ChangeRecoveryAccountOperation) error {
	acc, err := db.account(op.AccountToRecover)
	if err != nil {
		return err
	}
	if _, err := db.account(op.NewRecoveryAccount); err != nil {
		return err
	}

	probe := &state.ChangeRecoveryAccountRequest{AccountToRecover: op.AccountToRecover}
	existing, found := db.idx.ChangeRecoveryRequests.Index(state.ByAccount).Find(probe)
	now := db.idx.GlobalProps().Time

	if found {
		if acc.RecoveryAccount == op.NewRecoveryAccount {
			return db.idx.ChangeRecoveryRequests.Remove(existing)
		}
		return db.idx.ChangeRecoveryRequests.Modify(existing, func(obj store.Object) {
			r := obj.(*state.ChangeRecoveryAccountRequest)
			r.RecoveryAccount = op.NewRecoveryAccount
			r.EffectiveOn = now.Add(ChangeRecoveryAccountDelaySec)
		})
	}

	if acc.RecoveryAccount == op.NewRecoveryAccount {
		return types.Validationf("%s is already the recovery partner of %s",
			op.NewRecoveryAccount, op.AccountToRecover)
	}
	_, err = db.idx.ChangeRecoveryRequests.Create(&state.ChangeRecoveryAccountRequest{
		AccountToRecover: op.AccountToRecover,
		RecoveryAccount:  op.NewRecoveryAccount,
		EffectiveOn:      now.Add(ChangeRecoveryAccountDelaySec),
	})
	return err
}
