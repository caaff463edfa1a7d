package state

import (
	"github.com/blockberries/stakeberry/store"
	"github.com/blockberries/stakeberry/types"
)

// WithdrawVestingRoute redirects a share of an account's vesting
// withdrawals to another account.
type WithdrawVestingRoute struct {
	ID          types.ObjectID
	FromAccount types.AccountName
	ToAccount   types.AccountName
	Percent     types.Percent
	AutoVest    bool
}

func (r *WithdrawVestingRoute) ObjectID() types.ObjectID      { return r.ID }
func (r *WithdrawVestingRoute) SetObjectID(id types.ObjectID) { r.ID = id }
func (r *WithdrawVestingRoute) CloneObject() store.Object {
	c := *r
	return &c
}

// VestingDelegation lends stake from delegator to delegatee.
type VestingDelegation struct {
	ID                types.ObjectID
	Delegator         types.AccountName
	Delegatee         types.AccountName
	VestingShares     types.Asset
	MinDelegationTime types.TimeSec
}

func (d *VestingDelegation) ObjectID() types.ObjectID      { return d.ID }
func (d *VestingDelegation) SetObjectID(id types.ObjectID) { d.ID = id }
func (d *VestingDelegation) CloneObject() store.Object {
	c := *d
	return &c
}

// VestingDelegationExpiration parks returned delegations until their
// cooldown passes, keeping the stake unusable meanwhile.
type VestingDelegationExpiration struct {
	ID            types.ObjectID
	Delegator     types.AccountName
	VestingShares types.Asset
	Expiration    types.TimeSec
}

func (d *VestingDelegationExpiration) ObjectID() types.ObjectID      { return d.ID }
func (d *VestingDelegationExpiration) SetObjectID(id types.ObjectID) { d.ID = id }
func (d *VestingDelegationExpiration) CloneObject() store.Object {
	c := *d
	return &c
}

// SavingsWithdraw is a pending withdrawal from a savings balance.
type SavingsWithdraw struct {
	ID        types.ObjectID
	From      types.AccountName
	To        types.AccountName
	Memo      string
	RequestID uint32
	Amount    types.Asset
	Complete  types.TimeSec
}

func (w *SavingsWithdraw) ObjectID() types.ObjectID      { return w.ID }
func (w *SavingsWithdraw) SetObjectID(id types.ObjectID) { w.ID = id }
func (w *SavingsWithdraw) CloneObject() store.Object {
	c := *w
	return &c
}

// EscrowObject holds funds with an agent until released.
type EscrowObject struct {
	ID       types.ObjectID
	EscrowID uint32
	From     types.AccountName
	To       types.AccountName
	Agent    types.AccountName

	RatificationDeadline types.TimeSec
	EscrowExpiration     types.TimeSec

	Balance    types.Asset
	PendingFee types.Asset

	ToApproved    bool
	AgentApproved bool
	Disputed      bool
}

func (e *EscrowObject) ObjectID() types.ObjectID      { return e.ID }
func (e *EscrowObject) SetObjectID(id types.ObjectID) { e.ID = id }
func (e *EscrowObject) CloneObject() store.Object {
	c := *e
	return &c
}

// IsApproved reports whether both the recipient and the agent have
// ratified the escrow.
func (e *EscrowObject) IsApproved() bool {
	return e.ToApproved && e.AgentApproved
}
