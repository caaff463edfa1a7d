// Package state defines the chain's persistent records and wires them
// into store tables with their secondary indexes.
package state

import (
	"github.com/blockberries/stakeberry/protocol"
	"github.com/blockberries/stakeberry/store"
	"github.com/blockberries/stakeberry/types"
)

// MaxProxyRecursionDepth bounds how far proxied vote changes fan out
// through proxy chains. Deltas beyond the last slot are dropped
// silently; the stake simply stops counting past this depth.
const MaxProxyRecursionDepth = 4

// Account is the core account record.
type Account struct {
	ID           types.ObjectID
	Name         types.AccountName
	MemoKey      protocol.PublicKey
	JSONMetadata string

	Proxy           types.AccountName
	RecoveryAccount types.AccountName

	Created             types.TimeSec
	LastOwnerUpdate     types.TimeSec
	LastAccountRecovery types.TimeSec

	VestingShares          types.Asset
	DelegatedVestingShares types.Asset
	ReceivedVestingShares  types.Asset

	VestingWithdrawRate   types.Asset
	NextVestingWithdrawal types.TimeSec
	Withdrawn             types.Share
	ToWithdraw            types.Share
	WithdrawRoutes        uint16

	// ProxiedVsfVotes[i] holds stake proxied to this account through a
	// chain of exactly i+1 proxies.
	ProxiedVsfVotes [MaxProxyRecursionDepth + 1]types.Share

	WitnessesVotedFor       uint16
	CanVote                 bool
	SavingsWithdrawRequests uint16
}

func (a *Account) ObjectID() types.ObjectID      { return a.ID }
func (a *Account) SetObjectID(id types.ObjectID) { a.ID = id }
func (a *Account) CloneObject() store.Object {
	c := *a
	c.MemoKey = append(protocol.PublicKey(nil), a.MemoKey...)
	return &c
}

// EffectiveVestingShares is own stake adjusted for delegations.
func (a *Account) EffectiveVestingShares() types.Share {
	return a.VestingShares.Amount - a.DelegatedVestingShares.Amount + a.ReceivedVestingShares.Amount
}

// ProxiedVsfVotesTotal sums stake proxied through every depth.
func (a *Account) ProxiedVsfVotesTotal() types.Share {
	var total types.Share
	for _, v := range a.ProxiedVsfVotes {
		total += v
	}
	return total
}

// WitnessVoteWeight is the stake this account wields when voting for
// witnesses directly (own vesting plus everything proxied to it).
func (a *Account) WitnessVoteWeight() types.Share {
	return a.VestingShares.Amount + a.ProxiedVsfVotesTotal()
}

// AccountAuthority carries an account's signing authorities.
type AccountAuthority struct {
	ID              types.ObjectID
	Account         types.AccountName
	Owner           protocol.Authority
	Active          protocol.Authority
	LastOwnerUpdate types.TimeSec
}

func (a *AccountAuthority) ObjectID() types.ObjectID      { return a.ID }
func (a *AccountAuthority) SetObjectID(id types.ObjectID) { a.ID = id }
func (a *AccountAuthority) CloneObject() store.Object {
	c := *a
	c.Owner = cloneAuthority(a.Owner)
	c.Active = cloneAuthority(a.Active)
	return &c
}

func cloneAuthority(a protocol.Authority) protocol.Authority {
	out := protocol.Authority{WeightThreshold: a.WeightThreshold}
	out.AccountAuths = append([]protocol.AccountAuth(nil), a.AccountAuths...)
	out.KeyAuths = make([]protocol.KeyAuth, len(a.KeyAuths))
	for i, ka := range a.KeyAuths {
		out.KeyAuths[i] = protocol.KeyAuth{
			Key:    append(protocol.PublicKey(nil), ka.Key...),
			Weight: ka.Weight,
		}
	}
	return out
}

// AccountBalance is one account's holdings of one asset, liquid and
// savings, with the interest accumulators for the stable asset.
type AccountBalance struct {
	ID      types.ObjectID
	Account types.AccountName
	Symbol  types.AssetSymbol

	Balance types.Share
	Savings types.Share

	// Seconds-weighted balance accumulators driving stable interest.
	StableSeconds              types.Uint128
	StableSecondsLastUpdate    types.TimeSec
	LastInterestPayment        types.TimeSec
	SavingsSeconds             types.Uint128
	SavingsSecondsLastUpdate   types.TimeSec
	LastSavingsInterestPayment types.TimeSec
}

func (b *AccountBalance) ObjectID() types.ObjectID      { return b.ID }
func (b *AccountBalance) SetObjectID(id types.ObjectID) { b.ID = id }
func (b *AccountBalance) CloneObject() store.Object {
	c := *b
	return &c
}

// BandwidthType distinguishes bandwidth pools.
type BandwidthType uint8

const (
	// BandwidthForum covers ordinary operations.
	BandwidthForum BandwidthType = iota
	// BandwidthMarket covers market operations, charged at a premium.
	BandwidthMarket
)

// AccountBandwidth tracks an account's rolling bandwidth average for
// one pool.
type AccountBandwidth struct {
	ID                  types.ObjectID
	Account             types.AccountName
	Type                BandwidthType
	AverageBandwidth    types.Share
	LifetimeBandwidth   types.Uint128
	LastBandwidthUpdate types.TimeSec
}

func (b *AccountBandwidth) ObjectID() types.ObjectID      { return b.ID }
func (b *AccountBandwidth) SetObjectID(id types.ObjectID) { b.ID = id }
func (b *AccountBandwidth) CloneObject() store.Object {
	c := *b
	return &c
}

// OwnerAuthorityHistory remembers a superseded owner authority until
// the recovery window closes.
type OwnerAuthorityHistory struct {
	ID                     types.ObjectID
	Account                types.AccountName
	PreviousOwnerAuthority protocol.Authority
	LastValidTime          types.TimeSec
}

func (h *OwnerAuthorityHistory) ObjectID() types.ObjectID      { return h.ID }
func (h *OwnerAuthorityHistory) SetObjectID(id types.ObjectID) { h.ID = id }
func (h *OwnerAuthorityHistory) CloneObject() store.Object {
	c := *h
	c.PreviousOwnerAuthority = cloneAuthority(h.PreviousOwnerAuthority)
	return &c
}

// AccountRecoveryRequest is a pending owner-authority replacement.
type AccountRecoveryRequest struct {
	ID                types.ObjectID
	AccountToRecover  types.AccountName
	NewOwnerAuthority protocol.Authority
	Expires           types.TimeSec
}

func (r *AccountRecoveryRequest) ObjectID() types.ObjectID      { return r.ID }
func (r *AccountRecoveryRequest) SetObjectID(id types.ObjectID) { r.ID = id }
func (r *AccountRecoveryRequest) CloneObject() store.Object {
	c := *r
	c.NewOwnerAuthority = cloneAuthority(r.NewOwnerAuthority)
	return &c
}

// ChangeRecoveryAccountRequest is a pending recovery-partner change.
type ChangeRecoveryAccountRequest struct {
	ID               types.ObjectID
	AccountToRecover types.AccountName
	RecoveryAccount  types.AccountName
	EffectiveOn      types.TimeSec
}

func (r *ChangeRecoveryAccountRequest) ObjectID() types.ObjectID      { return r.ID }
func (r *ChangeRecoveryAccountRequest) SetObjectID(id types.ObjectID) { r.ID = id }
func (r *ChangeRecoveryAccountRequest) CloneObject() store.Object {
	c := *r
	return &c
}

// DeclineVotingRightsRequest is a pending, irreversible surrender of
// voting rights.
type DeclineVotingRightsRequest struct {
	ID          types.ObjectID
	Account     types.AccountName
	EffectiveOn types.TimeSec
}

func (r *DeclineVotingRightsRequest) ObjectID() types.ObjectID      { return r.ID }
func (r *DeclineVotingRightsRequest) SetObjectID(id types.ObjectID) { r.ID = id }
func (r *DeclineVotingRightsRequest) CloneObject() store.Object {
	c := *r
	return &c
}
