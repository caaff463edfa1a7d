package state

import (
	"bytes"

	"github.com/blockberries/stakeberry/store"
	"github.com/blockberries/stakeberry/types"
)

// Index names. Probe objects passed to Find/AscendFrom need only the
// fields the named index orders by (plus ID for non-unique indexes).
const (
	ByName                 = "by_name"
	ByAccount              = "by_account"
	ByAccountSymbol        = "by_account_symbol"
	ByAccountType          = "by_account_type"
	ByExpiration           = "by_expiration"
	ByEffectiveDate        = "by_effective_date"
	ByVote                 = "by_vote"
	ByScheduleTime         = "by_schedule_time"
	ByAccountWitness       = "by_account_witness"
	ByWitnessAccount       = "by_witness_account"
	BySymbol               = "by_symbol"
	ByOwnerRequest         = "by_owner_request"
	ByConversionDate       = "by_conversion_date"
	ByPrice                = "by_price"
	ByCollateral           = "by_collateral"
	ByFromRequest          = "by_from_request"
	ByComplete             = "by_complete"
	ByDelegation           = "by_delegation"
	ByAccountExpiration    = "by_account_expiration"
	ByWithdrawRoute        = "by_withdraw_route"
	ByVolumeWeight         = "by_volume_weight"
	ByRatificationDeadline = "by_ratification_deadline"
	ByTrxID                = "by_trx_id"
)

// Registry owns every chain table.
type Registry struct {
	DB *store.Database

	Accounts                *store.Table
	AccountAuthorities      *store.Table
	AccountBalances         *store.Table
	AccountBandwidths       *store.Table
	OwnerAuthorityHistories *store.Table
	RecoveryRequests        *store.Table
	ChangeRecoveryRequests  *store.Table
	DeclineVotingRequests   *store.Table

	Witnesses        *store.Table
	WitnessVotes     *store.Table
	WitnessSchedules *store.Table

	Assets          *store.Table
	AssetDynamics   *store.Table
	AssetBitassets  *store.Table
	FeedHistories   *store.Table
	ConvertRequests *store.Table

	LimitOrders      *store.Table
	CallOrders       *store.Table
	ForceSettlements *store.Table
	CollateralBids   *store.Table
	LiquidityRewards *store.Table

	SavingsWithdraws             *store.Table
	VestingDelegations           *store.Table
	VestingDelegationExpirations *store.Table
	WithdrawRoutes               *store.Table
	Escrows                      *store.Table

	TransactionObjects *store.Table
	BlockSummaries     *store.Table
	GlobalProperties   *store.Table
	HardforkProperties *store.Table
}

// NewRegistry registers every table and index on db.
func NewRegistry(db *store.Database) *Registry {
	r := &Registry{DB: db}

	r.Accounts = db.RegisterTable("accounts", []store.IndexSpec{{
		Name: ByName, Unique: true,
		Less: func(a, b store.Object) bool {
			return a.(*Account).Name < b.(*Account).Name
		},
	}})

	r.AccountAuthorities = db.RegisterTable("account_authorities", []store.IndexSpec{{
		Name: ByAccount, Unique: true,
		Less: func(a, b store.Object) bool {
			return a.(*AccountAuthority).Account < b.(*AccountAuthority).Account
		},
	}})

	r.AccountBalances = db.RegisterTable("account_balances", []store.IndexSpec{{
		Name: ByAccountSymbol, Unique: true,
		Less: func(a, b store.Object) bool {
			ba, bb := a.(*AccountBalance), b.(*AccountBalance)
			if ba.Account != bb.Account {
				return ba.Account < bb.Account
			}
			return ba.Symbol < bb.Symbol
		},
	}})

	r.AccountBandwidths = db.RegisterTable("account_bandwidths", []store.IndexSpec{{
		Name: ByAccountType, Unique: true,
		Less: func(a, b store.Object) bool {
			ba, bb := a.(*AccountBandwidth), b.(*AccountBandwidth)
			if ba.Account != bb.Account {
				return ba.Account < bb.Account
			}
			return ba.Type < bb.Type
		},
	}})

	r.OwnerAuthorityHistories = db.RegisterTable("owner_authority_histories", []store.IndexSpec{{
		Name: ByAccount,
		Less: func(a, b store.Object) bool {
			ha, hb := a.(*OwnerAuthorityHistory), b.(*OwnerAuthorityHistory)
			if ha.Account != hb.Account {
				return ha.Account < hb.Account
			}
			return ha.ID < hb.ID
		},
	}})

	r.RecoveryRequests = db.RegisterTable("account_recovery_requests", []store.IndexSpec{
		{
			Name: ByAccount, Unique: true,
			Less: func(a, b store.Object) bool {
				return a.(*AccountRecoveryRequest).AccountToRecover < b.(*AccountRecoveryRequest).AccountToRecover
			},
		},
		{
			Name: ByExpiration,
			Less: func(a, b store.Object) bool {
				ra, rb := a.(*AccountRecoveryRequest), b.(*AccountRecoveryRequest)
				if ra.Expires != rb.Expires {
					return ra.Expires < rb.Expires
				}
				return ra.ID < rb.ID
			},
		},
	})

	r.ChangeRecoveryRequests = db.RegisterTable("change_recovery_requests", []store.IndexSpec{
		{
			Name: ByAccount, Unique: true,
			Less: func(a, b store.Object) bool {
				return a.(*ChangeRecoveryAccountRequest).AccountToRecover < b.(*ChangeRecoveryAccountRequest).AccountToRecover
			},
		},
		{
			Name: ByEffectiveDate,
			Less: func(a, b store.Object) bool {
				ra, rb := a.(*ChangeRecoveryAccountRequest), b.(*ChangeRecoveryAccountRequest)
				if ra.EffectiveOn != rb.EffectiveOn {
					return ra.EffectiveOn < rb.EffectiveOn
				}
				return ra.ID < rb.ID
			},
		},
	})

	r.DeclineVotingRequests = db.RegisterTable("decline_voting_requests", []store.IndexSpec{
		{
			Name: ByAccount, Unique: true,
			Less: func(a, b store.Object) bool {
				return a.(*DeclineVotingRightsRequest).Account < b.(*DeclineVotingRightsRequest).Account
			},
		},
		{
			Name: ByEffectiveDate,
			Less: func(a, b store.Object) bool {
				ra, rb := a.(*DeclineVotingRightsRequest), b.(*DeclineVotingRightsRequest)
				if ra.EffectiveOn != rb.EffectiveOn {
					return ra.EffectiveOn < rb.EffectiveOn
				}
				return ra.ID < rb.ID
			},
		},
	})

	r.Witnesses = db.RegisterTable("witnesses", []store.IndexSpec{
		{
			Name: ByName, Unique: true,
			Less: func(a, b store.Object) bool {
				return a.(*Witness).Owner < b.(*Witness).Owner
			},
		},
		{
			Name: ByVote,
			Less: func(a, b store.Object) bool {
				wa, wb := a.(*Witness), b.(*Witness)
				if wa.Votes != wb.Votes {
					return wa.Votes > wb.Votes
				}
				return wa.Owner < wb.Owner
			},
		},
		{
			Name: ByScheduleTime,
			Less: func(a, b store.Object) bool {
				wa, wb := a.(*Witness), b.(*Witness)
				if c := wa.VirtualScheduledTime.Cmp(wb.VirtualScheduledTime); c != 0 {
					return c < 0
				}
				return wa.ID < wb.ID
			},
		},
	})

	r.WitnessVotes = db.RegisterTable("witness_votes", []store.IndexSpec{
		{
			Name: ByAccountWitness, Unique: true,
			Less: func(a, b store.Object) bool {
				va, vb := a.(*WitnessVote), b.(*WitnessVote)
				if va.Account != vb.Account {
					return va.Account < vb.Account
				}
				return va.Witness < vb.Witness
			},
		},
		{
			Name: ByWitnessAccount, Unique: true,
			Less: func(a, b store.Object) bool {
				va, vb := a.(*WitnessVote), b.(*WitnessVote)
				if va.Witness != vb.Witness {
					return va.Witness < vb.Witness
				}
				return va.Account < vb.Account
			},
		},
	})

	r.WitnessSchedules = db.RegisterTable("witness_schedules", nil)

	r.Assets = db.RegisterTable("assets", []store.IndexSpec{{
		Name: BySymbol, Unique: true,
		Less: func(a, b store.Object) bool {
			return a.(*AssetObject).Symbol < b.(*AssetObject).Symbol
		},
	}})

	r.AssetDynamics = db.RegisterTable("asset_dynamics", []store.IndexSpec{{
		Name: BySymbol, Unique: true,
		Less: func(a, b store.Object) bool {
			return a.(*AssetDynamicData).Symbol < b.(*AssetDynamicData).Symbol
		},
	}})

	r.AssetBitassets = db.RegisterTable("asset_bitassets", []store.IndexSpec{{
		Name: BySymbol, Unique: true,
		Less: func(a, b store.Object) bool {
			return a.(*AssetBitassetData).Symbol < b.(*AssetBitassetData).Symbol
		},
	}})

	r.FeedHistories = db.RegisterTable("feed_histories", nil)

	r.ConvertRequests = db.RegisterTable("convert_requests", []store.IndexSpec{
		{
			Name: ByOwnerRequest, Unique: true,
			Less: func(a, b store.Object) bool {
				ra, rb := a.(*ConvertRequest), b.(*ConvertRequest)
				if ra.Owner != rb.Owner {
					return ra.Owner < rb.Owner
				}
				return ra.RequestID < rb.RequestID
			},
		},
		{
			Name: ByConversionDate,
			Less: func(a, b store.Object) bool {
				ra, rb := a.(*ConvertRequest), b.(*ConvertRequest)
				if ra.ConversionDate != rb.ConversionDate {
					return ra.ConversionDate < rb.ConversionDate
				}
				return ra.ID < rb.ID
			},
		},
	})

	r.LimitOrders = db.RegisterTable("limit_orders", []store.IndexSpec{
		{
			Name: ByAccount, Unique: true,
			Less: func(a, b store.Object) bool {
				oa, ob := a.(*LimitOrder), b.(*LimitOrder)
				if oa.Seller != ob.Seller {
					return oa.Seller < ob.Seller
				}
				return oa.OrderID < ob.OrderID
			},
		},
		{
			// Best price first within each market: descending price,
			// oldest order first among equals.
			Name: ByPrice,
			Less: func(a, b store.Object) bool {
				oa, ob := a.(*LimitOrder), b.(*LimitOrder)
				if c := oa.SellPrice.Cmp(ob.SellPrice); c != 0 {
					return c > 0
				}
				return oa.ID < ob.ID
			},
		},
		{
			Name: ByExpiration,
			Less: func(a, b store.Object) bool {
				oa, ob := a.(*LimitOrder), b.(*LimitOrder)
				if oa.Expiration != ob.Expiration {
					return oa.Expiration < ob.Expiration
				}
				return oa.ID < ob.ID
			},
		},
	})

	r.CallOrders = db.RegisterTable("call_orders", []store.IndexSpec{
		{
			Name: ByAccount, Unique: true,
			Less: func(a, b store.Object) bool {
				oa, ob := a.(*CallOrder), b.(*CallOrder)
				if oa.Borrower != ob.Borrower {
					return oa.Borrower < ob.Borrower
				}
				return oa.DebtSymbol() < ob.DebtSymbol()
			},
		},
		{
			// Least collateralized first within each debt asset.
			Name: ByCollateral,
			Less: func(a, b store.Object) bool {
				oa, ob := a.(*CallOrder), b.(*CallOrder)
				if oa.DebtSymbol() != ob.DebtSymbol() {
					return oa.DebtSymbol() < ob.DebtSymbol()
				}
				if oa.CollateralizationLess(ob) {
					return true
				}
				if ob.CollateralizationLess(oa) {
					return false
				}
				return oa.ID < ob.ID
			},
		},
	})

	r.ForceSettlements = db.RegisterTable("force_settlements", []store.IndexSpec{
		{
			Name: ByAccount,
			Less: func(a, b store.Object) bool {
				sa, sb := a.(*ForceSettlement), b.(*ForceSettlement)
				if sa.Owner != sb.Owner {
					return sa.Owner < sb.Owner
				}
				return sa.ID < sb.ID
			},
		},
		{
			Name: ByExpiration,
			Less: func(a, b store.Object) bool {
				sa, sb := a.(*ForceSettlement), b.(*ForceSettlement)
				if sa.Balance.Symbol != sb.Balance.Symbol {
					return sa.Balance.Symbol < sb.Balance.Symbol
				}
				if sa.SettlementDate != sb.SettlementDate {
					return sa.SettlementDate < sb.SettlementDate
				}
				return sa.ID < sb.ID
			},
		},
	})

	r.CollateralBids = db.RegisterTable("collateral_bids", []store.IndexSpec{
		{
			Name: ByAccount, Unique: true,
			Less: func(a, b store.Object) bool {
				ba, bb := a.(*CollateralBid), b.(*CollateralBid)
				if ba.DebtSymbol() != bb.DebtSymbol() {
					return ba.DebtSymbol() < bb.DebtSymbol()
				}
				return ba.Bidder < bb.Bidder
			},
		},
		{
			// Most generous collateralization first.
			Name: ByPrice,
			Less: func(a, b store.Object) bool {
				ba, bb := a.(*CollateralBid), b.(*CollateralBid)
				if ba.DebtSymbol() != bb.DebtSymbol() {
					return ba.DebtSymbol() < bb.DebtSymbol()
				}
				if c := ba.InvSwanPrice.Cmp(bb.InvSwanPrice); c != 0 {
					return c > 0
				}
				return ba.ID < bb.ID
			},
		},
	})

	r.LiquidityRewards = db.RegisterTable("liquidity_reward_balances", []store.IndexSpec{
		{
			Name: ByAccount, Unique: true,
			Less: func(a, b store.Object) bool {
				return a.(*LiquidityRewardBalance).Owner < b.(*LiquidityRewardBalance).Owner
			},
		},
		{
			// Highest weight first; older record wins a tie.
			Name: ByVolumeWeight,
			Less: func(a, b store.Object) bool {
				la, lb := a.(*LiquidityRewardBalance), b.(*LiquidityRewardBalance)
				if c := la.Weight.Cmp(lb.Weight); c != 0 {
					return c > 0
				}
				return la.ID < lb.ID
			},
		},
	})

	r.SavingsWithdraws = db.RegisterTable("savings_withdraws", []store.IndexSpec{
		{
			Name: ByFromRequest, Unique: true,
			Less: func(a, b store.Object) bool {
				wa, wb := a.(*SavingsWithdraw), b.(*SavingsWithdraw)
				if wa.From != wb.From {
					return wa.From < wb.From
				}
				return wa.RequestID < wb.RequestID
			},
		},
		{
			Name: ByComplete,
			Less: func(a, b store.Object) bool {
				wa, wb := a.(*SavingsWithdraw), b.(*SavingsWithdraw)
				if wa.Complete != wb.Complete {
					return wa.Complete < wb.Complete
				}
				return wa.ID < wb.ID
			},
		},
	})

	r.VestingDelegations = db.RegisterTable("vesting_delegations", []store.IndexSpec{{
		Name: ByDelegation, Unique: true,
		Less: func(a, b store.Object) bool {
			da, db_ := a.(*VestingDelegation), b.(*VestingDelegation)
			if da.Delegator != db_.Delegator {
				return da.Delegator < db_.Delegator
			}
			return da.Delegatee < db_.Delegatee
		},
	}})

	r.VestingDelegationExpirations = db.RegisterTable("vesting_delegation_expirations", []store.IndexSpec{
		{
			Name: ByExpiration,
			Less: func(a, b store.Object) bool {
				da, db_ := a.(*VestingDelegationExpiration), b.(*VestingDelegationExpiration)
				if da.Expiration != db_.Expiration {
					return da.Expiration < db_.Expiration
				}
				return da.ID < db_.ID
			},
		},
		{
			Name: ByAccountExpiration,
			Less: func(a, b store.Object) bool {
				da, db_ := a.(*VestingDelegationExpiration), b.(*VestingDelegationExpiration)
				if da.Delegator != db_.Delegator {
					return da.Delegator < db_.Delegator
				}
				if da.Expiration != db_.Expiration {
					return da.Expiration < db_.Expiration
				}
				return da.ID < db_.ID
			},
		},
	})

	r.WithdrawRoutes = db.RegisterTable("withdraw_vesting_routes", []store.IndexSpec{{
		Name: ByWithdrawRoute, Unique: true,
		Less: func(a, b store.Object) bool {
			ra, rb := a.(*WithdrawVestingRoute), b.(*WithdrawVestingRoute)
			if ra.FromAccount != rb.FromAccount {
				return ra.FromAccount < rb.FromAccount
			}
			return ra.ToAccount < rb.ToAccount
		},
	}})

	r.Escrows = db.RegisterTable("escrows", []store.IndexSpec{
		{
			Name: ByFromRequest, Unique: true,
			Less: func(a, b store.Object) bool {
				ea, eb := a.(*EscrowObject), b.(*EscrowObject)
				if ea.From != eb.From {
					return ea.From < eb.From
				}
				return ea.EscrowID < eb.EscrowID
			},
		},
		{
			Name: ByRatificationDeadline,
			Less: func(a, b store.Object) bool {
				ea, eb := a.(*EscrowObject), b.(*EscrowObject)
				if ea.RatificationDeadline != eb.RatificationDeadline {
					return ea.RatificationDeadline < eb.RatificationDeadline
				}
				return ea.ID < eb.ID
			},
		},
	})

	r.TransactionObjects = db.RegisterTable("transaction_objects", []store.IndexSpec{
		{
			Name: ByTrxID, Unique: true,
			Less: func(a, b store.Object) bool {
				return bytes.Compare(a.(*TransactionObject).TrxID, b.(*TransactionObject).TrxID) < 0
			},
		},
		{
			Name: ByExpiration,
			Less: func(a, b store.Object) bool {
				ta, tb := a.(*TransactionObject), b.(*TransactionObject)
				if ta.Expiration != tb.Expiration {
					return ta.Expiration < tb.Expiration
				}
				return ta.ID < tb.ID
			},
		},
	})

	r.BlockSummaries = db.RegisterTable("block_summaries", nil)
	r.GlobalProperties = db.RegisterTable("global_properties", nil)
	r.HardforkProperties = db.RegisterTable("hardfork_properties", nil)

	return r
}

// Typed lookups. Missing records return (nil, false); singletons that
// have not been created yet panic, since that means genesis never ran.

// Account returns the named account.
func (r *Registry) Account(name types.AccountName) (*Account, bool) {
	obj, ok := r.Accounts.Index(ByName).Find(&Account{Name: name})
	if !ok {
		return nil, false
	}
	return obj.(*Account), true
}

// Authority returns the named account's authorities.
func (r *Registry) Authority(name types.AccountName) (*AccountAuthority, bool) {
	obj, ok := r.AccountAuthorities.Index(ByAccount).Find(&AccountAuthority{Account: name})
	if !ok {
		return nil, false
	}
	return obj.(*AccountAuthority), true
}

// Balance returns an account's balance record for one asset.
func (r *Registry) Balance(name types.AccountName, symbol types.AssetSymbol) (*AccountBalance, bool) {
	obj, ok := r.AccountBalances.Index(ByAccountSymbol).Find(&AccountBalance{Account: name, Symbol: symbol})
	if !ok {
		return nil, false
	}
	return obj.(*AccountBalance), true
}

// Bandwidth returns an account's bandwidth record for one pool.
func (r *Registry) Bandwidth(name types.AccountName, typ BandwidthType) (*AccountBandwidth, bool) {
	obj, ok := r.AccountBandwidths.Index(ByAccountType).Find(&AccountBandwidth{Account: name, Type: typ})
	if !ok {
		return nil, false
	}
	return obj.(*AccountBandwidth), true
}

// Witness returns the named witness.
func (r *Registry) Witness(name types.AccountName) (*Witness, bool) {
	obj, ok := r.Witnesses.Index(ByName).Find(&Witness{Owner: name})
	if !ok {
		return nil, false
	}
	return obj.(*Witness), true
}

// WitnessVoteFor returns the vote link between account and witness.
func (r *Registry) WitnessVoteFor(account, witness types.AccountName) (*WitnessVote, bool) {
	obj, ok := r.WitnessVotes.Index(ByAccountWitness).Find(&WitnessVote{Account: account, Witness: witness})
	if !ok {
		return nil, false
	}
	return obj.(*WitnessVote), true
}

// Asset returns the asset description for symbol.
func (r *Registry) Asset(symbol types.AssetSymbol) (*AssetObject, bool) {
	obj, ok := r.Assets.Index(BySymbol).Find(&AssetObject{Symbol: symbol})
	if !ok {
		return nil, false
	}
	return obj.(*AssetObject), true
}

// AssetDynamic returns the supply counters for symbol.
func (r *Registry) AssetDynamic(symbol types.AssetSymbol) (*AssetDynamicData, bool) {
	obj, ok := r.AssetDynamics.Index(BySymbol).Find(&AssetDynamicData{Symbol: symbol})
	if !ok {
		return nil, false
	}
	return obj.(*AssetDynamicData), true
}

// Bitasset returns the bitasset extension for symbol.
func (r *Registry) Bitasset(symbol types.AssetSymbol) (*AssetBitassetData, bool) {
	obj, ok := r.AssetBitassets.Index(BySymbol).Find(&AssetBitassetData{Symbol: symbol})
	if !ok {
		return nil, false
	}
	return obj.(*AssetBitassetData), true
}

// LimitOrderBy returns a seller's order by its client-chosen id.
func (r *Registry) LimitOrderBy(seller types.AccountName, orderID uint32) (*LimitOrder, bool) {
	obj, ok := r.LimitOrders.Index(ByAccount).Find(&LimitOrder{Seller: seller, OrderID: orderID})
	if !ok {
		return nil, false
	}
	return obj.(*LimitOrder), true
}

// CallOrderBy returns an account's margin position in one debt asset.
func (r *Registry) CallOrderBy(borrower types.AccountName, debt types.AssetSymbol) (*CallOrder, bool) {
	probe := &CallOrder{Borrower: borrower, CallPrice: types.MaxPrice("", debt)}
	obj, ok := r.CallOrders.Index(ByAccount).Find(probe)
	if !ok {
		return nil, false
	}
	return obj.(*CallOrder), true
}

// LiquidityReward returns an account's market-making volume record.
func (r *Registry) LiquidityReward(owner types.AccountName) (*LiquidityRewardBalance, bool) {
	obj, ok := r.LiquidityRewards.Index(ByAccount).Find(&LiquidityRewardBalance{Owner: owner})
	if !ok {
		return nil, false
	}
	return obj.(*LiquidityRewardBalance), true
}

// EscrowBy returns an escrow by sender and client-chosen id.
func (r *Registry) EscrowBy(from types.AccountName, escrowID uint32) (*EscrowObject, bool) {
	obj, ok := r.Escrows.Index(ByFromRequest).Find(&EscrowObject{From: from, EscrowID: escrowID})
	if !ok {
		return nil, false
	}
	return obj.(*EscrowObject), true
}

// GlobalProps returns the dynamic global properties singleton.
func (r *Registry) GlobalProps() *DynamicGlobalProperties {
	obj, ok := r.GlobalProperties.Get(1)
	if !ok {
		panic("state: global properties missing; genesis never ran")
	}
	return obj.(*DynamicGlobalProperties)
}

// Schedule returns the witness schedule singleton.
func (r *Registry) Schedule() *WitnessSchedule {
	obj, ok := r.WitnessSchedules.Get(1)
	if !ok {
		panic("state: witness schedule missing; genesis never ran")
	}
	return obj.(*WitnessSchedule)
}

// FeedHist returns the feed history singleton.
func (r *Registry) FeedHist() *FeedHistory {
	obj, ok := r.FeedHistories.Get(1)
	if !ok {
		panic("state: feed history missing; genesis never ran")
	}
	return obj.(*FeedHistory)
}

// Hardforks returns the hardfork singleton.
func (r *Registry) Hardforks() *HardforkProperty {
	obj, ok := r.HardforkProperties.Get(1)
	if !ok {
		panic("state: hardfork properties missing; genesis never ran")
	}
	return obj.(*HardforkProperty)
}

// BlockSummaryAt returns the TaPoS ring slot for a block number.
// Slots are preallocated at genesis; the ring holds 0x10000 entries.
func (r *Registry) BlockSummaryAt(refNum uint16) *BlockSummary {
	obj, ok := r.BlockSummaries.Get(types.ObjectID(refNum) + 1)
	if !ok {
		panic("state: block summary ring missing; genesis never ran")
	}
	return obj.(*BlockSummary)
}
