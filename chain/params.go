// Package chain implements the state-transition core: it applies
// blocks and transactions to the object store, runs the per-block
// maintenance passes, and handles fork switching and block production.
package chain

import (
	"github.com/blockberries/stakeberry/types"
)

// Chain assets.
const (
	// CoreSymbol is the native staking and fee asset.
	CoreSymbol types.AssetSymbol = "BERRY"

	// StableSymbol is the feed-pegged stable asset.
	StableSymbol types.AssetSymbol = "BBD"

	// VestsSymbol denominates vesting shares.
	VestsSymbol types.AssetSymbol = "VESTS"
)

// Reserved accounts, created at genesis.
const (
	// InitMinerName produces blocks until real witnesses take over.
	InitMinerName types.AccountName = "initminer"

	// NullAccountName destroys anything sent to it; its balances are
	// burned every block.
	NullAccountName types.AccountName = "null"

	// TempAccountName holds funds in flight; it has no authority and
	// anyone may spend from it.
	TempAccountName types.AccountName = "temp"
)

// Block production.
const (
	// BlockIntervalSec is the target spacing between blocks.
	BlockIntervalSec = 3

	// MaxWitnesses is the size of the active schedule.
	MaxWitnesses = 21

	// BlocksPerYear derives from the interval.
	BlocksPerYear = 365 * 24 * 60 * 60 / BlockIntervalSec

	// BlocksPerDay derives from the interval.
	BlocksPerDay = 24 * 60 * 60 / BlockIntervalSec

	// IrreversibleThreshold is the fraction of witnesses that must have
	// built on a block before it is final, in Percent100 units.
	IrreversibleThreshold = 7500

	// MaxUndoDepth bounds the reversible window kept in the store.
	MaxUndoDepth = 4096
)

// Transactions.
const (
	// MaxTimeUntilExpirationSec bounds how far ahead a transaction may
	// expire.
	MaxTimeUntilExpirationSec = 3600

	// TaposRingSize is the number of block-summary slots; RefBlockNum
	// addresses the ring modulo this size.
	TaposRingSize = 0x10000
)

// Bandwidth.
const (
	// BandwidthAverageWindowSec is the decay window of the per-account
	// bandwidth average.
	BandwidthAverageWindowSec = 7 * 24 * 60 * 60

	// BandwidthPrecision scales bandwidth math to keep precision in
	// integer arithmetic.
	BandwidthPrecision = 1_000_000

	// MarketBandwidthCharge multiplies the size of market operations.
	MarketBandwidthCharge = 10
)

// Vesting.
const (
	// VestingWithdrawIntervals is the number of weekly power-down
	// payments.
	VestingWithdrawIntervals = 13

	// VestingWithdrawIntervalSec is the spacing between power-down
	// payments.
	VestingWithdrawIntervalSec = 7 * 24 * 60 * 60

	// DelegationReturnPeriodSec is the cooldown before returned
	// delegations become usable again.
	DelegationReturnPeriodSec = 7 * 24 * 60 * 60

	// MaxWithdrawRoutes bounds the withdraw routes per account.
	MaxWithdrawRoutes = 10
)

// Savings and conversions.
const (
	// SavingsWithdrawTimeSec is the delay on withdrawals from savings.
	SavingsWithdrawTimeSec = 3 * 24 * 60 * 60

	// MaxSavingsWithdrawRequests bounds pending withdrawals per account.
	MaxSavingsWithdrawRequests = 100

	// ConversionDelaySec is the delay before a stable conversion
	// executes at the median feed.
	ConversionDelaySec = 3*24*60*60 + 12*60*60

	// InterestCompoundIntervalSec is the minimum spacing of stable
	// interest payments.
	InterestCompoundIntervalSec = 30 * 24 * 60 * 60

	// FeedIntervalSec is the spacing of median feed history samples.
	FeedIntervalSec = 3600

	// FeedHistoryWindow is how many samples the conversion median spans.
	FeedHistoryWindow = 24 * 7

	// MinFeeds is how many witness feeds must exist before conversions
	// run.
	MinFeeds = MaxWitnesses / 3
)

// Account recovery.
const (
	// OwnerAuthRecoveryPeriodSec is how long a superseded owner
	// authority can still recover the account.
	OwnerAuthRecoveryPeriodSec = 30 * 24 * 60 * 60

	// AccountRecoveryRequestExpirationSec is how long a recovery request
	// stays open.
	AccountRecoveryRequestExpirationSec = 24 * 60 * 60

	// OwnerUpdateLimitSec is the minimum spacing of owner-authority
	// updates.
	OwnerUpdateLimitSec = 60 * 60

	// ChangeRecoveryAccountDelaySec is the wait before a new recovery
	// partner takes effect.
	ChangeRecoveryAccountDelaySec = 30 * 24 * 60 * 60

	// DeclineVotingRightsDurationSec is the wait before declined voting
	// rights take effect.
	DeclineVotingRightsDurationSec = 3 * 24 * 60 * 60
)

// Voting.
const (
	// MaxAccountWitnessVotes bounds direct witness approvals per
	// account.
	MaxAccountWitnessVotes = 30
)

// Economics.
const (
	// InflationRate is the annual core inflation paying witnesses, in
	// Percent100 units.
	InflationRate = 950

	// LiquidityAPR is the annual liquidity reward rate in Percent100
	// units.
	LiquidityAPR = 75

	// LiquidityRewardIntervalSec is the spacing of liquidity payouts.
	LiquidityRewardIntervalSec = 60 * 60

	// LiquidityRewardBlocks is the payout interval in blocks.
	LiquidityRewardBlocks = LiquidityRewardIntervalSec / BlockIntervalSec

	// MinLiquidityWeight is the smallest volume weight that earns a
	// payout.
	MinLiquidityWeight = 1000
)

// Skip flags let replay and tests bypass checks that are expensive or
// already guaranteed by the block log.
type SkipFlags uint32

const (
	SkipNothing          SkipFlags = 0
	SkipWitnessSignature SkipFlags = 1 << 0
	SkipTransactionSigs  SkipFlags = 1 << 1
	SkipTransactionDupe  SkipFlags = 1 << 2
	SkipTaposCheck       SkipFlags = 1 << 3
	SkipAuthorityCheck   SkipFlags = 1 << 4
	SkipMerkleCheck      SkipFlags = 1 << 5
	SkipWitnessSchedule  SkipFlags = 1 << 6
	SkipValidation       SkipFlags = 1 << 7
	SkipUndoBlock        SkipFlags = 1 << 8
	SkipBlockSizeCheck   SkipFlags = 1 << 9
	SkipBandwidthCheck   SkipFlags = 1 << 10
)

// Has reports whether all bits of f are set.
func (s SkipFlags) Has(f SkipFlags) bool {
	return s&f == f
}
