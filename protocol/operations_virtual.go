package protocol

import (
	"github.com/blockberries/stakeberry/types"
)

// Virtual operations are emitted by the chain for observers. They are
// never valid inside a transaction.

func virtualValidate(t OpType) error {
	return types.Validationf("%s is a virtual operation", t)
}

// FillOrderOperation reports one side of an order match.
type FillOrderOperation struct {
	CurrentOwner types.AccountName `json:"current_owner"`
	CurrentID    types.ObjectID    `json:"current_id"`
	CurrentPays  types.Asset       `json:"current_pays"`
	OpenOwner    types.AccountName `json:"open_owner"`
	OpenID       types.ObjectID    `json:"open_id"`
	OpenPays     types.Asset       `json:"open_pays"`
}

func (op *FillOrderOperation) Type() OpType                          { return OpVirtualFillOrder }
func (op *FillOrderOperation) Validate() error                       { return virtualValidate(op.Type()) }
func (op *FillOrderOperation) RequiredAuthorities(*RequiredAuthorities) {}

// FillConvertRequestOperation reports a matured stable conversion.
type FillConvertRequestOperation struct {
	Owner     types.AccountName `json:"owner"`
	RequestID uint32            `json:"request_id"`
	AmountIn  types.Asset       `json:"amount_in"`
	AmountOut types.Asset       `json:"amount_out"`
}

func (op *FillConvertRequestOperation) Type() OpType                          { return OpVirtualFillConvertRequest }
func (op *FillConvertRequestOperation) Validate() error                       { return virtualValidate(op.Type()) }
func (op *FillConvertRequestOperation) RequiredAuthorities(*RequiredAuthorities) {}

// FillVestingWithdrawOperation reports one vesting withdrawal payout.
type FillVestingWithdrawOperation struct {
	FromAccount types.AccountName `json:"from_account"`
	ToAccount   types.AccountName `json:"to_account"`
	Withdrawn   types.Asset       `json:"withdrawn"`
	Deposited   types.Asset       `json:"deposited"`
}

func (op *FillVestingWithdrawOperation) Type() OpType                          { return OpVirtualFillVestingWithdraw }
func (op *FillVestingWithdrawOperation) Validate() error                       { return virtualValidate(op.Type()) }
func (op *FillVestingWithdrawOperation) RequiredAuthorities(*RequiredAuthorities) {}

// FillTransferFromSavingsOperation reports a matured savings
// withdrawal.
type FillTransferFromSavingsOperation struct {
	From      types.AccountName `json:"from"`
	To        types.AccountName `json:"to"`
	Amount    types.Asset       `json:"amount"`
	RequestID uint32            `json:"request_id"`
	Memo      string            `json:"memo"`
}

func (op *FillTransferFromSavingsOperation) Type() OpType {
	return OpVirtualFillTransferFromSavings
}
func (op *FillTransferFromSavingsOperation) Validate() error                       { return virtualValidate(op.Type()) }
func (op *FillTransferFromSavingsOperation) RequiredAuthorities(*RequiredAuthorities) {}

// InterestOperation reports interest paid into a stable balance.
type InterestOperation struct {
	Owner    types.AccountName `json:"owner"`
	Interest types.Asset       `json:"interest"`
}

func (op *InterestOperation) Type() OpType                          { return OpVirtualInterest }
func (op *InterestOperation) Validate() error                       { return virtualValidate(op.Type()) }
func (op *InterestOperation) RequiredAuthorities(*RequiredAuthorities) {}

// LiquidityRewardOperation reports a periodic market-maker payout.
type LiquidityRewardOperation struct {
	Owner  types.AccountName `json:"owner"`
	Payout types.Asset       `json:"payout"`
}

func (op *LiquidityRewardOperation) Type() OpType                          { return OpVirtualLiquidityReward }
func (op *LiquidityRewardOperation) Validate() error                       { return virtualValidate(op.Type()) }
func (op *LiquidityRewardOperation) RequiredAuthorities(*RequiredAuthorities) {}

// ExecuteBidOperation reports a collateral bid consumed during a
// bitasset revival.
type ExecuteBidOperation struct {
	Bidder     types.AccountName `json:"bidder"`
	Debt       types.Asset       `json:"debt"`
	Collateral types.Asset       `json:"collateral"`
}

func (op *ExecuteBidOperation) Type() OpType                          { return OpVirtualExecuteBid }
func (op *ExecuteBidOperation) Validate() error                       { return virtualValidate(op.Type()) }
func (op *ExecuteBidOperation) RequiredAuthorities(*RequiredAuthorities) {}
