package protocol

import (
	"github.com/blockberries/stakeberry/types"
)

// LimitOrderCreateOperation places an order selling AmountToSell for
// at least MinToReceive. The implied price AmountToSell/MinToReceive
// is the worst rate the owner accepts.
type LimitOrderCreateOperation struct {
	Owner        types.AccountName `json:"owner"`
	OrderID      uint32            `json:"order_id"`
	AmountToSell types.Asset       `json:"amount_to_sell"`
	MinToReceive types.Asset       `json:"min_to_receive"`
	FillOrKill   bool              `json:"fill_or_kill"`
	Expiration   types.TimeSec     `json:"expiration"`
}

func (op *LimitOrderCreateOperation) Type() OpType { return OpLimitOrderCreate }

// SellPrice returns the order's limit price, sell asset over receive
// asset.
func (op *LimitOrderCreateOperation) SellPrice() types.Price {
	return types.NewPrice(op.AmountToSell, op.MinToReceive)
}

func (op *LimitOrderCreateOperation) Validate() error {
	if !op.Owner.IsValid() {
		return types.Validationf("invalid owner %q", op.Owner)
	}
	if err := validatePositiveAmount(op.AmountToSell); err != nil {
		return err
	}
	if err := validatePositiveAmount(op.MinToReceive); err != nil {
		return err
	}
	if op.AmountToSell.Symbol == op.MinToReceive.Symbol {
		return types.Validationf("order must trade two different assets")
	}
	return nil
}

func (op *LimitOrderCreateOperation) RequiredAuthorities(req *RequiredAuthorities) {
	req.Active = append(req.Active, op.Owner)
}

// LimitOrderCancelOperation cancels a resting order and refunds the
// unsold balance.
type LimitOrderCancelOperation struct {
	Owner   types.AccountName `json:"owner"`
	OrderID uint32            `json:"order_id"`
}

func (op *LimitOrderCancelOperation) Type() OpType { return OpLimitOrderCancel }

func (op *LimitOrderCancelOperation) Validate() error {
	if !op.Owner.IsValid() {
		return types.Validationf("invalid owner %q", op.Owner)
	}
	return nil
}

func (op *LimitOrderCancelOperation) RequiredAuthorities(req *RequiredAuthorities) {
	req.Active = append(req.Active, op.Owner)
}

// CallOrderUpdateOperation adjusts a margin position's debt and
// collateral by signed deltas. Positive deltas add collateral or
// borrow more debt; negative deltas withdraw or repay. Closing to
// zero debt releases the remaining collateral.
type CallOrderUpdateOperation struct {
	FundingAccount  types.AccountName `json:"funding_account"`
	DeltaCollateral types.Asset       `json:"delta_collateral"`
	DeltaDebt       types.Asset       `json:"delta_debt"`
}

func (op *CallOrderUpdateOperation) Type() OpType { return OpCallOrderUpdate }

func (op *CallOrderUpdateOperation) Validate() error {
	if !op.FundingAccount.IsValid() {
		return types.Validationf("invalid funding account %q", op.FundingAccount)
	}
	if !op.DeltaCollateral.Symbol.IsValid() || !op.DeltaDebt.Symbol.IsValid() {
		return types.Validationf("invalid symbol in call update")
	}
	if op.DeltaCollateral.Amount == 0 && op.DeltaDebt.Amount == 0 {
		return types.Validationf("call update changes nothing")
	}
	return nil
}

func (op *CallOrderUpdateOperation) RequiredAuthorities(req *RequiredAuthorities) {
	req.Active = append(req.Active, op.FundingAccount)
}
