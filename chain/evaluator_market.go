package chain

import (
	"github.com/blockberries/stakeberry/protocol"
	"github.com/blockberries/stakeberry/state"
	"github.com/blockberries/stakeberry/types"
)

func (db *Database) applyLimitOrderCreate(op *protocol.LimitOrderCreateOperation) error {
	if _, err := db.account(op.Owner); err != nil {
		return err
	}
	if _, err := db.asset(op.AmountToSell.Symbol); err != nil {
		return err
	}
	if _, err := db.asset(op.MinToReceive.Symbol); err != nil {
		return err
	}
	now := db.idx.GlobalProps().Time
	if !op.Expiration.After(now) {
		return types.Validationf("order expiration is in the past")
	}
	if _, ok := db.idx.LimitOrderBy(op.Owner, op.OrderID); ok {
		return types.Validationf("order %s/%d already exists", op.Owner, op.OrderID)
	}

	if err := db.adjustBalance(op.Owner, op.AmountToSell.Neg()); err != nil {
		return err
	}
	obj, err := db.idx.LimitOrders.Create(&state.LimitOrder{
		Created:    now,
		Expiration: op.Expiration,
		Seller:     op.Owner,
		OrderID:    op.OrderID,
		ForSale:    op.AmountToSell.Amount,
		SellPrice:  op.SellPrice(),
	})
	if err != nil {
		return err
	}

	filled, err := db.applyOrder(obj.(*state.LimitOrder))
	if err != nil {
		return err
	}
	if op.FillOrKill && !filled {
		return types.Validationf("fill-or-kill order %s/%d not fully filled", op.Owner, op.OrderID)
	}
	return nil
}

func (db *Database) applyLimitOrderCancel(op *protocol.LimitOrderCancelOperation) error {
	order, ok := db.idx.LimitOrderBy(op.Owner, op.OrderID)
	if !ok {
		return types.Validationf("no order %s/%d", op.Owner, op.OrderID)
	}
	return db.cancelOrder(order)
}

func (db *Database) applyCallOrderUpdate(op *protocol.CallOrderUpdateOperation) error {
	debtSymbol := op.DeltaDebt.Symbol
	asset, err := db.asset(debtSymbol)
	if err != nil {
		return err
	}
	if !asset.MarketIssued {
		return types.Validationf("%s is not market issued", debtSymbol)
	}
	bit, err := db.bitasset(debtSymbol)
	if err != nil {
		return err
	}
	if bit.HasSettlement() {
		return types.Validationf("%s is settled, no new positions", debtSymbol)
	}
	if bit.CurrentFeed.IsNull() {
		return types.Validationf("%s has no price feed", debtSymbol)
	}
	if op.DeltaCollateral.Symbol != bit.Options.ShortBackingAsset {
		return types.Validationf("collateral must be %s", bit.Options.ShortBackingAsset)
	}

	call, hasCall := db.idx.CallOrderBy(op.FundingAccount, debtSymbol)
	var oldCollateral, oldDebt types.Share
	if hasCall {
		oldCollateral, oldDebt = call.Collateral, call.Debt
	}
	newCollateral := oldCollateral + op.DeltaCollateral.Amount
	newDebt := oldDebt + op.DeltaDebt.Amount
	if newCollateral < 0 || newDebt < 0 {
		return types.Validationf("position %s/%s cannot go negative", op.FundingAccount, debtSymbol)
	}

	// Collateral moves between the account and the position; debt is
	// minted into or burned out of existence.
	if op.DeltaCollateral.Amount != 0 {
		if err := db.adjustBalance(op.FundingAccount, op.DeltaCollateral.Neg()); err != nil {
			return err
		}
	}
	if op.DeltaDebt.Amount > 0 {
		dyn, ok := db.idx.AssetDynamic(debtSymbol)
		if !ok {
			return types.Consistencyf("asset %s has no supply record", debtSymbol)
		}
		if dyn.CurrentSupply+op.DeltaDebt.Amount > asset.Options.MaxSupply {
			return types.Validationf("borrowing %s exceeds max supply %d",
				op.DeltaDebt, asset.Options.MaxSupply)
		}
		if err := db.adjustSupply(op.DeltaDebt); err != nil {
			return err
		}
		if err := db.adjustBalance(op.FundingAccount, op.DeltaDebt); err != nil {
			return err
		}
	} else if op.DeltaDebt.Amount < 0 {
		if err := db.adjustBalance(op.FundingAccount, op.DeltaDebt); err != nil {
			return err
		}
		if err := db.adjustSupply(op.DeltaDebt); err != nil {
			return err
		}
	}

	if newDebt == 0 {
		if !hasCall {
			return types.Validationf("no position %s/%s to close", op.FundingAccount, debtSymbol)
		}
		if newCollateral > 0 {
			refund := types.NewAsset(newCollateral, bit.Options.ShortBackingAsset)
			if err := db.adjustBalance(op.FundingAccount, refund); err != nil {
				return err
			}
		}
		return db.idx.CallOrders.Remove(call)
	}
	if newCollateral == 0 {
		return types.Validationf("position %s/%s has debt but no collateral", op.FundingAccount, debtSymbol)
	}

	debtAsset := types.NewAsset(newDebt, debtSymbol)
	collAsset := types.NewAsset(newCollateral, bit.Options.ShortBackingAsset)
	callPrice := types.CallPrice(debtAsset, collAsset, bit.CurrentFeed.MaintenanceCollateralRatio)

	check := state.CallOrder{Collateral: newCollateral, Debt: newDebt, CallPrice: callPrice}
	if undercollateralized(&check, bit.CurrentFeed) {
		return types.Validationf("position %s/%s below maintenance collateral",
			op.FundingAccount, debtSymbol)
	}

	if hasCall {
		if err := db.modifyCall(call, func(c *state.CallOrder) {
			c.Collateral = newCollateral
			c.Debt = newDebt
			c.CallPrice = callPrice
		}); err != nil {
			return err
		}
	} else {
		if _, err := db.idx.CallOrders.Create(&state.CallOrder{
			Borrower:   op.FundingAccount,
			Collateral: newCollateral,
			Debt:       newDebt,
			CallPrice:  callPrice,
		}); err != nil {
			return err
		}
	}
	return db.checkCallOrders(debtSymbol)
}
