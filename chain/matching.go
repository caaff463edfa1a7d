package chain

import (
	"github.com/blockberries/stakeberry/protocol"
	"github.com/blockberries/stakeberry/state"
	"github.com/blockberries/stakeberry/store"
	"github.com/blockberries/stakeberry/types"
)

// bestOppositeOrder returns the best-priced resting order selling
// quote-for-base against an order selling base-for-quote, or nil.
func (db *Database) bestOppositeOrder(sell, receive types.AssetSymbol) *state.LimitOrder {
	probe := &state.LimitOrder{SellPrice: types.MaxPrice(receive, sell)}
	var best *state.LimitOrder
	db.idx.LimitOrders.Index(state.ByPrice).AscendFrom(probe, func(obj store.Object) bool {
		o := obj.(*state.LimitOrder)
		if o.SellPrice.Base.Symbol != receive || o.SellPrice.Quote.Symbol != sell {
			return false
		}
		best = o
		return false
	})
	return best
}

// applyOrder matches a freshly created order against the book. Trades
// execute at the resting order's price. Returns whether the new order
// was fully filled.
func (db *Database) applyOrder(order *state.LimitOrder) (bool, error) {
	sell := order.SellPrice.Base.Symbol
	receive := order.SellPrice.Quote.Symbol

	for {
		cur, ok := db.idx.LimitOrders.Get(order.ID)
		if !ok {
			return true, nil
		}
		order = cur.(*state.LimitOrder)

		maker := db.bestOppositeOrder(sell, receive)
		if maker == nil {
			return false, nil
		}
		// Crossing requires the taker to accept the maker's rate.
		matchPrice := maker.SellPrice.Invert()
		if order.SellPrice.Cmp(matchPrice) < 0 {
			return false, nil
		}

		takerPays := order.AmountForSale()
		if capacity := maker.AmountToReceive(); capacity.Amount < takerPays.Amount {
			takerPays = capacity
		}
		takerReceives := takerPays.Mul(matchPrice)
		if takerReceives.Amount > maker.ForSale {
			takerReceives = maker.AmountForSale()
		}
		if takerReceives.Amount == 0 {
			if takerPays.Amount == order.ForSale {
				// The taker's remainder buys nothing at any resting
				// price; it is dust.
				return true, db.cancelOrder(order)
			}
			// The maker cannot pay even one unit at its own price.
			if err := db.cancelOrder(maker); err != nil {
				return false, err
			}
			continue
		}

		db.notifyVirtualOp(&protocol.FillOrderOperation{
			CurrentOwner: order.Seller,
			CurrentID:    order.ID,
			CurrentPays:  takerPays,
			OpenOwner:    maker.Seller,
			OpenID:       maker.ID,
			OpenPays:     takerReceives,
		})

		takerDone, err := db.fillOrder(order, takerPays, takerReceives)
		if err != nil {
			return false, err
		}
		if _, err := db.fillOrder(maker, takerReceives, takerPays); err != nil {
			return false, err
		}
		if takerDone {
			return true, nil
		}
	}
}

// fillOrder settles one side of a match: the order pays out of its
// escrowed balance and its owner is credited with the proceeds. A
// remainder too small to ever execute is cancelled. Returns whether
// the order is gone.
func (db *Database) fillOrder(order *state.LimitOrder, pays, receives types.Asset) (bool, error) {
	if pays.Amount > order.ForSale {
		return false, types.Consistencyf("order %d pays %s with only %d for sale", order.ID, pays, order.ForSale)
	}
	if err := db.adjustBalance(order.Seller, receives); err != nil {
		return false, err
	}
	if err := db.adjustLiquidity(order.Seller, pays); err != nil {
		return false, err
	}

	if pays.Amount == order.ForSale {
		return true, db.idx.LimitOrders.Remove(order)
	}
	if err := db.idx.LimitOrders.Modify(order, func(obj store.Object) {
		obj.(*state.LimitOrder).ForSale -= pays.Amount
	}); err != nil {
		return false, err
	}
	if order.AmountToReceive().Amount == 0 {
		return true, db.cancelOrder(order)
	}
	return false, nil
}

// cancelOrder removes a resting order and refunds the unsold balance.
func (db *Database) cancelOrder(order *state.LimitOrder) error {
	if err := db.adjustBalance(order.Seller, order.AmountForSale()); err != nil {
		return err
	}
	return db.idx.LimitOrders.Remove(order)
}

// adjustLiquidity records traded volume in the core/stable market for
// the periodic market-maker reward. Other markets earn nothing.
func (db *Database) adjustLiquidity(owner types.AccountName, paid types.Asset) error {
	if paid.Symbol != CoreSymbol && paid.Symbol != StableSymbol {
		return nil
	}
	now := db.idx.GlobalProps().Time

	lr, ok := db.idx.LiquidityReward(owner)
	if !ok {
		obj, err := db.idx.LiquidityRewards.Create(&state.LiquidityRewardBalance{Owner: owner})
		if err != nil {
			return err
		}
		lr = obj.(*state.LiquidityRewardBalance)
	}
	return db.idx.LiquidityRewards.Modify(lr, func(obj store.Object) {
		l := obj.(*state.LiquidityRewardBalance)
		if paid.Symbol == CoreSymbol {
			l.CoreVolume += paid.Amount
		} else {
			l.StableVolume += paid.Amount
		}
		l.UpdateWeight()
		l.LastUpdate = now
	})
}
