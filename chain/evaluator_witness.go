package chain

import (
	"github.com/blockberries/stakeberry/protocol"
	"github.com/blockberries/stakeberry/state"
	"github.com/blockberries/stakeberry/types"
)

func (db *Database) applyWitnessUpdate(op *protocol.WitnessUpdateOperation) error {
	if _, err := db.account(op.Owner); err != nil {
		return err
	}
	if op.Fee.Symbol != CoreSymbol {
		return types.Validationf("witness fee must be %s", CoreSymbol)
	}
	if op.Props.AccountCreationFee.Symbol != CoreSymbol {
		return types.Validationf("account creation fee must be %s", CoreSymbol)
	}

	if w, ok := db.idx.Witness(op.Owner); ok {
		return db.modifyWitness(w, func(w *state.Witness) {
			w.URL = op.URL
			w.SigningKey = op.BlockSigningKey
			w.Props = op.Props
		})
	}

	now := db.idx.GlobalProps().Time
	_, err := db.idx.Witnesses.Create(&state.Witness{
		Owner:              op.Owner,
		Created:            now,
		URL:                op.URL,
		SigningKey:         op.BlockSigningKey,
		Props:              op.Props,
		VirtualLastUpdate:  db.idx.Schedule().CurrentVirtualTime,
		StableExchangeRate: types.Price{},
	})
	return err
}

func (db *Database) applyFeedPublish(op *protocol.FeedPublishOperation) error {
	w, err := db.witness(op.Publisher)
	if err != nil {
		return err
	}
	rate := op.ExchangeRate
	if rate.Base.Symbol != CoreSymbol || rate.Quote.Symbol != StableSymbol {
		return types.Validationf("feed must price %s in %s", CoreSymbol, StableSymbol)
	}
	now := db.idx.GlobalProps().Time
	return db.modifyWitness(w, func(w *state.Witness) {
		w.StableExchangeRate = rate
		w.LastExchangeUpdate = now
	})
}
