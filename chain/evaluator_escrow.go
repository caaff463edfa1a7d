package chain

import (
	"github.com/blockberries/stakeberry/protocol"
	"github.com/blockberries/stakeberry/state"
	"github.com/blockberries/stakeberry/store"
	"github.com/blockberries/stakeberry/types"
)

// escrowFor fetches an escrow and checks the operation names the same
// parties it was created with.
func (db *Database) escrowFor(from types.AccountName, escrowID uint32, to, agent types.AccountName) (*state.EscrowObject, error) {
	e, ok := db.idx.EscrowBy(from, escrowID)
	if !ok {
		return nil, types.Validationf("no escrow %s/%d", from, escrowID)
	}
	if e.To != to || e.Agent != agent {
		return nil, types.Validationf("escrow %s/%d parties do not match", from, escrowID)
	}
	return e, nil
}

func (db *Database) applyEscrowTransfer(op *protocol.EscrowTransferOperation) error {
	if _, err := db.account(op.To); err != nil {
		return err
	}
	if _, err := db.account(op.Agent); err != nil {
		return err
	}
	if _, err := db.asset(op.Amount.Symbol); err != nil {
		return err
	}
	now := db.idx.GlobalProps().Time
	if !op.RatificationDeadline.After(now) {
		return types.Validationf("ratification deadline is in the past")
	}
	if _, ok := db.idx.EscrowBy(op.From, op.EscrowID); ok {
		return types.Validationf("escrow %s/%d already exists", op.From, op.EscrowID)
	}

	if err := db.adjustBalance(op.From, op.Amount.Neg()); err != nil {
		return err
	}
	if op.Fee.Amount > 0 {
		if err := db.adjustBalance(op.From, op.Fee.Neg()); err != nil {
			return err
		}
	}
	_, err := db.idx.Escrows.Create(&state.EscrowObject{
		EscrowID:             op.EscrowID,
		From:                 op.From,
		To:                   op.To,
		Agent:                op.Agent,
		RatificationDeadline: op.RatificationDeadline,
		EscrowExpiration:     op.EscrowExpiration,
		Balance:              op.Amount,
		PendingFee:           op.Fee,
	})
	return err
}

func (db *Database) applyEscrowApprove(op *protocol.EscrowApproveOperation) error {
	e, err := db.escrowFor(op.From, op.EscrowID, op.To, op.Agent)
	if err != nil {
		return err
	}

	if !op.Approve {
		// A rejection by either party dissolves the escrow and refunds
		// everything, fee included.
		if err := db.adjustBalance(e.From, e.Balance); err != nil {
			return err
		}
		if e.PendingFee.Amount > 0 {
			if err := db.adjustBalance(e.From, e.PendingFee); err != nil {
				return err
			}
		}
		return db.idx.Escrows.Remove(e)
	}

	switch op.Who {
	case e.To:
		if e.ToApproved {
			return types.Validationf("escrow %s/%d already approved by recipient", op.From, op.EscrowID)
		}
	case e.Agent:
		if e.AgentApproved {
			return types.Validationf("escrow %s/%d already approved by agent", op.From, op.EscrowID)
		}
	}

	if err := db.idx.Escrows.Modify(e, func(obj store.Object) {
		esc := obj.(*state.EscrowObject)
		if op.Who == esc.To {
			esc.ToApproved = true
		} else {
			esc.AgentApproved = true
		}
	}); err != nil {
		return err
	}

	// The agent earns the fee once both sides have ratified.
	if e.IsApproved() && e.PendingFee.Amount > 0 {
		fee := e.PendingFee
		if err := db.adjustBalance(e.Agent, fee); err != nil {
			return err
		}
		return db.idx.Escrows.Modify(e, func(obj store.Object) {
			obj.(*state.EscrowObject).PendingFee.Amount = 0
		})
	}
	return nil
}

func (db *Database) applyEscrowDispute(op *protocol.EscrowDisputeOperation) error {
	e, err := db.escrowFor(op.From, op.EscrowID, op.To, op.Agent)
	if err != nil {
		return err
	}
	if !e.IsApproved() {
		return types.Validationf("escrow %s/%d is not fully ratified", op.From, op.EscrowID)
	}
	if e.Disputed {
		return types.Validationf("escrow %s/%d is already disputed", op.From, op.EscrowID)
	}
	now := db.idx.GlobalProps().Time
	if !now.Before(e.EscrowExpiration) {
		return types.Validationf("escrow %s/%d has expired", op.From, op.EscrowID)
	}
	return db.idx.Escrows.Modify(e, func(obj store.Object) {
		obj.(*state.EscrowObject).Disputed = true
	})
}

func (db *Database) applyEscrowRelease(op *protocol.EscrowReleaseOperation) error {
	e, err := db.escrowFor(op.From, op.EscrowID, op.To, op.Agent)
	if err != nil {
		return err
	}
	if !e.IsApproved() {
		return types.Validationf("escrow %s/%d is not fully ratified", op.From, op.EscrowID)
	}
	if op.Amount.Symbol != e.Balance.Symbol {
		return types.Validationf("escrow holds %s, not %s", e.Balance.Symbol, op.Amount.Symbol)
	}
	if op.Amount.Amount > e.Balance.Amount {
		return types.Validationf("escrow %s/%d holds %s, %s requested",
			op.From, op.EscrowID, e.Balance, op.Amount)
	}

	now := db.idx.GlobalProps().Time
	switch {
	case e.Disputed:
		// Only the agent resolves a dispute, in either direction.
		if op.Who != e.Agent {
			return types.Validationf("only the agent may release a disputed escrow")
		}
	case now.Before(e.EscrowExpiration):
		// Before expiration each party may release toward the other
		// side only.
		switch op.Who {
		case e.From:
			if op.Receiver != e.To {
				return types.Validationf("sender may only release to the recipient")
			}
		case e.To:
			if op.Receiver != e.From {
				return types.Validationf("recipient may only release back to the sender")
			}
		default:
			return types.Validationf("only a party to the escrow may release it")
		}
	default:
		// After expiration either party may claim to either side.
		if op.Who != e.From && op.Who != e.To {
			return types.Validationf("only a party to the escrow may release it")
		}
	}

	if err := db.adjustBalance(op.Receiver, op.Amount); err != nil {
		return err
	}
	if op.Amount.Amount == e.Balance.Amount {
		return db.idx.Escrows.Remove(e)
	}
	return db.idx.Escrows.Modify(e, func(obj store.Object) {
		obj.(*state.EscrowObject).Balance.Amount -= op.Amount.Amount
	})
}
