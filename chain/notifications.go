package chain

import (
	"github.com/blockberries/stakeberry/protocol"
	"github.com/blockberries/stakeberry/types"
)

// OperationNotification describes one operation as it is applied,
// including virtual operations the chain generates itself.
type OperationNotification struct {
	TrxID      types.Hash
	BlockNum   uint32
	TrxInBlock int
	OpInTrx    int
	Virtual    bool
	Op         protocol.Operation
}

// observerList holds the registered callbacks. Subscription happens at
// startup before blocks flow, so the slices are not locked.
type observerList struct {
	preOp        []func(*OperationNotification)
	postOp       []func(*OperationNotification)
	appliedBlock []func(*protocol.SignedBlock)
	irreversible []func(uint32)
}

// applyContext tracks where in a block the controller currently is, so
// virtual operations emitted mid-apply carry their position.
type applyContext struct {
	trxID      types.Hash
	blockNum   uint32
	trxInBlock int
	opInTrx    int

	// Keys that signed the transaction being applied. Recovery
	// evaluation checks authorities carried in the operation itself
	// against these.
	sigKeys []protocol.PublicKey
}

// SubscribePreOperation registers fn to run before every operation is
// evaluated.
func (db *Database) SubscribePreOperation(fn func(*OperationNotification)) {
	db.observers.preOp = append(db.observers.preOp, fn)
}

// SubscribePostOperation registers fn to run after every operation,
// including virtual ones.
func (db *Database) SubscribePostOperation(fn func(*OperationNotification)) {
	db.observers.postOp = append(db.observers.postOp, fn)
}

// SubscribeAppliedBlock registers fn to run after each block is fully
// applied and its maintenance pass has finished.
func (db *Database) SubscribeAppliedBlock(fn func(*protocol.SignedBlock)) {
	db.observers.appliedBlock = append(db.observers.appliedBlock, fn)
}

// SubscribeIrreversible registers fn to run when the finality boundary
// advances, with the new last irreversible block number.
func (db *Database) SubscribeIrreversible(fn func(uint32)) {
	db.observers.irreversible = append(db.observers.irreversible, fn)
}

func (db *Database) notifyPreOp(op protocol.Operation) {
	if len(db.observers.preOp) == 0 {
		return
	}
	note := db.noteFor(op, false)
	for _, fn := range db.observers.preOp {
		fn(&note)
	}
}

func (db *Database) notifyPostOp(op protocol.Operation) {
	if len(db.observers.postOp) == 0 {
		return
	}
	note := db.noteFor(op, false)
	for _, fn := range db.observers.postOp {
		fn(&note)
	}
}

// notifyVirtualOp records a chain-generated operation. Virtual ops are
// observational only and never re-enter the evaluators.
func (db *Database) notifyVirtualOp(op protocol.Operation) {
	if len(db.observers.postOp) == 0 {
		return
	}
	note := db.noteFor(op, true)
	for _, fn := range db.observers.postOp {
		fn(&note)
	}
}

func (db *Database) notifyAppliedBlock(b *protocol.SignedBlock) {
	for _, fn := range db.observers.appliedBlock {
		fn(b)
	}
}

func (db *Database) notifyIrreversible(num uint32) {
	for _, fn := range db.observers.irreversible {
		fn(num)
	}
}

func (db *Database) noteFor(op protocol.Operation, virtual bool) OperationNotification {
	return OperationNotification{
		TrxID:      db.applyCtx.trxID,
		BlockNum:   db.applyCtx.blockNum,
		TrxInBlock: db.applyCtx.trxInBlock,
		OpInTrx:    db.applyCtx.opInTrx,
		Virtual:    virtual,
		Op:         op,
	}
}
