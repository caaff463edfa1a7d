package chain

import (
	"github.com/blockberries/stakeberry/protocol"
	"github.com/blockberries/stakeberry/types"
)

// evaluator applies one operation against state. Stateless validation
// has already happened; evaluators check everything that needs state.
type evaluator func(op protocol.Operation) error

// EvaluatorRegistry dispatches operations to their evaluators.
type EvaluatorRegistry struct {
	evals map[protocol.OpType]evaluator
}

// evalAs adapts a typed evaluator to the generic signature.
func evalAs[T protocol.Operation](fn func(T) error) evaluator {
	return func(op protocol.Operation) error {
		typed, ok := op.(T)
		if !ok {
			return types.Consistencyf("evaluator received %T for %s", op, op.Type())
		}
		return fn(typed)
	}
}

func newEvaluatorRegistry(db *Database) *EvaluatorRegistry {
	return &EvaluatorRegistry{evals: map[protocol.OpType]evaluator{
		protocol.OpAccountCreate:          evalAs(db.applyAccountCreate),
		protocol.OpAccountUpdate:          evalAs(db.applyAccountUpdate),
		protocol.OpAccountWitnessVote:     evalAs(db.applyAccountWitnessVote),
		protocol.OpAccountWitnessProxy:    evalAs(db.applyAccountWitnessProxy),
		protocol.OpDeclineVotingRights:    evalAs(db.applyDeclineVotingRights),
		protocol.OpRequestAccountRecovery: evalAs(db.applyRequestAccountRecovery),
		protocol.OpRecoverAccount:         evalAs(db.applyRecoverAccount),
		protocol.OpChangeRecoveryAccount:  evalAs(db.applyChangeRecoveryAccount),

		protocol.OpTransfer:                  evalAs(db.applyTransfer),
		protocol.OpTransferToVesting:         evalAs(db.applyTransferToVesting),
		protocol.OpWithdrawVesting:           evalAs(db.applyWithdrawVesting),
		protocol.OpSetWithdrawVestingRoute:   evalAs(db.applySetWithdrawVestingRoute),
		protocol.OpDelegateVestingShares:     evalAs(db.applyDelegateVestingShares),
		protocol.OpTransferToSavings:         evalAs(db.applyTransferToSavings),
		protocol.OpTransferFromSavings:       evalAs(db.applyTransferFromSavings),
		protocol.OpCancelTransferFromSavings: evalAs(db.applyCancelTransferFromSavings),
		protocol.OpConvert:                   evalAs(db.applyConvert),

		protocol.OpEscrowTransfer: evalAs(db.applyEscrowTransfer),
		protocol.OpEscrowApprove:  evalAs(db.applyEscrowApprove),
		protocol.OpEscrowDispute:  evalAs(db.applyEscrowDispute),
		protocol.OpEscrowRelease:  evalAs(db.applyEscrowRelease),

		protocol.OpWitnessUpdate: evalAs(db.applyWitnessUpdate),
		protocol.OpFeedPublish:   evalAs(db.applyFeedPublish),

		protocol.OpAssetCreate:       evalAs(db.applyAssetCreate),
		protocol.OpAssetUpdate:       evalAs(db.applyAssetUpdate),
		protocol.OpAssetIssue:        evalAs(db.applyAssetIssue),
		protocol.OpAssetReserve:      evalAs(db.applyAssetReserve),
		protocol.OpAssetPublishFeed:  evalAs(db.applyAssetPublishFeed),
		protocol.OpAssetGlobalSettle: evalAs(db.applyAssetGlobalSettle),
		protocol.OpAssetSettle:       evalAs(db.applyAssetSettle),
		protocol.OpBidCollateral:     evalAs(db.applyBidCollateral),

		protocol.OpLimitOrderCreate: evalAs(db.applyLimitOrderCreate),
		protocol.OpLimitOrderCancel: evalAs(db.applyLimitOrderCancel),
		protocol.OpCallOrderUpdate:  evalAs(db.applyCallOrderUpdate),
	}}
}

// Get returns the evaluator for t.
func (r *EvaluatorRegistry) Get(t protocol.OpType) (evaluator, bool) {
	ev, ok := r.evals[t]
	return ev, ok
}

// applyOperation validates and evaluates one operation.
func (db *Database) applyOperation(op protocol.Operation) error {
	t := op.Type()
	if t.IsVirtual() {
		return types.Validationf("virtual operation %s in transaction", t)
	}
	if !db.skipFlags.Has(SkipValidation) {
		if err := op.Validate(); err != nil {
			return types.WithOp(t.String(), err)
		}
	}
	ev, ok := db.evaluators.Get(t)
	if !ok {
		return types.Validationf("no evaluator registered for %s", t)
	}
	db.notifyPreOp(op)
	if err := ev(op); err != nil {
		return types.WithOp(t.String(), err)
	}
	db.notifyPostOp(op)
	return nil
}
