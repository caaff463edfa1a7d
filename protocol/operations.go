package protocol

import (
	"fmt"

	"github.com/blockberries/cramberry/pkg/cramberry"

	"github.com/blockberries/stakeberry/types"
)

// OpType tags the concrete operation payload on the wire. Tags are
// consensus-critical and never reused.
type OpType uint16

const (
	OpUnknown OpType = iota

	// account family
	OpAccountCreate
	OpAccountUpdate
	OpAccountWitnessVote
	OpAccountWitnessProxy
	OpDeclineVotingRights
	OpRequestAccountRecovery
	OpRecoverAccount
	OpChangeRecoveryAccount

	// balance family
	OpTransfer
	OpTransferToVesting
	OpWithdrawVesting
	OpSetWithdrawVestingRoute
	OpDelegateVestingShares
	OpTransferToSavings
	OpTransferFromSavings
	OpCancelTransferFromSavings
	OpConvert

	// escrow family
	OpEscrowTransfer
	OpEscrowApprove
	OpEscrowDispute
	OpEscrowRelease

	// witness family
	OpWitnessUpdate
	OpFeedPublish

	// asset family
	OpAssetCreate
	OpAssetUpdate
	OpAssetIssue
	OpAssetReserve
	OpAssetPublishFeed
	OpAssetGlobalSettle
	OpAssetSettle
	OpBidCollateral

	// market family
	OpLimitOrderCreate
	OpLimitOrderCancel
	OpCallOrderUpdate

	// virtual operations; produced by the chain, never submitted
	OpVirtualFillOrder
	OpVirtualFillConvertRequest
	OpVirtualFillVestingWithdraw
	OpVirtualFillTransferFromSavings
	OpVirtualInterest
	OpVirtualLiquidityReward
	OpVirtualExecuteBid

	opTypeCount
)

// String returns the operation name.
func (t OpType) String() string {
	if int(t) < len(opNames) {
		return opNames[t]
	}
	return fmt.Sprintf("op(%d)", uint16(t))
}

var opNames = [...]string{
	OpUnknown:                        "unknown",
	OpAccountCreate:                  "account_create",
	OpAccountUpdate:                  "account_update",
	OpAccountWitnessVote:             "account_witness_vote",
	OpAccountWitnessProxy:            "account_witness_proxy",
	OpDeclineVotingRights:            "decline_voting_rights",
	OpRequestAccountRecovery:         "request_account_recovery",
	OpRecoverAccount:                 "recover_account",
	OpChangeRecoveryAccount:          "change_recovery_account",
	OpTransfer:                       "transfer",
	OpTransferToVesting:              "transfer_to_vesting",
	OpWithdrawVesting:                "withdraw_vesting",
	OpSetWithdrawVestingRoute:        "set_withdraw_vesting_route",
	OpDelegateVestingShares:          "delegate_vesting_shares",
	OpTransferToSavings:              "transfer_to_savings",
	OpTransferFromSavings:            "transfer_from_savings",
	OpCancelTransferFromSavings:      "cancel_transfer_from_savings",
	OpConvert:                        "convert",
	OpEscrowTransfer:                 "escrow_transfer",
	OpEscrowApprove:                  "escrow_approve",
	OpEscrowDispute:                  "escrow_dispute",
	OpEscrowRelease:                  "escrow_release",
	OpWitnessUpdate:                  "witness_update",
	OpFeedPublish:                    "feed_publish",
	OpAssetCreate:                    "asset_create",
	OpAssetUpdate:                    "asset_update",
	OpAssetIssue:                     "asset_issue",
	OpAssetReserve:                   "asset_reserve",
	OpAssetPublishFeed:               "asset_publish_feed",
	OpAssetGlobalSettle:              "asset_global_settle",
	OpAssetSettle:                    "asset_settle",
	OpBidCollateral:                  "bid_collateral",
	OpLimitOrderCreate:               "limit_order_create",
	OpLimitOrderCancel:               "limit_order_cancel",
	OpCallOrderUpdate:                "call_order_update",
	OpVirtualFillOrder:               "fill_order",
	OpVirtualFillConvertRequest:      "fill_convert_request",
	OpVirtualFillVestingWithdraw:     "fill_vesting_withdraw",
	OpVirtualFillTransferFromSavings: "fill_transfer_from_savings",
	OpVirtualInterest:                "interest",
	OpVirtualLiquidityReward:         "liquidity_reward",
	OpVirtualExecuteBid:              "execute_bid",
}

// IsVirtual reports whether the type is produced by the chain itself.
// Virtual operations are rejected inside transactions.
func (t OpType) IsVirtual() bool {
	return t >= OpVirtualFillOrder && t < opTypeCount
}

// IsMarket reports whether the operation moves funds through the
// market and is charged market bandwidth.
func (t OpType) IsMarket() bool {
	switch t {
	case OpTransfer, OpConvert, OpLimitOrderCreate, OpLimitOrderCancel,
		OpCallOrderUpdate, OpAssetSettle, OpBidCollateral:
		return true
	}
	return false
}

// RequiredAuthorities collects which accounts must have signed at each
// authority level for an operation to execute.
type RequiredAuthorities struct {
	Owner  []types.AccountName
	Active []types.AccountName
}

// Operation is one atomic state transition inside a transaction.
// Validate performs stateless checks only; everything that needs state
// happens in the evaluator.
type Operation interface {
	Type() OpType
	Validate() error
	RequiredAuthorities(req *RequiredAuthorities)
}

// newOperation builds the zero payload for a tag.
func newOperation(t OpType) (Operation, error) {
	switch t {
	case OpAccountCreate:
		return &AccountCreateOperation{}, nil
	case OpAccountUpdate:
		return &AccountUpdateOperation{}, nil
	case OpAccountWitnessVote:
		return &AccountWitnessVoteOperation{}, nil
	case OpAccountWitnessProxy:
		return &AccountWitnessProxyOperation{}, nil
	case OpDeclineVotingRights:
		return &DeclineVotingRightsOperation{}, nil
	case OpRequestAccountRecovery:
		return &RequestAccountRecoveryOperation{}, nil
	case OpRecoverAccount:
		return &RecoverAccountOperation{}, nil
	case OpChangeRecoveryAccount:
		return &ChangeRecoveryAccountOperation{}, nil
	case OpTransfer:
		return &TransferOperation{}, nil
	case OpTransferToVesting:
		return &TransferToVestingOperation{}, nil
	case OpWithdrawVesting:
		return &WithdrawVestingOperation{}, nil
	case OpSetWithdrawVestingRoute:
		return &SetWithdrawVestingRouteOperation{}, nil
	case OpDelegateVestingShares:
		return &DelegateVestingSharesOperation{}, nil
	case OpTransferToSavings:
		return &TransferToSavingsOperation{}, nil
	case OpTransferFromSavings:
		return &TransferFromSavingsOperation{}, nil
	case OpCancelTransferFromSavings:
		return &CancelTransferFromSavingsOperation{}, nil
	case OpConvert:
		return &ConvertOperation{}, nil
	case OpEscrowTransfer:
		return &EscrowTransferOperation{}, nil
	case OpEscrowApprove:
		return &EscrowApproveOperation{}, nil
	case OpEscrowDispute:
		return &EscrowDisputeOperation{}, nil
	case OpEscrowRelease:
		return &EscrowReleaseOperation{}, nil
	case OpWitnessUpdate:
		return &WitnessUpdateOperation{}, nil
	case OpFeedPublish:
		return &FeedPublishOperation{}, nil
	case OpAssetCreate:
		return &AssetCreateOperation{}, nil
	case OpAssetUpdate:
		return &AssetUpdateOperation{}, nil
	case OpAssetIssue:
		return &AssetIssueOperation{}, nil
	case OpAssetReserve:
		return &AssetReserveOperation{}, nil
	case OpAssetPublishFeed:
		return &AssetPublishFeedOperation{}, nil
	case OpAssetGlobalSettle:
		return &AssetGlobalSettleOperation{}, nil
	case OpAssetSettle:
		return &AssetSettleOperation{}, nil
	case OpBidCollateral:
		return &BidCollateralOperation{}, nil
	case OpLimitOrderCreate:
		return &LimitOrderCreateOperation{}, nil
	case OpLimitOrderCancel:
		return &LimitOrderCancelOperation{}, nil
	case OpCallOrderUpdate:
		return &CallOrderUpdateOperation{}, nil
	}
	return nil, types.Validationf("unknown operation tag %d", uint16(t))
}

// MarshalOperation encodes an operation as tag + payload.
func MarshalOperation(op Operation) ([]byte, error) {
	payload, err := cramberry.Marshal(op)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", op.Type(), err)
	}

	w := cramberry.GetWriter()
	defer cramberry.PutWriter(w)

	w.WriteTypeID(cramberry.TypeID(op.Type()))
	w.WriteRawBytes(payload)

	if w.Err() != nil {
		return nil, w.Err()
	}
	return w.BytesCopy(), nil
}

// UnmarshalOperation decodes a tag + payload envelope.
func UnmarshalOperation(data []byte) (Operation, error) {
	r := cramberry.NewReader(data)
	typeID := r.ReadTypeID()
	if r.Err() != nil {
		return nil, fmt.Errorf("read operation tag: %w", r.Err())
	}
	op, err := newOperation(OpType(typeID))
	if err != nil {
		return nil, err
	}
	if err := cramberry.Unmarshal(r.Remaining(), op); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", op.Type(), err)
	}
	return op, nil
}
