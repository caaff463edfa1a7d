package protocol

import (
	"github.com/blockberries/stakeberry/types"
)

// EscrowTransferOperation places funds with a third-party agent until
// both sides ratify the escrow.
type EscrowTransferOperation struct {
	From                 types.AccountName `json:"from"`
	To                   types.AccountName `json:"to"`
	Agent                types.AccountName `json:"agent"`
	EscrowID             uint32            `json:"escrow_id"`
	Amount               types.Asset       `json:"amount"`
	Fee                  types.Asset       `json:"fee"`
	RatificationDeadline types.TimeSec     `json:"ratification_deadline"`
	EscrowExpiration     types.TimeSec     `json:"escrow_expiration"`
	JSONMetadata         string            `json:"json_metadata"`
}

func (op *EscrowTransferOperation) Type() OpType { return OpEscrowTransfer }

func (op *EscrowTransferOperation) Validate() error {
	if err := validateTransferParties(op.From, op.To); err != nil {
		return err
	}
	if !op.Agent.IsValid() {
		return types.Validationf("invalid agent %q", op.Agent)
	}
	if op.Agent == op.From || op.Agent == op.To {
		return types.Validationf("agent must be a third party")
	}
	if err := validatePositiveAmount(op.Amount); err != nil {
		return err
	}
	if op.Fee.Amount < 0 {
		return types.Validationf("negative escrow fee")
	}
	if !op.RatificationDeadline.Before(op.EscrowExpiration) {
		return types.Validationf("ratification deadline must precede expiration")
	}
	return nil
}

func (op *EscrowTransferOperation) RequiredAuthorities(req *RequiredAuthorities) {
	req.Active = append(req.Active, op.From)
}

// EscrowApproveOperation records the agent's or recipient's approval.
// Disapproving returns the funds to the sender.
type EscrowApproveOperation struct {
	From     types.AccountName `json:"from"`
	To       types.AccountName `json:"to"`
	Agent    types.AccountName `json:"agent"`
	Who      types.AccountName `json:"who"`
	EscrowID uint32            `json:"escrow_id"`
	Approve  bool              `json:"approve"`
}

func (op *EscrowApproveOperation) Type() OpType { return OpEscrowApprove }

func (op *EscrowApproveOperation) Validate() error {
	if err := validateTransferParties(op.From, op.To); err != nil {
		return err
	}
	if !op.Agent.IsValid() {
		return types.Validationf("invalid agent %q", op.Agent)
	}
	if op.Who != op.To && op.Who != op.Agent {
		return types.Validationf("approver must be the recipient or the agent")
	}
	return nil
}

func (op *EscrowApproveOperation) RequiredAuthorities(req *RequiredAuthorities) {
	req.Active = append(req.Active, op.Who)
}

// EscrowDisputeOperation freezes an escrow so only the agent can
// release it.
type EscrowDisputeOperation struct {
	From     types.AccountName `json:"from"`
	To       types.AccountName `json:"to"`
	Agent    types.AccountName `json:"agent"`
	Who      types.AccountName `json:"who"`
	EscrowID uint32            `json:"escrow_id"`
}

func (op *EscrowDisputeOperation) Type() OpType { return OpEscrowDispute }

func (op *EscrowDisputeOperation) Validate() error {
	if err := validateTransferParties(op.From, op.To); err != nil {
		return err
	}
	if op.Who != op.From && op.Who != op.To {
		return types.Validationf("only a party to the escrow may dispute")
	}
	return nil
}

func (op *EscrowDisputeOperation) RequiredAuthorities(req *RequiredAuthorities) {
	req.Active = append(req.Active, op.Who)
}

// EscrowReleaseOperation pays escrowed funds out to one of the
// parties. Who may release, and to whom, depends on approval and
// dispute state; the evaluator enforces it.
type EscrowReleaseOperation struct {
	From     types.AccountName `json:"from"`
	To       types.AccountName `json:"to"`
	Agent    types.AccountName `json:"agent"`
	Who      types.AccountName `json:"who"`
	Receiver types.AccountName `json:"receiver"`
	EscrowID uint32            `json:"escrow_id"`
	Amount   types.Asset       `json:"amount"`
}

func (op *EscrowReleaseOperation) Type() OpType { return OpEscrowRelease }

func (op *EscrowReleaseOperation) Validate() error {
	if err := validateTransferParties(op.From, op.To); err != nil {
		return err
	}
	if !op.Who.IsValid() {
		return types.Validationf("invalid who %q", op.Who)
	}
	if op.Receiver != op.From && op.Receiver != op.To {
		return types.Validationf("receiver must be a party to the escrow")
	}
	return validatePositiveAmount(op.Amount)
}

func (op *EscrowReleaseOperation) RequiredAuthorities(req *RequiredAuthorities) {
	req.Active = append(req.Active, op.Who)
}
