package protocol

import (
	"github.com/blockberries/stakeberry/types"
)

// AccountCreateOperation registers a new account paid for by an
// existing one. The fee is burned into the new account's vesting
// balance.
type AccountCreateOperation struct {
	Fee            types.Asset       `json:"fee"`
	Creator        types.AccountName `json:"creator"`
	NewAccountName types.AccountName `json:"new_account_name"`
	Owner          Authority         `json:"owner"`
	Active         Authority         `json:"active"`
	MemoKey        PublicKey         `json:"memo_key"`
	JSONMetadata   string            `json:"json_metadata"`
}

func (op *AccountCreateOperation) Type() OpType { return OpAccountCreate }

func (op *AccountCreateOperation) Validate() error {
	if !op.Creator.IsValid() {
		return types.Validationf("invalid creator %q", op.Creator)
	}
	if !op.NewAccountName.IsValid() {
		return types.Validationf("invalid new account name %q", op.NewAccountName)
	}
	if op.Fee.Amount < 0 {
		return types.Validationf("negative creation fee")
	}
	if err := op.Owner.Validate(); err != nil {
		return err
	}
	if err := op.Active.Validate(); err != nil {
		return err
	}
	if !op.MemoKey.IsValid() {
		return types.Validationf("invalid memo key")
	}
	return nil
}

func (op *AccountCreateOperation) RequiredAuthorities(req *RequiredAuthorities) {
	req.Active = append(req.Active, op.Creator)
}

// AccountUpdateOperation changes an account's authorities or memo key.
// Updating the owner authority requires the owner authority itself.
type AccountUpdateOperation struct {
	Account      types.AccountName `json:"account"`
	Owner        *Authority        `json:"owner,omitempty"`
	Active       *Authority        `json:"active,omitempty"`
	MemoKey      PublicKey         `json:"memo_key,omitempty"`
	JSONMetadata string            `json:"json_metadata"`
}

func (op *AccountUpdateOperation) Type() OpType { return OpAccountUpdate }

func (op *AccountUpdateOperation) Validate() error {
	if !op.Account.IsValid() {
		return types.Validationf("invalid account %q", op.Account)
	}
	if op.Owner != nil {
		if err := op.Owner.Validate(); err != nil {
			return err
		}
	}
	if op.Active != nil {
		if err := op.Active.Validate(); err != nil {
			return err
		}
	}
	if len(op.MemoKey) != 0 && !op.MemoKey.IsValid() {
		return types.Validationf("invalid memo key")
	}
	return nil
}

func (op *AccountUpdateOperation) RequiredAuthorities(req *RequiredAuthorities) {
	if op.Owner != nil {
		req.Owner = append(req.Owner, op.Account)
	} else {
		req.Active = append(req.Active, op.Account)
	}
}

// AccountWitnessVoteOperation approves or unapproves a witness.
type AccountWitnessVoteOperation struct {
	Account types.AccountName `json:"account"`
	Witness types.AccountName `json:"witness"`
	Approve bool              `json:"approve"`
}

func (op *AccountWitnessVoteOperation) Type() OpType { return OpAccountWitnessVote }

func (op *AccountWitnessVoteOperation) Validate() error {
	if !op.Account.IsValid() {
		return types.Validationf("invalid account %q", op.Account)
	}
	if !op.Witness.IsValid() {
		return types.Validationf("invalid witness %q", op.Witness)
	}
	return nil
}

func (op *AccountWitnessVoteOperation) RequiredAuthorities(req *RequiredAuthorities) {
	req.Active = append(req.Active, op.Account)
}

// AccountWitnessProxyOperation delegates all witness voting to another
// account. An empty proxy clears the delegation.
type AccountWitnessProxyOperation struct {
	Account types.AccountName `json:"account"`
	Proxy   types.AccountName `json:"proxy"`
}

func (op *AccountWitnessProxyOperation) Type() OpType { return OpAccountWitnessProxy }

func (op *AccountWitnessProxyOperation) Validate() error {
	if !op.Account.IsValid() {
		return types.Validationf("invalid account %q", op.Account)
	}
	if !op.Proxy.IsEmpty() && !op.Proxy.IsValid() {
		return types.Validationf("invalid proxy %q", op.Proxy)
	}
	if op.Proxy == op.Account {
		return types.Validationf("cannot proxy to self")
	}
	return nil
}

func (op *AccountWitnessProxyOperation) RequiredAuthorities(req *RequiredAuthorities) {
	req.Active = append(req.Active, op.Account)
}

// DeclineVotingRightsOperation irreversibly gives up voting rights
// after a delay.
type DeclineVotingRightsOperation struct {
	Account types.AccountName `json:"account"`
	Decline bool              `json:"decline"`
}

func (op *DeclineVotingRightsOperation) Type() OpType { return OpDeclineVotingRights }

func (op *DeclineVotingRightsOperation) Validate() error {
	if !op.Account.IsValid() {
		return types.Validationf("invalid account %q", op.Account)
	}
	return nil
}

func (op *DeclineVotingRightsOperation) RequiredAuthorities(req *RequiredAuthorities) {
	req.Owner = append(req.Owner, op.Account)
}

// RequestAccountRecoveryOperation lets an account's designated
// recovery partner propose a replacement owner authority.
type RequestAccountRecoveryOperation struct {
	RecoveryAccount   types.AccountName `json:"recovery_account"`
	AccountToRecover  types.AccountName `json:"account_to_recover"`
	NewOwnerAuthority Authority         `json:"new_owner_authority"`
}

func (op *RequestAccountRecoveryOperation) Type() OpType { return OpRequestAccountRecovery }

func (op *RequestAccountRecoveryOperation) Validate() error {
	if !op.RecoveryAccount.IsValid() {
		return types.Validationf("invalid recovery account %q", op.RecoveryAccount)
	}
	if !op.AccountToRecover.IsValid() {
		return types.Validationf("invalid account to recover %q", op.AccountToRecover)
	}
	// An impossible authority cancels an outstanding request, so it is
	// allowed here; anything else must be structurally valid.
	if !op.NewOwnerAuthority.IsImpossible() {
		return op.NewOwnerAuthority.Validate()
	}
	return nil
}

func (op *RequestAccountRecoveryOperation) RequiredAuthorities(req *RequiredAuthorities) {
	req.Active = append(req.Active, op.RecoveryAccount)
}

// RecoverAccountOperation applies a pending recovery request. The
// transaction must be signed to satisfy both the new owner authority
// and a recent one; the evaluator checks both directly.
type RecoverAccountOperation struct {
	AccountToRecover     types.AccountName `json:"account_to_recover"`
	NewOwnerAuthority    Authority         `json:"new_owner_authority"`
	RecentOwnerAuthority Authority         `json:"recent_owner_authority"`
}

func (op *RecoverAccountOperation) Type() OpType { return OpRecoverAccount }

func (op *RecoverAccountOperation) Validate() error {
	if !op.AccountToRecover.IsValid() {
		return types.Validationf("invalid account to recover %q", op.AccountToRecover)
	}
	if op.NewOwnerAuthority.IsImpossible() {
		return types.Validationf("new owner authority is unsatisfiable")
	}
	if err := op.NewOwnerAuthority.Validate(); err != nil {
		return err
	}
	return op.RecentOwnerAuthority.Validate()
}

func (op *RecoverAccountOperation) RequiredAuthorities(*RequiredAuthorities) {
	// Signature requirements are the two owner authorities carried in
	// the operation itself; the evaluator verifies them.
}

// ChangeRecoveryAccountOperation points an account at a new recovery
// partner, effective after a delay.
type ChangeRecoveryAccountOperation struct {
	AccountToRecover   types.AccountName `json:"account_to_recover"`
	NewRecoveryAccount types.AccountName `json:"new_recovery_account"`
}

func (op *ChangeRecoveryAccountOperation) Type() OpType { return OpChangeRecoveryAccount }

func (op *ChangeRecoveryAccountOperation) Validate() error {
	if !op.AccountToRecover.IsValid() {
		return types.Validationf("invalid account %q", op.AccountToRecover)
	}
	if !op.NewRecoveryAccount.IsValid() {
		return types.Validationf("invalid recovery account %q", op.NewRecoveryAccount)
	}
	return nil
}

func (op *ChangeRecoveryAccountOperation) RequiredAuthorities(req *RequiredAuthorities) {
	req.Owner = append(req.Owner, op.AccountToRecover)
}
