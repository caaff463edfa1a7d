package protocol

import (
	"github.com/blockberries/stakeberry/types"
)

// MaxMemoLength bounds transfer memos.
const MaxMemoLength = 2048

func validateTransferParties(from, to types.AccountName) error {
	if !from.IsValid() {
		return types.Validationf("invalid from account %q", from)
	}
	if !to.IsValid() {
		return types.Validationf("invalid to account %q", to)
	}
	return nil
}

func validatePositiveAmount(a types.Asset) error {
	if !a.Symbol.IsValid() {
		return types.Validationf("invalid asset symbol %q", a.Symbol)
	}
	if a.Amount <= 0 {
		return types.Validationf("amount must be positive, got %s", a)
	}
	return nil
}

// TransferOperation moves liquid funds between accounts.
type TransferOperation struct {
	From   types.AccountName `json:"from"`
	To     types.AccountName `json:"to"`
	Amount types.Asset       `json:"amount"`
	Memo   string            `json:"memo"`
}

func (op *TransferOperation) Type() OpType { return OpTransfer }

func (op *TransferOperation) Validate() error {
	if err := validateTransferParties(op.From, op.To); err != nil {
		return err
	}
	if op.From == op.To {
		return types.Validationf("cannot transfer to self")
	}
	if err := validatePositiveAmount(op.Amount); err != nil {
		return err
	}
	if len(op.Memo) > MaxMemoLength {
		return types.Validationf("memo exceeds %d bytes", MaxMemoLength)
	}
	return nil
}

func (op *TransferOperation) RequiredAuthorities(req *RequiredAuthorities) {
	req.Active = append(req.Active, op.From)
}

// TransferToVestingOperation converts liquid core asset into vesting
// shares for To (or From itself when To is empty).
type TransferToVestingOperation struct {
	From   types.AccountName `json:"from"`
	To     types.AccountName `json:"to"`
	Amount types.Asset       `json:"amount"`
}

func (op *TransferToVestingOperation) Type() OpType { return OpTransferToVesting }

func (op *TransferToVestingOperation) Validate() error {
	if !op.From.IsValid() {
		return types.Validationf("invalid from account %q", op.From)
	}
	if !op.To.IsEmpty() && !op.To.IsValid() {
		return types.Validationf("invalid to account %q", op.To)
	}
	return validatePositiveAmount(op.Amount)
}

func (op *TransferToVestingOperation) RequiredAuthorities(req *RequiredAuthorities) {
	req.Active = append(req.Active, op.From)
}

// WithdrawVestingOperation starts (or stops, with zero shares) powering
// down vesting shares over the withdrawal period.
type WithdrawVestingOperation struct {
	Account       types.AccountName `json:"account"`
	VestingShares types.Asset       `json:"vesting_shares"`
}

func (op *WithdrawVestingOperation) Type() OpType { return OpWithdrawVesting }

func (op *WithdrawVestingOperation) Validate() error {
	if !op.Account.IsValid() {
		return types.Validationf("invalid account %q", op.Account)
	}
	if !op.VestingShares.Symbol.IsValid() {
		return types.Validationf("invalid symbol %q", op.VestingShares.Symbol)
	}
	if op.VestingShares.Amount < 0 {
		return types.Validationf("negative withdraw amount")
	}
	return nil
}

func (op *WithdrawVestingOperation) RequiredAuthorities(req *RequiredAuthorities) {
	req.Active = append(req.Active, op.Account)
}

// SetWithdrawVestingRouteOperation routes a fraction of each vesting
// withdrawal to another account.
type SetWithdrawVestingRouteOperation struct {
	FromAccount types.AccountName `json:"from_account"`
	ToAccount   types.AccountName `json:"to_account"`
	Percent     types.Percent     `json:"percent"`
	AutoVest    bool              `json:"auto_vest"`
}

func (op *SetWithdrawVestingRouteOperation) Type() OpType { return OpSetWithdrawVestingRoute }

func (op *SetWithdrawVestingRouteOperation) Validate() error {
	if err := validateTransferParties(op.FromAccount, op.ToAccount); err != nil {
		return err
	}
	if op.FromAccount == op.ToAccount {
		return types.Validationf("cannot route withdrawals to self")
	}
	if op.Percent > types.Percent100 {
		return types.Validationf("route percent %d exceeds 100%%", op.Percent)
	}
	return nil
}

func (op *SetWithdrawVestingRouteOperation) RequiredAuthorities(req *RequiredAuthorities) {
	req.Active = append(req.Active, op.FromAccount)
}

// DelegateVestingSharesOperation lends voting and bandwidth stake to
// another account. Zero shares removes the delegation.
type DelegateVestingSharesOperation struct {
	Delegator     types.AccountName `json:"delegator"`
	Delegatee     types.AccountName `json:"delegatee"`
	VestingShares types.Asset       `json:"vesting_shares"`
}

func (op *DelegateVestingSharesOperation) Type() OpType { return OpDelegateVestingShares }

func (op *DelegateVestingSharesOperation) Validate() error {
	if err := validateTransferParties(op.Delegator, op.Delegatee); err != nil {
		return err
	}
	if op.Delegator == op.Delegatee {
		return types.Validationf("cannot delegate to self")
	}
	if op.VestingShares.Amount < 0 {
		return types.Validationf("negative delegation")
	}
	return nil
}

func (op *DelegateVestingSharesOperation) RequiredAuthorities(req *RequiredAuthorities) {
	req.Active = append(req.Active, op.Delegator)
}

// TransferToSavingsOperation moves liquid funds into the savings
// balance, where withdrawals are time-locked.
type TransferToSavingsOperation struct {
	From   types.AccountName `json:"from"`
	To     types.AccountName `json:"to"`
	Amount types.Asset       `json:"amount"`
	Memo   string            `json:"memo"`
}

func (op *TransferToSavingsOperation) Type() OpType { return OpTransferToSavings }

func (op *TransferToSavingsOperation) Validate() error {
	if err := validateTransferParties(op.From, op.To); err != nil {
		return err
	}
	if err := validatePositiveAmount(op.Amount); err != nil {
		return err
	}
	if len(op.Memo) > MaxMemoLength {
		return types.Validationf("memo exceeds %d bytes", MaxMemoLength)
	}
	return nil
}

func (op *TransferToSavingsOperation) RequiredAuthorities(req *RequiredAuthorities) {
	req.Active = append(req.Active, op.From)
}

// TransferFromSavingsOperation schedules a withdrawal from savings,
// paid out after the savings withdraw window.
type TransferFromSavingsOperation struct {
	From      types.AccountName `json:"from"`
	RequestID uint32            `json:"request_id"`
	To        types.AccountName `json:"to"`
	Amount    types.Asset       `json:"amount"`
	Memo      string            `json:"memo"`
}

func (op *TransferFromSavingsOperation) Type() OpType { return OpTransferFromSavings }

func (op *TransferFromSavingsOperation) Validate() error {
	if err := validateTransferParties(op.From, op.To); err != nil {
		return err
	}
	if err := validatePositiveAmount(op.Amount); err != nil {
		return err
	}
	if len(op.Memo) > MaxMemoLength {
		return types.Validationf("memo exceeds %d bytes", MaxMemoLength)
	}
	return nil
}

func (op *TransferFromSavingsOperation) RequiredAuthorities(req *RequiredAuthorities) {
	req.Active = append(req.Active, op.From)
}

// CancelTransferFromSavingsOperation cancels a pending savings
// withdrawal and returns the funds to savings.
type CancelTransferFromSavingsOperation struct {
	From      types.AccountName `json:"from"`
	RequestID uint32            `json:"request_id"`
}

func (op *CancelTransferFromSavingsOperation) Type() OpType { return OpCancelTransferFromSavings }

func (op *CancelTransferFromSavingsOperation) Validate() error {
	if !op.From.IsValid() {
		return types.Validationf("invalid from account %q", op.From)
	}
	return nil
}

func (op *CancelTransferFromSavingsOperation) RequiredAuthorities(req *RequiredAuthorities) {
	req.Active = append(req.Active, op.From)
}

// ConvertOperation requests conversion of stable asset into core asset
// at the median feed price after the conversion delay.
type ConvertOperation struct {
	Owner     types.AccountName `json:"owner"`
	RequestID uint32            `json:"request_id"`
	Amount    types.Asset       `json:"amount"`
}

func (op *ConvertOperation) Type() OpType { return OpConvert }

func (op *ConvertOperation) Validate() error {
	if !op.Owner.IsValid() {
		return types.Validationf("invalid owner %q", op.Owner)
	}
	return validatePositiveAmount(op.Amount)
}

func (op *ConvertOperation) RequiredAuthorities(req *RequiredAuthorities) {
	req.Active = append(req.Active, op.Owner)
}
