package protocol

import (
	"github.com/blockberries/stakeberry/types"
)

// ChainProperties are the witness-voted parameters. Each scheduled
// witness publishes its preference and the chain adopts the medians.
type ChainProperties struct {
	AccountCreationFee types.Asset   `json:"account_creation_fee"`
	MaximumBlockSize   uint32        `json:"maximum_block_size"`
	InterestRate       types.Percent `json:"interest_rate"`
}

// MinBlockSizeLimit is the smallest maximum-block-size a witness may
// vote for. It must hold at least one maximum-size transaction.
const MinBlockSizeLimit = 1 << 16

// Validate checks the voted parameters.
func (p ChainProperties) Validate() error {
	if p.AccountCreationFee.Amount < 0 {
		return types.Validationf("negative account creation fee")
	}
	if p.MaximumBlockSize < MinBlockSizeLimit {
		return types.Validationf("maximum block size %d below limit %d",
			p.MaximumBlockSize, MinBlockSizeLimit)
	}
	if p.InterestRate > types.Percent100 {
		return types.Validationf("interest rate %d exceeds 100%%", p.InterestRate)
	}
	return nil
}

// WitnessUpdateOperation registers or updates a block producer. An
// all-zero signing key takes the witness out of rotation.
type WitnessUpdateOperation struct {
	Owner           types.AccountName `json:"owner"`
	URL             string            `json:"url"`
	BlockSigningKey PublicKey         `json:"block_signing_key"`
	Props           ChainProperties   `json:"props"`
	Fee             types.Asset       `json:"fee"`
}

func (op *WitnessUpdateOperation) Type() OpType { return OpWitnessUpdate }

func (op *WitnessUpdateOperation) Validate() error {
	if !op.Owner.IsValid() {
		return types.Validationf("invalid owner %q", op.Owner)
	}
	if len(op.URL) > 2048 {
		return types.Validationf("url too long")
	}
	if len(op.BlockSigningKey) != 0 && !op.BlockSigningKey.IsValid() {
		return types.Validationf("invalid signing key")
	}
	if op.Fee.Amount < 0 {
		return types.Validationf("negative fee")
	}
	return op.Props.Validate()
}

func (op *WitnessUpdateOperation) RequiredAuthorities(req *RequiredAuthorities) {
	req.Active = append(req.Active, op.Owner)
}

// FeedPublishOperation records a witness's core/stable exchange rate,
// used for the conversion median.
type FeedPublishOperation struct {
	Publisher    types.AccountName `json:"publisher"`
	ExchangeRate types.Price       `json:"exchange_rate"`
}

func (op *FeedPublishOperation) Type() OpType { return OpFeedPublish }

func (op *FeedPublishOperation) Validate() error {
	if !op.Publisher.IsValid() {
		return types.Validationf("invalid publisher %q", op.Publisher)
	}
	if op.ExchangeRate.IsNull() {
		return types.Validationf("null exchange rate")
	}
	if op.ExchangeRate.Base.Amount <= 0 || op.ExchangeRate.Quote.Amount <= 0 {
		return types.Validationf("exchange rate amounts must be positive")
	}
	return nil
}

func (op *FeedPublishOperation) RequiredAuthorities(req *RequiredAuthorities) {
	req.Active = append(req.Active, op.Publisher)
}
