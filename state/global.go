package state

import (
	"github.com/blockberries/stakeberry/protocol"
	"github.com/blockberries/stakeberry/store"
	"github.com/blockberries/stakeberry/types"
)

// DynamicGlobalProperties is the singleton header state of the chain.
type DynamicGlobalProperties struct {
	ID types.ObjectID

	HeadBlockNumber uint32
	HeadBlockID     protocol.BlockID
	Time            types.TimeSec
	CurrentWitness  types.AccountName

	CurrentSupply       types.Asset
	CurrentStableSupply types.Asset
	VirtualSupply       types.Asset

	TotalVestingFund   types.Asset
	TotalVestingShares types.Asset

	StableInterestRate types.Percent

	MaximumBlockSize uint32

	CurrentAslot             uint64
	RecentSlotsFilled        types.Uint128
	ParticipationCount       uint8
	LastIrreversibleBlockNum uint32

	// Bandwidth budget derived from the block-size budget and the
	// bandwidth averaging window.
	MaxVirtualBandwidth types.Uint128
}

func (p *DynamicGlobalProperties) ObjectID() types.ObjectID      { return p.ID }
func (p *DynamicGlobalProperties) SetObjectID(id types.ObjectID) { p.ID = id }
func (p *DynamicGlobalProperties) CloneObject() store.Object {
	c := *p
	c.HeadBlockID = append(protocol.BlockID(nil), p.HeadBlockID...)
	return &c
}

// VestingSharePrice is the current vesting/core conversion rate.
func (p *DynamicGlobalProperties) VestingSharePrice() types.Price {
	fund := p.TotalVestingFund
	shares := p.TotalVestingShares
	if fund.Amount <= 0 || shares.Amount <= 0 {
		// Bootstrap rate: one thousand shares per core unit.
		return types.NewPrice(
			types.NewAsset(1000, shares.Symbol),
			types.NewAsset(1, fund.Symbol),
		)
	}
	return types.NewPrice(shares, fund)
}

/// BlockSummary is one slot of the TaPoS ring: the block id at a recent
// height, addressed by height modulo the ring size.
type BlockSummary struct {
	ID      types.ObjectID
	BlockID protocol.BlockID
}

func (s *BlockSummary) ObjectID() types.ObjectID      { return s.ID }
func (s *BlockSummary) SetObjectID(id types.ObjectID) { s.ID = id }
func (s *BlockSummary) CloneObject() store.Object {
	c := *s
	c.BlockID = append(protocol.BlockID(nil), s.BlockID...)
	return &c
}

// TransactionObject pins a seen transaction until it expires, for
// duplicate detection.
type TransactionObject struct {
	ID         types.ObjectID
	TrxID      types.Hash
	Expiration types.TimeSec
}

func (t *TransactionObject) ObjectID() types.ObjectID      { return t.ID }
func (t *TransactionObject) SetObjectID(id types.ObjectID) { t.ID = id }
func (t *TransactionObject) CloneObject() store.Object {
	c := *t
	c.TrxID = append(types.Hash(nil), t.TrxID...)
	return &c
}

// HardforkProperty is the singleton hardfork ledger.
type HardforkProperty struct {
	ID                 types.ObjectID
	LastHardfork       uint32
	ProcessedHardforks []types.TimeSec
}

func (h *HardforkProperty) ObjectID() types.ObjectID      { return h.ID }
func (h *HardforkProperty) SetObjectID(id types.ObjectID) { h.ID = id }
func (h *HardforkProperty) CloneObject() store.Object {
	c := *h
	c.ProcessedHardforks = append([]types.TimeSec(nil), h.ProcessedHardforks...)
	return &c
}
