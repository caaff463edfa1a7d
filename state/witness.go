package state

import (
	"github.com/blockberries/stakeberry/protocol"
	"github.com/blockberries/stakeberry/store"
	"github.com/blockberries/stakeberry/types"
)

// Witness is a registered block producer.
type Witness struct {
	ID      types.ObjectID
	Owner   types.AccountName
	Created types.TimeSec
	URL     string

	SigningKey protocol.PublicKey
	Props      protocol.ChainProperties

	Votes types.Share

	// Virtual schedule position; witnesses produce in proportion to
	// their votes by racing along a virtual timeline.
	VirtualLastUpdate    types.Uint128
	VirtualPosition      types.Uint128
	VirtualScheduledTime types.Uint128

	TotalMissed           uint32
	LastAslot             uint64
	LastConfirmedBlockNum uint32

	// Exchange rate vote for the stable asset conversion median.
	StableExchangeRate types.Price
	LastExchangeUpdate types.TimeSec
}

func (w *Witness) ObjectID() types.ObjectID      { return w.ID }
func (w *Witness) SetObjectID(id types.ObjectID) { w.ID = id }
func (w *Witness) CloneObject() store.Object {
	c := *w
	c.SigningKey = append(protocol.PublicKey(nil), w.SigningKey...)
	return &c
}

// IsActive reports whether the witness can currently produce: it needs
// a usable signing key.
func (w *Witness) IsActive() bool {
	return w.SigningKey.IsValid()
}

// WitnessVote links a voting account to a witness.
type WitnessVote struct {
	ID      types.ObjectID
	Witness types.AccountName
	Account types.AccountName
}

func (v *WitnessVote) ObjectID() types.ObjectID      { return v.ID }
func (v *WitnessVote) SetObjectID(id types.ObjectID) { v.ID = id }
func (v *WitnessVote) CloneObject() store.Object {
	c := *v
	return &c
}

// WitnessSchedule is the singleton scheduling state: the shuffled
// producer set for the current round and the median chain properties.
type WitnessSchedule struct {
	ID                       types.ObjectID
	CurrentVirtualTime       types.Uint128
	NextShuffleBlockNum      uint32
	CurrentShuffledWitnesses []types.AccountName
	NumScheduledWitnesses    uint8
	MedianProps              protocol.ChainProperties
}

func (s *WitnessSchedule) ObjectID() types.ObjectID      { return s.ID }
func (s *WitnessSchedule) SetObjectID(id types.ObjectID) { s.ID = id }
func (s *WitnessSchedule) CloneObject() store.Object {
	c := *s
	c.CurrentShuffledWitnesses = append([]types.AccountName(nil), s.CurrentShuffledWitnesses...)
	return &c
}
