package chain

import (
	"github.com/blockberries/stakeberry/state"
	"github.com/blockberries/stakeberry/store"
	"github.com/blockberries/stakeberry/types"
)

// bandwidthFor returns the account's bandwidth record for one pool,
// creating a zero record on first touch.
func (db *Database) bandwidthFor(name types.AccountName, typ state.BandwidthType) (*state.AccountBandwidth, error) {
	probe := &state.AccountBandwidth{Account: name, Type: typ}
	if obj, ok := db.idx.AccountBandwidths.Index(state.ByAccountType).Find(probe); ok {
		return obj.(*state.AccountBandwidth), nil
	}
	obj, err := db.idx.AccountBandwidths.Create(probe)
	if err != nil {
		return nil, err
	}
	return obj.(*state.AccountBandwidth), nil
}

// updateAccountBandwidth charges trxSize against the account's rolling
// bandwidth average. The average decays linearly over the averaging
// window; market traffic is charged at a premium. Only a producing
// node rejects transactions over the account's stake share of the
// virtual bandwidth budget; pushed and replayed blocks record the
// usage and nothing more.
func (db *Database) updateAccountBandwidth(acc *state.Account, trxSize uint32, typ state.BandwidthType) error {
	props := db.idx.GlobalProps()
	if props.TotalVestingShares.Amount <= 0 {
		return nil
	}

	bw, err := db.bandwidthFor(acc.Name, typ)
	if err != nil {
		return err
	}

	charge := uint64(trxSize) * BandwidthPrecision
	if typ == state.BandwidthMarket {
		charge *= MarketBandwidthCharge
	}

	now := props.Time
	var average types.Share
	err = db.idx.AccountBandwidths.Modify(bw, func(obj store.Object) {
		b := obj.(*state.AccountBandwidth)
		elapsed := now.Sub(b.LastBandwidthUpdate)
		switch {
		case elapsed >= BandwidthAverageWindowSec || b.LastBandwidthUpdate.IsZero():
			b.AverageBandwidth = 0
		case elapsed > 0:
			b.AverageBandwidth = types.MulDiv(b.AverageBandwidth,
				BandwidthAverageWindowSec-types.Share(elapsed), BandwidthAverageWindowSec)
		}
		b.AverageBandwidth += types.Share(charge)
		b.LifetimeBandwidth = b.LifetimeBandwidth.Add(types.U128(charge))
		b.LastBandwidthUpdate = now
		average = b.AverageBandwidth
	})
	if err != nil {
		return err
	}

	stake := acc.EffectiveVestingShares()
	if stake < 0 {
		stake = 0
	}

	// The account may consume its stake's share of the chain-wide
	// virtual bandwidth budget:
	//   stake * max_virtual_bandwidth >= average * total_stake
	allowed := props.MaxVirtualBandwidth.MulU64(uint64(stake))
	used := types.Mul64(uint64(average), uint64(props.TotalVestingShares.Amount))
	if db.producing && allowed.Cmp(used) < 0 {
		return types.Exhaustedf(
			"account %s exceeds its bandwidth: average %d with stake %d of %d",
			acc.Name, average, stake, props.TotalVestingShares.Amount)
	}
	return nil
}
