package chain

import (
	"sort"

	"github.com/blockberries/stakeberry/protocol"
	"github.com/blockberries/stakeberry/state"
	"github.com/blockberries/stakeberry/store"
	"github.com/blockberries/stakeberry/types"
)

// slotTime returns the timestamp of a production slot. Slot 1 is the
// first slot after the head block; slot 0 is invalid.
func (db *Database) slotTime(slot uint32) types.TimeSec {
	if slot == 0 {
		return 0
	}
	// Head time is always on an interval boundary; at genesis it is the
	// configured chain start, which anchors the grid the same way.
	props := db.idx.GlobalProps()
	return props.Time.Add(int64(slot) * BlockIntervalSec)
}

// slotAtTime returns which future slot covers the given time, zero if
// it is not after the head block.
func (db *Database) slotAtTime(when types.TimeSec) uint32 {
	first := db.slotTime(1)
	if when.Before(first) {
		return 0
	}
	return uint32(when.Sub(first))/BlockIntervalSec + 1
}

// scheduledWitness returns the witness owed the given slot under the
// current shuffle.
func (db *Database) scheduledWitness(slot uint32) types.AccountName {
	sched := db.idx.Schedule()
	if sched.NumScheduledWitnesses == 0 {
		return ""
	}
	props := db.idx.GlobalProps()
	i := (props.CurrentAslot + uint64(slot)) % uint64(sched.NumScheduledWitnesses)
	return sched.CurrentShuffledWitnesses[i]
}

// ScheduledProducer returns the witness owed the slot covering the
// given time, empty when the time is not after the head block.
func (db *Database) ScheduledProducer(when types.TimeSec) types.AccountName {
	db.mu.RLock()
	defer db.mu.RUnlock()
	slot := db.slotAtTime(when)
	if slot == 0 {
		return ""
	}
	return db.scheduledWitness(slot)
}

// topWitnessesByVote returns up to n active witnesses in descending
// vote order.
func (db *Database) topWitnessesByVote(n int) []*state.Witness {
	var top []*state.Witness
	db.idx.Witnesses.Index(state.ByVote).Ascend(func(obj store.Object) bool {
		w := obj.(*state.Witness)
		if w.IsActive() {
			top = append(top, w)
		}
		return len(top) < n
	})
	return top
}

// nextVirtualWitness returns the active witness with the earliest
// virtual scheduled time not already in the picked set.
func (db *Database) nextVirtualWitness(picked map[types.AccountName]bool) *state.Witness {
	var next *state.Witness
	db.idx.Witnesses.Index(state.ByScheduleTime).Ascend(func(obj store.Object) bool {
		w := obj.(*state.Witness)
		if !w.IsActive() || picked[w.Owner] {
			return true
		}
		next = w
		return false
	})
	return next
}

// medianProps computes the per-field median of the scheduled witnesses'
// chain property votes.
func medianProps(witnesses []*state.Witness) protocol.ChainProperties {
	n := len(witnesses)
	if n == 0 {
		return protocol.ChainProperties{
			AccountCreationFee: types.NewAsset(0, CoreSymbol),
			MaximumBlockSize:   protocol.MinBlockSizeLimit * 2,
		}
	}
	fees := make([]types.Share, n)
	sizes := make([]uint32, n)
	rates := make([]types.Percent, n)
	for i, w := range witnesses {
		fees[i] = w.Props.AccountCreationFee.Amount
		sizes[i] = w.Props.MaximumBlockSize
		rates[i] = w.Props.InterestRate
	}
	sort.Slice(fees, func(i, j int) bool { return fees[i] < fees[j] })
	sort.Slice(sizes, func(i, j int) bool { return sizes[i] < sizes[j] })
	sort.Slice(rates, func(i, j int) bool { return rates[i] < rates[j] })
	return protocol.ChainProperties{
		AccountCreationFee: types.NewAsset(fees[n/2], CoreSymbol),
		MaximumBlockSize:   sizes[n/2],
		InterestRate:       rates[n/2],
	}
}

// xorshift64 is the deterministic generator behind the round shuffle.
func xorshift64(x uint64) uint64 {
	x ^= x << 13
	x ^= x >> 7
	x ^= x << 17
	return x
}

// updateWitnessSchedule rebuilds the shuffled producer set at every
// round boundary. Most slots go to the top-voted witnesses; one slot
// per round is a stake-weighted lottery along the virtual timeline so
// smaller witnesses still produce in proportion to their votes.
func (db *Database) updateWitnessSchedule() error {
	props := db.idx.GlobalProps()
	sched := db.idx.Schedule()
	if props.HeadBlockNumber < sched.NextShuffleBlockNum {
		return nil
	}

	top := db.topWitnessesByVote(MaxWitnesses - 1)
	picked := make(map[types.AccountName]bool, MaxWitnesses)
	active := make([]*state.Witness, 0, MaxWitnesses)
	for _, w := range top {
		picked[w.Owner] = true
		active = append(active, w)
	}

	newVirtualTime := sched.CurrentVirtualTime
	if timeshare := db.nextVirtualWitness(picked); timeshare != nil {
		newVirtualTime = timeshare.VirtualScheduledTime
		picked[timeshare.Owner] = true
		active = append(active, timeshare)
		err := db.modifyWitness(timeshare, func(w *state.Witness) {
			w.VirtualPosition = types.Uint128{}
			w.VirtualLastUpdate = newVirtualTime
			w.VirtualScheduledTime = newVirtualTime.Add(
				virtualScheduleLapLength.DivU64(uint64(w.Votes) + 1))
		})
		if err != nil {
			return err
		}
	}

	names := make([]types.AccountName, len(active))
	for i, w := range active {
		names[i] = w.Owner
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })

	// Deterministic shuffle keyed by the head slot so every node agrees
	// on the round order.
	seed := uint64(props.Time.Unix()) << 32
	for i := range names {
		seed = xorshift64(seed + uint64(i)*2685821657736338717)
		j := i + int(seed%uint64(len(names)-i))
		names[i], names[j] = names[j], names[i]
	}

	median := medianProps(active)
	if err := db.idx.WitnessSchedules.Modify(sched, func(obj store.Object) {
		s := obj.(*state.WitnessSchedule)
		s.CurrentVirtualTime = newVirtualTime
		s.CurrentShuffledWitnesses = names
		s.NumScheduledWitnesses = uint8(len(names))
		s.NextShuffleBlockNum = props.HeadBlockNumber + uint32(len(names))
		s.MedianProps = median
	}); err != nil {
		return err
	}

	return db.modifyGlobal(func(p *state.DynamicGlobalProperties) {
		p.MaximumBlockSize = median.MaximumBlockSize
		p.StableInterestRate = median.InterestRate
		p.MaxVirtualBandwidth = types.Mul64(
			uint64(median.MaximumBlockSize), BandwidthAverageWindowSec*BandwidthPrecision/BlockIntervalSec)
	})
}
