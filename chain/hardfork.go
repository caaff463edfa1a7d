package chain

import (
	"github.com/blockberries/stakeberry/logging"
	"github.com/blockberries/stakeberry/state"
	"github.com/blockberries/stakeberry/store"
	"github.com/blockberries/stakeberry/types"
)

// hardforkTimes maps each hardfork number to its activation time.
// Entry 0 is genesis. Future forks append here; they activate in the
// first block at or after their timestamp, and evaluators consult
// HasHardfork to pick behavior.
var hardforkTimes = []types.TimeSec{
	0: 0,
}

// latestHardfork is the highest fork this binary knows about.
var latestHardfork = uint32(len(hardforkTimes) - 1)

// HasHardfork reports whether fork n has activated.
func (db *Database) HasHardfork(n uint32) bool {
	return db.idx.Hardforks().LastHardfork >= n
}

// processHardforks activates every scheduled hardfork whose time has
// arrived.
func (db *Database) processHardforks() error {
	now := db.idx.GlobalProps().Time
	for {
		hf := db.idx.Hardforks()
		next := hf.LastHardfork + 1
		if next > latestHardfork || hardforkTimes[next].After(now) {
			return nil
		}
		if err := db.idx.HardforkProperties.Modify(hf, func(obj store.Object) {
			h := obj.(*state.HardforkProperty)
			h.LastHardfork = next
			h.ProcessedHardforks = append(h.ProcessedHardforks, now)
		}); err != nil {
			return err
		}
		db.log.Info("hardfork applied", logging.Count(int(next)))
	}
}
