package chain

import (
	"github.com/blockberries/stakeberry/state"
	"github.com/blockberries/stakeberry/store"
	"github.com/blockberries/stakeberry/types"
)

// virtualScheduleLapLength is the distance a witness races along the
// virtual timeline per scheduling lap. The maximum 128-bit value gives
// vote-proportional speed without overflow games.
var virtualScheduleLapLength = types.Uint128{Hi: ^uint64(0), Lo: ^uint64(0)}

// adjustWitnessVotes shifts the vote total of every witness the account
// approves by delta.
func (db *Database) adjustWitnessVotes(acc *state.Account, delta types.Share) error {
	if delta == 0 {
		return nil
	}
	var witnesses []types.AccountName
	from := &state.WitnessVote{Account: acc.Name}
	db.idx.WitnessVotes.Index(state.ByAccountWitness).AscendFrom(from, func(obj store.Object) bool {
		v := obj.(*state.WitnessVote)
		if v.Account != acc.Name {
			return false
		}
		witnesses = append(witnesses, v.Witness)
		return true
	})
	for _, name := range witnesses {
		w, err := db.witness(name)
		if err != nil {
			return err
		}
		if err := db.adjustWitnessVote(w, delta); err != nil {
			return err
		}
	}
	return nil
}

// adjustWitnessVote shifts one witness's vote total, advancing its
// virtual schedule position so the change takes effect from now rather
// than retroactively.
func (db *Database) adjustWitnessVote(w *state.Witness, delta types.Share) error {
	virtualTime := db.idx.Schedule().CurrentVirtualTime
	return db.modifyWitness(w, func(w *state.Witness) {
		elapsed := virtualTime.Sub(w.VirtualLastUpdate)
		w.VirtualPosition = w.VirtualPosition.Add(elapsed.MulU64(uint64(w.Votes)))
		w.VirtualLastUpdate = virtualTime
		w.Votes += delta

		remaining := virtualScheduleLapLength.Sub(w.VirtualPosition)
		w.VirtualScheduledTime = virtualTime.Add(remaining.DivU64(uint64(w.Votes) + 1))
	})
}

// adjustProxiedWitnessVotes fans a single stake delta up the proxy
// chain. Each hop records the delta at its depth slot; hops beyond
// MaxProxyRecursionDepth are dropped, so deeply proxied stake simply
// stops counting. An account with no proxy applies the delta to its
// approved witnesses directly.
func (db *Database) adjustProxiedWitnessVotes(acc *state.Account, delta types.Share, depth int) error {
	if delta == 0 {
		return nil
	}
	if acc.Proxy.IsEmpty() {
		return db.adjustWitnessVotes(acc, delta)
	}
	if depth >= state.MaxProxyRecursionDepth {
		return nil
	}
	proxy, err := db.account(acc.Proxy)
	if err != nil {
		return err
	}
	if err := db.modifyAccount(proxy, func(a *state.Account) {
		a.ProxiedVsfVotes[depth] += delta
	}); err != nil {
		return err
	}
	return db.adjustProxiedWitnessVotes(proxy, delta, depth+1)
}

// adjustProxiedWitnessVotesArray fans a per-depth delta array up the
// proxy chain. Used when an account changes its proxy: its own stake
// moves at depth 0 and everything already proxied to it shifts one
// depth deeper.
func (db *Database) adjustProxiedWitnessVotesArray(
	acc *state.Account,
	deltas [state.MaxProxyRecursionDepth + 1]types.Share,
	depth int,
) error {
	if acc.Proxy.IsEmpty() {
		var total types.Share
		for i := 0; i+depth <= state.MaxProxyRecursionDepth; i++ {
			total += deltas[i]
		}
		return db.adjustWitnessVotes(acc, total)
	}
	if depth >= state.MaxProxyRecursionDepth {
		return nil
	}
	proxy, err := db.account(acc.Proxy)
	if err != nil {
		return err
	}
	if err := db.modifyAccount(proxy, func(a *state.Account) {
		for i := 0; i+depth < state.MaxProxyRecursionDepth; i++ {
			a.ProxiedVsfVotes[i+depth] += deltas[i]
		}
	}); err != nil {
		return err
	}
	return db.adjustProxiedWitnessVotesArray(proxy, deltas, depth+1)
}
