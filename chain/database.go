package chain

import (
	"sync"

	"github.com/blockberries/stakeberry/blocklog"
	"github.com/blockberries/stakeberry/forkdb"
	"github.com/blockberries/stakeberry/logging"
	"github.com/blockberries/stakeberry/metrics"
	"github.com/blockberries/stakeberry/protocol"
	"github.com/blockberries/stakeberry/state"
	"github.com/blockberries/stakeberry/store"
	"github.com/blockberries/stakeberry/types"
)

// Database is the chain controller. It owns the object store, the fork
// index and the block log, and serializes every mutation behind one
// write lock.
type Database struct {
	mu sync.RWMutex

	log     *logging.Logger
	metrics metrics.Metrics

	chainID types.Hash

	state    *store.Database
	idx      *state.Registry
	blockLog blocklog.Log
	forkDB   *forkdb.DB

	evaluators *EvaluatorRegistry
	observers  observerList
	applyCtx   applyContext

	// Pending transactions ride one long-lived session that is torn
	// down and rebuilt around every block.
	pendingTx      []*protocol.SignedTransaction
	pendingSession *store.Session

	skipFlags SkipFlags
	producing bool
}

// Options configure a Database.
type Options struct {
	ChainID  types.Hash
	BlockLog blocklog.Log
	Logger   *logging.Logger
	Metrics  metrics.Metrics
}

// New builds an empty controller. Call InitGenesis or Reindex before
// applying blocks.
func New(opts Options) *Database {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	m := opts.Metrics
	if m == nil {
		m = metrics.NewNopMetrics()
	}
	blockLog := opts.BlockLog
	if blockLog == nil {
		blockLog = blocklog.NewMemoryLog()
	}

	sdb := store.New()
	db := &Database{
		log:      logger.WithComponent("chain"),
		metrics:  m,
		chainID:  opts.ChainID,
		state:    sdb,
		idx:      state.NewRegistry(sdb),
		blockLog: blockLog,
		forkDB:   forkdb.New(),
	}
	db.evaluators = newEvaluatorRegistry(db)
	return db
}

// ChainID returns the network identifier signatures are bound to.
func (db *Database) ChainID() types.Hash {
	return db.chainID
}

// Registry exposes the typed table lookups for readers. Callers must
// hold the read lock via WithRead while touching the result.
func (db *Database) Registry() *state.Registry {
	return db.idx
}

// Store exposes the underlying object store for tests and tooling.
func (db *Database) Store() *store.Database {
	return db.state
}

// WithRead runs fn holding the read lock.
func (db *Database) WithRead(fn func() error) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return fn()
}

// WithWrite runs fn holding the write lock.
func (db *Database) WithWrite(fn func() error) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return fn()
}

// Close releases the block log.
func (db *Database) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.blockLog.Close()
}

// HeadBlockNum returns the current head height.
func (db *Database) HeadBlockNum() uint32 {
	return db.idx.GlobalProps().HeadBlockNumber
}

// HeadBlockID returns the current head identifier.
func (db *Database) HeadBlockID() protocol.BlockID {
	return db.idx.GlobalProps().HeadBlockID
}

// HeadBlockTime returns the timestamp of the head block.
func (db *Database) HeadBlockTime() types.TimeSec {
	return db.idx.GlobalProps().Time
}

// LastIrreversibleBlockNum returns the finality boundary.
func (db *Database) LastIrreversibleBlockNum() uint32 {
	return db.idx.GlobalProps().LastIrreversibleBlockNum
}

// Participation returns the percentage of the last 128 slots that were
// filled with blocks.
func (db *Database) Participation() float64 {
	return float64(db.idx.GlobalProps().ParticipationCount) * 100 / 128
}

// account returns the named account or a validation failure.
func (db *Database) account(name types.AccountName) (*state.Account, error) {
	acc, ok := db.idx.Account(name)
	if !ok {
		return nil, types.Validationf("unknown account %q", name)
	}
	return acc, nil
}

// witness returns the named witness or a validation failure.
func (db *Database) witness(name types.AccountName) (*state.Witness, error) {
	w, ok := db.idx.Witness(name)
	if !ok {
		return nil, types.Validationf("unknown witness %q", name)
	}
	return w, nil
}

// asset returns the asset description or a validation failure.
func (db *Database) asset(symbol types.AssetSymbol) (*state.AssetObject, error) {
	a, ok := db.idx.Asset(symbol)
	if !ok {
		return nil, types.Validationf("unknown asset %q", symbol)
	}
	return a, nil
}

// bitasset returns the bitasset extension or a validation failure.
func (db *Database) bitasset(symbol types.AssetSymbol) (*state.AssetBitassetData, error) {
	b, ok := db.idx.Bitasset(symbol)
	if !ok {
		return nil, types.Validationf("%q is not a market-issued asset", symbol)
	}
	return b, nil
}

// ownerAuthority resolves an account's owner authority for signature
// checks.
func (db *Database) ownerAuthority(name types.AccountName) (protocol.Authority, error) {
	auth, ok := db.idx.Authority(name)
	if !ok {
		return protocol.Authority{}, types.Validationf("unknown account %q", name)
	}
	return auth.Owner, nil
}

// activeAuthority resolves an account's active authority for signature
// checks.
func (db *Database) activeAuthority(name types.AccountName) (protocol.Authority, error) {
	auth, ok := db.idx.Authority(name)
	if !ok {
		return protocol.Authority{}, types.Validationf("unknown account %q", name)
	}
	return auth.Active, nil
}

// modifyGlobal mutates the global properties singleton.
func (db *Database) modifyGlobal(fn func(*state.DynamicGlobalProperties)) error {
	props := db.idx.GlobalProps()
	return db.idx.GlobalProperties.Modify(props, func(obj store.Object) {
		fn(obj.(*state.DynamicGlobalProperties))
	})
}

// modifyAccount mutates an account record.
func (db *Database) modifyAccount(acc *state.Account, fn func(*state.Account)) error {
	return db.idx.Accounts.Modify(acc, func(obj store.Object) {
		fn(obj.(*state.Account))
	})
}

// modifyWitness mutates a witness record.
func (db *Database) modifyWitness(w *state.Witness, fn func(*state.Witness)) error {
	return db.idx.Witnesses.Modify(w, func(obj store.Object) {
		fn(obj.(*state.Witness))
	})
}

// modifyCall mutates a margin position.
func (db *Database) modifyCall(c *state.CallOrder, fn func(*state.CallOrder)) error {
	return db.idx.CallOrders.Modify(c, func(obj store.Object) {
		fn(obj.(*state.CallOrder))
	})
}
