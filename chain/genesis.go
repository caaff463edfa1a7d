package chain

import (
	"github.com/blockberries/stakeberry/logging"
	"github.com/blockberries/stakeberry/protocol"
	"github.com/blockberries/stakeberry/state"
	"github.com/blockberries/stakeberry/types"
)

// GenesisConfig seeds a fresh chain.
type GenesisConfig struct {
	// Time is the chain start; the first block must land on a slot
	// after it.
	Time types.TimeSec

	// InitMinerKey signs blocks and holds the bootstrap account until
	// real witnesses are voted in.
	InitMinerKey protocol.PublicKey

	// InitialSupply is liquid core credited to the bootstrap account.
	InitialSupply types.Share
}

// Validate checks the config before any state is written.
func (c GenesisConfig) Validate() error {
	if c.Time.IsZero() {
		return types.Validationf("genesis time not set")
	}
	if !c.InitMinerKey.IsValid() {
		return types.Validationf("genesis requires a valid initminer key")
	}
	if c.InitialSupply < 0 || c.InitialSupply > types.MaxShareSupply {
		return types.Validationf("initial supply %d out of range", c.InitialSupply)
	}
	return nil
}

// InitGenesis writes the chain's initial state: the reserved accounts,
// the built-in assets, the singletons every block apply reads, and the
// TaPoS ring. It must run exactly once on an empty store.
func (db *Database) InitGenesis(cfg GenesisConfig) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := cfg.Validate(); err != nil {
		return err
	}
	if db.idx.GlobalProperties.Len() != 0 {
		return types.Consistencyf("genesis already initialized")
	}

	if err := db.createGenesisAccounts(cfg); err != nil {
		return err
	}
	if err := db.createGenesisAssets(cfg); err != nil {
		return err
	}
	if err := db.createGenesisSingletons(cfg); err != nil {
		return err
	}

	if err := db.state.SetRevision(0); err != nil {
		return err
	}
	db.log.Info("genesis initialized",
		logging.ChainID(db.chainID.String()),
		logging.Witness(string(InitMinerName)))
	return nil
}

func (db *Database) createGenesisAccounts(cfg GenesisConfig) error {
	type seed struct {
		name   types.AccountName
		owner  protocol.Authority
		active protocol.Authority
		memo   protocol.PublicKey
	}
	minerAuth := protocol.NewAuthority(cfg.InitMinerKey)
	seeds := []seed{
		{InitMinerName, minerAuth, minerAuth, cfg.InitMinerKey},
		// The null account's authority is unsatisfiable; funds sent to
		// it are burned at maintenance.
		{NullAccountName, protocol.Authority{WeightThreshold: 1}, protocol.Authority{WeightThreshold: 1}, nil},
		// The temp account is open: anyone may move funds parked there.
		{TempAccountName, protocol.Authority{}, protocol.Authority{}, nil},
	}

	for _, s := range seeds {
		_, err := db.idx.Accounts.Create(&state.Account{
			Name:            s.name,
			MemoKey:         s.memo,
			RecoveryAccount: InitMinerName,
			Created:         cfg.Time,
			VestingShares:   types.NewAsset(0, VestsSymbol),
			CanVote:         true,
		})
		if err != nil {
			return err
		}
		_, err = db.idx.AccountAuthorities.Create(&state.AccountAuthority{
			Account: s.name,
			Owner:   s.owner,
			Active:  s.active,
		})
		if err != nil {
			return err
		}
	}

	_, err := db.idx.Witnesses.Create(&state.Witness{
		Owner:      InitMinerName,
		Created:    cfg.Time,
		SigningKey: cfg.InitMinerKey,
		Props: protocol.ChainProperties{
			AccountCreationFee: types.NewAsset(0, CoreSymbol),
			MaximumBlockSize:   protocol.MinBlockSizeLimit * 2,
		},
	})
	if err != nil {
		return err
	}

	if cfg.InitialSupply > 0 {
		_, err = db.idx.AccountBalances.Create(&state.AccountBalance{
			Account: InitMinerName,
			Symbol:  CoreSymbol,
			Balance: cfg.InitialSupply,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (db *Database) createGenesisAssets(cfg GenesisConfig) error {
	type seed struct {
		symbol    types.AssetSymbol
		precision uint8
		supply    types.Share
	}
	seeds := []seed{
		{CoreSymbol, 3, cfg.InitialSupply},
		{StableSymbol, 3, 0},
		{VestsSymbol, 6, 0},
	}
	for _, s := range seeds {
		_, err := db.idx.Assets.Create(&state.AssetObject{
			Symbol:    s.symbol,
			Precision: s.precision,
			Issuer:    NullAccountName,
			Options: protocol.AssetOptions{
				MaxSupply: types.MaxShareSupply,
			},
		})
		if err != nil {
			return err
		}
		_, err = db.idx.AssetDynamics.Create(&state.AssetDynamicData{
			Symbol:        s.symbol,
			CurrentSupply: s.supply,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (db *Database) createGenesisSingletons(cfg GenesisConfig) error {
	maxBlockSize := uint32(protocol.MinBlockSizeLimit * 2)
	_, err := db.idx.GlobalProperties.Create(&state.DynamicGlobalProperties{
		Time:                cfg.Time,
		CurrentWitness:      InitMinerName,
		CurrentSupply:       types.NewAsset(cfg.InitialSupply, CoreSymbol),
		CurrentStableSupply: types.NewAsset(0, StableSymbol),
		VirtualSupply:       types.NewAsset(cfg.InitialSupply, CoreSymbol),
		TotalVestingFund:    types.NewAsset(0, CoreSymbol),
		TotalVestingShares:  types.NewAsset(0, VestsSymbol),
		MaximumBlockSize:    maxBlockSize,
		// Participation starts at full so the early chain is not seen
		// as stalled.
		RecentSlotsFilled:  types.Uint128{Hi: ^uint64(0), Lo: ^uint64(0)},
		ParticipationCount: 128,
		MaxVirtualBandwidth: types.Mul64(uint64(maxBlockSize),
			BandwidthAverageWindowSec*BandwidthPrecision/BlockIntervalSec),
	})
	if err != nil {
		return err
	}

	_, err = db.idx.WitnessSchedules.Create(&state.WitnessSchedule{
		CurrentShuffledWitnesses: []types.AccountName{InitMinerName},
		NumScheduledWitnesses:    1,
		NextShuffleBlockNum:      1,
		MedianProps: protocol.ChainProperties{
			AccountCreationFee: types.NewAsset(0, CoreSymbol),
			MaximumBlockSize:   maxBlockSize,
		},
	})
	if err != nil {
		return err
	}

	if _, err = db.idx.FeedHistories.Create(&state.FeedHistory{}); err != nil {
		return err
	}
	_, err = db.idx.HardforkProperties.Create(&state.HardforkProperty{
		ProcessedHardforks: []types.TimeSec{hardforkTimes[0]},
	})
	if err != nil {
		return err
	}

	for i := 0; i < TaposRingSize; i++ {
		if _, err := db.idx.BlockSummaries.Create(&state.BlockSummary{}); err != nil {
			return err
		}
	}
	return nil
}

// replaySkipFlags bypass every check already performed when the logged
// blocks were first applied.
const replaySkipFlags = SkipWitnessSignature | SkipTransactionSigs |
	SkipTransactionDupe | SkipTaposCheck | SkipAuthorityCheck |
	SkipMerkleCheck | SkipWitnessSchedule | SkipValidation |
	SkipUndoBlock | SkipBlockSizeCheck | SkipBandwidthCheck

// Replay rebuilds state by re-applying every block in the block log.
// The store must hold a fresh genesis at the log's base.
func (db *Database) Replay() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	base, head := db.blockLog.Base(), db.blockLog.Head()
	if head == 0 {
		return nil
	}
	db.log.Info("replaying block log",
		logging.BlockNum(base), logging.Count(int(head-base+1)))
	db.skipFlags = replaySkipFlags

	var last *protocol.SignedBlock
	for num := base; num <= head; num++ {
		_, data, err := db.blockLog.LoadBlock(num)
		if err != nil {
			return err
		}
		b := new(protocol.SignedBlock)
		if err := b.UnmarshalCramberry(data); err != nil {
			return types.Consistencyf("replay: block %d corrupt: %v", num, err)
		}
		if err := db.applyBlockSession(b); err != nil {
			return types.Consistencyf("replay: block %d: %v", num, err)
		}
		last = b

		if num%100000 == 0 {
			db.log.Info("replay progress",
				logging.BlockNum(num),
				logging.Progress(float64(num-base)/float64(head-base+1)))
		}
	}

	// Everything in the log is final; the fork database restarts at the
	// replayed head.
	if _, err := db.forkDB.Start(last); err != nil {
		return err
	}
	if err := db.modifyGlobal(func(p *state.DynamicGlobalProperties) {
		p.LastIrreversibleBlockNum = head
	}); err != nil {
		return err
	}
	db.metrics.SetHeadBlockNum(head)
	db.metrics.SetIrreversibleBlockNum(head)
	db.log.Info("replay complete", logging.BlockNum(head))
	return nil
}
