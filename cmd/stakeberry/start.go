package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/blockberries/stakeberry/blocklog"
	"github.com/blockberries/stakeberry/chain"
	"github.com/blockberries/stakeberry/commitment"
	"github.com/blockberries/stakeberry/config"
	"github.com/blockberries/stakeberry/logging"
	"github.com/blockberries/stakeberry/metrics"
	"github.com/blockberries/stakeberry/types"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the node",
	Long: `Start the Stakeberry node with the specified configuration.

The node will run until interrupted (Ctrl+C) or receives a termination
signal. With witness production enabled it signs blocks whenever its
witness is scheduled.

Example:
  stakeberry start --config config.toml`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	logger := createLogger(cfg.Logging)

	var m metrics.Metrics = metrics.NewNopMetrics()
	if cfg.Metrics.Enabled {
		prom := metrics.NewPrometheusMetrics(cfg.Metrics.Namespace)
		go serveMetrics(cfg.Metrics, prom, logger)
		m = prom
	}

	db, tracker, err := openChain(cfg, m, logger)
	if err != nil {
		return err
	}
	defer db.Close()
	defer tracker.Close()

	logger.Info("node started",
		logging.ChainID(cfg.Node.ChainID),
		logging.BlockNum(db.HeadBlockNum()))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Witness.Enabled {
		go produceBlocks(ctx, db, cfg.Witness, logger)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", logging.Reason(sig.String()))
	cancel()
	return nil
}

// openChain wires the block log, metrics, commitment tracker and chain
// database from the configuration, then brings state to the logged
// head.
func openChain(cfg *config.Config, m metrics.Metrics, logger *logging.Logger) (*chain.Database, *commitment.Tracker, error) {
	var log blocklog.Log
	var err error
	switch cfg.BlockLog.Backend {
	case "leveldb":
		log, err = blocklog.NewLevelDBLog(cfg.BlockLog.Path)
	case "badgerdb":
		log, err = blocklog.NewBadgerLog(cfg.BlockLog.Path)
	default:
		log = blocklog.NewMemoryLog()
	}
	if err != nil {
		return nil, nil, fmt.Errorf("opening block log: %w", err)
	}

	db := chain.New(chain.Options{
		ChainID:  types.HashBytes([]byte(cfg.Node.ChainID)),
		BlockLog: log,
		Logger:   logger,
		Metrics:  m,
	})

	tracker, err := commitment.New(
		filepath.Join(cfg.Node.DataDir, "commitment"), 10000, logger)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	tracker.Attach(db)

	doc, err := loadGenesisDoc(genesisPath(filepath.Dir(cfgFile)))
	if err != nil {
		db.Close()
		tracker.Close()
		return nil, nil, err
	}
	genesis, err := doc.GenesisConfig()
	if err != nil {
		db.Close()
		tracker.Close()
		return nil, nil, err
	}
	if err := db.InitGenesis(genesis); err != nil {
		db.Close()
		tracker.Close()
		return nil, nil, err
	}
	if err := db.Replay(); err != nil {
		db.Close()
		tracker.Close()
		return nil, nil, err
	}
	return db, tracker, nil
}

// produceBlocks signs a block whenever this node's witness owns the
// current slot. Production pauses while recent participation is below
// the configured floor, so an isolated node does not extend a minority
// fork.
func produceBlocks(ctx context.Context, db *chain.Database, cfg config.WitnessConfig, logger *logging.Logger) {
	pub, priv, err := loadWitnessKey(cfg.PrivateKeyPath)
	if err != nil {
		logger.Error("witness key unavailable, production disabled", logging.Error(err))
		return
	}
	witness := types.AccountName(cfg.Name)
	logger.Info("witness production enabled",
		logging.Witness(cfg.Name), logging.Hash(pub))

	ticker := time.NewTicker(time.Second * chain.BlockIntervalSec / 4)
	defer ticker.Stop()
	var lastSlot types.TimeSec

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		now := time.Now().Unix()
		slotTime := types.TimeFromUnix(now - now%chain.BlockIntervalSec)
		if slotTime == lastSlot || !slotTime.After(db.HeadBlockTime()) {
			continue
		}
		if db.ScheduledProducer(slotTime) != witness {
			continue
		}
		if db.Participation() < float64(cfg.RequiredParticipation) {
			logger.Warn("skipping production, participation too low",
				logging.Progress(db.Participation()))
			lastSlot = slotTime
			continue
		}

		if _, err := db.GenerateBlock(slotTime, witness, priv, chain.SkipNothing); err != nil {
			logger.Error("block production failed", logging.Error(err))
		}
		lastSlot = slotTime
	}
}

func serveMetrics(cfg config.MetricsConfig, m *metrics.PrometheusMetrics, logger *logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.HTTPHandler())
	logger.Info("serving metrics", logging.Component(cfg.ListenAddr))
	if err := http.ListenAndServe(cfg.ListenAddr, mux); err != nil {
		logger.Error("metrics server stopped", logging.Error(err))
	}
}
