package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagliardetto/solana-go"

	"mpsol_restaking/internal/domain"
	"mpsol_restaking/internal/engine"
	"mpsol_restaking/internal/event"
	"mpsol_restaking/internal/infra"
	"mpsol_restaking/internal/infra/solanarpc"
	"mpsol_restaking/internal/infra/storage"
	"mpsol_restaking/internal/ledger"
	"mpsol_restaking/internal/oracle"
	"mpsol_restaking/internal/service"
	"mpsol_restaking/pkg/quant"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config    *infra.Config
	Storage   *storage.Storage
	Metrics   *infra.Metrics
	Bus       *event.Bus
	Sequencer *engine.Sequencer
	Board     *service.PriceBoard
	Oracle    *oracle.Adapter
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads configuration, opens storage and rebuilds the pool from
// the latest snapshot plus the command log. The sequencer is ready to Run
// afterwards.
func (b *Bootstrap) Initialize(ctx context.Context, configPath string) error {
	slog.Info("Bootstrapping mpSOL ledger...")

	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	slog.SetDefault(infra.NewLogger(cfg))

	// 3. Initialize Storage (DB)
	store, err := storage.NewStorage(cfg.Storage.DBPath)
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("Database initialized")

	// 4. Recover state
	b.Metrics = infra.GlobalMetrics
	b.Bus = event.NewBus()
	if err := b.restoreState(ctx); err != nil {
		return err
	}

	// 5. Read model, subscribed before the sequencer starts
	b.Board = service.NewPriceBoard()
	mv, _ := b.Sequencer.MainVault()
	b.Board.Seed(mv, b.Sequencer.SecondaryVaults())
	b.Board.Start(ctx, b.Bus.Subscribe(1024))

	// 6. Oracle
	opts := oracleOptions(cfg)
	timeout := time.Duration(cfg.RPC.TimeoutSec) * time.Second
	b.Oracle = oracle.NewAdapter(solanarpc.NewFetcher(cfg.RPC.URL, timeout), nil, opts)
	slog.Info("Oracle adapter ready", slog.String("rpc", cfg.RPC.URL))

	return nil
}

func (b *Bootstrap) restoreState(ctx context.Context) error {
	state, lastSeq, found, err := b.Storage.LoadSnapshot(ctx)
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	pool := ledger.NewPool()
	if found {
		if pool, err = ledger.Restore(state); err != nil {
			return fmt.Errorf("restore snapshot at seq %d: %w", lastSeq, err)
		}
		slog.Info("Snapshot restored", slog.Uint64("seq", lastSeq))
	}

	b.Sequencer = engine.NewSequencer(engine.Config{
		InboxSize:     1024,
		Pool:          pool,
		LastSeq:       lastSeq,
		Log:           b.Storage,
		Snapshots:     b.Storage,
		SnapshotEvery: b.Config.Storage.SnapshotEvery,
		Bus:           b.Bus,
		Metrics:       b.Metrics,
	})

	cmds, err := b.Storage.LoadCommands(ctx, lastSeq)
	if err != nil {
		return fmt.Errorf("load command log: %w", err)
	}
	for _, cmd := range cmds {
		if err := b.Sequencer.ReplayEvent(cmd); err != nil {
			return err
		}
	}
	slog.Info("Command log replayed",
		slog.Int("commands", len(cmds)),
		slog.Uint64("next_seq", b.Sequencer.NextSeq()),
	)
	return nil
}

// oracleOptions overrides the mainnet defaults. Keys were checked by Validate.
func oracleOptions(cfg *infra.Config) oracle.Options {
	opts := oracle.DefaultOptions()
	if cfg.Oracle.MarinadeMint != "" {
		opts.MarinadeMint = solana.MustPublicKeyFromBase58(cfg.Oracle.MarinadeMint)
	}
	if len(cfg.Oracle.MarinadePrograms) > 0 {
		opts.MarinadeOwners = nil
		for _, key := range cfg.Oracle.MarinadePrograms {
			opts.MarinadeOwners = append(opts.MarinadeOwners, solana.MustPublicKeyFromBase58(key))
		}
	}
	if len(cfg.Oracle.SplStakePools) > 0 {
		opts.SplStakePoolOwners = nil
		for _, key := range cfg.Oracle.SplStakePools {
			opts.SplStakePoolOwners = append(opts.SplStakePoolOwners, solana.MustPublicKeyFromBase58(key))
		}
	}
	return opts
}

// Provision creates the main vault and the configured secondary vaults that
// do not exist yet. It submits through the running sequencer, as the admin.
func (b *Bootstrap) Provision(ctx context.Context) error {
	pc := b.Config.Pool
	admin := solana.MustPublicKeyFromBase58(pc.Admin)

	if _, ok := b.Sequencer.MainVault(); !ok {
		initCmd := &event.InitializeCommand{
			BaseCommand: event.BaseCommand{Caller: admin},
			MainState:   solana.MustPublicKeyFromBase58(pc.MainState),
			Config:      pc.MainVaultConfig(),
		}
		if pc.Operator != "" {
			initCmd.OperatorAuthority = solana.MustPublicKeyFromBase58(pc.Operator)
		}
		if pc.Rebalancer != "" {
			initCmd.StrategyRebalancerAuthority = solana.MustPublicKeyFromBase58(pc.Rebalancer)
		}
		if _, err := b.Sequencer.Submit(ctx, initCmd); err != nil {
			return fmt.Errorf("initialize main vault: %w", err)
		}
		slog.Info("Main vault initialized", slog.String("main_state", pc.MainState))
	}

	for _, vc := range b.Config.Oracle.Vaults {
		mint := solana.MustPublicKeyFromBase58(vc.LstMint)
		if _, ok := b.Sequencer.SecondaryVault(mint); ok {
			continue
		}

		create := &event.CreateSecondaryVaultCommand{
			BaseCommand: event.BaseCommand{Caller: admin},
			LstMint:     mint,
			Kind:        b.Oracle.Options().KindForMint(mint),
		}
		if vc.OracleStateAccount != "" {
			create.OracleStateAccount = solana.MustPublicKeyFromBase58(vc.OracleStateAccount)
		}
		if vc.VaultLstAccount != "" {
			create.VaultLstAccount = solana.MustPublicKeyFromBase58(vc.VaultLstAccount)
		}
		if _, err := b.Sequencer.Submit(ctx, create); err != nil {
			if errors.Is(err, domain.ErrMaxWhitelistedVaultsReached) {
				slog.Warn("Vault limit reached, skipping the rest", slog.String("lst_mint", vc.LstMint))
				return nil
			}
			return fmt.Errorf("create vault %s: %w", vc.LstMint, err)
		}

		disabled, capacity := vc.DepositsDisabled, vc.DepositCap
		if _, err := b.Sequencer.Submit(ctx, &event.ConfigureSecondaryVaultCommand{
			BaseCommand: event.BaseCommand{Caller: admin},
			LstMint:     mint,
			Config:      domain.SecondaryVaultConfig{DepositsDisabled: &disabled, DepositCap: &capacity},
		}); err != nil {
			return fmt.Errorf("configure vault %s: %w", vc.LstMint, err)
		}
		slog.Info("Secondary vault created",
			slog.String("lst_mint", vc.LstMint),
			slog.String("kind", create.Kind.String()),
		)
	}
	return nil
}

// NewPricePoller builds the poller for every vault, honoring fixed prices.
func (b *Bootstrap) NewPricePoller() (*infra.PricePoller, error) {
	fixed := make(map[solana.PublicKey]quant.PriceP32)
	for _, vc := range b.Config.Oracle.Vaults {
		if vc.FixedPrice == nil {
			continue
		}
		price, err := quant.PriceFromDecimal(*vc.FixedPrice)
		if err != nil {
			return nil, fmt.Errorf("fixed price for %s: %w", vc.LstMint, err)
		}
		fixed[solana.MustPublicKeyFromBase58(vc.LstMint)] = price
	}

	return infra.NewPricePoller(b.Sequencer, b.Oracle, b.Sequencer, infra.PricePollerConfig{
		PollInterval:      time.Duration(b.Config.Oracle.PollIntervalSec) * time.Second,
		RequestsPerSecond: b.Config.Oracle.RequestsPerSecond,
		Authority:         b.Config.Pool.PriceSigner(),
		FixedPrices:       fixed,
		Metrics:           b.Metrics,
	}), nil
}

// NewPriceStreamer builds the account-subscription price feed, or returns nil
// when no websocket endpoint is configured.
func (b *Bootstrap) NewPriceStreamer() *infra.PriceStreamer {
	if b.Config.RPC.WSURL == "" {
		return nil
	}
	return infra.NewPriceStreamer(b.Sequencer, solanarpc.NewSubscriber(b.Config.RPC.WSURL), b.Sequencer, infra.PriceStreamConfig{
		Authority: b.Config.Pool.PriceSigner(),
		Options:   b.Oracle.Options(),
		Metrics:   b.Metrics,
	})
}

// Close releases storage.
func (b *Bootstrap) Close() {
	if b.Bus != nil {
		b.Bus.Close()
	}
	if b.Storage != nil {
		if err := b.Storage.Close(); err != nil {
			slog.Error("Failed to close storage", slog.Any("error", err))
		}
	}
}
