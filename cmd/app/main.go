package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"mpsol_restaking/internal/app"
	"mpsol_restaking/internal/infra"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.StringP("config", "c", "configs/config.yaml", "path to the YAML configuration")
	replayOnly := flag.Bool("replay-only", false, "rebuild the ledger from storage, dump it and exit")
	dumpPath := flag.String("dump", "state_dump.json", "file written by --replay-only")
	pprofAddr := flag.String("pprof", "", "pprof listen address, e.g. localhost:6060 (disabled when empty)")
	flag.Parse()

	// 1. Pprof Server (for performance profiling)
	if *pprofAddr != "" {
		go func() {
			slog.Info("Pprof server started", slog.String("addr", *pprofAddr))
			if err := http.ListenAndServe(*pprofAddr, nil); err != nil {
				slog.Error("Pprof server failed", slog.Any("error", err))
			}
		}()
	}

	// 2. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. System Bootstrapping
	bootstrap := app.NewBootstrap()
	defer bootstrap.Close()
	if err := bootstrap.Initialize(ctx, *configPath); err != nil {
		return fmt.Errorf("bootstrapping failed: %w", err)
	}

	seq := bootstrap.Sequencer
	if *replayOnly {
		seq.DumpState(*dumpPath)
		slog.Info("Replay finished", slog.Uint64("next_seq", seq.NextSeq()), slog.String("dump", *dumpPath))
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)

	// 4. Sequencer (single writer)
	g.Go(func() error {
		seq.Run(ctx)
		return nil
	})
	slog.InfoContext(ctx, "Sequencer started")

	// 5. Main vault and whitelisted vaults from config
	if err := bootstrap.Provision(ctx); err != nil {
		stop()
		_ = g.Wait()
		return fmt.Errorf("provisioning failed: %w", err)
	}

	// 6. Price poller
	poller, err := bootstrap.NewPricePoller()
	if err != nil {
		stop()
		_ = g.Wait()
		return err
	}
	if err := poller.Start(ctx); err != nil {
		slog.Error("Failed to start price poller", slog.Any("error", err))
	}
	defer poller.Stop()

	// 7. Account subscriptions, with the poller as fallback
	if streamer := bootstrap.NewPriceStreamer(); streamer != nil {
		streamer.Start(ctx)
		defer streamer.Stop()
		slog.InfoContext(ctx, "Price stream started", slog.String("ws", bootstrap.Config.RPC.WSURL))
	}

	// 8. Metrics endpoint
	if addr := bootstrap.Config.Metrics.Addr; addr != "" {
		reg := infra.NewMetricsRegistry(bootstrap.Metrics)
		g.Go(func() error {
			return infra.ServeMetrics(ctx, addr, reg)
		})
	}

	slog.InfoContext(ctx, "mpSOL ledger fully operational. Press Ctrl+C to exit.",
		slog.Int("vaults", len(seq.SecondaryVaults())),
	)

	err = g.Wait()
	slog.Info("Shutting down gracefully...", slog.Uint64("next_seq", seq.NextSeq()))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
