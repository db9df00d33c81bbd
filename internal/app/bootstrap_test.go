package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"

	"mpsol_restaking/internal/event"
	"mpsol_restaking/internal/oracle"
)

func writeTestConfig(t *testing.T, admin solana.PublicKey) string {
	t.Helper()
	dir := t.TempDir()
	body := fmt.Sprintf(`
rpc:
  url: http://127.0.0.1:1
storage:
  db_path: %s
  snapshot_every: 3
pool:
  main_state: %s
  admin: %s
  min_movement_lamports: 1000
oracle:
  poll_interval_sec: 60
  vaults:
    - lst_mint: %s
      fixed_price: "1.0"
logging:
  level: error
  dir: %s
`, filepath.Join(dir, "mpsol.db"), solana.NewWallet().PublicKey(), admin, oracle.WrappedSolMint, filepath.Join(dir, "logs"))

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func startSequencer(t *testing.T, b *Bootstrap) func() {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Sequencer.Run(ctx)
		close(done)
	}()
	return func() {
		cancel()
		<-done
	}
}

func TestBootstrap_ProvisionStakeAndRecover(t *testing.T) {
	ctx := context.Background()
	admin := solana.NewWallet().PublicKey()
	user := solana.NewWallet().PublicKey()
	path := writeTestConfig(t, admin)

	b := NewBootstrap()
	if err := b.Initialize(ctx, path); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	stop := startSequencer(t, b)

	if err := b.Provision(ctx); err != nil {
		t.Fatalf("Provision failed: %v", err)
	}
	if _, ok := b.Sequencer.MainVault(); !ok {
		t.Fatal("Main vault should exist after Provision")
	}
	v, ok := b.Sequencer.SecondaryVault(oracle.WrappedSolMint)
	if !ok {
		t.Fatal("wSOL vault should exist after Provision")
	}
	if v.DepositsDisabled {
		t.Error("Configured vault should accept deposits")
	}

	// Provisioning twice adds nothing
	seq := b.Sequencer.NextSeq()
	if err := b.Provision(ctx); err != nil {
		t.Fatalf("second Provision failed: %v", err)
	}
	if b.Sequencer.NextSeq() != seq {
		t.Errorf("Expected next seq %d, got %d", seq, b.Sequencer.NextSeq())
	}

	if b.NewPriceStreamer() != nil {
		t.Error("No price stream without rpc.ws_url")
	}
	poller, err := b.NewPricePoller()
	if err != nil {
		t.Fatalf("NewPricePoller failed: %v", err)
	}
	if err := poller.PollOnce(ctx); err != nil {
		t.Fatalf("PollOnce failed: %v", err)
	}

	if _, err := b.Sequencer.Submit(ctx, &event.StakeCommand{
		BaseCommand: event.BaseCommand{Caller: user},
		LstMint:     oracle.WrappedSolMint,
		LstAmount:   2_000_000_000,
	}); err != nil {
		t.Fatalf("Stake failed: %v", err)
	}
	if got := b.Sequencer.ShareBalance(user); got != 2_000_000_000 {
		t.Fatalf("Expected 2e9 mpSOL, got %d", got)
	}
	want := b.Sequencer.State()
	nextSeq := b.Sequencer.NextSeq()

	stop()
	b.Close()

	// Restart from the same database
	b2 := NewBootstrap()
	if err := b2.Initialize(ctx, path); err != nil {
		t.Fatalf("second Initialize failed: %v", err)
	}
	defer b2.Close()

	if b2.Sequencer.NextSeq() != nextSeq {
		t.Errorf("Expected next seq %d after recovery, got %d", nextSeq, b2.Sequencer.NextSeq())
	}
	if got := b2.Sequencer.ShareBalance(user); got != 2_000_000_000 {
		t.Errorf("Expected 2e9 mpSOL after recovery, got %d", got)
	}
	got := b2.Sequencer.State()
	if got.Main.BackingSolValue != want.Main.BackingSolValue || got.Main.ShareMintSupply != want.Main.ShareMintSupply {
		t.Errorf("Recovered main vault differs: %+v vs %+v", got.Main, want.Main)
	}
	if b2.Board.Pool().MpsolSupply != 2_000_000_000 {
		t.Errorf("Price board should be seeded, got %+v", b2.Board.Pool())
	}
	if _, ok := b2.Board.Get(oracle.WrappedSolMint); !ok {
		t.Error("Price board should know the wSOL price")
	}
}

func TestBootstrap_InvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("rpc:\n  url: ftp://nope\n"), 0644); err != nil {
		t.Fatal(err)
	}

	b := NewBootstrap()
	defer b.Close()
	if err := b.Initialize(context.Background(), path); err == nil {
		t.Fatal("Expected Initialize to reject the configuration")
	}
}
