package service

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"mpsol_restaking/internal/domain"
	"mpsol_restaking/internal/event"
	"mpsol_restaking/pkg/quant"
)

func priceEvent(seq uint64, mint solana.PublicKey, oldPrice, newPrice quant.PriceP32) event.PriceUpdateEvent {
	return event.PriceUpdateEvent{
		BaseEvent:                event.BaseEvent{Seq: seq, Ts: int64(seq)},
		LstMint:                  mint,
		OldPrice:                 oldPrice,
		NewPrice:                 newPrice,
		ObservedAt:               int64(seq),
		MainVaultBackingSolValue: 1_000 * seq,
		MpsolSupply:              1_000,
	}
}

func TestPriceBoard_PriceUpdate(t *testing.T) {
	b := NewPriceBoard()
	mint := solana.NewWallet().PublicKey()

	b.Apply(priceEvent(1, mint, 0, quant.PriceOne))
	p, ok := b.Get(mint)
	if !ok {
		t.Fatal("price should exist")
	}
	if p.Price != quant.PriceOne || p.ChangePct != nil {
		t.Errorf("Unexpected first price %+v", p)
	}

	// 1.0 -> 1.05 is +5%
	b.Apply(priceEvent(2, mint, quant.PriceOne, quant.PriceOne+quant.PriceOne/20))
	p, _ = b.Get(mint)
	if p.ChangePct == nil {
		t.Fatal("change should be calculated")
	}
	if p.ChangePct.Sub(decimal.NewFromInt(5)).Abs().GreaterThan(decimal.NewFromFloat(0.0001)) {
		t.Errorf("Expected change ~5%%, got %v", p.ChangePct)
	}

	pool := b.Pool()
	if pool.BackingSolValue != 2_000 || pool.MpsolSupply != 1_000 {
		t.Errorf("Unexpected pool %+v", pool)
	}
	if !pool.SolPerMpsol().Equal(decimal.NewFromInt(2)) {
		t.Errorf("Expected 2 SOL per mpSOL, got %v", pool.SolPerMpsol())
	}
}

func TestPriceBoard_IgnoresOlderNotifications(t *testing.T) {
	b := NewPriceBoard()
	mint := solana.NewWallet().PublicKey()

	b.Apply(priceEvent(5, mint, quant.PriceOne, 2*quant.PriceOne))
	b.Apply(priceEvent(3, mint, quant.PriceOne, 3*quant.PriceOne))
	b.Apply(event.StakeEvent{BaseEvent: event.BaseEvent{Seq: 4}, MainVaultBackingSolValue: 1, MpsolSupply: 1})

	p, _ := b.Get(mint)
	if p.Price != 2*quant.PriceOne {
		t.Errorf("Older price applied: %v", p.Price)
	}
	if b.Pool().Seq != 5 {
		t.Errorf("Older pool state applied: %+v", b.Pool())
	}
}

func TestPriceBoard_GetAll_Sorted(t *testing.T) {
	b := NewPriceBoard()
	mints := []solana.PublicKey{
		solana.MustPublicKeyFromBase58("mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So"),
		solana.MustPublicKeyFromBase58("J1toso1uCk3RLmjorhTtrVwY9HJ7X8V9yYac6Y7kGCPn"),
		solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112"),
	}
	for i, m := range mints {
		b.Apply(priceEvent(uint64(i+1), m, 0, quant.PriceOne))
	}

	all := b.GetAll()
	if len(all) != 3 {
		t.Fatalf("Expected 3 items, got %d", len(all))
	}
	// Should be sorted: J1to, So11, mSoL
	if all[0].LstMint != mints[1] || all[1].LstMint != mints[2] || all[2].LstMint != mints[0] {
		t.Errorf("Not sorted: %s, %s, %s", all[0].LstMint, all[1].LstMint, all[2].LstMint)
	}
}

func TestPriceBoard_Seed(t *testing.T) {
	b := NewPriceBoard()
	mv := domain.NewMainVault(solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey(), solana.PublicKey{}, solana.PublicKey{})
	mv.BackingSolValue, mv.ShareMintSupply, mv.LastSeq = 300, 200, 9

	priced := domain.NewSecondaryVault(solana.NewWallet().PublicKey(), domain.OracleMarinade, solana.PublicKey{}, solana.PublicKey{})
	priced.RefreshPrice(quant.PriceOne, 100)
	unpriced := domain.NewSecondaryVault(solana.NewWallet().PublicKey(), domain.OracleSplStakePool, solana.PublicKey{}, solana.PublicKey{})

	b.Seed(mv, []*domain.SecondaryVault{priced, unpriced})

	if got := b.Pool().SolPerMpsol(); !got.Equal(decimal.NewFromFloat(1.5)) {
		t.Errorf("Expected 1.5, got %v", got)
	}
	if _, ok := b.Get(unpriced.LstMint); ok {
		t.Error("Unpriced vault should not be listed")
	}
	if p, ok := b.Get(priced.LstMint); !ok || p.ObservedAt != 100 {
		t.Errorf("Unexpected seeded price %+v", p)
	}
}

func TestPriceBoard_AsyncNotifications(t *testing.T) {
	bus := event.NewBus()
	b := NewPriceBoard()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b.Start(ctx, bus.Subscribe(10))

	mint := solana.NewWallet().PublicKey()
	bus.Publish(priceEvent(1, mint, 0, quant.PriceOne))

	deadline := time.Now().Add(time.Second)
	for {
		if _, ok := b.Get(mint); ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("price should be processed from the bus")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
