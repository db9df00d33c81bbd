package service

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"mpsol_restaking/internal/domain"
	"mpsol_restaking/internal/event"
	"mpsol_restaking/pkg/quant"
)

// LstPrice is the latest known LST/SOL rate of one vault.
type LstPrice struct {
	LstMint    solana.PublicKey
	Price      quant.PriceP32
	ObservedAt int64
	Seq        uint64
	// ChangePct is the move of the last update in percent, nil before the second observation.
	ChangePct *decimal.Decimal
}

// PoolPrice is the mpSOL side: backing over supply.
type PoolPrice struct {
	BackingSolValue uint64
	MpsolSupply     uint64
	Seq             uint64
}

// SolPerMpsol returns backing/supply, 1 for an empty pool.
func (p PoolPrice) SolPerMpsol() decimal.Decimal {
	if p.MpsolSupply == 0 {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromUint64(p.BackingSolValue).Div(decimal.NewFromUint64(p.MpsolSupply))
}

// PriceBoard keeps the latest prices for observers. It is fed by sequencer notifications.
type PriceBoard struct {
	mu     sync.RWMutex
	prices map[solana.PublicKey]*LstPrice
	pool   PoolPrice
}

// NewPriceBoard creates a new PriceBoard instance
func NewPriceBoard() *PriceBoard {
	return &PriceBoard{
		prices: make(map[solana.PublicKey]*LstPrice),
	}
}

// Seed loads the current state, e.g. after a restart.
func (b *PriceBoard) Seed(mv *domain.MainVault, vaults []*domain.SecondaryVault) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if mv != nil {
		b.pool = PoolPrice{BackingSolValue: mv.BackingSolValue, MpsolSupply: mv.ShareMintSupply, Seq: mv.LastSeq}
	}
	for _, v := range vaults {
		if v.LstSolPriceP32 == 0 {
			continue
		}
		b.prices[v.LstMint] = &LstPrice{
			LstMint:    v.LstMint,
			Price:      v.LstSolPriceP32,
			ObservedAt: v.LstSolPriceTimestamp,
			Seq:        v.LastSeq,
		}
	}
}

// Start consumes notifications in a background goroutine until ctx ends or
// the channel closes.
func (b *PriceBoard) Start(ctx context.Context, notes <-chan event.Notification) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case n, ok := <-notes:
				if !ok {
					return
				}
				b.Apply(n)
			}
		}
	}()
}

// Apply folds one notification into the board. Older notifications than the
// stored state are ignored.
func (b *PriceBoard) Apply(n event.Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch e := n.(type) {
	case event.PriceUpdateEvent:
		b.updatePrice(e)
		b.updatePool(e.Seq, e.MainVaultBackingSolValue, e.MpsolSupply)
	case event.StakeEvent:
		b.updatePool(e.Seq, e.MainVaultBackingSolValue, e.MpsolSupply)
	case event.UnstakeEvent:
		b.updatePool(e.Seq, e.MainVaultBackingSolValue, e.MpsolSupply)
	case event.StrategyEvent:
		b.updatePool(e.Seq, e.MainVaultBackingSolValue, e.MpsolSupply)
	}
}

// Must be called with lock held
func (b *PriceBoard) updatePrice(e event.PriceUpdateEvent) {
	cur, ok := b.prices[e.LstMint]
	if ok && cur.Seq >= e.Seq {
		return
	}
	next := &LstPrice{LstMint: e.LstMint, Price: e.NewPrice, ObservedAt: e.ObservedAt, Seq: e.Seq}
	if e.OldPrice != 0 {
		// 100 * (new - old) / old
		old := e.OldPrice.Decimal()
		change := e.NewPrice.Decimal().Sub(old).Div(old).Mul(decimal.NewFromInt(100))
		next.ChangePct = &change
	}
	b.prices[e.LstMint] = next
}

// Must be called with lock held
func (b *PriceBoard) updatePool(seq, backing, supply uint64) {
	if seq <= b.pool.Seq {
		return
	}
	b.pool = PoolPrice{BackingSolValue: backing, MpsolSupply: supply, Seq: seq}
}

// GetAll returns every LST price sorted by mint
func (b *PriceBoard) GetAll() []LstPrice {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]LstPrice, 0, len(b.prices))
	for _, p := range b.prices {
		out = append(out, *p)
	}
	slices.SortFunc(out, func(x, y LstPrice) int {
		return strings.Compare(x.LstMint.String(), y.LstMint.String())
	})
	return out
}

// Get returns the price of one LST.
func (b *PriceBoard) Get(mint solana.PublicKey) (LstPrice, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	p, ok := b.prices[mint]
	if !ok {
		return LstPrice{}, false
	}
	return *p, true
}

// Pool returns the latest mpSOL backing and supply.
func (b *PriceBoard) Pool() PoolPrice {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.pool
}
