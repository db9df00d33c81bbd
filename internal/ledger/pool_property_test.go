package ledger

import (
	"errors"
	"math/rand/v2"
	"reflect"
	"testing"

	"github.com/gagliardetto/solana-go"

	"mpsol_restaking/internal/domain"
	"mpsol_restaking/internal/event"
	"mpsol_restaking/pkg/quant"
)

// TestPool_RandomSequenceKeepsInvariants drives the pool with a seeded random
// mix of operations and checks, after every step, that rejected commands left
// no trace and that accepted ones kept every invariant.
func TestPool_RandomSequenceKeepsInvariants(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 7))
	f := newFixture(t)
	fee := uint16(15)
	f.configure(domain.MainVaultConfig{DepositFeeBp: &fee})

	mints := []solana.PublicKey{f.addVault(quant.PriceOne), f.addVault(quant.PriceOne + quant.PriceOne/20)}
	users := make([]solana.PublicKey, 4)
	for i := range users {
		users[i] = solana.NewWallet().PublicKey()
	}

	var accepted, rejected int
	for step := 0; step < 400; step++ {
		var cmd event.Command
		user := users[rng.IntN(len(users))]
		mint := mints[rng.IntN(len(mints))]

		switch rng.IntN(5) {
		case 0, 1:
			cmd = &event.StakeCommand{
				BaseCommand: event.BaseCommand{Caller: user},
				LstMint:     mint,
				LstAmount:   500_000 + rng.Uint64N(20_000_000_000),
			}
		case 2:
			bal := f.pool.ShareBalance(user)
			cmd = &event.UnstakeCommand{
				BaseCommand: event.BaseCommand{Caller: user},
				Shares:      rng.Uint64N(bal + 2_000_000),
			}
		case 3:
			v := f.vault(mint)
			// move the price within +-2%
			delta := quant.PriceP32(rng.Uint64N(uint64(v.LstSolPriceP32) / 25))
			price := v.LstSolPriceP32 - quant.PriceP32(uint64(v.LstSolPriceP32)/50) + delta
			f.advance(int64(rng.IntN(6 * 3600)))
			cmd = &event.UpdatePriceCommand{
				BaseCommand: event.BaseCommand{Caller: f.operator},
				LstMint:     mint,
				Price:       price,
				ObservedAt:  f.now,
			}
		case 4:
			tickets := f.pool.Tickets()
			if len(tickets) == 0 {
				continue
			}
			tk := tickets[rng.IntN(len(tickets))]
			f.advance(int64(rng.IntN(30 * 3600)))
			amount := tk.TicketSolValue
			if rng.IntN(2) == 0 {
				amount = rng.Uint64N(tk.TicketSolValue + 1)
			}
			cmd = &event.TicketClaimCommand{
				BaseCommand: event.BaseCommand{Caller: tk.Beneficiary},
				TicketID:    tk.ID,
				LstMint:     mint,
				SolAmount:   amount,
			}
		}

		before := f.pool.State()
		_, err := f.apply(cmd)
		if err != nil {
			var opErr *domain.OpError
			if !errors.As(err, &opErr) {
				t.Fatalf("step %d: %s returned non-operation error %v", step, cmd.GetType(), err)
			}
			if !reflect.DeepEqual(before, f.pool.State()) {
				t.Fatalf("step %d: rejected %s (%v) changed state", step, cmd.GetType(), err)
			}
			rejected++
			continue
		}
		accepted++
		f.pool.VerifyAll()

		mv := f.main()
		var outstanding uint64
		for _, tk := range f.pool.Tickets() {
			outstanding += tk.TicketSolValue
		}
		if outstanding != mv.OutstandingTicketsSolValue {
			t.Fatalf("step %d: tickets sum %d, outstanding %d", step, outstanding, mv.OutstandingTicketsSolValue)
		}
	}

	if accepted == 0 || rejected == 0 {
		t.Errorf("Expected a mix of outcomes, got accepted=%d rejected=%d", accepted, rejected)
	}
}
