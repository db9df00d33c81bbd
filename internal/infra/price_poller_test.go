package infra

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"

	"mpsol_restaking/internal/domain"
	"mpsol_restaking/internal/event"
	"mpsol_restaking/internal/ledger"
	"mpsol_restaking/internal/oracle"
	"mpsol_restaking/pkg/quant"
)

type staticVaults []*domain.SecondaryVault

func (s staticVaults) SecondaryVaults() []*domain.SecondaryVault { return s }

// scriptedSource returns errs in order, then the price.
type scriptedSource struct {
	mu    sync.Mutex
	calls int
	errs  []error
	price quant.PriceP32
}

func (s *scriptedSource) FetchPrice(_ context.Context, _ *domain.SecondaryVault) (oracle.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= len(s.errs) {
		return oracle.Result{}, s.errs[s.calls-1]
	}
	return oracle.Result{Price: s.price, ObservedAt: 1_700_000_000}, nil
}

func (s *scriptedSource) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type recordingSubmitter struct {
	mu   sync.Mutex
	cmds []*event.UpdatePriceCommand
}

func (r *recordingSubmitter) Submit(_ context.Context, cmd event.Command) (ledger.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cmds = append(r.cmds, cmd.(*event.UpdatePriceCommand))
	return ledger.Result{Applied: true}, nil
}

func (r *recordingSubmitter) submitted() []*event.UpdatePriceCommand {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*event.UpdatePriceCommand(nil), r.cmds...)
}

func newTestVault() *domain.SecondaryVault {
	return domain.NewSecondaryVault(solana.NewWallet().PublicKey(), domain.OracleSplStakePool, solana.NewWallet().PublicKey(), solana.PublicKey{})
}

func TestPricePoller_PollOnce(t *testing.T) {
	v := newTestVault()
	src := &scriptedSource{price: quant.PriceOne + 1}
	sub := &recordingSubmitter{}
	authority := solana.NewWallet().PublicKey()
	p := NewPricePoller(staticVaults{v}, src, sub, PricePollerConfig{Authority: authority, Metrics: &Metrics{}})

	if err := p.PollOnce(context.Background()); err != nil {
		t.Fatalf("PollOnce failed: %v", err)
	}

	cmds := sub.submitted()
	if len(cmds) != 1 {
		t.Fatalf("Expected 1 command, got %d", len(cmds))
	}
	if cmds[0].LstMint != v.LstMint || cmds[0].Price != quant.PriceOne+1 || cmds[0].ObservedAt != 1_700_000_000 {
		t.Errorf("Unexpected command %+v", cmds[0])
	}
	if !cmds[0].Caller.Equals(authority) {
		t.Errorf("Expected observation signed by %s, got %s", authority, cmds[0].Caller)
	}
}

func TestPricePoller_RetryOnFailure(t *testing.T) {
	transient := domain.NewNetworkError("getAccountInfo", errors.New("429 too many requests"))
	src := &scriptedSource{errs: []error{transient, transient}, price: quant.PriceOne}
	sub := &recordingSubmitter{}
	p := NewPricePoller(staticVaults{newTestVault()}, src, sub, PricePollerConfig{
		RetryBaseDelay: time.Millisecond,
		Metrics:        &Metrics{},
	})

	// Should retry 2 times and succeed on 3rd
	if err := p.PollOnce(context.Background()); err != nil {
		t.Fatalf("PollOnce should succeed after retries: %v", err)
	}
	if src.callCount() != 3 {
		t.Errorf("Expected 3 calls, got %d", src.callCount())
	}
	if len(sub.submitted()) != 1 {
		t.Error("Expected the recovered price to be submitted")
	}
}

func TestPricePoller_FatalErrorNotRetried(t *testing.T) {
	m := &Metrics{}
	src := &scriptedSource{errs: []error{domain.ErrOracleStateUnavailable}}
	sub := &recordingSubmitter{}
	p := NewPricePoller(staticVaults{newTestVault()}, src, sub, PricePollerConfig{
		RetryBaseDelay: time.Millisecond,
		Metrics:        m,
	})

	err := p.PollOnce(context.Background())
	if !errors.Is(err, domain.ErrOracleStateUnavailable) {
		t.Fatalf("Expected ErrOracleStateUnavailable, got %v", err)
	}
	if src.callCount() != 1 {
		t.Errorf("Expected 1 call, got %d", src.callCount())
	}
	if len(sub.submitted()) != 0 {
		t.Error("Nothing should be submitted on failure")
	}
	if m.Snapshot().OracleErrors != 1 {
		t.Errorf("Expected 1 oracle error, got %d", m.Snapshot().OracleErrors)
	}
}

func TestPricePoller_FixedPrice(t *testing.T) {
	v := newTestVault()
	src := &scriptedSource{}
	sub := &recordingSubmitter{}
	clock := clockwork.NewFakeClockAt(time.Unix(1_800_000_000, 0))
	p := NewPricePoller(staticVaults{v}, src, sub, PricePollerConfig{
		FixedPrices: map[solana.PublicKey]quant.PriceP32{v.LstMint: quant.PriceOne},
		Clock:       clock,
		Metrics:     &Metrics{},
	})

	if err := p.PollOnce(context.Background()); err != nil {
		t.Fatalf("PollOnce failed: %v", err)
	}
	if src.callCount() != 0 {
		t.Error("Fixed price vaults must not hit the oracle")
	}
	cmds := sub.submitted()
	if len(cmds) != 1 || cmds[0].Price != quant.PriceOne || cmds[0].ObservedAt != 1_800_000_000 {
		t.Errorf("Unexpected commands %+v", cmds)
	}
}

func TestPricePoller_StartStop(t *testing.T) {
	src := &scriptedSource{price: quant.PriceOne}
	sub := &recordingSubmitter{}
	p := NewPricePoller(staticVaults{newTestVault()}, src, sub, PricePollerConfig{
		PollInterval: 10 * time.Millisecond,
		Metrics:      &Metrics{},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for len(sub.submitted()) < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("Expected at least 2 polls, got %d", len(sub.submitted()))
		}
		time.Sleep(5 * time.Millisecond)
	}

	// Stop should complete without hanging
	p.Stop()
}
