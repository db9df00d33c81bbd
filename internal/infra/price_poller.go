package infra

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"

	"mpsol_restaking/internal/domain"
	"mpsol_restaking/internal/event"
	"mpsol_restaking/internal/ledger"
	"mpsol_restaking/internal/oracle"
	"mpsol_restaking/pkg/quant"
)

// PriceSource prices a vault's LST from its oracle state.
type PriceSource interface {
	FetchPrice(ctx context.Context, vault *domain.SecondaryVault) (oracle.Result, error)
}

// VaultLister returns the vaults to refresh.
type VaultLister interface {
	SecondaryVaults() []*domain.SecondaryVault
}

// CommandSubmitter hands commands to the sequencer.
type CommandSubmitter interface {
	Submit(ctx context.Context, cmd event.Command) (ledger.Result, error)
}

// PricePollerConfig tunes a PricePoller. Zero values pick defaults.
type PricePollerConfig struct {
	PollInterval      time.Duration
	RequestsPerSecond float64 // 0 = unlimited
	MaxAttempts       int
	RetryBaseDelay    time.Duration
	// Authority signs every submitted observation.
	Authority solana.PublicKey
	// FixedPrices bypass the oracle for the listed mints.
	FixedPrices map[solana.PublicKey]quant.PriceP32
	Clock       clockwork.Clock
	Metrics     *Metrics
}

// PricePoller periodically refreshes every vault's LST/SOL price and submits
// it as an UpdatePriceCommand.
type PricePoller struct {
	vaults  VaultLister
	source  PriceSource
	submit  CommandSubmitter
	cfg     PricePollerConfig
	limiter *rate.Limiter
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewPricePoller creates a new poller.
func NewPricePoller(vaults VaultLister, source PriceSource, submit CommandSubmitter, cfg PricePollerConfig) *PricePoller {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 60 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = GlobalMetrics
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	return &PricePoller{
		vaults:  vaults,
		source:  source,
		submit:  submit,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// Start polls once immediately, then on every interval until ctx ends or Stop is called.
func (p *PricePoller) Start(ctx context.Context) error {
	ctx, p.cancel = context.WithCancel(ctx)

	if err := p.PollOnce(ctx); err != nil {
		slog.Warn("Initial price poll failed", slog.Any("error", err))
		// Continue anyway - will retry on next tick
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("Price polling panic recovered", slog.Any("panic", r))
			}
		}()

		ticker := p.cfg.Clock.NewTicker(p.cfg.PollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				slog.Info("Price polling stopped")
				return
			case <-ticker.Chan():
				if err := p.PollOnce(ctx); err != nil {
					slog.Warn("Price poll failed", slog.Any("error", err))
				}
			}
		}
	}()

	return nil
}

// Stop stops the polling
func (p *PricePoller) Stop() {
	if p.cancel != nil {
		p.cancel()
		p.wg.Wait()
	}
}

// PollOnce refreshes every vault once. A failing vault does not stop the others.
func (p *PricePoller) PollOnce(ctx context.Context) error {
	var errs []error
	for _, v := range p.vaults.SecondaryVaults() {
		if err := p.refresh(ctx, v); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			errs = append(errs, fmt.Errorf("%s: %w", v.LstMint, err))
		}
	}
	return errors.Join(errs...)
}

func (p *PricePoller) refresh(ctx context.Context, v *domain.SecondaryVault) error {
	var res oracle.Result
	if price, ok := p.cfg.FixedPrices[v.LstMint]; ok {
		res = oracle.Result{Price: price, ObservedAt: p.cfg.Clock.Now().Unix()}
	} else {
		var err error
		if res, err = p.fetchWithRetry(ctx, v); err != nil {
			p.cfg.Metrics.RecordOracleError()
			return err
		}
	}

	return submitPrice(ctx, p.submit, p.cfg.Authority, v, res)
}

// submitPrice hands an observation to the sequencer signed by authority.
func submitPrice(ctx context.Context, submit CommandSubmitter, authority solana.PublicKey, v *domain.SecondaryVault, res oracle.Result) error {
	out, err := submit.Submit(ctx, &event.UpdatePriceCommand{
		BaseCommand: event.BaseCommand{Caller: authority},
		LstMint:     v.LstMint,
		Price:       res.Price,
		ObservedAt:  res.ObservedAt,
	})
	if err != nil {
		return err
	}
	if out.Applied && res.Price != v.LstSolPriceP32 {
		slog.Info("LST price updated",
			slog.String("lst_mint", v.LstMint.String()),
			slog.String("price", res.Price.String()),
			slog.String("old_price", v.LstSolPriceP32.String()),
		)
	}
	return nil
}

// fetchWithRetry retries retriable oracle failures with exponential backoff.
func (p *PricePoller) fetchWithRetry(ctx context.Context, v *domain.SecondaryVault) (oracle.Result, error) {
	var lastErr error
	for i := 0; i < p.cfg.MaxAttempts; i++ {
		if i > 0 {
			// Exponential backoff: base, 2*base, 4*base
			delay := p.cfg.RetryBaseDelay << (i - 1)
			slog.Info("Retrying oracle fetch",
				slog.String("lst_mint", v.LstMint.String()),
				slog.Int("attempt", i),
				slog.Duration("delay", delay),
			)
			select {
			case <-ctx.Done():
				return oracle.Result{}, ctx.Err()
			case <-p.cfg.Clock.After(delay):
			}
		}

		if err := p.limiter.Wait(ctx); err != nil {
			return oracle.Result{}, err
		}
		res, err := p.source.FetchPrice(ctx, v)
		if err == nil {
			return res, nil
		}
		lastErr = err
		slog.Warn("Oracle fetch attempt failed",
			slog.String("lst_mint", v.LstMint.String()),
			slog.Int("attempt", i+1),
			slog.Any("error", err),
		)
		if !domain.IsRetriable(err) {
			break
		}
	}
	return oracle.Result{}, lastErr
}
