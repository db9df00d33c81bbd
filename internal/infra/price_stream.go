package infra

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"

	"mpsol_restaking/internal/domain"
	"mpsol_restaking/internal/oracle"
)

// AccountWatcher streams oracle state account changes.
type AccountWatcher interface {
	WatchAccounts(ctx context.Context, addresses []solana.PublicKey, fn func(*domain.AccountData)) error
}

// PriceStreamConfig tunes a PriceStreamer. Zero values pick defaults.
type PriceStreamConfig struct {
	// Authority signs every submitted observation.
	Authority solana.PublicKey
	Options   oracle.Options
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Clock     clockwork.Clock
	Metrics   *Metrics
}

var errNothingToStream = errors.New("no vault with an oracle state account")

// PriceStreamer prices vaults from oracle state account notifications and
// submits them the way the poller does. It reconnects with exponential
// backoff; the poller stays the fallback for missed updates and for native
// vaults.
type PriceStreamer struct {
	vaults  VaultLister
	watcher AccountWatcher
	submit  CommandSubmitter
	cfg     PriceStreamConfig
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewPriceStreamer creates a new streamer.
func NewPriceStreamer(vaults VaultLister, watcher AccountWatcher, submit CommandSubmitter, cfg PriceStreamConfig) *PriceStreamer {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = 60 * time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = GlobalMetrics
	}
	return &PriceStreamer{vaults: vaults, watcher: watcher, submit: submit, cfg: cfg}
}

// Start streams in the background until ctx ends or Stop is called.
func (s *PriceStreamer) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.connectionLoop(ctx)
}

// Stop stops streaming and waits for the loop to exit.
func (s *PriceStreamer) Stop() {
	if s.cancel != nil {
		s.cancel()
		s.wg.Wait()
	}
}

// connectionLoop reconnects with exponential backoff. A session that lasted
// longer than MaxDelay resets the backoff.
func (s *PriceStreamer) connectionLoop(ctx context.Context) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Price stream panic recovered", slog.Any("panic", r))
		}
	}()

	retry := 0
	for {
		started := s.cfg.Clock.Now()
		err := s.Stream(ctx)
		if ctx.Err() != nil {
			slog.Info("Price stream stopped")
			return
		}
		if s.cfg.Clock.Since(started) > s.cfg.MaxDelay {
			retry = 0
		}

		delay := s.backoff(retry)
		retry++
		level := slog.LevelWarn
		if errors.Is(err, errNothingToStream) {
			level = slog.LevelDebug
		}
		slog.Log(ctx, level, "Price stream disconnected",
			slog.Any("error", err),
			slog.Int("retry", retry),
			slog.Duration("delay", delay),
		)

		select {
		case <-ctx.Done():
			return
		case <-s.cfg.Clock.After(delay):
		}
	}
}

func (s *PriceStreamer) backoff(retry int) time.Duration {
	delay := s.cfg.BaseDelay
	for i := 0; i < retry && delay < s.cfg.MaxDelay; i++ {
		delay *= 2
	}
	return min(delay, s.cfg.MaxDelay)
}

// Stream watches the oracle state account of every non-native vault until
// ctx ends or the connection fails.
func (s *PriceStreamer) Stream(ctx context.Context) error {
	watched := make(map[solana.PublicKey]solana.PublicKey) // state account -> lst mint
	for _, v := range s.vaults.SecondaryVaults() {
		if v.Kind == domain.OracleNative || v.OracleStateAccount.IsZero() {
			continue
		}
		watched[v.OracleStateAccount] = v.LstMint
	}
	if len(watched) == 0 {
		return errNothingToStream
	}

	slog.Info("Price stream connecting", slog.Int("accounts", len(watched)))
	return s.watcher.WatchAccounts(ctx, slices.Collect(maps.Keys(watched)), func(acc *domain.AccountData) {
		s.handle(ctx, watched[acc.Address], acc)
	})
}

func (s *PriceStreamer) handle(ctx context.Context, mint solana.PublicKey, acc *domain.AccountData) {
	vaults := s.vaults.SecondaryVaults()
	i := slices.IndexFunc(vaults, func(v *domain.SecondaryVault) bool { return v.LstMint.Equals(mint) })
	if i < 0 {
		return
	}
	v := vaults[i]

	price, err := oracle.PriceFromAccount(v.Kind, v.LstMint, acc, s.cfg.Options)
	if err != nil {
		s.cfg.Metrics.RecordOracleError()
		slog.Warn("Streamed oracle state rejected",
			slog.String("lst_mint", v.LstMint.String()),
			slog.Uint64("slot", acc.Slot),
			slog.Any("error", err),
		)
		return
	}

	res := oracle.Result{Price: price, ObservedAt: s.cfg.Clock.Now().Unix(), Slot: acc.Slot}
	if err := submitPrice(ctx, s.submit, s.cfg.Authority, v, res); err != nil && ctx.Err() == nil {
		slog.Warn("Streamed price not applied",
			slog.String("lst_mint", v.LstMint.String()),
			slog.Any("error", err),
		)
	}
}
