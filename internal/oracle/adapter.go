package oracle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/gagliardetto/solana-go"
	"github.com/jonboulle/clockwork"

	"mpsol_restaking/internal/domain"
)

// Options configures mint dispatch and state validation.
type Options struct {
	MarinadeMint       solana.PublicKey
	MarinadeOwners     []solana.PublicKey
	SplStakePoolOwners []solana.PublicKey
}

// DefaultOptions returns the mainnet program and mint set.
func DefaultOptions() Options {
	return Options{
		MarinadeMint:       MarinadeMsolMint,
		MarinadeOwners:     []solana.PublicKey{MarinadeProgramID},
		SplStakePoolOwners: []solana.PublicKey{SplStakePoolProgramID},
	}
}

func (o Options) isAllowedSplProgram(owner solana.PublicKey) bool {
	return slices.ContainsFunc(o.SplStakePoolOwners, owner.Equals)
}

func (o Options) isAllowedMarinadeProgram(owner solana.PublicKey) bool {
	return slices.ContainsFunc(o.MarinadeOwners, owner.Equals)
}

// KindForMint picks the oracle kind for a new vault's LST.
func (o Options) KindForMint(mint solana.PublicKey) domain.OracleKind {
	switch {
	case mint.Equals(WrappedSolMint):
		return domain.OracleNative
	case mint.Equals(o.MarinadeMint):
		return domain.OracleMarinade
	default:
		return domain.OracleSplStakePool
	}
}

// Adapter fetches oracle state accounts and prices them.
type Adapter struct {
	fetcher domain.AccountFetcher
	clock   clockwork.Clock
	opts    Options
}

// NewAdapter creates a new oracle adapter.
func NewAdapter(fetcher domain.AccountFetcher, clock clockwork.Clock, opts Options) *Adapter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Adapter{fetcher: fetcher, clock: clock, opts: opts}
}

// Options returns the adapter's dispatch options.
func (a *Adapter) Options() Options {
	return a.opts
}

// FetchPrice reads the vault's oracle state and returns the current price,
// stamped with the adapter clock.
func (a *Adapter) FetchPrice(ctx context.Context, vault *domain.SecondaryVault) (Result, error) {
	var account *domain.AccountData
	if vault.Kind != domain.OracleNative {
		if a.fetcher == nil {
			return Result{}, fmt.Errorf("%w: no account fetcher", domain.ErrOracleStateUnavailable)
		}
		acc, err := a.fetcher.FetchAccount(ctx, vault.OracleStateAccount)
		if err != nil {
			if errors.Is(err, domain.ErrOracleStateUnavailable) {
				return Result{}, err
			}
			return Result{}, fmt.Errorf("%w: %w", domain.ErrOracleStateUnavailable, err)
		}
		account = acc
	}

	price, err := PriceFromAccount(vault.Kind, vault.LstMint, account, a.opts)
	if err != nil {
		slog.Warn("Oracle price rejected",
			slog.String("mint", vault.LstMint.String()),
			slog.String("kind", vault.Kind.String()),
			slog.Any("error", err))
		return Result{}, err
	}

	res := Result{Price: price, ObservedAt: a.clock.Now().Unix()}
	if account != nil {
		res.Slot = account.Slot
	}
	return res, nil
}
