// Package oracle prices LSTs in SOL from their stake pool state.
package oracle

import (
	"errors"

	"github.com/gagliardetto/solana-go"

	"mpsol_restaking/internal/domain"
	"mpsol_restaking/pkg/quant"
)

var (
	// WrappedSolMint is priced at par without external state.
	WrappedSolMint = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")

	// MarinadeMsolMint is the mainnet mSOL mint.
	MarinadeMsolMint = solana.MustPublicKeyFromBase58("mSoLzYCxHdYgdzU16g5QSh3i5K3z3KZK7ytfqcJm7So")

	// SplStakePoolProgramID is the canonical SPL stake pool program.
	SplStakePoolProgramID = solana.MustPublicKeyFromBase58("SPoo1Ku8WFXoNDMHPsrGSTSG1Y47rzgn41SLUNakuHy")

	// MarinadeProgramID owns the Marinade State account.
	MarinadeProgramID = solana.MustPublicKeyFromBase58("MarBmsSgKXdrN1egZf5sqe1TMai9K1rChYNDJgjq7aD")
)

// Result is a price observation.
type Result struct {
	Price      quant.PriceP32 `json:"price"`
	ObservedAt int64          `json:"observed_at"` // unix seconds
	Slot       uint64         `json:"slot,omitempty"`
}

// PoolState is what every pool-backed kind reduces to.
type PoolState struct {
	TotalLamports   uint64
	PoolTokenSupply uint64
}

// PriceFromPoolState returns floor(total * 2^32 / supply).
func PriceFromPoolState(s PoolState) (quant.PriceP32, error) {
	if s.PoolTokenSupply == 0 {
		return 0, domain.ErrOracleDivisionByZero
	}
	p, err := quant.PriceFromRatio(s.TotalLamports, s.PoolTokenSupply)
	if err != nil {
		return 0, domain.ArithmeticError(err)
	}
	return p, nil
}

// PriceFromAccount decodes the state account for kind and prices it.
// mint is the vault's LST mint and must match the mint the state describes.
func PriceFromAccount(kind domain.OracleKind, mint solana.PublicKey, account *domain.AccountData, opts Options) (quant.PriceP32, error) {
	switch kind {
	case domain.OracleNative:
		return quant.PriceOne, nil
	case domain.OracleMarinade:
		if account == nil {
			return 0, domain.ErrOracleStateUnavailable
		}
		if !opts.isAllowedMarinadeProgram(account.Owner) {
			return 0, unavailable("marinade state owner " + account.Owner.String() + " not allowed")
		}
		state, err := DecodeMarinadeState(account.Data)
		if err != nil {
			return 0, err
		}
		if !state.MsolMint.Equals(mint) {
			return 0, unavailable("msol mint mismatch")
		}
		ps, err := state.PoolState()
		if err != nil {
			return 0, err
		}
		return PriceFromPoolState(ps)
	case domain.OracleSplStakePool:
		if account == nil {
			return 0, domain.ErrOracleStateUnavailable
		}
		if !opts.isAllowedSplProgram(account.Owner) {
			return 0, unavailable("stake pool owner " + account.Owner.String() + " not allowed")
		}
		pool, err := DecodeSplStakePool(account.Data)
		if err != nil {
			return 0, err
		}
		if !pool.PoolMint.Equals(mint) {
			return 0, unavailable("pool mint mismatch")
		}
		return PriceFromPoolState(pool.PoolState())
	default:
		return 0, unavailable("unknown oracle kind " + kind.String())
	}
}

func unavailable(reason string) error {
	return errors.Join(domain.ErrOracleStateUnavailable, errors.New(reason))
}
