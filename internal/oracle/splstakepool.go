package oracle

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"mpsol_restaking/internal/domain"
)

const splAccountTypeStakePool uint8 = 1

// SplStakePool is the leading part of the SPL stake pool account.
type SplStakePool struct {
	AccountType           uint8
	Manager               solana.PublicKey
	Staker                solana.PublicKey
	StakeDepositAuthority solana.PublicKey
	StakeWithdrawBumpSeed uint8
	ValidatorList         solana.PublicKey
	ReserveStake          solana.PublicKey
	PoolMint              solana.PublicKey
	ManagerFeeAccount     solana.PublicKey
	TokenProgramID        solana.PublicKey
	TotalLamports         uint64
	PoolTokenSupply       uint64
	LastUpdateEpoch       uint64
}

// DecodeSplStakePool parses a StakePool account.
func DecodeSplStakePool(data []byte) (*SplStakePool, error) {
	r := newFieldReader(data)
	p := &SplStakePool{
		AccountType:           r.u8(),
		Manager:               r.pubkey(),
		Staker:                r.pubkey(),
		StakeDepositAuthority: r.pubkey(),
		StakeWithdrawBumpSeed: r.u8(),
		ValidatorList:         r.pubkey(),
		ReserveStake:          r.pubkey(),
		PoolMint:              r.pubkey(),
		ManagerFeeAccount:     r.pubkey(),
		TokenProgramID:        r.pubkey(),
		TotalLamports:         r.u64(),
		PoolTokenSupply:       r.u64(),
		LastUpdateEpoch:       r.u64(),
	}
	if r.err != nil {
		return nil, fmt.Errorf("%w: decode stake pool: %v", domain.ErrOracleStateUnavailable, r.err)
	}
	if p.AccountType != splAccountTypeStakePool {
		return nil, fmt.Errorf("%w: account type %d is not a stake pool", domain.ErrOracleStateUnavailable, p.AccountType)
	}
	return p, nil
}

// PoolState returns the pool's backing and supply.
func (p *SplStakePool) PoolState() PoolState {
	return PoolState{TotalLamports: p.TotalLamports, PoolTokenSupply: p.PoolTokenSupply}
}
