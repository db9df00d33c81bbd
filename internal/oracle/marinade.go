package oracle

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"mpsol_restaking/internal/domain"
	"mpsol_restaking/pkg/safe"
)

// MarinadeStateDiscriminator is the anchor account discriminator of State.
var MarinadeStateDiscriminator = anchorAccountDiscriminator("State")

func anchorAccountDiscriminator(name string) [8]byte {
	hash := sha256.Sum256([]byte("account:" + name))
	var out [8]byte
	copy(out[:], hash[:8])
	return out
}

// MarinadeState holds the Marinade State fields needed to price mSOL.
type MarinadeState struct {
	MsolMint                  solana.PublicKey
	AdminAuthority            solana.PublicKey
	DelayedUnstakeCoolingDown uint64
	TotalActiveBalance        uint64
	AvailableReserveBalance   uint64
	MsolSupply                uint64
	MsolPrice                 uint64
	CirculatingTicketCount    uint64
	CirculatingTicketBalance  uint64
}

// DecodeMarinadeState parses the Marinade State account.
func DecodeMarinadeState(data []byte) (*MarinadeState, error) {
	if len(data) < 8 || !bytes.Equal(data[:8], MarinadeStateDiscriminator[:]) {
		return nil, fmt.Errorf("%w: marinade state discriminator mismatch", domain.ErrOracleStateUnavailable)
	}
	r := newFieldReader(data[8:])
	s := &MarinadeState{}

	s.MsolMint = r.pubkey()
	s.AdminAuthority = r.pubkey()
	r.pubkey() // operational_sol_account
	r.pubkey() // treasury_msol_account
	r.u8()     // reserve_bump_seed
	r.u8()     // msol_mint_authority_bump_seed
	r.u64()    // rent_exempt_for_token_acc
	r.u32()    // reward_fee

	// stake_system
	readMarinadeList(r)
	s.DelayedUnstakeCoolingDown = r.u64()
	r.u8()  // stake_deposit_bump_seed
	r.u8()  // stake_withdraw_bump_seed
	r.u64() // slots_for_stake_delta
	r.u64() // last_stake_delta_epoch
	r.u64() // min_stake
	r.u32() // extra_stake_delta_runs

	// validator_system
	readMarinadeList(r)
	r.pubkey() // manager_authority
	r.u32()    // total_validator_score
	s.TotalActiveBalance = r.u64()
	r.u8() // auto_add_validator_enabled

	// liq_pool
	r.pubkey() // lp_mint
	r.u8()     // lp_mint_authority_bump_seed
	r.u8()     // sol_leg_bump_seed
	r.u8()     // msol_leg_authority_bump_seed
	r.pubkey() // msol_leg
	r.u64()    // lp_liquidity_target
	r.u32()    // lp_max_fee
	r.u32()    // lp_min_fee
	r.u32()    // treasury_cut
	r.u64()    // lp_supply
	r.u64()    // lent_from_sol_leg
	r.u64()    // liquidity_sol_cap

	s.AvailableReserveBalance = r.u64()
	s.MsolSupply = r.u64()
	s.MsolPrice = r.u64()
	s.CirculatingTicketCount = r.u64()
	s.CirculatingTicketBalance = r.u64()

	if r.err != nil {
		return nil, fmt.Errorf("%w: decode marinade state: %v", domain.ErrOracleStateUnavailable, r.err)
	}
	return s, nil
}

func readMarinadeList(r *fieldReader) {
	r.pubkey() // account
	r.u32()    // item_size
	r.u32()    // count
	r.pubkey() // _reserved1
	r.u32()    // _reserved2
}

// TotalVirtualStakedLamports is active + cooling down + reserve minus SOL owed to ticket holders.
// Balances that overflow u64 mean the state is corrupt.
func (s *MarinadeState) TotalVirtualStakedLamports() (uint64, error) {
	total, err := safe.Add(s.TotalActiveBalance, s.DelayedUnstakeCoolingDown)
	if err == nil {
		total, err = safe.Add(total, s.AvailableReserveBalance)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: marinade balances overflow: %v", domain.ErrOracleStateUnavailable, err)
	}
	return safe.SaturatingSub(total, s.CirculatingTicketBalance), nil
}

// PoolState returns the pool's backing and supply.
func (s *MarinadeState) PoolState() (PoolState, error) {
	total, err := s.TotalVirtualStakedLamports()
	if err != nil {
		return PoolState{}, err
	}
	return PoolState{TotalLamports: total, PoolTokenSupply: s.MsolSupply}, nil
}
