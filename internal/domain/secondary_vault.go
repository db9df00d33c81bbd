package domain

import (
	"fmt"
	"slices"

	"github.com/gagliardetto/solana-go"

	"mpsol_restaking/pkg/quant"
	"mpsol_restaking/pkg/safe"
)

// OracleKind selects how an LST is priced.
type OracleKind uint8

const (
	OracleNative OracleKind = iota
	OracleMarinade
	OracleSplStakePool
)

func (k OracleKind) String() string {
	switch k {
	case OracleNative:
		return "native"
	case OracleMarinade:
		return "marinade"
	case OracleSplStakePool:
		return "spl-stake-pool"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Strategy is an external destination LST units can be lent to.
type Strategy struct {
	Address         solana.PublicKey `json:"address"`
	LstAmount       uint64           `json:"lst_amount"`
	LastUpdateUnixS int64            `json:"last_update"`
}

// SecondaryVault is the per-LST custody ledger.
// VaultTotalLstAmount always equals LocallyStoredAmount + InStrategiesAmount.
type SecondaryVault struct {
	LstMint            solana.PublicKey `json:"lst_mint"`
	Kind               OracleKind       `json:"kind"`
	OracleStateAccount solana.PublicKey `json:"oracle_state_account"`
	VaultLstAccount    solana.PublicKey `json:"vault_lst_account"`

	DepositsDisabled bool   `json:"deposits_disabled"`
	DepositCap       uint64 `json:"deposit_cap"` // 0 = no cap

	LstSolPriceP32       quant.PriceP32 `json:"lst_sol_price_p32"`
	LstSolPriceTimestamp int64          `json:"lst_sol_price_timestamp"`

	LocallyStoredAmount    uint64 `json:"locally_stored_amount"`
	InStrategiesAmount     uint64 `json:"in_strategies_amount"`
	VaultTotalLstAmount    uint64 `json:"vault_total_lst_amount"`
	TicketsTargetSolAmount uint64 `json:"tickets_target_sol_amount"`

	WhitelistedStrategies []Strategy `json:"whitelisted_strategies"`

	LastSeq uint64 `json:"last_seq"`
}

// SecondaryVaultConfig carries the optional fields of a configure call.
type SecondaryVaultConfig struct {
	DepositsDisabled *bool   `json:"deposits_disabled,omitempty"`
	DepositCap       *uint64 `json:"deposit_cap,omitempty"`
}

// NewSecondaryVault creates a vault with deposits disabled and no price.
func NewSecondaryVault(mint solana.PublicKey, kind OracleKind, oracleState, vaultAccount solana.PublicKey) *SecondaryVault {
	return &SecondaryVault{
		LstMint:               mint,
		Kind:                  kind,
		OracleStateAccount:    oracleState,
		VaultLstAccount:       vaultAccount,
		DepositsDisabled:      true,
		WhitelistedStrategies: []Strategy{},
	}
}

// Clone returns a deep copy.
func (v *SecondaryVault) Clone() *SecondaryVault {
	c := *v
	c.WhitelistedStrategies = slices.Clone(v.WhitelistedStrategies)
	return &c
}

// Configure applies the supplied fields. It has no balance effects.
func (v *SecondaryVault) Configure(cfg SecondaryVaultConfig) {
	if cfg.DepositsDisabled != nil {
		v.DepositsDisabled = *cfg.DepositsDisabled
	}
	if cfg.DepositCap != nil {
		v.DepositCap = *cfg.DepositCap
	}
}

// RefreshPrice stores a new price. A result observed before the stored one is
// dropped and reported as not applied.
func (v *SecondaryVault) RefreshPrice(price quant.PriceP32, observedAt int64) bool {
	if observedAt < v.LstSolPriceTimestamp {
		return false
	}
	v.LstSolPriceP32 = price
	v.LstSolPriceTimestamp = observedAt
	return true
}

// CheckPriceFresh fails when the cached price is older than maxAge seconds.
// maxAge 0 disables the check.
func (v *SecondaryVault) CheckPriceFresh(now int64, maxAge uint64) error {
	if maxAge == 0 {
		return nil
	}
	if now-v.LstSolPriceTimestamp > int64(maxAge) {
		return ErrPriceStale
	}
	return nil
}

// SolValue is the vault's total holdings valued at the cached price.
func (v *SecondaryVault) SolValue() (uint64, error) {
	sol, err := quant.ToSolValue(v.VaultTotalLstAmount, v.LstSolPriceP32)
	return sol, ArithmeticError(err)
}

// ToSolValue values lst units at the cached price.
func (v *SecondaryVault) ToSolValue(lst uint64) (uint64, error) {
	sol, err := quant.ToSolValue(lst, v.LstSolPriceP32)
	return sol, ArithmeticError(err)
}

// FromSolValue converts sol into LST units at the cached price.
func (v *SecondaryVault) FromSolValue(sol uint64) (uint64, error) {
	lst, err := quant.FromSolValue(sol, v.LstSolPriceP32)
	return lst, ArithmeticError(err)
}

// RecordDeposit adds lst units to custody.
func (v *SecondaryVault) RecordDeposit(lst uint64) error {
	if v.DepositsDisabled {
		return ErrDepositsInThisVaultAreDisabled
	}
	total, err := safe.Add(v.VaultTotalLstAmount, lst)
	if err != nil {
		return ArithmeticError(err)
	}
	if v.DepositCap > 0 && total > v.DepositCap {
		return ErrDepositCapExceeded
	}
	v.LocallyStoredAmount += lst // bounded by total
	v.VaultTotalLstAmount = total
	return nil
}

// RecordWithdrawal removes lst units from custody.
func (v *SecondaryVault) RecordWithdrawal(lst uint64) error {
	if lst > v.VaultTotalLstAmount || lst > v.LocallyStoredAmount {
		return ErrInsufficientVaultBalance
	}
	v.LocallyStoredAmount -= lst
	v.VaultTotalLstAmount -= lst
	return nil
}

func (v *SecondaryVault) strategyIndex(addr solana.PublicKey) int {
	return slices.IndexFunc(v.WhitelistedStrategies, func(s Strategy) bool {
		return s.Address.Equals(addr)
	})
}

// Strategy returns the attached strategy with the given address.
func (v *SecondaryVault) Strategy(addr solana.PublicKey) (Strategy, bool) {
	i := v.strategyIndex(addr)
	if i < 0 {
		return Strategy{}, false
	}
	return v.WhitelistedStrategies[i], true
}

// AttachStrategy whitelists a new strategy with no funds.
func (v *SecondaryVault) AttachStrategy(addr solana.PublicKey, now int64) error {
	if v.strategyIndex(addr) >= 0 {
		return ErrStrategyAlreadyAttached
	}
	v.WhitelistedStrategies = append(v.WhitelistedStrategies, Strategy{Address: addr, LastUpdateUnixS: now})
	return nil
}

// TransferToStrategy lends lst units from custody to a strategy.
func (v *SecondaryVault) TransferToStrategy(addr solana.PublicKey, lst uint64, now int64) error {
	i := v.strategyIndex(addr)
	if i < 0 {
		return ErrStrategyNotFound
	}
	if lst > v.LocallyStoredAmount {
		return ErrInsufficientVaultBalance
	}
	v.LocallyStoredAmount -= lst
	v.InStrategiesAmount += lst
	v.WhitelistedStrategies[i].LstAmount += lst
	v.WhitelistedStrategies[i].LastUpdateUnixS = now
	return nil
}

// ReturnFromStrategy brings lst units back into custody.
func (v *SecondaryVault) ReturnFromStrategy(addr solana.PublicKey, lst uint64, now int64) error {
	i := v.strategyIndex(addr)
	if i < 0 {
		return ErrStrategyNotFound
	}
	if lst > v.WhitelistedStrategies[i].LstAmount {
		return ErrInsufficientVaultBalance
	}
	v.WhitelistedStrategies[i].LstAmount -= lst
	v.WhitelistedStrategies[i].LastUpdateUnixS = now
	v.InStrategiesAmount -= lst
	v.LocallyStoredAmount += lst
	return nil
}

// UpdateStrategyAmount records the strategy's current holdings. It returns the
// previous amount so the caller can book the profit or loss.
func (v *SecondaryVault) UpdateStrategyAmount(addr solana.PublicKey, lst uint64, now int64) (uint64, error) {
	i := v.strategyIndex(addr)
	if i < 0 {
		return 0, ErrStrategyNotFound
	}
	prev := v.WhitelistedStrategies[i].LstAmount
	inStrategies := v.InStrategiesAmount - prev
	inStrategies, err := safe.Add(inStrategies, lst)
	if err != nil {
		return 0, ArithmeticError(err)
	}
	total, err := safe.Add(v.LocallyStoredAmount, inStrategies)
	if err != nil {
		return 0, ArithmeticError(err)
	}
	v.WhitelistedStrategies[i].LstAmount = lst
	v.WhitelistedStrategies[i].LastUpdateUnixS = now
	v.InStrategiesAmount = inStrategies
	v.VaultTotalLstAmount = total
	return prev, nil
}

// AvailableForStrategies is the locally stored amount not earmarked for tickets.
func (v *SecondaryVault) AvailableForStrategies() uint64 {
	if v.LstSolPriceP32 == 0 {
		return 0
	}
	reserved, err := quant.FromSolValue(v.TicketsTargetSolAmount, v.LstSolPriceP32)
	if err != nil {
		return 0
	}
	return safe.SaturatingSub(v.LocallyStoredAmount, reserved)
}

// VerifyInvariant checks the custody split. Call this after any state change.
func (v *SecondaryVault) VerifyInvariant() {
	if v.LocallyStoredAmount+v.InStrategiesAmount != v.VaultTotalLstAmount {
		panic(fmt.Sprintf("VAULT_INVARIANT_TOTAL_MISMATCH: %s locally=%d in_strategies=%d total=%d",
			v.LstMint, v.LocallyStoredAmount, v.InStrategiesAmount, v.VaultTotalLstAmount))
	}
	var sum uint64
	for _, s := range v.WhitelistedStrategies {
		sum += s.LstAmount
	}
	if sum != v.InStrategiesAmount {
		panic(fmt.Sprintf("VAULT_INVARIANT_STRATEGY_SUM_MISMATCH: %s strategies=%d in_strategies=%d",
			v.LstMint, sum, v.InStrategiesAmount))
	}
}
