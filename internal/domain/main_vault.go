package domain

import (
	"slices"

	"github.com/gagliardetto/solana-go"

	"mpsol_restaking/pkg/quant"
	"mpsol_restaking/pkg/safe"
)

const (
	// MaxWhitelistedVaults bounds the number of LSTs a pool accepts.
	MaxWhitelistedVaults = 64

	// DefaultMinMovementLamports is the smallest stake, unstake or partial claim accepted.
	DefaultMinMovementLamports uint64 = 1_000_000

	// DefaultMaxPriceAge is how long (seconds) a cached LST price is usable for deposits.
	DefaultMaxPriceAge uint64 = 24 * 60 * 60

	// DefaultUnstakeTicketWaitingPeriod is the delay (seconds) before a new ticket can be claimed.
	DefaultUnstakeTicketWaitingPeriod uint64 = 48 * 60 * 60
)

// MainVault holds pool-wide share accounting.
type MainVault struct {
	ID                          solana.PublicKey `json:"id"`
	Admin                       solana.PublicKey `json:"admin"`
	OperatorAuthority           solana.PublicKey `json:"operator_authority"`
	StrategyRebalancerAuthority solana.PublicKey `json:"strategy_rebalancer_authority"`
	// PriceAuthority signs oracle observations. Zero means the operator does.
	PriceAuthority solana.PublicKey `json:"price_authority"`

	ShareMintSupply            uint64 `json:"share_mint_supply"`
	BackingSolValue            uint64 `json:"backing_sol_value"`
	OutstandingTicketsSolValue uint64 `json:"outstanding_tickets_sol_value"`

	DepositFeeBp               uint16 `json:"deposit_fee_bp"`
	PerformanceFeeBp           uint16 `json:"performance_fee_bp"`
	UnstakeTicketWaitingPeriod uint64 `json:"unstake_ticket_waiting_period"`
	MinMovementLamports        uint64 `json:"min_movement_lamports"`
	MaxPriceAge                uint64 `json:"max_price_age"`

	WhitelistedVaults    []solana.PublicKey `json:"whitelisted_vaults"`
	TreasuryShareAccount *solana.PublicKey  `json:"treasury_share_account,omitempty"`

	LastSeq uint64 `json:"last_seq"`
}

// MainVaultConfig carries the optional fields of a configure call.
// A nil field leaves the current value unchanged.
type MainVaultConfig struct {
	DepositFeeBp                *uint16           `json:"deposit_fee_bp,omitempty"`
	PerformanceFeeBp            *uint16           `json:"performance_fee_bp,omitempty"`
	UnstakeTicketWaitingPeriod  *uint64           `json:"unstake_ticket_waiting_period,omitempty"`
	MinMovementLamports         *uint64           `json:"min_movement_lamports,omitempty"`
	MaxPriceAge                 *uint64           `json:"max_price_age,omitempty"`
	TreasuryShareAccount        *solana.PublicKey `json:"treasury_share_account,omitempty"`
	OperatorAuthority           *solana.PublicKey `json:"operator_authority,omitempty"`
	StrategyRebalancerAuthority *solana.PublicKey `json:"strategy_rebalancer_authority,omitempty"`
	PriceAuthority              *solana.PublicKey `json:"price_authority,omitempty"`
}

// DepositQuote is the share side of a deposit.
type DepositQuote struct {
	GrossShares uint64 `json:"gross_shares"`
	FeeShares   uint64 `json:"fee_shares"`
	NetShares   uint64 `json:"net_shares"`
}

// NewMainVault creates an empty pool. Balances start at zero and fees at zero.
func NewMainVault(id, admin, operator, rebalancer solana.PublicKey) *MainVault {
	return &MainVault{
		ID:                          id,
		Admin:                       admin,
		OperatorAuthority:           operator,
		StrategyRebalancerAuthority: rebalancer,
		UnstakeTicketWaitingPeriod:  DefaultUnstakeTicketWaitingPeriod,
		MinMovementLamports:         DefaultMinMovementLamports,
		MaxPriceAge:                 DefaultMaxPriceAge,
		WhitelistedVaults:           []solana.PublicKey{},
	}
}

// Clone returns a deep copy.
func (m *MainVault) Clone() *MainVault {
	c := *m
	c.WhitelistedVaults = slices.Clone(m.WhitelistedVaults)
	if m.TreasuryShareAccount != nil {
		t := *m.TreasuryShareAccount
		c.TreasuryShareAccount = &t
	}
	return &c
}

func (m *MainVault) IsAdmin(p solana.PublicKey) bool {
	return p.Equals(m.Admin)
}

// IsOperator accepts the operator authority or the admin.
func (m *MainVault) IsOperator(p solana.PublicKey) bool {
	return p.Equals(m.OperatorAuthority) || m.IsAdmin(p)
}

// IsRebalancer accepts the strategy rebalancer authority or the admin.
func (m *MainVault) IsRebalancer(p solana.PublicKey) bool {
	return p.Equals(m.StrategyRebalancerAuthority) || m.IsAdmin(p)
}

// IsPriceAuthority accepts the configured price authority, the operator or the admin.
func (m *MainVault) IsPriceAuthority(p solana.PublicKey) bool {
	if !m.PriceAuthority.IsZero() && p.Equals(m.PriceAuthority) {
		return true
	}
	return m.IsOperator(p)
}

func (m *MainVault) IsWhitelisted(mint solana.PublicKey) bool {
	return slices.ContainsFunc(m.WhitelistedVaults, mint.Equals)
}

// RegisterVault appends mint to the whitelist.
func (m *MainVault) RegisterVault(mint solana.PublicKey) error {
	if m.IsWhitelisted(mint) {
		return ErrVaultAlreadyWhitelisted
	}
	if len(m.WhitelistedVaults) >= MaxWhitelistedVaults {
		return ErrMaxWhitelistedVaultsReached
	}
	m.WhitelistedVaults = append(m.WhitelistedVaults, mint)
	return nil
}

// Configure validates every supplied field before applying any of them.
func (m *MainVault) Configure(cfg MainVaultConfig) error {
	if cfg.DepositFeeBp != nil && *cfg.DepositFeeBp > quant.BasisPoints100 {
		return ErrFeeOutOfRange
	}
	if cfg.PerformanceFeeBp != nil && *cfg.PerformanceFeeBp > quant.BasisPoints100 {
		return ErrFeeOutOfRange
	}

	if cfg.DepositFeeBp != nil {
		m.DepositFeeBp = *cfg.DepositFeeBp
	}
	if cfg.PerformanceFeeBp != nil {
		m.PerformanceFeeBp = *cfg.PerformanceFeeBp
	}
	if cfg.UnstakeTicketWaitingPeriod != nil {
		m.UnstakeTicketWaitingPeriod = *cfg.UnstakeTicketWaitingPeriod
	}
	if cfg.MinMovementLamports != nil {
		m.MinMovementLamports = *cfg.MinMovementLamports
	}
	if cfg.MaxPriceAge != nil {
		m.MaxPriceAge = *cfg.MaxPriceAge
	}
	if cfg.TreasuryShareAccount != nil {
		t := *cfg.TreasuryShareAccount
		m.TreasuryShareAccount = &t
	}
	if cfg.OperatorAuthority != nil {
		m.OperatorAuthority = *cfg.OperatorAuthority
	}
	if cfg.StrategyRebalancerAuthority != nil {
		m.StrategyRebalancerAuthority = *cfg.StrategyRebalancerAuthority
	}
	if cfg.PriceAuthority != nil {
		m.PriceAuthority = *cfg.PriceAuthority
	}
	return nil
}

// QuoteSharesForDeposit converts a SOL value into shares at the current pool
// ratio and splits off the deposit fee. It does not modify the vault.
func (m *MainVault) QuoteSharesForDeposit(solValue uint64) (DepositQuote, error) {
	gross, err := quant.SharesForSolValue(solValue, m.BackingSolValue, m.ShareMintSupply)
	if err != nil {
		return DepositQuote{}, ArithmeticError(err)
	}
	fee, err := quant.ApplyBp(gross, m.DepositFeeBp)
	if err != nil {
		return DepositQuote{}, ArithmeticError(err)
	}
	return DepositQuote{GrossShares: gross, FeeShares: fee, NetShares: gross - fee}, nil
}

// Deposit quotes solValue and books it: backing grows by the full value,
// supply by the net shares only.
func (m *MainVault) Deposit(solValue uint64) (DepositQuote, error) {
	q, err := m.QuoteSharesForDeposit(solValue)
	if err != nil {
		return DepositQuote{}, err
	}
	backing, err := safe.Add(m.BackingSolValue, solValue)
	if err != nil {
		return DepositQuote{}, ArithmeticError(err)
	}
	supply, err := safe.Add(m.ShareMintSupply, q.NetShares)
	if err != nil {
		return DepositQuote{}, ArithmeticError(err)
	}
	m.BackingSolValue = backing
	m.ShareMintSupply = supply
	return q, nil
}

// QuoteSolForUnstake converts shares into SOL value at the current pool ratio.
func (m *MainVault) QuoteSolForUnstake(shares uint64) (uint64, error) {
	if m.ShareMintSupply == 0 || shares > m.ShareMintSupply {
		return 0, ErrInsufficientShareBalance
	}
	sol, err := quant.SolValueForShares(shares, m.BackingSolValue, m.ShareMintSupply)
	return sol, ArithmeticError(err)
}

// Unstake burns shares and moves their SOL value from backing to outstanding tickets.
func (m *MainVault) Unstake(shares uint64) (uint64, error) {
	sol, err := m.QuoteSolForUnstake(shares)
	if err != nil {
		return 0, err
	}
	outstanding, err := safe.Add(m.OutstandingTicketsSolValue, sol)
	if err != nil {
		return 0, ArithmeticError(err)
	}
	// sol <= backing since shares <= supply
	m.ShareMintSupply -= shares
	m.BackingSolValue -= sol
	m.OutstandingTicketsSolValue = outstanding
	return sol, nil
}

// SettleTicketClaim removes a claimed amount from the outstanding ticket total.
func (m *MainVault) SettleTicketClaim(ticketValue, claimed uint64) error {
	if claimed > ticketValue {
		return ErrClaimExceedsTicketValue
	}
	outstanding, err := safe.Sub(m.OutstandingTicketsSolValue, claimed)
	if err != nil {
		return ArithmeticError(err)
	}
	m.OutstandingTicketsSolValue = outstanding
	return nil
}

// Remark moves backing by the difference between two valuations of the same
// holdings. Slashing saturates at zero.
func (m *MainVault) Remark(oldSolValue, newSolValue uint64) error {
	if newSolValue >= oldSolValue {
		backing, err := safe.Add(m.BackingSolValue, newSolValue-oldSolValue)
		if err != nil {
			return ArithmeticError(err)
		}
		m.BackingSolValue = backing
		return nil
	}
	m.BackingSolValue = safe.SaturatingSub(m.BackingSolValue, oldSolValue-newSolValue)
	return nil
}

// MintFeeShares mints shares worth feeSolValue at the current ratio without
// adding backing. Returns the minted amount.
func (m *MainVault) MintFeeShares(feeSolValue uint64) (uint64, error) {
	if feeSolValue == 0 || m.ShareMintSupply == 0 {
		return 0, nil
	}
	shares, err := quant.SharesForSolValue(feeSolValue, m.BackingSolValue, m.ShareMintSupply)
	if err != nil {
		return 0, ArithmeticError(err)
	}
	supply, err := safe.Add(m.ShareMintSupply, shares)
	if err != nil {
		return 0, ArithmeticError(err)
	}
	m.ShareMintSupply = supply
	return shares, nil
}

// SharePrice returns backing per share as a P32 price; an empty pool is at par.
func (m *MainVault) SharePrice() quant.PriceP32 {
	if m.ShareMintSupply == 0 {
		return quant.PriceOne
	}
	p, err := quant.PriceFromRatio(m.BackingSolValue, m.ShareMintSupply)
	if err != nil {
		return 0
	}
	return p
}
