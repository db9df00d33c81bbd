package event

import (
	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"mpsol_restaking/internal/domain"
	"mpsol_restaking/pkg/quant"
)

// Type names a command or notification. It is stored in the WAL.
type Type string

const (
	TypeInitialize              Type = "initialize"
	TypeCreateSecondaryVault    Type = "create_secondary_vault"
	TypeConfigureMainVault      Type = "configure_main_vault"
	TypeConfigureSecondaryVault Type = "configure_secondary_vault"
	TypeUpdatePrice             Type = "update_price"
	TypeStake                   Type = "stake"
	TypeUnstake                 Type = "unstake"
	TypeTicketClaim             Type = "ticket_claim"
	TypeAttachStrategy          Type = "attach_strategy"
	TypeTransferToStrategy      Type = "transfer_to_strategy"
	TypeReturnFromStrategy      Type = "return_from_strategy"
	TypeUpdateStrategyAmount    Type = "update_strategy_amount"
	TypeSetTicketsTarget        Type = "set_tickets_target"
)

// Command is a state transition request handled by the sequencer.
type Command interface {
	GetSeq() uint64
	GetTs() int64
	GetType() Type
	GetCaller() solana.PublicKey
	Stamp(seq uint64, ts int64)
}

// BaseCommand carries the header every command shares.
// Seq and Ts are assigned by the sequencer, Caller by the authenticating boundary.
type BaseCommand struct {
	Seq    uint64           `json:"seq"`
	Ts     int64            `json:"ts"` // unix seconds
	Caller solana.PublicKey `json:"caller"`
}

func (b *BaseCommand) GetSeq() uint64              { return b.Seq }
func (b *BaseCommand) GetTs() int64                { return b.Ts }
func (b *BaseCommand) GetCaller() solana.PublicKey { return b.Caller }

// Stamp sets the sequence number and timestamp.
func (b *BaseCommand) Stamp(seq uint64, ts int64) {
	b.Seq = seq
	b.Ts = ts
}

// InitializeCommand creates the main vault. The caller becomes admin.
type InitializeCommand struct {
	BaseCommand
	MainState                   solana.PublicKey       `json:"main_state"`
	OperatorAuthority           solana.PublicKey       `json:"operator_authority"`
	StrategyRebalancerAuthority solana.PublicKey       `json:"strategy_rebalancer_authority"`
	Config                      domain.MainVaultConfig `json:"config"`
}

func (c *InitializeCommand) GetType() Type { return TypeInitialize }

// CreateSecondaryVaultCommand whitelists an LST and creates its vault.
type CreateSecondaryVaultCommand struct {
	BaseCommand
	LstMint            solana.PublicKey  `json:"lst_mint"`
	Kind               domain.OracleKind `json:"kind"`
	OracleStateAccount solana.PublicKey  `json:"oracle_state_account"`
	VaultLstAccount    solana.PublicKey  `json:"vault_lst_account"`
}

func (c *CreateSecondaryVaultCommand) GetType() Type { return TypeCreateSecondaryVault }

type ConfigureMainVaultCommand struct {
	BaseCommand
	Config domain.MainVaultConfig `json:"config"`
}

func (c *ConfigureMainVaultCommand) GetType() Type { return TypeConfigureMainVault }

type ConfigureSecondaryVaultCommand struct {
	BaseCommand
	LstMint solana.PublicKey            `json:"lst_mint"`
	Config  domain.SecondaryVaultConfig `json:"config"`
}

func (c *ConfigureSecondaryVaultCommand) GetType() Type { return TypeConfigureSecondaryVault }

// UpdatePriceCommand stores an oracle observation. Only the price authority, the
// operator or the admin may submit it.
type UpdatePriceCommand struct {
	BaseCommand
	LstMint    solana.PublicKey `json:"lst_mint"`
	Price      quant.PriceP32   `json:"price"`
	ObservedAt int64            `json:"observed_at"`
}

func (c *UpdatePriceCommand) GetType() Type { return TypeUpdatePrice }

// StakeCommand deposits LstAmount of LstMint for the caller.
type StakeCommand struct {
	BaseCommand
	LstMint   solana.PublicKey `json:"lst_mint"`
	LstAmount uint64           `json:"lst_amount"`
}

func (c *StakeCommand) GetType() Type { return TypeStake }

// UnstakeCommand burns the caller's shares into a new ticket.
type UnstakeCommand struct {
	BaseCommand
	Shares uint64 `json:"shares"`
}

func (c *UnstakeCommand) GetType() Type { return TypeUnstake }

// PriceObservation is an oracle result attached to a claim. It is honoured
// only when the claimant is also the price authority.
type PriceObservation struct {
	Price      quant.PriceP32 `json:"price"`
	ObservedAt int64          `json:"observed_at"`
}

// TicketClaimCommand redeems SolAmount of a ticket in LstMint.
type TicketClaimCommand struct {
	BaseCommand
	TicketID   uuid.UUID         `json:"ticket_id"`
	LstMint    solana.PublicKey  `json:"lst_mint"`
	SolAmount  uint64            `json:"sol_amount"`
	FreshPrice *PriceObservation `json:"fresh_price,omitempty"`
}

func (c *TicketClaimCommand) GetType() Type { return TypeTicketClaim }

type AttachStrategyCommand struct {
	BaseCommand
	LstMint  solana.PublicKey `json:"lst_mint"`
	Strategy solana.PublicKey `json:"strategy"`
}

func (c *AttachStrategyCommand) GetType() Type { return TypeAttachStrategy }

type TransferToStrategyCommand struct {
	BaseCommand
	LstMint   solana.PublicKey `json:"lst_mint"`
	Strategy  solana.PublicKey `json:"strategy"`
	LstAmount uint64           `json:"lst_amount"`
}

func (c *TransferToStrategyCommand) GetType() Type { return TypeTransferToStrategy }

type ReturnFromStrategyCommand struct {
	BaseCommand
	LstMint   solana.PublicKey `json:"lst_mint"`
	Strategy  solana.PublicKey `json:"strategy"`
	LstAmount uint64           `json:"lst_amount"`
}

func (c *ReturnFromStrategyCommand) GetType() Type { return TypeReturnFromStrategy }

// UpdateStrategyAmountCommand reports a strategy's current LST holdings.
type UpdateStrategyAmountCommand struct {
	BaseCommand
	LstMint   solana.PublicKey `json:"lst_mint"`
	Strategy  solana.PublicKey `json:"strategy"`
	LstAmount uint64           `json:"lst_amount"`
}

func (c *UpdateStrategyAmountCommand) GetType() Type { return TypeUpdateStrategyAmount }

type SetTicketsTargetCommand struct {
	BaseCommand
	LstMint   solana.PublicKey `json:"lst_mint"`
	SolAmount uint64           `json:"sol_amount"`
}

func (c *SetTicketsTargetCommand) GetType() Type { return TypeSetTicketsTarget }
