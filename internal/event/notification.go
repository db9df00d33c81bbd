package event

import (
	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"mpsol_restaking/pkg/quant"
)

const (
	TypeStakeEvent       Type = "stake_event"
	TypeUnstakeEvent     Type = "unstake_event"
	TypeTicketClaimEvent Type = "ticket_claim_event"
	TypePriceUpdateEvent Type = "price_update_event"
	TypeStrategyEvent    Type = "strategy_event"
)

// Notification is emitted after a command commits.
type Notification interface {
	GetSeq() uint64
	GetType() Type
}

// BaseEvent carries the sequence number and time of the command that produced it.
type BaseEvent struct {
	Seq uint64 `json:"seq"`
	Ts  int64  `json:"ts"`
}

func (e BaseEvent) GetSeq() uint64 { return e.Seq }

type StakeEvent struct {
	BaseEvent
	MainState                solana.PublicKey `json:"main_state"`
	TokenMint                solana.PublicKey `json:"token_mint"`
	Depositor                solana.PublicKey `json:"depositor"`
	Amount                   uint64           `json:"amount"`
	DepositedSolValue        uint64           `json:"deposited_sol_value"`
	MpsolReceived            uint64           `json:"mpsol_received"`
	DepositFee               uint64           `json:"deposit_fee"`
	MainVaultBackingSolValue uint64           `json:"main_vault_backing_sol_value"`
	MpsolSupply              uint64           `json:"mpsol_supply"`
}

func (e StakeEvent) GetType() Type { return TypeStakeEvent }

type UnstakeEvent struct {
	BaseEvent
	MainState                solana.PublicKey `json:"main_state"`
	Beneficiary              solana.PublicKey `json:"beneficiary"`
	TicketID                 uuid.UUID        `json:"ticket_id"`
	MpsolBurned              uint64           `json:"mpsol_burned"`
	TicketSolValue           uint64           `json:"ticket_sol_value"`
	TicketDueTimestamp       int64            `json:"ticket_due_timestamp"`
	MainVaultBackingSolValue uint64           `json:"main_vault_backing_sol_value"`
	MpsolSupply              uint64           `json:"mpsol_supply"`
}

func (e UnstakeEvent) GetType() Type { return TypeUnstakeEvent }

type TicketClaimEvent struct {
	BaseEvent
	MainState         solana.PublicKey `json:"main_state"`
	TicketID          uuid.UUID        `json:"ticket_id"`
	Beneficiary       solana.PublicKey `json:"beneficiary"`
	LstMint           solana.PublicKey `json:"lst_mint"`
	SolClaimed        uint64           `json:"sol_claimed"`
	LstDelivered      uint64           `json:"lst_delivered"`
	RemainingSolValue uint64           `json:"remaining_sol_value"`
	Closed            bool             `json:"closed"`
}

func (e TicketClaimEvent) GetType() Type { return TypeTicketClaimEvent }

type PriceUpdateEvent struct {
	BaseEvent
	MainState                solana.PublicKey `json:"main_state"`
	LstMint                  solana.PublicKey `json:"lst_mint"`
	OldPrice                 quant.PriceP32   `json:"old_price"`
	NewPrice                 quant.PriceP32   `json:"new_price"`
	ObservedAt               int64            `json:"observed_at"`
	OldSolValue              uint64           `json:"old_sol_value"`
	NewSolValue              uint64           `json:"new_sol_value"`
	MainVaultBackingSolValue uint64           `json:"main_vault_backing_sol_value"`
	MpsolSupply              uint64           `json:"mpsol_supply"`
}

func (e PriceUpdateEvent) GetType() Type { return TypePriceUpdateEvent }

// StrategyEvent reports a strategy holdings update and the fee it produced.
type StrategyEvent struct {
	BaseEvent
	MainState                solana.PublicKey `json:"main_state"`
	LstMint                  solana.PublicKey `json:"lst_mint"`
	Strategy                 solana.PublicKey `json:"strategy"`
	PreviousLstAmount        uint64           `json:"previous_lst_amount"`
	LstAmount                uint64           `json:"lst_amount"`
	PerformanceFeeShares     uint64           `json:"performance_fee_shares"`
	MainVaultBackingSolValue uint64           `json:"main_vault_backing_sol_value"`
	MpsolSupply              uint64           `json:"mpsol_supply"`
}

func (e StrategyEvent) GetType() Type { return TypeStrategyEvent }
