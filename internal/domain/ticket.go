package domain

import (
	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"

	"mpsol_restaking/pkg/safe"
)

// UnstakeTicket is a time-locked claim on SOL value, redeemable in any
// whitelisted LST once due. Created by unstake, reduced and closed by claims.
type UnstakeTicket struct {
	ID                 uuid.UUID        `json:"id"`
	MainState          solana.PublicKey `json:"main_state"`
	Beneficiary        solana.PublicKey `json:"beneficiary"`
	TicketDueTimestamp int64            `json:"ticket_due_timestamp"`
	TicketSolValue     uint64           `json:"ticket_sol_value"`
	LastSeq            uint64           `json:"last_seq"`
}

// NewUnstakeTicket creates a ticket due waitingPeriod seconds after now.
func NewUnstakeTicket(id uuid.UUID, mainState, beneficiary solana.PublicKey, solValue uint64, now int64, waitingPeriod uint64) (*UnstakeTicket, error) {
	due, err := safe.Add(uint64(now), waitingPeriod)
	if err != nil || due > 1<<62 {
		return nil, ErrArithmeticOverflow
	}
	return &UnstakeTicket{
		ID:                 id,
		MainState:          mainState,
		Beneficiary:        beneficiary,
		TicketDueTimestamp: int64(due),
		TicketSolValue:     solValue,
	}, nil
}

// IsDue reports whether the ticket can be claimed at now.
func (t *UnstakeTicket) IsDue(now int64) bool {
	return now >= t.TicketDueTimestamp
}

// Debit reduces the remaining value and reports whether the ticket is exhausted.
func (t *UnstakeTicket) Debit(solValue uint64) (bool, error) {
	if solValue > t.TicketSolValue {
		return false, ErrClaimExceedsTicketValue
	}
	t.TicketSolValue -= solValue
	return t.TicketSolValue == 0, nil
}
