package ledger

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"mpsol_restaking/internal/domain"
)

// State is a full copy of the pool, used for snapshots and state dumps.
type State struct {
	Main    *domain.MainVault           `json:"main"`
	Vaults  []*domain.SecondaryVault    `json:"vaults"`
	Tickets []*domain.UnstakeTicket     `json:"tickets"`
	Shares  map[solana.PublicKey]uint64 `json:"shares"`
}

// State copies the whole pool.
func (p *Pool) State() State {
	s := State{
		Vaults:  p.SecondaryVaults(),
		Tickets: p.Tickets(),
		Shares:  p.shares.Snapshot(),
	}
	if p.main != nil {
		s.Main = p.main.Clone()
	}
	return s
}

// Restore rebuilds a pool from a snapshot and checks its invariants.
func Restore(s State) (*Pool, error) {
	p := NewPool()
	if s.Main == nil {
		if len(s.Vaults) > 0 || len(s.Tickets) > 0 || len(s.Shares) > 0 {
			return nil, fmt.Errorf("restore: entities without a main vault")
		}
		return p, nil
	}
	p.main = s.Main.Clone()

	for _, v := range s.Vaults {
		if !p.main.IsWhitelisted(v.LstMint) {
			return nil, fmt.Errorf("restore: vault %s is not whitelisted", v.LstMint)
		}
		p.vaults[v.LstMint] = v.Clone()
	}
	for _, t := range s.Tickets {
		c := *t
		p.tickets[t.ID] = &c
	}
	shares, err := domain.RestoreShareBook(s.Shares)
	if err != nil {
		return nil, fmt.Errorf("restore shares: %w", err)
	}
	p.shares = shares

	if err := verifyRecovered(p); err != nil {
		return nil, err
	}
	return p, nil
}

func verifyRecovered(p *Pool) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("restore: %v", r)
		}
	}()
	p.VerifyAll()
	return nil
}
