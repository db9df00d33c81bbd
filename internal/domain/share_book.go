package domain

import (
	"fmt"
	"maps"

	"github.com/gagliardetto/solana-go"

	"mpsol_restaking/pkg/safe"
)

// ShareBook mirrors the mpSOL mint: per-owner share balances whose sum is the
// main vault's ShareMintSupply.
type ShareBook struct {
	balances map[solana.PublicKey]uint64
	supply   uint64
}

// NewShareBook creates an empty share book.
func NewShareBook() *ShareBook {
	return &ShareBook{
		balances: make(map[solana.PublicKey]uint64),
	}
}

// RestoreShareBook rebuilds a book from persisted balances.
func RestoreShareBook(balances map[solana.PublicKey]uint64) (*ShareBook, error) {
	sb := NewShareBook()
	for owner, amount := range balances {
		if err := sb.Mint(owner, amount); err != nil {
			return nil, err
		}
	}
	return sb, nil
}

// BalanceOf returns the owner's share balance.
func (sb *ShareBook) BalanceOf(owner solana.PublicKey) uint64 {
	return sb.balances[owner]
}

// Supply returns the sum of all balances.
func (sb *ShareBook) Supply() uint64 {
	return sb.supply
}

// Mint credits shares to owner.
func (sb *ShareBook) Mint(owner solana.PublicKey, amount uint64) error {
	if amount == 0 {
		return nil
	}
	supply, err := safe.Add(sb.supply, amount)
	if err != nil {
		return ErrArithmeticOverflow
	}
	sb.balances[owner] += amount // bounded by supply
	sb.supply = supply
	return nil
}

// Burn debits shares from owner.
func (sb *ShareBook) Burn(owner solana.PublicKey, amount uint64) error {
	bal := sb.balances[owner]
	if amount > bal {
		return ErrInsufficientShareBalance
	}
	if bal == amount {
		delete(sb.balances, owner)
	} else {
		sb.balances[owner] = bal - amount
	}
	sb.supply -= amount
	return nil
}

// Clone returns a deep copy.
func (sb *ShareBook) Clone() *ShareBook {
	return &ShareBook{balances: maps.Clone(sb.balances), supply: sb.supply}
}

// VerifyInvariant panics when the book disagrees with the mint supply.
func (sb *ShareBook) VerifyInvariant(mintSupply uint64) {
	var sum uint64
	for _, v := range sb.balances {
		sum += v
	}
	if sum != sb.supply {
		panic(fmt.Sprintf("SHARE_INVARIANT_SUM_MISMATCH: sum=%d supply=%d", sum, sb.supply))
	}
	if sb.supply != mintSupply {
		panic(fmt.Sprintf("SHARE_INVARIANT_SUPPLY_MISMATCH: book=%d mint=%d", sb.supply, mintSupply))
	}
}

// Snapshot returns a copy of all balances (for state dump).
func (sb *ShareBook) Snapshot() map[solana.PublicKey]uint64 {
	return maps.Clone(sb.balances)
}
