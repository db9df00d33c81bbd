package domain

import (
	"errors"
	"testing"

	"github.com/gagliardetto/solana-go"
)

func TestShareBook(t *testing.T) {
	sb := NewShareBook()
	alice := solana.NewWallet().PublicKey()
	bob := solana.NewWallet().PublicKey()

	if err := sb.Mint(alice, 700); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := sb.Mint(bob, 300); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sb.Supply() != 1_000 {
		t.Errorf("Expected supply 1000, got %d", sb.Supply())
	}

	if err := sb.Burn(bob, 301); !errors.Is(err, ErrInsufficientShareBalance) {
		t.Errorf("Expected ErrInsufficientShareBalance, got %v", err)
	}
	if err := sb.Burn(bob, 300); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sb.BalanceOf(bob) != 0 || sb.Supply() != 700 {
		t.Errorf("Expected bob 0 and supply 700, got %d and %d", sb.BalanceOf(bob), sb.Supply())
	}
	if _, ok := sb.Snapshot()[bob]; ok {
		t.Error("Empty balances should be removed")
	}

	sb.VerifyInvariant(700)
}

func TestShareBook_CloneAndRestore(t *testing.T) {
	sb := NewShareBook()
	owner := solana.NewWallet().PublicKey()
	_ = sb.Mint(owner, 5)

	c := sb.Clone()
	_ = c.Mint(owner, 5)
	if sb.BalanceOf(owner) != 5 {
		t.Errorf("Clone mutation leaked into original: %d", sb.BalanceOf(owner))
	}

	restored, err := RestoreShareBook(c.Snapshot())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if restored.Supply() != 10 || restored.BalanceOf(owner) != 10 {
		t.Errorf("Expected restored supply 10, got %d", restored.Supply())
	}
}

func TestShareBook_VerifyInvariantPanics(t *testing.T) {
	sb := NewShareBook()
	_ = sb.Mint(solana.NewWallet().PublicKey(), 10)

	defer func() {
		if r := recover(); r == nil {
			t.Error("VerifyInvariant should panic on supply mismatch")
		}
	}()
	sb.VerifyInvariant(11)
}
