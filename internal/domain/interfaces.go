package domain

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// AccountData is the raw state of an on-chain account.
type AccountData struct {
	Address solana.PublicKey
	Owner   solana.PublicKey
	Data    []byte
	Slot    uint64
}

// AccountFetcher reads oracle state accounts from the cluster.
type AccountFetcher interface {
	FetchAccount(ctx context.Context, address solana.PublicKey) (*AccountData, error)
}
