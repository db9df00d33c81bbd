// Package solanarpc reads oracle state accounts over Solana JSON-RPC.
package solanarpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"mpsol_restaking/internal/domain"
)

// Fetcher implements domain.AccountFetcher on top of an RPC client.
type Fetcher struct {
	client     *rpc.Client
	commitment rpc.CommitmentType
	timeout    time.Duration
}

var _ domain.AccountFetcher = (*Fetcher)(nil)

// NewFetcher creates a fetcher reading at confirmed commitment.
// A zero timeout leaves deadlines to the caller's context.
func NewFetcher(endpoint string, timeout time.Duration) *Fetcher {
	return &Fetcher{
		client:     rpc.New(endpoint),
		commitment: rpc.CommitmentConfirmed,
		timeout:    timeout,
	}
}

// FetchAccount returns the raw account. A missing account is a non-retriable
// NetworkError wrapping ErrOracleStateUnavailable; transport failures are retriable.
func (f *Fetcher) FetchAccount(ctx context.Context, address solana.PublicKey) (*domain.AccountData, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	resp, err := f.client.GetAccountInfoWithOpts(ctx, address, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: f.commitment,
	})
	if errors.Is(err, rpc.ErrNotFound) || (err == nil && (resp == nil || resp.Value == nil)) {
		return nil, domain.NewFatalNetworkError("getAccountInfo",
			fmt.Errorf("%w: account %s not found", domain.ErrOracleStateUnavailable, address))
	}
	if err != nil {
		return nil, domain.NewNetworkError("getAccountInfo", err)
	}

	return accountData(address, resp.Context.Slot, resp.Value), nil
}

func accountData(address solana.PublicKey, slot uint64, acc *rpc.Account) *domain.AccountData {
	var data []byte
	if acc.Data != nil {
		data = acc.Data.GetBinary()
	}
	return &domain.AccountData{
		Address: address,
		Owner:   acc.Owner,
		Data:    data,
		Slot:    slot,
	}
}
