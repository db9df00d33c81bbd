package solanarpc

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"golang.org/x/sync/errgroup"

	"mpsol_restaking/internal/domain"
)

// Subscriber streams account changes over the JSON-RPC pubsub websocket.
type Subscriber struct {
	endpoint   string
	commitment rpc.CommitmentType
}

// NewSubscriber creates a subscriber listening at confirmed commitment.
func NewSubscriber(endpoint string) *Subscriber {
	return &Subscriber{endpoint: endpoint, commitment: rpc.CommitmentConfirmed}
}

// WatchAccounts subscribes to every address on one connection and calls fn
// for each notification until ctx ends or the connection fails. fn is called
// from one goroutine per address. Connection failures are retriable
// NetworkErrors.
func (s *Subscriber) WatchAccounts(ctx context.Context, addresses []solana.PublicKey, fn func(*domain.AccountData)) error {
	client, err := ws.Connect(ctx, s.endpoint)
	if err != nil {
		return domain.NewNetworkError("accountSubscribe", err)
	}
	defer client.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	for _, address := range addresses {
		sub, err := client.AccountSubscribeWithOpts(address, s.commitment, solana.EncodingBase64)
		if err != nil {
			cancel()
			_ = g.Wait()
			return domain.NewNetworkError("accountSubscribe", fmt.Errorf("%s: %w", address, err))
		}
		g.Go(func() error {
			defer sub.Unsubscribe()
			for {
				res, err := sub.Recv(ctx)
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if err != nil {
					return domain.NewNetworkError("accountNotification", err)
				}
				if res == nil {
					return domain.NewNetworkError("accountNotification", ws.ErrSubscriptionClosed)
				}
				if res.Value == nil {
					continue // closed account
				}
				fn(accountData(address, res.Context.Slot, res.Value))
			}
		})
	}
	return g.Wait()
}
