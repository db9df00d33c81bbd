package solanarpc

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"mpsol_restaking/internal/domain"
)

// pubsubServer acknowledges every accountSubscribe and pushes one
// notification carrying payload, owned by owner, at slot 77.
func pubsubServer(t *testing.T, owner solana.PublicKey, payload []byte) *httptest.Server {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()

		var subID uint64
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req struct {
				ID     json.RawMessage   `json:"id"`
				Method string            `json:"method"`
				Params []json.RawMessage `json:"params"`
			}
			if err := json.Unmarshal(msg, &req); err != nil || req.Method != "accountSubscribe" {
				continue
			}
			subID++
			ack := fmt.Sprintf(`{"jsonrpc":"2.0","result":%d,"id":%s}`, subID, req.ID)
			value := fmt.Sprintf(`{"data":["%s","base64"],"executable":false,"lamports":1000,"owner":"%s","rentEpoch":0}`,
				base64.StdEncoding.EncodeToString(payload), owner)
			note := fmt.Sprintf(`{"jsonrpc":"2.0","method":"accountNotification","params":{"result":{"context":{"slot":77},"value":%s},"subscription":%d}}`,
				value, subID)
			for _, out := range []string{ack, note} {
				if err := conn.WriteMessage(websocket.TextMessage, []byte(out)); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws://" + strings.TrimPrefix(srv.URL, "http://")
}

func TestSubscriber_WatchAccounts(t *testing.T) {
	owner := solana.NewWallet().PublicKey()
	payload := []byte{9, 8, 7}
	srv := pubsubServer(t, owner, payload)

	addrs := []solana.PublicKey{solana.NewWallet().PublicKey(), solana.NewWallet().PublicKey()}
	updates := make(chan *domain.AccountData, len(addrs))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- NewSubscriber(wsURL(srv)).WatchAccounts(ctx, addrs, func(acc *domain.AccountData) {
			updates <- acc
		})
	}()

	seen := map[solana.PublicKey]bool{}
	for len(seen) < len(addrs) {
		select {
		case acc := <-updates:
			require.Equal(t, owner, acc.Owner)
			require.Equal(t, payload, acc.Data)
			require.Equal(t, uint64(77), acc.Slot)
			seen[acc.Address] = true
		case <-ctx.Done():
			t.Fatalf("Expected %d notifications, got %d", len(addrs), len(seen))
		}
	}
	for _, a := range addrs {
		require.True(t, seen[a], "no notification for %s", a)
	}

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestSubscriber_DialErrorIsRetriable(t *testing.T) {
	err := NewSubscriber("ws://127.0.0.1:1").WatchAccounts(context.Background(), []solana.PublicKey{solana.NewWallet().PublicKey()}, func(*domain.AccountData) {
		t.Error("no notification expected")
	})
	require.Error(t, err)
	require.True(t, domain.IsRetriable(err))
}
