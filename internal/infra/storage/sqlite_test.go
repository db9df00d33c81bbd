package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mpsol_restaking/internal/domain"
	"mpsol_restaking/internal/event"
	"mpsol_restaking/internal/ledger"
	"mpsol_restaking/pkg/quant"
)

func setupTestDB(t *testing.T) *Storage {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	s, err := newStorage(db)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// poolBuilder applies commands with consecutive sequence numbers.
type poolBuilder struct {
	t    *testing.T
	pool  *ledger.Pool
	admin solana.PublicKey
	seq   uint64
	now   int64
}

func (b *poolBuilder) apply(cmd event.Command) ledger.Result {
	b.t.Helper()
	b.seq++
	cmd.Stamp(b.seq, b.now)
	res, err := b.pool.Apply(cmd)
	require.NoError(b.t, err, "%s", cmd.GetType())
	return res
}

// buildPool returns a pool with one vault, one staker and one open ticket.
func buildPool(t *testing.T) (*poolBuilder, solana.PublicKey, solana.PublicKey) {
	admin := solana.NewWallet().PublicKey()
	b := &poolBuilder{t: t, pool: ledger.NewPool(), admin: admin, now: 1_700_000_000}
	mint := solana.NewWallet().PublicKey()
	user := solana.NewWallet().PublicKey()
	enabled := false

	b.apply(&event.InitializeCommand{BaseCommand: event.BaseCommand{Caller: admin}, MainState: solana.NewWallet().PublicKey()})
	b.apply(&event.CreateSecondaryVaultCommand{BaseCommand: event.BaseCommand{Caller: admin}, LstMint: mint, Kind: domain.OracleMarinade})
	b.apply(&event.ConfigureSecondaryVaultCommand{
		BaseCommand: event.BaseCommand{Caller: admin},
		LstMint:     mint,
		Config:      domain.SecondaryVaultConfig{DepositsDisabled: &enabled},
	})
	b.apply(&event.UpdatePriceCommand{BaseCommand: event.BaseCommand{Caller: b.admin}, LstMint: mint, Price: quant.PriceOne + quant.PriceOne/10, ObservedAt: b.now})
	b.apply(&event.StakeCommand{BaseCommand: event.BaseCommand{Caller: user}, LstMint: mint, LstAmount: 7_000_000_000})
	b.apply(&event.UnstakeCommand{BaseCommand: event.BaseCommand{Caller: user}, Shares: 2_000_000_000})
	return b, mint, user
}

func TestCommandLog(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()
	caller := solana.NewWallet().PublicKey()

	last, err := s.LastCommandSeq(ctx)
	require.NoError(t, err)
	require.Zero(t, last)

	for seq := uint64(1); seq <= 3; seq++ {
		cmd := &event.StakeCommand{BaseCommand: event.BaseCommand{Caller: caller}, LstMint: caller, LstAmount: seq * 1000}
		cmd.Stamp(seq, int64(seq))
		require.NoError(t, s.SaveCommand(ctx, cmd))
	}

	last, err = s.LastCommandSeq(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(3), last)

	cmds, err := s.LoadCommands(ctx, 1)
	require.NoError(t, err)
	require.Len(t, cmds, 2)
	stake, ok := cmds[0].(*event.StakeCommand)
	require.True(t, ok, "got %T", cmds[0])
	require.Equal(t, uint64(2), stake.Seq)
	require.Equal(t, uint64(2000), stake.LstAmount)
	require.Equal(t, caller, stake.Caller)
}

func TestCommandLog_DuplicateSeq(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	cmd := &event.UnstakeCommand{Shares: 1}
	cmd.Stamp(1, 1)
	require.NoError(t, s.SaveCommand(ctx, cmd))
	require.Error(t, s.SaveCommand(ctx, cmd))
}

func TestSnapshot_RoundTrip(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	_, _, found, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.False(t, found)

	b, _, _ := buildPool(t)
	state := b.pool.State()
	require.NoError(t, s.SaveSnapshot(ctx, b.seq, state))

	loaded, lastSeq, found, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, b.seq, lastSeq)
	require.Equal(t, state, loaded)

	restored, err := ledger.Restore(loaded)
	require.NoError(t, err)
	require.Equal(t, state, restored.State())
}

func TestSnapshot_ReplacesClosedTickets(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	b, mint, user := buildPool(t)
	require.NoError(t, s.SaveSnapshot(ctx, b.seq, b.pool.State()))

	tickets := b.pool.Tickets()
	require.Len(t, tickets, 1)
	b.now = tickets[0].TicketDueTimestamp
	b.apply(&event.UpdatePriceCommand{BaseCommand: event.BaseCommand{Caller: b.admin}, LstMint: mint, Price: quant.PriceOne + quant.PriceOne/10, ObservedAt: b.now})
	res := b.apply(&event.TicketClaimCommand{
		BaseCommand: event.BaseCommand{Caller: user},
		TicketID:    tickets[0].ID,
		LstMint:     mint,
		SolAmount:   tickets[0].TicketSolValue,
	})
	require.True(t, res.TicketClosed)

	require.NoError(t, s.SaveSnapshot(ctx, b.seq, b.pool.State()))

	loaded, lastSeq, _, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, b.seq, lastSeq)
	require.Empty(t, loaded.Tickets)
	require.Equal(t, b.pool.ShareBalance(user), loaded.Shares[user])

	var count int64
	require.NoError(t, s.db.Model(&TicketRecord{}).Count(&count).Error)
	require.Zero(t, count)
}
