package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"mpsol_restaking/internal/domain"
	"mpsol_restaking/internal/event"
	"mpsol_restaking/internal/infra"
	"mpsol_restaking/internal/ledger"
)

// ErrStopped is returned by Submit once the loop has exited.
var ErrStopped = errors.New("sequencer stopped")

// CommandLog is the write-ahead log. A command is stored before it is applied.
type CommandLog interface {
	SaveCommand(ctx context.Context, cmd event.Command) error
}

// SnapshotStore persists full pool copies so replay can start from the latest one.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, lastSeq uint64, state ledger.State) error
}

// Config wires the sequencer's collaborators. Every field is optional.
type Config struct {
	InboxSize     int
	Pool          *ledger.Pool
	LastSeq       uint64 // last applied sequence number, 0 for an empty pool
	Log           CommandLog
	Snapshots     SnapshotStore
	SnapshotEvery uint64
	Bus           *event.Bus
	Clock         clockwork.Clock
	Metrics       *infra.Metrics
}

type reply struct {
	res ledger.Result
	err error
}

type request struct {
	cmd   event.Command
	reply chan reply
}

// Sequencer is the pool's single writer. Commands are stamped, logged and
// applied one at a time in arrival order.
type Sequencer struct {
	inbox   chan request
	done    chan struct{}
	pool    *ledger.Pool
	nextSeq uint64

	log           CommandLog
	snapshots     SnapshotStore
	snapshotEvery uint64
	bus           *event.Bus
	clock         clockwork.Clock
	metrics       *infra.Metrics

	mu sync.RWMutex // held for writing while a command is applied
}

// NewSequencer creates a new sequencer instance.
func NewSequencer(cfg Config) *Sequencer {
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = 1024
	}
	if cfg.Pool == nil {
		cfg.Pool = ledger.NewPool()
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = infra.GlobalMetrics
	}
	return &Sequencer{
		inbox:         make(chan request, cfg.InboxSize),
		done:          make(chan struct{}),
		pool:          cfg.Pool,
		nextSeq:       cfg.LastSeq + 1,
		log:           cfg.Log,
		snapshots:     cfg.Snapshots,
		snapshotEvery: cfg.SnapshotEvery,
		bus:           cfg.Bus,
		clock:         cfg.Clock,
		metrics:       cfg.Metrics,
	}
}

// Submit queues cmd and waits for its outcome. The sequencer assigns the
// sequence number and timestamp. A command already queued is still applied
// when ctx is cancelled before the reply arrives.
func (s *Sequencer) Submit(ctx context.Context, cmd event.Command) (ledger.Result, error) {
	req := request{cmd: cmd, reply: make(chan reply, 1)}
	select {
	case s.inbox <- req:
	case <-s.done:
		return ledger.Result{}, ErrStopped
	case <-ctx.Done():
		return ledger.Result{}, ctx.Err()
	}

	select {
	case r := <-req.reply:
		return r.res, r.err
	case <-s.done:
		return ledger.Result{}, ErrStopped
	case <-ctx.Done():
		return ledger.Result{}, ctx.Err()
	}
}

// Run starts the main loop. This MUST be run in a single goroutine.
func (s *Sequencer) Run(ctx context.Context) {
	slog.Info("Sequencer started", slog.Uint64("next_seq", s.nextSeq))
	defer close(s.done)

	defer func() {
		if r := recover(); r != nil {
			slog.Error("CRITICAL_PANIC_DETECTED", slog.Any("panic", r))
			s.DumpState("panic_dump.json")
			// State may be inconsistent; halt after dump.
			panic(fmt.Sprintf("HALTED: %v", r))
		}
	}()

	for {
		select {
		case <-ctx.Done():
			slog.Info("Sequencer stopping...", slog.Uint64("next_seq", s.nextSeq))
			return
		case req := <-s.inbox:
			res, err := s.process(ctx, req.cmd)
			req.reply <- reply{res: res, err: err}
		}
	}
}

func (s *Sequencer) process(ctx context.Context, cmd event.Command) (ledger.Result, error) {
	start := s.clock.Now()
	cmd.Stamp(s.nextSeq, start.Unix())

	// WAL-first. Rejected commands are logged too so replay sees the same sequence.
	if s.log != nil {
		if err := s.log.SaveCommand(context.WithoutCancel(ctx), cmd); err != nil {
			panic(fmt.Sprintf("PERSISTENCE_FAILURE: %v", err))
		}
	}

	res, err := s.apply(cmd)

	s.metrics.RecordCommand(s.clock.Since(start).Nanoseconds(), err == nil)
	if err != nil {
		slog.Warn("Command rejected",
			slog.Uint64("seq", cmd.GetSeq()),
			slog.String("type", string(cmd.GetType())),
			slog.String("caller", cmd.GetCaller().String()),
			slog.Any("error", err),
		)
		return res, err
	}
	s.record(cmd, res)

	if s.bus != nil {
		for _, n := range res.Notifications {
			s.bus.Publish(n)
		}
	}

	if s.snapshots != nil && s.snapshotEvery > 0 && cmd.GetSeq()%s.snapshotEvery == 0 {
		if err := s.snapshots.SaveSnapshot(context.WithoutCancel(ctx), cmd.GetSeq(), s.State()); err != nil {
			// The WAL still holds every command since the previous snapshot.
			slog.Error("Snapshot failed", slog.Uint64("seq", cmd.GetSeq()), slog.Any("error", err))
		}
	}
	return res, nil
}

func (s *Sequencer) apply(cmd event.Command) (ledger.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.pool.Apply(cmd)
	s.nextSeq++
	return res, err
}

func (s *Sequencer) record(cmd event.Command, res ledger.Result) {
	switch c := cmd.(type) {
	case *event.StakeCommand:
		s.metrics.RecordStake()
	case *event.UnstakeCommand:
		s.metrics.RecordUnstake()
	case *event.TicketClaimCommand:
		s.metrics.RecordClaim()
	case *event.UpdatePriceCommand:
		if !res.Applied {
			s.metrics.RecordStalePrice()
			slog.Debug("Stale price dropped",
				slog.String("lst_mint", c.LstMint.String()),
				slog.Int64("observed_at", c.ObservedAt),
			)
		}
	}
	if res.Ticket != nil || res.TicketClosed {
		s.mu.RLock()
		s.metrics.SetOpenTickets(len(s.pool.Tickets()))
		s.mu.RUnlock()
	}
}

// ReplayEvent applies a logged command synchronously without WAL logging
// or notifications. Used at startup before Run.
func (s *Sequencer) ReplayEvent(cmd event.Command) error {
	// Replay must still respect sequence order
	if cmd.GetSeq() != s.nextSeq {
		panic(fmt.Sprintf("REPLAY_GAP_DETECTED: expected %d, got %d", s.nextSeq, cmd.GetSeq()))
	}

	_, err := s.apply(cmd)

	var opErr *domain.OpError
	if err != nil && !errors.As(err, &opErr) {
		return fmt.Errorf("replay seq %d: %w", cmd.GetSeq(), err)
	}
	return nil
}

// NextSeq returns the sequence number the next command will receive.
func (s *Sequencer) NextSeq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextSeq
}

// MainVault returns a copy of the main vault (external read).
func (s *Sequencer) MainVault() (*domain.MainVault, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pool.MainVault()
}

// SecondaryVault returns a copy of the vault for mint.
func (s *Sequencer) SecondaryVault(mint solana.PublicKey) (*domain.SecondaryVault, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pool.SecondaryVault(mint)
}

// SecondaryVaults returns copies of every vault in whitelist order.
func (s *Sequencer) SecondaryVaults() []*domain.SecondaryVault {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pool.SecondaryVaults()
}

// Ticket returns a copy of the ticket with the given id.
func (s *Sequencer) Ticket(id uuid.UUID) (*domain.UnstakeTicket, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pool.Ticket(id)
}

// Tickets returns copies of the open tickets ordered by due time.
func (s *Sequencer) Tickets() []*domain.UnstakeTicket {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pool.Tickets()
}

// ShareBalance returns the mpSOL balance of owner.
func (s *Sequencer) ShareBalance(owner solana.PublicKey) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pool.ShareBalance(owner)
}

// State returns a full copy of the pool.
func (s *Sequencer) State() ledger.State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pool.State()
}

// DumpState writes the entire internal state to a file (for post-mortem).
func (s *Sequencer) DumpState(filename string) {
	slog.Info("Dumping internal state...", slog.String("file", filename))

	data := struct {
		NextSeq uint64       `json:"next_seq"`
		State   ledger.State `json:"state"`
	}{
		NextSeq: s.nextSeq,
		State:   s.pool.State(),
	}

	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		slog.Error("Failed to marshal state", slog.Any("error", err))
		return
	}

	err = os.WriteFile(filename, b, 0644)
	if err != nil {
		slog.Error("Failed to write state dump", slog.Any("error", err))
	}
}
