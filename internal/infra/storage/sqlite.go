package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mpsol_restaking/internal/domain"
	"mpsol_restaking/internal/event"
	"mpsol_restaking/internal/ledger"
)

// Storage persists the command log and pool snapshots in SQLite.
type Storage struct {
	db *gorm.DB
}

// NewStorage opens (or creates) the database at path. An empty path uses the
// per-user data directory.
func NewStorage(path string) (*Storage, error) {
	if path == "" {
		var err error
		path, err = getDBPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve DB path: %w", err)
		}
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	// Connect to SQLite (Pure Go)
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return newStorage(db)
}

func newStorage(db *gorm.DB) (*Storage, error) {
	if err := db.AutoMigrate(
		&CommandRecord{},
		&SnapshotMeta{},
		&MainVaultRecord{},
		&SecondaryVaultRecord{},
		&TicketRecord{},
		&ShareBalanceRecord{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Storage{db: db}, nil
}

// getDBPath resolves the database file path based on OS
func getDBPath() (string, error) {
	var dataDir string
	var err error

	if runtime.GOOS == "windows" {
		dataDir = os.Getenv("LOCALAPPDATA")
		if dataDir == "" {
			dataDir, err = os.UserConfigDir()
		}
	} else {
		dataDir, err = os.UserConfigDir()
	}

	if err != nil {
		return "", err
	}

	return filepath.Join(dataDir, "mpsol", "data", "mpsol.db"), nil
}

// Close releases the underlying connection.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ======================================================================================
// Command log (WAL)
// ======================================================================================

// CommandRecord is one sequenced command. Rejected commands are stored too.
type CommandRecord struct {
	Seq       uint64 `gorm:"primaryKey;autoIncrement:false"`
	Type      string `gorm:"size:64;not null"`
	Caller    string `gorm:"size:44;index"`
	Ts        int64  `gorm:"not null"`
	Payload   []byte `gorm:"not null"`
	CreatedAt time.Time
}

// SaveCommand appends cmd to the log. A duplicate sequence number is an error.
func (s *Storage) SaveCommand(ctx context.Context, cmd event.Command) error {
	payload, err := event.Encode(cmd)
	if err != nil {
		return fmt.Errorf("encode seq %d: %w", cmd.GetSeq(), err)
	}
	rec := CommandRecord{
		Seq:     cmd.GetSeq(),
		Type:    string(cmd.GetType()),
		Caller:  cmd.GetCaller().String(),
		Ts:      cmd.GetTs(),
		Payload: payload,
	}
	return s.db.WithContext(ctx).Create(&rec).Error
}

// LoadCommands returns every logged command with seq > afterSeq in order.
func (s *Storage) LoadCommands(ctx context.Context, afterSeq uint64) ([]event.Command, error) {
	var recs []CommandRecord
	if err := s.db.WithContext(ctx).Where("seq > ?", afterSeq).Order("seq").Find(&recs).Error; err != nil {
		return nil, err
	}
	cmds := make([]event.Command, 0, len(recs))
	for _, rec := range recs {
		cmd, err := event.Decode(event.Type(rec.Type), rec.Payload)
		if err != nil {
			return nil, fmt.Errorf("seq %d: %w", rec.Seq, err)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

// LastCommandSeq returns the highest logged sequence number, 0 when empty.
func (s *Storage) LastCommandSeq(ctx context.Context) (uint64, error) {
	var rec CommandRecord
	err := s.db.WithContext(ctx).Order("seq desc").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	return rec.Seq, err
}

// ======================================================================================
// Snapshots
// ======================================================================================

// SnapshotMeta marks the command a stored snapshot includes. There is at most one row.
type SnapshotMeta struct {
	ID      uint   `gorm:"primaryKey"`
	LastSeq uint64 `gorm:"not null"`
	TakenAt time.Time
}

type MainVaultRecord struct {
	ID   string `gorm:"primaryKey;size:44"`
	Data []byte `gorm:"not null"`
}

type SecondaryVaultRecord struct {
	LstMint  string `gorm:"primaryKey;size:44"`
	Position int    `gorm:"not null"` // whitelist order
	Kind     string `gorm:"size:32"`
	Data     []byte `gorm:"not null"`
}

type TicketRecord struct {
	ID          string `gorm:"primaryKey;size:36"`
	Beneficiary string `gorm:"size:44;index"`
	DueTs       int64  `gorm:"index"`
	SolValue    uint64
	Data        []byte `gorm:"not null"`
}

type ShareBalanceRecord struct {
	Owner   string `gorm:"primaryKey;size:44"`
	Balance uint64 `gorm:"not null"`
}

const snapshotID = 1

// SaveSnapshot replaces the stored snapshot with state in one transaction.
// Tickets and balances absent from state (claimed, fully burned) are removed.
func (s *Storage) SaveSnapshot(ctx context.Context, lastSeq uint64, state ledger.State) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{&MainVaultRecord{}, &SecondaryVaultRecord{}, &TicketRecord{}, &ShareBalanceRecord{}} {
			if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(model).Error; err != nil {
				return err
			}
		}

		if state.Main != nil {
			data, err := json.Marshal(state.Main)
			if err != nil {
				return err
			}
			if err := tx.Create(&MainVaultRecord{ID: state.Main.ID.String(), Data: data}).Error; err != nil {
				return err
			}
		}

		for i, v := range state.Vaults {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			rec := SecondaryVaultRecord{LstMint: v.LstMint.String(), Position: i, Kind: v.Kind.String(), Data: data}
			if err := tx.Create(&rec).Error; err != nil {
				return err
			}
		}

		for _, t := range state.Tickets {
			data, err := json.Marshal(t)
			if err != nil {
				return err
			}
			rec := TicketRecord{
				ID:          t.ID.String(),
				Beneficiary: t.Beneficiary.String(),
				DueTs:       t.TicketDueTimestamp,
				SolValue:    t.TicketSolValue,
				Data:        data,
			}
			if err := tx.Create(&rec).Error; err != nil {
				return err
			}
		}

		if len(state.Shares) > 0 {
			recs := make([]ShareBalanceRecord, 0, len(state.Shares))
			for owner, bal := range state.Shares {
				recs = append(recs, ShareBalanceRecord{Owner: owner.String(), Balance: bal})
			}
			if err := tx.CreateInBatches(recs, 500).Error; err != nil {
				return err
			}
		}

		return tx.Save(&SnapshotMeta{ID: snapshotID, LastSeq: lastSeq, TakenAt: time.Now()}).Error
	})
}

// LoadSnapshot returns the stored snapshot. found is false when none was taken yet.
func (s *Storage) LoadSnapshot(ctx context.Context) (state ledger.State, lastSeq uint64, found bool, err error) {
	db := s.db.WithContext(ctx)

	var meta SnapshotMeta
	err = db.First(&meta, snapshotID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ledger.State{}, 0, false, nil
	}
	if err != nil {
		return ledger.State{}, 0, false, err
	}

	var mains []MainVaultRecord
	if err := db.Find(&mains).Error; err != nil {
		return ledger.State{}, 0, false, err
	}
	if len(mains) > 1 {
		return ledger.State{}, 0, false, fmt.Errorf("snapshot holds %d main vaults", len(mains))
	}
	if len(mains) == 1 {
		state.Main = &domain.MainVault{}
		if err := json.Unmarshal(mains[0].Data, state.Main); err != nil {
			return ledger.State{}, 0, false, fmt.Errorf("main vault: %w", err)
		}
	}

	var vaults []SecondaryVaultRecord
	if err := db.Order("position").Find(&vaults).Error; err != nil {
		return ledger.State{}, 0, false, err
	}
	for _, rec := range vaults {
		v := &domain.SecondaryVault{}
		if err := json.Unmarshal(rec.Data, v); err != nil {
			return ledger.State{}, 0, false, fmt.Errorf("vault %s: %w", rec.LstMint, err)
		}
		state.Vaults = append(state.Vaults, v)
	}

	var tickets []TicketRecord
	if err := db.Order("due_ts, id").Find(&tickets).Error; err != nil {
		return ledger.State{}, 0, false, err
	}
	for _, rec := range tickets {
		t := &domain.UnstakeTicket{}
		if err := json.Unmarshal(rec.Data, t); err != nil {
			return ledger.State{}, 0, false, fmt.Errorf("ticket %s: %w", rec.ID, err)
		}
		state.Tickets = append(state.Tickets, t)
	}

	var balances []ShareBalanceRecord
	if err := db.Find(&balances).Error; err != nil {
		return ledger.State{}, 0, false, err
	}
	state.Shares = make(map[solana.PublicKey]uint64, len(balances))
	for _, rec := range balances {
		owner, err := solana.PublicKeyFromBase58(rec.Owner)
		if err != nil {
			return ledger.State{}, 0, false, fmt.Errorf("share owner %q: %w", rec.Owner, err)
		}
		state.Shares[owner] = rec.Balance
	}

	return state, meta.LastSeq, true, nil
}
