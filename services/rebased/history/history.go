// Package history records applied rebases and ledger supply changes for the
// rebased read API.
package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"rebasechain/core/events"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	// DefaultLimit bounds list queries that do not specify a limit.
	DefaultLimit = 100
	// MaxLimit caps list queries.
	MaxLimit = 1000
)

// ErrNotFound is returned when no history row matches.
var ErrNotFound = errors.New("history: not found")

// Rebase is one applied rebase.
type Rebase struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	Epoch         uint64    `gorm:"uniqueIndex;not null"`
	InflationRate uint64    `gorm:"not null"`
	SupplyDelta   string    `gorm:"not null"`
	TotalSupply   string
	TimestampSec  uint64 `gorm:"index;not null"`
	RecordedAt    time.Time
}

// SupplyChange is one ledger supply movement.
type SupplyChange struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Token      string    `gorm:"index"`
	Epoch      uint64    `gorm:"index"`
	Reason     string    `gorm:"index"`
	Delta      string
	Total      string `gorm:"not null"`
	RecordedAt time.Time
}

// Store persists history rows through gorm.
type Store struct {
	db    *gorm.DB
	nowFn func() time.Time
}

// Open connects to the configured database and migrates the schema.
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverSQLite, "":
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("history: unsupported driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: newGormLogger()})
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", driver, err)
	}
	return New(db)
}

// New wraps an open gorm handle and migrates the schema.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("history: database required")
	}
	db.Logger = newGormLogger()
	if err := db.AutoMigrate(&Rebase{}, &SupplyChange{}); err != nil {
		return nil, fmt.Errorf("history: migrate: %w", err)
	}
	return &Store{db: db, nowFn: func() time.Time { return time.Now().UTC() }}, nil
}

// newGormLogger routes gorm warnings through slog and drops not-found noise.
func newGormLogger() logger.Interface {
	return logger.New(slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn), logger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// RecordRebase stores evt. The total supply is taken from the rebase supply
// change recorded for the same epoch, when present. Re-recording an epoch is a
// no-op.
func (s *Store) RecordRebase(ctx context.Context, evt events.PolicyRebase) error {
	delta := big.NewInt(0)
	if evt.SupplyDelta != nil {
		delta = evt.SupplyDelta
	}
	row := Rebase{
		ID:            uuid.New(),
		Epoch:         evt.Epoch,
		InflationRate: evt.InflationRate,
		SupplyDelta:   delta.String(),
		TimestampSec:  evt.TimestampSec,
		RecordedAt:    s.nowFn(),
	}
	var changes []SupplyChange
	if err := s.db.WithContext(ctx).
		Where("epoch = ? AND reason = ?", evt.Epoch, events.SupplyReasonRebase).
		Order("recorded_at DESC").
		Limit(1).
		Find(&changes).Error; err != nil {
		return fmt.Errorf("history: lookup supply: %w", err)
	}
	if len(changes) > 0 {
		row.TotalSupply = changes[0].Total
	}
	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "epoch"}},
		DoNothing: true,
	}).Create(&row).Error; err != nil {
		return fmt.Errorf("history: record rebase: %w", err)
	}
	return nil
}

// RecordSupply stores a ledger supply change.
func (s *Store) RecordSupply(ctx context.Context, evt events.TokenSupply) error {
	total := big.NewInt(0)
	if evt.Total != nil {
		total = evt.Total
	}
	row := SupplyChange{
		ID:         uuid.New(),
		Token:      strings.ToUpper(strings.TrimSpace(evt.Token)),
		Epoch:      evt.Epoch,
		Reason:     evt.Reason,
		Total:      total.String(),
		RecordedAt: s.nowFn(),
	}
	if evt.Delta != nil {
		row.Delta = evt.Delta.String()
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("history: record supply: %w", err)
	}
	return nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// ListRebases returns up to limit rebases, newest epoch first.
func (s *Store) ListRebases(ctx context.Context, limit int) ([]Rebase, error) {
	var rows []Rebase
	if err := s.db.WithContext(ctx).Order("epoch DESC").Limit(clampLimit(limit)).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("history: list rebases: %w", err)
	}
	return rows, nil
}

// GetRebase returns the rebase recorded for epoch.
func (s *Store) GetRebase(ctx context.Context, epoch uint64) (Rebase, error) {
	var row Rebase
	err := s.db.WithContext(ctx).Where("epoch = ?", epoch).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Rebase{}, ErrNotFound
	}
	if err != nil {
		return Rebase{}, fmt.Errorf("history: get rebase: %w", err)
	}
	return row, nil
}

// ListSupplyChanges returns up to limit supply changes, newest first.
func (s *Store) ListSupplyChanges(ctx context.Context, limit int) ([]SupplyChange, error) {
	var rows []SupplyChange
	if err := s.db.WithContext(ctx).Order("recorded_at DESC").Order("epoch DESC").Limit(clampLimit(limit)).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("history: list supply changes: %w", err)
	}
	return rows, nil
}

// Sink returns an events.Emitter that records rebase and supply events.
func (s *Store) Sink() events.Emitter {
	return sink{store: s}
}

type sink struct {
	store *Store
}

func (k sink) Emit(evt events.Event) {
	ctx := context.Background()
	switch e := evt.(type) {
	case events.PolicyRebase:
		if err := k.store.RecordRebase(ctx, e); err != nil {
			slog.Error("history: record rebase event", "error", err, "epoch", e.Epoch)
		}
	case events.TokenSupply:
		if err := k.store.RecordSupply(ctx, e); err != nil {
			slog.Error("history: record supply event", "error", err, "epoch", e.Epoch)
		}
	}
}
