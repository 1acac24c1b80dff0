// Package ledger is the durable home of moderation cases and reports. It
// wraps a gorm database (sqlite or postgres) with per-guild sequential id
// allocation and the small set of conditional writes the coordinators rely
// on for race safety.
package ledger

import (
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/kagura-bot/kagura/models"
)

var ErrNotFound = errors.New("ledger: record not found")

const (
	seqKindCase   = "case"
	seqKindReport = "report"
)

type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewStore(db *gorm.DB, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := db.AutoMigrate(
		&models.Case{},
		&models.Report{},
		&models.GuildSettings{},
		&models.GuildSequence{},
	); err != nil {
		return nil, fmt.Errorf("migrating ledger schema: %w", err)
	}
	return &Store{
		db:     db,
		logger: logger.With("system", "ledger"),
	}, nil
}

func (s *Store) DB() *gorm.DB {
	return s.db
}

func translateErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
