package ledger

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kagura-bot/kagura/models"
)

// NextCaseID allocates the next case id for a guild. Ids are monotonic and
// never reused, even across process restarts.
func (s *Store) NextCaseID(ctx context.Context, guildID string) (int64, error) {
	return s.nextSequence(ctx, guildID, seqKindCase)
}

// NextReportID allocates the next report id for a guild.
func (s *Store) NextReportID(ctx context.Context, guildID string) (int64, error) {
	return s.nextSequence(ctx, guildID, seqKindReport)
}

// nextSequence bumps the per-guild counter row with a single upsert so two
// concurrent allocations can never observe the same value.
func (s *Store) nextSequence(ctx context.Context, guildID, kind string) (int64, error) {
	var next int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seq := models.GuildSequence{GuildID: guildID, Kind: kind, Next: 1}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "guild_id"}, {Name: "kind"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"next": gorm.Expr("guild_sequences.next + 1"),
			}),
		}).Create(&seq).Error; err != nil {
			return err
		}
		if err := tx.Where("guild_id = ? AND kind = ?", guildID, kind).First(&seq).Error; err != nil {
			return err
		}
		next = seq.Next
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("allocating %s sequence for guild %s: %w", kind, guildID, err)
	}
	return next, nil
}
