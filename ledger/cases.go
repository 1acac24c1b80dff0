package ledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/kagura-bot/kagura/models"
)

// CasePatch is a partial update for the mutable subset of a case row. Nil
// fields are left untouched. ActionProcessed is deliberately absent; the only
// way to flip it is MarkActionProcessed, which is conditional.
type CasePatch struct {
	Reason           *string
	RefID            *int64
	ContextMessageID *string
	LogMessageID     *string
	ActionExpiration *time.Time
}

func (s *Store) CreateCase(ctx context.Context, c *models.Case) (*models.Case, error) {
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, fmt.Errorf("writing case %d in guild %s: %w", c.CaseID, c.GuildID, err)
	}
	return c, nil
}

func (s *Store) GetCase(ctx context.Context, guildID string, caseID int64) (*models.Case, error) {
	var c models.Case
	err := s.db.WithContext(ctx).
		Where("guild_id = ? AND case_id = ?", guildID, caseID).
		First(&c).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &c, nil
}

func (s *Store) UpdateCase(ctx context.Context, guildID string, caseID int64, patch CasePatch) (*models.Case, error) {
	updates := map[string]interface{}{}
	if patch.Reason != nil {
		updates["reason"] = *patch.Reason
	}
	if patch.RefID != nil {
		updates["ref_id"] = *patch.RefID
	}
	if patch.ContextMessageID != nil {
		updates["context_message_id"] = *patch.ContextMessageID
	}
	if patch.LogMessageID != nil {
		updates["log_message_id"] = *patch.LogMessageID
	}
	if patch.ActionExpiration != nil {
		updates["action_expiration"] = *patch.ActionExpiration
	}
	if len(updates) > 0 {
		res := s.db.WithContext(ctx).Model(&models.Case{}).
			Where("guild_id = ? AND case_id = ?", guildID, caseID).
			Updates(updates)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}
	return s.GetCase(ctx, guildID, caseID)
}

// MarkActionProcessed flips action_processed to true only if it is still
// false, and reports whether this call did the flip. A false return with nil
// error means another resolver got there first.
func (s *Store) MarkActionProcessed(ctx context.Context, guildID string, caseID int64) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.Case{}).
		Where("guild_id = ? AND case_id = ? AND action_processed = ?", guildID, caseID, false).
		Update("action_processed", true)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// LatestCaseByTarget returns the most recent case of the given action against
// a target, or ErrNotFound.
func (s *Store) LatestCaseByTarget(ctx context.Context, guildID, targetID string, action models.CaseAction) (*models.Case, error) {
	var c models.Case
	err := s.db.WithContext(ctx).
		Where("guild_id = ? AND target_id = ? AND action = ?", guildID, targetID, action).
		Order("created_at DESC").
		Order("case_id DESC").
		First(&c).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &c, nil
}

// FindUnprocessedCases returns every case still awaiting expiration handling,
// oldest first, across all guilds.
func (s *Store) FindUnprocessedCases(ctx context.Context) ([]models.Case, error) {
	var cases []models.Case
	err := s.db.WithContext(ctx).
		Where("action_processed = ?", false).
		Order("created_at ASC").
		Find(&cases).Error
	if err != nil {
		return nil, err
	}
	return cases, nil
}

// CasesByTarget returns a target's case history, newest first.
func (s *Store) CasesByTarget(ctx context.Context, guildID, targetID string) ([]models.Case, error) {
	var cases []models.Case
	err := s.db.WithContext(ctx).
		Where("guild_id = ? AND target_id = ?", guildID, targetID).
		Order("created_at DESC").
		Find(&cases).Error
	if err != nil {
		return nil, err
	}
	return cases, nil
}

// snowflakes are always at least 17 digits; anything shorter that parses as a
// number is treated as a case id
const snowflakeMinLength = 17

// FindCases backs case autocomplete. An empty phrase returns the most recent
// cases, a short numeric phrase matches the case id, and anything else is
// matched against target id, target tag, and reason.
func (s *Store) FindCases(ctx context.Context, guildID, phrase string, limit int) ([]models.Case, error) {
	if limit <= 0 {
		limit = 25
	}
	var cases []models.Case
	q := s.db.WithContext(ctx).Where("guild_id = ?", guildID)

	if phrase == "" {
		err := q.Order("created_at DESC").Limit(limit).Find(&cases).Error
		return cases, err
	}
	if n, err := strconv.ParseInt(phrase, 10, 64); err == nil && len(phrase) < snowflakeMinLength {
		err := q.Where("case_id = ?", n).Find(&cases).Error
		return cases, err
	}
	like := "%" + phrase + "%"
	err := q.Where("target_id = ? OR target_tag LIKE ? OR reason LIKE ?", phrase, like, like).
		Order("created_at DESC").
		Limit(limit).
		Find(&cases).Error
	return cases, err
}
