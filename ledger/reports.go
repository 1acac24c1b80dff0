package ledger

import (
	"context"
	"fmt"
	"strconv"

	"github.com/kagura-bot/kagura/models"
)

// ReportPatch is a partial update for a report row. Nil fields are left
// untouched.
type ReportPatch struct {
	Status        *models.ReportStatus
	Reason        *string
	AttachmentURL *string
	MessageID     *string
	ChannelID     *string
	LogPostID     *string
	RefID         *int64
	ModID         *string
	ModTag        *string
}

func (s *Store) CreateReport(ctx context.Context, r *models.Report) (*models.Report, error) {
	if err := s.db.WithContext(ctx).Create(r).Error; err != nil {
		return nil, fmt.Errorf("writing report %d in guild %s: %w", r.ReportID, r.GuildID, err)
	}
	return r, nil
}

func (s *Store) GetReport(ctx context.Context, guildID string, reportID int64) (*models.Report, error) {
	var r models.Report
	err := s.db.WithContext(ctx).
		Where("guild_id = ? AND report_id = ?", guildID, reportID).
		First(&r).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &r, nil
}

func (s *Store) UpdateReport(ctx context.Context, guildID string, reportID int64, patch ReportPatch) (*models.Report, error) {
	updates := map[string]interface{}{}
	if patch.Status != nil {
		updates["status"] = *patch.Status
	}
	if patch.Reason != nil {
		updates["reason"] = *patch.Reason
	}
	if patch.AttachmentURL != nil {
		updates["attachment_url"] = *patch.AttachmentURL
	}
	if patch.MessageID != nil {
		updates["message_id"] = *patch.MessageID
	}
	if patch.ChannelID != nil {
		updates["channel_id"] = *patch.ChannelID
	}
	if patch.LogPostID != nil {
		updates["log_post_id"] = *patch.LogPostID
	}
	if patch.RefID != nil {
		updates["ref_id"] = *patch.RefID
	}
	if patch.ModID != nil {
		updates["mod_id"] = *patch.ModID
	}
	if patch.ModTag != nil {
		updates["mod_tag"] = *patch.ModTag
	}
	if len(updates) > 0 {
		res := s.db.WithContext(ctx).Model(&models.Report{}).
			Where("guild_id = ? AND report_id = ?", guildID, reportID).
			Updates(updates)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}
	return s.GetReport(ctx, guildID, reportID)
}

// PendingReportByTarget returns the most recent pending report against a
// target, or ErrNotFound. This is the anchor of the dedup/merge check.
func (s *Store) PendingReportByTarget(ctx context.Context, guildID, targetID string) (*models.Report, error) {
	var r models.Report
	err := s.db.WithContext(ctx).
		Where("guild_id = ? AND target_id = ? AND status = ?", guildID, targetID, models.ReportStatusPending).
		Order("created_at DESC").
		First(&r).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &r, nil
}

// OldestPendingReportInvolving returns the oldest pending report where the
// given user is either the reported target or the author, or ErrNotFound.
// Used for automatic resolution when a case lands on that user.
func (s *Store) OldestPendingReportInvolving(ctx context.Context, guildID, userID string) (*models.Report, error) {
	var r models.Report
	err := s.db.WithContext(ctx).
		Where("guild_id = ? AND status = ? AND (target_id = ? OR author_id = ?)",
			guildID, models.ReportStatusPending, userID, userID).
		Order("created_at ASC").
		First(&r).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &r, nil
}

// ReportByLogPost resolves a rendered forum post back to its report, for the
// tag-edit event path.
func (s *Store) ReportByLogPost(ctx context.Context, guildID, logPostID string) (*models.Report, error) {
	var r models.Report
	err := s.db.WithContext(ctx).
		Where("guild_id = ? AND log_post_id = ?", guildID, logPostID).
		First(&r).Error
	if err != nil {
		return nil, translateErr(err)
	}
	return &r, nil
}

// FindReports backs report autocomplete, mirroring FindCases.
func (s *Store) FindReports(ctx context.Context, guildID, phrase string, limit int) ([]models.Report, error) {
	if limit <= 0 {
		limit = 25
	}
	var reports []models.Report
	q := s.db.WithContext(ctx).Where("guild_id = ?", guildID)

	if phrase == "" {
		err := q.Order("created_at DESC").Limit(limit).Find(&reports).Error
		return reports, err
	}
	if n, err := strconv.ParseInt(phrase, 10, 64); err == nil && len(phrase) < snowflakeMinLength {
		err := q.Where("report_id = ?", n).Find(&reports).Error
		return reports, err
	}
	like := "%" + phrase + "%"
	err := q.Where("target_id = ? OR author_id = ? OR target_tag LIKE ? OR author_tag LIKE ? OR reason LIKE ?",
		phrase, phrase, like, like, like).
		Order("created_at DESC").
		Limit(limit).
		Find(&reports).Error
	return reports, err
}
