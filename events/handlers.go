package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kagura-bot/kagura/antispam"
	"github.com/kagura-bot/kagura/ledger"
	"github.com/kagura-bot/kagura/models"
	"github.com/kagura-bot/kagura/moderation"
	"github.com/kagura-bot/kagura/settings"
)

// AutomodTimeoutEvent reports a timeout the platform's own automod already
// applied; we only record it.
type AutomodTimeoutEvent struct {
	GuildID    string
	TargetID   string
	TargetTag  string
	Reason     string
	Expiration time.Time
}

// ReportTagChangeEvent fires when a moderator re-tags a report log post.
type ReportTagChangeEvent struct {
	GuildID   string
	LogPostID string
	Tag       string
	Mod       moderation.Actor
}

// RegisterMessageCreate routes message_create events into the spam detector.
func RegisterMessageCreate(d *Dispatcher, detector *antispam.Detector) {
	d.Subscribe(EventMessageCreate, func(ctx context.Context, evt any) error {
		msg, ok := evt.(antispam.Message)
		if !ok {
			return fmt.Errorf("message_create: unexpected payload %T", evt)
		}
		return detector.HandleMessage(ctx, msg)
	})
}

// RegisterAutomodTimeout records platform-applied timeouts as system cases
// without re-issuing the action.
func RegisterAutomodTimeout(d *Dispatcher, cases *moderation.CaseCoordinator, logger *slog.Logger) {
	d.Subscribe(EventAutomodTimeout, func(ctx context.Context, evt any) error {
		ev, ok := evt.(AutomodTimeoutEvent)
		if !ok {
			return fmt.Errorf("automod_timeout: unexpected payload %T", evt)
		}
		exp := ev.Expiration
		_, err := cases.CreateCase(ctx, moderation.CreateCaseParams{
			GuildID:          ev.GuildID,
			Action:           models.CaseActionTimeout,
			TargetID:         ev.TargetID,
			TargetTag:        ev.TargetTag,
			Reason:           ev.Reason,
			ActionExpiration: &exp,
			SkipAction:       true,
		})
		if err != nil {
			return fmt.Errorf("recording automod timeout for %s: %w", ev.TargetID, err)
		}
		logger.Info("automod timeout recorded", "guildId", ev.GuildID, "targetId", ev.TargetID)
		return nil
	})
}

// RegisterReportTagChange maps a log-post tag back to a report status through
// the guild's configured tag set and applies the transition. Unknown tags and
// posts that are not report logs are ignored.
func RegisterReportTagChange(d *Dispatcher, reports *moderation.ReportCoordinator, store *ledger.Store, cfg *settings.Store, logger *slog.Logger) {
	d.Subscribe(EventReportTagChange, func(ctx context.Context, evt any) error {
		ev, ok := evt.(ReportTagChangeEvent)
		if !ok {
			return fmt.Errorf("report_tag_change: unexpected payload %T", evt)
		}

		gs, err := cfg.Get(ctx, ev.GuildID)
		if err != nil {
			return fmt.Errorf("loading settings for %s: %w", ev.GuildID, err)
		}
		status, ok := settings.StatusForTag(gs, ev.Tag)
		if !ok {
			logger.Debug("tag not mapped to a report status", "guildId", ev.GuildID, "tag", ev.Tag)
			return nil
		}

		report, err := store.ReportByLogPost(ctx, ev.GuildID, ev.LogPostID)
		if err != nil {
			if errors.Is(err, ledger.ErrNotFound) {
				return nil
			}
			return fmt.Errorf("resolving log post %s: %w", ev.LogPostID, err)
		}
		if report.Status == status {
			return nil
		}

		_, err = reports.UpdateReport(ctx, ev.GuildID, report.ReportID, ledger.ReportPatch{
			Status: &status,
		}, &ev.Mod)
		if err != nil {
			return fmt.Errorf("applying tag transition on report %d: %w", report.ReportID, err)
		}
		return nil
	})
}
