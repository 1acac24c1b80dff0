package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kagura-bot/kagura/models"
	"github.com/kagura-bot/kagura/platform"
)

// ActionExecutor applies the platform-side effect of a case. It knows which
// actions have no platform effect (warn), which are compound (softban), and
// which pre-existing-state errors are benign for recording purposes.
type ActionExecutor struct {
	Platform platform.Client
	Logger   *slog.Logger
}

type ExecuteParams struct {
	GuildID  string
	Action   models.CaseAction
	TargetID string
	// Reason is the audit-log reason, already formatted via AuditReason.
	Reason     string
	Expiration *time.Time
	PurgeDays  int
}

// AuditReason builds the reason string sent to the platform audit log:
// "Mod: tag | reason" for moderator actions, the bare reason otherwise.
// Backticks are stripped since the tag ends up in rendered log markup.
func AuditReason(modTag, reason string) string {
	reason = strings.ReplaceAll(reason, "`", "")
	if modTag == "" {
		return reason
	}
	if reason == "" {
		return fmt.Sprintf("Mod: %s", modTag)
	}
	return fmt.Sprintf("Mod: %s | %s", modTag, reason)
}

func (x *ActionExecutor) Execute(ctx context.Context, p ExecuteParams) error {
	switch p.Action {
	case models.CaseActionWarn:
		// ledger-only
		return nil

	case models.CaseActionKick:
		return x.Platform.ApplyKick(ctx, p.GuildID, p.TargetID, p.Reason)

	case models.CaseActionSoftban:
		purge := p.PurgeDays
		if purge < 1 {
			purge = 1
		}
		if err := x.Platform.ApplyBan(ctx, p.GuildID, p.TargetID, platform.BanOptions{Reason: p.Reason, PurgeDays: purge}); err != nil {
			return err
		}
		return x.Platform.RemoveBan(ctx, p.GuildID, p.TargetID, p.Reason)

	case models.CaseActionBan:
		return x.Platform.ApplyBan(ctx, p.GuildID, p.TargetID, platform.BanOptions{Reason: p.Reason, PurgeDays: p.PurgeDays})

	case models.CaseActionUnban:
		err := x.Platform.RemoveBan(ctx, p.GuildID, p.TargetID, p.Reason)
		if errors.Is(err, platform.ErrNotFound) {
			// already unbanned; the resolution case still gets recorded
			x.Logger.Info("unban target not banned", "guildId", p.GuildID, "targetId", p.TargetID)
			return nil
		}
		return err

	case models.CaseActionTimeout:
		if p.Expiration == nil {
			return fmt.Errorf("timeout action requires an expiration")
		}
		return x.Platform.ApplyTimeout(ctx, p.GuildID, p.TargetID, *p.Expiration, p.Reason)

	case models.CaseActionTimeoutEnd:
		err := x.Platform.RemoveTimeout(ctx, p.GuildID, p.TargetID, p.Reason)
		if errors.Is(err, platform.ErrNotFound) {
			// member left, or the platform already lifted the timeout
			x.Logger.Info("timeout target gone", "guildId", p.GuildID, "targetId", p.TargetID)
			return nil
		}
		return err

	default:
		return fmt.Errorf("unhandled case action: %d", p.Action)
	}
}
