package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kagura-bot/kagura/ledger"
	"github.com/kagura-bot/kagura/lockstore"
	"github.com/kagura-bot/kagura/models"
)

const (
	// ActionLockTTL covers the round trip between applying an action on the
	// platform and finishing the ledger write. The lock is never released
	// explicitly; TTL expiry guards against a crash leaving it stuck.
	ActionLockTTL = 15 * time.Second

	CaseReasonMaxLength = 500
)

// Actor identifies who triggered an operation: a moderator, or the bot
// itself for automated actions.
type Actor struct {
	ID  string
	Tag string
}

// CaseCoordinator orchestrates action execution and the case ledger write as
// one logical operation, and owns the idempotency lock discipline around it.
type CaseCoordinator struct {
	Ledger   *ledger.Store
	Locks    lockstore.LockStore
	Executor *ActionExecutor
	Reports  *ReportCoordinator
	Notifier LogNotifier
	Logger   *slog.Logger
}

type CreateCaseParams struct {
	GuildID   string
	Action    models.CaseAction
	TargetID  string
	TargetTag string
	// Mod is nil for system-originated cases.
	Mod    *Actor
	Reason string
	// Duration sets the action expiration relative to now; Timeout only.
	Duration time.Duration
	// ActionExpiration sets an absolute expiration instead, for cases that
	// record an action the platform already scheduled (automod timeouts).
	ActionExpiration *time.Time
	PurgeDays        int
	ContextMessageID string
	RefID            *int64
	Multi            bool
	// SkipAction records the case without touching the platform, for
	// actions that already happened externally.
	SkipAction bool
}

func (p *CreateCaseParams) modID() *string {
	if p.Mod == nil {
		return nil
	}
	return &p.Mod.ID
}

func (p *CreateCaseParams) modTag() *string {
	if p.Mod == nil {
		return nil
	}
	return &p.Mod.Tag
}

// CreateCase applies a moderation action and records it as a new case.
//
// The short-TTL lock taken here is not a queue: the command layer is
// expected to have already prevented duplicate submission, and the lock only
// covers the window where a concurrent trigger (another moderator, the
// anti-spam detector) could double-apply the same action family.
func (c *CaseCoordinator) CreateCase(ctx context.Context, params CreateCaseParams) (*models.Case, error) {
	if len(params.Reason) > CaseReasonMaxLength {
		return nil, validationf("reason must be at most %d characters", CaseReasonMaxLength)
	}

	key := lockstore.ActionKey(params.GuildID, params.TargetID, params.Action.Family())
	acquired, err := c.Locks.SetIfAbsent(ctx, key, ActionLockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquiring action lock: %w", err)
	}
	if !acquired {
		lockContentionCount.WithLabelValues(params.Action.String()).Inc()
		return nil, ErrLocked
	}

	var expiration *time.Time
	switch {
	case params.ActionExpiration != nil:
		t := params.ActionExpiration.UTC()
		expiration = &t
	case params.Action == models.CaseActionTimeout && params.Duration > 0:
		t := time.Now().Add(params.Duration).UTC()
		expiration = &t
	}

	if !params.SkipAction {
		modTag := ""
		if params.Mod != nil {
			modTag = params.Mod.Tag
		}
		err := c.Executor.Execute(ctx, ExecuteParams{
			GuildID:    params.GuildID,
			Action:     params.Action,
			TargetID:   params.TargetID,
			Reason:     AuditReason(modTag, params.Reason),
			Expiration: expiration,
			PurgeDays:  params.PurgeDays,
		})
		if err != nil {
			caseActionErrorCount.WithLabelValues(params.Action.String()).Inc()
			return nil, fmt.Errorf("executing %s on %s: %w", params.Action, params.TargetID, err)
		}
	}

	caseID, err := c.Ledger.NextCaseID(ctx, params.GuildID)
	if err != nil {
		// the platform effect already happened; this is an operational
		// inconsistency, not something to retry blindly
		caseInconsistencyCount.Inc()
		c.Logger.Error("case id allocation failed after platform action",
			"guildId", params.GuildID, "targetId", params.TargetID, "action", params.Action.String(), "err", err)
		return nil, err
	}

	row := &models.Case{
		GuildID:          params.GuildID,
		CaseID:           caseID,
		RefID:            params.RefID,
		TargetID:         params.TargetID,
		TargetTag:        params.TargetTag,
		ModID:            params.modID(),
		ModTag:           params.modTag(),
		Action:           params.Action,
		ActionExpiration: expiration,
		ActionProcessed:  expiration == nil,
		Multi:            params.Multi,
	}
	if params.Reason != "" {
		row.Reason = &params.Reason
	}
	if params.ContextMessageID != "" {
		row.ContextMessageID = &params.ContextMessageID
	}

	if _, err := c.Ledger.CreateCase(ctx, row); err != nil {
		caseInconsistencyCount.Inc()
		c.Logger.Error("case write failed after platform action",
			"guildId", params.GuildID, "targetId", params.TargetID, "action", params.Action.String(), "err", err)
		return nil, err
	}

	origin := "mod"
	if params.Mod == nil {
		origin = "system"
	}
	casesCreatedCount.WithLabelValues(params.Action.String(), origin).Inc()
	c.Logger.Info("case created",
		"guildId", params.GuildID, "caseId", caseID, "action", params.Action.String(),
		"targetId", params.TargetID, "origin", origin)

	if c.Notifier != nil {
		if err := c.Notifier.CaseLogged(ctx, row); err != nil {
			c.Logger.Warn("case log render failed", "guildId", params.GuildID, "caseId", caseID, "err", err)
		}
	}

	// a fresh punitive case closes any pending report loop on the target
	if c.Reports != nil && params.Action.Punitive() {
		if err := c.Reports.ResolvePending(ctx, params.GuildID, params.TargetID, caseID, params.Mod); err != nil {
			c.Logger.Warn("pending report resolution failed",
				"guildId", params.GuildID, "caseId", caseID, "targetId", params.TargetID, "err", err)
		}
	}

	return row, nil
}

func (c *CaseCoordinator) GetCase(ctx context.Context, guildID string, caseID int64) (*models.Case, error) {
	return c.Ledger.GetCase(ctx, guildID, caseID)
}

// UpdateCase patches the mutable fields of a case. No platform side effect.
func (c *CaseCoordinator) UpdateCase(ctx context.Context, guildID string, caseID int64, patch ledger.CasePatch) (*models.Case, error) {
	if patch.Reason != nil && len(*patch.Reason) > CaseReasonMaxLength {
		return nil, validationf("reason must be at most %d characters", CaseReasonMaxLength)
	}
	updated, err := c.Ledger.UpdateCase(ctx, guildID, caseID, patch)
	if err != nil {
		return nil, err
	}
	if c.Notifier != nil {
		if err := c.Notifier.CaseLogged(ctx, updated); err != nil {
			c.Logger.Warn("case log render failed", "guildId", guildID, "caseId", caseID, "err", err)
		}
	}
	return updated, nil
}

type DeleteCaseParams struct {
	GuildID string
	// CaseID selects the case to resolve; zero means look up the most
	// recent case for TargetID instead.
	CaseID   int64
	TargetID string
	// Action narrows the target lookup; defaults to Ban.
	Action *models.CaseAction
	// Mod is who requested the resolution; nil for the scheduler.
	Mod    *Actor
	Reason string
	// Manual distinguishes a moderator-issued resolution from scheduler
	// expiry, which changes the recorded reason for timeouts.
	Manual     bool
	SkipAction bool
}

// DeleteCase resolves a timed or reversible action: it never removes the
// original case, but flips its processed flag (timeouts) and records a
// mirrored resolution case (Unban for Ban/Softban, TimeoutEnd for Timeout)
// through the normal CreateCase path.
func (c *CaseCoordinator) DeleteCase(ctx context.Context, params DeleteCaseParams) (*models.Case, error) {
	var original *models.Case
	var err error
	if params.CaseID != 0 {
		original, err = c.Ledger.GetCase(ctx, params.GuildID, params.CaseID)
	} else {
		action := models.CaseActionBan
		if params.Action != nil {
			action = *params.Action
		}
		original, err = c.Ledger.LatestCaseByTarget(ctx, params.GuildID, params.TargetID, action)
	}
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, ErrCaseNotFound
		}
		return nil, err
	}

	reason := params.Reason
	if original.Action == models.CaseActionTimeout {
		// conditional flip closes the race between the scheduler and a
		// concurrent manual resolution: whoever loses the write backs off
		flipped, err := c.Ledger.MarkActionProcessed(ctx, params.GuildID, original.CaseID)
		if err != nil {
			return nil, fmt.Errorf("marking case %d processed: %w", original.CaseID, err)
		}
		if !flipped {
			return nil, ErrAlreadyResolved
		}
		if params.Manual {
			reason = "Manually ended timeout"
		} else {
			reason = "Timeout expired based on duration"
		}
	}

	resolution := models.CaseActionUnban
	if original.Action == models.CaseActionTimeout {
		resolution = models.CaseActionTimeoutEnd
	}

	refID := original.CaseID
	return c.CreateCase(ctx, CreateCaseParams{
		GuildID:    params.GuildID,
		Action:     resolution,
		TargetID:   original.TargetID,
		TargetTag:  original.TargetTag,
		Mod:        params.Mod,
		Reason:     reason,
		RefID:      &refID,
		SkipAction: params.SkipAction,
	})
}

// CaseHistory returns a target's cases, newest first.
func (c *CaseCoordinator) CaseHistory(ctx context.Context, guildID, targetID string) ([]models.Case, error) {
	return c.Ledger.CasesByTarget(ctx, guildID, targetID)
}
