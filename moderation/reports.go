package moderation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kagura-bot/kagura/ledger"
	"github.com/kagura-bot/kagura/lockstore"
	"github.com/kagura-bot/kagura/models"
)

const (
	ReportReasonMinLength = 10
	ReportReasonMaxLength = 1500

	// ReportDedupPreExpire is set before the slow log-post render completes,
	// closing the window where two near-simultaneous submissions both pass
	// validation; ReportDedupExpire replaces it after a successful write.
	ReportDedupPreExpire = 3 * time.Second
	ReportDedupExpire    = 15 * time.Minute
)

// ReportCoordinator owns report creation, the dedup/merge rules against the
// pending-report window, and the status state machine.
type ReportCoordinator struct {
	Ledger   *ledger.Store
	Locks    lockstore.LockStore
	Notifier LogNotifier
	Logger   *slog.Logger
}

type ValidateReportParams struct {
	GuildID     string
	Type        models.ReportType
	AuthorID    string
	TargetID    string
	TargetIsBot bool
	// MessageID/ChannelID are set for message reports.
	MessageID     string
	ChannelID     string
	HasAttachment bool
}

func (r *ReportCoordinator) dedupKey(p ValidateReportParams) string {
	if p.Type == models.ReportTypeMessage {
		return lockstore.ReportMessageKey(p.GuildID, p.ChannelID, p.MessageID)
	}
	return lockstore.ReportUserKey(p.GuildID, p.TargetID)
}

// ValidateReport applies the dedup rules ahead of creating a report. It
// returns a non-nil pending report when the submission should be treated as
// a merge candidate (forwarding additional context to an existing report)
// rather than a fresh one.
func (r *ReportCoordinator) ValidateReport(ctx context.Context, p ValidateReportParams) (*models.Report, error) {
	if p.AuthorID == p.TargetID {
		return nil, ErrSelfReport
	}
	if p.TargetIsBot {
		return nil, ErrBotReport
	}

	pending, err := r.Ledger.PendingReportByTarget(ctx, p.GuildID, p.TargetID)
	if err != nil && !errors.Is(err, ledger.ErrNotFound) {
		return nil, fmt.Errorf("checking pending reports: %w", err)
	}
	if pending != nil {
		// an existing report with an attachment outranks a bare user report
		if p.Type == models.ReportTypeUser && pending.AttachmentURL != nil && !p.HasAttachment {
			reportsDedupedCount.WithLabelValues("attachment").Inc()
			return nil, ErrDuplicateReport
		}
		if p.Type == models.ReportTypeMessage && pending.MessageID != nil && *pending.MessageID == p.MessageID {
			reportsDedupedCount.WithLabelValues("message").Inc()
			return nil, ErrDuplicateReport
		}
		return pending, nil
	}

	// no pending row yet; the ephemeral marker suppresses rapid resubmission
	exists, err := r.Locks.Exists(ctx, r.dedupKey(p))
	if err != nil {
		return nil, fmt.Errorf("checking report dedup marker: %w", err)
	}
	if exists {
		reportsDedupedCount.WithLabelValues("window").Inc()
		return nil, ErrDuplicateReport
	}
	return nil, nil
}

type CreateReportParams struct {
	GuildID       string
	Type          models.ReportType
	TargetID      string
	TargetTag     string
	AuthorID      string
	AuthorTag     string
	Reason        string
	MessageID     string
	ChannelID     string
	AttachmentURL string
}

// CreateReport allocates the next report id and writes a pending report. The
// dedup marker is set with a short pre-expire window before the write and
// extended to the full window only afterwards, so a failed write does not
// block resubmission for long.
func (r *ReportCoordinator) CreateReport(ctx context.Context, p CreateReportParams) (*models.Report, error) {
	reason := strings.TrimSpace(p.Reason)
	if len(reason) < ReportReasonMinLength || len(reason) > ReportReasonMaxLength {
		return nil, validationf("report reason must be between %d and %d characters", ReportReasonMinLength, ReportReasonMaxLength)
	}

	key := r.dedupKey(ValidateReportParams{
		GuildID:   p.GuildID,
		Type:      p.Type,
		TargetID:  p.TargetID,
		MessageID: p.MessageID,
		ChannelID: p.ChannelID,
	})
	if err := r.Locks.Set(ctx, key, ReportDedupPreExpire); err != nil {
		return nil, fmt.Errorf("setting report dedup marker: %w", err)
	}

	reportID, err := r.Ledger.NextReportID(ctx, p.GuildID)
	if err != nil {
		return nil, err
	}

	row := &models.Report{
		GuildID:   p.GuildID,
		ReportID:  reportID,
		Type:      p.Type,
		Status:    models.ReportStatusPending,
		TargetID:  p.TargetID,
		TargetTag: p.TargetTag,
		AuthorID:  p.AuthorID,
		AuthorTag: p.AuthorTag,
		Reason:    reason,
	}
	if p.MessageID != "" {
		row.MessageID = &p.MessageID
	}
	if p.ChannelID != "" {
		row.ChannelID = &p.ChannelID
	}
	if p.AttachmentURL != "" {
		row.AttachmentURL = &p.AttachmentURL
	}

	if _, err := r.Ledger.CreateReport(ctx, row); err != nil {
		return nil, err
	}

	reportsCreatedCount.WithLabelValues(p.Type.String()).Inc()
	r.Logger.Info("report created",
		"guildId", p.GuildID, "reportId", reportID, "type", p.Type.String(),
		"targetId", p.TargetID, "authorId", p.AuthorID)

	if r.Notifier != nil {
		if err := r.Notifier.ReportLogged(ctx, row); err != nil {
			r.Logger.Warn("report log render failed", "guildId", p.GuildID, "reportId", reportID, "err", err)
		}
	}

	if err := r.Locks.Set(ctx, key, ReportDedupExpire); err != nil {
		r.Logger.Warn("extending report dedup marker failed", "guildId", p.GuildID, "reportId", reportID, "err", err)
	}
	return row, nil
}

func (r *ReportCoordinator) GetReport(ctx context.Context, guildID string, reportID int64) (*models.Report, error) {
	return r.Ledger.GetReport(ctx, guildID, reportID)
}

// UpdateReport patches a report, recording the acting moderator when one is
// given. Status transitions re-render the log post; archival of the post on
// leaving pending is the renderer's concern, keyed off the new status.
func (r *ReportCoordinator) UpdateReport(ctx context.Context, guildID string, reportID int64, patch ledger.ReportPatch, mod *Actor) (*models.Report, error) {
	if patch.Reason != nil {
		if n := len(strings.TrimSpace(*patch.Reason)); n < ReportReasonMinLength || n > ReportReasonMaxLength {
			return nil, validationf("report reason must be between %d and %d characters", ReportReasonMinLength, ReportReasonMaxLength)
		}
	}
	if mod != nil {
		patch.ModID = &mod.ID
		patch.ModTag = &mod.Tag
	}
	updated, err := r.Ledger.UpdateReport(ctx, guildID, reportID, patch)
	if err != nil {
		return nil, err
	}
	if patch.Status != nil {
		reportsResolvedCount.WithLabelValues(patch.Status.String()).Inc()
		r.Logger.Info("report status changed",
			"guildId", guildID, "reportId", reportID, "status", patch.Status.String())
	}
	if r.Notifier != nil {
		if err := r.Notifier.ReportLogged(ctx, updated); err != nil {
			r.Logger.Warn("report log render failed", "guildId", guildID, "reportId", reportID, "err", err)
		}
	}
	return updated, nil
}

// ResolvePending closes the loop between "someone got reported" and "a
// moderator acted": the oldest pending report involving the cased user is
// approved when they were its target, or marked spam when they authored it.
// Failures are logged, never propagated into the case path.
func (r *ReportCoordinator) ResolvePending(ctx context.Context, guildID, targetID string, caseID int64, mod *Actor) error {
	pending, err := r.Ledger.OldestPendingReportInvolving(ctx, guildID, targetID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil
		}
		return err
	}

	status := models.ReportStatusSpam
	if pending.TargetID == targetID {
		status = models.ReportStatusApproved
	}

	if _, err := r.UpdateReport(ctx, guildID, pending.ReportID, ledger.ReportPatch{
		Status: &status,
		RefID:  &caseID,
	}, mod); err != nil {
		r.Logger.Error("automatic report resolution failed",
			"guildId", guildID, "reportId", pending.ReportID, "caseId", caseID, "err", err)
	}
	return nil
}

func (r *ReportCoordinator) FindReports(ctx context.Context, guildID, phrase string) ([]models.Report, error) {
	return r.Ledger.FindReports(ctx, guildID, phrase, 25)
}
