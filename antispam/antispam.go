package antispam

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kagura-bot/kagura/lockstore"
	"github.com/kagura-bot/kagura/models"
	"github.com/kagura-bot/kagura/moderation"
)

const (
	// MentionThreshold bans an author once this many mentions accumulate
	// inside MentionWindow.
	MentionThreshold = 10
	MentionWindow    = 60 * time.Second

	// SpamThreshold softbans an author posting the same normalized content
	// this many times inside SpamWindow.
	SpamThreshold = 4
	SpamWindow    = 30 * time.Second
)

// Message is the slice of a platform message the detector cares about.
type Message struct {
	GuildID      string
	ChannelID    string
	MessageID    string
	AuthorID     string
	AuthorTag    string
	Content      string
	MentionCount int
}

// Detector watches the message stream for mention floods and repeated
// content, issuing cases through the coordinator when a counter trips.
type Detector struct {
	Locks  lockstore.LockStore
	Cases  *moderation.CaseCoordinator
	Logger *slog.Logger
}

func NewDetector(locks lockstore.LockStore, cases *moderation.CaseCoordinator, logger *slog.Logger) *Detector {
	return &Detector{
		Locks:  locks,
		Cases:  cases,
		Logger: logger.With("system", "antispam"),
	}
}

// ContentHash normalizes a message body and hashes it, so trivial casing and
// whitespace shuffles still land in the same bucket.
func ContentHash(content string) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(content), " "))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:16]
}

// HandleMessage feeds one message through both counters. Mention flooding is
// checked first and wins when both trip on the same message. A detection that
// loses the action lock to a concurrent moderator action is dropped; the
// counters reset either way so the author is not re-flagged every message.
func (d *Detector) HandleMessage(ctx context.Context, msg Message) error {
	if msg.MentionCount > 0 {
		mentionKey := lockstore.MentionCountKey(msg.GuildID, msg.AuthorID)
		total, err := d.Locks.Increment(ctx, mentionKey, int64(msg.MentionCount), MentionWindow)
		if err != nil {
			return fmt.Errorf("counting mentions: %w", err)
		}
		if total >= MentionThreshold {
			if err := d.Locks.Delete(ctx, mentionKey); err != nil {
				d.Logger.Warn("resetting mention counter failed", "guildId", msg.GuildID, "authorId", msg.AuthorID, "err", err)
			}
			return d.flag(ctx, msg, models.CaseActionBan, "Mention spam detection")
		}
	}

	if strings.TrimSpace(msg.Content) == "" {
		return nil
	}
	hashKey := lockstore.ContentHashKey(msg.GuildID, msg.AuthorID, ContentHash(msg.Content))
	total, err := d.Locks.Increment(ctx, hashKey, 1, SpamWindow)
	if err != nil {
		return fmt.Errorf("counting repeated content: %w", err)
	}
	if total >= SpamThreshold {
		if err := d.Locks.Delete(ctx, hashKey); err != nil {
			d.Logger.Warn("resetting content counter failed", "guildId", msg.GuildID, "authorId", msg.AuthorID, "err", err)
		}
		return d.flag(ctx, msg, models.CaseActionSoftban, "Spam detection")
	}
	return nil
}

func (d *Detector) flag(ctx context.Context, msg Message, action models.CaseAction, reason string) error {
	detectionsCount.WithLabelValues(action.String()).Inc()
	if action == models.CaseActionSoftban {
		// the unban leg of the softban is not a separately actionable event
		key := lockstore.ActionKey(msg.GuildID, msg.AuthorID, models.CaseActionUnban.Family())
		if err := d.Locks.Set(ctx, key, moderation.ActionLockTTL); err != nil {
			d.Logger.Warn("setting unban marker failed", "guildId", msg.GuildID, "authorId", msg.AuthorID, "err", err)
		}
	}
	_, err := d.Cases.CreateCase(ctx, moderation.CreateCaseParams{
		GuildID:          msg.GuildID,
		Action:           action,
		TargetID:         msg.AuthorID,
		TargetTag:        msg.AuthorTag,
		Reason:           reason,
		PurgeDays:        1,
		ContextMessageID: msg.MessageID,
	})
	if err != nil {
		if errors.Is(err, moderation.ErrLocked) {
			d.Logger.Info("detection skipped, action in flight",
				"guildId", msg.GuildID, "authorId", msg.AuthorID, "action", action.String())
			return nil
		}
		return fmt.Errorf("flagging %s for %s: %w", msg.AuthorID, action, err)
	}
	d.Logger.Info("spam detection actioned",
		"guildId", msg.GuildID, "authorId", msg.AuthorID, "action", action.String(), "reason", reason)
	return nil
}
