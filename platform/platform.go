// Package platform is the boundary to the chat platform's REST API. The
// coordinator layer only depends on the Client interface and the error
// taxonomy here; the Discord implementation lives alongside it.
package platform

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound covers unknown guilds, members, and bans.
	ErrNotFound = errors.New("platform: not found")
	// ErrForbidden covers missing permissions and role hierarchy rejections.
	ErrForbidden = errors.New("platform: missing permissions")
	ErrRateLimited = errors.New("platform: rate limited")
)

type Member struct {
	UserID                     string
	Tag                        string
	Bot                        bool
	CommunicationDisabledUntil *time.Time
}

type BanEntry struct {
	UserID string
	Reason string
}

type BanOptions struct {
	Reason string
	// PurgeDays is how many days of the target's messages to delete, 0-7.
	PurgeDays int
}

type Client interface {
	ApplyBan(ctx context.Context, guildID, userID string, opts BanOptions) error
	RemoveBan(ctx context.Context, guildID, userID, reason string) error
	ApplyKick(ctx context.Context, guildID, userID, reason string) error
	ApplyTimeout(ctx context.Context, guildID, userID string, until time.Time, reason string) error
	RemoveTimeout(ctx context.Context, guildID, userID, reason string) error
	FetchMember(ctx context.Context, guildID, userID string) (*Member, error)
	// FetchBanStatus returns the active ban for a user, or ErrNotFound if
	// the user is not banned.
	FetchBanStatus(ctx context.Context, guildID, userID string) (*BanEntry, error)
}
