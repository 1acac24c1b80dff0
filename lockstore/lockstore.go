package lockstore

import (
	"context"
	"fmt"
	"time"
)

// LockStore is the ephemeral TTL key-value surface used for idempotency
// locks, report dedup markers, and sliding-window spam counters. It is the
// only arbiter of cross-task mutual exclusion; nothing is coordinated
// in-process. Operations on distinct keys are not transactional with each
// other.
type LockStore interface {
	// SetIfAbsent writes an empty marker with the given TTL and reports
	// whether the key was newly created. Existing keys are left untouched.
	SetIfAbsent(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Set writes a marker unconditionally, replacing any previous TTL.
	Set(ctx context.Context, key string, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	// Increment adds delta to a counter, creating it with the given TTL if
	// absent, and returns the new value. The TTL is refreshed on every call
	// so the window slides with activity.
	Increment(ctx context.Context, key string, delta int64, ttl time.Duration) (int64, error)
	Delete(ctx context.Context, key string) error
}

// Key layouts shared by the manual command path, the anti-spam detector, and
// the report flow. Keeping them in one place is what makes a human-issued
// ban and an automated one contend on the same lock.

func ActionKey(guildID, userID, family string) string {
	return fmt.Sprintf("guild:%s:user:%s:%s", guildID, userID, family)
}

func ReportUserKey(guildID, userID string) string {
	return fmt.Sprintf("guild:%s:report:user:%s", guildID, userID)
}

func ReportMessageKey(guildID, channelID, messageID string) string {
	return fmt.Sprintf("guild:%s:report:channel:%s:message:%s", guildID, channelID, messageID)
}

func MentionCountKey(guildID, userID string) string {
	return fmt.Sprintf("guild:%s:user:%s:mentions", guildID, userID)
}

func ContentHashKey(guildID, userID, hash string) string {
	return fmt.Sprintf("guild:%s:user:%s:contenthash:%s", guildID, userID, hash)
}
