// Package settings provides cached access to per-guild moderation
// configuration: log channels, the report forum, and the ordered tag lists
// that map forum labels back to report statuses.
package settings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/kagura-bot/kagura/models"
)

var ErrNotFound = errors.New("settings: guild not configured")

type Store struct {
	db   *gorm.DB
	data *cache.Cache
	ttl  time.Duration
}

// NewStore builds a settings store with a read-through cache. rdb may be nil,
// in which case only the in-process TinyLFU layer is used.
func NewStore(db *gorm.DB, rdb *redis.Client, ttl time.Duration) (*Store, error) {
	if err := db.AutoMigrate(&models.GuildSettings{}); err != nil {
		return nil, fmt.Errorf("migrating settings schema: %w", err)
	}
	opts := &cache.Options{
		LocalCache: cache.NewTinyLFU(10_000, ttl),
	}
	if rdb != nil {
		opts.Redis = rdb
	}
	return &Store{
		db:   db,
		data: cache.New(opts),
		ttl:  ttl,
	}, nil
}

func cacheKey(guildID string) string {
	return "settings/" + guildID
}

func (s *Store) Get(ctx context.Context, guildID string) (*models.GuildSettings, error) {
	var gs models.GuildSettings
	err := s.data.Get(ctx, cacheKey(guildID), &gs)
	if err == nil {
		return &gs, nil
	}
	if err != cache.ErrCacheMiss {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Where("guild_id = ?", guildID).First(&gs).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := s.data.Set(&cache.Item{
		Ctx:   ctx,
		Key:   cacheKey(guildID),
		Value: &gs,
		TTL:   s.ttl,
	}); err != nil {
		return nil, err
	}
	return &gs, nil
}

func (s *Store) Upsert(ctx context.Context, gs *models.GuildSettings) error {
	if err := s.db.WithContext(ctx).Save(gs).Error; err != nil {
		return err
	}
	err := s.data.Delete(ctx, cacheKey(gs.GuildID))
	if err == cache.ErrCacheMiss {
		return nil
	}
	return err
}

// StatusForTag maps a forum status tag back to the report status at the same
// index in the guild's ordered tag list.
func StatusForTag(gs *models.GuildSettings, tag string) (models.ReportStatus, bool) {
	for i, t := range gs.ReportStatusTags {
		if t == tag {
			return models.ReportStatus(i), true
		}
	}
	return 0, false
}

// TagForStatus is the inverse mapping, used when re-rendering a report post.
func TagForStatus(gs *models.GuildSettings, status models.ReportStatus) (string, bool) {
	i := int(status)
	if i < 0 || i >= len(gs.ReportStatusTags) {
		return "", false
	}
	return gs.ReportStatusTags[i], true
}
