package settings

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kagura-bot/kagura/models"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	// each pooled sqlite :memory: connection is a distinct database
	sqldb, err := db.DB()
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)
	store, err := NewStore(db, nil, time.Minute)
	require.NoError(t, err)
	return store
}

func TestGetUpsertRoundTrip(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	store := testStore(t)

	_, err := store.Get(ctx, "g1")
	assert.ErrorIs(err, ErrNotFound)

	gs := &models.GuildSettings{
		GuildID:          "g1",
		ModLogChannelID:  "c1",
		ReportChannelID:  "c2",
		ReportStatusTags: []string{"tag-pending", "tag-approved", "tag-rejected", "tag-spam"},
	}
	assert.NoError(store.Upsert(ctx, gs))

	got, err := store.Get(ctx, "g1")
	assert.NoError(err)
	assert.Equal("c1", got.ModLogChannelID)
	assert.Len(got.ReportStatusTags, 4)

	// second read comes from cache
	got, err = store.Get(ctx, "g1")
	assert.NoError(err)
	assert.Equal("c2", got.ReportChannelID)

	// update purges the cache
	gs.ModLogChannelID = "c9"
	assert.NoError(store.Upsert(ctx, gs))
	got, err = store.Get(ctx, "g1")
	assert.NoError(err)
	assert.Equal("c9", got.ModLogChannelID)
}

func TestStatusTagMapping(t *testing.T) {
	assert := assert.New(t)

	gs := &models.GuildSettings{
		ReportStatusTags: []string{"tag-pending", "tag-approved", "tag-rejected", "tag-spam"},
	}

	status, ok := StatusForTag(gs, "tag-approved")
	assert.True(ok)
	assert.Equal(models.ReportStatusApproved, status)

	_, ok = StatusForTag(gs, "tag-unrelated")
	assert.False(ok)

	tag, ok := TagForStatus(gs, models.ReportStatusSpam)
	assert.True(ok)
	assert.Equal("tag-spam", tag)

	_, ok = TagForStatus(gs, models.ReportStatus(9))
	assert.False(ok)
}
