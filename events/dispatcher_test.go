package events

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kagura-bot/kagura/antispam"
	"github.com/kagura-bot/kagura/ledger"
	"github.com/kagura-bot/kagura/models"
	"github.com/kagura-bot/kagura/moderation"
	"github.com/kagura-bot/kagura/settings"
)

func testLogger() *slog.Logger {
	return slog.Default()
}

func TestDispatchPreservesOrderPerType(t *testing.T) {
	assert := assert.New(t)
	d := NewDispatcher(testLogger())

	var mu sync.Mutex
	var got []int
	d.Subscribe("tick", func(ctx context.Context, evt any) error {
		mu.Lock()
		got = append(got, evt.(int))
		mu.Unlock()
		return nil
	})

	for i := 0; i < 100; i++ {
		d.Dispatch("tick", i)
	}
	d.Shutdown()

	assert.Len(got, 100)
	for i, v := range got {
		assert.Equal(i, v)
	}
}

func TestDispatchAfterShutdownIsDropped(t *testing.T) {
	assert := assert.New(t)
	d := NewDispatcher(testLogger())

	n := 0
	d.Subscribe("tick", func(ctx context.Context, evt any) error {
		n++
		return nil
	})
	d.Shutdown()
	d.Dispatch("tick", 1)
	assert.Equal(0, n)
}

func TestHandlerPanicIsContained(t *testing.T) {
	assert := assert.New(t)
	d := NewDispatcher(testLogger())

	var mu sync.Mutex
	survived := 0
	d.Subscribe("tick", func(ctx context.Context, evt any) error {
		if evt.(int) == 0 {
			panic("boom")
		}
		mu.Lock()
		survived++
		mu.Unlock()
		return nil
	})

	d.Dispatch("tick", 0)
	d.Dispatch("tick", 1)
	d.Dispatch("tick", 2)
	d.Shutdown()

	assert.Equal(2, survived)
}

func TestMessageCreateFeedsDetector(t *testing.T) {
	assert := assert.New(t)
	f := moderation.NewTestFixture()
	detector := antispam.NewDetector(f.Locks, f.Cases, testLogger())
	d := NewDispatcher(testLogger())
	RegisterMessageCreate(d, detector)

	d.Dispatch(EventMessageCreate, antispam.Message{
		GuildID: "g1", MessageID: "m1", AuthorID: "u1", AuthorTag: "user#0001",
		Content: "mass ping", MentionCount: antispam.MentionThreshold,
	})
	d.Shutdown()

	assert.Equal(1, f.Platform.CallCount("ban"))
}

func TestAutomodTimeoutRecordsSystemCase(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := moderation.NewTestFixture()
	d := NewDispatcher(testLogger())
	RegisterAutomodTimeout(d, f.Cases, testLogger())

	exp := time.Now().Add(time.Hour)
	d.Dispatch(EventAutomodTimeout, AutomodTimeoutEvent{
		GuildID:    "g1",
		TargetID:   "u1",
		TargetTag:  "user#0001",
		Reason:     "Blocked word",
		Expiration: exp,
	})
	d.Shutdown()

	got, err := f.Cases.GetCase(ctx, "g1", 1)
	assert.NoError(err)
	assert.Equal(models.CaseActionTimeout, got.Action)
	assert.Nil(got.ModID)
	assert.False(got.ActionProcessed)
	assert.WithinDuration(exp, *got.ActionExpiration, time.Second)
	// the platform already applied this timeout
	assert.Empty(f.Platform.Calls)
}

func TestReportTagChangeTransitionsStatus(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := moderation.NewTestFixture()

	cfg, err := settings.NewStore(f.Ledger.DB(), nil, time.Minute)
	assert.NoError(err)
	assert.NoError(cfg.Upsert(ctx, &models.GuildSettings{
		GuildID:          "g1",
		ReportStatusTags: []string{"pending", "approved", "rejected", "spam"},
	}))

	report, err := f.Reports.CreateReport(ctx, moderation.CreateReportParams{
		GuildID:   "g1",
		Type:      models.ReportTypeUser,
		TargetID:  "u1",
		TargetTag: "user#0001",
		AuthorID:  "u2",
		AuthorTag: "reporter#0002",
		Reason:    "spamming invite links",
	})
	assert.NoError(err)
	logPost := "post1"
	_, err = f.Reports.UpdateReport(ctx, "g1", report.ReportID, ledger.ReportPatch{LogPostID: &logPost}, nil)
	assert.NoError(err)

	d := NewDispatcher(testLogger())
	RegisterReportTagChange(d, f.Reports, f.Ledger, cfg, testLogger())
	d.Dispatch(EventReportTagChange, ReportTagChangeEvent{
		GuildID:   "g1",
		LogPostID: "post1",
		Tag:       "rejected",
		Mod:       moderation.Actor{ID: "m1", Tag: "mod#0001"},
	})
	// an unmapped tag and an unknown post are both ignored
	d.Dispatch(EventReportTagChange, ReportTagChangeEvent{
		GuildID: "g1", LogPostID: "post1", Tag: "bogus",
	})
	d.Dispatch(EventReportTagChange, ReportTagChangeEvent{
		GuildID: "g1", LogPostID: "nosuch", Tag: "approved",
	})
	d.Shutdown()

	got, err := f.Reports.GetReport(ctx, "g1", report.ReportID)
	assert.NoError(err)
	assert.Equal(models.ReportStatusRejected, got.Status)
	assert.Equal("m1", *got.ModID)
}
