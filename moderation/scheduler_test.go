package moderation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kagura-bot/kagura/models"
	"github.com/kagura-bot/kagura/platform"
)

func seedTimeoutCase(t *testing.T, f *TestFixture, guildID, targetID string, expiration time.Time) int64 {
	t.Helper()
	ctx := context.Background()
	caseID, err := f.Ledger.NextCaseID(ctx, guildID)
	if err != nil {
		t.Fatal(err)
	}
	exp := expiration.UTC()
	_, err = f.Ledger.CreateCase(ctx, &models.Case{
		GuildID:          guildID,
		CaseID:           caseID,
		Action:           models.CaseActionTimeout,
		TargetID:         targetID,
		TargetTag:        targetID + "#0001",
		ActionExpiration: &exp,
		ActionProcessed:  false,
	})
	if err != nil {
		t.Fatal(err)
	}
	return caseID
}

func TestScanOnceResolvesDueCases(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := NewTestFixture()
	s := NewExpirationScheduler(f.Cases, f.Ledger, f.Cases.Logger)

	dueID := seedTimeoutCase(t, f, "g1", "u1", time.Now().Add(-time.Second))
	futureID := seedTimeoutCase(t, f, "g1", "u2", time.Now().Add(time.Hour))

	assert.NoError(s.ScanOnce(ctx))

	due, err := f.Cases.GetCase(ctx, "g1", dueID)
	assert.NoError(err)
	assert.True(due.ActionProcessed)
	assert.Equal(1, f.Platform.CallCount("timeout_end"))

	future, err := f.Cases.GetCase(ctx, "g1", futureID)
	assert.NoError(err)
	assert.False(future.ActionProcessed)

	// the resolution case carries the scheduler reason and back-reference
	history, err := f.Cases.CaseHistory(ctx, "g1", "u1")
	assert.NoError(err)
	assert.Len(history, 2)
	resolution := history[0]
	assert.Equal(models.CaseActionTimeoutEnd, resolution.Action)
	assert.Equal("Timeout expired based on duration", *resolution.Reason)
	assert.Equal(dueID, *resolution.RefID)
	assert.Nil(resolution.ModID)
}

func TestScanOnceIsIdempotent(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := NewTestFixture()
	s := NewExpirationScheduler(f.Cases, f.Ledger, f.Cases.Logger)

	seedTimeoutCase(t, f, "g1", "u1", time.Now().Add(-time.Second))

	assert.NoError(s.ScanOnce(ctx))
	assert.NoError(s.ScanOnce(ctx))
	assert.Equal(1, f.Platform.CallCount("timeout_end"))
}

func TestScanOnceContinuesPastRowFailures(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := NewTestFixture()
	s := NewExpirationScheduler(f.Cases, f.Ledger, f.Cases.Logger)

	seedTimeoutCase(t, f, "g1", "u1", time.Now().Add(-2*time.Second))
	seedTimeoutCase(t, f, "g1", "u2", time.Now().Add(-time.Second))

	// platform failures on one tick must not abort the scan
	f.Platform.Errs["timeout_end"] = platform.ErrRateLimited
	assert.NoError(s.ScanOnce(ctx))
	assert.Equal(2, f.Platform.CallCount("timeout_end"))
}

func TestSchedulerStartShutdown(t *testing.T) {
	f := NewTestFixture()
	s := NewExpirationScheduler(f.Cases, f.Ledger, f.Cases.Logger)
	s.Interval = 10 * time.Millisecond

	seedTimeoutCase(t, f, "g1", "u1", time.Now().Add(-time.Second))

	s.Start()
	assert.Eventually(t, func() bool {
		return f.Platform.CallCount("timeout_end") == 1
	}, time.Second, 5*time.Millisecond)
	s.Shutdown()
}
