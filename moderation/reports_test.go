package moderation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/kagura-bot/kagura/ledger"
	"github.com/kagura-bot/kagura/lockstore"
	"github.com/kagura-bot/kagura/models"
)

func TestValidateReportRejectsSelfAndBots(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := NewTestFixture()

	_, err := f.Reports.ValidateReport(ctx, ValidateReportParams{
		GuildID:  "g1",
		Type:     models.ReportTypeUser,
		AuthorID: "u1",
		TargetID: "u1",
	})
	assert.ErrorIs(err, ErrSelfReport)
	assert.True(UserFacing(err))

	_, err = f.Reports.ValidateReport(ctx, ValidateReportParams{
		GuildID:     "g1",
		Type:        models.ReportTypeUser,
		AuthorID:    "u1",
		TargetID:    "b1",
		TargetIsBot: true,
	})
	assert.ErrorIs(err, ErrBotReport)
}

func TestValidateReportAttachmentRule(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := NewTestFixture()

	_, err := f.Reports.CreateReport(ctx, CreateReportParams{
		GuildID:       "g1",
		Type:          models.ReportTypeUser,
		TargetID:      "u1",
		TargetTag:     "user#0001",
		AuthorID:      "u2",
		AuthorTag:     "reporter#0002",
		Reason:        "posting gore in general",
		AttachmentURL: "https://cdn.example/evidence.png",
	})
	assert.NoError(err)

	// a bare user report adds nothing over the pending one with evidence
	_, err = f.Reports.ValidateReport(ctx, ValidateReportParams{
		GuildID:  "g1",
		Type:     models.ReportTypeUser,
		AuthorID: "u3",
		TargetID: "u1",
	})
	assert.ErrorIs(err, ErrDuplicateReport)

	// a user report carrying its own attachment is forwarded instead
	pending, err := f.Reports.ValidateReport(ctx, ValidateReportParams{
		GuildID:       "g1",
		Type:          models.ReportTypeUser,
		AuthorID:      "u3",
		TargetID:      "u1",
		HasAttachment: true,
	})
	assert.NoError(err)
	assert.NotNil(pending)
	assert.Equal(int64(1), pending.ReportID)
}

func TestValidateReportMessageRules(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := NewTestFixture()

	_, err := f.Reports.CreateReport(ctx, CreateReportParams{
		GuildID:   "g1",
		Type:      models.ReportTypeMessage,
		TargetID:  "u1",
		TargetTag: "user#0001",
		AuthorID:  "u2",
		AuthorTag: "reporter#0002",
		Reason:    "scam link in this message",
		MessageID: "msg1",
		ChannelID: "c1",
	})
	assert.NoError(err)

	// same message again is a duplicate
	_, err = f.Reports.ValidateReport(ctx, ValidateReportParams{
		GuildID:   "g1",
		Type:      models.ReportTypeMessage,
		AuthorID:  "u3",
		TargetID:  "u1",
		MessageID: "msg1",
		ChannelID: "c1",
	})
	assert.ErrorIs(err, ErrDuplicateReport)

	// a different message from the same target merges into the pending report
	pending, err := f.Reports.ValidateReport(ctx, ValidateReportParams{
		GuildID:   "g1",
		Type:      models.ReportTypeMessage,
		AuthorID:  "u3",
		TargetID:  "u1",
		MessageID: "msg2",
		ChannelID: "c1",
	})
	assert.NoError(err)
	assert.NotNil(pending)
	assert.Equal(int64(1), pending.ReportID)
}

func TestValidateReportWindowMarker(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := NewTestFixture()

	// no pending row, but the dedup marker from a recent submission is live
	err := f.Locks.Set(ctx, lockstore.ReportUserKey("g1", "u1"), time.Minute)
	assert.NoError(err)

	_, err = f.Reports.ValidateReport(ctx, ValidateReportParams{
		GuildID:  "g1",
		Type:     models.ReportTypeUser,
		AuthorID: "u2",
		TargetID: "u1",
	})
	assert.ErrorIs(err, ErrDuplicateReport)
}

func TestCreateReportSetsDedupMarker(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := NewTestFixture()

	report, err := f.Reports.CreateReport(ctx, CreateReportParams{
		GuildID:   "g1",
		Type:      models.ReportTypeUser,
		TargetID:  "u1",
		TargetTag: "user#0001",
		AuthorID:  "u2",
		AuthorTag: "reporter#0002",
		Reason:    "ban evasion on an alt account",
	})
	assert.NoError(err)
	assert.Equal(int64(1), report.ReportID)
	assert.Equal(models.ReportStatusPending, report.Status)

	exists, err := f.Locks.Exists(ctx, lockstore.ReportUserKey("g1", "u1"))
	assert.NoError(err)
	assert.True(exists)

	assert.Len(f.Notifier.Reports, 1)
}

func TestCreateReportReasonLength(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := NewTestFixture()

	_, err := f.Reports.CreateReport(ctx, CreateReportParams{
		GuildID:   "g1",
		Type:      models.ReportTypeUser,
		TargetID:  "u1",
		TargetTag: "user#0001",
		AuthorID:  "u2",
		AuthorTag: "reporter#0002",
		Reason:    "short",
	})
	assert.Error(err)
	assert.True(UserFacing(err))
}

func TestUpdateReportStatusTransition(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := NewTestFixture()

	report, err := f.Reports.CreateReport(ctx, CreateReportParams{
		GuildID:   "g1",
		Type:      models.ReportTypeUser,
		TargetID:  "u1",
		TargetTag: "user#0001",
		AuthorID:  "u2",
		AuthorTag: "reporter#0002",
		Reason:    "repeated slurs in chat",
	})
	assert.NoError(err)

	status := models.ReportStatusApproved
	ref := int64(42)
	updated, err := f.Reports.UpdateReport(ctx, "g1", report.ReportID, ledger.ReportPatch{
		Status: &status,
		RefID:  &ref,
	}, &Actor{ID: "m1", Tag: "mod#0001"})
	assert.NoError(err)
	assert.Equal(models.ReportStatusApproved, updated.Status)
	assert.Equal(int64(42), *updated.RefID)
	assert.Equal("m1", *updated.ModID)
	assert.Equal("mod#0001", *updated.ModTag)

	// the renderer saw the post-transition state last
	last := f.Notifier.LastReport()
	assert.Equal(models.ReportStatusApproved, last.Status)
}

func TestResolvePendingNoPendingIsNoop(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := NewTestFixture()

	err := f.Reports.ResolvePending(ctx, "g1", "u1", 1, nil)
	assert.NoError(err)
}
