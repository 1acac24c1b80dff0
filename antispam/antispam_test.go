package antispam

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kagura-bot/kagura/models"
	"github.com/kagura-bot/kagura/moderation"
)

func testDetector(f *moderation.TestFixture) *Detector {
	return NewDetector(f.Locks, f.Cases, f.Cases.Logger)
}

func TestContentHashNormalization(t *testing.T) {
	assert := assert.New(t)

	assert.Equal(ContentHash("Buy My Coins"), ContentHash("buy  my\tcoins"))
	assert.Equal(ContentHash(" buy my coins "), ContentHash("buy my coins"))
	assert.NotEqual(ContentHash("buy my coins"), ContentHash("buy my tokens"))
}

func TestMentionFloodBans(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := moderation.NewTestFixture()
	d := testDetector(f)

	for i := 0; i < 3; i++ {
		err := d.HandleMessage(ctx, Message{
			GuildID:      "g1",
			MessageID:    fmt.Sprintf("m%d", i),
			AuthorID:     "u1",
			AuthorTag:    "user#0001",
			Content:      fmt.Sprintf("hey look %d", i),
			MentionCount: 3,
		})
		assert.NoError(err)
	}
	assert.Equal(0, f.Platform.CallCount("ban"))

	// the tenth mention tips the counter
	err := d.HandleMessage(ctx, Message{
		GuildID:      "g1",
		MessageID:    "m3",
		AuthorID:     "u1",
		AuthorTag:    "user#0001",
		Content:      "hey look again",
		MentionCount: 1,
	})
	assert.NoError(err)
	assert.Equal(1, f.Platform.CallCount("ban"))

	history, err := f.Cases.CaseHistory(ctx, "g1", "u1")
	assert.NoError(err)
	assert.Len(history, 1)
	assert.Equal(models.CaseActionBan, history[0].Action)
	assert.Equal("Mention spam detection", *history[0].Reason)
	assert.Nil(history[0].ModID)
}

func TestMentionCounterResetsAfterDetection(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := moderation.NewTestFixture()
	d := testDetector(f)

	err := d.HandleMessage(ctx, Message{
		GuildID: "g1", MessageID: "m1", AuthorID: "u1", AuthorTag: "user#0001",
		Content: "mass ping", MentionCount: MentionThreshold,
	})
	assert.NoError(err)
	assert.Equal(1, f.Platform.CallCount("ban"))

	// the counter was cleared; more mentions start from zero again
	err = d.HandleMessage(ctx, Message{
		GuildID: "g1", MessageID: "m2", AuthorID: "u1", AuthorTag: "user#0001",
		Content: "one more ping", MentionCount: 1,
	})
	assert.NoError(err)
	assert.Equal(1, f.Platform.CallCount("ban"))
}

func TestRepeatedContentSoftbans(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := moderation.NewTestFixture()
	d := testDetector(f)

	for i := 0; i < SpamThreshold; i++ {
		err := d.HandleMessage(ctx, Message{
			GuildID:   "g1",
			MessageID: fmt.Sprintf("m%d", i),
			AuthorID:  "u1",
			AuthorTag: "user#0001",
			Content:   "FREE nitro at scam.example",
		})
		assert.NoError(err)
	}
	assert.Equal(1, f.Platform.CallCount("ban"))
	assert.Equal(1, f.Platform.CallCount("unban"))

	history, err := f.Cases.CaseHistory(ctx, "g1", "u1")
	assert.NoError(err)
	assert.Len(history, 1)
	assert.Equal(models.CaseActionSoftban, history[0].Action)
	assert.Equal("Spam detection", *history[0].Reason)
}

func TestDistinctContentDoesNotTrip(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := moderation.NewTestFixture()
	d := testDetector(f)

	for i := 0; i < SpamThreshold+2; i++ {
		err := d.HandleMessage(ctx, Message{
			GuildID:   "g1",
			MessageID: fmt.Sprintf("m%d", i),
			AuthorID:  "u1",
			AuthorTag: "user#0001",
			Content:   fmt.Sprintf("unique thought number %d", i),
		})
		assert.NoError(err)
	}
	assert.Empty(f.Platform.Calls)
}

func TestDetectionYieldsToHeldLock(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	f := moderation.NewTestFixture()
	d := testDetector(f)

	// a moderator ban is mid-flight for this author
	_, err := f.Cases.CreateCase(ctx, moderation.CreateCaseParams{
		GuildID:   "g1",
		Action:    models.CaseActionBan,
		TargetID:  "u1",
		TargetTag: "user#0001",
		Mod:       &moderation.Actor{ID: "m1", Tag: "mod#0001"},
	})
	assert.NoError(err)

	err = d.HandleMessage(ctx, Message{
		GuildID: "g1", MessageID: "m1", AuthorID: "u1", AuthorTag: "user#0001",
		Content: "mass ping", MentionCount: MentionThreshold,
	})
	assert.NoError(err)

	// only the moderator's case exists
	history, err := f.Cases.CaseHistory(ctx, "g1", "u1")
	assert.NoError(err)
	assert.Len(history, 1)
	assert.Nil(history[0].Reason)
}
