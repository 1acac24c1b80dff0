package platform

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func testClient(t *testing.T, handler http.HandlerFunc) *DiscordClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &DiscordClient{
		Host:    srv.URL,
		Token:   "test-token",
		Client:  srv.Client(),
		Limiter: rate.NewLimiter(rate.Inf, 1),
	}
}

func TestErrorTaxonomy(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	for status, want := range map[int]error{
		http.StatusForbidden:       ErrForbidden,
		http.StatusNotFound:        ErrNotFound,
		http.StatusTooManyRequests: ErrRateLimited,
	} {
		c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		})
		err := c.ApplyKick(ctx, "g1", "u1", "test")
		assert.ErrorIs(err, want)
	}

	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	err := c.ApplyKick(ctx, "g1", "u1", "test")
	assert.Error(err)
	assert.NotErrorIs(err, ErrForbidden)
	assert.NotErrorIs(err, ErrNotFound)
}

func TestBanRequestShape(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	var gotMethod, gotPath, gotAuth, gotReason string
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotReason = r.Header.Get("X-Audit-Log-Reason")
		w.WriteHeader(http.StatusNoContent)
	})

	err := c.ApplyBan(ctx, "g1", "u1", BanOptions{Reason: "Mod: mod#0001", PurgeDays: 1})
	assert.NoError(err)
	assert.Equal(http.MethodPut, gotMethod)
	assert.Equal("/guilds/g1/bans/u1", gotPath)
	assert.Equal("Bot test-token", gotAuth)
	assert.NotEmpty(gotReason)
}

func TestFetchMember(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	until := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"user":{"id":"u1","username":"someone","discriminator":"0001","bot":false},"communication_disabled_until":"` + until.Format(time.RFC3339) + `"}`))
	})

	m, err := c.FetchMember(ctx, "g1", "u1")
	assert.NoError(err)
	assert.Equal("u1", m.UserID)
	assert.Equal("someone#0001", m.Tag)
	assert.False(m.Bot)
	assert.NotNil(m.CommunicationDisabledUntil)
	assert.True(m.CommunicationDisabledUntil.Equal(until))
}

func TestTagWithoutDiscriminator(t *testing.T) {
	assert := assert.New(t)
	u := rawUser{ID: "u1", Username: "modern", Discriminator: "0"}
	assert.Equal("modern", u.tag())
}
