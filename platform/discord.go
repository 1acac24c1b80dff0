package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

const defaultAPIHost = "https://discord.com/api/v10"

// audit log reasons are capped by the API
const auditReasonMaxLength = 512

type DiscordClient struct {
	Host    string
	Token   string
	Client  *http.Client
	Limiter *rate.Limiter
	Logger  *slog.Logger
}

var _ Client = (*DiscordClient)(nil)

type leveledSlog struct {
	inner *slog.Logger
}

// re-writes HTTP client ERROR to WARN level (because of retries)
func (l leveledSlog) Error(msg string, keysAndValues ...interface{}) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l leveledSlog) Warn(msg string, keysAndValues ...interface{}) {
	l.inner.Warn(msg, keysAndValues...)
}

func (l leveledSlog) Info(msg string, keysAndValues ...interface{}) {
	l.inner.Info(msg, keysAndValues...)
}

func (l leveledSlog) Debug(msg string, keysAndValues ...interface{}) {
	l.inner.Debug(msg, keysAndValues...)
}

// NewDiscordClient returns a Client backed by the Discord REST API. The
// underlying HTTP client retries connection errors and 5xx responses;
// hard 429s additionally surface as ErrRateLimited so callers can decide
// whether to give up.
func NewDiscordClient(token string, logger *slog.Logger) *DiscordClient {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("system", "discord")

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 1 * time.Second
	retryClient.RetryWaitMax = 10 * time.Second
	retryClient.Logger = retryablehttp.LeveledLogger(leveledSlog{logger})
	client := retryClient.StandardClient()
	client.Timeout = 20 * time.Second

	return &DiscordClient{
		Host:    defaultAPIHost,
		Token:   token,
		Client:  client,
		Limiter: rate.NewLimiter(rate.Limit(40), 40),
		Logger:  logger,
	}
}

func truncateReason(reason string) string {
	if len(reason) > auditReasonMaxLength {
		return reason[:auditReasonMaxLength]
	}
	return reason
}

func (c *DiscordClient) do(ctx context.Context, method, path, auditReason string, body any, out any) error {
	if err := c.Limiter.Wait(ctx); err != nil {
		return err
	}

	var buf io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		buf = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.Host+path, buf)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bot "+c.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auditReason != "" {
		req.Header.Set("X-Audit-Log-Reason", url.PathEscape(truncateReason(auditReason)))
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s %s: %w", method, path, ErrForbidden)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%s %s: %w", method, path, ErrRateLimited)
	case resp.StatusCode >= 400:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s %s: unexpected status %d: %s", method, path, resp.StatusCode, raw)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%s %s: decoding response: %w", method, path, err)
		}
	}
	return nil
}

func (c *DiscordClient) ApplyBan(ctx context.Context, guildID, userID string, opts BanOptions) error {
	purge := opts.PurgeDays
	if purge < 0 {
		purge = 0
	}
	if purge > 7 {
		purge = 7
	}
	body := map[string]any{
		"delete_message_seconds": purge * 24 * 60 * 60,
	}
	return c.do(ctx, http.MethodPut, fmt.Sprintf("/guilds/%s/bans/%s", guildID, userID), opts.Reason, body, nil)
}

func (c *DiscordClient) RemoveBan(ctx context.Context, guildID, userID, reason string) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/guilds/%s/bans/%s", guildID, userID), reason, nil, nil)
}

func (c *DiscordClient) ApplyKick(ctx context.Context, guildID, userID, reason string) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/guilds/%s/members/%s", guildID, userID), reason, nil, nil)
}

func (c *DiscordClient) ApplyTimeout(ctx context.Context, guildID, userID string, until time.Time, reason string) error {
	body := map[string]any{
		"communication_disabled_until": until.UTC().Format(time.RFC3339),
	}
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/guilds/%s/members/%s", guildID, userID), reason, body, nil)
}

func (c *DiscordClient) RemoveTimeout(ctx context.Context, guildID, userID, reason string) error {
	body := map[string]any{
		"communication_disabled_until": nil,
	}
	return c.do(ctx, http.MethodPatch, fmt.Sprintf("/guilds/%s/members/%s", guildID, userID), reason, body, nil)
}

type rawUser struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	Bot           bool   `json:"bot"`
}

func (u *rawUser) tag() string {
	if u.Discriminator == "" || u.Discriminator == "0" {
		return u.Username
	}
	return u.Username + "#" + u.Discriminator
}

type rawMember struct {
	User                       rawUser    `json:"user"`
	CommunicationDisabledUntil *time.Time `json:"communication_disabled_until"`
}

func (c *DiscordClient) FetchMember(ctx context.Context, guildID, userID string) (*Member, error) {
	var m rawMember
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/guilds/%s/members/%s", guildID, userID), "", nil, &m); err != nil {
		return nil, err
	}
	return &Member{
		UserID:                     m.User.ID,
		Tag:                        m.User.tag(),
		Bot:                        m.User.Bot,
		CommunicationDisabledUntil: m.CommunicationDisabledUntil,
	}, nil
}

type rawBan struct {
	User   rawUser `json:"user"`
	Reason string  `json:"reason"`
}

func (c *DiscordClient) FetchBanStatus(ctx context.Context, guildID, userID string) (*BanEntry, error) {
	var b rawBan
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/guilds/%s/bans/%s", guildID, userID), "", nil, &b); err != nil {
		return nil, err
	}
	return &BanEntry{UserID: b.User.ID, Reason: b.Reason}, nil
}
