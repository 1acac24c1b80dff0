package platform

import (
	"context"
	"sync"
	"time"
)

// MockClient is an in-memory platform for tests. It tracks which effects
// were applied and can be primed to fail specific operations.
type MockClient struct {
	mu sync.Mutex

	Members  map[string]Member // userID -> member
	Bans     map[string]BanEntry
	Timeouts map[string]time.Time
	Kicked   []string

	// Errs maps an operation name ("ban", "unban", "kick", "timeout",
	// "timeout_end", "member", "ban_status") to an error to return.
	Errs map[string]error

	Calls []string
}

var _ Client = (*MockClient)(nil)

func NewMockClient() *MockClient {
	return &MockClient{
		Members:  make(map[string]Member),
		Bans:     make(map[string]BanEntry),
		Timeouts: make(map[string]time.Time),
		Errs:     make(map[string]error),
	}
}

func (m *MockClient) record(op string) error {
	m.Calls = append(m.Calls, op)
	return m.Errs[op]
}

// CallCount returns how many times an operation ran.
func (m *MockClient) CallCount(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		if c == op {
			n++
		}
	}
	return n
}

func (m *MockClient) ApplyBan(ctx context.Context, guildID, userID string, opts BanOptions) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("ban"); err != nil {
		return err
	}
	m.Bans[userID] = BanEntry{UserID: userID, Reason: opts.Reason}
	return nil
}

func (m *MockClient) RemoveBan(ctx context.Context, guildID, userID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("unban"); err != nil {
		return err
	}
	if _, ok := m.Bans[userID]; !ok {
		return ErrNotFound
	}
	delete(m.Bans, userID)
	return nil
}

func (m *MockClient) ApplyKick(ctx context.Context, guildID, userID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("kick"); err != nil {
		return err
	}
	m.Kicked = append(m.Kicked, userID)
	return nil
}

func (m *MockClient) ApplyTimeout(ctx context.Context, guildID, userID string, until time.Time, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("timeout"); err != nil {
		return err
	}
	m.Timeouts[userID] = until
	return nil
}

func (m *MockClient) RemoveTimeout(ctx context.Context, guildID, userID, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("timeout_end"); err != nil {
		return err
	}
	delete(m.Timeouts, userID)
	return nil
}

func (m *MockClient) FetchMember(ctx context.Context, guildID, userID string) (*Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("member"); err != nil {
		return nil, err
	}
	member, ok := m.Members[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &member, nil
}

func (m *MockClient) FetchBanStatus(ctx context.Context, guildID, userID string) (*BanEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record("ban_status"); err != nil {
		return nil, err
	}
	entry, ok := m.Bans[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return &entry, nil
}
