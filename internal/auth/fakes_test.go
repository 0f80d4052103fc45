package auth

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryTokens struct {
	mu     sync.Mutex
	seq    int
	tokens map[string]AuthToken
	api    map[string]APIToken
	err    error
}

func newMemoryTokens() *memoryTokens {
	return &memoryTokens{tokens: map[string]AuthToken{}, api: map[string]APIToken{}}
}

func (m *memoryTokens) CreateAuthToken(_ context.Context, token AuthToken) (AuthToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	token.ID = fmt.Sprintf("tok-%d", m.seq)
	m.tokens[token.ID] = token
	return token, nil
}

func (m *memoryTokens) GetAuthToken(_ context.Context, id string) (AuthToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.tokens[id]
	if !ok {
		return AuthToken{}, ErrNotFound
	}
	return token, nil
}

func (m *memoryTokens) UpdateAuthToken(_ context.Context, token AuthToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	stored, ok := m.tokens[token.ID]
	if !ok || stored.Status != StatusPending {
		return ErrTokenNotPending
	}
	stored.Status = token.Status
	if stored.UserID == "" {
		stored.UserID = token.UserID
	}
	stored.Description = token.Description
	stored.TwoFactorEnabled = token.TwoFactorEnabled
	stored.UpdatedAt = token.UpdatedAt
	m.tokens[token.ID] = stored
	return nil
}

func (m *memoryTokens) MarkAuthTokenExchanged(_ context.Context, id string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.tokens[id]
	if !ok || stored.Status != StatusSuccess || stored.ExchangedAt != nil {
		return false, nil
	}
	stored.ExchangedAt = &at
	m.tokens[id] = stored
	return true, nil
}

func (m *memoryTokens) matching(filter TokenFilter) []AuthToken {
	out := make([]AuthToken, 0)
	for _, token := range m.tokens {
		if filter.Action != "" && token.Action != filter.Action {
			continue
		}
		if filter.Provider != "" && token.Provider != filter.Provider {
			continue
		}
		if filter.Status != "" && token.Status != filter.Status {
			continue
		}
		if filter.Description != "" && !strings.Contains(strings.ToLower(token.Description), strings.ToLower(filter.Description)) {
			continue
		}
		out = append(out, token)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memoryTokens) ListAuthTokens(_ context.Context, filter TokenFilter, skip, take int) ([]AuthToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := m.matching(filter)
	if skip >= len(all) {
		return []AuthToken{}, nil
	}
	end := min(skip+take, len(all))
	return all[skip:end], nil
}

func (m *memoryTokens) CountAuthTokens(_ context.Context, filter TokenFilter) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.matching(filter))), nil
}

func (m *memoryTokens) DeleteAuthTokens(_ context.Context, ids []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	var deleted int64
	for _, id := range ids {
		if _, ok := m.tokens[id]; ok {
			delete(m.tokens, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *memoryTokens) DeleteAllAuthTokens(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	deleted := int64(len(m.tokens))
	m.tokens = map[string]AuthToken{}
	return deleted, nil
}

func (m *memoryTokens) CreateAPIToken(_ context.Context, token APIToken) (APIToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	token.ID = fmt.Sprintf("api-%d", m.seq)
	stored := token
	stored.Value = ""
	m.api[token.Value] = stored
	return token, nil
}

func (m *memoryTokens) GetAPITokenByValue(_ context.Context, value string) (APIToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token, ok := m.api[value]
	if !ok {
		return APIToken{}, ErrNotFound
	}
	return token, nil
}

func (m *memoryTokens) DeleteAPITokenByValue(_ context.Context, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.api[value]; !ok {
		return false, nil
	}
	delete(m.api, value)
	return true, nil
}

func (m *memoryTokens) DeleteAllAPITokens(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := int64(len(m.api))
	m.api = map[string]APIToken{}
	return deleted, nil
}

type memoryDirectory struct {
	mu        sync.Mutex
	users     map[string]User
	claims    map[string]int64
	providers map[Provider]ProviderRecord

	lookupErr     error
	claimErr      error
	deactivateErr error
}

func newMemoryDirectory() *memoryDirectory {
	return &memoryDirectory{
		users:     map[string]User{},
		claims:    map[string]int64{},
		providers: map[Provider]ProviderRecord{ProviderLocal: {Provider: ProviderLocal, Active: true}},
	}
}

func (d *memoryDirectory) addUser(user User) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[user.ID] = user
}

func (d *memoryDirectory) user(id string) User {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.users[id]
}

func (d *memoryDirectory) GetUserByEmail(_ context.Context, email string) (User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lookupErr != nil {
		return User{}, d.lookupErr
	}
	for _, user := range d.users {
		if user.Email == email {
			return user, nil
		}
	}
	return User{}, ErrNotFound
}

func (d *memoryDirectory) GetUserByID(_ context.Context, id string) (User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.lookupErr != nil {
		return User{}, d.lookupErr
	}
	user, ok := d.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (d *memoryDirectory) setActive(id string, active bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	user, ok := d.users[id]
	if !ok {
		return ErrNotFound
	}
	user.Active = active
	d.users[id] = user
	return nil
}

func (d *memoryDirectory) ActivateUser(_ context.Context, id string) error {
	return d.setActive(id, true)
}

func (d *memoryDirectory) DeactivateUser(_ context.Context, id string) error {
	if d.deactivateErr != nil {
		return d.deactivateErr
	}
	return d.setActive(id, false)
}

func (d *memoryDirectory) FindProvider(_ context.Context, provider Provider) (ProviderRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	record, ok := d.providers[provider]
	if !ok {
		return ProviderRecord{}, ErrNotFound
	}
	return record, nil
}

func (d *memoryDirectory) IncrementClaim(_ context.Context, userID, key string) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.claimErr != nil {
		return 0, d.claimErr
	}
	d.claims[userID+"/"+key]++
	return d.claims[userID+"/"+key], nil
}

func (d *memoryDirectory) GetClaim(_ context.Context, userID, key string) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.claims[userID+"/"+key], nil
}

func (d *memoryDirectory) SetClaim(_ context.Context, userID, key string, value int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.claims[userID+"/"+key] = value
	return nil
}

// plainPasswords treats the stored hash as "hash:" + plain text.
type plainPasswords struct{}

func (plainPasswords) Compare(plain, hashed string) bool {
	return hashed == "hash:"+plain
}

type staticCodes struct {
	valid string
}

func (c staticCodes) Verify(code, secret string) bool {
	return secret != "" && code == c.valid
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
