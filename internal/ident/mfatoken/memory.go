package mfatoken

import (
	"context"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memory keeps tokens in process. Use Redis when more than one replica
// serves logins.
type Memory struct {
	ttl         time.Duration
	maxAttempts int
	now         func() time.Time

	mu sync.Mutex
	c  *gocache.Cache
}

// NewMemory returns a store whose tokens live for ttl.
func NewMemory(ttl time.Duration, maxAttempts int) *Memory {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Memory{
		ttl:         ttl,
		maxAttempts: maxAttempts,
		now:         time.Now,
		c:           gocache.New(ttl, time.Minute),
	}
}

func (m *Memory) Issue(_ context.Context, s Session) (string, error) {
	token, key, err := newToken()
	if err != nil {
		return "", err
	}
	s.Attempts = 0
	s.ExpiresAt = m.now().Add(m.ttl)
	m.c.Set(key, s, m.ttl)
	return token, nil
}

func (m *Memory) Lookup(_ context.Context, token string) (Session, error) {
	v, ok := m.c.Get(keyFor(token))
	if !ok {
		return Session{}, ErrNotFound
	}
	return v.(Session), nil
}

func (m *Memory) Fail(_ context.Context, token string) (Session, error) {
	key := keyFor(token)

	m.mu.Lock()
	defer m.mu.Unlock()

	v, expiresAt, ok := m.c.GetWithExpiration(key)
	if !ok {
		return Session{}, ErrNotFound
	}
	s := v.(Session)
	s.Attempts++
	if s.Attempts >= m.maxAttempts {
		m.c.Delete(key)
		return s, ErrExhausted
	}
	// Keep the original expiry.
	m.c.Set(key, s, time.Until(expiresAt))
	return s, nil
}

func (m *Memory) Delete(_ context.Context, token string) error {
	m.c.Delete(keyFor(token))
	return nil
}

var _ Store = (*Memory)(nil)
