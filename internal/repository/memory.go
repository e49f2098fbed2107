package repository

import (
	"context"
	"sync"
	"time"

	"coachplanner/internal/models"
)

// MemorySessionStore keeps sessions in process memory. It is the fallback
// when Redis is not configured or unreachable.
type MemorySessionStore struct {
	sessions   sync.Map
	rateLimits sync.Map
	mu         sync.Mutex
	ttl        time.Duration
	now        func() time.Time
}

func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		ttl: ttl,
		now: time.Now,
	}
}

type memorySession struct {
	session   models.Session
	expiresAt time.Time
}

func (r *MemorySessionStore) GetSession(ctx context.Context, token string) (*models.Session, error) {
	val, ok := r.sessions.Load(token)
	if !ok {
		return nil, nil
	}
	entry := val.(*memorySession)
	if !entry.expiresAt.IsZero() && r.now().After(entry.expiresAt) {
		r.sessions.Delete(token)
		return nil, nil
	}
	session := entry.session
	return &session, nil
}

func (r *MemorySessionStore) SetSession(ctx context.Context, session *models.Session) error {
	expiresAt := session.ExpiresAt
	if expiresAt.IsZero() && r.ttl > 0 {
		expiresAt = r.now().Add(r.ttl)
	}
	r.sessions.Store(session.Token, &memorySession{session: *session, expiresAt: expiresAt})
	return nil
}

func (r *MemorySessionStore) ClearSession(ctx context.Context, token string) error {
	r.sessions.Delete(token)
	return nil
}

type rateLimitEntry struct {
	count     int
	expiresAt time.Time
}

func (r *MemorySessionStore) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	val, ok := r.rateLimits.Load(key)

	var entry *rateLimitEntry
	if !ok {
		entry = &rateLimitEntry{count: 1, expiresAt: now.Add(window)}
	} else {
		entry = val.(*rateLimitEntry)
		if now.After(entry.expiresAt) {
			entry.count = 1
			entry.expiresAt = now.Add(window)
		} else {
			entry.count++
		}
	}

	r.rateLimits.Store(key, entry)
	return entry.count <= limit, nil
}

func (r *MemorySessionStore) RateLimited(ctx context.Context, key string, limit int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	val, ok := r.rateLimits.Load(key)
	if !ok {
		return false, nil
	}
	entry := val.(*rateLimitEntry)
	if r.now().After(entry.expiresAt) {
		return false, nil
	}
	return entry.count >= limit, nil
}
