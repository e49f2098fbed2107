package repository

import (
	"context"
	"sync/atomic"
	"time"

	"coachplanner/internal/domain"
	"coachplanner/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// FailoverSessionStore uses primary until it errors, then serves from
// fallback and retries primary once per recoveryInterval.
type FailoverSessionStore struct {
	primary   domain.SessionStore
	fallback  domain.SessionStore
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

func NewFailoverSessionStore(primary, fallback domain.SessionStore, logger *zerolog.Logger) *FailoverSessionStore {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &FailoverSessionStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

func (r *FailoverSessionStore) markDown(err error, op string) {
	r.logger.Error().Err(err).Str("op", op).Msg("primary session store failed, falling back to memory")
	r.isDown.Store(true)
	r.lastCheck.Store(time.Now().UnixNano())
}

// usePrimary reports whether the next call should go to primary.
func (r *FailoverSessionStore) usePrimary() bool {
	if !r.isDown.Load() {
		return true
	}
	return time.Since(time.Unix(0, r.lastCheck.Load())) > recoveryInterval
}

func (r *FailoverSessionStore) recovered() {
	if r.isDown.CompareAndSwap(true, false) {
		r.logger.Info().Msg("primary session store recovered")
	}
}

func (r *FailoverSessionStore) GetSession(ctx context.Context, token string) (*models.Session, error) {
	if r.usePrimary() {
		session, err := r.primary.GetSession(ctx, token)
		if err == nil {
			r.recovered()
			if session != nil {
				return session, nil
			}
			// Sessions written during an outage live only in fallback.
			return r.promote(ctx, token)
		}
		r.markDown(err, "get")
	}
	return r.fallback.GetSession(ctx, token)
}

// promote reads a session from fallback and copies it back into primary.
func (r *FailoverSessionStore) promote(ctx context.Context, token string) (*models.Session, error) {
	session, err := r.fallback.GetSession(ctx, token)
	if err != nil || session == nil {
		return session, err
	}
	if err := r.primary.SetSession(ctx, session); err != nil {
		r.logger.Warn().Err(err).Msg("failed to copy fallback session into primary")
	}
	return session, nil
}

func (r *FailoverSessionStore) SetSession(ctx context.Context, session *models.Session) error {
	if r.usePrimary() {
		err := r.primary.SetSession(ctx, session)
		if err == nil {
			r.recovered()
			return nil
		}
		r.markDown(err, "set")
	}
	return r.fallback.SetSession(ctx, session)
}

func (r *FailoverSessionStore) ClearSession(ctx context.Context, token string) error {
	// Sessions written during an outage live only in fallback.
	fallbackErr := r.fallback.ClearSession(ctx, token)
	if r.usePrimary() {
		err := r.primary.ClearSession(ctx, token)
		if err == nil {
			r.recovered()
			return fallbackErr
		}
		r.markDown(err, "clear")
	}
	return fallbackErr
}

func (r *FailoverSessionStore) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if r.usePrimary() {
		allowed, err := r.primary.CheckRateLimit(ctx, key, limit, window)
		if err == nil {
			r.recovered()
			return allowed, nil
		}
		r.markDown(err, "rate_limit")
	}
	return r.fallback.CheckRateLimit(ctx, key, limit, window)
}

func (r *FailoverSessionStore) RateLimited(ctx context.Context, key string, limit int) (bool, error) {
	if r.usePrimary() {
		limited, err := r.primary.RateLimited(ctx, key, limit)
		if err == nil {
			r.recovered()
			return limited, nil
		}
		r.markDown(err, "rate_limited")
	}
	return r.fallback.RateLimited(ctx, key, limit)
}
