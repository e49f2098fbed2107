package repository

import (
	"context"
	"testing"
	"time"

	"coachplanner/internal/config"
	"coachplanner/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisSessionStore(t *testing.T) {
	s, err := miniredis.Run()
	require.NoError(t, err)
	defer s.Close()

	client := NewRedisClient(config.RedisConfig{Address: s.Addr()})
	defer client.Close()

	repo := NewRedisSessionStore(client, time.Hour)
	ctx := context.Background()

	t.Run("SetAndGetSession", func(t *testing.T) {
		session := &models.Session{Token: "tok-1", UserID: "u1", Email: "a@example.com", Role: models.RoleClient}
		require.NoError(t, repo.SetSession(ctx, session))

		got, err := repo.GetSession(ctx, "tok-1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "u1", got.UserID)
		assert.Equal(t, models.RoleClient, got.Role)
		assert.Equal(t, time.Hour, s.TTL("session:tok-1"))
	})

	t.Run("TTLFollowsExpiry", func(t *testing.T) {
		session := &models.Session{Token: "tok-2", UserID: "u2", ExpiresAt: time.Now().Add(10 * time.Minute)}
		require.NoError(t, repo.SetSession(ctx, session))

		ttl := s.TTL("session:tok-2")
		assert.True(t, ttl > 9*time.Minute && ttl <= 10*time.Minute, "ttl %s", ttl)

		s.FastForward(11 * time.Minute)
		got, err := repo.GetSession(ctx, "tok-2")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("ExpiredSessionNotStored", func(t *testing.T) {
		session := &models.Session{Token: "tok-old", UserID: "u", ExpiresAt: time.Now().Add(-time.Second)}
		require.NoError(t, repo.SetSession(ctx, session))
		assert.False(t, s.Exists("session:tok-old"))
	})

	t.Run("GetMissingSession", func(t *testing.T) {
		got, err := repo.GetSession(ctx, "missing")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("ClearSession", func(t *testing.T) {
		require.NoError(t, repo.SetSession(ctx, &models.Session{Token: "tok-3", UserID: "u3"}))
		require.NoError(t, repo.ClearSession(ctx, "tok-3"))

		got, _ := repo.GetSession(ctx, "tok-3")
		assert.Nil(t, got)
	})

	t.Run("CorruptPayload", func(t *testing.T) {
		require.NoError(t, s.Set("session:bad", "{not json"))
		_, err := repo.GetSession(ctx, "bad")
		assert.Error(t, err)
	})

	t.Run("RateLimit", func(t *testing.T) {
		key := "login:a@example.com"
		limit := 2
		window := time.Second

		allowed, err := repo.CheckRateLimit(ctx, key, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = repo.CheckRateLimit(ctx, key, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)

		allowed, err = repo.CheckRateLimit(ctx, key, limit, window)
		require.NoError(t, err)
		assert.False(t, allowed)

		s.FastForward(window + time.Millisecond)

		allowed, err = repo.CheckRateLimit(ctx, key, limit, window)
		require.NoError(t, err)
		assert.True(t, allowed)
	})

	t.Run("RateLimitKeyAlwaysExpires", func(t *testing.T) {
		key := "login:ttl@example.com"
		_, err := repo.CheckRateLimit(ctx, key, 5, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, time.Minute, s.TTL("rate_limit:"+key))

		_, err = repo.CheckRateLimit(ctx, key, 5, time.Minute)
		require.NoError(t, err)
		assert.Equal(t, time.Minute, s.TTL("rate_limit:"+key))

		got, err := s.Get("rate_limit:" + key)
		require.NoError(t, err)
		assert.Equal(t, "2", got)
	})

	t.Run("RateLimitedDoesNotCount", func(t *testing.T) {
		key := "login:peek@example.com"

		limited, err := repo.RateLimited(ctx, key, 2)
		require.NoError(t, err)
		assert.False(t, limited)

		_, _ = repo.CheckRateLimit(ctx, key, 2, time.Minute)
		limited, err = repo.RateLimited(ctx, key, 2)
		require.NoError(t, err)
		assert.False(t, limited)

		_, _ = repo.CheckRateLimit(ctx, key, 2, time.Minute)
		for i := 0; i < 3; i++ {
			limited, err = repo.RateLimited(ctx, key, 2)
			require.NoError(t, err)
			assert.True(t, limited)
		}

		got, err := s.Get("rate_limit:" + key)
		require.NoError(t, err)
		assert.Equal(t, "2", got)
	})

	t.Run("NilClient", func(t *testing.T) {
		repo := NewRedisSessionStore(nil, time.Hour)
		_, err := repo.GetSession(ctx, "x")
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "redis client is nil")
	})

	t.Run("ServerDown", func(t *testing.T) {
		down, err := miniredis.Run()
		require.NoError(t, err)
		downClient := NewRedisClient(config.RedisConfig{Address: down.Addr()})
		defer downClient.Close()
		down.Close()

		_, err = NewRedisSessionStore(downClient, time.Hour).GetSession(ctx, "x")
		assert.Error(t, err)
	})

	t.Run("Ping", func(t *testing.T) {
		assert.NoError(t, Ping(ctx, client))
	})

	t.Run("Close", func(t *testing.T) {
		assert.NoError(t, Close(nil))
	})
}
