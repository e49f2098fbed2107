package database

import (
	"context"
	"testing"

	"coachplanner/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfiles(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	t.Run("CreateAndGet", func(t *testing.T) {
		p := &models.Profile{Email: "  Client@Example.com ", DisplayName: "Client", Role: models.RoleClient, PasswordHash: "hash"}
		require.NoError(t, db.CreateProfile(ctx, p))
		assert.NotEmpty(t, p.ID)

		got, err := db.GetProfile(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "client@example.com", got.Email)
		assert.Equal(t, "hash", got.PasswordHash)

		byEmail, err := db.GetProfileByEmail(ctx, "CLIENT@example.com")
		require.NoError(t, err)
		assert.Equal(t, p.ID, byEmail.ID)
	})

	t.Run("DuplicateEmail", func(t *testing.T) {
		err := db.CreateProfile(ctx, &models.Profile{Email: "client@example.com", Role: models.RoleClient})
		assert.ErrorIs(t, err, ErrDuplicateEmail)
	})

	t.Run("NotFound", func(t *testing.T) {
		_, err := db.GetProfile(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = db.GetProfileByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("UpsertKeepsIDAndHash", func(t *testing.T) {
		p := &models.Profile{Email: "coach@example.com", DisplayName: "Coach", Role: models.RoleCoach, PasswordHash: "first"}
		require.NoError(t, db.UpsertProfileByEmail(ctx, p))
		originalID := p.ID

		again := &models.Profile{Email: "coach@example.com", DisplayName: "Coach Carla", Role: models.RoleCoach, TelegramChatID: 42}
		require.NoError(t, db.UpsertProfileByEmail(ctx, again))
		assert.Equal(t, originalID, again.ID)

		got, err := db.GetProfile(ctx, originalID)
		require.NoError(t, err)
		assert.Equal(t, "Coach Carla", got.DisplayName)
		assert.Equal(t, "first", got.PasswordHash)
		assert.Equal(t, int64(42), got.TelegramChatID)
	})

	t.Run("ListCoaches", func(t *testing.T) {
		coaches, err := db.ListCoaches(ctx)
		require.NoError(t, err)
		require.Len(t, coaches, 1)
		assert.Equal(t, models.RoleCoach, coaches[0].Role)
	})
}
