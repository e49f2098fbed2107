package database

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"coachplanner/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"), &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestProfile(t *testing.T, db *DB, email, role string) *models.Profile {
	t.Helper()
	p := &models.Profile{Email: email, DisplayName: email, Role: role}
	require.NoError(t, db.CreateProfile(context.Background(), p))
	return p
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
