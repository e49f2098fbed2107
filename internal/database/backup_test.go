package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"coachplanner/internal/config"
	"coachplanner/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupService(t *testing.T) {
	db := setupTestDB(t)
	createTestProfile(t, db, "coach@example.com", models.RoleCoach)

	storagePath := filepath.Join(t.TempDir(), "backups")
	cfg := config.BackupConfig{Enabled: true, StoragePath: storagePath, RetentionDays: 1}
	logger := zerolog.Nop()
	s := NewBackupService(db, cfg, &logger)
	ctx := context.Background()

	t.Run("PerformBackup", func(t *testing.T) {
		path, err := s.PerformBackup(ctx)
		require.NoError(t, err)
		assert.FileExists(t, path)

		restored, err := NewDB(path, &logger)
		require.NoError(t, err)
		defer restored.Close()

		p, err := restored.GetProfileByEmail(ctx, "coach@example.com")
		require.NoError(t, err)
		assert.Equal(t, models.RoleCoach, p.Role)
	})

	t.Run("CleanupOldBackups", func(t *testing.T) {
		oldFile := filepath.Join(storagePath, "backup_old.db")
		require.NoError(t, os.WriteFile(oldFile, []byte("old"), 0o644))
		oldTime := time.Now().AddDate(0, 0, -2)
		require.NoError(t, os.Chtimes(oldFile, oldTime, oldTime))

		s.CleanupOldBackups()

		assert.NoFileExists(t, oldFile)
		files, err := os.ReadDir(storagePath)
		require.NoError(t, err)
		assert.NotEmpty(t, files)
	})
}

func TestBackupService_Disabled(t *testing.T) {
	s := NewBackupService(nil, config.BackupConfig{Enabled: false}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NotPanics(t, func() { s.Start(ctx) })
}
