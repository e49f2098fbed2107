package database

import (
	"context"
	"testing"
	"time"

	"coachplanner/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestDB_ErrorPaths(t *testing.T) {
	db := setupTestDB(t)
	db.Close() // closed handle makes every call fail

	ctx := context.Background()
	now := time.Now()

	t.Run("ListAvailabilityWindows", func(t *testing.T) {
		_, err := db.ListAvailabilityWindows(ctx, "c", 1)
		assert.Error(t, err)
	})

	t.Run("ListAppointmentsForDay", func(t *testing.T) {
		_, err := db.ListAppointmentsForDay(ctx, "c", now)
		assert.Error(t, err)
	})

	t.Run("InsertAppointment", func(t *testing.T) {
		err := db.InsertAppointment(ctx, &models.Appointment{Date: now})
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrSlotTaken)
	})

	t.Run("GetProfile", func(t *testing.T) {
		_, err := db.GetProfile(ctx, "x")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrNotFound)
	})

	t.Run("ListCoachAgenda", func(t *testing.T) {
		_, err := db.ListCoachAgenda(ctx, "c", now, now)
		assert.Error(t, err)
	})

	t.Run("CreateOutboxTask", func(t *testing.T) {
		assert.Error(t, db.CreateOutboxTask(ctx, &models.OutboxTask{}))
	})

	t.Run("Ping", func(t *testing.T) {
		assert.Error(t, db.Ping(ctx))
	})
}
