package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"coachplanner/internal/config"
	"coachplanner/internal/domain"
	"coachplanner/internal/events"
	"coachplanner/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedMondayCoach(t *testing.T, ctx context.Context, store SeedStore) {
	t.Helper()
	seed := config.SeedConfig{
		Profiles: []models.Profile{
			{Email: "coach@example.com", DisplayName: "Coach", Role: models.RoleCoach, Password: "coach-secret"},
			{Email: "client@example.com", DisplayName: "Client", Role: models.RoleClient, Password: "client-secret"},
		},
		Windows: []config.SeedWindow{
			{CoachEmail: "coach@example.com", Weekday: 1, StartHour: 9, EndHour: 12},
		},
	}
	require.NoError(t, SyncSeed(ctx, store, seed, testLogger()))
}

func TestBookingEndToEnd(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	loc := amsterdam(t)
	seedMondayCoach(t, ctx, db)

	coach, err := db.GetProfileByEmail(ctx, "coach@example.com")
	require.NoError(t, err)
	client, err := db.GetProfileByEmail(ctx, "client@example.com")
	require.NoError(t, err)

	clock := fixedClock(time.Date(2030, 6, 1, 9, 0, 0, 0, loc))
	availability := NewAvailabilityService(db, models.WeekdayBaseSunday, loc, testLogger())
	availability.SetClock(clock)
	bus := events.NewEventBus()
	booking := NewBookingService(db, nil, bus, loc, testLogger())
	booking.SetClock(clock)

	var booked []string
	bus.Subscribe(events.EventAppointmentBooked, func(e *events.Event) error {
		booked = append(booked, string(e.Payload))
		return nil
	})

	monday := time.Date(2030, 6, 3, 0, 0, 0, 0, loc)
	slots, err := availability.ResolveAvailableSlots(ctx, coach.ID, monday)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "10:00", "11:00"}, labels(slots))

	session := models.Session{Token: "t", UserID: client.ID, Email: client.Email, Role: models.RoleClient}
	result, err := booking.BookSlot(ctx, session, models.BookingRequest{CoachID: coach.ID, Date: monday, Hour: 10})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Appointment.ManageToken)
	assert.Len(t, booked, 1)

	slots, err = availability.ResolveAvailableSlots(ctx, coach.ID, monday)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "11:00"}, labels(slots))

	found, err := booking.LookupByToken(ctx, result.Appointment.ManageToken)
	require.NoError(t, err)
	assert.Equal(t, result.Appointment.ID, found.ID)
	assert.Equal(t, "2030-06-03", found.DateString())

	agenda, err := booking.CoachAgenda(ctx, models.Session{UserID: coach.ID, Role: models.RoleCoach}, monday, monday)
	require.NoError(t, err)
	require.Len(t, agenda, 1)
	assert.Equal(t, "client@example.com", agenda[0].ClientEmail)

	mine, err := booking.ClientAppointments(ctx, session)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	t.Run("SecondBookingConflicts", func(t *testing.T) {
		_, err := booking.BookSlot(ctx, session, models.BookingRequest{CoachID: coach.ID, Date: monday, Hour: 10})
		assert.ErrorIs(t, err, domain.ErrConflict)
		assert.Equal(t, "This hour was just booked. Please pick another slot.", domain.UserMessage(err))
	})

	t.Run("TuesdayIsEmpty", func(t *testing.T) {
		slots, err := availability.ResolveAvailableSlots(ctx, coach.ID, monday.AddDate(0, 0, 1))
		require.NoError(t, err)
		assert.Empty(t, slots)
	})
}

func TestConcurrentBookSlot(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	loc := amsterdam(t)
	seedMondayCoach(t, ctx, db)

	coach, err := db.GetProfileByEmail(ctx, "coach@example.com")
	require.NoError(t, err)
	client, err := db.GetProfileByEmail(ctx, "client@example.com")
	require.NoError(t, err)

	booking := NewBookingService(db, nil, nil, loc, testLogger())
	booking.SetClock(fixedClock(time.Date(2030, 6, 1, 9, 0, 0, 0, loc)))
	session := models.Session{UserID: client.ID, Role: models.RoleClient}
	req := models.BookingRequest{CoachID: coach.ID, Date: time.Date(2030, 6, 3, 0, 0, 0, 0, loc), Hour: 9}

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
		others    []error
	)
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := booking.BookSlot(ctx, session, req)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, domain.ErrConflict):
				conflicts++
			default:
				others = append(others, err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Empty(t, others)
	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, conflicts)

	appts, err := db.ListAppointmentsForDay(ctx, coach.ID, req.Date)
	require.NoError(t, err)
	assert.Len(t, appts, 1)
}
