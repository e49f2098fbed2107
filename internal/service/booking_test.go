package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"coachplanner/internal/database"
	"coachplanner/internal/domain"
	"coachplanner/internal/events"
	"coachplanner/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestBookingService(t *testing.T, repo *mockRepo, notifier *mockNotifier, pub *fakePublisher) *BookingService {
	t.Helper()
	loc := amsterdam(t)
	var n domain.Notifier
	if notifier != nil {
		n = notifier
	}
	var p domain.EventPublisher
	if pub != nil {
		p = pub
	}
	s := NewBookingService(repo, n, p, loc, testLogger())
	s.SetClock(fixedClock(time.Date(2030, 6, 1, 10, 0, 0, 0, loc)))
	return s
}

func TestBookSlot(t *testing.T) {
	ctx := context.Background()
	loc := amsterdam(t)
	monday := time.Date(2030, 6, 3, 0, 0, 0, 0, loc)
	req := models.BookingRequest{CoachID: "coach-1", Date: monday, Hour: 10}

	t.Run("Success", func(t *testing.T) {
		repo := new(mockRepo)
		notifier := new(mockNotifier)
		pub := &fakePublisher{}
		repo.On("GetProfile", ctx, "coach-1").Return(coachProfile, nil)
		repo.On("InsertAppointment", ctx, mock.AnythingOfType("*models.Appointment")).
			Run(func(args mock.Arguments) {
				args.Get(1).(*models.Appointment).ID = 42
			}).Return(nil)
		notifier.On("NotifyBooked", ctx, mock.AnythingOfType("*models.Appointment")).Return(nil)

		result, err := newTestBookingService(t, repo, notifier, pub).BookSlot(ctx, clientSession, req)
		require.NoError(t, err)
		require.NotNil(t, result.Appointment)
		assert.False(t, result.Degraded())

		appt := result.Appointment
		assert.Equal(t, int64(42), appt.ID)
		assert.Equal(t, "client-1", appt.ClientID)
		assert.Equal(t, 10, appt.StartHour)
		assert.Equal(t, 11, appt.EndHour)
		_, err = uuid.Parse(appt.ManageToken)
		assert.NoError(t, err)

		assert.Equal(t, []string{events.EventAppointmentBooked}, pub.types())
		repo.AssertExpectations(t)
		notifier.AssertExpectations(t)
	})

	t.Run("TokensAreUnique", func(t *testing.T) {
		repo := new(mockRepo)
		repo.On("GetProfile", ctx, "coach-1").Return(coachProfile, nil)
		repo.On("InsertAppointment", ctx, mock.Anything).Return(nil)
		s := newTestBookingService(t, repo, nil, nil)

		first, err := s.BookSlot(ctx, clientSession, req)
		require.NoError(t, err)
		second, err := s.BookSlot(ctx, clientSession, models.BookingRequest{CoachID: "coach-1", Date: monday, Hour: 11})
		require.NoError(t, err)
		assert.NotEqual(t, first.Appointment.ManageToken, second.Appointment.ManageToken)
	})

	t.Run("Conflict", func(t *testing.T) {
		repo := new(mockRepo)
		notifier := new(mockNotifier)
		pub := &fakePublisher{}
		repo.On("GetProfile", ctx, "coach-1").Return(coachProfile, nil)
		repo.On("InsertAppointment", ctx, mock.Anything).Return(database.ErrSlotTaken)

		result, err := newTestBookingService(t, repo, notifier, pub).BookSlot(ctx, clientSession, req)
		assert.Nil(t, result)
		assert.ErrorIs(t, err, domain.ErrConflict)
		assert.Equal(t, "slot already taken", err.Error())
		assert.Equal(t, []string{events.EventBookingConflict}, pub.types())
		notifier.AssertNotCalled(t, "NotifyBooked", mock.Anything, mock.Anything)
	})

	t.Run("OtherInsertFailureIsValidation", func(t *testing.T) {
		repo := new(mockRepo)
		repo.On("GetProfile", ctx, "coach-1").Return(coachProfile, nil)
		repo.On("InsertAppointment", ctx, mock.Anything).Return(errors.New("FOREIGN KEY constraint failed"))

		_, err := newTestBookingService(t, repo, nil, nil).BookSlot(ctx, clientSession, req)
		assert.ErrorIs(t, err, domain.ErrValidation)
		assert.NotErrorIs(t, err, domain.ErrConflict)
		assert.NotContains(t, err.Error(), "FOREIGN KEY")
		assert.Contains(t, err.Error(), "could not save appointment")
	})

	t.Run("NotificationFailureDegrades", func(t *testing.T) {
		repo := new(mockRepo)
		notifier := new(mockNotifier)
		pub := &fakePublisher{}
		repo.On("GetProfile", ctx, "coach-1").Return(coachProfile, nil)
		repo.On("InsertAppointment", ctx, mock.Anything).Return(nil)
		notifier.On("NotifyBooked", ctx, mock.Anything).Return(errors.New("outbox unavailable"))

		result, err := newTestBookingService(t, repo, notifier, pub).BookSlot(ctx, clientSession, req)
		require.NoError(t, err)
		require.NotNil(t, result.Appointment)
		assert.True(t, result.Degraded())
		assert.ErrorIs(t, result.NotifyErr, domain.ErrNotification)
		assert.Equal(t, []string{events.EventAppointmentBooked, events.EventNotificationFailed}, pub.types())

		failed := pub.events[1].Payload.(events.AppointmentEventPayload)
		assert.Contains(t, failed.Error, "outbox unavailable")
	})

	t.Run("Validation", func(t *testing.T) {
		past := time.Date(2030, 5, 31, 0, 0, 0, 0, loc)
		training := int64(7)

		cases := []struct {
			name    string
			session models.Session
			req     models.BookingRequest
			setup   func(repo *mockRepo)
			wantErr error
		}{
			{
				name:    "NoSession",
				session: models.Session{},
				req:     req,
				wantErr: domain.ErrUnauthorized,
			},
			{
				name:    "CoachCannotBook",
				session: models.Session{UserID: "coach-1", Role: models.RoleCoach},
				req:     req,
				wantErr: domain.ErrValidation,
			},
			{
				name:    "HourOutOfRange",
				session: clientSession,
				req:     models.BookingRequest{CoachID: "coach-1", Date: monday, Hour: 24},
				wantErr: domain.ErrValidation,
			},
			{
				name:    "NegativeHour",
				session: clientSession,
				req:     models.BookingRequest{CoachID: "coach-1", Date: monday, Hour: -1},
				wantErr: domain.ErrValidation,
			},
			{
				name:    "PastDate",
				session: clientSession,
				req:     models.BookingRequest{CoachID: "coach-1", Date: past, Hour: 10},
				wantErr: domain.ErrValidation,
			},
			{
				name:    "EarlierHourToday",
				session: clientSession,
				req:     models.BookingRequest{CoachID: "coach-1", Date: time.Date(2030, 6, 1, 0, 0, 0, 0, loc), Hour: 3},
				wantErr: domain.ErrValidation,
			},
			{
				name:    "CurrentHourToday",
				session: clientSession,
				req:     models.BookingRequest{CoachID: "coach-1", Date: time.Date(2030, 6, 1, 0, 0, 0, 0, loc), Hour: 10},
				wantErr: domain.ErrValidation,
			},
			{
				name:    "MissingDate",
				session: clientSession,
				req:     models.BookingRequest{CoachID: "coach-1", Hour: 10},
				wantErr: domain.ErrValidation,
			},
			{
				name:    "UnknownCoach",
				session: clientSession,
				req:     req,
				setup: func(repo *mockRepo) {
					repo.On("GetProfile", ctx, "coach-1").Return(nil, database.ErrNotFound)
				},
				wantErr: domain.ErrValidation,
			},
			{
				name:    "CoachLookupFails",
				session: clientSession,
				req:     req,
				setup: func(repo *mockRepo) {
					repo.On("GetProfile", ctx, "coach-1").Return(nil, errors.New("database is locked"))
				},
				wantErr: domain.ErrTransientFetch,
			},
			{
				name:    "UnknownTraining",
				session: clientSession,
				req:     models.BookingRequest{CoachID: "coach-1", Date: monday, Hour: 10, TrainingID: &training},
				setup: func(repo *mockRepo) {
					repo.On("GetProfile", ctx, "coach-1").Return(coachProfile, nil)
					repo.On("GetTrainingOption", ctx, training).Return(nil, database.ErrNotFound)
				},
				wantErr: domain.ErrValidation,
			},
		}

		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				repo := new(mockRepo)
				if tc.setup != nil {
					tc.setup(repo)
				}
				result, err := newTestBookingService(t, repo, nil, nil).BookSlot(ctx, tc.session, tc.req)
				assert.Nil(t, result)
				assert.ErrorIs(t, err, tc.wantErr)
				repo.AssertNotCalled(t, "InsertAppointment", mock.Anything, mock.Anything)
			})
		}
	})

	t.Run("TodayIsBookable", func(t *testing.T) {
		repo := new(mockRepo)
		repo.On("GetProfile", ctx, "coach-1").Return(coachProfile, nil)
		repo.On("InsertAppointment", ctx, mock.Anything).Return(nil)

		today := time.Date(2030, 6, 1, 0, 0, 0, 0, loc)
		_, err := newTestBookingService(t, repo, nil, nil).
			BookSlot(ctx, clientSession, models.BookingRequest{CoachID: "coach-1", Date: today, Hour: 15})
		assert.NoError(t, err)
	})
}

func TestCoachAgenda(t *testing.T) {
	ctx := context.Background()
	loc := amsterdam(t)
	from := time.Date(2030, 6, 1, 0, 0, 0, 0, loc)
	to := time.Date(2030, 6, 30, 0, 0, 0, 0, loc)
	coachSession := models.Session{UserID: "coach-1", Role: models.RoleCoach}

	t.Run("Success", func(t *testing.T) {
		repo := new(mockRepo)
		entries := []*models.AgendaEntry{{Appointment: models.Appointment{ID: 1, CoachID: "coach-1", StartHour: 9}}}
		repo.On("ListCoachAgenda", ctx, "coach-1", from, to).Return(entries, nil)

		got, err := newTestBookingService(t, repo, nil, nil).CoachAgenda(ctx, coachSession, from, to)
		require.NoError(t, err)
		assert.Equal(t, entries, got)
	})

	t.Run("ClientForbidden", func(t *testing.T) {
		_, err := newTestBookingService(t, new(mockRepo), nil, nil).CoachAgenda(ctx, clientSession, from, to)
		assert.ErrorIs(t, err, domain.ErrForbidden)
	})

	t.Run("InvertedRange", func(t *testing.T) {
		_, err := newTestBookingService(t, new(mockRepo), nil, nil).CoachAgenda(ctx, coachSession, to, from)
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("Anonymous", func(t *testing.T) {
		_, err := newTestBookingService(t, new(mockRepo), nil, nil).CoachAgenda(ctx, models.Session{}, from, to)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})
}

func TestLookupByToken(t *testing.T) {
	ctx := context.Background()

	repo := new(mockRepo)
	appt := &models.Appointment{ID: 3, ManageToken: "known"}
	repo.On("GetAppointmentByToken", ctx, "known").Return(appt, nil)
	repo.On("GetAppointmentByToken", ctx, "unknown").Return(nil, database.ErrNotFound)
	s := newTestBookingService(t, repo, nil, nil)

	got, err := s.LookupByToken(ctx, "known")
	require.NoError(t, err)
	assert.Equal(t, appt, got)

	_, err = s.LookupByToken(ctx, "unknown")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.LookupByToken(ctx, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestClientAppointments(t *testing.T) {
	ctx := context.Background()
	repo := new(mockRepo)
	repo.On("ListClientAppointments", ctx, "client-1").Return([]*models.Appointment{{ID: 1}}, nil)

	got, err := newTestBookingService(t, repo, nil, nil).ClientAppointments(ctx, clientSession)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = newTestBookingService(t, repo, nil, nil).ClientAppointments(ctx, models.Session{})
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
