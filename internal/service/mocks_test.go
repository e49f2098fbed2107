package service

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"coachplanner/internal/database"
	"coachplanner/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRepo struct {
	mock.Mock
}

func (m *mockRepo) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}
func (m *mockRepo) GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Profile), args.Error(1)
}
func (m *mockRepo) CreateProfile(ctx context.Context, p *models.Profile) error {
	return m.Called(ctx, p).Error(0)
}
func (m *mockRepo) ListCoaches(ctx context.Context) ([]*models.Profile, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Profile), args.Error(1)
}
func (m *mockRepo) ListTrainingOptions(ctx context.Context) ([]*models.TrainingOption, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.TrainingOption), args.Error(1)
}
func (m *mockRepo) GetTrainingOption(ctx context.Context, id int64) (*models.TrainingOption, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TrainingOption), args.Error(1)
}
func (m *mockRepo) ListAvailabilityWindows(ctx context.Context, coachID string, weekday int) ([]*models.AvailabilityWindow, error) {
	args := m.Called(ctx, coachID, weekday)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.AvailabilityWindow), args.Error(1)
}
func (m *mockRepo) ListAppointmentsForDay(ctx context.Context, coachID string, date time.Time) ([]*models.Appointment, error) {
	args := m.Called(ctx, coachID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Appointment), args.Error(1)
}
func (m *mockRepo) InsertAppointment(ctx context.Context, appt *models.Appointment) error {
	return m.Called(ctx, appt).Error(0)
}
func (m *mockRepo) GetAppointmentByToken(ctx context.Context, token string) (*models.Appointment, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Appointment), args.Error(1)
}
func (m *mockRepo) ListCoachAgenda(ctx context.Context, coachID string, from, to time.Time) ([]*models.AgendaEntry, error) {
	args := m.Called(ctx, coachID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.AgendaEntry), args.Error(1)
}
func (m *mockRepo) ListClientAppointments(ctx context.Context, clientID string) ([]*models.Appointment, error) {
	args := m.Called(ctx, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Appointment), args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) NotifyBooked(ctx context.Context, appt *models.Appointment) error {
	return m.Called(ctx, appt).Error(0)
}

type recordedEvent struct {
	Type    string
	Payload interface{}
}

type fakePublisher struct {
	events []recordedEvent
}

func (p *fakePublisher) PublishJSON(eventType string, payload interface{}) error {
	p.events = append(p.events, recordedEvent{Type: eventType, Payload: payload})
	return nil
}

func (p *fakePublisher) types() []string {
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func testLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "service.db"), testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func amsterdam(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Amsterdam")
	require.NoError(t, err)
	return loc
}

func fixedClock(now time.Time) func() time.Time {
	return func() time.Time { return now }
}

var coachProfile = &models.Profile{ID: "coach-1", Email: "coach@example.com", DisplayName: "Coach", Role: models.RoleCoach}

var clientSession = models.Session{Token: "tok", UserID: "client-1", Email: "client@example.com", Role: models.RoleClient}
