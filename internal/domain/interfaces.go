package domain

import (
	"context"
	"time"

	"coachplanner/internal/models"
)

// Repository is the persistence service consumed by the core components.
type Repository interface {
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error)
	CreateProfile(ctx context.Context, profile *models.Profile) error
	ListCoaches(ctx context.Context) ([]*models.Profile, error)
	ListTrainingOptions(ctx context.Context) ([]*models.TrainingOption, error)
	GetTrainingOption(ctx context.Context, id int64) (*models.TrainingOption, error)
	ListAvailabilityWindows(ctx context.Context, coachID string, weekday int) ([]*models.AvailabilityWindow, error)
	ListAppointmentsForDay(ctx context.Context, coachID string, date time.Time) ([]*models.Appointment, error)
	InsertAppointment(ctx context.Context, appt *models.Appointment) error
	GetAppointmentByToken(ctx context.Context, token string) (*models.Appointment, error)
	ListCoachAgenda(ctx context.Context, coachID string, from, to time.Time) ([]*models.AgendaEntry, error)
	ListClientAppointments(ctx context.Context, clientID string) ([]*models.Appointment, error)
}

// SessionStore keeps authenticated sessions and login throttling counters.
type SessionStore interface {
	GetSession(ctx context.Context, token string) (*models.Session, error)
	SetSession(ctx context.Context, session *models.Session) error
	ClearSession(ctx context.Context, token string) error
	// CheckRateLimit records one hit on key and reports whether the window
	// count is still within limit.
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	// RateLimited reports whether key already reached limit, without
	// recording a hit.
	RateLimited(ctx context.Context, key string, limit int) (bool, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Notifier schedules the post-booking notifications.
type Notifier interface {
	NotifyBooked(ctx context.Context, appt *models.Appointment) error
}

type OutboxEnqueuer interface {
	EnqueueTask(ctx context.Context, taskType string, appointmentID int64, payload interface{}) error
}

type AvailabilityService interface {
	ResolveAvailableSlots(ctx context.Context, coachID string, date time.Time) ([]models.Slot, error)
}

type BookingService interface {
	BookSlot(ctx context.Context, session models.Session, req models.BookingRequest) (*models.BookingResult, error)
	CoachAgenda(ctx context.Context, session models.Session, from, to time.Time) ([]*models.AgendaEntry, error)
	ClientAppointments(ctx context.Context, session models.Session) ([]*models.Appointment, error)
	LookupByToken(ctx context.Context, token string) (*models.Appointment, error)
}

type AuthService interface {
	Register(ctx context.Context, email, password, displayName, role string) (*models.Profile, error)
	Login(ctx context.Context, email, password string) (models.Session, error)
	Authenticate(ctx context.Context, token string) (models.Session, error)
	Logout(ctx context.Context, token string) error
}

type DirectoryService interface {
	ListCoaches(ctx context.Context) ([]models.Coach, error)
	ListTrainingOptions(ctx context.Context) ([]*models.TrainingOption, error)
}
