package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coachplanner/internal/database"
	"coachplanner/internal/domain"
	"coachplanner/internal/events"
	"coachplanner/internal/metrics"
	"coachplanner/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type BookingService struct {
	repo     domain.Repository
	notifier domain.Notifier
	eventBus domain.EventPublisher
	loc      *time.Location
	now      func() time.Time
	logger   *zerolog.Logger
}

func NewBookingService(repo domain.Repository, notifier domain.Notifier, eventBus domain.EventPublisher, loc *time.Location, logger *zerolog.Logger) *BookingService {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &BookingService{
		repo:     repo,
		notifier: notifier,
		eventBus: eventBus,
		loc:      loc,
		now:      time.Now,
		logger:   logger,
	}
}

func (s *BookingService) SetClock(now func() time.Time) {
	s.now = now
}

// BookSlot reserves one hour for the session's client. The insert is the only
// guard against double booking: a lost race surfaces as ErrConflict.
// Notification runs after the commit and never undoes it; its failure is
// reported through BookingResult.NotifyErr.
func (s *BookingService) BookSlot(ctx context.Context, session models.Session, req models.BookingRequest) (*models.BookingResult, error) {
	if err := s.validate(ctx, session, req); err != nil {
		if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrUnauthorized) {
			metrics.IncBooking("invalid")
		} else {
			metrics.IncBooking("error")
		}
		return nil, err
	}

	appt := &models.Appointment{
		CoachID:     req.CoachID,
		ClientID:    session.UserID,
		TrainingID:  req.TrainingID,
		Date:        req.Date,
		StartHour:   req.Hour,
		EndHour:     req.Hour + models.AppointmentHours,
		ManageToken: uuid.NewString(),
		CreatedAt:   s.now(),
	}

	if err := s.repo.InsertAppointment(ctx, appt); err != nil {
		if errors.Is(err, database.ErrSlotTaken) {
			metrics.IncBooking("conflict")
			s.logger.Info().
				Str("coach_id", appt.CoachID).
				Str("date", appt.DateString()).
				Int("hour", appt.StartHour).
				Msg("slot already taken")
			s.publish(events.EventBookingConflict, appt, nil)
			return nil, domain.ErrConflict
		}
		metrics.IncBooking("error")
		s.logger.Error().Err(err).Str("coach_id", appt.CoachID).Msg("insert appointment failed")
		return nil, domain.ValidationError("could not save appointment")
	}

	s.logger.Info().
		Int64("appointment_id", appt.ID).
		Str("coach_id", appt.CoachID).
		Str("client_id", appt.ClientID).
		Str("date", appt.DateString()).
		Int("hour", appt.StartHour).
		Msg("appointment booked")
	s.publish(events.EventAppointmentBooked, appt, nil)

	result := &models.BookingResult{Appointment: appt}
	if err := s.notify(ctx, appt); err != nil {
		result.NotifyErr = err
		metrics.IncBooking("degraded")
		s.logger.Error().Err(err).Int64("appointment_id", appt.ID).Msg("booking notification failed")
		s.publish(events.EventNotificationFailed, appt, err)
		return result, nil
	}

	metrics.IncBooking("created")
	return result, nil
}

func (s *BookingService) validate(ctx context.Context, session models.Session, req models.BookingRequest) error {
	if session.IsZero() {
		return domain.ErrUnauthorized
	}
	if session.Role != models.RoleClient {
		return domain.ValidationError("only clients can book appointments")
	}
	if req.CoachID == "" {
		return domain.ValidationError("coach is required")
	}
	if req.Hour < 0 || req.Hour > 23 {
		return domain.ValidationError("hour %d out of range 0-23", req.Hour)
	}
	if req.Date.IsZero() {
		return domain.ValidationError("date is required")
	}
	y, m, d := req.Date.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, s.loc)
	today := Today(s.now(), s.loc)
	if day.Before(today) {
		return domain.ValidationError("date %s is in the past", req.Date.Format(models.DateLayout))
	}
	// A slot that has started is no longer bookable.
	if day.Equal(today) && req.Hour <= s.now().In(s.loc).Hour() {
		return domain.ValidationError("hour %d has already passed", req.Hour)
	}

	coach, err := s.repo.GetProfile(ctx, req.CoachID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return domain.ValidationError("unknown coach")
		}
		return fmt.Errorf("%w: load coach: %v", domain.ErrTransientFetch, err)
	}
	if !coach.IsCoach() {
		return domain.ValidationError("unknown coach")
	}

	if req.TrainingID != nil {
		if _, err := s.repo.GetTrainingOption(ctx, *req.TrainingID); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return domain.ValidationError("unknown training option %d", *req.TrainingID)
			}
			return fmt.Errorf("%w: load training option: %v", domain.ErrTransientFetch, err)
		}
	}
	return nil
}

func (s *BookingService) notify(ctx context.Context, appt *models.Appointment) error {
	if s.notifier == nil {
		return nil
	}
	if err := s.notifier.NotifyBooked(ctx, appt); err != nil {
		if errors.Is(err, domain.ErrNotification) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrNotification, err)
	}
	return nil
}

func (s *BookingService) publish(eventType string, appt *models.Appointment, cause error) {
	if s.eventBus == nil {
		return
	}
	payload := events.AppointmentEventPayload{
		AppointmentID: appt.ID,
		CoachID:       appt.CoachID,
		ClientID:      appt.ClientID,
		Date:          appt.DateString(),
		StartHour:     appt.StartHour,
		ManageToken:   appt.ManageToken,
		OccurredAt:    s.now(),
	}
	if eventType == events.EventBookingConflict {
		payload.ManageToken = ""
	}
	if cause != nil {
		payload.Error = cause.Error()
	}
	if err := s.eventBus.PublishJSON(eventType, payload); err != nil {
		s.logger.Error().Err(err).Str("event", eventType).Msg("failed to publish event")
	}
}

// CoachAgenda lists the calling coach's appointments between from and to.
func (s *BookingService) CoachAgenda(ctx context.Context, session models.Session, from, to time.Time) ([]*models.AgendaEntry, error) {
	if session.IsZero() {
		return nil, domain.ErrUnauthorized
	}
	if session.Role != models.RoleCoach {
		return nil, domain.ErrForbidden
	}
	if to.Before(from) {
		return nil, domain.ValidationError("range end is before start")
	}
	entries, err := s.repo.ListCoachAgenda(ctx, session.UserID, from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: load agenda: %v", domain.ErrTransientFetch, err)
	}
	return entries, nil
}

func (s *BookingService) ClientAppointments(ctx context.Context, session models.Session) ([]*models.Appointment, error) {
	if session.IsZero() {
		return nil, domain.ErrUnauthorized
	}
	appts, err := s.repo.ListClientAppointments(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: load appointments: %v", domain.ErrTransientFetch, err)
	}
	return appts, nil
}

// LookupByToken resolves a management link.
func (s *BookingService) LookupByToken(ctx context.Context, token string) (*models.Appointment, error) {
	if token == "" {
		return nil, domain.ErrNotFound
	}
	appt, err := s.repo.GetAppointmentByToken(ctx, token)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: load appointment: %v", domain.ErrTransientFetch, err)
	}
	return appt, nil
}
