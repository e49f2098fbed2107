package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"coachplanner/internal/database"
	"coachplanner/internal/domain"
	"coachplanner/internal/metrics"
	"coachplanner/internal/models"

	"github.com/rs/zerolog"
)

// AvailabilityService turns recurring coach windows into bookable hours for a date.
type AvailabilityService struct {
	repo        domain.Repository
	weekdayBase string
	loc         *time.Location
	now         func() time.Time
	logger      *zerolog.Logger
}

func NewAvailabilityService(repo domain.Repository, weekdayBase string, loc *time.Location, logger *zerolog.Logger) *AvailabilityService {
	if loc == nil {
		loc = time.UTC
	}
	if !models.ValidWeekdayBase(weekdayBase) {
		weekdayBase = models.WeekdayBaseSunday
	}
	return &AvailabilityService{
		repo:        repo,
		weekdayBase: weekdayBase,
		loc:         loc,
		now:         time.Now,
		logger:      logger,
	}
}

// SetClock replaces the time source.
func (s *AvailabilityService) SetClock(now func() time.Time) {
	s.now = now
}

// ResolveAvailableSlots returns the free hours of a coach on date, ascending.
// Nothing is returned on a partial fetch: either every read succeeds or the
// call fails with ErrTransientFetch.
func (s *AvailabilityService) ResolveAvailableSlots(ctx context.Context, coachID string, date time.Time) ([]models.Slot, error) {
	coach, err := s.repo.GetProfile(ctx, coachID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			metrics.IncSlotResolution("invalid")
			return nil, domain.ValidationError("unknown coach")
		}
		return nil, s.fetchFailed("coach", coachID, err)
	}
	if !coach.IsCoach() {
		metrics.IncSlotResolution("invalid")
		return nil, domain.ValidationError("unknown coach")
	}

	weekday := models.WeekdayIndex(date, s.weekdayBase)
	windows, err := s.repo.ListAvailabilityWindows(ctx, coachID, weekday)
	if err != nil {
		return nil, s.fetchFailed("windows", coachID, err)
	}
	if len(windows) == 0 {
		metrics.IncSlotResolution("empty")
		return []models.Slot{}, nil
	}

	booked, err := s.repo.ListAppointmentsForDay(ctx, coachID, date)
	if err != nil {
		return nil, s.fetchFailed("appointments", coachID, err)
	}

	slots := ComputeSlots(windows, booked, date, s.now(), s.loc)
	if len(slots) == 0 {
		metrics.IncSlotResolution("empty")
	} else {
		metrics.IncSlotResolution("ok")
	}
	return slots, nil
}

func (s *AvailabilityService) fetchFailed(what, coachID string, err error) error {
	metrics.IncSlotResolution("error")
	if s.logger != nil {
		s.logger.Error().Err(err).Str("coach_id", coachID).Str("fetch", what).Msg("availability fetch failed")
	}
	return fmt.Errorf("%w: load %s: %v", domain.ErrTransientFetch, what, err)
}

// ComputeSlots is the pure part of resolution. Windows are unioned, booked
// hours removed, and when date is today in loc only hours later than the
// current hour plus one survive.
func ComputeSlots(windows []*models.AvailabilityWindow, booked []*models.Appointment, date, now time.Time, loc *time.Location) []models.Slot {
	if loc == nil {
		loc = time.UTC
	}

	hours := make(map[int]struct{})
	for _, w := range windows {
		if w == nil {
			continue
		}
		for h := w.StartHour; h < w.EndHour; h++ {
			hours[h] = struct{}{}
		}
	}

	for _, appt := range booked {
		if appt != nil {
			delete(hours, appt.StartHour)
		}
	}

	localNow := now.In(loc)
	if sameDay(date, localNow) {
		cutoff := localNow.Hour() + 1
		for h := range hours {
			if h <= cutoff {
				delete(hours, h)
			}
		}
	}

	sorted := make([]int, 0, len(hours))
	for h := range hours {
		sorted = append(sorted, h)
	}
	sort.Ints(sorted)

	slots := make([]models.Slot, 0, len(sorted))
	for _, h := range sorted {
		slots = append(slots, models.NewSlot(h))
	}
	return slots
}

// sameDay compares the calendar day of date as written with the day of now.
func sameDay(date, now time.Time) bool {
	y1, m1, d1 := date.Date()
	y2, m2, d2 := now.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// Today returns midnight of the current day in loc.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := now.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

// ParseDate parses a YYYY-MM-DD calendar day in loc.
func ParseDate(value string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	date, err := time.ParseInLocation(models.DateLayout, value, loc)
	if err != nil {
		return time.Time{}, domain.ValidationError("invalid date %q, expected YYYY-MM-DD", value)
	}
	return date, nil
}
