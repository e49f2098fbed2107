package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"coachplanner/internal/domain"
	"coachplanner/internal/models"
	"coachplanner/internal/notify"
	"coachplanner/internal/service"
)

var errQuit = errors.New("quit")

// agendaDays is the span of the coach export.
const agendaDays = 30

type agendaSaver interface {
	SaveCoachAgenda(coachID string, entries []*models.AgendaEntry, from, to time.Time) (string, error)
}

// prompter drives the booking dialogue over line-based input.
type prompter struct {
	in      *bufio.Scanner
	out     io.Writer
	auth    domain.AuthService
	dir     domain.DirectoryService
	avail   domain.AvailabilityService
	booking domain.BookingService
	export  agendaSaver
	loc     *time.Location
	baseURL string
	now     func() time.Time
}

func (p *prompter) ask(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", err
		}
		return "", errQuit
	}
	answer := strings.TrimSpace(p.in.Text())
	if answer == "q" {
		return "", errQuit
	}
	return answer, nil
}

func (p *prompter) say(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

// run returns nil when the user quits or input ends.
func (p *prompter) run(ctx context.Context) error {
	err := p.session(ctx)
	if errors.Is(err, errQuit) {
		p.say("Bye.")
		return nil
	}
	return err
}

func (p *prompter) session(ctx context.Context) error {
	session, err := p.signIn(ctx)
	if err != nil {
		return err
	}
	if session.Role == models.RoleCoach {
		return p.exportAgenda(ctx, session)
	}

	coach, err := p.pickCoach(ctx)
	if err != nil {
		return err
	}

	for {
		date, err := p.pickDate()
		if err != nil {
			return err
		}
		done, err := p.bookOnDate(ctx, session, coach, date)
		if err != nil || done {
			return err
		}
	}
}

func (p *prompter) signIn(ctx context.Context) (models.Session, error) {
	for {
		mode, err := p.ask("Login or register? [l/r]")
		if err != nil {
			return models.Session{}, err
		}
		email, err := p.ask("Email")
		if err != nil {
			return models.Session{}, err
		}
		password, err := p.ask("Password")
		if err != nil {
			return models.Session{}, err
		}

		if strings.HasPrefix(strings.ToLower(mode), "r") {
			name, err := p.ask("Display name")
			if err != nil {
				return models.Session{}, err
			}
			if _, err := p.auth.Register(ctx, email, password, name, models.RoleClient); err != nil {
				p.say("Registration failed: %s", domain.UserMessage(err))
				continue
			}
		}

		session, err := p.auth.Login(ctx, email, password)
		if err != nil {
			if errors.Is(err, domain.ErrValidation) {
				p.say("%s", err.Error())
			} else {
				p.say("%s", domain.UserMessage(err))
			}
			continue
		}
		p.say("Signed in as %s.", session.Email)
		return session, nil
	}
}

func (p *prompter) pickCoach(ctx context.Context) (models.Coach, error) {
	for {
		coaches, err := p.dir.ListCoaches(ctx)
		if err != nil {
			p.say("%s", domain.UserMessage(err))
			if _, err := p.ask("Press enter to retry"); err != nil {
				return models.Coach{}, err
			}
			continue
		}
		if len(coaches) == 0 {
			p.say("No coaches available.")
			return models.Coach{}, errQuit
		}

		for i, c := range coaches {
			p.say("%d) %s", i+1, c.DisplayName)
		}
		answer, err := p.ask("Coach number")
		if err != nil {
			return models.Coach{}, err
		}
		n, convErr := strconv.Atoi(answer)
		if convErr != nil || n < 1 || n > len(coaches) {
			p.say("Pick a number between 1 and %d.", len(coaches))
			continue
		}
		return coaches[n-1], nil
	}
}

func (p *prompter) pickDate() (time.Time, error) {
	for {
		answer, err := p.ask("Date (YYYY-MM-DD, empty for today)")
		if err != nil {
			return time.Time{}, err
		}
		if answer == "" {
			return service.Today(p.now(), p.loc), nil
		}
		date, err := service.ParseDate(answer, p.loc)
		if err != nil {
			p.say("%s", err.Error())
			continue
		}
		return date, nil
	}
}

// bookOnDate reports done once an appointment is saved. It returns false to
// ask for another date.
func (p *prompter) bookOnDate(ctx context.Context, session models.Session, coach models.Coach, date time.Time) (bool, error) {
	for {
		slots, err := p.avail.ResolveAvailableSlots(ctx, coach.ID, date)
		if err != nil {
			if errors.Is(err, domain.ErrValidation) {
				p.say("%s", err.Error())
			} else {
				p.say("%s", domain.UserMessage(err))
			}
			return false, nil
		}
		if len(slots) == 0 {
			p.say("No free hours on %s.", date.Format(models.DateLayout))
			return false, nil
		}

		labels := make([]string, 0, len(slots))
		for _, s := range slots {
			labels = append(labels, s.Label)
		}
		p.say("Free hours: %s", strings.Join(labels, " "))

		answer, err := p.ask("Hour (HH or HH:00)")
		if err != nil {
			return false, err
		}
		hour, convErr := strconv.Atoi(strings.TrimSuffix(answer, ":00"))
		if convErr != nil {
			p.say("Enter an hour such as 10 or 10:00.")
			continue
		}

		result, err := p.booking.BookSlot(ctx, session, models.BookingRequest{CoachID: coach.ID, Date: date, Hour: hour})
		switch {
		case err == nil:
			p.say("Booked %s %s with %s.", result.Appointment.DateString(), result.Appointment.TimeLabel(), coach.DisplayName)
			p.say("Manage link: %s", notify.ManageURL(p.baseURL, result.Appointment.ManageToken))
			if result.Degraded() {
				p.say("%s", domain.UserMessage(result.NotifyErr))
			}
			return true, nil
		case errors.Is(err, domain.ErrConflict):
			p.say("%s", domain.UserMessage(err))
		case errors.Is(err, domain.ErrValidation):
			p.say("%s", err.Error())
		default:
			p.say("%s", domain.UserMessage(err))
			return false, nil
		}
	}
}

func (p *prompter) exportAgenda(ctx context.Context, session models.Session) error {
	if p.export == nil {
		p.say("Only clients can book from this prompt.")
		return errQuit
	}
	answer, err := p.ask(fmt.Sprintf("Export your agenda for the next %d days? [y/n]", agendaDays))
	if err != nil {
		return err
	}
	if !strings.HasPrefix(strings.ToLower(answer), "y") {
		return errQuit
	}

	from := service.Today(p.now(), p.loc)
	to := from.AddDate(0, 0, agendaDays)
	entries, err := p.booking.CoachAgenda(ctx, session, from, to)
	if err != nil {
		p.say("%s", domain.UserMessage(err))
		return errQuit
	}
	path, err := p.export.SaveCoachAgenda(session.UserID, entries, from, to)
	if err != nil {
		return fmt.Errorf("export agenda: %w", err)
	}
	p.say("Saved %d appointments to %s", len(entries), path)
	return errQuit
}
