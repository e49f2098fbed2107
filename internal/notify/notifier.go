package notify

import (
	"context"
	"fmt"

	"coachplanner/internal/domain"
	"coachplanner/internal/models"

	"github.com/rs/zerolog"
)

// ProfileSource is the read side the notifier needs.
type ProfileSource interface {
	GetProfile(ctx context.Context, id string) (*models.Profile, error)
	GetTrainingOption(ctx context.Context, id int64) (*models.TrainingOption, error)
}

type Options struct {
	BaseURL  string
	Telegram bool
	Sheets   bool
}

// Notifier turns a committed appointment into outbox tasks. Delivery happens
// later in the outbox worker.
type Notifier struct {
	profiles ProfileSource
	outbox   domain.OutboxEnqueuer
	opts     Options
	logger   *zerolog.Logger
}

func NewNotifier(profiles ProfileSource, outbox domain.OutboxEnqueuer, opts Options, logger *zerolog.Logger) *Notifier {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Notifier{profiles: profiles, outbox: outbox, opts: opts, logger: logger}
}

// ManageURL is the link clients use to look up their appointment.
func ManageURL(baseURL, token string) string {
	return baseURL + "/manage/" + token
}

func (n *Notifier) NotifyBooked(ctx context.Context, appt *models.Appointment) error {
	coach, err := n.profiles.GetProfile(ctx, appt.CoachID)
	if err != nil {
		return fmt.Errorf("%w: load coach: %v", domain.ErrNotification, err)
	}
	client, err := n.profiles.GetProfile(ctx, appt.ClientID)
	if err != nil {
		return fmt.Errorf("%w: load client: %v", domain.ErrNotification, err)
	}
	if coach.Email == "" || client.Email == "" {
		return fmt.Errorf("%w: coach or client has no email", domain.ErrNotification)
	}

	details := bookingDetails{
		CoachName:   coach.DisplayName,
		CoachEmail:  coach.Email,
		ClientEmail: client.Email,
		Date:        appt.DateString(),
		Time:        appt.TimeLabel(),
		ManageURL:   ManageURL(n.opts.BaseURL, appt.ManageToken),
	}
	if appt.TrainingID != nil {
		training, err := n.profiles.GetTrainingOption(ctx, *appt.TrainingID)
		if err != nil {
			n.logger.Warn().Err(err).Int64("training_id", *appt.TrainingID).Msg("training name unavailable for notification")
		} else {
			details.Training = training.Name
		}
	}

	if err := n.enqueue(ctx, models.TaskEmail, appt.ID, coachEmail(details)); err != nil {
		return err
	}
	if err := n.enqueue(ctx, models.TaskEmail, appt.ID, clientEmail(details)); err != nil {
		return err
	}
	if n.opts.Telegram && coach.TelegramChatID != 0 {
		if err := n.enqueue(ctx, models.TaskTelegram, appt.ID, coachTelegram(coach.TelegramChatID, details)); err != nil {
			return err
		}
	}
	if n.opts.Sheets {
		row := AgendaRow{
			Date:        details.Date,
			Time:        details.Time,
			Coach:       coach.DisplayName,
			ClientEmail: client.Email,
			Training:    details.Training,
			ManageToken: appt.ManageToken,
		}
		if err := n.enqueue(ctx, models.TaskSheetsAppend, appt.ID, row); err != nil {
			return err
		}
	}
	return nil
}

func (n *Notifier) enqueue(ctx context.Context, taskType string, appointmentID int64, payload interface{}) error {
	if err := n.outbox.EnqueueTask(ctx, taskType, appointmentID, payload); err != nil {
		return fmt.Errorf("%w: enqueue %s: %v", domain.ErrNotification, taskType, err)
	}
	return nil
}
