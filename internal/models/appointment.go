package models

import "time"

type Appointment struct {
	ID          int64     `json:"id"`
	CoachID     string    `json:"coach_id"`
	ClientID    string    `json:"client_id"`
	TrainingID  *int64    `json:"training_id,omitempty"`
	Date        time.Time `json:"-"`
	StartHour   int       `json:"start_hour"`
	EndHour     int       `json:"end_hour"`
	ManageToken string    `json:"manage_token"`
	CreatedAt   time.Time `json:"created_at"`
}

// DateString returns the calendar day in DateLayout.
func (a *Appointment) DateString() string {
	return a.Date.Format(DateLayout)
}

func (a *Appointment) TimeLabel() string {
	return HourLabel(a.StartHour)
}

// AgendaEntry is an appointment joined with display data for the coach view.
type AgendaEntry struct {
	Appointment
	ClientEmail  string `json:"client_email"`
	ClientName   string `json:"client_name"`
	TrainingName string `json:"training_name,omitempty"`
}

type BookingRequest struct {
	CoachID    string
	Date       time.Time
	Hour       int
	TrainingID *int64
}

// BookingResult is returned for a committed appointment. NotifyErr is set
// when the post-commit notification step failed.
type BookingResult struct {
	Appointment *Appointment
	NotifyErr   error
}

func (r *BookingResult) Degraded() bool {
	return r != nil && r.NotifyErr != nil
}
