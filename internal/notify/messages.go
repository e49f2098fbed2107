package notify

import (
	"fmt"
	"strings"
)

const (
	SubjectCoach  = "New booking"
	SubjectClient = "Booking confirmed"
)

// EmailMessage is the payload of an email outbox task.
type EmailMessage struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// TelegramMessage is the payload of a telegram outbox task.
type TelegramMessage struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

// AgendaRow is the payload of a sheets_append outbox task.
type AgendaRow struct {
	Date        string `json:"date"`
	Time        string `json:"time"`
	Coach       string `json:"coach"`
	ClientEmail string `json:"client_email"`
	Training    string `json:"training,omitempty"`
	ManageToken string `json:"manage_token"`
}

func (r AgendaRow) Values() []interface{} {
	return []interface{}{r.Date, r.Time, r.Coach, r.ClientEmail, r.Training, r.ManageToken}
}

// bookingDetails is what the message builders need from one appointment.
type bookingDetails struct {
	CoachName   string
	CoachEmail  string
	ClientEmail string
	Date        string
	Time        string
	Training    string
	ManageURL   string
}

func coachEmail(d bookingDetails) EmailMessage {
	var b strings.Builder
	b.WriteString("New appointment\n\n")
	fmt.Fprintf(&b, "Client: %s\n", d.ClientEmail)
	fmt.Fprintf(&b, "Date: %s\n", d.Date)
	fmt.Fprintf(&b, "Time: %s\n", d.Time)
	if d.Training != "" {
		fmt.Fprintf(&b, "Training: %s\n", d.Training)
	}
	return EmailMessage{To: d.CoachEmail, Subject: SubjectCoach, Body: b.String()}
}

func clientEmail(d bookingDetails) EmailMessage {
	coach := d.CoachName
	if coach == "" {
		coach = "Coach"
	}
	var b strings.Builder
	b.WriteString("Your appointment is confirmed\n\n")
	fmt.Fprintf(&b, "Coach: %s\n", coach)
	fmt.Fprintf(&b, "Date: %s\n", d.Date)
	fmt.Fprintf(&b, "Time: %s\n", d.Time)
	if d.Training != "" {
		fmt.Fprintf(&b, "Training: %s\n", d.Training)
	}
	b.WriteString("\nYou can change or cancel up to 24h before:\n")
	b.WriteString(d.ManageURL)
	b.WriteString("\n")
	return EmailMessage{To: d.ClientEmail, Subject: SubjectClient, Body: b.String()}
}

func coachTelegram(chatID int64, d bookingDetails) TelegramMessage {
	text := fmt.Sprintf("New booking: %s %s with %s", d.Date, d.Time, d.ClientEmail)
	if d.Training != "" {
		text += " (" + d.Training + ")"
	}
	return TelegramMessage{ChatID: chatID, Text: text}
}
