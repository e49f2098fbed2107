package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"coachplanner/internal/models"
)

const appointmentColumns = `a.id, a.coach_id, a.client_id, a.training_id, a.appointment_date, a.start_hour, a.end_hour, a.manage_token, a.created_at`

// InsertAppointment stores the appointment in a single statement. The unique
// slot index makes the check and the write atomic: a second insert for the
// same coach, date and hour fails with ErrSlotTaken.
func (db *DB) InsertAppointment(ctx context.Context, appt *models.Appointment) error {
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = time.Now()
	}

	query := `INSERT INTO appointments (
				coach_id, client_id, training_id, appointment_date,
				start_hour, end_hour, manage_token, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	result, err := db.ExecContext(ctx, query,
		appt.CoachID,
		appt.ClientID,
		appt.TrainingID,
		appt.DateString(),
		appt.StartHour,
		appt.EndHour,
		appt.ManageToken,
		appt.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "appointments.start_hour") {
			return ErrSlotTaken
		}
		return fmt.Errorf("failed to insert appointment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	appt.ID = id
	return nil
}

func (db *DB) ListAppointmentsForDay(ctx context.Context, coachID string, date time.Time) ([]*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments a
              WHERE a.coach_id = ? AND a.appointment_date = ? ORDER BY a.start_hour`
	return db.queryAppointments(ctx, "list appointments for day", query, coachID, date.Format(models.DateLayout))
}

func (db *DB) ListClientAppointments(ctx context.Context, clientID string) ([]*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments a
              WHERE a.client_id = ? ORDER BY a.appointment_date, a.start_hour`
	return db.queryAppointments(ctx, "list client appointments", query, clientID)
}

func (db *DB) GetAppointmentByToken(ctx context.Context, token string) (*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments a WHERE a.manage_token = ?`
	appt, err := scanAppointment(db.QueryRowContext(ctx, query, token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment by token: %w", err)
	}
	return appt, nil
}

// ListCoachAgenda returns appointments of a coach between from and to
// (inclusive calendar days) with client and training display data.
func (db *DB) ListCoachAgenda(ctx context.Context, coachID string, from, to time.Time) ([]*models.AgendaEntry, error) {
	query := `SELECT ` + appointmentColumns + `, p.email, p.display_name, COALESCE(t.name, '')
              FROM appointments a
              JOIN profiles p ON p.id = a.client_id
              LEFT JOIN training_options t ON t.id = a.training_id
              WHERE a.coach_id = ? AND a.appointment_date BETWEEN ? AND ?
              ORDER BY a.appointment_date, a.start_hour`
	rows, err := db.QueryContext(ctx, query, coachID, from.Format(models.DateLayout), to.Format(models.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to list coach agenda: %w", err)
	}
	defer rows.Close()

	var entries []*models.AgendaEntry
	for rows.Next() {
		var (
			e          models.AgendaEntry
			dateStr    string
			trainingID sql.NullInt64
		)
		err := rows.Scan(
			&e.ID, &e.CoachID, &e.ClientID, &trainingID, &dateStr, &e.StartHour, &e.EndHour, &e.ManageToken, &e.CreatedAt,
			&e.ClientEmail, &e.ClientName, &e.TrainingName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan agenda entry: %w", err)
		}
		if err := fillAppointment(&e.Appointment, dateStr, trainingID); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

func (db *DB) queryAppointments(ctx context.Context, op, query string, args ...any) ([]*models.Appointment, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	defer rows.Close()

	var appts []*models.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		appts = append(appts, appt)
	}
	return appts, rows.Err()
}

func scanAppointment(row rowScanner) (*models.Appointment, error) {
	var (
		appt       models.Appointment
		dateStr    string
		trainingID sql.NullInt64
	)
	err := row.Scan(&appt.ID, &appt.CoachID, &appt.ClientID, &trainingID, &dateStr,
		&appt.StartHour, &appt.EndHour, &appt.ManageToken, &appt.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := fillAppointment(&appt, dateStr, trainingID); err != nil {
		return nil, err
	}
	return &appt, nil
}

func fillAppointment(appt *models.Appointment, dateStr string, trainingID sql.NullInt64) error {
	date, err := time.Parse(models.DateLayout, dateStr)
	if err != nil {
		return fmt.Errorf("failed to parse appointment date %q: %w", dateStr, err)
	}
	appt.Date = date
	if trainingID.Valid {
		id := trainingID.Int64
		appt.TrainingID = &id
	}
	return nil
}
