package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"coachplanner/internal/models"
)

func (db *DB) CreateAvailabilityWindow(ctx context.Context, w *models.AvailabilityWindow) error {
	if err := w.Validate(); err != nil {
		return err
	}
	query := `INSERT INTO coach_availability (coach_id, weekday, start_hour, end_hour) VALUES (?, ?, ?, ?)`
	result, err := db.ExecContext(ctx, query, w.CoachID, w.Weekday, w.StartHour, w.EndHour)
	if err != nil {
		return fmt.Errorf("failed to create availability window: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	w.ID = id
	return nil
}

// ReplaceCoachWindows swaps all windows of a coach in one transaction.
func (db *DB) ReplaceCoachWindows(ctx context.Context, coachID string, windows []models.AvailabilityWindow) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM coach_availability WHERE coach_id = ?`, coachID); err != nil {
		return fmt.Errorf("failed to clear availability: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO coach_availability (coach_id, weekday, start_hour, end_hour) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare availability insert: %w", err)
	}
	defer stmt.Close()

	for _, w := range windows {
		if err := w.Validate(); err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, coachID, w.Weekday, w.StartHour, w.EndHour); err != nil {
			return fmt.Errorf("failed to insert availability window: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit availability: %w", err)
	}
	return nil
}

func (db *DB) ListAvailabilityWindows(ctx context.Context, coachID string, weekday int) ([]*models.AvailabilityWindow, error) {
	query := `SELECT id, coach_id, weekday, start_hour, end_hour
              FROM coach_availability WHERE coach_id = ? AND weekday = ? ORDER BY start_hour`
	rows, err := db.QueryContext(ctx, query, coachID, weekday)
	if err != nil {
		return nil, fmt.Errorf("failed to list availability windows: %w", err)
	}
	defer rows.Close()

	var windows []*models.AvailabilityWindow
	for rows.Next() {
		var w models.AvailabilityWindow
		if err := rows.Scan(&w.ID, &w.CoachID, &w.Weekday, &w.StartHour, &w.EndHour); err != nil {
			return nil, fmt.Errorf("failed to scan availability window: %w", err)
		}
		windows = append(windows, &w)
	}
	return windows, rows.Err()
}

func (db *DB) UpsertTrainingOption(ctx context.Context, t *models.TrainingOption) error {
	query := `INSERT INTO training_options (id, name, sort_order) VALUES (?, ?, ?)
              ON CONFLICT(id) DO UPDATE SET name = excluded.name, sort_order = excluded.sort_order`
	if _, err := db.ExecContext(ctx, query, t.ID, t.Name, t.SortOrder); err != nil {
		return fmt.Errorf("failed to upsert training option: %w", err)
	}
	return nil
}

func (db *DB) ListTrainingOptions(ctx context.Context) ([]*models.TrainingOption, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, name, sort_order FROM training_options ORDER BY sort_order, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list training options: %w", err)
	}
	defer rows.Close()

	var options []*models.TrainingOption
	for rows.Next() {
		var t models.TrainingOption
		if err := rows.Scan(&t.ID, &t.Name, &t.SortOrder); err != nil {
			return nil, fmt.Errorf("failed to scan training option: %w", err)
		}
		options = append(options, &t)
	}
	return options, rows.Err()
}

func (db *DB) GetTrainingOption(ctx context.Context, id int64) (*models.TrainingOption, error) {
	var t models.TrainingOption
	err := db.QueryRowContext(ctx, `SELECT id, name, sort_order FROM training_options WHERE id = ?`, id).
		Scan(&t.ID, &t.Name, &t.SortOrder)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get training option: %w", err)
	}
	return &t, nil
}
