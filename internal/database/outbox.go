package database

import (
	"context"
	"fmt"
	"time"

	"coachplanner/internal/models"
)

const outboxColumns = `id, task_type, appointment_id, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at`

func (db *DB) CreateOutboxTask(ctx context.Context, task *models.OutboxTask) error {
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	if task.Status == "" {
		task.Status = models.TaskStatusPending
	}
	query := `INSERT INTO outbox (task_type, appointment_id, payload, status, retry_count, created_at)
              VALUES (?, ?, ?, ?, ?, ?)`
	result, err := db.ExecContext(ctx, query, task.TaskType, task.AppointmentID, task.Payload, task.Status, task.RetryCount, task.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create outbox task: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	task.ID = id
	return nil
}

// GetPendingOutboxTasks returns pending tasks plus retry and processing
// tasks whose next_retry_at has passed, oldest first. For processing tasks
// next_retry_at is the claim lease, so a task abandoned mid-flight comes back.
func (db *DB) GetPendingOutboxTasks(ctx context.Context, limit int) ([]models.OutboxTask, error) {
	query := `SELECT ` + outboxColumns + ` FROM outbox
              WHERE status = ? OR (status IN (?, ?) AND (next_retry_at IS NULL OR next_retry_at <= ?))
              ORDER BY created_at, id LIMIT ?`
	return db.queryOutbox(ctx, "get pending outbox tasks", query,
		models.TaskStatusPending, models.TaskStatusRetry, models.TaskStatusProcessing, time.Now().UTC(), limit)
}

// ClaimOutboxTask moves a runnable task to processing for lease. It reports
// false when another worker already holds it or it is finished.
func (db *DB) ClaimOutboxTask(ctx context.Context, id int64, lease time.Duration) (bool, error) {
	now := time.Now().UTC()
	query := `UPDATE outbox SET status = ?, next_retry_at = ?
              WHERE id = ? AND (status = ? OR (status IN (?, ?) AND (next_retry_at IS NULL OR next_retry_at <= ?)))`
	result, err := db.ExecContext(ctx, query,
		models.TaskStatusProcessing, now.Add(lease), id,
		models.TaskStatusPending, models.TaskStatusRetry, models.TaskStatusProcessing, now)
	if err != nil {
		return false, fmt.Errorf("failed to claim outbox task: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read claim result: %w", err)
	}
	return n == 1, nil
}

func (db *DB) GetFailedOutboxTasks(ctx context.Context) ([]models.OutboxTask, error) {
	query := `SELECT ` + outboxColumns + ` FROM outbox WHERE status = ? ORDER BY created_at DESC`
	return db.queryOutbox(ctx, "get failed outbox tasks", query, models.TaskStatusFailed)
}

func (db *DB) GetOutboxTask(ctx context.Context, id int64) (*models.OutboxTask, error) {
	tasks, err := db.queryOutbox(ctx, "get outbox task", `SELECT `+outboxColumns+` FROM outbox WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, ErrNotFound
	}
	return &tasks[0], nil
}

func (db *DB) UpdateOutboxTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var query string
	var args []interface{}
	now := time.Now().UTC()
	if nextRetryAt != nil {
		utc := nextRetryAt.UTC()
		nextRetryAt = &utc
	}

	switch status {
	case models.TaskStatusRetry:
		query = `UPDATE outbox SET status = ?, last_error = ?, next_retry_at = ?, retry_count = retry_count + 1 WHERE id = ?`
		args = []interface{}{status, errMsg, nextRetryAt, id}
	case models.TaskStatusCompleted, models.TaskStatusFailed:
		query = `UPDATE outbox SET status = ?, last_error = ?, next_retry_at = ?, processed_at = ? WHERE id = ?`
		args = []interface{}{status, errMsg, nextRetryAt, &now, id}
	default:
		query = `UPDATE outbox SET status = ?, last_error = ?, next_retry_at = ? WHERE id = ?`
		args = []interface{}{status, errMsg, nextRetryAt, id}
	}

	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update outbox task status: %w", err)
	}
	return nil
}

func (db *DB) queryOutbox(ctx context.Context, op, query string, args ...any) ([]models.OutboxTask, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}
	defer rows.Close()

	var tasks []models.OutboxTask
	for rows.Next() {
		var t models.OutboxTask
		err := rows.Scan(
			&t.ID, &t.TaskType, &t.AppointmentID, &t.Payload, &t.Status, &t.RetryCount, &t.LastError, &t.CreatedAt, &t.ProcessedAt, &t.NextRetryAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbox task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}
