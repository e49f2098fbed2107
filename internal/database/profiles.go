package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"coachplanner/internal/models"

	"github.com/google/uuid"
)

const profileColumns = `id, email, display_name, role, password_hash, telegram_chat_id, created_at`

func (db *DB) CreateProfile(ctx context.Context, profile *models.Profile) error {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	profile.Email = normalizeEmail(profile.Email)
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = time.Now()
	}

	query := `INSERT INTO profiles (` + profileColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		profile.ID,
		profile.Email,
		profile.DisplayName,
		profile.Role,
		profile.PasswordHash,
		profile.TelegramChatID,
		profile.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "profiles.email") {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to create profile: %w", err)
	}
	return nil
}

// UpsertProfileByEmail inserts the profile or refreshes the mutable fields of
// an existing one with the same email. profile.ID is set to the stored id.
func (db *DB) UpsertProfileByEmail(ctx context.Context, profile *models.Profile) error {
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	profile.Email = normalizeEmail(profile.Email)
	if profile.CreatedAt.IsZero() {
		profile.CreatedAt = time.Now()
	}

	query := `INSERT INTO profiles (` + profileColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(email) DO UPDATE SET
                display_name = excluded.display_name,
                role = excluded.role,
                password_hash = CASE WHEN excluded.password_hash = '' THEN profiles.password_hash ELSE excluded.password_hash END,
                telegram_chat_id = excluded.telegram_chat_id
              RETURNING id`
	err := db.QueryRowContext(ctx, query,
		profile.ID,
		profile.Email,
		profile.DisplayName,
		profile.Role,
		profile.PasswordHash,
		profile.TelegramChatID,
		profile.CreatedAt,
	).Scan(&profile.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

func (db *DB) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = ?`
	return db.queryProfile(ctx, query, id)
}

func (db *DB) GetProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE email = ?`
	return db.queryProfile(ctx, query, normalizeEmail(email))
}

func (db *DB) ListCoaches(ctx context.Context) ([]*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE role = ? ORDER BY display_name, id`
	rows, err := db.QueryContext(ctx, query, models.RoleCoach)
	if err != nil {
		return nil, fmt.Errorf("failed to list coaches: %w", err)
	}
	defer rows.Close()

	var coaches []*models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan coach: %w", err)
		}
		coaches = append(coaches, p)
	}
	return coaches, rows.Err()
}

func (db *DB) queryProfile(ctx context.Context, query string, arg any) (*models.Profile, error) {
	p, err := scanProfile(db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return p, nil
}

func scanProfile(row rowScanner) (*models.Profile, error) {
	var p models.Profile
	if err := row.Scan(&p.ID, &p.Email, &p.DisplayName, &p.Role, &p.PasswordHash, &p.TelegramChatID, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
