package service

import (
	"context"
	"fmt"
	"strings"

	"coachplanner/internal/config"
	"coachplanner/internal/models"

	"github.com/rs/zerolog"
)

// SeedStore is the write side used to sync configured reference data.
type SeedStore interface {
	UpsertProfileByEmail(ctx context.Context, profile *models.Profile) error
	ReplaceCoachWindows(ctx context.Context, coachID string, windows []models.AvailabilityWindow) error
	UpsertTrainingOption(ctx context.Context, t *models.TrainingOption) error
}

// SyncSeed writes seed profiles, training options and availability windows.
// Windows of every seeded coach are replaced, so removing a window from the
// config removes it from the database on the next start.
func SyncSeed(ctx context.Context, store SeedStore, seed config.SeedConfig, logger *zerolog.Logger) error {
	if err := config.ValidateSeed(seed); err != nil {
		return err
	}

	coachIDs := make(map[string]string)
	for _, p := range seed.Profiles {
		profile := p
		profile.Email = strings.ToLower(strings.TrimSpace(profile.Email))
		if profile.Password != "" {
			hash, err := HashPassword(profile.Password)
			if err != nil {
				return err
			}
			profile.PasswordHash = hash
		}
		profile.Password = ""
		if err := store.UpsertProfileByEmail(ctx, &profile); err != nil {
			return fmt.Errorf("seed profile %s: %w", profile.Email, err)
		}
		if profile.Role == models.RoleCoach {
			coachIDs[profile.Email] = profile.ID
		}
	}

	for i := range seed.Trainings {
		if err := store.UpsertTrainingOption(ctx, &seed.Trainings[i]); err != nil {
			return fmt.Errorf("seed training %d: %w", seed.Trainings[i].ID, err)
		}
	}

	windows := make(map[string][]models.AvailabilityWindow)
	for _, w := range seed.Windows {
		email := strings.ToLower(strings.TrimSpace(w.CoachEmail))
		coachID := coachIDs[email]
		windows[coachID] = append(windows[coachID], models.AvailabilityWindow{
			CoachID:   coachID,
			Weekday:   w.Weekday,
			StartHour: w.StartHour,
			EndHour:   w.EndHour,
		})
	}
	for _, coachID := range coachIDs {
		if err := store.ReplaceCoachWindows(ctx, coachID, windows[coachID]); err != nil {
			return fmt.Errorf("seed windows for %s: %w", coachID, err)
		}
	}

	if logger != nil {
		logger.Info().
			Int("profiles", len(seed.Profiles)).
			Int("coaches", len(coachIDs)).
			Int("windows", len(seed.Windows)).
			Int("trainings", len(seed.Trainings)).
			Msg("seed data synced")
	}
	return nil
}
