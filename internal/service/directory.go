package service

import (
	"context"
	"fmt"

	"coachplanner/internal/domain"
	"coachplanner/internal/models"
)

// DirectoryService exposes reference data: coaches and training options.
type DirectoryService struct {
	repo domain.Repository
}

func NewDirectoryService(repo domain.Repository) *DirectoryService {
	return &DirectoryService{repo: repo}
}

func (s *DirectoryService) ListCoaches(ctx context.Context) ([]models.Coach, error) {
	profiles, err := s.repo.ListCoaches(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load coaches: %v", domain.ErrTransientFetch, err)
	}
	coaches := make([]models.Coach, 0, len(profiles))
	for _, p := range profiles {
		coaches = append(coaches, p.AsCoach())
	}
	return coaches, nil
}

func (s *DirectoryService) ListTrainingOptions(ctx context.Context) ([]*models.TrainingOption, error) {
	options, err := s.repo.ListTrainingOptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load training options: %v", domain.ErrTransientFetch, err)
	}
	return options, nil
}
