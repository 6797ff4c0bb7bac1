package services

import (
	"context"

	"github.com/cfa-prep/study-service/internal/models"
	"github.com/cfa-prep/study-service/internal/repositories"
)

type contentService struct {
	repo   repositories.Repository
	logger *ServiceLogger
}

func NewContentService(repo repositories.Repository, logger *ServiceLogger) ContentService {
	return &contentService{repo: repo, logger: logger}
}

func (s *contentService) ListModules(ctx context.Context) ([]*models.Module, error) {
	modules, err := s.repo.Content().ListModules(ctx)
	if err != nil {
		return nil, NewPersistenceError("list modules", err)
	}
	return modules, nil
}
