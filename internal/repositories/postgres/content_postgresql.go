package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cfa-prep/study-service/internal/cache"
	"github.com/cfa-prep/study-service/internal/models"
	"github.com/cfa-prep/study-service/internal/repositories"
	"gorm.io/gorm"
)

type ContentPostgreSQL struct {
	db       *gorm.DB
	cache    cache.CacheService
	cacheTTL time.Duration
	logger   *slog.Logger
}

// NewContentPostgreSQL builds the content store. Question lists are cached
// per module and dropped by CreateQuestions.
func NewContentPostgreSQL(db *gorm.DB, cacheService cache.CacheService, cacheTTL time.Duration, logger *slog.Logger) repositories.ContentRepository {
	if cacheService == nil {
		cacheService = cache.NewNoopCache()
	}
	return &ContentPostgreSQL{
		db:       db,
		cache:    cacheService,
		cacheTTL: cacheTTL,
		logger:   logger,
	}
}

func (c *ContentPostgreSQL) ListModules(ctx context.Context) ([]*models.Module, error) {
	var modules []*models.Module
	err := c.db.WithContext(ctx).
		Model(&models.Module{}).
		Select("modules.*, (SELECT COUNT(*) FROM questions q WHERE q.module_id = modules.id) AS question_count").
		Order("modules.id ASC").
		Find(&modules).Error
	if err != nil {
		return nil, err
	}
	return modules, nil
}

func (c *ContentPostgreSQL) GetModuleBySlug(ctx context.Context, slug string) (*models.Module, error) {
	var module models.Module
	if err := c.db.WithContext(ctx).Where("slug = ?", slug).First(&module).Error; err != nil {
		return nil, translateError(err)
	}
	return &module, nil
}

func (c *ContentPostgreSQL) GetModuleByName(ctx context.Context, name string) (*models.Module, error) {
	var module models.Module
	if err := c.db.WithContext(ctx).Where("LOWER(module_name) = LOWER(?)", name).First(&module).Error; err != nil {
		return nil, translateError(err)
	}
	return &module, nil
}

func (c *ContentPostgreSQL) GetModulesByIDs(ctx context.Context, ids []uint) ([]*models.Module, error) {
	if len(ids) == 0 {
		return []*models.Module{}, nil
	}
	var modules []*models.Module
	if err := c.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC").Find(&modules).Error; err != nil {
		return nil, err
	}
	return modules, nil
}

func (c *ContentPostgreSQL) GetQuestionsByModule(ctx context.Context, moduleID uint) ([]*models.Question, error) {
	key := cache.QuestionSetKey(moduleID)

	var questions []*models.Question
	err := c.cache.Get(ctx, key, &questions)
	if err == nil {
		return questions, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		c.logger.Warn("Question cache read failed, falling back to database",
			"module_id", moduleID,
			"error", err)
	}

	questions = nil
	err = c.db.WithContext(ctx).
		Preload("Choices", func(db *gorm.DB) *gorm.DB {
			return db.Order("label ASC")
		}).
		Where("module_id = ?", moduleID).
		Order("id ASC").
		Find(&questions).Error
	if err != nil {
		return nil, err
	}

	if err := c.cache.Set(ctx, key, questions, c.cacheTTL); err != nil {
		c.logger.Warn("Failed to cache question set", "module_id", moduleID, "error", err)
	}
	return questions, nil
}

func (c *ContentPostgreSQL) CreateModule(ctx context.Context, module *models.Module) error {
	return translateError(c.db.WithContext(ctx).Create(module).Error)
}

func (c *ContentPostgreSQL) CreateQuestions(ctx context.Context, questions []*models.Question) error {
	if len(questions) == 0 {
		return nil
	}

	err := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Choices are inserted through the association.
		return tx.CreateInBatches(questions, 100).Error
	})
	if err != nil {
		return translateError(err)
	}

	touched := make(map[uint]struct{})
	for _, q := range questions {
		touched[q.ModuleID] = struct{}{}
	}
	for moduleID := range touched {
		if err := c.cache.Delete(ctx, cache.QuestionSetKey(moduleID)); err != nil {
			c.logger.Warn("Failed to invalidate question cache", "module_id", moduleID, "error", err)
		}
	}
	return nil
}
