package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cfa-prep/study-service/internal/models"
	"github.com/cfa-prep/study-service/internal/repositories"
)

// ContentStore is an in-memory ContentRepository
type ContentStore struct {
	mu        sync.RWMutex
	modules   map[uint]*models.Module
	questions map[uint][]*models.Question
	nextID    uint
	choiceID  uint
}

func NewContentStore() *ContentStore {
	return &ContentStore{
		modules:   make(map[uint]*models.Module),
		questions: make(map[uint][]*models.Question),
	}
}

func (c *ContentStore) ListModules(ctx context.Context) ([]*models.Module, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*models.Module, 0, len(c.modules))
	for _, m := range c.modules {
		cp := *m
		cp.QuestionCount = len(c.questions[m.ID])
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *ContentStore) GetModuleBySlug(ctx context.Context, slug string) (*models.Module, error) {
	return c.findModule(func(m *models.Module) bool { return m.Slug == slug })
}

func (c *ContentStore) GetModuleByName(ctx context.Context, name string) (*models.Module, error) {
	return c.findModule(func(m *models.Module) bool { return strings.EqualFold(m.Name, name) })
}

func (c *ContentStore) findModule(match func(*models.Module) bool) (*models.Module, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, m := range c.modules {
		if match(m) {
			cp := *m
			return &cp, nil
		}
	}
	return nil, repositories.ErrRecordNotFound
}

func (c *ContentStore) GetModulesByIDs(ctx context.Context, ids []uint) ([]*models.Module, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]*models.Module, 0, len(ids))
	for _, id := range ids {
		if m, ok := c.modules[id]; ok {
			cp := *m
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *ContentStore) GetQuestionsByModule(ctx context.Context, moduleID uint) ([]*models.Question, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stored := c.questions[moduleID]
	out := make([]*models.Question, len(stored))
	for i, q := range stored {
		out[i] = copyQuestion(q)
	}
	return out, nil
}

func (c *ContentStore) CreateModule(ctx context.Context, module *models.Module) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, m := range c.modules {
		if m.Slug == module.Slug || strings.EqualFold(m.Name, module.Name) {
			return repositories.ErrDuplicate
		}
	}
	c.nextID++
	module.ID = c.nextID
	if module.CreatedAt.IsZero() {
		module.CreatedAt = time.Now()
	}
	cp := *module
	c.modules[module.ID] = &cp
	return nil
}

func (c *ContentStore) CreateQuestions(ctx context.Context, questions []*models.Question) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, q := range questions {
		if _, ok := c.modules[q.ModuleID]; !ok {
			return repositories.ErrRecordNotFound
		}
	}
	for _, q := range questions {
		c.nextID++
		q.ID = c.nextID
		if q.CreatedAt.IsZero() {
			q.CreatedAt = time.Now()
		}
		for i := range q.Choices {
			c.choiceID++
			q.Choices[i].ID = c.choiceID
			q.Choices[i].QuestionID = q.ID
		}
		c.questions[q.ModuleID] = append(c.questions[q.ModuleID], copyQuestion(q))
	}
	return nil
}

func copyQuestion(q *models.Question) *models.Question {
	cp := *q
	cp.Choices = append([]models.QuestionChoice(nil), q.Choices...)
	sort.Slice(cp.Choices, func(i, j int) bool { return cp.Choices[i].Label < cp.Choices[j].Label })
	return &cp
}
