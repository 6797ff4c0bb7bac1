package memory

import (
	"context"
	"sync"
	"time"

	"github.com/cfa-prep/study-service/internal/models"
	"github.com/cfa-prep/study-service/internal/repositories"
)

// ProfileStore is an in-memory ProfileRepository
type ProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]*models.Profile
}

func NewProfileStore() *ProfileStore {
	return &ProfileStore{profiles: make(map[string]*models.Profile)}
}

func (p *ProfileStore) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	profile, ok := p.profiles[id]
	if !ok {
		return nil, repositories.ErrRecordNotFound
	}
	cp := *profile
	return &cp, nil
}

func (p *ProfileStore) Upsert(ctx context.Context, profile *models.Profile) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	if existing, ok := p.profiles[profile.ID]; ok {
		existing.Email = profile.Email
		existing.UpdatedAt = now
		return nil
	}
	cp := *profile
	cp.CreatedAt, cp.UpdatedAt = now, now
	p.profiles[profile.ID] = &cp
	return nil
}

func (p *ProfileStore) Update(ctx context.Context, profile *models.Profile) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	existing, ok := p.profiles[profile.ID]
	if !ok {
		return repositories.ErrRecordNotFound
	}
	existing.FullName = profile.FullName
	existing.AvatarURL = profile.AvatarURL
	existing.Preferences = profile.Preferences
	existing.NextExamDate = profile.NextExamDate
	existing.UpdatedAt = time.Now()
	return nil
}
