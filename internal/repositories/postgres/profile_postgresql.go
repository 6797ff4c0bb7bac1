package postgres

import (
	"context"

	"github.com/cfa-prep/study-service/internal/models"
	"github.com/cfa-prep/study-service/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProfilePostgreSQL struct {
	db *gorm.DB
}

func NewProfilePostgreSQL(db *gorm.DB) repositories.ProfileRepository {
	return &ProfilePostgreSQL{db: db}
}

func (p *ProfilePostgreSQL) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	var profile models.Profile
	if err := p.db.WithContext(ctx).Where("id = ?", id).First(&profile).Error; err != nil {
		return nil, translateError(err)
	}
	return &profile, nil
}

func (p *ProfilePostgreSQL) Upsert(ctx context.Context, profile *models.Profile) error {
	return p.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"email", "updated_at"}),
		}).
		Create(profile).Error
}

func (p *ProfilePostgreSQL) Update(ctx context.Context, profile *models.Profile) error {
	result := p.db.WithContext(ctx).
		Model(&models.Profile{ID: profile.ID}).
		Select("full_name", "avatar_url", "preferences", "next_exam_date", "updated_at").
		Updates(profile)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return repositories.ErrRecordNotFound
	}
	return nil
}
