package postgres

import (
	"context"
	"time"

	"github.com/cfa-prep/study-service/internal/models"
	"github.com/cfa-prep/study-service/internal/repositories"
	"gorm.io/gorm"
)

type SessionPostgreSQL struct {
	db *gorm.DB
}

func NewSessionPostgreSQL(db *gorm.DB) repositories.SessionRepository {
	return &SessionPostgreSQL{db: db}
}

func (s *SessionPostgreSQL) Create(ctx context.Context, session *models.TestSession) error {
	return translateError(s.db.WithContext(ctx).Omit("Module", "Answers").Create(session).Error)
}

func (s *SessionPostgreSQL) GetByID(ctx context.Context, id uint) (*models.TestSession, error) {
	var session models.TestSession
	if err := s.db.WithContext(ctx).First(&session, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &session, nil
}

func (s *SessionPostgreSQL) ListByUser(ctx context.Context, userID string, filters repositories.SessionFilters) ([]*models.TestSession, error) {
	query := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if filters.CompletedOnly {
		query = query.Where("end_time IS NOT NULL")
	}
	if filters.ModuleID != nil {
		query = query.Where("module_id = ?", *filters.ModuleID)
	}
	query = query.Order(sessionOrder(filters.SortBy, filters.SortOrder))
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}

	var sessions []*models.TestSession
	if err := query.Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}

// Delete removes the session and its answers in one transaction
func (s *SessionPostgreSQL) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("test_session_id = ?", id).Delete(&models.AnswerRecord{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.TestSession{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return repositories.ErrRecordNotFound
		}
		return nil
	})
}

func (s *SessionPostgreSQL) CreateAnswer(ctx context.Context, answer *models.AnswerRecord) error {
	return s.createAnswer(ctx, nil, answer)
}

func (s *SessionPostgreSQL) createAnswer(ctx context.Context, tx *gorm.DB, answer *models.AnswerRecord) error {
	return translateError(getDB(s.db, tx).WithContext(ctx).Create(answer).Error)
}

func (s *SessionPostgreSQL) ListAnswersBySessions(ctx context.Context, sessionIDs []uint) ([]*models.AnswerRecord, error) {
	if len(sessionIDs) == 0 {
		return []*models.AnswerRecord{}, nil
	}
	var answers []*models.AnswerRecord
	err := s.db.WithContext(ctx).
		Where("test_session_id IN ?", sessionIDs).
		Order("test_session_id ASC, answered_at ASC, id ASC").
		Find(&answers).Error
	if err != nil {
		return nil, err
	}
	return answers, nil
}

func (s *SessionPostgreSQL) Finalize(ctx context.Context, last *models.AnswerRecord, f models.Finalization) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.createAnswer(ctx, tx, last); err != nil {
			return err
		}
		return s.finalizeSession(ctx, tx, last.TestSessionID, f)
	})
}

func (s *SessionPostgreSQL) FinalizeSession(ctx context.Context, sessionID uint, f models.Finalization) error {
	return s.finalizeSession(ctx, nil, sessionID, f)
}

// finalizeSession stamps the session only while end_time is still NULL,
// so a session is finalized at most once.
func (s *SessionPostgreSQL) finalizeSession(ctx context.Context, tx *gorm.DB, sessionID uint, f models.Finalization) error {
	db := getDB(s.db, tx).WithContext(ctx)

	result := db.Model(&models.TestSession{}).
		Where("id = ? AND end_time IS NULL", sessionID).
		Updates(map[string]interface{}{
			"end_time":   f.EndTime,
			"score":      f.Score,
			"time_spent": f.TimeSpent,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := db.Model(&models.TestSession{}).Where("id = ?", sessionID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return repositories.ErrRecordNotFound
	}
	return repositories.ErrAlreadyFinalized
}

func (s *SessionPostgreSQL) ListUnfinalized(ctx context.Context, createdBefore time.Time, afterID uint, limit int) ([]*models.TestSession, error) {
	query := s.db.WithContext(ctx).
		Where("end_time IS NULL AND created_at < ? AND id > ?", createdBefore, afterID).
		Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var sessions []*models.TestSession
	if err := query.Find(&sessions).Error; err != nil {
		return nil, err
	}
	return sessions, nil
}
