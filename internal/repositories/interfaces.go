package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/cfa-prep/study-service/internal/models"
	"gorm.io/gorm"
)

var (
	ErrRecordNotFound   = errors.New("record not found")
	ErrDuplicate        = errors.New("duplicate record")
	ErrAlreadyFinalized = errors.New("test session already finalized")
)

// IsNotFoundError reports whether err means the requested row does not exist
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrRecordNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}

// IsDuplicateError reports whether err is a unique constraint violation
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate) || errors.Is(err, gorm.ErrDuplicatedKey)
}

// ===== SHARED FILTER STRUCTS =====

type SessionFilters struct {
	CompletedOnly bool   `json:"completed_only"`
	ModuleID      *uint  `json:"module_id"`
	Limit         int    `json:"limit"`
	SortBy        string `json:"sort_by"`    // "end_time", "start_time"
	SortOrder     string `json:"sort_order"` // "asc", "desc"
}

// ===== REPOSITORIES =====

// ContentRepository is the read-mostly store of modules and questions
type ContentRepository interface {
	ListModules(ctx context.Context) ([]*models.Module, error)
	GetModuleBySlug(ctx context.Context, slug string) (*models.Module, error)
	GetModuleByName(ctx context.Context, name string) (*models.Module, error)
	GetModulesByIDs(ctx context.Context, ids []uint) ([]*models.Module, error)

	// GetQuestionsByModule returns the module's questions ordered by id,
	// each with its choices ordered by label.
	GetQuestionsByModule(ctx context.Context, moduleID uint) ([]*models.Question, error)

	CreateModule(ctx context.Context, module *models.Module) error
	CreateQuestions(ctx context.Context, questions []*models.Question) error
}

// SessionRepository stores test sessions and their answer records
type SessionRepository interface {
	Create(ctx context.Context, session *models.TestSession) error
	GetByID(ctx context.Context, id uint) (*models.TestSession, error)
	ListByUser(ctx context.Context, userID string, filters SessionFilters) ([]*models.TestSession, error)
	Delete(ctx context.Context, id uint) error

	CreateAnswer(ctx context.Context, answer *models.AnswerRecord) error
	ListAnswersBySessions(ctx context.Context, sessionIDs []uint) ([]*models.AnswerRecord, error)

	// Finalize writes the last answer and stamps its session in one unit.
	// It returns ErrAlreadyFinalized when the session already has an end time.
	Finalize(ctx context.Context, last *models.AnswerRecord, f models.Finalization) error
	// FinalizeSession stamps a session whose answers are already stored.
	FinalizeSession(ctx context.Context, sessionID uint, f models.Finalization) error
	// ListUnfinalized pages through unstamped sessions created before
	// createdBefore, in id order starting after afterID.
	ListUnfinalized(ctx context.Context, createdBefore time.Time, afterID uint, limit int) ([]*models.TestSession, error)
}

// ProfileRepository is the user store
type ProfileRepository interface {
	GetByID(ctx context.Context, id string) (*models.Profile, error)
	// Upsert inserts the profile or refreshes the email of an existing one.
	Upsert(ctx context.Context, profile *models.Profile) error
	Update(ctx context.Context, profile *models.Profile) error
}

// Repository groups the stores the services depend on
type Repository interface {
	Content() ContentRepository
	Session() SessionRepository
	Profile() ProfileRepository
}

type repository struct {
	content ContentRepository
	session SessionRepository
	profile ProfileRepository
}

func NewRepository(content ContentRepository, session SessionRepository, profile ProfileRepository) Repository {
	return &repository{content: content, session: session, profile: profile}
}

func (r *repository) Content() ContentRepository { return r.content }
func (r *repository) Session() SessionRepository { return r.session }
func (r *repository) Profile() ProfileRepository { return r.profile }
