package services

import (
	"context"
	"io"
	"time"

	"github.com/cfa-prep/study-service/internal/identity"
	"github.com/cfa-prep/study-service/internal/models"
)

// ===== SERVICE INTERFACES =====

// PracticeService keeps the in-memory practice runs, at most one per user
type PracticeService interface {
	Start(ctx context.Context, userID, moduleSlug string) (*RunView, error)
	Get(ctx context.Context, userID, runID string) (*RunView, error)
	Select(ctx context.Context, userID, runID, choice string) (*RunView, error)
	Submit(ctx context.Context, userID, runID string) (*RunView, error)
	Advance(ctx context.Context, userID, runID string) (*RunView, error)
	Abandon(ctx context.Context, userID, runID string) error

	// EvictIdle drops runs untouched for longer than idle and returns how
	// many were dropped.
	EvictIdle(idle time.Duration) int
	ActiveRuns() int
}

// DashboardService recomputes progress from the persisted history on every call
type DashboardService interface {
	Overview(ctx context.Context, userID string) (*DashboardOverview, error)
	History(ctx context.Context, userID string) ([]*HistoryEntry, error)
	DeleteSession(ctx context.Context, userID string, sessionID uint) error
}

type ProfileService interface {
	Get(ctx context.Context, userID string) (*ProfileResponse, error)
	Update(ctx context.Context, userID string, req *UpdateProfileRequest) (*ProfileResponse, error)
	EnsureProfile(ctx context.Context, id *identity.Identity) error
}

type ContentService interface {
	ListModules(ctx context.Context) ([]*models.Module, error)
}

type ImportExportService interface {
	ImportQuestions(ctx context.Context, r io.Reader, filename string) (*ImportResult, error)
	ExportHistory(ctx context.Context, userID string, w io.Writer) error
}

type ReconcileService interface {
	Run(ctx context.Context) (*ReconcileResult, error)
}

// ===== PRACTICE TYPES =====

type ChoiceView struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

type QuestionView struct {
	ID      uint         `json:"id"`
	Text    string       `json:"question_text"`
	Choices []ChoiceView `json:"choices"`
}

// RunView is the client-facing snapshot of a practice run. The correct
// answer only appears inside Review, after submission.
type RunView struct {
	RunID         string       `json:"run_id"`
	ModuleID      uint         `json:"module_id"`
	ModuleName    string       `json:"module_name"`
	ModuleSlug    string       `json:"module_slug"`
	State         RunState     `json:"state"`
	QuestionIndex int          `json:"question_index"`
	QuestionCount int          `json:"question_count"`
	Question      QuestionView `json:"question"`
	Selected      string       `json:"selected"`
	Submitted     bool         `json:"submitted"`
	CorrectSoFar  int          `json:"correct_so_far"`
	SessionID     *uint        `json:"session_id,omitempty"`
	StartedAt     time.Time    `json:"started_at"`
	Review        *Review      `json:"review,omitempty"`
	Result        *RunResult   `json:"result,omitempty"`
}

// ===== DASHBOARD TYPES =====

type LastTest struct {
	SessionID  uint      `json:"session_id"`
	ModuleName string    `json:"module_name"`
	Score      int       `json:"score"`
	EndTime    time.Time `json:"end_time"`
}

type TrendPoint struct {
	SessionID uint      `json:"session_id"`
	EndTime   time.Time `json:"end_time"`
	Score     int       `json:"score"`
}

type ModuleTrend struct {
	ModuleID   uint         `json:"module_id"`
	ModuleName string       `json:"module_name"`
	Points     []TrendPoint `json:"points"`
}

type DashboardOverview struct {
	DisplayName       string           `json:"display_name"`
	TestsTaken        int              `json:"tests_taken"`
	AverageScore      int              `json:"average_score"`
	BestScore         int              `json:"best_score"`
	LastTest          *LastTest        `json:"last_test,omitempty"`
	StudyStreak       int              `json:"study_streak"`
	Milestones        []Milestone      `json:"milestones"`
	ModuleProgress    []ModuleProgress `json:"module_progress"`
	ScoreTrend        []ModuleTrend    `json:"score_trend"`
	ExamCountdownDays *int             `json:"exam_countdown_days,omitempty"`
}

type HistoryEntry struct {
	SessionID     uint       `json:"session_id"`
	ModuleID      uint       `json:"module_id"`
	ModuleName    string     `json:"module_name"`
	StartTime     time.Time  `json:"start_time"`
	EndTime       *time.Time `json:"end_time"`
	Completed     bool       `json:"completed"`
	Score         *int       `json:"score"`
	CorrectCount  int        `json:"correct_count"`
	QuestionCount int        `json:"question_count"`
	TimeSpent     *int       `json:"time_spent"`
	TimeSpentText string     `json:"time_spent_text,omitempty"`
}

// ===== PROFILE TYPES =====

type UpdateProfileRequest struct {
	FullName     string             `json:"full_name" validate:"max=200"`
	AvatarURL    *string            `json:"avatar_url" validate:"omitempty,url"`
	Preferences  models.Preferences `json:"preferences"`
	NextExamDate *string            `json:"next_exam_date" validate:"omitempty,exam_date"`
}

type ProfileResponse struct {
	ID                string             `json:"id"`
	Email             string             `json:"email"`
	FullName          string             `json:"full_name"`
	AvatarURL         *string            `json:"avatar_url"`
	Preferences       models.Preferences `json:"preferences"`
	NextExamDate      *string            `json:"next_exam_date"`
	ExamCountdownDays *int               `json:"exam_countdown_days,omitempty"`
}

// ===== IMPORT / RECONCILE TYPES =====

type ImportRowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

type ImportResult struct {
	ModulesCreated    int              `json:"modules_created"`
	QuestionsImported int              `json:"questions_imported"`
	Errors            []ImportRowError `json:"errors,omitempty"`
}

type ReconcileResult struct {
	Examined   int `json:"examined"`
	Finalized  int `json:"finalized"`
	Incomplete int `json:"incomplete"`
	Failed     int `json:"failed"`
}
