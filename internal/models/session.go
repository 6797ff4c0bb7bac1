package models

import "time"

// TestSession is one practice-test attempt. EndTime, Score and TimeSpent are
// set together when the attempt is finalized and are nil before that.
type TestSession struct {
	ID            uint       `json:"id" gorm:"primaryKey"`
	UserID        string     `json:"user_id" gorm:"not null;size:64;index"`
	ModuleID      uint       `json:"module_id" gorm:"not null;index"`
	QuestionCount int        `json:"question_count" gorm:"not null"`
	StartTime     time.Time  `json:"start_time" gorm:"not null"`
	EndTime       *time.Time `json:"end_time" gorm:"index"`
	Score         *int       `json:"score"`
	TimeSpent     *int       `json:"time_spent"`
	CreatedAt     time.Time  `json:"created_at"`

	// Relations
	Module  *Module        `json:"module,omitempty" gorm:"foreignKey:ModuleID"`
	Answers []AnswerRecord `json:"-" gorm:"foreignKey:TestSessionID;constraint:OnDelete:CASCADE"`
}

func (TestSession) TableName() string {
	return "test_sessions"
}

// IsFinalized reports whether the session has been stamped with its result.
func (s *TestSession) IsFinalized() bool {
	return s.EndTime != nil
}

// AnswerRecord is one submitted answer. There is at most one per
// (session, question).
type AnswerRecord struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	TestSessionID  uint      `json:"test_session_id" gorm:"not null;uniqueIndex:idx_session_question"`
	QuestionID     uint      `json:"question_id" gorm:"not null;uniqueIndex:idx_session_question"`
	UserID         string    `json:"user_id" gorm:"not null;size:64;index"`
	SelectedAnswer string    `json:"selected_answer" gorm:"not null;size:8"`
	IsCorrect      bool      `json:"is_correct"`
	AnsweredAt     time.Time `json:"answered_at" gorm:"not null"`
}

func (AnswerRecord) TableName() string {
	return "test_answers"
}

// Finalization carries the values written when a session completes.
type Finalization struct {
	Score     int
	EndTime   time.Time
	TimeSpent int
}
