package services

import (
	"context"
	"time"

	"github.com/cfa-prep/study-service/internal/models"
)

// RunState is where a runner stands on its current question
type RunState string

const (
	RunStateAnswering RunState = "answering"
	RunStateReviewing RunState = "reviewing"
	RunStateCompleted RunState = "completed"
)

// SessionRecorder is the part of the session store a runner writes to
type SessionRecorder interface {
	Create(ctx context.Context, session *models.TestSession) error
	CreateAnswer(ctx context.Context, answer *models.AnswerRecord) error
	Finalize(ctx context.Context, last *models.AnswerRecord, f models.Finalization) error
}

// SessionRunner drives one practice attempt over a fixed question order.
//
// The test session row is created by the first successful submit and
// finalized by the last one, together with the last answer. In-memory
// progress only moves after the store has confirmed the write, so a failed
// submit can be retried with the same selection.
//
// A SessionRunner is not safe for concurrent use.
type SessionRunner struct {
	userID    string
	moduleID  uint
	questions []*models.Question
	store     SessionRecorder
	now       func() time.Time

	state     RunState
	index     int
	selected  string
	submitted bool
	sessionID uint
	correct   int
	startedAt time.Time
	review    *Review
	result    *RunResult
}

// Review is what the user sees after submitting a question.
type Review struct {
	QuestionID    uint   `json:"question_id"`
	Selected      string `json:"selected"`
	IsCorrect     bool   `json:"is_correct"`
	CorrectAnswer string `json:"correct_answer"`
	Explanation   string `json:"explanation"`
}

// RunResult is the finalized outcome of a completed attempt.
type RunResult struct {
	SessionID     uint      `json:"session_id"`
	Score         int       `json:"score"`
	CorrectCount  int       `json:"correct_count"`
	QuestionCount int       `json:"question_count"`
	TimeSpent     int       `json:"time_spent"`
	EndTime       time.Time `json:"end_time"`
}

// NewSessionRunner starts an attempt. startedAt is taken from now at
// construction; no record is written until the first submit.
func NewSessionRunner(userID string, moduleID uint, questions []*models.Question, store SessionRecorder, now func() time.Time) (*SessionRunner, error) {
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	if now == nil {
		now = time.Now
	}
	return &SessionRunner{
		userID:    userID,
		moduleID:  moduleID,
		questions: questions,
		store:     store,
		now:       now,
		state:     RunStateAnswering,
		startedAt: now(),
	}, nil
}

// State returns the runner's current state.
func (r *SessionRunner) State() RunState { return r.state }

// CurrentIndex is the zero-based position of the current question.
func (r *SessionRunner) CurrentIndex() int { return r.index }

// QuestionCount is the number of questions fixed at construction.
func (r *SessionRunner) QuestionCount() int { return len(r.questions) }

// CorrectSoFar counts the correct answers confirmed by the store.
func (r *SessionRunner) CorrectSoFar() int { return r.correct }

// Selected returns the pending choice label, empty when none is set.
func (r *SessionRunner) Selected() string { return r.selected }

// Submitted reports whether the current question has been answered.
func (r *SessionRunner) Submitted() bool { return r.submitted }

// StartedAt is when the runner was created.
func (r *SessionRunner) StartedAt() time.Time { return r.startedAt }

// SessionID returns the stored session id and whether one exists yet.
func (r *SessionRunner) SessionID() (uint, bool) { return r.sessionID, r.sessionID != 0 }

// CurrentQuestion returns the question being answered or reviewed.
func (r *SessionRunner) CurrentQuestion() *models.Question { return r.questions[r.index] }

// Review returns the feedback for the current question once submitted.
func (r *SessionRunner) Review() *Review { return r.review }

// Result returns the finalized outcome once the attempt is completed.
func (r *SessionRunner) Result() *RunResult { return r.result }

// Select sets the pending choice for the current question.
func (r *SessionRunner) Select(label string) error {
	switch r.state {
	case RunStateCompleted:
		return ErrRunCompleted
	case RunStateReviewing:
		return ErrAnswerLocked
	}

	q := r.CurrentQuestion()
	if !q.HasChoice(label) {
		return ValidationErrors{*NewValidationError("choice", "is not one of the question's choices", label)}
	}
	r.selected = label
	return nil
}

// Submit records the pending choice. On the last question it also
// finalizes the session with the score and elapsed time.
func (r *SessionRunner) Submit(ctx context.Context) (*Review, error) {
	switch r.state {
	case RunStateCompleted:
		return nil, ErrRunCompleted
	case RunStateReviewing:
		return nil, ErrAnswerLocked
	}
	if r.selected == "" {
		return nil, ErrNoAnswerSelected
	}

	q := r.CurrentQuestion()
	isCorrect := r.selected == q.CorrectAnswer
	now := r.now()

	if r.sessionID == 0 {
		session := &models.TestSession{
			UserID:        r.userID,
			ModuleID:      r.moduleID,
			QuestionCount: len(r.questions),
			StartTime:     r.startedAt,
		}
		if err := r.store.Create(ctx, session); err != nil {
			return nil, NewPersistenceError("create test session", err)
		}
		// The row exists now; a retry must reuse it rather than create another.
		r.sessionID = session.ID
	}

	answer := &models.AnswerRecord{
		TestSessionID:  r.sessionID,
		QuestionID:     q.ID,
		UserID:         r.userID,
		SelectedAnswer: r.selected,
		IsCorrect:      isCorrect,
		AnsweredAt:     now,
	}

	correct := r.correct
	if isCorrect {
		correct++
	}

	last := r.index == len(r.questions)-1
	var result *RunResult
	if last {
		f := models.Finalization{
			Score:     RoundPercent(correct, len(r.questions)),
			EndTime:   now,
			TimeSpent: ElapsedSeconds(r.startedAt, now),
		}
		if err := r.store.Finalize(ctx, answer, f); err != nil {
			return nil, NewPersistenceError("finalize test session", err)
		}
		result = &RunResult{
			SessionID:     r.sessionID,
			Score:         f.Score,
			CorrectCount:  correct,
			QuestionCount: len(r.questions),
			TimeSpent:     f.TimeSpent,
			EndTime:       f.EndTime,
		}
	} else if err := r.store.CreateAnswer(ctx, answer); err != nil {
		return nil, NewPersistenceError("record answer", err)
	}

	r.correct = correct
	r.submitted = true
	r.review = &Review{
		QuestionID:    q.ID,
		Selected:      r.selected,
		IsCorrect:     isCorrect,
		CorrectAnswer: q.CorrectAnswer,
		Explanation:   q.Explanation,
	}
	if last {
		r.state = RunStateCompleted
		r.result = result
	} else {
		r.state = RunStateReviewing
	}
	return r.review, nil
}

// Advance moves from a reviewed question to the next one.
func (r *SessionRunner) Advance() error {
	switch {
	case r.state == RunStateCompleted:
		return ErrRunCompleted
	case r.state != RunStateReviewing:
		return ErrInvalidTransition
	case r.index >= len(r.questions)-1:
		return ErrInvalidTransition
	}

	r.index++
	r.selected = ""
	r.submitted = false
	r.review = nil
	r.state = RunStateAnswering
	return nil
}
