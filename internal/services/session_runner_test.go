package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cfa-prep/study-service/internal/models"
	"github.com/cfa-prep/study-service/internal/repositories"
	"github.com/cfa-prep/study-service/internal/repositories/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// buildQuestions returns questions with ids 1..N and choices A, B, C whose
// correct answers are the given labels.
func buildQuestions(correct ...string) []*models.Question {
	questions := make([]*models.Question, len(correct))
	for i, label := range correct {
		id := uint(i + 1)
		questions[i] = &models.Question{
			ID:            id,
			ModuleID:      1,
			Text:          fmt.Sprintf("Question %d", id),
			CorrectAnswer: label,
			Explanation:   fmt.Sprintf("Because %s", label),
			Choices: []models.QuestionChoice{
				{Label: "A", Text: "first"},
				{Label: "B", Text: "second"},
				{Label: "C", Text: "third"},
			},
		}
	}
	return questions
}

type mockRecorder struct {
	mock.Mock
	nextID uint
}

func (m *mockRecorder) Create(ctx context.Context, session *models.TestSession) error {
	args := m.Called(ctx, session)
	if args.Error(0) == nil {
		m.nextID++
		session.ID = m.nextID
	}
	return args.Error(0)
}

func (m *mockRecorder) CreateAnswer(ctx context.Context, answer *models.AnswerRecord) error {
	args := m.Called(ctx, answer)
	return args.Error(0)
}

func (m *mockRecorder) Finalize(ctx context.Context, last *models.AnswerRecord, f models.Finalization) error {
	args := m.Called(ctx, last, f)
	return args.Error(0)
}

func answerAll(t *testing.T, runner *SessionRunner, clock *fakeClock, choices ...string) {
	t.Helper()
	ctx := context.Background()
	for i, choice := range choices {
		require.NoError(t, runner.Select(choice))
		clock.Advance(20 * time.Second)
		_, err := runner.Submit(ctx)
		require.NoError(t, err)
		if i < len(choices)-1 {
			require.NoError(t, runner.Advance())
		}
	}
}

func TestNewSessionRunnerWithoutQuestions(t *testing.T) {
	store := memory.NewSessionStore()

	runner, err := NewSessionRunner("user-1", 1, nil, store, nil)

	assert.Nil(t, runner)
	assert.ErrorIs(t, err, ErrNoQuestions)
	assert.True(t, IsNotFound(err))

	sessions, err := store.ListByUser(context.Background(), "user-1", repositories.SessionFilters{})
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestSessionRunnerScoresCompletedAttempt(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := memory.NewSessionStore()
	runner, err := NewSessionRunner("user-1", 1, buildQuestions("A", "B", "C"), store, clock.Now)
	require.NoError(t, err)
	start := clock.Now()

	// correct, correct, incorrect
	require.NoError(t, runner.Select("A"))
	clock.Advance(15 * time.Second)
	review, err := runner.Submit(ctx)
	require.NoError(t, err)
	assert.True(t, review.IsCorrect)
	require.NoError(t, runner.Advance())

	require.NoError(t, runner.Select("B"))
	clock.Advance(15 * time.Second)
	_, err = runner.Submit(ctx)
	require.NoError(t, err)
	require.NoError(t, runner.Advance())

	require.NoError(t, runner.Select("A"))
	clock.Advance(31*time.Second + 999*time.Millisecond)
	review, err = runner.Submit(ctx)
	require.NoError(t, err)
	assert.False(t, review.IsCorrect)
	assert.Equal(t, "C", review.CorrectAnswer)
	assert.Equal(t, "Because C", review.Explanation)

	assert.Equal(t, RunStateCompleted, runner.State())
	result := runner.Result()
	require.NotNil(t, result)
	assert.Equal(t, 67, result.Score)
	assert.Equal(t, 2, result.CorrectCount)
	assert.Equal(t, 61, result.TimeSpent)

	sessionID, ok := runner.SessionID()
	require.True(t, ok)
	stored, err := store.GetByID(ctx, sessionID)
	require.NoError(t, err)
	require.True(t, stored.IsFinalized())
	assert.Equal(t, 67, *stored.Score)
	assert.Equal(t, 61, *stored.TimeSpent)
	assert.Equal(t, 3, stored.QuestionCount)
	assert.True(t, stored.StartTime.Equal(start))
	assert.True(t, stored.EndTime.Equal(clock.Now()))

	answers, err := store.ListAnswersBySessions(ctx, []uint{sessionID})
	require.NoError(t, err)
	require.Len(t, answers, 3)
	seen := map[uint]bool{}
	for _, a := range answers {
		assert.False(t, seen[a.QuestionID], "question %d answered twice", a.QuestionID)
		seen[a.QuestionID] = true
	}
}

func TestSessionRunnerCompletedAttemptsMatchRoundedScore(t *testing.T) {
	patterns := [][]bool{
		{true},
		{false},
		{true, false},
		{true, true, false},
		{false, false, true, true, true, false, true},
		{true, false, false, false, false, false, false, false},
	}

	for _, pattern := range patterns {
		t.Run(fmt.Sprintf("%v", pattern), func(t *testing.T) {
			clock := newFakeClock()
			store := memory.NewSessionStore()
			correctLabels := make([]string, len(pattern))
			choices := make([]string, len(pattern))
			correctCount := 0
			for i, ok := range pattern {
				correctLabels[i] = "B"
				choices[i] = "C"
				if ok {
					choices[i] = "B"
					correctCount++
				}
			}

			runner, err := NewSessionRunner("user-1", 1, buildQuestions(correctLabels...), store, clock.Now)
			require.NoError(t, err)
			answerAll(t, runner, clock, choices...)

			require.Equal(t, RunStateCompleted, runner.State())
			assert.Equal(t, RoundPercent(correctCount, len(pattern)), runner.Result().Score)

			sessionID, _ := runner.SessionID()
			answers, err := store.ListAnswersBySessions(context.Background(), []uint{sessionID})
			require.NoError(t, err)
			assert.Len(t, answers, len(pattern))
		})
	}
}

func TestSessionRunnerCreatesSessionLazily(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	store := memory.NewSessionStore()
	runner, err := NewSessionRunner("user-1", 1, buildQuestions("A", "B"), store, clock.Now)
	require.NoError(t, err)

	require.NoError(t, runner.Select("C"))
	_, ok := runner.SessionID()
	assert.False(t, ok)
	sessions, err := store.ListByUser(ctx, "user-1", repositories.SessionFilters{})
	require.NoError(t, err)
	assert.Empty(t, sessions)

	_, err = runner.Submit(ctx)
	require.NoError(t, err)

	sessions, err = store.ListByUser(ctx, "user-1", repositories.SessionFilters{})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.False(t, sessions[0].IsFinalized())
}

func TestSessionRunnerSubmitWithoutSelection(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSessionStore()
	runner, err := NewSessionRunner("user-1", 1, buildQuestions("A", "B"), store, nil)
	require.NoError(t, err)

	review, err := runner.Submit(ctx)

	assert.Nil(t, review)
	assert.ErrorIs(t, err, ErrNoAnswerSelected)
	assert.True(t, IsValidation(err))
	assert.Equal(t, RunStateAnswering, runner.State())
	assert.Equal(t, 0, runner.CurrentIndex())

	sessions, err := store.ListByUser(ctx, "user-1", repositories.SessionFilters{})
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestSessionRunnerSelect(t *testing.T) {
	runner, err := NewSessionRunner("user-1", 1, buildQuestions("A", "B"), memory.NewSessionStore(), nil)
	require.NoError(t, err)

	require.NoError(t, runner.Select("A"))
	require.NoError(t, runner.Select("C"))
	assert.Equal(t, "C", runner.Selected())

	err = runner.Select("D")
	assert.True(t, IsValidation(err))
	assert.Equal(t, "C", runner.Selected())

	_, err = runner.Submit(context.Background())
	require.NoError(t, err)

	assert.ErrorIs(t, runner.Select("B"), ErrAnswerLocked)
	assert.Equal(t, "C", runner.Selected())
	assert.True(t, runner.Submitted())

	_, err = runner.Submit(context.Background())
	assert.ErrorIs(t, err, ErrAnswerLocked)
}

func TestSessionRunnerAdvanceRules(t *testing.T) {
	clock := newFakeClock()
	runner, err := NewSessionRunner("user-1", 1, buildQuestions("A", "B"), memory.NewSessionStore(), clock.Now)
	require.NoError(t, err)

	assert.ErrorIs(t, runner.Advance(), ErrInvalidTransition)
	assert.Equal(t, 0, runner.CurrentIndex())

	require.NoError(t, runner.Select("A"))
	_, err = runner.Submit(context.Background())
	require.NoError(t, err)

	require.NoError(t, runner.Advance())
	assert.Equal(t, 1, runner.CurrentIndex())
	assert.Equal(t, "", runner.Selected())
	assert.False(t, runner.Submitted())
	assert.Nil(t, runner.Review())

	require.NoError(t, runner.Select("B"))
	_, err = runner.Submit(context.Background())
	require.NoError(t, err)

	assert.ErrorIs(t, runner.Advance(), ErrRunCompleted)
	assert.Equal(t, 1, runner.CurrentIndex())
	assert.True(t, IsConflict(runner.Select("A")))
}

func TestSessionRunnerAnswerWriteFailureKeepsState(t *testing.T) {
	ctx := context.Background()
	recorder := &mockRecorder{}
	writeErr := errors.New("connection reset")

	recorder.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	recorder.On("CreateAnswer", mock.Anything, mock.Anything).Return(writeErr).Once()
	recorder.On("CreateAnswer", mock.Anything, mock.Anything).Return(nil).Once()

	runner, err := NewSessionRunner("user-1", 1, buildQuestions("A", "B"), recorder, nil)
	require.NoError(t, err)
	require.NoError(t, runner.Select("A"))

	_, err = runner.Submit(ctx)
	require.Error(t, err)
	assert.True(t, IsPersistence(err))
	assert.ErrorIs(t, err, writeErr)
	assert.Equal(t, RunStateAnswering, runner.State())
	assert.Equal(t, 0, runner.CorrectSoFar())
	assert.Equal(t, 0, runner.CurrentIndex())
	assert.Equal(t, "A", runner.Selected())

	review, err := runner.Submit(ctx)
	require.NoError(t, err)
	assert.True(t, review.IsCorrect)
	assert.Equal(t, 1, runner.CorrectSoFar())

	// The session was created once even though the first submit failed.
	recorder.AssertNumberOfCalls(t, "Create", 1)
	recorder.AssertNumberOfCalls(t, "CreateAnswer", 2)
}

func TestSessionRunnerSessionCreateFailure(t *testing.T) {
	recorder := &mockRecorder{}
	recorder.On("Create", mock.Anything, mock.Anything).Return(errors.New("store unavailable")).Once()

	runner, err := NewSessionRunner("user-1", 1, buildQuestions("A"), recorder, nil)
	require.NoError(t, err)
	require.NoError(t, runner.Select("A"))

	_, err = runner.Submit(context.Background())
	assert.True(t, IsPersistence(err))

	_, ok := runner.SessionID()
	assert.False(t, ok)
	recorder.AssertNotCalled(t, "Finalize", mock.Anything, mock.Anything, mock.Anything)
}

func TestSessionRunnerFinalizeFailureStaysUnfinalized(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock()
	recorder := &mockRecorder{}

	recorder.On("Create", mock.Anything, mock.Anything).Return(nil).Once()
	recorder.On("Finalize", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("tx aborted")).Once()
	recorder.On("Finalize", mock.Anything, mock.MatchedBy(func(a *models.AnswerRecord) bool {
		return a.QuestionID == 1 && a.SelectedAnswer == "B"
	}), mock.MatchedBy(func(f models.Finalization) bool {
		return f.Score == 0 && f.TimeSpent == 45
	})).Return(nil).Once()

	runner, err := NewSessionRunner("user-1", 1, buildQuestions("A"), recorder, clock.Now)
	require.NoError(t, err)
	require.NoError(t, runner.Select("B"))
	clock.Advance(30 * time.Second)

	_, err = runner.Submit(ctx)
	require.Error(t, err)
	assert.True(t, IsPersistence(err))
	assert.Equal(t, RunStateAnswering, runner.State())
	assert.Nil(t, runner.Result())

	clock.Advance(15 * time.Second)
	_, err = runner.Submit(ctx)
	require.NoError(t, err)
	assert.Equal(t, RunStateCompleted, runner.State())
	assert.Equal(t, 45, runner.Result().TimeSpent)
	recorder.AssertExpectations(t)
}
