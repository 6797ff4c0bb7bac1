package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/cfa-prep/study-service/internal/events"
	"github.com/cfa-prep/study-service/internal/models"
	"github.com/cfa-prep/study-service/internal/repositories"
	"github.com/cfa-prep/study-service/internal/repositories/memory"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	repo      repositories.Repository
	publisher *events.MockEventPublisher
	clock     *fakeClock
}

func newTestEnv() *testEnv {
	clock := newFakeClock()
	return &testEnv{
		repo: repositories.NewRepository(
			memory.NewContentStore(),
			memory.NewSessionStore().WithClock(clock.Now),
			memory.NewProfileStore(),
		),
		publisher: events.NewMockEventPublisher(testLogger()),
		clock:     clock,
	}
}

// seedModule stores a module whose questions have choices A, B, C and the
// given correct labels.
func (e *testEnv) seedModule(t *testing.T, name string, correct ...string) *models.Module {
	t.Helper()
	return e.seedModuleWithSlug(t, name, Slugify(name), correct...)
}

func (e *testEnv) seedModuleWithSlug(t *testing.T, name, slug string, correct ...string) *models.Module {
	t.Helper()
	ctx := context.Background()

	module := &models.Module{Name: name, Slug: slug}
	require.NoError(t, e.repo.Content().CreateModule(ctx, module))

	if len(correct) == 0 {
		return module
	}
	questions := make([]*models.Question, len(correct))
	for i, label := range correct {
		questions[i] = &models.Question{
			ModuleID:      module.ID,
			Text:          fmt.Sprintf("%s question %d", name, i+1),
			CorrectAnswer: label,
			Explanation:   "See the reading.",
			Choices: []models.QuestionChoice{
				{Label: "A", Text: "first"},
				{Label: "B", Text: "second"},
				{Label: "C", Text: "third"},
			},
		}
	}
	require.NoError(t, e.repo.Content().CreateQuestions(ctx, questions))
	return module
}

// recordSession stores a finalized session with one answer per entry of
// correct, ending at end after spent seconds.
func (e *testEnv) recordSession(t *testing.T, userID string, moduleID uint, end time.Time, spent int, correct ...bool) *models.TestSession {
	t.Helper()
	session := e.recordPartial(t, userID, moduleID, len(correct), end.Add(-time.Duration(spent)*time.Second), correct[:len(correct)-1]...)

	hits := 0
	for _, c := range correct {
		if c {
			hits++
		}
	}
	last := &models.AnswerRecord{
		TestSessionID:  session.ID,
		QuestionID:     uint(len(correct)),
		UserID:         userID,
		SelectedAnswer: "A",
		IsCorrect:      correct[len(correct)-1],
		AnsweredAt:     end,
	}
	require.NoError(t, e.repo.Session().Finalize(context.Background(), last, models.Finalization{
		Score:     RoundPercent(hits, len(correct)),
		EndTime:   end,
		TimeSpent: spent,
	}))
	return session
}

// recordPartial stores an unfinalized session of questionCount questions
// holding the given answers.
func (e *testEnv) recordPartial(t *testing.T, userID string, moduleID uint, questionCount int, start time.Time, correct ...bool) *models.TestSession {
	t.Helper()
	ctx := context.Background()

	session := &models.TestSession{
		UserID:        userID,
		ModuleID:      moduleID,
		QuestionCount: questionCount,
		StartTime:     start,
	}
	require.NoError(t, e.repo.Session().Create(ctx, session))

	for i, c := range correct {
		require.NoError(t, e.repo.Session().CreateAnswer(ctx, &models.AnswerRecord{
			TestSessionID:  session.ID,
			QuestionID:     uint(i + 1),
			UserID:         userID,
			SelectedAnswer: "A",
			IsCorrect:      c,
			AnsweredAt:     start.Add(time.Duration(i+1) * 10 * time.Second),
		}))
	}
	return session
}
