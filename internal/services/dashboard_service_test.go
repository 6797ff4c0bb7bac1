package services

import (
	"context"
	"testing"
	"time"

	"github.com/cfa-prep/study-service/internal/events"
	"github.com/cfa-prep/study-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

type dashboardFixture struct {
	env        *testEnv
	svc        DashboardService
	economics  *models.Module
	derivs     *models.Module
	sessions   []*models.TestSession
	incomplete *models.TestSession
}

// newDashboardFixture stores three completed sessions on consecutive days
// ending today, one unfinished session and another user's session.
func newDashboardFixture(t *testing.T) *dashboardFixture {
	env := newTestEnv()
	f := &dashboardFixture{
		env:       env,
		svc:       NewDashboardService(env.repo, env.publisher, NewServiceLogger(testLogger(), "dashboard"), DashboardSettings{}, env.clock.Now),
		economics: env.seedModule(t, "Economics"),
		derivs:    env.seedModule(t, "Derivatives"),
	}

	exam := time.Date(2026, 5, 20, 0, 0, 0, 0, time.UTC)
	require.NoError(t, env.repo.Profile().Upsert(context.Background(), &models.Profile{
		ID:           "user-1",
		Email:        "candidate@example.com",
		Preferences:  datatypes.JSON("{}"),
		NextExamDate: &exam,
	}))

	f.sessions = []*models.TestSession{
		env.recordSession(t, "user-1", f.economics.ID, time.Date(2026, 5, 2, 15, 0, 0, 0, time.UTC), 120, true, true, false),
		env.recordSession(t, "user-1", f.economics.ID, time.Date(2026, 5, 3, 9, 0, 0, 0, time.UTC), 60, true, true, true),
		env.recordSession(t, "user-1", f.derivs.ID, time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC), 30, true, false),
	}
	f.incomplete = env.recordPartial(t, "user-1", f.derivs.ID, 4, time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC), true)
	env.recordSession(t, "user-2", f.economics.ID, time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC), 10, false)
	return f
}

func TestDashboardOverview(t *testing.T) {
	f := newDashboardFixture(t)

	overview, err := f.svc.Overview(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, "candidate@example.com", overview.DisplayName)
	assert.Equal(t, 3, overview.TestsTaken)
	assert.Equal(t, 72, overview.AverageScore)
	assert.Equal(t, 100, overview.BestScore)
	require.NotNil(t, overview.LastTest)
	assert.Equal(t, f.sessions[2].ID, overview.LastTest.SessionID)
	assert.Equal(t, "Derivatives", overview.LastTest.ModuleName)
	assert.Equal(t, 50, overview.LastTest.Score)

	assert.Equal(t, 3, overview.StudyStreak)
	assert.Empty(t, overview.Milestones)

	require.Len(t, overview.ModuleProgress, 2)
	econ := overview.ModuleProgress[0]
	assert.Equal(t, "Economics", econ.ModuleName)
	assert.Equal(t, 6, econ.TotalQuestions)
	assert.Equal(t, 5, econ.TotalCorrect)
	assert.Equal(t, 180, econ.TotalTime)
	assert.InDelta(t, 83.33, econ.Percentage, 0.01)
	derivs := overview.ModuleProgress[1]
	assert.Equal(t, 2, derivs.TotalQuestions)
	assert.Equal(t, 1, derivs.TotalCorrect)
	assert.InDelta(t, 50.0, derivs.Percentage, 0.001)

	require.Len(t, overview.ScoreTrend, 2)
	require.Len(t, overview.ScoreTrend[0].Points, 2)
	assert.Equal(t, 67, overview.ScoreTrend[0].Points[0].Score)
	assert.Equal(t, 100, overview.ScoreTrend[0].Points[1].Score)

	require.NotNil(t, overview.ExamCountdownDays)
	assert.Equal(t, 15, *overview.ExamCountdownDays)
}

func TestDashboardOverviewForNewUser(t *testing.T) {
	env := newTestEnv()
	svc := NewDashboardService(env.repo, env.publisher, NewServiceLogger(testLogger(), "dashboard"), DashboardSettings{}, env.clock.Now)

	overview, err := svc.Overview(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, 0, overview.TestsTaken)
	assert.Equal(t, 0, overview.AverageScore)
	assert.Nil(t, overview.LastTest)
	assert.Equal(t, 0, overview.StudyStreak)
	assert.Empty(t, overview.ModuleProgress)
	assert.Nil(t, overview.ExamCountdownDays)
}

func TestDashboardOverviewPrefersFullName(t *testing.T) {
	f := newDashboardFixture(t)
	ctx := context.Background()

	profile, err := f.env.repo.Profile().GetByID(ctx, "user-1")
	require.NoError(t, err)
	profile.FullName = "Ada Candidate"
	require.NoError(t, f.env.repo.Profile().Update(ctx, profile))

	overview, err := f.svc.Overview(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "Ada Candidate", overview.DisplayName)
}

func TestDashboardMilestones(t *testing.T) {
	env := newTestEnv()
	svc := NewDashboardService(env.repo, env.publisher, NewServiceLogger(testLogger(), "dashboard"), DashboardSettings{}, env.clock.Now)
	module := env.seedModule(t, "Economics")

	today := time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		env.recordSession(t, "user-1", module.ID, today.AddDate(0, 0, -i), 60, true)
	}

	overview, err := svc.Overview(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, 10, overview.StudyStreak)
	assert.Equal(t, []Milestone{MilestoneWeekStreak, MilestoneTenSessions}, overview.Milestones)
}

func TestDashboardHistory(t *testing.T) {
	f := newDashboardFixture(t)

	entries, err := f.svc.History(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, entries, 4)

	assert.Equal(t, f.incomplete.ID, entries[0].SessionID)
	assert.False(t, entries[0].Completed)
	assert.Nil(t, entries[0].Score)
	assert.Equal(t, 1, entries[0].CorrectCount)
	assert.Equal(t, 4, entries[0].QuestionCount)
	assert.Empty(t, entries[0].TimeSpentText)

	assert.Equal(t, f.sessions[2].ID, entries[1].SessionID)
	assert.Equal(t, "0 min 30 sec", entries[1].TimeSpentText)

	oldest := entries[3]
	assert.Equal(t, f.sessions[0].ID, oldest.SessionID)
	assert.True(t, oldest.Completed)
	assert.Equal(t, "Economics", oldest.ModuleName)
	assert.Equal(t, 2, oldest.CorrectCount)
	assert.Equal(t, 67, *oldest.Score)
	assert.Equal(t, "2 min 0 sec", oldest.TimeSpentText)
}

func TestDashboardDeleteSession(t *testing.T) {
	f := newDashboardFixture(t)
	ctx := context.Background()
	target := f.sessions[1]

	err := f.svc.DeleteSession(ctx, "user-2", target.ID)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.True(t, IsForbidden(err))

	assert.ErrorIs(t, f.svc.DeleteSession(ctx, "user-1", 9999), ErrSessionNotFound)

	require.NoError(t, f.svc.DeleteSession(ctx, "user-1", target.ID))

	answers, err := f.env.repo.Session().ListAnswersBySessions(ctx, []uint{target.ID})
	require.NoError(t, err)
	assert.Empty(t, answers)

	overview, err := f.svc.Overview(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 2, overview.TestsTaken)
	assert.Equal(t, 67, overview.BestScore)
	assert.Equal(t, 3, overview.ModuleProgress[0].TotalQuestions)
	assert.Equal(t, 2, overview.ModuleProgress[0].TotalCorrect)

	deleted := f.env.publisher.EventsOfType(events.EventSessionDeleted)
	require.Len(t, deleted, 1)
	assert.Equal(t, "user-1", deleted[0].UserID)
}
