package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cfa-prep/study-service/internal/events"
	"github.com/cfa-prep/study-service/internal/models"
	"github.com/cfa-prep/study-service/internal/repositories"
)

// DashboardSettings controls how streaks are computed
type DashboardSettings struct {
	StreakWindow int
	Location     *time.Location
}

type dashboardService struct {
	repo      repositories.Repository
	publisher events.EventPublisher
	logger    *ServiceLogger
	settings  DashboardSettings
	now       func() time.Time
}

func NewDashboardService(repo repositories.Repository, publisher events.EventPublisher, logger *ServiceLogger, settings DashboardSettings, now func() time.Time) DashboardService {
	if settings.StreakWindow <= 0 {
		settings.StreakWindow = DefaultStreakWindow
	}
	if settings.Location == nil {
		settings.Location = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &dashboardService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		settings:  settings,
		now:       now,
	}
}

func (s *dashboardService) Overview(ctx context.Context, userID string) (overview *DashboardOverview, err error) {
	op := s.logger.WithOperation(ctx, "dashboard.overview", userID)
	defer func() { op.LogResult("dashboard", err) }()

	profile, err := s.repo.Profile().GetByID(ctx, userID)
	if err != nil && !repositories.IsNotFoundError(err) {
		return nil, NewPersistenceError("load profile", err)
	}

	sessions, err := s.repo.Session().ListByUser(ctx, userID, repositories.SessionFilters{
		CompletedOnly: true,
		SortBy:        "end_time",
		SortOrder:     "desc",
	})
	if err != nil {
		return nil, NewPersistenceError("load sessions", err)
	}

	answers, err := s.repo.Session().ListAnswersBySessions(ctx, sessionIDs(sessions))
	if err != nil {
		return nil, NewPersistenceError("load answers", err)
	}

	names, err := s.moduleNames(ctx, sessions)
	if err != nil {
		return nil, err
	}

	now := s.now()
	overview = &DashboardOverview{
		TestsTaken:     len(sessions),
		ModuleProgress: ComputeModuleProgress(sessions, answers),
		ScoreTrend:     scoreTrend(sessions, names),
	}
	for i := range overview.ModuleProgress {
		overview.ModuleProgress[i].ModuleName = names[overview.ModuleProgress[i].ModuleID]
	}

	if profile != nil {
		overview.DisplayName = profile.FullName
		if overview.DisplayName == "" {
			overview.DisplayName = profile.Email
		}
		overview.ExamCountdownDays = ExamCountdown(profile.NextExamDate, now, s.settings.Location)
	}

	sum, scored := 0, 0
	for _, session := range sessions {
		if session.Score == nil {
			continue
		}
		sum += *session.Score
		scored++
		if *session.Score > overview.BestScore {
			overview.BestScore = *session.Score
		}
	}
	if scored > 0 {
		overview.AverageScore = roundHalfUp(sum, scored)
	}

	if len(sessions) > 0 {
		latest := sessions[0]
		overview.LastTest = &LastTest{
			SessionID:  latest.ID,
			ModuleName: names[latest.ModuleID],
			Score:      intValue(latest.Score),
			EndTime:    *latest.EndTime,
		}
	}

	overview.StudyStreak = ComputeStudyStreak(sessions, now, s.settings.Location, s.settings.StreakWindow)
	windowed := len(sessions)
	if windowed > s.settings.StreakWindow {
		windowed = s.settings.StreakWindow
	}
	overview.Milestones = Milestones(overview.StudyStreak, windowed)

	return overview, nil
}

func (s *dashboardService) History(ctx context.Context, userID string) (entries []*HistoryEntry, err error) {
	op := s.logger.WithOperation(ctx, "dashboard.history", userID)
	defer func() { op.LogResult("sessions", err) }()

	sessions, err := s.repo.Session().ListByUser(ctx, userID, repositories.SessionFilters{
		SortBy:    "start_time",
		SortOrder: "desc",
	})
	if err != nil {
		return nil, NewPersistenceError("load sessions", err)
	}

	answers, err := s.repo.Session().ListAnswersBySessions(ctx, sessionIDs(sessions))
	if err != nil {
		return nil, NewPersistenceError("load answers", err)
	}
	correct := make(map[uint]int)
	for _, a := range answers {
		if a.IsCorrect {
			correct[a.TestSessionID]++
		}
	}

	names, err := s.moduleNames(ctx, sessions)
	if err != nil {
		return nil, err
	}

	entries = make([]*HistoryEntry, 0, len(sessions))
	for _, session := range sessions {
		entry := &HistoryEntry{
			SessionID:     session.ID,
			ModuleID:      session.ModuleID,
			ModuleName:    names[session.ModuleID],
			StartTime:     session.StartTime,
			EndTime:       session.EndTime,
			Completed:     session.IsFinalized(),
			Score:         session.Score,
			CorrectCount:  correct[session.ID],
			QuestionCount: session.QuestionCount,
			TimeSpent:     session.TimeSpent,
		}
		if session.TimeSpent != nil {
			entry.TimeSpentText = FormatDuration(*session.TimeSpent)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *dashboardService) DeleteSession(ctx context.Context, userID string, sessionID uint) (err error) {
	op := s.logger.WithOperation(ctx, "dashboard.delete_session", userID)
	defer func() { op.LogResult(fmt.Sprintf("session:%d", sessionID), err) }()

	session, err := s.repo.Session().GetByID(ctx, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrSessionNotFound
		}
		return NewPersistenceError("load session", err)
	}
	if session.UserID != userID {
		return ErrForbidden
	}

	if err := s.repo.Session().Delete(ctx, sessionID); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrSessionNotFound
		}
		return NewPersistenceError("delete session", err)
	}

	event := events.NewSessionDeletedEvent(userID, events.SessionDeletedEvent{
		SessionID: sessionID,
		ModuleID:  session.ModuleID,
		DeletedAt: s.now().UTC(),
	})
	if pubErr := s.publisher.Publish(ctx, event); pubErr != nil {
		s.logger.Logger().Warn("Failed to publish session deleted event",
			"session_id", sessionID,
			"error", pubErr)
	}
	return nil
}

func (s *dashboardService) moduleNames(ctx context.Context, sessions []*models.TestSession) (map[uint]string, error) {
	seen := make(map[uint]bool)
	var ids []uint
	for _, session := range sessions {
		if !seen[session.ModuleID] {
			seen[session.ModuleID] = true
			ids = append(ids, session.ModuleID)
		}
	}

	names := make(map[uint]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	modules, err := s.repo.Content().GetModulesByIDs(ctx, ids)
	if err != nil {
		return nil, NewPersistenceError("load modules", err)
	}
	for _, m := range modules {
		names[m.ID] = m.Name
	}
	return names, nil
}

// scoreTrend lists each module's finalized scores from oldest to newest.
func scoreTrend(sessions []*models.TestSession, names map[uint]string) []ModuleTrend {
	byModule := make(map[uint]*ModuleTrend)
	for _, session := range sessions {
		if session.EndTime == nil || session.Score == nil {
			continue
		}
		trend, ok := byModule[session.ModuleID]
		if !ok {
			trend = &ModuleTrend{ModuleID: session.ModuleID, ModuleName: names[session.ModuleID]}
			byModule[session.ModuleID] = trend
		}
		trend.Points = append(trend.Points, TrendPoint{
			SessionID: session.ID,
			EndTime:   *session.EndTime,
			Score:     *session.Score,
		})
	}

	out := make([]ModuleTrend, 0, len(byModule))
	for _, trend := range byModule {
		sort.Slice(trend.Points, func(i, j int) bool {
			if trend.Points[i].EndTime.Equal(trend.Points[j].EndTime) {
				return trend.Points[i].SessionID < trend.Points[j].SessionID
			}
			return trend.Points[i].EndTime.Before(trend.Points[j].EndTime)
		})
		out = append(out, *trend)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModuleID < out[j].ModuleID })
	return out
}

func sessionIDs(sessions []*models.TestSession) []uint {
	ids := make([]uint, len(sessions))
	for i, s := range sessions {
		ids[i] = s.ID
	}
	return ids
}

func roundHalfUp(sum, n int) int {
	if n <= 0 {
		return 0
	}
	return (2*sum + n) / (2 * n)
}

func intValue(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
