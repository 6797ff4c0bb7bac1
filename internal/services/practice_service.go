package services

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cfa-prep/study-service/internal/events"
	"github.com/cfa-prep/study-service/internal/models"
	"github.com/cfa-prep/study-service/internal/repositories"
	"github.com/cfa-prep/study-service/pkg/monitoring"
	"github.com/google/uuid"
)

// activeRun is one registered runner. mu serializes every operation on
// the runner; lastActive is read without it by eviction.
type activeRun struct {
	mu         sync.Mutex
	id         string
	userID     string
	module     *models.Module
	runner     *SessionRunner
	lastActive atomic.Int64
}

func (r *activeRun) touch(now time.Time) {
	r.lastActive.Store(now.UnixNano())
}

type practiceService struct {
	repo      repositories.Repository
	publisher events.EventPublisher
	logger    *ServiceLogger
	now       func() time.Time

	mu     sync.Mutex
	runs   map[string]*activeRun
	byUser map[string]string
}

func NewPracticeService(repo repositories.Repository, publisher events.EventPublisher, logger *ServiceLogger, now func() time.Time) PracticeService {
	if now == nil {
		now = time.Now
	}
	return &practiceService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		now:       now,
		runs:      make(map[string]*activeRun),
		byUser:    make(map[string]string),
	}
}

func (s *practiceService) Start(ctx context.Context, userID, moduleSlug string) (view *RunView, err error) {
	op := s.logger.WithOperation(ctx, "practice.start", userID)
	defer func() { op.LogResult("module:"+moduleSlug, err) }()

	module, err := s.findModule(ctx, moduleSlug)
	if err != nil {
		return nil, err
	}

	questions, err := s.repo.Content().GetQuestionsByModule(ctx, module.ID)
	if err != nil {
		return nil, NewPersistenceError("load questions", err)
	}

	runner, err := NewSessionRunner(userID, module.ID, questions, s.repo.Session(), s.now)
	if err != nil {
		return nil, err
	}

	run := &activeRun{
		id:     uuid.NewString(),
		userID: userID,
		module: module,
		runner: runner,
	}
	run.touch(s.now())

	s.mu.Lock()
	if previous, ok := s.byUser[userID]; ok {
		delete(s.runs, previous)
		s.logger.Logger().Info("Abandoning previous practice run",
			"user_id", userID,
			"run_id", previous)
	}
	s.runs[run.id] = run
	s.byUser[userID] = run.id
	active := len(s.runs)
	s.mu.Unlock()

	monitoring.ActiveRuns.Set(float64(active))

	return buildRunView(run), nil
}

// findModule resolves a slug, falling back to a module whose name matches
// the slug with dashes read as spaces.
func (s *practiceService) findModule(ctx context.Context, slug string) (*models.Module, error) {
	module, err := s.repo.Content().GetModuleBySlug(ctx, slug)
	if err == nil {
		return module, nil
	}
	if !repositories.IsNotFoundError(err) {
		return nil, NewPersistenceError("load module", err)
	}

	module, err = s.repo.Content().GetModuleByName(ctx, Deslugify(slug))
	if err == nil {
		return module, nil
	}
	if repositories.IsNotFoundError(err) {
		return nil, ErrModuleNotFound
	}
	return nil, NewPersistenceError("load module", err)
}

func (s *practiceService) Get(ctx context.Context, userID, runID string) (*RunView, error) {
	run, err := s.lookup(userID, runID)
	if err != nil {
		return nil, err
	}

	run.mu.Lock()
	defer run.mu.Unlock()
	return buildRunView(run), nil
}

func (s *practiceService) Select(ctx context.Context, userID, runID, choice string) (*RunView, error) {
	run, err := s.lookup(userID, runID)
	if err != nil {
		return nil, err
	}

	run.mu.Lock()
	defer run.mu.Unlock()

	run.touch(s.now())
	if err := run.runner.Select(choice); err != nil {
		return nil, err
	}
	return buildRunView(run), nil
}

func (s *practiceService) Submit(ctx context.Context, userID, runID string) (view *RunView, err error) {
	op := s.logger.WithOperation(ctx, "practice.submit", userID)
	defer func() { op.LogResult("run:"+runID, err) }()

	run, err := s.lookup(userID, runID)
	if err != nil {
		return nil, err
	}

	run.mu.Lock()
	defer run.mu.Unlock()

	run.touch(s.now())
	review, err := run.runner.Submit(ctx)
	if err != nil {
		return nil, err
	}

	monitoring.RecordAnswer(review.IsCorrect)
	if result := run.runner.Result(); result != nil {
		monitoring.RecordCompletion(result.Score)
		s.publishCompleted(ctx, run, result)
	}
	return buildRunView(run), nil
}

func (s *practiceService) Advance(ctx context.Context, userID, runID string) (*RunView, error) {
	run, err := s.lookup(userID, runID)
	if err != nil {
		return nil, err
	}

	run.mu.Lock()
	defer run.mu.Unlock()

	run.touch(s.now())
	if err := run.runner.Advance(); err != nil {
		return nil, err
	}
	return buildRunView(run), nil
}

func (s *practiceService) Abandon(ctx context.Context, userID, runID string) error {
	s.mu.Lock()
	run, ok := s.runs[runID]
	if !ok || run.userID != userID {
		s.mu.Unlock()
		return ErrRunNotFound
	}
	s.removeLocked(run)
	active := len(s.runs)
	s.mu.Unlock()

	monitoring.ActiveRuns.Set(float64(active))
	s.logger.Logger().Info("Practice run abandoned", "user_id", userID, "run_id", runID)
	return nil
}

func (s *practiceService) EvictIdle(idle time.Duration) int {
	cutoff := s.now().Add(-idle).UnixNano()

	s.mu.Lock()
	evicted := 0
	for _, run := range s.runs {
		if run.lastActive.Load() < cutoff {
			s.removeLocked(run)
			evicted++
		}
	}
	active := len(s.runs)
	s.mu.Unlock()

	if evicted > 0 {
		monitoring.RunsEvicted.Add(float64(evicted))
		s.logger.Logger().Info("Evicted idle practice runs", "count", evicted, "idle", idle.String())
	}
	monitoring.ActiveRuns.Set(float64(active))
	return evicted
}

func (s *practiceService) ActiveRuns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runs)
}

// lookup returns the caller's run. Runs owned by someone else are reported
// as missing.
func (s *practiceService) lookup(userID, runID string) (*activeRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok || run.userID != userID {
		return nil, ErrRunNotFound
	}
	return run, nil
}

func (s *practiceService) removeLocked(run *activeRun) {
	delete(s.runs, run.id)
	if s.byUser[run.userID] == run.id {
		delete(s.byUser, run.userID)
	}
}

func (s *practiceService) publishCompleted(ctx context.Context, run *activeRun, result *RunResult) {
	event := events.NewSessionCompletedEvent(run.userID, events.SessionCompletedEvent{
		SessionID:     result.SessionID,
		ModuleID:      run.module.ID,
		Score:         result.Score,
		CorrectCount:  result.CorrectCount,
		QuestionCount: result.QuestionCount,
		TimeSpent:     result.TimeSpent,
		EndTime:       result.EndTime,
	})
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Logger().Warn("Failed to publish session completed event",
			"session_id", result.SessionID,
			"error", err)
	}
}

func buildRunView(run *activeRun) *RunView {
	r := run.runner
	q := r.CurrentQuestion()

	choices := make([]ChoiceView, len(q.Choices))
	for i, c := range q.Choices {
		choices[i] = ChoiceView{Label: c.Label, Text: c.Text}
	}

	view := &RunView{
		RunID:         run.id,
		ModuleID:      run.module.ID,
		ModuleName:    run.module.Name,
		ModuleSlug:    run.module.Slug,
		State:         r.State(),
		QuestionIndex: r.CurrentIndex(),
		QuestionCount: r.QuestionCount(),
		Question: QuestionView{
			ID:      q.ID,
			Text:    q.Text,
			Choices: choices,
		},
		Selected:     r.Selected(),
		Submitted:    r.Submitted(),
		CorrectSoFar: r.CorrectSoFar(),
		StartedAt:    r.StartedAt(),
		Review:       r.Review(),
		Result:       r.Result(),
	}
	if id, ok := r.SessionID(); ok {
		view.SessionID = &id
	}
	return view
}

// Slugify turns a module name into its URL form
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// Deslugify reads dashes in a slug as spaces
func Deslugify(slug string) string {
	return strings.ReplaceAll(slug, "-", " ")
}
