package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cfa-prep/study-service/internal/models"
	"github.com/cfa-prep/study-service/internal/repositories"
)

// SessionStore is an in-memory SessionRepository
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[uint]*models.TestSession
	answers  map[uint][]*models.AnswerRecord
	nextID   uint
	answerID uint
	now      func() time.Time
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[uint]*models.TestSession),
		answers:  make(map[uint][]*models.AnswerRecord),
		now:      time.Now,
	}
}

// WithClock sets the clock used to stamp CreatedAt
func (s *SessionStore) WithClock(now func() time.Time) *SessionStore {
	s.now = now
	return s
}

func (s *SessionStore) Create(ctx context.Context, session *models.TestSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	session.ID = s.nextID
	if session.CreatedAt.IsZero() {
		session.CreatedAt = s.now()
	}
	s.sessions[session.ID] = copySession(session)
	return nil
}

func (s *SessionStore) GetByID(ctx context.Context, id uint) (*models.TestSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return nil, repositories.ErrRecordNotFound
	}
	return copySession(session), nil
}

func (s *SessionStore) ListByUser(ctx context.Context, userID string, filters repositories.SessionFilters) ([]*models.TestSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.TestSession
	for _, session := range s.sessions {
		if session.UserID != userID {
			continue
		}
		if filters.CompletedOnly && session.EndTime == nil {
			continue
		}
		if filters.ModuleID != nil && session.ModuleID != *filters.ModuleID {
			continue
		}
		out = append(out, copySession(session))
	}

	asc := filters.SortOrder == "asc"
	key := sortKey(filters.SortBy)
	sort.Slice(out, func(i, j int) bool {
		ki, kj := key(out[i]), key(out[j])
		switch {
		case ki == nil && kj == nil:
		case ki == nil:
			return false
		case kj == nil:
			return true
		case !ki.Equal(*kj):
			if asc {
				return ki.Before(*kj)
			}
			return ki.After(*kj)
		}
		if asc {
			return out[i].ID < out[j].ID
		}
		return out[i].ID > out[j].ID
	})

	if filters.Limit > 0 && len(out) > filters.Limit {
		out = out[:filters.Limit]
	}
	return out, nil
}

func sortKey(sortBy string) func(*models.TestSession) *time.Time {
	switch sortBy {
	case "start_time":
		return func(s *models.TestSession) *time.Time { return &s.StartTime }
	case "created_at":
		return func(s *models.TestSession) *time.Time { return &s.CreatedAt }
	default:
		return func(s *models.TestSession) *time.Time { return s.EndTime }
	}
}

func (s *SessionStore) Delete(ctx context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return repositories.ErrRecordNotFound
	}
	delete(s.sessions, id)
	delete(s.answers, id)
	return nil
}

func (s *SessionStore) CreateAnswer(ctx context.Context, answer *models.AnswerRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.insertAnswer(answer)
}

func (s *SessionStore) insertAnswer(answer *models.AnswerRecord) error {
	if _, ok := s.sessions[answer.TestSessionID]; !ok {
		return repositories.ErrRecordNotFound
	}
	for _, existing := range s.answers[answer.TestSessionID] {
		if existing.QuestionID == answer.QuestionID {
			return repositories.ErrDuplicate
		}
	}
	s.answerID++
	answer.ID = s.answerID
	cp := *answer
	s.answers[answer.TestSessionID] = append(s.answers[answer.TestSessionID], &cp)
	return nil
}

func (s *SessionStore) ListAnswersBySessions(ctx context.Context, sessionIDs []uint) ([]*models.AnswerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := append([]uint(nil), sessionIDs...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := []*models.AnswerRecord{}
	seen := make(map[uint]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		for _, a := range s.answers[id] {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *SessionStore) Finalize(ctx context.Context, last *models.AnswerRecord, f models.Finalization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[last.TestSessionID]
	if !ok {
		return repositories.ErrRecordNotFound
	}
	if session.EndTime != nil {
		return repositories.ErrAlreadyFinalized
	}
	if err := s.insertAnswer(last); err != nil {
		return err
	}
	stamp(session, f)
	return nil
}

func (s *SessionStore) FinalizeSession(ctx context.Context, sessionID uint, f models.Finalization) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return repositories.ErrRecordNotFound
	}
	if session.EndTime != nil {
		return repositories.ErrAlreadyFinalized
	}
	stamp(session, f)
	return nil
}

func (s *SessionStore) ListUnfinalized(ctx context.Context, createdBefore time.Time, afterID uint, limit int) ([]*models.TestSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.TestSession
	for _, session := range s.sessions {
		if session.EndTime == nil && session.ID > afterID && session.CreatedAt.Before(createdBefore) {
			out = append(out, copySession(session))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func stamp(session *models.TestSession, f models.Finalization) {
	end := f.EndTime
	score := f.Score
	spent := f.TimeSpent
	session.EndTime = &end
	session.Score = &score
	session.TimeSpent = &spent
}

func copySession(s *models.TestSession) *models.TestSession {
	cp := *s
	cp.Module = nil
	cp.Answers = nil
	if s.EndTime != nil {
		end := *s.EndTime
		cp.EndTime = &end
	}
	if s.Score != nil {
		score := *s.Score
		cp.Score = &score
	}
	if s.TimeSpent != nil {
		spent := *s.TimeSpent
		cp.TimeSpent = &spent
	}
	return &cp
}
