package services

import (
	"context"
	"errors"
	"time"

	"github.com/cfa-prep/study-service/internal/events"
	"github.com/cfa-prep/study-service/internal/models"
	"github.com/cfa-prep/study-service/internal/repositories"
	"github.com/cfa-prep/study-service/pkg/monitoring"
)

const reconcileBatchSize = 500

type reconcileService struct {
	repo      repositories.Repository
	publisher events.EventPublisher
	logger    *ServiceLogger
	grace     time.Duration
	now       func() time.Time
}

// NewReconcileService finalizes sessions that hold a full answer set but
// were never stamped. Sessions younger than grace are left alone since a
// runner may still be writing them.
func NewReconcileService(repo repositories.Repository, publisher events.EventPublisher, logger *ServiceLogger, grace time.Duration, now func() time.Time) ReconcileService {
	if now == nil {
		now = time.Now
	}
	return &reconcileService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		grace:     grace,
		now:       now,
	}
}

func (s *reconcileService) Run(ctx context.Context) (result *ReconcileResult, err error) {
	op := s.logger.WithOperation(ctx, "sessions.reconcile", "")
	defer func() { op.LogResult("sessions", err) }()

	cutoff := s.now().Add(-s.grace)
	result = &ReconcileResult{}

	// Incomplete sessions are never stamped, so the scan pages past them
	// instead of rereading the same oldest batch on every pass.
	var afterID uint
	for {
		sessions, err := s.repo.Session().ListUnfinalized(ctx, cutoff, afterID, reconcileBatchSize)
		if err != nil {
			return nil, NewPersistenceError("list unfinalized sessions", err)
		}
		if len(sessions) == 0 {
			break
		}
		if err := s.reconcileBatch(ctx, sessions, result); err != nil {
			return nil, err
		}
		if len(sessions) < reconcileBatchSize {
			break
		}
		afterID = sessions[len(sessions)-1].ID
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	if result.Finalized > 0 || result.Failed > 0 {
		s.logger.Logger().Info("Session reconciliation finished",
			"examined", result.Examined,
			"finalized", result.Finalized,
			"incomplete", result.Incomplete,
			"failed", result.Failed)
	}
	return result, nil
}

func (s *reconcileService) reconcileBatch(ctx context.Context, sessions []*models.TestSession, result *ReconcileResult) error {
	answers, err := s.repo.Session().ListAnswersBySessions(ctx, sessionIDs(sessions))
	if err != nil {
		return NewPersistenceError("load answers", err)
	}
	bySession := make(map[uint][]*models.AnswerRecord, len(sessions))
	for _, a := range answers {
		bySession[a.TestSessionID] = append(bySession[a.TestSessionID], a)
	}

	result.Examined += len(sessions)
	for _, session := range sessions {
		recorded := bySession[session.ID]
		if session.QuestionCount <= 0 || len(recorded) != session.QuestionCount {
			result.Incomplete++
			continue
		}

		f := finalizationFromAnswers(session, recorded)
		if err := s.repo.Session().FinalizeSession(ctx, session.ID, f); err != nil {
			if errors.Is(err, repositories.ErrAlreadyFinalized) {
				// A runner finished it between the listing and now.
				continue
			}
			result.Failed++
			s.logger.Logger().Error("Failed to reconcile session",
				"session_id", session.ID,
				"error", err)
			continue
		}

		result.Finalized++
		monitoring.SessionsReconciled.Inc()
		s.publishReconciled(ctx, session, f)
	}
	return nil
}

// finalizationFromAnswers derives the stamp a runner would have written:
// the score over the session's question count, ending at the latest answer.
func finalizationFromAnswers(session *models.TestSession, answers []*models.AnswerRecord) models.Finalization {
	correct := 0
	end := session.StartTime
	for _, a := range answers {
		if a.IsCorrect {
			correct++
		}
		if a.AnsweredAt.After(end) {
			end = a.AnsweredAt
		}
	}
	return models.Finalization{
		Score:     RoundPercent(correct, session.QuestionCount),
		EndTime:   end,
		TimeSpent: ElapsedSeconds(session.StartTime, end),
	}
}

func (s *reconcileService) publishReconciled(ctx context.Context, session *models.TestSession, f models.Finalization) {
	event := events.NewSessionReconciledEvent(session.UserID, events.SessionReconciledEvent{
		SessionID:     session.ID,
		ModuleID:      session.ModuleID,
		Score:         f.Score,
		QuestionCount: session.QuestionCount,
		EndTime:       f.EndTime,
	})
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Logger().Warn("Failed to publish session reconciled event",
			"session_id", session.ID,
			"error", err)
	}
}
