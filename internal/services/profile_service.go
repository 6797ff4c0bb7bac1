package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cfa-prep/study-service/internal/identity"
	"github.com/cfa-prep/study-service/internal/models"
	"github.com/cfa-prep/study-service/internal/repositories"
	"github.com/cfa-prep/study-service/internal/validator"
	"gorm.io/datatypes"
)

type profileService struct {
	repo      repositories.Repository
	logger    *ServiceLogger
	validator *validator.Validator
	location  *time.Location
	now       func() time.Time
}

func NewProfileService(repo repositories.Repository, logger *ServiceLogger, v *validator.Validator, location *time.Location, now func() time.Time) ProfileService {
	if location == nil {
		location = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &profileService{
		repo:      repo,
		logger:    logger,
		validator: v,
		location:  location,
		now:       now,
	}
}

func (s *profileService) Get(ctx context.Context, userID string) (*ProfileResponse, error) {
	profile, err := s.repo.Profile().GetByID(ctx, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrProfileNotFound
		}
		return nil, NewPersistenceError("load profile", err)
	}
	return s.toResponse(profile), nil
}

func (s *profileService) Update(ctx context.Context, userID string, req *UpdateProfileRequest) (resp *ProfileResponse, err error) {
	op := s.logger.WithOperation(ctx, "profile.update", userID)
	defer func() { op.LogResult("profile", err) }()

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	profile, err := s.repo.Profile().GetByID(ctx, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrProfileNotFound
		}
		return nil, NewPersistenceError("load profile", err)
	}

	prefs, err := json.Marshal(req.Preferences)
	if err != nil {
		return nil, err
	}

	profile.FullName = req.FullName
	profile.AvatarURL = req.AvatarURL
	profile.Preferences = datatypes.JSON(prefs)
	profile.NextExamDate = nil
	if req.NextExamDate != nil && *req.NextExamDate != "" {
		// Format already checked by the exam_date rule.
		date, _ := time.Parse(time.DateOnly, *req.NextExamDate)
		profile.NextExamDate = &date
	}

	if err := s.repo.Profile().Update(ctx, profile); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrProfileNotFound
		}
		return nil, NewPersistenceError("update profile", err)
	}
	return s.toResponse(profile), nil
}

func (s *profileService) EnsureProfile(ctx context.Context, id *identity.Identity) error {
	profile := &models.Profile{
		ID:          id.UserID,
		Email:       id.Email,
		FullName:    id.Name,
		Preferences: datatypes.JSON("{}"),
	}
	if err := s.repo.Profile().Upsert(ctx, profile); err != nil {
		return NewPersistenceError("ensure profile", err)
	}
	return nil
}

func (s *profileService) toResponse(p *models.Profile) *ProfileResponse {
	resp := &ProfileResponse{
		ID:        p.ID,
		Email:     p.Email,
		FullName:  p.FullName,
		AvatarURL: p.AvatarURL,
	}
	if len(p.Preferences) > 0 {
		if err := json.Unmarshal(p.Preferences, &resp.Preferences); err != nil {
			s.logger.Logger().Warn("Ignoring unreadable profile preferences", "user_id", p.ID, "error", err)
		}
	}
	if p.NextExamDate != nil {
		date := p.NextExamDate.Format(time.DateOnly)
		resp.NextExamDate = &date
		resp.ExamCountdownDays = ExamCountdown(p.NextExamDate, s.now(), s.location)
	}
	return resp
}

// ExamCountdown returns the whole days from now until the start of the
// exam day in loc, truncated toward zero. It is negative once the exam day
// has passed and nil when no date is set.
func ExamCountdown(examDate *time.Time, now time.Time, loc *time.Location) *int {
	if examDate == nil {
		return nil
	}
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := examDate.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	days := int(start.Sub(now) / (24 * time.Hour))
	return &days
}
