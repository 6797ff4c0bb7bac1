package services

import (
	"context"
	"testing"
	"time"

	"github.com/cfa-prep/study-service/internal/identity"
	"github.com/cfa-prep/study-service/internal/models"
	"github.com/cfa-prep/study-service/internal/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProfileService(env *testEnv) ProfileService {
	return NewProfileService(env.repo, NewServiceLogger(testLogger(), "profile"), validator.New(), time.UTC, env.clock.Now)
}

func strPtr(s string) *string { return &s }

func TestProfileServiceEnsureProfile(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	svc := newTestProfileService(env)

	_, err := svc.Get(ctx, "user-1")
	assert.ErrorIs(t, err, ErrProfileNotFound)

	require.NoError(t, svc.EnsureProfile(ctx, &identity.Identity{UserID: "user-1", Email: "old@example.com", Name: "Ada"}))
	require.NoError(t, svc.EnsureProfile(ctx, &identity.Identity{UserID: "user-1", Email: "new@example.com", Name: "Someone Else"}))

	profile, err := svc.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", profile.Email)
	assert.Equal(t, "Ada", profile.FullName)
	assert.Equal(t, models.Preferences{}, profile.Preferences)
	assert.Nil(t, profile.NextExamDate)
	assert.Nil(t, profile.ExamCountdownDays)
}

func TestProfileServiceUpdate(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	svc := newTestProfileService(env)
	require.NoError(t, svc.EnsureProfile(ctx, &identity.Identity{UserID: "user-1", Email: "ada@example.com"}))

	resp, err := svc.Update(ctx, "user-1", &UpdateProfileRequest{
		FullName:     "Ada Candidate",
		AvatarURL:    strPtr("https://cdn.example.com/ada.png"),
		Preferences:  models.Preferences{Topics: "Ethics, FRA", Difficulty: 3},
		NextExamDate: strPtr("2026-06-01"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada Candidate", resp.FullName)
	require.NotNil(t, resp.NextExamDate)
	assert.Equal(t, "2026-06-01", *resp.NextExamDate)
	require.NotNil(t, resp.ExamCountdownDays)
	assert.Equal(t, 27, *resp.ExamCountdownDays)

	stored, err := svc.Get(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Preferences.Difficulty)
	assert.Equal(t, "Ethics, FRA", stored.Preferences.Topics)
	assert.Equal(t, "https://cdn.example.com/ada.png", *stored.AvatarURL)

	resp, err = svc.Update(ctx, "user-1", &UpdateProfileRequest{FullName: "Ada Candidate"})
	require.NoError(t, err)
	assert.Nil(t, resp.NextExamDate)
	assert.Nil(t, resp.ExamCountdownDays)
}

func TestProfileServiceUpdateValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv()
	svc := newTestProfileService(env)
	require.NoError(t, svc.EnsureProfile(ctx, &identity.Identity{UserID: "user-1", Email: "ada@example.com"}))

	tests := []struct {
		name string
		req  *UpdateProfileRequest
	}{
		{"difficulty above range", &UpdateProfileRequest{Preferences: models.Preferences{Difficulty: 6}}},
		{"malformed exam date", &UpdateProfileRequest{NextExamDate: strPtr("06/01/2026")}},
		{"avatar is not a url", &UpdateProfileRequest{AvatarURL: strPtr("not a url")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Update(ctx, "user-1", tt.req)
			assert.True(t, IsValidation(err), "got %v", err)
		})
	}

	_, err := svc.Update(ctx, "ghost", &UpdateProfileRequest{FullName: "Nobody"})
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestExamCountdown(t *testing.T) {
	now := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	date := func(y int, m time.Month, d int) *time.Time {
		t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		return &t
	}

	assert.Nil(t, ExamCountdown(nil, now, time.UTC))
	assert.Equal(t, 27, *ExamCountdown(date(2026, 6, 1), now, time.UTC))
	assert.Equal(t, 0, *ExamCountdown(date(2026, 5, 5), now, time.UTC))
	assert.Equal(t, 0, *ExamCountdown(date(2026, 5, 4), now, time.UTC))
	assert.Equal(t, -3, *ExamCountdown(date(2026, 5, 1), now, time.UTC))

	tokyo := time.FixedZone("JST", 9*60*60)
	// 2026-05-05 00:00 JST is 2026-05-04 15:00 UTC.
	assert.Equal(t, 0, *ExamCountdown(date(2026, 5, 5), now, tokyo))
	assert.Equal(t, 1, *ExamCountdown(date(2026, 5, 6), now, tokyo))
}
