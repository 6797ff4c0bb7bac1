package services

import (
	"sort"
	"time"

	"github.com/cfa-prep/study-service/internal/models"
)

// DefaultStreakWindow is how many of the most recent sessions a streak is
// computed from.
const DefaultStreakWindow = 30

// ModuleProgress is a user's aggregate over every completed session in one
// module.
type ModuleProgress struct {
	ModuleID       uint    `json:"module_id"`
	ModuleName     string  `json:"module_name,omitempty"`
	TotalQuestions int     `json:"total_questions"`
	TotalCorrect   int     `json:"total_correct"`
	TotalTime      int     `json:"total_time"`
	Percentage     float64 `json:"percentage"`
}

type Milestone string

const (
	MilestoneWeekStreak  Milestone = "week_streak"
	MilestoneTenSessions Milestone = "ten_sessions"
)

// ComputeModuleProgress groups completed sessions by module and counts the
// correct answers that belong to them. Sessions without an end time and
// answers of unknown sessions are ignored. Output is ordered by module id.
func ComputeModuleProgress(sessions []*models.TestSession, answers []*models.AnswerRecord) []ModuleProgress {
	byModule := make(map[uint]*ModuleProgress)
	moduleOf := make(map[uint]uint, len(sessions))

	for _, s := range sessions {
		if s == nil || s.EndTime == nil {
			continue
		}
		moduleOf[s.ID] = s.ModuleID

		p, ok := byModule[s.ModuleID]
		if !ok {
			p = &ModuleProgress{ModuleID: s.ModuleID}
			byModule[s.ModuleID] = p
		}
		if s.TimeSpent != nil {
			p.TotalTime += *s.TimeSpent
		}
		p.TotalQuestions += s.QuestionCount
	}

	for _, a := range answers {
		if a == nil || !a.IsCorrect {
			continue
		}
		moduleID, ok := moduleOf[a.TestSessionID]
		if !ok {
			continue
		}
		byModule[moduleID].TotalCorrect++
	}

	out := make([]ModuleProgress, 0, len(byModule))
	for _, p := range byModule {
		if p.TotalQuestions > 0 {
			p.Percentage = float64(p.TotalCorrect) / float64(p.TotalQuestions) * 100
		}
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModuleID < out[j].ModuleID })
	return out
}

// ComputeStudyStreak counts consecutive calendar days in loc, walking back
// from the day containing now, on which at least one of the limit most
// recently ended sessions ended. The walk may start on today or yesterday.
func ComputeStudyStreak(sessions []*models.TestSession, now time.Time, loc *time.Location, limit int) int {
	if loc == nil {
		loc = time.UTC
	}
	if limit <= 0 {
		limit = DefaultStreakWindow
	}

	ended := make([]time.Time, 0, len(sessions))
	for _, s := range sessions {
		if s != nil && s.EndTime != nil {
			ended = append(ended, *s.EndTime)
		}
	}
	if len(ended) == 0 {
		return 0
	}
	sort.Slice(ended, func(i, j int) bool { return ended[i].After(ended[j]) })
	if len(ended) > limit {
		ended = ended[:limit]
	}

	seen := make(map[int64]bool, len(ended))
	days := make([]int64, 0, len(ended))
	for _, t := range ended {
		d := dayNumber(t, loc)
		if !seen[d] {
			seen[d] = true
			days = append(days, d)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i] > days[j] })

	anchor := dayNumber(now, loc)
	streak := 0
	for _, d := range days {
		if d > anchor {
			// Ended after now; clock skew between writers.
			continue
		}
		if d != anchor && d != anchor-1 {
			break
		}
		streak++
		anchor = d
	}
	return streak
}

// Milestones returns the flags earned for a streak and the number of
// completed sessions considered.
func Milestones(streak, completedSessions int) []Milestone {
	out := []Milestone{}
	if streak >= 7 {
		out = append(out, MilestoneWeekStreak)
	}
	if completedSessions >= 10 {
		out = append(out, MilestoneTenSessions)
	}
	return out
}

// dayNumber is the index of t's calendar day in loc, counted from the epoch.
func dayNumber(t time.Time, loc *time.Location) int64 {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}
