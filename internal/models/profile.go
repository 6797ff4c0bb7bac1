package models

import (
	"time"

	"gorm.io/datatypes"
)

// Profile is the user's account record in the user store, keyed by the
// identity provider's user id.
type Profile struct {
	ID           string         `json:"id" gorm:"primaryKey;size:64"`
	Email        string         `json:"email" gorm:"not null;size:255"`
	FullName     string         `json:"full_name" gorm:"size:200"`
	AvatarURL    *string        `json:"avatar_url" gorm:"type:text"`
	Preferences  datatypes.JSON `json:"preferences" gorm:"type:jsonb"`
	NextExamDate *time.Time     `json:"next_exam_date" gorm:"type:date"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

func (Profile) TableName() string {
	return "profiles"
}

// Preferences is the decoded form of Profile.Preferences.
type Preferences struct {
	Topics     string `json:"topics" validate:"max=500"`
	Difficulty int    `json:"difficulty" validate:"omitempty,min=1,max=5"`
}
