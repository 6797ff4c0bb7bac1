package models

import "time"

// Module is a CFA curriculum topic grouping a set of questions
type Module struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"column:module_name;not null;size:200;uniqueIndex" validate:"required,min=1,max=200"`
	Slug        string    `json:"slug" gorm:"not null;size:200;uniqueIndex"`
	Description *string   `json:"description" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at"`

	// Computed fields (not stored)
	QuestionCount int `json:"question_count" gorm:"->;-:migration"`
}

func (Module) TableName() string {
	return "modules"
}

// Question is read-only to the practice flow. Its choice set is stored one
// row per label so the number of choices can differ between questions.
type Question struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	ModuleID      uint      `json:"module_id" gorm:"not null;index"`
	Text          string    `json:"question_text" gorm:"column:question_text;type:text;not null" validate:"required"`
	CorrectAnswer string    `json:"correct_answer" gorm:"not null;size:8" validate:"required"`
	Explanation   string    `json:"explanation" gorm:"type:text"`
	CreatedAt     time.Time `json:"created_at"`

	Choices []QuestionChoice `json:"choices" gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE" validate:"min=2,dive"`
}

func (Question) TableName() string {
	return "questions"
}

// HasChoice reports whether label is one of the question's choices.
func (q *Question) HasChoice(label string) bool {
	for _, c := range q.Choices {
		if c.Label == label {
			return true
		}
	}
	return false
}

// ChoiceLabels returns the question's choice labels in display order.
func (q *Question) ChoiceLabels() []string {
	labels := make([]string, len(q.Choices))
	for i, c := range q.Choices {
		labels[i] = c.Label
	}
	return labels
}

type QuestionChoice struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	QuestionID uint   `json:"question_id" gorm:"not null;uniqueIndex:idx_choice_label"`
	Label      string `json:"label" gorm:"not null;size:8;uniqueIndex:idx_choice_label" validate:"required,max=8"`
	Text       string `json:"text" gorm:"column:choice_text;type:text;not null" validate:"required"`
}

func (QuestionChoice) TableName() string {
	return "question_choices"
}
