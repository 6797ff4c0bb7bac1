package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type selectionInput struct {
	Choice   string `json:"choice" validate:"required,choice_label"`
	ExamDate string `json:"next_exam_date" validate:"exam_date"`
}

func TestValidateUsesJSONFieldNames(t *testing.T) {
	v := New()

	err := v.Validate(selectionInput{Choice: "z", ExamDate: "31/12/2026"})
	require.Error(t, err)

	errs, ok := err.(ValidationErrors)
	require.True(t, ok)
	require.Len(t, errs, 2)
	assert.Equal(t, "choice", errs[0].Field)
	assert.Equal(t, "choice_label", errs[0].Rule)
	assert.Equal(t, "next_exam_date", errs[1].Field)
}

func TestValidateAcceptsGoodInput(t *testing.T) {
	v := New()

	assert.NoError(t, v.Validate(selectionInput{Choice: "B", ExamDate: "2026-12-31"}))
	assert.NoError(t, v.Validate(selectionInput{Choice: "D"}))
}

func TestIsChoiceLabel(t *testing.T) {
	assert.True(t, IsChoiceLabel("A"))
	assert.True(t, IsChoiceLabel("AB"))
	assert.False(t, IsChoiceLabel(""))
	assert.False(t, IsChoiceLabel("a"))
	assert.False(t, IsChoiceLabel("ABC"))
}
