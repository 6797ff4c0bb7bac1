package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/cfa-prep/study-service/internal/repositories"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestTranslateError(t *testing.T) {
	assert.NoError(t, translateError(nil))

	assert.ErrorIs(t, translateError(gorm.ErrRecordNotFound), repositories.ErrRecordNotFound)
	assert.ErrorIs(t, translateError(fmt.Errorf("load session: %w", gorm.ErrRecordNotFound)), repositories.ErrRecordNotFound)
	assert.ErrorIs(t, translateError(gorm.ErrDuplicatedKey), repositories.ErrDuplicate)
	assert.True(t, repositories.IsDuplicateError(translateError(gorm.ErrDuplicatedKey)))

	other := errors.New("connection reset")
	assert.Equal(t, other, translateError(other))
}

func TestSessionOrder(t *testing.T) {
	tests := []struct {
		name      string
		sortBy    string
		sortOrder string
		want      string
	}{
		{"defaults to newest end time", "", "", "end_time DESC NULLS LAST, id DESC"},
		{"start time ascending", "start_time", "asc", "start_time ASC NULLS LAST, id ASC"},
		{"created at descending", "created_at", "desc", "created_at DESC NULLS LAST, id DESC"},
		{"unknown column falls back", "score; DROP TABLE test_sessions", "asc", "end_time ASC NULLS LAST, id ASC"},
		{"unknown direction is descending", "end_time", "sideways", "end_time DESC NULLS LAST, id DESC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sessionOrder(tt.sortBy, tt.sortOrder))
		})
	}
}
