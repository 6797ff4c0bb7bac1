package postgres

import (
	"errors"

	"github.com/cfa-prep/study-service/internal/repositories"
	"gorm.io/gorm"
)

// translateError maps gorm errors onto the repository sentinels. The
// database is opened with TranslateError so unique violations arrive as
// gorm.ErrDuplicatedKey.
func translateError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return repositories.ErrRecordNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return repositories.ErrDuplicate
	default:
		return err
	}
}

func getDB(db, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return db
}

func sessionOrder(sortBy, sortOrder string) string {
	column := "end_time"
	switch sortBy {
	case "start_time", "end_time", "created_at":
		column = sortBy
	}
	direction := "DESC"
	if sortOrder == "asc" {
		direction = "ASC"
	}
	// Unfinished sessions sort last in either direction.
	return column + " " + direction + " NULLS LAST, id " + direction
}
