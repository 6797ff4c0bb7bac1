// Package memory holds in-memory stores with the same contracts as the
// postgres repositories. They back STORE_DRIVER=memory and the tests.
package memory

import "github.com/cfa-prep/study-service/internal/repositories"

// NewRepository returns a Repository backed by fresh in-memory stores
func NewRepository() repositories.Repository {
	return repositories.NewRepository(NewContentStore(), NewSessionStore(), NewProfileStore())
}
